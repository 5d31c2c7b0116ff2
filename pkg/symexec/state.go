package symexec

// state tracks the running symbolic bindings during execution. A register
// that hasn't been written yet still reads as its own identity — that is
// what "expression in terms of initial registers" means.
type state struct {
	regs   map[string]Expr
	stores []StoreEffect
}

func newState() *state { return &state{regs: map[string]Expr{}} }

func (s *state) addStore(st StoreEffect) {
	s.stores = append(s.stores, st)
}

func (s *state) get(name string) Expr {
	if e, ok := s.regs[name]; ok {
		return e
	}
	return ExprFromReg(name)
}

func (s *state) set(name string, e Expr) {
	s.regs[name] = e
}

// resolveAddr substitutes the current state into a raw base+disp address
// (as decoded from a memory operand) and returns it as a Linear over the
// *original* input registers, following through any prior rewrites.
func (s *state) resolveAddr(base string, disp int64) Linear {
	if base == "" {
		return constLinear(disp)
	}
	e := s.get(base)
	if e.isLoad {
		// Address depends on a prior load; the result isn't expressible as
		// a linear combination of input registers, so collapse to a fresh
		// unknown term rather than lose the dependency entirely.
		return Linear{Terms: map[string]int64{base: 1}, Const: disp}
	}
	return e.lin.add(constLinear(disp), 1)
}

func (s *state) toMapper() *Mapper {
	m := newMapper()
	for r, e := range s.regs {
		m.Regs[r] = e
	}
	m.Stores = s.stores
	return m
}
