// Package symexec is the symbolic-execution capability spec.md §4.5 calls
// for: given a straight-line run of gadget bytes, produce a mapping from
// register name to a SymExpr in terms of the registers' initial values.
// It is deliberately narrow — it understands exactly the instruction
// forms that show up in ROP gadgets (mov, pop, lea, add/sub, xchg, leave,
// ret, a terminal call or jmp, the traps, and the ARM pop/mov/add/sub/svc
// subset) and
// returns ErrSymbolicExecutionFailure for anything else, which the
// Classifier treats as gadget rejection rather than a hard error.
package symexec

import "sort"

// Linear is a linear combination of named registers plus a constant —
// general enough for every address and register expression a ROP gadget
// produces (spec.md §4.5's "linear combination of input registers plus a
// constant displacement").
type Linear struct {
	Terms map[string]int64
	Const int64
}

func constLinear(c int64) Linear { return Linear{Const: c} }

func regLinear(name string) Linear { return Linear{Terms: map[string]int64{name: 1}} }

func (l Linear) nonZeroTerms() map[string]int64 {
	out := map[string]int64{}
	for r, c := range l.Terms {
		if c != 0 {
			out[r] = c
		}
	}
	return out
}

func (l Linear) isConst() bool { return len(l.nonZeroTerms()) == 0 }

// soleReg reports the single register this combination reduces to with
// coefficient 1, if any — the shape spec.md's displacement_of expects.
func (l Linear) soleReg() (string, bool) {
	terms := l.nonZeroTerms()
	if len(terms) != 1 {
		return "", false
	}
	for r, c := range terms {
		if c == 1 {
			return r, true
		}
	}
	return "", false
}

func (l Linear) add(other Linear, scale int64) Linear {
	out := Linear{Terms: map[string]int64{}, Const: l.Const + other.Const*scale}
	for r, c := range l.Terms {
		out.Terms[r] += c
	}
	for r, c := range other.Terms {
		out.Terms[r] += c * scale
	}
	return out
}

// Load is a memory read M[width](addr) (spec.md §4.5).
type Load struct {
	WidthBits int
	Addr      Linear
}

// Expr is a register's symbolic value: either a Linear combination or a
// memory Load. This is the SymExpr of spec.md §4.5.
type Expr struct {
	isLoad bool
	lin    Linear
	mem    Load
}

func ExprFromConst(c int64) Expr   { return Expr{lin: constLinear(c)} }
func ExprFromReg(name string) Expr { return Expr{lin: regLinear(name)} }
func ExprFromLinear(l Linear) Expr { return Expr{lin: l} }
func ExprFromLoad(l Load) Expr     { return Expr{isLoad: true, mem: l} }

// IsConst reports whether expr carries no register dependency.
func (e Expr) IsConst() bool { return !e.isLoad && e.lin.isConst() }

// IsReg reports whether expr is a bare alias for a single input register.
func (e Expr) IsReg() bool {
	if e.isLoad || e.lin.Const != 0 {
		return false
	}
	_, ok := e.lin.soleReg()
	return ok
}

// IsMemoryLoad reports whether expr reads through memory.
func (e Expr) IsMemoryLoad() bool { return e.isLoad }

// IsPointerWrite is always false: a value that reaches a register binding
// is by construction never itself a store. Stores are tracked separately
// on Mapper.Stores and enforced by the Classifier (spec.md §4.6's
// "destination is a pointer or memory write" rule).
func (e Expr) IsPointerWrite() bool { return false }

// ConstValue returns the constant value; only meaningful if IsConst.
func (e Expr) ConstValue() int64 { return e.lin.Const }

// RegName returns the aliased register; only meaningful if IsReg.
func (e Expr) RegName() string {
	r, _ := e.lin.soleReg()
	return r
}

// LoadOf returns the underlying Load; only meaningful if IsMemoryLoad.
func (e Expr) LoadOf() Load { return e.mem }

// DisplacementOf is spec.md §6's displacement_of operator: for an
// arithmetic expression it returns the single base register (if the
// expression reduces to base+const) and the constant offset. For a
// memory load it reports the load's own address displacement instead,
// since that is what the Classifier actually needs for ip_delta.
func DisplacementOf(e Expr) (base string, offset int64, ok bool) {
	if e.isLoad {
		b, _ := e.mem.Addr.soleReg()
		return b, e.mem.Addr.Const, true
	}
	b, isSole := e.lin.soleReg()
	if !isSole && !e.lin.isConst() {
		return "", 0, false
	}
	return b, e.lin.Const, true
}

// LocationsOf is spec.md §6's locations_of operator: the set of input
// registers expr depends on, sorted for deterministic iteration.
func LocationsOf(e Expr) []string {
	var terms map[string]int64
	if e.isLoad {
		terms = e.mem.Addr.Terms
	} else {
		terms = e.lin.Terms
	}
	var out []string
	for r, c := range terms {
		if c != 0 {
			out = append(out, r)
		}
	}
	sort.Strings(out)
	return out
}

// StoreEffect records a memory write the executor observed — gadgets that
// perform one are rejected outright by the Classifier.
type StoreEffect struct {
	Addr      Linear
	WidthBits int
}

// Mapper is the finished symbolic-execution result for one gadget: the
// final expression bound to every register touched, plus any memory
// stores observed along the way.
type Mapper struct {
	Regs   map[string]Expr
	Stores []StoreEffect
}

func newMapper() *Mapper {
	return &Mapper{Regs: map[string]Expr{}}
}

// SortedRegs returns register names with bindings, sorted for
// deterministic iteration by the Classifier.
func (m *Mapper) SortedRegs() []string {
	out := make([]string, 0, len(m.Regs))
	for r := range m.Regs {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
