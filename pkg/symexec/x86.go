package symexec

import (
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"github.com/ropsmith/ropgadget/pkg/arch"
)

func regName86(r x86asm.Reg) string {
	return strings.ToLower(r.String())
}

// memAddr resolves an x86asm.Mem operand to a Linear over the *current*
// state — base, plus index*scale if present, plus displacement.
func memAddr86(s *state, m x86asm.Mem) Linear {
	l := constLinear(m.Disp)
	if m.Base != 0 {
		base := s.get(regName86(m.Base))
		if !base.isLoad {
			l = l.add(base.lin, 1)
		} else {
			l = l.add(Linear{Terms: map[string]int64{regName86(m.Base): 1}}, 1)
		}
	}
	if m.Index != 0 && m.Scale != 0 {
		idx := s.get(regName86(m.Index))
		if !idx.isLoad {
			l = l.add(idx.lin, int64(m.Scale))
		}
	}
	return l
}

func widthBits86(inst x86asm.Inst, fallback int) int {
	if inst.MemBytes > 0 {
		return inst.MemBytes * 8
	}
	return fallback
}

// executeX86 runs gadget bytes through x86asm.Decode and returns the
// finished Mapper, neutralizing a trailing call per spec.md §4.5.
func executeX86(tag arch.Tag, data []byte) (*Mapper, error) {
	mode := 32
	if tag == arch.X64 {
		mode = 64
	}
	info := arch.Lookup(tag)
	ptrBits := info.PointerWidth * 8

	st := newState()
	off := 0
	for off < len(data) {
		inst, err := x86asm.Decode(data[off:], mode)
		if err != nil {
			return nil, unsupported("<decode error>")
		}
		last := off+inst.Len >= len(data)
		if err := stepX86(st, inst, info, ptrBits, last); err != nil {
			return nil, err
		}
		off += inst.Len
	}
	return st.toMapper(), nil
}

func stepX86(st *state, inst x86asm.Inst, info arch.Info, ptrBits int, last bool) error {
	switch inst.Op {
	case x86asm.MOV:
		return stepMov86(st, inst, ptrBits)
	case x86asm.POP:
		dst, ok := inst.Args[0].(x86asm.Reg)
		if !ok {
			return unsupported("pop")
		}
		sp := st.get(info.SPReg)
		st.set(regName86(dst), ExprFromLoad(Load{WidthBits: ptrBits, Addr: sp.lin}))
		st.set(info.SPReg, ExprFromLinear(sp.lin.add(constLinear(int64(info.PointerWidth)), 1)))
		return nil
	case x86asm.ADD, x86asm.SUB:
		return stepAddSub86(st, inst)
	case x86asm.LEA:
		dst, ok := inst.Args[0].(x86asm.Reg)
		mem, okMem := inst.Args[1].(x86asm.Mem)
		if !ok || !okMem {
			return unsupported("lea")
		}
		st.set(regName86(dst), ExprFromLinear(memAddr86(st, mem)))
		return nil
	case x86asm.XCHG:
		a, okA := inst.Args[0].(x86asm.Reg)
		b, okB := inst.Args[1].(x86asm.Reg)
		if !okA || !okB {
			return unsupported("xchg")
		}
		av, bv := st.get(regName86(a)), st.get(regName86(b))
		st.set(regName86(a), bv)
		st.set(regName86(b), av)
		return nil
	case x86asm.LEAVE:
		bp := "ebp"
		if ptrBits == 64 {
			bp = "rbp"
		}
		bpVal := st.get(bp)
		st.set(info.SPReg, bpVal)
		st.set(bp, ExprFromLoad(Load{WidthBits: ptrBits, Addr: bpVal.lin}))
		st.set(info.SPReg, ExprFromLinear(bpVal.lin.add(constLinear(int64(info.PointerWidth)), 1)))
		return nil
	case x86asm.RET, x86asm.RETF:
		return stepRet86(st, inst, info)
	case x86asm.CALL, x86asm.CALLF:
		if !last {
			return unsupported("call (not terminal)")
		}
		// Call neutralization (spec.md §4.5): model exactly as a bare ret.
		sp := st.get(info.SPReg)
		st.set(info.IPReg, ExprFromLoad(Load{WidthBits: ptrBits, Addr: sp.lin}))
		st.set(info.SPReg, ExprFromLinear(sp.lin.add(constLinear(int64(info.PointerWidth)), 1)))
		return nil
	case x86asm.JMP, x86asm.JMPF:
		if !last {
			return unsupported("jmp (not terminal)")
		}
		// A bare jmp, unlike call/ret, never touches the stack pointer —
		// it only rebinds ip to whatever the target resolves to.
		switch dst := inst.Args[0].(type) {
		case x86asm.Reg:
			st.set(info.IPReg, st.get(regName86(dst)))
		case x86asm.Mem:
			addr := memAddr86(st, dst)
			st.set(info.IPReg, ExprFromLoad(Load{WidthBits: widthBits86(inst, ptrBits), Addr: addr}))
		default:
			return unsupported("jmp")
		}
		return nil
	case x86asm.INT, x86asm.INT3, x86asm.SYSCALL, x86asm.SYSENTER, x86asm.SYSEXIT, x86asm.SYSRET:
		// Trap instructions hand control to the kernel; no register effect
		// is modeled, so the ip binding is left as an unresolved identity
		// and the gadget will naturally fail classify's ip/sp invariant
		// unless something upstream of it already set eip/rip explicitly.
		return nil
	default:
		return unsupported(inst.Op.String())
	}
}

func stepMov86(st *state, inst x86asm.Inst, ptrBits int) error {
	switch dst := inst.Args[0].(type) {
	case x86asm.Reg:
		switch src := inst.Args[1].(type) {
		case x86asm.Reg:
			st.set(regName86(dst), st.get(regName86(src)))
		case x86asm.Imm:
			st.set(regName86(dst), ExprFromConst(int64(src)))
		case x86asm.Mem:
			addr := memAddr86(st, src)
			st.set(regName86(dst), ExprFromLoad(Load{WidthBits: widthBits86(inst, ptrBits), Addr: addr}))
		default:
			return unsupported("mov")
		}
		return nil
	case x86asm.Mem:
		addr := memAddr86(st, dst)
		st.addStore(StoreEffect{Addr: addr, WidthBits: widthBits86(inst, ptrBits)})
		return nil
	default:
		return unsupported("mov")
	}
}

func stepAddSub86(st *state, inst x86asm.Inst) error {
	dst, ok := inst.Args[0].(x86asm.Reg)
	if !ok {
		return unsupported("add/sub")
	}
	cur := st.get(regName86(dst))
	if cur.isLoad {
		return unsupported("add/sub on loaded value")
	}
	var delta Linear
	switch src := inst.Args[1].(type) {
	case x86asm.Imm:
		delta = constLinear(int64(src))
	case x86asm.Reg:
		other := st.get(regName86(src))
		if other.isLoad {
			return unsupported("add/sub by loaded value")
		}
		delta = other.lin
	default:
		return unsupported("add/sub")
	}
	sign := int64(1)
	if inst.Op == x86asm.SUB {
		sign = -1
	}
	st.set(regName86(dst), ExprFromLinear(cur.lin.add(delta, sign)))
	return nil
}

func stepRet86(st *state, inst x86asm.Inst, info arch.Info) error {
	sp := st.get(info.SPReg)
	st.set(info.IPReg, ExprFromLoad(Load{WidthBits: info.PointerWidth * 8, Addr: sp.lin}))
	extra := int64(0)
	if len(inst.Args) > 0 {
		if imm, ok := inst.Args[0].(x86asm.Imm); ok {
			extra = int64(imm)
		}
	}
	st.set(info.SPReg, ExprFromLinear(sp.lin.add(constLinear(int64(info.PointerWidth)+extra), 1)))
	return nil
}
