package symexec

import (
	"strconv"
	"strings"

	"golang.org/x/arch/arm/armasm"

	"github.com/ropsmith/ropgadget/pkg/arch"
)

func regNameARM(r armasm.Reg) string {
	return strings.ToLower(r.String())
}

// armArgValue resolves a Reg or Imm argument to a Linear over the current
// state. Anything else (shifted register forms, memory operands outside
// the pop-into-pc case) is left unsupported — ROP-relevant ARM gadgets
// don't need them.
func armArgValue(st *state, a armasm.Arg) (Linear, bool) {
	switch v := a.(type) {
	case armasm.Reg:
		e := st.get(regNameARM(v))
		if e.isLoad {
			return Linear{}, false
		}
		return e.lin, true
	case armasm.Imm:
		return constLinear(int64(v)), true
	default:
		return Linear{}, false
	}
}

// executeARM runs gadget bytes through armasm.Decode, pinned to ARM mode
// (not Thumb) per spec.md §4.5.
func executeARM(data []byte) (*Mapper, error) {
	info := arch.Lookup(arch.ARM)
	ptrBits := info.PointerWidth * 8

	st := newState()
	off := 0
	for off < len(data) {
		inst, err := armasm.Decode(data[off:], armasm.ModeARM)
		if err != nil {
			return nil, unsupported("<decode error>")
		}
		if err := stepARM(st, inst, info, ptrBits); err != nil {
			return nil, err
		}
		off += inst.Len
	}
	return st.toMapper(), nil
}

func stepARM(st *state, inst armasm.Inst, info arch.Info, ptrBits int) error {
	op := strings.ToUpper(inst.Op.String())
	switch op {
	case "POP":
		return stepPopARM(st, inst, info)
	case "MOV":
		dst, ok := inst.Args[0].(armasm.Reg)
		if !ok {
			return unsupported("mov")
		}
		v, ok := armArgValue(st, inst.Args[1])
		if !ok {
			return unsupported("mov")
		}
		st.set(regNameARM(dst), ExprFromLinear(v))
		return nil
	case "ADD", "SUB":
		dst, ok := inst.Args[0].(armasm.Reg)
		src1, ok2 := inst.Args[1].(armasm.Reg)
		if !ok || !ok2 {
			return unsupported(op)
		}
		rhs, ok3 := armArgValue(st, inst.Args[2])
		if !ok3 {
			return unsupported(op)
		}
		base := st.get(regNameARM(src1))
		if base.isLoad {
			return unsupported(op)
		}
		sign := int64(1)
		if op == "SUB" {
			sign = -1
		}
		st.set(regNameARM(dst), ExprFromLinear(base.lin.add(rhs, sign)))
		return nil
	case "SVC", "SWI":
		// Trap: no register effect modeled (mirrors the x86 int/syscall case).
		return nil
	default:
		return unsupported(inst.Op.String())
	}
}

// stepPopARM models "pop {r4, ..., pc}" (an LDM-multiple with writeback
// into the register list, the only ARM form spec.md's scanner matches):
// each listed register, lowest-numbered first, loads from ascending stack
// slots, and sp advances by 4 bytes per register popped.
func stepPopARM(st *state, inst armasm.Inst, info arch.Info) error {
	list, ok := inst.Args[0].(armasm.RegList)
	if !ok {
		return unsupported("pop")
	}
	sp := st.get(info.SPReg)
	slot := int64(0)
	for n := 0; n < 16; n++ {
		if uint16(list)&(1<<uint(n)) == 0 {
			continue
		}
		name := armRegNumberName(n)
		st.set(name, ExprFromLoad(Load{WidthBits: 32, Addr: sp.lin.add(constLinear(slot), 1)}))
		slot += 4
	}
	st.set(info.SPReg, ExprFromLinear(sp.lin.add(constLinear(slot), 1)))
	return nil
}

func armRegNumberName(n int) string {
	switch n {
	case 13:
		return "sp"
	case 14:
		return "lr"
	case 15:
		return "pc"
	default:
		return "r" + strconv.Itoa(n)
	}
}
