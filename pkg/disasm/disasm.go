// Package disasm wraps golang.org/x/arch's x86 and ARM decoders behind one
// small Insn type, and implements the disassembly-side gadget filter
// (spec.md §4.2, passClean). The Scanner (pkg/scan), the cache reload in
// pkg/finder and cmd/ropscan decode through this package, so the
// branch/terminator classification lives in exactly one place. The
// symbolic executor (pkg/symexec) decodes gadget bytes again directly with
// x86asm/armasm to read structured operands.
package disasm

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/arch/arm/armasm"
	"golang.org/x/arch/x86/x86asm"

	"github.com/ropsmith/ropgadget/pkg/arch"
)

// Insn is one decoded instruction, arch-neutral.
type Insn struct {
	Mnemonic string // human-readable, e.g. "pop rdi", "ret", "pop {r4, pc}"
	Len      int
	IsBranch bool // belongs to JUMP|CALL|RET|INT|IRET (or ARM B/BL/BX/BLX/SVC)
	IsPop    bool // mnemonic is "pop"; branchCount checks it on the last insn — ARM pop-into-pc special case (§4.2)
}

// DecodeAll decodes data as a straight-line sequence of instructions,
// starting at vaddr (used only so PC-relative x86 operands print sane
// addresses). It fails unless the whole of data decodes with no gap and
// no trailing partial instruction — spec.md §4.1 step 3 requires the
// window be fully consumed.
func DecodeAll(tag arch.Tag, data []byte, vaddr uint64) ([]Insn, error) {
	var out []Insn
	off := 0
	for off < len(data) {
		insn, err := decodeOne(tag, data[off:], vaddr+uint64(off))
		if err != nil {
			return nil, fmt.Errorf("disasm: %w", err)
		}
		if insn.Len <= 0 || off+insn.Len > len(data) {
			return nil, fmt.Errorf("disasm: instruction overruns window")
		}
		out = append(out, insn)
		off += insn.Len
	}
	return out, nil
}

func decodeOne(tag arch.Tag, data []byte, pc uint64) (Insn, error) {
	switch tag {
	case arch.X86, arch.X64:
		return decodeX86(tag, data, pc)
	case arch.ARM:
		return decodeARM(data, pc)
	default:
		return Insn{}, fmt.Errorf("unsupported arch tag %v", tag)
	}
}

func decodeX86(tag arch.Tag, data []byte, pc uint64) (Insn, error) {
	mode := 32
	if tag == arch.X64 {
		mode = 64
	}
	inst, err := x86asm.Decode(data, mode)
	if err != nil {
		return Insn{}, err
	}
	text := x86asm.IntelSyntax(inst, pc, nil)
	mnem := normalizeMnemonic(text)
	op := strings.ToUpper(inst.Op.String())
	return Insn{
		Mnemonic: mnem,
		Len:      inst.Len,
		IsBranch: isBranchOpX86(op),
		IsPop:    strings.HasPrefix(op, "POP"),
	}, nil
}

func decodeARM(data []byte, pc uint64) (Insn, error) {
	inst, err := armasm.Decode(data, armasm.ModeARM)
	if err != nil {
		return Insn{}, err
	}
	text := armasm.GNUSyntax(inst)
	mnem := normalizeMnemonic(text)
	op := strings.ToUpper(inst.Op.String())
	return Insn{
		Mnemonic: mnem,
		Len:      inst.Len,
		IsBranch: isBranchOpARM(op),
		IsPop:    strings.HasPrefix(strings.ToLower(mnem), "pop"),
	}, nil
}

func normalizeMnemonic(s string) string {
	fields := strings.Fields(s)
	s = strings.Join(fields, " ")
	s = strings.ReplaceAll(s, " ,", ",")
	return strings.ToLower(s)
}

// isBranchOpX86 mirrors capstone's CS_GRP_JUMP|CALL|RET|INT|IRET grouping
// (spec.md §4.2) using x86asm's own opcode-name enum, so it covers every
// Jcc along with jmp/call/ret/int*/iret*/loop*/syscall family member.
func isBranchOpX86(op string) bool {
	switch {
	case strings.HasPrefix(op, "J"): // JMP and every Jcc (JA, JAE, JB, ...)
		return true
	case strings.HasPrefix(op, "CALL"):
		return true
	case strings.HasPrefix(op, "RET"):
		return true
	case strings.HasPrefix(op, "INT"): // INT, INT3, INTO
		return true
	case strings.HasPrefix(op, "IRET"):
		return true
	case strings.HasPrefix(op, "LOOP"):
		return true
	case op == "SYSCALL", op == "SYSENTER", op == "SYSEXIT", op == "SYSRET":
		return true
	}
	return false
}

func isBranchOpARM(op string) bool {
	switch op {
	case "B", "BL", "BX", "BLX", "BXJ":
		return true
	case "SVC", "SWI":
		return true
	}
	return false
}

// popPC matches ARM's "pop {..., pc}" form, which capstone (and our own
// decoder) classifies as a load, not a branch — spec.md §4.2 carves out
// an explicit exception for it.
var popPC = regexp.MustCompile(`(?i)^pop\s*\{.*pc.*\}`)

// PassClean implements spec.md §4.2: the terminator test and the
// single-exit test. insns must be non-empty.
func PassClean(insns []Insn) bool {
	last := insns[len(insns)-1]
	if !last.IsBranch && !popPC.MatchString(last.Mnemonic) {
		return false
	}
	return branchCount(insns) <= 1
}

// branchCount sums one per branch-category instruction, plus one extra if
// the final mnemonic is "pop" (the ARM pop-into-pc case, which is a load
// in the instruction-group sense but still ends the gadget) — spec.md §4.2.
func branchCount(insns []Insn) int {
	count := 0
	for _, in := range insns {
		if in.IsBranch {
			count++
		}
	}
	if insns[len(insns)-1].IsPop {
		count++
	}
	return count
}
