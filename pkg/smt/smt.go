// Package smt is the constraint-solving capability spec.md §4.7 and §6
// call for. No SMT binding exists anywhere a prior implementation of this
// toolkit could have drawn on (see DESIGN.md), and the expression
// language the Classifier and Solver actually produce is narrow enough —
// every SymExpr is either a constant, a register alias, or a memory load
// off a linear combination of registers — that a full SMT backend would
// be solving equations this package can resolve directly. Solve handles
// exactly the shapes spec.md's Solver needs and reports unsatisfiable for
// anything genuinely ambiguous (composite addresses, free-register
// dependencies) rather than guessing.
package smt

import (
	"sort"

	"github.com/ropsmith/ropgadget/pkg/symexec"
)

// StackByte is one resolved (offset, value) pair in the stack image the
// Solver assembles, offset relative to the chain's initial stack pointer.
type StackByte struct {
	Offset int64
	Value  byte
}

// Condition is one target register value the Solver must satisfy.
type Condition struct {
	Reg    string
	Target uint64
}

// Solve attempts to satisfy every condition against mapper, the combined
// symbolic state of a gadget chain. spReg names the architecture's stack
// pointer register — the only base a memory load may depend on for this
// solver to resolve it into concrete stack bytes. It returns false the
// moment any condition is unsatisfiable, per spec.md §4.7 step 3.
func Solve(mapper *symexec.Mapper, spReg string, conditions []Condition) ([]StackByte, bool) {
	var entries []StackByte
	for _, cond := range conditions {
		expr, bound := mapper.Regs[cond.Reg]
		if !bound {
			return nil, false
		}
		bytes, ok := solveOne(expr, cond.Target, spReg)
		if !ok {
			return nil, false
		}
		entries = append(entries, bytes...)
	}
	if len(entries) == 0 {
		return nil, false
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Offset < entries[j].Offset })
	return dedupe(entries), true
}

func solveOne(expr symexec.Expr, target uint64, spReg string) ([]StackByte, bool) {
	switch {
	case expr.IsConst():
		return nil, uint64(expr.ConstValue()) == target
	case expr.IsMemoryLoad():
		load := expr.LoadOf()
		base, disp, ok := symexec.DisplacementOf(expr)
		if !ok || base != spReg {
			// Composite or non-stack address: the Open Question resolution
			// (SPEC_FULL.md §5) treats this as unsatisfiable rather than
			// guessing at a model.
			return nil, false
		}
		return bytesOf(disp, load.WidthBits, target), true
	default:
		// A plain register alias or a multi-register combination depends
		// on the chain's initial register values, which this solver
		// doesn't model as free variables — unsatisfiable.
		return nil, false
	}
}

func bytesOf(offset int64, widthBits int, value uint64) []StackByte {
	n := widthBits / 8
	out := make([]StackByte, n)
	for i := 0; i < n; i++ {
		out[i] = StackByte{Offset: offset + int64(i), Value: byte(value >> (8 * i))}
	}
	return out
}

func dedupe(sorted []StackByte) []StackByte {
	out := sorted[:0:0]
	var lastOffset int64
	haveLast := false
	for _, b := range sorted {
		if haveLast && b.Offset == lastOffset {
			continue
		}
		out = append(out, b)
		lastOffset = b.Offset
		haveLast = true
	}
	return out
}
