// Package solve implements the Solver (spec.md §4.7): given an ordered
// gadget chain and target register conditions, compute the stack-pointer
// delta and stack image the chain requires, or report that none exists.
package solve

import (
	"context"

	"github.com/ropsmith/ropgadget/pkg/arch"
	"github.com/ropsmith/ropgadget/pkg/gadget"
	"github.com/ropsmith/ropgadget/pkg/smt"
	"github.com/ropsmith/ropgadget/pkg/symexec"
)

// Result is the Solver's (sp_delta, stack_image) pair. Found is false for
// spec.md's Null: either the conditions were unsatisfiable, or none of
// them were stack-backed (nothing to report).
type Result struct {
	SPDelta    int64
	StackImage []smt.StackByte
	Found      bool
}

// VerifyPath concatenates chain's bytes, symbolically executes the whole
// sequence, and asks pkg/smt to satisfy conditions against the combined
// mapper (spec.md §4.7). ctx, if it carries a deadline, bounds how long
// the chain's symbolic execution may run; on expiry VerifyPath returns a
// not-found Result rather than an error. The smt.Solve step that follows
// does not observe ctx and always runs to completion.
func VerifyPath(ctx context.Context, tag arch.Tag, chain gadget.Chain, conditions []smt.Condition) Result {
	type outcome struct {
		mapper *symexec.Mapper
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		m, err := symexec.Execute(tag, chain.Bytes())
		done <- outcome{m, err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		return Result{}
	}
	if out.err != nil {
		return Result{}
	}

	info := arch.Lookup(tag)
	_, spDelta, ok := symexec.DisplacementOf(out.mapper.Regs[info.SPReg])
	if !ok {
		return Result{}
	}

	entries, ok := smt.Solve(out.mapper, info.SPReg, conditions)
	if !ok {
		return Result{}
	}
	return Result{SPDelta: spDelta, StackImage: entries, Found: true}
}
