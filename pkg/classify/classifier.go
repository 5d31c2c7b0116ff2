// Package classify implements the Classifier (spec.md §4.6): it turns an
// unclassified Gadget into one carrying a full register-effect map and a
// stack-pointer delta, or rejects it.
package classify

import (
	"strings"

	"github.com/ropsmith/ropgadget/pkg/arch"
	"github.com/ropsmith/ropgadget/pkg/gadget"
	"github.com/ropsmith/ropgadget/pkg/symexec"
)

// Classify runs the gadget's bytes through the symbolic executor and
// derives regs/sp_delta per spec.md §4.6, rejecting it with
// gadget.ErrClassifierReject (or a wrapped ErrSymbolicExecutionFailure)
// when it doesn't meet the clean-gadget shape.
func Classify(g gadget.Gadget, tag arch.Tag) (gadget.Gadget, error) {
	mapper, err := symexec.Execute(tag, g.Bytes)
	if err != nil {
		return gadget.Gadget{}, err
	}
	if len(mapper.Stores) > 0 {
		return gadget.Gadget{}, gadget.ErrClassifierReject
	}

	info := arch.Lookup(tag)
	out := g.Clone()
	out.Regs = map[string]gadget.RegEffect{}

	var spDelta int64
	var spSeen bool
	var ipDelta int64
	var ipSeen bool

	for _, name := range mapper.SortedRegs() {
		expr := mapper.Regs[name]
		lower := strings.ToLower(name)
		if strings.Contains(lower, "flags") || strings.Contains(lower, "apsr") {
			continue
		}
		switch name {
		case info.SPReg:
			base, off, ok := symexec.DisplacementOf(expr)
			if !ok || !soleBaseIsSelf(base, name) {
				return gadget.Gadget{}, gadget.ErrClassifierReject
			}
			spDelta, spSeen = off, true
			continue
		case info.IPReg:
			if expr.IsMemoryLoad() {
				_, off, ok := symexec.DisplacementOf(expr)
				if ok {
					ipDelta, ipSeen = off, true
				}
			} else if !expr.IsConst() {
				if _, off, ok := symexec.DisplacementOf(expr); ok {
					ipDelta, ipSeen = off, true
				}
			}
			continue
		}
		out.Regs[name] = toRegEffect(expr)
	}

	if !spSeen || !ipSeen || ipDelta != spDelta-int64(info.PointerWidth) {
		return gadget.Gadget{}, gadget.ErrClassifierReject
	}
	out.SPDelta = spDelta
	return out, nil
}

// soleBaseIsSelf guards against a stack-pointer expression that somehow
// depends on a register other than itself — that isn't a valid "sp moved
// by a constant" shape and must be rejected rather than misread.
func soleBaseIsSelf(base, name string) bool {
	return base == "" || base == name
}

func toRegEffect(expr symexec.Expr) gadget.RegEffect {
	switch {
	case expr.IsMemoryLoad():
		load := expr.LoadOf()
		locs := symexec.LocationsOf(expr)
		base := strings.Join(locs, "_")
		return gadget.LoadEffect(gadget.MemRef{Base: base, Disp: load.Addr.Const, WidthBits: uint16(load.WidthBits)})
	case expr.IsReg():
		return gadget.RegAliasEffect(expr.RegName())
	case expr.IsConst():
		return gadget.ConstEffect(uint64(expr.ConstValue()))
	default:
		return gadget.MultiRegEffect(symexec.LocationsOf(expr))
	}
}
