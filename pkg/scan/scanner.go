package scan

import (
	"github.com/ropsmith/ropgadget/pkg/arch"
	"github.com/ropsmith/ropgadget/pkg/disasm"
	"github.com/ropsmith/ropgadget/pkg/gadget"
)

// DefaultDepth is spec.md §4.1's default backward window count.
const DefaultDepth = 10

// Scan walks data (one executable segment's bytes, already relocated so
// vaddr reflects the image's current mapped base) and emits every
// candidate gadget found by sliding each terminator pattern backward up
// to depth steps. Emission order is deterministic: pattern-table order,
// then match-offset order, then depth order (spec.md §5) — callers that
// need a stable view regardless should still go through gadget.Catalog.
func Scan(tag arch.Tag, data []byte, vaddr uint64, filterClass string, depth int) []gadget.Gadget {
	if depth <= 0 {
		depth = DefaultDepth
	}
	var out []gadget.Gadget
	for _, pat := range FilterPatterns(tag, filterClass) {
		if pat.Size > len(data) {
			continue
		}
		for r := 0; r+pat.Size <= len(data); r++ {
			if !pat.Match(data[r : r+pat.Size]) {
				continue
			}
			out = append(out, windowCandidates(tag, data, vaddr, r, pat, depth)...)
		}
	}
	return out
}

func windowCandidates(tag arch.Tag, data []byte, vaddr uint64, r int, pat Pattern, depth int) []gadget.Gadget {
	var out []gadget.Gadget
	end := r + pat.Size
	for i := 0; i < depth; i++ {
		start := r - i*pat.Align
		if start < 0 {
			break
		}
		v := vaddr + uint64(start)
		if v%uint64(pat.Align) != 0 {
			continue
		}
		window := data[start:end]
		insns, err := disasm.DecodeAll(tag, window, v)
		if err != nil || len(insns) == 0 {
			continue
		}
		if !disasm.PassClean(insns) {
			continue
		}
		out = append(out, gadget.Gadget{
			Address: v,
			Insns:   mnemonics(insns),
			Bytes:   append([]byte(nil), window...),
		})
	}
	return out
}

func mnemonics(insns []disasm.Insn) []string {
	out := make([]string, len(insns))
	for i, in := range insns {
		out[i] = in.Mnemonic
	}
	return out
}
