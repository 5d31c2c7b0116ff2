// Package scan implements the Scanner (spec.md §4.1): a backward sliding
// window over raw segment bytes anchored on fixed terminator byte
// patterns, producing unclassified candidate gadgets.
package scan

import "github.com/ropsmith/ropgadget/pkg/arch"

// Pattern is one terminator byte pattern from spec.md §4.1's table. Match
// is called with a window of exactly Size bytes starting at the offset
// the pattern was found.
type Pattern struct {
	Name  string
	Class string
	Size  int
	Align int
	Match func(w []byte) bool
}

func inRangeExcept(b byte, lo, hi byte, except ...byte) bool {
	if b < lo || b > hi {
		return false
	}
	for _, e := range except {
		if b == e {
			return false
		}
	}
	return true
}

var x86Patterns = []Pattern{
	{Name: "ret", Class: "ret", Size: 1, Align: 1, Match: func(w []byte) bool {
		return w[0] == 0xC3
	}},
	{Name: "ret imm16", Class: "ret", Size: 3, Align: 1, Match: func(w []byte) bool {
		return w[0] == 0xC2
	}},
	{Name: "jmp [reg]", Class: "jmp", Size: 2, Align: 1, Match: func(w []byte) bool {
		return w[0] == 0xFF && inRangeExcept(w[1], 0x20, 0x27, 0x24, 0x25)
	}},
	{Name: "jmp reg", Class: "jmp", Size: 2, Align: 1, Match: func(w []byte) bool {
		return w[0] == 0xFF && inRangeExcept(w[1], 0xE0, 0xE7, 0xE5)
	}},
	{Name: "call [reg]", Class: "call", Size: 2, Align: 1, Match: func(w []byte) bool {
		return w[0] == 0xFF && inRangeExcept(w[1], 0x10, 0x17, 0x14, 0x15)
	}},
	{Name: "call reg", Class: "call", Size: 2, Align: 1, Match: func(w []byte) bool {
		return w[0] == 0xFF && inRangeExcept(w[1], 0xD0, 0xD7, 0xD5)
	}},
	{Name: "int 0x80", Class: "int", Size: 2, Align: 1, Match: func(w []byte) bool {
		return w[0] == 0xCD && w[1] == 0x80
	}},
	{Name: "sysenter", Class: "sysenter", Size: 2, Align: 1, Match: func(w []byte) bool {
		return w[0] == 0x0F && w[1] == 0x34
	}},
	{Name: "syscall", Class: "syscall", Size: 2, Align: 1, Match: func(w []byte) bool {
		return w[0] == 0x0F && w[1] == 0x05
	}},
}

// armPatterns uses the corrected svc pattern (SPEC_FULL.md §5): the
// source regex `"\x00-\xff]{3}\xef"` is malformed; the intended pattern
// is any 3 bytes followed by 0xEF.
var armPatterns = []Pattern{
	{Name: "pop {...,pc}", Class: "ret", Size: 4, Align: 4, Match: func(w []byte) bool {
		return w[1] == 0x80 && w[2] == 0xBD && w[3] == 0xE8
	}},
	{Name: "svc", Class: "svc", Size: 4, Align: 4, Match: func(w []byte) bool {
		return w[3] == 0xEF
	}},
}

// PatternsForArch returns the full terminator table for tag.
func PatternsForArch(tag arch.Tag) []Pattern {
	if tag == arch.ARM {
		return armPatterns
	}
	return x86Patterns
}

// FilterPatterns narrows PatternsForArch(tag) to one filter class. "" and
// "all" mean every pattern for the architecture.
func FilterPatterns(tag arch.Tag, class string) []Pattern {
	all := PatternsForArch(tag)
	if class == "" || class == "all" {
		return all
	}
	var out []Pattern
	for _, p := range all {
		if p.Class == class {
			out = append(out, p)
		}
	}
	return out
}
