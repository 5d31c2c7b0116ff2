package scan

import (
	"regexp"

	"github.com/ropsmith/ropgadget/pkg/arch"
	"github.com/ropsmith/ropgadget/pkg/gadget"
)

// BigBinaryThreshold is spec.md §4.4 / SPEC_FULL.md §5: the source compares
// raw file size against 100*1000; this toolkit uses the KiB reading.
const BigBinaryThreshold = 100 * 1024

var allowList = []*regexp.Regexp{
	regexp.MustCompile(`^pop (.{3})`),
	regexp.MustCompile(`^add .sp, (\S+)$`),
	regexp.MustCompile(`^ret$`),
	regexp.MustCompile(`^leave$`),
	regexp.MustCompile(`^mov (.{3}), (.{3})`),
	regexp.MustCompile(`^xchg (.{3}), (.{3})`),
	regexp.MustCompile(`int +0x80`),
	regexp.MustCompile(`^syscall$`),
	regexp.MustCompile(`^sysenter$`),
}

// FilterBigBinary applies spec.md §4.4's pragmatic pruner: when tag is
// x86/x64 and imageSize is at least BigBinaryThreshold, only gadgets whose
// every instruction matches the allow-list survive. ARM and small images
// pass through untouched.
func FilterBigBinary(tag arch.Tag, imageSize int, gadgets []gadget.Gadget) []gadget.Gadget {
	if tag == arch.ARM || imageSize < BigBinaryThreshold {
		return gadgets
	}
	out := gadgets[:0:0]
	for _, g := range gadgets {
		if everyInsnAllowed(g.Insns) {
			out = append(out, g)
		}
	}
	return out
}

func everyInsnAllowed(insns []string) bool {
	for _, in := range insns {
		ok := false
		for _, re := range allowList {
			if re.MatchString(in) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}
