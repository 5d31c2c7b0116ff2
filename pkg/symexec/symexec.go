package symexec

import (
	"fmt"

	"github.com/ropsmith/ropgadget/pkg/arch"
)

// Execute is the capability spec.md §4.5 describes: given a gadget's raw
// bytes, produce the Mapper expressing every touched register (and any
// memory stores) in terms of the gadget's initial register values.
func Execute(tag arch.Tag, data []byte) (*Mapper, error) {
	switch tag {
	case arch.X86, arch.X64:
		return executeX86(tag, data)
	case arch.ARM:
		return executeARM(data)
	default:
		return nil, fmt.Errorf("symexec: unsupported architecture %v", tag)
	}
}
