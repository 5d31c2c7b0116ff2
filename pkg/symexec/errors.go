package symexec

import (
	"fmt"

	"github.com/ropsmith/ropgadget/pkg/gadget"
)

// unsupported wraps gadget.ErrSymbolicExecutionFailure for an instruction
// form this executor doesn't model. The Classifier treats this as an
// ordinary rejection, not a fatal error.
func unsupported(mnemonic string) error {
	return fmt.Errorf("%w: unsupported instruction %q", gadget.ErrSymbolicExecutionFailure, mnemonic)
}
