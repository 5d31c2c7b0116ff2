package gadget

import "errors"

// Error kinds from spec.md §7. UnsupportedArchitecture lives in pkg/arch
// since it's raised there; the rest are raised by the stages that detect them.
var (
	// ErrImageLoadFailure: the argument passed to Finder was neither a
	// loader object nor a filesystem path. Fatal.
	ErrImageLoadFailure = errors.New("ropgadget: cannot load image")

	// ErrSymbolicExecutionFailure: the executor produced no mapper for a
	// candidate's bytes. Non-fatal — the gadget is dropped.
	ErrSymbolicExecutionFailure = errors.New("ropgadget: symbolic execution failed")

	// ErrClassifierReject: gadget violates an invariant (writes memory, or
	// ip_delta/sp_delta relation doesn't hold). Non-fatal — dropped.
	ErrClassifierReject = errors.New("ropgadget: gadget rejected by classifier")

	// ErrCacheCorrupted: the cache file didn't deserialize. Treated as a
	// miss; the caller re-scans and overwrites the cache.
	ErrCacheCorrupted = errors.New("ropgadget: cache file corrupted")
)
