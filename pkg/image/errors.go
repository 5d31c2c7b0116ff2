package image

import "errors"

// ErrLoadFailure is spec.md §7's ImageLoadFailure: the argument passed in
// wasn't a loader object or a readable filesystem path. Fatal.
var ErrLoadFailure = errors.New("ropgadget: image load failure")
