package subpub

import "errors"

// ErrClosed is returned by requests that need a reply from a broker whose
// control loop has already exited.
var ErrClosed = errors.New("subpub: broker closed")
