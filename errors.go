package evloop

import "errors"

// Standard errors returned by the loop's public operations.
//
// Programming errors (I1, I2 in spec terms — linking an already-linked
// source, destroying a linked source) are not representable as returned
// errors: per §7 case 1 they have no recovery path, so they panic after
// being logged at the facade's panic level (see logFatal in logging.go).
// Driving the loop from a non-owner goroutine (L3) is not detected: nothing
// checks which goroutine calls Iterate or Run. These vars cover the one
// recoverable case in the taxonomy: operating on a loop that has already
// been closed.
var (
	// ErrLoopClosed is returned when Add, Iterate, Run, or AddTimeout is
	// attempted against a Loop after Close has completed.
	ErrLoopClosed = errors.New("evloop: loop is closed")
)
