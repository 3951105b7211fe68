// Package evloop provides the single-threaded main loop at the heart of a
// SIP (RFC3261) protocol stack: a reactor multiplexing file descriptor
// readiness and timer expiry onto user callbacks, so that transactions,
// dialogs, transport, and authentication retries advance cooperatively
// without blocking the stack.
//
// # Architecture
//
// A [Loop] owns an ordered collection of [Source] values. Each Source wraps
// an optional file descriptor interest (read/write/error), an optional
// periodic timer, a user callback, and opaque user data. [Loop.Iterate]
// performs one pass: build a scratch readiness table, compute how long to
// block, call the OS readiness primitive, then dispatch every source that
// became ready or whose timer expired, in insertion order.
//
// [Loop.Run] iterates until [Loop.Quit] is called. [Loop.Quit] is the one
// operation safe to call from any goroutine: it sets the stop flag and
// writes a single byte to an internal wake-up pipe, unblocking any in-flight
// poll. All other Loop methods must only be called from the loop's owner
// goroutine.
//
// # Platform support
//
// Readiness polling uses POSIX poll(2) via golang.org/x/sys/unix, supported
// on linux, darwin, freebsd, netbsd, openbsd, and dragonfly. The spec's
// Phase 1 rebuilds the descriptor table from scratch on every iteration,
// which is the natural shape of poll(2) rather than a persistent
// registration model such as epoll or kqueue.
//
// # Thread safety
//
// The loop is single-owner-thread: [Loop.Add], [Loop.Remove],
// [Loop.Iterate], [Loop.Run], and [Loop.AddTimeout] must be called only from
// the owning goroutine. [Loop.Quit] is the sole cross-thread-safe operation.
// A non-owning goroutine that needs work done enqueues that intent through
// its own channel and calls Quit (or otherwise wakes the owner) so the
// owner observes it promptly.
//
// # Usage
//
//	loop, err := evloop.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer loop.Close()
//
//	count := 0
//	id, _ := loop.AddTimeout(func(any, evloop.EventMask) bool {
//	    count++
//	    return true
//	}, nil, 50)
//	_ = id
//
//	if err := loop.Sleep(220); err != nil {
//	    log.Fatal(err)
//	}
//
// # Error handling
//
// Programming errors (linking an already-linked source, destroying a linked
// source) are fatal: logged at the panic level, then panicking, since they
// indicate an invariant violation with no recovery path. [Loop.Add] logs
// through the Loop's configured [Logger]; [Source.Destroy] has no Loop to
// hand and logs through the package's default stderr logger. Residual
// sources at [Loop.Close] are not fatal: Close logs them at error level and
// completes the teardown. Calls from a goroutine other than the owner are
// not detected. Transient poll interruptions are
// swallowed silently. Unexpected poll failures are logged at error level and
// the current iteration is abandoned; the loop keeps running.
package evloop
