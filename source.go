package evloop

import (
	"container/list"
	"sync/atomic"
	"time"
)

// EventMask is an abstract bitset over {READ, WRITE, ERROR} (§3.1 events,
// §4.3's interest/revents mask). It is translated to and from the host
// poll(2) flags in poll_unix.go.
type EventMask uint8

const (
	// EventRead indicates readiness to read, or (as a revents bit) that the
	// source's fd became readable.
	EventRead EventMask = 1 << iota
	// EventWrite indicates readiness to write, or that the fd became
	// writable.
	EventWrite
	// EventError indicates an error condition on the fd.
	EventError
)

// NoFD is the sentinel fd value meaning "this source is a pure timer"
// (§3.1: "the sentinel 'none'"; I3).
const NoFD = -1

// NotifyFunc is a source's callback. It returns true to keep the source
// registered ("keep me") or false to request removal ("drop me") — the
// sole self-removal channel per §9 "Callback return convention".
type NotifyFunc func(data any, revents EventMask) bool

// RemoveFunc is a source's optional finaliser, invoked exactly once when the
// source leaves a loop (§3.1 on_remove, §4.2 remove).
type RemoveFunc func(s *Source)

// nextSourceID is the process-wide monotonic source ID counter (I5). It
// starts at 1, as the original belle_sip_fd_source_init's
// `static unsigned long global_id=1` does, keeping 0 free as a "no ID"
// sentinel for the zero-value Source.
var nextSourceID atomic.Uint64

// Source is a unified handle for an fd-readiness subscription, a periodic
// timer, or both, plus the user callback that fires on readiness or expiry
// (§3.1). A Source is either unlinked (free-standing) or linked into
// exactly one Loop at a time (I1); membership is tracked externally by the
// Loop via the elem field, per the design note in §9 preferring an external
// container over the original's intrusive list pointers.
type Source struct {
	id        uint64
	fd        int
	events    EventMask
	timeoutMS int64 // 0 means "no timer" (I3/I4)
	expireMS  int64 // meaningful iff timeoutMS > 0 (I4)

	notify   NotifyFunc
	data     any
	onRemove RemoveFunc

	// index is scratch state, valid only within a single Loop.Iterate call
	// (§3.1 "transient").
	index int

	// loop and elem together record membership (I1): elem is non-nil iff
	// the source is linked into loop. Using an external container (the
	// Loop's container/list.List) rather than intrusive node pointers is
	// the design note in §9's preferred replacement for the original's
	// belle_sip_list linkage.
	loop *Loop
	elem *list.Element
}

// NewFDSource constructs a free-standing source wrapping an fd readiness
// subscription, optionally combined with a periodic timer (§4.1). timeout
// of 0 disables the timer; a positive timeout rearms every period once
// added to a loop (§3.1 timeout_ms).
func NewFDSource(notify NotifyFunc, data any, fd int, events EventMask, timeout time.Duration) *Source {
	return &Source{
		id:        nextSourceID.Add(1),
		fd:        fd,
		events:    events,
		timeoutMS: timeout.Milliseconds(),
		notify:    notify,
		data:      data,
	}
}

// NewTimerSource constructs a free-standing pure-timer source: fd is NoFD
// and the interest mask is empty (§4.1 "Equivalent to fd-source with
// fd = none, events = ∅").
func NewTimerSource(notify NotifyFunc, data any, timeout time.Duration) *Source {
	return NewFDSource(notify, data, NoFD, 0, timeout)
}

// ID returns the source's process-wide unique identity (I5).
func (s *Source) ID() uint64 { return s.id }

// FD returns the source's file descriptor, or NoFD if it is a pure timer.
func (s *Source) FD() int { return s.fd }

// Events returns the source's interest mask.
func (s *Source) Events() EventMask { return s.events }

// Linked reports whether the source currently belongs to a loop (I1).
func (s *Source) Linked() bool {
	return s.elem != nil
}

// Destroy frees the source. Destroying a source that is still linked into
// a loop is a programming error (I2) and is fatal: it is logged at the
// facade's panic level and panics, matching belle_sip_source_destroy's
// "Destroying source currently used in main loop !" contract. Ownership of
// anything referenced via data is the caller's (or the on_remove
// finaliser's) responsibility; Destroy itself only clears the source.
func (s *Source) Destroy() {
	if s.Linked() {
		logFatal(packageLogger(), "evloop: destroying source currently used in main loop", "source_id", s.id)
	}
	s.notify = nil
	s.data = nil
	s.onRemove = nil
}
