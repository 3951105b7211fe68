// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package evloop

import (
	"container/list"
	"errors"
	"sync/atomic"
	"time"
)

// Loop owns a collection of sources, runs the iterate/run/quit cycle,
// performs the readiness poll, computes timeouts, dispatches callbacks, and
// enforces the lifecycle invariants of §3.2/§4.
//
// A Loop is single-owner-thread (L3): Iterate and Run must only ever be
// called from the goroutine that constructed the Loop, never concurrently
// with each other or with Add/Remove. Quit's byte write is the sole
// cross-thread-safe operation (§5 "Cross-thread interaction").
type Loop struct {
	sources  *list.List // Value is *Source; L1/L2
	nsources int

	run    atomic.Bool // written by Quit from any goroutine
	closed bool

	controlRD, controlWR int
	controlSource         *Source

	scratch []pollDescriptor // Phase 1 scratch table, reused across iterations (§9)

	log   Logger
	clock Clock

	metrics *Metrics
}

// New constructs a Loop with its wake-up channel armed (§4.5 loop_new).
//
// The control source (wrapping the pipe's read end) is added immediately,
// permanently linked for the Loop's lifetime (L2).
func New(opts ...LoopOption) (*Loop, error) {
	cfg := resolveLoopOptions(opts)

	rd, wr, err := newWakeupPipe()
	if err != nil {
		return nil, err
	}

	l := &Loop{
		sources:   list.New(),
		controlRD: rd,
		controlWR: wr,
		log:       cfg.logger,
		clock:     cfg.clock,
		scratch:   make([]pollDescriptor, 0, cfg.pollBufferHint),
	}
	if cfg.metricsEnabled {
		l.metrics = &Metrics{}
	}

	l.controlSource = NewFDSource(l.drainControl, nil, l.controlRD, EventRead, 0)
	l.add(l.controlSource)

	return l, nil
}

// drainControl is the control source's callback (§4.4, §9 "Wake-up channel
// drain"). It loop-drains the wake-up pipe until it would block, so bursts
// of Quit calls never accumulate bytes, then always returns "keep me": the
// control source is permanently linked (L2).
func (l *Loop) drainControl(_ any, _ EventMask) bool {
	drainWakeupPipe(l.controlRD)
	return true
}

// Add links source into the loop (§4.2 add). It is fatal (I1) if source is
// already linked into any loop.
func (l *Loop) Add(source *Source) error {
	if l.closed {
		return ErrLoopClosed
	}
	if source.Linked() {
		logFatal(l.log, "evloop: source already linked into a loop", "source_id", source.id)
	}
	l.add(source)
	return nil
}

// add performs the unconditional link step shared by Add and New's control
// source registration.
func (l *Loop) add(source *Source) {
	if source.timeoutMS > 0 {
		source.expireMS = l.clock.NowMS() + source.timeoutMS
	}
	source.loop = l
	source.elem = l.sources.PushBack(source)
	l.nsources++
}

// Remove unlinks source from the loop and invokes its finaliser, if any,
// exactly once (§4.2 remove). It does not free the source; the finaliser
// decides. Removing a source that is not linked into this loop is a no-op.
func (l *Loop) Remove(source *Source) {
	if source.loop != l || source.elem == nil {
		return
	}
	l.sources.Remove(source.elem)
	l.nsources--
	source.loop = nil
	source.elem = nil
	if source.onRemove != nil {
		onRemove := source.onRemove
		source.onRemove = nil
		onRemove(source)
	}
}

// AddTimeout creates a timer-source whose finaliser is Destroy, adds it, and
// returns its id (§4.2 add_timeout). This is the canonical fire-and-forget
// timer pattern.
func (l *Loop) AddTimeout(notify NotifyFunc, data any, timeoutMS int64) (uint64, error) {
	if l.closed {
		return 0, ErrLoopClosed
	}
	s := NewTimerSource(notify, data, time.Duration(timeoutMS)*time.Millisecond)
	s.onRemove = func(s *Source) { s.Destroy() }
	l.add(s)
	return s.id, nil
}

// NSources returns the cached cardinality of the loop's source collection
// (§3.2 nsources, invariant L1).
func (l *Loop) NSources() int { return l.nsources }

// Metrics returns the loop's runtime counters, or nil if WithMetrics(true)
// was not supplied at construction.
func (l *Loop) Metrics() *Metrics { return l.metrics }

// Iterate executes one iteration of Phase 1-4 (§4.3): building the scratch
// descriptor table, computing the poll duration, blocking in the OS
// readiness primitive, and harvesting + dispatching due sources.
func (l *Loop) Iterate() error {
	if l.closed {
		return ErrLoopClosed
	}

	// Phase 1 — Prepare.
	l.scratch = l.scratch[:0]
	var minExpire int64
	haveTimer := false

	for e := l.sources.Front(); e != nil; e = e.Next() {
		s := e.Value.(*Source)
		if s.fd != NoFD {
			s.index = len(l.scratch)
			l.scratch = append(l.scratch, pollDescriptor{fd: s.fd, events: s.events})
		} else {
			s.index = -1
		}
		if s.timeoutMS > 0 {
			if !haveTimer || s.expireMS < minExpire {
				minExpire = s.expireMS
				haveTimer = true
			}
		}
	}

	// Phase 2 — Compute poll duration.
	var timeoutMS int64 = -1 // infinite
	if haveTimer {
		d := minExpire - l.clock.NowMS()
		if d < 0 {
			d = 0
		}
		timeoutMS = d
	}

	// Phase 3 — Block.
	err := doPoll(l.scratch, timeoutMS)
	if l.metrics != nil {
		l.metrics.iterations.Add(1)
	}
	if err != nil {
		if errors.Is(err, errPollInterrupted) {
			// Benign: treat as a no-event iteration (§7 case 2).
			return nil
		}
		if l.metrics != nil {
			l.metrics.pollErrors.Add(1)
		}
		logPollError(l.log, err)
		return nil
	}

	// Phase 4 — Harvest and dispatch.
	now := l.clock.NowMS()
	var next *list.Element
	for e := l.sources.Front(); e != nil; e = next {
		next = e.Next()
		s := e.Value.(*Source)

		var revents EventMask
		if s.fd != NoFD && s.index >= 0 && s.index < len(l.scratch) {
			revents = l.scratch[s.index].revents
		}

		timerDue := s.timeoutMS > 0 && now >= s.expireMS
		if revents == 0 && !timerDue {
			continue
		}

		if l.metrics != nil {
			l.metrics.dispatches.Add(1)
			if timerDue && revents == 0 {
				l.metrics.timerFires.Add(1)
			}
		}

		keepMe := s.notify(s.data, revents)
		if !keepMe {
			l.Remove(s)
			continue
		}
		// §4.3 final bullet, §9 "Simultaneous I/O + timer fire": only rearm
		// when the dispatch was purely a timer firing. If revents != 0 in
		// the same iteration the timer expired, I/O takes precedence and
		// the timer is left pinned; it is observed expired next iteration.
		if revents == 0 && timerDue {
			s.expireMS += s.timeoutMS
		}
	}

	return nil
}

// Run drives the loop until Quit is called (§4.4 run). It never returns
// while run is true.
func (l *Loop) Run() error {
	if l.closed {
		return ErrLoopClosed
	}
	l.run.Store(true)
	for l.run.Load() {
		if err := l.Iterate(); err != nil {
			return err
		}
	}
	return nil
}

// Quit requests shutdown: sets run=false and writes a single byte to the
// wake-up channel, unblocking any in-flight poll (§4.4 quit). Safe to call
// from any goroutine, including the loop's own callbacks and other threads
// (§5 "Cross-thread interaction").
func (l *Loop) Quit() {
	l.run.Store(false)
	wakeupWrite(l.controlWR)
}

// Sleep runs the loop for at most timeoutMS: it registers a one-shot timer
// whose callback calls Quit, then calls Run (§4.4 sleep). Returns once the
// timer fires (or something else calls Quit sooner).
func (l *Loop) Sleep(timeoutMS int64) error {
	if l.closed {
		return ErrLoopClosed
	}
	if _, err := l.AddTimeout(func(any, EventMask) bool {
		l.Quit()
		return false
	}, nil, timeoutMS); err != nil {
		return err
	}
	return l.Run()
}

// Close tears the loop down (§4.5 loop_destroy): removes and destroys the
// control source, closes both wake-up channel endpoints. It is the caller's
// responsibility to have removed and destroyed every other source first;
// any residual source indicates a programming error in the stack above and
// is reported rather than silently ignored.
func (l *Loop) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true

	l.Remove(l.controlSource)
	l.controlSource.Destroy()

	if l.nsources != 0 {
		l.log.Err().Err(ErrLoopClosed).Int("residual_sources", l.nsources).Log("evloop: loop closed with residual sources still linked")
	}

	return closeWakeupPipe(l.controlRD, l.controlWR)
}
