// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package evloop

import "sync/atomic"

// Metrics tracks low-overhead runtime counters for a Loop, enabled via
// WithMetrics (§13 ambient stack). All fields are updated only from the
// loop's owner thread during Iterate (L3), so plain atomics are used for the
// benefit of readers on other goroutines rather than for writer safety.
type Metrics struct {
	iterations atomic.Uint64
	dispatches atomic.Uint64
	timerFires atomic.Uint64
	pollErrors atomic.Uint64
}

// Iterations returns the number of completed Iterate calls.
func (m *Metrics) Iterations() uint64 { return m.iterations.Load() }

// Dispatches returns the number of source callbacks invoked.
func (m *Metrics) Dispatches() uint64 { return m.dispatches.Load() }

// TimerFires returns the number of dispatches caused purely by timer expiry
// (revents == ∅), a subset of Dispatches.
func (m *Metrics) TimerFires() uint64 { return m.timerFires.Load() }

// PollErrors returns the number of iterations abandoned due to an
// unexpected poll failure (§7 case 3).
func (m *Metrics) PollErrors() uint64 { return m.pollErrors.Load() }
