// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package evloop

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	logger         Logger
	clock          Clock
	pollBufferHint int
	metricsEnabled bool
}

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions)
}

// loopOptionFunc implements LoopOption.
type loopOptionFunc func(*loopOptions)

func (f loopOptionFunc) applyLoop(opts *loopOptions) { f(opts) }

// WithLogger injects a Logger, so the owning SIP stack can route the loop's
// diagnostics (§7) through its own structured logger instead of the
// zero-configuration stderr default.
func WithLogger(log Logger) LoopOption {
	return loopOptionFunc(func(opts *loopOptions) {
		if log != nil {
			opts.logger = log
		}
	})
}

// WithClock injects a Clock, overriding the real monotonic clock. Intended
// for deterministic tests of timer cadence (§8's drift-free cadence
// property) without sleeping real wall-clock time.
func WithClock(clock Clock) LoopOption {
	return loopOptionFunc(func(opts *loopOptions) {
		if clock != nil {
			opts.clock = clock
		}
	})
}

// WithPollBufferHint sets the initial capacity of the scratch descriptor
// table (§4.3 Phase 1), avoiding a reallocation on the first few iterations
// for loops expected to carry many fd-sources.
func WithPollBufferHint(n int) LoopOption {
	return loopOptionFunc(func(opts *loopOptions) {
		if n > 0 {
			opts.pollBufferHint = n
		}
	})
}

// WithMetrics enables the Loop's runtime counters (iterations, dispatches,
// timer firings, poll errors), retrievable via Loop.Metrics.
func WithMetrics(enabled bool) LoopOption {
	return loopOptionFunc(func(opts *loopOptions) {
		opts.metricsEnabled = enabled
	})
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) *loopOptions {
	cfg := &loopOptions{
		logger:         packageLogger(),
		clock:          realClock{},
		pollBufferHint: 8,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyLoop(cfg)
	}
	return cfg
}
