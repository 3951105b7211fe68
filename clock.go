package evloop

import "time"

// Clock abstracts the monotonic millisecond clock the loop uses for timer
// arming and expiry (§3.1 expire_ms, §4.3 Phase 2 now_ms). Tests substitute
// a fake clock to assert drift-free cadence (§8) without real sleeps.
type Clock interface {
	// NowMS returns the current time as milliseconds on a monotonic scale.
	// Only differences between calls are meaningful.
	NowMS() int64
}

// realClock is the default Clock, backed by time.Now's monotonic reading.
type realClock struct{}

func (realClock) NowMS() int64 {
	return time.Now().UnixMilli()
}

// FakeClock is a manually-advanced Clock for deterministic tests.
type FakeClock struct {
	ms int64
}

// NewFakeClock returns a FakeClock starting at the given millisecond value.
func NewFakeClock(startMS int64) *FakeClock {
	return &FakeClock{ms: startMS}
}

func (c *FakeClock) NowMS() int64 {
	return c.ms
}

// Advance moves the fake clock forward by the given duration.
func (c *FakeClock) Advance(d time.Duration) {
	c.ms += d.Milliseconds()
}
