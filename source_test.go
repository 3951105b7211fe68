package evloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFDSource(t *testing.T) {
	s := NewFDSource(func(any, EventMask) bool { return true }, "data", 7, EventRead|EventWrite, 50*time.Millisecond)
	assert.Equal(t, 7, s.FD())
	assert.Equal(t, EventRead|EventWrite, s.Events())
	assert.EqualValues(t, 50, s.timeoutMS)
	assert.False(t, s.Linked())
}

func TestNewTimerSource(t *testing.T) {
	s := NewTimerSource(func(any, EventMask) bool { return true }, nil, 10*time.Millisecond)
	assert.Equal(t, NoFD, s.FD())
	assert.Zero(t, s.Events())
}

// TestSourceIDsUniqueAndMonotonic covers I5: id is unique and positive
// across all sources created in a process.
func TestSourceIDsUniqueAndMonotonic(t *testing.T) {
	a := NewTimerSource(nil, nil, 0)
	b := NewTimerSource(nil, nil, 0)
	require.NotZero(t, a.ID())
	require.NotZero(t, b.ID())
	assert.Less(t, a.ID(), b.ID())
}

// TestSourceDestroyWhileLinkedIsFatal covers I2/§8 scenario 6: destroying a
// linked source is a programming error and panics.
func TestSourceDestroyWhileLinkedIsFatal(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	defer l.Close()

	s := NewTimerSource(func(any, EventMask) bool { return true }, nil, time.Hour)
	require.NoError(t, l.Add(s))

	assert.Panics(t, func() {
		s.Destroy()
	})
}

// TestSourceDestroyWhenUnlinked is the non-fatal path: a free-standing
// source may be destroyed freely.
func TestSourceDestroyWhenUnlinked(t *testing.T) {
	s := NewTimerSource(func(any, EventMask) bool { return true }, nil, time.Second)
	assert.NotPanics(t, func() {
		s.Destroy()
	})
}
