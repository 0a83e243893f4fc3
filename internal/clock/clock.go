// Package clock provides the injectable time source and the round clock that
// maps wall-clock time onto monotonically increasing round identifiers.
package clock

import (
	"sync"
	"time"
)

// Clock is the time source injected into everything that needs "now".
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns the wall-clock backed Clock.
func System() Clock {
	return systemClock{}
}

// Fixed is a settable clock for deterministic tests.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed returns a Fixed clock pinned at t.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t}
}

// Now returns the pinned time.
func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set pins the clock to t.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// RoundClock derives round identifiers from a Clock. A round is a fixed-width
// time window; round N covers [N*length, (N+1)*length).
type RoundClock struct {
	clock  Clock
	length time.Duration
}

// NewRoundClock returns a RoundClock with the given window length.
func NewRoundClock(c Clock, length time.Duration) *RoundClock {
	return &RoundClock{clock: c, length: length}
}

// Length returns the round window length.
func (r *RoundClock) Length() time.Duration {
	return r.length
}

// Now returns the current time from the underlying clock.
func (r *RoundClock) Now() time.Time {
	return r.clock.Now()
}

// CurrentRound returns the round identifier for the current time.
func (r *RoundClock) CurrentRound() int64 {
	return r.RoundAt(r.clock.Now())
}

// RoundAt returns the round identifier containing t.
func (r *RoundClock) RoundAt(t time.Time) int64 {
	return t.Unix() / int64(r.length/time.Second)
}

// RoundStart returns the inclusive start of the given round.
func (r *RoundClock) RoundStart(roundID int64) time.Time {
	return time.Unix(roundID*int64(r.length/time.Second), 0).UTC()
}

// RoundEnd returns the exclusive end of the given round.
func (r *RoundClock) RoundEnd(roundID int64) time.Time {
	return r.RoundStart(roundID + 1)
}
