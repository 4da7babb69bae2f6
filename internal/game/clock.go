// internal/game/clock.go
//
// Time source used by the controller. Production code runs on the wall
// clock; tests drive a ManualClock so every countdown and timeout is
// deterministic.

package game

import "time"

// Clock schedules callbacks and reports the current time.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f on its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending callback scheduled by a Clock.
type Timer interface {
	// Stop prevents the callback from firing. It reports false if the
	// timer already fired or was stopped.
	Stop() bool
}

type wallClock struct{}

// WallClock returns a Clock backed by the time package.
func WallClock() Clock { return wallClock{} }

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
