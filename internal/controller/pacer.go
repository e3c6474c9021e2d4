// internal/controller/pacer.go
package controller

import (
	"fmt"
	"runtime"
	"time"
)

// Pacing strategies
const (
	PacingBusy  = "busy"
	PacingSleep = "sleep"
)

// Pacer holds a loop iteration until period has elapsed since start
type Pacer interface {
	Wait(start time.Time, period time.Duration)
}

// BusyWait spins on the monotonic clock. It gives the lowest jitter and
// keeps one core fully busy per loop.
type BusyWait struct{}

// Wait spins until the period is over
func (BusyWait) Wait(start time.Time, period time.Duration) {
	for time.Since(start) < period {
	}
}

// SleepWait hands the remainder of the period back to the scheduler
type SleepWait struct{}

// Wait sleeps for what is left of the period
func (SleepWait) Wait(start time.Time, period time.Duration) {
	if remaining := period - time.Since(start); remaining > 0 {
		time.Sleep(remaining)
		return
	}
	runtime.Gosched()
}

// NewPacer returns the pacer for a strategy name
func NewPacer(strategy string) (Pacer, error) {
	switch strategy {
	case PacingBusy, "":
		return BusyWait{}, nil
	case PacingSleep:
		return SleepWait{}, nil
	default:
		return nil, fmt.Errorf("unknown pacing strategy: %q", strategy)
	}
}
