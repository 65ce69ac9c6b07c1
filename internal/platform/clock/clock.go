// Package clock provides the real-time implementation of ports.Clock.
package clock

import (
	"time"

	"github.com/codearena/core/internal/ports"
)

// Real is the production ports.Clock, backed directly by the time package.
type Real struct{}

// New returns the real-time clock.
func New() Real { return Real{} }

func (Real) Now() time.Time { return time.Now() }

func (Real) AfterFunc(d time.Duration, f func()) ports.Timer {
	return timerWrapper{t: time.AfterFunc(d, f)}
}

type timerWrapper struct {
	t *time.Timer
}

func (w timerWrapper) Stop() bool { return w.t.Stop() }
