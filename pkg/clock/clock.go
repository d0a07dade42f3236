// Package clock provides the process-wide wall clock. Production code uses
// the real one; tests substitute a mock via Set (or inject one directly
// where a component accepts a Clock).
package clock

import (
	"github.com/benbjohnson/clock"
)

var globalClock clock.Clock = clock.New()

func Get() clock.Clock {
	return globalClock
}

func Set(clk clock.Clock) {
	globalClock = clk
}

type Clock = clock.Clock
type Timer = clock.Timer
type Mock = clock.Mock

func New() clock.Clock {
	return clock.New()
}

func NewMock() *Mock {
	return clock.NewMock()
}
