package signaling

import "time"

// Clock is the monotonic clock the core depends on instead of calling
// time.Now directly. Tests that need deterministic CreatedAt/log
// timestamps can supply a fake; production wiring uses RealClock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock is the production Clock backed by time.Now.
var RealClock Clock = realClock{}
