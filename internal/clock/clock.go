package clock

import "time"

// Clock abstracts wall-clock reads so period math and the trial sweeper
// can be tested against a fixed time.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
