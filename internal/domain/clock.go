package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests and fixture generation can
// freeze the GeneratedAt stamps via SetClock. Production runs use real time.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source used for record stamps. Pass nil to reset
// to the real clock.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time from the active clock.
func Now() time.Time {
	return clock.Now()
}
