package cycle

import (
	"time"

	"github.com/couchcryptid/uhs-mrv-datagen/internal/domain"
)

// Frequency is the configured timestep cadence token.
type Frequency string

const (
	Weekly  Frequency = "weekly"
	Daily   Frequency = "daily"
	Monthly Frequency = "monthly"
)

// ParseFrequency validates a cadence token from configuration.
func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(s); f {
	case Weekly, Daily, Monthly:
		return f, nil
	default:
		return "", domain.Configf("global.frequency", "unrecognized frequency token %q (want weekly, daily, or monthly)", s)
	}
}

// StepsPerYear returns the number of timesteps one simulated year spans.
func (f Frequency) StepsPerYear() int {
	switch f {
	case Daily:
		return 365
	case Monthly:
		return 12
	default:
		return 52
	}
}

// step returns the i-th timestamp after start at this cadence.
func (f Frequency) step(start time.Time, i int) time.Time {
	switch f {
	case Daily:
		return start.AddDate(0, 0, i)
	case Monthly:
		return start.AddDate(0, i, 0)
	default:
		return start.AddDate(0, 0, 7*i)
	}
}

// NewTimeIndex builds the shared simulation horizon: years × StepsPerYear
// timestamps at the given cadence, starting at start. All facilities iterate
// the same index.
func NewTimeIndex(start time.Time, years int, freq Frequency) ([]time.Time, error) {
	if years <= 0 {
		return nil, domain.Configf("global.years", "horizon must be at least one year, got %d", years)
	}
	n := years * freq.StepsPerYear()
	index := make([]time.Time, n)
	for i := range index {
		index[i] = freq.step(start, i)
	}
	return index, nil
}
