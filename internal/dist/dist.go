// Package dist provides configuration-driven scalar distributions. Every
// random draw in the generator goes through a Spec sampled with an explicit
// per-facility generator, never a process-wide one, so runs stay
// reproducible regardless of facility ordering or parallelism.
package dist

import (
	"math"
	"math/rand/v2"

	"github.com/couchcryptid/uhs-mrv-datagen/internal/domain"
)

// Kind selects the sampling law of a Spec.
type Kind string

const (
	Uniform   Kind = "uniform"
	Normal    Kind = "normal"
	Lognormal Kind = "lognormal"
)

// Spec describes one configured distribution. Min/Max bound every kind;
// Mean/Sigma apply to normal and lognormal draws.
type Spec struct {
	Kind  Kind    `yaml:"distribution"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	Mean  float64 `yaml:"mean"`
	Sigma float64 `yaml:"sigma"`
}

// Validate checks the spec's internal consistency. field names the YAML
// path for error reporting.
func (s Spec) Validate(field string) error {
	switch s.Kind {
	case Uniform, Normal, Lognormal:
	default:
		return domain.Configf(field, "unknown distribution kind %q", string(s.Kind))
	}
	if s.Min > s.Max {
		return domain.Configf(field, "min %g exceeds max %g", s.Min, s.Max)
	}
	if s.Sigma < 0 {
		return domain.Configf(field, "sigma must be non-negative, got %g", s.Sigma)
	}
	if s.Kind == Lognormal && s.Mean <= 0 {
		return domain.Configf(field, "lognormal mean must be positive, got %g", s.Mean)
	}
	return nil
}

// ValidateNonNegative is Validate plus a lower bound of zero, used for
// sections where negative draws are physically meaningless (loss fractions,
// masses, purity bands).
func (s Spec) ValidateNonNegative(field string) error {
	if err := s.Validate(field); err != nil {
		return err
	}
	if s.Min < 0 {
		return domain.Configf(field, "min must be non-negative, got %g", s.Min)
	}
	return nil
}

// Sample draws one value from the spec. Normal and lognormal draws are
// clipped into [Min, Max]; uniform draws land there by construction.
// Callers must Validate the spec first.
func (s Spec) Sample(rng *rand.Rand) float64 {
	switch s.Kind {
	case Uniform:
		return s.Min + rng.Float64()*(s.Max-s.Min)
	case Normal:
		return clip(s.Mean+s.Sigma*rng.NormFloat64(), s.Min, s.Max)
	case Lognormal:
		return clip(math.Exp(math.Log(s.Mean)+s.Sigma*rng.NormFloat64()), s.Min, s.Max)
	default:
		// Unreachable after Validate.
		return s.Min
	}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
