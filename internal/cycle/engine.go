// Package cycle drives the operational rhythm of a facility: the shared
// timestep index, the three-mode cycle state machine, the bounded
// cycle-fraction random walk, and the per-step mass allocation with its
// hard per-cycle throughput cap.
package cycle

import (
	"math/rand/v2"

	"github.com/couchcryptid/uhs-mrv-datagen/internal/dist"
	"github.com/couchcryptid/uhs-mrv-datagen/internal/domain"
)

// Cycle fraction bounds: every cycle targets between 10% and 90% of
// capacity regardless of how the random walk wanders.
const (
	FractionMin = 0.10
	FractionMax = 0.90
)

// transitionTable holds the mode-to-mode probabilities of the regular
// (non-jump) random walk, row = current mode, column = next mode, ordered
// injection_heavy, balanced, withdrawal_heavy. The walk stays or moves to
// the adjacent mode; the two heavy modes are not adjacent to each other.
var transitionTable = [3][3]float64{
	{0.65, 0.35, 0.00}, // injection_heavy
	{0.20, 0.60, 0.20}, // balanced
	{0.00, 0.35, 0.65}, // withdrawal_heavy
}

// Params configures the cycle engine. All fields come from the cycling
// section of the settings file.
type Params struct {
	// StepsPerCycle is the fixed cycle length in timesteps.
	StepsPerCycle int

	// JumpProbability is the chance of an abrupt jump to a uniformly
	// random mode instead of the adjacent-mode walk, typically 0.05-0.10.
	JumpProbability float64

	// FractionStep is the ramping distribution for the cycle-fraction
	// random walk, e.g. a zero-mean normal.
	FractionStep dist.Spec

	// IntensityBias shifts the fraction walk per mode: the heavy modes
	// push intensity up, balanced relaxes it.
	IntensityBias float64

	// MaxCycleCapFraction caps cumulative injected and (independently)
	// withdrawn mass per cycle as a fraction of capacity; 0.25 per the
	// dataset definition.
	MaxCycleCapFraction float64

	// SecondaryFlow scales the non-dominant direction of a heavy cycle
	// relative to the dominant target, e.g. uniform over [0.1, 0.6].
	SecondaryFlow dist.Spec

	// BalancedJitter is the ± relative skew between injection and
	// withdrawal in a balanced cycle.
	BalancedJitter float64

	// ModeMix weights the initial random mode choice, ordered
	// injection_heavy, balanced, withdrawal_heavy.
	ModeMix [3]float64
}

// Engine implements the cycle-boundary decisions. It is stateless; all
// evolving state lives in the caller's simulation loop.
type Engine struct {
	p Params
}

// NewEngine validates the parameters and builds an engine.
func NewEngine(p Params) (*Engine, error) {
	if p.StepsPerCycle < 1 {
		return nil, domain.Configf("cycling.steps_per_cycle", "must be at least 1, got %d", p.StepsPerCycle)
	}
	if p.JumpProbability < 0 || p.JumpProbability > 1 {
		return nil, domain.Configf("cycling.jump_probability", "must be in [0, 1], got %g", p.JumpProbability)
	}
	if p.MaxCycleCapFraction <= 0 || p.MaxCycleCapFraction > 1 {
		return nil, domain.Configf("cycling.max_cycle_cap_fraction", "must be in (0, 1], got %g", p.MaxCycleCapFraction)
	}
	if p.BalancedJitter < 0 || p.BalancedJitter > 1 {
		return nil, domain.Configf("cycling.balanced_jitter", "must be in [0, 1], got %g", p.BalancedJitter)
	}
	if err := p.FractionStep.Validate("cycling.fraction_step"); err != nil {
		return nil, err
	}
	if err := p.SecondaryFlow.ValidateNonNegative("cycling.secondary_flow"); err != nil {
		return nil, err
	}
	var mixTotal float64
	for _, w := range p.ModeMix {
		if w < 0 {
			return nil, domain.Configf("cycling.mode_mix", "weights must be non-negative, got %v", p.ModeMix)
		}
		mixTotal += w
	}
	if mixTotal <= 0 {
		return nil, domain.Configf("cycling.mode_mix", "weights must not all be zero")
	}
	return &Engine{p: p}, nil
}

// StepsPerCycle exposes the fixed cycle length.
func (e *Engine) StepsPerCycle() int { return e.p.StepsPerCycle }

// InitialMode draws a starting mode from the configured mode mix.
func (e *Engine) InitialMode(rng *rand.Rand) domain.CycleMode {
	return weightedMode(e.p.ModeMix, rng)
}

// NextMode advances the mode state machine at a cycle boundary: with
// JumpProbability the mode jumps uniformly to any of the three, otherwise
// it follows the adjacent-mode transition table.
func (e *Engine) NextMode(current domain.CycleMode, rng *rand.Rand) domain.CycleMode {
	if rng.Float64() < e.p.JumpProbability {
		return domain.CycleMode(rng.IntN(3))
	}
	row := transitionTable[current]
	return weightedMode(row, rng)
}

// NextFraction advances the bounded cycle-fraction random walk. The step is
// drawn from the ramping distribution and biased by mode: heavy modes ramp
// intensity up, balanced cycles ease off.
func (e *Engine) NextFraction(prev float64, mode domain.CycleMode, rng *rand.Rand) float64 {
	step := e.p.FractionStep.Sample(rng)
	switch mode {
	case domain.InjectionHeavy, domain.WithdrawalHeavy:
		step += e.p.IntensityBias
	case domain.Balanced:
		step -= e.p.IntensityBias
	}
	f := prev + step
	if f < FractionMin {
		return FractionMin
	}
	if f > FractionMax {
		return FractionMax
	}
	return f
}

// Plan holds the throughput targets of one cycle. Targets are already
// clamped to the per-cycle cap, so a uniform per-step split can never
// exceed it; the runtime allocator re-checks cumulatively as a backstop.
type Plan struct {
	Mode              domain.CycleMode
	Fraction          float64
	Steps             int
	TargetInjectKg    float64
	TargetWithdrawKg  float64
	CapPerDirectionKg float64
}

// PlanCycle turns a (mode, fraction) pair into per-direction mass targets
// for a cycle over a facility of the given capacity. The dominant direction
// receives the full fraction target, the opposite direction a sampled
// secondary share; balanced cycles split the target near-evenly with a
// sampled jitter. Both targets are hard-clamped to the per-cycle cap at
// allocation time.
func (e *Engine) PlanCycle(mode domain.CycleMode, fraction, capacityKg float64, rng *rand.Rand) Plan {
	target := fraction * capacityKg
	var inject, withdraw float64

	switch mode {
	case domain.InjectionHeavy:
		inject = target
		withdraw = target * e.p.SecondaryFlow.Sample(rng)
	case domain.WithdrawalHeavy:
		withdraw = target
		inject = target * e.p.SecondaryFlow.Sample(rng)
	case domain.Balanced:
		eps := (rng.Float64()*2 - 1) * e.p.BalancedJitter * target
		inject = max(target/2+eps, 0)
		withdraw = max(target/2-eps, 0)
	}

	cap := e.p.MaxCycleCapFraction * capacityKg
	return Plan{
		Mode:              mode,
		Fraction:          fraction,
		Steps:             e.p.StepsPerCycle,
		TargetInjectKg:    min(inject, cap),
		TargetWithdrawKg:  min(withdraw, cap),
		CapPerDirectionKg: cap,
	}
}

// Allocate returns this step's injected and withdrawn mass: the cycle
// target split uniformly across the cycle's steps, clamped so cumulative
// per-direction throughput never exceeds the cap.
func (p Plan) Allocate(injectedSoFarKg, withdrawnSoFarKg float64) (injectKg, withdrawKg float64) {
	injectKg = capAllocation(p.TargetInjectKg/float64(p.Steps), injectedSoFarKg, p.CapPerDirectionKg)
	withdrawKg = capAllocation(p.TargetWithdrawKg/float64(p.Steps), withdrawnSoFarKg, p.CapPerDirectionKg)
	return injectKg, withdrawKg
}

func capAllocation(want, soFar, cap float64) float64 {
	if want <= 0 {
		return 0
	}
	if room := cap - soFar; want > room {
		want = room
	}
	return max(want, 0)
}

// weightedMode draws a mode index proportional to the given weights.
func weightedMode(weights [3]float64, rng *rand.Rand) domain.CycleMode {
	total := weights[0] + weights[1] + weights[2]
	r := rng.Float64() * total
	switch {
	case r < weights[0]:
		return domain.InjectionHeavy
	case r < weights[0]+weights[1]:
		return domain.Balanced
	default:
		return domain.WithdrawalHeavy
	}
}
