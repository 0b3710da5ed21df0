package cycle

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/uhs-mrv-datagen/internal/dist"
	"github.com/couchcryptid/uhs-mrv-datagen/internal/domain"
)

func testParams() Params {
	return Params{
		StepsPerCycle:       4,
		JumpProbability:     0.07,
		FractionStep:        dist.Spec{Kind: dist.Normal, Mean: 0, Sigma: 0.08, Min: -0.25, Max: 0.25},
		IntensityBias:       0.02,
		MaxCycleCapFraction: 0.25,
		SecondaryFlow:       dist.Spec{Kind: dist.Uniform, Min: 0.1, Max: 0.6},
		BalancedJitter:      0.1,
		ModeMix:             [3]float64{0.35, 0.40, 0.25},
	}
}

func TestNewEngineValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Params)
		wantErr string
	}{
		{"valid", func(*Params) {}, ""},
		{"zero steps per cycle", func(p *Params) { p.StepsPerCycle = 0 }, "steps_per_cycle"},
		{"jump probability above one", func(p *Params) { p.JumpProbability = 1.5 }, "jump_probability"},
		{"zero cap", func(p *Params) { p.MaxCycleCapFraction = 0 }, "max_cycle_cap_fraction"},
		{"jitter above one", func(p *Params) { p.BalancedJitter = 2 }, "balanced_jitter"},
		{"bad fraction step", func(p *Params) { p.FractionStep.Kind = "nope" }, "fraction_step"},
		{"negative secondary flow", func(p *Params) { p.SecondaryFlow.Min = -1 }, "secondary_flow"},
		{"negative mode weight", func(p *Params) { p.ModeMix[1] = -1 }, "mode_mix"},
		{"all-zero mode mix", func(p *Params) { p.ModeMix = [3]float64{} }, "mode_mix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams()
			tt.mutate(&p)
			_, err := NewEngine(p)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNextModeNeverSkipsBetweenHeavyModes(t *testing.T) {
	p := testParams()
	p.JumpProbability = 0 // only adjacent-mode transitions
	e, err := NewEngine(p)
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(42, 0))

	for i := 0; i < 2000; i++ {
		next := e.NextMode(domain.InjectionHeavy, rng)
		assert.NotEqual(t, domain.WithdrawalHeavy, next)

		next = e.NextMode(domain.WithdrawalHeavy, rng)
		assert.NotEqual(t, domain.InjectionHeavy, next)
	}
}

func TestNextModeJumpReachesAnyMode(t *testing.T) {
	p := testParams()
	p.JumpProbability = 1 // every boundary jumps
	e, err := NewEngine(p)
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(1, 0))

	seen := map[domain.CycleMode]bool{}
	for i := 0; i < 200; i++ {
		seen[e.NextMode(domain.InjectionHeavy, rng)] = true
	}
	assert.Len(t, seen, 3)
}

func TestNextFractionStaysBounded(t *testing.T) {
	e, err := NewEngine(testParams())
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(7, 0))

	f := 0.5
	for i := 0; i < 5000; i++ {
		mode := domain.CycleMode(rng.IntN(3))
		f = e.NextFraction(f, mode, rng)
		assert.GreaterOrEqual(t, f, FractionMin)
		assert.LessOrEqual(t, f, FractionMax)
	}
}

func TestPlanCycleCapsTargets(t *testing.T) {
	e, err := NewEngine(testParams())
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(11, 0))

	const capacity = 1e6
	capKg := 0.25 * capacity

	for i := 0; i < 500; i++ {
		mode := domain.CycleMode(rng.IntN(3))
		plan := e.PlanCycle(mode, 0.9, capacity, rng)
		assert.LessOrEqual(t, plan.TargetInjectKg, capKg)
		assert.LessOrEqual(t, plan.TargetWithdrawKg, capKg)
		assert.Equal(t, capKg, plan.CapPerDirectionKg)
	}
}

func TestPlanCycleHighFractionClampsDominantToCap(t *testing.T) {
	e, err := NewEngine(testParams())
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(2, 0))

	// A 30% request exceeds the 25% cap; the dominant direction clamps to
	// exactly the cap.
	plan := e.PlanCycle(domain.InjectionHeavy, 0.30, 1e6, rng)
	assert.Equal(t, 0.25*1e6, plan.TargetInjectKg)
}

func TestPlanCycleBalancedSplitsNearEvenly(t *testing.T) {
	e, err := NewEngine(testParams())
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(3, 0))

	plan := e.PlanCycle(domain.Balanced, 0.4, 1e6, rng)
	target := 0.4 * 1e6
	// Jitter is at most ±10% of the target around an even split.
	assert.InDelta(t, target/2, plan.TargetInjectKg, 0.1*target)
	assert.InDelta(t, target/2, plan.TargetWithdrawKg, 0.1*target)
}

func TestAllocateSplitsUniformlyAndCaps(t *testing.T) {
	plan := Plan{
		Mode:              domain.InjectionHeavy,
		Steps:             4,
		TargetInjectKg:    100,
		TargetWithdrawKg:  40,
		CapPerDirectionKg: 100,
	}

	var injSoFar, wdSoFar float64
	for i := 0; i < 4; i++ {
		inj, wd := plan.Allocate(injSoFar, wdSoFar)
		assert.Equal(t, 25.0, inj)
		assert.Equal(t, 10.0, wd)
		injSoFar += inj
		wdSoFar += wd
	}
	assert.Equal(t, 100.0, injSoFar)
	assert.Equal(t, 40.0, wdSoFar)
}

func TestAllocateNeverExceedsCumulativeCap(t *testing.T) {
	// Per-step want is 30 but the cap cuts the last step short.
	plan := Plan{
		Steps:             4,
		TargetInjectKg:    120,
		CapPerDirectionKg: 100,
	}

	var soFar float64
	for i := 0; i < 4; i++ {
		inj, _ := plan.Allocate(soFar, 0)
		soFar += inj
		assert.LessOrEqual(t, soFar, 100.0)
	}
	assert.Equal(t, 100.0, soFar)
}

func TestInitialModeFollowsMix(t *testing.T) {
	p := testParams()
	p.ModeMix = [3]float64{0, 1, 0}
	e, err := NewEngine(p)
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(5, 0))

	for i := 0; i < 50; i++ {
		assert.Equal(t, domain.Balanced, e.InitialMode(rng))
	}
}
