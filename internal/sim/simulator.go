// Package sim runs the per-facility storage simulation and coordinates a
// whole generation run across the facility fleet.
package sim

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/couchcryptid/uhs-mrv-datagen/internal/cycle"
	"github.com/couchcryptid/uhs-mrv-datagen/internal/dist"
	"github.com/couchcryptid/uhs-mrv-datagen/internal/domain"
	"github.com/couchcryptid/uhs-mrv-datagen/internal/physics"
)

// Params bundles everything a facility simulation needs beyond the facility
// record itself. Built once per run from the resolved configuration.
type Params struct {
	Engine    *cycle.Engine
	Thermo    physics.ThermoParams
	TempNoise physics.GaussianNoise

	StaticLoss  dist.Spec
	DynamicLoss dist.Spec

	InitialPurityPct float64
	InletPurity      dist.Spec
	OutletNoise      physics.GaussianNoise

	InitialFillFraction float64

	// InitialMode pins the first cycle's mode; nil draws it from the
	// configured mode mix.
	InitialMode *domain.CycleMode
}

// Simulator advances one facility through the shared time index. It is
// reusable across facilities; all per-facility state is local to Run.
type Simulator struct {
	p Params
}

// NewSimulator builds a simulator over already-validated parameters.
func NewSimulator(p Params) *Simulator {
	return &Simulator{p: p}
}

// cycleAccumulator aggregates the steps of one in-progress cycle into a
// CycleSummaryRecord.
type cycleAccumulator struct {
	index int
	mode  domain.CycleMode
	start time.Time
	end   time.Time
	steps int

	injected    float64
	withdrawn   float64
	staticLoss  float64
	dynamicLoss float64

	minPressure float64
	maxPressure float64
	minTemp     float64
	maxTemp     float64

	inletPuritySum  float64
	outletPuritySum float64
	residualSum     float64
}

func newCycleAccumulator(index int, mode domain.CycleMode, start time.Time) *cycleAccumulator {
	return &cycleAccumulator{
		index:       index,
		mode:        mode,
		start:       start,
		minPressure: math.Inf(1),
		maxPressure: math.Inf(-1),
		minTemp:     math.Inf(1),
		maxTemp:     math.Inf(-1),
	}
}

func (a *cycleAccumulator) add(rec domain.TimestepRecord) {
	a.end = rec.Timestamp
	a.steps++
	a.injected += rec.InjectedKg
	a.withdrawn += rec.WithdrawnKg
	a.staticLoss += rec.StaticLossKg
	a.dynamicLoss += rec.DynamicLossKg
	a.minPressure = math.Min(a.minPressure, rec.PressureMPa)
	a.maxPressure = math.Max(a.maxPressure, rec.PressureMPa)
	a.minTemp = math.Min(a.minTemp, rec.TemperatureC)
	a.maxTemp = math.Max(a.maxTemp, rec.TemperatureC)
	a.inletPuritySum += rec.InletPurityPct
	a.outletPuritySum += rec.OutletPurityPct
	a.residualSum += rec.MassBalanceResidual
}

func (a *cycleAccumulator) summary(facilityID string) domain.CycleSummaryRecord {
	efficiency := math.NaN()
	if a.injected > 0 {
		efficiency = a.withdrawn / a.injected
	}
	n := float64(a.steps)
	return domain.CycleSummaryRecord{
		FacilityID:          facilityID,
		CycleIndex:          a.index,
		Mode:                a.mode,
		StartTime:           a.start,
		EndTime:             a.end,
		TotalInjectedKg:     a.injected,
		TotalWithdrawnKg:    a.withdrawn,
		TotalStaticLossKg:   a.staticLoss,
		TotalDynamicLossKg:  a.dynamicLoss,
		MinPressureMPa:      a.minPressure,
		MaxPressureMPa:      a.maxPressure,
		MinTemperatureC:     a.minTemp,
		MaxTemperatureC:     a.maxTemp,
		AvgInletPurityPct:   a.inletPuritySum / n,
		AvgOutletPurityPct:  a.outletPuritySum / n,
		CycleEfficiency:     efficiency,
		MassBalanceResidual: a.residualSum,
	}
}

// Run simulates one facility over the shared time index and returns its
// timestep rows and closed-cycle summaries. The random draws follow a fixed
// order (loss coefficients, initial mode, then per-cycle and per-step draws)
// so a given generator state always yields the same trajectory.
func (s *Simulator) Run(fc domain.FacilityConfig, timeIndex []time.Time, rng *rand.Rand) ([]domain.TimestepRecord, []domain.CycleSummaryRecord, error) {
	staticCoeff := s.p.StaticLoss.Sample(rng)
	dynamicCoeff := s.p.DynamicLoss.Sample(rng)

	mode := s.p.Engine.InitialMode(rng)
	if s.p.InitialMode != nil {
		mode = *s.p.InitialMode
	}
	fraction := (cycle.FractionMin + cycle.FractionMax) / 2

	mass := s.p.InitialFillFraction * fc.WorkingGasCapacityKg
	workingPurity := s.p.InitialPurityPct

	stepsPerCycle := s.p.Engine.StepsPerCycle()
	timesteps := make([]domain.TimestepRecord, 0, len(timeIndex))
	summaries := make([]domain.CycleSummaryRecord, 0, len(timeIndex)/stepsPerCycle+1)

	var (
		plan             cycle.Plan
		acc              *cycleAccumulator
		injectedInCycle  float64
		withdrawnInCycle float64
	)

	for step, ts := range timeIndex {
		if step%stepsPerCycle == 0 {
			cycleIndex := step / stepsPerCycle
			if acc != nil {
				summaries = append(summaries, acc.summary(fc.ID))
				mode = s.p.Engine.NextMode(mode, rng)
				fraction = s.p.Engine.NextFraction(fraction, mode, rng)
			}
			plan = s.p.Engine.PlanCycle(mode, fraction, fc.WorkingGasCapacityKg, rng)
			acc = newCycleAccumulator(cycleIndex, mode, ts)
			injectedInCycle, withdrawnInCycle = 0, 0
		}

		injected, withdrawn := plan.Allocate(injectedInCycle, withdrawnInCycle)
		injectedInCycle += injected
		withdrawnInCycle += withdrawn

		inletPurity := s.p.InletPurity.Sample(rng)

		staticLoss := physics.CycleLoss(mass, staticCoeff)
		dynamicLoss := physics.CycleLoss(injected+withdrawn, dynamicCoeff)

		expected := mass + injected - withdrawn - staticLoss - dynamicLoss
		next := expected
		if next < 0 {
			next = 0
		} else if next > fc.WorkingGasCapacityKg {
			next = fc.WorkingGasCapacityKg
		}
		residual := physics.MassBalanceResidual(next, mass, injected, withdrawn, staticLoss, dynamicLoss, fc.WorkingGasCapacityKg)

		temperature := physics.TemperatureAtDepth(fc.BaseTemperatureC, fc.TemperatureGradientCPerKm, fc.DepthM, s.p.TempNoise, rng)
		pressure := physics.PressureFromMass(next, fc.WorkingGasCapacityKg, fc.PressureMinMPa, fc.PressureMaxMPa)

		workingPurity = physics.UpdateWorkingPurity(workingPurity, inletPurity, injected, mass)
		outletPurity := physics.UpdateOutletPurity(workingPurity, inletPurity, injected, withdrawn, s.p.OutletNoise, rng)

		if err := checkStep(fc, step, next, pressure, workingPurity); err != nil {
			return nil, nil, err
		}

		rec := domain.TimestepRecord{
			FacilityID:          fc.ID,
			Timestamp:           ts,
			CycleIndex:          acc.index,
			Mode:                mode,
			PressureMPa:         pressure,
			TemperatureC:        temperature,
			WorkingGasKg:        next,
			InjectedKg:          injected,
			WithdrawnKg:         withdrawn,
			StaticLossKg:        staticLoss,
			DynamicLossKg:       dynamicLoss,
			InletPurityPct:      inletPurity,
			OutletPurityPct:     outletPurity,
			WorkingPurityPct:    workingPurity,
			MassBalanceResidual: residual,
			GeneratedAt:         domain.Now(),
		}
		timesteps = append(timesteps, rec)
		acc.add(rec)

		mass = next
	}

	if acc != nil && acc.steps > 0 {
		summaries = append(summaries, acc.summary(fc.ID))
	}
	return timesteps, summaries, nil
}

// checkStep enforces the state invariants after every update. A violation
// here is a programming error in the simulation, not bad input.
func checkStep(fc domain.FacilityConfig, step int, massKg, pressureMPa, purityPct float64) error {
	if massKg < 0 || massKg > fc.WorkingGasCapacityKg {
		return &domain.InvariantError{FacilityID: fc.ID, Step: step, Quantity: "working_gas_kg", Value: massKg}
	}
	if pressureMPa < fc.PressureMinMPa || pressureMPa > fc.PressureMaxMPa {
		return &domain.InvariantError{FacilityID: fc.ID, Step: step, Quantity: "pressure_mpa", Value: pressureMPa}
	}
	if purityPct < 0 || purityPct > 100 {
		return &domain.InvariantError{FacilityID: fc.ID, Step: step, Quantity: "working_purity_pct", Value: purityPct}
	}
	return nil
}
