// Package physics holds the closed-form relationships of the UHS simulation:
// temperature at depth, pressure from inventory, real-gas PVT sizing, loss
// and purity models, and the mass-balance residual. Everything here is a
// pure function over explicit parameter bundles and an explicit random
// generator; the package keeps no state.
//
// These are deliberately simplified engineering correlations for generating
// plausible synthetic data, not a reservoir flow simulator.
package physics

import (
	"math"
	"math/rand/v2"
)

// residualEpsilon floors the residual denominator so a misconfigured
// zero-capacity facility cannot divide by zero.
const residualEpsilon = 1e-9

// ZSegment is one piecewise-constant span of the hydrogen compressibility
// factor Z over a pressure interval [PressureMinMPa, PressureMaxMPa).
type ZSegment struct {
	PressureMinMPa float64 `yaml:"pressure_min_mpa"`
	PressureMaxMPa float64 `yaml:"pressure_max_mpa"`
	Z              float64 `yaml:"z"`
}

// ThermoParams bundles the real-gas constants used for capacity sizing.
type ThermoParams struct {
	GasConstantJPerMolK float64    `yaml:"gas_constant_r_j_per_molk"`
	MolarMassH2KgPerMol float64    `yaml:"molar_mass_h2_kg_per_mol"`
	ZSegments           []ZSegment `yaml:"compressibility_z"`
}

// GaussianNoise parameterizes additive Gaussian jitter, used for both the
// geothermal temperature trend and outlet purity measurement drift.
type GaussianNoise struct {
	Mean float64 `yaml:"mean"`
	Std  float64 `yaml:"std"`
}

// TemperatureAtDepth computes the geothermal temperature
//
//	T = base + gradient * depth_km + N(mean, std)
//
// The noise draw consumes exactly one value from rng when std > 0 and none
// otherwise, keeping zero-noise runs bit-for-bit reproducible. The result is
// intentionally unclamped; range checking is the validator's job.
func TemperatureAtDepth(baseC, gradientCPerKm, depthM float64, noise GaussianNoise, rng *rand.Rand) float64 {
	t := baseC + gradientCPerKm*depthM/1000.0
	if noise.Std > 0 {
		t += noise.Mean + noise.Std*rng.NormFloat64()
	}
	return t
}

// CompressibilityZ returns the piecewise-constant compressibility factor for
// the given pressure, falling back to the last segment outside the table.
// With no segments configured the gas is treated as ideal (Z = 1).
func CompressibilityZ(pressureMPa float64, thermo ThermoParams) float64 {
	if len(thermo.ZSegments) == 0 {
		return 1.0
	}
	for _, seg := range thermo.ZSegments {
		if pressureMPa >= seg.PressureMinMPa && pressureMPa < seg.PressureMaxMPa {
			return seg.Z
		}
	}
	return thermo.ZSegments[len(thermo.ZSegments)-1].Z
}

// MassFromPVT computes hydrogen mass in kg from pressure [MPa], temperature
// [°C], and volume [m³] via P·V = Z·n·R·T. Used by the facility sampler to
// size working-gas capacity at the top of the pressure envelope.
func MassFromPVT(pressureMPa, temperatureC, volumeM3 float64, thermo ThermoParams) float64 {
	if volumeM3 <= 0 || pressureMPa <= 0 {
		return 0
	}
	pressurePa := pressureMPa * 1e6
	temperatureK := temperatureC + 273.15
	if temperatureK <= 0 {
		return 0
	}
	z := CompressibilityZ(pressureMPa, thermo)
	moles := (pressurePa * volumeM3) / (z * thermo.GasConstantJPerMolK * temperatureK)
	return math.Max(moles*thermo.MolarMassH2KgPerMol, 0)
}

// PressureFromMass maps the working-gas fill level linearly onto the
// facility's pressure envelope. The mass ratio is clamped into [0, 1]
// before interpolating, which is what keeps reported pressure inside the
// envelope even under transient over- or under-fill.
func PressureFromMass(massKg, capacityKg, pMinMPa, pMaxMPa float64) float64 {
	ratio := 0.0
	if capacityKg > 0 {
		ratio = massKg / capacityKg
	}
	// Return the exact bound at the clamp points rather than interpolating,
	// so full and empty stores land on the envelope edge bit-for-bit.
	if ratio <= 0 {
		return pMinMPa
	}
	if ratio >= 1 {
		return pMaxMPa
	}
	return pMinMPa + (pMaxMPa-pMinMPa)*ratio
}

// CycleLoss computes a loss in kg as a fraction of a reference mass: the
// standing inventory for static losses, the mass moved this step for dynamic
// losses. Never negative; loss fractions are constrained non-negative at
// sampling.
func CycleLoss(massKg, fraction float64) float64 {
	if massKg <= 0 || fraction <= 0 {
		return 0
	}
	return massKg * fraction
}

// UpdateOutletPurity blends working and inlet purity by flow direction:
// withdrawal-dominated steps deliver gas at the stored working purity,
// injection-dominated steps at something close to the inlet stream. A small
// Gaussian noise term (one draw when noise.Std > 0) models measurement
// drift. The result is clamped to [0, 100].
func UpdateOutletPurity(workingPct, inletPct, injectedKg, withdrawnKg float64, noise GaussianNoise, rng *rand.Rand) float64 {
	weight := 0.5
	if total := injectedKg + withdrawnKg; total > 0 {
		weight = injectedKg / total
	}
	out := weight*inletPct + (1-weight)*workingPct
	if noise.Std > 0 {
		out += noise.Mean + noise.Std*rng.NormFloat64()
	}
	return clampPct(out)
}

// UpdateWorkingPurity mixes injected gas into the inventory as a
// mass-weighted average:
//
//	purity' = (prior·mass + inlet·injected) / (mass + injected)
//
// Withdrawal leaves purity unchanged. Because inlet purity is always below
// 100%, repeated injection cycles accumulate impurities monotonically.
func UpdateWorkingPurity(priorPct, inletPct, injectedKg, currentMassKg float64) float64 {
	if injectedKg <= 0 {
		return priorPct
	}
	total := currentMassKg + injectedKg
	if total <= 0 {
		return priorPct
	}
	return clampPct((priorPct*currentMassKg + inletPct*injectedKg) / total)
}

// MassBalanceResidual is the signed, capacity-normalized discrepancy between
// the recorded post-clamp mass and the pre-clamp arithmetic expectation:
//
//	(next - (prev + in - out - static - dynamic)) / max(capacity, ε)
//
// Exactly zero in unclamped steps; negative when an overfill was truncated
// at capacity, positive when a withdrawal bottomed out at zero.
func MassBalanceResidual(massNextKg, massPrevKg, injectedKg, withdrawnKg, staticLossKg, dynamicLossKg, capacityKg float64) float64 {
	expected := massPrevKg + injectedKg - withdrawnKg - staticLossKg - dynamicLossKg
	return (massNextKg - expected) / math.Max(capacityKg, residualEpsilon)
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
