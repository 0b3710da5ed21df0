// Package facility samples the static per-facility metadata records.
package facility

import (
	"fmt"
	"math/rand/v2"

	"github.com/couchcryptid/uhs-mrv-datagen/internal/config"
	"github.com/couchcryptid/uhs-mrv-datagen/internal/domain"
	"github.com/couchcryptid/uhs-mrv-datagen/internal/physics"
)

// Placeholder geography pools. The dataset needs plausible variety, not
// real locations.
var (
	countryCodes = []string{"US", "DE", "NL", "FR", "NO"}
	regions      = []string{"Gulf Coast", "North Sea", "Onshore EU", "Offshore EU", "Nordic"}
)

// Sampler draws FacilityConfig records from the configured per-type
// distributions. Identical seed and config produce an identical facility
// set; every draw goes through the caller-supplied generator in a fixed
// order.
type Sampler struct {
	types  map[string]config.FacilityTypeConfig
	thermo physics.ThermoParams
	noise  physics.GaussianNoise
}

// NewSampler builds a sampler over an already-validated configuration.
func NewSampler(cfg *config.Config) *Sampler {
	return &Sampler{
		types:  cfg.FacilityTypes,
		thermo: cfg.ThermoParams(),
		noise:  cfg.Thermo.TemperatureNoiseC,
	}
}

// Sample draws the static record for the index-th facility. The reservoir
// type is chosen by configured weight over the fixed type order, then the
// type's distributions fill in geometry, rock matrix, and the pressure
// envelope. Working-gas capacity is sized with the real-gas PVT relation at
// the top of the envelope; the remainder of the total inventory is cushion
// gas.
func (s *Sampler) Sample(index int, rng *rand.Rand) (domain.FacilityConfig, error) {
	rt := s.pickType(rng)
	tc := s.types[string(rt)]

	fc := domain.FacilityConfig{
		ID:          fmt.Sprintf("UHS_%03d", index+1),
		Type:        rt,
		CountryCode: countryCodes[rng.IntN(len(countryCodes))],
		Region:      regions[rng.IntN(len(regions))],
		Latitude:    -60 + rng.Float64()*120,
		Longitude:   -180 + rng.Float64()*360,

		DepthM:   tc.Depth.Sample(rng),
		VolumeM3: tc.Volume.Sample(rng),

		PressureMinMPa: tc.PressureMinMPa,
		PressureMaxMPa: tc.PressureMaxMPa,

		BaseTemperatureC:          tc.BaseTemperatureC,
		TemperatureGradientCPerKm: tc.TemperatureGradientCPerKm,
	}

	if rt.HasRockMatrix() {
		porosity := tc.Porosity.Sample(rng)
		permeability := tc.Permeability.Sample(rng)
		fc.Porosity = &porosity
		fc.PermeabilityMD = &permeability
	}

	// Representative reservoir temperature at depth, then total inventory
	// at maximum envelope pressure. The working fraction splits that into
	// cyclable capacity and permanently held cushion gas.
	tempC := physics.TemperatureAtDepth(fc.BaseTemperatureC, fc.TemperatureGradientCPerKm, fc.DepthM, s.noise, rng)
	totalKg := physics.MassFromPVT(fc.PressureMaxMPa, tempC, fc.VolumeM3, s.thermo)
	fc.WorkingGasCapacityKg = totalKg * tc.WorkingGasFraction
	fc.CushionGasKg = totalKg - fc.WorkingGasCapacityKg

	if err := fc.Validate(); err != nil {
		return domain.FacilityConfig{}, err
	}
	return fc, nil
}

// pickType draws a reservoir type proportional to configured weights,
// iterating types in the fixed order so the draw is reproducible.
func (s *Sampler) pickType(rng *rand.Rand) domain.ReservoirType {
	var total float64
	for _, rt := range config.ReservoirTypeOrder {
		total += s.types[string(rt)].Weight
	}
	r := rng.Float64() * total
	for _, rt := range config.ReservoirTypeOrder {
		w := s.types[string(rt)].Weight
		if r < w {
			return rt
		}
		r -= w
	}
	// Floating-point edge: fall back to the last configured type.
	last := config.ReservoirTypeOrder[0]
	for _, rt := range config.ReservoirTypeOrder {
		if s.types[string(rt)].Weight > 0 {
			last = rt
		}
	}
	return last
}
