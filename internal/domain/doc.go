// Package domain models the records of the Synthetic Underground Hydrogen
// Storage MRV (SUHS-MRV) dataset.
//
// # Dataset Shape
//
// A generation run produces three related tables:
//
//	facility_metadata    one row per facility; static attributes sampled once
//	facility_timeseries  one row per (facility, timestep); operational state
//	cycle_summary        one row per closed injection/withdrawal cycle
//
// FacilityID is the foreign key linking timeseries and cycle rows back to
// their facility. Within one facility, timeseries rows are strictly ordered:
// each step is computed from the previous step's post-clamp state, so the
// sequence cannot be reordered or regenerated partially.
//
// # Reservoir Types
//
// Facilities are one of four storage archetypes:
//
//	salt_cavern          solution-mined cavern; no rock matrix, so porosity
//	                     and permeability are absent (null in the metadata table)
//	depleted_reservoir   former gas field re-purposed for hydrogen
//	aquifer              water-bearing formation with a structural trap
//	porous_reservoir     generic porous rock storage
//
// The three porous types sample porosity and permeability from configured
// distributions; salt caverns never do.
//
// # Cycle Modes
//
// Operational behavior is driven by a three-mode state machine:
// injection_heavy, balanced, withdrawal_heavy. Mode changes only at cycle
// boundaries, following a random walk over adjacent modes with a small
// configured probability of an abrupt jump. The cycle fraction (target net
// throughput as a fraction of working-gas capacity) evolves as a bounded
// random walk in [0.10, 0.90].
//
// # Mass Balance as the MRV Signal
//
// The per-step mass update clamps working gas into [0, capacity]. Clamping
// is not an error: the recorded mass-balance residual compares the post-clamp
// mass against the pre-clamp arithmetic expectation, normalized by capacity,
// so the residual is nonzero exactly when an operation was physically
// truncated. Downstream MRV (Measurement, Reporting, Verification) tooling
// uses that residual as its anomaly signal.
//
// # Units
//
// Mass in kilograms, pressure in MPa, temperature in degrees Celsius, depth
// in meters, volume in cubic meters, purity in percent [0, 100]. Loss
// coefficients are dimensionless fractions: static losses scale the standing
// working-gas mass, dynamic losses scale the mass moved that step.
package domain
