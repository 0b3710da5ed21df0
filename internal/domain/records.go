package domain

import (
	"fmt"
	"time"
)

// ReservoirType identifies the storage archetype of a facility.
type ReservoirType string

const (
	SaltCavern        ReservoirType = "salt_cavern"
	DepletedReservoir ReservoirType = "depleted_reservoir"
	Aquifer           ReservoirType = "aquifer"
	PorousReservoir   ReservoirType = "porous_reservoir"
)

// HasRockMatrix reports whether the type samples porosity and permeability.
// Salt caverns are solution-mined voids and carry neither.
func (t ReservoirType) HasRockMatrix() bool {
	return t != SaltCavern
}

// ParseReservoirType validates a configured type token.
func ParseReservoirType(s string) (ReservoirType, error) {
	switch t := ReservoirType(s); t {
	case SaltCavern, DepletedReservoir, Aquifer, PorousReservoir:
		return t, nil
	default:
		return "", &ConfigError{Field: "facility_type", Reason: fmt.Sprintf("unknown reservoir type %q", s)}
	}
}

// CycleMode is the closed set of operational modes a cycle can run in.
type CycleMode uint8

const (
	InjectionHeavy CycleMode = iota
	Balanced
	WithdrawalHeavy
)

func (m CycleMode) String() string {
	switch m {
	case InjectionHeavy:
		return "injection_heavy"
	case Balanced:
		return "balanced"
	case WithdrawalHeavy:
		return "withdrawal_heavy"
	default:
		return fmt.Sprintf("CycleMode(%d)", uint8(m))
	}
}

// MarshalText renders the mode token used in CSV and JSON output.
func (m CycleMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses a mode token, the inverse of MarshalText.
func (m *CycleMode) UnmarshalText(b []byte) error {
	switch s := string(b); s {
	case "injection_heavy":
		*m = InjectionHeavy
	case "balanced":
		*m = Balanced
	case "withdrawal_heavy":
		*m = WithdrawalHeavy
	default:
		return fmt.Errorf("unknown cycle mode %q", s)
	}
	return nil
}

// ParseCycleMode parses a mode token from configuration.
func ParseCycleMode(s string) (CycleMode, error) {
	switch s {
	case "injection_heavy":
		return InjectionHeavy, nil
	case "balanced":
		return Balanced, nil
	case "withdrawal_heavy":
		return WithdrawalHeavy, nil
	default:
		return Balanced, &ConfigError{Field: "cycling.initial_mode", Reason: fmt.Sprintf("unknown cycle mode %q", s)}
	}
}

// FacilityConfig is the static per-facility record, sampled once by the
// metadata sampler and immutable afterwards.
type FacilityConfig struct {
	ID          string        `json:"facility_id"`
	Type        ReservoirType `json:"facility_type"`
	CountryCode string        `json:"country_code"`
	Region      string        `json:"region"`
	Latitude    float64       `json:"latitude"`
	Longitude   float64       `json:"longitude"`

	DepthM   float64 `json:"depth_m"`
	VolumeM3 float64 `json:"volume_m3"`

	// Porosity and PermeabilityMD are nil for salt caverns.
	Porosity       *float64 `json:"porosity,omitempty"`
	PermeabilityMD *float64 `json:"permeability_md,omitempty"`

	PressureMinMPa float64 `json:"pressure_min_mpa"`
	PressureMaxMPa float64 `json:"pressure_max_mpa"`

	BaseTemperatureC          float64 `json:"base_temperature_c"`
	TemperatureGradientCPerKm float64 `json:"temperature_gradient_c_per_km"`

	WorkingGasCapacityKg float64 `json:"working_gas_capacity_kg"`
	CushionGasKg         float64 `json:"cushion_gas_kg"`
}

// Validate checks the internal consistency invariants the simulator relies
// on. A FacilityConfig that fails here must never reach the simulator.
func (f *FacilityConfig) Validate() error {
	if f.ID == "" {
		return &ConfigError{Field: "facility.id", Reason: "empty facility ID"}
	}
	if f.PressureMinMPa >= f.PressureMaxMPa {
		return &ConfigError{
			Field:  "facility.pressure_envelope",
			Reason: fmt.Sprintf("%s: pressure_min %.3f MPa must be below pressure_max %.3f MPa", f.ID, f.PressureMinMPa, f.PressureMaxMPa),
		}
	}
	if f.WorkingGasCapacityKg <= 0 {
		return &ConfigError{
			Field:  "facility.working_gas_capacity_kg",
			Reason: fmt.Sprintf("%s: capacity must be positive, got %g", f.ID, f.WorkingGasCapacityKg),
		}
	}
	if f.Type.HasRockMatrix() {
		if f.Porosity == nil || f.PermeabilityMD == nil {
			return &ConfigError{
				Field:  "facility.rock_matrix",
				Reason: fmt.Sprintf("%s: %s requires porosity and permeability", f.ID, f.Type),
			}
		}
	} else if f.Porosity != nil || f.PermeabilityMD != nil {
		return &ConfigError{
			Field:  "facility.rock_matrix",
			Reason: fmt.Sprintf("%s: salt cavern must not carry porosity or permeability", f.ID),
		}
	}
	return nil
}

// TimestepRecord is one row of the facility_timeseries table, immutable once
// emitted by the simulator.
type TimestepRecord struct {
	FacilityID string    `json:"facility_id"`
	Timestamp  time.Time `json:"timestamp"`
	CycleIndex int       `json:"cycle_index"`
	Mode       CycleMode `json:"cycle_mode"`

	PressureMPa  float64 `json:"pressure_mpa"`
	TemperatureC float64 `json:"temperature_c"`
	WorkingGasKg float64 `json:"working_gas_kg"`

	InjectedKg    float64 `json:"h2_injected_kg"`
	WithdrawnKg   float64 `json:"h2_withdrawn_kg"`
	StaticLossKg  float64 `json:"static_loss_kg"`
	DynamicLossKg float64 `json:"dynamic_loss_kg"`

	InletPurityPct   float64 `json:"purity_in_pct"`
	OutletPurityPct  float64 `json:"purity_out_pct"`
	WorkingPurityPct float64 `json:"working_purity_pct"`

	// MassBalanceResidual is the post-clamp mass minus the pre-clamp
	// arithmetic expectation, normalized by capacity. Zero in steady
	// operation, nonzero when clamping truncated an operation.
	MassBalanceResidual float64 `json:"mass_balance_residual"`

	GeneratedAt time.Time `json:"generated_at"`
}

// CycleSummaryRecord is one row of the cycle_summary table, aggregated from
// the TimestepRecords of a closed cycle.
type CycleSummaryRecord struct {
	FacilityID string    `json:"facility_id"`
	CycleIndex int       `json:"cycle_index"`
	Mode       CycleMode `json:"cycle_mode"`
	StartTime  time.Time `json:"cycle_start"`
	EndTime    time.Time `json:"cycle_end"`

	TotalInjectedKg    float64 `json:"total_injected_kg"`
	TotalWithdrawnKg   float64 `json:"total_withdrawn_kg"`
	TotalStaticLossKg  float64 `json:"total_static_loss_kg"`
	TotalDynamicLossKg float64 `json:"total_dynamic_loss_kg"`

	MinPressureMPa  float64 `json:"min_pressure_mpa"`
	MaxPressureMPa  float64 `json:"max_pressure_mpa"`
	MinTemperatureC float64 `json:"min_temperature_c"`
	MaxTemperatureC float64 `json:"max_temperature_c"`

	AvgInletPurityPct  float64 `json:"avg_purity_in_pct"`
	AvgOutletPurityPct float64 `json:"avg_purity_out_pct"`

	// CycleEfficiency is withdrawn/injected for the cycle; NaN when the
	// cycle injected nothing. Serialized as an empty CSV cell.
	CycleEfficiency float64 `json:"cycle_efficiency"`

	MassBalanceResidual float64 `json:"mass_balance_residual"`
}
