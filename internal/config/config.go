// Package config resolves the generator's settings: a structured YAML file
// for every simulation parameter (with embedded defaults) and environment
// variables for runtime concerns like logging and the optional Kafka sink.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/uhs-mrv-datagen/internal/cycle"
	"github.com/couchcryptid/uhs-mrv-datagen/internal/dist"
	"github.com/couchcryptid/uhs-mrv-datagen/internal/domain"
	"github.com/couchcryptid/uhs-mrv-datagen/internal/physics"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ReservoirTypeOrder fixes the iteration order over facility types.
// Ranging over the YAML map directly would make type selection depend on
// map iteration order and break run determinism.
var ReservoirTypeOrder = []domain.ReservoirType{
	domain.SaltCavern,
	domain.DepletedReservoir,
	domain.Aquifer,
	domain.PorousReservoir,
}

// Config is the fully resolved settings tree.
type Config struct {
	Global        GlobalConfig                  `yaml:"global"`
	Thermo        ThermoConfig                  `yaml:"thermodynamics"`
	FacilityTypes map[string]FacilityTypeConfig `yaml:"facility_types"`
	Losses        LossConfig                    `yaml:"losses"`
	Purity        PurityConfig                  `yaml:"purity"`
	Cycling       CyclingConfig                 `yaml:"cycling"`
	Validation    ValidationConfig              `yaml:"validation"`
}

// GlobalConfig holds run-wide settings.
type GlobalConfig struct {
	NFacilities int    `yaml:"n_facilities"`
	RandomSeed  uint64 `yaml:"random_seed"`
	StartDate   string `yaml:"start_date"`
	Years       int    `yaml:"years"`
	Frequency   string `yaml:"frequency"`
}

// ThermoConfig mirrors the thermodynamics section.
type ThermoConfig struct {
	GasConstantJPerMolK float64               `yaml:"gas_constant_r_j_per_molk"`
	MolarMassH2KgPerMol float64               `yaml:"molar_mass_h2_kg_per_mol"`
	ZSegments           []physics.ZSegment    `yaml:"compressibility_z"`
	TemperatureNoiseC   physics.GaussianNoise `yaml:"temperature_noise_c"`
}

// FacilityTypeConfig holds the per-type sampling distributions and fixed
// attributes. Porosity and Permeability are nil for salt caverns.
type FacilityTypeConfig struct {
	Weight                    float64    `yaml:"weight"`
	Depth                     dist.Spec  `yaml:"depth_m"`
	Volume                    dist.Spec  `yaml:"volume_m3"`
	Porosity                  *dist.Spec `yaml:"porosity"`
	Permeability              *dist.Spec `yaml:"permeability_md"`
	PressureMinMPa            float64    `yaml:"pressure_min_mpa"`
	PressureMaxMPa            float64    `yaml:"pressure_max_mpa"`
	BaseTemperatureC          float64    `yaml:"base_temperature_c"`
	TemperatureGradientCPerKm float64    `yaml:"temperature_gradient_c_per_km"`
	WorkingGasFraction        float64    `yaml:"working_gas_fraction"`
}

// LossConfig holds the static and dynamic loss-coefficient distributions.
type LossConfig struct {
	StaticFraction  dist.Spec `yaml:"static_fraction"`
	DynamicFraction dist.Spec `yaml:"dynamic_fraction"`
}

// PurityConfig holds the purity band and noise settings.
type PurityConfig struct {
	InitialPct     float64               `yaml:"initial_pct"`
	InletPct       dist.Spec             `yaml:"inlet_pct"`
	OutletNoisePct physics.GaussianNoise `yaml:"outlet_noise_pct"`
}

// CyclingConfig mirrors the cycling section.
type CyclingConfig struct {
	StepsPerCycle       int       `yaml:"steps_per_cycle"`
	JumpProbability     float64   `yaml:"jump_probability"`
	FractionStep        dist.Spec `yaml:"fraction_step"`
	IntensityBias       float64   `yaml:"intensity_bias"`
	MaxCycleCapFraction float64   `yaml:"max_cycle_cap_fraction"`
	SecondaryFlow       dist.Spec `yaml:"secondary_flow"`
	BalancedJitter      float64   `yaml:"balanced_jitter"`
	InitialMode         string    `yaml:"initial_mode"`
	InitialFillFraction float64   `yaml:"initial_fill_fraction"`
	ModeMix             ModeMix   `yaml:"mode_mix"`
}

// ModeMix weights the initial mode choice.
type ModeMix struct {
	InjectionHeavy  float64 `yaml:"injection_heavy"`
	Balanced        float64 `yaml:"balanced"`
	WithdrawalHeavy float64 `yaml:"withdrawal_heavy"`
}

// Range is a simple min/max pair used by the validation section.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// ValidationConfig holds the post-hoc check thresholds consumed by
// cmd/validate. The simulator itself never reads these.
type ValidationConfig struct {
	PressureMarginMPa    float64 `yaml:"pressure_margin_mpa"`
	TemperatureC         Range   `yaml:"temperature_c"`
	PurityPct            Range   `yaml:"purity_pct"`
	ResidualAbsMax       float64 `yaml:"residual_abs_max"`
	ResidualPassFraction float64 `yaml:"residual_pass_fraction"`
}

// Load reads the settings file at path, or the embedded defaults when path
// is empty, and validates the result.
func Load(path string) (*Config, error) {
	raw := defaultsYAML
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read settings file: %w", err)
		}
		raw = data
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, domain.Configf("", "parse settings: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the whole tree eagerly so a bad config aborts the run
// before any facility is sampled.
func (c *Config) Validate() error {
	if c.Global.NFacilities <= 0 {
		return domain.Configf("global.n_facilities", "must be positive, got %d", c.Global.NFacilities)
	}
	if _, err := c.StartDate(); err != nil {
		return err
	}
	if _, err := cycle.ParseFrequency(c.Global.Frequency); err != nil {
		return err
	}
	if c.Global.Years <= 0 {
		return domain.Configf("global.years", "must be positive, got %d", c.Global.Years)
	}

	if c.Thermo.GasConstantJPerMolK <= 0 {
		return domain.Configf("thermodynamics.gas_constant_r_j_per_molk", "must be positive")
	}
	if c.Thermo.MolarMassH2KgPerMol <= 0 {
		return domain.Configf("thermodynamics.molar_mass_h2_kg_per_mol", "must be positive")
	}

	var totalWeight float64
	for _, rt := range ReservoirTypeOrder {
		tc, ok := c.FacilityTypes[string(rt)]
		if !ok {
			continue
		}
		if err := tc.validate(rt); err != nil {
			return err
		}
		totalWeight += tc.Weight
	}
	if totalWeight <= 0 {
		return domain.Configf("facility_types", "at least one type needs a positive weight")
	}

	if err := c.Losses.StaticFraction.ValidateNonNegative("losses.static_fraction"); err != nil {
		return err
	}
	if err := c.Losses.DynamicFraction.ValidateNonNegative("losses.dynamic_fraction"); err != nil {
		return err
	}

	if c.Purity.InitialPct < 0 || c.Purity.InitialPct > 100 {
		return domain.Configf("purity.initial_pct", "must be in [0, 100], got %g", c.Purity.InitialPct)
	}
	if err := c.Purity.InletPct.ValidateNonNegative("purity.inlet_pct"); err != nil {
		return err
	}

	if c.Cycling.InitialFillFraction <= 0 || c.Cycling.InitialFillFraction > 1 {
		return domain.Configf("cycling.initial_fill_fraction", "must be in (0, 1], got %g", c.Cycling.InitialFillFraction)
	}
	if c.Cycling.InitialMode != "random" {
		if _, err := domain.ParseCycleMode(c.Cycling.InitialMode); err != nil {
			return err
		}
	}
	// The cycle engine re-validates its own section on construction.
	if _, err := cycle.NewEngine(c.CycleParams()); err != nil {
		return err
	}
	return nil
}

func (tc FacilityTypeConfig) validate(rt domain.ReservoirType) error {
	field := "facility_types." + string(rt)
	if tc.Weight < 0 {
		return domain.Configf(field+".weight", "must be non-negative, got %g", tc.Weight)
	}
	if err := tc.Depth.ValidateNonNegative(field + ".depth_m"); err != nil {
		return err
	}
	if err := tc.Volume.ValidateNonNegative(field + ".volume_m3"); err != nil {
		return err
	}
	if tc.PressureMinMPa >= tc.PressureMaxMPa {
		return domain.Configf(field, "pressure_min_mpa %g must be below pressure_max_mpa %g", tc.PressureMinMPa, tc.PressureMaxMPa)
	}
	if tc.WorkingGasFraction <= 0 || tc.WorkingGasFraction > 1 {
		return domain.Configf(field+".working_gas_fraction", "must be in (0, 1], got %g", tc.WorkingGasFraction)
	}
	if rt.HasRockMatrix() {
		if tc.Porosity == nil || tc.Permeability == nil {
			return domain.Configf(field, "%s requires porosity and permeability_md distributions", rt)
		}
		if err := tc.Porosity.ValidateNonNegative(field + ".porosity"); err != nil {
			return err
		}
		if err := tc.Permeability.ValidateNonNegative(field + ".permeability_md"); err != nil {
			return err
		}
	} else if tc.Porosity != nil || tc.Permeability != nil {
		return domain.Configf(field, "salt caverns must not configure porosity or permeability_md")
	}
	return nil
}

// StartDate parses the configured ISO start date.
func (c *Config) StartDate() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.Global.StartDate)
	if err != nil {
		return time.Time{}, domain.Configf("global.start_date", "want YYYY-MM-DD, got %q", c.Global.StartDate)
	}
	return t.UTC(), nil
}

// Frequency returns the parsed cadence token. Only valid after Validate.
func (c *Config) Frequency() cycle.Frequency {
	f, _ := cycle.ParseFrequency(c.Global.Frequency)
	return f
}

// ThermoParams builds the physics bundle from the thermodynamics section.
func (c *Config) ThermoParams() physics.ThermoParams {
	return physics.ThermoParams{
		GasConstantJPerMolK: c.Thermo.GasConstantJPerMolK,
		MolarMassH2KgPerMol: c.Thermo.MolarMassH2KgPerMol,
		ZSegments:           c.Thermo.ZSegments,
	}
}

// CycleParams builds the cycle engine bundle from the cycling section.
func (c *Config) CycleParams() cycle.Params {
	return cycle.Params{
		StepsPerCycle:       c.Cycling.StepsPerCycle,
		JumpProbability:     c.Cycling.JumpProbability,
		FractionStep:        c.Cycling.FractionStep,
		IntensityBias:       c.Cycling.IntensityBias,
		MaxCycleCapFraction: c.Cycling.MaxCycleCapFraction,
		SecondaryFlow:       c.Cycling.SecondaryFlow,
		BalancedJitter:      c.Cycling.BalancedJitter,
		ModeMix: [3]float64{
			c.Cycling.ModeMix.InjectionHeavy,
			c.Cycling.ModeMix.Balanced,
			c.Cycling.ModeMix.WithdrawalHeavy,
		},
	}
}

// Runtime holds the operational settings read from the environment, in the
// same shape the rest of our services use.
type Runtime struct {
	LogLevel  string
	LogFormat string
	HTTPAddr  string

	KafkaBrokers []string
	KafkaTopic   string
}

// KafkaEnabled reports whether the optional record publisher should run.
func (r *Runtime) KafkaEnabled() bool { return len(r.KafkaBrokers) > 0 }

// LoadRuntime reads runtime settings from environment variables, applying
// defaults where unset. The Kafka sink stays disabled unless KAFKA_BROKERS
// is set.
func LoadRuntime() (*Runtime, error) {
	rt := &Runtime{
		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),
		HTTPAddr:  os.Getenv("HTTP_ADDR"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				rt.KafkaBrokers = append(rt.KafkaBrokers, b)
			}
		}
		rt.KafkaTopic = envOrDefault("KAFKA_TOPIC", "uhs-facility-timeseries")
	}

	switch rt.LogFormat {
	case "json", "text":
	default:
		return nil, domain.Configf("LOG_FORMAT", "want json or text, got %q", rt.LogFormat)
	}
	return rt, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
