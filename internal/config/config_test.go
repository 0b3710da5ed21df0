package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/uhs-mrv-datagen/internal/cycle"
	"github.com/couchcryptid/uhs-mrv-datagen/internal/domain"
)

func TestLoadEmbeddedDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Global.NFacilities)
	assert.Equal(t, uint64(42), cfg.Global.RandomSeed)
	assert.Equal(t, cycle.Weekly, cfg.Frequency())

	start, err := cfg.StartDate()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 1, 6, 0, 0, 0, 0, time.UTC), start)

	// All four reservoir types are configured.
	for _, rt := range ReservoirTypeOrder {
		tc, ok := cfg.FacilityTypes[string(rt)]
		require.True(t, ok, "missing type %s", rt)
		assert.Positive(t, tc.Weight)
	}

	salt := cfg.FacilityTypes[string(domain.SaltCavern)]
	assert.Nil(t, salt.Porosity)
	assert.Nil(t, salt.Permeability)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	override := `
global:
  n_facilities: 3
  random_seed: 7
  start_date: "2021-03-01"
  years: 1
  frequency: monthly
thermodynamics:
  gas_constant_r_j_per_molk: 8.314
  molar_mass_h2_kg_per_mol: 0.002016
facility_types:
  salt_cavern:
    weight: 1.0
    depth_m: { distribution: uniform, min: 500, max: 1800 }
    volume_m3: { distribution: uniform, min: 150000, max: 1200000 }
    pressure_min_mpa: 6.0
    pressure_max_mpa: 20.0
    base_temperature_c: 12.0
    temperature_gradient_c_per_km: 28.0
    working_gas_fraction: 0.55
losses:
  static_fraction: { distribution: uniform, min: 0.0001, max: 0.0005 }
  dynamic_fraction: { distribution: uniform, min: 0.0002, max: 0.0010 }
purity:
  initial_pct: 99.99
  inlet_pct: { distribution: normal, mean: 99.98, sigma: 0.01, min: 99.95, max: 100.0 }
cycling:
  steps_per_cycle: 2
  jump_probability: 0.1
  fraction_step: { distribution: normal, mean: 0.0, sigma: 0.08, min: -0.25, max: 0.25 }
  intensity_bias: 0.02
  max_cycle_cap_fraction: 0.25
  secondary_flow: { distribution: uniform, min: 0.1, max: 0.6 }
  balanced_jitter: 0.1
  initial_mode: balanced
  initial_fill_fraction: 0.5
  mode_mix: { injection_heavy: 0.35, balanced: 0.40, withdrawal_heavy: 0.25 }
`
	require.NoError(t, os.WriteFile(path, []byte(override), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Global.NFacilities)
	assert.Equal(t, cycle.Monthly, cfg.Frequency())
	assert.Equal(t, "balanced", cfg.Cycling.InitialMode)
	assert.Equal(t, 2, cfg.Cycling.StepsPerCycle)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/settings.yaml")
	assert.ErrorContains(t, err, "read settings file")
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero facilities", func(c *Config) { c.Global.NFacilities = 0 }, "n_facilities"},
		{"bad start date", func(c *Config) { c.Global.StartDate = "01/06/2020" }, "start_date"},
		{"bad frequency", func(c *Config) { c.Global.Frequency = "hourly" }, "frequency"},
		{"zero years", func(c *Config) { c.Global.Years = 0 }, "years"},
		{"zero gas constant", func(c *Config) { c.Thermo.GasConstantJPerMolK = 0 }, "gas_constant"},
		{
			"all zero type weights",
			func(c *Config) {
				for name, tc := range c.FacilityTypes {
					tc.Weight = 0
					c.FacilityTypes[name] = tc
				}
			},
			"positive weight",
		},
		{
			"inverted type envelope",
			func(c *Config) {
				tc := c.FacilityTypes["salt_cavern"]
				tc.PressureMinMPa = 25
				c.FacilityTypes["salt_cavern"] = tc
			},
			"pressure_min_mpa",
		},
		{
			"salt cavern with porosity",
			func(c *Config) {
				tc := c.FacilityTypes["salt_cavern"]
				tc.Porosity = c.FacilityTypes["aquifer"].Porosity
				c.FacilityTypes["salt_cavern"] = tc
			},
			"must not configure porosity",
		},
		{"negative loss min", func(c *Config) { c.Losses.StaticFraction.Min = -1 }, "static_fraction"},
		{"purity above 100", func(c *Config) { c.Purity.InitialPct = 101 }, "initial_pct"},
		{"fill above one", func(c *Config) { c.Cycling.InitialFillFraction = 1.5 }, "initial_fill_fraction"},
		{"unknown initial mode", func(c *Config) { c.Cycling.InitialMode = "sideways" }, "initial_mode"},
		{"bad cycling section", func(c *Config) { c.Cycling.StepsPerCycle = 0 }, "steps_per_cycle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var cfgErr *domain.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestCycleParamsMapsModeMix(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	p := cfg.CycleParams()
	assert.Equal(t, [3]float64{0.35, 0.40, 0.25}, p.ModeMix)
	assert.Equal(t, 4, p.StepsPerCycle)
	assert.Equal(t, 0.25, p.MaxCycleCapFraction)
}

func TestLoadRuntimeDefaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("KAFKA_BROKERS", "")

	rt, err := LoadRuntime()
	require.NoError(t, err)
	assert.Equal(t, "info", rt.LogLevel)
	assert.Equal(t, "json", rt.LogFormat)
	assert.Empty(t, rt.HTTPAddr)
	assert.False(t, rt.KafkaEnabled())
}

func TestLoadRuntimeKafka(t *testing.T) {
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092")
	t.Setenv("KAFKA_TOPIC", "")

	rt, err := LoadRuntime()
	require.NoError(t, err)
	assert.True(t, rt.KafkaEnabled())
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, rt.KafkaBrokers)
	assert.Equal(t, "uhs-facility-timeseries", rt.KafkaTopic)
}

func TestLoadRuntimeRejectsBadFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", "xml")
	_, err := LoadRuntime()
	assert.ErrorContains(t, err, "LOG_FORMAT")
}
