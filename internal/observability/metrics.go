package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for a
// generation run.
type Metrics struct {
	FacilitiesGenerated prometheus.Counter
	TimestepsGenerated  prometheus.Counter
	CyclesGenerated     prometheus.Counter
	ClampEvents         prometheus.Counter
	RunActive           prometheus.Gauge

	// Distribution of per-step mass-balance residual magnitudes and of
	// per-facility simulation time.
	ResidualMagnitude prometheus.Histogram
	FacilityDuration  prometheus.Histogram

	// Kafka sink metrics.
	RecordsPublished prometheus.Counter
	PublishErrors    prometheus.Counter
}

// NewMetrics creates and registers all run metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FacilitiesGenerated,
		m.TimestepsGenerated,
		m.CyclesGenerated,
		m.ClampEvents,
		m.RunActive,
		m.ResidualMagnitude,
		m.FacilityDuration,
		m.RecordsPublished,
		m.PublishErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics without touching the default registry
// to avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FacilitiesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uhs_datagen",
			Name:      "facilities_generated_total",
			Help:      "Facilities fully simulated this run.",
		}),
		TimestepsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uhs_datagen",
			Name:      "timesteps_generated_total",
			Help:      "Timestep rows emitted across all facilities.",
		}),
		CyclesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uhs_datagen",
			Name:      "cycles_generated_total",
			Help:      "Cycle summary rows emitted across all facilities.",
		}),
		ClampEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uhs_datagen",
			Name:      "clamp_events_total",
			Help:      "Timesteps where the working gas mass hit a bound and was clamped.",
		}),
		RunActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "uhs_datagen",
			Name:      "run_active",
			Help:      "1 while a generation run is in progress, 0 otherwise.",
		}),
		ResidualMagnitude: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "uhs_datagen",
			Name:      "mass_balance_residual_abs",
			Help:      "Absolute capacity-normalized mass-balance residual per timestep.",
			Buckets:   []float64{1e-12, 1e-9, 1e-6, 1e-4, 1e-3, 1e-2, 0.1, 1},
		}),
		FacilityDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "uhs_datagen",
			Name:      "facility_simulation_duration_seconds",
			Help:      "Wall time to simulate one facility end to end.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uhs_datagen",
			Name:      "records_published_total",
			Help:      "Timestep records published to the Kafka sink.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uhs_datagen",
			Name:      "publish_errors_total",
			Help:      "Failed Kafka publish attempts.",
		}),
	}
}
