// Package csvout writes the three dataset tables as CSV files. Column order
// is fixed and float formatting is shortest-roundtrip, so identical runs
// produce byte-identical files.
package csvout

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/uhs-mrv-datagen/internal/domain"
)

// Output file names within the target directory.
const (
	MetadataFile   = "facility_metadata.csv"
	TimeseriesFile = "facility_timeseries.csv"
	CyclesFile     = "cycle_summary.csv"
)

var metadataHeader = []string{
	"facility_id", "facility_type", "country_code", "region",
	"latitude", "longitude", "depth_m", "volume_m3",
	"porosity", "permeability_md",
	"pressure_min_mpa", "pressure_max_mpa",
	"base_temperature_c", "temperature_gradient_c_per_km",
	"working_gas_capacity_kg", "cushion_gas_kg",
}

var timeseriesHeader = []string{
	"facility_id", "timestamp", "cycle_index", "cycle_mode",
	"pressure_mpa", "temperature_c", "working_gas_kg",
	"h2_injected_kg", "h2_withdrawn_kg",
	"static_loss_kg", "dynamic_loss_kg",
	"purity_in_pct", "purity_out_pct", "working_purity_pct",
	"mass_balance_residual", "generated_at",
}

var cyclesHeader = []string{
	"facility_id", "cycle_index", "cycle_mode", "cycle_start", "cycle_end",
	"total_injected_kg", "total_withdrawn_kg",
	"total_static_loss_kg", "total_dynamic_loss_kg",
	"min_pressure_mpa", "max_pressure_mpa",
	"min_temperature_c", "max_temperature_c",
	"avg_purity_in_pct", "avg_purity_out_pct",
	"cycle_efficiency", "mass_balance_residual",
}

// Writer persists run output under a single directory.
type Writer struct {
	dir string
}

// NewWriter creates the target directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// WriteFacilities writes the facility_metadata table.
func (w *Writer) WriteFacilities(facilities []domain.FacilityConfig) error {
	return w.writeFile(MetadataFile, metadataHeader, len(facilities), func(i int) []string {
		f := facilities[i]
		return []string{
			f.ID,
			string(f.Type),
			f.CountryCode,
			f.Region,
			formatFloat(f.Latitude),
			formatFloat(f.Longitude),
			formatFloat(f.DepthM),
			formatFloat(f.VolumeM3),
			formatOptional(f.Porosity),
			formatOptional(f.PermeabilityMD),
			formatFloat(f.PressureMinMPa),
			formatFloat(f.PressureMaxMPa),
			formatFloat(f.BaseTemperatureC),
			formatFloat(f.TemperatureGradientCPerKm),
			formatFloat(f.WorkingGasCapacityKg),
			formatFloat(f.CushionGasKg),
		}
	})
}

// WriteTimesteps writes the facility_timeseries table.
func (w *Writer) WriteTimesteps(records []domain.TimestepRecord) error {
	return w.writeFile(TimeseriesFile, timeseriesHeader, len(records), func(i int) []string {
		r := records[i]
		return []string{
			r.FacilityID,
			formatTime(r.Timestamp),
			strconv.Itoa(r.CycleIndex),
			r.Mode.String(),
			formatFloat(r.PressureMPa),
			formatFloat(r.TemperatureC),
			formatFloat(r.WorkingGasKg),
			formatFloat(r.InjectedKg),
			formatFloat(r.WithdrawnKg),
			formatFloat(r.StaticLossKg),
			formatFloat(r.DynamicLossKg),
			formatFloat(r.InletPurityPct),
			formatFloat(r.OutletPurityPct),
			formatFloat(r.WorkingPurityPct),
			formatFloat(r.MassBalanceResidual),
			formatTime(r.GeneratedAt),
		}
	})
}

// WriteCycles writes the cycle_summary table. A NaN efficiency (no injection
// that cycle) serializes as an empty cell.
func (w *Writer) WriteCycles(records []domain.CycleSummaryRecord) error {
	return w.writeFile(CyclesFile, cyclesHeader, len(records), func(i int) []string {
		r := records[i]
		return []string{
			r.FacilityID,
			strconv.Itoa(r.CycleIndex),
			r.Mode.String(),
			formatTime(r.StartTime),
			formatTime(r.EndTime),
			formatFloat(r.TotalInjectedKg),
			formatFloat(r.TotalWithdrawnKg),
			formatFloat(r.TotalStaticLossKg),
			formatFloat(r.TotalDynamicLossKg),
			formatFloat(r.MinPressureMPa),
			formatFloat(r.MaxPressureMPa),
			formatFloat(r.MinTemperatureC),
			formatFloat(r.MaxTemperatureC),
			formatFloat(r.AvgInletPurityPct),
			formatFloat(r.AvgOutletPurityPct),
			formatEfficiency(r.CycleEfficiency),
			formatFloat(r.MassBalanceResidual),
		}
	})
}

func (w *Writer) writeFile(name string, header []string, n int, row func(int) []string) error {
	path := filepath.Join(w.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write %s header: %w", name, err)
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(row(i)); err != nil {
			return fmt.Errorf("write %s row %d: %w", name, i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", name, err)
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatEfficiency(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return formatFloat(v)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
