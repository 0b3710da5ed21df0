// Command validate performs end-to-end integrity checks over a generated
// dataset directory: table shape and referential integrity, physical
// envelopes, mass-balance accounting, and cycle-level consistency between
// the timeseries and summary tables.
//
// Usage:
//
//	go run ./cmd/validate -data data/out -config settings.yaml
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/uhs-mrv-datagen/internal/adapter/csvout"
	"github.com/couchcryptid/uhs-mrv-datagen/internal/config"
)

// residualTolerance bounds the allowed drift when re-deriving a row's
// residual from its neighbors. Purely numerical; the physical threshold
// comes from the settings file.
const residualTolerance = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data", "", "directory containing the generated CSV tables")
	configPath := flag.String("config", "", "settings YAML file (embedded defaults when empty)")
	flag.Parse()

	if *dataDir == "" {
		flag.Usage()
		os.Exit(1)
	}
	if code := run(*dataDir, *configPath); code != 0 {
		os.Exit(code)
	}
}

func run(dataDir, configPath string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load settings: %v\n", err)
		return 1
	}

	fmt.Println("=== UHS Dataset Integrity Validation ===")
	fmt.Println()

	facilities, err := loadTable(filepath.Join(dataDir, csvout.MetadataFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load facility metadata: %v\n", err)
		return 1
	}
	timesteps, err := loadTable(filepath.Join(dataDir, csvout.TimeseriesFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load facility timeseries: %v\n", err)
		return 1
	}
	cycles, err := loadTable(filepath.Join(dataDir, csvout.CyclesFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load cycle summaries: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateTableShape(cfg, facilities, timesteps, cycles),
		validateEnvelopes(cfg, facilities, timesteps),
		validateMassBalance(cfg, facilities, timesteps),
		validateCycleConsistency(cfg, facilities, timesteps, cycles),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-44s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d facilities, %d timesteps, %d cycles\n",
		len(facilities), len(timesteps), len(cycles))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		limit := min(len(p.errors), 25)
		for i := 0; i < limit; i++ {
			fmt.Printf("  [%d] %s\n", i+1, p.errors[i])
		}
		if len(p.errors) > limit {
			fmt.Printf("  ... and %d more\n", len(p.errors)-limit)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

// row is a parsed CSV row with field values keyed by header name.
type row struct {
	lineNum int
	fields  map[string]string
}

func (r row) str(col string) string { return r.fields[col] }

func (r row) float(col string) float64 {
	v, err := strconv.ParseFloat(r.fields[col], 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func (r row) int(col string) int {
	v, _ := strconv.Atoi(r.fields[col])
	return v
}

func loadTable(path string) ([]row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) < 2 {
		return nil, fmt.Errorf("no data rows in %s", path)
	}

	header := all[0]
	rows := make([]row, 0, len(all)-1)
	for i, rec := range all[1:] {
		fields := make(map[string]string, len(header))
		for j, h := range header {
			if j < len(rec) {
				fields[h] = strings.TrimSpace(rec[j])
			}
		}
		rows = append(rows, row{lineNum: i + 2, fields: fields})
	}
	return rows, nil
}

// facilityIndex maps facility IDs to their metadata rows.
func facilityIndex(facilities []row) map[string]row {
	idx := make(map[string]row, len(facilities))
	for _, f := range facilities {
		idx[f.str("facility_id")] = f
	}
	return idx
}

// ── Phase 1: Table Shape ──
// Row counts match the configuration and every timeseries and cycle row
// references a known facility.

func validateTableShape(cfg *config.Config, facilities, timesteps, cycles []row) *phase {
	p := &phase{name: "Phase 1: Table Shape & References"}

	if len(facilities) != cfg.Global.NFacilities {
		p.errorf("facility count: expected %d, got %d", cfg.Global.NFacilities, len(facilities))
	}

	stepsPerFacility := cfg.Global.Years * cfg.Frequency().StepsPerYear()
	expected := len(facilities) * stepsPerFacility
	if len(timesteps) != expected {
		p.errorf("timestep count: expected %d (%d per facility), got %d", expected, stepsPerFacility, len(timesteps))
	}

	idx := facilityIndex(facilities)
	perFacility := map[string]int{}
	for _, r := range timesteps {
		id := r.str("facility_id")
		if _, ok := idx[id]; !ok {
			p.errorf("timeseries line %d: unknown facility %q", r.lineNum, id)
			continue
		}
		perFacility[id]++
	}
	for id, n := range perFacility {
		if n != stepsPerFacility {
			p.errorf("facility %s: expected %d timesteps, got %d", id, stepsPerFacility, n)
		}
	}

	for _, r := range cycles {
		if _, ok := idx[r.str("facility_id")]; !ok {
			p.errorf("cycle_summary line %d: unknown facility %q", r.lineNum, r.str("facility_id"))
		}
	}
	return p
}

// ── Phase 2: Physical Envelopes ──
// Pressure, temperature, working gas, and purity stay inside their
// configured bounds on every row.

func validateEnvelopes(cfg *config.Config, facilities, timesteps []row) *phase {
	p := &phase{name: "Phase 2: Physical Envelopes"}
	idx := facilityIndex(facilities)
	margin := cfg.Validation.PressureMarginMPa

	for _, r := range timesteps {
		fac, ok := idx[r.str("facility_id")]
		if !ok {
			continue
		}

		pressure := r.float("pressure_mpa")
		pMin, pMax := fac.float("pressure_min_mpa"), fac.float("pressure_max_mpa")
		if pressure < pMin-margin || pressure > pMax+margin {
			p.errorf("line %d: pressure %.4f MPa outside [%.4f, %.4f]", r.lineNum, pressure, pMin, pMax)
		}

		temp := r.float("temperature_c")
		if temp < cfg.Validation.TemperatureC.Min || temp > cfg.Validation.TemperatureC.Max {
			p.errorf("line %d: temperature %.2f C outside [%.1f, %.1f]", r.lineNum, temp, cfg.Validation.TemperatureC.Min, cfg.Validation.TemperatureC.Max)
		}

		mass := r.float("working_gas_kg")
		capacity := fac.float("working_gas_capacity_kg")
		if mass < 0 || mass > capacity*(1+residualTolerance) {
			p.errorf("line %d: working gas %.1f kg outside [0, %.1f]", r.lineNum, mass, capacity)
		}

		for _, col := range []string{"purity_in_pct", "purity_out_pct", "working_purity_pct"} {
			v := r.float(col)
			if v < cfg.Validation.PurityPct.Min || v > cfg.Validation.PurityPct.Max {
				p.errorf("line %d: %s %.4f outside [%.1f, %.1f]", r.lineNum, col, v, cfg.Validation.PurityPct.Min, cfg.Validation.PurityPct.Max)
			}
		}
	}
	return p
}

// ── Phase 3: Mass Balance ──
// Re-derives each row's residual from the previous row's inventory and the
// row's flows, and checks the residual magnitude distribution against the
// configured thresholds.

func validateMassBalance(cfg *config.Config, facilities, timesteps []row) *phase {
	p := &phase{name: "Phase 3: Mass Balance"}
	idx := facilityIndex(facilities)

	prevMass := map[string]float64{}
	var total, withinThreshold int

	for _, r := range timesteps {
		id := r.str("facility_id")
		fac, ok := idx[id]
		if !ok {
			continue
		}
		capacity := fac.float("working_gas_capacity_kg")
		mass := r.float("working_gas_kg")
		residual := r.float("mass_balance_residual")

		if prev, seen := prevMass[id]; seen {
			expected := prev + r.float("h2_injected_kg") - r.float("h2_withdrawn_kg") -
				r.float("static_loss_kg") - r.float("dynamic_loss_kg")
			derived := (mass - expected) / capacity
			if math.Abs(derived-residual) > residualTolerance {
				p.errorf("line %d: recorded residual %g disagrees with derived %g", r.lineNum, residual, derived)
			}
		}
		prevMass[id] = mass

		total++
		if math.Abs(residual) <= cfg.Validation.ResidualAbsMax {
			withinThreshold++
		}
	}

	if total > 0 {
		frac := float64(withinThreshold) / float64(total)
		if frac < cfg.Validation.ResidualPassFraction {
			p.errorf("only %.4f of rows within |residual| <= %g (need %.4f)",
				frac, cfg.Validation.ResidualAbsMax, cfg.Validation.ResidualPassFraction)
		}
	}
	return p
}

// ── Phase 4: Cycle Consistency ──
// Cycle summaries agree with the timesteps they aggregate, and per-cycle
// throughput respects the per-direction cap.

func validateCycleConsistency(cfg *config.Config, facilities, timesteps, cycles []row) *phase {
	p := &phase{name: "Phase 4: Cycle Consistency & Caps"}
	idx := facilityIndex(facilities)

	type key struct {
		facility string
		cycle    int
	}
	type totals struct {
		injected  float64
		withdrawn float64
		steps     int
	}
	agg := map[key]*totals{}
	for _, r := range timesteps {
		k := key{r.str("facility_id"), r.int("cycle_index")}
		t := agg[k]
		if t == nil {
			t = &totals{}
			agg[k] = t
		}
		t.injected += r.float("h2_injected_kg")
		t.withdrawn += r.float("h2_withdrawn_kg")
		t.steps++
	}

	capFraction := cfg.Cycling.MaxCycleCapFraction
	seen := map[key]bool{}
	for _, r := range cycles {
		k := key{r.str("facility_id"), r.int("cycle_index")}
		seen[k] = true

		t := agg[k]
		if t == nil {
			p.errorf("cycle_summary line %d: no timesteps for %s cycle %d", r.lineNum, k.facility, k.cycle)
			continue
		}
		if !approxEq(t.injected, r.float("total_injected_kg")) {
			p.errorf("cycle_summary line %d: injected %.3f disagrees with timestep sum %.3f", r.lineNum, r.float("total_injected_kg"), t.injected)
		}
		if !approxEq(t.withdrawn, r.float("total_withdrawn_kg")) {
			p.errorf("cycle_summary line %d: withdrawn %.3f disagrees with timestep sum %.3f", r.lineNum, r.float("total_withdrawn_kg"), t.withdrawn)
		}

		fac, ok := idx[k.facility]
		if !ok {
			continue
		}
		capKg := capFraction * fac.float("working_gas_capacity_kg")
		if t.injected > capKg*(1+residualTolerance) {
			p.errorf("%s cycle %d: injected %.1f kg exceeds cap %.1f kg", k.facility, k.cycle, t.injected, capKg)
		}
		if t.withdrawn > capKg*(1+residualTolerance) {
			p.errorf("%s cycle %d: withdrawn %.1f kg exceeds cap %.1f kg", k.facility, k.cycle, t.withdrawn, capKg)
		}
	}

	for k := range agg {
		if !seen[k] {
			p.errorf("%s cycle %d present in timeseries but missing from cycle_summary", k.facility, k.cycle)
		}
	}
	return p
}

// ── Helpers ──

func approxEq(a, b float64) bool {
	diff := math.Abs(a - b)
	if diff < 1e-6 {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return diff <= 1e-9*scale
}
