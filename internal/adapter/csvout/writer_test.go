package csvout

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/uhs-mrv-datagen/internal/domain"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteFacilities(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	porosity, permeability := 0.2, 150.0
	facilities := []domain.FacilityConfig{
		{
			ID:                   "UHS_001",
			Type:                 domain.SaltCavern,
			CountryCode:          "US",
			Region:               "Gulf Coast",
			DepthM:               1200,
			VolumeM3:             450000,
			PressureMinMPa:       6,
			PressureMaxMPa:       20,
			WorkingGasCapacityKg: 1e6,
			CushionGasKg:         8e5,
		},
		{
			ID:                   "UHS_002",
			Type:                 domain.DepletedReservoir,
			Porosity:             &porosity,
			PermeabilityMD:       &permeability,
			PressureMinMPa:       8,
			PressureMaxMPa:       28,
			WorkingGasCapacityKg: 2e6,
		},
	}
	require.NoError(t, w.WriteFacilities(facilities))

	rows := readCSV(t, filepath.Join(dir, MetadataFile))
	require.Len(t, rows, 3)
	assert.Equal(t, metadataHeader, rows[0])

	// Salt cavern leaves the rock-matrix cells empty.
	salt := rows[1]
	assert.Equal(t, "UHS_001", salt[0])
	assert.Equal(t, "salt_cavern", salt[1])
	assert.Empty(t, salt[8])
	assert.Empty(t, salt[9])

	depleted := rows[2]
	assert.Equal(t, "0.2", depleted[8])
	assert.Equal(t, "150", depleted[9])
}

func TestWriteTimesteps(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	ts := time.Date(2020, 1, 6, 0, 0, 0, 0, time.UTC)
	records := []domain.TimestepRecord{{
		FacilityID:          "UHS_001",
		Timestamp:           ts,
		CycleIndex:          2,
		Mode:                domain.WithdrawalHeavy,
		PressureMPa:         12.25,
		TemperatureC:        45.5,
		WorkingGasKg:        500000,
		WithdrawnKg:         62500,
		MassBalanceResidual: 0,
		GeneratedAt:         ts,
	}}
	require.NoError(t, w.WriteTimesteps(records))

	rows := readCSV(t, filepath.Join(dir, TimeseriesFile))
	require.Len(t, rows, 2)
	assert.Equal(t, timeseriesHeader, rows[0])

	row := rows[1]
	assert.Equal(t, "UHS_001", row[0])
	assert.Equal(t, "2020-01-06T00:00:00Z", row[1])
	assert.Equal(t, "2", row[2])
	assert.Equal(t, "withdrawal_heavy", row[3])
	assert.Equal(t, "12.25", row[4])
	assert.Equal(t, "500000", row[6])
	assert.Equal(t, "0", row[14])
}

func TestWriteCyclesNaNEfficiencyIsEmptyCell(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	records := []domain.CycleSummaryRecord{
		{FacilityID: "UHS_001", CycleIndex: 0, Mode: domain.Balanced, CycleEfficiency: 0.85},
		{FacilityID: "UHS_001", CycleIndex: 1, Mode: domain.WithdrawalHeavy, CycleEfficiency: math.NaN()},
	}
	require.NoError(t, w.WriteCycles(records))

	rows := readCSV(t, filepath.Join(dir, CyclesFile))
	require.Len(t, rows, 3)
	assert.Equal(t, cyclesHeader, rows[0])
	assert.Equal(t, "0.85", rows[1][15])
	assert.Empty(t, rows[2][15])
}

func TestIdenticalInputProducesIdenticalFiles(t *testing.T) {
	records := []domain.TimestepRecord{{
		FacilityID:   "UHS_001",
		Timestamp:    time.Date(2020, 1, 6, 0, 0, 0, 0, time.UTC),
		PressureMPa:  13.000000000000002,
		WorkingGasKg: 1.0 / 3.0,
	}}

	write := func() []byte {
		dir := t.TempDir()
		w, err := NewWriter(dir)
		require.NoError(t, err)
		require.NoError(t, w.WriteTimesteps(records))
		data, err := os.ReadFile(filepath.Join(dir, TimeseriesFile))
		require.NoError(t, err)
		return data
	}

	assert.Equal(t, write(), write())
}
