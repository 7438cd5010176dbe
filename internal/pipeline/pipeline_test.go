package pipeline_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/civic-risk-etl/internal/adapter/tabular"
	"github.com/couchcryptid/civic-risk-etl/internal/config"
	"github.com/couchcryptid/civic-risk-etl/internal/domain"
	"github.com/couchcryptid/civic-risk-etl/internal/observability"
	"github.com/couchcryptid/civic-risk-etl/internal/pipeline"
)

var testAsOf = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	rawDir := t.TempDir()
	return &config.Config{
		RawDir:       rawDir,
		ProcessedDir: t.TempDir(),

		ViolationsPath:     filepath.Join(rawDir, "violations.csv"),
		RequestsPath:       filepath.Join(rawDir, "service_requests_311.csv"),
		SAMPath:            filepath.Join(rawDir, "sam_addresses.csv"),
		AssessmentPath:     filepath.Join(rawDir, "property_assessment.csv"),
		StudentHousingPath: filepath.Join(rawDir, "student_housing.csv"),
		DistrictsPath:      filepath.Join(rawDir, "city_council_districts.geojson"),

		AsOf:              testAsOf,
		HalfLifeDays:      180,
		RequestMultiplier: 0.4,
		FlagThreshold:     25,
		FuzzyMatch:        true,
		FuzzyThreshold:    0.6,
	}
}

func newTestPipeline(t *testing.T, cfg *config.Config) *pipeline.Pipeline {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return pipeline.New(cfg, logger, observability.NewMetricsForTesting())
}

func writeRaw(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// writeFixtures lays down a small multi-source snapshot: two properties
// linked across all sources (12 Oak St in D1, 9 Elm Ct in D2), one
// assessment-only property, one unlinkable violation.
func writeFixtures(t *testing.T, cfg *config.Config) {
	t.Helper()
	date := func(daysAgo int) string {
		return testAsOf.AddDate(0, 0, -daysAgo).Format("2006-01-02")
	}

	writeRaw(t, cfg.StudentHousingPath,
		"address,district,year,student_count,units,landlord\n"+
			"12 Oak Street,D1,2024,10,4,Acme\n"+
			"12 Oak St,D1,2023,8,4,Acme\n"+
			"9 Elm Court,D2,2024,6,2,Acme\n")

	writeRaw(t, cfg.SAMPath,
		"sam_id,address,district,latitude,longitude\n"+
			"S1,12 Oak St,D1,5.0,5.0\n"+
			"S2,9 Elm Ct,D2,5.0,15.0\n")

	writeRaw(t, cfg.AssessmentPath,
		"parcel_id,address,district,owner\n"+
			"P1,12 Oak Street,D1,Acme\n"+
			"P2,9 Elm Ct,D2,Acme\n"+
			"P3,42 Solo Pl,D2,Solo Owner\n")

	writeRaw(t, cfg.ViolationsPath, fmt.Sprintf(
		"address,district,date_issued,description,status\n"+
			"12 Oak St,D1,%s,unsafe wiring,Open\n"+
			"12 Oak Street,D1,%s,minor trash,Closed\n"+
			"9 Elm Ct,D2,%s,electrical hazard,Open\n"+
			"9 Elm Court,D2,%s,fire escape blocked,Open\n"+
			"999 Nowhere Lane,,%s,critical collapse,Open\n",
		date(0), date(360), date(0), date(0), date(0)))

	writeRaw(t, cfg.RequestsPath, fmt.Sprintf(
		"address,district,open_dt,case_title\n"+
			"9 Elm Ct,D2,%s,moderate pest issue\n",
		date(0)))

	writeRaw(t, cfg.DistrictsPath, `{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "properties": {"district": "D1"}, "geometry": {"type": "Polygon", "coordinates": [[[0,0],[10,0],[10,10],[0,10],[0,0]]]}},
			{"type": "Feature", "properties": {"district": "D2"}, "geometry": {"type": "Polygon", "coordinates": [[[10,0],[20,0],[20,10],[10,10],[10,0]]]}}
		]
	}`)
}

func readTable(t *testing.T, cfg *config.Config, name string) *tabular.Table {
	t.Helper()
	table, err := tabular.ReadFile(filepath.Join(cfg.ProcessedDir, name))
	require.NoError(t, err)
	return table
}

func TestRunAllEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	writeFixtures(t, cfg)
	p := newTestPipeline(t, cfg)

	require.Error(t, p.CheckReadiness(context.Background()), "not ready before any stage")
	require.NoError(t, p.RunAll(context.Background()))
	assert.NoError(t, p.CheckReadiness(context.Background()))

	// Registry: Oak and Elm linked across three sources, Solo Pl falls back.
	registry := readTable(t, cfg, pipeline.PropertyRegistryFile)
	require.Len(t, registry.Rows, 3)
	byAddress := make(map[string]domain.RawRow)
	for _, row := range registry.Rows {
		byAddress[row["address"]] = row
	}
	oak := byAddress["12 Oak Street"]
	require.NotNil(t, oak)
	assert.Equal(t, "0", oak["unmatched"])
	assert.Equal(t, "assessment:P1|sam:S1|student:12 oak st", oak["sources"])
	solo := byAddress["42 Solo Pl"]
	require.NotNil(t, solo)
	assert.Equal(t, "1", solo["unmatched"])

	// Risk: severity-5 today (10.0) plus severity-1 two half-lives old (0.5).
	risk := readTable(t, cfg, pipeline.PropertyRiskFile)
	require.Len(t, risk.Rows, 3)
	riskByAddress := make(map[string]domain.RawRow)
	for _, row := range risk.Rows {
		riskByAddress[row["address"]] = row
	}
	assert.Equal(t, "10.5000", riskByAddress["12 Oak Street"]["risk_score"])
	assert.Equal(t, "2", riskByAddress["12 Oak Street"]["violation_events"])
	// Elm: two severity-5-and-4 violations (18.0) plus one 311 at 0.4*4.
	assert.Equal(t, "19.6000", riskByAddress["9 Elm Court"]["risk_score"])
	assert.Equal(t, "0.0000", riskByAddress["42 Solo Pl"]["risk_score"])

	// Landlords: Acme crosses the threshold only in aggregate.
	landlords := readTable(t, cfg, pipeline.LandlordRiskFile)
	require.Len(t, landlords.Rows, 2)
	acme := landlords.Rows[0]
	assert.Equal(t, "Acme", acme["landlord"])
	assert.Equal(t, "2", acme["property_count"])
	assert.Equal(t, "30.1000", acme["aggregate_score"])
	assert.Equal(t, "1", acme["flagged"])
	assert.Equal(t, "1", riskByAddress["12 Oak Street"]["flagged_landlord"])
	assert.Equal(t, "0", riskByAddress["42 Solo Pl"]["flagged_landlord"])

	// Districts: Oak spatially in D1, Elm in D2, Solo via attribute.
	districts := readTable(t, cfg, pipeline.DistrictRiskFile)
	require.Len(t, districts.Rows, 2)
	d1, d2 := districts.Rows[0], districts.Rows[1]
	assert.Equal(t, "D1", d1["district_id"])
	assert.Equal(t, "1", d1["property_count"])
	assert.Equal(t, "1", d1["spatial_matches"])
	assert.Equal(t, "D2", d2["district_id"])
	assert.Equal(t, "2", d2["property_count"])
	assert.Equal(t, "1", d2["spatial_matches"])
	assert.Equal(t, "1", d2["attribute_matches"])

	// Trends: three (year, district) buckets in sorted order.
	trends := readTable(t, cfg, pipeline.DistrictTrendFile)
	require.Len(t, trends.Rows, 3)
	assert.Equal(t, "2023", trends.Rows[0]["year"])
	assert.Equal(t, "D1", trends.Rows[0]["district"])
	assert.Equal(t, "2024", trends.Rows[1]["year"])
	assert.Equal(t, "D1", trends.Rows[1]["district"])
	assert.Equal(t, "D2", trends.Rows[2]["district"])
	assert.Equal(t, "3.00", trends.Rows[2]["students_per_unit"])
}

func TestRunAllIsByteIdenticalOnRerun(t *testing.T) {
	cfg := testConfig(t)
	writeFixtures(t, cfg)
	p := newTestPipeline(t, cfg)

	require.NoError(t, p.RunAll(context.Background()))

	outputs := []string{
		pipeline.StudentHousingCleanFile,
		pipeline.ViolationsCleanFile,
		pipeline.RequestsCleanFile,
		pipeline.SAMCleanFile,
		pipeline.AssessmentCleanFile,
		pipeline.PropertyRegistryFile,
		pipeline.PropertyRiskFile,
		pipeline.LandlordRiskFile,
		pipeline.DistrictRiskFile,
		pipeline.DistrictTrendFile,
	}
	first := make(map[string][]byte, len(outputs))
	for _, name := range outputs {
		data, err := os.ReadFile(filepath.Join(cfg.ProcessedDir, name))
		require.NoError(t, err)
		first[name] = data
	}

	require.NoError(t, p.RunAll(context.Background()))
	for _, name := range outputs {
		data, err := os.ReadFile(filepath.Join(cfg.ProcessedDir, name))
		require.NoError(t, err)
		assert.Equal(t, first[name], data, "output %s changed between reruns", name)
	}
}

func TestRunAllWithoutOptionalInputs(t *testing.T) {
	cfg := testConfig(t)
	writeRaw(t, cfg.StudentHousingPath,
		"address,district,year,student_count,units,landlord\n"+
			"12 Oak St,D1,2024,10,4,Acme\n")
	writeRaw(t, cfg.ViolationsPath,
		"address,district,date_issued,description,status\n"+
			"12 Oak St,D1,2025-05-01,minor issue,Open\n")

	p := newTestPipeline(t, cfg)
	require.NoError(t, p.RunAll(context.Background()))

	// Single-source records still appear under synthesized keys, and
	// districts come from attributes with no boundary file.
	registry := readTable(t, cfg, pipeline.PropertyRegistryFile)
	require.Len(t, registry.Rows, 1)
	assert.Equal(t, "1", registry.Rows[0]["unmatched"])

	districts := readTable(t, cfg, pipeline.DistrictRiskFile)
	require.Len(t, districts.Rows, 1)
	assert.Equal(t, "D1", districts.Rows[0]["district_id"])
	assert.Equal(t, "1", districts.Rows[0]["attribute_matches"])
}

func TestRunNormalizeMissingRequiredInput(t *testing.T) {
	cfg := testConfig(t)
	p := newTestPipeline(t, cfg)

	err := p.RunNormalize(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingRequiredInput)
}

func TestRunRiskRequiresRegistry(t *testing.T) {
	cfg := testConfig(t)
	writeFixtures(t, cfg)
	p := newTestPipeline(t, cfg)

	err := p.RunRisk(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingRequiredInput)
}

func TestRunStageUnknownName(t *testing.T) {
	cfg := testConfig(t)
	p := newTestPipeline(t, cfg)

	err := p.RunStage(context.Background(), "compact")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown stage")
}

func TestRunAllCancelledContext(t *testing.T) {
	cfg := testConfig(t)
	writeFixtures(t, cfg)
	p := newTestPipeline(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.RunAll(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
