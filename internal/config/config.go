package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/civic-risk-etl/internal/domain"
)

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	RawDir       string
	ProcessedDir string

	// Input snapshots. Violations and student housing are required inputs;
	// the rest enrich the run when present.
	ViolationsPath     string
	RequestsPath       string
	SAMPath            string
	AssessmentPath     string
	StudentHousingPath string
	DistrictsPath      string

	// AsOf is the date decay is computed against. Supplied explicitly so
	// reruns over the same snapshots are byte-identical; defaults to today
	// only when unset.
	AsOf time.Time

	HalfLifeDays      float64
	RequestMultiplier float64
	FlagThreshold     float64
	FuzzyMatch        bool
	FuzzyThreshold    float64

	LogLevel  string
	LogFormat string

	// MetricsAddr enables the /metrics endpoint during a run when non-empty.
	MetricsAddr string
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	rawDir := envOrDefault("RAW_DIR", "data/raw")
	processedDir := envOrDefault("PROCESSED_DIR", "data/processed")

	asOf, err := parseAsOf(os.Getenv("AS_OF_DATE"))
	if err != nil {
		return nil, err
	}

	halfLife, err := parsePositiveFloat("RISK_HALF_LIFE_DAYS", 180)
	if err != nil {
		return nil, err
	}
	multiplier, err := parsePositiveFloat("REQUEST_WEIGHT_MULTIPLIER", 0.4)
	if err != nil {
		return nil, err
	}
	if multiplier > 1 {
		return nil, errors.New("REQUEST_WEIGHT_MULTIPLIER must be in (0, 1]: 311 requests never outweigh violations")
	}
	threshold, err := parsePositiveFloat("BAD_LANDLORD_THRESHOLD", 25)
	if err != nil {
		return nil, err
	}
	fuzzyThreshold, err := parsePositiveFloat("FUZZY_MATCH_THRESHOLD", 0.6)
	if err != nil {
		return nil, err
	}
	if fuzzyThreshold > 1 {
		return nil, errors.New("FUZZY_MATCH_THRESHOLD must be in (0, 1]")
	}

	cfg := &Config{
		RawDir:       rawDir,
		ProcessedDir: processedDir,

		ViolationsPath:     envOrDefault("VIOLATIONS_CSV", filepath.Join(rawDir, "violations.csv")),
		RequestsPath:       envOrDefault("REQUESTS_311_CSV", filepath.Join(rawDir, "service_requests_311.csv")),
		SAMPath:            envOrDefault("SAM_CSV", filepath.Join(rawDir, "sam_addresses.csv")),
		AssessmentPath:     envOrDefault("ASSESSMENT_CSV", filepath.Join(rawDir, "property_assessment.csv")),
		StudentHousingPath: envOrDefault("STUDENT_HOUSING_CSV", filepath.Join(rawDir, "student_housing.csv")),
		DistrictsPath:      envOrDefault("DISTRICTS_GEOJSON", filepath.Join(rawDir, "city_council_districts.geojson")),

		AsOf:              asOf,
		HalfLifeDays:      halfLife,
		RequestMultiplier: multiplier,
		FlagThreshold:     threshold,
		FuzzyMatch:        envOrDefault("FUZZY_MATCH", "true") == "true",
		FuzzyThreshold:    fuzzyThreshold,

		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		LogFormat:   envOrDefault("LOG_FORMAT", "json"),
		MetricsAddr: os.Getenv("METRICS_ADDR"),
	}
	return cfg, nil
}

// RiskConfig derives the scoring parameters for this run.
func (c *Config) RiskConfig() domain.RiskConfig {
	return domain.RiskConfig{
		AsOf:              c.AsOf,
		HalfLifeDays:      c.HalfLifeDays,
		RequestMultiplier: c.RequestMultiplier,
		FlagThreshold:     c.FlagThreshold,
	}
}

// RegistryOptions derives the registry resolution options for this run.
func (c *Config) RegistryOptions() domain.RegistryOptions {
	return domain.RegistryOptions{Fuzzy: c.FuzzyMatch, FuzzyThreshold: c.FuzzyThreshold}
}

func parseAsOf(raw string) (time.Time, error) {
	if raw == "" {
		return domain.DefaultAsOf(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid AS_OF_DATE %q: want YYYY-MM-DD", raw)
	}
	return t.UTC(), nil
}

func parsePositiveFloat(name string, fallback float64) (float64, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s %q: want a positive number", name, raw)
	}
	return v, nil
}

func envOrDefault(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
