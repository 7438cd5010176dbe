// Command validate performs end-to-end integrity checks over the processed
// tables written by a pipeline run: cleaned-table completeness, registry key
// invariants, score consistency between the property and landlord tables, and
// row conservation into the district and trend aggregates.
//
// Usage:
//
//	go run ./cmd/validate -processed-dir data/processed
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/civic-risk-etl/internal/adapter/tabular"
	"github.com/couchcryptid/civic-risk-etl/internal/domain"
	"github.com/couchcryptid/civic-risk-etl/internal/pipeline"
)

// maxNullRate is the tolerated share of empty cells in a key column of a
// cleaned table before the snapshot is considered degraded.
const maxNullRate = 0.2

// scoreTolerance absorbs the 4-decimal rounding the tables are written with.
const scoreTolerance = 1e-3

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
	processedDir := flag.String("processed-dir", "", "directory containing processed pipeline tables")
	flag.Parse()

	if *processedDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*processedDir); code != 0 {
		os.Exit(code)
	}
}

func run(dir string) int {
	fmt.Println("=== Civic Risk Table Validation ===")
	fmt.Println()

	tables, err := loadTables(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateCleanedTables(tables),
		validateRegistry(tables),
		validateScores(tables),
		validateAggregates(tables),
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

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// loadTables reads every processed table into memory, keyed by filename.
func loadTables(dir string) (map[string]*tabular.Table, error) {
	names := []string{
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
	tables := make(map[string]*tabular.Table, len(names))
	for _, name := range names {
		t, err := tabular.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		tables[name] = t
	}
	return tables, nil
}

// ── Phase 1: Cleaned tables ──
// Key columns must be present and mostly populated.

func validateCleanedTables(tables map[string]*tabular.Table) *phase {
	p := &phase{name: "Phase 1: Cleaned Tables (completeness)"}

	checks := []struct {
		file    string
		columns []string
	}{
		{pipeline.StudentHousingCleanFile, []string{"address", "year", "student_count"}},
		{pipeline.ViolationsCleanFile, []string{"address", "date", "severity_code"}},
		{pipeline.RequestsCleanFile, []string{"address", "date", "severity_code"}},
		{pipeline.SAMCleanFile, []string{"sam_id", "address"}},
		{pipeline.AssessmentCleanFile, []string{"parcel_id", "address"}},
	}
	for _, c := range checks {
		table := tables[c.file]
		for _, col := range c.columns {
			checkColumn(p, c.file, table, col)
		}
	}
	return p
}

func checkColumn(p *phase, file string, table *tabular.Table, col string) {
	found := false
	for _, h := range table.Headers {
		if h == col {
			found = true
			break
		}
	}
	if !found {
		if table.Empty() && len(table.Headers) == 0 {
			return // absent optional snapshot writes an empty table
		}
		p.errorf("%s: missing column %q", file, col)
		return
	}
	if table.Empty() {
		return
	}

	empty := 0
	for _, row := range table.Rows {
		if row[col] == "" {
			empty++
		}
	}
	rate := float64(empty) / float64(len(table.Rows))
	if rate > maxNullRate {
		p.errorf("%s: column %q is %.0f%% empty (max %.0f%%)", file, col, rate*100, maxNullRate*100)
	}
}

// ── Phase 2: Registry ──
// Keys are unique and namespaced; unmatched flags agree with the sources field.

func validateRegistry(tables map[string]*tabular.Table) *phase {
	p := &phase{name: "Phase 2: Registry (key invariants)"}
	table := tables[pipeline.PropertyRegistryFile]

	seen := make(map[string]bool, len(table.Rows))
	for i, row := range table.Rows {
		key := row["property_key"]
		if key == "" {
			p.errorf("row %d: empty property_key", i)
			continue
		}
		if seen[key] {
			p.errorf("row %d: duplicate property_key %q", i, key)
		}
		seen[key] = true

		sources := domain.ParseSourcesField(row["sources"])
		if len(sources) == 0 {
			p.errorf("row %d (%s): empty sources field", i, key)
		}

		unmatched := row["unmatched"] == "1"
		if len(sources) >= 2 && unmatched {
			p.errorf("row %d (%s): linked across %d sources but marked unmatched", i, key, len(sources))
		}
		if len(sources) == 1 && !unmatched {
			p.errorf("row %d (%s): single source but not marked unmatched", i, key)
		}

		if unmatched {
			if strings.HasPrefix(key, "prop-") {
				p.errorf("row %d: unmatched record has linked key prefix %q", i, key)
			}
		} else if !strings.HasPrefix(key, "prop-") {
			p.errorf("row %d: linked record key %q lacks prop- prefix", i, key)
		}
	}
	return p
}

// ── Phase 3: Scores ──
// The property and landlord tables agree with each other.

func validateScores(tables map[string]*tabular.Table) *phase {
	p := &phase{name: "Phase 3: Scores (property vs landlord)"}
	riskTable := tables[pipeline.PropertyRiskFile]
	landlordTable := tables[pipeline.LandlordRiskFile]

	registryRows := len(tables[pipeline.PropertyRegistryFile].Rows)
	if len(riskTable.Rows) != registryRows {
		p.errorf("property_risk has %d rows, registry has %d", len(riskTable.Rows), registryRows)
	}

	type landlordSum struct {
		score      float64
		properties int
	}
	sums := make(map[string]*landlordSum)
	flaggedLandlords := make(map[string]bool)

	for i, row := range riskTable.Rows {
		score := parseFloat(row["risk_score"])
		if score < 0 {
			p.errorf("property row %d (%s): negative risk_score %s", i, row["property_key"], row["risk_score"])
		}
		if name := row["landlord"]; name != "" {
			s, ok := sums[name]
			if !ok {
				s = &landlordSum{}
				sums[name] = s
			}
			s.score += score
			s.properties++
		}
		if row["flagged_landlord"] == "1" {
			flaggedLandlords[row["landlord"]] = true
		}
	}

	seen := make(map[string]bool, len(landlordTable.Rows))
	for i, row := range landlordTable.Rows {
		name := row["landlord"]
		seen[name] = true
		s, ok := sums[name]
		if !ok {
			p.errorf("landlord row %d: %q has no properties in property_risk", i, name)
			continue
		}
		agg := parseFloat(row["aggregate_score"])
		if math.Abs(agg-s.score) > scoreTolerance*float64(s.properties+1) {
			p.errorf("landlord %q: aggregate_score %.4f != property sum %.4f", name, agg, s.score)
		}
		if count := parseInt(row["property_count"]); count != s.properties {
			p.errorf("landlord %q: property_count %d != %d properties in property_risk", name, count, s.properties)
		}
		if row["flagged"] != "1" && flaggedLandlords[name] {
			p.errorf("landlord %q: properties marked flagged_landlord but landlord not flagged", name)
		}
		if row["flagged"] == "1" && !flaggedLandlords[name] && s.properties > 0 {
			p.errorf("landlord %q: flagged but no property carries flagged_landlord", name)
		}
	}
	for name := range sums {
		if !seen[name] {
			p.errorf("landlord %q appears in property_risk but not in landlord_risk", name)
		}
	}
	return p
}

// ── Phase 4: Aggregates ──
// District and trend rollups conserve the rows they summarize.

func validateAggregates(tables map[string]*tabular.Table) *phase {
	p := &phase{name: "Phase 4: Aggregates (conservation)"}

	riskRows := len(tables[pipeline.PropertyRiskFile].Rows)
	districtProperties := 0
	for i, row := range tables[pipeline.DistrictRiskFile].Rows {
		count := parseInt(row["property_count"])
		spatial := parseInt(row["spatial_matches"])
		attribute := parseInt(row["attribute_matches"])
		if spatial+attribute != count {
			p.errorf("district row %d (%s): spatial %d + attribute %d != property_count %d",
				i, row["district_id"], spatial, attribute, count)
		}
		if count > 0 {
			mean := parseFloat(row["mean_score"])
			total := parseFloat(row["total_score"])
			if math.Abs(mean*float64(count)-total) > scoreTolerance*float64(count+1) {
				p.errorf("district row %d (%s): mean_score %.4f * %d != total_score %.4f",
					i, row["district_id"], mean, count, total)
			}
		}
		districtProperties += count
	}
	if districtProperties > riskRows {
		p.errorf("district tables account for %d properties, property_risk has only %d", districtProperties, riskRows)
	}

	students, units := 0, 0
	for _, row := range tables[pipeline.StudentHousingCleanFile].Rows {
		students += parseInt(row["student_count"])
		units += parseInt(row["units"])
	}
	trendStudents, trendUnits := 0, 0
	for _, row := range tables[pipeline.DistrictTrendFile].Rows {
		trendStudents += parseInt(row["students"])
		trendUnits += parseInt(row["units"])
	}
	if trendStudents != students {
		p.errorf("trend table totals %d students, cleaned table has %d", trendStudents, students)
	}
	if trendUnits != units {
		p.errorf("trend table totals %d units, cleaned table has %d", trendUnits, units)
	}
	return p
}

func parseFloat(raw string) float64 {
	v, _ := strconv.ParseFloat(raw, 64)
	return v
}

func parseInt(raw string) int {
	v, _ := strconv.Atoi(raw)
	return v
}
