// Command genmock writes a deterministic set of raw input snapshots for local
// pipeline runs and integration checks: the five tabular sources plus a
// council district boundary file. Addresses are spread across the sources so
// every registry linking path is exercised, including spelling variants,
// single-source fallbacks, and events that cannot be linked at all.
//
// Usage:
//
//	go run ./cmd/genmock -out data/raw
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/civic-risk-etl/internal/adapter/tabular"
	"github.com/couchcryptid/civic-risk-etl/internal/domain"
)

// asOfDate anchors every generated event date; pair generated fixtures with
// AS_OF_DATE=2025-06-01 for reproducible scores.
var asOfDate = time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for raw snapshots")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	files := []struct {
		name    string
		headers []string
		rows    []domain.RawRow
	}{
		{"student_housing.csv", studentHousingHeaders, studentHousingRows()},
		{"sam_addresses.csv", samHeaders, samRows()},
		{"property_assessment.csv", assessmentHeaders, assessmentRows()},
		{"violations.csv", violationsHeaders, violationRows()},
		{"service_requests_311.csv", requestsHeaders, requestRows()},
	}
	for _, f := range files {
		path := filepath.Join(*out, f.name)
		if err := tabular.WriteFile(path, f.headers, f.rows); err != nil {
			return fmt.Errorf("writing %s: %w", f.name, err)
		}
		log.Printf("wrote %s: %d rows", path, len(f.rows))
	}

	geoPath := filepath.Join(*out, "city_council_districts.geojson")
	if err := os.WriteFile(geoPath, []byte(districtsGeoJSON), 0o600); err != nil {
		return fmt.Errorf("writing districts: %w", err)
	}
	log.Printf("wrote %s", geoPath)

	log.Printf("run the pipeline with RAW_DIR=%s AS_OF_DATE=%s", *out, asOfDate.Format("2006-01-02"))
	return nil
}

var (
	studentHousingHeaders = []string{"address", "district", "year", "student_count", "units", "landlord"}
	samHeaders            = []string{"sam_id", "address", "district", "latitude", "longitude"}
	assessmentHeaders     = []string{"parcel_id", "address", "district", "owner"}
	violationsHeaders     = []string{"address", "district", "date_issued", "description", "status"}
	requestsHeaders       = []string{"address", "district", "open_dt", "case_title"}
)

// Addresses 101 and 205 link across all three registry sources; 310 links
// SAM with assessments under spelling variants; 42 appears only in the
// assessment roll and falls back to a synthesized key.
func studentHousingRows() []domain.RawRow {
	return []domain.RawRow{
		{"address": "101 College Street", "district": "D1", "year": "2023", "student_count": "12", "units": "4", "landlord": "Acme Property LLC"},
		{"address": "101 College Street", "district": "D1", "year": "2024", "student_count": "15", "units": "4", "landlord": "Acme Property LLC"},
		{"address": "205 Campus Avenue Apt #3", "district": "D1", "year": "2024", "student_count": "6", "units": "2", "landlord": "Acme Property LLC"},
		{"address": "310 Hillside Road", "district": "D2", "year": "2024", "student_count": "9", "units": "3", "landlord": "Hillside Holdings"},
		{"address": "310 Hillside Road", "district": "D2", "year": "2023", "student_count": "8", "units": "3", "landlord": "Hillside Holdings"},
	}
}

func samRows() []domain.RawRow {
	return []domain.RawRow{
		{"sam_id": "S-1001", "address": "101 College St", "district": "D1", "latitude": "42.350000", "longitude": "-71.105000"},
		{"sam_id": "S-1002", "address": "205 Campus Ave 3", "district": "D1", "latitude": "42.351500", "longitude": "-71.104200"},
		{"sam_id": "S-1003", "address": "310 Hillside Rd", "district": "D2", "latitude": "42.360000", "longitude": "-71.095000"},
		{"sam_id": "S-1004", "address": "77 Orchard Court", "district": "", "latitude": "", "longitude": ""},
	}
}

func assessmentRows() []domain.RawRow {
	return []domain.RawRow{
		{"parcel_id": "P-2001", "address": "101 College Street", "district": "D1", "owner": "Acme Property LLC"},
		{"parcel_id": "P-2002", "address": "205 Campus Avenue Unit 3", "district": "D1", "owner": "Acme Property LLC"},
		{"parcel_id": "P-2003", "address": "310 Hillside Road", "district": "D2", "owner": "Hillside Holdings"},
		{"parcel_id": "P-2042", "address": "42 Solo Place", "district": "D2", "owner": "Solo Owner"},
	}
}

func violationRows() []domain.RawRow {
	date := func(daysAgo int) string {
		return asOfDate.AddDate(0, 0, -daysAgo).Format("2006-01-02")
	}
	return []domain.RawRow{
		{"address": "101 College Street", "district": "D1", "date_issued": date(0), "description": "unsafe structure", "status": "Open"},
		{"address": "101 College St", "district": "D1", "date_issued": date(360), "description": "minor trash violation", "status": "Closed"},
		{"address": "205 Campus Avenue Apt #3", "district": "D1", "date_issued": date(90), "description": "hazardous wiring", "status": "Open"},
		{"address": "310 Hillside Road", "district": "D2", "date_issued": date(30), "description": "major plumbing failure", "status": "Open"},
		{"address": "999 Nowhere Lane", "district": "", "date_issued": date(10), "description": "moderate damage", "status": "Open"},
	}
}

func requestRows() []domain.RawRow {
	date := func(daysAgo int) string {
		return asOfDate.AddDate(0, 0, -daysAgo).Format("2006-01-02")
	}
	return []domain.RawRow{
		{"address": "101 College Street", "district": "D1", "open_dt": date(15), "case_title": "rodent complaint"},
		{"address": "310 Hillside Rd", "district": "D2", "open_dt": date(45), "case_title": "no heat emergency"},
		{"address": "310 Hillside Road", "district": "D2", "open_dt": date(200), "case_title": "loud construction"},
	}
}

// Two adjacent square districts; D1 contains the generated SAM coordinates
// for College St and Campus Ave, D2 contains Hillside Rd.
const districtsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"district": "D1"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[-71.11, 42.34], [-71.10, 42.34], [-71.10, 42.355], [-71.11, 42.355], [-71.11, 42.34]]]
      }
    },
    {
      "type": "Feature",
      "properties": {"district": "D2"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[-71.10, 42.355], [-71.09, 42.355], [-71.09, 42.37], [-71.10, 42.37], [-71.10, 42.355]]]
      }
    }
  ]
}
`
