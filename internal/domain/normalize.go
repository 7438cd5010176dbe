package domain

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RawRow is one tabular input row, column name → raw cell value.
type RawRow map[string]string

// Column aliases per canonical field. Open-data exports rename columns
// between vintages; the first alias present in the header wins.
var (
	addressAliases  = []string{"address", "street_address", "property_address", "full_address", "location", "violation_address"}
	districtAliases = []string{"district", "city_council_district", "council_district"}
	landlordAliases = []string{"landlord", "owner", "owner_name", "property_owner"}
	latAliases      = []string{"latitude", "lat", "y", "y_coord"}
	lonAliases      = []string{"longitude", "lon", "lng", "long", "x", "x_coord"}
	nativeIDAliases = []string{"native_id", "id", "sam_id", "parcel_id", "pid", "case_no"}
	dateAliases     = []string{"date", "date_issued", "violation_date", "open_dt", "requested_datetime", "request_date", "issued_date", "event_date"}
	severityAliases = []string{"severity", "code_severity", "violation_level", "description"}
	categoryAliases = []string{"category", "case_title", "subject", "reason", "type"}
	statusAliases   = []string{"status", "case_status"}
	yearAliases     = []string{"year", "report_year", "academic_year"}
	studentAliases  = []string{"student_count", "students", "num_students", "students_total"}
	unitsAliases    = []string{"units", "unit_count", "num_units", "housing_units"}
)

var headerCleanRe = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeHeader folds a raw column name to snake_case for alias lookup.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Trim(headerCleanRe.ReplaceAllString(h, "_"), "_")
}

// ColumnMap resolves canonical field names against a concrete header row.
type ColumnMap struct {
	byNormalized map[string]string
}

// NewColumnMap indexes a header row for alias resolution.
func NewColumnMap(headers []string) ColumnMap {
	idx := make(map[string]string, len(headers))
	for _, h := range headers {
		norm := normalizeHeader(h)
		if _, exists := idx[norm]; !exists {
			idx[norm] = h
		}
	}
	return ColumnMap{byNormalized: idx}
}

// Pick returns the raw cell for the first alias present in the header, or "".
func (c ColumnMap) Pick(row RawRow, aliases []string) string {
	for _, alias := range aliases {
		if col, ok := c.byNormalized[alias]; ok {
			return strings.TrimSpace(row[col])
		}
	}
	return ""
}

// Has reports whether any of the aliases resolves to a real column.
func (c ColumnMap) Has(aliases []string) bool {
	for _, alias := range aliases {
		if _, ok := c.byNormalized[alias]; ok {
			return true
		}
	}
	return false
}

// dateFormats are tried in order; timestamps are truncated to their date part.
var dateFormats = []string{
	"2006-01-02",
	"1/2/2006",
	"01/02/2006",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"1/2/2006 15:04:05",
}

// ParseDate parses the known municipal export date formats into a UTC date.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, malformed("date", "empty")
	}
	if len(raw) > 19 {
		raw = raw[:19]
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, malformed("date", "unparseable value "+strconv.Quote(raw))
}

// severityKeywords maps severity vocabulary found in violation and 311 text
// to ordinal codes 1..5. Matching is ordered by code descending so the most
// severe keyword present wins.
var severityKeywords = []struct {
	keyword string
	code    int
}{
	{"critical", 5}, {"unsafe", 5}, {"fire", 5}, {"emergency", 5},
	{"hazard", 4}, {"severe", 4},
	{"high", 3}, {"major", 3},
	{"medium", 2}, {"moderate", 2},
	{"low", 1}, {"minor", 1},
}

// defaultSeverityCode is assigned when the severity text carries no known
// keyword; unclassified issues are treated as low-moderate rather than zero
// so they still contribute to scoring.
const defaultSeverityCode = 2

// SeverityCodeFromText derives an ordinal severity code from free-form
// severity or description text. A bare numeric code 1..5 is taken as-is.
func SeverityCodeFromText(text string) int {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return defaultSeverityCode
	}
	if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= 5 {
		return n
	}
	for _, sk := range severityKeywords {
		if strings.Contains(text, sk.keyword) {
			return sk.code
		}
	}
	return defaultSeverityCode
}

var coordCleanRe = regexp.MustCompile(`[^0-9.\-]`)

// parseCoord parses a latitude/longitude cell, tolerating stray characters.
// Returns nil for empty or unparseable values: missing coordinates are an
// explicit null, not a rejected row.
func parseCoord(raw string) *float64 {
	raw = coordCleanRe.ReplaceAllString(strings.TrimSpace(raw), "")
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

var digitsRe = regexp.MustCompile(`[0-9]+`)

// parseCount extracts a non-negative integer from a count-like cell,
// returning 0 for missing or malformed values.
func parseCount(raw string) int {
	m := digitsRe.FindString(raw)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// dedupe collapses rows whose dedupe key (natural key plus all fields) is
// identical, keeping the last occurrence — input files are ordered oldest
// snapshot first, so the last copy is the most recently fetched.
func dedupe[T any](items []T, key func(T) string) ([]T, int) {
	lastIndex := make(map[string]int, len(items))
	for i, item := range items {
		lastIndex[key(item)] = i
	}
	out := make([]T, 0, len(lastIndex))
	for i, item := range items {
		if lastIndex[key(item)] == i {
			out = append(out, item)
		}
	}
	return out, len(items) - len(out)
}

func joinFields(fields ...string) string {
	return strings.Join(fields, "\x1f")
}

func coordField(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 6, 64)
}

// NormalizeStudentHousing parses raw student-housing survey rows. Address is
// required (the registry links on it); year or student count may be zero.
func NormalizeStudentHousing(headers []string, rows []RawRow) ([]StudentHousingRecord, QualityReport) {
	cols := NewColumnMap(headers)
	report := QualityReport{RowsSeen: len(rows)}

	records := make([]StudentHousingRecord, 0, len(rows))
	for _, row := range rows {
		address := cols.Pick(row, addressAliases)
		if address == "" {
			report.RowsRejected++
			continue
		}
		records = append(records, StudentHousingRecord{
			Address:      address,
			District:     cols.Pick(row, districtAliases),
			Year:         parseCount(cols.Pick(row, yearAliases)),
			StudentCount: parseCount(cols.Pick(row, studentAliases)),
			Units:        parseCount(cols.Pick(row, unitsAliases)),
			Landlord:     cols.Pick(row, landlordAliases),
			Latitude:     parseCoord(cols.Pick(row, latAliases)),
			Longitude:    parseCoord(cols.Pick(row, lonAliases)),
		})
	}

	deduped, dropped := dedupe(records, func(r StudentHousingRecord) string {
		return joinFields(r.Address, r.District, strconv.Itoa(r.Year), strconv.Itoa(r.StudentCount),
			strconv.Itoa(r.Units), r.Landlord, coordField(r.Latitude), coordField(r.Longitude))
	})
	report.RowsDeduplicated = dropped
	report.RowsOut = len(deduped)
	return deduped, report
}

// NormalizeSAMAddresses parses raw SAM address registry rows. Native id and
// address are both required.
func NormalizeSAMAddresses(headers []string, rows []RawRow) ([]SAMAddressRecord, QualityReport) {
	cols := NewColumnMap(headers)
	report := QualityReport{RowsSeen: len(rows)}

	records := make([]SAMAddressRecord, 0, len(rows))
	for _, row := range rows {
		nativeID := cols.Pick(row, nativeIDAliases)
		address := cols.Pick(row, addressAliases)
		if nativeID == "" || address == "" {
			report.RowsRejected++
			continue
		}
		records = append(records, SAMAddressRecord{
			NativeID:  nativeID,
			Address:   address,
			District:  cols.Pick(row, districtAliases),
			Latitude:  parseCoord(cols.Pick(row, latAliases)),
			Longitude: parseCoord(cols.Pick(row, lonAliases)),
		})
	}

	deduped, dropped := dedupe(records, func(r SAMAddressRecord) string {
		return joinFields(r.NativeID, r.Address, r.District, coordField(r.Latitude), coordField(r.Longitude))
	})
	report.RowsDeduplicated = dropped
	report.RowsOut = len(deduped)
	return deduped, report
}

// NormalizeAssessments parses raw property assessment rows. Native id and
// address are required; a missing owner keeps the row but excludes the
// property from landlord-level aggregation.
func NormalizeAssessments(headers []string, rows []RawRow) ([]AssessmentRecord, QualityReport) {
	cols := NewColumnMap(headers)
	report := QualityReport{RowsSeen: len(rows)}

	records := make([]AssessmentRecord, 0, len(rows))
	for _, row := range rows {
		nativeID := cols.Pick(row, nativeIDAliases)
		address := cols.Pick(row, addressAliases)
		if nativeID == "" || address == "" {
			report.RowsRejected++
			continue
		}
		records = append(records, AssessmentRecord{
			NativeID: nativeID,
			Address:  address,
			District: cols.Pick(row, districtAliases),
			Landlord: cols.Pick(row, landlordAliases),
		})
	}

	deduped, dropped := dedupe(records, func(r AssessmentRecord) string {
		return joinFields(r.NativeID, r.Address, r.District, r.Landlord)
	})
	report.RowsDeduplicated = dropped
	report.RowsOut = len(deduped)
	return deduped, report
}

// NormalizeViolations parses raw violation rows. The date must parse or the
// row is rejected as malformed; a missing address keeps the row (it is
// reported unlinked at scoring time instead).
func NormalizeViolations(headers []string, rows []RawRow) ([]ViolationEvent, QualityReport) {
	cols := NewColumnMap(headers)
	report := QualityReport{RowsSeen: len(rows)}

	events := make([]ViolationEvent, 0, len(rows))
	for _, row := range rows {
		date, err := ParseDate(cols.Pick(row, dateAliases))
		if err != nil {
			report.RowsRejected++
			continue
		}
		events = append(events, ViolationEvent{
			Address:      cols.Pick(row, addressAliases),
			District:     cols.Pick(row, districtAliases),
			Date:         date,
			SeverityCode: SeverityCodeFromText(cols.Pick(row, severityAliases)),
			Status:       strings.ToLower(cols.Pick(row, statusAliases)),
		})
	}

	deduped, dropped := dedupe(events, func(e ViolationEvent) string {
		return joinFields(e.Address, e.District, e.Date.Format("2006-01-02"), strconv.Itoa(e.SeverityCode), e.Status)
	})
	report.RowsDeduplicated = dropped
	report.RowsOut = len(deduped)
	return deduped, report
}

// NormalizeRequests parses raw 311 service request rows, same policy as
// violations: valid date required, address optional.
func NormalizeRequests(headers []string, rows []RawRow) ([]ServiceRequest311, QualityReport) {
	cols := NewColumnMap(headers)
	report := QualityReport{RowsSeen: len(rows)}

	events := make([]ServiceRequest311, 0, len(rows))
	for _, row := range rows {
		date, err := ParseDate(cols.Pick(row, dateAliases))
		if err != nil {
			report.RowsRejected++
			continue
		}
		category := cols.Pick(row, categoryAliases)
		events = append(events, ServiceRequest311{
			Address:      cols.Pick(row, addressAliases),
			District:     cols.Pick(row, districtAliases),
			Date:         date,
			SeverityCode: SeverityCodeFromText(category),
			Category:     category,
		})
	}

	deduped, dropped := dedupe(events, func(e ServiceRequest311) string {
		return joinFields(e.Address, e.District, e.Date.Format("2006-01-02"), e.Category)
	})
	report.RowsDeduplicated = dropped
	report.RowsOut = len(deduped)
	return deduped, report
}

// sortedKeys returns map keys in ascending order; output determinism depends
// on never ranging over a map directly when emitting rows.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
