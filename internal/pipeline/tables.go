package pipeline

import (
	"strconv"
	"time"

	"github.com/couchcryptid/civic-risk-etl/internal/domain"
)

// Column orders for every table the pipeline writes. Orders are fixed so
// reruns emit byte-identical files.
var (
	studentHousingHeaders = []string{"address", "district", "year", "student_count", "units", "landlord", "latitude", "longitude"}
	violationsHeaders     = []string{"address", "district", "date", "severity_code", "status"}
	requestsHeaders       = []string{"address", "district", "date", "severity_code", "category"}
	samHeaders            = []string{"sam_id", "address", "district", "latitude", "longitude"}
	assessmentHeaders     = []string{"parcel_id", "address", "district", "landlord"}
	registryHeaders       = []string{"property_key", "address", "normalized_address", "district", "landlord", "latitude", "longitude", "sources", "unmatched"}
	propertyRiskHeaders   = []string{"property_key", "address", "district", "landlord", "latitude", "longitude", "violation_events", "request_events", "violation_score", "request_score", "risk_score", "flagged_landlord"}
	landlordRiskHeaders   = []string{"landlord", "property_count", "violation_events", "request_events", "aggregate_score", "flagged"}
	districtRiskHeaders   = []string{"district_id", "property_count", "total_score", "mean_score", "flagged_count", "spatial_matches", "attribute_matches"}
	trendHeaders          = []string{"year", "district", "records", "students", "units", "students_per_unit"}
)

const tableDateLayout = "2006-01-02"

// Cell codecs. Scores print at 4 decimals and coordinates at 6 so equal
// values always render identically.

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 6, 64)
}

func parseTableCoord(raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseTableFloat(raw string) float64 {
	v, _ := strconv.ParseFloat(raw, 64)
	return v
}

func parseTableInt(raw string) int {
	v, _ := strconv.Atoi(raw)
	return v
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseTableBool(raw string) bool {
	return raw == "1" || raw == "true"
}

func marshalStudentHousing(r domain.StudentHousingRecord) domain.RawRow {
	return domain.RawRow{
		"address":       r.Address,
		"district":      r.District,
		"year":          strconv.Itoa(r.Year),
		"student_count": strconv.Itoa(r.StudentCount),
		"units":         strconv.Itoa(r.Units),
		"landlord":      r.Landlord,
		"latitude":      formatCoord(r.Latitude),
		"longitude":     formatCoord(r.Longitude),
	}
}

func unmarshalStudentHousing(row domain.RawRow) domain.StudentHousingRecord {
	return domain.StudentHousingRecord{
		Address:      row["address"],
		District:     row["district"],
		Year:         parseTableInt(row["year"]),
		StudentCount: parseTableInt(row["student_count"]),
		Units:        parseTableInt(row["units"]),
		Landlord:     row["landlord"],
		Latitude:     parseTableCoord(row["latitude"]),
		Longitude:    parseTableCoord(row["longitude"]),
	}
}

func marshalViolation(e domain.ViolationEvent) domain.RawRow {
	return domain.RawRow{
		"address":       e.Address,
		"district":      e.District,
		"date":          e.Date.Format(tableDateLayout),
		"severity_code": strconv.Itoa(e.SeverityCode),
		"status":        e.Status,
	}
}

func unmarshalViolation(row domain.RawRow) domain.ViolationEvent {
	date, _ := time.Parse(tableDateLayout, row["date"])
	return domain.ViolationEvent{
		Address:      row["address"],
		District:     row["district"],
		Date:         date.UTC(),
		SeverityCode: parseTableInt(row["severity_code"]),
		Status:       row["status"],
	}
}

func marshalRequest(e domain.ServiceRequest311) domain.RawRow {
	return domain.RawRow{
		"address":       e.Address,
		"district":      e.District,
		"date":          e.Date.Format(tableDateLayout),
		"severity_code": strconv.Itoa(e.SeverityCode),
		"category":      e.Category,
	}
}

func unmarshalRequest(row domain.RawRow) domain.ServiceRequest311 {
	date, _ := time.Parse(tableDateLayout, row["date"])
	return domain.ServiceRequest311{
		Address:      row["address"],
		District:     row["district"],
		Date:         date.UTC(),
		SeverityCode: parseTableInt(row["severity_code"]),
		Category:     row["category"],
	}
}

func marshalSAMAddress(r domain.SAMAddressRecord) domain.RawRow {
	return domain.RawRow{
		"sam_id":    r.NativeID,
		"address":   r.Address,
		"district":  r.District,
		"latitude":  formatCoord(r.Latitude),
		"longitude": formatCoord(r.Longitude),
	}
}

func unmarshalSAMAddress(row domain.RawRow) domain.SAMAddressRecord {
	return domain.SAMAddressRecord{
		NativeID:  row["sam_id"],
		Address:   row["address"],
		District:  row["district"],
		Latitude:  parseTableCoord(row["latitude"]),
		Longitude: parseTableCoord(row["longitude"]),
	}
}

func marshalAssessment(r domain.AssessmentRecord) domain.RawRow {
	return domain.RawRow{
		"parcel_id": r.NativeID,
		"address":   r.Address,
		"district":  r.District,
		"landlord":  r.Landlord,
	}
}

func unmarshalAssessment(row domain.RawRow) domain.AssessmentRecord {
	return domain.AssessmentRecord{
		NativeID: row["parcel_id"],
		Address:  row["address"],
		District: row["district"],
		Landlord: row["landlord"],
	}
}

func marshalRegistryRecord(r *domain.PropertyRecord) domain.RawRow {
	return domain.RawRow{
		"property_key":       r.PropertyKey,
		"address":            r.Address,
		"normalized_address": r.NormalizedAddress,
		"district":           r.District,
		"landlord":           r.Landlord,
		"latitude":           formatCoord(r.Latitude),
		"longitude":          formatCoord(r.Longitude),
		"sources":            r.SourcesField(),
		"unmatched":          formatBool(r.Unmatched),
	}
}

func unmarshalRegistryRecord(row domain.RawRow) *domain.PropertyRecord {
	return &domain.PropertyRecord{
		PropertyKey:       row["property_key"],
		Address:           row["address"],
		NormalizedAddress: row["normalized_address"],
		District:          row["district"],
		Landlord:          row["landlord"],
		Latitude:          parseTableCoord(row["latitude"]),
		Longitude:         parseTableCoord(row["longitude"]),
		SourceIDs:         domain.ParseSourcesField(row["sources"]),
		Unmatched:         parseTableBool(row["unmatched"]),
	}
}

func marshalPropertyRisk(r domain.PropertyRisk) domain.RawRow {
	return domain.RawRow{
		"property_key":     r.PropertyKey,
		"address":          r.Address,
		"district":         r.District,
		"landlord":         r.Landlord,
		"latitude":         formatCoord(r.Latitude),
		"longitude":        formatCoord(r.Longitude),
		"violation_events": strconv.Itoa(r.ViolationEvents),
		"request_events":   strconv.Itoa(r.RequestEvents),
		"violation_score":  formatScore(r.ViolationScore),
		"request_score":    formatScore(r.RequestScore),
		"risk_score":       formatScore(r.Score),
		"flagged_landlord": formatBool(r.FlaggedLandlord),
	}
}

func unmarshalPropertyRisk(row domain.RawRow) domain.PropertyRisk {
	return domain.PropertyRisk{
		PropertyKey:     row["property_key"],
		Address:         row["address"],
		District:        row["district"],
		Landlord:        row["landlord"],
		Latitude:        parseTableCoord(row["latitude"]),
		Longitude:       parseTableCoord(row["longitude"]),
		ViolationEvents: parseTableInt(row["violation_events"]),
		RequestEvents:   parseTableInt(row["request_events"]),
		ViolationScore:  parseTableFloat(row["violation_score"]),
		RequestScore:    parseTableFloat(row["request_score"]),
		Score:           parseTableFloat(row["risk_score"]),
		FlaggedLandlord: parseTableBool(row["flagged_landlord"]),
	}
}

func marshalLandlordRisk(r domain.LandlordRisk) domain.RawRow {
	return domain.RawRow{
		"landlord":         r.Landlord,
		"property_count":   strconv.Itoa(r.PropertyCount),
		"violation_events": strconv.Itoa(r.ViolationEvents),
		"request_events":   strconv.Itoa(r.RequestEvents),
		"aggregate_score":  formatScore(r.AggregateScore),
		"flagged":          formatBool(r.Flagged),
	}
}

func marshalDistrictRisk(r domain.DistrictRisk) domain.RawRow {
	return domain.RawRow{
		"district_id":       r.DistrictID,
		"property_count":    strconv.Itoa(r.PropertyCount),
		"total_score":       formatScore(r.TotalScore),
		"mean_score":        formatScore(r.MeanScore),
		"flagged_count":     strconv.Itoa(r.FlaggedCount),
		"spatial_matches":   strconv.Itoa(r.SpatialMatches),
		"attribute_matches": strconv.Itoa(r.AttributeMatches),
	}
}

func marshalTrendRow(r domain.TrendRow) domain.RawRow {
	return domain.RawRow{
		"year":              r.Year,
		"district":          r.District,
		"records":           strconv.Itoa(r.Records),
		"students":          strconv.Itoa(r.Students),
		"units":             strconv.Itoa(r.Units),
		"students_per_unit": strconv.FormatFloat(r.StudentsPerUnit, 'f', 2, 64),
	}
}
