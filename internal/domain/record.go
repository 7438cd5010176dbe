package domain

import "time"

// Source identifies which input dataset a record came from. Source names are
// also the namespace prefix for synthesized property keys.
type Source string

const (
	SourceStudentHousing Source = "student"
	SourceSAM            Source = "sam"
	SourceAssessment     Source = "assessment"
	SourceViolations     Source = "violations"
	SourceRequests       Source = "311"
)

// StudentHousingRecord is a normalized student-housing survey row.
type StudentHousingRecord struct {
	Address      string
	District     string
	Year         int
	StudentCount int
	Units        int
	Landlord     string
	Latitude     *float64
	Longitude    *float64
}

// SAMAddressRecord is a normalized SAM address registry row.
type SAMAddressRecord struct {
	NativeID  string
	Address   string
	District  string
	Latitude  *float64
	Longitude *float64
}

// AssessmentRecord is a normalized property assessment row. Landlord carries
// the owner identity used for landlord-level aggregation.
type AssessmentRecord struct {
	NativeID string
	Address  string
	District string
	Landlord string
}

// ViolationEvent is a normalized building violation. PropertyKey is empty
// until the event is linked to the registry.
type ViolationEvent struct {
	PropertyKey  string
	Address      string
	District     string
	Date         time.Time
	SeverityCode int
	Status       string
}

// ServiceRequest311 is a normalized 311 service request. Requests share the
// violation shape but contribute to risk at a lower weight class.
type ServiceRequest311 struct {
	PropertyKey  string
	Address      string
	District     string
	Date         time.Time
	SeverityCode int
	Category     string
}

// PropertyRecord is the canonical registry entry for one physical property.
// SourceIDs maps each contributing source to its native ids; every record has
// at least one. Unmatched marks records that could not be linked across
// sources and carry a synthesized key.
type PropertyRecord struct {
	PropertyKey       string
	Address           string
	NormalizedAddress string
	District          string
	Landlord          string
	Latitude          *float64
	Longitude         *float64
	SourceIDs         map[Source][]string
	Unmatched         bool
}

// PropertyRisk is the scored view of a registry property.
type PropertyRisk struct {
	PropertyKey     string
	Address         string
	District        string
	Landlord        string
	Latitude        *float64
	Longitude       *float64
	ViolationEvents int
	RequestEvents   int
	ViolationScore  float64
	RequestScore    float64
	Score           float64
	FlaggedLandlord bool
}

// LandlordRisk aggregates property scores across all properties sharing a
// landlord identity.
type LandlordRisk struct {
	Landlord        string
	PropertyCount   int
	ViolationEvents int
	RequestEvents   int
	AggregateScore  float64
	Flagged         bool
}

// DistrictRisk summarizes property risk within one council district.
type DistrictRisk struct {
	DistrictID       string
	PropertyCount    int
	TotalScore       float64
	MeanScore        float64
	FlaggedCount     int
	SpatialMatches   int
	AttributeMatches int
}

// TrendRow is one (year, district) bucket of the student-housing trend table.
type TrendRow struct {
	Year            string
	District        string
	Records         int
	Students        int
	Units           int
	StudentsPerUnit float64
}

// QualityReport carries per-stage data-quality counts. Stages return it
// alongside their output instead of mutating shared counters, so the
// conservation law RowsSeen = RowsOut + RowsRejected + RowsDeduplicated is
// checkable per stage.
type QualityReport struct {
	RowsSeen         int
	RowsOut          int
	RowsRejected     int
	RowsDeduplicated int
	Unlinked         int
	Ambiguous        int
	Unmatched        int
}

// Consistent reports whether the row accounting balances.
func (q QualityReport) Consistent() bool {
	return q.RowsSeen == q.RowsOut+q.RowsRejected+q.RowsDeduplicated
}

// Merge returns the element-wise sum of two reports.
func (q QualityReport) Merge(other QualityReport) QualityReport {
	return QualityReport{
		RowsSeen:         q.RowsSeen + other.RowsSeen,
		RowsOut:          q.RowsOut + other.RowsOut,
		RowsRejected:     q.RowsRejected + other.RowsRejected,
		RowsDeduplicated: q.RowsDeduplicated + other.RowsDeduplicated,
		Unlinked:         q.Unlinked + other.Unlinked,
		Ambiguous:        q.Ambiguous + other.Ambiguous,
		Unmatched:        q.Unmatched + other.Unmatched,
	}
}
