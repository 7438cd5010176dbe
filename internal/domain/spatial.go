package domain

import (
	"log/slog"
	"sort"

	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// DistrictPolygon is one council district boundary: a single Polygon or the
// parts of a MultiPolygon, with holes. Loaded once per run and never mutated.
type DistrictPolygon struct {
	DistrictID string
	Polygons   []*geom.Polygon
}

// Contains reports whether the WGS-84 point lies inside any part of the
// district, excluding holes.
func (d DistrictPolygon) Contains(lon, lat float64) bool {
	point := geom.Coord{lon, lat}
	for _, polygon := range d.Polygons {
		if polygonContains(polygon, point) {
			return true
		}
	}
	return false
}

func polygonContains(polygon *geom.Polygon, point geom.Coord) bool {
	if polygon.NumLinearRings() == 0 {
		return false
	}
	if !xy.IsPointInRing(polygon.Layout(), point, polygon.LinearRing(0).FlatCoords()) {
		return false
	}
	for i := 1; i < polygon.NumLinearRings(); i++ {
		if xy.IsPointInRing(polygon.Layout(), point, polygon.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}

// DistrictIndex holds district polygons in input order. Polygons are assumed
// non-overlapping; when a point still matches more than one district the
// first match in input order wins and the ambiguity is reported.
type DistrictIndex struct {
	Districts []DistrictPolygon
}

// Locate returns the district containing the point, plus whether more than
// one district matched.
func (idx *DistrictIndex) Locate(lon, lat float64) (districtID string, ambiguous, ok bool) {
	first := ""
	matches := 0
	for _, d := range idx.Districts {
		if d.Contains(lon, lat) {
			if matches == 0 {
				first = d.DistrictID
			}
			matches++
		}
	}
	return first, matches > 1, matches > 0
}

// districtBucket accumulates per-district totals during aggregation.
type districtBucket struct {
	properties int
	totalScore float64
	flagged    int
	spatial    int
	attribute  int
}

// AggregateDistricts joins property-level risk to districts: point-in-polygon
// first, the source district attribute as fallback, and a global unmatched
// count for properties with neither. No property is dropped from the totals.
func AggregateDistricts(logger *slog.Logger, properties []PropertyRisk, idx *DistrictIndex) ([]DistrictRisk, QualityReport) {
	report := QualityReport{RowsSeen: len(properties)}
	buckets := make(map[string]*districtBucket)

	for _, p := range properties {
		districtID, spatial := "", false

		if p.Latitude != nil && p.Longitude != nil {
			id, ambiguous, ok := idx.Locate(*p.Longitude, *p.Latitude)
			if ambiguous {
				report.Ambiguous++
				logger.Warn("point matched multiple district polygons, keeping first",
					"property_key", p.PropertyKey,
					"district", id,
					"lat", *p.Latitude,
					"lon", *p.Longitude,
				)
			}
			if ok {
				districtID, spatial = id, true
			}
		}
		if districtID == "" {
			districtID = p.District
		}
		if districtID == "" {
			report.Unmatched++
			report.RowsRejected++
			continue
		}

		bucket, ok := buckets[districtID]
		if !ok {
			bucket = &districtBucket{}
			buckets[districtID] = bucket
		}
		bucket.properties++
		bucket.totalScore += p.Score
		if p.FlaggedLandlord {
			bucket.flagged++
		}
		if spatial {
			bucket.spatial++
		} else {
			bucket.attribute++
		}
		report.RowsOut++
	}

	summaries := make([]DistrictRisk, 0, len(buckets))
	for _, id := range sortedKeys(buckets) {
		b := buckets[id]
		summaries = append(summaries, DistrictRisk{
			DistrictID:       id,
			PropertyCount:    b.properties,
			TotalScore:       b.totalScore,
			MeanScore:        b.totalScore / float64(b.properties),
			FlaggedCount:     b.flagged,
			SpatialMatches:   b.spatial,
			AttributeMatches: b.attribute,
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].DistrictID < summaries[j].DistrictID })
	return summaries, report
}
