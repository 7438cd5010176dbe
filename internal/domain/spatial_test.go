package domain

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	geom "github.com/twpayne/go-geom"
)

func square(t *testing.T, minX, minY, maxX, maxY float64) *geom.Polygon {
	t.Helper()
	polygon := geom.NewPolygon(geom.XY)
	_, err := polygon.SetCoords([][]geom.Coord{{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}})
	require.NoError(t, err)
	return polygon
}

func squareWithHole(t *testing.T) *geom.Polygon {
	t.Helper()
	polygon := geom.NewPolygon(geom.XY)
	_, err := polygon.SetCoords([][]geom.Coord{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		{{4, 4}, {6, 4}, {6, 6}, {4, 6}, {4, 4}},
	})
	require.NoError(t, err)
	return polygon
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDistrictPolygonContains(t *testing.T) {
	d := DistrictPolygon{DistrictID: "D1", Polygons: []*geom.Polygon{square(t, 0, 0, 10, 10)}}

	assert.True(t, d.Contains(5, 5))
	assert.False(t, d.Contains(15, 5))
	assert.False(t, d.Contains(-1, -1))
}

func TestDistrictPolygonHolesExcluded(t *testing.T) {
	d := DistrictPolygon{DistrictID: "D1", Polygons: []*geom.Polygon{squareWithHole(t)}}

	assert.True(t, d.Contains(2, 2))
	assert.False(t, d.Contains(5, 5), "point inside the hole")
}

func TestDistrictPolygonMultipleParts(t *testing.T) {
	d := DistrictPolygon{DistrictID: "D1", Polygons: []*geom.Polygon{
		square(t, 0, 0, 2, 2),
		square(t, 8, 8, 10, 10),
	}}

	assert.True(t, d.Contains(1, 1))
	assert.True(t, d.Contains(9, 9))
	assert.False(t, d.Contains(5, 5))
}

func TestDistrictIndexLocate(t *testing.T) {
	idx := &DistrictIndex{Districts: []DistrictPolygon{
		{DistrictID: "D1", Polygons: []*geom.Polygon{square(t, 0, 0, 10, 10)}},
		{DistrictID: "D2", Polygons: []*geom.Polygon{square(t, 10, 0, 20, 10)}},
		{DistrictID: "D3", Polygons: []*geom.Polygon{square(t, 5, 0, 15, 10)}}, // overlaps D1 and D2
	}}

	t.Run("single match", func(t *testing.T) {
		id, ambiguous, ok := idx.Locate(2, 5)
		require.True(t, ok)
		assert.Equal(t, "D1", id)
		assert.False(t, ambiguous)
	})

	t.Run("overlap keeps first in input order", func(t *testing.T) {
		id, ambiguous, ok := idx.Locate(7, 5)
		require.True(t, ok)
		assert.Equal(t, "D1", id)
		assert.True(t, ambiguous)
	})

	t.Run("no match", func(t *testing.T) {
		_, _, ok := idx.Locate(50, 50)
		assert.False(t, ok)
	})
}

func TestAggregateDistricts(t *testing.T) {
	idx := &DistrictIndex{Districts: []DistrictPolygon{
		{DistrictID: "D1", Polygons: []*geom.Polygon{square(t, 0, 0, 10, 10)}},
		{DistrictID: "D2", Polygons: []*geom.Polygon{square(t, 10, 0, 20, 10)}},
	}}

	properties := []PropertyRisk{
		{PropertyKey: "a", Latitude: ptr(5), Longitude: ptr(5), Score: 10, FlaggedLandlord: true},
		{PropertyKey: "b", Latitude: ptr(5), Longitude: ptr(15), Score: 4},
		// Spatial result overrides a stale district attribute.
		{PropertyKey: "c", Latitude: ptr(5), Longitude: ptr(6), District: "D9", Score: 2},
		// No coordinates: the district attribute is the fallback.
		{PropertyKey: "d", District: "D7", Score: 8},
		// Coordinates outside every polygon fall back to the attribute.
		{PropertyKey: "e", Latitude: ptr(50), Longitude: ptr(50), District: "D7", Score: 1},
		// Nothing to assign by.
		{PropertyKey: "f", Score: 99},
	}

	summaries, report := AggregateDistricts(discardLogger(), properties, idx)

	assert.Equal(t, 6, report.RowsSeen)
	assert.Equal(t, 5, report.RowsOut)
	assert.Equal(t, 1, report.Unmatched)
	assert.True(t, report.Consistent())

	require.Len(t, summaries, 3)
	byID := make(map[string]DistrictRisk, len(summaries))
	for _, s := range summaries {
		byID[s.DistrictID] = s
	}

	d1 := byID["D1"]
	assert.Equal(t, 2, d1.PropertyCount)
	assert.InDelta(t, 12.0, d1.TotalScore, 1e-9)
	assert.InDelta(t, 6.0, d1.MeanScore, 1e-9)
	assert.Equal(t, 1, d1.FlaggedCount)
	assert.Equal(t, 2, d1.SpatialMatches)
	assert.Equal(t, 0, d1.AttributeMatches)

	d2 := byID["D2"]
	assert.Equal(t, 1, d2.PropertyCount)
	assert.InDelta(t, 4.0, d2.TotalScore, 1e-9)

	d7 := byID["D7"]
	assert.Equal(t, 2, d7.PropertyCount)
	assert.InDelta(t, 9.0, d7.TotalScore, 1e-9)
	assert.Equal(t, 0, d7.SpatialMatches)
	assert.Equal(t, 2, d7.AttributeMatches)

	// Output is sorted by district id.
	assert.Equal(t, "D1", summaries[0].DistrictID)
	assert.Equal(t, "D2", summaries[1].DistrictID)
	assert.Equal(t, "D7", summaries[2].DistrictID)
}

func TestAggregateDistrictsAmbiguousCounted(t *testing.T) {
	idx := &DistrictIndex{Districts: []DistrictPolygon{
		{DistrictID: "D1", Polygons: []*geom.Polygon{square(t, 0, 0, 10, 10)}},
		{DistrictID: "D2", Polygons: []*geom.Polygon{square(t, 5, 0, 15, 10)}},
	}}
	properties := []PropertyRisk{
		{PropertyKey: "a", Latitude: ptr(5), Longitude: ptr(7), Score: 1},
	}

	summaries, report := AggregateDistricts(discardLogger(), properties, idx)

	assert.Equal(t, 1, report.Ambiguous)
	require.Len(t, summaries, 1)
	assert.Equal(t, "D1", summaries[0].DistrictID)
}

func TestAggregateDistrictsEmptyIndex(t *testing.T) {
	properties := []PropertyRisk{
		{PropertyKey: "a", Latitude: ptr(5), Longitude: ptr(5), District: "D3", Score: 2},
	}
	summaries, report := AggregateDistricts(discardLogger(), properties, &DistrictIndex{})

	require.Len(t, summaries, 1)
	assert.Equal(t, "D3", summaries[0].DistrictID)
	assert.Equal(t, 1, summaries[0].AttributeMatches)
	assert.Zero(t, report.Unmatched)
}
