// Package geojson loads city-council district boundaries from a GeoJSON
// FeatureCollection into go-geom polygons for point-in-polygon lookups.
package geojson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	geom "github.com/twpayne/go-geom"

	"github.com/couchcryptid/civic-risk-etl/internal/domain"
)

// ErrNotFound marks a missing boundary file.
var ErrNotFound = errors.New("geojson file not found")

// districtPropertyKeys are tried in order against feature properties to find
// the district identifier; exports disagree on the property name.
var districtPropertyKeys = []string{"district", "district_id", "DISTRICT", "name", "NAME"}

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Properties map[string]any `json:"properties"`
	Geometry   geometry       `json:"geometry"`
}

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// LoadDistricts parses district polygons, preserving feature order — spatial
// ambiguity resolution depends on input order being stable.
func LoadDistricts(path string) ([]domain.DistrictPolygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read geojson %s: %w", path, err)
	}

	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse geojson %s: %w", path, err)
	}

	districts := make([]domain.DistrictPolygon, 0, len(fc.Features))
	for i, feat := range fc.Features {
		id := districtID(feat.Properties)
		if id == "" {
			return nil, fmt.Errorf("parse geojson %s: feature %d has no district identifier", path, i)
		}

		polygons, err := parseGeometry(feat.Geometry)
		if err != nil {
			return nil, fmt.Errorf("parse geojson %s: feature %d (%s): %w", path, i, id, err)
		}
		districts = append(districts, domain.DistrictPolygon{DistrictID: id, Polygons: polygons})
	}
	return districts, nil
}

func districtID(properties map[string]any) string {
	for _, key := range districtPropertyKeys {
		switch v := properties[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%g", v)
		}
	}
	return ""
}

func parseGeometry(g geometry) ([]*geom.Polygon, error) {
	switch g.Type {
	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("polygon coordinates: %w", err)
		}
		polygon, err := buildPolygon(rings)
		if err != nil {
			return nil, err
		}
		return []*geom.Polygon{polygon}, nil

	case "MultiPolygon":
		var parts [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &parts); err != nil {
			return nil, fmt.Errorf("multipolygon coordinates: %w", err)
		}
		polygons := make([]*geom.Polygon, 0, len(parts))
		for _, rings := range parts {
			polygon, err := buildPolygon(rings)
			if err != nil {
				return nil, err
			}
			polygons = append(polygons, polygon)
		}
		return polygons, nil

	default:
		return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
}

func buildPolygon(rings [][][]float64) (*geom.Polygon, error) {
	if len(rings) == 0 {
		return nil, errors.New("empty polygon coordinates")
	}
	coords := make([][]geom.Coord, len(rings))
	for i, ring := range rings {
		coords[i] = make([]geom.Coord, len(ring))
		for j, position := range ring {
			if len(position) < 2 {
				return nil, errors.New("coordinate position with fewer than 2 values")
			}
			coords[i][j] = geom.Coord{position[0], position[1]}
		}
	}
	polygon := geom.NewPolygon(geom.XY)
	if _, err := polygon.SetCoords(coords); err != nil {
		return nil, fmt.Errorf("build polygon: %w", err)
	}
	return polygon, nil
}
