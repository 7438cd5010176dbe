package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/civic-risk-etl/internal/adapter/geojson"
	"github.com/couchcryptid/civic-risk-etl/internal/adapter/tabular"
	"github.com/couchcryptid/civic-risk-etl/internal/domain"
)

// RunSpatial assigns scored properties to council districts and writes the
// district risk table. With no boundary file every property falls through to
// its source district attribute.
func (p *Pipeline) RunSpatial(ctx context.Context) error {
	return p.runStage(ctx, StageSpatial, func() error {
		properties, err := p.readPropertyRisk()
		if err != nil {
			if errors.Is(err, tabular.ErrNotFound) {
				return fmt.Errorf("%w: run the risk stage first", domain.ErrMissingRequiredInput)
			}
			return err
		}

		idx := &domain.DistrictIndex{}
		districts, err := geojson.LoadDistricts(p.cfg.DistrictsPath)
		switch {
		case err == nil:
			idx.Districts = districts
		case errors.Is(err, geojson.ErrNotFound):
			p.logger.Info("district boundaries absent, using district attributes only", "path", p.cfg.DistrictsPath)
		default:
			return err
		}

		summaries, report := domain.AggregateDistricts(p.logger, properties, idx)
		p.logReport(StageSpatial, "districts", report)
		p.metrics.SpatialAmbiguous.Add(float64(report.Ambiguous))
		p.metrics.SpatialUnmatched.Add(float64(report.Unmatched))

		rows := make([]domain.RawRow, len(summaries))
		for i, s := range summaries {
			rows[i] = marshalDistrictRisk(s)
		}
		return tabular.WriteFile(p.processedPath(DistrictRiskFile), districtRiskHeaders, rows)
	})
}
