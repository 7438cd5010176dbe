package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/civic-risk-etl/internal/adapter/tabular"
	"github.com/couchcryptid/civic-risk-etl/internal/domain"
)

// RunTrend groups cleaned student-housing records into the yearly
// per-district trend table.
func (p *Pipeline) RunTrend(ctx context.Context) error {
	return p.runStage(ctx, StageTrend, func() error {
		records, err := p.readStudentHousingClean()
		if err != nil {
			if errors.Is(err, tabular.ErrNotFound) {
				return fmt.Errorf("%w: run the normalize stage first", domain.ErrMissingRequiredInput)
			}
			return err
		}

		trends, report := domain.AggregateTrends(records)
		p.logReport(StageTrend, "trends", report)

		rows := make([]domain.RawRow, len(trends))
		for i, t := range trends {
			rows[i] = marshalTrendRow(t)
		}
		return tabular.WriteFile(p.processedPath(DistrictTrendFile), trendHeaders, rows)
	})
}
