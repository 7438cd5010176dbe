package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/civic-risk-etl/internal/adapter/tabular"
	"github.com/couchcryptid/civic-risk-etl/internal/domain"
)

// RunRisk links cleaned violation and 311 events to the registry and writes
// the property- and landlord-level risk tables.
func (p *Pipeline) RunRisk(ctx context.Context) error {
	return p.runStage(ctx, StageRisk, func() error {
		reg, err := p.readRegistry()
		if err != nil {
			if errors.Is(err, tabular.ErrNotFound) {
				return fmt.Errorf("%w: run the registry stage first", domain.ErrMissingRequiredInput)
			}
			return err
		}
		violations, err := p.readViolationsClean()
		if err != nil {
			if errors.Is(err, tabular.ErrNotFound) {
				return fmt.Errorf("%w: run the normalize stage first", domain.ErrMissingRequiredInput)
			}
			return err
		}
		requests, err := p.readRequestsClean()
		if err != nil && !errors.Is(err, tabular.ErrNotFound) {
			return err
		}

		result, report := domain.ScoreProperties(reg, violations, requests, p.cfg.RiskConfig())
		p.logReport(StageRisk, "events", report)
		p.metrics.EventsUnlinked.Add(float64(report.Unlinked))

		propertyRows := make([]domain.RawRow, len(result.Properties))
		for i, r := range result.Properties {
			propertyRows[i] = marshalPropertyRisk(r)
		}
		if err := tabular.WriteFile(p.processedPath(PropertyRiskFile), propertyRiskHeaders, propertyRows); err != nil {
			return err
		}

		landlordRows := make([]domain.RawRow, len(result.Landlords))
		for i, r := range result.Landlords {
			landlordRows[i] = marshalLandlordRisk(r)
		}
		return tabular.WriteFile(p.processedPath(LandlordRiskFile), landlordRiskHeaders, landlordRows)
	})
}

func (p *Pipeline) readPropertyRisk() ([]domain.PropertyRisk, error) {
	table, err := tabular.ReadFile(p.processedPath(PropertyRiskFile))
	if err != nil {
		return nil, err
	}
	risks := make([]domain.PropertyRisk, len(table.Rows))
	for i, row := range table.Rows {
		risks[i] = unmarshalPropertyRisk(row)
	}
	return risks, nil
}
