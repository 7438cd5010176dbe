package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/civic-risk-etl/internal/adapter/tabular"
	"github.com/couchcryptid/civic-risk-etl/internal/domain"
)

// RunRegistry resolves the cleaned student-housing, SAM, and assessment
// tables into the canonical property registry. Resolution order is fixed so
// the registry is stable across reruns: student housing first, then SAM, then
// assessments.
func (p *Pipeline) RunRegistry(ctx context.Context) error {
	return p.runStage(ctx, StageRegistry, func() error {
		students, err := p.readStudentHousingClean()
		if err != nil {
			if errors.Is(err, tabular.ErrNotFound) {
				return fmt.Errorf("%w: run the normalize stage first", domain.ErrMissingRequiredInput)
			}
			return err
		}
		sams, err := p.readSAMClean()
		if err != nil && !errors.Is(err, tabular.ErrNotFound) {
			return err
		}
		assessments, err := p.readAssessmentsClean()
		if err != nil && !errors.Is(err, tabular.ErrNotFound) {
			return err
		}

		inputs := make([]domain.RegistryInput, 0, len(students)+len(sams)+len(assessments))
		for _, r := range students {
			inputs = append(inputs, domain.RegistryInput{
				Source:    domain.SourceStudentHousing,
				Address:   r.Address,
				District:  r.District,
				Landlord:  r.Landlord,
				Latitude:  r.Latitude,
				Longitude: r.Longitude,
			})
		}
		for _, r := range sams {
			inputs = append(inputs, domain.RegistryInput{
				Source:    domain.SourceSAM,
				NativeID:  r.NativeID,
				Address:   r.Address,
				District:  r.District,
				Latitude:  r.Latitude,
				Longitude: r.Longitude,
			})
		}
		for _, r := range assessments {
			inputs = append(inputs, domain.RegistryInput{
				Source:   domain.SourceAssessment,
				NativeID: r.NativeID,
				Address:  r.Address,
				District: r.District,
				Landlord: r.Landlord,
			})
		}

		reg, report := domain.BuildRegistry(inputs, p.cfg.RegistryOptions())
		p.logReport(StageRegistry, "registry", report)

		rows := make([]domain.RawRow, len(reg.Properties))
		for i, rec := range reg.Properties {
			rows[i] = marshalRegistryRecord(rec)
		}
		return tabular.WriteFile(p.processedPath(PropertyRegistryFile), registryHeaders, rows)
	})
}

func (p *Pipeline) readRegistry() (*domain.Registry, error) {
	table, err := tabular.ReadFile(p.processedPath(PropertyRegistryFile))
	if err != nil {
		return nil, err
	}
	records := make([]*domain.PropertyRecord, len(table.Rows))
	for i, row := range table.Rows {
		records[i] = unmarshalRegistryRecord(row)
	}
	return domain.NewRegistry(records, p.cfg.RegistryOptions()), nil
}
