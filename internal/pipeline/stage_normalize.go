package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/civic-risk-etl/internal/adapter/tabular"
	"github.com/couchcryptid/civic-risk-etl/internal/domain"
)

// RunNormalize parses the raw input snapshots into the cleaned tables.
// Student housing and violations are required; the other snapshots are
// skipped with a log line when absent so a partial data drop still produces
// output.
func (p *Pipeline) RunNormalize(ctx context.Context) error {
	return p.runStage(ctx, StageNormalize, func() error {
		if err := p.normalizeStudentHousing(); err != nil {
			return err
		}
		if err := p.normalizeViolations(); err != nil {
			return err
		}
		if err := p.normalizeRequests(); err != nil {
			return err
		}
		if err := p.normalizeSAM(); err != nil {
			return err
		}
		return p.normalizeAssessments()
	})
}

func (p *Pipeline) normalizeStudentHousing() error {
	table, err := tabular.ReadFile(p.cfg.StudentHousingPath)
	if err != nil {
		if errors.Is(err, tabular.ErrNotFound) {
			return fmt.Errorf("%w: student housing snapshot %s", domain.ErrMissingRequiredInput, p.cfg.StudentHousingPath)
		}
		return err
	}
	if table.Empty() {
		return fmt.Errorf("%w: student housing snapshot %s has no data rows", domain.ErrMissingRequiredInput, p.cfg.StudentHousingPath)
	}

	records, report := domain.NormalizeStudentHousing(table.Headers, table.Rows)
	p.logReport(StageNormalize, string(domain.SourceStudentHousing), report)
	p.recordSourceCounts(domain.SourceStudentHousing, report)

	rows := make([]domain.RawRow, len(records))
	for i, r := range records {
		rows[i] = marshalStudentHousing(r)
	}
	return tabular.WriteFile(p.processedPath(StudentHousingCleanFile), studentHousingHeaders, rows)
}

func (p *Pipeline) normalizeViolations() error {
	table, err := tabular.ReadFile(p.cfg.ViolationsPath)
	if err != nil {
		if errors.Is(err, tabular.ErrNotFound) {
			return fmt.Errorf("%w: violations snapshot %s", domain.ErrMissingRequiredInput, p.cfg.ViolationsPath)
		}
		return err
	}
	if table.Empty() {
		return fmt.Errorf("%w: violations snapshot %s has no data rows", domain.ErrMissingRequiredInput, p.cfg.ViolationsPath)
	}

	events, report := domain.NormalizeViolations(table.Headers, table.Rows)
	p.logReport(StageNormalize, string(domain.SourceViolations), report)
	p.recordSourceCounts(domain.SourceViolations, report)

	rows := make([]domain.RawRow, len(events))
	for i, e := range events {
		rows[i] = marshalViolation(e)
	}
	return tabular.WriteFile(p.processedPath(ViolationsCleanFile), violationsHeaders, rows)
}

func (p *Pipeline) normalizeRequests() error {
	table, err := tabular.ReadFile(p.cfg.RequestsPath)
	if err != nil {
		if errors.Is(err, tabular.ErrNotFound) {
			p.logger.Info("311 snapshot absent, skipping", "path", p.cfg.RequestsPath)
			return tabular.WriteFile(p.processedPath(RequestsCleanFile), requestsHeaders, nil)
		}
		return err
	}

	events, report := domain.NormalizeRequests(table.Headers, table.Rows)
	p.logReport(StageNormalize, string(domain.SourceRequests), report)
	p.recordSourceCounts(domain.SourceRequests, report)

	rows := make([]domain.RawRow, len(events))
	for i, e := range events {
		rows[i] = marshalRequest(e)
	}
	return tabular.WriteFile(p.processedPath(RequestsCleanFile), requestsHeaders, rows)
}

func (p *Pipeline) normalizeSAM() error {
	table, err := tabular.ReadFile(p.cfg.SAMPath)
	if err != nil {
		if errors.Is(err, tabular.ErrNotFound) {
			p.logger.Info("sam snapshot absent, skipping", "path", p.cfg.SAMPath)
			return tabular.WriteFile(p.processedPath(SAMCleanFile), samHeaders, nil)
		}
		return err
	}

	records, report := domain.NormalizeSAMAddresses(table.Headers, table.Rows)
	p.logReport(StageNormalize, string(domain.SourceSAM), report)
	p.recordSourceCounts(domain.SourceSAM, report)

	rows := make([]domain.RawRow, len(records))
	for i, r := range records {
		rows[i] = marshalSAMAddress(r)
	}
	return tabular.WriteFile(p.processedPath(SAMCleanFile), samHeaders, rows)
}

func (p *Pipeline) normalizeAssessments() error {
	table, err := tabular.ReadFile(p.cfg.AssessmentPath)
	if err != nil {
		if errors.Is(err, tabular.ErrNotFound) {
			p.logger.Info("assessment snapshot absent, skipping", "path", p.cfg.AssessmentPath)
			return tabular.WriteFile(p.processedPath(AssessmentCleanFile), assessmentHeaders, nil)
		}
		return err
	}

	records, report := domain.NormalizeAssessments(table.Headers, table.Rows)
	p.logReport(StageNormalize, string(domain.SourceAssessment), report)
	p.recordSourceCounts(domain.SourceAssessment, report)

	rows := make([]domain.RawRow, len(records))
	for i, r := range records {
		rows[i] = marshalAssessment(r)
	}
	return tabular.WriteFile(p.processedPath(AssessmentCleanFile), assessmentHeaders, rows)
}

// Cleaned-table readers used by the downstream stages.

func (p *Pipeline) readStudentHousingClean() ([]domain.StudentHousingRecord, error) {
	table, err := tabular.ReadFile(p.processedPath(StudentHousingCleanFile))
	if err != nil {
		return nil, err
	}
	records := make([]domain.StudentHousingRecord, len(table.Rows))
	for i, row := range table.Rows {
		records[i] = unmarshalStudentHousing(row)
	}
	return records, nil
}

func (p *Pipeline) readViolationsClean() ([]domain.ViolationEvent, error) {
	table, err := tabular.ReadFile(p.processedPath(ViolationsCleanFile))
	if err != nil {
		return nil, err
	}
	events := make([]domain.ViolationEvent, len(table.Rows))
	for i, row := range table.Rows {
		events[i] = unmarshalViolation(row)
	}
	return events, nil
}

func (p *Pipeline) readRequestsClean() ([]domain.ServiceRequest311, error) {
	table, err := tabular.ReadFile(p.processedPath(RequestsCleanFile))
	if err != nil {
		return nil, err
	}
	events := make([]domain.ServiceRequest311, len(table.Rows))
	for i, row := range table.Rows {
		events[i] = unmarshalRequest(row)
	}
	return events, nil
}

func (p *Pipeline) readSAMClean() ([]domain.SAMAddressRecord, error) {
	table, err := tabular.ReadFile(p.processedPath(SAMCleanFile))
	if err != nil {
		return nil, err
	}
	records := make([]domain.SAMAddressRecord, len(table.Rows))
	for i, row := range table.Rows {
		records[i] = unmarshalSAMAddress(row)
	}
	return records, nil
}

func (p *Pipeline) readAssessmentsClean() ([]domain.AssessmentRecord, error) {
	table, err := tabular.ReadFile(p.processedPath(AssessmentCleanFile))
	if err != nil {
		return nil, err
	}
	records := make([]domain.AssessmentRecord, len(table.Rows))
	for i, row := range table.Rows {
		records[i] = unmarshalAssessment(row)
	}
	return records, nil
}
