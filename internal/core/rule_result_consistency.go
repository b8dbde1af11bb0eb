package core

import (
	"context"
	"fmt"

	"oraclevault/pkg/domain"
)

// ResultConsistencyRule blocks any commit where the processed flag and the
// result table disagree: a processed record must have a result, an
// unprocessed record must not.
type ResultConsistencyRule struct{}

// Name implements Rule.
func (ResultConsistencyRule) Name() string { return "result_consistency" }

// Evaluate implements Rule.
func (ResultConsistencyRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, record := range view.ListRecords() {
		_, hasResult := view.FindResult(record.ID)
		if record.Processed == hasResult {
			continue
		}
		msg := fmt.Sprintf("record %d processed without a stored result", record.ID)
		if hasResult {
			msg = fmt.Sprintf("record %d has a result but is not marked processed", record.ID)
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "result_consistency",
			Severity: domain.SeverityBlock,
			Message:  msg,
			Entity:   domain.EntityRecord,
			EntityID: record.ID,
		})
	}
	return res, nil
}
