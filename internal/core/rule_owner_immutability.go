package core

import (
	"context"
	"fmt"

	"oraclevault/pkg/domain"
)

// OwnerImmutabilityRule blocks record updates that alter the owner or the
// creation timestamp. Both are fixed at registration for the record's
// lifetime.
type OwnerImmutabilityRule struct{}

// Name implements Rule.
func (OwnerImmutabilityRule) Name() string { return "owner_immutability" }

// Evaluate implements Rule.
func (OwnerImmutabilityRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityRecord || change.Action != domain.ActionUpdate {
			continue
		}
		before, okBefore := change.Before.(domain.Record)
		after, okAfter := change.After.(domain.Record)
		if !okBefore || !okAfter {
			continue
		}
		if before.Owner != after.Owner {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "owner_immutability",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("record %d owner changed from %q to %q", after.ID, before.Owner, after.Owner),
				Entity:   domain.EntityRecord,
				EntityID: after.ID,
			})
		}
		if !before.CreatedAt.Equal(after.CreatedAt) {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "owner_immutability",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("record %d creation timestamp changed", after.ID),
				Entity:   domain.EntityRecord,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}
