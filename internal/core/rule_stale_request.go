package core

import (
	"context"
	"fmt"
	"time"

	"oraclevault/pkg/domain"
)

// StaleRequestRule warns about bindings older than MaxAge. The protocol never
// times a request out on its own, so an operator has to notice and decide
// whether to cancel; the warning is that signal.
type StaleRequestRule struct {
	MaxAge time.Duration
	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// Name implements Rule.
func (StaleRequestRule) Name() string { return "stale_request" }

// Evaluate implements Rule.
func (r StaleRequestRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	maxAge := r.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultStaleRequestAge
	}
	now := time.Now().UTC()
	if r.Now != nil {
		now = r.Now()
	}
	res := domain.Result{}
	for _, binding := range view.ListBindings() {
		age := now.Sub(binding.IssuedAt)
		if age <= maxAge {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "stale_request",
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("correlation %d for record %d in flight for %s", binding.CorrelationID, binding.RecordID, age.Round(time.Second)),
			Entity:   domain.EntityBinding,
			EntityID: binding.RecordID,
		})
	}
	return res, nil
}
