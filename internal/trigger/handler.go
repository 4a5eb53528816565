// Package trigger consumes the committed change feed and applies the derived
// academic rules. Every rule is a keyed, idempotent handler applied in its own
// transaction, so redelivered events leave the derived state unchanged.
package trigger

import (
	"context"
	"time"

	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/internal/store"
	"github.com/noah-isme/academic-engine/pkg/policy"
)

// Handler derives state from one change event.
type Handler interface {
	Name() string
	Entity() models.EntityType
	Matches(ev models.ChangeEvent) bool
	// DedupeKey identifies the effect; a key is applied at most once.
	DedupeKey(ev models.ChangeEvent) string
	Apply(ctx context.Context, tx store.Tx, ev models.ChangeEvent) error
}

// Rules carries the thresholds used by the default handlers.
type Rules struct {
	RiskThreshold     float64
	RiskHighThreshold float64
	Policy            *policy.Policy
	Now               func() time.Time
}

// DefaultHandlers returns the five academic rules.
func DefaultHandlers(rules Rules) []Handler {
	if rules.RiskThreshold <= 0 {
		rules.RiskThreshold = 3.0
	}
	if rules.RiskHighThreshold <= 0 {
		rules.RiskHighThreshold = 2.5
	}
	if rules.Now == nil {
		rules.Now = func() time.Time { return time.Now().UTC() }
	}
	return []Handler{
		&AuditLogger{now: rules.Now},
		&RiskNotifier{threshold: rules.RiskThreshold, high: rules.RiskHighThreshold, now: rules.Now},
		&CreditUpdater{now: rules.Now},
		&CapacityValidator{policy: rules.Policy, now: rules.Now},
		&GradeHistorian{},
	}
}
