package types

import (
	"github.com/samber/lo"
	ierr "github.com/vidinfra/entitle/internal/errors"
)

// EntitlementEventType is the top level discriminant of an entitlement event
type EntitlementEventType string

const (
	// EntitlementEventTypePhase marks a transition to the next pricing phase of the current plan
	EntitlementEventTypePhase EntitlementEventType = "phase"
	// EntitlementEventTypeAPI marks a user or migration initiated state change
	EntitlementEventTypeAPI EntitlementEventType = "api"
)

func (t EntitlementEventType) String() string {
	return string(t)
}

func (t EntitlementEventType) Validate() error {
	allowed := []EntitlementEventType{
		EntitlementEventTypePhase,
		EntitlementEventTypeAPI,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid entitlement event type").
			WithHint("Invalid entitlement event type").
			WithReportableDetails(map[string]any{
				"type":          t,
				"allowed_types": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// APIEventType is the sub-kind of an api entitlement event
type APIEventType string

const (
	APIEventTypeCreate             APIEventType = "create"
	APIEventTypeChange             APIEventType = "change"
	APIEventTypeCancel             APIEventType = "cancel"
	APIEventTypeMigrateEntitlement APIEventType = "migrate_entitlement"
	APIEventTypeMigrateBilling     APIEventType = "migrate_billing"
)

func (t APIEventType) String() string {
	return string(t)
}

func (t APIEventType) Validate() error {
	allowed := []APIEventType{
		APIEventTypeCreate,
		APIEventTypeChange,
		APIEventTypeCancel,
		APIEventTypeMigrateEntitlement,
		APIEventTypeMigrateBilling,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid api event type").
			WithHint("Invalid api event type").
			WithReportableDetails(map[string]any{
				"type":          t,
				"allowed_types": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// OrderingRank is the type precedence used to break effective date ties
// when finalizing an event timeline: a migrate entitlement event sorts
// before any same-date sibling and a migrate billing event sorts after
// them. All other types rank equal and keep insertion order.
func (t APIEventType) OrderingRank() int {
	switch t {
	case APIEventTypeMigrateEntitlement:
		return -1
	case APIEventTypeMigrateBilling:
		return 1
	default:
		return 0
	}
}
