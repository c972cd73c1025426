package notification

import (
	"time"

	"github.com/vidinfra/entitle/internal/domain/entitlement"
	"github.com/vidinfra/entitle/internal/domain/subscription"
	"github.com/vidinfra/entitle/internal/types"
)

// TransitionRecord announces one subscription state transition on the
// notification bus. It is derived from the (subscription, event) pair
// at processing time and carries the post-transition projection.
type TransitionRecord struct {
	ID             string                     `json:"id"`
	SubscriptionID string                     `json:"subscription_id"`
	BundleID       string                     `json:"bundle_id"`
	Category       types.ProductCategory      `json:"category"`
	EventID        string                     `json:"event_id"`
	EventType      types.EntitlementEventType `json:"event_type"`
	APIType        types.APIEventType         `json:"api_type,omitempty"`
	EffectiveAt    time.Time                  `json:"effective_at"`
	State          types.SubscriptionState    `json:"state"`
	PlanName       string                     `json:"plan_name,omitempty"`
	PhaseName      string                     `json:"phase_name,omitempty"`
	TenantID       string                     `json:"tenant_id"`
	PublishedAt    time.Time                  `json:"published_at"`
}

// NewTransitionRecord builds the bus representation of a processed event
func NewTransitionRecord(sub *subscription.Subscription, event *entitlement.Event, state types.SubscriptionState, planName, phaseName string, now time.Time) *TransitionRecord {
	return &TransitionRecord{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TRANSITION),
		SubscriptionID: sub.ID,
		BundleID:       sub.BundleID,
		Category:       sub.Category,
		EventID:        event.ID,
		EventType:      event.EventType,
		APIType:        event.APIType,
		EffectiveAt:    event.EffectiveAt,
		State:          state,
		PlanName:       planName,
		PhaseName:      phaseName,
		TenantID:       sub.TenantID,
		PublishedAt:    now.UTC(),
	}
}
