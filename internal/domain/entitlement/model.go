package entitlement

import (
	"context"
	"time"

	ierr "github.com/vidinfra/entitle/internal/errors"
	"github.com/vidinfra/entitle/internal/types"
)

// Event is one state change on a subscription's timeline. The pair
// (EventType, APIType) is the closed discriminant over the variant set:
// phase transitions, user intents (create, change, cancel) and the two
// synthetic migration kinds.
type Event struct {
	// ID is the unique identifier for the event
	ID string `db:"id" json:"id"`

	// SubscriptionID is the owning subscription
	SubscriptionID string `db:"subscription_id" json:"subscription_id"`

	// EventType is the top level discriminant
	EventType types.EntitlementEventType `db:"event_type" json:"event_type"`

	// APIType is the sub-kind for api events, empty for phase events
	APIType types.APIEventType `db:"api_type" json:"api_type,omitempty"`

	// PlanName is the plan the event switches to or confirms
	PlanName string `db:"plan_name" json:"plan_name,omitempty"`

	// PhaseName is the pricing phase in effect from this event on
	PhaseName string `db:"phase_name" json:"phase_name,omitempty"`

	// PriceList is the price list the plan was resolved against
	PriceList string `db:"price_list" json:"price_list,omitempty"`

	// EffectiveAt is when the state change legally applies
	EffectiveAt time.Time `db:"effective_at" json:"effective_at"`

	// RequestedAt is when the intent was issued
	RequestedAt time.Time `db:"requested_at" json:"requested_at"`

	// ProcessedAt is when the engine handled the event; nil while the
	// event is still pending delivery by the scheduler
	ProcessedAt *time.Time `db:"processed_at" json:"processed_at,omitempty"`

	// ActiveVersion stamps the subscription version this event belongs to
	ActiveVersion int `db:"active_version" json:"active_version"`

	// IsActive is false once the event has been superseded
	IsActive bool `db:"is_active" json:"is_active"`

	// ChargedThroughAt carries the already-billed-through date on a
	// migrate_billing event
	ChargedThroughAt *time.Time `db:"charged_through_at" json:"charged_through_at,omitempty"`

	// MigrationEventID references the migrate_entitlement event a
	// migrate_billing event accompanies
	MigrationEventID string `db:"migration_event_id" json:"migration_event_id,omitempty"`

	// ClaimedUntil is the scheduler's claim lease expiry; nil when unclaimed
	ClaimedUntil *time.Time `db:"claimed_until" json:"claimed_until,omitempty"`

	types.BaseModel
}

// EventBuilder assembles api events field by field
type EventBuilder struct {
	event *Event
}

// NewEventBuilder starts a builder for an api event of the given sub-kind
func NewEventBuilder(ctx context.Context, apiType types.APIEventType) *EventBuilder {
	return &EventBuilder{event: &Event{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ENTITLEMENT_EVENT),
		EventType: types.EntitlementEventTypeAPI,
		APIType:   apiType,
		IsActive:  true,
		BaseModel: types.GetDefaultBaseModel(ctx),
	}}
}

func (b *EventBuilder) WithSubscriptionID(id string) *EventBuilder {
	b.event.SubscriptionID = id
	return b
}

func (b *EventBuilder) WithPlan(planName, phaseName, priceList string) *EventBuilder {
	b.event.PlanName = planName
	b.event.PhaseName = phaseName
	b.event.PriceList = priceList
	return b
}

func (b *EventBuilder) WithEffectiveAt(t time.Time) *EventBuilder {
	b.event.EffectiveAt = t.UTC()
	return b
}

func (b *EventBuilder) WithRequestedAt(t time.Time) *EventBuilder {
	b.event.RequestedAt = t.UTC()
	return b
}

func (b *EventBuilder) WithProcessedAt(t time.Time) *EventBuilder {
	utc := t.UTC()
	b.event.ProcessedAt = &utc
	return b
}

func (b *EventBuilder) WithActiveVersion(v int) *EventBuilder {
	b.event.ActiveVersion = v
	return b
}

// Build returns the assembled event
func (b *EventBuilder) Build() *Event {
	return b.event
}

// NewPhaseEvent creates a pending phase transition event for a subscription
func NewPhaseEvent(ctx context.Context, subscriptionID string, activeVersion int, planName, phaseName string, effectiveAt, requestedAt time.Time) *Event {
	return &Event{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ENTITLEMENT_EVENT),
		SubscriptionID: subscriptionID,
		EventType:      types.EntitlementEventTypePhase,
		PlanName:       planName,
		PhaseName:      phaseName,
		EffectiveAt:    effectiveAt.UTC(),
		RequestedAt:    requestedAt.UTC(),
		ActiveVersion:  activeVersion,
		IsActive:       true,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
}

// NewMigrateBillingEvent creates the trailing billing anchor of a
// migrated timeline, referencing its migrate_entitlement event. It is
// effective at the charged-through date, which places it after every
// historical event and closes the synthesized timeline.
func NewMigrateBillingEvent(ctx context.Context, creation *Event, chargedThroughAt, now time.Time) *Event {
	ctd := chargedThroughAt.UTC()
	processed := now.UTC()
	return &Event{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ENTITLEMENT_EVENT),
		SubscriptionID:   creation.SubscriptionID,
		EventType:        types.EntitlementEventTypeAPI,
		APIType:          types.APIEventTypeMigrateBilling,
		PlanName:         creation.PlanName,
		PhaseName:        creation.PhaseName,
		PriceList:        creation.PriceList,
		EffectiveAt:      ctd,
		RequestedAt:      now.UTC(),
		ProcessedAt:      &processed,
		ActiveVersion:    creation.ActiveVersion,
		IsActive:         true,
		ChargedThroughAt: &ctd,
		MigrationEventID: creation.ID,
		BaseModel:        types.GetDefaultBaseModel(ctx),
	}
}

// IsAPI reports whether the event is an api event
func (e *Event) IsAPI() bool {
	return e.EventType == types.EntitlementEventTypeAPI
}

// Rank is the tie-break precedence within one effective instant
func (e *Event) Rank() int {
	if !e.IsAPI() {
		return 0
	}
	return e.APIType.OrderingRank()
}

// ChangesEntitlement reports whether the event carries a plan or phase
// change relevant to state projection. Migrate billing events anchor
// invoicing only and never alter the entitled plan.
func (e *Event) ChangesEntitlement() bool {
	if e.EventType == types.EntitlementEventTypePhase {
		return true
	}
	switch e.APIType {
	case types.APIEventTypeCreate, types.APIEventTypeChange, types.APIEventTypeMigrateEntitlement:
		return true
	default:
		return false
	}
}

// Supersede marks the event inactive; delivery of a superseded event is
// a no-op, which keeps re-delivery idempotent
func (e *Event) Supersede() {
	e.IsActive = false
}

// Validate checks the per-variant invariants of the event
func (e *Event) Validate() error {
	if err := e.EventType.Validate(); err != nil {
		return err
	}
	if e.SubscriptionID == "" {
		return ierr.NewError("event subscription id is required").
			WithHint("Entitlement event must reference a subscription").
			Mark(ierr.ErrValidation)
	}
	if e.EffectiveAt.IsZero() {
		return ierr.NewError("event effective date is required").
			WithHint("Entitlement event must carry an effective date").
			Mark(ierr.ErrValidation)
	}
	switch e.EventType {
	case types.EntitlementEventTypePhase:
		if e.PhaseName == "" {
			return ierr.NewError("phase event requires a phase name").
				WithHint("Phase events must name the phase they transition to").
				Mark(ierr.ErrValidation)
		}
	case types.EntitlementEventTypeAPI:
		if err := e.APIType.Validate(); err != nil {
			return err
		}
		if e.APIType == types.APIEventTypeMigrateBilling {
			if e.ChargedThroughAt == nil || e.MigrationEventID == "" {
				return ierr.NewError("migrate billing event is missing its anchor").
					WithHint("Migrate billing events require a charged-through date and a migrate entitlement reference").
					WithReportableDetails(map[string]any{
						"event_id":        e.ID,
						"subscription_id": e.SubscriptionID,
					}).
					Mark(ierr.ErrValidation)
			}
		}
	}
	return nil
}
