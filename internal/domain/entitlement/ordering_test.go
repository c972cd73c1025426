package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vidinfra/entitle/internal/types"
)

func orderingEvent(id string, eventType types.EntitlementEventType, apiType types.APIEventType, effectiveAt time.Time) *Event {
	return &Event{
		ID:             id,
		SubscriptionID: "sub_1",
		EventType:      eventType,
		APIType:        apiType,
		EffectiveAt:    effectiveAt,
		IsActive:       true,
	}
}

func TestSortEventsOrdersByEffectiveDate(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	events := []*Event{
		orderingEvent("evt_3", types.EntitlementEventTypeAPI, types.APIEventTypeCancel, base.AddDate(0, 2, 0)),
		orderingEvent("evt_1", types.EntitlementEventTypeAPI, types.APIEventTypeCreate, base),
		orderingEvent("evt_2", types.EntitlementEventTypePhase, "", base.AddDate(0, 1, 0)),
	}

	SortEvents(events)

	assert.Equal(t, []string{"evt_1", "evt_2", "evt_3"}, []string{events[0].ID, events[1].ID, events[2].ID})
	assert.True(t, IsSorted(events))
}

func TestSortEventsMigrationKindsAtSameInstant(t *testing.T) {
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	// inserted deliberately out of precedence order
	events := []*Event{
		orderingEvent("evt_billing", types.EntitlementEventTypeAPI, types.APIEventTypeMigrateBilling, at),
		orderingEvent("evt_phase", types.EntitlementEventTypePhase, "", at),
		orderingEvent("evt_entitlement", types.EntitlementEventTypeAPI, types.APIEventTypeMigrateEntitlement, at),
	}

	assert.False(t, IsSorted(events))

	SortEvents(events)

	assert.Equal(t, "evt_entitlement", events[0].ID)
	assert.Equal(t, "evt_phase", events[1].ID)
	assert.Equal(t, "evt_billing", events[2].ID)
}

func TestSortEventsStableOnTrueTies(t *testing.T) {
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	events := []*Event{
		orderingEvent("evt_first", types.EntitlementEventTypePhase, "", at),
		orderingEvent("evt_second", types.EntitlementEventTypePhase, "", at),
	}

	SortEvents(events)

	assert.Equal(t, "evt_first", events[0].ID)
	assert.Equal(t, "evt_second", events[1].ID)
}

func TestIsSortedDetectsOutOfOrderTimeline(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	events := []*Event{
		orderingEvent("evt_2", types.EntitlementEventTypePhase, "", base.AddDate(0, 1, 0)),
		orderingEvent("evt_1", types.EntitlementEventTypeAPI, types.APIEventTypeCreate, base),
	}

	assert.False(t, IsSorted(events))
	SortEvents(events)
	assert.True(t, IsSorted(events))
}
