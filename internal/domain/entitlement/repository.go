package entitlement

import (
	"context"
	"time"
)

// Repository is the durable event store. Every call executes within an
// implicit transaction boundary and returns a not found error rather
// than nil values for missing rows.
type Repository interface {
	// GetEvent retrieves an event by id
	GetEvent(ctx context.Context, id string) (*Event, error)

	// ListBySubscription returns the full stored history of a
	// subscription in timeline order, superseded events included
	ListBySubscription(ctx context.Context, subscriptionID string) ([]*Event, error)

	// InsertEvent appends a single event
	InsertEvent(ctx context.Context, event *Event) error

	// InsertNextPhaseEvent supersedes any still-pending phase events of
	// the subscription and inserts the given phase event in their place
	InsertNextPhaseEvent(ctx context.Context, subscriptionID string, event *Event) error

	// SupersedePendingEvents marks active, not yet processed events of
	// the subscription with an effective date at or after from inactive.
	// Returns the number of superseded events.
	SupersedePendingEvents(ctx context.Context, subscriptionID string, from time.Time) (int, error)

	// ClaimReadyEvents claims up to limit due events (effective date
	// arrived, unprocessed, unclaimed or lease expired) for exclusive
	// processing until now+lease. At-least-once semantics: an expired
	// lease makes the event claimable again.
	ClaimReadyEvents(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*Event, error)

	// MarkEventProcessed records the engine handled the event
	MarkEventProcessed(ctx context.Context, id string, processedAt time.Time) error

	// ReleaseClaim drops the claim lease so the event is redelivered
	ReleaseClaim(ctx context.Context, id string) error
}
