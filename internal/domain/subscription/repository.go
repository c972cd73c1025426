package subscription

import (
	"context"

	"github.com/vidinfra/entitle/internal/domain/entitlement"
)

// Repository is the durable subscription/bundle store. Calls execute
// within an implicit transaction boundary and return not found errors
// rather than nil values for missing rows.
type Repository interface {
	// Get retrieves a subscription by id
	Get(ctx context.Context, id string) (*Subscription, error)

	// ListByBundle returns every subscription in a bundle
	ListByBundle(ctx context.Context, bundleID string) ([]*Subscription, error)

	// GetBundle retrieves a bundle by id
	GetBundle(ctx context.Context, id string) (*Bundle, error)

	// GetBundleByKey retrieves an account's bundle by its external key
	GetBundleByKey(ctx context.Context, accountID, bundleKey string) (*Bundle, error)

	// CreateBundle persists a new bundle
	CreateBundle(ctx context.Context, bundle *Bundle) error

	// CreateWithEvents persists a subscription together with its initial
	// event timeline as one transaction
	CreateWithEvents(ctx context.Context, sub *Subscription, events []*entitlement.Event) error

	// CancelSubscription supersedes the subscription's pending events
	// from the cancel's effective date on and appends the cancel event,
	// as one transaction
	CancelSubscription(ctx context.Context, subscriptionID string, cancelEvent *entitlement.Event) error
}
