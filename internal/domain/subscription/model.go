package subscription

import (
	"context"
	"time"

	"github.com/vidinfra/entitle/internal/types"
)

// Subscription is the aggregate owning an ordered timeline of
// entitlement events. Its logical state (current plan, phase, lifecycle
// status) is never stored; it is projected from the event history.
type Subscription struct {
	// ID is the unique identifier for the subscription
	ID string `db:"id" json:"id"`

	// BundleID is the bundle this subscription belongs to
	BundleID string `db:"bundle_id" json:"bundle_id"`

	// Category classifies the subscription within its bundle
	Category types.ProductCategory `db:"category" json:"category"`

	// StartDate is the instant the subscription's own entitlement starts
	StartDate time.Time `db:"start_date" json:"start_date"`

	// BundleStartDate is the bundle anchor date. It differs from StartDate
	// for add-ons created after the bundle's base subscription.
	BundleStartDate time.Time `db:"bundle_start_date" json:"bundle_start_date"`

	// ActiveVersion is a monotonically increasing counter; only events
	// stamped with this version are in effect
	ActiveVersion int `db:"active_version" json:"active_version"`

	types.BaseModel
}

// New creates a subscription at its initial active version
func New(ctx context.Context, bundleID string, category types.ProductCategory, startDate, bundleStartDate time.Time) *Subscription {
	return &Subscription{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		BundleID:        bundleID,
		Category:        category,
		StartDate:       startDate.UTC(),
		BundleStartDate: bundleStartDate.UTC(),
		ActiveVersion:   1,
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
}

// Bundle groups one base or legacy subscription with its add-ons under
// an account; the anchor subscription's start date is the bundle's.
type Bundle struct {
	// ID is the unique identifier for the bundle
	ID string `db:"id" json:"id"`

	// AccountID is the owning account
	AccountID string `db:"account_id" json:"account_id"`

	// BundleKey is the caller supplied external key for the bundle
	BundleKey string `db:"bundle_key" json:"bundle_key"`

	// StartDate is fixed by the anchor subscription's start date
	StartDate time.Time `db:"start_date" json:"start_date"`

	types.BaseModel
}

// NewBundle creates a bundle for an account
func NewBundle(ctx context.Context, accountID, bundleKey string) *Bundle {
	return &Bundle{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BUNDLE),
		AccountID: accountID,
		BundleKey: bundleKey,
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
}
