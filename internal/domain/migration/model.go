package migration

import (
	"time"

	"github.com/vidinfra/entitle/internal/domain/entitlement"
	"github.com/vidinfra/entitle/internal/domain/subscription"
	ierr "github.com/vidinfra/entitle/internal/errors"
	"github.com/vidinfra/entitle/internal/types"
)

// Case describes one interval of a migrated subscription's history: the
// plan (and price list) that was in effect from EffectiveAt until the
// next case, or until CancelledAt on a terminal case.
type Case struct {
	PlanName    string     `json:"plan_name"`
	PriceList   string     `json:"price_list"`
	EffectiveAt time.Time  `json:"effective_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// SubscriptionMigration is the historical description of one
// pre-existing subscription being imported
type SubscriptionMigration struct {
	Category types.ProductCategory `json:"category"`

	// Cases must be supplied in chronological order
	Cases []Case `json:"cases"`

	// ChargedThroughAt is the already-billed-through date anchoring the
	// synthetic billing event; required for the migration to be valid
	ChargedThroughAt *time.Time `json:"charged_through_at,omitempty"`
}

// BundleMigration groups the subscriptions migrated under one bundle key
type BundleMigration struct {
	BundleKey     string                  `json:"bundle_key"`
	Subscriptions []SubscriptionMigration `json:"subscriptions"`
}

// AccountMigration is one account-level bulk import request
type AccountMigration struct {
	AccountID string            `json:"account_id"`
	Bundles   []BundleMigration `json:"bundles"`
}

// Validate checks the structural preconditions of the request. The
// deeper preconditions (billing anchor, catalog resolution) are
// enforced during synthesis.
func (m *AccountMigration) Validate() error {
	if m.AccountID == "" {
		return ierr.NewError("account id is required").
			WithHint("Migration request must name the account being imported").
			Mark(ierr.ErrValidation)
	}
	if len(m.Bundles) == 0 {
		return ierr.NewError("migration request has no bundles").
			WithHint("Migration request must carry at least one bundle").
			Mark(ierr.ErrValidation)
	}
	for _, b := range m.Bundles {
		if b.BundleKey == "" {
			return ierr.NewError("bundle key is required").
				WithHint("Every migrated bundle must carry a bundle key").
				Mark(ierr.ErrValidation)
		}
		if len(b.Subscriptions) == 0 {
			return ierr.NewErrorf("bundle %s has no subscriptions", b.BundleKey).
				WithHint("Every migrated bundle must carry at least one subscription").
				Mark(ierr.ErrValidation)
		}
		for _, s := range b.Subscriptions {
			if err := s.Category.Validate(); err != nil {
				return err
			}
			if len(s.Cases) == 0 {
				return ierr.NewErrorf("subscription in bundle %s has no cases", b.BundleKey).
					WithHint("Every migrated subscription must carry at least one historical case").
					Mark(ierr.ErrValidation)
			}
		}
	}
	return nil
}

// SubscriptionMigrationData pairs a synthesized subscription with its
// finalized, totally ordered event timeline
type SubscriptionMigrationData struct {
	Subscription *subscription.Subscription
	Events       []*entitlement.Event
}

// BundleMigrationData is one synthesized bundle and its subscriptions
type BundleMigrationData struct {
	Bundle        *subscription.Bundle
	Subscriptions []*SubscriptionMigrationData
}

// AccountMigrationData is the nested output handed atomically to the
// storage collaborator: account, bundles, subscriptions, ordered events
type AccountMigrationData struct {
	AccountID string
	Bundles   []*BundleMigrationData
}
