package types

import (
	"github.com/samber/lo"
	ierr "github.com/vidinfra/entitle/internal/errors"
)

// SubscriptionState is the lifecycle state of a subscription derived
// from its event history
type SubscriptionState string

const (
	// SubscriptionStatePending means the subscription exists but its start date has not arrived yet
	SubscriptionStatePending SubscriptionState = "pending"
	// SubscriptionStateActive means the subscription is currently entitled
	SubscriptionStateActive SubscriptionState = "active"
	// SubscriptionStateCancelled is terminal, no further transitions are accepted
	SubscriptionStateCancelled SubscriptionState = "cancelled"
)

func (s SubscriptionState) String() string {
	return string(s)
}

func (s SubscriptionState) Validate() error {
	allowed := []SubscriptionState{
		SubscriptionStatePending,
		SubscriptionStateActive,
		SubscriptionStateCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid subscription state").
			WithHint("Invalid subscription state").
			WithReportableDetails(map[string]any{
				"state":          s,
				"allowed_states": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ProductCategory classifies a subscription within its bundle. Exactly one
// base or legacy subscription anchors a bundle; add-ons reference the anchor.
type ProductCategory string

const (
	ProductCategoryBase   ProductCategory = "base"
	ProductCategoryAddOn  ProductCategory = "add_on"
	ProductCategoryLegacy ProductCategory = "legacy"
)

func (c ProductCategory) String() string {
	return string(c)
}

// IsBundleAnchor reports whether subscriptions of this category define
// the bundle start date
func (c ProductCategory) IsBundleAnchor() bool {
	return c == ProductCategoryBase || c == ProductCategoryLegacy
}

func (c ProductCategory) Validate() error {
	allowed := []ProductCategory{
		ProductCategoryBase,
		ProductCategoryAddOn,
		ProductCategoryLegacy,
	}
	if !lo.Contains(allowed, c) {
		return ierr.NewError("invalid product category").
			WithHint("Invalid product category").
			WithReportableDetails(map[string]any{
				"category":           c,
				"allowed_categories": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
