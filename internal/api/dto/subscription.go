package dto

import (
	"time"

	"github.com/vidinfra/entitle/internal/domain/subscription"
	ierr "github.com/vidinfra/entitle/internal/errors"
	"github.com/vidinfra/entitle/internal/types"
)

type CreateSubscriptionRequest struct {
	AccountID string `json:"account_id" binding:"required"`
	BundleKey string `json:"bundle_key" binding:"required"`
	PlanName  string `json:"plan_name" binding:"required"`
	PriceList string `json:"price_list"`

	// EffectiveAt defaults to now when omitted
	EffectiveAt *time.Time `json:"effective_at,omitempty"`
}

func (r *CreateSubscriptionRequest) Validate() error {
	if r.AccountID == "" {
		return ierr.NewError("account_id is required").
			WithHint("Account ID is required").
			Mark(ierr.ErrValidation)
	}
	if r.BundleKey == "" {
		return ierr.NewError("bundle_key is required").
			WithHint("Bundle key is required").
			Mark(ierr.ErrValidation)
	}
	if r.PlanName == "" {
		return ierr.NewError("plan_name is required").
			WithHint("Plan name is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

type ChangePlanRequest struct {
	PlanName  string `json:"plan_name" binding:"required"`
	PriceList string `json:"price_list"`

	// EffectiveAt defaults to now when omitted
	EffectiveAt *time.Time `json:"effective_at,omitempty"`
}

func (r *ChangePlanRequest) Validate() error {
	if r.PlanName == "" {
		return ierr.NewError("plan_name is required").
			WithHint("Plan name is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

type CancelSubscriptionRequest struct {
	// EffectiveAt defaults to now when omitted
	EffectiveAt *time.Time `json:"effective_at,omitempty"`
}

// SubscriptionResponse pairs the stored subscription with its state
// projected from the event timeline
type SubscriptionResponse struct {
	*subscription.Subscription

	State       types.SubscriptionState `json:"state"`
	PlanName    string                  `json:"plan_name,omitempty"`
	PhaseName   string                  `json:"phase_name,omitempty"`
	PriceList   string                  `json:"price_list,omitempty"`
	PlanStartAt time.Time               `json:"plan_start_at"`
	CancelledAt *time.Time              `json:"cancelled_at,omitempty"`
}
