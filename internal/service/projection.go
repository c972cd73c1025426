package service

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/vidinfra/entitle/internal/domain/entitlement"
	"github.com/vidinfra/entitle/internal/domain/subscription"
	"github.com/vidinfra/entitle/internal/types"
)

// ProjectedState is a subscription's current logical state derived by
// replaying its event history. It holds no independent persisted state
// and is recomputable from stored events alone.
type ProjectedState struct {
	SubscriptionID string                  `json:"subscription_id"`
	State          types.SubscriptionState `json:"state"`
	PlanName       string                  `json:"plan_name,omitempty"`
	PhaseName      string                  `json:"phase_name,omitempty"`
	PriceList      string                  `json:"price_list,omitempty"`

	// PlanStartAt is the effective date of the most recent plan-setting
	// event (create, change or migrate entitlement); phase alignment
	// computes from this instant
	PlanStartAt time.Time `json:"plan_start_at"`

	// CancelledAt is set once an effective cancel exists
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// ProjectState replays a subscription's events at the given instant.
// Only events stamped with the subscription's current active version
// and still flagged active are in effect; superseded events stay stored
// for audit but never influence the projection.
func ProjectState(sub *subscription.Subscription, events []*entitlement.Event, now time.Time) *ProjectedState {
	effective := lo.Filter(events, func(e *entitlement.Event, _ int) bool {
		return e.IsActive && e.ActiveVersion == sub.ActiveVersion
	})
	entitlement.SortEvents(effective)

	state := &ProjectedState{
		SubscriptionID: sub.ID,
	}

	for _, e := range effective {
		if e.EffectiveAt.After(now) {
			break
		}
		switch {
		case e.ChangesEntitlement():
			state.PlanName = e.PlanName
			state.PhaseName = e.PhaseName
			if e.PriceList != "" {
				state.PriceList = e.PriceList
			}
			if e.IsAPI() {
				state.PlanStartAt = e.EffectiveAt
			}
		case e.IsAPI() && e.APIType == types.APIEventTypeCancel:
			cancelledAt := e.EffectiveAt
			state.CancelledAt = &cancelledAt
		}
	}

	switch {
	case state.CancelledAt != nil:
		state.State = types.SubscriptionStateCancelled
	case sub.StartDate.After(now):
		state.State = types.SubscriptionStatePending
	default:
		state.State = types.SubscriptionStateActive
	}
	return state
}

// ProjectionService exposes the read path over projected state
type ProjectionService interface {
	GetProjectedState(ctx context.Context, subscriptionID string) (*ProjectedState, error)
}

type projectionService struct {
	ServiceParams
}

func NewProjectionService(params ServiceParams) ProjectionService {
	return &projectionService{ServiceParams: params}
}

func (s *projectionService) GetProjectedState(ctx context.Context, subscriptionID string) (*ProjectedState, error) {
	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	events, err := s.EventRepo.ListBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	return ProjectState(sub, events, s.Clock.Now()), nil
}
