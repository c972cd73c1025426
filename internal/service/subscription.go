package service

import (
	"context"
	"time"

	"github.com/vidinfra/entitle/internal/api/dto"
	"github.com/vidinfra/entitle/internal/domain/entitlement"
	"github.com/vidinfra/entitle/internal/domain/subscription"
	ierr "github.com/vidinfra/entitle/internal/errors"
	"github.com/vidinfra/entitle/internal/types"
)

// SubscriptionService is the write-side API over subscription
// timelines. Every operation appends events; the events become
// effective when the scheduler delivers them to the engine.
type SubscriptionService interface {
	Create(ctx context.Context, req *dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	ChangePlan(ctx context.Context, subscriptionID string, req *dto.ChangePlanRequest) (*dto.SubscriptionResponse, error)
	Cancel(ctx context.Context, subscriptionID string, req *dto.CancelSubscriptionRequest) (*dto.SubscriptionResponse, error)
	Get(ctx context.Context, subscriptionID string) (*dto.SubscriptionResponse, error)
}

type subscriptionService struct {
	ServiceParams
	aligner PlanAligner
}

func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{
		ServiceParams: params,
		aligner:       NewPlanAligner(params),
	}
}

func (s *subscriptionService) Create(ctx context.Context, req *dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.Clock.Now().UTC()
	effectiveAt := now
	if req.EffectiveAt != nil {
		effectiveAt = req.EffectiveAt.UTC()
	}

	plan, err := s.CatalogRepo.GetPlan(ctx, req.PlanName)
	if err != nil {
		return nil, err
	}
	product, err := s.CatalogRepo.GetProductForPlan(ctx, plan.Name)
	if err != nil {
		return nil, err
	}
	initial, err := plan.InitialPhase()
	if err != nil {
		return nil, err
	}

	bundle, err := s.resolveBundle(ctx, req.AccountID, req.BundleKey, product.Category, effectiveAt)
	if err != nil {
		return nil, err
	}

	sub := subscription.New(ctx, bundle.ID, product.Category, effectiveAt, bundle.StartDate)
	events := []*entitlement.Event{
		entitlement.NewEventBuilder(ctx, types.APIEventTypeCreate).
			WithSubscriptionID(sub.ID).
			WithPlan(plan.Name, initial.Name, req.PriceList).
			WithEffectiveAt(effectiveAt).
			WithRequestedAt(now).
			WithActiveVersion(sub.ActiveVersion).
			Build(),
	}

	next, err := s.aligner.NextPhase(ctx, plan.Name, effectiveAt, effectiveAt)
	if err != nil {
		return nil, err
	}
	if next != nil {
		events = append(events,
			entitlement.NewPhaseEvent(ctx, sub.ID, sub.ActiveVersion, next.PlanName, next.PhaseName, next.StartAt, now))
	}

	if err := s.SubRepo.CreateWithEvents(ctx, sub, events); err != nil {
		return nil, err
	}

	s.Logger.Infow("created subscription",
		"subscription_id", sub.ID,
		"bundle_id", bundle.ID,
		"plan", plan.Name,
		"category", product.Category,
		"effective_at", effectiveAt)

	return s.toResponse(sub, events, now), nil
}

// resolveBundle creates the bundle for an anchor subscription and looks
// up the existing one for an add-on.
func (s *subscriptionService) resolveBundle(ctx context.Context, accountID, bundleKey string, category types.ProductCategory, effectiveAt time.Time) (*subscription.Bundle, error) {
	existing, err := s.SubRepo.GetBundleByKey(ctx, accountID, bundleKey)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}

	if category.IsBundleAnchor() {
		if existing != nil {
			return nil, ierr.NewErrorf("bundle %s already exists for account %s", bundleKey, accountID).
				WithHint("A bundle key can anchor only one base subscription").
				Mark(ierr.ErrAlreadyExists)
		}
		bundle := subscription.NewBundle(ctx, accountID, bundleKey)
		bundle.StartDate = effectiveAt
		if err := s.SubRepo.CreateBundle(ctx, bundle); err != nil {
			return nil, err
		}
		return bundle, nil
	}

	if existing == nil {
		return nil, ierr.NewErrorf("bundle %s not found for account %s", bundleKey, accountID).
			WithHint("An add-on subscription requires an existing bundle to attach to").
			Mark(ierr.ErrInvalidOperation)
	}
	return existing, nil
}

func (s *subscriptionService) ChangePlan(ctx context.Context, subscriptionID string, req *dto.ChangePlanRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	events, err := s.EventRepo.ListBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now().UTC()
	state := ProjectState(sub, events, now)
	if state.State == types.SubscriptionStateCancelled {
		return nil, ierr.NewError("subscription is cancelled").
			WithHint("A cancelled subscription cannot change plans").
			WithReportableDetails(map[string]any{"subscription_id": subscriptionID}).
			Mark(ierr.ErrInvalidOperation)
	}

	effectiveAt := now
	if req.EffectiveAt != nil {
		effectiveAt = req.EffectiveAt.UTC()
	}

	plan, err := s.CatalogRepo.GetPlan(ctx, req.PlanName)
	if err != nil {
		return nil, err
	}
	initial, err := plan.InitialPhase()
	if err != nil {
		return nil, err
	}

	// Pending events describe a future the change replaces
	superseded, err := s.EventRepo.SupersedePendingEvents(ctx, subscriptionID, effectiveAt)
	if err != nil {
		return nil, err
	}

	changeEvent := entitlement.NewEventBuilder(ctx, types.APIEventTypeChange).
		WithSubscriptionID(sub.ID).
		WithPlan(plan.Name, initial.Name, req.PriceList).
		WithEffectiveAt(effectiveAt).
		WithRequestedAt(now).
		WithActiveVersion(sub.ActiveVersion).
		Build()
	if err := s.EventRepo.InsertEvent(ctx, changeEvent); err != nil {
		return nil, err
	}

	next, err := s.aligner.NextPhase(ctx, plan.Name, effectiveAt, effectiveAt)
	if err != nil {
		return nil, err
	}
	if next != nil {
		phaseEvent := entitlement.NewPhaseEvent(ctx, sub.ID, sub.ActiveVersion, next.PlanName, next.PhaseName, next.StartAt, now)
		if err := s.EventRepo.InsertEvent(ctx, phaseEvent); err != nil {
			return nil, err
		}
	}

	s.Logger.Infow("changed subscription plan",
		"subscription_id", sub.ID,
		"plan", plan.Name,
		"effective_at", effectiveAt,
		"superseded_events", superseded)

	events, err = s.EventRepo.ListBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	return s.toResponse(sub, events, now), nil
}

func (s *subscriptionService) Cancel(ctx context.Context, subscriptionID string, req *dto.CancelSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	events, err := s.EventRepo.ListBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now().UTC()
	state := ProjectState(sub, events, now)
	if state.State == types.SubscriptionStateCancelled {
		return nil, ierr.NewError("subscription is already cancelled").
			WithHint("Cancellation is terminal and cannot be repeated").
			WithReportableDetails(map[string]any{"subscription_id": subscriptionID}).
			Mark(ierr.ErrInvalidOperation)
	}

	effectiveAt := now
	if req != nil && req.EffectiveAt != nil {
		effectiveAt = req.EffectiveAt.UTC()
	}

	cancelEvent := entitlement.NewEventBuilder(ctx, types.APIEventTypeCancel).
		WithSubscriptionID(sub.ID).
		WithPlan(state.PlanName, state.PhaseName, state.PriceList).
		WithEffectiveAt(effectiveAt).
		WithRequestedAt(now).
		WithActiveVersion(sub.ActiveVersion).
		Build()
	if err := s.SubRepo.CancelSubscription(ctx, sub.ID, cancelEvent); err != nil {
		return nil, err
	}

	s.Logger.Infow("cancelled subscription",
		"subscription_id", sub.ID,
		"effective_at", effectiveAt)

	events, err = s.EventRepo.ListBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	return s.toResponse(sub, events, now), nil
}

func (s *subscriptionService) Get(ctx context.Context, subscriptionID string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	events, err := s.EventRepo.ListBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	return s.toResponse(sub, events, s.Clock.Now().UTC()), nil
}

func (s *subscriptionService) toResponse(sub *subscription.Subscription, events []*entitlement.Event, now time.Time) *dto.SubscriptionResponse {
	state := ProjectState(sub, events, now)
	return &dto.SubscriptionResponse{
		Subscription: sub,
		State:        state.State,
		PlanName:     state.PlanName,
		PhaseName:    state.PhaseName,
		PriceList:    state.PriceList,
		PlanStartAt:  state.PlanStartAt,
		CancelledAt:  state.CancelledAt,
	}
}
