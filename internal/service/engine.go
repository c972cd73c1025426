package service

import (
	"context"
	"time"

	"github.com/vidinfra/entitle/internal/domain/catalog"
	"github.com/vidinfra/entitle/internal/domain/entitlement"
	"github.com/vidinfra/entitle/internal/domain/subscription"
	ierr "github.com/vidinfra/entitle/internal/errors"
	"github.com/vidinfra/entitle/internal/notification"
	"github.com/vidinfra/entitle/internal/types"
)

const (
	// NotificationQueueName is the scheduler queue the engine consumes
	NotificationQueueName = "subscription-events"

	// ServiceName identifies the engine on the bus and in telemetry
	ServiceName = "entitlement-service"
)

// EntitlementEngine reacts to entitlement events as their effective date
// arrives: it schedules follow-on phase transitions, cascades add-on
// cancellations off base plan changes and announces every applied
// transition on the bus. Delivery is at-least-once; every reaction is
// idempotent under redelivery.
type EntitlementEngine interface {
	// Initialize registers the engine's handler on the scheduler queue
	Initialize() error

	// Start begins consuming due events
	Start() error

	// Stop drains in-flight reactions and halts consumption
	Stop() error

	// OnEventReady is the scheduler callback for one due event
	OnEventReady(ctx context.Context, eventID string, effectiveAt time.Time) error
}

type entitlementEngine struct {
	ServiceParams
	aligner PlanAligner
}

func NewEntitlementEngine(params ServiceParams) EntitlementEngine {
	return &entitlementEngine{
		ServiceParams: params,
		aligner:       NewPlanAligner(params),
	}
}

func (e *entitlementEngine) Initialize() error {
	return e.Scheduler.Register(NotificationQueueName, e.OnEventReady, e.Config.Scheduler)
}

func (e *entitlementEngine) Start() error {
	return e.Scheduler.Start()
}

func (e *entitlementEngine) Stop() error {
	return e.Scheduler.Stop()
}

// OnEventReady applies the reaction protocol. Returning nil marks the
// event processed; returning an error releases the claim so the event
// is redelivered. Skips (superseded event, vanished subscription, stale
// version) are deliberate nils: redelivering them can never help.
func (e *entitlementEngine) OnEventReady(ctx context.Context, eventID string, effectiveAt time.Time) error {
	event, err := e.EventRepo.GetEvent(ctx, eventID)
	if err != nil {
		if ierr.IsNotFound(err) {
			e.Logger.Warnw("due event no longer exists, skipping", "event_id", eventID)
			return nil
		}
		return err
	}

	if !event.IsActive {
		e.Logger.Debugw("skipping superseded event",
			"event_id", event.ID,
			"subscription_id", event.SubscriptionID)
		return nil
	}
	if event.ProcessedAt != nil {
		e.Logger.Debugw("skipping already processed event",
			"event_id", event.ID,
			"subscription_id", event.SubscriptionID)
		return nil
	}

	sub, err := e.SubRepo.Get(ctx, event.SubscriptionID)
	if err != nil {
		if ierr.IsNotFound(err) {
			e.Logger.Warnw("subscription for due event no longer exists, skipping",
				"event_id", event.ID,
				"subscription_id", event.SubscriptionID)
			return nil
		}
		return err
	}
	if event.ActiveVersion != sub.ActiveVersion {
		e.Logger.Debugw("skipping event from a stale subscription version",
			"event_id", event.ID,
			"subscription_id", sub.ID,
			"event_version", event.ActiveVersion,
			"active_version", sub.ActiveVersion)
		return nil
	}

	if event.EventType == types.EntitlementEventTypePhase {
		if err := e.onPhaseEvent(ctx, sub, event); err != nil {
			return err
		}
	}
	if event.IsAPI() && sub.Category.IsBundleAnchor() {
		if err := e.onBasePlanEvent(ctx, sub, event); err != nil {
			return err
		}
	}

	e.announceTransition(ctx, sub, event)
	return nil
}

// onPhaseEvent schedules the phase transition following the one that
// just applied. The follow-on supersedes whatever pending phase event
// was written before, so a redelivered phase event converges on the
// same stored timeline.
func (e *entitlementEngine) onPhaseEvent(ctx context.Context, sub *subscription.Subscription, event *entitlement.Event) error {
	events, err := e.EventRepo.ListBySubscription(ctx, sub.ID)
	if err != nil {
		return err
	}
	state := ProjectState(sub, events, event.EffectiveAt)
	if state.State == types.SubscriptionStateCancelled {
		return nil
	}

	next, err := e.aligner.NextPhase(ctx, state.PlanName, state.PlanStartAt, event.EffectiveAt)
	if err != nil {
		return err
	}
	if next == nil {
		// terminal phase
		return nil
	}

	phaseEvent := entitlement.NewPhaseEvent(ctx, sub.ID, sub.ActiveVersion,
		next.PlanName, next.PhaseName, next.StartAt, e.Clock.Now())
	if err := e.EventRepo.InsertNextPhaseEvent(ctx, sub.ID, phaseEvent); err != nil {
		return err
	}

	e.Logger.Debugw("scheduled next phase transition",
		"subscription_id", sub.ID,
		"plan", next.PlanName,
		"phase", next.PhaseName,
		"effective_at", next.StartAt)
	return nil
}

// onBasePlanEvent cascades a base plan transition onto the bundle's
// add-ons: add-ons the new base plan includes (now bundled in for free)
// or no longer supports are cancelled at the triggering event's
// effective date. A base cancellation takes every active add-on with it.
func (e *entitlementEngine) onBasePlanEvent(ctx context.Context, sub *subscription.Subscription, event *entitlement.Event) error {
	baseEvents, err := e.EventRepo.ListBySubscription(ctx, sub.ID)
	if err != nil {
		return err
	}
	baseState := ProjectState(sub, baseEvents, event.EffectiveAt)

	// A nil base product means the base is gone at the event's
	// effective date; projecting the state rather than inspecting the
	// event kind keeps a late-delivered event after a cancellation from
	// resurrecting the cascade's view of the base.
	var baseProduct *catalog.Product
	if baseState.State != types.SubscriptionStateCancelled {
		baseProduct, err = e.CatalogRepo.GetProductForPlan(ctx, baseState.PlanName)
		if err != nil {
			return err
		}
	}

	siblings, err := e.SubRepo.ListByBundle(ctx, sub.BundleID)
	if err != nil {
		return err
	}

	now := e.Clock.Now()
	for _, addon := range siblings {
		if addon.ID == sub.ID || addon.Category != types.ProductCategoryAddOn {
			continue
		}

		addonEvents, err := e.EventRepo.ListBySubscription(ctx, addon.ID)
		if err != nil {
			return err
		}
		state := ProjectState(addon, addonEvents, event.EffectiveAt)
		if state.State != types.SubscriptionStateActive {
			continue
		}

		cancel, err := e.shouldCancelAddon(ctx, baseProduct, state.PlanName)
		if err != nil {
			return err
		}
		if !cancel {
			continue
		}

		cancelEvent := entitlement.NewEventBuilder(ctx, types.APIEventTypeCancel).
			WithSubscriptionID(addon.ID).
			WithPlan(state.PlanName, state.PhaseName, state.PriceList).
			WithEffectiveAt(event.EffectiveAt).
			WithRequestedAt(now).
			WithActiveVersion(addon.ActiveVersion).
			Build()
		if err := e.SubRepo.CancelSubscription(ctx, addon.ID, cancelEvent); err != nil {
			return err
		}

		e.Logger.Infow("cancelled add-on following base plan transition",
			"bundle_id", sub.BundleID,
			"base_subscription_id", sub.ID,
			"addon_subscription_id", addon.ID,
			"addon_plan", state.PlanName,
			"effective_at", event.EffectiveAt)
	}
	return nil
}

// shouldCancelAddon decides the cascade for one add-on against the new
// base product; a nil base product means the base was cancelled.
func (e *entitlementEngine) shouldCancelAddon(ctx context.Context, baseProduct *catalog.Product, addonPlanName string) (bool, error) {
	if baseProduct == nil {
		return true, nil
	}
	addonProduct, err := e.CatalogRepo.GetProductForPlan(ctx, addonPlanName)
	if err != nil {
		return false, err
	}
	if baseProduct.IncludesAddon(addonProduct.Name) {
		return true, nil
	}
	if !baseProduct.SupportsAddon(addonProduct.Name) {
		return true, nil
	}
	return false, nil
}

// announceTransition publishes the applied transition on the bus.
// Publish failures are logged and swallowed; the durable timeline, not
// the bus, is the source of truth.
func (e *entitlementEngine) announceTransition(ctx context.Context, sub *subscription.Subscription, event *entitlement.Event) {
	events, err := e.EventRepo.ListBySubscription(ctx, sub.ID)
	if err != nil {
		e.Logger.Warnw("failed to project state for transition announcement",
			"error", err,
			"event_id", event.ID,
			"subscription_id", sub.ID)
		return
	}
	state := ProjectState(sub, events, event.EffectiveAt)

	record := notification.NewTransitionRecord(sub, event, state.State, state.PlanName, state.PhaseName, e.Clock.Now())
	if err := e.TransitionPublisher.PublishTransition(ctx, record); err != nil {
		e.Logger.Warnw("failed to announce transition, continuing",
			"error", err,
			"event_id", event.ID,
			"subscription_id", sub.ID)
	}
}
