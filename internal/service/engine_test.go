package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/vidinfra/entitle/internal/domain/entitlement"
	"github.com/vidinfra/entitle/internal/domain/subscription"
	"github.com/vidinfra/entitle/internal/testutil"
	"github.com/vidinfra/entitle/internal/types"
)

type EngineServiceSuite struct {
	testutil.BaseServiceTestSuite
	engine EntitlementEngine
}

func TestEntitlementEngine(t *testing.T) {
	suite.Run(t, new(EngineServiceSuite))
}

func (s *EngineServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	seedCatalog(&s.BaseServiceTestSuite)
	s.engine = NewEntitlementEngine(paramsFromSuite(&s.BaseServiceTestSuite))
}

func (s *EngineServiceSuite) newBundle() *subscription.Bundle {
	bundle := subscription.NewBundle(s.GetContext(), "acct_1", s.GetUUID())
	s.NoError(s.GetStores().SubscriptionRepo.CreateBundle(s.GetContext(), bundle))
	return bundle
}

// newSubscription stores a subscription with a processed creation event
// so its timeline projects onto the given plan from start onward.
func (s *EngineServiceSuite) newSubscription(bundle *subscription.Bundle, category types.ProductCategory, planName, phaseName string, start time.Time) *subscription.Subscription {
	sub := subscription.New(s.GetContext(), bundle.ID, category, start, start)
	create := entitlement.NewEventBuilder(s.GetContext(), types.APIEventTypeCreate).
		WithSubscriptionID(sub.ID).
		WithPlan(planName, phaseName, "default").
		WithEffectiveAt(start).
		WithRequestedAt(start).
		WithProcessedAt(start).
		WithActiveVersion(sub.ActiveVersion).
		Build()
	s.NoError(s.GetStores().SubscriptionRepo.CreateWithEvents(s.GetContext(), sub, []*entitlement.Event{create}))
	return sub
}

func (s *EngineServiceSuite) listEvents(subID string) []*entitlement.Event {
	events, err := s.GetStores().EventRepo.ListBySubscription(s.GetContext(), subID)
	s.NoError(err)
	return events
}

func (s *EngineServiceSuite) TestPhaseEventSchedulesFollowingPhase() {
	now := s.GetNow()
	start := now.AddDate(0, 0, -14)
	bundle := s.newBundle()
	sub := s.newSubscription(bundle, types.ProductCategoryBase, "spotlight-launch", "trial", start)

	phaseEvent := entitlement.NewPhaseEvent(s.GetContext(), sub.ID, sub.ActiveVersion,
		"spotlight-launch", "discount", start.AddDate(0, 0, 14), start)
	s.NoError(s.GetStores().EventRepo.InsertEvent(s.GetContext(), phaseEvent))

	s.NoError(s.engine.OnEventReady(s.GetContext(), phaseEvent.ID, phaseEvent.EffectiveAt))

	var next *entitlement.Event
	for _, ev := range s.listEvents(sub.ID) {
		if ev.EventType == types.EntitlementEventTypePhase && ev.PhaseName == "evergreen" {
			next = ev
		}
	}
	s.NotNil(next)
	s.True(next.IsActive)
	s.Nil(next.ProcessedAt)
	s.True(next.EffectiveAt.Equal(start.AddDate(0, 0, 14).AddDate(0, 3, 0)))

	messages := s.GetPubSub().GetMessages(s.GetConfig().Notification.Topic)
	s.Len(messages, 1)
}

func (s *EngineServiceSuite) TestPhaseEventRedeliveryConverges() {
	now := s.GetNow()
	start := now.AddDate(0, 0, -14)
	bundle := s.newBundle()
	sub := s.newSubscription(bundle, types.ProductCategoryBase, "spotlight-launch", "trial", start)

	phaseEvent := entitlement.NewPhaseEvent(s.GetContext(), sub.ID, sub.ActiveVersion,
		"spotlight-launch", "discount", start.AddDate(0, 0, 14), start)
	s.NoError(s.GetStores().EventRepo.InsertEvent(s.GetContext(), phaseEvent))

	s.NoError(s.engine.OnEventReady(s.GetContext(), phaseEvent.ID, phaseEvent.EffectiveAt))
	s.NoError(s.engine.OnEventReady(s.GetContext(), phaseEvent.ID, phaseEvent.EffectiveAt))

	// the redelivered reaction supersedes the first follow-on, leaving
	// exactly one pending phase transition
	pending := 0
	for _, ev := range s.listEvents(sub.ID) {
		if ev.EventType == types.EntitlementEventTypePhase && ev.IsActive && ev.ProcessedAt == nil && ev.ID != phaseEvent.ID {
			pending++
		}
	}
	s.Equal(1, pending)
}

func (s *EngineServiceSuite) TestTerminalPhaseSchedulesNothing() {
	now := s.GetNow()
	start := now.AddDate(0, 0, -14)
	bundle := s.newBundle()
	sub := s.newSubscription(bundle, types.ProductCategoryBase, "spotlight-monthly", "trial", start)

	phaseEvent := entitlement.NewPhaseEvent(s.GetContext(), sub.ID, sub.ActiveVersion,
		"spotlight-monthly", "evergreen", start.AddDate(0, 0, 14), start)
	s.NoError(s.GetStores().EventRepo.InsertEvent(s.GetContext(), phaseEvent))

	before := len(s.listEvents(sub.ID))
	s.NoError(s.engine.OnEventReady(s.GetContext(), phaseEvent.ID, phaseEvent.EffectiveAt))
	s.Len(s.listEvents(sub.ID), before)
}

func (s *EngineServiceSuite) TestSkipsSupersededEvent() {
	now := s.GetNow()
	bundle := s.newBundle()
	sub := s.newSubscription(bundle, types.ProductCategoryBase, "spotlight-monthly", "trial", now.AddDate(0, 0, -1))

	stale := entitlement.NewPhaseEvent(s.GetContext(), sub.ID, sub.ActiveVersion,
		"spotlight-monthly", "evergreen", now, now)
	stale.Supersede()
	s.NoError(s.GetStores().EventRepo.InsertEvent(s.GetContext(), stale))

	s.NoError(s.engine.OnEventReady(s.GetContext(), stale.ID, stale.EffectiveAt))
	s.Empty(s.GetPubSub().GetMessages(s.GetConfig().Notification.Topic))
}

func (s *EngineServiceSuite) TestSkipsStaleVersionAndMissingEvent() {
	now := s.GetNow()
	bundle := s.newBundle()
	sub := s.newSubscription(bundle, types.ProductCategoryBase, "spotlight-monthly", "trial", now.AddDate(0, 0, -1))

	stale := entitlement.NewPhaseEvent(s.GetContext(), sub.ID, sub.ActiveVersion+1,
		"spotlight-monthly", "evergreen", now, now)
	s.NoError(s.GetStores().EventRepo.InsertEvent(s.GetContext(), stale))

	s.NoError(s.engine.OnEventReady(s.GetContext(), stale.ID, stale.EffectiveAt))
	s.Empty(s.GetPubSub().GetMessages(s.GetConfig().Notification.Topic))

	s.NoError(s.engine.OnEventReady(s.GetContext(), "evt_vanished", now))
}

func (s *EngineServiceSuite) deliverBaseEvent(sub *subscription.Subscription, apiType types.APIEventType, planName, phaseName string, at time.Time) *entitlement.Event {
	event := entitlement.NewEventBuilder(s.GetContext(), apiType).
		WithSubscriptionID(sub.ID).
		WithPlan(planName, phaseName, "default").
		WithEffectiveAt(at).
		WithRequestedAt(at).
		WithActiveVersion(sub.ActiveVersion).
		Build()
	s.NoError(s.GetStores().EventRepo.InsertEvent(s.GetContext(), event))
	s.NoError(s.engine.OnEventReady(s.GetContext(), event.ID, event.EffectiveAt))
	return event
}

func (s *EngineServiceSuite) addonCancelEvent(subID string) *entitlement.Event {
	for _, ev := range s.listEvents(subID) {
		if ev.APIType == types.APIEventTypeCancel && ev.IsActive {
			return ev
		}
	}
	return nil
}

func (s *EngineServiceSuite) TestBaseChangeCancelsIncludedAddon() {
	now := s.GetNow()
	start := now.AddDate(0, -1, 0)
	bundle := s.newBundle()
	base := s.newSubscription(bundle, types.ProductCategoryBase, "spotlight-monthly", "evergreen", start)
	addon := s.newSubscription(bundle, types.ProductCategoryAddOn, "caption-monthly", "evergreen", start)

	// the premium base product bundles captions in, so the standalone
	// add-on must go
	change := s.deliverBaseEvent(base, types.APIEventTypeChange, "spotlight-premium", "evergreen", now)

	cancel := s.addonCancelEvent(addon.ID)
	s.NotNil(cancel)
	s.True(cancel.EffectiveAt.Equal(change.EffectiveAt))
	s.Equal("caption-monthly", cancel.PlanName)

	state := ProjectState(addon, s.listEvents(addon.ID), now)
	s.Equal(types.SubscriptionStateCancelled, state.State)
}

func (s *EngineServiceSuite) TestBaseChangeCancelsUnsupportedAddon() {
	now := s.GetNow()
	start := now.AddDate(0, -1, 0)
	bundle := s.newBundle()
	base := s.newSubscription(bundle, types.ProductCategoryBase, "spotlight-monthly", "evergreen", start)
	addon := s.newSubscription(bundle, types.ProductCategoryAddOn, "caption-monthly", "evergreen", start)

	s.deliverBaseEvent(base, types.APIEventTypeChange, "studio-monthly", "evergreen", now)

	s.NotNil(s.addonCancelEvent(addon.ID))
}

func (s *EngineServiceSuite) TestBaseChangeKeepsSupportedAddon() {
	now := s.GetNow()
	start := now.AddDate(0, -1, 0)
	bundle := s.newBundle()
	base := s.newSubscription(bundle, types.ProductCategoryBase, "spotlight-monthly", "evergreen", start)
	addon := s.newSubscription(bundle, types.ProductCategoryAddOn, "caption-monthly", "evergreen", start)

	s.deliverBaseEvent(base, types.APIEventTypeChange, "spotlight-launch", "trial", now)

	s.Nil(s.addonCancelEvent(addon.ID))
	state := ProjectState(addon, s.listEvents(addon.ID), now)
	s.Equal(types.SubscriptionStateActive, state.State)
}

func (s *EngineServiceSuite) TestBaseCancelCascadesToAddons() {
	now := s.GetNow()
	start := now.AddDate(0, -1, 0)
	bundle := s.newBundle()
	base := s.newSubscription(bundle, types.ProductCategoryBase, "spotlight-monthly", "evergreen", start)
	addon := s.newSubscription(bundle, types.ProductCategoryAddOn, "caption-monthly", "evergreen", start)

	cancel := s.deliverBaseEvent(base, types.APIEventTypeCancel, "spotlight-monthly", "evergreen", now)

	addonCancel := s.addonCancelEvent(addon.ID)
	s.NotNil(addonCancel)
	s.True(addonCancel.EffectiveAt.Equal(cancel.EffectiveAt))
}

func (s *EngineServiceSuite) TestLateChangeAfterBaseCancelStillCascades() {
	now := s.GetNow()
	start := now.AddDate(0, -1, 0)
	bundle := s.newBundle()
	base := s.newSubscription(bundle, types.ProductCategoryBase, "spotlight-monthly", "evergreen", start)
	addon := s.newSubscription(bundle, types.ProductCategoryAddOn, "caption-monthly", "evergreen", start)

	// the base was already cancelled before the change's effective date
	cancelAt := now.AddDate(0, 0, -7)
	cancel := entitlement.NewEventBuilder(s.GetContext(), types.APIEventTypeCancel).
		WithSubscriptionID(base.ID).
		WithPlan("spotlight-monthly", "evergreen", "default").
		WithEffectiveAt(cancelAt).
		WithRequestedAt(cancelAt).
		WithProcessedAt(cancelAt).
		WithActiveVersion(base.ActiveVersion).
		Build()
	s.NoError(s.GetStores().EventRepo.InsertEvent(s.GetContext(), cancel))

	// a straggler change lands afterwards; the projected base state is
	// cancelled, so the cascade must still take the add-on regardless of
	// the change's target plan
	s.deliverBaseEvent(base, types.APIEventTypeChange, "spotlight-launch", "trial", now)

	s.NotNil(s.addonCancelEvent(addon.ID))
}

func (s *EngineServiceSuite) TestCascadeSkipsInactiveAddon() {
	now := s.GetNow()
	start := now.AddDate(0, -1, 0)
	bundle := s.newBundle()
	base := s.newSubscription(bundle, types.ProductCategoryBase, "spotlight-monthly", "evergreen", start)
	// the add-on only starts next week, it is pending at the change date
	addon := s.newSubscription(bundle, types.ProductCategoryAddOn, "caption-monthly", "evergreen", now.AddDate(0, 0, 7))

	s.deliverBaseEvent(base, types.APIEventTypeChange, "spotlight-premium", "evergreen", now)

	s.Nil(s.addonCancelEvent(addon.ID))
}

func (s *EngineServiceSuite) TestTransitionAnnouncedOnBus() {
	now := s.GetNow()
	start := now.AddDate(0, -1, 0)
	bundle := s.newBundle()
	base := s.newSubscription(bundle, types.ProductCategoryBase, "spotlight-monthly", "evergreen", start)

	s.deliverBaseEvent(base, types.APIEventTypeChange, "studio-monthly", "evergreen", now)

	messages := s.GetPubSub().GetMessages(s.GetConfig().Notification.Topic)
	s.Len(messages, 1)
}
