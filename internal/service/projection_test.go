package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/vidinfra/entitle/internal/domain/entitlement"
	"github.com/vidinfra/entitle/internal/domain/subscription"
	ierr "github.com/vidinfra/entitle/internal/errors"
	"github.com/vidinfra/entitle/internal/testutil"
	"github.com/vidinfra/entitle/internal/types"
)

type ProjectionServiceSuite struct {
	testutil.BaseServiceTestSuite
	service ProjectionService
}

func TestProjectionService(t *testing.T) {
	suite.Run(t, new(ProjectionServiceSuite))
}

func (s *ProjectionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	seedCatalog(&s.BaseServiceTestSuite)
	s.service = NewProjectionService(paramsFromSuite(&s.BaseServiceTestSuite))
}

func (s *ProjectionServiceSuite) buildTimeline(sub *subscription.Subscription, start time.Time) []*entitlement.Event {
	create := entitlement.NewEventBuilder(s.GetContext(), types.APIEventTypeCreate).
		WithSubscriptionID(sub.ID).
		WithPlan("spotlight-monthly", "trial", "default").
		WithEffectiveAt(start).
		WithRequestedAt(start).
		WithProcessedAt(start).
		WithActiveVersion(sub.ActiveVersion).
		Build()
	phase := entitlement.NewPhaseEvent(s.GetContext(), sub.ID, sub.ActiveVersion,
		"spotlight-monthly", "evergreen", start.AddDate(0, 0, 14), start)
	return []*entitlement.Event{create, phase}
}

func (s *ProjectionServiceSuite) TestProjectStateLifecycle() {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	sub := subscription.New(s.GetContext(), "bndl_1", types.ProductCategoryBase, start, start)
	events := s.buildTimeline(sub, start)

	// before the start date nothing applies yet
	state := ProjectState(sub, events, start.AddDate(0, 0, -1))
	s.Equal(types.SubscriptionStatePending, state.State)
	s.Empty(state.PlanName)

	// inside the trial
	state = ProjectState(sub, events, start.AddDate(0, 0, 7))
	s.Equal(types.SubscriptionStateActive, state.State)
	s.Equal("spotlight-monthly", state.PlanName)
	s.Equal("trial", state.PhaseName)
	s.Equal("default", state.PriceList)
	s.True(state.PlanStartAt.Equal(start))

	// the phase boundary applies at its exact instant
	state = ProjectState(sub, events, start.AddDate(0, 0, 14))
	s.Equal("evergreen", state.PhaseName)
	// phase events keep the alignment anchor where the api event set it
	s.True(state.PlanStartAt.Equal(start))
}

func (s *ProjectionServiceSuite) TestProjectStateCancellation() {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	cancelAt := start.AddDate(0, 1, 0)
	sub := subscription.New(s.GetContext(), "bndl_1", types.ProductCategoryBase, start, start)

	events := s.buildTimeline(sub, start)
	events = append(events, entitlement.NewEventBuilder(s.GetContext(), types.APIEventTypeCancel).
		WithSubscriptionID(sub.ID).
		WithPlan("spotlight-monthly", "evergreen", "default").
		WithEffectiveAt(cancelAt).
		WithRequestedAt(cancelAt).
		WithActiveVersion(sub.ActiveVersion).
		Build())

	// before the cancel takes effect the subscription is still active
	state := ProjectState(sub, events, cancelAt.AddDate(0, 0, -1))
	s.Equal(types.SubscriptionStateActive, state.State)
	s.Nil(state.CancelledAt)

	// cancelled is terminal from the cancel instant on
	state = ProjectState(sub, events, cancelAt)
	s.Equal(types.SubscriptionStateCancelled, state.State)
	s.NotNil(state.CancelledAt)
	s.True(state.CancelledAt.Equal(cancelAt))
}

func (s *ProjectionServiceSuite) TestProjectStateIgnoresSupersededEvents() {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	sub := subscription.New(s.GetContext(), "bndl_1", types.ProductCategoryBase, start, start)
	events := s.buildTimeline(sub, start)

	superseded := entitlement.NewPhaseEvent(s.GetContext(), sub.ID, sub.ActiveVersion,
		"spotlight-monthly", "discount", start.AddDate(0, 0, 7), start)
	superseded.Supersede()
	events = append(events, superseded)

	state := ProjectState(sub, events, start.AddDate(0, 0, 10))
	s.Equal("trial", state.PhaseName)
}

func (s *ProjectionServiceSuite) TestProjectStateIgnoresStaleVersions() {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	sub := subscription.New(s.GetContext(), "bndl_1", types.ProductCategoryBase, start, start)
	sub.ActiveVersion = 2

	// history from version 1 stays stored but carries no weight
	oldEvents := s.buildTimeline(sub, start)
	for _, ev := range oldEvents {
		ev.ActiveVersion = 1
	}
	current := entitlement.NewEventBuilder(s.GetContext(), types.APIEventTypeCreate).
		WithSubscriptionID(sub.ID).
		WithPlan("studio-monthly", "evergreen", "default").
		WithEffectiveAt(start).
		WithRequestedAt(start).
		WithActiveVersion(2).
		Build()

	state := ProjectState(sub, append(oldEvents, current), start.AddDate(0, 0, 7))
	s.Equal("studio-monthly", state.PlanName)
	s.Equal("evergreen", state.PhaseName)
}

func (s *ProjectionServiceSuite) TestGetProjectedState() {
	now := s.GetNow()
	start := now.AddDate(0, 0, -7)
	bundle := subscription.NewBundle(s.GetContext(), "acct_1", "bundle-1")
	s.NoError(s.GetStores().SubscriptionRepo.CreateBundle(s.GetContext(), bundle))

	sub := subscription.New(s.GetContext(), bundle.ID, types.ProductCategoryBase, start, start)
	s.NoError(s.GetStores().SubscriptionRepo.CreateWithEvents(s.GetContext(), sub, s.buildTimeline(sub, start)))

	state, err := s.service.GetProjectedState(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(sub.ID, state.SubscriptionID)
	s.Equal(types.SubscriptionStateActive, state.State)
	s.Equal("trial", state.PhaseName)

	_, err = s.service.GetProjectedState(s.GetContext(), "sub_missing")
	s.True(ierr.IsNotFound(err))
}
