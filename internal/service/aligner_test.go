package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/vidinfra/entitle/internal/domain/catalog"
	"github.com/vidinfra/entitle/internal/domain/migration"
	ierr "github.com/vidinfra/entitle/internal/errors"
	"github.com/vidinfra/entitle/internal/testutil"
	"github.com/vidinfra/entitle/internal/types"
)

type AlignerServiceSuite struct {
	testutil.BaseServiceTestSuite
	aligner PlanAligner
}

func TestAlignerService(t *testing.T) {
	suite.Run(t, new(AlignerServiceSuite))
}

func (s *AlignerServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	seedCatalog(&s.BaseServiceTestSuite)
	s.aligner = NewPlanAligner(paramsFromSuite(&s.BaseServiceTestSuite))
}

func (s *AlignerServiceSuite) TestNextPhaseReturnsFollowingPhase() {
	alignStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	next, err := s.aligner.NextPhase(s.GetContext(), "spotlight-monthly", alignStart, alignStart)
	s.NoError(err)
	s.NotNil(next)
	s.Equal("spotlight-monthly", next.PlanName)
	s.Equal("evergreen", next.PhaseName)
	s.Equal(catalog.PhaseTypeEvergreen, next.PhaseType)
	s.True(next.StartAt.Equal(alignStart.AddDate(0, 0, 14)))
}

func (s *AlignerServiceSuite) TestNextPhaseWalksIntermediatePhases() {
	alignStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	// refTime sits inside the discount phase of the three phase plan
	refTime := alignStart.AddDate(0, 1, 0)

	next, err := s.aligner.NextPhase(s.GetContext(), "spotlight-launch", alignStart, refTime)
	s.NoError(err)
	s.NotNil(next)
	s.Equal("evergreen", next.PhaseName)
	s.True(next.StartAt.Equal(alignStart.AddDate(0, 0, 14).AddDate(0, 3, 0)))
}

func (s *AlignerServiceSuite) TestNextPhaseTerminalOnEvergreen() {
	alignStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	refTime := alignStart.AddDate(1, 0, 0)

	next, err := s.aligner.NextPhase(s.GetContext(), "spotlight-monthly", alignStart, refTime)
	s.NoError(err)
	s.Nil(next)
}

func (s *AlignerServiceSuite) TestNextPhaseSingleEvergreenPlan() {
	alignStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	next, err := s.aligner.NextPhase(s.GetContext(), "studio-monthly", alignStart, alignStart)
	s.NoError(err)
	s.Nil(next)
}

func (s *AlignerServiceSuite) TestNextPhaseUnknownPlan() {
	alignStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	next, err := s.aligner.NextPhase(s.GetContext(), "missing-plan", alignStart, alignStart)
	s.Error(err)
	s.Nil(next)
	s.True(ierr.IsCatalogResolution(err))
}

func (s *AlignerServiceSuite) TestMigrationTimelineSingleOpenCase() {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.AddDate(0, 3, 0)

	timeline, err := s.aligner.MigrationTimeline(s.GetContext(), []migration.Case{
		{PlanName: "spotlight-monthly", PriceList: "default", EffectiveAt: start},
	}, now)
	s.NoError(err)
	s.Len(timeline, 2)

	s.Equal(types.APIEventTypeMigrateEntitlement, timeline[0].APIType)
	s.True(timeline[0].EventAt.Equal(start))
	s.Equal("trial", timeline[0].PhaseName)

	s.Equal(types.EntitlementEventTypePhase, timeline[1].EventType)
	s.True(timeline[1].EventAt.Equal(start.AddDate(0, 0, 14)))
	s.Equal("evergreen", timeline[1].PhaseName)
}

func (s *AlignerServiceSuite) TestMigrationTimelineEmitsFirstFutureBoundary() {
	now := s.GetNow()
	start := now.AddDate(0, 0, -7)

	timeline, err := s.aligner.MigrationTimeline(s.GetContext(), []migration.Case{
		{PlanName: "spotlight-monthly", PriceList: "default", EffectiveAt: start},
	}, now)
	s.NoError(err)
	s.Len(timeline, 2)
	s.Equal(types.EntitlementEventTypePhase, timeline[1].EventType)
	s.True(timeline[1].EventAt.After(now))
	s.True(timeline[1].EventAt.Equal(start.AddDate(0, 0, 14)))
}

func (s *AlignerServiceSuite) TestMigrationTimelineMultiCase() {
	first := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	second := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2020, 9, 1, 0, 0, 0, 0, time.UTC)

	timeline, err := s.aligner.MigrationTimeline(s.GetContext(), []migration.Case{
		{PlanName: "spotlight-monthly", PriceList: "default", EffectiveAt: first},
		{PlanName: "spotlight-premium", PriceList: "default", EffectiveAt: second},
	}, now)
	s.NoError(err)
	s.Len(timeline, 3)

	s.Equal(types.APIEventTypeMigrateEntitlement, timeline[0].APIType)
	s.True(timeline[0].EventAt.Equal(first))

	// trial boundary falls strictly inside the first case's interval
	s.Equal(types.EntitlementEventTypePhase, timeline[1].EventType)
	s.True(timeline[1].EventAt.Equal(first.AddDate(0, 0, 14)))

	s.Equal(types.APIEventTypeChange, timeline[2].APIType)
	s.True(timeline[2].EventAt.Equal(second))
	s.Equal("spotlight-premium", timeline[2].PlanName)
}

func (s *AlignerServiceSuite) TestMigrationTimelineSkipsBoundaryPastInterval() {
	first := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	// the change lands before the 14 day trial boundary
	second := first.AddDate(0, 0, 7)
	now := time.Date(2020, 9, 1, 0, 0, 0, 0, time.UTC)

	timeline, err := s.aligner.MigrationTimeline(s.GetContext(), []migration.Case{
		{PlanName: "spotlight-monthly", PriceList: "default", EffectiveAt: first},
		{PlanName: "studio-monthly", PriceList: "default", EffectiveAt: second},
	}, now)
	s.NoError(err)
	s.Len(timeline, 2)
	s.Equal(types.APIEventTypeMigrateEntitlement, timeline[0].APIType)
	s.Equal(types.APIEventTypeChange, timeline[1].APIType)
}

func (s *AlignerServiceSuite) TestMigrationTimelineCancelledCase() {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	cancelled := time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2020, 9, 1, 0, 0, 0, 0, time.UTC)

	timeline, err := s.aligner.MigrationTimeline(s.GetContext(), []migration.Case{
		{PlanName: "spotlight-monthly", PriceList: "default", EffectiveAt: start, CancelledAt: &cancelled},
	}, now)
	s.NoError(err)
	s.Len(timeline, 3)
	s.Equal(types.APIEventTypeCancel, timeline[2].APIType)
	s.True(timeline[2].EventAt.Equal(cancelled))
}

func (s *AlignerServiceSuite) TestMigrationTimelineValidation() {
	now := s.GetNow()
	first := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	earlier := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.aligner.MigrationTimeline(s.GetContext(), nil, now)
	s.True(ierr.IsValidation(err))

	_, err = s.aligner.MigrationTimeline(s.GetContext(), []migration.Case{
		{PlanName: "spotlight-monthly", EffectiveAt: first},
		{PlanName: "studio-monthly", EffectiveAt: earlier},
	}, now)
	s.True(ierr.IsValidation(err))

	cancelled := first.AddDate(0, 1, 0)
	_, err = s.aligner.MigrationTimeline(s.GetContext(), []migration.Case{
		{PlanName: "spotlight-monthly", EffectiveAt: earlier, CancelledAt: &cancelled},
		{PlanName: "studio-monthly", EffectiveAt: first},
	}, now)
	s.True(ierr.IsValidation(err))

	before := earlier.AddDate(0, -1, 0)
	_, err = s.aligner.MigrationTimeline(s.GetContext(), []migration.Case{
		{PlanName: "spotlight-monthly", EffectiveAt: earlier, CancelledAt: &before},
	}, now)
	s.True(ierr.IsValidation(err))
}
