package service

import (
	"context"
	"sort"
	"time"

	"github.com/vidinfra/entitle/internal/domain/entitlement"
	"github.com/vidinfra/entitle/internal/domain/migration"
	"github.com/vidinfra/entitle/internal/domain/subscription"
	ierr "github.com/vidinfra/entitle/internal/errors"
	"github.com/vidinfra/entitle/internal/types"
)

// MigrationService rebuilds the entitlement state of an account that
// pre-exists the system. It synthesizes full bundle, subscription and
// event records from a historical description and stores them in one
// atomic unit, leaving future events pending for the scheduler.
type MigrationService interface {
	MigrateAccount(ctx context.Context, req *migration.AccountMigration) (*migration.AccountMigrationData, error)
}

type migrationService struct {
	ServiceParams
	aligner PlanAligner
}

func NewMigrationService(params ServiceParams) MigrationService {
	return &migrationService{
		ServiceParams: params,
		aligner:       NewPlanAligner(params),
	}
}

func (s *migrationService) MigrateAccount(ctx context.Context, req *migration.AccountMigration) (*migration.AccountMigrationData, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.Clock.Now().UTC()
	data := &migration.AccountMigrationData{
		AccountID: req.AccountID,
		Bundles:   make([]*migration.BundleMigrationData, 0, len(req.Bundles)),
	}
	for i := range req.Bundles {
		bundleData, err := s.migrateBundle(ctx, req.AccountID, &req.Bundles[i], now)
		if err != nil {
			return nil, err
		}
		data.Bundles = append(data.Bundles, bundleData)
	}

	if err := s.MigrationRepo.MigrateAccount(ctx, req.AccountID, data); err != nil {
		return nil, err
	}

	s.Logger.Infow("migrated account",
		"account_id", req.AccountID,
		"bundles", len(data.Bundles))
	return data, nil
}

func (s *migrationService) migrateBundle(ctx context.Context, accountID string, req *migration.BundleMigration, now time.Time) (*migration.BundleMigrationData, error) {
	// The anchor subscription fixes the bundle start date, so it must be
	// synthesized first. With no anchor, the earliest subscription wins.
	ordered := make([]*migration.SubscriptionMigration, 0, len(req.Subscriptions))
	for i := range req.Subscriptions {
		ordered = append(ordered, &req.Subscriptions[i])
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		ai, aj := ordered[i].Category.IsBundleAnchor(), ordered[j].Category.IsBundleAnchor()
		if ai != aj {
			return ai
		}
		return ordered[i].Cases[0].EffectiveAt.Before(ordered[j].Cases[0].EffectiveAt)
	})

	bundle := subscription.NewBundle(ctx, accountID, req.BundleKey)
	bundleData := &migration.BundleMigrationData{
		Bundle:        bundle,
		Subscriptions: make([]*migration.SubscriptionMigrationData, 0, len(ordered)),
	}

	for _, subReq := range ordered {
		timeline, err := s.aligner.MigrationTimeline(ctx, subReq.Cases, now)
		if err != nil {
			return nil, err
		}
		startDate := timeline[0].EventAt.UTC()
		if bundle.StartDate.IsZero() {
			bundle.StartDate = startDate
		}

		sub := subscription.New(ctx, bundle.ID, subReq.Category, startDate, bundle.StartDate)
		events, err := s.toEvents(ctx, sub, subReq, timeline, now)
		if err != nil {
			return nil, err
		}
		entitlement.SortEvents(events)

		bundleData.Subscriptions = append(bundleData.Subscriptions, &migration.SubscriptionMigrationData{
			Subscription: sub,
			Events:       events,
		})
	}
	return bundleData, nil
}

// toEvents converts the timeline into stored events. Past events are
// stamped processed so the scheduler never re-delivers history; future
// ones stay pending. A migrate_billing event is appended last, anchored
// on the timeline's creation event and its charged-through date.
func (s *migrationService) toEvents(ctx context.Context, sub *subscription.Subscription, req *migration.SubscriptionMigration, timeline []TimedMigration, now time.Time) ([]*entitlement.Event, error) {
	events := make([]*entitlement.Event, 0, len(timeline)+1)
	var creation *entitlement.Event

	for i, tm := range timeline {
		var ev *entitlement.Event
		switch tm.EventType {
		case types.EntitlementEventTypePhase:
			ev = entitlement.NewPhaseEvent(ctx, sub.ID, sub.ActiveVersion, tm.PlanName, tm.PhaseName, tm.EventAt, now)
		case types.EntitlementEventTypeAPI:
			if i == 0 && tm.APIType != types.APIEventTypeMigrateEntitlement {
				return nil, ierr.NewErrorf("unexpected first event kind %s in migrated timeline", tm.APIType).
					WithHint("A migrated timeline must start with a migrate entitlement event").
					Mark(ierr.ErrValidation)
			}
			ev = entitlement.NewEventBuilder(ctx, tm.APIType).
				WithSubscriptionID(sub.ID).
				WithPlan(tm.PlanName, tm.PhaseName, tm.PriceList).
				WithEffectiveAt(tm.EventAt).
				WithRequestedAt(now).
				WithActiveVersion(sub.ActiveVersion).
				Build()
			if tm.APIType == types.APIEventTypeMigrateEntitlement {
				creation = ev
			}
		default:
			return nil, ierr.NewErrorf("unexpected event kind %s in migrated timeline", tm.EventType).
				Mark(ierr.ErrSystem)
		}
		if !ev.EffectiveAt.After(now) {
			processed := now
			ev.ProcessedAt = &processed
		}
		events = append(events, ev)
	}

	if creation == nil {
		return nil, ierr.NewError("migrated timeline has no creation event").
			WithHint("The billing anchor requires a migrate entitlement event to reference").
			WithReportableDetails(map[string]any{"subscription_id": sub.ID}).
			Mark(ierr.ErrValidation)
	}
	if req.ChargedThroughAt == nil {
		return nil, ierr.NewError("migrated subscription is missing its charged-through date").
			WithHint("Provide the date the subscription has already been billed through").
			WithReportableDetails(map[string]any{"subscription_id": sub.ID}).
			Mark(ierr.ErrValidation)
	}
	events = append(events, entitlement.NewMigrateBillingEvent(ctx, creation, *req.ChargedThroughAt, now))
	return events, nil
}
