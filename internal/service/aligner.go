package service

import (
	"context"
	"time"

	"github.com/vidinfra/entitle/internal/domain/catalog"
	"github.com/vidinfra/entitle/internal/domain/migration"
	ierr "github.com/vidinfra/entitle/internal/errors"
	"github.com/vidinfra/entitle/internal/types"
)

// TimedPhase says "at StartAt, phase PhaseName of PlanName begins". It
// is a transient value consumed once to build a real phase event.
type TimedPhase struct {
	PlanName  string
	PhaseName string
	PhaseType catalog.PhaseType
	StartAt   time.Time
}

// TimedMigration says "at EventAt, an event of the given kind occurs".
// The migration synthesizer converts these to concrete events.
type TimedMigration struct {
	EventType types.EntitlementEventType
	APIType   types.APIEventType
	EventAt   time.Time
	PlanName  string
	PhaseName string
	PriceList string
}

// PlanAligner computes when phase transitions occur. Both entry points
// are pure functions of (catalog state, inputs) with no side effects.
type PlanAligner interface {
	// NextPhase returns the phase following the one in effect at
	// refTime for a plan whose phases align to alignStart, or nil when
	// the current phase is terminal
	NextPhase(ctx context.Context, planName string, alignStart, refTime time.Time) (*TimedPhase, error)

	// MigrationTimeline reconstructs a subscription's history from its
	// chronological cases as an ordered sequence of transition instants.
	// The first instant becomes the subscription's start date.
	MigrationTimeline(ctx context.Context, cases []migration.Case, now time.Time) ([]TimedMigration, error)
}

type planAligner struct {
	ServiceParams
}

func NewPlanAligner(params ServiceParams) PlanAligner {
	return &planAligner{ServiceParams: params}
}

func (a *planAligner) NextPhase(ctx context.Context, planName string, alignStart, refTime time.Time) (*TimedPhase, error) {
	plan, err := a.CatalogRepo.GetPlan(ctx, planName)
	if err != nil {
		return nil, err
	}

	phaseStart := alignStart
	for i := range plan.Phases {
		phase := plan.Phases[i]
		if phase.Duration.IsUnlimited() {
			// evergreen phase, nothing follows
			return nil, nil
		}
		phaseEnd := phase.Duration.AddTo(phaseStart)
		if refTime.Before(phaseEnd) {
			if i+1 < len(plan.Phases) {
				next := plan.Phases[i+1]
				return &TimedPhase{
					PlanName:  plan.Name,
					PhaseName: next.Name,
					PhaseType: next.Type,
					StartAt:   phaseEnd,
				}, nil
			}
			// bounded final phase
			return nil, nil
		}
		phaseStart = phaseEnd
	}
	// refTime is past every bounded phase
	return nil, nil
}

func (a *planAligner) MigrationTimeline(ctx context.Context, cases []migration.Case, now time.Time) ([]TimedMigration, error) {
	if len(cases) == 0 {
		return nil, ierr.NewError("migration has no cases").
			WithHint("A migrated subscription must carry at least one historical case").
			Mark(ierr.ErrValidation)
	}
	for i := range cases {
		if i > 0 && cases[i].EffectiveAt.Before(cases[i-1].EffectiveAt) {
			return nil, ierr.NewError("migration cases are out of order").
				WithHint("Historical cases must be supplied in chronological order").
				WithReportableDetails(map[string]any{
					"case_index":   i,
					"effective_at": cases[i].EffectiveAt,
				}).
				Mark(ierr.ErrValidation)
		}
		if cases[i].CancelledAt != nil {
			if i != len(cases)-1 {
				return nil, ierr.NewError("only the final case may carry a cancelled date").
					WithHint("A cancellation terminates the history, no further cases may follow").
					Mark(ierr.ErrValidation)
			}
			if !cases[i].CancelledAt.After(cases[i].EffectiveAt) {
				return nil, ierr.NewError("cancelled date must follow the case's effective date").
					WithHint("A case cannot be cancelled before it starts").
					Mark(ierr.ErrValidation)
			}
		}
	}

	timeline := make([]TimedMigration, 0, len(cases)*2)
	for i := range cases {
		cur := cases[i]
		plan, err := a.CatalogRepo.GetPlan(ctx, cur.PlanName)
		if err != nil {
			return nil, err
		}
		initial, err := plan.InitialPhase()
		if err != nil {
			return nil, err
		}

		apiType := types.APIEventTypeChange
		if i == 0 {
			apiType = types.APIEventTypeMigrateEntitlement
		}
		timeline = append(timeline, TimedMigration{
			EventType: types.EntitlementEventTypeAPI,
			APIType:   apiType,
			EventAt:   cur.EffectiveAt,
			PlanName:  plan.Name,
			PhaseName: initial.Name,
			PriceList: cur.PriceList,
		})

		// Interval this case was in effect: until the next case, the
		// cancelled date, or open-ended on the final case.
		var intervalEnd time.Time
		open := false
		switch {
		case cur.CancelledAt != nil:
			intervalEnd = *cur.CancelledAt
		case i+1 < len(cases):
			intervalEnd = cases[i+1].EffectiveAt
		default:
			open = true
		}

		// Phase boundaries inside the interval. The final open case also
		// yields the first boundary past now so a pending phase
		// transition exists for the scheduler.
		phaseStart := cur.EffectiveAt
		for k := 0; k+1 < len(plan.Phases); k++ {
			phase := plan.Phases[k]
			if phase.Duration.IsUnlimited() {
				break
			}
			boundary := phase.Duration.AddTo(phaseStart)
			if !open && !boundary.Before(intervalEnd) {
				break
			}
			next := plan.Phases[k+1]
			timeline = append(timeline, TimedMigration{
				EventType: types.EntitlementEventTypePhase,
				EventAt:   boundary,
				PlanName:  plan.Name,
				PhaseName: next.Name,
				PriceList: cur.PriceList,
			})
			if open && boundary.After(now) {
				break
			}
			phaseStart = boundary
		}

		if cur.CancelledAt != nil {
			timeline = append(timeline, TimedMigration{
				EventType: types.EntitlementEventTypeAPI,
				APIType:   types.APIEventTypeCancel,
				EventAt:   *cur.CancelledAt,
				PlanName:  plan.Name,
				PhaseName: initial.Name,
				PriceList: cur.PriceList,
			})
		}
	}
	return timeline, nil
}
