package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidinfra/entitle/internal/clock"
	"github.com/vidinfra/entitle/internal/config"
	"github.com/vidinfra/entitle/internal/domain/entitlement"
	ierr "github.com/vidinfra/entitle/internal/errors"
	"github.com/vidinfra/entitle/internal/logger"
	"github.com/vidinfra/entitle/internal/scheduler"
	"github.com/vidinfra/entitle/internal/sentry"
	"github.com/vidinfra/entitle/internal/testutil"
	"github.com/vidinfra/entitle/internal/types"
)

func newScheduler(t *testing.T, store *testutil.InMemoryEventStore, clk clock.Clock) scheduler.Scheduler {
	t.Helper()
	cfg := config.GetDefaultConfig()
	log, err := logger.NewLogger(cfg)
	require.NoError(t, err)
	return scheduler.New(store, clk, log, sentry.NewSentryService(cfg, log))
}

func pendingPhaseEvent(ctx context.Context, effectiveAt time.Time) *entitlement.Event {
	return entitlement.NewPhaseEvent(ctx, "sub_1", 1, "spotlight-monthly", "evergreen", effectiveAt, effectiveAt)
}

func TestRegisterValidation(t *testing.T) {
	store := testutil.NewInMemoryEventStore()
	clk := clock.NewTestClock(time.Now().UTC())
	sched := newScheduler(t, store, clk)

	cfg := config.GetDefaultConfig().Scheduler
	handler := func(ctx context.Context, eventID string, effectiveAt time.Time) error { return nil }

	assert.Error(t, sched.Start(), "start before register must fail")

	err := sched.Register("", handler, cfg)
	assert.True(t, ierr.IsValidation(err))

	require.NoError(t, sched.Register("subscription-events", handler, cfg))
	err = sched.Register("subscription-events", handler, cfg)
	assert.True(t, ierr.IsAlreadyExists(err))
}

func TestDispatchRunsUnderEventTenant(t *testing.T) {
	tenantCtx := context.WithValue(context.Background(), types.CtxTenantID, "tn_acme")
	store := testutil.NewInMemoryEventStore()
	now := time.Now().UTC()
	clk := clock.NewTestClock(now)
	sched := newScheduler(t, store, clk)

	event := pendingPhaseEvent(tenantCtx, now.Add(-time.Minute))
	require.NoError(t, store.InsertEvent(tenantCtx, event))

	// a tenantless read cannot see the event
	_, err := store.GetEvent(context.Background(), event.ID)
	require.True(t, ierr.IsNotFound(err))

	cfg := config.GetDefaultConfig().Scheduler
	cfg.PollInterval = 10 * time.Millisecond
	cfg.MaxReadyEvents = 10
	cfg.ClaimLease = time.Minute
	cfg.Workers = 1

	var mu sync.Mutex
	var seenTenant string
	handler := func(ctx context.Context, eventID string, effectiveAt time.Time) error {
		// the store only yields the event when the context carries its
		// tenant, exactly like the tenant-scoped sql reads
		if _, err := store.GetEvent(ctx, eventID); err != nil {
			return err
		}
		mu.Lock()
		seenTenant = types.GetTenantID(ctx)
		mu.Unlock()
		return nil
	}

	require.NoError(t, sched.Register("subscription-events", handler, cfg))
	require.NoError(t, sched.Start())
	defer sched.Stop()

	assert.Eventually(t, func() bool {
		got, err := store.GetEvent(tenantCtx, event.ID)
		return err == nil && got.ProcessedAt != nil
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "tn_acme", seenTenant)
}

func TestClaimLeaseLifecycle(t *testing.T) {
	ctx := context.WithValue(context.Background(), types.CtxUserID, types.SystemUserID)
	store := testutil.NewInMemoryEventStore()
	now := time.Now().UTC()
	clk := clock.NewTestClock(now)

	event := pendingPhaseEvent(ctx, now.Add(-time.Minute))
	require.NoError(t, store.InsertEvent(ctx, event))

	lease := 5 * time.Minute
	claimed, err := store.ClaimReadyEvents(ctx, clk.Now(), 10, lease)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, event.ID, claimed[0].ID)

	// a held claim keeps the event off subsequent passes
	again, err := store.ClaimReadyEvents(ctx, clk.Now(), 10, lease)
	require.NoError(t, err)
	assert.Empty(t, again)

	// an expired lease means the holder died, the event is redelivered
	clk.Advance(lease + time.Second)
	again, err = store.ClaimReadyEvents(ctx, clk.Now(), 10, lease)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, event.ID, again[0].ID)
}

func TestReleaseClaimRedelivers(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewInMemoryEventStore()
	now := time.Now().UTC()
	clk := clock.NewTestClock(now)

	event := pendingPhaseEvent(ctx, now.Add(-time.Minute))
	require.NoError(t, store.InsertEvent(ctx, event))

	claimed, err := store.ClaimReadyEvents(ctx, clk.Now(), 10, time.Hour)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, store.ReleaseClaim(ctx, event.ID))

	claimed, err = store.ClaimReadyEvents(ctx, clk.Now(), 10, time.Hour)
	require.NoError(t, err)
	assert.Len(t, claimed, 1)
}

func TestProcessedEventNeverRedelivered(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewInMemoryEventStore()
	now := time.Now().UTC()
	clk := clock.NewTestClock(now)

	event := pendingPhaseEvent(ctx, now.Add(-time.Minute))
	require.NoError(t, store.InsertEvent(ctx, event))

	claimed, err := store.ClaimReadyEvents(ctx, clk.Now(), 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, store.MarkEventProcessed(ctx, event.ID, clk.Now()))

	clk.Advance(time.Hour)
	claimed, err = store.ClaimReadyEvents(ctx, clk.Now(), 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestClaimSkipsFutureAndSuperseded(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewInMemoryEventStore()
	now := time.Now().UTC()
	clk := clock.NewTestClock(now)

	future := pendingPhaseEvent(ctx, now.Add(time.Hour))
	require.NoError(t, store.InsertEvent(ctx, future))

	superseded := pendingPhaseEvent(ctx, now.Add(-time.Hour))
	superseded.Supersede()
	require.NoError(t, store.InsertEvent(ctx, superseded))

	due := pendingPhaseEvent(ctx, now.Add(-time.Minute))
	require.NoError(t, store.InsertEvent(ctx, due))

	claimed, err := store.ClaimReadyEvents(ctx, clk.Now(), 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, due.ID, claimed[0].ID)
}
