package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vidinfra/entitle/internal/domain/entitlement"
	ierr "github.com/vidinfra/entitle/internal/errors"
	"github.com/vidinfra/entitle/internal/logger"
	"github.com/vidinfra/entitle/internal/postgres"
	"github.com/vidinfra/entitle/internal/types"
)

const insertEventQuery = `
	INSERT INTO entitlement_events (
		id, subscription_id, event_type, api_type, plan_name, phase_name, price_list,
		effective_at, requested_at, processed_at, active_version, is_active,
		charged_through_at, migration_event_id, claimed_until,
		tenant_id, status, created_at, updated_at, created_by, updated_by
	) VALUES (
		:id, :subscription_id, :event_type, :api_type, :plan_name, :phase_name, :price_list,
		:effective_at, :requested_at, :processed_at, :active_version, :is_active,
		:charged_through_at, :migration_event_id, :claimed_until,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
	)`

type entitlementRepository struct {
	client *postgres.Client
	logger *logger.Logger
}

func NewEntitlementRepository(client *postgres.Client, log *logger.Logger) entitlement.Repository {
	return &entitlementRepository{client: client, logger: log}
}

func insertEventTx(ctx context.Context, tx *sqlx.Tx, event *entitlement.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if _, err := tx.NamedExecContext(ctx, insertEventQuery, event); err != nil {
		return ierr.WithError(err).
			WithMessage("failed to insert entitlement event").
			WithReportableDetails(map[string]any{
				"event_id":        event.ID,
				"subscription_id": event.SubscriptionID,
			}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *entitlementRepository) GetEvent(ctx context.Context, id string) (*entitlement.Event, error) {
	var event entitlement.Event
	err := r.client.DB.GetContext(ctx, &event,
		`SELECT * FROM entitlement_events WHERE id = $1 AND tenant_id = $2 AND status != $3`,
		id, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewErrorf("entitlement event %s not found", id).
				WithHint("The event does not exist").
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithMessage("failed to get entitlement event").
			Mark(ierr.ErrDatabase)
	}
	return &event, nil
}

func (r *entitlementRepository) ListBySubscription(ctx context.Context, subscriptionID string) ([]*entitlement.Event, error) {
	var events []*entitlement.Event
	err := r.client.DB.SelectContext(ctx, &events,
		`SELECT * FROM entitlement_events
		 WHERE subscription_id = $1 AND tenant_id = $2 AND status != $3
		 ORDER BY effective_at, created_at, id`,
		subscriptionID, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		return nil, ierr.WithError(err).
			WithMessage("failed to list entitlement events").
			Mark(ierr.ErrDatabase)
	}
	entitlement.SortEvents(events)
	return events, nil
}

func (r *entitlementRepository) InsertEvent(ctx context.Context, event *entitlement.Event) error {
	return r.client.WithTx(ctx, func(tx *sqlx.Tx) error {
		return insertEventTx(ctx, tx, event)
	})
}

func (r *entitlementRepository) InsertNextPhaseEvent(ctx context.Context, subscriptionID string, event *entitlement.Event) error {
	return r.client.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE entitlement_events
			 SET is_active = FALSE, updated_at = $1, updated_by = $2
			 WHERE subscription_id = $3 AND tenant_id = $4
			   AND event_type = $5 AND is_active AND processed_at IS NULL`,
			event.UpdatedAt, types.GetUserID(ctx),
			subscriptionID, types.GetTenantID(ctx), types.EntitlementEventTypePhase); err != nil {
			return ierr.WithError(err).
				WithMessage("failed to supersede pending phase events").
				Mark(ierr.ErrDatabase)
		}
		return insertEventTx(ctx, tx, event)
	})
}

func (r *entitlementRepository) SupersedePendingEvents(ctx context.Context, subscriptionID string, from time.Time) (int, error) {
	res, err := r.client.DB.ExecContext(ctx,
		`UPDATE entitlement_events
		 SET is_active = FALSE, updated_at = $1, updated_by = $2
		 WHERE subscription_id = $3 AND tenant_id = $4
		   AND is_active AND processed_at IS NULL AND effective_at >= $5`,
		time.Now().UTC(), types.GetUserID(ctx),
		subscriptionID, types.GetTenantID(ctx), from)
	if err != nil {
		return 0, ierr.WithError(err).
			WithMessage("failed to supersede pending events").
			Mark(ierr.ErrDatabase)
	}
	superseded, err := res.RowsAffected()
	if err != nil {
		return 0, ierr.WithError(err).
			WithMessage("failed to count superseded events").
			Mark(ierr.ErrDatabase)
	}
	return int(superseded), nil
}

// ClaimReadyEvents selects due events with FOR UPDATE SKIP LOCKED so
// concurrent scheduler instances never claim the same event, then stamps
// the claim lease on the selected rows.
func (r *entitlementRepository) ClaimReadyEvents(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*entitlement.Event, error) {
	var events []*entitlement.Event
	err := r.client.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &events,
			`SELECT * FROM entitlement_events
			 WHERE effective_at <= $1
			   AND processed_at IS NULL
			   AND is_active
			   AND status != $2
			   AND (claimed_until IS NULL OR claimed_until <= $1)
			 ORDER BY effective_at, created_at
			 LIMIT $3
			 FOR UPDATE SKIP LOCKED`,
			now, types.StatusDeleted, limit); err != nil {
			return ierr.WithError(err).
				WithMessage("failed to select ready events").
				Mark(ierr.ErrDatabase)
		}
		if len(events) == 0 {
			return nil
		}

		claimedUntil := now.Add(lease).UTC()
		ids := make([]string, 0, len(events))
		for _, event := range events {
			until := claimedUntil
			event.ClaimedUntil = &until
			ids = append(ids, event.ID)
		}

		query, args, err := sqlx.In(
			`UPDATE entitlement_events SET claimed_until = ? WHERE id IN (?)`,
			claimedUntil, ids)
		if err != nil {
			return ierr.WithError(err).
				WithMessage("failed to build claim query").
				Mark(ierr.ErrDatabase)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return ierr.WithError(err).
				WithMessage("failed to claim ready events").
				Mark(ierr.ErrDatabase)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *entitlementRepository) MarkEventProcessed(ctx context.Context, id string, processedAt time.Time) error {
	if _, err := r.client.DB.ExecContext(ctx,
		`UPDATE entitlement_events
		 SET processed_at = $1, claimed_until = NULL, updated_at = $1, updated_by = $2
		 WHERE id = $3`,
		processedAt.UTC(), types.GetUserID(ctx), id); err != nil {
		return ierr.WithError(err).
			WithMessage("failed to mark event processed").
			WithReportableDetails(map[string]any{"event_id": id}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *entitlementRepository) ReleaseClaim(ctx context.Context, id string) error {
	if _, err := r.client.DB.ExecContext(ctx,
		`UPDATE entitlement_events SET claimed_until = NULL WHERE id = $1`,
		id); err != nil {
		return ierr.WithError(err).
			WithMessage("failed to release event claim").
			WithReportableDetails(map[string]any{"event_id": id}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}
