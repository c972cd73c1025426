package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/vidinfra/entitle/internal/domain/entitlement"
	"github.com/vidinfra/entitle/internal/domain/subscription"
	ierr "github.com/vidinfra/entitle/internal/errors"
	"github.com/vidinfra/entitle/internal/logger"
	"github.com/vidinfra/entitle/internal/postgres"
	"github.com/vidinfra/entitle/internal/types"
)

const insertSubscriptionQuery = `
	INSERT INTO subscriptions (
		id, bundle_id, category, start_date, bundle_start_date, active_version,
		tenant_id, status, created_at, updated_at, created_by, updated_by
	) VALUES (
		:id, :bundle_id, :category, :start_date, :bundle_start_date, :active_version,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
	)`

const insertBundleQuery = `
	INSERT INTO bundles (
		id, account_id, bundle_key, start_date,
		tenant_id, status, created_at, updated_at, created_by, updated_by
	) VALUES (
		:id, :account_id, :bundle_key, :start_date,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
	)`

type subscriptionRepository struct {
	client *postgres.Client
	logger *logger.Logger
}

func NewSubscriptionRepository(client *postgres.Client, log *logger.Logger) subscription.Repository {
	return &subscriptionRepository{client: client, logger: log}
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	err := r.client.DB.GetContext(ctx, &sub,
		`SELECT * FROM subscriptions WHERE id = $1 AND tenant_id = $2 AND status != $3`,
		id, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewErrorf("subscription %s not found", id).
				WithHint("The subscription does not exist").
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithMessage("failed to get subscription").
			Mark(ierr.ErrDatabase)
	}
	return &sub, nil
}

func (r *subscriptionRepository) ListByBundle(ctx context.Context, bundleID string) ([]*subscription.Subscription, error) {
	var subs []*subscription.Subscription
	err := r.client.DB.SelectContext(ctx, &subs,
		`SELECT * FROM subscriptions
		 WHERE bundle_id = $1 AND tenant_id = $2 AND status != $3
		 ORDER BY start_date, id`,
		bundleID, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		return nil, ierr.WithError(err).
			WithMessage("failed to list subscriptions by bundle").
			Mark(ierr.ErrDatabase)
	}
	return subs, nil
}

func (r *subscriptionRepository) GetBundle(ctx context.Context, id string) (*subscription.Bundle, error) {
	var bundle subscription.Bundle
	err := r.client.DB.GetContext(ctx, &bundle,
		`SELECT * FROM bundles WHERE id = $1 AND tenant_id = $2 AND status != $3`,
		id, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewErrorf("bundle %s not found", id).
				WithHint("The bundle does not exist").
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithMessage("failed to get bundle").
			Mark(ierr.ErrDatabase)
	}
	return &bundle, nil
}

func (r *subscriptionRepository) GetBundleByKey(ctx context.Context, accountID, bundleKey string) (*subscription.Bundle, error) {
	var bundle subscription.Bundle
	err := r.client.DB.GetContext(ctx, &bundle,
		`SELECT * FROM bundles
		 WHERE account_id = $1 AND bundle_key = $2 AND tenant_id = $3 AND status != $4`,
		accountID, bundleKey, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewErrorf("bundle %s not found for account %s", bundleKey, accountID).
				WithHint("The bundle does not exist").
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithMessage("failed to get bundle by key").
			Mark(ierr.ErrDatabase)
	}
	return &bundle, nil
}

func (r *subscriptionRepository) CreateBundle(ctx context.Context, bundle *subscription.Bundle) error {
	if _, err := r.client.DB.NamedExecContext(ctx, insertBundleQuery, bundle); err != nil {
		return ierr.WithError(err).
			WithMessage("failed to create bundle").
			WithReportableDetails(map[string]any{"bundle_id": bundle.ID}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *subscriptionRepository) CreateWithEvents(ctx context.Context, sub *subscription.Subscription, events []*entitlement.Event) error {
	return r.client.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, insertSubscriptionQuery, sub); err != nil {
			return ierr.WithError(err).
				WithMessage("failed to create subscription").
				WithReportableDetails(map[string]any{"subscription_id": sub.ID}).
				Mark(ierr.ErrDatabase)
		}
		for _, event := range events {
			if err := insertEventTx(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *subscriptionRepository) CancelSubscription(ctx context.Context, subscriptionID string, cancelEvent *entitlement.Event) error {
	return r.client.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE entitlement_events
			 SET is_active = FALSE, updated_at = $1, updated_by = $2
			 WHERE subscription_id = $3 AND tenant_id = $4
			   AND is_active AND processed_at IS NULL AND effective_at >= $5`,
			cancelEvent.UpdatedAt, types.GetUserID(ctx),
			subscriptionID, types.GetTenantID(ctx), cancelEvent.EffectiveAt)
		if err != nil {
			return ierr.WithError(err).
				WithMessage("failed to supersede pending events on cancel").
				Mark(ierr.ErrDatabase)
		}
		if superseded, err := res.RowsAffected(); err == nil && superseded > 0 {
			r.logger.Debugw("superseded pending events on cancel",
				"subscription_id", subscriptionID,
				"superseded", superseded)
		}
		return insertEventTx(ctx, tx, cancelEvent)
	})
}
