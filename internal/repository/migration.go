package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/vidinfra/entitle/internal/domain/migration"
	ierr "github.com/vidinfra/entitle/internal/errors"
	"github.com/vidinfra/entitle/internal/logger"
	"github.com/vidinfra/entitle/internal/postgres"
)

type migrationRepository struct {
	client *postgres.Client
	logger *logger.Logger
}

func NewMigrationRepository(client *postgres.Client, log *logger.Logger) migration.Repository {
	return &migrationRepository{client: client, logger: log}
}

// MigrateAccount stores the whole synthesized account in a single
// transaction. Either every bundle, subscription and event lands, or
// nothing does.
func (r *migrationRepository) MigrateAccount(ctx context.Context, accountID string, data *migration.AccountMigrationData) error {
	return r.client.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, bundleData := range data.Bundles {
			if _, err := tx.NamedExecContext(ctx, insertBundleQuery, bundleData.Bundle); err != nil {
				return ierr.WithError(err).
					WithMessage("failed to insert migrated bundle").
					WithReportableDetails(map[string]any{
						"account_id": accountID,
						"bundle_key": bundleData.Bundle.BundleKey,
					}).
					Mark(ierr.ErrDatabase)
			}
			for _, subData := range bundleData.Subscriptions {
				if _, err := tx.NamedExecContext(ctx, insertSubscriptionQuery, subData.Subscription); err != nil {
					return ierr.WithError(err).
						WithMessage("failed to insert migrated subscription").
						WithReportableDetails(map[string]any{
							"account_id":      accountID,
							"subscription_id": subData.Subscription.ID,
						}).
						Mark(ierr.ErrDatabase)
				}
				for _, event := range subData.Events {
					if err := insertEventTx(ctx, tx, event); err != nil {
						return err
					}
				}
			}
		}
		r.logger.Infow("stored migrated account", "account_id", accountID, "bundles", len(data.Bundles))
		return nil
	})
}
