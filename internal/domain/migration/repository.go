package migration

import (
	"context"
)

// Repository persists a synthesized account migration as a single
// transaction per account. Partial persistence failures are surfaced to
// the caller, never retried here.
type Repository interface {
	// MigrateAccount persists bundles, subscriptions and events
	// all-or-nothing for one account
	MigrateAccount(ctx context.Context, accountID string, data *AccountMigrationData) error
}
