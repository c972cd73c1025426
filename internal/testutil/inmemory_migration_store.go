package testutil

import (
	"context"

	"github.com/vidinfra/entitle/internal/domain/migration"
)

// InMemoryMigrationStore is an in-memory implementation of
// migration.Repository layered over the subscription and event stores
type InMemoryMigrationStore struct {
	subs   *InMemorySubscriptionStore
	events *InMemoryEventStore
}

func NewInMemoryMigrationStore(subs *InMemorySubscriptionStore, events *InMemoryEventStore) *InMemoryMigrationStore {
	return &InMemoryMigrationStore{subs: subs, events: events}
}

func (s *InMemoryMigrationStore) MigrateAccount(ctx context.Context, accountID string, data *migration.AccountMigrationData) error {
	for _, bundleData := range data.Bundles {
		if err := s.subs.CreateBundle(ctx, bundleData.Bundle); err != nil {
			return err
		}
		for _, subData := range bundleData.Subscriptions {
			if err := s.subs.CreateWithEvents(ctx, subData.Subscription, subData.Events); err != nil {
				return err
			}
		}
	}
	return nil
}
