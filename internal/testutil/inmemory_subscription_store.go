package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/vidinfra/entitle/internal/domain/entitlement"
	"github.com/vidinfra/entitle/internal/domain/subscription"
	ierr "github.com/vidinfra/entitle/internal/errors"
	"github.com/vidinfra/entitle/internal/types"
)

// InMemorySubscriptionStore is an in-memory implementation of
// subscription.Repository, sharing the event store so cross-aggregate
// writes stay consistent the way the transactional store keeps them
type InMemorySubscriptionStore struct {
	mu      sync.RWMutex
	subs    map[string]*subscription.Subscription
	bundles map[string]*subscription.Bundle
	events  *InMemoryEventStore
}

func NewInMemorySubscriptionStore(events *InMemoryEventStore) *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		subs:    make(map[string]*subscription.Subscription),
		bundles: make(map[string]*subscription.Bundle),
		events:  events,
	}
}

func (s *InMemorySubscriptionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = make(map[string]*subscription.Subscription)
	s.bundles = make(map[string]*subscription.Bundle)
}

func copySubscription(sub *subscription.Subscription) *subscription.Subscription {
	c := *sub
	return &c
}

func copyBundle(b *subscription.Bundle) *subscription.Bundle {
	c := *b
	return &c
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[id]
	if !ok || sub.TenantID != types.GetTenantID(ctx) {
		return nil, ierr.NewErrorf("subscription %s not found", id).
			WithHint("The subscription does not exist").
			Mark(ierr.ErrNotFound)
	}
	return copySubscription(sub), nil
}

func (s *InMemorySubscriptionStore) ListByBundle(ctx context.Context, bundleID string) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var subs []*subscription.Subscription
	for _, sub := range s.subs {
		if sub.BundleID == bundleID && sub.TenantID == types.GetTenantID(ctx) {
			subs = append(subs, copySubscription(sub))
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].StartDate.Equal(subs[j].StartDate) {
			return subs[i].StartDate.Before(subs[j].StartDate)
		}
		return subs[i].ID < subs[j].ID
	})
	return subs, nil
}

func (s *InMemorySubscriptionStore) GetBundle(ctx context.Context, id string) (*subscription.Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bundle, ok := s.bundles[id]
	if !ok || bundle.TenantID != types.GetTenantID(ctx) {
		return nil, ierr.NewErrorf("bundle %s not found", id).
			WithHint("The bundle does not exist").
			Mark(ierr.ErrNotFound)
	}
	return copyBundle(bundle), nil
}

func (s *InMemorySubscriptionStore) GetBundleByKey(ctx context.Context, accountID, bundleKey string) (*subscription.Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, bundle := range s.bundles {
		if bundle.AccountID == accountID && bundle.BundleKey == bundleKey &&
			bundle.TenantID == types.GetTenantID(ctx) {
			return copyBundle(bundle), nil
		}
	}
	return nil, ierr.NewErrorf("bundle %s not found for account %s", bundleKey, accountID).
		WithHint("The bundle does not exist").
		Mark(ierr.ErrNotFound)
}

func (s *InMemorySubscriptionStore) CreateBundle(ctx context.Context, bundle *subscription.Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bundles[bundle.ID]; ok {
		return ierr.NewErrorf("bundle %s already exists", bundle.ID).
			Mark(ierr.ErrAlreadyExists)
	}
	s.bundles[bundle.ID] = copyBundle(bundle)
	return nil
}

func (s *InMemorySubscriptionStore) CreateWithEvents(ctx context.Context, sub *subscription.Subscription, events []*entitlement.Event) error {
	s.mu.Lock()
	if _, ok := s.subs[sub.ID]; ok {
		s.mu.Unlock()
		return ierr.NewErrorf("subscription %s already exists", sub.ID).
			Mark(ierr.ErrAlreadyExists)
	}
	s.subs[sub.ID] = copySubscription(sub)
	s.mu.Unlock()

	for _, event := range events {
		if err := s.events.InsertEvent(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemorySubscriptionStore) CancelSubscription(ctx context.Context, subscriptionID string, cancelEvent *entitlement.Event) error {
	s.mu.RLock()
	_, ok := s.subs[subscriptionID]
	s.mu.RUnlock()
	if !ok {
		return ierr.NewErrorf("subscription %s not found", subscriptionID).
			Mark(ierr.ErrNotFound)
	}

	if _, err := s.events.SupersedePendingEvents(ctx, subscriptionID, cancelEvent.EffectiveAt); err != nil {
		return err
	}
	return s.events.InsertEvent(ctx, cancelEvent)
}
