package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/vidinfra/entitle/internal/domain/entitlement"
	ierr "github.com/vidinfra/entitle/internal/errors"
	"github.com/vidinfra/entitle/internal/types"
)

// InMemoryEventStore is an in-memory implementation of entitlement.Repository
type InMemoryEventStore struct {
	mu     sync.RWMutex
	events map[string]*entitlement.Event
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		events: make(map[string]*entitlement.Event),
	}
}

func (s *InMemoryEventStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[string]*entitlement.Event)
}

func copyEvent(e *entitlement.Event) *entitlement.Event {
	c := *e
	return &c
}

func (s *InMemoryEventStore) GetEvent(ctx context.Context, id string) (*entitlement.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[id]
	if !ok || event.TenantID != types.GetTenantID(ctx) {
		return nil, ierr.NewErrorf("entitlement event %s not found", id).
			WithHint("The event does not exist").
			Mark(ierr.ErrNotFound)
	}
	return copyEvent(event), nil
}

func (s *InMemoryEventStore) ListBySubscription(ctx context.Context, subscriptionID string) ([]*entitlement.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var events []*entitlement.Event
	for _, event := range s.events {
		if event.SubscriptionID == subscriptionID && event.TenantID == types.GetTenantID(ctx) {
			events = append(events, copyEvent(event))
		}
	}
	entitlement.SortEvents(events)
	return events, nil
}

func (s *InMemoryEventStore) InsertEvent(ctx context.Context, event *entitlement.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[event.ID]; ok {
		return ierr.NewErrorf("entitlement event %s already exists", event.ID).
			Mark(ierr.ErrAlreadyExists)
	}
	s.events[event.ID] = copyEvent(event)
	return nil
}

func (s *InMemoryEventStore) InsertNextPhaseEvent(ctx context.Context, subscriptionID string, event *entitlement.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.events {
		if existing.SubscriptionID == subscriptionID &&
			existing.TenantID == types.GetTenantID(ctx) &&
			!existing.IsAPI() &&
			existing.IsActive &&
			existing.ProcessedAt == nil {
			existing.Supersede()
		}
	}
	s.events[event.ID] = copyEvent(event)
	return nil
}

func (s *InMemoryEventStore) SupersedePendingEvents(ctx context.Context, subscriptionID string, from time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	superseded := 0
	for _, event := range s.events {
		if event.SubscriptionID == subscriptionID &&
			event.TenantID == types.GetTenantID(ctx) &&
			event.IsActive &&
			event.ProcessedAt == nil &&
			!event.EffectiveAt.Before(from) {
			event.Supersede()
			superseded++
		}
	}
	return superseded, nil
}

func (s *InMemoryEventStore) ClaimReadyEvents(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*entitlement.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ready []*entitlement.Event
	for _, event := range s.events {
		if event.EffectiveAt.After(now) || event.ProcessedAt != nil || !event.IsActive {
			continue
		}
		if event.ClaimedUntil != nil && event.ClaimedUntil.After(now) {
			continue
		}
		ready = append(ready, event)
	}
	entitlement.SortEvents(ready)
	if len(ready) > limit {
		ready = ready[:limit]
	}

	claimedUntil := now.Add(lease).UTC()
	claimed := make([]*entitlement.Event, 0, len(ready))
	for _, event := range ready {
		until := claimedUntil
		event.ClaimedUntil = &until
		claimed = append(claimed, copyEvent(event))
	}
	return claimed, nil
}

func (s *InMemoryEventStore) MarkEventProcessed(ctx context.Context, id string, processedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[id]
	if !ok {
		return ierr.NewErrorf("entitlement event %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	at := processedAt.UTC()
	event.ProcessedAt = &at
	event.ClaimedUntil = nil
	return nil
}

func (s *InMemoryEventStore) ReleaseClaim(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[id]
	if !ok {
		return ierr.NewErrorf("entitlement event %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	event.ClaimedUntil = nil
	return nil
}
