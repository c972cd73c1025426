package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/vidinfra/entitle/internal/config"
	ierr "github.com/vidinfra/entitle/internal/errors"
	"github.com/vidinfra/entitle/internal/scheduler"
)

// StubScheduler implements scheduler.Scheduler without any background
// polling; tests deliver events by hand through Deliver
type StubScheduler struct {
	mu        sync.Mutex
	queueName string
	handler   scheduler.Handler
	running   bool
}

func NewStubScheduler() *StubScheduler {
	return &StubScheduler{}
}

func (s *StubScheduler) Register(queueName string, handler scheduler.Handler, cfg config.SchedulerConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handler != nil {
		return ierr.NewErrorf("queue %s already registered", s.queueName).
			Mark(ierr.ErrAlreadyExists)
	}
	s.queueName = queueName
	s.handler = handler
	return nil
}

func (s *StubScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	return nil
}

func (s *StubScheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

// QueueName returns the registered queue name
func (s *StubScheduler) QueueName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queueName
}

// Running reports whether Start has been called without a matching Stop
func (s *StubScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Deliver invokes the registered handler as the scheduler would
func (s *StubScheduler) Deliver(ctx context.Context, eventID string, effectiveAt time.Time) error {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler == nil {
		return ierr.NewError("no handler registered").
			Mark(ierr.ErrInvalidOperation)
	}
	return handler(ctx, eventID, effectiveAt)
}
