package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sourcegraph/conc/pool"
	"github.com/vidinfra/entitle/internal/clock"
	"github.com/vidinfra/entitle/internal/config"
	"github.com/vidinfra/entitle/internal/domain/entitlement"
	ierr "github.com/vidinfra/entitle/internal/errors"
	"github.com/vidinfra/entitle/internal/logger"
	"github.com/vidinfra/entitle/internal/sentry"
	"github.com/vidinfra/entitle/internal/types"
)

// Handler is the reaction callback invoked once per delivered event.
// Returning an error releases the claim so the event is redelivered;
// the handler must therefore be idempotent (at-least-once contract).
type Handler func(ctx context.Context, eventID string, effectiveAt time.Time) error

// Scheduler delivers entitlement events once their effective date
// arrives. Claim/lease semantics keep two workers off the same event;
// lease expiry re-delivers, which the engine tolerates by design.
type Scheduler interface {
	// Register binds the queue to its reaction callback with the
	// operational parameters from configuration. A queue can only be
	// registered once.
	Register(queueName string, handler Handler, cfg config.SchedulerConfig) error

	// Start begins consuming due events
	Start() error

	// Stop ceases consuming; unclaimed due events stay ready
	Stop() error
}

type eventScheduler struct {
	repo   entitlement.Repository
	clock  clock.Clock
	logger *logger.Logger
	sentry *sentry.Service

	mu        sync.Mutex
	queueName string
	handler   Handler
	cfg       config.SchedulerConfig

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// New creates a scheduler over the durable event store
func New(
	repo entitlement.Repository,
	clk clock.Clock,
	logger *logger.Logger,
	sentry *sentry.Service,
) Scheduler {
	return &eventScheduler{
		repo:   repo,
		clock:  clk,
		logger: logger,
		sentry: sentry,
	}
}

func (s *eventScheduler) Register(queueName string, handler Handler, cfg config.SchedulerConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queueName != "" {
		return ierr.NewErrorf("queue %s is already registered", s.queueName).
			WithHint("A scheduler queue can only be registered once").
			Mark(ierr.ErrAlreadyExists)
	}
	if queueName == "" || handler == nil {
		return ierr.NewError("queue name and handler are required").
			WithHint("Scheduler registration requires a queue name and a handler").
			Mark(ierr.ErrValidation)
	}

	s.queueName = queueName
	s.handler = handler
	s.cfg = cfg
	return nil
}

func (s *eventScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queueName == "" {
		return ierr.NewError("scheduler has no registered queue").
			WithHint("Register a queue before starting the scheduler").
			Mark(ierr.ErrInvalidOperation)
	}
	if s.running {
		return nil
	}
	if s.cfg.ProcessingOff {
		s.logger.Infow("scheduler processing is off, due events stay ready",
			"queue", s.queueName,
		)
		return nil
	}

	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running = true

	go s.run(s.stopCh, s.doneCh)

	s.logger.Infow("scheduler started",
		"queue", s.queueName,
		"poll_interval", s.cfg.PollInterval,
		"max_ready_events", s.cfg.MaxReadyEvents,
		"claim_lease", s.cfg.ClaimLease,
	)
	return nil
}

func (s *eventScheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
	s.logger.Infow("scheduler stopped", "queue", s.queueName)
	return nil
}

func (s *eventScheduler) run(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // keep polling forever
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if err := s.processPass(); err != nil {
				s.sentry.CaptureException(err)
				wait := bo.NextBackOff()
				s.logger.Errorw("scheduler pass failed",
					"queue", s.queueName,
					"error", err,
					"backoff", wait,
				)
				select {
				case <-stopCh:
					return
				case <-time.After(wait):
				}
				continue
			}
			bo.Reset()
		}
	}
}

// processPass claims one batch of due events and dispatches them to the
// reaction workers
func (s *eventScheduler) processPass() error {
	ctx := context.WithValue(context.Background(), types.CtxUserID, types.SystemUserID)
	now := s.clock.Now()

	events, err := s.repo.ClaimReadyEvents(ctx, now, s.cfg.MaxReadyEvents, s.cfg.ClaimLease)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	s.logger.Debugw("claimed ready events",
		"queue", s.queueName,
		"count", len(events),
	)

	p := pool.New().WithMaxGoroutines(s.cfg.Workers)
	for _, event := range events {
		event := event
		p.Go(func() {
			s.dispatch(ctx, event)
		})
	}
	p.Wait()
	return nil
}

func (s *eventScheduler) dispatch(ctx context.Context, event *entitlement.Event) {
	// The pass context is tenantless; the handler and the follow-up
	// writes must run under the claimed event's tenant.
	ctx = context.WithValue(ctx, types.CtxTenantID, event.TenantID)

	span, ctx := s.sentry.StartQueueSpan(ctx, s.queueName)
	if span != nil {
		defer span.Finish()
	}

	if err := s.handler(ctx, event.ID, event.EffectiveAt); err != nil {
		s.sentry.CaptureException(err)
		s.logger.Errorw("event handler failed, releasing claim for redelivery",
			"queue", s.queueName,
			"event_id", event.ID,
			"subscription_id", event.SubscriptionID,
			"error", err,
		)
		if relErr := s.repo.ReleaseClaim(ctx, event.ID); relErr != nil {
			s.logger.Errorw("failed to release claim, lease will expire",
				"event_id", event.ID,
				"error", relErr,
			)
		}
		return
	}

	if err := s.repo.MarkEventProcessed(ctx, event.ID, s.clock.Now()); err != nil {
		s.logger.Errorw("failed to mark event processed, redelivery expected",
			"queue", s.queueName,
			"event_id", event.ID,
			"error", err,
		)
	}
}
