package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vidinfra/entitle/internal/cache"
	"github.com/vidinfra/entitle/internal/clock"
	"github.com/vidinfra/entitle/internal/config"
	"github.com/vidinfra/entitle/internal/domain/catalog"
	"github.com/vidinfra/entitle/internal/domain/entitlement"
	"github.com/vidinfra/entitle/internal/domain/migration"
	"github.com/vidinfra/entitle/internal/domain/subscription"
	"github.com/vidinfra/entitle/internal/logger"
	"github.com/vidinfra/entitle/internal/notification"
	"github.com/vidinfra/entitle/internal/types"
	"github.com/vidinfra/entitle/internal/validator"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	SubscriptionRepo subscription.Repository
	EventRepo        entitlement.Repository
	CatalogRepo      catalog.Repository
	MigrationRepo    migration.Repository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	stores    Stores
	pubSub    *InMemoryPubSub
	publisher notification.TransitionPublisher
	scheduler *StubScheduler
	clock     *clock.TestClock
	logger    *logger.Logger
	config    *config.Configuration
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	// Initialize validator
	validator.NewValidator()

	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = types.LogLevelInfo

	var err error
	s.config = cfg
	s.logger, err = logger.NewLogger(cfg)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}

	// Initialize cache
	cache.Initialize(s.logger)
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.setupContext()
	s.setupStores()
	s.clock = clock.NewTestClock(time.Now().UTC())
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.ClearStores()
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = context.Background()
	s.ctx = context.WithValue(s.ctx, types.CtxTenantID, types.DefaultTenantID)
	s.ctx = context.WithValue(s.ctx, types.CtxUserID, types.DefaultUserID)
	s.ctx = context.WithValue(s.ctx, types.CtxRequestID, types.GenerateUUID())
}

func (s *BaseServiceTestSuite) setupStores() {
	eventStore := NewInMemoryEventStore()
	subStore := NewInMemorySubscriptionStore(eventStore)
	s.stores = Stores{
		SubscriptionRepo: subStore,
		EventRepo:        eventStore,
		CatalogRepo:      NewInMemoryCatalogStore(),
		MigrationRepo:    NewInMemoryMigrationStore(subStore, eventStore),
	}

	s.scheduler = NewStubScheduler()
	s.pubSub = NewInMemoryPubSub()
	publisher, err := notification.NewPublisher(s.pubSub, s.config, s.logger)
	if err != nil {
		s.T().Fatalf("failed to create transition publisher: %v", err)
	}
	s.publisher = publisher
}

// ClearStores resets every store to empty
func (s *BaseServiceTestSuite) ClearStores() {
	s.stores.SubscriptionRepo.(*InMemorySubscriptionStore).Clear()
	s.stores.EventRepo.(*InMemoryEventStore).Clear()
	s.stores.CatalogRepo.(*InMemoryCatalogStore).Clear()
	s.pubSub.ClearMessages()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetPublisher returns the test transition publisher
func (s *BaseServiceTestSuite) GetPublisher() notification.TransitionPublisher {
	return s.publisher
}

// GetPubSub returns the in-memory bus backing the publisher
func (s *BaseServiceTestSuite) GetPubSub() *InMemoryPubSub {
	return s.pubSub
}

// GetScheduler returns the stub scheduler
func (s *BaseServiceTestSuite) GetScheduler() *StubScheduler {
	return s.scheduler
}

// GetClock returns the controllable test clock
func (s *BaseServiceTestSuite) GetClock() *clock.TestClock {
	return s.clock
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.clock.Now().UTC()
}

// GetUUID returns a new UUID string
func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}
