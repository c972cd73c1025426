package service

import (
	"github.com/vidinfra/entitle/internal/clock"
	"github.com/vidinfra/entitle/internal/config"
	"github.com/vidinfra/entitle/internal/domain/catalog"
	"github.com/vidinfra/entitle/internal/domain/entitlement"
	"github.com/vidinfra/entitle/internal/domain/migration"
	"github.com/vidinfra/entitle/internal/domain/subscription"
	"github.com/vidinfra/entitle/internal/logger"
	"github.com/vidinfra/entitle/internal/notification"
	"github.com/vidinfra/entitle/internal/scheduler"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	Clock  clock.Clock

	// Repositories
	SubRepo       subscription.Repository
	EventRepo     entitlement.Repository
	CatalogRepo   catalog.Repository
	MigrationRepo migration.Repository

	// Collaborators
	Scheduler           scheduler.Scheduler
	TransitionPublisher notification.TransitionPublisher
}

// NewServiceParams assembles the service params from the DI container
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	clk clock.Clock,
	subRepo subscription.Repository,
	eventRepo entitlement.Repository,
	catalogRepo catalog.Repository,
	migrationRepo migration.Repository,
	sched scheduler.Scheduler,
	transitionPublisher notification.TransitionPublisher,
) ServiceParams {
	return ServiceParams{
		Logger:              logger,
		Config:              config,
		Clock:               clk,
		SubRepo:             subRepo,
		EventRepo:           eventRepo,
		CatalogRepo:         catalogRepo,
		MigrationRepo:       migrationRepo,
		Scheduler:           sched,
		TransitionPublisher: transitionPublisher,
	}
}
