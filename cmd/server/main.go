package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vidinfra/entitle/internal/api"
	v1 "github.com/vidinfra/entitle/internal/api/v1"
	"github.com/vidinfra/entitle/internal/cache"
	"github.com/vidinfra/entitle/internal/clock"
	"github.com/vidinfra/entitle/internal/config"
	"github.com/vidinfra/entitle/internal/logger"
	"github.com/vidinfra/entitle/internal/notification"
	"github.com/vidinfra/entitle/internal/postgres"
	pubsubRouter "github.com/vidinfra/entitle/internal/pubsub/router"
	"github.com/vidinfra/entitle/internal/repository"
	"github.com/vidinfra/entitle/internal/scheduler"
	"github.com/vidinfra/entitle/internal/sentry"
	"github.com/vidinfra/entitle/internal/service"
	"github.com/vidinfra/entitle/internal/types"
	"github.com/vidinfra/entitle/internal/validator"
	"go.uber.org/fx"
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	fx.New(appOptions()...).Run()
}

// appOptions assembles the full dependency graph; kept separate so the
// wiring can be validated without starting the app
func appOptions() []fx.Option {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Monitoring
			sentry.NewSentryService,

			// Cache
			cache.Initialize,

			// Clock
			clock.New,

			// Postgres
			postgres.NewClient,

			// Repositories
			repository.NewSubscriptionRepository,
			repository.NewEntitlementRepository,
			repository.NewMigrationRepository,
			repository.NewCatalogRepository,

			// Scheduler
			scheduler.New,

			// PubSub router
			pubsubRouter.NewRouter,
		),
	)

	// Notification module (must be initialised before services)
	opts = append(opts, notification.Module)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,

			service.NewSubscriptionService,
			service.NewMigrationService,
			service.NewProjectionService,
			service.NewEntitlementEngine,
		),
	)

	// API
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			sentry.RegisterHooks,
			startServer,
		),
	)

	return opts
}

func provideHandlers(
	logger *logger.Logger,
	subscriptionService service.SubscriptionService,
	migrationService service.MigrationService,
) api.Handlers {
	return api.Handlers{
		Health:       v1.NewHealthHandler(),
		Subscription: v1.NewSubscriptionHandler(subscriptionService, logger),
		Migration:    v1.NewMigrationHandler(migrationService, logger),
	}
}

func provideRouter(handlers api.Handlers) *gin.Engine {
	return api.NewRouter(handlers)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	engine service.EntitlementEngine,
	notificationHandler notification.Handler,
	router *pubsubRouter.Router,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal:
		startAPIServer(lc, r, cfg, log)
		startEngine(lc, engine, log)
		startMessageRouter(lc, router, notificationHandler, log)
	case types.ModeAPI:
		startAPIServer(lc, r, cfg, log)
	case types.ModeConsumer:
		startEngine(lc, engine, log)
		startMessageRouter(lc, router, notificationHandler, log)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting API server...")
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return nil
		},
	})
}

func startEngine(
	lc fx.Lifecycle,
	engine service.EntitlementEngine,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting entitlement engine...")
			if err := engine.Initialize(); err != nil {
				return err
			}
			return engine.Start()
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Stopping entitlement engine...")
			return engine.Stop()
		},
	})
}

func startMessageRouter(
	lc fx.Lifecycle,
	router *pubsubRouter.Router,
	notificationHandler notification.Handler,
	log *logger.Logger,
) {
	notificationHandler.RegisterHandler(router)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := router.Run(); err != nil {
					log.Errorw("message router stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Closing message router...")
			return router.Close()
		},
	})
}
