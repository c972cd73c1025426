package api

import (
	"github.com/gin-gonic/gin"
	v1 "github.com/vidinfra/entitle/internal/api/v1"
	"github.com/vidinfra/entitle/internal/rest/middleware"
)

type Handlers struct {
	Health       *v1.HealthHandler
	Subscription *v1.SubscriptionHandler
	Migration    *v1.MigrationHandler
}

func NewRouter(handlers Handlers) *gin.Engine {
	router := gin.Default()

	router.Use(
		middleware.RequestIDMiddleware,
		middleware.ContextMiddleware,
		middleware.ErrorHandler(),
	)

	router.GET("/health", handlers.Health.Health)

	// v1 routes
	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	// Subscription routes
	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.POST("", handlers.Subscription.CreateSubscription)
		subscriptions.GET("/:id", handlers.Subscription.GetSubscription)
		subscriptions.POST("/:id/change", handlers.Subscription.ChangePlan)
		subscriptions.POST("/:id/cancel", handlers.Subscription.CancelSubscription)
	}

	// Migration routes
	migrations := router.Group("/migrations")
	{
		migrations.POST("/accounts", handlers.Migration.MigrateAccount)
	}
}
