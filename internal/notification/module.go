package notification

import (
	"github.com/vidinfra/entitle/internal/config"
	"github.com/vidinfra/entitle/internal/kafka"
	"github.com/vidinfra/entitle/internal/logger"
	"github.com/vidinfra/entitle/internal/pubsub"
	kafkaPubSub "github.com/vidinfra/entitle/internal/pubsub/kafka"
	"github.com/vidinfra/entitle/internal/pubsub/memory"
	"github.com/vidinfra/entitle/internal/types"
	"go.uber.org/fx"
)

// Module provides all notification-related dependencies
var Module = fx.Options(
	fx.Provide(
		// PubSub transport for transition records
		providePubSub,

		// Publisher for announcing transitions
		NewPublisher,

		// Handler for consuming transitions
		NewHandler,
	),
)

func providePubSub(
	cfg *config.Configuration,
	logger *logger.Logger,
) pubsub.PubSub {
	switch cfg.Notification.PubSub {
	case types.MemoryPubSub:
		return memory.NewPubSub(cfg, logger)
	case types.KafkaPubSub:
		producer, err := kafka.NewProducer(cfg)
		if err != nil {
			panic(err)
		}
		consumer, err := kafka.NewConsumer(cfg)
		if err != nil {
			panic(err)
		}
		return kafkaPubSub.NewPubSub(cfg, logger, producer, consumer)
	}
	panic("unsupported pubsub type")
}
