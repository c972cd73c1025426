package notification

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/vidinfra/entitle/internal/config"
	"github.com/vidinfra/entitle/internal/logger"
	"github.com/vidinfra/entitle/internal/pubsub"
	pubsubRouter "github.com/vidinfra/entitle/internal/pubsub/router"
	"github.com/vidinfra/entitle/internal/sentry"
)

// Handler consumes transition records from the bus for downstream
// subsystems running in-process (operational log today)
type Handler interface {
	RegisterHandler(router *pubsubRouter.Router)
}

type handler struct {
	pubSub pubsub.PubSub
	config *config.NotificationConfig
	logger *logger.Logger
	sentry *sentry.Service
}

// NewHandler creates a transition record consumer
func NewHandler(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	logger *logger.Logger,
	sentry *sentry.Service,
) (Handler, error) {
	return &handler{
		pubSub: pubSub,
		config: &cfg.Notification,
		logger: logger,
		sentry: sentry,
	}, nil
}

func (h *handler) RegisterHandler(router *pubsubRouter.Router) {
	router.AddNoPublishHandler(
		"transition_handler",
		h.config.Topic,
		h.pubSub,
		h.processMessage,
	)
}

// processMessage processes a single transition record
func (h *handler) processMessage(msg *message.Message) error {
	var record TransitionRecord
	if err := json.Unmarshal(msg.Payload, &record); err != nil {
		h.logger.Errorw("failed to unmarshal transition record",
			"error", err,
			"message_uuid", msg.UUID,
		)
		return nil // Don't retry on unmarshal errors
	}

	h.logger.Infow("subscription transition",
		"transition_id", record.ID,
		"subscription_id", record.SubscriptionID,
		"bundle_id", record.BundleID,
		"event_type", record.EventType,
		"api_type", record.APIType,
		"state", record.State,
		"plan", record.PlanName,
		"phase", record.PhaseName,
		"effective_at", record.EffectiveAt,
	)
	return nil
}
