package notification

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/vidinfra/entitle/internal/config"
	"github.com/vidinfra/entitle/internal/logger"
	"github.com/vidinfra/entitle/internal/pubsub"
)

// TransitionPublisher announces subscription transitions on the bus.
// Publishing is fire-and-forget from the engine's point of view: a
// failed announcement is logged and never rolls back the state change.
type TransitionPublisher interface {
	PublishTransition(ctx context.Context, record *TransitionRecord) error
	Close() error
}

type transitionPublisher struct {
	pubSub pubsub.PubSub
	config *config.NotificationConfig
	logger *logger.Logger
}

// NewPublisher creates a bus-backed transition publisher
func NewPublisher(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	logger *logger.Logger,
) (TransitionPublisher, error) {
	return &transitionPublisher{
		pubSub: pubSub,
		config: &cfg.Notification,
		logger: logger,
	}, nil
}

func (p *transitionPublisher) PublishTransition(ctx context.Context, record *TransitionRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}

	messageID := record.ID
	if messageID == "" {
		messageID = watermill.NewUUID()
	}

	msg := message.NewMessage(messageID, payload)
	msg.Metadata.Set("tenant_id", record.TenantID)

	p.logger.Debugw("publishing transition record",
		"transition_id", record.ID,
		"subscription_id", record.SubscriptionID,
		"event_id", record.EventID,
		"topic", p.config.Topic,
	)

	if err := p.pubSub.Publish(ctx, p.config.Topic, msg); err != nil {
		p.logger.Errorw("failed to publish transition record",
			"error", err,
			"transition_id", record.ID,
			"subscription_id", record.SubscriptionID,
			"event_id", record.EventID,
		)
		return err
	}

	return nil
}

// Close closes the publisher
func (p *transitionPublisher) Close() error {
	return p.pubSub.Close()
}
