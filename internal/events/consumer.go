package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
)

// TemplateEventHandler reacts to a single template event.
type TemplateEventHandler func(ctx context.Context, event *TemplateEvent) error

// TemplateEventConsumer feeds template events from a watermill subscriber to a handler.
type TemplateEventConsumer struct {
	subscriber message.Subscriber
	logger     *slog.Logger
	topicName  string
}

func NewTemplateEventConsumer(subscriber message.Subscriber, topic string, logger *slog.Logger) *TemplateEventConsumer {
	return &TemplateEventConsumer{
		subscriber: subscriber,
		logger:     logger,
		topicName:  topic,
	}
}

// NewKafkaEventConsumer reads the template topic. With an empty ConsumerGroup
// every console instance sees every event.
func NewKafkaEventConsumer(config PublisherConfig) (*TemplateEventConsumer, error) {
	subscriber, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:       config.KafkaBrokers,
		Unmarshaler:   kafka.DefaultMarshaler{},
		ConsumerGroup: config.ConsumerGroup,
	}, watermill.NewSlogLogger(config.Logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka subscriber: %w", err)
	}

	return NewTemplateEventConsumer(subscriber, config.TopicName, config.Logger), nil
}

// Run blocks until ctx is cancelled or the subscriber closes. Every message is
// acknowledged; undecodable messages and handler failures are logged and skipped.
func (c *TemplateEventConsumer) Run(ctx context.Context, handle TemplateEventHandler) error {
	messages, err := c.subscriber.Subscribe(ctx, c.topicName)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.topicName, err)
	}

	for msg := range messages {
		var event TemplateEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			c.logger.Warn("Dropping undecodable template event",
				"message_id", msg.UUID,
				"error", err)
			msg.Ack()
			continue
		}

		if err := handle(msg.Context(), &event); err != nil {
			c.logger.Error("Template event handler failed",
				"event_id", event.ID,
				"event_type", event.Type,
				"error", err)
		}
		msg.Ack()
	}
	return nil
}

func (c *TemplateEventConsumer) Close() error {
	return c.subscriber.Close()
}
