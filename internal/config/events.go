package config

import (
	"log/slog"
	"strings"

	"github.com/patient-feedback/survey-console/internal/events"
)

type EventConfig struct {
	Enabled       bool
	Publisher     string // kafka, gochannel or mock
	KafkaBrokers  string
	TemplateTopic string
	ConsumerGroup string
}

// EventBus pairs the template publisher with the consumer reading the same
// topic. Consumer is nil when events are not delivered anywhere.
type EventBus struct {
	Publisher events.EventPublisher
	Consumer  *events.TemplateEventConsumer
}

func (c *EventConfig) GetKafkaBrokers() []string {
	brokers := make([]string, 0)
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// CreateEventBus builds the configured publisher and its consumer. Disabled or
// unknown publishers fall back to the in-memory mock with no consumer.
func (c *EventConfig) CreateEventBus(logger *slog.Logger) (*EventBus, error) {
	if !c.Enabled {
		logger.Info("Event publishing disabled, using mock publisher")
		return &EventBus{Publisher: events.NewMockEventPublisher(logger)}, nil
	}

	cfg := events.PublisherConfig{
		KafkaBrokers:  c.GetKafkaBrokers(),
		TopicName:     c.TemplateTopic,
		ConsumerGroup: c.ConsumerGroup,
		Logger:        logger,
	}

	switch c.Publisher {
	case "kafka":
		logger.Info("Creating Kafka event publisher",
			"brokers", c.KafkaBrokers,
			"topic", c.TemplateTopic)
		publisher, err := events.NewKafkaEventPublisher(cfg)
		if err != nil {
			return nil, err
		}
		consumer, err := events.NewKafkaEventConsumer(cfg)
		if err != nil {
			_ = publisher.Close()
			return nil, err
		}
		return &EventBus{Publisher: publisher, Consumer: consumer}, nil
	case "gochannel":
		logger.Info("Creating in-process event publisher", "topic", c.TemplateTopic)
		publisher, pubSub := events.NewGoChannelEventPublisher(cfg)
		return &EventBus{
			Publisher: publisher,
			Consumer:  events.NewTemplateEventConsumer(pubSub, c.TemplateTopic, logger),
		}, nil
	case "mock":
		logger.Info("Using mock event publisher")
		return &EventBus{Publisher: events.NewMockEventPublisher(logger)}, nil
	default:
		logger.Warn("Unknown event publisher type, falling back to mock", "publisher", c.Publisher)
		return &EventBus{Publisher: events.NewMockEventPublisher(logger)}, nil
	}
}

// Close releases the consumer first so in-flight messages are acknowledged.
func (b *EventBus) Close() error {
	if b.Consumer != nil {
		if err := b.Consumer.Close(); err != nil {
			return err
		}
	}
	return b.Publisher.Close()
}
