package config

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/patient-feedback/survey-console/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENVIRONMENT", "BACKEND_URL", "BACKEND_TIMEOUT", "TEMPLATE_CACHE_TTL", "AUDIT_ENABLED", "EDITOR_IDLE_TIMEOUT", "EVENTS_ENABLED", "EVENTS_PUBLISHER"} {
		t.Setenv(key, "")
	}

	cfg, err := fromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 10*time.Second, cfg.BackendTimeout)
	assert.Equal(t, 5*time.Minute, cfg.TemplateCacheTTL)
	assert.True(t, cfg.AuditEnabled)
	assert.Equal(t, 30*time.Minute, cfg.EditorIdleTimeout)
	assert.True(t, cfg.Events.Enabled)
	assert.Equal(t, "gochannel", cfg.Events.Publisher)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("BACKEND_URL", "https://api.example.test")
	t.Setenv("BACKEND_TIMEOUT", "3s")
	t.Setenv("AUDIT_ENABLED", "false")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg, err := fromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "https://api.example.test", cfg.BackendURL)
	assert.Equal(t, 3*time.Second, cfg.BackendTimeout)
	assert.False(t, cfg.AuditEnabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.GetKafkaBrokers())
}

func TestFromEnv_InvalidValues(t *testing.T) {
	t.Setenv("BACKEND_TIMEOUT", "soon")
	_, err := fromEnv()
	assert.ErrorContains(t, err, "BACKEND_TIMEOUT")

	t.Setenv("BACKEND_TIMEOUT", "")
	t.Setenv("EVENTS_ENABLED", "maybe")
	_, err = fromEnv()
	assert.ErrorContains(t, err, "EVENTS_ENABLED")
}

func TestCreateEventBus(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name         string
		cfg          EventConfig
		wantMock     bool
		wantConsumer bool
	}{
		{"disabled", EventConfig{Enabled: false, Publisher: "kafka"}, true, false},
		{"mock", EventConfig{Enabled: true, Publisher: "mock"}, true, false},
		{"unknown", EventConfig{Enabled: true, Publisher: "sqs"}, true, false},
		{"gochannel", EventConfig{Enabled: true, Publisher: "gochannel", TemplateTopic: "t"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus, err := tt.cfg.CreateEventBus(logger)
			require.NoError(t, err)
			defer bus.Close()

			_, isMock := bus.Publisher.(*events.MockEventPublisher)
			assert.Equal(t, tt.wantMock, isMock)
			assert.Equal(t, tt.wantConsumer, bus.Consumer != nil)
		})
	}
}

func TestGoChannelBusDeliversToConsumer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := EventConfig{Enabled: true, Publisher: "gochannel", TemplateTopic: "survey-templates"}

	bus, err := cfg.CreateEventBus(logger)
	require.NoError(t, err)
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan *events.TemplateEvent, 1)
	go func() {
		_ = bus.Consumer.Run(ctx, func(_ context.Context, event *events.TemplateEvent) error {
			select {
			case received <- event:
			default:
			}
			return nil
		})
	}()

	event := events.NewTemplateEvent(events.EventTemplateQuestionsUpdated, events.TemplateEventData{TemplateID: "tpl-1"})
	// the subscription starts asynchronously, so publish until it is picked up
	require.Eventually(t, func() bool {
		if err := bus.Publisher.PublishTemplateEvent(ctx, event); err != nil {
			return false
		}
		select {
		case got := <-received:
			return got.ID == event.ID && got.Data.TemplateID == "tpl-1"
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
}
