package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewTemplateEvent(t *testing.T) {
	event := NewTemplateEvent(EventTemplateQuestionsUpdated, TemplateEventData{TemplateID: "tpl-1", QuestionCount: 3})

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, EventTemplateQuestionsUpdated, event.Type)
	assert.Equal(t, "survey-console", event.Source)
	assert.Equal(t, "1.0", event.Version)
	assert.WithinDuration(t, time.Now(), event.Timestamp, time.Minute)
	assert.Equal(t, 3, event.Data.QuestionCount)
}

func TestGoChannelEventPublisher(t *testing.T) {
	publisher, pubSub := NewGoChannelEventPublisher(PublisherConfig{
		TopicName: "templates",
		Logger:    discardLogger(),
	})
	defer publisher.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, "templates")
	require.NoError(t, err)

	event := NewTemplateEvent(EventTemplateQuestionsUpdated, TemplateEventData{TemplateID: "tpl-1", UserID: "u-1"})
	require.NoError(t, publisher.PublishTemplateEvent(ctx, event))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, event.ID, msg.UUID)
		assert.Equal(t, "template.questions_updated", msg.Metadata.Get("event_type"))
		assert.Equal(t, "tpl-1", msg.Metadata.Get("template_id"))

		var got TemplateEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, event.Data, got.Data)
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}

func TestMockEventPublisher(t *testing.T) {
	m := NewMockEventPublisher(discardLogger())

	require.NoError(t, m.PublishTemplateEvent(context.Background(), NewTemplateEvent(EventTemplateDeleted, TemplateEventData{TemplateID: "a"})))
	require.NoError(t, m.PublishTemplateEvent(context.Background(), NewTemplateEvent(EventTemplateActivated, TemplateEventData{TemplateID: "b"})))

	published := m.GetPublishedEvents()
	require.Len(t, published, 2)
	assert.Equal(t, EventTemplateDeleted, published[0].Type)

	m.ClearEvents()
	assert.Empty(t, m.GetPublishedEvents())
	assert.NoError(t, m.Close())
}
