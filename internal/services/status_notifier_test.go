package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/FishIT-Mantle/fishit-sub000/internal/events"
	"github.com/FishIT-Mantle/fishit-sub000/internal/logging"
	"github.com/FishIT-Mantle/fishit-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
	msgID   string
}

type fakeEventPublisher struct {
	msgs []published
	err  error
}

func (f *fakeEventPublisher) Publish(subject string, data []byte, msgID string) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subject, data, msgID})
	return nil
}

func TestStatusFanoutPublishesAndBroadcasts(t *testing.T) {
	publisher := &fakeEventPublisher{}
	hub := NewWebSocketHub(logging.Discard())
	defer hub.Close()
	client := hub.Register()
	require.NotNil(t, client)

	fanout := NewStatusFanout(publisher, hub, "", logging.Discard())
	fanout.NotifyStatusChange(context.Background(), 42, models.MintStatusFinalizing, models.MintStatusCompleted, "")

	require.Len(t, publisher.msgs, 1)
	msg := publisher.msgs[0]
	assert.Equal(t, "fishit.mint.completed", msg.subject)

	var event events.MintStatusChangedEvent
	require.NoError(t, json.Unmarshal(msg.data, &event))
	assert.Equal(t, msg.msgID, event.EventID)
	assert.Equal(t, uint64(42), event.ItemID)
	assert.Equal(t, models.MintStatusFinalizing, event.FromStatus)

	assert.JSONEq(t, string(msg.data), string(<-client.Send))
}

func TestStatusFanoutToleratesPublishErrors(t *testing.T) {
	publisher := &fakeEventPublisher{err: errors.New("nats: connection closed")}
	fanout := NewStatusFanout(publisher, nil, "fishit.mint", logging.Discard())

	assert.NotPanics(t, func() {
		fanout.NotifyStatusChange(context.Background(), 1, "", models.MintStatusPending, "")
	})
}

func TestWebSocketHubDropsForSlowClients(t *testing.T) {
	hub := NewWebSocketHub(logging.Discard())
	client := hub.Register()

	event := events.NewMintStatusChangedEvent(1, models.MintStatusPending, models.MintStatusGenerating, "")
	for i := 0; i < hubClientBuffer+10; i++ {
		hub.Broadcast(event)
	}
	assert.Len(t, client.Send, hubClientBuffer)

	hub.Unregister(client)
	hub.Unregister(client)
	assert.Zero(t, hub.ClientCount())

	hub.Close()
	assert.Nil(t, hub.Register())
}
