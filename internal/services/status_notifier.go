package services

import (
	"context"
	"encoding/json"

	"github.com/FishIT-Mantle/fishit-sub000/internal/events"
	"github.com/FishIT-Mantle/fishit-sub000/internal/metrics"
	"github.com/FishIT-Mantle/fishit-sub000/internal/models"
	"github.com/sirupsen/logrus"
)

// EventPublisher message broker side of the notifier. *clients.NATSClient
// satisfies it.
type EventPublisher interface {
	Publish(subject string, data []byte, msgID string) error
}

// StatusFanout delivers status changes to NATS and the websocket hub.
// Either sink may be nil. Delivery is best effort.
type StatusFanout struct {
	publisher     EventPublisher
	hub           *WebSocketHub
	subjectPrefix string
	log           *logrus.Logger
}

// NewStatusFanout creates the notifier
func NewStatusFanout(publisher EventPublisher, hub *WebSocketHub, subjectPrefix string, log *logrus.Logger) *StatusFanout {
	if subjectPrefix == "" {
		subjectPrefix = "fishit.mint"
	}
	return &StatusFanout{
		publisher:     publisher,
		hub:           hub,
		subjectPrefix: subjectPrefix,
		log:           log,
	}
}

// NotifyStatusChange implements interfaces.StatusNotifier
func (n *StatusFanout) NotifyStatusChange(ctx context.Context, itemID uint64, from, to models.MintStatus, lastError string) {
	event := events.NewMintStatusChangedEvent(itemID, from, to, lastError)

	if n.publisher != nil {
		n.publish(event)
	}
	if n.hub != nil {
		n.hub.Broadcast(event)
	}
}

func (n *StatusFanout) publish(event events.MintStatusChangedEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		n.log.WithError(err).Error("❌ Failed to marshal status event")
		return
	}

	subject := event.Subject(n.subjectPrefix)
	if err := n.publisher.Publish(subject, data, event.EventID); err != nil {
		metrics.StatusEventsPublished.WithLabelValues("nats", "error").Inc()
		n.log.WithFields(logrus.Fields{
			"subject": subject,
			"item_id": event.ItemID,
		}).WithError(err).Warn("⚠️ Failed to publish status event")
		return
	}
	metrics.StatusEventsPublished.WithLabelValues("nats", "ok").Inc()
}
