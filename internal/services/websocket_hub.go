package services

import (
	"encoding/json"
	"sync"

	"github.com/FishIT-Mantle/fishit-sub000/internal/events"
	"github.com/FishIT-Mantle/fishit-sub000/internal/metrics"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const hubClientBuffer = 64

// HubClient one status feed subscriber. The websocket handler drains Send.
type HubClient struct {
	ID   string
	Send chan []byte
}

// WebSocketHub fans status change events out to connected feed clients
type WebSocketHub struct {
	mu      sync.RWMutex
	clients map[string]*HubClient
	closed  bool
	log     *logrus.Logger
}

// NewWebSocketHub creates an empty hub
func NewWebSocketHub(log *logrus.Logger) *WebSocketHub {
	return &WebSocketHub{
		clients: make(map[string]*HubClient),
		log:     log,
	}
}

// Register adds a client. Returns nil once the hub is closed.
func (h *WebSocketHub) Register() *HubClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}

	client := &HubClient{ID: uuid.New().String(), Send: make(chan []byte, hubClientBuffer)}
	h.clients[client.ID] = client
	metrics.WebSocketClients.Set(float64(len(h.clients)))
	h.log.WithField("client_id", client.ID).Info("📡 Status feed client connected")
	return client
}

// Unregister removes the client and closes its Send channel
func (h *WebSocketHub) Unregister(client *HubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
	metrics.WebSocketClients.Set(float64(len(h.clients)))
	h.log.WithField("client_id", client.ID).Info("📴 Status feed client disconnected")
}

// Broadcast queues the event for every client. Slow clients drop messages
// instead of blocking the pipeline.
func (h *WebSocketHub) Broadcast(event events.MintStatusChangedEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).Error("❌ Failed to marshal status event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Send <- data:
			metrics.StatusEventsPublished.WithLabelValues("websocket", "ok").Inc()
		default:
			metrics.StatusEventsPublished.WithLabelValues("websocket", "dropped").Inc()
			h.log.WithField("client_id", client.ID).Warn("⚠️ Status feed client too slow, message dropped")
		}
	}
}

// ClientCount connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones
func (h *WebSocketHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, client := range h.clients {
		delete(h.clients, id)
		close(client.Send)
	}
	metrics.WebSocketClients.Set(0)
}
