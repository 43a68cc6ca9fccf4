package events

import (
	"fmt"
	"time"

	"github.com/FishIT-Mantle/fishit-sub000/internal/models"
	"github.com/google/uuid"
)

// MintStatusChangedEvent published on every committed status change
type MintStatusChangedEvent struct {
	EventID    string            `json:"event_id"`
	ItemID     uint64            `json:"item_id"`
	FromStatus models.MintStatus `json:"from_status"`
	ToStatus   models.MintStatus `json:"to_status"`
	LastError  string            `json:"last_error,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// NewMintStatusChangedEvent stamps a fresh event id and time
func NewMintStatusChangedEvent(itemID uint64, from, to models.MintStatus, lastError string) MintStatusChangedEvent {
	return MintStatusChangedEvent{
		EventID:    uuid.New().String(),
		ItemID:     itemID,
		FromStatus: from,
		ToStatus:   to,
		LastError:  lastError,
		OccurredAt: time.Now().UTC(),
	}
}

// Subject NATS subject for the event, e.g. fishit.mint.completed
func (e MintStatusChangedEvent) Subject(prefix string) string {
	return fmt.Sprintf("%s.%s", prefix, e.ToStatus)
}
