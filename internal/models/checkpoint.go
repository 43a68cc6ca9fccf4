package models

import "time"

// Checkpoint highest block fully scanned by a watcher
type Checkpoint struct {
	Name        string    `json:"name" gorm:"primaryKey;type:varchar(64)"`
	BlockNumber uint64    `json:"block_number" gorm:"not null"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies table name
func (Checkpoint) TableName() string {
	return "checkpoints"
}
