package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/FishIT-Mantle/fishit-sub000/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CheckpointStore durable per-watcher block checkpoint. Save never lowers a
// stored value.
type CheckpointStore interface {
	Load(ctx context.Context, name string) (block uint64, found bool, err error)
	Save(ctx context.Context, name string, block uint64) error
	Close() error
}

// checkpointRepository stores checkpoints as rows of the checkpoints table
type checkpointRepository struct {
	db *gorm.DB
}

// NewCheckpointRepository creates a database backed CheckpointStore
func NewCheckpointRepository(db *gorm.DB) CheckpointStore {
	return &checkpointRepository{db: db}
}

// Load returns the stored block for name
func (r *checkpointRepository) Load(ctx context.Context, name string) (uint64, bool, error) {
	var cp models.Checkpoint
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&cp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load checkpoint %s: %w", name, err)
	}
	return cp.BlockNumber, true, nil
}

// Save raises the checkpoint to block, a lower block is ignored
func (r *checkpointRepository) Save(ctx context.Context, name string, block uint64) error {
	res := r.db.WithContext(ctx).Model(&models.Checkpoint{}).
		Where("name = ? AND block_number < ?", name, block).
		Update("block_number", block)
	if res.Error != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w", name, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// no row yet, or the stored value is already >= block
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&models.Checkpoint{Name: name, BlockNumber: block}).Error
	if err != nil {
		return fmt.Errorf("failed to create checkpoint %s: %w", name, err)
	}
	return nil
}

// Close the pool is owned by the caller
func (r *checkpointRepository) Close() error {
	return nil
}
