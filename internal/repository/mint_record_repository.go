// Package repository provides data access interfaces and implementations
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FishIT-Mantle/fishit-sub000/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrMintRecordNotFound no record for the item id
	ErrMintRecordNotFound = errors.New("mint record not found")
	// ErrConcurrentUpdate the record status changed between read and write
	ErrConcurrentUpdate = errors.New("mint record modified concurrently")
)

// MintRecordRepository defines the interface for MintRecord data access.
// All writes go through the status transition table.
type MintRecordRepository interface {
	GetOrCreate(ctx context.Context, record *models.MintRecord) (*models.MintRecord, bool, error)
	Get(ctx context.Context, itemID uint64) (*models.MintRecord, error)
	UpdateStatus(ctx context.Context, itemID uint64, status models.MintStatus, errMsg *string) error
	SaveImageArtifact(ctx context.Context, itemID uint64, image []byte) error
	SaveStorageRefs(ctx context.Context, itemID uint64, refs models.StorageRefs) error
	MarkCompleted(ctx context.Context, itemID uint64, finalizeTxHash string) error
	IncrementRetry(ctx context.Context, itemID uint64) error
	SelectRetryCandidates(ctx context.Context, maxRetries int, recencyWindow time.Duration) ([]*models.MintRecord, error)

	// Query methods
	ListByStatus(ctx context.Context, status models.MintStatus, limit int) ([]*models.MintRecord, error)
	CountByStatus(ctx context.Context) (map[models.MintStatus]int64, error)
}

// mintRecordRepository implements MintRecordRepository
type mintRecordRepository struct {
	db *gorm.DB
}

// NewMintRecordRepository creates a new MintRecordRepository instance
func NewMintRecordRepository(db *gorm.DB) MintRecordRepository {
	return &mintRecordRepository{db: db}
}

// GetOrCreate inserts the record unless the item already exists and returns the
// stored row. created is false when the row was already there; in that case
// nothing is modified.
func (r *mintRecordRepository) GetOrCreate(ctx context.Context, record *models.MintRecord) (*models.MintRecord, bool, error) {
	if record.Status == "" {
		record.Status = models.MintStatusPending
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "item_id"}}, DoNothing: true}).
		Create(record)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to create mint record %d: %w", record.ItemID, res.Error)
	}

	stored, err := r.Get(ctx, record.ItemID)
	if err != nil {
		return nil, false, err
	}
	return stored, res.RowsAffected == 1, nil
}

// Get retrieves a mint record by item ID
func (r *mintRecordRepository) Get(ctx context.Context, itemID uint64) (*models.MintRecord, error) {
	var record models.MintRecord
	err := r.db.WithContext(ctx).Where("item_id = ?", itemID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrMintRecordNotFound, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load mint record %d: %w", itemID, err)
	}
	return &record, nil
}

// currentStatus reads only the status column
func (r *mintRecordRepository) currentStatus(ctx context.Context, itemID uint64) (models.MintStatus, error) {
	var record models.MintRecord
	err := r.db.WithContext(ctx).Select("status").Where("item_id = ?", itemID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("%w: %d", ErrMintRecordNotFound, itemID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load mint record %d: %w", itemID, err)
	}
	return record.Status, nil
}

// transition validates current -> to and applies updates guarded by the
// status that was read
func (r *mintRecordRepository) transition(ctx context.Context, itemID uint64, to models.MintStatus, updates map[string]interface{}) error {
	from, err := r.currentStatus(ctx, itemID)
	if err != nil {
		return err
	}
	if err := models.ValidateTransition(from, to); err != nil {
		return fmt.Errorf("item %d: %w", itemID, err)
	}

	updates["status"] = to
	res := r.db.WithContext(ctx).Model(&models.MintRecord{}).
		Where("item_id = ? AND status = ?", itemID, from).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update mint record %d: %w", itemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: item %d left %s", ErrConcurrentUpdate, itemID, from)
	}
	return nil
}

// UpdateStatus moves the record to status. A nil errMsg leaves last_error as is.
func (r *mintRecordRepository) UpdateStatus(ctx context.Context, itemID uint64, status models.MintStatus, errMsg *string) error {
	updates := map[string]interface{}{}
	if errMsg != nil {
		updates["last_error"] = *errMsg
	}
	return r.transition(ctx, itemID, status, updates)
}

// SaveImageArtifact stores the generated image and marks the record generated
func (r *mintRecordRepository) SaveImageArtifact(ctx context.Context, itemID uint64, image []byte) error {
	if len(image) == 0 {
		return fmt.Errorf("item %d: empty image artifact", itemID)
	}
	return r.transition(ctx, itemID, models.MintStatusGenerated, map[string]interface{}{
		"image_artifact": image,
	})
}

// SaveStorageRefs stores the pinned references, marks the record uploaded and
// drops the image artifact in the same write
func (r *mintRecordRepository) SaveStorageRefs(ctx context.Context, itemID uint64, refs models.StorageRefs) error {
	if refs.MetadataURI == "" {
		return fmt.Errorf("item %d: empty metadata URI", itemID)
	}
	return r.transition(ctx, itemID, models.MintStatusUploaded, map[string]interface{}{
		"storage_image_cid":    refs.ImageCID,
		"storage_metadata_cid": refs.MetadataCID,
		"storage_metadata_uri": refs.MetadataURI,
		"image_artifact":       nil,
	})
}

// MarkCompleted terminal write. finalizeTxHash may be empty when the token was
// already finalized by someone else.
func (r *mintRecordRepository) MarkCompleted(ctx context.Context, itemID uint64, finalizeTxHash string) error {
	now := time.Now()
	return r.transition(ctx, itemID, models.MintStatusCompleted, map[string]interface{}{
		"finalize_tx_hash": finalizeTxHash,
		"completed_at":     &now,
	})
}

// IncrementRetry adds one to retry_count
func (r *mintRecordRepository) IncrementRetry(ctx context.Context, itemID uint64) error {
	res := r.db.WithContext(ctx).Model(&models.MintRecord{}).
		Where("item_id = ?", itemID).
		Update("retry_count", gorm.Expr("retry_count + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("failed to increment retry for %d: %w", itemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrMintRecordNotFound, itemID)
	}
	return nil
}

// SelectRetryCandidates non-terminal records under the retry bound created
// within the recency window, oldest first. The image column is not loaded.
func (r *mintRecordRepository) SelectRetryCandidates(ctx context.Context, maxRetries int, recencyWindow time.Duration) ([]*models.MintRecord, error) {
	var records []*models.MintRecord
	err := r.db.WithContext(ctx).
		Omit("image_artifact").
		Where("status IN ?", models.NonTerminalMintStatuses()).
		Where("retry_count < ?", maxRetries).
		Where("created_at >= ?", time.Now().Add(-recencyWindow)).
		Order("created_at ASC").
		Order("item_id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select retry candidates: %w", err)
	}
	return records, nil
}

// ListByStatus newest records first. An empty status lists all.
func (r *mintRecordRepository) ListByStatus(ctx context.Context, status models.MintStatus, limit int) ([]*models.MintRecord, error) {
	query := r.db.WithContext(ctx).Omit("image_artifact").Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var records []*models.MintRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list mint records: %w", err)
	}
	return records, nil
}

// CountByStatus returns a count for every status, zero included
func (r *mintRecordRepository) CountByStatus(ctx context.Context) (map[models.MintStatus]int64, error) {
	var rows []struct {
		Status models.MintStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&models.MintRecord{}).
		Select("status, count(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count mint records: %w", err)
	}

	counts := make(map[models.MintStatus]int64, len(models.AllMintStatuses))
	for _, s := range models.AllMintStatuses {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
