package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FishIT-Mantle/fishit-sub000/internal/interfaces"
	"github.com/FishIT-Mantle/fishit-sub000/internal/metrics"
	"github.com/FishIT-Mantle/fishit-sub000/internal/models"
	"github.com/FishIT-Mantle/fishit-sub000/internal/repository"
	"github.com/FishIT-Mantle/fishit-sub000/internal/types"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
)

const (
	stageGenerate = "generate"
	stageUpload   = "upload"
	stageFinalize = "finalize"

	defaultCompletedCacheSize = 4096
)

// ErrRecordNotPersisted the event could not be stored, so it must be seen again
var ErrRecordNotPersisted = errors.New("mint record not persisted")

// MintPipeline drives one item from pending to completed: generate the image,
// pin image and metadata, then write the token URI on chain. Every stage
// persists its result before the next starts, so a crash resumes at the first
// unfinished stage.
type MintPipeline struct {
	repo      repository.MintRecordRepository
	generator interfaces.ImageGenerator
	publisher interfaces.StoragePublisher
	finalizer interfaces.ChainFinalizer
	notifier  interfaces.StatusNotifier
	locks     *KeyedMutex
	completed *lru.Cache
	log       *logrus.Logger
}

// NewMintPipeline creates the pipeline. notifier may be nil.
func NewMintPipeline(
	repo repository.MintRecordRepository,
	generator interfaces.ImageGenerator,
	publisher interfaces.StoragePublisher,
	finalizer interfaces.ChainFinalizer,
	notifier interfaces.StatusNotifier,
	log *logrus.Logger,
) (*MintPipeline, error) {
	completed, err := lru.New(defaultCompletedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create completed cache: %w", err)
	}
	return &MintPipeline{
		repo:      repo,
		generator: generator,
		publisher: publisher,
		finalizer: finalizer,
		notifier:  notifier,
		locks:     NewKeyedMutex(),
		completed: completed,
		log:       log,
	}, nil
}

// Ingest stores the event as a pending record if it is new and processes it.
// Replayed events find the existing row and only resume it.
func (p *MintPipeline) Ingest(ctx context.Context, event interfaces.FishMintedEvent) error {
	seed := "0"
	if event.RandomSeed != nil {
		seed = event.RandomSeed.String()
	}

	_, created, err := p.repo.GetOrCreate(ctx, &models.MintRecord{
		ItemID:       event.ItemID,
		OwnerAddress: event.OwnerAddress,
		Tier:         event.Tier,
		Zone:         event.Zone,
		BaitType:     event.BaitType,
		RandomSeed:   seed,
		MintTxHash:   event.TxHash,
		BlockNumber:  event.BlockNumber,
		Status:       models.MintStatusPending,
	})
	if err != nil {
		return fmt.Errorf("%w: item %d: %v", ErrRecordNotPersisted, event.ItemID, err)
	}
	if created {
		p.log.WithFields(logrus.Fields{
			"item_id": event.ItemID,
			"owner":   event.OwnerAddress,
			"tier":    models.TierName(event.Tier),
			"block":   event.BlockNumber,
		}).Info("🐟 New fish minted")
		p.notify(ctx, event.ItemID, "", models.MintStatusPending, "")
	}

	return p.Process(ctx, event.ItemID)
}

// Process advances the item as far as it can go in one pass. Completed items
// return nil without touching any external service.
func (p *MintPipeline) Process(ctx context.Context, itemID uint64) error {
	if p.completed.Contains(itemID) {
		return nil
	}

	unlock := p.locks.Lock(itemID)
	defer unlock()

	rec, err := p.repo.Get(ctx, itemID)
	if err != nil {
		return err
	}
	if rec.Status == models.MintStatusCompleted {
		p.completed.Add(itemID, struct{}{})
		return nil
	}

	entry := p.log.WithFields(logrus.Fields{"item_id": itemID, "status": rec.Status, "retry_count": rec.RetryCount})
	entry.Debug("🔄 Processing mint record")

	if !rec.HasMetadataURI() && !rec.HasImageArtifact() {
		switch rec.Status {
		case models.MintStatusPending, models.MintStatusGenerating, models.MintStatusFailed:
			if err := p.generate(ctx, rec); err != nil {
				return err
			}
		default:
			// generated or uploading without bytes: the artifact was lost
			return p.fail(ctx, rec, stageUpload, &types.ExternalServiceError{
				Service: "artifact store",
				Err:     fmt.Errorf("image artifact missing in status %s", rec.Status),
			})
		}
	}

	if !rec.HasMetadataURI() {
		if err := p.upload(ctx, rec); err != nil {
			return err
		}
	}

	return p.finalize(ctx, rec)
}

func (p *MintPipeline) generate(ctx context.Context, rec *models.MintRecord) error {
	prior := rec.Status
	if err := p.setStatus(ctx, rec, models.MintStatusGenerating); err != nil {
		return err
	}

	start := time.Now()
	image, err := p.generator.Generate(ctx, rec.Tier, rec.Zone, rec.RandomSeed)
	metrics.StageDuration.WithLabelValues(stageGenerate).Observe(time.Since(start).Seconds())
	if err != nil {
		return p.stageFailed(ctx, rec, stageGenerate, prior, err)
	}

	if err := p.repo.SaveImageArtifact(ctx, rec.ItemID, image); err != nil {
		return fmt.Errorf("save image artifact: %w", err)
	}
	metrics.StageResults.WithLabelValues(stageGenerate, "ok").Inc()
	p.committed(ctx, rec, models.MintStatusGenerated, "")
	rec.ImageArtifact = image

	p.log.WithFields(logrus.Fields{"item_id": rec.ItemID, "bytes": len(image)}).Info("🎨 Fish image generated")
	return nil
}

func (p *MintPipeline) upload(ctx context.Context, rec *models.MintRecord) error {
	prior := rec.Status
	if err := p.setStatus(ctx, rec, models.MintStatusUploading); err != nil {
		return err
	}

	start := time.Now()
	refs, err := p.publisher.Publish(ctx, rec.ImageArtifact, models.BuildMetadata(rec, ""))
	metrics.StageDuration.WithLabelValues(stageUpload).Observe(time.Since(start).Seconds())
	if err != nil {
		return p.stageFailed(ctx, rec, stageUpload, prior, err)
	}

	if err := p.repo.SaveStorageRefs(ctx, rec.ItemID, refs); err != nil {
		return fmt.Errorf("save storage refs: %w", err)
	}
	metrics.StageResults.WithLabelValues(stageUpload, "ok").Inc()
	p.committed(ctx, rec, models.MintStatusUploaded, "")
	rec.ImageArtifact = nil
	rec.StorageImageCID = refs.ImageCID
	rec.StorageMetadataCID = refs.MetadataCID
	rec.StorageMetadataURI = refs.MetadataURI

	p.log.WithFields(logrus.Fields{"item_id": rec.ItemID, "uri": refs.MetadataURI}).Info("📌 Image and metadata pinned")
	return nil
}

func (p *MintPipeline) finalize(ctx context.Context, rec *models.MintRecord) error {
	prior := rec.Status
	if err := p.setStatus(ctx, rec, models.MintStatusFinalizing); err != nil {
		return err
	}

	start := time.Now()
	txHash, err := p.finalizer.Finalize(ctx, rec.ItemID, rec.StorageMetadataURI)
	metrics.StageDuration.WithLabelValues(stageFinalize).Observe(time.Since(start).Seconds())

	entry := p.log.WithField("item_id", rec.ItemID)
	switch {
	case err == nil:
		metrics.StageResults.WithLabelValues(stageFinalize, "ok").Inc()
		entry = entry.WithField("tx_hash", txHash)

	case types.IsAlreadyDone(err):
		// token URI is already set on chain; nothing left to do
		metrics.StageResults.WithLabelValues(stageFinalize, "already_done").Inc()
		entry.WithError(err).Warn("⚠️ Token already finalized on chain, marking completed")
		txHash = ""

	case types.IsSequencingConflict(err):
		// a nonce race, not a failure of this item: step back without a retry charge
		return p.interrupted(ctx, rec, stageFinalize, "sequencing_conflict", prior, err)

	default:
		return p.stageFailed(ctx, rec, stageFinalize, prior, err)
	}

	if err := p.repo.MarkCompleted(ctx, rec.ItemID, txHash); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	p.committed(ctx, rec, models.MintStatusCompleted, "")
	p.completed.Add(rec.ItemID, struct{}{})
	entry.Info("🎉 Mint completed")
	return nil
}

// stageFailed charges a retry for real failures; transient ones only put the
// record back where the attempt found it
func (p *MintPipeline) stageFailed(ctx context.Context, rec *models.MintRecord, stage string, prior models.MintStatus, cause error) error {
	if types.IsTransient(cause) {
		return p.interrupted(ctx, rec, stage, "transient", prior, cause)
	}
	return p.fail(ctx, rec, stage, cause)
}

// interrupted restores the status held before the attempt, leaving retry_count
// and last_error untouched, and returns cause wrapped with the stage
func (p *MintPipeline) interrupted(ctx context.Context, rec *models.MintRecord, stage, result string, prior models.MintStatus, cause error) error {
	metrics.StageResults.WithLabelValues(stage, result).Inc()

	entry := p.log.WithFields(logrus.Fields{"item_id": rec.ItemID, "stage": stage, "status": prior})
	if err := p.setStatus(ctx, rec, prior); err != nil {
		entry.WithError(err).Error("❌ Failed to restore status")
	}
	entry.WithError(cause).Warn("⚠️ Mint stage interrupted, status restored")
	return fmt.Errorf("%s item %d: %w", stage, rec.ItemID, cause)
}

// fail records the error, charges one retry and returns err wrapped with the stage
func (p *MintPipeline) fail(ctx context.Context, rec *models.MintRecord, stage string, cause error) error {
	metrics.StageResults.WithLabelValues(stage, "failed").Inc()
	msg := cause.Error()

	entry := p.log.WithFields(logrus.Fields{"item_id": rec.ItemID, "stage": stage, "retry_count": rec.RetryCount + 1})
	if err := p.repo.UpdateStatus(ctx, rec.ItemID, models.MintStatusFailed, &msg); err != nil {
		entry.WithError(err).Error("❌ Failed to record stage failure")
	} else {
		p.committed(ctx, rec, models.MintStatusFailed, msg)
	}
	if err := p.repo.IncrementRetry(ctx, rec.ItemID); err != nil {
		entry.WithError(err).Error("❌ Failed to increment retry count")
	} else {
		rec.RetryCount++
	}
	rec.LastError = msg

	entry.WithError(cause).Warn("❌ Mint stage failed")
	return fmt.Errorf("%s item %d: %w", stage, rec.ItemID, cause)
}

// setStatus persists a status change without touching last_error
func (p *MintPipeline) setStatus(ctx context.Context, rec *models.MintRecord, to models.MintStatus) error {
	if err := p.repo.UpdateStatus(ctx, rec.ItemID, to, nil); err != nil {
		return fmt.Errorf("set status %s: %w", to, err)
	}
	p.committed(ctx, rec, to, "")
	return nil
}

// committed updates the in-memory copy and notifies when the status changed
func (p *MintPipeline) committed(ctx context.Context, rec *models.MintRecord, to models.MintStatus, lastError string) {
	from := rec.Status
	rec.Status = to
	if from != to {
		p.notify(ctx, rec.ItemID, from, to, lastError)
	}
}

func (p *MintPipeline) notify(ctx context.Context, itemID uint64, from, to models.MintStatus, lastError string) {
	if p.notifier == nil {
		return
	}
	p.notifier.NotifyStatusChange(ctx, itemID, from, to, lastError)
}
