package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/FishIT-Mantle/fishit-sub000/internal/config"
	"github.com/FishIT-Mantle/fishit-sub000/internal/interfaces"
	"github.com/FishIT-Mantle/fishit-sub000/internal/metrics"
	"github.com/FishIT-Mantle/fishit-sub000/internal/repository"
	"github.com/sirupsen/logrus"
)

// FishMintedCheckpoint checkpoint name used by the watcher
const FishMintedCheckpoint = "fish_minted"

// EventIngester consumes decoded events. *MintPipeline satisfies it.
type EventIngester interface {
	Ingest(ctx context.Context, event interfaces.FishMintedEvent) error
}

// PollResult summary of one watcher poll
type PollResult struct {
	Head      uint64 `json:"head"`
	FromBlock uint64 `json:"from_block"`
	ToBlock   uint64 `json:"to_block"`
	Events    int    `json:"events"`
	Failed    int    `json:"failed"`
	Advanced  bool   `json:"advanced"`
}

// EventWatcher scans confirmed blocks for FishMinted logs and hands them to
// the pipeline, advancing a durable checkpoint after each batch
type EventWatcher struct {
	reader      interfaces.ChainLogReader
	checkpoints repository.CheckpointStore
	ingester    EventIngester
	cfg         config.WatcherConfig
	log         *logrus.Logger
}

// NewEventWatcher creates the watcher
func NewEventWatcher(reader interfaces.ChainLogReader, checkpoints repository.CheckpointStore, ingester EventIngester, cfg config.WatcherConfig, log *logrus.Logger) *EventWatcher {
	if cfg.MaxBlockRange == 0 {
		cfg.MaxBlockRange = 2000
	}
	return &EventWatcher{
		reader:      reader,
		checkpoints: checkpoints,
		ingester:    ingester,
		cfg:         cfg,
		log:         log,
	}
}

// Poll runs one scan. RPC errors abort before the checkpoint is written, so the
// same range is scanned again on the next poll.
func (w *EventWatcher) Poll(ctx context.Context) (PollResult, error) {
	var result PollResult

	head, err := w.reader.BlockNumber(ctx)
	if err != nil {
		return result, err
	}
	result.Head = head
	metrics.WatcherChainHead.Set(float64(head))

	if head < w.cfg.ConfirmationLag {
		return result, nil
	}
	safeHead := head - w.cfg.ConfirmationLag

	checkpoint, found, err := w.checkpoints.Load(ctx, FishMintedCheckpoint)
	if err != nil {
		return result, fmt.Errorf("load checkpoint: %w", err)
	}
	if !found {
		checkpoint = 0
		if head > w.cfg.BackfillBlocks {
			checkpoint = head - w.cfg.BackfillBlocks
		}
		w.log.WithFields(logrus.Fields{"head": head, "start": checkpoint}).Info("📍 No checkpoint yet, starting from backfill window")
	}
	metrics.WatcherCheckpoint.Set(float64(checkpoint))

	if safeHead <= checkpoint {
		return result, nil
	}
	result.FromBlock = checkpoint + 1
	result.ToBlock = safeHead

	var batch []interfaces.FishMintedEvent
	for from := checkpoint + 1; from <= safeHead; {
		to := from + w.cfg.MaxBlockRange - 1
		if to > safeHead {
			to = safeHead
		}
		events, err := w.reader.FilterFishMinted(ctx, from, to)
		if err != nil {
			return result, err
		}
		batch = append(batch, events...)
		from = to + 1
	}

	sort.SliceStable(batch, func(i, j int) bool {
		if batch[i].BlockNumber != batch[j].BlockNumber {
			return batch[i].BlockNumber < batch[j].BlockNumber
		}
		return batch[i].LogIndex < batch[j].LogIndex
	})
	result.Events = len(batch)

	var notPersisted int
	for _, event := range batch {
		err := w.ingester.Ingest(ctx, event)
		if err == nil {
			metrics.EventsIngested.WithLabelValues("ok").Inc()
			continue
		}

		result.Failed++
		entry := w.log.WithFields(logrus.Fields{"item_id": event.ItemID, "block": event.BlockNumber})
		if errors.Is(err, ErrRecordNotPersisted) {
			notPersisted++
			metrics.EventsIngested.WithLabelValues("not_persisted").Inc()
			entry.WithError(err).Error("❌ Failed to store FishMinted event")
			continue
		}
		metrics.EventsIngested.WithLabelValues("process_failed").Inc()
		entry.WithError(err).Warn("⚠️ Mint processing failed, left for retry sweep")
	}

	// an event without a row would be lost if the checkpoint moved past it
	if notPersisted > 0 {
		return result, fmt.Errorf("%d of %d events not persisted, checkpoint kept at %d", notPersisted, len(batch), checkpoint)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	if err := w.checkpoints.Save(ctx, FishMintedCheckpoint, safeHead); err != nil {
		return result, fmt.Errorf("save checkpoint: %w", err)
	}
	result.Advanced = true
	metrics.WatcherCheckpoint.Set(float64(safeHead))

	w.log.WithFields(logrus.Fields{
		"from":   result.FromBlock,
		"to":     result.ToBlock,
		"events": result.Events,
		"failed": result.Failed,
	}).Info("✅ Watcher batch committed")
	return result, nil
}

// Checkpoint last committed block, for health reporting
func (w *EventWatcher) Checkpoint(ctx context.Context) (uint64, bool, error) {
	return w.checkpoints.Load(ctx, FishMintedCheckpoint)
}
