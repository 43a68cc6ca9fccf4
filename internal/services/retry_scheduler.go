package services

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/FishIT-Mantle/fishit-sub000/internal/config"
	"github.com/FishIT-Mantle/fishit-sub000/internal/metrics"
	"github.com/FishIT-Mantle/fishit-sub000/internal/models"
	"github.com/FishIT-Mantle/fishit-sub000/internal/repository"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ItemProcessor resumes one item. *MintPipeline satisfies it.
type ItemProcessor interface {
	Process(ctx context.Context, itemID uint64) error
}

// SweepResult summary of one retry sweep
type SweepResult struct {
	Candidates int `json:"candidates"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
}

// RetryScheduler periodically resumes unfinished records in chunks of
// cfg.Concurrency
type RetryScheduler struct {
	repo      repository.MintRecordRepository
	processor ItemProcessor
	cfg       config.RetryConfig
	log       *logrus.Logger
}

// NewRetryScheduler creates the scheduler
func NewRetryScheduler(repo repository.MintRecordRepository, processor ItemProcessor, cfg config.RetryConfig, log *logrus.Logger) *RetryScheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &RetryScheduler{
		repo:      repo,
		processor: processor,
		cfg:       cfg,
		log:       log,
	}
}

// Sweep selects retry candidates and processes them. An item error is counted
// and logged and never stops the other items.
func (s *RetryScheduler) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	candidates, err := s.repo.SelectRetryCandidates(ctx, s.cfg.MaxRetries, s.cfg.RecencyWindow())
	if err != nil {
		return result, fmt.Errorf("select retry candidates: %w", err)
	}
	result.Candidates = len(candidates)
	metrics.SweepCandidates.Set(float64(len(candidates)))
	if len(candidates) == 0 {
		s.refreshStatusGauges(ctx)
		return result, nil
	}

	s.log.WithFields(logrus.Fields{
		"candidates":  len(candidates),
		"concurrency": s.cfg.Concurrency,
	}).Info("🔁 Retry sweep started")

	var succeeded, failed atomic.Int64
	for start := 0; start < len(candidates); start += s.cfg.Concurrency {
		if ctx.Err() != nil {
			break
		}
		end := start + s.cfg.Concurrency
		if end > len(candidates) {
			end = len(candidates)
		}

		var g errgroup.Group
		for _, rec := range candidates[start:end] {
			g.Go(func() error {
				s.processOne(ctx, rec, &succeeded, &failed)
				return nil
			})
		}
		_ = g.Wait()
	}

	result.Succeeded = int(succeeded.Load())
	result.Failed = int(failed.Load())
	s.refreshStatusGauges(ctx)

	s.log.WithFields(logrus.Fields{
		"candidates": result.Candidates,
		"succeeded":  result.Succeeded,
		"failed":     result.Failed,
	}).Info("✅ Retry sweep finished")
	return result, ctx.Err()
}

func (s *RetryScheduler) processOne(ctx context.Context, rec *models.MintRecord, succeeded, failed *atomic.Int64) {
	if err := s.processor.Process(ctx, rec.ItemID); err != nil {
		failed.Add(1)
		metrics.SweepItems.WithLabelValues("failed").Inc()
		s.log.WithFields(logrus.Fields{
			"item_id":     rec.ItemID,
			"status":      rec.Status,
			"retry_count": rec.RetryCount,
		}).WithError(err).Warn("⚠️ Retry attempt failed")
		return
	}
	succeeded.Add(1)
	metrics.SweepItems.WithLabelValues("succeeded").Inc()
}

func (s *RetryScheduler) refreshStatusGauges(ctx context.Context) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		s.log.WithError(err).Debug("Failed to refresh status gauges")
		return
	}
	for status, n := range counts {
		metrics.MintRecordsByStatus.WithLabelValues(string(status)).Set(float64(n))
	}
}
