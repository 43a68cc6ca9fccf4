package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/FishIT-Mantle/fishit-sub000/internal/metrics"
	"github.com/sirupsen/logrus"
)

// ErrTaskRunning returned by RunOnce when a run is already in flight
var ErrTaskRunning = errors.New("task already running")

// TaskFunc one unit of periodic work
type TaskFunc func(ctx context.Context) error

// PeriodicTask runs fn every Interval on its own goroutine. Runs never overlap:
// a tick that finds the previous run still going is skipped.
type PeriodicTask struct {
	Name       string
	Interval   time.Duration
	RunOnStart bool
	Timeout    time.Duration // per run, 0 means no limit

	fn  TaskFunc
	log *logrus.Logger

	running atomic.Bool
	skipped atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPeriodicTask creates a stopped task
func NewPeriodicTask(name string, interval time.Duration, fn TaskFunc, log *logrus.Logger) *PeriodicTask {
	return &PeriodicTask{
		Name:     name,
		Interval: interval,
		fn:       fn,
		log:      log,
	}
}

// Start launches the ticker loop. Calling Start on a started task is a no-op.
func (t *PeriodicTask) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.log.WithFields(logrus.Fields{"task": t.Name, "interval": t.Interval.String()}).Info("📅 Periodic task started")

	t.wg.Add(1)
	go t.loop(ctx)
}

// Stop cancels the task context and waits for the loop and any in-flight run
func (t *PeriodicTask) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	t.wg.Wait()
	t.log.WithField("task", t.Name).Info("🛑 Periodic task stopped")
}

// RunOnce runs fn now unless a run is already in flight
func (t *PeriodicTask) RunOnce(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		t.skip()
		return ErrTaskRunning
	}
	defer t.running.Store(false)
	return t.execute(ctx)
}

// Skipped number of ticks skipped because a run was in flight
func (t *PeriodicTask) Skipped() int64 {
	return t.skipped.Load()
}

func (t *PeriodicTask) loop(ctx context.Context) {
	defer t.wg.Done()

	if t.RunOnStart {
		t.tick(ctx)
	}

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// tick starts a run in the background when none is in flight
func (t *PeriodicTask) tick(ctx context.Context) {
	if !t.running.CompareAndSwap(false, true) {
		t.skip()
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.running.Store(false)
		if err := t.execute(ctx); err != nil && ctx.Err() == nil {
			t.log.WithField("task", t.Name).WithError(err).Error("❌ Periodic task run failed")
		}
	}()
}

func (t *PeriodicTask) execute(ctx context.Context) error {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := t.fn(ctx)
	metrics.TaskDuration.WithLabelValues(t.Name).Observe(time.Since(start).Seconds())

	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.TaskRuns.WithLabelValues(t.Name, result).Inc()
	return err
}

func (t *PeriodicTask) skip() {
	t.skipped.Add(1)
	metrics.TaskRuns.WithLabelValues(t.Name, "skipped").Inc()
	t.log.WithField("task", t.Name).Debug("⏭️ Previous run still in flight, skipping")
}
