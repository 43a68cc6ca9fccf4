package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FishIT-Mantle/fishit-sub000/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodicTaskNeverOverlaps(t *testing.T) {
	var inFlight, maxInFlight, runs atomic.Int32
	task := NewPeriodicTask("overlap", 5*time.Millisecond, func(ctx context.Context) error {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		runs.Add(1)
		select {
		case <-time.After(40 * time.Millisecond):
		case <-ctx.Done():
		}
		return nil
	}, logging.Discard())

	task.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	task.Stop()

	assert.Equal(t, int32(1), maxInFlight.Load())
	assert.Positive(t, task.Skipped())
}

func TestPeriodicTaskRunOnStart(t *testing.T) {
	ran := make(chan struct{}, 1)
	task := NewPeriodicTask("on-start", time.Hour, func(ctx context.Context) error {
		ran <- struct{}{}
		return nil
	}, logging.Discard())
	task.RunOnStart = true

	task.Start(context.Background())
	defer task.Stop()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task did not run on start")
	}
}

func TestPeriodicTaskStopCancelsRun(t *testing.T) {
	started := make(chan struct{})
	var cancelled atomic.Bool
	task := NewPeriodicTask("cancel", time.Hour, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	}, logging.Discard())
	task.RunOnStart = true

	task.Start(context.Background())
	<-started
	task.Stop()

	assert.True(t, cancelled.Load())
	task.Stop()
}

func TestRunOnceRejectsWhileRunning(t *testing.T) {
	release := make(chan struct{})
	task := NewPeriodicTask("manual", time.Hour, func(ctx context.Context) error {
		<-release
		return nil
	}, logging.Discard())

	done := make(chan error, 1)
	go func() { done <- task.RunOnce(context.Background()) }()

	require.Eventually(t, func() bool { return task.running.Load() }, time.Second, time.Millisecond)
	assert.ErrorIs(t, task.RunOnce(context.Background()), ErrTaskRunning)

	close(release)
	assert.NoError(t, <-done)
	assert.Equal(t, int64(1), task.Skipped())
}

func TestPeriodicTaskAppliesTimeout(t *testing.T) {
	task := NewPeriodicTask("timeout", time.Hour, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, logging.Discard())
	task.Timeout = 10 * time.Millisecond

	err := task.RunOnce(context.Background())
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
