package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/FishIT-Mantle/fishit-sub000/internal/logging"
	"github.com/FishIT-Mantle/fishit-sub000/internal/models"
	"github.com/FishIT-Mantle/fishit-sub000/internal/repository"
	"github.com/FishIT-Mantle/fishit-sub000/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type pipelineFixture struct {
	gdb       *gorm.DB
	repo      repository.MintRecordRepository
	generator *fakeGenerator
	publisher *fakePublisher
	finalizer *fakeFinalizer
	notifier  *recordingNotifier
	pipeline  *MintPipeline
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	gdb := newTestDB(t)
	f := &pipelineFixture{
		gdb:       gdb,
		repo:      repository.NewMintRecordRepository(gdb),
		generator: &fakeGenerator{},
		publisher: &fakePublisher{},
		finalizer: &fakeFinalizer{},
		notifier:  &recordingNotifier{},
	}
	f.pipeline = f.newPipeline(t)
	return f
}

// newPipeline a fresh pipeline over the same store, with an empty completed cache
func (f *pipelineFixture) newPipeline(t *testing.T) *MintPipeline {
	t.Helper()
	p, err := NewMintPipeline(f.repo, f.generator, f.publisher, f.finalizer, f.notifier, logging.Discard())
	require.NoError(t, err)
	return p
}

func (f *pipelineFixture) calls() [3]int {
	return [3]int{f.generator.Calls(), f.publisher.Calls(), f.finalizer.Calls()}
}

func (f *pipelineFixture) record(t *testing.T, itemID uint64) *models.MintRecord {
	t.Helper()
	rec, err := f.repo.Get(context.Background(), itemID)
	require.NoError(t, err)
	return rec
}

func TestItem42HappyPathThenNoop(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)

	require.NoError(t, f.pipeline.Ingest(ctx, fishEvent(42, 1000, 0)))

	rec := f.record(t, 42)
	assert.Equal(t, models.MintStatusCompleted, rec.Status)
	assert.Equal(t, "ipfs://QmMeta", rec.StorageMetadataURI)
	assert.Equal(t, "QmImage", rec.StorageImageCID)
	assert.NotEmpty(t, rec.FinalizeTxHash)
	assert.NotNil(t, rec.CompletedAt)
	assert.Empty(t, rec.ImageArtifact)
	assert.Zero(t, rec.RetryCount)
	assert.Equal(t, [3]int{1, 1, 1}, f.calls())

	assert.Equal(t, "ipfs://QmMeta", f.finalizer.lastURI)
	assert.Equal(t, []byte("png:42000"), f.publisher.lastSeen)
	assert.Equal(t, "FishIT #42 Epic Fish", f.publisher.lastMeta.Name)

	assert.Equal(t, []models.MintStatus{
		models.MintStatusPending,
		models.MintStatusGenerating,
		models.MintStatusGenerated,
		models.MintStatusUploading,
		models.MintStatusUploaded,
		models.MintStatusFinalizing,
		models.MintStatusCompleted,
	}, f.notifier.statuses())

	// replayed event and direct process are no-ops
	require.NoError(t, f.pipeline.Ingest(ctx, fishEvent(42, 1000, 0)))
	require.NoError(t, f.pipeline.Process(ctx, 42))
	require.NoError(t, f.newPipeline(t).Process(ctx, 42))
	assert.Equal(t, [3]int{1, 1, 1}, f.calls())
	assert.Equal(t, rec.UpdatedAt, f.record(t, 42).UpdatedAt)
}

func TestProcessMissingRecord(t *testing.T) {
	f := newPipelineFixture(t)
	err := f.pipeline.Process(context.Background(), 404)
	assert.ErrorIs(t, err, repository.ErrMintRecordNotFound)
	assert.Equal(t, [3]int{0, 0, 0}, f.calls())
}

func TestStoredArtifactSkipsGeneration(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)

	_, _, err := f.repo.GetOrCreate(ctx, &models.MintRecord{ItemID: 7, OwnerAddress: "0x1", RandomSeed: "1"})
	require.NoError(t, err)
	require.NoError(t, f.repo.UpdateStatus(ctx, 7, models.MintStatusGenerating, nil))
	require.NoError(t, f.repo.SaveImageArtifact(ctx, 7, []byte("stored-image")))

	require.NoError(t, f.pipeline.Process(ctx, 7))

	assert.Equal(t, [3]int{0, 1, 1}, f.calls())
	assert.Equal(t, []byte("stored-image"), f.publisher.lastSeen)
	assert.Equal(t, models.MintStatusCompleted, f.record(t, 7).Status)
}

func TestGenerationFailureChargesRetry(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	f.generator.err = &types.ExternalServiceError{Service: "image generator", StatusCode: 503}

	err := f.pipeline.Ingest(ctx, fishEvent(9, 10, 0))
	var svcErr *types.ExternalServiceError
	require.ErrorAs(t, err, &svcErr)

	rec := f.record(t, 9)
	assert.Equal(t, models.MintStatusFailed, rec.Status)
	assert.Equal(t, 1, rec.RetryCount)
	assert.Contains(t, rec.LastError, "503")
	assert.Equal(t, [3]int{1, 0, 0}, f.calls())

	f.generator.err = nil
	require.NoError(t, f.pipeline.Process(ctx, 9))
	rec = f.record(t, 9)
	assert.Equal(t, models.MintStatusCompleted, rec.Status)
	assert.Equal(t, 1, rec.RetryCount)
}

func TestTransientUploadFailureKeepsArtifact(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	f.publisher.err = types.NewTransientNetworkError("pinata", errors.New("connection reset"))

	err := f.pipeline.Ingest(ctx, fishEvent(11, 10, 0))
	assert.True(t, types.IsTransient(err))

	rec := f.record(t, 11)
	assert.Equal(t, models.MintStatusGenerated, rec.Status)
	assert.True(t, rec.HasImageArtifact())
	assert.Zero(t, rec.RetryCount)
	assert.Empty(t, rec.LastError)
	assert.NotContains(t, f.notifier.statuses(), models.MintStatusFailed)

	candidates, err := f.repo.SelectRetryCandidates(ctx, 5, time.Hour)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	f.publisher.err = nil
	require.NoError(t, f.pipeline.Process(ctx, 11))
	assert.Equal(t, [3]int{1, 2, 1}, f.calls())
	assert.Zero(t, f.record(t, 11).RetryCount)
}

func TestTransientGenerationFailureReturnsToPending(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	f.generator.err = types.NewTransientNetworkError("image generator", errors.New("i/o timeout"))

	err := f.pipeline.Ingest(ctx, fishEvent(16, 10, 0))
	assert.True(t, types.IsTransient(err))

	rec := f.record(t, 16)
	assert.Equal(t, models.MintStatusPending, rec.Status)
	assert.Zero(t, rec.RetryCount)
	assert.Equal(t, [3]int{1, 0, 0}, f.calls())
}

func TestTransientFailureKeepsPriorRetryState(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	f.finalizer.err = &types.ChainFinalizeError{Kind: types.FinalizeUnknown, Err: errors.New("transaction reverted")}
	require.Error(t, f.pipeline.Ingest(ctx, fishEvent(17, 10, 0)))
	require.Equal(t, 1, f.record(t, 17).RetryCount)

	f.finalizer.err = types.NewTransientNetworkError("eth_getTransactionCount", errors.New("connection refused"))
	err := f.pipeline.Process(ctx, 17)
	assert.True(t, types.IsTransient(err))

	rec := f.record(t, 17)
	assert.Equal(t, models.MintStatusFailed, rec.Status)
	assert.Equal(t, 1, rec.RetryCount)
	assert.Contains(t, rec.LastError, "reverted")
}

func TestSequencingConflictReturnsToUploaded(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	f.finalizer.err = &types.ChainFinalizeError{Kind: types.FinalizeSequencingConflict, Err: errors.New("nonce too low")}

	err := f.pipeline.Ingest(ctx, fishEvent(12, 10, 0))
	assert.True(t, types.IsSequencingConflict(err))

	rec := f.record(t, 12)
	assert.Equal(t, models.MintStatusUploaded, rec.Status)
	assert.Zero(t, rec.RetryCount)
	assert.Empty(t, rec.LastError)

	candidates, err := f.repo.SelectRetryCandidates(ctx, 5, time.Hour)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, uint64(12), candidates[0].ItemID)

	f.finalizer.err = nil
	require.NoError(t, f.pipeline.Process(ctx, 12))
	assert.Equal(t, [3]int{1, 1, 2}, f.calls())
}

func TestSequencingConflictAfterFailureStaysFailed(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	f.finalizer.err = &types.ChainFinalizeError{Kind: types.FinalizeUnknown, Err: errors.New("transaction reverted")}
	require.Error(t, f.pipeline.Ingest(ctx, fishEvent(18, 10, 0)))

	f.finalizer.err = &types.ChainFinalizeError{Kind: types.FinalizeSequencingConflict, Err: errors.New("nonce too low")}
	err := f.pipeline.Process(ctx, 18)
	assert.True(t, types.IsSequencingConflict(err))

	rec := f.record(t, 18)
	assert.Equal(t, models.MintStatusFailed, rec.Status)
	assert.Equal(t, 1, rec.RetryCount)

	f.finalizer.err = nil
	require.NoError(t, f.pipeline.Process(ctx, 18))
	assert.Equal(t, models.MintStatusCompleted, f.record(t, 18).Status)
	assert.Equal(t, [3]int{1, 1, 3}, f.calls())
}

func TestAlreadyDoneCompletesWithoutRetry(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	f.finalizer.err = &types.ChainFinalizeError{Kind: types.FinalizeAlreadyDone, Err: errors.New("URI already set")}

	require.NoError(t, f.pipeline.Ingest(ctx, fishEvent(13, 10, 0)))

	rec := f.record(t, 13)
	assert.Equal(t, models.MintStatusCompleted, rec.Status)
	assert.Zero(t, rec.RetryCount)
	assert.Empty(t, rec.FinalizeTxHash)
	assert.NotContains(t, f.notifier.statuses(), models.MintStatusFailed)

	candidates, err := f.repo.SelectRetryCandidates(ctx, 5, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestUnknownFinalizeFailureResumesAtFinalize(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	f.finalizer.err = &types.ChainFinalizeError{Kind: types.FinalizeUnknown, Err: errors.New("transaction reverted")}

	require.Error(t, f.pipeline.Ingest(ctx, fishEvent(14, 10, 0)))
	rec := f.record(t, 14)
	assert.Equal(t, models.MintStatusFailed, rec.Status)
	assert.Equal(t, 1, rec.RetryCount)
	assert.Equal(t, "ipfs://QmMeta", rec.StorageMetadataURI)

	f.finalizer.err = nil
	require.NoError(t, f.pipeline.Process(ctx, 14))
	assert.Equal(t, [3]int{1, 1, 2}, f.calls())
	assert.Equal(t, models.MintStatusCompleted, f.record(t, 14).Status)
}

func TestLostArtifactFailsThenRegenerates(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)

	_, _, err := f.repo.GetOrCreate(ctx, &models.MintRecord{ItemID: 15, OwnerAddress: "0x1", RandomSeed: "5"})
	require.NoError(t, err)
	require.NoError(t, f.gdb.Model(&models.MintRecord{}).Where("item_id = ?", 15).
		Update("status", models.MintStatusGenerated).Error)

	err = f.pipeline.Process(ctx, 15)
	var svcErr *types.ExternalServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, models.MintStatusFailed, f.record(t, 15).Status)
	assert.Equal(t, [3]int{0, 0, 0}, f.calls())

	require.NoError(t, f.pipeline.Process(ctx, 15))
	assert.Equal(t, [3]int{1, 1, 1}, f.calls())
}

func TestConcurrentProcessRunsStagesOnce(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	_, _, err := f.repo.GetOrCreate(ctx, &models.MintRecord{ItemID: 16, OwnerAddress: "0x1", RandomSeed: "6"})
	require.NoError(t, err)

	f.generator.block = make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = f.pipeline.Process(ctx, 16)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(f.generator.block)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, [3]int{1, 1, 1}, f.calls())
	assert.Zero(t, f.pipeline.locks.Len())
}
