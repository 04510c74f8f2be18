// Package lifecycle_test tests the audio generation batch engine.
package lifecycle_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiopanel/adstudy/internal/condition"
	"github.com/audiopanel/adstudy/internal/core"
	"github.com/audiopanel/adstudy/internal/lifecycle"
	"github.com/audiopanel/adstudy/internal/objectstore"
	"github.com/audiopanel/adstudy/internal/store"
)

var errMockSynthesis = errors.New("mock synthesis error")

// mockSynthesizer is a mock implementation of the Synthesizer interface.
// failCalls marks 1-based call indexes that should fail.
type mockSynthesizer struct {
	calls     int
	failCalls map[int]bool
	failWith  error
}

func (m *mockSynthesizer) Synthesize(_ context.Context, _ string) ([]byte, error) {
	m.calls++

	if m.failCalls[m.calls] {
		err := m.failWith
		if err == nil {
			err = errMockSynthesis
		}

		return nil, err
	}

	return []byte("mock audio"), nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "engine-test.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	return log
}

func setupEngine(t *testing.T) (*lifecycle.Engine, *store.MemoryStore, *objectstore.MemoryStore, *mockSynthesizer) {
	t.Helper()

	records := store.NewMemoryStore()
	blobs := objectstore.NewMemoryStore()
	synth := &mockSynthesizer{failCalls: map[int]bool{}}

	engine := lifecycle.New(records, blobs, synth, testLogger(t)).WithDelay(0)

	return engine, records, blobs, synth
}

func seed(t *testing.T, records *store.MemoryStore, id string, c core.Condition) {
	t.Helper()
	require.NoError(t, records.UpsertT0(context.Background(), id, c, time.Now().UTC()))
}

func TestRun_LowBranchSharesOneArtifact(t *testing.T) {
	t.Parallel()

	engine, records, blobs, synth := setupEngine(t)
	ctx := context.Background()

	seed(t, records, "L1", core.ConditionLow)
	seed(t, records, "L2", core.ConditionLow)
	seed(t, records, "L3", core.ConditionLow)

	report, err := engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.LowUpdated)
	assert.Equal(t, 1, synth.calls, "shared artifact should be synthesized exactly once")
	assert.Equal(t, 1, blobs.Uploads)

	for _, id := range []string{"L1", "L2", "L3"} {
		p, err := records.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, core.AudioGenerated, p.AudioStatus)
		assert.Equal(t, condition.SharedLowKey, p.AudioPath)
		require.NotNil(t, p.AudioGeneratedAt)
	}

	// Re-running generates nothing new and touches no records.
	report, err = engine.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.LowUpdated)
	assert.Equal(t, 1, synth.calls)
	assert.Equal(t, 1, blobs.Uploads)
}

func TestRun_LowBranchReusesExistingArtifact(t *testing.T) {
	t.Parallel()

	engine, records, blobs, synth := setupEngine(t)
	ctx := context.Background()

	require.NoError(t, blobs.Upload(ctx, condition.SharedLowKey, []byte("prior take"), "audio/mpeg"))
	blobs.Uploads = 0

	seed(t, records, "L1", core.ConditionLow)

	report, err := engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.LowUpdated)
	assert.Zero(t, synth.calls)
	assert.Zero(t, blobs.Uploads)
}

func TestRun_LowBranchFailureTouchesNoRecords(t *testing.T) {
	t.Parallel()

	engine, records, _, synth := setupEngine(t)
	ctx := context.Background()

	synth.failCalls[1] = true

	seed(t, records, "L1", core.ConditionLow)

	_, err := engine.Run(ctx)
	require.ErrorIs(t, err, errMockSynthesis)

	p, err := records.Get(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, core.AudioPending, p.AudioStatus)
}

func TestRun_MediumHighIsolatedPartialFailure(t *testing.T) {
	t.Parallel()

	engine, records, _, synth := setupEngine(t)
	ctx := context.Background()

	seed(t, records, "M1", core.ConditionMedium)
	seed(t, records, "M2", core.ConditionMedium)
	seed(t, records, "H1", core.ConditionHigh)

	// No low records are pending, so synthesis calls are M1, M2, H1 in
	// insertion order. Fail the second.
	synth.failCalls[2] = true

	report, err := engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Generated)
	assert.Equal(t, 1, report.Errored)

	statuses := map[core.AudioStatus]int{}

	for _, id := range []string{"M1", "M2", "H1"} {
		p, err := records.Get(ctx, id)
		require.NoError(t, err)
		statuses[p.AudioStatus]++

		if p.AudioStatus == core.AudioGenerated {
			assert.Equal(t, p.ID+".mp3", p.AudioPath)
			assert.Empty(t, p.AudioError)
		} else {
			assert.Contains(t, p.AudioError, "mock synthesis error")
			assert.Empty(t, p.AudioPath)
		}
	}

	assert.Equal(t, 2, statuses[core.AudioGenerated])
	assert.Equal(t, 1, statuses[core.AudioError])
}

func TestRun_BatchCapAppliedBeforeProcessing(t *testing.T) {
	t.Parallel()

	engine, records, _, synth := setupEngine(t)
	engine.WithBatchCap(2)

	ctx := context.Background()

	for _, id := range []string{"M1", "M2", "M3", "M4"} {
		seed(t, records, id, core.ConditionMedium)
	}

	report, err := engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Generated+report.Errored)
	assert.Equal(t, 2, synth.calls)
}

func TestRun_ErroredRecordsAreNotRetried(t *testing.T) {
	t.Parallel()

	engine, records, _, synth := setupEngine(t)
	ctx := context.Background()

	seed(t, records, "M1", core.ConditionMedium)
	synth.failCalls[1] = true

	report, err := engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Errored)

	report, err = engine.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Generated)
	assert.Zero(t, report.Errored)
	assert.Equal(t, 1, synth.calls, "error records must not be retried automatically")
}

func TestRun_ErrorMessageTruncated(t *testing.T) {
	t.Parallel()

	engine, records, _, synth := setupEngine(t)
	ctx := context.Background()

	synth.failCalls[1] = true
	synth.failWith = errors.New(strings.Repeat("x", 2000))

	seed(t, records, "H1", core.ConditionHigh)

	report, err := engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Errored)

	p, err := records.Get(ctx, "H1")
	require.NoError(t, err)
	assert.Len(t, p.AudioError, 500)
}
