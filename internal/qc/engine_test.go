// Package qc_test tests the manual review workflow.
package qc_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiopanel/adstudy/internal/core"
	"github.com/audiopanel/adstudy/internal/objectstore"
	"github.com/audiopanel/adstudy/internal/qc"
	"github.com/audiopanel/adstudy/internal/store"
)

var errMockSign = errors.New("mock sign error")

// mockSigner is a mock implementation of the URLSigner interface.
type mockSigner struct {
	failKeys map[string]bool
}

func (m *mockSigner) Sign(key string, _ time.Duration) (string, error) {
	if m.failKeys[key] {
		return "", errMockSign
	}

	return "https://study.example.org/media/" + key + "?token=mock", nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "qc-test.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	return log
}

func setupQC(t *testing.T) (*qc.Engine, *store.MemoryStore, *objectstore.MemoryStore, *mockSigner) {
	t.Helper()

	records := store.NewMemoryStore()
	blobs := objectstore.NewMemoryStore()
	signer := &mockSigner{failKeys: map[string]bool{}}

	engine := qc.New(records, blobs, signer, testLogger(t))

	return engine, records, blobs, signer
}

// seedGenerated creates a record with generated audio in the given arm.
func seedGenerated(t *testing.T, records *store.MemoryStore, id string, c core.Condition, generatedAt time.Time) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, records.UpsertT0(ctx, id, c, generatedAt.Add(-time.Hour)))

	status := core.AudioGenerated
	path := id + ".mp3"
	require.NoError(t, records.Update(ctx, id, core.RecordUpdate{
		AudioStatus:      &status,
		AudioPath:        &path,
		AudioGeneratedAt: &generatedAt,
	}))
}

func TestApprove_MakesAudioServable(t *testing.T) {
	t.Parallel()

	engine, records, _, _ := setupQC(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	seedGenerated(t, records, "H1", core.ConditionHigh, now)

	before, err := records.Get(ctx, "H1")
	require.NoError(t, err)
	assert.False(t, before.Servable(), "high audio must not be servable before approval")

	require.NoError(t, engine.Approve(ctx, "H1", "sounds clean"))

	after, err := records.Get(ctx, "H1")
	require.NoError(t, err)
	assert.Equal(t, core.QCApproved, after.QCStatus)
	assert.Equal(t, "sounds clean", after.QCNotes)
	require.NotNil(t, after.QCCheckedAt)
	assert.True(t, after.Servable())

	// Audio fields are untouched by review.
	assert.Equal(t, before.AudioPath, after.AudioPath)
	require.NotNil(t, after.AudioGeneratedAt)
	assert.True(t, before.AudioGeneratedAt.Equal(*after.AudioGeneratedAt))
}

func TestMarkNeedsFix(t *testing.T) {
	t.Parallel()

	engine, records, _, _ := setupQC(t)
	ctx := context.Background()

	seedGenerated(t, records, "H1", core.ConditionHigh, time.Now().UTC())

	require.NoError(t, engine.MarkNeedsFix(ctx, "H1", "clipping at 0:12"))

	p, err := records.Get(ctx, "H1")
	require.NoError(t, err)
	assert.Equal(t, core.QCNeedsFix, p.QCStatus)
	assert.Equal(t, "clipping at 0:12", p.QCNotes)
	assert.False(t, p.Servable())
}

func TestReview_Preconditions(t *testing.T) {
	t.Parallel()

	engine, records, _, _ := setupQC(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.ErrorIs(t, engine.Approve(ctx, "nobody", ""), core.ErrNotFound)

	seedGenerated(t, records, "M1", core.ConditionMedium, now)
	require.ErrorIs(t, engine.Approve(ctx, "M1", ""), qc.ErrNotHighCondition)

	require.NoError(t, records.UpsertT0(ctx, "H-pending", core.ConditionHigh, now))
	require.ErrorIs(t, engine.Approve(ctx, "H-pending", ""), qc.ErrAudioNotGenerated)
}

func TestReplace_OverwritesAndResets(t *testing.T) {
	t.Parallel()

	engine, records, blobs, _ := setupQC(t)
	ctx := context.Background()
	generatedAt := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	seedGenerated(t, records, "H1", core.ConditionHigh, generatedAt)
	require.NoError(t, blobs.Upload(ctx, "H1.mp3", []byte("first take"), "audio/mpeg"))
	require.NoError(t, engine.Approve(ctx, "H1", "ok"))

	require.NoError(t, engine.Replace(ctx, "H1", []byte("second take"), "re-recorded"))

	data, err := blobs.Download(ctx, "H1.mp3")
	require.NoError(t, err)
	assert.Equal(t, []byte("second take"), data)

	p, err := records.Get(ctx, "H1")
	require.NoError(t, err)
	assert.Equal(t, core.AudioGenerated, p.AudioStatus)
	assert.Equal(t, core.QCPending, p.QCStatus, "replacement re-enters review")
	assert.Equal(t, "re-recorded", p.QCNotes)
	assert.Equal(t, 1, p.QCReplacements)
	require.NotNil(t, p.AudioGeneratedAt)
	assert.True(t, p.AudioGeneratedAt.After(generatedAt))
	assert.False(t, p.Servable())
}

func TestReplace_TwiceIncrementsByTwo(t *testing.T) {
	t.Parallel()

	engine, records, _, _ := setupQC(t)
	ctx := context.Background()

	seedGenerated(t, records, "H1", core.ConditionHigh, time.Now().UTC())

	require.NoError(t, engine.Replace(ctx, "H1", []byte("take two"), ""))
	require.NoError(t, engine.Replace(ctx, "H1", []byte("take three"), ""))

	p, err := records.Get(ctx, "H1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.QCReplacements)
	assert.Equal(t, core.QCPending, p.QCStatus)
	assert.Equal(t, core.AudioGenerated, p.AudioStatus)
}

func TestReplace_EmptyAudio(t *testing.T) {
	t.Parallel()

	engine, records, _, _ := setupQC(t)

	seedGenerated(t, records, "H1", core.ConditionHigh, time.Now().UTC())

	err := engine.Replace(context.Background(), "H1", nil, "")
	require.ErrorIs(t, err, qc.ErrEmptyAudio)
}

func TestListPending_OrderAndDegradedURLs(t *testing.T) {
	t.Parallel()

	engine, records, _, signer := setupQC(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	seedGenerated(t, records, "H-old", core.ConditionHigh, base)
	seedGenerated(t, records, "H-new", core.ConditionHigh, base.Add(time.Hour))
	seedGenerated(t, records, "H-approved", core.ConditionHigh, base.Add(2*time.Hour))
	require.NoError(t, engine.Approve(ctx, "H-approved", ""))

	signer.failKeys["H-old.mp3"] = true

	entries, err := engine.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "H-new", entries[0].Participant.ID)
	assert.NotEmpty(t, entries[0].URL)

	assert.Equal(t, "H-old", entries[1].Participant.ID)
	assert.Empty(t, entries[1].URL, "signing failure degrades to an empty URL")
}
