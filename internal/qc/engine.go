// Package qc implements the manual review workflow gating high-condition
// audio: approve, mark needs-fix, and replace.
package qc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"

	"github.com/audiopanel/adstudy/internal/core"
)

// SignedURLTTL is the lifetime of the review URLs minted for the dashboard
// listing.
const SignedURLTTL = 10 * time.Minute

const audioContentType = "audio/mpeg"

// Static errors.
var (
	// ErrNotHighCondition indicates a QC action on a record outside the
	// high arm; only high audio is reviewed.
	ErrNotHighCondition = errors.New("record is not in the high condition")
	// ErrAudioNotGenerated indicates a QC action on a record whose audio
	// has not been generated yet.
	ErrAudioNotGenerated = errors.New("record has no generated audio")
	// ErrEmptyAudio indicates a replacement upload with no bytes.
	ErrEmptyAudio = errors.New("replacement audio cannot be empty")
)

// Entry is one reviewable record in the dashboard listing, annotated with a
// freshly minted signed URL. URL is empty when minting failed for that
// record; a single minting failure never fails the whole listing.
type Entry struct {
	Participant core.Participant
	URL         string
}

// Engine mutates QC state on participant records. It never decides
// servability itself; the read path applies core.Participant.Servable.
type Engine struct {
	records core.RecordStore
	blobs   core.BlobStore
	signer  core.URLSigner
	log     *logger.Logger
	now     func() time.Time
}

// New creates a QC engine over the given collaborators.
func New(records core.RecordStore, blobs core.BlobStore, signer core.URLSigner, log *logger.Logger) *Engine {
	return &Engine{
		records: records,
		blobs:   blobs,
		signer:  signer,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the engine's time source for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now

	return e
}

// Approve marks the record's audio as approved for delivery. Audio fields
// are untouched.
func (e *Engine) Approve(ctx context.Context, id, notes string) error {
	return e.review(ctx, id, notes, core.QCApproved)
}

// MarkNeedsFix flags the record's audio for rework. Audio fields are
// untouched.
func (e *Engine) MarkNeedsFix(ctx context.Context, id, notes string) error {
	return e.review(ctx, id, notes, core.QCNeedsFix)
}

func (e *Engine) review(ctx context.Context, id, notes string, status core.QCStatus) error {
	_, err := e.reviewable(ctx, id)
	if err != nil {
		return err
	}

	checkedAt := e.now()

	err = e.records.Update(ctx, id, core.RecordUpdate{
		QCStatus:    &status,
		QCCheckedAt: &checkedAt,
		QCNotes:     &notes,
	})
	if err != nil {
		return fmt.Errorf("failed to record review for '%s': %w", id, err)
	}

	e.log.Info("QC review for %s: %s", id, status)

	return nil
}

// Replace overwrites the record's audio at its existing path with the
// uploaded bytes, then resets the record: status generated with a fresh
// timestamp, error cleared, QC back to pending, and the replacement counter
// incremented by one. The path is stable, so previously issued URLs point
// at the new content.
func (e *Engine) Replace(ctx context.Context, id string, audio []byte, notes string) error {
	if len(audio) == 0 {
		return ErrEmptyAudio
	}

	participant, err := e.reviewable(ctx, id)
	if err != nil {
		return err
	}

	err = e.blobs.Upload(ctx, participant.AudioPath, audio, audioContentType)
	if err != nil {
		return fmt.Errorf("failed to store replacement audio for '%s': %w", id, err)
	}

	now := e.now()
	status := core.AudioGenerated
	qcStatus := core.QCPending
	cleared := ""

	err = e.records.Update(ctx, id, core.RecordUpdate{
		AudioStatus:      &status,
		AudioGeneratedAt: &now,
		AudioError:       &cleared,
		QCStatus:         &qcStatus,
		QCCheckedAt:      &now,
		QCNotes:          &notes,
	})
	if err != nil {
		return fmt.Errorf("failed to record replacement for '%s': %w", id, err)
	}

	err = e.records.IncrementReplacements(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to increment replacement counter for '%s': %w", id, err)
	}

	e.log.Info("QC replaced audio for %s (%d bytes)", id, len(audio))

	return nil
}

// ListPending returns the review queue: high-condition records with
// generated audio still pending or flagged needs-fix, newest generation
// first, each annotated with a short-lived signed URL.
func (e *Engine) ListPending(ctx context.Context) ([]Entry, error) {
	queue, err := e.records.ListQCQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list review queue: %w", err)
	}

	entries := make([]Entry, 0, len(queue))

	for _, participant := range queue {
		entry := Entry{Participant: participant, URL: ""}

		url, signErr := e.signer.Sign(participant.AudioPath, SignedURLTTL)
		if signErr != nil {
			e.log.Error("Failed to sign review URL for %s: %v", participant.ID, signErr)
		} else {
			entry.URL = url
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// reviewable loads the record and checks the QC preconditions shared by
// every action.
func (e *Engine) reviewable(ctx context.Context, id string) (*core.Participant, error) {
	participant, err := e.records.Get(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.ErrNotFound
		}

		return nil, fmt.Errorf("failed to load record '%s': %w", id, err)
	}

	if participant.Condition != core.ConditionHigh {
		return nil, fmt.Errorf("%w: %s", ErrNotHighCondition, id)
	}

	if participant.AudioStatus != core.AudioGenerated {
		return nil, fmt.Errorf("%w: %s", ErrAudioNotGenerated, id)
	}

	return participant, nil
}
