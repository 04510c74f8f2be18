// Package lifecycle implements the audio generation batch over participant
// records: the shared low-condition artifact, the sequential medium/high
// loop, and the status bookkeeping for both.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/book-expert/logger"

	"github.com/audiopanel/adstudy/internal/condition"
	"github.com/audiopanel/adstudy/internal/core"
	"github.com/audiopanel/adstudy/internal/text"
)

// Tuning defaults. The delay is a cooperative throttle for the TTS
// provider's rate limit, not a retry mechanism.
const (
	DefaultBatchCap   = 50
	DefaultBatchDelay = 500 * time.Millisecond

	// maxErrorLength bounds the provider error message stored on a record.
	maxErrorLength = 500

	audioContentType = "audio/mpeg"
)

// Report carries the aggregate counts of one batch run. The run has no
// cross-record transaction; these counts are its only return contract.
type Report struct {
	LowUpdated int `json:"low_updated"`
	Generated  int `json:"generated"`
	Errored    int `json:"errored"`
}

// Engine drives audio status transitions for pending participant records.
// A record leaves pending exactly once per run: to generated on a
// successful synthesize-and-store cycle, to error otherwise. Generated and
// error records are never retried automatically, which makes repeated runs
// safe.
type Engine struct {
	records    core.RecordStore
	blobs      core.BlobStore
	tts        core.Synthesizer
	normalizer *text.Normalizer
	log        *logger.Logger

	batchCap int
	delay    time.Duration
	now      func() time.Time
	sleep    func(context.Context, time.Duration)
}

// New creates an Engine over the given collaborators.
func New(records core.RecordStore, blobs core.BlobStore, tts core.Synthesizer, log *logger.Logger) *Engine {
	return &Engine{
		records:    records,
		blobs:      blobs,
		tts:        tts,
		normalizer: text.NewNormalizer(),
		log:        log,
		batchCap:   DefaultBatchCap,
		delay:      DefaultBatchDelay,
		now:        func() time.Time { return time.Now().UTC() },
		sleep:      sleepContext,
	}
}

// WithBatchCap overrides the medium/high fetch cap.
func (e *Engine) WithBatchCap(limit int) *Engine {
	if limit > 0 {
		e.batchCap = limit
	}

	return e
}

// WithDelay overrides the pause between medium/high records.
func (e *Engine) WithDelay(delay time.Duration) *Engine {
	e.delay = delay

	return e
}

// WithClock overrides the engine's time source for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now

	return e
}

// Run executes one batch: the low-condition branch first, then the capped
// sequential medium/high branch. A failed low branch aborts the run (no low
// record is touched); a failed medium/high record is recorded on that
// record alone and processing continues.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	var report Report

	lowUpdated, err := e.runLowBranch(ctx)
	if err != nil {
		return report, err
	}

	report.LowUpdated = lowUpdated

	generated, errored, err := e.runMediumHighBranch(ctx)
	if err != nil {
		return report, err
	}

	report.Generated = generated
	report.Errored = errored

	e.log.Info("Batch run complete: %d low updated, %d generated, %d errored",
		report.LowUpdated, report.Generated, report.Errored)

	return report, nil
}

// runLowBranch ensures the shared low artifact exists, generating it at
// most once regardless of how many low participants are pending, then
// bulk-marks all pending low records. With no pending low records there is
// nothing to serve, so the branch is a no-op.
func (e *Engine) runLowBranch(ctx context.Context) (int, error) {
	pendingLow, err := e.records.ListPending(ctx, []core.Condition{core.ConditionLow}, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending low records: %w", err)
	}

	if len(pendingLow) == 0 {
		return 0, nil
	}

	exists, err := e.blobs.Exists(ctx, condition.SharedLowKey)
	if err != nil {
		return 0, fmt.Errorf("failed to check shared low artifact: %w", err)
	}

	if !exists {
		err = e.generateAndStore(ctx, core.ConditionLow, condition.SharedLowKey)
		if err != nil {
			return 0, fmt.Errorf("failed to create shared low artifact: %w", err)
		}

		e.log.Info("Generated shared low-condition artifact at %s", condition.SharedLowKey)
	}

	updated, err := e.records.MarkLowGenerated(ctx, condition.SharedLowKey, e.now())
	if err != nil {
		return 0, fmt.Errorf("failed to bulk-mark low records: %w", err)
	}

	return updated, nil
}

// runMediumHighBranch processes up to the batch cap of pending medium/high
// records sequentially, pausing between records. One record's failure never
// aborts its siblings.
func (e *Engine) runMediumHighBranch(ctx context.Context) (generated, errored int, err error) {
	pending, err := e.records.ListPending(ctx,
		[]core.Condition{core.ConditionMedium, core.ConditionHigh}, e.batchCap)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list pending records: %w", err)
	}

	for i, participant := range pending {
		if i > 0 {
			e.sleep(ctx, e.delay)
		}

		if ctx.Err() != nil {
			return generated, errored, fmt.Errorf("batch run canceled: %w", ctx.Err())
		}

		if e.processRecord(ctx, &participant) {
			generated++
		} else {
			errored++
		}
	}

	return generated, errored, nil
}

// processRecord runs one synthesize-and-store cycle and writes the outcome
// back. It reports whether the record ended in generated.
func (e *Engine) processRecord(ctx context.Context, participant *core.Participant) bool {
	key := condition.AudioKey(participant.Condition, participant.ID)

	err := e.generateAndStore(ctx, participant.Condition, key)
	if err != nil {
		e.log.Error("Audio generation failed for participant %s: %v", participant.ID, err)

		failed := core.AudioError
		message := truncateError(err)

		updateErr := e.records.Update(ctx, participant.ID, core.RecordUpdate{
			AudioStatus: &failed,
			AudioError:  &message,
		})
		if updateErr != nil {
			e.log.Error("Failed to record error state for participant %s: %v",
				participant.ID, updateErr)
		}

		return false
	}

	status := core.AudioGenerated
	generatedAt := e.now()
	cleared := ""

	updateErr := e.records.Update(ctx, participant.ID, core.RecordUpdate{
		AudioStatus:      &status,
		AudioPath:        &key,
		AudioGeneratedAt: &generatedAt,
		AudioError:       &cleared,
	})
	if updateErr != nil {
		e.log.Error("Failed to record generated state for participant %s: %v",
			participant.ID, updateErr)

		return false
	}

	return true
}

// generateAndStore synthesizes the condition's ad copy and uploads the
// audio at key.
func (e *Engine) generateAndStore(ctx context.Context, c core.Condition, key string) error {
	copyText, err := condition.Text(c)
	if err != nil {
		return err
	}

	audio, err := e.tts.Synthesize(ctx, e.normalizer.Normalize(copyText))
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}

	err = e.blobs.Upload(ctx, key, audio, audioContentType)
	if err != nil {
		return fmt.Errorf("storage failed: %w", err)
	}

	return nil
}

// truncateError bounds an error message to what the record column can
// reasonably carry.
func truncateError(err error) string {
	message := err.Error()
	if len(message) > maxErrorLength {
		return message[:maxErrorLength]
	}

	return message
}

// sleepContext pauses for d unless the context ends first.
func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
