package core

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates that no participant record exists for the requested
// identifier. Callers branch on it, so it is a distinct outcome rather than
// a generic store failure.
var ErrNotFound = errors.New("participant not found")

// RecordUpdate is a partial update to a participant record. Nil fields are
// left untouched.
type RecordUpdate struct {
	AudioStatus      *AudioStatus
	AudioPath        *string
	AudioError       *string
	AudioGeneratedAt *time.Time
	QCStatus         *QCStatus
	QCCheckedAt      *time.Time
	QCNotes          *string
}

// RecordStore persists participant records and the append-only survey
// response log. Implementations must treat the participant identifier as
// the natural key.
type RecordStore interface {
	// Get returns the record for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Participant, error)

	// UpsertT0 creates the record for id or, on resubmission, overwrites
	// condition and the T0 completion stamp. Audio and QC fields of an
	// existing record are preserved.
	UpsertT0(ctx context.Context, id string, condition Condition, completedAt time.Time) error

	// Update applies a partial update to an existing record.
	Update(ctx context.Context, id string, upd RecordUpdate) error

	// ListPending returns records in AudioPending for the given conditions,
	// capped at limit. Fetch order is unspecified; the cap is applied by the
	// store, before processing.
	ListPending(ctx context.Context, conditions []Condition, limit int) ([]Participant, error)

	// MarkLowGenerated flips every pending low-condition record to
	// AudioGenerated in one bulk operation, stamping the shared path and
	// timestamp and clearing any stale error. It returns the number of
	// records updated.
	MarkLowGenerated(ctx context.Context, path string, generatedAt time.Time) (int, error)

	// ListQCQueue returns high-condition records with generated audio whose
	// QC status is pending or needs_fix, newest generation first.
	ListQCQueue(ctx context.Context) ([]Participant, error)

	// IncrementReplacements atomically adds one to the QC replacement
	// counter for id.
	IncrementReplacements(ctx context.Context, id string) error

	// AppendResponse appends one survey response to the log. Responses are
	// never updated or deleted.
	AppendResponse(ctx context.Context, resp *SurveyResponse) error

	// ListResponses returns all responses recorded for id, oldest first.
	ListResponses(ctx context.Context, id string) ([]SurveyResponse, error)

	// StampT1 sets the T1 completion timestamp for id. Called only after the
	// response payload has been durably recorded.
	StampT1(ctx context.Context, id string, completedAt time.Time) error
}

// BlobStore is the audio artifact store. Upload overwrites, so replacing
// audio at a stable key leaves previously issued URLs pointing at the new
// content.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
	Download(ctx context.Context, key string) ([]byte, error)
}

// Synthesizer converts ad copy into audio bytes. It wraps the external TTS
// provider and is expected to enforce its own request timeout.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// URLSigner mints short-lived capability URLs for stored audio.
type URLSigner interface {
	Sign(key string, ttl time.Duration) (string, error)
}
