// Package core defines the domain model and collaborator interfaces for the
// audio-ad experiment platform.
package core

import "time"

// Condition is the experimental arm a participant is assigned to at T0.
// It determines which ad copy the participant hears and is immutable after
// assignment.
type Condition string

// Experimental conditions.
const (
	ConditionLow    Condition = "low"
	ConditionMedium Condition = "medium"
	ConditionHigh   Condition = "high"
)

// Valid reports whether c is one of the three known conditions.
func (c Condition) Valid() bool {
	switch c {
	case ConditionLow, ConditionMedium, ConditionHigh:
		return true
	default:
		return false
	}
}

// AudioStatus is the lifecycle state of a participant's ad audio.
type AudioStatus string

// Audio lifecycle states. A record leaves Pending only through a batch run;
// Generated and Error are never retried automatically.
const (
	AudioPending   AudioStatus = "pending"
	AudioGenerated AudioStatus = "generated"
	AudioError     AudioStatus = "error"
)

// QCStatus is the manual review state gating high-condition audio.
type QCStatus string

// QC review states. Only meaningful for high-condition records.
const (
	QCPending  QCStatus = "pending"
	QCApproved QCStatus = "approved"
	QCNeedsFix QCStatus = "needs_fix"
)

// Participant is one record per unique external participant identifier.
// The identifier is the natural key and is never reused.
type Participant struct {
	ID        string
	Condition Condition
	CreatedAt time.Time

	AudioStatus      AudioStatus
	AudioPath        string
	AudioError       string
	AudioGeneratedAt *time.Time

	QCStatus       QCStatus
	QCCheckedAt    *time.Time
	QCNotes        string
	QCReplacements int

	T0CompletedAt *time.Time
	T1CompletedAt *time.Time
}

// Servable reports whether the participant's audio may be played to them:
// audio must be generated, and high-condition audio must additionally have
// passed QC review.
func (p *Participant) Servable() bool {
	if p.AudioStatus != AudioGenerated {
		return false
	}

	if p.Condition == ConditionHigh && p.QCStatus != QCApproved {
		return false
	}

	return true
}

// SurveyResponse is one append-only T1 submission. Multiple submissions per
// participant are allowed; the log is never updated in place.
type SurveyResponse struct {
	ID            string
	ParticipantID string
	Answers       map[string]int
	CompletedAt   time.Time
}
