package delivery

import (
	"errors"
	"fmt"
	"time"
)

// State names the phases of one survey visit.
type State string

// Visit states. Complete and Error are terminal for the visit; no event
// leaves them.
const (
	StateLoading    State = "loading"
	StateAudio      State = "audio"
	StateSurvey     State = "survey"
	StateSubmitting State = "submitting"
	StateComplete   State = "complete"
	StateError      State = "error"
)

// MinExposureSeconds is the playback time after which the audio gate opens
// even without a playback-ended signal.
const MinExposureSeconds = 2

// Static errors.
var (
	// ErrWrongState indicates an event that is not legal in the current
	// state.
	ErrWrongState = errors.New("event not allowed in current state")
	// ErrAudioGateClosed indicates an advance attempt before the minimum
	// ad exposure.
	ErrAudioGateClosed = errors.New("audio exposure gate not satisfied")
	// ErrScaleIncomplete indicates an advance attempt with unanswered
	// active items on the current scale.
	ErrScaleIncomplete = errors.New("current scale has unanswered items")
	// ErrRatingOutOfRange indicates an answer outside the 1-7 rating band.
	ErrRatingOutOfRange = errors.New("rating must be between 1 and 7")
	// ErrUnknownItem indicates an answer for an item not on the current
	// scale.
	ErrUnknownItem = errors.New("item is not on the current scale")
)

// FSM is the survey visit state machine. Every externally visible event is
// one mutation method, so all transitions are enumerable and testable. It
// is not safe for concurrent use; one visit belongs to one participant.
type FSM struct {
	state      State
	cause      string
	audioURL   string
	scales     []Scale
	scaleIndex int
	gateOpen   bool
	answers    map[string]int
	startedAt  time.Time
}

// NewFSM creates a visit in the loading state over the given scale
// sequence. Scales with zero active items are filtered out before
// numbering.
func NewFSM(scales []Scale) *FSM {
	return &FSM{
		state:     StateLoading,
		scales:    ActiveScales(scales),
		answers:   map[string]int{},
		startedAt: time.Now().UTC(),
	}
}

// State returns the current visit state.
func (f *FSM) State() State { return f.state }

// Cause returns the human-readable reason for the error state, empty
// otherwise.
func (f *FSM) Cause() string { return f.cause }

// AudioURL returns the signed URL attached when the visit reached the
// audio state.
func (f *FSM) AudioURL() string { return f.audioURL }

// ScaleIndex returns the zero-based index of the current scale. Only
// meaningful in the survey state.
func (f *FSM) ScaleIndex() int { return f.scaleIndex }

// ScaleCount returns the number of scales in the visit's step sequence.
func (f *FSM) ScaleCount() int { return len(f.scales) }

// CurrentScale returns the scale being answered, or nil outside the survey
// state.
func (f *FSM) CurrentScale() *Scale {
	if f.state != StateSurvey || f.scaleIndex >= len(f.scales) {
		return nil
	}

	return &f.scales[f.scaleIndex]
}

// Answers returns the accumulated answer payload.
func (f *FSM) Answers() map[string]int {
	out := make(map[string]int, len(f.answers))
	for k, v := range f.answers {
		out[k] = v
	}

	return out
}

// AudioReady moves the visit from loading to audio with the signed URL
// attached.
func (f *FSM) AudioReady(url string) error {
	if f.state != StateLoading {
		return fmt.Errorf("%w: AudioReady in %s", ErrWrongState, f.state)
	}

	f.state = StateAudio
	f.audioURL = url

	return nil
}

// AudioUnavailable moves the visit from loading to the terminal error
// state, carrying the specific cause (still generating, under review,
// unknown participant, ...).
func (f *FSM) AudioUnavailable(cause string) error {
	if f.state != StateLoading {
		return fmt.Errorf("%w: AudioUnavailable in %s", ErrWrongState, f.state)
	}

	f.fail(cause)

	return nil
}

// PlaybackProgress reports elapsed playback seconds. Reaching the minimum
// exposure opens the gate; the gate is a one-way latch and never re-locks,
// even if playback is paused or restarted afterwards.
func (f *FSM) PlaybackProgress(seconds float64) error {
	if f.state != StateAudio {
		return fmt.Errorf("%w: PlaybackProgress in %s", ErrWrongState, f.state)
	}

	if seconds >= MinExposureSeconds {
		f.gateOpen = true
	}

	return nil
}

// PlaybackEnded reports the playback-ended signal, which opens the gate
// regardless of elapsed time.
func (f *FSM) PlaybackEnded() error {
	if f.state != StateAudio {
		return fmt.Errorf("%w: PlaybackEnded in %s", ErrWrongState, f.state)
	}

	f.gateOpen = true

	return nil
}

// Answer records a rating for an active item on the current scale.
func (f *FSM) Answer(itemID string, rating int) error {
	if f.state != StateSurvey {
		return fmt.Errorf("%w: Answer in %s", ErrWrongState, f.state)
	}

	if rating < RatingMin || rating > RatingMax {
		return fmt.Errorf("%w: got %d", ErrRatingOutOfRange, rating)
	}

	for _, item := range f.scales[f.scaleIndex].ActiveItems() {
		if item.ID == itemID {
			f.answers[itemID] = rating

			return nil
		}
	}

	return fmt.Errorf("%w: %q", ErrUnknownItem, itemID)
}

// Advance moves the visit forward one step: audio to the first scale once
// the exposure gate is open, scale i to scale i+1 once every active item
// is answered, and the last scale to submitting.
func (f *FSM) Advance() error {
	switch f.state {
	case StateAudio:
		if !f.gateOpen {
			return ErrAudioGateClosed
		}

		if len(f.scales) == 0 {
			f.state = StateSubmitting

			return nil
		}

		f.state = StateSurvey
		f.scaleIndex = 0

		return nil

	case StateSurvey:
		if missing := f.unanswered(); missing > 0 {
			return fmt.Errorf("%w: %d remaining", ErrScaleIncomplete, missing)
		}

		if f.scaleIndex+1 < len(f.scales) {
			f.scaleIndex++

			return nil
		}

		f.state = StateSubmitting

		return nil

	default:
		return fmt.Errorf("%w: Advance in %s", ErrWrongState, f.state)
	}
}

// SubmitResult reports the outcome of the submission request. Success ends
// the visit in complete; failure ends it in error with no automatic retry.
func (f *FSM) SubmitResult(err error) error {
	if f.state != StateSubmitting {
		return fmt.Errorf("%w: SubmitResult in %s", ErrWrongState, f.state)
	}

	if err != nil {
		f.fail(err.Error())

		return nil
	}

	f.state = StateComplete

	return nil
}

func (f *FSM) unanswered() int {
	missing := 0

	for _, item := range f.scales[f.scaleIndex].ActiveItems() {
		if _, ok := f.answers[item.ID]; !ok {
			missing++
		}
	}

	return missing
}

func (f *FSM) fail(cause string) {
	f.state = StateError
	f.cause = cause
}
