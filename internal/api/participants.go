package api

import (
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"strings"

	"github.com/audiopanel/adstudy/internal/core"
)

// Audio readiness causes reported by GET /api/audio/status.
const (
	StatusNotFound    = "not_found"
	StatusGenerating  = "generating"
	StatusUnderReview = "under_review"
	StatusUnavailable = "unavailable"
	StatusReady       = "ready"
)

type submitT0Request struct {
	ParticipantID string `json:"participant_id"`
	Condition     string `json:"condition"`
}

// handleSubmitT0 creates or updates a participant record at the end of the
// first session. Resubmission overwrites the condition and T0 timestamp but
// leaves any audio and QC progress in place.
func (rt *Router) handleSubmitT0(w http.ResponseWriter, r *http.Request) {
	var req submitT0Request

	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		rt.writeError(w, http.StatusBadRequest, "invalid JSON body")

		return
	}

	participantID := strings.TrimSpace(req.ParticipantID)
	if participantID == "" {
		rt.writeError(w, http.StatusBadRequest, "participant_id required")

		return
	}

	cond := core.Condition(req.Condition)
	if req.Condition == "" {
		cond = randomCondition()
	} else if !cond.Valid() {
		rt.writeError(w, http.StatusBadRequest, "unknown condition: "+req.Condition)

		return
	}

	err = rt.records.UpsertT0(r.Context(), participantID, cond, rt.now())
	if err != nil {
		rt.log.Error("Failed to upsert participant %s: %v", participantID, err)
		rt.writeError(w, http.StatusInternalServerError, "failed to save participant")

		return
	}

	rt.log.Info("T0 submission recorded: participant=%s condition=%s", participantID, cond)
	rt.writeJSON(w, http.StatusOK, map[string]any{
		"ok":             true,
		"participant_id": participantID,
		"condition":      cond,
	})
}

// handleAudioStatus reports whether a participant's stimulus is servable,
// distinguishing the reasons it is not.
func (rt *Router) handleAudioStatus(w http.ResponseWriter, r *http.Request) {
	participantID := strings.TrimSpace(r.URL.Query().Get("pid"))
	if participantID == "" {
		rt.writeError(w, http.StatusBadRequest, "pid required")

		return
	}

	record, err := rt.records.Get(r.Context(), participantID)
	if errors.Is(err, core.ErrNotFound) {
		rt.writeJSON(w, http.StatusNotFound, map[string]any{
			"ok":     false,
			"status": StatusNotFound,
			"error":  "participant not found",
		})

		return
	}

	if err != nil {
		rt.log.Error("Failed to load participant %s: %v", participantID, err)
		rt.writeError(w, http.StatusInternalServerError, "failed to load participant")

		return
	}

	status := readinessOf(record)
	if status != StatusReady {
		rt.writeJSON(w, http.StatusOK, map[string]any{
			"ok":     true,
			"status": status,
			"ready":  false,
		})

		return
	}

	signedURL, err := rt.signer.Sign(record.AudioPath, rt.urlTTL)
	if err != nil {
		rt.log.Error("Failed to sign URL for %s: %v", record.AudioPath, err)
		rt.writeError(w, http.StatusInternalServerError, "failed to sign audio URL")

		return
	}

	rt.writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"status": StatusReady,
		"ready":  true,
		"url":    signedURL,
	})
}

// readinessOf maps a record onto one readiness cause. Ready means the
// servability rule holds; the other causes tell the survey client what to
// show while it waits.
func readinessOf(record *core.Participant) string {
	if record.Servable() {
		return StatusReady
	}

	switch record.AudioStatus {
	case core.AudioPending:
		return StatusGenerating
	case core.AudioError:
		return StatusUnavailable
	case core.AudioGenerated:
		return StatusUnderReview
	default:
		return StatusUnavailable
	}
}

func randomCondition() core.Condition {
	arms := []core.Condition{
		core.ConditionLow,
		core.ConditionMedium,
		core.ConditionHigh,
	}

	return arms[rand.Intn(len(arms))]
}
