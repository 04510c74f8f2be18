package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/audiopanel/adstudy/internal/core"
	"github.com/audiopanel/adstudy/internal/delivery"
)

// handleScales returns the active survey scales in presentation order.
func (rt *Router) handleScales(w http.ResponseWriter, _ *http.Request) {
	scales := delivery.ActiveScales(delivery.StudyScales())

	payload := make([]map[string]any, 0, len(scales))
	for _, scale := range scales {
		items := make([]map[string]string, 0, len(scale.Items))
		for _, item := range scale.ActiveItems() {
			items = append(items, map[string]string{
				"id":   item.ID,
				"stem": item.Stem,
			})
		}

		payload = append(payload, map[string]any{
			"id":    scale.ID,
			"title": scale.Title,
			"items": items,
		})
	}

	rt.writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"rating_min": delivery.RatingMin,
		"rating_max": delivery.RatingMax,
		"scales":     payload,
	})
}

type submitResponsesRequest struct {
	ParticipantID string         `json:"participant_id"`
	Answers       map[string]int `json:"answers"`
}

// handleSubmitResponses stores a completed T1 survey. The response row is
// written before the participant's T1 stamp so a stamp never exists without
// its answers.
func (rt *Router) handleSubmitResponses(w http.ResponseWriter, r *http.Request) {
	var req submitResponsesRequest

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

	if len(req.Answers) == 0 {
		rt.writeError(w, http.StatusBadRequest, "answers required")

		return
	}

	err = validateAnswers(req.Answers)
	if err != nil {
		rt.writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	_, err = rt.records.Get(r.Context(), participantID)
	if errors.Is(err, core.ErrNotFound) {
		rt.writeError(w, http.StatusNotFound, "participant not found")

		return
	}

	if err != nil {
		rt.log.Error("Failed to load participant %s: %v", participantID, err)
		rt.writeError(w, http.StatusInternalServerError, "failed to load participant")

		return
	}

	completedAt := rt.now()
	response := &core.SurveyResponse{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		Answers:       req.Answers,
		CompletedAt:   completedAt,
	}

	err = rt.records.AppendResponse(r.Context(), response)
	if err != nil {
		rt.log.Error("Failed to store response for %s: %v", participantID, err)
		rt.writeError(w, http.StatusInternalServerError, "failed to store response")

		return
	}

	err = rt.records.StampT1(r.Context(), participantID, completedAt)
	if err != nil {
		rt.log.Error("Failed to stamp T1 for %s: %v", participantID, err)
		rt.writeError(w, http.StatusInternalServerError, "failed to record completion")

		return
	}

	rt.log.Info("T1 survey stored: participant=%s answers=%d", participantID, len(req.Answers))
	rt.writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"response_id": response.ID,
	})
}

// validateAnswers rejects ratings outside the Likert range and unknown
// item identifiers.
func validateAnswers(answers map[string]int) error {
	known := make(map[string]bool)

	for _, scale := range delivery.ActiveScales(delivery.StudyScales()) {
		for _, item := range scale.ActiveItems() {
			known[item.ID] = true
		}
	}

	for itemID, rating := range answers {
		if !known[itemID] {
			return fmt.Errorf("%w: %s", delivery.ErrUnknownItem, itemID)
		}

		if rating < delivery.RatingMin || rating > delivery.RatingMax {
			return fmt.Errorf("%w: %s=%d", delivery.ErrRatingOutOfRange, itemID, rating)
		}
	}

	return nil
}
