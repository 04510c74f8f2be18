package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/audiopanel/adstudy/internal/core"
	"github.com/audiopanel/adstudy/internal/qc"
)

// maxReplacementUploadBytes bounds a replacement audio upload.
const maxReplacementUploadBytes = 32 << 20

type qcReviewRequest struct {
	ParticipantID string `json:"participant_id"`
	Notes         string `json:"notes"`
}

// handleQCList returns the high-condition review queue, newest first, with
// a signed preview URL per entry.
func (rt *Router) handleQCList(w http.ResponseWriter, r *http.Request) {
	entries, err := rt.qcEngine.ListPending(r.Context())
	if err != nil {
		rt.log.Error("Failed to list QC queue: %v", err)
		rt.writeError(w, http.StatusInternalServerError, "failed to list review queue")

		return
	}

	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		items = append(items, map[string]any{
			"participant_id": entry.Participant.ID,
			"generated_at":   entry.Participant.AudioGeneratedAt,
			"qc_status":      entry.Participant.QCStatus,
			"notes":          entry.Participant.QCNotes,
			"replacements":   entry.Participant.QCReplacements,
			"url":            entry.URL,
		})
	}

	rt.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "items": items})
}

func (rt *Router) handleQCApprove(w http.ResponseWriter, r *http.Request) {
	rt.handleReview(w, r, rt.qcEngine.Approve)
}

func (rt *Router) handleQCNeedsFix(w http.ResponseWriter, r *http.Request) {
	rt.handleReview(w, r, rt.qcEngine.MarkNeedsFix)
}

// handleReview decodes a review request and applies verdict to it.
func (rt *Router) handleReview(
	w http.ResponseWriter,
	r *http.Request,
	verdict func(ctx context.Context, id, notes string) error,
) {
	var req qcReviewRequest

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

	err = verdict(r.Context(), participantID, req.Notes)
	if err != nil {
		rt.writeReviewError(w, participantID, err)

		return
	}

	rt.writeJSON(w, http.StatusOK, map[string]any{
		"ok":             true,
		"participant_id": participantID,
	})
}

// handleQCReplace accepts a multipart upload and swaps the participant's
// stimulus for the uploaded audio.
func (rt *Router) handleQCReplace(w http.ResponseWriter, r *http.Request) {
	err := r.ParseMultipartForm(maxReplacementUploadBytes)
	if err != nil {
		rt.writeError(w, http.StatusBadRequest, "invalid multipart form")

		return
	}

	participantID := strings.TrimSpace(r.FormValue("participant_id"))
	if participantID == "" {
		rt.writeError(w, http.StatusBadRequest, "participant_id required")

		return
	}

	file, _, err := r.FormFile("audio")
	if err != nil {
		rt.writeError(w, http.StatusBadRequest, "audio file required")

		return
	}
	defer func() { _ = file.Close() }()

	audio, err := io.ReadAll(io.LimitReader(file, maxReplacementUploadBytes))
	if err != nil {
		rt.writeError(w, http.StatusBadRequest, "failed to read audio upload")

		return
	}

	err = rt.qcEngine.Replace(r.Context(), participantID, audio, r.FormValue("notes"))
	if err != nil {
		rt.writeReviewError(w, participantID, err)

		return
	}

	rt.writeJSON(w, http.StatusOK, map[string]any{
		"ok":             true,
		"participant_id": participantID,
	})
}

// writeReviewError maps engine precondition failures to client errors.
func (rt *Router) writeReviewError(w http.ResponseWriter, participantID string, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		rt.writeError(w, http.StatusNotFound, "participant not found")
	case errors.Is(err, qc.ErrNotHighCondition),
		errors.Is(err, qc.ErrAudioNotGenerated),
		errors.Is(err, qc.ErrEmptyAudio):
		rt.writeError(w, http.StatusConflict, err.Error())
	default:
		rt.log.Error("QC operation failed for %s: %v", participantID, err)
		rt.writeError(w, http.StatusInternalServerError, "review operation failed")
	}
}
