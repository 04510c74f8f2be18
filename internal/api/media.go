package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/audiopanel/adstudy/internal/signing"
)

const fallbackMediaType = "audio/mpeg"

// contentTyper is implemented by blob stores that record an object's
// original content type.
type contentTyper interface {
	ContentType(ctx context.Context, key string) (string, error)
}

// handleMedia streams a stored audio object. The capability token in the
// query string must be valid, unexpired, and minted for this exact key.
func (rt *Router) handleMedia(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.PathValue("key"))
	if key == "" {
		rt.writeError(w, http.StatusBadRequest, "media key required")

		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		rt.writeError(w, http.StatusUnauthorized, "token required")

		return
	}

	err := rt.signer.Verify(key, token)
	if err != nil {
		if errors.Is(err, signing.ErrInvalidToken) ||
			errors.Is(err, signing.ErrKeyMismatch) {
			rt.writeError(w, http.StatusForbidden, "invalid or expired token")

			return
		}

		rt.log.Error("Token verification failed for %s: %v", key, err)
		rt.writeError(w, http.StatusInternalServerError, "token verification failed")

		return
	}

	data, err := rt.blobs.Download(r.Context(), key)
	if err != nil {
		rt.log.Error("Failed to download %s: %v", key, err)
		rt.writeError(w, http.StatusNotFound, "audio not found")

		return
	}

	w.Header().Set("Content-Type", rt.mediaType(r.Context(), key))
	w.Header().Set("Cache-Control", "private, max-age=0")
	w.WriteHeader(http.StatusOK)

	_, err = w.Write(data)
	if err != nil {
		rt.log.Error("Failed to stream %s: %v", key, err)
	}
}

// mediaType asks the blob store for the stored content type when it keeps
// one, and falls back to audio/mpeg otherwise.
func (rt *Router) mediaType(ctx context.Context, key string) string {
	typed, ok := rt.blobs.(contentTyper)
	if !ok {
		return fallbackMediaType
	}

	contentType, err := typed.ContentType(ctx, key)
	if err != nil || contentType == "" {
		return fallbackMediaType
	}

	return contentType
}

// handleRunBatch triggers a synchronous generation pass and returns its
// report.
func (rt *Router) handleRunBatch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	report, err := rt.batch.Run(ctx)
	if err != nil {
		rt.log.Error("Batch run failed: %v", err)
		rt.writeError(w, http.StatusInternalServerError, "batch run failed")

		return
	}

	rt.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "report": report})
}
