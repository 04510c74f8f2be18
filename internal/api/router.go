// Package api exposes the platform's HTTP surface: the T0/T1 participant
// endpoints, the QC dashboard endpoints, signed media delivery, and the
// admin batch trigger.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/book-expert/logger"

	"github.com/audiopanel/adstudy/internal/core"
	"github.com/audiopanel/adstudy/internal/lifecycle"
	"github.com/audiopanel/adstudy/internal/qc"
	"github.com/audiopanel/adstudy/internal/signing"
)

// Router wires the engines and collaborators into HTTP handlers.
type Router struct {
	records    core.RecordStore
	blobs      core.BlobStore
	qcEngine   *qc.Engine
	batch      *lifecycle.Engine
	signer     *signing.Signer
	log        *logger.Logger
	adminToken string
	urlTTL     time.Duration
	now        func() time.Time
}

// Deps carries the Router's constructor dependencies.
type Deps struct {
	Records    core.RecordStore
	Blobs      core.BlobStore
	QCEngine   *qc.Engine
	Batch      *lifecycle.Engine
	Signer     *signing.Signer
	Log        *logger.Logger
	AdminToken string
	URLTTL     time.Duration
}

// NewRouter creates a Router over the given dependencies.
func NewRouter(deps Deps) *Router {
	urlTTL := deps.URLTTL
	if urlTTL <= 0 {
		urlTTL = qc.SignedURLTTL
	}

	return &Router{
		records:    deps.Records,
		blobs:      deps.Blobs,
		qcEngine:   deps.QCEngine,
		batch:      deps.Batch,
		signer:     deps.Signer,
		log:        deps.Log,
		adminToken: deps.AdminToken,
		urlTTL:     urlTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the router's time source for tests.
func (rt *Router) WithClock(now func() time.Time) *Router {
	rt.now = now

	return rt
}

// Register attaches all routes to mux.
func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/participants", rt.handleSubmitT0)
	mux.HandleFunc("GET /api/audio/status", rt.handleAudioStatus)
	mux.HandleFunc("GET /api/survey/scales", rt.handleScales)
	mux.HandleFunc("POST /api/responses", rt.handleSubmitResponses)
	mux.HandleFunc("GET /media/{key}", rt.handleMedia)

	mux.HandleFunc("GET /api/qc/list", rt.requireAdmin(rt.handleQCList))
	mux.HandleFunc("POST /api/qc/approve", rt.requireAdmin(rt.handleQCApprove))
	mux.HandleFunc("POST /api/qc/needs-fix", rt.requireAdmin(rt.handleQCNeedsFix))
	mux.HandleFunc("POST /api/qc/replace", rt.requireAdmin(rt.handleQCReplace))
	mux.HandleFunc("POST /api/admin/run-batch", rt.requireAdmin(rt.handleRunBatch))

	mux.HandleFunc("GET /health", rt.handleHealth)
}

// requireAdmin guards dashboard endpoints with the single static admin
// credential, compared in constant time.
func (rt *Router) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Admin-Token")

		if rt.adminToken == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(rt.adminToken)) != 1 {
			rt.writeError(w, http.StatusUnauthorized, "unauthorized")

			return
		}

		next(w, r)
	}
}

func (rt *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	rt.writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"name": "adstudy API",
	})
}

// writeJSON writes payload with the given status.
func (rt *Router) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		rt.log.Error("Failed to encode response: %v", err)
	}
}

// writeError writes the uniform failure envelope.
func (rt *Router) writeError(w http.ResponseWriter, status int, message string) {
	rt.writeJSON(w, status, map[string]any{"ok": false, "error": message})
}
