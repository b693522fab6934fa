// Package httpapi serves studio sessions over HTTP for browser clients.
//
// Each browser tab creates a session with POST /api/sessions and addresses
// it by the returned id. Sessions are held in memory and evicted when idle.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ironsheep/photo-edit-mcp/internal/imaging"
	"github.com/ironsheep/photo-edit-mcp/internal/storage"
	"github.com/ironsheep/photo-edit-mcp/internal/studio"
)

// DefaultMaxUploadBytes caps a single uploaded file when Options leaves it 0.
const DefaultMaxUploadBytes = 10 * 1024 * 1024

// Options configures a Handler.
type Options struct {
	MaxUploadBytes int64
}

type Handler struct {
	store      *storage.SessionStore
	newSession func() *studio.Session
	maxUpload  int64
}

// New returns a Handler that creates sessions with newSession.
func New(newSession func() *studio.Session, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{
		store:      storage.New(),
		newSession: newSession,
		maxUpload:  opts.MaxUploadBytes,
	}
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/prompts", h.HandlePrompts)
		r.Post("/sessions", h.HandleCreateSession)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetSession)
			r.Delete("/", h.HandleDeleteSession)
			r.Post("/images", h.HandleUpload)
			r.Put("/active", h.HandleSelect)
			r.Put("/adjustments", h.HandleSetAdjustments)
			r.Delete("/adjustments", h.HandleResetAdjustments)
			r.Put("/consistency", h.HandleSetConsistency)
			r.Post("/edit", h.HandleEdit)
			r.Post("/background-removal", h.HandleRemoveBackground)
			r.Delete("/error", h.HandleClearError)
			r.Get("/images/{index}/{variant}", h.HandleDownload)
			r.Post("/images/{index}/{variant}/crop", h.HandleCrop)
		})
	})

	return r
}

// RunJanitor evicts sessions idle for longer than ttl, checking every
// interval, until ctx is done.
func (h *Handler) RunJanitor(ctx context.Context, ttl, interval time.Duration) {
	if interval <= 0 {
		interval = ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := h.store.EvictIdle(ttl); n > 0 {
				slog.Info("Evicted idle sessions", "count", n, "remaining", h.store.Len())
			}
		}
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message)
	} else {
		slog.Debug(message, "status", code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		slog.Error("Unable to encode error response", "err", err)
	}
}

// writeStudioError maps session errors to status codes.
func (h *Handler) writeStudioError(w http.ResponseWriter, err error) {
	var reqErr *studio.RequestError
	switch {
	case errors.Is(err, studio.ErrNoImage), errors.Is(err, studio.ErrPromptRequired),
		errors.Is(err, imaging.ErrDecode):
		h.writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, studio.ErrIndexOutOfRange), errors.Is(err, studio.ErrNoOutput):
		h.writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, studio.ErrRequestInFlight), errors.Is(err, studio.ErrStaleResult),
		errors.Is(err, studio.ErrNoCrop):
		h.writeError(w, err.Error(), http.StatusConflict)
	case errors.As(err, &reqErr):
		h.writeError(w, reqErr.Message, http.StatusBadGateway)
	default:
		h.writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, r *http.Request) (*studio.Session, bool) {
	session, exists := h.store.Get(chi.URLParam(r, "id"))
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
