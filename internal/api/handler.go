// Package api provides HTTP handlers for the console UI.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/hacxweb/internal/chat"
	"github.com/ashureev/hacxweb/internal/identity"
	"github.com/ashureev/hacxweb/internal/registry"
	"github.com/ashureev/hacxweb/internal/store"
	"github.com/go-chi/chi/v5"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (64KB).
const defaultMaxRequestBodySize = 64 << 10

// Options configure a Handler.
type Options struct {
	MaxRequestBodySize int64
	KeepaliveInterval  time.Duration
	RateLimit          int
	RateWindow         time.Duration
	AllowedOrigins     []string
	IsDev              bool
	Logger             *slog.Logger
}

// Handler serves the console API for every client and tab.
type Handler struct {
	manager     *chat.Manager
	registry    *registry.Registry
	repo        store.Repository
	rateLimiter *RateLimiter
	opts        Options
	logger      *slog.Logger
}

// NewHandler creates a Handler. repo is only used for readiness checks and
// may be nil.
func NewHandler(manager *chat.Manager, reg *registry.Registry, repo store.Repository, opts Options) *Handler {
	if opts.MaxRequestBodySize <= 0 {
		opts.MaxRequestBodySize = defaultMaxRequestBodySize
	}
	if opts.KeepaliveInterval <= 0 {
		opts.KeepaliveInterval = 15 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 30
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		manager:     manager,
		registry:    reg,
		repo:        repo,
		rateLimiter: NewRateLimiter(opts.RateLimit, opts.RateWindow),
		opts:        opts,
		logger:      logger,
	}
}

// RegisterRoutes registers the console routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/providers", h.ListProviders)
		r.Get("/providers/{id}/models", h.ProviderModels)
		r.Post("/connect", h.Connect)
		r.Post("/chat", h.Chat)
		r.Post("/clear", h.Clear)
		r.Post("/new", h.NewSession)
		r.Post("/help", h.Help)
		r.Get("/status", h.Status)
		r.Get("/transcript", h.Transcript)
		r.Get("/transcript/export", h.Export)
		r.Get("/transcript/code", h.Code)
	})
	r.Get("/ws/chat", h.ChatSocket)
}

// Close releases handler resources.
func (h *Handler) Close() {
	h.rateLimiter.Stop()
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func keyFromRequest(r *http.Request) chat.Key {
	return chat.Key{
		ClientID:  identity.ClientIDFromContext(r.Context()),
		SessionID: identity.SessionIDFromContext(r.Context()),
	}
}

// acquire locks the caller's orchestrator. On failure the response has been
// written and ok is false.
func (h *Handler) acquire(w http.ResponseWriter, r *http.Request) (*chat.Orchestrator, func(), bool) {
	key := keyFromRequest(r)
	orch, release, err := h.manager.Acquire(r.Context(), key)
	if err != nil {
		var verr *chat.ValidationError
		switch {
		case errors.Is(err, chat.ErrBusy):
			h.logger.Warn("Session busy", "client_id", key.ClientID, "session_id", key.SessionID)
			Error(w, http.StatusConflict, "session_busy")
		case errors.As(err, &verr):
			Error(w, http.StatusUnauthorized, "missing client identity")
		default:
			h.logger.Error("Failed to acquire session", "error", err, "client_id", key.ClientID)
			Error(w, http.StatusInternalServerError, "failed to load session")
		}
		return nil, nil, false
	}
	return orch, release, true
}

// decodeBody reads a size-limited JSON body into v. On failure the response
// has been written and false is returned.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// Health reports readiness, including the transcript store.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "ok",
		"providers": len(h.registry.IDs()),
		"sessions":  h.manager.Len(),
	}
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			h.logger.Error("Health check: database ping failed", "error", err)
			status["status"] = "degraded"
			status["database"] = "unreachable"
			JSON(w, http.StatusServiceUnavailable, status)
			return
		}
		status["database"] = "ok"
	}
	JSON(w, http.StatusOK, status)
}
