package api

import (
	"errors"
	"net/http"

	"github.com/ashureev/hacxweb/internal/chat"
	"github.com/ashureev/hacxweb/internal/domain"
	"github.com/ashureev/hacxweb/internal/export"
	"github.com/ashureev/hacxweb/internal/extract"
	"github.com/ashureev/hacxweb/internal/registry"
	"github.com/go-chi/chi/v5"
)

type providerView struct {
	ID           string               `json:"id"`
	DisplayName  string               `json:"display_name"`
	Models       []domain.ModelConfig `json:"models"`
	DefaultModel string               `json:"default_model"`
}

// ListProviders handles GET /api/providers.
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	list := h.registry.List()
	out := make([]providerView, 0, len(list))
	for _, p := range list {
		out = append(out, providerView{
			ID:           p.ID,
			DisplayName:  p.DisplayName,
			Models:       p.Models,
			DefaultModel: p.DefaultModel,
		})
	}
	JSON(w, http.StatusOK, map[string]interface{}{"providers": out})
}

// ProviderModels handles GET /api/providers/{id}/models.
func (h *Handler) ProviderModels(w http.ResponseWriter, r *http.Request) {
	models, def, err := h.registry.Models(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			Error(w, http.StatusNotFound, "unknown provider")
			return
		}
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"model_choices": models,
		"default_model": def,
	})
}

type connectRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
}

// Connect handles POST /api/connect. Connection failures are reported in the
// status line with 200, as the console shows them inline.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	orch, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	status, err := orch.Connect(r.Context(), req.Provider, req.APIKey, req.Model)
	if err != nil {
		key := keyFromRequest(r)
		h.logger.Info("Connect rejected", "client_id", key.ClientID, "session_id", key.SessionID, "provider", req.Provider, "error", err)
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"connected": orch.State() == chat.StateConnected,
	})
}

// Clear handles POST /api/clear.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	orch, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()
	JSON(w, http.StatusOK, orch.Clear())
}

// NewSession handles POST /api/new.
func (h *Handler) NewSession(w http.ResponseWriter, r *http.Request) {
	orch, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()
	JSON(w, http.StatusOK, orch.ResetConversation())
}

// Help handles POST /api/help.
func (h *Handler) Help(w http.ResponseWriter, r *http.Request) {
	orch, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()
	JSON(w, http.StatusOK, orch.Help())
}

// Status handles GET /api/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	orch, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	st := orch.SessionState()
	resp := map[string]interface{}{
		"state":     orch.State().String(),
		"connected": st.Connected(),
		"turns":     orch.Transcript().Len(),
	}
	if st.Provider != nil {
		resp["provider"] = st.Provider.ID
		resp["model"] = st.Model
	}
	JSON(w, http.StatusOK, resp)
}

// Transcript handles GET /api/transcript.
func (h *Handler) Transcript(w http.ResponseWriter, r *http.Request) {
	orch, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()
	JSON(w, http.StatusOK, orch.Transcript())
}

// Export handles GET /api/transcript/export?format=md|json|jsonl|yaml.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	exp, err := export.NewExporter(r.URL.Query().Get("format"))
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	_, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	conv, found := h.manager.Conversation(keyFromRequest(r))
	release()
	if !found {
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	w.Header().Set("Content-Type", exp.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(conv, exp)+`"`)
	if err := exp.Export(conv, w); err != nil {
		h.logger.Warn("Transcript export failed", "error", err, "format", exp.Extension())
	}
}

// Code handles GET /api/transcript/code.
func (h *Handler) Code(w http.ResponseWriter, r *http.Request) {
	orch, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	t := orch.Transcript()
	release()

	JSON(w, http.StatusOK, map[string]interface{}{"blocks": extract.FromTranscript(t)})
}
