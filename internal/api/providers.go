package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/tiwaz/internal/models"
)

// ListProviders handles GET /api/providers.
//
//	@Summary		List configured model providers with redacted credentials
//	@Tags			providers
//	@Produce		json
//	@Success		200	{object}	ProviderListResponse
//	@Security		BearerAuth
//	@Router			/providers [get]
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	configs := h.svc.Providers()
	out := make([]models.ProviderConfig, len(configs))
	for i, cfg := range configs {
		out[i] = cfg.Redacted()
	}
	writeJSON(w, http.StatusOK, ProviderListResponse{Providers: out})
}

// GetProvider handles GET /api/providers/{id}.
//
//	@Summary		Get one provider with redacted credentials
//	@Tags			providers
//	@Produce		json
//	@Param			id	path		string	true	"Provider id"
//	@Success		200	{object}	models.ProviderConfig
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/providers/{id} [get]
func (h *Handler) GetProvider(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.GetProvider(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg.Redacted())
}

// AddProvider handles POST /api/providers.
//
//	@Summary		Register a model provider
//	@Tags			providers
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.ProviderConfig	true	"Provider to register"
//	@Success		201		{object}	models.ProviderConfig
//	@Failure		400		{object}	ValidationResponse
//	@Security		BearerAuth
//	@Router			/providers [post]
func (h *Handler) AddProvider(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var cfg models.ProviderConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	stored, err := h.svc.AddProvider(cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored.Redacted())
}

// RemoveProvider handles DELETE /api/providers/{id}.
//
//	@Summary		Remove a provider
//	@Tags			providers
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/providers/{id} [delete]
func (h *Handler) RemoveProvider(w http.ResponseWriter, r *http.Request) {
	if !h.svc.RemoveProvider(chi.URLParam(r, "id")) {
		writeJSON(w, http.StatusNotFound, errorBody("provider not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetDefaultProvider handles PUT /api/providers/{id}/default.
//
//	@Summary		Mark a provider as the default for queries
//	@Tags			providers
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/providers/{id}/default [put]
func (h *Handler) SetDefaultProvider(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SetDefaultProvider(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TestProvider handles POST /api/providers/{id}/test.
//
//	@Summary		Probe a provider for reachability
//	@Tags			providers
//	@Produce		json
//	@Param			id	path		string	true	"Provider id"
//	@Success		200	{object}	map[string]string
//	@Failure		404	{object}	errResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/providers/{id}/test [post]
func (h *Handler) TestProvider(w http.ResponseWriter, r *http.Request) {
	err := h.svc.ProbeProvider(r.Context(), chi.URLParam(r, "id"))
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	if isNotFound(err) {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusBadGateway, errorBody(err.Error()))
}
