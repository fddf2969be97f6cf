package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/tiwaz/internal/models"
	"github.com/starford/tiwaz/internal/practice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *practice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *practice.Service) *Handler {
	return &Handler{svc: svc}
}

func recordKind(r *http.Request) models.Kind {
	return models.Kind(chi.URLParam(r, "kind"))
}

// ListRecords handles GET /api/records/{kind}.
//
//	@Summary		List records of one kind with optional filtering
//	@Tags			records
//	@Produce		json
//	@Param			kind	path		string	true	"Record kind"
//	@Param			tag		query		string	false	"Filter by compliance tag"
//	@Param			ref		query		string	false	"Filter by guideline reference"
//	@Param			q		query		string	false	"Free-text filter"
//	@Success		200		{object}	RecordListResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{kind} [get]
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := h.svc.ListRecords(recordKind(r), practice.ListFilter{
		Tag:   q.Get("tag"),
		Ref:   q.Get("ref"),
		Query: q.Get("q"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RecordListResponse{
		Records: nonNil(records),
		Total:   len(records),
	})
}

// GetRecord handles GET /api/records/{kind}/{id}.
//
//	@Summary		Get a single record
//	@Tags			records
//	@Produce		json
//	@Param			kind	path		string	true	"Record kind"
//	@Param			id		path		string	true	"Record id"
//	@Success		200		{object}	models.Record
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{kind}/{id} [get]
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetRecord(recordKind(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CreateRecord handles POST /api/records/{kind}.
//
//	@Summary		Create a record through the compliance gate
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			kind	path		string				true	"Record kind"
//	@Param			body	body		CreateRecordRequest	true	"Record to create"
//	@Success		201		{object}	RecordResponse
//	@Failure		400		{object}	ValidationResponse
//	@Failure		403		{object}	GateResponse
//	@Failure		409		{object}	GateResponse
//	@Security		BearerAuth
//	@Router			/records/{kind} [post]
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Fields == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("fields is required"))
		return
	}

	rec, out := h.svc.CreateRecord(r.Context(), actorName(r), req.decider(), recordKind(r), req.Fields, req.Tags, req.Refs)
	if writeOutcome(w, out) {
		return
	}
	writeJSON(w, http.StatusCreated, RecordResponse{
		Record:     rec,
		Status:     string(out.Status),
		Overridden: out.Overridden,
		Verdict:    verdictIfAny(out),
	})
}

// UpdateRecord handles PATCH /api/records/{kind}/{id}.
//
//	@Summary		Merge-patch a record through the compliance gate
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			kind	path		string				true	"Record kind"
//	@Param			id		path		string				true	"Record id"
//	@Param			body	body		UpdateRecordRequest	true	"Fields to merge"
//	@Success		200		{object}	RecordResponse
//	@Failure		400		{object}	ValidationResponse
//	@Failure		403		{object}	GateResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	GateResponse
//	@Security		BearerAuth
//	@Router			/records/{kind}/{id} [patch]
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req UpdateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Patch == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("patch is required"))
		return
	}

	rec, out := h.svc.UpdateRecord(r.Context(), actorName(r), req.decider(), recordKind(r), chi.URLParam(r, "id"), req.Patch)
	if writeOutcome(w, out) {
		return
	}
	writeJSON(w, http.StatusOK, RecordResponse{
		Record:     rec,
		Status:     string(out.Status),
		Overridden: out.Overridden,
		Verdict:    verdictIfAny(out),
	})
}

// DeleteRecord handles DELETE /api/records/{kind}/{id}.
//
//	@Summary		Delete a record through the compliance gate
//	@Tags			records
//	@Produce		json
//	@Param			kind	path		string	true	"Record kind"
//	@Param			id		path		string	true	"Record id"
//	@Success		200		{object}	DeleteResponse
//	@Failure		403		{object}	GateResponse
//	@Failure		409		{object}	GateResponse
//	@Security		BearerAuth
//	@Router			/records/{kind}/{id} [delete]
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	var params GateParams
	if r.ContentLength > 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&params); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
	}

	existed, out := h.svc.DeleteRecord(r.Context(), actorName(r), params.decider(), recordKind(r), chi.URLParam(r, "id"))
	if writeOutcome(w, out) {
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{
		Deleted:    existed,
		Status:     string(out.Status),
		Overridden: out.Overridden,
	})
}

// Search handles GET /api/search.
//
//	@Summary		Free-text search across all record kinds
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	RecordListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	results := h.svc.SearchRecords(q)
	if limit, _ := strconv.Atoi(r.URL.Query().Get("limit")); limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	writeJSON(w, http.StatusOK, RecordListResponse{
		Records: nonNil(results),
		Total:   len(results),
	})
}

// Query handles POST /api/query.
//
//	@Summary		Ask the configured model provider a question
//	@Tags			query
//	@Accept			json
//	@Produce		json
//	@Param			body	body		QueryRequest	true	"Prompt and provider choice"
//	@Success		200		{object}	QueryResponse
//	@Failure		400		{object}	errResponse
//	@Failure		403		{object}	GateResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	GateResponse
//	@Security		BearerAuth
//	@Router			/query [post]
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Prompt == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("prompt is required"))
		return
	}

	result, out := h.svc.Query(r.Context(), actorName(r), req.decider(), practice.QueryRequest{
		ProviderID:   req.ProviderID,
		Prompt:       req.Prompt,
		Jurisdiction: req.Jurisdiction,
	})
	if writeOutcome(w, out) {
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{
		QueryResult: result,
		Status:      string(out.Status),
		Overridden:  out.Overridden,
	})
}
