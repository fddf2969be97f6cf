package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/starford/tiwaz/internal/audit"
	"github.com/starford/tiwaz/internal/ethics"
)

// Conflicts handles GET /api/compliance/conflicts.
//
//	@Summary		Crosscheck every client against adverse parties on file
//	@Tags			compliance
//	@Produce		json
//	@Success		200	{object}	ConflictListResponse
//	@Security		BearerAuth
//	@Router			/compliance/conflicts [get]
func (h *Handler) Conflicts(w http.ResponseWriter, r *http.Request) {
	conflicts := h.svc.Conflicts()
	writeJSON(w, http.StatusOK, ConflictListResponse{
		Conflicts: nonNil(conflicts),
		Total:     len(conflicts),
	})
}

// CheckCompliance handles POST /api/compliance/check.
//
//	@Summary		Dry-run an action payload against the rule engine
//	@Description	Evaluates only. Nothing executes and no audit event is written.
//	@Tags			compliance
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CheckRequest	true	"Action and payload to evaluate"
//	@Success		200		{object}	CheckResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/compliance/check [post]
func (h *Handler) CheckCompliance(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Action == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("action is required"))
		return
	}

	v := h.svc.CheckCompliance(ethics.Action(req.Action), req.Payload, actorName(r), req.Jurisdiction)
	writeJSON(w, http.StatusOK, CheckResponse{
		Action:  req.Action,
		Pass:    v.Pass(),
		Verdict: v,
	})
}

// ListAudit handles GET /api/audit.
//
//	@Summary		List audit events, newest first
//	@Tags			audit
//	@Produce		json
//	@Param			type	query		string	false	"Filter by event type"
//	@Param			actor	query		string	false	"Filter by actor"
//	@Param			since	query		string	false	"RFC3339 lower bound"
//	@Param			limit	query		int		false	"Max events"
//	@Param			q		query		string	false	"Free-text search over type, actor and details"
//	@Success		200		{object}	AuditListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/audit [get]
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	limit, _ := strconv.Atoi(params.Get("limit"))

	if q := params.Get("q"); q != "" {
		events, err := h.svc.AuditSearch(q, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, AuditListResponse{Events: nonNil(events), Total: len(events)})
		return
	}

	f := audit.Filter{
		EventType: params.Get("type"),
		Actor:     params.Get("actor"),
		Limit:     limit,
	}
	if since := params.Get("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("since must be RFC3339"))
			return
		}
		f.Since = ts
	}

	events, err := h.svc.AuditEvents(f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuditListResponse{Events: nonNil(events), Total: len(events)})
}

// AuditReport handles GET /api/audit/report.
//
//	@Summary		Aggregate audit counts by event type
//	@Tags			audit
//	@Produce		json
//	@Success		200	{object}	audit.Report
//	@Security		BearerAuth
//	@Router			/audit/report [get]
func (h *Handler) AuditReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.AuditReport()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// GetConfirmation handles GET /api/settings/confirmation.
//
//	@Summary		Read the confirmation toggle
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	ConfirmationResponse
//	@Security		BearerAuth
//	@Router			/settings/confirmation [get]
func (h *Handler) GetConfirmation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ConfirmationResponse{Enabled: h.svc.ConfirmationEnabled()})
}

// SetConfirmation handles PUT /api/settings/confirmation.
//
//	@Summary		Toggle the confirmation step for guarded actions
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ConfirmationRequest	true	"Desired state"
//	@Success		200		{object}	ConfirmationResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings/confirmation [put]
func (h *Handler) SetConfirmation(w http.ResponseWriter, r *http.Request) {
	var req ConfirmationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	h.svc.SetConfirmation(req.Enabled, actorName(r))
	writeJSON(w, http.StatusOK, ConfirmationResponse{Enabled: h.svc.ConfirmationEnabled()})
}

// GetProfile handles GET /api/profile.
//
//	@Summary		Read the operator profile used for authorization checks
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	models.Profile
//	@Security		BearerAuth
//	@Router			/profile [get]
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Profile())
}

// SaveSnapshot handles POST /api/snapshot.
//
//	@Summary		Write the current state to the snapshot file
//	@Tags			snapshot
//	@Produce		json
//	@Success		200	{object}	SnapshotResponse
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/snapshot [post]
func (h *Handler) SaveSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SaveSnapshot(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SnapshotResponse{Path: h.svc.SnapshotPath(), Status: "saved"})
}

// RestoreSnapshot handles POST /api/restore.
//
//	@Summary		Replace in-memory state from the snapshot file
//	@Tags			snapshot
//	@Accept			json
//	@Produce		json
//	@Param			body	body		GateParams	false	"Gate decision flags"
//	@Success		200		{object}	SnapshotResponse
//	@Failure		403		{object}	GateResponse
//	@Failure		409		{object}	GateResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/restore [post]
func (h *Handler) RestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	var params GateParams
	if r.ContentLength > 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&params); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
	}

	out := h.svc.RestoreSnapshot(r.Context(), actorName(r), params.decider())
	if writeOutcome(w, out) {
		return
	}
	writeJSON(w, http.StatusOK, SnapshotResponse{Path: h.svc.SnapshotPath(), Status: "restored"})
}
