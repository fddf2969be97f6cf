package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/tiwaz/internal/apperr"
	"github.com/starford/tiwaz/internal/gate"
	"github.com/starford/tiwaz/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps service errors onto status codes: validation 400 with
// per-field detail, unknown ids and kinds 404, rejected snapshots 422,
// anything else a logged 500.
func writeError(w http.ResponseWriter, err error) {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ValidationResponse{Error: "validation failed", Fields: ve.Fields})
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrKindUnknown):
		writeJSON(w, http.StatusNotFound, errorBody("unknown record kind"))
	case errors.Is(err, apperr.ErrSnapshotInvalid):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("snapshot structurally invalid"))
	default:
		slog.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// writeOutcome renders a guarded action that did not execute: blocked
// verdicts 403, cancellations 409, operation errors through writeError.
// Returns true when a response was written.
func writeOutcome(w http.ResponseWriter, out gate.Outcome) bool {
	switch out.Status {
	case gate.StatusBlocked:
		writeJSON(w, http.StatusForbidden, GateResponse{
			Status:  string(out.Status),
			Error:   "blocked by compliance rule",
			Verdict: &out.Verdict,
		})
		return true
	case gate.StatusCancelled:
		body := GateResponse{Status: string(out.Status), Error: "action cancelled"}
		if out.Verdict.Severity > models.SeverityPass {
			body.Verdict = &out.Verdict
		}
		writeJSON(w, http.StatusConflict, body)
		return true
	}
	if out.Err != nil {
		writeError(w, out.Err)
		return true
	}
	return false
}

// verdictIfAny returns the outcome's verdict when a rule actually fired.
func verdictIfAny(out gate.Outcome) *models.Verdict {
	if out.Verdict.Severity > models.SeverityPass {
		return &out.Verdict
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func isNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
