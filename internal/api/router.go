package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/tiwaz/internal/practice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *practice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Records CRUD per kind.
	r.Get("/records/{kind}", h.ListRecords)
	r.Post("/records/{kind}", h.CreateRecord)
	r.Get("/records/{kind}/{id}", h.GetRecord)
	r.Patch("/records/{kind}/{id}", h.UpdateRecord)
	r.Delete("/records/{kind}/{id}", h.DeleteRecord)

	// Search across kinds.
	r.Get("/search", h.Search)

	// Model providers.
	r.Get("/providers", h.ListProviders)
	r.Post("/providers", h.AddProvider)
	r.Get("/providers/{id}", h.GetProvider)
	r.Delete("/providers/{id}", h.RemoveProvider)
	r.Put("/providers/{id}/default", h.SetDefaultProvider)
	r.Post("/providers/{id}/test", h.TestProvider)

	// Guarded model query.
	r.Post("/query", h.Query)

	// Caselaw ingestion and training bookkeeping.
	r.Post("/caselaw/ingest", h.IngestCaselaw)
	r.Get("/training/examples", h.ListExamples)
	r.Post("/training/examples", h.CollectExample)
	r.Post("/training/train", h.TrainModel)
	r.Post("/training/evaluate", h.EvaluateModel)
	r.Get("/training/models", h.ListModels)
	r.Get("/training/models/{type}", h.ModelVersions)
	r.Post("/training/export", h.ExportTraining)
	r.Post("/training/import", h.ImportTraining)

	// Compliance and the audit trail.
	r.Get("/compliance/conflicts", h.Conflicts)
	r.Post("/compliance/check", h.CheckCompliance)
	r.Get("/audit", h.ListAudit)
	r.Get("/audit/report", h.AuditReport)

	// Operator settings and state snapshots.
	r.Get("/settings/confirmation", h.GetConfirmation)
	r.Put("/settings/confirmation", h.SetConfirmation)
	r.Get("/profile", h.GetProfile)
	r.Post("/snapshot", h.SaveSnapshot)
	r.Post("/restore", h.RestoreSnapshot)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
