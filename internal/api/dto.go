package api

import (
	"github.com/starford/tiwaz/internal/ethics"
	"github.com/starford/tiwaz/internal/gate"
	"github.com/starford/tiwaz/internal/models"
	"github.com/starford/tiwaz/internal/practice"
	"github.com/starford/tiwaz/internal/training"
)

// GateParams are the decision flags a caller supplies for a guarded
// action: override approves a warning, confirm answers the confirmation
// step when it is enabled.
type GateParams struct {
	Override bool `json:"override" example:"false"`
	Confirm  bool `json:"confirm" example:"true"`
}

func (p GateParams) decider() gate.Decider {
	return gate.StaticDecider{Override: p.Override, Confirm: p.Confirm}
}

// CreateRecordRequest is the request body for creating a record.
type CreateRecordRequest struct {
	Fields map[string]any `json:"fields" validate:"required"`
	Tags   []string       `json:"tags,omitempty"`
	Refs   []string       `json:"refs,omitempty"`
	GateParams
}

// UpdateRecordRequest is the request body for a merge-patch update.
// Patch keys overwrite fields; a null value removes the field.
type UpdateRecordRequest struct {
	Patch map[string]any `json:"patch" validate:"required"`
	GateParams
}

// QueryRequest is the request body for a model query.
type QueryRequest struct {
	Prompt       string `json:"prompt" validate:"required" example:"Summarize the holding of State v. Hale"`
	ProviderID   string `json:"provider_id,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty" example:"Tennessee"`
	GateParams
}

// IngestRequest is the request body for a caselaw ingestion run. Zero
// values use the source defaults.
type IngestRequest struct {
	Jurisdiction string `json:"jurisdiction,omitempty" example:"tenn"`
	PageSize     int    `json:"page_size,omitempty" example:"20"`
	MaxPages     int    `json:"max_pages,omitempty" example:"5"`
	GateParams
}

// CollectExampleRequest is the request body for collecting a training
// example.
type CollectExampleRequest struct {
	DataType string         `json:"data_type" validate:"required" example:"verdict"`
	Data     map[string]any `json:"data,omitempty"`
	Label    any            `json:"label,omitempty"`
	GateParams
}

// TrainRequest is the request body for recording a model version.
type TrainRequest struct {
	ModelType string         `json:"model_type" validate:"required" example:"classifier"`
	Params    map[string]any `json:"params,omitempty"`
}

// EvaluateRequest is the request body for evaluating a model entry.
type EvaluateRequest struct {
	ModelType string           `json:"model_type" validate:"required" example:"classifier"`
	TestData  []map[string]any `json:"test_data,omitempty"`
}

// TrainingFileRequest names the file for a training data export/import.
type TrainingFileRequest struct {
	Path string `json:"path" validate:"required" example:"training.json"`
}

// CheckRequest is the request body for a compliance dry run.
type CheckRequest struct {
	Action       string         `json:"action" validate:"required" example:"create_case_file"`
	Payload      map[string]any `json:"payload,omitempty"`
	Jurisdiction string         `json:"jurisdiction,omitempty"`
}

// ConfirmationRequest toggles the interactive confirmation step.
type ConfirmationRequest struct {
	Enabled bool `json:"enabled"`
}

// GateResponse reports a guarded action that ended at the gate.
type GateResponse struct {
	Status  string          `json:"status" example:"blocked"`
	Error   string          `json:"error,omitempty"`
	Verdict *models.Verdict `json:"verdict,omitempty"`
}

// ValidationResponse reports a rejected payload, field by field.
type ValidationResponse struct {
	Error  string            `json:"error" example:"validation failed"`
	Fields map[string]string `json:"fields"`
}

// RecordResponse wraps a record produced by a guarded mutation.
type RecordResponse struct {
	Record     models.Record   `json:"record"`
	Status     string          `json:"status" example:"completed"`
	Overridden bool            `json:"overridden,omitempty"`
	Verdict    *models.Verdict `json:"verdict,omitempty"`
}

// DeleteResponse reports a guarded delete.
type DeleteResponse struct {
	Deleted    bool   `json:"deleted"`
	Status     string `json:"status" example:"completed"`
	Overridden bool   `json:"overridden,omitempty"`
}

// RecordListResponse wraps a record listing.
type RecordListResponse struct {
	Records []models.Record `json:"records" validate:"required"`
	Total   int             `json:"total" example:"3" validate:"required"`
}

// QueryResponse carries a completed model query. Failed marks a
// provider-side failure carried as text.
type QueryResponse struct {
	practice.QueryResult
	Status     string `json:"status" example:"completed"`
	Overridden bool   `json:"overridden,omitempty"`
}

// IngestResponse summarizes a completed caselaw ingestion.
type IngestResponse struct {
	practice.IngestResult
	Status string `json:"status" example:"completed"`
}

// CollectExampleResponse wraps a collected training example.
type CollectExampleResponse struct {
	Example training.Example `json:"example"`
	Status  string           `json:"status" example:"completed"`
}

// ProviderListResponse wraps the provider listing, keys redacted.
type ProviderListResponse struct {
	Providers []models.ProviderConfig `json:"providers" validate:"required"`
}

// ExampleListResponse wraps the collected training examples.
type ExampleListResponse struct {
	Examples []training.Example `json:"examples" validate:"required"`
	Total    int                `json:"total" example:"2"`
}

// ModelListResponse lists the model types with recorded versions.
type ModelListResponse struct {
	Models []string `json:"models" validate:"required"`
}

// ModelVersionsResponse lists every recorded version of one model type.
type ModelVersionsResponse struct {
	ModelType string               `json:"model_type" example:"classifier"`
	Versions  []training.ModelInfo `json:"versions" validate:"required"`
}

// ConflictListResponse wraps the client/adverse-party crosscheck.
type ConflictListResponse struct {
	Conflicts []ethics.Conflict `json:"conflicts" validate:"required"`
	Total     int               `json:"total" example:"1"`
}

// CheckResponse reports a compliance dry run. Nothing is executed and
// nothing is audited.
type CheckResponse struct {
	Action  string         `json:"action" example:"create_case_file"`
	Pass    bool           `json:"pass"`
	Verdict models.Verdict `json:"verdict"`
}

// AuditListResponse wraps an audit trail listing, newest first.
type AuditListResponse struct {
	Events []models.AuditEvent `json:"events" validate:"required"`
	Total  int                 `json:"total" example:"12"`
}

// ConfirmationResponse reports the confirmation toggle state.
type ConfirmationResponse struct {
	Enabled bool `json:"enabled"`
}

// SnapshotResponse reports a snapshot save or restore.
type SnapshotResponse struct {
	Path   string `json:"path" example:"data/snapshot.json"`
	Status string `json:"status" example:"saved"`
}
