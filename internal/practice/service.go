// Package practice composes the record store, compliance gate, provider
// router, and persistence into the operations the HTTP, MCP, and CLI
// surfaces expose. Mutations and model queries run through the gate;
// reads pass straight through.
package practice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/tiwaz/internal/apperr"
	"github.com/starford/tiwaz/internal/audit"
	"github.com/starford/tiwaz/internal/ethics"
	"github.com/starford/tiwaz/internal/gate"
	"github.com/starford/tiwaz/internal/models"
	"github.com/starford/tiwaz/internal/provider"
	"github.com/starford/tiwaz/internal/recordstore"
	"github.com/starford/tiwaz/internal/sources"
	"github.com/starford/tiwaz/internal/storage"
	"github.com/starford/tiwaz/internal/training"
)

// Deps carries the collaborators a Service composes.
type Deps struct {
	Store    *recordstore.Store
	Registry *provider.Registry
	Engine   *ethics.Engine
	Gate     *gate.Gate
	Router   *provider.Router
	Manager  *storage.Manager
	Trainer  *training.Trainer
	Caselaw  *sources.Client
	Audit    *audit.Store
	Profile  models.Profile
	Logger   *slog.Logger
}

// Service is the application core behind every surface.
type Service struct {
	store    *recordstore.Store
	registry *provider.Registry
	engine   *ethics.Engine
	gate     *gate.Gate
	router   *provider.Router
	manager  *storage.Manager
	trainer  *training.Trainer
	caselaw  *sources.Client
	auditLog *audit.Store
	profile  models.Profile
	log      *slog.Logger
}

// New builds a Service from its dependencies.
func New(d Deps) *Service {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:    d.Store,
		registry: d.Registry,
		engine:   d.Engine,
		gate:     d.Gate,
		router:   d.Router,
		manager:  d.Manager,
		trainer:  d.Trainer,
		caselaw:  d.Caselaw,
		auditLog: d.Audit,
		profile:  d.Profile,
		log:      log,
	}
}

// Profile returns the practice context the service was configured with.
func (s *Service) Profile() models.Profile { return s.profile }

// actor resolves the acting user for compliance evaluation: the request
// identity when given, otherwise the configured practice role.
func (s *Service) actor(name string) *ethics.Actor {
	name = strings.TrimSpace(name)
	if name == "" {
		name = s.profile.UserRole
	}
	if name == "" {
		name = "system"
	}
	return &ethics.Actor{Name: name, Jurisdictions: s.profile.Jurisdictions}
}

// evalContext assembles the evaluation context for one action: the
// adverse-party union across all case files, plus the jurisdiction the
// action claims to act in.
func (s *Service) evalContext(jurisdiction string) ethics.Context {
	return ethics.Context{
		AdverseParties: ethics.AdverseUnion(s.store.List(models.KindCaseFile, nil)),
		Jurisdiction:   jurisdiction,
	}
}

func payloadJurisdiction(fields map[string]any) string {
	j, _ := fields["jurisdiction"].(string)
	return j
}

// autosave persists the current state after an effective mutation. A
// failing save is logged; the mutation itself already happened.
func (s *Service) autosave() {
	if s.manager == nil {
		return
	}
	if err := s.manager.Save(); err != nil {
		s.log.Warn("autosave failed", slog.String("error", err.Error()))
	}
}

// CreateRecord runs a guarded create. The record is only valid when the
// outcome reports execution; gate decisions are carried in the outcome,
// store rejections in its Err.
func (s *Service) CreateRecord(ctx context.Context, actor string, decider gate.Decider, kind models.Kind, fields map[string]any, tags, refs []string) (models.Record, gate.Outcome) {
	var created models.Record
	out := s.gate.Run(ctx, ethics.CreateAction(kind), fields, s.actor(actor), s.evalContext(payloadJurisdiction(fields)), decider, func(context.Context) error {
		rec, err := s.store.Create(kind, fields, tags, refs)
		if err != nil {
			return err
		}
		created = rec
		return nil
	})
	if out.Executed() {
		s.autosave()
	}
	return created, out
}

// UpdateRecord runs a guarded merge-update. The evaluation sees the
// submitted patch; what is already stored passed evaluation when it was
// submitted.
func (s *Service) UpdateRecord(ctx context.Context, actor string, decider gate.Decider, kind models.Kind, id string, patch map[string]any) (models.Record, gate.Outcome) {
	var updated models.Record
	out := s.gate.Run(ctx, ethics.UpdateAction(kind), patch, s.actor(actor), s.evalContext(payloadJurisdiction(patch)), decider, func(context.Context) error {
		rec, err := s.store.Update(kind, id, patch)
		if err != nil {
			return err
		}
		updated = rec
		return nil
	})
	if out.Executed() {
		s.autosave()
	}
	return updated, out
}

// DeleteRecord runs a guarded delete. The bool reports whether the
// record existed; deleting an absent record is not an error.
func (s *Service) DeleteRecord(ctx context.Context, actor string, decider gate.Decider, kind models.Kind, id string) (bool, gate.Outcome) {
	var existed bool
	out := s.gate.Run(ctx, ethics.DeleteAction(kind), map[string]any{"id": id}, s.actor(actor), s.evalContext(""), decider, func(context.Context) error {
		existed = s.store.Delete(kind, id)
		return nil
	})
	if out.Executed() && existed {
		s.autosave()
	}
	return existed, out
}

// GetRecord reads one record.
func (s *Service) GetRecord(kind models.Kind, id string) (models.Record, error) {
	return s.store.Get(kind, id)
}

// ListFilter narrows a record listing. Zero values match everything.
type ListFilter struct {
	Tag   string
	Ref   string
	Query string
}

// ListRecords returns the records of one kind in insertion order,
// narrowed by the filter.
func (s *Service) ListRecords(kind models.Kind, f ListFilter) ([]models.Record, error) {
	if !s.KnownKind(kind) {
		return nil, fmt.Errorf("practice: list %q: %w", kind, apperr.ErrKindUnknown)
	}
	match := recordstore.MatchingText(f.Query)
	return s.store.List(kind, func(r models.Record) bool {
		if f.Tag != "" && !r.HasTag(f.Tag) {
			return false
		}
		if f.Ref != "" && !r.HasGuidelineRef(f.Ref) {
			return false
		}
		return match(r)
	}), nil
}

// SearchRecords matches q against every kind; results group by kind,
// records in insertion order within each.
func (s *Service) SearchRecords(q string) []models.Record {
	var out []models.Record
	for _, kind := range s.store.Kinds() {
		out = append(out, s.store.List(kind, recordstore.MatchingText(q))...)
	}
	return out
}

// Kinds lists the registered record kinds.
func (s *Service) Kinds() []models.Kind { return s.store.Kinds() }

// KnownKind reports whether the store has a validator for kind.
func (s *Service) KnownKind(kind models.Kind) bool {
	for _, k := range s.store.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// Counts reports how many records each kind holds.
func (s *Service) Counts() map[models.Kind]int { return s.store.Counts() }

// QueryRequest asks a model provider a question.
type QueryRequest struct {
	ProviderID   string
	Prompt       string
	Jurisdiction string
}

// QueryResult is the contained outcome of a model query. Failed marks a
// provider-side failure carried as text, not as an error.
type QueryResult struct {
	Text       string `json:"text"`
	Explain    string `json:"explain"`
	Failed     bool   `json:"failed"`
	ProviderID string `json:"provider_id"`
	Provider   string `json:"provider"`
}

// Query runs a guarded model query on the chosen provider, or the
// default when none is named. Successful completions get the practice
// disclaimer appended; provider failures come back as marked text in the
// result, never as an error.
func (s *Service) Query(ctx context.Context, actor string, decider gate.Decider, req QueryRequest) (QueryResult, gate.Outcome) {
	var result QueryResult
	payload := map[string]any{"prompt": req.Prompt}
	out := s.gate.Run(ctx, ethics.ActionRunQuery, payload, s.actor(actor), s.evalContext(req.Jurisdiction), decider, func(ctx context.Context) error {
		cfg, err := s.chooseProvider(req.ProviderID)
		if err != nil {
			return err
		}
		resp := s.router.RunQuery(ctx, cfg, req.Prompt)
		text := resp.Text
		if !resp.Failed() {
			text += s.disclaimer()
		}
		result = QueryResult{
			Text:       text,
			Explain:    resp.Explain,
			Failed:     resp.Failed(),
			ProviderID: cfg.ID,
			Provider:   cfg.Name,
		}
		return nil
	})
	return result, out
}

func (s *Service) chooseProvider(id string) (models.ProviderConfig, error) {
	if id == "" {
		return s.registry.Default()
	}
	return s.registry.Get(id)
}

// disclaimer renders the review notice appended to every successful
// completion, naming the primary jurisdiction when one is configured.
func (s *Service) disclaimer() string {
	who := "a qualified licensed attorney"
	if len(s.profile.Jurisdictions) > 0 {
		who = fmt.Sprintf("a qualified %s-licensed attorney", s.profile.Jurisdictions[0])
	}
	return "\n\n[Disclaimer: This is not legal advice. All outputs must be reviewed by " + who + ".]"
}

// IngestRequest fetches caselaw for a jurisdiction. Zero values use the
// source client's defaults.
type IngestRequest struct {
	Jurisdiction string
	PageSize     int
	MaxPages     int
}

// IngestResult summarizes a caselaw ingestion run.
type IngestResult struct {
	Fetched int      `json:"fetched"`
	Stored  int      `json:"stored"`
	Skipped int      `json:"skipped"`
	IDs     []string `json:"ids,omitempty"`
}

// IngestCaselaw runs a guarded bulk fetch-and-store: opinions come from
// the caselaw source and land as note records tagged "caselaw". Opinions
// with no usable text are counted as skipped.
func (s *Service) IngestCaselaw(ctx context.Context, actor string, decider gate.Decider, req IngestRequest) (IngestResult, gate.Outcome) {
	var result IngestResult
	payload := map[string]any{"jurisdiction": req.Jurisdiction, "source": "courtlistener"}
	out := s.gate.Run(ctx, ethics.ActionIngestCaselaw, payload, s.actor(actor), s.evalContext(req.Jurisdiction), decider, func(ctx context.Context) error {
		opinions, err := s.caselaw.FetchOpinions(ctx, req.Jurisdiction, req.PageSize, req.MaxPages)
		if err != nil {
			return err
		}
		result.Fetched = len(opinions)
		for _, opinion := range opinions {
			fields, ok := sources.NoteFields(opinion)
			if !ok {
				result.Skipped++
				continue
			}
			rec, err := s.store.Create(models.KindNote, fields, []string{"caselaw"}, nil)
			if err != nil {
				s.log.Warn("caselaw record rejected", slog.String("error", err.Error()))
				result.Skipped++
				continue
			}
			result.Stored++
			result.IDs = append(result.IDs, rec.ID)
		}
		return nil
	})
	if out.Executed() && result.Stored > 0 {
		s.autosave()
	}
	return result, out
}

// CollectExample runs a guarded training-example collection; the example
// is mirrored into the store as a feedback record.
func (s *Service) CollectExample(ctx context.Context, actor string, decider gate.Decider, dataType string, data map[string]any, label any) (training.Example, gate.Outcome) {
	var ex training.Example
	payload := map[string]any{"data_type": dataType, "label": label}
	out := s.gate.Run(ctx, ethics.CreateAction(models.KindFeedback), payload, s.actor(actor), s.evalContext(""), decider, func(context.Context) error {
		collected, err := s.trainer.Collect(dataType, data, label)
		if err != nil {
			return err
		}
		ex = collected
		return nil
	})
	if out.Executed() {
		s.autosave()
	}
	return ex, out
}

// TrainModel records a model version entry covering the collected
// examples.
func (s *Service) TrainModel(modelType string, params map[string]any) training.ModelInfo {
	return s.trainer.Train(modelType, params)
}

// EvaluateModel reports bookkeeping metrics for a trained entry.
func (s *Service) EvaluateModel(modelType string, testData []map[string]any) (training.Evaluation, error) {
	return s.trainer.Evaluate(modelType, testData)
}

// TrainingExamples lists the collected examples.
func (s *Service) TrainingExamples() []training.Example { return s.trainer.Examples() }

// TrainedModels lists model types with at least one version entry.
func (s *Service) TrainedModels() []string { return s.trainer.Models() }

// ModelVersions lists the version entries for one model type.
func (s *Service) ModelVersions(modelType string) []training.ModelInfo {
	return s.trainer.Versions(modelType)
}

// ExportTraining writes the collected examples to path as JSON.
func (s *Service) ExportTraining(path string) error { return s.trainer.Export(path) }

// ImportTraining replaces the collected examples from path.
func (s *Service) ImportTraining(path string) error { return s.trainer.Import(path) }

// Providers lists the registered provider configurations.
func (s *Service) Providers() []models.ProviderConfig { return s.registry.List() }

// GetProvider reads one provider configuration.
func (s *Service) GetProvider(id string) (models.ProviderConfig, error) {
	return s.registry.Get(id)
}

// AddProvider registers a provider configuration and persists the state.
func (s *Service) AddProvider(cfg models.ProviderConfig) (models.ProviderConfig, error) {
	added, err := s.registry.Add(cfg)
	if err != nil {
		return models.ProviderConfig{}, err
	}
	s.autosave()
	return added, nil
}

// RemoveProvider drops a provider configuration. Removing an absent
// provider is not an error.
func (s *Service) RemoveProvider(id string) bool {
	removed := s.registry.Remove(id)
	if removed {
		s.autosave()
	}
	return removed
}

// SetDefaultProvider atomically points the default at the given provider.
func (s *Service) SetDefaultProvider(id string) error {
	if err := s.registry.SetDefault(id); err != nil {
		return err
	}
	s.autosave()
	return nil
}

// ProbeProvider sends a canned prompt through the provider and returns
// the raw failure, if any. Unlike Query, this is a diagnostic: the
// caller wants the error.
func (s *Service) ProbeProvider(ctx context.Context, id string) error {
	cfg, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	return s.router.Probe(ctx, cfg)
}

// AuditEvents lists audit trail entries, newest first.
func (s *Service) AuditEvents(f audit.Filter) ([]models.AuditEvent, error) {
	return s.auditLog.List(f)
}

// AuditSearch matches audit entries against a free-text query.
func (s *Service) AuditSearch(q string, limit int) ([]models.AuditEvent, error) {
	return s.auditLog.Search(q, limit)
}

// AuditReport summarizes the audit trail.
func (s *Service) AuditReport() (audit.Report, error) {
	return s.auditLog.Report()
}

// Conflicts cross-checks every client against the adverse parties of
// every case file.
func (s *Service) Conflicts() []ethics.Conflict {
	return ethics.ConflictCrosscheck(
		s.store.List(models.KindClient, nil),
		s.store.List(models.KindCaseFile, nil),
	)
}

// CheckCompliance dry-runs the rule engine over a payload without
// executing anything or writing the audit trail.
func (s *Service) CheckCompliance(action ethics.Action, payload map[string]any, actor, jurisdiction string) models.Verdict {
	return s.engine.Evaluate(payload, action, s.actor(actor), s.evalContext(jurisdiction))
}

// ConfirmationEnabled reports whether guarded actions ask for a final
// confirmation.
func (s *Service) ConfirmationEnabled() bool { return s.gate.ConfirmationEnabled() }

// SetConfirmation toggles the confirmation step.
func (s *Service) SetConfirmation(enabled bool, actor string) {
	s.gate.SetConfirmation(enabled, s.actor(actor).Name)
}

// SaveSnapshot persists the full state now.
func (s *Service) SaveSnapshot() error { return s.manager.Save() }

// SnapshotPath returns the snapshot file location.
func (s *Service) SnapshotPath() string { return s.manager.Path() }

// RestoreSnapshot runs a guarded reload of the snapshot file, replacing
// the in-memory state. Prior state survives a rejected snapshot.
func (s *Service) RestoreSnapshot(ctx context.Context, actor string, decider gate.Decider) gate.Outcome {
	payload := map[string]any{"path": s.manager.Path()}
	return s.gate.Run(ctx, ethics.ActionRestoreSnapshot, payload, s.actor(actor), s.evalContext(""), decider, func(context.Context) error {
		return s.manager.Load()
	})
}
