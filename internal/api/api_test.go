package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/tiwaz/internal/audit"
	"github.com/starford/tiwaz/internal/ethics"
	"github.com/starford/tiwaz/internal/gate"
	"github.com/starford/tiwaz/internal/models"
	"github.com/starford/tiwaz/internal/practice"
	"github.com/starford/tiwaz/internal/provider"
	"github.com/starford/tiwaz/internal/recordstore"
	"github.com/starford/tiwaz/internal/sources"
	"github.com/starford/tiwaz/internal/storage"
	"github.com/starford/tiwaz/internal/training"
)

type stubAdapter struct {
	text string
	err  error
}

func (a stubAdapter) Generate(context.Context, models.ProviderConfig, string) (string, provider.Usage, error) {
	return a.text, provider.Usage{}, a.err
}

// testEnv sets up a full service and router for testing.
// authToken="" means disabled mode; non-empty means token mode.
func testEnv(t *testing.T, authToken string) (*practice.Service, http.Handler) {
	t.Helper()
	svc, router, _ := testEnvWith(t, authToken != "", authToken)
	return svc, router
}

func testEnvWith(t *testing.T, authEnabled bool, authToken string, opts ...func(*practice.Deps)) (*practice.Service, http.Handler, practice.Deps) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := recordstore.New(recordstore.DefaultValidators())
	registry := provider.NewRegistry()
	engine := ethics.NewDefaultEngine(nil)

	db, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("audit.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	d := practice.Deps{
		Store:    store,
		Registry: registry,
		Engine:   engine,
		Gate:     gate.New(engine, db, logger, false),
		Router:   provider.NewRouter(provider.WithLogger(logger)),
		Manager: storage.NewManager(
			filepath.Join(t.TempDir(), "state.json"),
			store, registry,
			storage.WithLogger(logger), storage.WithAuditSink(db),
		),
		Trainer: training.New(store),
		Caselaw: sources.NewClient(sources.WithLogger(logger)),
		Audit:   db,
		Profile: models.Profile{UserRole: "supervising-attorney", Jurisdictions: []string{"Tennessee"}},
		Logger:  logger,
	}
	for _, opt := range opts {
		opt(&d)
	}

	svc := practice.New(d)
	return svc, NewRouter(svc, authEnabled, authToken, nil), d
}

func postJSON(t *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createRecord(t *testing.T, router http.Handler, kind string, fields map[string]any) RecordResponse {
	t.Helper()
	w := postJSON(t, router, "/records/"+kind, map[string]any{"fields": fields})
	if w.Code != http.StatusCreated {
		t.Fatalf("create %s = %d, body = %s", kind, w.Code, w.Body.String())
	}
	var resp RecordResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func TestCreateAndGetRecord(t *testing.T) {
	_, router := testEnv(t, "")

	created := createRecord(t, router, "client", map[string]any{"name": "Acme Co"})
	if created.Record.ID == "" || created.Status != "completed" {
		t.Fatalf("create response = %+v", created)
	}

	req := httptest.NewRequest(http.MethodGet, "/records/client/"+created.Record.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var rec models.Record
	_ = json.Unmarshal(w.Body.Bytes(), &rec)
	if rec.StringField("name") != "Acme Co" {
		t.Errorf("name = %q, want Acme Co", rec.StringField("name"))
	}
}

func TestCreateRecordUnknownKind(t *testing.T) {
	_, router := testEnv(t, "")

	w := postJSON(t, router, "/records/widget", map[string]any{"fields": map[string]any{"x": 1}})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown kind = %d, want 404, body = %s", w.Code, w.Body.String())
	}
}

func TestCreateRecordValidationError(t *testing.T) {
	_, router := testEnv(t, "")

	w := postJSON(t, router, "/records/feedback", map[string]any{"fields": map[string]any{"rating": 6}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid rating = %d, want 400, body = %s", w.Code, w.Body.String())
	}
	var resp ValidationResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Fields["rating"] == "" {
		t.Errorf("fields = %v, want rating detail", resp.Fields)
	}
}

func TestCreateRecordConflictBlocked(t *testing.T) {
	_, router := testEnv(t, "")

	createRecord(t, router, "case_file", map[string]any{
		"title":           "Acme v. Jones Holdings",
		"client":          "Acme Co",
		"adverse_parties": []string{"Jones Holdings"},
	})

	w := postJSON(t, router, "/records/client", map[string]any{"fields": map[string]any{"name": "Jones Holdings"}})
	if w.Code != http.StatusForbidden {
		t.Fatalf("conflicted create = %d, want 403, body = %s", w.Code, w.Body.String())
	}
	var resp GateResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "blocked" || resp.Verdict == nil || !resp.Verdict.Blocked() {
		t.Errorf("gate response = %+v", resp)
	}

	// The record must not exist.
	req := httptest.NewRequest(http.MethodGet, "/records/client", nil)
	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, req)
	var list RecordListResponse
	_ = json.Unmarshal(rw.Body.Bytes(), &list)
	if list.Total != 0 {
		t.Errorf("blocked record reached the store: %+v", list)
	}
}

func TestCreateRecordWarnOverride(t *testing.T) {
	_, router := testEnv(t, "")

	fields := map[string]any{"name": "Acme Co", "notes": "SSN 123-45-6789"}

	// Without override the warning cancels the action.
	w := postJSON(t, router, "/records/client", map[string]any{"fields": fields})
	if w.Code != http.StatusConflict {
		t.Fatalf("warned create = %d, want 409, body = %s", w.Code, w.Body.String())
	}
	var cancelled GateResponse
	_ = json.Unmarshal(w.Body.Bytes(), &cancelled)
	if cancelled.Status != "cancelled" || cancelled.Verdict == nil {
		t.Fatalf("cancel response = %+v", cancelled)
	}

	// With override the create goes through and says so.
	w = postJSON(t, router, "/records/client", map[string]any{"fields": fields, "override": true})
	if w.Code != http.StatusCreated {
		t.Fatalf("overridden create = %d, body = %s", w.Code, w.Body.String())
	}
	var resp RecordResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Overridden || resp.Verdict == nil {
		t.Errorf("override response = %+v", resp)
	}
}

func TestUpdateRecord(t *testing.T) {
	_, router := testEnv(t, "")

	created := createRecord(t, router, "client", map[string]any{"name": "Old Name"})

	body, _ := json.Marshal(map[string]any{"patch": map[string]any{"name": "New Name"}})
	req := httptest.NewRequest(http.MethodPatch, "/records/client/"+created.Record.ID, bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}
	var resp RecordResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Record.StringField("name") != "New Name" || resp.Record.Version != 2 {
		t.Errorf("updated record = %+v", resp.Record)
	}
}

func TestUpdateRecord_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	body, _ := json.Marshal(map[string]any{"patch": map[string]any{"name": "x"}})
	req := httptest.NewRequest(http.MethodPatch, "/records/client/ghost", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", w.Code)
	}
}

func TestDeleteRecord(t *testing.T) {
	_, router := testEnv(t, "")

	created := createRecord(t, router, "note", map[string]any{"text": "bye"})

	req := httptest.NewRequest(http.MethodDelete, "/records/note/"+created.Record.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("delete = %d, body = %s", w.Code, w.Body.String())
	}
	var resp DeleteResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Deleted {
		t.Error("deleted = false, want true")
	}

	// Deleting again is not an error, it just reports nothing happened.
	req = httptest.NewRequest(http.MethodDelete, "/records/note/"+created.Record.ID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("second delete = %d", w.Code)
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Deleted {
		t.Error("second delete reported deleted = true")
	}

	// GET should now 404.
	req = httptest.NewRequest(http.MethodGet, "/records/note/"+created.Record.ID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
}

func TestListRecordsWithTagFilter(t *testing.T) {
	_, router := testEnv(t, "")

	w := postJSON(t, router, "/records/note", map[string]any{
		"fields": map[string]any{"text": "tagged"}, "tags": []string{"caselaw"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}
	createRecord(t, router, "note", map[string]any{"text": "untagged"})

	req := httptest.NewRequest(http.MethodGet, "/records/note?tag=caselaw", nil)
	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, req)
	var list RecordListResponse
	_ = json.Unmarshal(rw.Body.Bytes(), &list)
	if list.Total != 1 {
		t.Errorf("filtered total = %d, want 1", list.Total)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	createRecord(t, router, "note", map[string]any{"text": "uniquetoken here"})
	createRecord(t, router, "client", map[string]any{"name": "Acme Co"})

	req := httptest.NewRequest(http.MethodGet, "/search?q=uniquetoken", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	var list RecordListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 1 {
		t.Errorf("search total = %d, want 1", list.Total)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

// Provider management tests.

func TestProviderLifecycle(t *testing.T) {
	_, router := testEnv(t, "")

	w := postJSON(t, router, "/providers", map[string]any{
		"name": "counsel-gpt", "family": "openai", "api_key": "sk-verysecretkey", "model": "gpt-4o",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("add provider = %d, body = %s", w.Code, w.Body.String())
	}
	var added models.ProviderConfig
	_ = json.Unmarshal(w.Body.Bytes(), &added)
	if added.ID == "" {
		t.Fatalf("provider id empty: %+v", added)
	}
	if added.APIKey != "****tkey" {
		t.Errorf("api_key = %q, want redacted", added.APIKey)
	}

	// First registered provider becomes the default.
	req := httptest.NewRequest(http.MethodGet, "/providers", nil)
	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, req)
	var list ProviderListResponse
	_ = json.Unmarshal(rw.Body.Bytes(), &list)
	if len(list.Providers) != 1 || !list.Providers[0].IsDefault {
		t.Fatalf("providers = %+v", list.Providers)
	}

	req = httptest.NewRequest(http.MethodPut, "/providers/"+added.ID+"/default", nil)
	rw = httptest.NewRecorder()
	router.ServeHTTP(rw, req)
	if rw.Code != http.StatusNoContent {
		t.Errorf("set default = %d, want 204", rw.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/providers/"+added.ID, nil)
	rw = httptest.NewRecorder()
	router.ServeHTTP(rw, req)
	if rw.Code != http.StatusNoContent {
		t.Errorf("remove = %d, want 204", rw.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/providers/"+added.ID, nil)
	rw = httptest.NewRecorder()
	router.ServeHTTP(rw, req)
	if rw.Code != http.StatusNotFound {
		t.Errorf("remove again = %d, want 404", rw.Code)
	}
}

func TestProviderTestEndpoint(t *testing.T) {
	_, router, _ := testEnvWith(t, false, "", func(d *practice.Deps) {
		d.Router = provider.NewRouter(
			provider.WithLogger(d.Logger),
			provider.WithAdapter(models.FamilyCustom, stubAdapter{err: fmt.Errorf("backend down")}),
		)
	})

	w := postJSON(t, router, "/providers", map[string]any{"name": "flaky", "family": "custom"})
	var added models.ProviderConfig
	_ = json.Unmarshal(w.Body.Bytes(), &added)

	req := httptest.NewRequest(http.MethodPost, "/providers/"+added.ID+"/test", nil)
	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, req)
	if rw.Code != http.StatusBadGateway {
		t.Errorf("failing probe = %d, want 502, body = %s", rw.Code, rw.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/providers/ghost/test", nil)
	rw = httptest.NewRecorder()
	router.ServeHTTP(rw, req)
	if rw.Code != http.StatusNotFound {
		t.Errorf("probe unknown = %d, want 404", rw.Code)
	}
}

// Query tests.

func TestQueryEndpoint(t *testing.T) {
	_, router, _ := testEnvWith(t, false, "", func(d *practice.Deps) {
		d.Router = provider.NewRouter(
			provider.WithLogger(d.Logger),
			provider.WithAdapter(models.FamilyCustom, stubAdapter{text: "The holding was reversed."}),
		)
	})

	w := postJSON(t, router, "/providers", map[string]any{"name": "stub", "family": "custom"})
	if w.Code != http.StatusCreated {
		t.Fatalf("add provider = %d", w.Code)
	}

	w = postJSON(t, router, "/query", map[string]any{"prompt": "Summarize State v. Hale"})
	if w.Code != http.StatusOK {
		t.Fatalf("query = %d, body = %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	text, _ := resp["text"].(string)
	if text == "" || resp["failed"] == true {
		t.Fatalf("query response = %v", resp)
	}
	if want := "Tennessee-licensed attorney"; !bytes.Contains([]byte(text), []byte(want)) {
		t.Errorf("text missing disclaimer: %q", text)
	}
}

func TestQueryMissingPrompt(t *testing.T) {
	_, router := testEnv(t, "")

	w := postJSON(t, router, "/query", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty prompt = %d, want 400", w.Code)
	}
}

func TestQueryWithoutProviders(t *testing.T) {
	_, router := testEnv(t, "")

	w := postJSON(t, router, "/query", map[string]any{"prompt": "anything"})
	if w.Code != http.StatusNotFound {
		t.Errorf("query without providers = %d, want 404, body = %s", w.Code, w.Body.String())
	}
}

// Compliance and audit tests.

func TestComplianceCheckIsDryRun(t *testing.T) {
	_, router := testEnv(t, "")

	w := postJSON(t, router, "/compliance/check", map[string]any{
		"action":  "create_client",
		"payload": map[string]any{"name": "Acme", "notes": "SSN 123-45-6789"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("check = %d, body = %s", w.Code, w.Body.String())
	}
	var resp CheckResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Pass || resp.Verdict.Severity != models.SeverityWarn {
		t.Errorf("check response = %+v", resp)
	}

	// A dry run writes nothing to the audit trail.
	req := httptest.NewRequest(http.MethodGet, "/audit", nil)
	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, req)
	var events AuditListResponse
	_ = json.Unmarshal(rw.Body.Bytes(), &events)
	if events.Total != 0 {
		t.Errorf("dry run audited: %+v", events.Events)
	}
}

func TestConflictsEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	createRecord(t, router, "client", map[string]any{"name": "Acme Co"})
	createRecord(t, router, "case_file", map[string]any{
		"title":           "Smith v. Acme Co",
		"client":          "Smith",
		"adverse_parties": []string{"Acme Co"},
	})

	req := httptest.NewRequest(http.MethodGet, "/compliance/conflicts", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("conflicts = %d", w.Code)
	}
	var resp ConflictListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Conflicts[0].AdverseParty != "Acme Co" {
		t.Errorf("conflicts = %+v", resp)
	}
}

func TestAuditTrailEndpoints(t *testing.T) {
	_, router := testEnv(t, "")

	// One executed create, one blocked create.
	createRecord(t, router, "case_file", map[string]any{
		"title":           "Acme v. Jones Holdings",
		"client":          "Acme Co",
		"adverse_parties": []string{"Jones Holdings"},
	})
	w := postJSON(t, router, "/records/client", map[string]any{"fields": map[string]any{"name": "Jones Holdings"}})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected block, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/audit?type="+models.EventEthicalBlock, nil)
	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("audit list = %d, body = %s", rw.Code, rw.Body.String())
	}
	var events AuditListResponse
	_ = json.Unmarshal(rw.Body.Bytes(), &events)
	if events.Total != 1 {
		t.Fatalf("blocks audited = %d, want 1", events.Total)
	}

	req = httptest.NewRequest(http.MethodGet, "/audit/report", nil)
	rw = httptest.NewRecorder()
	router.ServeHTTP(rw, req)
	var report audit.Report
	_ = json.Unmarshal(rw.Body.Bytes(), &report)
	if report.Total < 2 || report.ByType[models.EventEthicalBlock] != 1 {
		t.Errorf("report = %+v", report)
	}

	req = httptest.NewRequest(http.MethodGet, "/audit?since=notatime", nil)
	rw = httptest.NewRecorder()
	router.ServeHTTP(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Errorf("bad since = %d, want 400", rw.Code)
	}
}

func TestConfirmationToggle(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/settings/confirmation", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var state ConfirmationResponse
	_ = json.Unmarshal(w.Body.Bytes(), &state)
	if state.Enabled {
		t.Fatal("confirmation enabled by default")
	}

	body, _ := json.Marshal(ConfirmationRequest{Enabled: true})
	putReq := httptest.NewRequest(http.MethodPut, "/settings/confirmation", bytes.NewReader(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, putReq)
	if w.Code != http.StatusOK {
		t.Fatalf("toggle = %d", w.Code)
	}

	// With confirmation on, a create without confirm is cancelled.
	cw := postJSON(t, router, "/records/note", map[string]any{"fields": map[string]any{"text": "x"}})
	if cw.Code != http.StatusConflict {
		t.Fatalf("unconfirmed create = %d, want 409, body = %s", cw.Code, cw.Body.String())
	}
	cw = postJSON(t, router, "/records/note", map[string]any{"fields": map[string]any{"text": "x"}, "confirm": true})
	if cw.Code != http.StatusCreated {
		t.Errorf("confirmed create = %d, want 201, body = %s", cw.Code, cw.Body.String())
	}
}

func TestProfileEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("profile = %d", w.Code)
	}
	var p models.Profile
	_ = json.Unmarshal(w.Body.Bytes(), &p)
	if p.UserRole != "supervising-attorney" {
		t.Errorf("profile = %+v", p)
	}
}

func TestSnapshotAndRestore(t *testing.T) {
	_, router, d := testEnvWith(t, false, "")

	created := createRecord(t, router, "note", map[string]any{"text": "kept"})

	w := postJSON(t, router, "/snapshot", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("snapshot = %d, body = %s", w.Code, w.Body.String())
	}

	// Mutate behind the autosave's back, then restore.
	if _, err := d.Store.Create(models.KindNote, map[string]any{"text": "stray"}, nil, nil); err != nil {
		t.Fatal(err)
	}

	w = postJSON(t, router, "/restore", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("restore = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SnapshotResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "restored" {
		t.Errorf("restore response = %+v", resp)
	}

	req := httptest.NewRequest(http.MethodGet, "/records/note", nil)
	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, req)
	var list RecordListResponse
	_ = json.Unmarshal(rw.Body.Bytes(), &list)
	if list.Total != 1 || list.Records[0].ID != created.Record.ID {
		t.Errorf("restored notes = %+v", list.Records)
	}
}

// Training and ingestion tests.

func TestTrainingFlow(t *testing.T) {
	_, router := testEnv(t, "")

	w := postJSON(t, router, "/training/examples", map[string]any{
		"data_type": "qa", "data": map[string]any{"q": "venue?"}, "label": "civil",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("collect = %d, body = %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/training/examples", nil)
	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, req)
	var examples ExampleListResponse
	_ = json.Unmarshal(rw.Body.Bytes(), &examples)
	if examples.Total != 1 {
		t.Fatalf("examples = %+v", examples)
	}

	// Collected examples mirror into feedback records.
	req = httptest.NewRequest(http.MethodGet, "/records/feedback?tag=training", nil)
	rw = httptest.NewRecorder()
	router.ServeHTTP(rw, req)
	var mirrored RecordListResponse
	_ = json.Unmarshal(rw.Body.Bytes(), &mirrored)
	if mirrored.Total != 1 {
		t.Errorf("mirrored feedback = %d, want 1", mirrored.Total)
	}

	w = postJSON(t, router, "/training/train", map[string]any{"model_type": "classifier"})
	if w.Code != http.StatusCreated {
		t.Fatalf("train = %d, body = %s", w.Code, w.Body.String())
	}
	var info training.ModelInfo
	_ = json.Unmarshal(w.Body.Bytes(), &info)
	if info.Version != 1 || info.TrainedOn != 1 {
		t.Errorf("model info = %+v", info)
	}

	req = httptest.NewRequest(http.MethodGet, "/training/models/classifier", nil)
	rw = httptest.NewRecorder()
	router.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("versions = %d", rw.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/training/models/ghost", nil)
	rw = httptest.NewRecorder()
	router.ServeHTTP(rw, req)
	if rw.Code != http.StatusNotFound {
		t.Errorf("unknown model = %d, want 404", rw.Code)
	}

	w = postJSON(t, router, "/training/evaluate", map[string]any{"model_type": "classifier"})
	if w.Code != http.StatusOK {
		t.Fatalf("evaluate = %d, body = %s", w.Code, w.Body.String())
	}
	w = postJSON(t, router, "/training/evaluate", map[string]any{"model_type": "ghost"})
	if w.Code != http.StatusNotFound {
		t.Errorf("evaluate unknown = %d, want 404", w.Code)
	}
}

func TestTrainingExportImport(t *testing.T) {
	_, router := testEnv(t, "")

	w := postJSON(t, router, "/training/examples", map[string]any{"data_type": "qa", "label": "ok"})
	if w.Code != http.StatusCreated {
		t.Fatalf("collect = %d", w.Code)
	}

	path := filepath.Join(t.TempDir(), "examples.json")
	w = postJSON(t, router, "/training/export", map[string]any{"path": path})
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d, body = %s", w.Code, w.Body.String())
	}
	w = postJSON(t, router, "/training/import", map[string]any{"path": path})
	if w.Code != http.StatusOK {
		t.Fatalf("import = %d, body = %s", w.Code, w.Body.String())
	}
	w = postJSON(t, router, "/training/export", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("export no path = %d, want 400", w.Code)
	}
}

func TestIngestCaselaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"count": 2,
			"next":  "",
			"results": []map[string]any{
				{"case_name": "State v. Hale", "plain_text": "opinion one", "absolute_url": "/opinion/1/"},
				{"case_name": "State v. Poe", "plain_text": "opinion two", "absolute_url": "/opinion/2/"},
			},
		})
	}))
	defer srv.Close()

	_, router, _ := testEnvWith(t, false, "", func(d *practice.Deps) {
		d.Caselaw = sources.NewClient(sources.WithBaseURL(srv.URL), sources.WithLogger(d.Logger))
	})

	w := postJSON(t, router, "/caselaw/ingest", map[string]any{"max_pages": 1})
	if w.Code != http.StatusOK {
		t.Fatalf("ingest = %d, body = %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["fetched"] != float64(2) || resp["stored"] != float64(2) {
		t.Fatalf("ingest response = %v", resp)
	}

	req := httptest.NewRequest(http.MethodGet, "/records/note?tag=caselaw", nil)
	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, req)
	var list RecordListResponse
	_ = json.Unmarshal(rw.Body.Bytes(), &list)
	if list.Total != 2 {
		t.Errorf("stored notes = %d, want 2", list.Total)
	}
}

func TestIngestCaselawUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, router, _ := testEnvWith(t, false, "", func(d *practice.Deps) {
		d.Caselaw = sources.NewClient(sources.WithBaseURL(srv.URL), sources.WithLogger(d.Logger))
	})

	w := postJSON(t, router, "/caselaw/ingest", nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("failed ingest = %d, want 502, body = %s", w.Code, w.Body.String())
	}
}

// Auth middleware tests.

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	body, _ := json.Marshal(map[string]any{"fields": map[string]any{"name": "Acme"}})
	req := httptest.NewRequest(http.MethodPost, "/records/client", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201, body = %s", w.Code, w.Body.String())
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/records/client", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/records/client", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/records/client", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func TestActorHeaderReachesAudit(t *testing.T) {
	_, router := testEnv(t, "")

	body, _ := json.Marshal(map[string]any{"fields": map[string]any{"name": "Acme"}})
	req := httptest.NewRequest(http.MethodPost, "/records/client", bytes.NewReader(body))
	req.Header.Set("X-Actor", "paralegal-jm")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/audit?actor=paralegal-jm", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var events AuditListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &events)
	if events.Total == 0 {
		t.Error("actor header did not reach the audit trail")
	}
}

// SSE endpoint auth tests.

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := testEnvWithSSE(t, true, "secret")

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router := testEnvWithSSE(t, true, "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

// testEnvWithSSE mounts a stub SSE handler to test auth on /events.
func testEnvWithSSE(t *testing.T, authEnabled bool, token string) http.Handler {
	t.Helper()

	svc, _, _ := testEnvWith(t, authEnabled, token)
	sseHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
	return NewRouter(svc, authEnabled, token, sseHandler)
}
