package ethics

import (
	"testing"

	"github.com/starford/tiwaz/internal/models"
)

func TestConflictCrosscheck(t *testing.T) {
	clients := []models.Record{
		{ID: "c1", Kind: models.KindClient, Fields: map[string]any{"name": "Acme Corp"}},
		{ID: "c2", Kind: models.KindClient, Fields: map[string]any{"name": "Jones Holdings"}},
	}
	caseFiles := []models.Record{
		{ID: "f1", Kind: models.KindCaseFile, Fields: map[string]any{
			"title":           "Smith v. Jones Holdings",
			"adverse_parties": []any{"jones holdings", "Doe"},
		}},
		{ID: "f2", Kind: models.KindCaseFile, Fields: map[string]any{
			"title": "In re Boone",
		}},
	}

	conflicts := ConflictCrosscheck(clients, caseFiles)
	if len(conflicts) != 1 {
		t.Fatalf("conflicts = %+v, want exactly one", conflicts)
	}
	c := conflicts[0]
	if c.ClientID != "c2" || c.CaseFileID != "f1" || c.AdverseParty != "jones holdings" {
		t.Fatalf("conflict = %+v", c)
	}
}

func TestConflictCrosscheckEmptyInputs(t *testing.T) {
	if got := ConflictCrosscheck(nil, nil); len(got) != 0 {
		t.Fatalf("conflicts = %v, want none", got)
	}
}

func TestAdverseUnion(t *testing.T) {
	caseFiles := []models.Record{
		{Fields: map[string]any{"adverse_parties": []any{"Jones", "Doe "}}},
		{Fields: map[string]any{"adverse_parties": []any{"jones", "Roe"}}},
		{Fields: map[string]any{}},
	}

	union := AdverseUnion(caseFiles)
	if len(union) != 3 {
		t.Fatalf("union = %v, want 3 distinct parties", union)
	}
	if union[0] != "Jones" || union[1] != "Doe" || union[2] != "Roe" {
		t.Fatalf("union order = %v", union)
	}
}
