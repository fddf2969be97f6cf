package ethics

import (
	"strings"
	"testing"

	"github.com/starford/tiwaz/internal/models"
)

func TestConfidentialityRuleMatchesCaseInsensitively(t *testing.T) {
	rule := ConfidentialityRule(DefaultSensitivePatterns)

	sev, explain := rule.Check(map[string]any{
		"text": "client social security number on file",
	}, nil, Context{})
	if sev != models.SeverityWarn {
		t.Fatalf("severity = %v, want warn", sev)
	}
	if !strings.Contains(explain, "Social Security") {
		t.Fatalf("explanation %q does not name the matched term", explain)
	}

	sev, _ = rule.Check(map[string]any{"text": "routine scheduling note"}, nil, Context{})
	if sev != models.SeverityPass {
		t.Fatalf("severity = %v for clean payload, want pass", sev)
	}
}

func TestConfidentialityRuleScansNestedValues(t *testing.T) {
	rule := ConfidentialityRule([]string{"diagnosis"})

	sev, _ := rule.Check(map[string]any{
		"attachments": []any{map[string]any{"summary": "Diagnosis: pending"}},
	}, nil, Context{})
	if sev != models.SeverityWarn {
		t.Fatalf("severity = %v, want warn on nested match", sev)
	}
}

func TestConflictOfInterestRule(t *testing.T) {
	rule := ConflictOfInterestRule()
	evalCtx := Context{AdverseParties: []string{"Jones Holdings", "  Roe  "}}

	sev, explain := rule.Check(map[string]any{"name": "jones holdings"}, nil, evalCtx)
	if sev != models.SeverityBlock {
		t.Fatalf("severity = %v, want block", sev)
	}
	if explain == "" {
		t.Fatal("block verdict needs an explanation")
	}

	sev, _ = rule.Check(map[string]any{"client": "Roe"}, nil, evalCtx)
	if sev != models.SeverityBlock {
		t.Fatalf("client field not checked: severity = %v", sev)
	}

	sev, _ = rule.Check(map[string]any{"name": "Unrelated"}, nil, evalCtx)
	if sev != models.SeverityPass {
		t.Fatalf("severity = %v for unrelated party, want pass", sev)
	}

	sev, _ = rule.Check(map[string]any{"name": "Jones Holdings"}, nil, Context{})
	if sev != models.SeverityPass {
		t.Fatalf("severity = %v with no adverse set, want pass", sev)
	}
}

func TestConflictRuleActionScope(t *testing.T) {
	e := New(ConflictOfInterestRule())
	evalCtx := Context{AdverseParties: []string{"Jones"}}
	payload := map[string]any{"name": "Jones"}

	if v := e.Evaluate(payload, CreateAction(models.KindClient), nil, evalCtx); !v.Blocked() {
		t.Fatalf("client create not blocked: %+v", v)
	}
	// A note mentioning the party is not a relationship change.
	if v := e.Evaluate(payload, CreateAction(models.KindNote), nil, evalCtx); v.Blocked() {
		t.Fatalf("note create blocked: %+v", v)
	}
}

func TestUnauthorizedPracticeRule(t *testing.T) {
	rule := UnauthorizedPracticeRule()
	actor := &Actor{Name: "counsel", Jurisdictions: []string{"Tennessee"}}

	sev, _ := rule.Check(nil, actor, Context{Jurisdiction: "tennessee"})
	if sev != models.SeverityPass {
		t.Fatalf("severity = %v for authorized jurisdiction, want pass", sev)
	}

	sev, explain := rule.Check(nil, actor, Context{Jurisdiction: "Nevada"})
	if sev != models.SeverityBlock {
		t.Fatalf("severity = %v, want block", sev)
	}
	if !strings.Contains(explain, "Nevada") {
		t.Fatalf("explanation %q does not name the jurisdiction", explain)
	}

	// Unknown actor cannot demonstrate authorization.
	sev, _ = rule.Check(nil, nil, Context{Jurisdiction: "Nevada"})
	if sev != models.SeverityBlock {
		t.Fatalf("severity = %v for nil actor, want block", sev)
	}

	sev, _ = rule.Check(nil, nil, Context{})
	if sev != models.SeverityPass {
		t.Fatalf("severity = %v with no jurisdiction in play, want pass", sev)
	}
}

func TestBuiltinsOrderAndFallback(t *testing.T) {
	rules := Builtins(nil)
	want := []string{RuleConfidentiality, RuleConflictOfInterest, RuleUnauthorizedPractice}
	if got := ruleIDs(rules); len(got) != len(want) {
		t.Fatalf("rules = %v", got)
	} else {
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("rules = %v, want %v", got, want)
			}
		}
	}
}
