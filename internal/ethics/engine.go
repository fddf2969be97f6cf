// Package ethics evaluates record payloads and actions against a registry
// of compliance rules and reduces the results to a single verdict.
package ethics

import (
	"strings"

	"github.com/starford/tiwaz/internal/models"
)

// Action names a guarded operation, such as "create_client" or "run_query".
type Action string

const (
	ActionRunQuery        Action = "run_query"
	ActionIngestCaselaw   Action = "ingest_caselaw"
	ActionRestoreSnapshot Action = "restore_snapshot"
)

// CreateAction returns the action name for creating a record of the kind.
func CreateAction(kind models.Kind) Action { return Action("create_" + string(kind)) }

// UpdateAction returns the action name for updating a record of the kind.
func UpdateAction(kind models.Kind) Action { return Action("update_" + string(kind)) }

// DeleteAction returns the action name for deleting a record of the kind.
func DeleteAction(kind models.Kind) Action { return Action("delete_" + string(kind)) }

// Actor identifies who is performing a guarded action.
type Actor struct {
	Name          string
	Jurisdictions []string
}

// AuthorizedIn reports whether the actor may act in the jurisdiction.
// Comparison ignores case and surrounding whitespace.
func (a *Actor) AuthorizedIn(jurisdiction string) bool {
	if a == nil {
		return false
	}
	want := strings.TrimSpace(jurisdiction)
	for _, j := range a.Jurisdictions {
		if strings.EqualFold(strings.TrimSpace(j), want) {
			return true
		}
	}
	return false
}

// Context carries the evaluation facts a rule may consult beyond the
// payload itself.
type Context struct {
	// AdverseParties is the set of parties adverse to the practice,
	// typically the union across all open case files.
	AdverseParties []string
	// Jurisdiction is the jurisdiction the action takes place in, when
	// known. Empty means not applicable.
	Jurisdiction string
}

// CheckFunc inspects a payload and reports a severity with an explanation.
// Checks must not mutate the payload and must be deterministic.
type CheckFunc func(payload map[string]any, actor *Actor, evalCtx Context) (models.Severity, string)

// Rule is one registered compliance check.
type Rule struct {
	// ID identifies the rule in verdicts and audit details.
	ID string
	// Reference cites the professional-conduct source behind the rule.
	Reference string
	// Actions restricts the rule to the listed actions. Nil applies to all.
	Actions []Action
	// Check produces the rule's severity for a payload.
	Check CheckFunc
}

func (r Rule) appliesTo(action Action) bool {
	if len(r.Actions) == 0 {
		return true
	}
	for _, a := range r.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Engine holds an ordered, append-only rule registry. Register during
// startup; Evaluate is safe for concurrent use once registration is done.
type Engine struct {
	rules []Rule
}

// New builds an engine over the given rules, evaluated in order.
func New(rules ...Rule) *Engine {
	return &Engine{rules: append([]Rule(nil), rules...)}
}

// Register appends a rule to the registry. Existing rules are never
// reordered or replaced.
func (e *Engine) Register(r Rule) {
	e.rules = append(e.rules, r)
}

// Rules returns a copy of the registry in registration order.
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Evaluate runs every rule applicable to the action and reduces the
// results to the most severe verdict. Ties keep the first registered
// rule's result. When no rule fires the verdict passes with an empty
// explanation.
func (e *Engine) Evaluate(payload map[string]any, action Action, actor *Actor, evalCtx Context) models.Verdict {
	best := models.Verdict{}
	for _, rule := range e.rules {
		if !rule.appliesTo(action) || rule.Check == nil {
			continue
		}
		severity, explanation := rule.Check(payload, actor, evalCtx)
		if severity <= models.SeverityPass {
			continue
		}
		if severity > best.Severity {
			best = models.Verdict{
				Severity:    severity,
				Explanation: explanation,
				RuleID:      rule.ID,
				Reference:   rule.Reference,
			}
		}
		if best.Severity == models.SeverityBlock {
			// Nothing outranks a block; later rules cannot change the outcome.
			break
		}
	}
	return best
}
