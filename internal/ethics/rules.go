package ethics

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/starford/tiwaz/internal/models"
)

// Rule IDs for the built-in set.
const (
	RuleConfidentiality      = "confidentiality"
	RuleConflictOfInterest   = "conflict-of-interest"
	RuleUnauthorizedPractice = "unauthorized-practice"
)

// DefaultSensitivePatterns is the out-of-the-box term list scanned by the
// confidentiality rule. Operators extend it via configuration.
var DefaultSensitivePatterns = []string{
	"SSN",
	"Social Security",
	"DOB",
	"Date of Birth",
	"medical",
	"diagnosis",
}

// relationshipActions are the actions that establish or change who the
// practice represents.
var relationshipActions = []Action{
	CreateAction(models.KindClient),
	UpdateAction(models.KindClient),
	CreateAction(models.KindCaseFile),
	UpdateAction(models.KindCaseFile),
}

// jurisdictionActions are the actions whose legitimacy depends on where
// they happen.
var jurisdictionActions = []Action{
	CreateAction(models.KindCaseFile),
	UpdateAction(models.KindCaseFile),
	ActionRunQuery,
}

// Builtins returns the standard rule set in canonical order. An empty
// sensitive list falls back to DefaultSensitivePatterns.
func Builtins(sensitive []string) []Rule {
	if len(sensitive) == 0 {
		sensitive = DefaultSensitivePatterns
	}
	return []Rule{
		ConfidentialityRule(sensitive),
		ConflictOfInterestRule(),
		UnauthorizedPracticeRule(),
	}
}

// NewDefaultEngine builds an engine preloaded with Builtins.
func NewDefaultEngine(sensitive []string) *Engine {
	return New(Builtins(sensitive)...)
}

// ConfidentialityRule warns when the payload's textual rendering contains
// any of the given terms, case-insensitively. Applies to every action.
func ConfidentialityRule(patterns []string) Rule {
	terms := append([]string(nil), patterns...)
	return Rule{
		ID:        RuleConfidentiality,
		Reference: "ABA Model Rule 1.6",
		Check: func(payload map[string]any, _ *Actor, _ Context) (models.Severity, string) {
			text := strings.ToLower(renderPayload(payload))
			var hits []string
			for _, term := range terms {
				if term == "" {
					continue
				}
				if strings.Contains(text, strings.ToLower(term)) {
					hits = append(hits, term)
				}
			}
			if len(hits) == 0 {
				return models.SeverityPass, ""
			}
			return models.SeverityWarn, fmt.Sprintf(
				"payload contains sensitive terms (%s); confirm disclosure is authorized before proceeding",
				strings.Join(hits, ", "))
		},
	}
}

// ConflictOfInterestRule blocks relationship-affecting actions whose named
// party appears in the adverse-party set.
func ConflictOfInterestRule() Rule {
	return Rule{
		ID:        RuleConflictOfInterest,
		Reference: "ABA Model Rule 1.7",
		Actions:   relationshipActions,
		Check: func(payload map[string]any, _ *Actor, evalCtx Context) (models.Severity, string) {
			if len(evalCtx.AdverseParties) == 0 {
				return models.SeverityPass, ""
			}
			for _, party := range namedParties(payload) {
				for _, adverse := range evalCtx.AdverseParties {
					if strings.EqualFold(strings.TrimSpace(party), strings.TrimSpace(adverse)) {
						return models.SeverityBlock, fmt.Sprintf(
							"representing %q conflicts with an adverse party of an existing matter", party)
					}
				}
			}
			return models.SeverityPass, ""
		},
	}
}

// UnauthorizedPracticeRule blocks jurisdiction-sensitive actions outside
// the actor's authorized jurisdictions.
func UnauthorizedPracticeRule() Rule {
	return Rule{
		ID:        RuleUnauthorizedPractice,
		Reference: "ABA Model Rule 5.5",
		Actions:   jurisdictionActions,
		Check: func(_ map[string]any, actor *Actor, evalCtx Context) (models.Severity, string) {
			if evalCtx.Jurisdiction == "" {
				return models.SeverityPass, ""
			}
			if actor.AuthorizedIn(evalCtx.Jurisdiction) {
				return models.SeverityPass, ""
			}
			return models.SeverityBlock, fmt.Sprintf(
				"not authorized to practice in %s", evalCtx.Jurisdiction)
		},
	}
}

// namedParties extracts the party names a payload introduces or changes.
func namedParties(payload map[string]any) []string {
	var parties []string
	for _, key := range []string{"name", "client", "counterparty"} {
		if s, ok := payload[key].(string); ok && s != "" {
			parties = append(parties, s)
		}
	}
	return parties
}

// renderPayload produces a stable textual form of the payload for pattern
// scanning. JSON keeps nested values visible; the fallback covers values
// JSON cannot encode.
func renderPayload(payload map[string]any) string {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprint(payload)
	}
	return string(b)
}
