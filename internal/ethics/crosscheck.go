package ethics

import (
	"strings"

	"github.com/starford/tiwaz/internal/models"
)

// Conflict pairs a client with the case file whose adverse parties name
// that client.
type Conflict struct {
	ClientID     string `json:"client_id"`
	ClientName   string `json:"client_name"`
	CaseFileID   string `json:"case_file_id"`
	CaseTitle    string `json:"case_title"`
	AdverseParty string `json:"adverse_party"`
}

// ConflictCrosscheck sweeps every client against the adverse parties of
// every case file and reports each collision. Matching ignores case and
// surrounding whitespace.
func ConflictCrosscheck(clients, caseFiles []models.Record) []Conflict {
	var conflicts []Conflict
	for _, cf := range caseFiles {
		for _, adverse := range cf.StringsField("adverse_parties") {
			for _, client := range clients {
				name := client.StringField("name")
				if name == "" {
					continue
				}
				if strings.EqualFold(strings.TrimSpace(name), strings.TrimSpace(adverse)) {
					conflicts = append(conflicts, Conflict{
						ClientID:     client.ID,
						ClientName:   name,
						CaseFileID:   cf.ID,
						CaseTitle:    cf.StringField("title"),
						AdverseParty: adverse,
					})
				}
			}
		}
	}
	return conflicts
}

// AdverseUnion collects the distinct adverse parties named across the
// given case files, preserving first-seen order.
func AdverseUnion(caseFiles []models.Record) []string {
	seen := make(map[string]struct{})
	var union []string
	for _, cf := range caseFiles {
		for _, adverse := range cf.StringsField("adverse_parties") {
			adverse = strings.TrimSpace(adverse)
			if adverse == "" {
				continue
			}
			key := strings.ToLower(adverse)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			union = append(union, adverse)
		}
	}
	return union
}
