package models

// Severity orders compliance outcomes: block > warn > pass.
type Severity int

const (
	SeverityPass Severity = iota
	SeverityWarn
	SeverityBlock
)

// String returns the wire form used in verdicts and audit details.
func (s Severity) String() string {
	switch s {
	case SeverityWarn:
		return "warn"
	case SeverityBlock:
		return "block"
	default:
		return "pass"
	}
}

// MarshalText implements encoding.TextMarshaler so severities serialize
// as their wire form inside JSON documents.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "warn":
		*s = SeverityWarn
	case "block":
		*s = SeverityBlock
	default:
		*s = SeverityPass
	}
	return nil
}

// Verdict is the compliance engine's resolved outcome for one evaluation.
// RuleID and Reference are empty for a clean pass.
type Verdict struct {
	Severity    Severity `json:"severity"`
	Explanation string   `json:"explanation"`
	RuleID      string   `json:"rule_id,omitempty"`
	Reference   string   `json:"reference,omitempty"`
}

// Pass reports whether the verdict allows the action without ceremony.
func (v Verdict) Pass() bool { return v.Severity == SeverityPass }

// Blocked reports whether the action must not run.
func (v Verdict) Blocked() bool { return v.Severity == SeverityBlock }
