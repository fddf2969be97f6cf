// Package models defines the domain types for Tiwaz.
package models

import "time"

// Kind is the schema tag identifying which validator and collection a
// record belongs to.
type Kind string

// Built-in record kinds. The store accepts any kind present in its
// validator registry; these are the ones registered at startup.
const (
	KindClient    Kind = "client"
	KindCaseFile  Kind = "case_file"
	KindContract  Kind = "contract"
	KindNote      Kind = "note"
	KindFeedback  Kind = "feedback"
	KindGuideline Kind = "guideline"
)

// Kinds returns the built-in kinds in registration order.
func Kinds() []Kind {
	return []Kind{KindClient, KindCaseFile, KindContract, KindNote, KindFeedback, KindGuideline}
}

// Record is a typed, schema-tagged field map held by the record store.
//
// ID is assigned by the store on creation and never changes or gets
// reused. Version starts at 1 and increments on every effective update.
type Record struct {
	ID             string         `json:"id"`
	Kind           Kind           `json:"kind"`
	Fields         map[string]any `json:"fields"`
	ComplianceTags []string       `json:"compliance_tags,omitempty"`
	GuidelineRefs  []string       `json:"guideline_refs,omitempty"`
	Version        int            `json:"version"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// HasTag reports whether the record carries the given compliance tag.
func (r Record) HasTag(tag string) bool {
	for _, t := range r.ComplianceTags {
		if t == tag {
			return true
		}
	}
	return false
}

// HasGuidelineRef reports whether the record references the given guideline.
func (r Record) HasGuidelineRef(ref string) bool {
	for _, g := range r.GuidelineRefs {
		if g == ref {
			return true
		}
	}
	return false
}

// StringField returns the named field as a string, or "" when absent or
// not a string.
func (r Record) StringField(name string) string {
	v, ok := r.Fields[name]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// StringsField returns the named field as a string slice. JSON decoding
// yields []any, so both representations are accepted.
func (r Record) StringsField(name string) []string {
	switch v := r.Fields[name].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Clone returns a deep-enough copy: the field map and tag slices are
// copied so callers can hold results without aliasing store state.
// Nested field values are shared; mutations go through the store.
func (r Record) Clone() Record {
	out := r
	if r.Fields != nil {
		out.Fields = make(map[string]any, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	out.ComplianceTags = append([]string(nil), r.ComplianceTags...)
	out.GuidelineRefs = append([]string(nil), r.GuidelineRefs...)
	return out
}
