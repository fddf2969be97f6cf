// Package apperr defines the error taxonomy shared across Tiwaz components.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrKindUnknown     = errors.New("unknown record kind")
	ErrSnapshotInvalid = errors.New("snapshot structurally invalid")
)

// ValidationError reports a rejected mutation. Fields maps field names to
// human-readable problems; the payload is fixable by the caller and the
// store is guaranteed unchanged.
type ValidationError struct {
	Kind   string
	Fields map[string]string
}

// Error implements error with a stable, sorted field listing.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: validation failed", e.Kind)
	}
	names := make([]string, 0, len(e.Fields))
	for n := range e.Fields {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, n+": "+e.Fields[n])
	}
	return fmt.Sprintf("%s: validation failed: %s", e.Kind, strings.Join(parts, "; "))
}

// FieldNames returns the offending field names, sorted.
func (e *ValidationError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for n := range e.Fields {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
