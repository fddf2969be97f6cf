// Package recordstore holds the in-memory practice records grouped by kind.
// All mutations validate the full post-merge field map before committing,
// so a stored record is never observable in an invalid state.
package recordstore

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/tiwaz/internal/apperr"
	"github.com/starford/tiwaz/internal/models"
)

// Store keeps one ordered collection per registered kind. Reads return
// deep copies; callers never share memory with the store.
type Store struct {
	mu          sync.RWMutex
	validators  map[models.Kind]Validator
	collections map[models.Kind][]models.Record

	now   func() time.Time
	newID func() string
}

// New builds a store over the given validator registry. Only registered
// kinds accept writes.
func New(validators map[models.Kind]Validator) *Store {
	s := &Store{
		validators:  validators,
		collections: make(map[models.Kind][]models.Record, len(validators)),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for kind := range validators {
		s.collections[kind] = nil
	}
	return s
}

// Kinds lists the registered kinds in stable order.
func (s *Store) Kinds() []models.Kind {
	kinds := make([]models.Kind, 0, len(s.validators))
	for kind := range s.validators {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Create validates fields for the kind, assigns a fresh ID, and appends
// the record to its collection. Nothing is stored when validation fails.
func (s *Store) Create(kind models.Kind, fields map[string]any, tags, refs []string) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.validators[kind]
	if !ok {
		return models.Record{}, fmt.Errorf("recordstore: create %q: %w", kind, apperr.ErrKindUnknown)
	}
	merged := copyFields(fields)
	if err := v.Validate(merged); err != nil {
		return models.Record{}, err
	}
	now := s.now().UTC()
	rec := models.Record{
		ID:             s.newID(),
		Kind:           kind,
		Fields:         merged,
		ComplianceTags: dedup(tags),
		GuidelineRefs:  dedup(refs),
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.collections[kind] = append(s.collections[kind], rec)
	return rec.Clone(), nil
}

// Get returns the record with the given ID, or apperr.ErrNotFound.
func (s *Store) Get(kind models.Kind, id string) (models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.collections[kind] {
		if rec.ID == id {
			return rec.Clone(), nil
		}
	}
	return models.Record{}, fmt.Errorf("recordstore: get %s/%s: %w", kind, id, apperr.ErrNotFound)
}

// Update merges patch into the record's fields and validates the merged
// result before committing. An empty patch is a no-op that returns the
// record unchanged. A nil patch value removes the key. ID and kind are
// immutable; those keys are ignored if present in the patch.
func (s *Store) Update(kind models.Kind, id string, patch map[string]any) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.validators[kind]
	if !ok {
		return models.Record{}, fmt.Errorf("recordstore: update %q: %w", kind, apperr.ErrKindUnknown)
	}
	idx := -1
	for i, rec := range s.collections[kind] {
		if rec.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.Record{}, fmt.Errorf("recordstore: update %s/%s: %w", kind, id, apperr.ErrNotFound)
	}
	cur := s.collections[kind][idx]
	if len(patch) == 0 {
		return cur.Clone(), nil
	}

	merged := copyFields(cur.Fields)
	for key, val := range patch {
		if key == "id" || key == "kind" {
			continue
		}
		if val == nil {
			delete(merged, key)
			continue
		}
		merged[key] = val
	}
	if err := v.Validate(merged); err != nil {
		return models.Record{}, err
	}

	cur.Fields = merged
	cur.Version++
	cur.UpdatedAt = s.now().UTC()
	s.collections[kind][idx] = cur
	return cur.Clone(), nil
}

// Delete removes the record if present and reports whether it existed.
// Deleting an absent or already-deleted record is not an error.
func (s *Store) Delete(kind models.Kind, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collections[kind]
	for i, rec := range col {
		if rec.ID == id {
			s.collections[kind] = append(col[:i:i], col[i+1:]...)
			return true
		}
	}
	return false
}

// List returns the kind's records in insertion order, optionally filtered
// by pred. An unknown kind lists as empty.
func (s *Store) List(kind models.Kind, pred func(models.Record) bool) []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Record, 0, len(s.collections[kind]))
	for _, rec := range s.collections[kind] {
		if pred != nil && !pred(rec) {
			continue
		}
		out = append(out, rec.Clone())
	}
	return out
}

// Tagged returns the kind's records carrying the compliance tag.
func (s *Store) Tagged(kind models.Kind, tag string) []models.Record {
	return s.List(kind, func(r models.Record) bool { return r.HasTag(tag) })
}

// Referencing returns the kind's records linked to the guideline reference.
func (s *Store) Referencing(kind models.Kind, ref string) []models.Record {
	return s.List(kind, func(r models.Record) bool { return r.HasGuidelineRef(ref) })
}

// MatchingText builds a predicate that matches records whose rendered
// field values contain q, case-insensitively.
func MatchingText(q string) func(models.Record) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	return func(r models.Record) bool {
		if q == "" {
			return true
		}
		for _, val := range r.Fields {
			if strings.Contains(strings.ToLower(fmt.Sprint(val)), q) {
				return true
			}
		}
		return false
	}
}

// Counts reports the number of records per registered kind.
func (s *Store) Counts() map[models.Kind]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.Kind]int, len(s.collections))
	for kind, col := range s.collections {
		counts[kind] = len(col)
	}
	return counts
}

// Export deep-copies every collection, preserving insertion order. The
// result is safe to serialize while the store keeps serving writes.
func (s *Store) Export() map[models.Kind][]models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[models.Kind][]models.Record, len(s.collections))
	for kind, col := range s.collections {
		cloned := make([]models.Record, len(col))
		for i, rec := range col {
			cloned[i] = rec.Clone()
		}
		out[kind] = cloned
	}
	return out
}

// Replace swaps in a full set of collections, as when restoring a
// snapshot. The input is checked in full before any state changes, so a
// rejected replace leaves the store exactly as it was. Kinds absent from
// the input reset to empty.
func (s *Store) Replace(collections map[models.Kind][]models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[models.Kind][]models.Record, len(s.validators))
	for kind := range s.validators {
		next[kind] = nil
	}
	for kind, col := range collections {
		if _, ok := s.validators[kind]; !ok {
			return fmt.Errorf("recordstore: replace: kind %q: %w", kind, apperr.ErrKindUnknown)
		}
		seen := make(map[string]struct{}, len(col))
		cloned := make([]models.Record, len(col))
		for i, rec := range col {
			if rec.ID == "" {
				return fmt.Errorf("recordstore: replace: %s[%d]: missing id", kind, i)
			}
			if rec.Kind != kind {
				return fmt.Errorf("recordstore: replace: %s[%d]: kind mismatch %q", kind, i, rec.Kind)
			}
			if _, dup := seen[rec.ID]; dup {
				return fmt.Errorf("recordstore: replace: %s[%d]: duplicate id %s", kind, i, rec.ID)
			}
			seen[rec.ID] = struct{}{}
			cloned[i] = rec.Clone()
		}
		next[kind] = cloned
	}
	s.collections = next
	return nil
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// dedup preserves first-seen order and drops blanks.
func dedup(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
