// Package storage persists the full application state as one JSON
// document and reloads it when the file changes on disk.
package storage

import (
	"encoding/json"
	"fmt"

	"github.com/starford/tiwaz/internal/apperr"
	"github.com/starford/tiwaz/internal/models"
)

// Snapshot is the persistence document: a single JSON object whose
// top-level keys are the record kinds plus "providers" and "profiles".
// Absent keys decode as empty collections; unknown keys are rejected.
type Snapshot struct {
	Collections map[models.Kind][]models.Record
	Providers   []models.ProviderConfig
	Profiles    []models.Profile
}

// Reserved top-level keys that are not record kinds.
const (
	providersKey = "providers"
	profilesKey  = "profiles"
)

// MarshalJSON flattens the snapshot into the single-document shape. Every
// registered kind appears even when empty, so readers of the file see the
// full schema.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(s.Collections)+2)
	for _, kind := range models.Kinds() {
		records := s.Collections[kind]
		if records == nil {
			records = []models.Record{}
		}
		doc[string(kind)] = records
	}
	providers := s.Providers
	if providers == nil {
		providers = []models.ProviderConfig{}
	}
	profiles := s.Profiles
	if profiles == nil {
		profiles = []models.Profile{}
	}
	doc[providersKey] = providers
	doc[profilesKey] = profiles
	return json.Marshal(doc)
}

// UnmarshalJSON decodes the single-document shape, tolerating absent keys
// and rejecting unknown ones with apperr.ErrSnapshotInvalid.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("storage: decode snapshot: %w: %v", apperr.ErrSnapshotInvalid, err)
	}

	out := Snapshot{Collections: make(map[models.Kind][]models.Record)}
	for key, val := range raw {
		switch key {
		case providersKey:
			if err := json.Unmarshal(val, &out.Providers); err != nil {
				return fmt.Errorf("storage: decode providers: %w: %v", apperr.ErrSnapshotInvalid, err)
			}
		case profilesKey:
			if err := json.Unmarshal(val, &out.Profiles); err != nil {
				return fmt.Errorf("storage: decode profiles: %w: %v", apperr.ErrSnapshotInvalid, err)
			}
		default:
			kind := models.Kind(key)
			if !knownKind(kind) {
				return fmt.Errorf("storage: unknown snapshot key %q: %w", key, apperr.ErrSnapshotInvalid)
			}
			var records []models.Record
			if err := json.Unmarshal(val, &records); err != nil {
				return fmt.Errorf("storage: decode %s records: %w: %v", key, apperr.ErrSnapshotInvalid, err)
			}
			out.Collections[kind] = records
		}
	}
	*s = out
	return nil
}

func knownKind(kind models.Kind) bool {
	for _, k := range models.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}
