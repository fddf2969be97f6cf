package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/starford/tiwaz/internal/audit"
	"github.com/starford/tiwaz/internal/checksum"
	"github.com/starford/tiwaz/internal/models"
)

// RecordSource is the record-store surface the manager persists.
type RecordSource interface {
	Export() map[models.Kind][]models.Record
	Replace(map[models.Kind][]models.Record) error
}

// ProviderSource is the provider-registry surface the manager persists.
type ProviderSource interface {
	Export() []models.ProviderConfig
	Replace([]models.ProviderConfig) error
}

// Manager saves and restores the whole application state against one
// snapshot file. Save is atomic on disk; Load is atomic in memory (prior
// state survives any rejected restore).
type Manager struct {
	mu        sync.Mutex
	path      string
	records   RecordSource
	providers ProviderSource
	profiles  []models.Profile

	sink audit.Sink
	log  *slog.Logger

	// lastSum is the checksum of the last snapshot this process wrote or
	// loaded; the watcher uses it to ignore self-writes.
	lastSum string
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithAuditSink makes the manager record snapshot events.
func WithAuditSink(sink audit.Sink) ManagerOption {
	return func(m *Manager) { m.sink = sink }
}

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.log = logger }
}

// WithProfiles seeds the auxiliary profile list carried through snapshots.
func WithProfiles(profiles []models.Profile) ManagerOption {
	return func(m *Manager) { m.profiles = profiles }
}

// NewManager builds a manager persisting to path.
func NewManager(path string, records RecordSource, providers ProviderSource, opts ...ManagerOption) *Manager {
	m := &Manager{
		path:      path,
		records:   records,
		providers: providers,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Path returns the snapshot file location.
func (m *Manager) Path() string { return m.path }

// LastChecksum returns the checksum of the last snapshot written or
// loaded by this process.
func (m *Manager) LastChecksum() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSum
}

// Profiles returns the auxiliary profile list.
func (m *Manager) Profiles() []models.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Profile(nil), m.profiles...)
}

// Save exports the full state and writes it atomically: temp file in the
// same directory, fsync, rename.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Collections: m.records.Export(),
		Providers:   m.providers.Export(),
		Profiles:    m.profiles,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode snapshot: %w", err)
	}
	if err := WriteFileAtomic(m.path, data); err != nil {
		return err
	}
	m.lastSum = checksum.Sum(data)
	m.emit(models.EventSnapshotSaved, map[string]any{
		"path":     m.path,
		"checksum": m.lastSum,
	})
	m.log.Info("snapshot saved",
		slog.String("path", m.path),
		slog.Int("bytes", len(data)))
	return nil
}

// Load reads the snapshot file and swaps it into the live state. The
// document is decoded and checked in full before anything is applied; if
// the provider set is rejected after the records were already swapped,
// the records are rolled back, so a failed load never leaves mixed state.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked()
}

// LoadIfExists is Load, except a missing snapshot file is not an error.
// Used at startup when the state begins empty.
func (m *Manager) LoadIfExists() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := os.Stat(m.path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return m.loadLocked()
}

func (m *Manager) loadLocked() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("storage: read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	backup := m.records.Export()
	if err := m.records.Replace(snap.Collections); err != nil {
		return fmt.Errorf("storage: restore records: %w", err)
	}
	if err := m.providers.Replace(snap.Providers); err != nil {
		// The backup passed validation once; re-replacing cannot fail.
		_ = m.records.Replace(backup)
		return fmt.Errorf("storage: restore providers: %w", err)
	}
	m.profiles = snap.Profiles

	m.lastSum = checksum.Sum(data)
	m.emit(models.EventSnapshotRestored, map[string]any{
		"path":     m.path,
		"checksum": m.lastSum,
	})
	m.log.Info("snapshot restored", slog.String("path", m.path))
	return nil
}

func (m *Manager) emit(eventType string, details map[string]any) {
	if m.sink == nil {
		return
	}
	if err := m.sink.Append(models.AuditEvent{EventType: eventType, Details: details}); err != nil {
		m.log.Warn("audit append failed",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()))
	}
}

// WriteFileAtomic writes content via temp file, fsync, rename. A partial
// write never lands on the destination path.
func WriteFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tiwaz-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
