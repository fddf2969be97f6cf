// Package training is the bookkeeping side of user-driven model
// improvement: it collects labeled examples, mirrors them into the
// record store as feedback, and tracks model version entries. No
// learning happens here; Train and Evaluate record and report, they do
// not fit or score anything.
package training

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/starford/tiwaz/internal/apperr"
	"github.com/starford/tiwaz/internal/models"
	"github.com/starford/tiwaz/internal/storage"
)

// Example is one labeled training observation.
type Example struct {
	DataType string         `json:"data_type"`
	Data     map[string]any `json:"data"`
	Label    any            `json:"label"`
}

// ModelInfo is one version entry in the model log.
type ModelInfo struct {
	Type      string         `json:"type"`
	Params    map[string]any `json:"params,omitempty"`
	TrainedOn int            `json:"trained_on"`
	Version   int            `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
}

// Evaluation reports fixed bookkeeping metrics for a model entry.
type Evaluation struct {
	ModelType string  `json:"model_type"`
	Accuracy  float64 `json:"accuracy"`
	TestedOn  int     `json:"tested_on"`
}

// RecordSink receives the feedback mirror of each collected example.
type RecordSink interface {
	Create(kind models.Kind, fields map[string]any, tags, refs []string) (models.Record, error)
}

// Trainer accumulates examples and model version entries.
type Trainer struct {
	mu       sync.Mutex
	records  RecordSink
	examples []Example
	models   map[string]ModelInfo
	versions map[string][]ModelInfo
	now      func() time.Time
}

// New builds a Trainer mirroring collected examples into records.
func New(records RecordSink) *Trainer {
	return &Trainer{
		records:  records,
		models:   make(map[string]ModelInfo),
		versions: make(map[string][]ModelInfo),
		now:      time.Now,
	}
}

// Collect stores one example and mirrors it as a feedback record tagged
// "training". The example is kept only when the mirror write succeeds,
// so the in-memory set and the record store stay in step.
func (t *Trainer) Collect(dataType string, data map[string]any, label any) (Example, error) {
	ex := Example{DataType: dataType, Data: data, Label: label}

	fields := map[string]any{
		"data_type": dataType,
		"data":      data,
		"label":     label,
		"source":    "training",
	}
	if _, err := t.records.Create(models.KindFeedback, fields, []string{"training"}, nil); err != nil {
		return Example{}, fmt.Errorf("training: mirror example: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.examples = append(t.examples, ex)
	return ex, nil
}

// Train records a new version entry for modelType covering the examples
// collected so far and returns it.
func (t *Trainer) Train(modelType string, params map[string]any) ModelInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	info := ModelInfo{
		Type:      modelType,
		Params:    params,
		TrainedOn: len(t.examples),
		Version:   len(t.versions[modelType]) + 1,
		CreatedAt: t.now().UTC(),
	}
	t.models[modelType] = info
	t.versions[modelType] = append(t.versions[modelType], info)
	return info
}

// Evaluate reports metrics for the current entry of modelType against a
// test set. The accuracy is a fixed placeholder.
func (t *Trainer) Evaluate(modelType string, testData []map[string]any) (Evaluation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.models[modelType]; !ok {
		return Evaluation{}, fmt.Errorf("training: model %q: %w", modelType, apperr.ErrNotFound)
	}
	return Evaluation{ModelType: modelType, Accuracy: 1.0, TestedOn: len(testData)}, nil
}

// Export writes the collected examples to path as JSON, atomically.
func (t *Trainer) Export(path string) error {
	examples := t.Examples()
	if examples == nil {
		examples = []Example{}
	}
	data, err := json.MarshalIndent(examples, "", "  ")
	if err != nil {
		return fmt.Errorf("training: encode examples: %w", err)
	}
	return storage.WriteFileAtomic(path, data)
}

// Import replaces the collected examples with the contents of path.
func (t *Trainer) Import(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("training: read examples: %w", err)
	}
	var examples []Example
	if err := json.Unmarshal(data, &examples); err != nil {
		return fmt.Errorf("training: decode examples: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.examples = examples
	return nil
}

// Examples returns a copy of the collected examples in collection order.
func (t *Trainer) Examples() []Example {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Example(nil), t.examples...)
}

// Models lists the model types with at least one version entry, sorted.
func (t *Trainer) Models() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	names := make([]string, 0, len(t.models))
	for name := range t.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Versions returns the version entries recorded for modelType, oldest
// first.
func (t *Trainer) Versions(modelType string) []ModelInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]ModelInfo(nil), t.versions[modelType]...)
}
