package training

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/starford/tiwaz/internal/apperr"
	"github.com/starford/tiwaz/internal/models"
	"github.com/starford/tiwaz/internal/recordstore"
)

func testTrainer(t *testing.T) (*Trainer, *recordstore.Store) {
	t.Helper()
	store := recordstore.New(recordstore.DefaultValidators())
	return New(store), store
}

type failingSink struct{}

func (failingSink) Create(models.Kind, map[string]any, []string, []string) (models.Record, error) {
	return models.Record{}, errors.New("store offline")
}

func TestCollectMirrorsFeedbackRecord(t *testing.T) {
	trainer, store := testTrainer(t)

	ex, err := trainer.Collect("verdict", map[string]any{"question": "Was the stop lawful?"}, "block")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if ex.DataType != "verdict" || ex.Label != "block" {
		t.Fatalf("example = %+v", ex)
	}

	mirrored := store.Tagged(models.KindFeedback, "training")
	if len(mirrored) != 1 {
		t.Fatalf("got %d mirrored records, want 1", len(mirrored))
	}
	rec := mirrored[0]
	if rec.Fields["data_type"] != "verdict" || rec.Fields["source"] != "training" {
		t.Fatalf("mirrored fields = %v", rec.Fields)
	}
	if len(trainer.Examples()) != 1 {
		t.Fatalf("examples = %d, want 1", len(trainer.Examples()))
	}
}

func TestCollectFailedMirrorKeepsNothing(t *testing.T) {
	trainer := New(failingSink{})

	if _, err := trainer.Collect("verdict", nil, "pass"); err == nil {
		t.Fatal("expected an error from the failing sink")
	}
	if got := trainer.Examples(); len(got) != 0 {
		t.Fatalf("examples = %d, want 0 after a failed mirror", len(got))
	}
}

func TestTrainRecordsVersions(t *testing.T) {
	trainer, _ := testTrainer(t)
	for i := 0; i < 2; i++ {
		if _, err := trainer.Collect("verdict", map[string]any{"n": i}, "pass"); err != nil {
			t.Fatalf("Collect: %v", err)
		}
	}

	first := trainer.Train("classifier", map[string]any{"epochs": 3})
	if first.Version != 1 || first.TrainedOn != 2 {
		t.Fatalf("first entry = %+v", first)
	}
	if first.CreatedAt.IsZero() {
		t.Fatal("entry has no timestamp")
	}

	second := trainer.Train("classifier", nil)
	if second.Version != 2 {
		t.Fatalf("second version = %d, want 2", second.Version)
	}

	if got := trainer.Models(); !reflect.DeepEqual(got, []string{"classifier"}) {
		t.Fatalf("Models() = %v", got)
	}
	versions := trainer.Versions("classifier")
	if len(versions) != 2 || versions[0].Version != 1 || versions[1].Version != 2 {
		t.Fatalf("versions = %+v", versions)
	}
}

func TestEvaluate(t *testing.T) {
	trainer, _ := testTrainer(t)

	if _, err := trainer.Evaluate("classifier", nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	trainer.Train("classifier", nil)
	eval, err := trainer.Evaluate("classifier", []map[string]any{{"q": "a"}, {"q": "b"}})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if eval.ModelType != "classifier" || eval.TestedOn != 2 {
		t.Fatalf("evaluation = %+v", eval)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	trainer, _ := testTrainer(t)
	if _, err := trainer.Collect("verdict", map[string]any{"question": "q1"}, "warn"); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if _, err := trainer.Collect("citation", map[string]any{"case": "State v. Hale"}, "good"); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	path := filepath.Join(t.TempDir(), "examples.json")
	if err := trainer.Export(path); err != nil {
		t.Fatalf("Export: %v", err)
	}

	fresh, _ := testTrainer(t)
	if err := fresh.Import(path); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !reflect.DeepEqual(fresh.Examples(), trainer.Examples()) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", fresh.Examples(), trainer.Examples())
	}
}

func TestImportReplacesExistingExamples(t *testing.T) {
	donor, _ := testTrainer(t)
	if _, err := donor.Collect("verdict", map[string]any{"q": "only"}, "pass"); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	path := filepath.Join(t.TempDir(), "examples.json")
	if err := donor.Export(path); err != nil {
		t.Fatalf("Export: %v", err)
	}

	trainer, _ := testTrainer(t)
	for i := 0; i < 3; i++ {
		if _, err := trainer.Collect("verdict", nil, "pass"); err != nil {
			t.Fatalf("Collect: %v", err)
		}
	}
	if err := trainer.Import(path); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if got := trainer.Examples(); len(got) != 1 {
		t.Fatalf("examples = %d, want the imported set only", len(got))
	}
}
