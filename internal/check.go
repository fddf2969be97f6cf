package internal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/tiwaz/internal/ethics"
	"github.com/starford/tiwaz/internal/models"
	"github.com/starford/tiwaz/internal/practice"
	"github.com/starford/tiwaz/internal/provider"
	"github.com/starford/tiwaz/internal/recordstore"
	"github.com/starford/tiwaz/internal/storage"
)

// Check runs the rule engine once over a payload document and returns
// the verdict. State comes from the snapshot so conflict checks see the
// stored case files; nothing executes and no audit entry is written.
func Check(cfg *Config, action, payloadPath, jurisdiction string) (models.Verdict, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	store := recordstore.New(recordstore.DefaultValidators())
	registry := provider.NewRegistry()
	manager := storage.NewManager(cfg.Data.SnapshotPath, store, registry,
		storage.WithLogger(logger))
	if err := manager.LoadIfExists(); err != nil {
		return models.Verdict{}, fmt.Errorf("load snapshot: %w", err)
	}

	data, err := os.ReadFile(payloadPath)
	if err != nil {
		return models.Verdict{}, fmt.Errorf("read payload: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return models.Verdict{}, fmt.Errorf("parse payload %s: %w", payloadPath, err)
	}

	svc := practice.New(practice.Deps{
		Store:    store,
		Registry: registry,
		Engine:   ethics.NewDefaultEngine(cfg.Ethics.SensitivePatterns),
		Profile:  cfg.Profile.Model(),
		Logger:   logger,
	})
	return svc.CheckCompliance(ethics.Action(action), payload, "", jurisdiction), nil
}
