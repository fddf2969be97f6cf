package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/tiwaz/internal/audit"
	"github.com/starford/tiwaz/internal/mcpserver"
)

// RunMCP serves the MCP tool surface over stdio against the same state
// the HTTP server uses. Stdout is the protocol channel, so logs go to
// stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	for _, dir := range []string{filepath.Dir(cfg.Data.SnapshotPath), filepath.Dir(cfg.Data.AuditPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}

	auditStore, err := audit.Open(cfg.Data.AuditPath)
	if err != nil {
		return fmt.Errorf("init audit store: %w", err)
	}
	defer auditStore.Close()

	svc, _, err := buildCore(cfg, logger, auditStore, auditStore)
	if err != nil {
		return err
	}

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(svc).ServeStdio()
}
