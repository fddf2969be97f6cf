package storage

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/tiwaz/internal/checksum"
)

// debounceWindow coalesces the burst of events an editor or sync tool
// produces for one logical file change.
const debounceWindow = 200 * time.Millisecond

// Watch observes the snapshot file's directory and reloads the manager
// when the file changes on disk with content this process did not write.
// cb (if non-nil) runs after each successful reload. Watch blocks until
// ctx is cancelled.
func Watch(ctx context.Context, m *Manager, logger *slog.Logger, cb func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory, not the file: atomic saves replace the inode,
	// and the file may not exist yet at startup.
	dir := filepath.Dir(m.Path())
	if err := w.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(m.Path())

	logger.Info("snapshot watcher: started", slog.String("path", target))

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(debounceWindow)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(debounceWindow)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("snapshot watcher: stopped")
			return nil

		case <-reloadCh:
			reloadIfForeign(m, target, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				scheduleReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("snapshot watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reloadIfForeign reloads the snapshot unless the on-disk content matches
// the last write this process made.
func reloadIfForeign(m *Manager, target string, logger *slog.Logger, cb func()) {
	sum, err := checksum.File(target)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("snapshot watcher: checksum failed",
				slog.String("path", target),
				slog.String("error", err.Error()))
		}
		return
	}
	if sum == m.LastChecksum() {
		// Our own save landing back on us.
		return
	}
	if err := m.Load(); err != nil {
		logger.Warn("snapshot watcher: reload rejected",
			slog.String("path", target),
			slog.String("error", err.Error()))
		return
	}
	logger.Info("snapshot watcher: reloaded externally changed snapshot",
		slog.String("path", target))
	if cb != nil {
		cb()
	}
}
