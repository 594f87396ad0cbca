package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/jsondb/internal/storage"
)

const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the data directory and keeps the
// catalog current until ctx is cancelled. It calls cb (if non-nil) after
// each catalog change with the event and the kind of the changed file.
//
// Atomic writes show up as a Create of the target once the temp file is
// renamed over it; temp files themselves are ignored. Rename events trigger
// a reconciliation pass that removes entries whose files no longer exist.
func Watch(ctx context.Context, db Index, store storage.Provider, logger *slog.Logger, cb EventCallback) error {
	root := store.Root()
	// fsnotify can only watch an existing directory.
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("catalog: watch: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(root); err != nil {
		return fmt.Errorf("catalog: watch %s: %w", root, err)
	}

	logger.Info("watcher: started", slog.String("root", root))

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(db, store, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			file := filepath.Base(ev.Name)
			if filepath.Dir(ev.Name) != root || !storage.IsCollectionFile(file) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			event, refreshErr := Refresh(db, store, file)
			if refreshErr != nil {
				logger.Warn("watcher: refresh failed", slog.String("file", file), slog.String("error", refreshErr.Error()))
				continue
			}
			if ev.Op&fsnotify.Rename != 0 {
				// fsnotify fires Rename on the OLD name only. The new name
				// arrives as a separate Create if it stays in the directory.
				scheduleReconcile()
			}
			if event == "" {
				continue
			}
			kind := db.KindOf(file)
			logger.Debug("watcher: catalogued", slog.String("file", file), slog.String("kind", kind), slog.String("op", event))
			if cb != nil {
				cb(event, kind)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile does a lightweight sync using batch lookups: it removes entries
// without a file on disk and catalogues files whose checksum changed.
func reconcile(db Index, store storage.Provider, logger *slog.Logger, cb EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	files, err := store.List()
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(files))
	for _, f := range files {
		disk[f.Name] = f.Checksum
	}

	for file := range checksums {
		if _, ok := disk[file]; ok {
			continue
		}
		if err := db.Delete(file); err == nil {
			logger.Debug("reconcile: removed stale", slog.String("file", file))
			if cb != nil {
				cb(EventDeleted, db.KindOf(file))
			}
		}
	}

	for file, cs := range disk {
		if checksums[file] == cs {
			continue
		}
		event, err := Refresh(db, store, file)
		if err != nil || event == "" {
			continue
		}
		logger.Debug("reconcile: catalogued", slog.String("file", file), slog.String("op", event))
		if cb != nil {
			cb(event, db.KindOf(file))
		}
	}
}
