package ingest

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/engram/internal/store"
)

// ImportCallback is called after a watcher-driven import that created nodes.
type ImportCallback func(path string, created int)

// Watch starts an fsnotify watcher on the journal directory and re-imports
// markdown files as they are created or changed, until ctx is cancelled.
// Dedup hashing makes repeated imports of the same content no-ops, so noisy
// editors are harmless. New subdirectories are picked up automatically.
//
// Events are debounced per path so that a burst of writes triggers one
// import.
func Watch(ctx context.Context, st store.Store, root string, logger *slog.Logger, cb ImportCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("journal watcher: started", slog.String("root", root))

	pending := make(map[string]struct{})
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	schedule := func(path string) {
		pending[path] = struct{}{}
		if flushTimer == nil {
			flushTimer = time.NewTimer(200 * time.Millisecond)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			logger.Info("journal watcher: stopped")
			return nil

		case <-flushCh:
			for path := range pending {
				delete(pending, path)
				stats, _, err := ImportMarkdownFile(st, path, nil, false)
				if err != nil {
					logger.Warn("journal watcher: import failed",
						slog.String("path", path),
						slog.String("error", err.Error()))
					continue
				}
				if stats.NodesCreated > 0 {
					logger.Info("journal watcher: imported",
						slog.String("path", path),
						slog.Int("created", stats.NodesCreated),
						slog.Int("skipped", stats.NodesSkipped))
					if cb != nil {
						cb(path, stats.NodesCreated)
					}
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("journal watcher: add dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					continue
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !strings.HasSuffix(ev.Name, ".md") {
				continue
			}
			schedule(ev.Name)

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("journal watcher: error", slog.String("error", werr.Error()))
		}
	}
}

func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
