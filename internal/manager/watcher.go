package manager

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/duynguyendang/blockbaker/pkg/tags/store"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch invalidates cached libraries whose project directory changes on disk,
// so edits made by another process (the CLI, a text editor, git) are picked
// up by the next request. It blocks until ctx is done. Only the fs backend
// is watched; BadgerDB holds an exclusive lock on its directory.
func (m *LibraryManager) Watch(ctx context.Context) error {
	if m.template.Backend != store.BackendFS {
		m.logger.Debug("Watcher disabled", zap.String("backend", string(m.template.Backend)))
		return nil
	}
	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	m.addWatchesRecursive(fsw, m.baseDir)
	m.logger.Info("Library watcher started",
		zap.String("dir", m.baseDir),
		zap.Duration("debounce", m.debounce))

	ticker := time.NewTicker(m.debounce)
	defer ticker.Stop()

	pending := make(map[string]struct{})
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					m.addWatchesRecursive(fsw, event.Name)
				}
			}
			if id, ok := m.projectOf(event.Name); ok {
				pending[id] = struct{}{}
			} else {
				// A change directly below the base directory affects the
				// project list only.
				m.mu.Lock()
				m.cachedList = nil
				m.mu.Unlock()
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			m.logger.Error("Watcher error", zap.Error(err))

		case <-ticker.C:
			for id := range pending {
				m.logger.Debug("Project changed on disk", zap.String("project", id))
				m.Invalidate(id)
			}
			clear(pending)
		}
	}
}

func (m *LibraryManager) addWatchesRecursive(fsw *fsnotify.Watcher, root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}
		if base := filepath.Base(path); path != root && strings.HasPrefix(base, ".") {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			m.logger.Warn("Failed to watch directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}
