package catalog

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a catalog when its file changes on disk
type Watcher struct {
	catalog  *Catalog
	path     string
	fsw      *fsnotify.Watcher
	logger   *zap.Logger
	onReload func(err error)
}

// NewWatcher starts watching the directory that holds path. The directory
// is watched rather than the file so that editors which replace the file
// on save are still seen.
func NewWatcher(c *Catalog, path string, logger *zap.Logger, onReload func(err error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		fsw.Close()
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	if onReload == nil {
		onReload = func(error) {}
	}

	return &Watcher{
		catalog:  c,
		path:     abs,
		fsw:      fsw,
		logger:   logger,
		onReload: onReload,
	}, nil
}

// Run handles file events until ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	w.logger.Info("Watching program catalog", zap.String("path", w.path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Catalog watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	err := w.catalog.Reload(w.path)
	if err != nil {
		w.logger.Error("Catalog reload failed, keeping previous catalog",
			zap.String("path", w.path),
			zap.Error(err),
		)
	} else {
		w.logger.Info("Program catalog reloaded", zap.String("path", w.path))
	}
	w.onReload(err)
}
