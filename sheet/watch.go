package sheet

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch invalidates the loader cache whenever the workbook file changes,
// so a re-exported workbook is picked up before the TTL expires. The
// returned stop function releases the watcher.
func Watch(path string, loader *Loader, logger *slog.Logger) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	// Watch the directory: editors and exports typically replace the
	// file rather than writing it in place.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	target := filepath.Base(path)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					logger.Info("Workbook changed, clearing cache", "path", path, "op", event.Op.String())
					loader.ClearCache()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Workbook watch error", "error", err)
			}
		}
	}()

	return watcher.Close, nil
}
