package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jackzampolin/critique/internal/corpus"
)

// DefaultSettle is how long a file must go without writes before it is processed.
const DefaultSettle = 2 * time.Second

// Watch processes files as they are added to the input folder, until ctx is
// cancelled. Files already present when Watch starts are left alone. Each
// file waits for settle without further writes, then goes through the same
// pipeline as Run, one at a time.
func (d *Driver) Watch(ctx context.Context, settle time.Duration) (*Summary, error) {
	if settle <= 0 {
		settle = DefaultSettle
	}

	if _, err := corpus.List(d.cfg.InputDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(d.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output folder: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(d.cfg.InputDir); err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", d.cfg.InputDir, err)
	}

	summary := &Summary{InputDir: d.cfg.InputDir, OutputDir: d.cfg.OutputDir}
	pending := make(map[string]time.Time)

	tick := settle / 4
	if tick < 50*time.Millisecond {
		tick = 50 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	d.logger.Info("watching for new papers", "folder", d.cfg.InputDir, "settle", settle)

	for {
		select {
		case <-ctx.Done():
			summary.Unprocessed += len(pending)
			summary.Interrupted = summary.Interrupted || len(pending) > 0
			return summary, nil

		case event, ok := <-watcher.Events:
			if !ok {
				return summary, nil
			}
			switch {
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if d.eligible(event.Name) {
					pending[event.Name] = d.now()
				}
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				delete(pending, event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return summary, nil
			}
			d.logger.Warn("watcher error", "error", err)

		case <-ticker.C:
			for _, path := range settled(pending, d.now(), settle) {
				if ctx.Err() != nil {
					break
				}
				delete(pending, path)

				entry, err := corpus.NewEntry(path)
				if err != nil {
					d.logger.Warn("could not resolve file", "path", path, "error", err)
					continue
				}

				summary.Total++
				result := d.ProcessFile(ctx, entry, summary.Total, summary.Total)
				summary.record(result)

				if result.Status == StatusSucceeded {
					if err := d.cfg.Pacer.AfterSuccess(ctx); err != nil {
						d.logger.Debug("pause cut short", "error", err)
					}
				}
			}
		}
	}
}

// settled returns the pending paths untouched for at least settle, sorted.
func settled(pending map[string]time.Time, now time.Time, settle time.Duration) []string {
	var ready []string
	for path, seen := range pending {
		if now.Sub(seen) >= settle {
			ready = append(ready, path)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		return filepath.Base(ready[i]) < filepath.Base(ready[j])
	})
	return ready
}
