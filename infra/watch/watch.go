// Package watch re-runs a callback whenever a file changes on disk. Editors
// replace files through rename-and-create, so the watcher follows the parent
// directory rather than the file itself.
package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/capaplan/capaplan/core/logger"
)

// debounceDelay coalesces the burst of events an editor emits per save and
// avoids reading partially written files.
const debounceDelay = 250 * time.Millisecond

// File watches path and invokes fn after each change, until ctx is canceled.
// Callback errors are logged, not fatal: the next change gets another chance.
func File(ctx context.Context, path string, log logger.Logger, fn func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := watcher.Close(); cerr != nil {
			log.Errorf("close watcher: %v", cerr)
		}
	}()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(path)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	fire := make(chan struct{}, 1)
	schedule := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounceDelay, func() {
			select {
			case fire <- struct{}{}:
			default:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			log.Debugf("change detected on %s, scheduling recompute", path)
			schedule()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Errorf("watch error: %v", err)
		case <-fire:
			if err := fn(); err != nil {
				log.Errorf("recompute failed: %v", err)
			}
		}
	}
}
