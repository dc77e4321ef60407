package store

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 250 * time.Millisecond

// Watch reports a reload reason on requests whenever the staged update file
// or the active definitions change. Events are debounced so an editor that
// writes in several steps yields one request. The actual reload is left to
// the caller, which applies it between evaluation cycles.
func (s *Store) Watch(ctx context.Context, requests chan<- string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch rules: %w", err)
	}
	dir := filepath.Dir(filepath.Clean(s.path))
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch rules dir: %w", err)
	}
	targets := map[string]struct{}{filepath.Clean(s.path): {}}
	if s.updatePath != "" {
		targets[filepath.Clean(s.updatePath)] = struct{}{}
		if updDir := filepath.Dir(filepath.Clean(s.updatePath)); updDir != dir {
			if err := watcher.Add(updDir); err != nil {
				s.logger.Debug().Err(err).Msg("Unable to watch staged update dir")
			}
		}
	}

	go func() {
		defer watcher.Close()
		var (
			timer   *time.Timer
			timerCh <-chan time.Time
		)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if _, watched := targets[filepath.Clean(event.Name)]; !watched {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(watchDebounce)
					timerCh = timer.C
				} else {
					timer.Reset(watchDebounce)
				}
			case <-timerCh:
				timer = nil
				timerCh = nil
				select {
				case requests <- "rule definitions changed":
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn().Err(err).Msg("Rule watcher error")
			}
		}
	}()
	return nil
}
