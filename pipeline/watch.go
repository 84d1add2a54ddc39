package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/goliatone/go-errors"
)

// DefaultDebounce groups bursts of file events into a single run.
var DefaultDebounce = 200 * time.Millisecond

// RunFunc receives the outcome of every run triggered by Watch.
type RunFunc func(entries []Entry, err error)

// Watch runs the copy once and then again whenever something changes under
// the source directory, until ctx is done. fsnotify only sees the real file
// system, so the copy must use the OS file system.
func (c *CopySpec) Watch(ctx context.Context, debounce time.Duration, onRun RunFunc) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if onRun == nil {
		onRun = func([]Entry, error) {}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to create file watcher").
			WithTextCode("WATCHER_FAILED")
	}
	defer w.Close()

	if err := c.watchTree(w); err != nil {
		return err
	}

	onRun(c.Run(ctx))

	var (
		timer   *time.Timer
		trigger <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			c.logger.Debug("watch event %s %s", ev.Op, ev.Name)
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.Add(ev.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			trigger = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("watch error: %v", err)
		case <-trigger:
			trigger = nil
			onRun(c.Run(ctx))
		}
	}
}

func (c *CopySpec) watchTree(w *fsnotify.Watcher) error {
	return filepath.WalkDir(c.from, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.Add(p); err != nil {
			return errors.Wrap(err, errors.CategoryOperation, "failed to watch directory").
				WithTextCode("WATCH_ADD_FAILED").
				WithMetadata(map[string]any{"path": p})
		}
		return nil
	})
}
