// Package watchfile notifies when a single file changes on disk.
// Editors replace files via rename-and-write, so the parent directory is
// watched and events are filtered down to the one file.
package watchfile

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce batches the event bursts editors produce on save.
const defaultDebounce = 250 * time.Millisecond

// Watcher reports changes to one file.
type Watcher struct {
	path     string
	debounce time.Duration
	fw       *fsnotify.Watcher
	log      *slog.Logger
}

// New creates a Watcher for path. The parent directory must exist.
func New(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{
		path:     abs,
		debounce: defaultDebounce,
		fw:       fw,
		log:      slog.With("component", "watchfile", "path", abs),
	}, nil
}

// SetDebounce overrides the debounce window. Call before Run.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Run blocks, invoking onChange after each debounced batch of writes to
// the watched file, until ctx is canceled.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	defer w.fw.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.log.Debug("file event", "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "err", err)
		case <-fire:
			timer = nil
			fire = nil
			onChange()
		}
	}
}
