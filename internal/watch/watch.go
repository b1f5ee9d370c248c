// Package watch resyncs the player when the media cache is changed on
// disk behind the daemon's back. A deleted or replaced cache file would
// otherwise leave the rotation pointing at missing media until the next
// poll interval.
package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/signloop/signloop/pkg/logger"
)

const (
	// DEF_DEBOUNCE is the quiet period after the last filesystem event
	// before a resync fires. Bulk deletions collapse into one trigger.
	DEF_DEBOUNCE = 2 * time.Second

	// tickEvery is how often the pending change is re-checked for
	// stability.
	tickEvery = 100 * time.Millisecond
)

// Watcher watches one directory and fires a callback once a burst of
// changes has settled.
type Watcher struct {
	dir      string
	debounce time.Duration
	onChange func()
	lg       logger.Logger
}

// New creates a watcher for dir. debounce <= 0 falls back to
// DEF_DEBOUNCE. onChange runs on the watcher goroutine, so it must not
// block; handing it a coalescing trigger like Coordinator.Sync is the
// intended use.
func New(dir string, debounce time.Duration, onChange func(), lg logger.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DEF_DEBOUNCE
	}
	if onChange == nil {
		onChange = func() {}
	}
	if lg == nil {
		lg = &logger.NopLogger{}
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		onChange: onChange,
		lg:       lg,
	}
}

// Run watches until ctx is cancelled. It returns ctx.Err() on
// cancellation and an error when the watch cannot be established.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create cache watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.lg.Info("watch: watching cache dir %s", w.dir)

	ticker := time.NewTicker(tickEvery)
	defer ticker.Stop()

	// Zero means no change is pending.
	var lastEvent time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			if lastEvent.IsZero() {
				w.lg.Info("watch: cache changed (%s), resync after quiet period", event.Name)
			}
			lastEvent = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.lg.Warning("watch: %s", err.Error())

		case <-ticker.C:
			if !lastEvent.IsZero() && time.Since(lastEvent) >= w.debounce {
				lastEvent = time.Time{}
				w.onChange()
			}
		}
	}
}

// relevant reports whether an event should count as cache tampering.
// The cache's own download staging (.part files) is not tampering; the
// rename that lands the finished file still counts, which is harmless
// since the following cycle diffs as unchanged.
func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return !strings.HasSuffix(event.Name, ".part")
}
