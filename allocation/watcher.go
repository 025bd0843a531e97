package allocation

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/YuminosukeSato/allocgo/pkg/errors"
	"github.com/YuminosukeSato/allocgo/pkg/log"
)

// DefaultDebounce is how long the watcher waits after the last change before
// reloading.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a Registry when its artifact file changes.
//
// The artifact's directory is watched rather than the file itself, so
// deployments that write a temporary file and rename it over the artifact
// are picked up as well as in-place writes. Bursts of events are collapsed
// into one reload after the debounce interval.
type Watcher struct {
	path     string
	registry *Registry
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   log.Logger

	// OnReload, when set, is called after every reload attempt.
	OnReload func(*Model, error)
}

// NewWatcher creates a watcher for the artifact at path. debounce <= 0
// selects DefaultDebounce.
func NewWatcher(path string, registry *Registry, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create artifact watcher")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = fw.Close()
		return nil, errors.Wrapf(err, "resolve artifact path %s", path)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		path:     abs,
		registry: registry,
		watcher:  fw,
		debounce: debounce,
		logger:   log.GetLoggerWithName("watcher").With(log.ArtifactPathKey, abs),
	}, nil
}

// Start watches until ctx is cancelled or the watcher is closed. It blocks;
// run it in its own goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return errors.Wrapf(err, "watch %s", filepath.Dir(w.path))
	}
	w.logger.Debug("started watching artifact")

	var reload <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			reload = time.After(w.debounce)

		case <-reload:
			reload = nil
			m, err := w.registry.LoadFile(w.path)
			if w.OnReload != nil {
				w.OnReload(m, err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("artifact watcher error", log.ErrAttrKey, err.Error())

		case <-ctx.Done():
			w.logger.Debug("artifact watcher stopping")
			return nil
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}
