// Package marker delivers the externally-toggled task flag. The
// keyboard handler lives outside this process; it signals a task window
// by writing "1" or "0" into a marker file, which the watcher observes
// via fsnotify and forwards as a binary signal.
package marker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/motionlab/handrec/pkg/log"
)

// debounceDelay coalesces the event bursts editors and shells produce
// for a single logical write.
const debounceDelay = 50 * time.Millisecond

// Watcher observes a marker file and invokes onChange with the parsed
// state whenever it flips. Truthy content: "1", "true", "on".
type Watcher struct {
	path     string
	onChange func(bool)
	logger   log.Logger

	mu       sync.Mutex
	debounce *time.Timer
	last     bool
	haveLast bool
}

// NewWatcher creates a watcher for the given marker file. The file does
// not need to exist yet; creation counts as a write.
func NewWatcher(path string, onChange func(bool), logger log.Logger) *Watcher {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Watcher{path: path, onChange: onChange, logger: logger}
}

// Run watches until ctx is canceled. The initial file state, if the
// file exists, is delivered before any events.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: the file may be replaced by
	// rename, which would silently detach a file-level watch.
	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	w.readState()

	base := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleRead()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("marker watcher error", log.Err(err))
		}
	}
}

func (w *Watcher) scheduleRead() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(debounceDelay, w.readState)
}

func (w *Watcher) readState() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return
	}
	state := parseState(string(data))

	w.mu.Lock()
	changed := !w.haveLast || state != w.last
	w.last = state
	w.haveLast = true
	w.mu.Unlock()

	if changed {
		w.logger.Info("task marker changed", log.Bool("marker", state))
		if w.onChange != nil {
			w.onChange(state)
		}
	}
}

func parseState(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on":
		return true
	default:
		return false
	}
}
