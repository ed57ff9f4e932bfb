// Package filewatcher watches the corpus directory for new or changed files.
package filewatcher

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/0xcro3dile/archiverag/internal/domain/ports"
)

var _ ports.FileWatcher = (*FSNotifyWatcher)(nil)

// DefaultQuiet is how long a path must stay untouched before its event is
// emitted. Copying a large PDF produces a burst of writes.
const DefaultQuiet = 500 * time.Millisecond

// Options configures an FSNotifyWatcher.
type Options struct {
	// Match filters paths; nil accepts every path.
	Match func(path string) bool
	// Quiet is the debounce window; zero uses DefaultQuiet.
	Quiet  time.Duration
	Logger *slog.Logger
}

// FSNotifyWatcher implements ports.FileWatcher using fsnotify. Bursts of
// events for one path collapse into a single event carrying the first
// operation seen, unless the path was deleted last.
type FSNotifyWatcher struct {
	watcher *fsnotify.Watcher
	match   func(string) bool
	quiet   time.Duration
	log     *slog.Logger
}

// NewFSNotifyWatcher creates a new file watcher.
func NewFSNotifyWatcher(opts Options) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if opts.Match == nil {
		opts.Match = func(string) bool { return true }
	}
	if opts.Quiet <= 0 {
		opts.Quiet = DefaultQuiet
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &FSNotifyWatcher{
		watcher: w,
		match:   opts.Match,
		quiet:   opts.Quiet,
		log:     opts.Logger.With("component", "watcher"),
	}, nil
}

// Watch starts monitoring dir and emits debounced events until ctx is done.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	events := make(chan ports.FileEvent, 100)

	type pendingEvent struct {
		op   ports.FileOperation
		last time.Time
	}

	go func() {
		defer close(events)

		pending := make(map[string]*pendingEvent)
		tick := time.NewTicker(max(w.quiet/4, time.Millisecond))
		defer tick.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-tick.C:
				var ready []string
				for path, p := range pending {
					if now.Sub(p.last) >= w.quiet {
						ready = append(ready, path)
					}
				}
				sort.Strings(ready)
				for _, path := range ready {
					op := pending[path].op
					delete(pending, path)
					select {
					case events <- ports.FileEvent{Path: path, Operation: op}:
					case <-ctx.Done():
						return
					}
				}
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !w.match(event.Name) {
					continue
				}

				var op ports.FileOperation
				switch {
				case event.Op&fsnotify.Create == fsnotify.Create:
					op = ports.FileCreated
				case event.Op&fsnotify.Write == fsnotify.Write:
					op = ports.FileModified
				case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
					op = ports.FileDeleted
				default:
					continue
				}
				w.log.Debug("file event", "path", event.Name, "op", op)

				p, seen := pending[event.Name]
				if !seen {
					pending[event.Name] = &pendingEvent{op: op, last: time.Now()}
					continue
				}
				if op == ports.FileDeleted || p.op == ports.FileDeleted {
					p.op = op
				}
				p.last = time.Now()
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.log.Warn("watch error", "error", err)
			}
		}
	}()

	return events, nil
}

// Stop stops the watcher.
func (w *FSNotifyWatcher) Stop() error {
	return w.watcher.Close()
}
