// Package watcher watches module directories and emits debounced change
// events for module files.
package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventOp represents the type of file system operation.
type EventOp int

const (
	Create EventOp = iota
	Write
	Remove
	Rename
)

// String returns the string representation of EventOp.
func (op EventOp) String() string {
	switch op {
	case Create:
		return "Create"
	case Write:
		return "Write"
	case Remove:
		return "Remove"
	case Rename:
		return "Rename"
	default:
		return "Unknown"
	}
}

// Event represents a change of one module file.
type Event struct {
	Path string
	Op   EventOp
	Time time.Time
}

// Config holds configuration for the file system watcher.
type Config struct {
	Paths   []string
	Include []string // base name globs; empty means DefaultInclude
	Exclude []string // .gitignore syntax
	Logger  *slog.Logger
}

// Watcher watches file system paths for changes and emits debounced events.
type Watcher struct {
	cfg     Config
	matcher *Matcher
	logger  *slog.Logger
	fsw     *fsnotify.Watcher
	mu      sync.Mutex
	closed  bool
}

// New creates a new file system watcher with the given configuration.
func New(cfg Config) (*Watcher, error) {
	matcher := NewMatcher(cfg.Paths, cfg.Include, cfg.Exclude)
	if err := matcher.LoadPatterns(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Watcher{
		cfg:     cfg,
		matcher: matcher,
		logger:  logger,
	}, nil
}

// Matcher returns the path matcher used to filter events.
func (w *Watcher) Matcher() *Matcher { return w.matcher }

// Start begins watching configured paths and returns a channel of debounced
// events. The channel is closed when ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) (<-chan Event, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.fsw = fsw
	w.mu.Unlock()

	for _, root := range w.cfg.Paths {
		if err := w.addRecursive(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	out := make(chan Event, 100)
	go w.eventLoop(ctx, fsw, out)
	return out, nil
}

// Close shuts down the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip inaccessible entries
		}
		if !info.IsDir() {
			return nil
		}
		if w.matcher.Match(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

const debounceWindow = 100 * time.Millisecond

func (w *Watcher) eventLoop(ctx context.Context, fsw *fsnotify.Watcher, out chan<- Event) {
	var wg sync.WaitGroup
	defer func() {
		wg.Wait()
		close(out)
	}()

	type pending struct {
		event Event
		timer *time.Timer
	}
	pendingEvents := make(map[string]*pending)
	var mu sync.Mutex

	flush := func(path string) {
		defer wg.Done()
		mu.Lock()
		p := pendingEvents[path]
		delete(pendingEvents, path)
		mu.Unlock()
		if p == nil {
			return
		}
		select {
		case out <- p.event:
		case <-ctx.Done():
		}
	}

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			for path, p := range pendingEvents {
				if p.timer.Stop() {
					wg.Done()
				}
				delete(pendingEvents, path)
			}
			mu.Unlock()
			return

		case fsEvent, ok := <-fsw.Events:
			if !ok {
				return
			}
			if w.matcher.Match(fsEvent.Name) {
				continue
			}
			op, valid := convertOp(fsEvent.Op)
			if !valid {
				continue
			}

			// New directories are watched; only module files are reported.
			if op == Create {
				if info, err := os.Stat(fsEvent.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(fsEvent.Name); err != nil {
						w.logger.Warn("watch new directory", "path", fsEvent.Name, "err", err)
					}
					continue
				}
			}
			if !w.matcher.Included(fsEvent.Name) {
				continue
			}

			evt := Event{Path: fsEvent.Name, Op: op, Time: time.Now()}
			path := fsEvent.Name

			// Debounce: the last event for a path within the window wins.
			mu.Lock()
			if p, exists := pendingEvents[path]; exists {
				p.event = evt
				if p.timer.Stop() {
					p.timer.Reset(debounceWindow)
				}
			} else {
				wg.Add(1)
				pendingEvents[path] = &pending{
					event: evt,
					timer: time.AfterFunc(debounceWindow, func() { flush(path) }),
				}
			}
			mu.Unlock()

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

func convertOp(op fsnotify.Op) (EventOp, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return Create, true
	case op.Has(fsnotify.Write):
		return Write, true
	case op.Has(fsnotify.Remove):
		return Remove, true
	case op.Has(fsnotify.Rename):
		return Rename, true
	default:
		return 0, false
	}
}
