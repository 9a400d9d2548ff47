// Package watcher observes library roots with fsnotify and reports settled
// file additions and removals, so downloads that are still growing are not
// indexed half-written.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventType classifies watcher events.
type EventType string

// Event types.
const (
	EventAdded   EventType = "added"
	EventRemoved EventType = "removed"
)

// Event is one settled filesystem change.
type Event struct {
	Type EventType
	Path string
}

// DefaultSettleDelay is how long a file must stop changing before an added
// event fires.
const DefaultSettleDelay = 2 * time.Second

type pendingFile struct {
	size    int64
	modTime time.Time
	timer   *time.Timer
}

// Watcher tracks directories recursively and debounces write activity.
type Watcher struct {
	fsw         *fsnotify.Watcher
	events      chan Event
	settleDelay time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingFile
	closed  bool
}

// New creates a watcher. settleDelay <= 0 uses DefaultSettleDelay.
func New(settleDelay time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if settleDelay <= 0 {
		settleDelay = DefaultSettleDelay
	}
	return &Watcher{
		fsw:         fsw,
		events:      make(chan Event, 64),
		settleDelay: settleDelay,
		logger:      logger,
		pending:     make(map[string]*pendingFile),
	}, nil
}

// Add registers a root and all of its subdirectories.
func (w *Watcher) Add(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("Watcher cannot access path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// Events returns the settled event stream.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start processes raw fsnotify events until ctx is canceled.
func (w *Watcher) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error", "error", err)
		}
	}
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	w.closed = true
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	switch {
	case event.Op.Has(fsnotify.Create), event.Op.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			// New directory: watch it so files landing inside are seen.
			if event.Op.Has(fsnotify.Create) {
				if err := w.Add(event.Name); err != nil {
					w.logger.Warn("Failed to watch new directory",
						"path", event.Name, "error", err)
				}
			}
			return
		}
		w.touchPending(event.Name, info.Size(), info.ModTime())

	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		w.mu.Lock()
		if p, ok := w.pending[event.Name]; ok {
			p.timer.Stop()
			delete(w.pending, event.Name)
		}
		closed := w.closed
		w.mu.Unlock()
		if !closed {
			w.emit(Event{Type: EventRemoved, Path: event.Name})
		}
	}
}

// touchPending records activity on a path and (re)arms its settle timer.
func (w *Watcher) touchPending(path string, size int64, modTime time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	if p, ok := w.pending[path]; ok {
		p.size = size
		p.modTime = modTime
		p.timer.Reset(w.settleDelay)
		return
	}

	p := &pendingFile{size: size, modTime: modTime}
	p.timer = time.AfterFunc(w.settleDelay, func() {
		w.checkSettled(path)
	})
	w.pending[path] = p
}

// checkSettled re-stats the file; if it is still changing the timer restarts,
// otherwise the added event fires.
func (w *Watcher) checkSettled(path string) {
	info, err := os.Stat(path)
	if err != nil {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	p, ok := w.pending[path]
	if !ok || w.closed {
		w.mu.Unlock()
		return
	}
	if info.Size() != p.size || !info.ModTime().Equal(p.modTime) {
		p.size = info.Size()
		p.modTime = info.ModTime()
		p.timer.Reset(w.settleDelay)
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.mu.Unlock()

	w.emit(Event{Type: EventAdded, Path: path})
}

func (w *Watcher) emit(event Event) {
	select {
	case w.events <- event:
	default:
		w.logger.Warn("Watcher event queue full, dropping event", "path", event.Path)
	}
}
