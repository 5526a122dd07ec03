package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ProfileWatcher calls onChange after the profiles file is
// written, created, renamed or removed, once events have been
// quiet for the debounce period. It watches the parent directory
// so editors that replace the file are still seen.
type ProfileWatcher struct {
	path     string
	onChange func()
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	pending time.Time

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewProfileWatcher watches the profiles file at path.
func NewProfileWatcher(
	path string, debounce time.Duration, onChange func(),
) (*ProfileWatcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("onChange callback is nil: %w", os.ErrInvalid)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving profiles path: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	return &ProfileWatcher{
		path:     abs,
		onChange: onChange,
		watcher:  fsw,
		debounce: debounce,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		now:      time.Now,
	}, nil
}

// Start begins processing file events in a goroutine.
func (w *ProfileWatcher) Start() {
	go w.loop()
}

// Stop stops the watcher and waits for it to finish.
func (w *ProfileWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		<-w.done
		w.watcher.Close()
	})
}

func (w *ProfileWatcher) loop() {
	defer close(w.done)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("profile watcher error: %v", err)

		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *ProfileWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return
	}
	w.mu.Lock()
	w.pending = w.now()
	w.mu.Unlock()
}

func (w *ProfileWatcher) flush() {
	w.mu.Lock()
	if w.pending.IsZero() || w.now().Sub(w.pending) < w.debounce {
		w.mu.Unlock()
		return
	}
	w.pending = time.Time{}
	w.mu.Unlock()

	log.Printf("profiles file %s changed, reloading connections", w.path)
	w.onChange()
}
