package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/compozy/taskref/pkg/logger"
	"github.com/fsnotify/fsnotify"
)

// Watcher reports writes to individual files.
//
// Editors often replace a file instead of writing it in place, so the
// parent directory is watched and events are matched by absolute path.
type Watcher struct {
	fs  *fsnotify.Watcher
	log logger.Logger

	mu      sync.RWMutex
	targets map[string][]func()

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewWatcher creates a watcher and starts dispatching events. Close releases it.
func NewWatcher(ctx context.Context) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		fs:      fs,
		log:     logger.FromContext(ctx),
		targets: make(map[string][]func()),
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.dispatch()
	}()
	return w, nil
}

// Add calls onChange whenever path is written or recreated.
func (w *Watcher) Add(path string, onChange func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if err := w.fs.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.targets[abs] = append(w.targets[abs], onChange)
	return nil
}

// Remove drops every callback registered for path.
func (w *Watcher) Remove(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.targets, abs)
}

func (w *Watcher) dispatch() {
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.mu.RLock()
			callbacks := append([]func(){}, w.targets[event.Name]...)
			w.mu.RUnlock()
			for _, fn := range callbacks {
				fn()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("Config watcher error", "error", err)
		}
	}
}

// Close stops the watcher and waits for the dispatch loop to exit.
func (w *Watcher) Close() error {
	var closeErr error
	w.closeOnce.Do(func() {
		if err := w.fs.Close(); err != nil {
			closeErr = fmt.Errorf("failed to close watcher: %w", err)
		}
		w.wg.Wait()
	})
	return closeErr
}
