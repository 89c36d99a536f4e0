package autoload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/compozy/taskref/pkg/logger"
	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 100 * time.Millisecond

// ReloadFunc receives the outcome of every reload triggered by the watcher.
type ReloadFunc func(result *LoadResult, err error)

// Watcher reloads a Loader whenever pipeline files below its root change.
type Watcher struct {
	loader    *Loader
	watcher   *fsnotify.Watcher
	debounce  time.Duration
	wg        sync.WaitGroup
	stopCh    chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// NewWatcher creates a watcher for loader. A non-positive debounce uses
// DefaultDebounce.
func NewWatcher(loader *Loader, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		loader:   loader,
		watcher:  fsWatcher,
		debounce: debounce,
		stopCh:   make(chan struct{}),
	}, nil
}

// Watch subscribes to every directory below the loader root and starts
// the event loop. It returns once the subscription is in place; the loop
// runs until ctx is canceled or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context, onReload ReloadFunc) error {
	if err := w.addTree(w.loader.Root()); err != nil {
		return err
	}
	started := false
	w.startOnce.Do(func() {
		started = true
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.handleEvents(ctx, onReload)
		}()
	})
	if !started {
		return errors.New("watcher already started")
	}
	return nil
}

// addTree watches dir and every directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// handleEvents processes file system events until the watcher is closed.
func (w *Watcher) handleEvents(ctx context.Context, onReload ReloadFunc) {
	log := logger.FromContext(ctx)
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			log.Debug("Pipeline file changed", "file", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			result, err := w.loader.Load(ctx)
			if err != nil {
				log.Warn("Pipeline reload failed", "error", err)
			}
			if onReload != nil {
				onReload(result, err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("File watcher error", "error", err)
		}
	}
}

// relevant reports whether event can change the loaded definitions. New
// directories are subscribed to as a side effect.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	cfg := w.loader.Config()
	if event.Op&fsnotify.Create != 0 {
		if err := w.addTree(event.Name); err == nil && w.isDir(event.Name) {
			return true
		}
	}
	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		return true
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}
	return w.loader.discoverer.Matches(event.Name, cfg.Include, cfg.Exclude)
}

func (w *Watcher) isDir(path string) bool {
	for _, watched := range w.watcher.WatchList() {
		if watched == path {
			return true
		}
	}
	return false
}

// Close stops the event loop, waits for it to exit and releases resources.
func (w *Watcher) Close() error {
	var closeErr error
	w.closeOnce.Do(func() {
		close(w.stopCh)
		if err := w.watcher.Close(); err != nil {
			closeErr = fmt.Errorf("failed to close watcher: %w", err)
		}
		w.wg.Wait()
	})
	return closeErr
}
