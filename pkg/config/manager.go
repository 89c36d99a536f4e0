package config

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/compozy/taskref/pkg/logger"
)

// ChangeFunc receives the previous and the new configuration. prev is nil
// for the first load.
type ChangeFunc func(prev, next *Config)

// Manager owns the effective configuration. Load reads every source once;
// long-running commands call Watch to follow changes to watchable sources.
type Manager struct {
	Service Service
	current atomic.Pointer[Config]

	mu       sync.Mutex
	sources  []Source
	subs     []ChangeFunc
	debounce time.Duration
	timer    *time.Timer
	stop     context.CancelFunc
	closed   bool

	// serializes loads so subscribers see changes in order
	reloadMu sync.Mutex
}

// NewManager creates a manager over service, or over a new loader when
// service is nil.
func NewManager(service Service) *Manager {
	if service == nil {
		service = NewService()
	}
	return &Manager{Service: service, debounce: DefaultDebounce}
}

// Load reads the configuration from sources and makes it current.
func (m *Manager) Load(ctx context.Context, sources ...Source) (*Config, error) {
	m.mu.Lock()
	m.sources = append([]Source(nil), sources...)
	m.mu.Unlock()
	if err := m.Reload(ctx); err != nil {
		return nil, err
	}
	return m.Get(), nil
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	return m.current.Load()
}

// Reload reads every source again. On failure the current configuration
// stays in place.
func (m *Manager) Reload(ctx context.Context) error {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()
	m.mu.Lock()
	sources := m.sources
	m.mu.Unlock()
	next, err := m.Service.Load(ctx, sources...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	prev := m.current.Swap(next)
	if prev != nil && reflect.DeepEqual(prev, next) {
		return nil
	}
	m.mu.Lock()
	subs := append([]ChangeFunc(nil), m.subs...)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(prev, next)
	}
	return nil
}

// SetDebounce sets how long Watch waits for a burst of changes to settle.
func (m *Manager) SetDebounce(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debounce = d
}

// OnChange subscribes fn to configuration changes. Reloads that produce an
// identical configuration are not reported.
func (m *Manager) OnChange(fn ChangeFunc) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Watch follows the sources that support watching and reloads after every
// debounced change until ctx is done or the manager is closed. Calling Watch
// again has no effect.
func (m *Manager) Watch(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("configuration manager is closed")
	}
	if m.stop != nil {
		m.mu.Unlock()
		return nil
	}
	watchCtx, stop := context.WithCancel(ctx)
	m.stop = stop
	sources := m.sources
	m.mu.Unlock()

	log := logger.FromContext(ctx)
	for _, source := range sources {
		if err := source.Watch(watchCtx, func() { m.schedule(watchCtx) }); err != nil {
			stop()
			return fmt.Errorf("failed to watch %s configuration: %w", source.Type(), err)
		}
		log.Debug("Watching configuration source", "source", source.Type())
	}
	return nil
}

// schedule restarts the debounce timer; the reload runs once the timer fires.
func (m *Manager) schedule(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || ctx.Err() != nil {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		if err := m.Reload(ctx); err != nil {
			logger.FromContext(ctx).Warn("Configuration reload rejected, keeping previous", "error", err)
		}
	})
}

// Close stops watching, waits for a running reload and closes the sources.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.stop != nil {
		m.stop()
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	sources := m.sources
	m.mu.Unlock()

	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()
	for _, source := range sources {
		if err := source.Close(); err != nil {
			logger.FromContext(ctx).Error("Failed to close configuration source", "source", source.Type(), "error", err)
		}
	}
	return nil
}
