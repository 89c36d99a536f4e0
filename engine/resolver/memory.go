package resolver

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/compozy/taskref/engine/pipeline"
)

// MemorySource is an in-memory Source. Definitions of the same name are
// returned in the order they were added.
type MemorySource struct {
	mu   sync.RWMutex
	defs map[string][]pipeline.Definition
}

func NewMemorySource() *MemorySource {
	return &MemorySource{defs: make(map[string][]pipeline.Definition)}
}

// Define adds a definition of name. An empty anchor task defaults to name.
func (m *MemorySource) Define(name string, task *pipeline.Task, anchor pipeline.Anchor) {
	if anchor.Task == "" {
		anchor.Task = name
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs[name] = append(m.defs[name], pipeline.Definition{Task: task, Anchor: anchor})
}

// LoadJSON adds every task of a pipeline document.
func (m *MemorySource) LoadJSON(file string, data []byte) error {
	defs, err := pipeline.ParseDocument(file, data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, def := range defs {
		m.defs[def.Anchor.Task] = append(m.defs[def.Anchor.Task], def)
	}
	return nil
}

func (m *MemorySource) Query(_ context.Context, name string) ([]pipeline.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.defs[name]), nil
}

// Names lists every defined task name, sorted.
func (m *MemorySource) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.defs))
	for name := range m.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset removes every definition.
func (m *MemorySource) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs = make(map[string][]pipeline.Definition)
}
