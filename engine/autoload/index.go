package autoload

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/compozy/taskref/engine/pipeline"
	"github.com/compozy/taskref/engine/resolver"
)

var _ resolver.Source = (*Index)(nil)

// fileDoc holds the definitions parsed from one pipeline file.
type fileDoc struct {
	path string
	defs []pipeline.Definition
}

// Index stores the task definitions discovered by a Loader and serves them
// to the resolver. Definitions sharing a name are returned in file order.
type Index struct {
	mu     sync.RWMutex
	files  []string
	byName map[string][]pipeline.Definition
	count  int
}

// NewIndex creates an empty index
func NewIndex() *Index {
	return &Index{byName: make(map[string][]pipeline.Definition)}
}

// Query returns every definition of name, earliest file first.
func (x *Index) Query(_ context.Context, name string) ([]pipeline.Definition, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return slices.Clone(x.byName[name]), nil
}

// Names lists the defined task names, sorted.
func (x *Index) Names() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	names := make([]string, 0, len(x.byName))
	for name := range x.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Files lists the indexed files in load order.
func (x *Index) Files() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return slices.Clone(x.files)
}

// Count returns the number of indexed definitions.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.count
}

// Anchors returns where name is defined, in file order.
func (x *Index) Anchors(name string) []pipeline.Anchor {
	x.mu.RLock()
	defer x.mu.RUnlock()
	anchors := make([]pipeline.Anchor, 0, len(x.byName[name]))
	for _, def := range x.byName[name] {
		anchors = append(anchors, def.Anchor)
	}
	return anchors
}

// replace swaps the whole index content in one step.
func (x *Index) replace(docs []fileDoc) {
	files := make([]string, 0, len(docs))
	byName := make(map[string][]pipeline.Definition)
	count := 0
	for _, doc := range docs {
		files = append(files, doc.path)
		for _, def := range doc.defs {
			byName[def.Anchor.Task] = append(byName[def.Anchor.Task], def)
			count++
		}
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.files = files
	x.byName = byName
	x.count = count
}
