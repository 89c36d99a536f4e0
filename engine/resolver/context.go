// Package resolver evaluates task references: it resolves compound task
// names into fully merged definitions with provenance and expands task
// expressions into ordered lists of task names.
//
// A Context owns a resolution cache shared by all calls. Cycle guards are
// allocated per top-level call, so independent calls may run concurrently.
package resolver

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/compozy/taskref/engine/pipeline"
	"github.com/compozy/taskref/pkg/logger"
	"github.com/compozy/taskref/pkg/taskexpr"
	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"
)

// Resolved is a fully merged, base-resolved task and its provenance.
type Resolved struct {
	Name  string                     `json:"name"`
	Task  *pipeline.Task             `json:"task"`
	Self  pipeline.Anchor            `json:"self"`
	Trace map[string]pipeline.Anchor `json:"trace"`
}

func newResolved(name string, frag pipeline.Fragment) *Resolved {
	clone := frag.Clone()
	return &Resolved{Name: name, Task: clone.Task, Self: clone.Self, Trace: clone.Trace}
}

// Stats counts cache activity since the Context was created.
type Stats struct {
	Resolutions int64 `json:"resolutions"`
	CacheHits   int64 `json:"cache_hits"`
	Cached      int   `json:"cached"`
}

// Context is an evaluation context: a resolution cache over one Delegate.
// It is safe for concurrent use.
type Context struct {
	delegate Delegate
	opts     *options
	grammar  *taskexpr.Grammar

	parseCache *ristretto.Cache[string, taskexpr.Expr]
	group      singleflight.Group

	mu         sync.RWMutex
	cache      map[string]pipeline.Fragment
	generation uint64

	resolutions atomic.Int64
	cacheHits   atomic.Int64
}

// New creates an evaluation context backed by delegate.
func New(delegate Delegate, opts ...Option) (*Context, error) {
	if delegate == nil {
		return nil, fmt.Errorf("resolver: delegate is required")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	c := &Context{
		delegate: delegate,
		opts:     o,
		grammar:  taskexpr.NewGrammar(),
		cache:    make(map[string]pipeline.Fragment),
	}
	if o.parseCacheSize > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config[string, taskexpr.Expr]{
			NumCounters: int64(o.parseCacheSize) * 10,
			MaxCost:     int64(o.parseCacheSize),
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create expression cache: %w", err)
		}
		c.parseCache = cache
	}
	return c, nil
}

// Close releases the expression cache.
func (c *Context) Close() {
	if c.parseCache != nil {
		c.parseCache.Close()
	}
}

// Clear drops every resolved task. Calls in flight when Clear runs do not
// repopulate the cache.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]pipeline.Fragment)
	c.generation++
}

// Cached returns the cached resolution of name, if any.
func (c *Context) Cached(name string) (*Resolved, bool) {
	full := pipeline.NormalizeName(name)
	frag, ok := c.lookup(full)
	if !ok {
		return nil, false
	}
	return newResolved(full, frag), true
}

// Stats returns cache counters and the number of cached resolutions.
func (c *Context) Stats() Stats {
	c.mu.RLock()
	cached := len(c.cache)
	c.mu.RUnlock()
	return Stats{
		Resolutions: c.resolutions.Load(),
		CacheHits:   c.cacheHits.Load(),
		Cached:      cached,
	}
}

// CachedNames returns the names currently held in the cache.
func (c *Context) CachedNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.cache))
	for name := range maps.Keys(c.cache) {
		names = append(names, name)
	}
	return names
}

func (c *Context) lookup(full string) (pipeline.Fragment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	frag, ok := c.cache[full]
	return frag, ok
}

func (c *Context) store(generation uint64, full string, frag pipeline.Fragment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return
	}
	c.cache[full] = frag
}

func (c *Context) currentGeneration() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

func (c *Context) parse(text string) (taskexpr.Expr, error) {
	if c.parseCache != nil {
		if expr, ok := c.parseCache.Get(text); ok {
			return expr, nil
		}
	}
	expr, err := c.grammar.Parse(text)
	if err != nil {
		return nil, err
	}
	if c.parseCache != nil {
		c.parseCache.Set(text, expr, 1)
	}
	return expr, nil
}

func (c *Context) logger(ctx context.Context) logger.Logger {
	if c.opts.log != nil {
		return c.opts.log
	}
	return logger.FromContext(ctx)
}

// ---- entry points ----

// EvalTask resolves a compound task name. Concurrent calls for the same name
// share one resolution.
func (c *Context) EvalTask(ctx context.Context, name string) (*Resolved, error) {
	full := pipeline.NormalizeName(name)
	if frag, ok := c.lookup(full); ok {
		c.hit(ctx)
		return newResolved(full, frag), nil
	}
	// The shared flight outlives any single caller; each caller stops
	// waiting on its own context. Keying by generation keeps callers that
	// arrive after Clear off flights started against the old sources.
	gen := c.currentGeneration()
	flight := c.group.DoChan(strconv.FormatUint(gen, 10)+"/"+full, func() (any, error) {
		k := c.newCall(context.WithoutCancel(ctx))
		k.generation = gen
		return k.evalTask(full, "", false)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-flight:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	frag, ok := res.Val.(pipeline.Fragment)
	if !ok {
		return nil, fmt.Errorf("resolver: unexpected result type %T", res.Val)
	}
	return newResolved(full, frag), nil
}

// EvalExpr parses text and expands it to task names, resolving virtual
// references relative to self. The result is deduplicated unless
// WithoutStrip is given.
func (c *Context) EvalExpr(ctx context.Context, text, self string, opts ...EvalOption) ([]string, error) {
	o := &evalOptions{strip: true}
	for _, opt := range opts {
		opt(o)
	}
	expr, err := c.parse(text)
	if err != nil {
		c.reportParseError(ctx, text, err)
		return nil, parseError(text, err)
	}
	return c.EvalAST(ctx, expr, self, o.strip)
}

// EvalAST expands an already parsed expression.
func (c *Context) EvalAST(ctx context.Context, expr taskexpr.Expr, self string, strip bool) ([]string, error) {
	return c.newCall(ctx).evalExpr(expr, self, strip)
}

func (c *Context) hit(ctx context.Context) {
	c.cacheHits.Add(1)
	recordCacheHit(ctx)
}

// ---- diagnostics ----

func (c *Context) reportTaskCycle(ctx context.Context, chain []string) {
	recordDiagnostic(ctx, KindTaskCycle)
	c.delegate.TaskCycle(chain)
}

func (c *Context) reportExprCycle(ctx context.Context, chain []ExprFrame) {
	recordDiagnostic(ctx, KindExprCycle)
	c.delegate.ExprCycle(chain)
}

func (c *Context) reportTaskNotFound(ctx context.Context, name, parent string) {
	recordDiagnostic(ctx, KindTaskNotFound)
	c.delegate.TaskNotFound(name, parent)
}

func (c *Context) reportBaseTaskNotFound(ctx context.Context, name string) {
	recordDiagnostic(ctx, KindBaseTaskNotFound)
	c.delegate.BaseTaskNotFound(name)
}

func (c *Context) reportParseError(ctx context.Context, expr string, err error) {
	recordDiagnostic(ctx, KindParse)
	c.delegate.ParseError(expr, err)
}

func (c *Context) reportExpansion(ctx context.Context, count int) {
	recordDiagnostic(ctx, KindExpansionTooLarge)
	c.delegate.ExpansionTooLarge(count)
}
