package resolver

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/compozy/taskref/engine/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_EvalTask(t *testing.T) {
	t.Run("Should resolve a plain task with provenance", func(t *testing.T) {
		rc, collector, _ := setup(t, []string{`{"A": {"action": "ClickSelf", "next": ["B"]}}`})
		res, err := rc.EvalTask(t.Context(), "A")
		require.NoError(t, err)
		assert.Equal(t, "A", res.Name)
		assert.Equal(t, "ClickSelf", *res.Task.Action)
		assert.True(t, res.Task.BaseTaskResolved)
		assert.Equal(t, "file1.json", res.Self.File)
		assert.Equal(t, "file1.json", anchorFile(res.Trace, "next"))
		assert.Empty(t, collector.Diagnostics())
	})

	t.Run("Should overlay definitions from later files", func(t *testing.T) {
		rc, _, _ := setup(t, []string{
			`{"A": {"action": "ClickSelf", "maxTimes": 1}}`,
			`{"A": {"maxTimes": 2}}`,
		})
		res, err := rc.EvalTask(t.Context(), "A")
		require.NoError(t, err)
		assert.Equal(t, "ClickSelf", *res.Task.Action)
		assert.Equal(t, 2, *res.Task.MaxTimes)
		assert.Equal(t, "file1.json", anchorFile(res.Trace, "action"))
		assert.Equal(t, "file2.json", anchorFile(res.Trace, "maxTimes"))
	})

	t.Run("Should let a later definition with baseTask replace earlier ones", func(t *testing.T) {
		rc, _, _ := setup(t, []string{
			`{"A": {"action": "ClickSelf", "maxTimes": 1}, "Y": {"postDelay": 5}}`,
			`{"A": {"maxTimes": 2, "baseTask": "Y"}}`,
		})
		res, err := rc.EvalTask(t.Context(), "A")
		require.NoError(t, err)
		assert.Nil(t, res.Task.Action)
		assert.Nil(t, res.Task.BaseTask)
		assert.Equal(t, 2, *res.Task.MaxTimes)
		assert.Equal(t, 5, *res.Task.PostDelay)
	})

	t.Run("Should normalize repeated segments", func(t *testing.T) {
		rc, _, _ := setup(t, []string{`{"Q": {}}`})
		res, err := rc.EvalTask(t.Context(), "P@P@Q")
		require.NoError(t, err)
		assert.Equal(t, "P@Q", res.Name)
	})

	t.Run("Should hand out copies of cached tasks", func(t *testing.T) {
		rc, _, _ := setup(t, []string{`{"A": {"next": ["B"]}}`})
		res, err := rc.EvalTask(t.Context(), "A")
		require.NoError(t, err)
		res.Task.Next[0] = "changed"
		again, err := rc.EvalTask(t.Context(), "A")
		require.NoError(t, err)
		assert.Equal(t, pipeline.ExprList{"B"}, again.Task.Next)
	})
}

func TestContext_EvalTask_BaseTask(t *testing.T) {
	t.Run("Should inherit only base properties across an algorithm change", func(t *testing.T) {
		rc, _, _ := setup(t, []string{`{
			"X": {"template": "x.png", "action": "ClickSelf", "roi": [1, 2, 3, 4], "threshold": 0.9},
			"A": {"baseTask": "X", "algorithm": "OcrDetect", "text": ["hi"]}
		}`})
		res, err := rc.EvalTask(t.Context(), "A")
		require.NoError(t, err)
		assert.Equal(t, "OcrDetect", res.Task.EffectiveAlgorithm())
		assert.Equal(t, "ClickSelf", *res.Task.Action)
		assert.Equal(t, pipeline.Rect{1, 2, 3, 4}, *res.Task.Roi)
		assert.Nil(t, res.Task.Template)
		assert.Nil(t, res.Task.Threshold)
		assert.Nil(t, res.Task.BaseTask)
		assert.Equal(t, "X", res.Trace["action"].Task)
		assert.Equal(t, "A", res.Trace["text"].Task)
	})

	t.Run("Should follow multi-level chains", func(t *testing.T) {
		rc, _, _ := setup(t, []string{`{
			"A": {"action": "ClickSelf", "maxTimes": 1},
			"B": {"baseTask": "A", "maxTimes": 2, "preDelay": 10},
			"C": {"baseTask": "B", "preDelay": 20}
		}`})
		res, err := rc.EvalTask(t.Context(), "C")
		require.NoError(t, err)
		assert.Equal(t, "ClickSelf", *res.Task.Action)
		assert.Equal(t, 2, *res.Task.MaxTimes)
		assert.Equal(t, 20, *res.Task.PreDelay)
		assert.Equal(t, "A", res.Trace["action"].Task)
		assert.Equal(t, "B", res.Trace["maxTimes"].Task)
		assert.Equal(t, "C", res.Self.Task)
	})

	t.Run("Should warn and continue when the base is missing", func(t *testing.T) {
		rc, collector, _ := setup(t, []string{`{"A": {"baseTask": "Ghost", "action": "ClickSelf"}}`})
		res, err := rc.EvalTask(t.Context(), "A")
		require.NoError(t, err)
		assert.Equal(t, "ClickSelf", *res.Task.Action)
		assert.Nil(t, res.Task.BaseTask)
		assert.Equal(t, []Kind{KindBaseTaskNotFound}, kinds(collector.Diagnostics()))
		assert.False(t, collector.HasErrors())
	})

	t.Run("Should treat #none as no inheritance", func(t *testing.T) {
		rc, collector, _ := setup(t, []string{`{"A": {"baseTask": "#none", "action": "ClickSelf"}}`})
		res, err := rc.EvalTask(t.Context(), "A")
		require.NoError(t, err)
		assert.Nil(t, res.Task.BaseTask)
		assert.Empty(t, collector.Diagnostics())
	})

	t.Run("Should report a base task cycle", func(t *testing.T) {
		rc, collector, _ := setup(t, []string{`{"A": {"baseTask": "B"}, "B": {"baseTask": "A"}}`})
		res, err := rc.EvalTask(t.Context(), "A")
		require.ErrorIs(t, err, ErrTaskCycle)
		assert.Nil(t, res)
		diags := collector.Diagnostics()
		require.Len(t, diags, 1)
		assert.Equal(t, []string{"A", "B", "A"}, diags[0].Chain)
		_, cached := rc.Cached("A")
		assert.False(t, cached)
	})

	t.Run("Should report a task that inherits from itself", func(t *testing.T) {
		rc, _, _ := setup(t, []string{`{"A": {"baseTask": "A"}}`})
		_, err := rc.EvalTask(t.Context(), "A")
		require.ErrorIs(t, err, ErrTaskCycle)
	})
}

func TestContext_EvalTask_Namespaces(t *testing.T) {
	t.Run("Should re-qualify a task found only through its suffix", func(t *testing.T) {
		rc, _, _ := setup(t, []string{`{"Q": {"next": ["R"], "sub": ["S+T"], "action": "ClickSelf"}}`})
		res, err := rc.EvalTask(t.Context(), "P@Q")
		require.NoError(t, err)
		assert.Equal(t, pipeline.ExprList{"P@R"}, res.Task.Next)
		assert.Equal(t, pipeline.ExprList{"P@S+T"}, res.Task.Sub)
		assert.Equal(t, "ClickSelf", *res.Task.Action)

		res, err = rc.EvalTask(t.Context(), "O@P@Q")
		require.NoError(t, err)
		assert.Equal(t, pipeline.ExprList{"O@P@R"}, res.Task.Next)
	})

	t.Run("Should merge an explicit qualified task onto its suffix", func(t *testing.T) {
		rc, _, _ := setup(t, []string{`{
			"Q": {"action": "ClickSelf", "next": ["R"], "template": "q.png"},
			"P@Q": {"maxTimes": 3}
		}`})
		res, err := rc.EvalTask(t.Context(), "P@Q")
		require.NoError(t, err)
		assert.Equal(t, 3, *res.Task.MaxTimes)
		assert.Equal(t, "ClickSelf", *res.Task.Action)
		assert.Equal(t, pipeline.ExprList{"P@R"}, res.Task.Next)
		assert.Nil(t, res.Task.Template)
		assert.Equal(t, "Q", res.Trace["action"].Task)
		assert.Equal(t, "P@Q", res.Trace["maxTimes"].Task)
		assert.Equal(t, "P@Q", res.Self.Task)
	})

	t.Run("Should keep expressions written on the qualified task as they are", func(t *testing.T) {
		rc, _, _ := setup(t, []string{`{"Q": {"next": ["R"]}, "P@Q": {"next": ["Z"]}}`})
		res, err := rc.EvalTask(t.Context(), "P@Q")
		require.NoError(t, err)
		assert.Equal(t, pipeline.ExprList{"Z"}, res.Task.Next)
	})

	t.Run("Should prefer an explicit baseTask over the positional base", func(t *testing.T) {
		rc, _, _ := setup(t, []string{`{
			"Q": {"action": "FromQ"},
			"B": {"action": "FromB"},
			"P@Q": {"baseTask": "B"}
		}`})
		res, err := rc.EvalTask(t.Context(), "P@Q")
		require.NoError(t, err)
		assert.Equal(t, "FromB", *res.Task.Action)
	})

	t.Run("Should fall back to the qualified definition without diagnostics", func(t *testing.T) {
		rc, collector, _ := setup(t, []string{`{"P@Q": {"action": "ClickSelf"}}`})
		res, err := rc.EvalTask(t.Context(), "P@Q")
		require.NoError(t, err)
		assert.Equal(t, "ClickSelf", *res.Task.Action)
		assert.Empty(t, collector.Diagnostics())
	})

	t.Run("Should report a missing task with its parent", func(t *testing.T) {
		rc, collector, _ := setup(t, nil)
		_, err := rc.EvalTask(t.Context(), "P@Missing")
		require.ErrorIs(t, err, ErrTaskNotFound)
		diags := collector.Diagnostics()
		require.Len(t, diags, 1)
		assert.Equal(t, "Missing", diags[0].Subject)
		assert.Contains(t, diags[0].Message, `under "P"`)
	})
}

func TestContext_Cache(t *testing.T) {
	t.Run("Should answer repeated lookups from the cache", func(t *testing.T) {
		rc, _, _ := setup(t, []string{`{"A": {"baseTask": "B"}, "B": {}}`})
		_, err := rc.EvalTask(t.Context(), "A")
		require.NoError(t, err)
		_, err = rc.EvalTask(t.Context(), "A")
		require.NoError(t, err)
		stats := rc.Stats()
		assert.Equal(t, int64(2), stats.Resolutions)
		assert.GreaterOrEqual(t, stats.CacheHits, int64(1))
		assert.Equal(t, 2, stats.Cached)
		assert.ElementsMatch(t, []string{"A", "B"}, rc.CachedNames())
	})

	t.Run("Should drop everything on Clear", func(t *testing.T) {
		rc, _, src := setup(t, []string{`{"A": {"action": "Old"}}`})
		_, err := rc.EvalTask(t.Context(), "A")
		require.NoError(t, err)

		src.Define("A", &pipeline.Task{Action: strPtr("New")}, pipeline.Anchor{File: "live.json"})
		res, err := rc.EvalTask(t.Context(), "A")
		require.NoError(t, err)
		assert.Equal(t, "Old", *res.Task.Action)

		rc.Clear()
		_, cached := rc.Cached("A")
		assert.False(t, cached)
		res, err = rc.EvalTask(t.Context(), "A")
		require.NoError(t, err)
		assert.Equal(t, "New", *res.Task.Action)
		assert.Equal(t, "live.json", res.Trace["action"].File)
	})

	t.Run("Should serve concurrent callers", func(t *testing.T) {
		rc, collector, _ := setup(t, []string{`{
			"A": {"next": ["B", "C"], "baseTask": "Base"},
			"B": {"next": ["A#next"]},
			"C": {"baseTask": "B"},
			"Base": {"action": "ClickSelf"}
		}`})
		var wg sync.WaitGroup
		errs := make(chan error, 64)
		for i := range 32 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				name := []string{"A", "B", "C", "P@A"}[i%4]
				if _, err := rc.EvalTask(t.Context(), name); err != nil {
					errs <- err
				}
				if _, err := rc.EvalExpr(t.Context(), name+"#next", name); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}
		assert.Empty(t, collector.Diagnostics())
	})
}

// gatedSource holds its first query until release is closed. Every query
// answers with a task whose maxTimes is the current version.
type gatedSource struct {
	mu      sync.Mutex
	version int
	queries atomic.Int32
	started chan struct{}
	release chan struct{}
}

func newGatedSource(version int) *gatedSource {
	return &gatedSource{version: version, started: make(chan struct{}), release: make(chan struct{})}
}

func (s *gatedSource) setVersion(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = v
}

func (s *gatedSource) Query(ctx context.Context, name string) ([]pipeline.Definition, error) {
	s.mu.Lock()
	version := s.version
	s.mu.Unlock()
	if s.queries.Add(1) == 1 {
		close(s.started)
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []pipeline.Definition{{
		Task:   &pipeline.Task{MaxTimes: &version},
		Anchor: pipeline.Anchor{Task: name, File: "gated.json"},
	}}, nil
}

func TestContext_EvalTask_SharedFlight(t *testing.T) {
	t.Run("Should not fail other callers when one caller cancels", func(t *testing.T) {
		src := newGatedSource(1)
		rc, err := New(Combine(src, nil))
		require.NoError(t, err)
		defer rc.Close()

		ctxA, cancelA := context.WithCancel(t.Context())
		errA := make(chan error, 1)
		go func() {
			_, err := rc.EvalTask(ctxA, "A")
			errA <- err
		}()
		<-src.started

		type outcome struct {
			res *Resolved
			err error
		}
		doneB := make(chan outcome, 1)
		go func() {
			res, err := rc.EvalTask(context.Background(), "A")
			doneB <- outcome{res, err}
		}()
		time.Sleep(20 * time.Millisecond)

		cancelA()
		assert.ErrorIs(t, <-errA, context.Canceled)
		close(src.release)

		b := <-doneB
		require.NoError(t, b.err)
		assert.Equal(t, 1, *b.res.Task.MaxTimes)
		_, cached := rc.Cached("A")
		assert.True(t, cached)
	})

	t.Run("Should not join a flight started before Clear", func(t *testing.T) {
		src := newGatedSource(1)
		rc, err := New(Combine(src, nil))
		require.NoError(t, err)
		defer rc.Close()

		staleA := make(chan *Resolved, 1)
		go func() {
			res, err := rc.EvalTask(t.Context(), "A")
			assert.NoError(t, err)
			staleA <- res
		}()
		<-src.started

		src.setVersion(2)
		rc.Clear()
		res, err := rc.EvalTask(t.Context(), "A")
		require.NoError(t, err)
		assert.Equal(t, 2, *res.Task.MaxTimes)

		close(src.release)
		stale := <-staleA
		require.NotNil(t, stale)
		assert.Equal(t, 1, *stale.Task.MaxTimes)
		cached, ok := rc.Cached("A")
		require.True(t, ok)
		assert.Equal(t, 2, *cached.Task.MaxTimes)
	})
}
