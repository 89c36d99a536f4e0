package resolver

import (
	"context"
	"errors"
	"slices"

	"github.com/compozy/taskref/engine/pipeline"
)

// call holds the guard stacks of one top-level evaluation.
type call struct {
	c          *Context
	ctx        context.Context
	generation uint64

	tasks []string
	exprs []ExprFrame
}

func (c *Context) newCall(ctx context.Context) *call {
	return &call{c: c, ctx: ctx, generation: c.currentGeneration()}
}

// evalTask resolves name. parent is the qualifier peeled off by an outer
// lookup and only feeds diagnostics. When optional is set a missing
// definition fails without a TaskNotFound report.
func (k *call) evalTask(name, parent string, optional bool) (pipeline.Fragment, error) {
	segs := pipeline.SplitName(name)
	if len(segs) == 0 {
		if !optional {
			k.c.reportTaskNotFound(k.ctx, name, parent)
		}
		return pipeline.Fragment{}, taskNotFoundError(name, parent)
	}
	full := pipeline.JoinName(segs)
	if frag, ok := k.c.lookup(full); ok {
		k.c.hit(k.ctx)
		return frag, nil
	}
	if slices.Contains(k.tasks, full) {
		chain := append(slices.Clone(k.tasks[slices.Index(k.tasks, full):]), full)
		k.c.reportTaskCycle(k.ctx, chain)
		return pipeline.Fragment{}, taskCycleError(chain)
	}
	k.tasks = append(k.tasks, full)
	defer func() { k.tasks = k.tasks[:len(k.tasks)-1] }()

	frag, err := k.resolve(segs, full, parent, optional)
	if err != nil {
		return pipeline.Fragment{}, err
	}
	k.c.resolutions.Add(1)
	recordResolution(k.ctx)
	k.c.store(k.generation, full, frag)
	return frag, nil
}

func (k *call) resolve(segs []string, full, parent string, optional bool) (pipeline.Fragment, error) {
	log := k.c.logger(k.ctx)
	defs, err := k.c.delegate.Query(k.ctx, full)
	if err != nil {
		return pipeline.Fragment{}, err
	}

	if len(defs) == 0 {
		if len(segs) == 1 {
			if !optional {
				k.c.reportTaskNotFound(k.ctx, full, parent)
			}
			return pipeline.Fragment{}, taskNotFoundError(full, parent)
		}
		suffix, err := k.evalTask(pipeline.JoinName(segs[1:]), qualify(parent, segs[0]), optional)
		if err != nil {
			return pipeline.Fragment{}, err
		}
		return pipeline.ApplyParent(suffix, segs[:1]), nil
	}

	frags := make([]pipeline.Fragment, len(defs))
	for i, def := range defs {
		frags[i] = pipeline.NewFragment(def)
	}
	merged := pipeline.MergeMultiPath(frags)

	if merged.Task.BaseTask == nil && len(segs) > 1 {
		base, err := k.evalTask(pipeline.JoinName(segs[1:]), qualify(parent, segs[0]), true)
		switch {
		case err == nil:
			merged = pipeline.MergeTask(pipeline.ApplyParent(base, segs[:1]), merged, pipeline.MergeAt)
		case isEvalError(err):
			log.Warn("Positional base unavailable, using definition alone",
				"task", full, "base", pipeline.JoinName(segs[1:]), "error", err)
		default:
			return pipeline.Fragment{}, err
		}
	}
	return k.resolveBaseTask(merged)
}

// resolveBaseTask follows baseTask pointers until the fragment is
// base-resolved. A missing target is a warning; the pointer is dropped.
func (k *call) resolveBaseTask(frag pipeline.Fragment) (pipeline.Fragment, error) {
	for {
		if frag.Task.BaseTaskResolved {
			return frag, nil
		}
		target := frag.Task.BaseTask
		if target == nil {
			frag.Task.BaseTaskResolved = true
			return frag, nil
		}
		if *target == pipeline.NoBaseTask {
			frag = dropBaseTask(frag)
			continue
		}
		base, err := k.evalTask(*target, "", true)
		if errors.Is(err, ErrTaskNotFound) {
			k.c.reportBaseTaskNotFound(k.ctx, *target)
			frag = dropBaseTask(frag)
			continue
		}
		if err != nil {
			return pipeline.Fragment{}, err
		}
		frag = pipeline.MergeTask(base, frag, pipeline.MergeBaseTask)
	}
}

func dropBaseTask(frag pipeline.Fragment) pipeline.Fragment {
	out := frag.Clone()
	pipeline.BaseTaskProp.Clear(out.Task)
	delete(out.Trace, pipeline.BaseTaskProp.Name)
	return out
}

func qualify(parent, seg string) string {
	if parent == "" {
		return seg
	}
	return parent + pipeline.Separator + seg
}

func isEvalError(err error) bool {
	var evalErr *Error
	return errors.As(err, &evalErr)
}
