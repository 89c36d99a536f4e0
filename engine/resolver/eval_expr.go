package resolver

import (
	"fmt"
	"math"
	"slices"

	"github.com/compozy/taskref/engine/pipeline"
	"github.com/compozy/taskref/pkg/taskexpr"
)

func (k *call) evalExpr(expr taskexpr.Expr, self string, strip bool) ([]string, error) {
	out, err := k.eval(expr, self)
	if err != nil {
		return nil, err
	}
	if strip {
		out = pipeline.RemoveDuplicated(out, false)
	}
	return out, nil
}

func (k *call) eval(expr taskexpr.Expr, self string) ([]string, error) {
	switch e := expr.(type) {
	case *taskexpr.Task:
		return []string{e.Name}, nil
	case *taskexpr.Brace:
		return k.evalExpr(e.Inner, self, false)
	case *taskexpr.Virtual:
		if e.Kind == taskexpr.VirtualSelf && self != "" {
			return []string{self}, nil
		}
		return []string{}, nil
	case *taskexpr.At:
		return k.evalAt(e, self)
	case *taskexpr.Repeat:
		return k.evalRepeat(e, self)
	case *taskexpr.Concat:
		left, right, err := k.evalPair(e.Left, e.Right, self)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil
	case *taskexpr.Difference:
		left, right, err := k.evalPair(e.Left, e.Right, self)
		if err != nil {
			return nil, err
		}
		exclude := make(map[string]struct{}, len(right))
		for _, name := range right {
			exclude[name] = struct{}{}
		}
		out := make([]string, 0, len(left))
		for _, name := range left {
			if _, ok := exclude[name]; !ok {
				out = append(out, name)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("resolver: unsupported expression node %T", expr)
	}
}

func (k *call) evalPair(left, right taskexpr.Expr, self string) ([]string, []string, error) {
	l, err := k.evalExpr(left, self, false)
	if err != nil {
		return nil, nil, err
	}
	r, err := k.evalExpr(right, self, false)
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

func (k *call) evalRepeat(e *taskexpr.Repeat, self string) ([]string, error) {
	inner, err := k.evalExpr(e.Inner, self, false)
	if err != nil {
		return nil, err
	}
	if err := k.checkSize(len(inner), e.Count); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(inner)*e.Count)
	for range e.Count {
		out = append(out, inner...)
	}
	return out, nil
}

// checkSize fails when a product of a and b would exceed the expansion limit.
func (k *call) checkSize(a, b int) error {
	limit := k.c.opts.maxExpansion
	if a == 0 || b == 0 || a <= limit/b {
		return nil
	}
	count := limit + 1
	if a <= math.MaxInt/b {
		count = a * b
	}
	k.c.reportExpansion(k.ctx, count)
	return expansionError(count, limit)
}

func (k *call) evalAt(e *taskexpr.At, self string) ([]string, error) {
	var acc []string
	for i, member := range e.Members {
		vals, err := k.evalExpr(member, self, false)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			acc = vals
			continue
		}
		if err := k.checkSize(len(acc), len(vals)); err != nil {
			return nil, err
		}
		next := make([]string, 0, len(acc)*len(vals))
		for _, left := range acc {
			for _, right := range vals {
				next = append(next, left+pipeline.Separator+right)
			}
		}
		acc = next
	}
	for i, name := range acc {
		acc[i] = pipeline.NormalizeName(name)
	}

	switch e.Virtual {
	case taskexpr.VirtualUnset, taskexpr.VirtualBack:
		return acc, nil
	case taskexpr.VirtualNone:
		return []string{}, nil
	case taskexpr.VirtualSelf:
		out := make([]string, 0, len(acc))
		if self == "" {
			return out, nil
		}
		for range acc {
			out = append(out, self)
		}
		return out, nil
	}

	prop, ok := pipeline.ExprPropFor(e.Virtual)
	if !ok {
		return nil, fmt.Errorf("resolver: unsupported virtual keyword #%s", e.Virtual)
	}
	var out []string
	for _, name := range acc {
		vals, err := k.derefProperty(name, prop, self)
		if err != nil {
			return nil, err
		}
		out = append(out, vals...)
	}
	if out == nil {
		out = []string{}
	}
	switch e.Virtual {
	case taskexpr.VirtualNext, taskexpr.VirtualExceededNext, taskexpr.VirtualOnErrorNext:
		out = pipeline.RemoveDuplicated(out, false)
	}
	return out, nil
}

// derefProperty evaluates every expression of name's prop, e.g. the
// expressions behind A#next.
func (k *call) derefProperty(name string, prop pipeline.ExprProperty, self string) ([]string, error) {
	frag, err := k.evalTask(name, "", false)
	if err != nil {
		return nil, err
	}
	frame := ExprFrame{Task: name, Kind: prop.Kind}
	if i := slices.Index(k.exprs, frame); i >= 0 {
		chain := append(slices.Clone(k.exprs[i:]), frame)
		k.c.reportExprCycle(k.ctx, chain)
		return nil, exprCycleError(chain)
	}
	k.exprs = append(k.exprs, frame)
	defer func() { k.exprs = k.exprs[:len(k.exprs)-1] }()

	var out []string
	for _, text := range prop.List(frag.Task) {
		expr, err := k.c.parse(text)
		if err != nil {
			k.c.reportParseError(k.ctx, text, err)
			return nil, parseError(text, err)
		}
		vals, err := k.evalExpr(expr, self, false)
		if err != nil {
			return nil, err
		}
		out = append(out, vals...)
	}
	return out, nil
}
