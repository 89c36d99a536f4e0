package pipeline

import (
	"encoding/json"
	"strings"
)

// MergeMode selects how MergeTask combines a base with an inheriting task.
type MergeMode int

const (
	// MergeAt combines a task found under a qualified name with the task
	// resolved from its unqualified suffix.
	MergeAt MergeMode = iota
	// MergeBaseTask combines a task with the target of its baseTask pointer.
	MergeBaseTask
)

func (m MergeMode) String() string {
	if m == MergeBaseTask {
		return "baseTask"
	}
	return "at"
}

// MergeTask overlays inherited onto base.
//
// In MergeAt mode a task that carries its own baseTask wins outright. When
// inherited switches to a different algorithm only base properties are
// carried over from base; otherwise every property of inherited replaces
// the one from base, and base's template is dropped unless inherited sets
// one. In MergeBaseTask mode the pointer is removed from the result.
// The result is never marked base-resolved.
func MergeTask(base, inherited Fragment, mode MergeMode) Fragment {
	if mode == MergeAt && inherited.Task.BaseTask != nil {
		return inherited.Clone()
	}

	var out Fragment
	if alg := inherited.Task.Algorithm; alg != nil && *alg != base.Task.EffectiveAlgorithm() {
		out = inherited.Clone()
		for _, p := range BaseProps {
			if p.IsSet(inherited.Task) || !p.IsSet(base.Task) {
				continue
			}
			p.Copy(out.Task, base.Task)
			out.setOrigin(p.Name, base.Origin(p.Name))
		}
	} else {
		out = base.Clone()
		out.Self = inherited.Self
		overlay(&out, inherited)
		if !TemplateProp.IsSet(inherited.Task) {
			TemplateProp.Clear(out.Task)
			delete(out.Trace, TemplateProp.Name)
		}
	}

	if mode == MergeBaseTask {
		BaseTaskProp.Clear(out.Task)
		delete(out.Trace, BaseTaskProp.Name)
	}
	out.Task.BaseTaskResolved = false
	return out
}

// MergeMultiPath combines every definition registered under one name, in
// source order. A fragment that declares baseTask stands alone and shadows
// everything before it; the value "#none" is removed so the result inherits
// nothing. Otherwise later fragments overlay earlier ones property by
// property.
func MergeMultiPath(frags []Fragment) Fragment {
	if len(frags) == 0 {
		return Fragment{Task: &Task{}, Trace: map[string]Anchor{}}
	}
	last := frags[len(frags)-1]
	if bt := last.Task.BaseTask; bt != nil {
		out := last.Clone()
		if *bt == NoBaseTask {
			BaseTaskProp.Clear(out.Task)
			delete(out.Trace, BaseTaskProp.Name)
		}
		return out
	}
	if len(frags) == 1 {
		return last.Clone()
	}
	out := MergeMultiPath(frags[:len(frags)-1])
	out.Self = last.Self
	overlay(&out, last)
	return out
}

// ApplyParent re-qualifies every expression of a resolved fragment under
// parents: "X" becomes "P@X" for parents ["P"]. The rewrite is textual, so
// an expression such as "A+B" becomes "P@A+B". Rewritten properties are
// attributed to the fragment itself.
func ApplyParent(frag Fragment, parents []string) Fragment {
	out := frag.Clone()
	if len(parents) == 0 {
		return out
	}
	prefix := strings.Join(parents, Separator) + Separator
	for _, p := range ExprProps {
		list := p.List(out.Task)
		if list == nil {
			continue
		}
		rewritten := make(ExprList, len(list))
		for i, expr := range list {
			rewritten[i] = prefix + expr
		}
		p.SetList(out.Task, rewritten)
		out.setOrigin(p.Name, out.Self)
	}
	return out
}

func overlay(dst *Fragment, src Fragment) {
	for _, p := range AllProps {
		if !p.IsSet(src.Task) {
			continue
		}
		p.Copy(dst.Task, src.Task)
		dst.setOrigin(p.Name, src.Origin(p.Name))
	}
	for key, value := range src.Task.Extra {
		if dst.Task.Extra == nil {
			dst.Task.Extra = make(map[string]json.RawMessage, len(src.Task.Extra))
		}
		dst.Task.Extra[key] = value
		dst.setOrigin(key, src.Origin(key))
	}
}
