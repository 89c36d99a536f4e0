package pipeline

import (
	"fmt"
	"maps"
)

// Anchor locates a raw task definition: the task name it was declared
// under, the file that declared it and the byte offset of the definition.
type Anchor struct {
	Task   string `json:"task"`
	File   string `json:"file,omitempty"`
	Offset int    `json:"offset"`
}

func (a Anchor) String() string {
	if a.File == "" {
		return a.Task
	}
	return fmt.Sprintf("%s:%d (%s)", a.File, a.Offset, a.Task)
}

// Definition is one raw task as returned by a source.
type Definition struct {
	Task   *Task
	Anchor Anchor
}

// Fragment is a task together with its provenance. Self is the anchor of
// the definition that produced the fragment; Trace maps every set property
// to the anchor that supplied it.
type Fragment struct {
	Task  *Task             `json:"task"`
	Self  Anchor            `json:"self"`
	Trace map[string]Anchor `json:"trace,omitempty"`
}

// NewFragment wraps a raw definition. The task is copied so later merges
// never alias the source's value.
func NewFragment(def Definition) Fragment {
	task := def.Task.Clone()
	if task == nil {
		task = &Task{}
	}
	f := Fragment{Task: task, Self: def.Anchor, Trace: map[string]Anchor{}}
	for _, name := range task.Names() {
		f.Trace[name] = def.Anchor
	}
	return f
}

// Clone returns a fragment that shares nothing mutable with f.
func (f Fragment) Clone() Fragment {
	trace := maps.Clone(f.Trace)
	if trace == nil {
		trace = map[string]Anchor{}
	}
	task := f.Task.Clone()
	if task == nil {
		task = &Task{}
	}
	return Fragment{Task: task, Self: f.Self, Trace: trace}
}

// Origin returns the anchor that supplied the named property.
func (f Fragment) Origin(name string) Anchor {
	if a, ok := f.Trace[name]; ok {
		return a
	}
	return f.Self
}

// Provenance returns the origin of every set property.
func (f Fragment) Provenance() map[string]Anchor {
	out := make(map[string]Anchor)
	for _, name := range f.Task.Names() {
		out[name] = f.Origin(name)
	}
	return out
}

func (f *Fragment) setOrigin(name string, a Anchor) {
	f.Trace[name] = a
}
