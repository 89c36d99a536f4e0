// Package pipeline models task definitions and the rules for combining them:
// multi-file overlay, inheritance through qualified names and baseTask, and
// re-qualification of expressions under a parent namespace.
package pipeline

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mohae/deepcopy"
)

// DefaultAlgorithm is the recognition algorithm of a task that does not set one.
const DefaultAlgorithm = "MatchTemplate"

// NoBaseTask is the baseTask value that explicitly disables inheritance.
const NoBaseTask = "#none"

// Rect is an [x, y, width, height] rectangle.
type Rect [4]int

// StringList accepts either a single JSON string or an array of strings.
// A nil list means the property is unset; an empty list is set and empty.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	list, err := decodeStringList(data)
	if err != nil {
		return err
	}
	*l = list
	return nil
}

// ExprList is an ordered list of unevaluated task expressions. It decodes
// like StringList.
type ExprList []string

func (l *ExprList) UnmarshalJSON(data []byte) error {
	list, err := decodeStringList(data)
	if err != nil {
		return err
	}
	*l = list
	return nil
}

func decodeStringList(data []byte) ([]string, error) {
	if string(data) == "null" {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		return []string{single}, nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("expected a string or an array of strings: %w", err)
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

// Task is one raw or resolved task definition. Every property is optional:
// pointers, lists and raw values are nil when unset. Keys that are not part
// of the schema are kept in Extra and treated as algorithm-specific.
type Task struct {
	// TaskBaseProps
	Algorithm              *string
	Action                 *string
	Sub                    ExprList
	SubErrorIgnored        *bool
	Next                   ExprList
	MaxTimes               *int
	ExceededNext           ExprList
	OnErrorNext            ExprList
	PreDelay               *int
	PostDelay              *int
	Roi                    *Rect
	Cache                  *bool
	RectMove               *Rect
	ReduceOtherTimes       ExprList
	SpecificRect           *Rect
	SpecialParams          []int
	HighResolutionSwipeFix *bool

	// recognition parameters, only meaningful for some algorithms
	Template         StringList
	TemplThreshold   json.RawMessage
	MaskRange        json.RawMessage
	ColorScales      json.RawMessage
	ColorWithClose   *bool
	Method           json.RawMessage
	PureColor        *bool
	Text             StringList
	FullMatch        *bool
	IsASCII          *bool
	WithoutDet       *bool
	OcrReplace       json.RawMessage
	ReplaceFull      *bool
	UseRaw           *bool
	BinThreshold     json.RawMessage
	Hash             StringList
	Threshold        json.RawMessage
	Bound            *bool
	SpecialThreshold json.RawMessage
	Count            json.RawMessage
	Ratio            json.RawMessage
	Detector         *string

	BaseTask *string
	// BaseTaskResolved is set once BaseTask has been followed to completion.
	BaseTaskResolved bool

	Extra map[string]json.RawMessage
}

// EffectiveAlgorithm returns the algorithm, defaulting to MatchTemplate.
func (t *Task) EffectiveAlgorithm() string {
	if t == nil || t.Algorithm == nil {
		return DefaultAlgorithm
	}
	return *t.Algorithm
}

// Clone returns a deep copy of t.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	clone, ok := deepcopy.Copy(t).(*Task)
	if !ok {
		panic("pipeline: failed to copy task")
	}
	return clone
}

// Has reports whether the named property (schema or extra) is set.
func (t *Task) Has(name string) bool {
	if p, ok := propertyIndex[name]; ok {
		return p.IsSet(t)
	}
	_, ok := t.Extra[name]
	return ok
}

// Names returns every set property name in a stable order: schema
// properties in declaration order followed by sorted extra keys.
func (t *Task) Names() []string {
	names := make([]string, 0, len(AllProps)+len(t.Extra))
	for _, p := range AllProps {
		if p.IsSet(t) {
			names = append(names, p.Name)
		}
	}
	return append(names, t.extraNames()...)
}

func (t *Task) extraNames() []string {
	names := make([]string, 0, len(t.Extra))
	for name := range t.Extra {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExprList returns the expression list selected by a property name such as
// "next"; it is nil when unset.
func (t *Task) ExprList(name string) ExprList {
	p, ok := exprPropertyIndex[name]
	if !ok {
		return nil
	}
	return *p.list(t)
}

func (t *Task) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("task must be a JSON object: %w", err)
	}
	*t = Task{}
	for key, value := range raw {
		if string(value) == "null" {
			continue
		}
		p, ok := propertyIndex[key]
		if !ok {
			if t.Extra == nil {
				t.Extra = make(map[string]json.RawMessage)
			}
			t.Extra[key] = value
			continue
		}
		if err := p.decode(t, value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	return nil
}

func (t Task) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(AllProps)+len(t.Extra))
	for _, p := range AllProps {
		if p.IsSet(&t) {
			out[p.Name] = p.encode(&t)
		}
	}
	for key, value := range t.Extra {
		out[key] = value
	}
	return json.Marshal(out)
}
