package pipeline

import (
	"encoding/json"

	"github.com/compozy/taskref/pkg/taskexpr"
)

// Group classifies a property for inheritance.
type Group int

const (
	// GroupBase properties are carried across an algorithm change.
	GroupBase Group = iota
	// GroupRecognition properties only make sense for the algorithm that
	// declared them.
	GroupRecognition
	// GroupControl holds the inheritance pointer itself.
	GroupControl
)

// Property describes one schema property of Task.
type Property struct {
	Name  string
	Group Group

	isSet  func(*Task) bool
	copy   func(dst, src *Task)
	clear  func(*Task)
	decode func(*Task, []byte) error
	encode func(*Task) any
}

// IsSet reports whether the property is present on t.
func (p Property) IsSet(t *Task) bool { return t != nil && p.isSet(t) }

// Copy assigns src's value of the property to dst.
func (p Property) Copy(dst, src *Task) { p.copy(dst, src) }

// Clear unsets the property on t.
func (p Property) Clear(t *Task) { p.clear(t) }

// ExprProperty is a property holding an expression list, together with the
// virtual keyword that dereferences it.
type ExprProperty struct {
	Property
	Kind taskexpr.VirtualKind
	list func(*Task) *ExprList
}

func ptrProp[T any](name string, group Group, at func(*Task) **T) Property {
	return Property{
		Name:   name,
		Group:  group,
		isSet:  func(t *Task) bool { return *at(t) != nil },
		copy:   func(dst, src *Task) { *at(dst) = *at(src) },
		clear:  func(t *Task) { *at(t) = nil },
		encode: func(t *Task) any { return *at(t) },
		decode: func(t *Task, raw []byte) error {
			v := new(T)
			if err := json.Unmarshal(raw, v); err != nil {
				return err
			}
			*at(t) = v
			return nil
		},
	}
}

func sliceProp[S ~[]E, E any](name string, group Group, at func(*Task) *S) Property {
	return Property{
		Name:   name,
		Group:  group,
		isSet:  func(t *Task) bool { return *at(t) != nil },
		copy:   func(dst, src *Task) { *at(dst) = *at(src) },
		clear:  func(t *Task) { *at(t) = nil },
		encode: func(t *Task) any { return *at(t) },
		decode: func(t *Task, raw []byte) error { return json.Unmarshal(raw, at(t)) },
	}
}

func exprProp(name string, kind taskexpr.VirtualKind, at func(*Task) *ExprList) ExprProperty {
	return ExprProperty{Property: sliceProp(name, GroupBase, at), Kind: kind, list: at}
}

// ---- property tables ----

var (
	SubProp              = exprProp("sub", taskexpr.VirtualSub, func(t *Task) *ExprList { return &t.Sub })
	NextProp             = exprProp("next", taskexpr.VirtualNext, func(t *Task) *ExprList { return &t.Next })
	ExceededNextProp     = exprProp("exceededNext", taskexpr.VirtualExceededNext, func(t *Task) *ExprList { return &t.ExceededNext })
	OnErrorNextProp      = exprProp("onErrorNext", taskexpr.VirtualOnErrorNext, func(t *Task) *ExprList { return &t.OnErrorNext })
	ReduceOtherTimesProp = exprProp("reduceOtherTimes", taskexpr.VirtualReduceOtherTimes, func(t *Task) *ExprList { return &t.ReduceOtherTimes })

	TemplateProp = sliceProp("template", GroupRecognition, func(t *Task) *StringList { return &t.Template })
	BaseTaskProp = ptrProp("baseTask", GroupControl, func(t *Task) **string { return &t.BaseTask })
)

// ExprProps lists the expression-valued properties.
var ExprProps = []ExprProperty{SubProp, NextProp, ExceededNextProp, OnErrorNextProp, ReduceOtherTimesProp}

// BaseProps are the properties every algorithm understands.
var BaseProps = []Property{
	ptrProp("algorithm", GroupBase, func(t *Task) **string { return &t.Algorithm }),
	ptrProp("action", GroupBase, func(t *Task) **string { return &t.Action }),
	SubProp.Property,
	ptrProp("subErrorIgnored", GroupBase, func(t *Task) **bool { return &t.SubErrorIgnored }),
	NextProp.Property,
	ptrProp("maxTimes", GroupBase, func(t *Task) **int { return &t.MaxTimes }),
	ExceededNextProp.Property,
	OnErrorNextProp.Property,
	ptrProp("preDelay", GroupBase, func(t *Task) **int { return &t.PreDelay }),
	ptrProp("postDelay", GroupBase, func(t *Task) **int { return &t.PostDelay }),
	ptrProp("roi", GroupBase, func(t *Task) **Rect { return &t.Roi }),
	ptrProp("cache", GroupBase, func(t *Task) **bool { return &t.Cache }),
	ptrProp("rectMove", GroupBase, func(t *Task) **Rect { return &t.RectMove }),
	ReduceOtherTimesProp.Property,
	ptrProp("specificRect", GroupBase, func(t *Task) **Rect { return &t.SpecificRect }),
	sliceProp("specialParams", GroupBase, func(t *Task) *[]int { return &t.SpecialParams }),
	ptrProp("highResolutionSwipeFix", GroupBase, func(t *Task) **bool { return &t.HighResolutionSwipeFix }),
}

// RecognitionProps are the algorithm-specific schema properties.
var RecognitionProps = []Property{
	TemplateProp,
	rawProp("templThreshold", func(t *Task) *json.RawMessage { return &t.TemplThreshold }),
	rawProp("maskRange", func(t *Task) *json.RawMessage { return &t.MaskRange }),
	rawProp("colorScales", func(t *Task) *json.RawMessage { return &t.ColorScales }),
	ptrProp("colorWithClose", GroupRecognition, func(t *Task) **bool { return &t.ColorWithClose }),
	rawProp("method", func(t *Task) *json.RawMessage { return &t.Method }),
	ptrProp("pureColor", GroupRecognition, func(t *Task) **bool { return &t.PureColor }),
	sliceProp("text", GroupRecognition, func(t *Task) *StringList { return &t.Text }),
	ptrProp("fullMatch", GroupRecognition, func(t *Task) **bool { return &t.FullMatch }),
	ptrProp("isAscii", GroupRecognition, func(t *Task) **bool { return &t.IsASCII }),
	ptrProp("withoutDet", GroupRecognition, func(t *Task) **bool { return &t.WithoutDet }),
	rawProp("ocrReplace", func(t *Task) *json.RawMessage { return &t.OcrReplace }),
	ptrProp("replaceFull", GroupRecognition, func(t *Task) **bool { return &t.ReplaceFull }),
	ptrProp("useRaw", GroupRecognition, func(t *Task) **bool { return &t.UseRaw }),
	rawProp("binThreshold", func(t *Task) *json.RawMessage { return &t.BinThreshold }),
	sliceProp("hash", GroupRecognition, func(t *Task) *StringList { return &t.Hash }),
	rawProp("threshold", func(t *Task) *json.RawMessage { return &t.Threshold }),
	ptrProp("bound", GroupRecognition, func(t *Task) **bool { return &t.Bound }),
	rawProp("specialThreshold", func(t *Task) *json.RawMessage { return &t.SpecialThreshold }),
	rawProp("count", func(t *Task) *json.RawMessage { return &t.Count }),
	rawProp("ratio", func(t *Task) *json.RawMessage { return &t.Ratio }),
	ptrProp("detector", GroupRecognition, func(t *Task) **string { return &t.Detector }),
}

func rawProp(name string, at func(*Task) *json.RawMessage) Property {
	return sliceProp(name, GroupRecognition, at)
}

// AllProps is every schema property in declaration order.
var AllProps = func() []Property {
	all := make([]Property, 0, len(BaseProps)+len(RecognitionProps)+1)
	all = append(all, BaseProps...)
	all = append(all, RecognitionProps...)
	return append(all, BaseTaskProp)
}()

var propertyIndex = func() map[string]Property {
	index := make(map[string]Property, len(AllProps))
	for _, p := range AllProps {
		index[p.Name] = p
	}
	return index
}()

var exprPropertyIndex = func() map[string]ExprProperty {
	index := make(map[string]ExprProperty, len(ExprProps))
	for _, p := range ExprProps {
		index[p.Name] = p
	}
	return index
}()

// ExprPropFor returns the expression property dereferenced by a virtual
// keyword such as #next.
func ExprPropFor(kind taskexpr.VirtualKind) (ExprProperty, bool) {
	for _, p := range ExprProps {
		if p.Kind == kind {
			return p, true
		}
	}
	return ExprProperty{}, false
}

// List returns the property's expressions on t.
func (p ExprProperty) List(t *Task) ExprList { return *p.list(t) }

// SetList replaces the property's expressions on t.
func (p ExprProperty) SetList(t *Task, list ExprList) { *p.list(t) = list }
