package resolver

import (
	"context"

	"github.com/compozy/taskref/engine/pipeline"
	"github.com/compozy/taskref/pkg/taskexpr"
)

// Source supplies raw task definitions. Query returns every definition of
// name in source-priority order, lowest priority first.
type Source interface {
	Query(ctx context.Context, name string) ([]pipeline.Definition, error)
}

// Reporter receives evaluation diagnostics. Calls may arrive from several
// goroutines when a Context is shared.
type Reporter interface {
	TaskCycle(chain []string)
	ExprCycle(chain []ExprFrame)
	TaskNotFound(name, parent string)
	BaseTaskNotFound(name string)
	ParseError(expr string, err error)
	ExpansionTooLarge(count int)
}

// Delegate is everything the evaluator needs from its host.
type Delegate interface {
	Source
	Reporter
}

// ExprFrame identifies one virtual property dereference, e.g. A#next.
type ExprFrame struct {
	Task string
	Kind taskexpr.VirtualKind
}

func (f ExprFrame) String() string {
	return f.Task + "#" + f.Kind.String()
}

// Combine pairs a source with a reporter.
func Combine(source Source, reporter Reporter) Delegate {
	if reporter == nil {
		reporter = NopReporter{}
	}
	return combined{Source: source, Reporter: reporter}
}

type combined struct {
	Source
	Reporter
}

// NopReporter discards every diagnostic.
type NopReporter struct{}

func (NopReporter) TaskCycle([]string) {}
func (NopReporter) ExprCycle([]ExprFrame) {}
func (NopReporter) TaskNotFound(string, string) {}
func (NopReporter) BaseTaskNotFound(string) {}
func (NopReporter) ParseError(string, error) {}
func (NopReporter) ExpansionTooLarge(int) {}

// Tee fans every diagnostic out to all reporters in order.
func Tee(reporters ...Reporter) Reporter {
	return tee(reporters)
}

type tee []Reporter

func (t tee) TaskCycle(chain []string) {
	for _, r := range t {
		r.TaskCycle(chain)
	}
}

func (t tee) ExprCycle(chain []ExprFrame) {
	for _, r := range t {
		r.ExprCycle(chain)
	}
}

func (t tee) TaskNotFound(name, parent string) {
	for _, r := range t {
		r.TaskNotFound(name, parent)
	}
}

func (t tee) BaseTaskNotFound(name string) {
	for _, r := range t {
		r.BaseTaskNotFound(name)
	}
}

func (t tee) ParseError(expr string, err error) {
	for _, r := range t {
		r.ParseError(expr, err)
	}
}

func (t tee) ExpansionTooLarge(count int) {
	for _, r := range t {
		r.ExpansionTooLarge(count)
	}
}
