package resolver

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/compozy/taskref/pkg/logger"
)

// ---- log reporter ----

// LogReporter writes each diagnostic as a structured log line.
type LogReporter struct {
	Log logger.Logger
}

func (r LogReporter) log() logger.Logger {
	if r.Log == nil {
		return logger.GetDefault()
	}
	return r.Log
}

func (r LogReporter) TaskCycle(chain []string) {
	r.log().Error("Task cycle detected", "chain", strings.Join(chain, " -> "))
}

func (r LogReporter) ExprCycle(chain []ExprFrame) {
	r.log().Error("Expression property cycle detected", "chain", framesString(chain))
}

func (r LogReporter) TaskNotFound(name, parent string) {
	r.log().Error("Task not found", "task", name, "parent", parent)
}

func (r LogReporter) BaseTaskNotFound(name string) {
	r.log().Warn("Base task not found, inheritance skipped", "base_task", name)
}

func (r LogReporter) ParseError(expr string, err error) {
	r.log().Error("Invalid task expression", "expr", expr, "error", err)
}

func (r LogReporter) ExpansionTooLarge(count int) {
	r.log().Error("Expression expansion too large", "count", count)
}

func framesString(chain []ExprFrame) string {
	names := make([]string, len(chain))
	for i, frame := range chain {
		names[i] = frame.String()
	}
	return strings.Join(names, " -> ")
}

// ---- collector ----

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one recorded Reporter callback.
type Diagnostic struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	// Subject is the task or expression the diagnostic is about.
	Subject string   `json:"subject"`
	Chain   []string `json:"chain,omitempty"`
	Message string   `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s [%s] %s", d.Severity, d.Kind, d.Message)
}

// Collector records diagnostics for batch reporting. It is safe for
// concurrent use.
type Collector struct {
	mu    sync.Mutex
	diags []Diagnostic
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) add(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diags = append(c.diags, d)
}

func (c *Collector) TaskCycle(chain []string) {
	c.add(Diagnostic{
		Kind:     KindTaskCycle,
		Severity: SeverityError,
		Subject:  chain[0],
		Chain:    slices.Clone(chain),
		Message:  "task cycle: " + strings.Join(chain, " -> "),
	})
}

func (c *Collector) ExprCycle(chain []ExprFrame) {
	names := make([]string, len(chain))
	for i, frame := range chain {
		names[i] = frame.String()
	}
	c.add(Diagnostic{
		Kind:     KindExprCycle,
		Severity: SeverityError,
		Subject:  chain[0].Task,
		Chain:    names,
		Message:  "expression property cycle: " + strings.Join(names, " -> "),
	})
}

func (c *Collector) TaskNotFound(name, parent string) {
	msg := fmt.Sprintf("task %q not found", name)
	if parent != "" {
		msg += fmt.Sprintf(" (under %q)", parent)
	}
	c.add(Diagnostic{Kind: KindTaskNotFound, Severity: SeverityError, Subject: name, Message: msg})
}

func (c *Collector) BaseTaskNotFound(name string) {
	c.add(Diagnostic{
		Kind:     KindBaseTaskNotFound,
		Severity: SeverityWarning,
		Subject:  name,
		Message:  fmt.Sprintf("base task %q not found", name),
	})
}

func (c *Collector) ParseError(expr string, err error) {
	c.add(Diagnostic{Kind: KindParse, Severity: SeverityError, Subject: expr, Message: err.Error()})
}

func (c *Collector) ExpansionTooLarge(count int) {
	c.add(Diagnostic{
		Kind:     KindExpansionTooLarge,
		Severity: SeverityError,
		Message:  fmt.Sprintf("expansion of %d entries is too large", count),
	})
}

// Diagnostics returns a copy of everything recorded so far.
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.diags)
}

// HasErrors reports whether any error-severity diagnostic was recorded.
func (c *Collector) HasErrors() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.ContainsFunc(c.diags, func(d Diagnostic) bool { return d.Severity == SeverityError })
}

func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diags = nil
}
