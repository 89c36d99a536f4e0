package resolver

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies evaluation failures and diagnostics.
type Kind string

const (
	KindTaskCycle         Kind = "task_cycle"
	KindExprCycle         Kind = "expr_cycle"
	KindTaskNotFound      Kind = "task_not_found"
	KindBaseTaskNotFound  Kind = "base_task_not_found"
	KindParse             Kind = "parse_error"
	KindExpansionTooLarge Kind = "expansion_too_large"
)

var (
	ErrTaskCycle         = errors.New("task cycle")
	ErrExprCycle         = errors.New("expression property cycle")
	ErrTaskNotFound      = errors.New("task not found")
	ErrParse             = errors.New("expression parse error")
	ErrExpansionTooLarge = errors.New("expansion too large")
)

var sentinels = map[Kind]error{
	KindTaskCycle:         ErrTaskCycle,
	KindExprCycle:         ErrExprCycle,
	KindTaskNotFound:      ErrTaskNotFound,
	KindParse:             ErrParse,
	KindExpansionTooLarge: ErrExpansionTooLarge,
}

// Error is returned by the evaluation entry points. The matching diagnostic
// has already been delivered to the delegate when an Error is returned.
type Error struct {
	Kind  Kind
	Task  string
	Chain []string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Msg)
	if len(e.Chain) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Chain, " -> "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if sentinel, ok := sentinels[e.Kind]; ok {
		errs = append(errs, sentinel)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func taskCycleError(chain []string) *Error {
	return &Error{Kind: KindTaskCycle, Task: chain[0], Chain: chain, Msg: "task cycle detected"}
}

func exprCycleError(chain []ExprFrame) *Error {
	names := make([]string, len(chain))
	for i, frame := range chain {
		names[i] = frame.String()
	}
	return &Error{Kind: KindExprCycle, Task: chain[0].Task, Chain: names, Msg: "expression property cycle detected"}
}

func taskNotFoundError(name, parent string) *Error {
	msg := fmt.Sprintf("task %q not found", name)
	if parent != "" {
		msg = fmt.Sprintf("task %q not found under %q", name, parent)
	}
	return &Error{Kind: KindTaskNotFound, Task: name, Msg: msg}
}

func parseError(expr string, err error) *Error {
	return &Error{Kind: KindParse, Msg: fmt.Sprintf("cannot parse %q", expr), Err: err}
}

func expansionError(count, limit int) *Error {
	return &Error{
		Kind: KindExpansionTooLarge,
		Msg:  fmt.Sprintf("expansion of %d entries exceeds the limit of %d", count, limit),
	}
}
