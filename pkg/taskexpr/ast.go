package taskexpr

// Expr is a node of a parsed task expression. Nodes are immutable once built.
type Expr interface {
	exprNode()
}

// Task is a literal task name leaf.
type Task struct {
	Name string
}

// Brace is a parenthesized sub-expression.
type Brace struct {
	Inner Expr
}

// Virtual is a bare `#keyword` reference.
type Virtual struct {
	Kind VirtualKind
}

// At is `m1@m2@...` with an optional trailing `#keyword`. Members are always
// primaries (Task, Brace or Virtual).
type At struct {
	Members []Expr
	Virtual VirtualKind
}

// Repeat is `inner * count`.
type Repeat struct {
	Inner Expr
	Count int
}

// Concat is `left + right`.
type Concat struct {
	Left  Expr
	Right Expr
}

// Difference is `left ^ right`.
type Difference struct {
	Left  Expr
	Right Expr
}

func (*Task) exprNode()       {}
func (*Brace) exprNode()      {}
func (*Virtual) exprNode()    {}
func (*At) exprNode()         {}
func (*Repeat) exprNode()     {}
func (*Concat) exprNode()     {}
func (*Difference) exprNode() {}

func isPrimary(e Expr) bool {
	switch e.(type) {
	case *Task, *Brace, *Virtual:
		return true
	default:
		return false
	}
}

func isBinary(e Expr) bool {
	switch e.(type) {
	case *Concat, *Difference:
		return true
	default:
		return false
	}
}
