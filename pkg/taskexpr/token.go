package taskexpr

import "fmt"

type TokenType int

const (
	TokenEOF TokenType = iota
	TokenName
	TokenVirtual
	TokenAt
	TokenPlus
	TokenCaret
	TokenStar
	TokenLParen
	TokenRParen
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "end of expression"
	case TokenName:
		return "task name"
	case TokenVirtual:
		return "virtual keyword"
	case TokenAt:
		return "'@'"
	case TokenPlus:
		return "'+'"
	case TokenCaret:
		return "'^'"
	case TokenStar:
		return "'*'"
	case TokenLParen:
		return "'('"
	case TokenRParen:
		return "')'"
	default:
		return fmt.Sprintf("token(%d)", int(t))
	}
}

// Token is a lexical unit of a task expression. Pos is the byte offset of
// the first character of the token in the source text.
type Token struct {
	Type    TokenType
	Literal string
	Pos     int
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return t.Type.String()
	}
	return fmt.Sprintf("%s %q", t.Type, t.Literal)
}

// -----------------------------------------------------------------------------
// Virtual keywords
// -----------------------------------------------------------------------------

// VirtualKind identifies a `#keyword` reference. VirtualUnset marks an `@`
// chain without a trailing keyword.
type VirtualKind int

const (
	VirtualUnset VirtualKind = iota
	VirtualNone
	VirtualSelf
	VirtualBack
	VirtualNext
	VirtualSub
	VirtualOnErrorNext
	VirtualExceededNext
	VirtualReduceOtherTimes
)

var virtualKeywords = map[VirtualKind]string{
	VirtualNone:             "none",
	VirtualSelf:             "self",
	VirtualBack:             "back",
	VirtualNext:             "next",
	VirtualSub:              "sub",
	VirtualOnErrorNext:      "on_error_next",
	VirtualExceededNext:     "exceeded_next",
	VirtualReduceOtherTimes: "reduce_other_times",
}

func (k VirtualKind) String() string {
	return virtualKeywords[k]
}

// IsPropertyRef reports whether the keyword selects one of the target task's
// expression-list properties rather than a pseudo value.
func (k VirtualKind) IsPropertyRef() bool {
	switch k {
	case VirtualNext, VirtualSub, VirtualOnErrorNext, VirtualExceededNext, VirtualReduceOtherTimes:
		return true
	default:
		return false
	}
}

// ParseVirtual maps a keyword (without the leading '#') to its kind.
func ParseVirtual(keyword string) (VirtualKind, bool) {
	return defaultGrammar.virtual(keyword)
}
