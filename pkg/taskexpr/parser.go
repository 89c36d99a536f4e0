// Package taskexpr parses and prints task reference expressions.
//
// Operator precedence, low to high: '+' and '^' (right associative), then
// '*' with an integer count, then '@' chains with an optional trailing
// '#keyword', then primaries (names, parenthesized expressions and bare
// virtual references).
package taskexpr

import (
	"fmt"
	"strconv"
	"strings"
)

// SyntaxError reports why an expression could not be parsed.
type SyntaxError struct {
	Expr string
	Pos  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at offset %d in %q", e.Msg, e.Pos, e.Expr)
}

// Grammar holds the keyword table used by the lexer and parser. It is never
// mutated after NewGrammar returns, so one value can be shared freely.
type Grammar struct {
	keywords map[string]VirtualKind
}

// NewGrammar builds the task expression grammar.
func NewGrammar() *Grammar {
	keywords := make(map[string]VirtualKind, len(virtualKeywords))
	for kind, word := range virtualKeywords {
		keywords[word] = kind
	}
	return &Grammar{keywords: keywords}
}

var defaultGrammar = NewGrammar()

func (g *Grammar) virtual(word string) (VirtualKind, bool) {
	kind, ok := g.keywords[word]
	return kind, ok
}

// Parse parses text with the default grammar.
func Parse(text string) (Expr, error) {
	return defaultGrammar.Parse(text)
}

// Parse parses text into an expression tree. The whole input must reduce to
// a single expression; trailing tokens are an error.
func (g *Grammar) Parse(text string) (Expr, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &SyntaxError{Expr: text, Pos: 0, Msg: "empty expression"}
	}
	tokens, err := g.tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &parser{grammar: g, src: text, tokens: tokens}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.current(); tok.Type != TokenEOF {
		return nil, p.errorf(tok, "unexpected %s", tok)
	}
	return expr, nil
}

// MustParse is Parse for expressions known to be valid, such as constants.
func MustParse(text string) Expr {
	expr, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return expr
}

type parser struct {
	grammar *Grammar
	src     string
	tokens  []Token
	pos     int
}

func (p *parser) current() Token {
	return p.tokens[p.pos]
}

func (p *parser) advance() Token {
	tok := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *parser) expect(t TokenType) (Token, error) {
	tok := p.current()
	if tok.Type != t {
		return tok, p.errorf(tok, "expected %s, got %s", t, tok)
	}
	return p.advance(), nil
}

func (p *parser) errorf(tok Token, format string, args ...any) *SyntaxError {
	return &SyntaxError{Expr: p.src, Pos: tok.Pos, Msg: fmt.Sprintf(format, args...)}
}

// expr := list ( ('+' | '^') expr )?
func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseList()
	if err != nil {
		return nil, err
	}
	switch p.current().Type {
	case TokenPlus:
		p.advance()
		right, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &Concat{Left: left, Right: right}, nil
	case TokenCaret:
		p.advance()
		right, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &Difference{Left: left, Right: right}, nil
	default:
		return left, nil
	}
}

// list := atlist ( '*' INTEGER )?
func (p *parser) parseList() (Expr, error) {
	inner, err := p.parseAtList()
	if err != nil {
		return nil, err
	}
	if p.current().Type != TokenStar {
		return inner, nil
	}
	p.advance()
	tok := p.current()
	if tok.Type != TokenName || !isDigits(tok.Literal) {
		return nil, p.errorf(tok, "expected repeat count after '*', got %s", tok)
	}
	count, err := strconv.Atoi(tok.Literal)
	if err != nil {
		return nil, p.errorf(tok, "invalid repeat count %q", tok.Literal)
	}
	p.advance()
	return &Repeat{Inner: inner, Count: count}, nil
}

// atlist := primary ( '@' primary )* ( '#' VIRT )?
func (p *parser) parseAtList() (Expr, error) {
	first, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	members := []Expr{first}
	for p.current().Type == TokenAt {
		p.advance()
		member, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	virtual := VirtualUnset
	if tok := p.current(); tok.Type == TokenVirtual {
		p.advance()
		virtual, _ = p.grammar.virtual(tok.Literal)
	}
	if len(members) == 1 && virtual == VirtualUnset {
		return first, nil
	}
	return &At{Members: members, Virtual: virtual}, nil
}

// primary := TASKNAME | '(' expr ')' | '#' VIRT
func (p *parser) parsePrimary() (Expr, error) {
	tok := p.current()
	switch tok.Type {
	case TokenName:
		p.advance()
		return &Task{Name: tok.Literal}, nil
	case TokenVirtual:
		p.advance()
		kind, _ := p.grammar.virtual(tok.Literal)
		return &Virtual{Kind: kind}, nil
	case TokenLParen:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return &Brace{Inner: inner}, nil
	default:
		return nil, p.errorf(tok, "unexpected %s", tok)
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
