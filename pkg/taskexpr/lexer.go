package taskexpr

import "fmt"

// Lexer turns an expression string into tokens. Names are ASCII only:
// [A-Za-z0-9_-]+.
type Lexer struct {
	input        string
	position     int  // start of current char
	readPosition int  // start of next char
	ch           byte // 0 at end of input
	grammar      *Grammar
}

func newLexer(g *Grammar, input string) *Lexer {
	l := &Lexer{input: input, grammar: g}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = l.readPosition
		return
	}
	l.ch = l.input[l.readPosition]
	l.position = l.readPosition
	l.readPosition++
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n' {
		l.readChar()
	}
}

func isNameChar(ch byte) bool {
	return ch >= 'a' && ch <= 'z' ||
		ch >= 'A' && ch <= 'Z' ||
		ch >= '0' && ch <= '9' ||
		ch == '_' || ch == '-'
}

func (l *Lexer) readName() string {
	start := l.position
	for isNameChar(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func (l *Lexer) single(t TokenType) Token {
	tok := Token{Type: t, Literal: string(l.ch), Pos: l.position}
	l.readChar()
	return tok
}

// NextToken returns the next token or a *SyntaxError for input that cannot
// start any token.
func (l *Lexer) NextToken() (Token, error) {
	l.skipWhitespace()
	switch l.ch {
	case 0:
		return Token{Type: TokenEOF, Pos: l.position}, nil
	case '@':
		return l.single(TokenAt), nil
	case '+':
		return l.single(TokenPlus), nil
	case '^':
		return l.single(TokenCaret), nil
	case '*':
		return l.single(TokenStar), nil
	case '(':
		return l.single(TokenLParen), nil
	case ')':
		return l.single(TokenRParen), nil
	case '#':
		start := l.position
		l.readChar()
		// the keyword must follow '#' immediately; "# next" is not a virtual reference
		if !isNameChar(l.ch) {
			return Token{}, l.errorf(start, "expected virtual keyword after '#'")
		}
		word := l.readName()
		if _, ok := l.grammar.virtual(word); !ok {
			return Token{}, l.errorf(start, "unknown virtual keyword %q", "#"+word)
		}
		return Token{Type: TokenVirtual, Literal: word, Pos: start}, nil
	}
	if isNameChar(l.ch) {
		start := l.position
		return Token{Type: TokenName, Literal: l.readName(), Pos: start}, nil
	}
	return Token{}, l.errorf(l.position, "unexpected character %q", rune(l.ch))
}

func (l *Lexer) errorf(pos int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Expr: l.input, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// Tokenize returns every token of input including the trailing TokenEOF.
func Tokenize(input string) ([]Token, error) {
	return defaultGrammar.tokenize(input)
}

func (g *Grammar) tokenize(input string) ([]Token, error) {
	l := newLexer(g, input)
	tokens := make([]Token, 0, len(input)/2+1)
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}
