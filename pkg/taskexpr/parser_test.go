package taskexpr

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, text string) Expr {
	t.Helper()
	expr, err := Parse(text)
	require.NoError(t, err, "parse %q", text)
	require.NotNil(t, expr)
	return expr
}

func mustFail(t *testing.T, text string) *SyntaxError {
	t.Helper()
	expr, err := Parse(text)
	require.Error(t, err, "expected %q to fail", text)
	assert.Nil(t, expr)
	var syntaxErr *SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	return syntaxErr
}

func TestTokenize(t *testing.T) {
	t.Run("Should split operators and names ignoring whitespace", func(t *testing.T) {
		tokens, err := Tokenize(" A @ B_1+ (C-2)^D * 3 ")
		require.NoError(t, err)
		types := make([]TokenType, 0, len(tokens))
		for _, tok := range tokens {
			types = append(types, tok.Type)
		}
		assert.Equal(t, []TokenType{
			TokenName, TokenAt, TokenName, TokenPlus, TokenLParen, TokenName, TokenRParen,
			TokenCaret, TokenName, TokenStar, TokenName, TokenEOF,
		}, types)
		assert.Equal(t, 1, tokens[0].Pos)
	})

	t.Run("Should only treat keywords as virtual after '#'", func(t *testing.T) {
		tokens, err := Tokenize("next#next")
		require.NoError(t, err)
		require.Len(t, tokens, 3)
		assert.Equal(t, Token{Type: TokenName, Literal: "next", Pos: 0}, tokens[0])
		assert.Equal(t, Token{Type: TokenVirtual, Literal: "next", Pos: 4}, tokens[1])
	})

	t.Run("Should reject unknown virtual keywords", func(t *testing.T) {
		_, err := Tokenize("A#later")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown virtual keyword "#later"`)
	})

	t.Run("Should reject a detached '#'", func(t *testing.T) {
		_, err := Tokenize("A# next")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expected virtual keyword")
	})

	t.Run("Should reject characters outside the name alphabet", func(t *testing.T) {
		_, err := Tokenize("A.B")
		require.Error(t, err)
	})
}

func TestParse(t *testing.T) {
	t.Run("Should parse a single name as a task leaf", func(t *testing.T) {
		assert.Equal(t, &Task{Name: "A"}, mustParse(t, "A"))
	})

	t.Run("Should treat a keyword without '#' as a task name", func(t *testing.T) {
		assert.Equal(t, &Task{Name: "self"}, mustParse(t, "self"))
	})

	t.Run("Should parse an @ chain with trailing virtual keyword", func(t *testing.T) {
		expected := &At{
			Members: []Expr{&Task{Name: "A"}, &Task{Name: "B"}},
			Virtual: VirtualNext,
		}
		assert.Empty(t, cmp.Diff(expected, mustParse(t, "A@B#next")))
	})

	t.Run("Should wrap a single member with a virtual keyword into an at node", func(t *testing.T) {
		expected := &At{Members: []Expr{&Task{Name: "A"}}, Virtual: VirtualSub}
		assert.Empty(t, cmp.Diff(expected, mustParse(t, "A#sub")))
	})

	t.Run("Should parse a bare virtual reference", func(t *testing.T) {
		assert.Equal(t, &Virtual{Kind: VirtualSelf}, mustParse(t, "#self"))
	})

	t.Run("Should bind @ tighter than + and ^", func(t *testing.T) {
		expected := &Concat{
			Left: &At{Members: []Expr{&Task{Name: "P"}, &Task{Name: "A"}}},
			Right: &Difference{
				Left:  &Task{Name: "B"},
				Right: &Task{Name: "C"},
			},
		}
		assert.Empty(t, cmp.Diff(expected, mustParse(t, "P@A + B ^ C")))
	})

	t.Run("Should bind * tighter than + and looser than @", func(t *testing.T) {
		expected := &Concat{
			Left: &Repeat{
				Inner: &At{Members: []Expr{&Task{Name: "A"}, &Task{Name: "B"}}},
				Count: 2,
			},
			Right: &Task{Name: "C"},
		}
		assert.Empty(t, cmp.Diff(expected, mustParse(t, "A@B*2+C")))
	})

	t.Run("Should keep parentheses as brace nodes", func(t *testing.T) {
		expected := &At{
			Members: []Expr{
				&Brace{Inner: &Concat{Left: &Task{Name: "A"}, Right: &Task{Name: "B"}}},
				&Task{Name: "C"},
			},
		}
		assert.Empty(t, cmp.Diff(expected, mustParse(t, "(A+B)@C")))
	})

	t.Run("Should parse a numeric task name", func(t *testing.T) {
		assert.Equal(t, &Task{Name: "123"}, mustParse(t, "123"))
	})

	t.Run("Should parse a zero repeat count", func(t *testing.T) {
		assert.Equal(t, &Repeat{Inner: &Task{Name: "A"}, Count: 0}, mustParse(t, "A*0"))
	})
}

func TestParse_Errors(t *testing.T) {
	t.Run("Should reject empty input", func(t *testing.T) {
		err := mustFail(t, "   ")
		assert.Equal(t, "empty expression", err.Msg)
	})

	t.Run("Should reject a non-integer repeat count", func(t *testing.T) {
		err := mustFail(t, "A*B")
		assert.Contains(t, err.Msg, "expected repeat count")
		assert.Equal(t, 2, err.Pos)
	})

	t.Run("Should reject a wildcard-looking star", func(t *testing.T) {
		mustFail(t, "A*")
		mustFail(t, "A**2")
	})

	t.Run("Should reject chained repeats without parentheses", func(t *testing.T) {
		mustFail(t, "A*2*3")
	})

	t.Run("Should reject trailing tokens instead of dropping them", func(t *testing.T) {
		err := mustFail(t, "A B")
		assert.Contains(t, err.Msg, "unexpected task name")
		mustFail(t, "A#next@B")
		mustFail(t, "(A))")
	})

	t.Run("Should reject unbalanced parentheses", func(t *testing.T) {
		err := mustFail(t, "(A+B")
		assert.Contains(t, err.Msg, "expected ')'")
	})

	t.Run("Should reject dangling operators", func(t *testing.T) {
		mustFail(t, "A+")
		mustFail(t, "^A")
		mustFail(t, "A@")
	})
}

func TestParseVirtual(t *testing.T) {
	t.Run("Should map every keyword both ways", func(t *testing.T) {
		for _, word := range []string{
			"none", "self", "back", "next", "sub", "on_error_next", "exceeded_next", "reduce_other_times",
		} {
			kind, ok := ParseVirtual(word)
			require.True(t, ok, word)
			assert.Equal(t, word, kind.String())
		}
		_, ok := ParseVirtual("onErrorNext")
		assert.False(t, ok)
	})
}
