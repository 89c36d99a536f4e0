package taskexpr

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrint_RoundTrip(t *testing.T) {
	inputs := []string{
		"A",
		"#self",
		"#none",
		"A@B",
		"A@B@C#next",
		"A#on_error_next",
		"#self#next",
		"A@#back",
		"(A+B)@C",
		"(A+B+C)^(B)",
		"A * 3",
		"A@B*2+C^D",
		"((A))",
		"(A*2)*3",
		"X@(Y^Z#sub)#reduce_other_times",
		"A ^ B + C",
		"next@self",
	}
	for _, input := range inputs {
		t.Run("Should round trip "+input, func(t *testing.T) {
			expr := mustParse(t, input)
			printed := Print(expr)
			reparsed, err := Parse(printed)
			require.NoError(t, err, "printed form %q", printed)
			assert.Empty(t, cmp.Diff(expr, reparsed), "printed form %q", printed)
		})
	}
}

func TestPrint_Canonical(t *testing.T) {
	t.Run("Should drop insignificant whitespace", func(t *testing.T) {
		assert.Equal(t, "A@B*3+C", Print(mustParse(t, " A @ B * 3 + C ")))
	})

	t.Run("Should parenthesize hand-built operands that would rebind", func(t *testing.T) {
		expr := &Concat{
			Left:  &Concat{Left: &Task{Name: "A"}, Right: &Task{Name: "B"}},
			Right: &Task{Name: "C"},
		}
		assert.Equal(t, "(A+B)+C", Print(expr))

		repeat := &Repeat{Inner: &Repeat{Inner: &Task{Name: "A"}, Count: 2}, Count: 3}
		assert.Equal(t, "(A*2)*3", Print(repeat))
	})
}

func TestDump(t *testing.T) {
	t.Run("Should indent children under their operator", func(t *testing.T) {
		out := Dump(mustParse(t, "(A+B)@C#next"))
		assert.Equal(t, "at #next\n  brace\n    concat\n      task A\n      task B\n  task C\n", out)
	})
}
