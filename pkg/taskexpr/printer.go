package taskexpr

import (
	"fmt"
	"strconv"
	"strings"
)

// Print renders expr as canonical expression text. For every tree produced
// by Parse, Parse(Print(expr)) yields a structurally equal tree. Trees built
// by hand whose operands would bind differently are parenthesized.
func Print(expr Expr) string {
	var b strings.Builder
	writeExpr(&b, expr)
	return b.String()
}

func writeExpr(b *strings.Builder, expr Expr) {
	switch e := expr.(type) {
	case nil:
	case *Task:
		b.WriteString(e.Name)
	case *Virtual:
		b.WriteByte('#')
		b.WriteString(e.Kind.String())
	case *Brace:
		b.WriteByte('(')
		writeExpr(b, e.Inner)
		b.WriteByte(')')
	case *At:
		for i, member := range e.Members {
			if i > 0 {
				b.WriteByte('@')
			}
			writeOperand(b, member, !isPrimary(member))
		}
		if e.Virtual != VirtualUnset {
			b.WriteByte('#')
			b.WriteString(e.Virtual.String())
		}
	case *Repeat:
		_, nested := e.Inner.(*Repeat)
		writeOperand(b, e.Inner, nested || isBinary(e.Inner))
		b.WriteByte('*')
		b.WriteString(strconv.Itoa(e.Count))
	case *Concat:
		writeOperand(b, e.Left, isBinary(e.Left))
		b.WriteByte('+')
		writeExpr(b, e.Right)
	case *Difference:
		writeOperand(b, e.Left, isBinary(e.Left))
		b.WriteByte('^')
		writeExpr(b, e.Right)
	default:
		panic(fmt.Sprintf("taskexpr: unknown node %T", expr))
	}
}

func writeOperand(b *strings.Builder, expr Expr, parens bool) {
	if parens {
		b.WriteByte('(')
	}
	writeExpr(b, expr)
	if parens {
		b.WriteByte(')')
	}
}

// Dump renders the tree one node per line, indented by depth.
func Dump(expr Expr) string {
	var b strings.Builder
	dump(&b, expr, 0)
	return b.String()
}

func dump(b *strings.Builder, expr Expr, depth int) {
	indent := strings.Repeat("  ", depth)
	switch e := expr.(type) {
	case *Task:
		fmt.Fprintf(b, "%stask %s\n", indent, e.Name)
	case *Virtual:
		fmt.Fprintf(b, "%svirtual #%s\n", indent, e.Kind)
	case *Brace:
		fmt.Fprintf(b, "%sbrace\n", indent)
		dump(b, e.Inner, depth+1)
	case *At:
		if e.Virtual != VirtualUnset {
			fmt.Fprintf(b, "%sat #%s\n", indent, e.Virtual)
		} else {
			fmt.Fprintf(b, "%sat\n", indent)
		}
		for _, member := range e.Members {
			dump(b, member, depth+1)
		}
	case *Repeat:
		fmt.Fprintf(b, "%srepeat x%d\n", indent, e.Count)
		dump(b, e.Inner, depth+1)
	case *Concat:
		fmt.Fprintf(b, "%sconcat\n", indent)
		dump(b, e.Left, depth+1)
		dump(b, e.Right, depth+1)
	case *Difference:
		fmt.Fprintf(b, "%sdifference\n", indent)
		dump(b, e.Left, depth+1)
		dump(b, e.Right, depth+1)
	}
}
