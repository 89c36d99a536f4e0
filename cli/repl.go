package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

const replPrompt = "taskref> "

// ReplCmd starts an interactive evaluation loop.
func ReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Evaluate expressions interactively",
		Long: `Read lines from standard input and evaluate each one as a task expression.

Commands:
  :task NAME   resolve NAME and print its definition
  :self NAME   set the task that #self refers to
  :clear       drop every cached resolution
  :stats       print cache statistics
  :quit        leave the loop`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, commandConfig(cmd))
			if err != nil {
				return err
			}
			defer s.Close()
			return runRepl(ctx, s, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runRepl(ctx context.Context, s *session, in io.Reader, w io.Writer) error {
	out := newPrinter(w, s.cfg)
	scanner := bufio.NewScanner(in)
	self := ""
	fmt.Fprint(w, replPrompt)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == ":quit" || line == ":q" {
			return nil
		}
		if err := replLine(ctx, s, out, line, &self); err != nil {
			out.Textf("error: %v", err)
		}
		fmt.Fprint(w, replPrompt)
	}
	return scanner.Err()
}

func replLine(ctx context.Context, s *session, out *printer, line string, self *string) error {
	switch {
	case line == "":
		return nil
	case line == ":clear":
		s.resolver.Clear()
		out.Textf("cache cleared")
		return nil
	case line == ":stats":
		return out.JSON(s.resolver.Stats(), "")
	case strings.HasPrefix(line, ":self"):
		*self = strings.TrimSpace(strings.TrimPrefix(line, ":self"))
		out.Textf("self = %q", *self)
		return nil
	case strings.HasPrefix(line, ":task"):
		name := strings.TrimSpace(strings.TrimPrefix(line, ":task"))
		if name == "" {
			return fmt.Errorf("usage: :task NAME")
		}
		res, err := s.resolver.EvalTask(ctx, name)
		if err != nil {
			return err
		}
		return out.JSON(res, "")
	case strings.HasPrefix(line, ":"):
		return fmt.Errorf("unknown command %s", line)
	}
	names, err := s.resolver.EvalExpr(ctx, line, *self)
	if err != nil {
		return err
	}
	return out.Lines(names)
}
