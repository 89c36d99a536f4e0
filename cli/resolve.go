package cli

import (
	"fmt"
	"sort"

	"github.com/compozy/taskref/engine/resolver"
	"github.com/compozy/taskref/pkg/taskexpr"
	"github.com/spf13/cobra"
)

// ResolveCmd resolves a compound task name to its merged definition.
func ResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve NAME",
		Short: "Resolve a task name to its merged definition",
		Long: `Resolve a compound task name such as "Prefix@Task" against the loaded
pipeline files and print the merged definition.`,
		Args: cobra.ExactArgs(1),
		RunE: runResolve,
	}
	cmd.Flags().Bool("trace", false, "Print where every property was defined")
	cmd.Flags().String("field", "", "Print only this gjson path of the result")
	return cmd
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := commandConfig(cmd)
	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	res, err := s.resolver.EvalTask(ctx, args[0])
	if err != nil {
		return err
	}
	out := newPrinter(cmd.OutOrStdout(), cfg)
	trace, err := cmd.Flags().GetBool("trace")
	if err != nil {
		return fmt.Errorf("failed to get trace flag: %w", err)
	}
	if trace {
		return printTrace(out, res)
	}
	field, err := cmd.Flags().GetString("field")
	if err != nil {
		return fmt.Errorf("failed to get field flag: %w", err)
	}
	return out.JSON(res, field)
}

func printTrace(out *printer, res *resolver.Resolved) error {
	if out.format != OutputFormatText {
		return out.JSON(res.Trace, "")
	}
	props := make([]string, 0, len(res.Trace))
	for prop := range res.Trace {
		props = append(props, prop)
	}
	sort.Strings(props)
	lines := make([]string, 0, len(props))
	for _, prop := range props {
		lines = append(lines, fmt.Sprintf("%-24s %s", prop, res.Trace[prop]))
	}
	return out.Lines(lines)
}

// ExpandCmd expands a task expression to an ordered list of task names.
func ExpandCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expand EXPR",
		Short: "Expand a task expression to task names",
		Long: `Expand a task expression such as "(A+B)@C#next" to the ordered list of task
names it denotes. Virtual references like #self resolve relative to --self.`,
		Args: cobra.ExactArgs(1),
		RunE: runExpand,
	}
	cmd.Flags().String("self", "", "Task that #self refers to")
	cmd.Flags().Bool("keep-duplicates", false, "Do not deduplicate the result")
	return cmd
}

func runExpand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := commandConfig(cmd)
	self, err := cmd.Flags().GetString("self")
	if err != nil {
		return fmt.Errorf("failed to get self flag: %w", err)
	}
	keep, err := cmd.Flags().GetBool("keep-duplicates")
	if err != nil {
		return fmt.Errorf("failed to get keep-duplicates flag: %w", err)
	}
	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	var opts []resolver.EvalOption
	if keep {
		opts = append(opts, resolver.WithoutStrip())
	}
	names, err := s.resolver.EvalExpr(ctx, args[0], self, opts...)
	if err != nil {
		return err
	}
	return newPrinter(cmd.OutOrStdout(), cfg).Lines(names)
}

// ParseCmd prints the canonical form and syntax tree of an expression.
func ParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse EXPR",
		Short: "Show how an expression is parsed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr, err := taskexpr.Parse(args[0])
			if err != nil {
				return err
			}
			cfg := commandConfig(cmd)
			out := newPrinter(cmd.OutOrStdout(), cfg)
			if cfg.CLI.Format != OutputFormatText {
				return out.JSON(map[string]string{
					"canonical": taskexpr.Print(expr),
					"tree":      taskexpr.Dump(expr),
				}, "")
			}
			out.Textf("%s", taskexpr.Print(expr))
			out.Textf("%s", taskexpr.Dump(expr))
			return nil
		},
	}
}

// ListCmd lists the indexed task names or files.
func ListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List defined task names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := commandConfig(cmd)
			files, err := cmd.Flags().GetBool("files")
			if err != nil {
				return fmt.Errorf("failed to get files flag: %w", err)
			}
			s, err := openSession(ctx, cfg)
			if err != nil {
				return err
			}
			defer s.Close()
			out := newPrinter(cmd.OutOrStdout(), cfg)
			if files {
				return out.Lines(s.index.Files())
			}
			return out.Lines(s.index.Names())
		},
	}
	cmd.Flags().Bool("files", false, "List pipeline files instead of task names")
	return cmd
}
