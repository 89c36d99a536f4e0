package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/compozy/taskref/engine/pipeline"
	"github.com/compozy/taskref/engine/resolver"
	"github.com/compozy/taskref/pkg/logger"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// ErrCheckFailed is returned when check found error-level diagnostics.
var ErrCheckFailed = errors.New("check failed")

// taskReport holds the problems found while checking one task.
type taskReport struct {
	Task     string   `json:"task"`
	Problems []string `json:"problems"`
}

type checkReport struct {
	Tasks       int                   `json:"tasks"`
	Files       int                   `json:"files"`
	FileErrors  []string              `json:"file_errors,omitempty"`
	Failed      []taskReport          `json:"failed,omitempty"`
	Diagnostics []resolver.Diagnostic `json:"diagnostics,omitempty"`
}

// CheckCmd resolves every task and expression and reports problems.
func CheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Resolve every task and expression and report problems",
		Long: `Resolve every defined task and expand every expression in its sub, next,
exceededNext, onErrorNext and reduceOtherTimes lists. Exits non-zero when any
error-level problem is found; a missing baseTask target is only a warning.`,
		Args: cobra.NoArgs,
		RunE: runCheck,
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := commandConfig(cmd)
	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	report, err := checkAll(ctx, s, cfg.CLI.Workers)
	if err != nil {
		return err
	}
	out := newPrinter(cmd.OutOrStdout(), cfg)
	if cfg.CLI.Format == OutputFormatJSON {
		if err := out.JSON(report, ""); err != nil {
			return err
		}
	} else {
		printCheckReport(out, report)
	}
	if len(report.Failed) > 0 || len(report.FileErrors) > 0 || s.collector.HasErrors() {
		return ErrCheckFailed
	}
	return nil
}

// checkAll evaluates every indexed task with at most workers in flight.
func checkAll(ctx context.Context, s *session, workers int) (*checkReport, error) {
	names := s.index.Names()
	report := &checkReport{Tasks: len(names), Files: len(s.index.Files())}
	for _, loadErr := range s.result.Errors {
		report.FileErrors = append(report.FileErrors, fmt.Sprintf("%s: %v", loadErr.File, loadErr.Error))
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, name := range names {
		g.Go(func() error {
			problems, err := checkTask(gctx, s.resolver, name)
			if err != nil {
				return err
			}
			if len(problems) > 0 {
				mu.Lock()
				report.Failed = append(report.Failed, taskReport{Task: name, Problems: problems})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].Task < report.Failed[j].Task })
	report.Diagnostics = uniqueDiagnostics(s.collector.Diagnostics())
	logger.FromContext(ctx).Debug("Check finished", "tasks", report.Tasks, "failed", len(report.Failed))
	return report, nil
}

// checkTask returns the evaluation problems of one task. Only source or
// context failures are returned as errors.
func checkTask(ctx context.Context, rc *resolver.Context, name string) ([]string, error) {
	res, err := rc.EvalTask(ctx, name)
	if err != nil {
		if isEvalFailure(err) {
			return []string{err.Error()}, nil
		}
		return nil, err
	}
	var problems []string
	for _, prop := range pipeline.ExprProps {
		for _, expr := range prop.List(res.Task) {
			if _, err := rc.EvalExpr(ctx, expr, name); err != nil {
				if !isEvalFailure(err) {
					return nil, err
				}
				problems = append(problems, fmt.Sprintf("%s %q: %v", prop.Name, expr, err))
			}
		}
	}
	return problems, nil
}

func isEvalFailure(err error) bool {
	var evalErr *resolver.Error
	return errors.As(err, &evalErr)
}

func uniqueDiagnostics(diags []resolver.Diagnostic) []resolver.Diagnostic {
	seen := make(map[string]bool, len(diags))
	out := make([]resolver.Diagnostic, 0, len(diags))
	for _, d := range diags {
		key := d.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity == resolver.SeverityError
		}
		return out[i].Message < out[j].Message
	})
	return out
}

func printCheckReport(out *printer, report *checkReport) {
	for _, fileErr := range report.FileErrors {
		out.Textf("%s %s", out.styles.errorLabel.Render("file"), fileErr)
	}
	for _, failed := range report.Failed {
		out.Textf("%s", out.Heading(failed.Task))
		for _, problem := range failed.Problems {
			out.Textf("  %s", problem)
		}
	}
	if len(report.Diagnostics) > 0 {
		out.Textf("%s", out.Heading("Diagnostics"))
		for _, d := range report.Diagnostics {
			out.Textf("  %s", out.Diagnostic(d))
		}
	}
	out.Textf("%d tasks in %d files, %d with problems", report.Tasks, report.Files, len(report.Failed))
}
