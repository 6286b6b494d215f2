package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/relialab/checkrun/internal/observability"
	"github.com/relialab/checkrun/pkg/output"
	"github.com/relialab/checkrun/pkg/plan"
	"github.com/relialab/checkrun/pkg/resource"
	"github.com/relialab/checkrun/pkg/runner"
	"github.com/relialab/checkrun/pkg/session"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the selected jobs of a test plan",
	Long: `Load a plan, then repeatedly run whichever selected job is ready until
none remain. Each finished job is emitted as a result record; the run
ends with a summary record counting outcomes and naming any jobs whose
inhibitors never cleared.

Example:
  checkrun run --plan plan.yaml
  checkrun run --plan plan.yaml --output results.jsonl
  checkrun run --plan plan.yaml --dry-run`,
	RunE: runRun,
}

var (
	runPlanPath string
	runOutput   string
	runLogDir   string
	runShell    string
	runDryRun   bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runPlanPath, "plan", "p", "", "Path to plan file (required)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Write JSONL records to this file instead of stdout")
	runCmd.Flags().StringVar(&runLogDir, "log-dir", "", "Directory for per-job IO logs (overrides config)")
	runCmd.Flags().StringVar(&runShell, "shell", "", "Shell used to run job commands (overrides config)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Report readiness without executing anything")
	_ = runCmd.MarkFlagRequired("plan")
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	p, err := plan.Load(runPlanPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load plan",
			zap.String("path", runPlanPath),
			zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid plan", err)
	}

	sess, err := buildSession(p)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to build session", err)
	}

	w, cleanup, err := newWriter(runOutput, sess.ID())
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to open output", err)
	}
	defer cleanup()

	if runDryRun {
		if err := emitReadiness(ctx, w, sess); err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to write readiness records", err)
		}
		return nil
	}

	shell := appConfig.Runner.Shell
	if runShell != "" {
		shell = runShell
	}
	logDir := appConfig.Runner.LogDir
	if runLogDir != "" {
		logDir = runLogDir
	}

	cfg := runner.Config{
		Shell:  shell,
		LogDir: logDir,
		OnJobDone: func(jobID string, result session.Result, records int) {
			rec := &output.ResultRecord{
				JobID:         jobID,
				Outcome:       string(result.Outcome),
				ExitCode:      result.ExitCode,
				IOLogPath:     result.IOLogPath,
				Duration:      result.Duration,
				DurationHuman: result.Duration.String(),
				Records:       records,
			}
			if err := w.WriteResult(ctx, rec); err != nil {
				observability.CLILogger.Warn("Failed to write result record",
					zap.String("job_id", jobID),
					zap.Error(err))
			}
		},
	}

	r := runner.New(sess, cfg, observability.CLILogger)
	summary, err := r.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return exitError(foundry.ExitSignalInt, "Run cancelled", err)
		}
		var exprErr *resource.ExpressionError
		if errors.As(err, &exprErr) {
			_ = w.WriteError(ctx, &output.ErrorRecord{
				Code:    output.ErrCodeExpression,
				Message: exprErr.Error(),
			})
			return exitError(foundry.ExitInvalidArgument, "Resource expression failed", err)
		}
		_ = w.WriteError(ctx, &output.ErrorRecord{
			Code:    output.ErrCodeInternal,
			Message: err.Error(),
		})
		return exitError(1, "Run failed", err)
	}

	enrolled := len(sess.Jobs())
	if err := w.WriteSummary(ctx, &output.SummaryRecord{
		Title:         p.Title,
		Enrolled:      enrolled,
		Selected:      summary.Selected,
		Passed:        summary.Passed,
		Failed:        summary.Failed,
		Skipped:       summary.Skipped,
		Blocked:       summary.Blocked,
		Duration:      summary.Duration,
		DurationHuman: summary.Duration.String(),
	}); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write summary record", err)
	}

	if summary.Failed > 0 || len(summary.Blocked) > 0 {
		return exitError(1, "Session completed with failures",
			fmt.Errorf("failed=%d blocked=%d", summary.Failed, len(summary.Blocked)))
	}
	return nil
}
