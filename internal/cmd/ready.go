package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/relialab/checkrun/internal/observability"
	"github.com/relialab/checkrun/pkg/plan"
)

var readyCmd = &cobra.Command{
	Use:   "ready",
	Short: "Report job readiness without running anything",
	Long: `Load a plan, apply its selection, and emit one readiness record per
job describing whether it could start right now and which inhibitors
stand in the way. Nothing is executed.

Example:
  checkrun ready --plan plan.yaml
  checkrun ready --plan plan.yaml --output readiness.jsonl`,
	RunE: runReady,
}

var (
	readyPlanPath string
	readyOutput   string
)

func init() {
	rootCmd.AddCommand(readyCmd)

	readyCmd.Flags().StringVarP(&readyPlanPath, "plan", "p", "", "Path to plan file (required)")
	readyCmd.Flags().StringVarP(&readyOutput, "output", "o", "", "Write JSONL records to this file instead of stdout")
	_ = readyCmd.MarkFlagRequired("plan")
}

func runReady(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	p, err := plan.Load(readyPlanPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load plan",
			zap.String("path", readyPlanPath),
			zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid plan", err)
	}

	sess, err := buildSession(p)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to build session", err)
	}

	w, cleanup, err := newWriter(readyOutput, sess.ID())
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to open output", err)
	}
	defer cleanup()

	if err := emitReadiness(ctx, w, sess); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write readiness records", err)
	}
	return nil
}
