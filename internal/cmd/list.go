package cmd

import (
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/relialab/checkrun/internal/observability"
	"github.com/relialab/checkrun/pkg/plan"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the jobs in a test plan",
	Long: `List every job defined in a plan, with its plugin, category, and
whether the plan's selection patterns include it.

Example:
  checkrun list --plan plan.yaml`,
	RunE: runList,
}

var listPlanPath string

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listPlanPath, "plan", "p", "", "Path to plan file (required)")
	_ = listCmd.MarkFlagRequired("plan")
}

func runList(cmd *cobra.Command, _ []string) error {
	p, err := plan.Load(listPlanPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load plan",
			zap.String("path", listPlanPath),
			zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid plan", err)
	}

	defs, err := p.Definitions()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid job definition", err)
	}

	out := cmd.OutOrStdout()
	if p.Title != "" {
		fmt.Fprintf(out, "Plan: %s\n\n", p.Title)
	}
	for _, def := range defs {
		marker := " "
		if p.Selected(def.ID()) {
			marker = "*"
		}
		line := fmt.Sprintf("%s %-30s %-8s %s", marker, def.ID(), def.Plugin(), def.CategoryID())
		if def.Summary() != "" {
			line += "  " + def.Summary()
		}
		fmt.Fprintln(out, strings.TrimRight(line, " "))
	}
	selected := 0
	for _, def := range defs {
		if p.Selected(def.ID()) {
			selected++
		}
	}
	fmt.Fprintf(out, "\n%d jobs, %d selected\n", len(defs), selected)
	return nil
}
