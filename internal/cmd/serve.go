package cmd

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/relialab/checkrun/internal/observability"
	"github.com/relialab/checkrun/internal/server"
	"github.com/relialab/checkrun/pkg/plan"
	"github.com/relialab/checkrun/pkg/runner"
	"github.com/relialab/checkrun/pkg/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a plan while serving session state over HTTP",
	Long: `Run a plan like the run command, while exposing a read-only HTTP API
describing every job's readiness and outcome. The server keeps serving
the final session state after the run completes, until interrupted.

Example:
  checkrun serve --plan plan.yaml
  checkrun serve --plan plan.yaml --host 0.0.0.0 --port 9000`,
	RunE: runServe,
}

var (
	servePlanPath string
	serveHost     string
	servePort     int
	serveLogDir   string
	serveNoRun    bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&servePlanPath, "plan", "p", "", "Path to plan file (required)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Bind host (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Bind port (overrides config)")
	serveCmd.Flags().StringVar(&serveLogDir, "log-dir", "", "Directory for per-job IO logs (overrides config)")
	serveCmd.Flags().BoolVar(&serveNoRun, "no-run", false, "Serve readiness only, do not execute jobs")
	_ = serveCmd.MarkFlagRequired("plan")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	p, err := plan.Load(servePlanPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load plan",
			zap.String("path", servePlanPath),
			zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid plan", err)
	}

	sess, err := buildSession(p)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to build session", err)
	}

	// Snapshots are rebuilt by the runner goroutine, which is the
	// session's single writer, and read by HTTP handlers through the
	// atomic value.
	var snapshot atomic.Value
	snapshot.Store(snapshotOf(sess, p.Title))
	sess.Subscribe(func(session.ResultEvent) {
		snapshot.Store(snapshotOf(sess, p.Title))
	})

	host := appConfig.Server.Host
	if serveHost != "" {
		host = serveHost
	}
	port := appConfig.Server.Port
	if servePort != 0 {
		port = servePort
	}

	server.Version = versionInfo.Version
	srv := server.New(host, port, func() server.Snapshot {
		return snapshot.Load().(server.Snapshot)
	})

	runErr := make(chan error, 1)
	if serveNoRun {
		close(runErr)
	} else {
		logDir := appConfig.Runner.LogDir
		if serveLogDir != "" {
			logDir = serveLogDir
		}
		r := runner.New(sess, runner.Config{Shell: appConfig.Runner.Shell, LogDir: logDir}, observability.CLILogger)
		go func() {
			summary, err := r.Run(ctx)
			if err != nil {
				runErr <- err
				return
			}
			snapshot.Store(snapshotOf(sess, p.Title))
			observability.CLILogger.Info("Run complete",
				zap.Int("passed", summary.Passed),
				zap.Int("failed", summary.Failed),
				zap.Int("skipped", summary.Skipped),
				zap.Strings("blocked", summary.Blocked))
			close(runErr)
		}()
	}

	err = srv.Run(ctx,
		appConfig.Server.ReadTimeout,
		appConfig.Server.WriteTimeout,
		appConfig.Server.IdleTimeout,
		appConfig.Server.ShutdownTimeout)
	if err != nil {
		return exitError(1, "Server failed", err)
	}

	if rErr, ok := <-runErr; ok && rErr != nil && !errors.Is(rErr, context.Canceled) {
		return exitError(1, "Run failed", rErr)
	}
	return nil
}
