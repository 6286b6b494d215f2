// Package runner executes the selected jobs of a session, one at a time.
//
// The runner is the session's single writer: it records each job's result
// and resource records strictly after the command finishes and before the
// next job's readiness is consulted, so readiness reads never overlap a
// mutation. It repeatedly scans the session for a selected job that is
// ready and has no result yet, runs its command through the configured
// shell, and records the outcome; it stops when no such job remains. Jobs
// whose inhibitors never clear are reported as blocked, not errors.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/relialab/checkrun/pkg/job"
	"github.com/relialab/checkrun/pkg/session"
)

// Config configures a Runner.
type Config struct {
	// Shell runs each job command as `shell -c command`. Default: /bin/sh.
	Shell string

	// LogDir is where per-job IO logs are written. Empty discards logs.
	LogDir string

	// OnJobDone, when set, is called after each executed job with its final
	// result and the number of resource records parsed from its output.
	OnJobDone func(jobID string, result session.Result, records int)
}

// Summary aggregates one run.
type Summary struct {
	// Selected is the number of jobs selected to run.
	Selected int

	// Passed, Failed and Skipped count terminal outcomes.
	Passed  int
	Failed  int
	Skipped int

	// Blocked lists selected jobs that never became ready, in enrollment
	// order.
	Blocked []string

	// Duration is the total run duration.
	Duration time.Duration
}

// Runner drives one session to completion.
type Runner struct {
	sess   *session.State
	cfg    Config
	logger *zap.Logger
}

// New creates a runner for sess. A nil logger defaults to zap.NewNop().
func New(sess *session.State, cfg Config, logger *zap.Logger) *Runner {
	if cfg.Shell == "" {
		cfg.Shell = "/bin/sh"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{sess: sess, cfg: cfg, logger: logger}
}

// Run executes ready jobs until none remain, then reports a summary.
//
// Command failures become fail results and do not abort the run. The run
// aborts only on context cancellation, on IO log setup failures, and on
// expression evaluation errors surfaced by readiness recomputation.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		state := r.nextReady()
		if state == nil {
			break
		}
		if err := r.runJob(ctx, state); err != nil {
			return nil, err
		}
	}

	summary := &Summary{Duration: time.Since(start)}
	for _, state := range r.sess.Jobs() {
		id := state.Job().ID()
		if !r.sess.Selected(id) {
			continue
		}
		summary.Selected++
		switch state.Result().Outcome {
		case session.OutcomePass:
			summary.Passed++
		case session.OutcomeFail, session.OutcomeNotSupported:
			summary.Failed++
		case session.OutcomeSkip:
			summary.Skipped++
		case session.OutcomeNone:
			summary.Blocked = append(summary.Blocked, id)
		}
	}
	return summary, nil
}

// nextReady returns the first selected job, in enrollment order, that can
// start and has no result yet.
func (r *Runner) nextReady() *session.JobState {
	for _, state := range r.sess.Jobs() {
		id := state.Job().ID()
		if r.sess.Selected(id) && state.Result().Empty() && state.CanStart() {
			return state
		}
	}
	return nil
}

func (r *Runner) runJob(ctx context.Context, state *session.JobState) error {
	def := state.Job()
	id := def.ID()

	if err := r.sess.RecordResult(id, session.InProgressResult()); err != nil {
		return err
	}

	r.logger.Info("running job",
		zap.String("job_id", id),
		zap.String("plugin", string(def.Plugin())))

	logPath, logFile, err := r.openLog(id)
	if err != nil {
		return err
	}

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, r.cfg.Shell, "-c", def.Command())
	if logFile != nil {
		cmd.Stdout = io.MultiWriter(logFile, &stdout)
		cmd.Stderr = logFile
	} else {
		cmd.Stdout = &stdout
	}

	cmdStart := time.Now()
	runErr := cmd.Run()
	duration := time.Since(cmdStart)
	if logFile != nil {
		_ = logFile.Close()
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			// The command never started (bad shell, fork failure). Recorded
			// as a failure so the session keeps going.
			r.logger.Warn("command failed to start",
				zap.String("job_id", id),
				zap.Error(runErr))
			exitCode = -1
		}
	}

	records := 0
	if def.Plugin() == job.PluginResource && runErr == nil {
		recs, parseErr := ParseRecords(bytes.NewReader(stdout.Bytes()))
		if parseErr != nil {
			r.logger.Warn("resource output did not parse",
				zap.String("job_id", id),
				zap.Error(parseErr))
			result := session.FailResult(exitCode, logPath, duration)
			if err := r.sess.RecordResult(id, result); err != nil {
				return err
			}
			r.report(id, result, 0)
			return nil
		}
		if err := r.sess.ReplaceResourceRecords(id, recs); err != nil {
			return fmt.Errorf("resource records for job %q: %w", id, err)
		}
		records = len(recs)
	}

	result := session.PassResult(exitCode, logPath, duration)
	if runErr != nil {
		result = session.FailResult(exitCode, logPath, duration)
	}
	if err := r.sess.RecordResult(id, result); err != nil {
		return err
	}

	r.logger.Info("job finished",
		zap.String("job_id", id),
		zap.String("outcome", result.String()),
		zap.Int("exit_code", exitCode),
		zap.Duration("duration", duration))
	r.report(id, result, records)
	return nil
}

func (r *Runner) report(id string, result session.Result, records int) {
	if r.cfg.OnJobDone != nil {
		r.cfg.OnJobDone(id, result, records)
	}
}

// openLog creates the IO log file for one job. Slashes in the id become
// hyphens so every log lands directly in LogDir.
func (r *Runner) openLog(id string) (string, *os.File, error) {
	if r.cfg.LogDir == "" {
		return "", nil, nil
	}
	if err := os.MkdirAll(r.cfg.LogDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create log dir: %w", err)
	}
	name := strings.ReplaceAll(id, "/", "-") + ".log"
	path := filepath.Join(r.cfg.LogDir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", nil, fmt.Errorf("create io log: %w", err)
	}
	return path, f, nil
}
