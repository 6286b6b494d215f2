package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/relialab/checkrun/internal/observability"
	"github.com/relialab/checkrun/internal/server"
	"github.com/relialab/checkrun/pkg/output"
	"github.com/relialab/checkrun/pkg/plan"
	"github.com/relialab/checkrun/pkg/session"
)

// buildSession enrolls every plan job and applies the plan's selection.
func buildSession(p *plan.Plan) (*session.State, error) {
	defs, err := p.Definitions()
	if err != nil {
		return nil, err
	}

	sess := session.New(session.WithLogger(observability.CLILogger))
	for _, def := range defs {
		if _, err := sess.Enroll(def); err != nil {
			return nil, fmt.Errorf("enroll job %q: %w", def.ID(), err)
		}
	}
	for _, def := range defs {
		if !p.Selected(def.ID()) {
			continue
		}
		if err := sess.MarkSelected(def.ID()); err != nil {
			return nil, fmt.Errorf("select job %q: %w", def.ID(), err)
		}
	}
	return sess, nil
}

// newWriter opens the JSONL destination. Empty or "stdout" writes to
// standard output. Returns the writer and a cleanup function.
func newWriter(dest, sessionID string) (output.Writer, func(), error) {
	if dest == "" || dest == "stdout" {
		w := output.NewJSONLWriter(os.Stdout, sessionID)
		return w, func() { _ = w.Close() }, nil
	}

	path := strings.TrimPrefix(dest, "file:")
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file %s: %w", path, err)
	}
	w := output.NewJSONLWriter(f, sessionID)
	cleanup := func() {
		_ = w.Close()
		_ = f.Close()
	}
	return w, cleanup, nil
}

// emitReadiness writes one readiness record per enrolled job, in
// enrollment order.
func emitReadiness(ctx context.Context, w output.Writer, sess *session.State) error {
	for _, state := range sess.Jobs() {
		id := state.Job().ID()
		var inhibitors []string
		for _, inh := range state.Inhibitors() {
			inhibitors = append(inhibitors, inh.String())
		}
		rec := &output.ReadinessRecord{
			JobID:      id,
			CategoryID: state.EffectiveCategoryID(),
			Selected:   sess.Selected(id),
			CanStart:   state.CanStart(),
			Inhibitors: inhibitors,
		}
		if err := w.WriteReadiness(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// snapshotOf captures the session's current state for the API server.
func snapshotOf(sess *session.State, title string) server.Snapshot {
	snap := server.Snapshot{SessionID: sess.ID(), Title: title}
	for _, state := range sess.Jobs() {
		def := state.Job()
		id := def.ID()
		var inhibitors []string
		for _, inh := range state.Inhibitors() {
			inhibitors = append(inhibitors, inh.Cause().String())
		}
		snap.Jobs = append(snap.Jobs, server.JobSnapshot{
			ID:         id,
			Summary:    def.Summary(),
			Plugin:     string(def.Plugin()),
			Category:   state.EffectiveCategoryID(),
			Selected:   sess.Selected(id),
			CanStart:   state.CanStart(),
			Outcome:    string(state.Result().Outcome),
			Readiness:  state.ReadinessDescription(),
			Inhibitors: inhibitors,
		})
	}
	return snap
}
