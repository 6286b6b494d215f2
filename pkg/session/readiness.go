package session

import (
	"fmt"

	"go.uber.org/zap"
)

// RecomputeReadiness runs the readiness engine for id and replaces that
// job's inhibitor list with the computed one.
//
// The computation is a pure function of current session state: no I/O, no
// blocking, and recomputing twice without an intervening change yields an
// identical list. An expression evaluation failure aborts the recomputation
// and is returned attributed to id; it is never masked as a failed-resource
// inhibitor.
func (s *State) RecomputeReadiness(id string) error {
	state, ok := s.states[id]
	if !ok {
		return fmt.Errorf("job %q: %w", id, ErrUnknownJob)
	}

	inhibitors, err := s.computeInhibitors(state)
	if err != nil {
		return fmt.Errorf("recompute readiness for job %q: %w", id, err)
	}

	state.setInhibitors(inhibitors)
	s.logger.Debug("readiness recomputed",
		zap.String("session_id", s.id),
		zap.String("job_id", id),
		zap.Int("inhibitors", len(inhibitors)))
	return nil
}

// computeInhibitors derives the ordered inhibitor list for one job.
//
// Selection dominates: an unselected job is blocked by exactly the shared
// undesired inhibitor and nothing else is evaluated. Otherwise dependencies
// are checked in declaration order, then requirement expressions in
// declaration order; the final list preserves that order and is not
// deduplicated, so every simultaneous cause is surfaced.
func (s *State) computeInhibitors(state *JobState) ([]*Inhibitor, error) {
	def := state.Job()
	if !s.desired[def.ID()] {
		return []*Inhibitor{UndesiredInhibitor}, nil
	}

	inhibitors := []*Inhibitor{}

	for _, depID := range def.DependsOn() {
		depState, ok := s.states[depID]
		if !ok {
			return nil, fmt.Errorf("dependency %q: %w", depID, ErrUnknownJob)
		}
		switch depState.Result().Outcome {
		case OutcomeNone, OutcomeInProgress:
			inhibitors = append(inhibitors, &Inhibitor{
				cause:      CausePendingDep,
				relatedJob: depState.Job(),
			})
		case OutcomeFail, OutcomeNotSupported:
			inhibitors = append(inhibitors, &Inhibitor{
				cause:      CauseFailedDep,
				relatedJob: depState.Job(),
			})
		}
		// Pass and skip contribute no inhibitor.
	}

	for _, expr := range s.expressions[def.ID()] {
		producerState, ok := s.states[expr.ResourceID()]
		if !ok {
			return nil, fmt.Errorf("resource %q: %w", expr.ResourceID(), ErrUnknownJob)
		}
		records := s.store.Records(expr.ResourceID())
		if len(records) == 0 {
			inhibitors = append(inhibitors, &Inhibitor{
				cause:       CausePendingResource,
				relatedJob:  producerState.Job(),
				relatedExpr: expr,
			})
			continue
		}
		satisfied, err := expr.EvaluateAny(records)
		if err != nil {
			return nil, err
		}
		if !satisfied {
			inhibitors = append(inhibitors, &Inhibitor{
				cause:       CauseFailedResource,
				relatedJob:  producerState.Job(),
				relatedExpr: expr,
			})
		}
	}

	return inhibitors, nil
}
