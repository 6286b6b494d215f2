package session

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relialab/checkrun/pkg/job"
	"github.com/relialab/checkrun/pkg/resource"
)

// ResultEvent is published after a job's result changes.
type ResultEvent struct {
	JobID    string
	Previous Result
	Result   Result
}

// Subscriber receives result events. Subscribers run synchronously inside
// the record step and must not mutate session state re-entrantly.
type Subscriber func(ResultEvent)

// Option configures a State.
type Option func(*State)

// WithLogger sets the logger used by the session. Default: zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(s *State) {
		s.logger = logger
	}
}

// State owns the per-job states and resource records of one session.
//
// It is the single writer of everything it owns: results and resource
// records are recorded strictly between job executions, and each record step
// recomputes the readiness of every transitively affected job before any
// other job can observe the update. Because mutation never overlaps a
// readiness read, State carries no locks; a driver that parallelizes job
// execution must serialize its record/recompute steps itself.
type State struct {
	id     string
	logger *zap.Logger

	order       []string
	states      map[string]*JobState
	desired     map[string]bool
	store       *resource.Store
	expressions map[string][]*resource.Expression
	subscribers []Subscriber
}

// New creates an empty session state.
func New(opts ...Option) *State {
	s := &State{
		id:          uuid.NewString(),
		logger:      zap.NewNop(),
		states:      make(map[string]*JobState),
		desired:     make(map[string]bool),
		store:       resource.NewStore(),
		expressions: make(map[string][]*resource.Expression),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session id.
func (s *State) ID() string {
	return s.id
}

// Enroll creates the JobState for def and adds it to the session.
//
// The fresh state is blocked by exactly the shared undesired inhibitor until
// the job is selected with MarkSelected. The definition's requirement
// expressions are compiled here so malformed predicates fail at enrollment,
// not at first readiness computation.
//
// Returns an error if def is nil, the id is already enrolled, or a
// requirement expression does not parse.
func (s *State) Enroll(def *job.Definition) (*JobState, error) {
	if def == nil || def.ID() == "" {
		return nil, &InvalidAssignmentError{Field: "job", Err: ErrNotAJob}
	}
	id := def.ID()
	if _, ok := s.states[id]; ok {
		return nil, fmt.Errorf("enroll %q: %w", id, ErrDuplicateJob)
	}

	exprs := make([]*resource.Expression, 0, len(def.Requires()))
	for _, text := range def.Requires() {
		expr, err := resource.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("enroll %q: %w", id, err)
		}
		exprs = append(exprs, expr)
	}

	state := NewJobState(def)
	state.WatchResult(func(previous, current Result) {
		s.publish(ResultEvent{JobID: id, Previous: previous, Result: current})
	})

	s.states[id] = state
	s.order = append(s.order, id)
	s.expressions[id] = exprs

	s.logger.Debug("job enrolled",
		zap.String("session_id", s.id),
		zap.String("job_id", id),
		zap.Int("requirements", len(exprs)))
	return state, nil
}

// JobState returns the state tracked for id.
func (s *State) JobState(id string) (*JobState, error) {
	state, ok := s.states[id]
	if !ok {
		return nil, fmt.Errorf("job %q: %w", id, ErrUnknownJob)
	}
	return state, nil
}

// Jobs returns every tracked state in enrollment order.
func (s *State) Jobs() []*JobState {
	states := make([]*JobState, 0, len(s.order))
	for _, id := range s.order {
		states = append(states, s.states[id])
	}
	return states
}

// Selected reports whether id was selected to run in this session.
func (s *State) Selected(id string) bool {
	return s.desired[id]
}

// MarkSelected selects the job to run and recomputes its readiness, so the
// remaining causes become meaningful immediately.
func (s *State) MarkSelected(id string) error {
	if _, ok := s.states[id]; !ok {
		return fmt.Errorf("job %q: %w", id, ErrUnknownJob)
	}
	s.desired[id] = true
	return s.RecomputeReadiness(id)
}

// MarkUndesired deselects the job; its inhibitor list collapses back to the
// shared undesired inhibitor regardless of dependency or resource state.
func (s *State) MarkUndesired(id string) error {
	if _, ok := s.states[id]; !ok {
		return fmt.Errorf("job %q: %w", id, ErrUnknownJob)
	}
	s.desired[id] = false
	return s.RecomputeReadiness(id)
}

// RecordResult stores the result for id, notifies result watchers and
// subscribers, then recomputes readiness for every job whose dependency or
// resource graph transitively includes id.
func (s *State) RecordResult(id string, result Result) error {
	state, ok := s.states[id]
	if !ok {
		return fmt.Errorf("job %q: %w", id, ErrUnknownJob)
	}

	state.SetResult(result)
	s.logger.Debug("result recorded",
		zap.String("session_id", s.id),
		zap.String("job_id", id),
		zap.String("outcome", result.String()))

	return s.recomputeDependents(id)
}

// AddResourceRecords appends records produced by the resource job id and
// recomputes readiness of every job gated on them.
func (s *State) AddResourceRecords(id string, recs ...resource.Record) error {
	if _, ok := s.states[id]; !ok {
		return fmt.Errorf("job %q: %w", id, ErrUnknownJob)
	}
	s.store.Add(id, recs...)
	return s.recomputeDependents(id)
}

// ReplaceResourceRecords replaces the record set produced by the resource
// job id, as a rerun does, and recomputes readiness of every gated job.
func (s *State) ReplaceResourceRecords(id string, recs []resource.Record) error {
	if _, ok := s.states[id]; !ok {
		return fmt.Errorf("job %q: %w", id, ErrUnknownJob)
	}
	s.store.Replace(id, recs)
	return s.recomputeDependents(id)
}

// ResourceRecords returns the records produced so far by the given job.
func (s *State) ResourceRecords(id string) []resource.Record {
	return s.store.Records(id)
}

// Subscribe registers a subscriber for result events from every job in the
// session, present and future.
func (s *State) Subscribe(sub Subscriber) {
	s.subscribers = append(s.subscribers, sub)
}

func (s *State) publish(event ResultEvent) {
	for _, sub := range s.subscribers {
		sub(event)
	}
}

// recomputeDependents recomputes readiness for every job transitively
// downstream of id, in enrollment order.
func (s *State) recomputeDependents(id string) error {
	affected := s.dependentsOf(id)
	for _, jobID := range s.order {
		if !affected[jobID] {
			continue
		}
		if err := s.RecomputeReadiness(jobID); err != nil {
			return err
		}
	}
	return nil
}

// dependentsOf returns the set of job ids whose dependency or resource graph
// transitively includes id.
func (s *State) dependentsOf(id string) map[string]bool {
	// Reverse edges: producer/dependency -> consumers.
	reverse := make(map[string][]string, len(s.states))
	for _, consumerID := range s.order {
		def := s.states[consumerID].Job()
		for _, depID := range def.DependsOn() {
			reverse[depID] = append(reverse[depID], consumerID)
		}
		for _, expr := range s.expressions[consumerID] {
			reverse[expr.ResourceID()] = append(reverse[expr.ResourceID()], consumerID)
		}
	}

	affected := make(map[string]bool)
	queue := append([]string(nil), reverse[id]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if affected[next] {
			continue
		}
		affected[next] = true
		queue = append(queue, reverse[next]...)
	}
	return affected
}
