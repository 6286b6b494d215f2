package session

import (
	"strings"

	"github.com/relialab/checkrun/pkg/job"
)

// ResultWatcher observes result changes on a JobState.
//
// Watchers run synchronously after the value changes and must not mutate
// session state re-entrantly; work that needs to must be deferred until the
// current record/recompute step has finished.
type ResultWatcher func(previous, current Result)

// JobState is the mutable per-session state of one job.
//
// It pairs the immutable job definition with everything the session learns
// about the job over time: the inhibitors currently preventing it from
// running, the last recorded result, the definition that generated it (for
// template-instantiated jobs), and session-local attribute overrides.
//
// JobStates are created once per job at enrollment and live for the life of
// the session. The inhibitor list is written only by the readiness engine;
// the result only by the execution driver.
type JobState struct {
	def        *job.Definition
	inhibitors []*Inhibitor
	result     Result
	viaJob     *job.Definition
	category   Override[string]
	watchers   []ResultWatcher
}

// NewJobState returns the state for a freshly enrolled job: no result data
// and a single UndesiredInhibitor, so the job stays blocked until it is
// explicitly selected to run.
func NewJobState(def *job.Definition) *JobState {
	return &JobState{
		def:        def,
		inhibitors: []*Inhibitor{UndesiredInhibitor},
	}
}

// Job returns the immutable definition this state tracks. Identity is the
// definition's id; the definition object itself is replaceable only through
// ReattachJob.
func (s *JobState) Job() *job.Definition {
	return s.def
}

// ReattachJob swaps the tracked definition for a rehydrated equivalent.
//
// This is a deliberate escape hatch for session-restore logic only: when a
// session is recreated from its serialized form, existing states must be
// reattached to freshly loaded definitions carrying the same id. It is the
// single legal mutator of the job field after construction; every other
// caller must treat Job() as read-only. Do not remove it without replacing
// the restore path that depends on it.
func (s *JobState) ReattachJob(def *job.Definition) error {
	if def == nil || def.ID() == "" {
		return &InvalidAssignmentError{Field: "job", Err: ErrNotAJob}
	}
	s.def = def
	return nil
}

// Inhibitors returns a copy of the current readiness inhibitor list, in
// evaluation order. An empty list means the job can start.
func (s *JobState) Inhibitors() []*Inhibitor {
	return append([]*Inhibitor(nil), s.inhibitors...)
}

// setInhibitors replaces the inhibitor list. Only the readiness engine and
// the owning session state call this.
func (s *JobState) setInhibitors(inhibitors []*Inhibitor) {
	s.inhibitors = inhibitors
}

// CanStart reports whether the job may run right now.
func (s *JobState) CanStart() bool {
	return len(s.inhibitors) == 0
}

// ReadinessDescription returns a human readable rendering of the current
// readiness state: either "job can be started" or every inhibitor's
// explanation joined in list order.
func (s *JobState) ReadinessDescription() string {
	if len(s.inhibitors) == 0 {
		return "job can be started"
	}
	parts := make([]string, len(s.inhibitors))
	for i, inhibitor := range s.inhibitors {
		parts[i] = inhibitor.String()
	}
	return "job cannot be started: " + strings.Join(parts, ", ")
}

// Result returns the last recorded result; the zero Result means no data
// has been recorded yet.
func (s *JobState) Result() Result {
	return s.result
}

// SetResult records a result and notifies registered watchers synchronously.
func (s *JobState) SetResult(result Result) {
	previous := s.result
	s.result = result
	for _, watch := range s.watchers {
		watch(previous, result)
	}
}

// WatchResult registers a watcher invoked after every result change.
func (s *JobState) WatchResult(watcher ResultWatcher) {
	s.watchers = append(s.watchers, watcher)
}

// ViaJob returns the definition that generated this job at runtime, or nil
// for jobs enrolled directly.
func (s *JobState) ViaJob() *job.Definition {
	return s.viaJob
}

// SetViaJob records the generating definition. Once set, it can only be
// replaced by another concrete definition; nil or an id-less definition is
// rejected with an *InvalidAssignmentError. The guard exists to stop an
// identifier string (or checksum) from being stored where the actual
// definition belongs.
func (s *JobState) SetViaJob(def *job.Definition) error {
	if def == nil || def.ID() == "" {
		return &InvalidAssignmentError{Field: "via_job", Err: ErrNotAJob}
	}
	s.viaJob = def
	return nil
}

// EffectiveCategoryID returns the session-local category override when one
// is set, and the definition's own category id otherwise.
func (s *JobState) EffectiveCategoryID() string {
	return s.category.Get(s.def.CategoryID)
}

// OverrideCategoryID shadows the definition's category id for this session.
// The definition is not modified; later changes to the override win over
// whatever the definition says.
func (s *JobState) OverrideCategoryID(categoryID string) {
	s.category.Set(categoryID)
}

// ClearCategoryOverride restores inheritance from the definition.
func (s *JobState) ClearCategoryOverride() {
	s.category.Clear()
}
