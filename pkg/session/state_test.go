package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relialab/checkrun/pkg/job"
	"github.com/relialab/checkrun/pkg/resource"
)

func enroll(t *testing.T, s *State, spec job.Spec) *JobState {
	t.Helper()
	def, err := job.New(spec)
	require.NoError(t, err)
	state, err := s.Enroll(def)
	require.NoError(t, err)
	return state
}

func causes(inhibitors []*Inhibitor) []Cause {
	out := make([]Cause, len(inhibitors))
	for i, inhibitor := range inhibitors {
		out[i] = inhibitor.Cause()
	}
	return out
}

func TestState_Enroll(t *testing.T) {
	s := New()
	state := enroll(t, s, job.Spec{ID: "a"})

	require.Len(t, state.Inhibitors(), 1)
	assert.Same(t, UndesiredInhibitor, state.Inhibitors()[0])
	assert.False(t, s.Selected("a"))

	got, err := s.JobState("a")
	require.NoError(t, err)
	assert.Same(t, state, got)

	_, err = s.JobState("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownJob))
}

func TestState_EnrollDuplicate(t *testing.T) {
	s := New()
	enroll(t, s, job.Spec{ID: "a"})

	def, err := job.New(job.Spec{ID: "a"})
	require.NoError(t, err)
	_, err = s.Enroll(def)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateJob))
}

func TestState_EnrollRejectsMalformedExpression(t *testing.T) {
	s := New()
	def, err := job.New(job.Spec{ID: "a", Requires: []string{"cpu.cores >"}})
	require.NoError(t, err)

	_, err = s.Enroll(def)
	require.Error(t, err)
	assert.True(t, resource.IsExpressionError(err))
}

func TestState_JobsPreserveEnrollmentOrder(t *testing.T) {
	s := New()
	enroll(t, s, job.Spec{ID: "c"})
	enroll(t, s, job.Spec{ID: "a"})
	enroll(t, s, job.Spec{ID: "b"})

	var ids []string
	for _, state := range s.Jobs() {
		ids = append(ids, state.Job().ID())
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

// Scenario A/B/C from the dependency lifecycle: B depends on A.
func TestState_DependencyLifecycle(t *testing.T) {
	s := New()
	enroll(t, s, job.Spec{ID: "A"})
	b := enroll(t, s, job.Spec{ID: "B", DependsOn: []string{"A"}})

	require.NoError(t, s.MarkSelected("A"))
	require.NoError(t, s.MarkSelected("B"))

	// A has not run: B is pending on it.
	require.Equal(t, []Cause{CausePendingDep}, causes(b.Inhibitors()))
	assert.Equal(t, "A", b.Inhibitors()[0].RelatedJob().ID())

	// A fails: B flips to failed-dep.
	require.NoError(t, s.RecordResult("A", FailResult(1, "", 0)))
	require.Equal(t, []Cause{CauseFailedDep}, causes(b.Inhibitors()))
	assert.False(t, b.CanStart())

	// A passes on rerun: B becomes ready.
	require.NoError(t, s.RecordResult("A", PassResult(0, "", 0)))
	assert.Empty(t, b.Inhibitors())
	assert.True(t, b.CanStart())
}

func TestState_SkippedDependencyDoesNotInhibit(t *testing.T) {
	s := New()
	enroll(t, s, job.Spec{ID: "A"})
	b := enroll(t, s, job.Spec{ID: "B", DependsOn: []string{"A"}})
	require.NoError(t, s.MarkSelected("B"))

	require.NoError(t, s.RecordResult("A", SkipResult("deselected")))
	assert.True(t, b.CanStart())
}

func TestState_InProgressDependencyIsPending(t *testing.T) {
	s := New()
	enroll(t, s, job.Spec{ID: "A"})
	b := enroll(t, s, job.Spec{ID: "B", DependsOn: []string{"A"}})
	require.NoError(t, s.MarkSelected("B"))

	require.NoError(t, s.RecordResult("A", InProgressResult()))
	require.Equal(t, []Cause{CausePendingDep}, causes(b.Inhibitors()))
}

// Scenario D: the resource lifecycle for "cpu.cores > 2".
func TestState_ResourceLifecycle(t *testing.T) {
	s := New()
	enroll(t, s, job.Spec{ID: "cpu", Plugin: job.PluginResource})
	c := enroll(t, s, job.Spec{ID: "C", Requires: []string{"cpu.cores > 2"}})
	require.NoError(t, s.MarkSelected("C"))

	// cpu has produced nothing: pending resource.
	require.Equal(t, []Cause{CausePendingResource}, causes(c.Inhibitors()))
	assert.Equal(t, "cpu", c.Inhibitors()[0].RelatedJob().ID())
	assert.Equal(t, "cpu.cores > 2", c.Inhibitors()[0].RelatedExpression().Text())

	// A record that fails the predicate: failed resource.
	require.NoError(t, s.AddResourceRecords("cpu", resource.Record{"cores": "1"}))
	require.Equal(t, []Cause{CauseFailedResource}, causes(c.Inhibitors()))

	// An additional record that satisfies it: inhibitor removed.
	require.NoError(t, s.AddResourceRecords("cpu", resource.Record{"cores": "4"}))
	assert.True(t, c.CanStart())

	// Replacing with a failing record set blocks again.
	require.NoError(t, s.ReplaceResourceRecords("cpu", []resource.Record{{"cores": "2"}}))
	require.Equal(t, []Cause{CauseFailedResource}, causes(c.Inhibitors()))
}

func TestState_SelectionDominatesEverything(t *testing.T) {
	s := New()
	enroll(t, s, job.Spec{ID: "A"})
	enroll(t, s, job.Spec{ID: "cpu", Plugin: job.PluginResource})
	b := enroll(t, s, job.Spec{
		ID:        "B",
		DependsOn: []string{"A"},
		Requires:  []string{"cpu.cores > 2"},
	})

	// Unselected: exactly the shared undesired inhibitor, regardless of how
	// bad the dependency and resource state is.
	require.NoError(t, s.RecordResult("A", FailResult(1, "", 0)))
	require.Len(t, b.Inhibitors(), 1)
	assert.Same(t, UndesiredInhibitor, b.Inhibitors()[0])

	require.NoError(t, s.MarkSelected("B"))
	assert.Equal(t, []Cause{CauseFailedDep, CausePendingResource}, causes(b.Inhibitors()))

	require.NoError(t, s.MarkUndesired("B"))
	require.Len(t, b.Inhibitors(), 1)
	assert.Same(t, UndesiredInhibitor, b.Inhibitors()[0])
}

func TestState_MultipleInhibitorsPreserveOrder(t *testing.T) {
	s := New()
	enroll(t, s, job.Spec{ID: "A"})
	enroll(t, s, job.Spec{ID: "B"})
	enroll(t, s, job.Spec{ID: "cpu", Plugin: job.PluginResource})
	enroll(t, s, job.Spec{ID: "mem", Plugin: job.PluginResource})
	target := enroll(t, s, job.Spec{
		ID:        "target",
		DependsOn: []string{"A", "B"},
		Requires:  []string{"cpu.cores > 2", "mem.total > 1024"},
	})
	require.NoError(t, s.MarkSelected("target"))

	require.NoError(t, s.RecordResult("A", FailResult(1, "", 0)))
	require.NoError(t, s.AddResourceRecords("mem", resource.Record{"total": "512"}))

	// Dependencies in declaration order, then expressions in declaration
	// order.
	assert.Equal(t,
		[]Cause{CauseFailedDep, CausePendingDep, CausePendingResource, CauseFailedResource},
		causes(target.Inhibitors()))
}

func TestState_RecomputeIsIdempotent(t *testing.T) {
	s := New()
	enroll(t, s, job.Spec{ID: "A"})
	enroll(t, s, job.Spec{ID: "cpu", Plugin: job.PluginResource})
	b := enroll(t, s, job.Spec{ID: "B", DependsOn: []string{"A"}, Requires: []string{"cpu.cores > 2"}})
	require.NoError(t, s.MarkSelected("B"))

	first := b.Inhibitors()
	require.NoError(t, s.RecomputeReadiness("B"))
	second := b.Inhibitors()

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Cause(), second[i].Cause())
		assert.Equal(t, first[i].RelatedJob(), second[i].RelatedJob())
		assert.Equal(t, first[i].RelatedExpression(), second[i].RelatedExpression())
	}
}

func TestState_EvaluationErrorPropagates(t *testing.T) {
	s := New()
	enroll(t, s, job.Spec{ID: "cpu", Plugin: job.PluginResource})
	c := enroll(t, s, job.Spec{ID: "C", Requires: []string{"cpu.cores > 2"}})
	require.NoError(t, s.MarkSelected("C"))

	before := causes(c.Inhibitors())

	// A record without the compared field makes the expression fail to
	// evaluate; the error surfaces instead of becoming FAILED_RESOURCE.
	err := s.AddResourceRecords("cpu", resource.Record{"vendor": "GenuineIntel"})
	require.Error(t, err)
	assert.True(t, resource.IsExpressionError(err))

	// The inhibitor list is left untouched by the failed recomputation.
	assert.Equal(t, before, causes(c.Inhibitors()))
}

func TestState_RecordResultRecomputesTransitiveDependents(t *testing.T) {
	s := New()
	enroll(t, s, job.Spec{ID: "A"})
	enroll(t, s, job.Spec{ID: "B", DependsOn: []string{"A"}})
	c := enroll(t, s, job.Spec{ID: "C", DependsOn: []string{"B"}})
	require.NoError(t, s.MarkSelected("B"))
	require.NoError(t, s.MarkSelected("C"))

	// C waits on B; B waits on A.
	require.Equal(t, []Cause{CausePendingDep}, causes(c.Inhibitors()))

	require.NoError(t, s.RecordResult("A", PassResult(0, "", 0)))
	require.NoError(t, s.RecordResult("B", PassResult(0, "", 0)))

	// Recording B's result reached C transitively.
	assert.True(t, c.CanStart())
}

func TestState_RecordResultUnknownJob(t *testing.T) {
	s := New()
	err := s.RecordResult("ghost", PassResult(0, "", 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownJob))
}

func TestState_SubscribersReceiveResultEvents(t *testing.T) {
	s := New()
	enroll(t, s, job.Spec{ID: "A"})

	var events []ResultEvent
	s.Subscribe(func(event ResultEvent) {
		events = append(events, event)
	})

	require.NoError(t, s.RecordResult("A", InProgressResult()))
	require.NoError(t, s.RecordResult("A", PassResult(0, "", 0)))

	require.Len(t, events, 2)
	assert.Equal(t, "A", events[0].JobID)
	assert.Equal(t, OutcomeInProgress, events[0].Result.Outcome)
	assert.Equal(t, OutcomeInProgress, events[1].Previous.Outcome)
	assert.Equal(t, OutcomePass, events[1].Result.Outcome)
}

func TestState_SessionsHaveDistinctIDs(t *testing.T) {
	assert.NotEqual(t, New().ID(), New().ID())
}
