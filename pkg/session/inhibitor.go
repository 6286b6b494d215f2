// Package session implements the per-session readiness core: inhibitors
// explaining why a job cannot run, the mutable per-job state holder, the
// session state owning one holder per enrolled job, and the readiness engine
// that recomputes inhibitor lists as results and resource records arrive.
//
// Readiness is communicated purely through inhibitor list contents; an empty
// list means the job may run now. No errors are used for ordinary "not
// ready" signaling, which keeps readiness queries side-effect free and cheap
// to call repeatedly from UI and reporting layers.
package session

import (
	"fmt"

	"github.com/relialab/checkrun/pkg/job"
	"github.com/relialab/checkrun/pkg/resource"
)

// Cause encodes why a job is not ready to run.
type Cause int

const (
	// CauseUndesired marks a job that was not selected to run in this
	// session.
	CauseUndesired Cause = iota

	// CausePendingDep marks a job depending on another job that has not run
	// yet.
	CausePendingDep

	// CauseFailedDep marks a job depending on another job that ran and
	// failed.
	CauseFailedDep

	// CausePendingResource marks a job whose requirement expression reads a
	// resource that has not produced data yet.
	CausePendingResource

	// CauseFailedResource marks a job whose requirement expression evaluated
	// to false against every available record.
	CauseFailedResource
)

var causeNames = map[Cause]string{
	CauseUndesired:       "UNDESIRED",
	CausePendingDep:      "PENDING_DEP",
	CauseFailedDep:       "FAILED_DEP",
	CausePendingResource: "PENDING_RESOURCE",
	CauseFailedResource:  "FAILED_RESOURCE",
}

// String returns the stable display name of the cause.
func (c Cause) String() string {
	if name, ok := causeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Cause(%d)", int(c))
}

// Inhibitor is an immutable causal record explaining one reason a job
// cannot run. It is consumed by UI and reporting layers to render precise
// feedback: which dependency is missing, which expression failed.
//
// Every cause except CauseUndesired carries the job causing the block; the
// two resource causes additionally carry the requirement expression.
type Inhibitor struct {
	cause       Cause
	relatedJob  *job.Definition
	relatedExpr *resource.Expression
}

// UndesiredInhibitor is the shared instance used for every job that was not
// selected to run. It is immutable, so one process-wide instance is safe to
// share across sessions; freshly enrolled jobs start blocked by exactly this
// inhibitor until selected.
var UndesiredInhibitor = &Inhibitor{cause: CauseUndesired}

// NewInhibitor constructs an inhibitor, validating the cause/field pairing:
//
//   - CauseUndesired forbids relatedJob and relatedExpr (use
//     UndesiredInhibitor instead of constructing one)
//   - Every other cause requires relatedJob
//   - CausePendingResource and CauseFailedResource require relatedExpr;
//     all other causes forbid it
//
// Violations return a *ConfigurationError immediately; there is no lazy
// validation and no silent coercion.
func NewInhibitor(cause Cause, relatedJob *job.Definition, relatedExpr *resource.Expression) (*Inhibitor, error) {
	if _, ok := causeNames[cause]; !ok {
		return nil, &ConfigurationError{Cause: cause, Err: ErrUnknownCause}
	}
	if cause == CauseUndesired {
		if relatedJob != nil {
			return nil, &ConfigurationError{Cause: cause, Err: ErrRelatedJobForbidden}
		}
		if relatedExpr != nil {
			return nil, &ConfigurationError{Cause: cause, Err: ErrRelatedExpressionForbidden}
		}
		return UndesiredInhibitor, nil
	}
	if relatedJob == nil {
		return nil, &ConfigurationError{Cause: cause, Err: ErrRelatedJobRequired}
	}
	switch cause {
	case CausePendingResource, CauseFailedResource:
		if relatedExpr == nil {
			return nil, &ConfigurationError{Cause: cause, Err: ErrRelatedExpressionRequired}
		}
	default:
		if relatedExpr != nil {
			return nil, &ConfigurationError{Cause: cause, Err: ErrRelatedExpressionForbidden}
		}
	}
	return &Inhibitor{cause: cause, relatedJob: relatedJob, relatedExpr: relatedExpr}, nil
}

// Cause returns why the job is blocked.
func (i *Inhibitor) Cause() Cause {
	return i.cause
}

// RelatedJob returns the job causing the block, or nil for CauseUndesired.
// This is not the affected job; it is the job at the other end of the
// dependency or resource edge.
func (i *Inhibitor) RelatedJob() *job.Definition {
	return i.relatedJob
}

// RelatedExpression returns the requirement expression for the resource
// causes, nil otherwise.
func (i *Inhibitor) RelatedExpression() *resource.Expression {
	return i.relatedExpr
}

// String returns the human-readable explanation for this inhibitor.
func (i *Inhibitor) String() string {
	switch i.cause {
	case CauseUndesired:
		return "undesired"
	case CausePendingDep:
		return fmt.Sprintf("required dependency %q did not run yet", i.relatedJob.ID())
	case CauseFailedDep:
		return fmt.Sprintf("required dependency %q has failed", i.relatedJob.ID())
	case CausePendingResource:
		return fmt.Sprintf(
			"resource expression %q could not be evaluated because the resource it depends on did not run yet",
			i.relatedExpr.Text())
	case CauseFailedResource:
		return fmt.Sprintf("resource expression %q evaluates to false", i.relatedExpr.Text())
	}
	return i.cause.String()
}
