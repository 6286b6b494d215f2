// Package plan provides loading and validation of checkrun test plans.
//
// A test plan is a YAML file declaring the jobs of a session and which of
// them are selected to run. Selection entries are glob patterns matched
// against job ids; a plan without a select section selects every job.
//
// Example plan:
//
//	version: "1.0"
//	title: storage certification
//	jobs:
//	  - id: cpu
//	    plugin: resource
//	    command: cpu-facts
//	  - id: disk/detect
//	    command: detect-disks
//	  - id: disk/bench
//	    category: storage
//	    depends: [disk/detect]
//	    requires:
//	      - cpu.cores > 2
//	    command: run-bench
//	select:
//	  - "disk/*"
package plan

import (
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/relialab/checkrun/pkg/job"
)

// Version is the plan schema version this package accepts.
const Version = "1.0"

// Errors returned by plan validation.
var (
	// ErrUnsupportedVersion is returned for any version other than "1.0".
	ErrUnsupportedVersion = errors.New("unsupported plan version")

	// ErrNoJobs is returned when a plan declares no jobs.
	ErrNoJobs = errors.New("plan declares no jobs")

	// ErrDuplicateJobID is returned when two jobs share an id.
	ErrDuplicateJobID = errors.New("duplicate job id")

	// ErrUnknownDependency is returned when a job depends on an id the plan
	// does not declare.
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrInvalidSelectPattern is returned when a select glob does not
	// compile.
	ErrInvalidSelectPattern = errors.New("invalid select pattern")
)

// PlanError wraps validation errors with the offending plan element.
type PlanError struct {
	Element string
	Err     error
}

func (e *PlanError) Error() string {
	if e.Element == "" {
		return fmt.Sprintf("plan: %v", e.Err)
	}
	return fmt.Sprintf("plan: %s: %v", e.Element, e.Err)
}

func (e *PlanError) Unwrap() error {
	return e.Err
}

// JobEntry is one job declaration in a plan file.
type JobEntry struct {
	// ID is the stable job identity. Required.
	ID string `yaml:"id"`

	// Summary is a one-line human description.
	Summary string `yaml:"summary,omitempty"`

	// Plugin selects how command output is interpreted: "shell" (default)
	// or "resource".
	Plugin string `yaml:"plugin,omitempty"`

	// Command is the shell command executed for this job.
	Command string `yaml:"command,omitempty"`

	// Category groups the job for reporting.
	Category string `yaml:"category,omitempty"`

	// Depends lists direct dependency job ids in order.
	Depends []string `yaml:"depends,omitempty"`

	// Requires lists resource requirement expressions in order.
	Requires []string `yaml:"requires,omitempty"`
}

// Plan is a validated test plan.
type Plan struct {
	// Version is the plan schema version. Must be "1.0".
	Version string `yaml:"version"`

	// Title names the plan for reporting.
	Title string `yaml:"title,omitempty"`

	// Jobs declares the session's jobs in enrollment order.
	Jobs []JobEntry `yaml:"jobs"`

	// Select lists glob patterns (doublestar syntax) matched against job
	// ids. Empty means every job is selected.
	Select []string `yaml:"select,omitempty"`
}

// Validate checks plan-level invariants. Load calls this; it is exported for
// plans assembled in code.
func (p *Plan) Validate() error {
	if p.Version != Version {
		return &PlanError{Element: "version", Err: fmt.Errorf("%w: %q", ErrUnsupportedVersion, p.Version)}
	}
	if len(p.Jobs) == 0 {
		return &PlanError{Err: ErrNoJobs}
	}

	ids := make(map[string]bool, len(p.Jobs))
	for _, entry := range p.Jobs {
		if ids[entry.ID] {
			return &PlanError{Element: "jobs", Err: fmt.Errorf("%w: %q", ErrDuplicateJobID, entry.ID)}
		}
		ids[entry.ID] = true
	}
	for _, entry := range p.Jobs {
		for _, dep := range entry.Depends {
			if !ids[dep] {
				return &PlanError{
					Element: fmt.Sprintf("job %q", entry.ID),
					Err:     fmt.Errorf("%w: %q", ErrUnknownDependency, dep),
				}
			}
		}
	}
	for _, pattern := range p.Select {
		if !doublestar.ValidatePattern(pattern) {
			return &PlanError{Element: "select", Err: fmt.Errorf("%w: %q", ErrInvalidSelectPattern, pattern)}
		}
	}
	return nil
}

// Definitions converts the plan's job entries into immutable definitions,
// preserving declaration order.
func (p *Plan) Definitions() ([]*job.Definition, error) {
	defs := make([]*job.Definition, 0, len(p.Jobs))
	for _, entry := range p.Jobs {
		def, err := job.New(job.Spec{
			ID:         entry.ID,
			Summary:    entry.Summary,
			Plugin:     job.Plugin(entry.Plugin),
			Command:    entry.Command,
			CategoryID: entry.Category,
			DependsOn:  entry.Depends,
			Requires:   entry.Requires,
		})
		if err != nil {
			return nil, fmt.Errorf("plan: %w", err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Selected reports whether the job id matches the plan's selection.
//
// With no select patterns every job is selected. Patterns use doublestar
// glob syntax against the id, so "disk/*" selects every job in the disk
// group. Patterns are validated by Validate; an unvalidated bad pattern
// simply does not match.
func (p *Plan) Selected(id string) bool {
	if len(p.Select) == 0 {
		return true
	}
	for _, pattern := range p.Select {
		if matched, err := doublestar.Match(pattern, id); err == nil && matched {
			return true
		}
	}
	return false
}
