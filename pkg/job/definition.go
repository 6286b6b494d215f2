// Package job defines immutable job definitions for checkrun sessions.
//
// A Definition describes one unit of work: a shell command that produces a
// pass/fail outcome, or a resource command whose stdout is parsed into
// key/value records consumed by other jobs' requirement expressions.
// Definitions are validated at construction and read-only afterwards;
// per-session mutable data (results, readiness) lives in pkg/session.
package job

import (
	"errors"
	"fmt"
)

// Plugin identifies how a job's command output is interpreted.
type Plugin string

const (
	// PluginShell runs the command and maps its exit status to pass/fail.
	PluginShell Plugin = "shell"

	// PluginResource runs the command and parses stdout into resource records.
	PluginResource Plugin = "resource"
)

// DefaultCategoryID is assigned when a job declares no category.
const DefaultCategoryID = "uncategorized"

// Errors returned by Definition construction.
var (
	// ErrMissingID is returned when a definition has no id.
	ErrMissingID = errors.New("job id is required")

	// ErrUnknownPlugin is returned when the plugin is not a known value.
	ErrUnknownPlugin = errors.New("unknown job plugin")

	// ErrSelfDependency is returned when a job lists itself as a dependency.
	ErrSelfDependency = errors.New("job cannot depend on itself")
)

// DefinitionError wraps definition validation errors with the job id.
type DefinitionError struct {
	ID  string
	Err error
}

func (e *DefinitionError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("job definition: %v", e.Err)
	}
	return fmt.Sprintf("job %q: %v", e.ID, e.Err)
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

// Spec carries the raw fields used to construct a Definition.
type Spec struct {
	// ID is the stable identity of the job. Required.
	ID string

	// Summary is a one-line human description. Optional.
	Summary string

	// Plugin selects how the command output is interpreted.
	// Default: PluginShell.
	Plugin Plugin

	// Command is the shell command executed for this job.
	Command string

	// CategoryID groups the job for reporting. Default: DefaultCategoryID.
	CategoryID string

	// DependsOn lists direct dependency job ids, in declaration order.
	DependsOn []string

	// Requires lists resource requirement expression texts, in declaration
	// order. Each expression gates readiness on data produced by a resource
	// job (e.g. "cpu.cores > 2").
	Requires []string
}

// Definition is an immutable job definition.
//
// All fields are fixed at construction; session-local overrides (such as an
// effective category) are layered on by the session state, never written
// back here.
type Definition struct {
	id         string
	summary    string
	plugin     Plugin
	command    string
	categoryID string
	dependsOn  []string
	requires   []string
}

// New validates spec and returns an immutable Definition.
//
// Returns a *DefinitionError if:
//   - The id is empty
//   - The plugin is not one of the known values
//   - The job lists itself as a dependency
func New(spec Spec) (*Definition, error) {
	if spec.ID == "" {
		return nil, &DefinitionError{Err: ErrMissingID}
	}
	plugin := spec.Plugin
	if plugin == "" {
		plugin = PluginShell
	}
	switch plugin {
	case PluginShell, PluginResource:
	default:
		return nil, &DefinitionError{ID: spec.ID, Err: fmt.Errorf("%w: %q", ErrUnknownPlugin, spec.Plugin)}
	}
	for _, dep := range spec.DependsOn {
		if dep == spec.ID {
			return nil, &DefinitionError{ID: spec.ID, Err: ErrSelfDependency}
		}
	}
	categoryID := spec.CategoryID
	if categoryID == "" {
		categoryID = DefaultCategoryID
	}
	return &Definition{
		id:         spec.ID,
		summary:    spec.Summary,
		plugin:     plugin,
		command:    spec.Command,
		categoryID: categoryID,
		dependsOn:  append([]string(nil), spec.DependsOn...),
		requires:   append([]string(nil), spec.Requires...),
	}, nil
}

// ID returns the stable job identity.
func (d *Definition) ID() string {
	return d.id
}

// Summary returns the one-line description, or the id when none was given.
func (d *Definition) Summary() string {
	if d.summary == "" {
		return d.id
	}
	return d.summary
}

// Plugin returns how the job's command output is interpreted.
func (d *Definition) Plugin() Plugin {
	return d.plugin
}

// Command returns the shell command executed for this job.
func (d *Definition) Command() string {
	return d.command
}

// CategoryID returns the job's own category id.
func (d *Definition) CategoryID() string {
	return d.categoryID
}

// DependsOn returns the direct dependency job ids in declaration order.
func (d *Definition) DependsOn() []string {
	return append([]string(nil), d.dependsOn...)
}

// Requires returns the resource requirement expression texts in declaration
// order.
func (d *Definition) Requires() []string {
	return append([]string(nil), d.requires...)
}

func (d *Definition) String() string {
	return d.id
}
