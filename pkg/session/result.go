package session

import "time"

// Outcome tags the kind of a recorded job result.
type Outcome string

const (
	// OutcomeNone means no result data has been recorded yet.
	OutcomeNone Outcome = ""

	// OutcomeNotSupported means the job cannot run on this system at all.
	OutcomeNotSupported Outcome = "not-supported"

	// OutcomeInProgress means the job is currently executing.
	OutcomeInProgress Outcome = "in-progress"

	// OutcomePass means the job ran and succeeded.
	OutcomePass Outcome = "pass"

	// OutcomeFail means the job ran and failed.
	OutcomeFail Outcome = "fail"

	// OutcomeSkip means the job was deliberately not run.
	OutcomeSkip Outcome = "skip"
)

// Result is the recorded outcome of one job execution.
//
// It is a tagged value: Outcome selects the kind, and the payload fields
// that apply to it. Pass and fail carry the exit code, IO log reference and
// duration; skip and not-supported carry a comment explaining why. Consumers
// switch on Outcome rather than probing payload fields.
//
// The zero Result (OutcomeNone) means "no data yet" and is the default for
// every freshly enrolled job.
type Result struct {
	// Outcome tags the result kind.
	Outcome Outcome `json:"outcome"`

	// ExitCode is the process exit status. Meaningful for pass and fail.
	ExitCode int `json:"exit_code,omitempty"`

	// IOLogPath references the captured command output, if any.
	IOLogPath string `json:"io_log_path,omitempty"`

	// Duration is how long the command ran. Meaningful for pass and fail.
	Duration time.Duration `json:"duration,omitempty"`

	// Comment explains a skip or not-supported outcome.
	Comment string `json:"comment,omitempty"`
}

// PassResult returns a pass result with its execution payload.
func PassResult(exitCode int, ioLogPath string, duration time.Duration) Result {
	return Result{Outcome: OutcomePass, ExitCode: exitCode, IOLogPath: ioLogPath, Duration: duration}
}

// FailResult returns a fail result with its execution payload.
func FailResult(exitCode int, ioLogPath string, duration time.Duration) Result {
	return Result{Outcome: OutcomeFail, ExitCode: exitCode, IOLogPath: ioLogPath, Duration: duration}
}

// SkipResult returns a skip result carrying the reason.
func SkipResult(comment string) Result {
	return Result{Outcome: OutcomeSkip, Comment: comment}
}

// NotSupportedResult returns a not-supported result carrying the reason.
func NotSupportedResult(comment string) Result {
	return Result{Outcome: OutcomeNotSupported, Comment: comment}
}

// InProgressResult returns an in-progress marker result.
func InProgressResult() Result {
	return Result{Outcome: OutcomeInProgress}
}

// Empty reports whether no result data has been recorded yet.
func (r Result) Empty() bool {
	return r.Outcome == OutcomeNone
}

// Final reports whether the result is a terminal outcome.
func (r Result) Final() bool {
	switch r.Outcome {
	case OutcomePass, OutcomeFail, OutcomeSkip, OutcomeNotSupported:
		return true
	}
	return false
}

func (r Result) String() string {
	if r.Empty() {
		return "none"
	}
	return string(r.Outcome)
}
