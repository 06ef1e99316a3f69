// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// TaskState is the lifecycle state of a RetrievalTask.
type TaskState string

const (
	TaskQueued     TaskState = "queued"
	TaskInProgress TaskState = "in_progress"
	TaskSucceeded  TaskState = "succeeded"
	TaskSkipped    TaskState = "skipped"
	TaskFailed     TaskState = "failed"
)

// Terminal reports whether no further work will be done for the state.
func (s TaskState) Terminal() bool {
	return s == TaskSucceeded || s == TaskSkipped || s == TaskFailed
}

// RetrievalTask is one unit of batch work. While InProgress it is owned by
// the worker executing it; otherwise by the orchestrator.
type RetrievalTask struct {
	// Input is the raw identifier string as supplied by the user.
	Input string `json:"input" yaml:"input"`

	// TitleHint is an optional title supplied alongside the identifier
	// (CSV and JSON batch inputs, fetch --title). It is the query when Input
	// is empty, and a second lookup when Input does not resolve.
	TitleHint string `json:"title_hint,omitempty" yaml:"title_hint,omitempty"`

	OutputDir  string    `json:"output_dir" yaml:"output_dir"`
	State      TaskState `json:"state" yaml:"state"`
	ResultPath string    `json:"result_path,omitempty" yaml:"result_path,omitempty"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	Attempts   int       `json:"attempts" yaml:"attempts"`
}

// Query returns the string to classify: the input, or the title hint when
// the input is empty.
func (t RetrievalTask) Query() string {
	if t.Input != "" {
		return t.Input
	}
	return t.TitleHint
}

// TaskFailure records the last error of a failed task for the summary.
type TaskFailure struct {
	Input string `json:"input" yaml:"input"`
	Error string `json:"error" yaml:"error"`
}

// BatchSummary aggregates the terminal states of a batch run.
type BatchSummary struct {
	Total     int           `json:"total" yaml:"total"`
	Succeeded int           `json:"succeeded" yaml:"succeeded"`
	Failed    int           `json:"failed" yaml:"failed"`
	Skipped   int           `json:"skipped" yaml:"skipped"`
	Failures  []TaskFailure `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// HasFailures reports whether any task failed.
func (s BatchSummary) HasFailures() bool {
	return s.Failed > 0
}

// Pending returns the number of tasks that did not reach a terminal state,
// which is non-zero only for interrupted runs.
func (s BatchSummary) Pending() int {
	return s.Total - s.Succeeded - s.Failed - s.Skipped
}
