// Package scenario runs ordered, stateful test scenarios. Steps share one
// session.Context per run; the first failing step aborts the rest.
package scenario

import (
	"context"
	"time"

	"github.com/bouvet-sqad/flowcheck/internal/session"
)

// Step is one unit of a scenario: an HTTP call, a UI interaction or any
// other check that reads and writes the shared session.
type Step interface {
	Name() string
	Run(ctx context.Context, sess *session.Context) error
}

type funcStep struct {
	name string
	fn   func(ctx context.Context, sess *session.Context) error
}

func (s funcStep) Name() string { return s.name }

func (s funcStep) Run(ctx context.Context, sess *session.Context) error {
	return s.fn(ctx, sess)
}

// Func adapts a function into a Step.
func Func(name string, fn func(ctx context.Context, sess *session.Context) error) Step {
	return funcStep{name: name, fn: fn}
}

// Scenario is an ordered list of steps run against one fresh session.
type Scenario struct {
	Name        string
	Description string
	// Variables seed the session before the first step.
	Variables map[string]any
	Steps     []Step
	// Cleanup steps run after Steps whether they passed or not.
	Cleanup []Step
}

// Status is the outcome of one step.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// StepResult records the outcome of a single step.
type StepResult struct {
	Name     string
	Status   Status
	Kind     Kind
	Cleanup  bool
	Duration time.Duration
	Err      error
}

// Passed reports whether the step passed.
func (sr StepResult) Passed() bool {
	return sr.Status == StatusPassed
}

// Message returns the failure text, or "" when the step did not fail.
func (sr StepResult) Message() string {
	if sr.Err == nil {
		return ""
	}
	return sr.Err.Error()
}

// Result records the outcome of an entire scenario run.
type Result struct {
	ScenarioName string
	Description  string
	RunID        string
	Passed       bool
	Steps        []StepResult
	Duration     time.Duration
}

// Failed returns the failed step results, cleanup included.
func (r *Result) Failed() []StepResult {
	var out []StepResult
	for _, sr := range r.Steps {
		if sr.Status == StatusFailed {
			out = append(out, sr)
		}
	}
	return out
}

// Counts tallies step outcomes.
func (r *Result) Counts() (passed, failed, skipped int) {
	for _, sr := range r.Steps {
		switch sr.Status {
		case StatusPassed:
			passed++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return
}
