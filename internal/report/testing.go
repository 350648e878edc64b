package report

import (
	"testing"

	"github.com/bouvet-sqad/flowcheck/internal/scenario"
)

// Testing logs scenario progress through t so `go test -v` shows each step.
type Testing struct {
	t testing.TB
}

// NewTesting returns an observer bound to t.
func NewTesting(t testing.TB) *Testing {
	return &Testing{t: t}
}

func (o *Testing) ScenarioStarted(name, runID string) {
	o.t.Helper()
	o.t.Logf("scenario %q (run %s)", name, runID)
}

func (o *Testing) StepFinished(_ string, sr scenario.StepResult) {
	o.t.Helper()
	if sr.Status == scenario.StatusFailed {
		o.t.Logf("  %s %s: [%s] %s", sr.Status, sr.Name, sr.Kind, sr.Message())
		return
	}
	o.t.Logf("  %s %s", sr.Status, sr.Name)
}

func (o *Testing) ScenarioFinished(result *scenario.Result) {
	o.t.Helper()
	o.t.Logf("scenario %q passed=%v in %s", result.ScenarioName, result.Passed, result.Duration)
}
