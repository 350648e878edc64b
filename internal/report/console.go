// Package report prints scenario progress and results.
package report

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/bouvet-sqad/flowcheck/internal/scenario"
)

var (
	passLabel = color.New(color.FgGreen, color.Bold)
	failLabel = color.New(color.FgRed, color.Bold)
	skipLabel = color.New(color.FgYellow)
	dim       = color.New(color.Faint)
)

// Console is a scenario.Observer that writes a line per step.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	results []*scenario.Result
}

// NewConsole returns a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) ScenarioStarted(name, runID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "\n--- %s ---\n", name)
	dim.Fprintf(c.w, "    run %s\n", runID)
	fmt.Fprintln(c.w)
}

func (c *Console) StepFinished(_ string, sr scenario.StepResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := sr.Name
	if sr.Cleanup {
		name = "cleanup: " + name
	}
	d := sr.Duration.Round(time.Millisecond)
	switch sr.Status {
	case scenario.StatusPassed:
		passLabel.Fprint(c.w, "  PASS  ")
		fmt.Fprintf(c.w, "%-50s (%s)\n", name, d)
	case scenario.StatusFailed:
		failLabel.Fprint(c.w, "  FAIL  ")
		fmt.Fprintf(c.w, "%-50s (%s)\n", name, d)
		fmt.Fprintf(c.w, "        [%s] %s\n", sr.Kind, sr.Message())
	case scenario.StatusSkipped:
		skipLabel.Fprint(c.w, "  SKIP  ")
		fmt.Fprintf(c.w, "%s\n", name)
	}
}

func (c *Console) ScenarioFinished(result *scenario.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, result)
	fmt.Fprintf(c.w, "\n  Scenario: %s (%s)\n", label(result.Passed), result.Duration.Round(time.Millisecond))
}

// Summary prints totals over every finished scenario and reports whether
// all of them passed.
func (c *Console) Summary() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	var passed, failed, skipped, scenariosFailed int
	for _, r := range c.results {
		p, f, s := r.Counts()
		passed += p
		failed += f
		skipped += s
		if !r.Passed {
			scenariosFailed++
		}
	}

	fmt.Fprintln(c.w)
	fmt.Fprintf(c.w, "Results: %d passed, %d failed, %d skipped, %d total steps\n",
		passed, failed, skipped, passed+failed+skipped)
	fmt.Fprintf(c.w, "Scenarios: %d run, %d failed\n", len(c.results), scenariosFailed)
	return scenariosFailed == 0
}

func label(passed bool) string {
	if passed {
		return passLabel.Sprint("PASS")
	}
	return failLabel.Sprint("FAIL")
}
