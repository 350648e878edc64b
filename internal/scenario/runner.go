package scenario

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/internal/session"
)

// DefaultStepTimeout bounds a single step when the runner is not configured otherwise.
const DefaultStepTimeout = 30 * time.Second

// Observer receives step lifecycle events as a scenario runs.
type Observer interface {
	ScenarioStarted(name, runID string)
	StepFinished(scenario string, sr StepResult)
	ScenarioFinished(result *Result)
}

// Runner executes scenarios one step at a time.
type Runner struct {
	logger      *zap.Logger
	stepTimeout time.Duration
	observers   []Observer
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithStepTimeout bounds each step. Zero keeps the default.
func WithStepTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.stepTimeout = d
		}
	}
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		r.observers = append(r.observers, o)
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		logger:      zap.NewNop(),
		stepTimeout: DefaultStepTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes a single scenario against a fresh session and returns its result.
// Steps run strictly in order; the first failure marks the remaining steps
// skipped. Cleanup steps always run.
func (r *Runner) Run(ctx context.Context, s *Scenario) *Result {
	start := time.Now()
	sess := session.New()
	for k, v := range s.Variables {
		sess.Set(k, v)
	}

	result := &Result{
		ScenarioName: s.Name,
		Description:  s.Description,
		RunID:        sess.ID(),
		Passed:       true,
	}
	log := r.logger.With(zap.String("scenario", s.Name), zap.String("run_id", sess.ID()))
	log.Info("scenario started", zap.Int("steps", len(s.Steps)))
	for _, o := range r.observers {
		o.ScenarioStarted(s.Name, sess.ID())
	}

	aborted := false
	for _, step := range s.Steps {
		if aborted {
			r.record(result, StepResult{Name: step.Name(), Status: StatusSkipped})
			continue
		}
		if err := ctx.Err(); err != nil {
			aborted = true
			result.Passed = false
			r.record(result, StepResult{Name: step.Name(), Status: StatusSkipped, Err: err})
			continue
		}

		sr := r.runStep(ctx, log, step, sess)
		r.record(result, sr)
		if sr.Status == StatusFailed {
			result.Passed = false
			aborted = true
		}
	}

	// Cleanup must still reach the remote system after cancellation.
	cleanupCtx := context.WithoutCancel(ctx)
	for _, step := range s.Cleanup {
		sr := r.runStep(cleanupCtx, log, step, sess)
		sr.Cleanup = true
		r.record(result, sr)
		if sr.Status == StatusFailed {
			result.Passed = false
		}
	}

	result.Duration = time.Since(start)
	log.Info("scenario finished", zap.Bool("passed", result.Passed), zap.Duration("duration", result.Duration))
	for _, o := range r.observers {
		o.ScenarioFinished(result)
	}
	return result
}

// RunAll runs scenarios one after another. A failing scenario never stops
// the others; a cancelled context does.
func (r *Runner) RunAll(ctx context.Context, scenarios []*Scenario) []*Result {
	results := make([]*Result, 0, len(scenarios))
	for _, s := range scenarios {
		if ctx.Err() != nil {
			r.logger.Warn("run cancelled", zap.Int("remaining", len(scenarios)-len(results)))
			break
		}
		results = append(results, r.Run(ctx, s))
	}
	return results
}

func (r *Runner) runStep(ctx context.Context, log *zap.Logger, step Step, sess *session.Context) StepResult {
	stepCtx, cancel := context.WithTimeout(ctx, r.stepTimeout)
	defer cancel()

	start := time.Now()
	err := step.Run(stepCtx, sess)
	sr := StepResult{
		Name:     step.Name(),
		Status:   StatusPassed,
		Duration: time.Since(start),
	}
	if err == nil {
		log.Debug("step passed", zap.String("step", sr.Name), zap.Duration("duration", sr.Duration))
		return sr
	}

	sr.Status = StatusFailed
	sr.Err = err
	sr.Kind = KindOf(err)
	fields := []zap.Field{zap.String("step", sr.Name), zap.String("kind", string(sr.Kind)), zap.Error(err)}
	switch sr.Kind {
	case KindMissingContextValue:
		log.Error("broken step chain: step read a value no earlier step produced", fields...)
	case KindTransportError:
		log.Warn("environment failure", fields...)
	default:
		log.Warn("step failed", fields...)
	}
	return sr
}

func (r *Runner) record(result *Result, sr StepResult) {
	result.Steps = append(result.Steps, sr)
	for _, o := range r.observers {
		o.StepFinished(result.ScenarioName, sr)
	}
}
