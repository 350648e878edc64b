package ui

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/internal/scenario"
)

type retryError struct {
	reason error
}

func (r *retryError) Error() string { return "retry: " + r.reason.Error() }
func (r *retryError) Unwrap() error { return r.reason }

// Retry marks a cycle outcome as "not yet": RetryCycle runs the cycle again.
func Retry(reason error) error {
	return &retryError{reason: reason}
}

// Cycle is one navigation+check attempt. Returning nil ends the loop,
// Retry(err) asks for another attempt, any other error aborts.
type Cycle func(ctx context.Context, attempt int) error

// RetryCycle runs cycle until it succeeds, at most MaxAttempts times, and
// returns the number of attempts used.
func (e *Executor) RetryCycle(ctx context.Context, description string, cycle Cycle) (int, error) {
	var last error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		err := cycle(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		var re *retryError
		if !errors.As(err, &re) {
			return attempt, err
		}
		last = re.reason
		e.logger.Debug("retrying", zap.String("what", description), zap.Int("attempt", attempt), zap.Error(last))
	}
	return e.maxAttempts, &scenario.RetryExhaustedError{Description: description, Attempts: e.maxAttempts, Last: last}
}
