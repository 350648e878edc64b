package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bouvet-sqad/flowcheck/internal/session"
)

// Kind classifies a step failure.
type Kind string

const (
	KindNone                    Kind = ""
	KindResponseAssertionFailed Kind = "RESPONSE_ASSERTION_FAILED"
	KindTransportError          Kind = "TRANSPORT_ERROR"
	KindUIAssertionTimeout      Kind = "UI_ASSERTION_TIMEOUT"
	KindMissingContextValue     Kind = "MISSING_CONTEXT_VALUE"
	KindRetryExhausted          Kind = "RETRY_EXHAUSTED"
	KindStepTimeout             Kind = "STEP_TIMEOUT"
	KindStepError               Kind = "STEP_ERROR"
)

// ResponseAssertionError reports an HTTP response whose status, header or
// body did not match the expectation.
type ResponseAssertionError struct {
	Step     string
	Expected any
	Actual   any
	Cause    error
}

func (e *ResponseAssertionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", KindResponseAssertionFailed, e.Step, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: expected %v, got %v", KindResponseAssertionFailed, e.Step, e.Expected, e.Actual)
}

func (e *ResponseAssertionError) Unwrap() error {
	return e.Cause
}

// NewStatusMismatch reports an unexpected status code.
func NewStatusMismatch(step string, want, got int) *ResponseAssertionError {
	return &ResponseAssertionError{Step: step, Expected: fmt.Sprintf("status %d", want), Actual: fmt.Sprintf("status %d", got)}
}

// TransportError reports a request that never produced a response:
// DNS failure, refused connection, timeout or a truncated body.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("[%s] %s %s: %v", KindTransportError, e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UITimeoutError reports a UI condition that never held within its timeout.
// Last is the final observed failure, if any.
type UITimeoutError struct {
	Description string
	Timeout     time.Duration
	Last        error
}

func (e *UITimeoutError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("[%s] %s: not satisfied within %v: %v", KindUIAssertionTimeout, e.Description, e.Timeout, e.Last)
	}
	return fmt.Sprintf("[%s] %s: not satisfied within %v", KindUIAssertionTimeout, e.Description, e.Timeout)
}

func (e *UITimeoutError) Unwrap() error {
	return e.Last
}

// RetryExhaustedError reports a bounded retry cycle that never succeeded.
type RetryExhaustedError struct {
	Description string
	Attempts    int
	Last        error
}

func (e *RetryExhaustedError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("[%s] %s: gave up after %d attempts: %v", KindRetryExhausted, e.Description, e.Attempts, e.Last)
	}
	return fmt.Sprintf("[%s] %s: gave up after %d attempts", KindRetryExhausted, e.Description, e.Attempts)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Last
}

// KindOf classifies err. A missing context value wins over any wrapper
// because it always means the scenario itself is broken.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	var (
		missing  *session.MissingValueError
		assertE  *ResponseAssertionError
		transptE *TransportError
		uiE      *UITimeoutError
		retryE   *RetryExhaustedError
	)
	switch {
	case errors.As(err, &missing):
		return KindMissingContextValue
	case errors.As(err, &uiE):
		return KindUIAssertionTimeout
	case errors.As(err, &retryE):
		return KindRetryExhausted
	case errors.As(err, &transptE):
		return KindTransportError
	case errors.As(err, &assertE):
		return KindResponseAssertionFailed
	case errors.Is(err, context.DeadlineExceeded):
		return KindStepTimeout
	default:
		return KindStepError
	}
}
