package ui

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/internal/expect"
	"github.com/bouvet-sqad/flowcheck/internal/scenario"
	"github.com/bouvet-sqad/flowcheck/internal/session"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
	DefaultMaxAttempts  = 10
)

// Executor runs UI actions and eventually-consistent assertions on a Driver.
type Executor struct {
	driver      Driver
	baseURL     *url.URL
	timeout     time.Duration
	interval    time.Duration
	maxAttempts int
	logger      *zap.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithBaseURL resolves relative Visit paths against base.
func WithBaseURL(base string) Option {
	return func(e *Executor) {
		if u, err := url.Parse(base); err == nil && base != "" {
			e.baseURL = u
		}
	}
}

// WithTimeout bounds every wait.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithPollInterval sets the delay between polls.
func WithPollInterval(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithMaxAttempts bounds RetryCycle.
func WithMaxAttempts(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithLogger sets the executor's logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExecutor creates an Executor for d.
func NewExecutor(d Driver, opts ...Option) *Executor {
	e := &Executor{
		driver:      d,
		timeout:     DefaultTimeout,
		interval:    DefaultPollInterval,
		maxAttempts: DefaultMaxAttempts,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Driver returns the underlying driver.
func (e *Executor) Driver() Driver {
	return e.driver
}

// Timeout returns the wait bound.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// WithBase returns a copy of e that resolves paths against another site.
func (e *Executor) WithBase(base string) *Executor {
	cp := *e
	WithBaseURL(base)(&cp)
	return &cp
}

// Step wraps free-form UI logic as a scenario step.
func (e *Executor) Step(name string, fn func(ctx context.Context, ui *Executor, sess *session.Context) error) scenario.Step {
	return scenario.Func(name, func(ctx context.Context, sess *session.Context) error {
		return fn(ctx, e, sess)
	})
}

// Eventually polls check until it returns nil or the timeout elapses. The
// returned *scenario.UITimeoutError carries the last failure observed.
// A missing context value is returned at once since polling cannot fix it.
func (e *Executor) Eventually(ctx context.Context, description string, check func(ctx context.Context) error) error {
	pollCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	var last error
	for {
		err := check(pollCtx)
		if err == nil {
			return nil
		}
		if scenario.KindOf(err) == scenario.KindMissingContextValue {
			return err
		}
		if pollCtx.Err() == nil || last == nil {
			last = err
		}

		select {
		case <-pollCtx.Done():
			e.logger.Debug("ui wait timed out", zap.String("what", description), zap.Error(last))
			return &scenario.UITimeoutError{Description: description, Timeout: e.timeout, Last: last}
		case <-ticker.C:
		}
	}
}

// Visit navigates to path, resolved against the base URL.
func (e *Executor) Visit(ctx context.Context, path string) error {
	target, err := e.resolve(path)
	if err != nil {
		return err
	}
	e.logger.Debug("visit", zap.String("url", target))
	if err := e.driver.Navigate(ctx, target); err != nil {
		return fmt.Errorf("visit %s: %w", target, err)
	}
	return nil
}

func (e *Executor) resolve(path string) (string, error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parsing path %q: %w", path, err)
	}
	if u.IsAbs() || e.baseURL == nil {
		return u.String(), nil
	}
	return e.baseURL.ResolveReference(u).String(), nil
}

// Click waits for selector to match and clicks the first match.
func (e *Executor) Click(ctx context.Context, selector string) error {
	return e.Eventually(ctx, "click "+selector, func(ctx context.Context) error {
		return e.driver.Click(ctx, selector)
	})
}

// ClickNth waits for at least n+1 matches and clicks the n-th.
func (e *Executor) ClickNth(ctx context.Context, selector string, n int) error {
	return e.Eventually(ctx, fmt.Sprintf("click %s #%d", selector, n), func(ctx context.Context) error {
		return e.driver.ClickNth(ctx, selector, n)
	})
}

// Type waits for selector and types text into it.
func (e *Executor) Type(ctx context.Context, selector, text string) error {
	return e.Eventually(ctx, "type into "+selector, func(ctx context.Context) error {
		return e.driver.Type(ctx, selector, text)
	})
}

// Trigger waits for selector and fires events on it.
func (e *Executor) Trigger(ctx context.Context, selector string, events ...string) error {
	return e.Eventually(ctx, fmt.Sprintf("trigger %v on %s", events, selector), func(ctx context.Context) error {
		return e.driver.Trigger(ctx, selector, events...)
	})
}

// ReadTexts waits until selector matches and returns every match's text.
func (e *Executor) ReadTexts(ctx context.Context, selector string) ([]string, error) {
	var out []string
	err := e.Eventually(ctx, "read "+selector, func(ctx context.Context) error {
		texts, err := e.driver.Texts(ctx, selector)
		if err != nil {
			return err
		}
		if len(texts) == 0 {
			return notFound(selector)
		}
		out = texts
		return nil
	})
	return out, err
}

// ReadText waits until selector matches and returns the first match's
// trimmed text.
func (e *Executor) ReadText(ctx context.Context, selector string) (string, error) {
	texts, err := e.ReadTexts(ctx, selector)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(texts[0]), nil
}

// ReadCount returns how many elements match selector right now.
func (e *Executor) ReadCount(ctx context.Context, selector string) (int, error) {
	texts, err := e.driver.Texts(ctx, selector)
	if err != nil {
		return 0, err
	}
	return len(texts), nil
}

// ExpectTextFunc waits until the first match's trimmed text satisfies fn.
func (e *Executor) ExpectTextFunc(ctx context.Context, selector, description string, fn func(text string) error) error {
	return e.Eventually(ctx, description, func(ctx context.Context) error {
		texts, err := e.driver.Texts(ctx, selector)
		if err != nil {
			return err
		}
		if len(texts) == 0 {
			return notFound(selector)
		}
		return fn(strings.TrimSpace(texts[0]))
	})
}

// ExpectText waits until the first match's text equals want.
func (e *Executor) ExpectText(ctx context.Context, selector, want string) error {
	return e.ExpectTextFunc(ctx, selector, fmt.Sprintf("%s text is %q", selector, want), func(text string) error {
		return expect.Equal(selector, want, text)
	})
}

// ExpectTextContains waits until the first match's text contains sub.
func (e *Executor) ExpectTextContains(ctx context.Context, selector, sub string) error {
	return e.ExpectTextFunc(ctx, selector, fmt.Sprintf("%s text contains %q", selector, sub), func(text string) error {
		return expect.Contains(selector, sub, text)
	})
}

// ExpectTextNot waits until selector matches with a text other than notWant.
func (e *Executor) ExpectTextNot(ctx context.Context, selector, notWant string) error {
	return e.ExpectTextFunc(ctx, selector, fmt.Sprintf("%s text is not %q", selector, notWant), func(text string) error {
		return expect.NotEqual(selector, notWant, text)
	})
}

// ExpectCount waits until exactly n elements match.
func (e *Executor) ExpectCount(ctx context.Context, selector string, n int) error {
	return e.Eventually(ctx, fmt.Sprintf("%s matches %d elements", selector, n), func(ctx context.Context) error {
		got, err := e.ReadCount(ctx, selector)
		if err != nil {
			return err
		}
		return expect.Equal(selector+" count", n, got)
	})
}

// ExpectMinCount waits until at least n elements match.
func (e *Executor) ExpectMinCount(ctx context.Context, selector string, n int) error {
	return e.Eventually(ctx, fmt.Sprintf("%s matches at least %d elements", selector, n), func(ctx context.Context) error {
		got, err := e.ReadCount(ctx, selector)
		if err != nil {
			return err
		}
		return expect.Compare(selector+" count", "gte", got, n)
	})
}

// ExpectVisible waits until the first match is visible.
func (e *Executor) ExpectVisible(ctx context.Context, selector string) error {
	return e.Eventually(ctx, selector+" is visible", func(ctx context.Context) error {
		ok, err := e.driver.Visible(ctx, selector)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s is not visible", selector)
		}
		return nil
	})
}

// ExpectPath waits until the current URL's path equals path.
func (e *Executor) ExpectPath(ctx context.Context, path string) error {
	return e.Eventually(ctx, "location path is "+path, func(ctx context.Context) error {
		loc, err := e.driver.Location(ctx)
		if err != nil {
			return err
		}
		u, err := url.Parse(loc)
		if err != nil {
			return err
		}
		got := u.Path
		if got == "" {
			got = "/"
		}
		return expect.Equal("location path", path, got)
	})
}

// ExpectURLContains waits until the current URL contains sub.
func (e *Executor) ExpectURLContains(ctx context.Context, sub string) error {
	return e.Eventually(ctx, "location contains "+sub, func(ctx context.Context) error {
		loc, err := e.driver.Location(ctx)
		if err != nil {
			return err
		}
		return expect.Contains("location", sub, loc)
	})
}
