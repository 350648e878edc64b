package ui

import (
	"context"
	"fmt"

	"github.com/bouvet-sqad/flowcheck/internal/scenario"
	"github.com/bouvet-sqad/flowcheck/internal/session"
)

// Action is the single interaction of a declarative UI step.
type Action func(ctx context.Context, e *Executor, sess *session.Context) error

// State is an expected page state after the action. States are polled.
type State func(ctx context.Context, e *Executor, sess *session.Context) error

// Interact builds a step that performs act and then waits for every state.
// A nil act only checks states.
func (e *Executor) Interact(name string, act Action, want ...State) scenario.Step {
	return scenario.Func(name, func(ctx context.Context, sess *session.Context) error {
		if act != nil {
			if err := act(ctx, e, sess); err != nil {
				return err
			}
		}
		for _, st := range want {
			if err := st(ctx, e, sess); err != nil {
				return err
			}
		}
		return nil
	})
}

// Navigate visits path; path may hold {{field}} templates.
func Navigate(path string) Action {
	return func(ctx context.Context, e *Executor, sess *session.Context) error {
		p, err := session.Expand(path, sess)
		if err != nil {
			return err
		}
		return e.Visit(ctx, p)
	}
}

// ClickOn clicks the first match of selector.
func ClickOn(selector string) Action {
	return func(ctx context.Context, e *Executor, sess *session.Context) error {
		return e.Click(ctx, selector)
	}
}

// ClickEach clicks the first match of selector n times.
func ClickEach(selector string, n int) Action {
	return func(ctx context.Context, e *Executor, sess *session.Context) error {
		for i := range n {
			if err := e.Click(ctx, selector); err != nil {
				return fmt.Errorf("click %d of %d: %w", i+1, n, err)
			}
		}
		return nil
	}
}

// TypeInto types text into selector; text may hold {{field}} templates.
func TypeInto(selector, text string) Action {
	return func(ctx context.Context, e *Executor, sess *session.Context) error {
		v, err := session.Expand(text, sess)
		if err != nil {
			return err
		}
		return e.Type(ctx, selector, v)
	}
}

// Fire dispatches events on selector.
func Fire(selector string, events ...string) Action {
	return func(ctx context.Context, e *Executor, sess *session.Context) error {
		return e.Trigger(ctx, selector, events...)
	}
}

// Sequence runs actions in order.
func Sequence(actions ...Action) Action {
	return func(ctx context.Context, e *Executor, sess *session.Context) error {
		for _, a := range actions {
			if err := a(ctx, e, sess); err != nil {
				return err
			}
		}
		return nil
	}
}

// TextIs expects the first match's text to equal want.
func TextIs(selector, want string) State {
	return func(ctx context.Context, e *Executor, sess *session.Context) error {
		v, err := session.Expand(want, sess)
		if err != nil {
			return err
		}
		return e.ExpectText(ctx, selector, v)
	}
}

// TextContains expects the first match's text to contain sub.
func TextContains(selector, sub string) State {
	return func(ctx context.Context, e *Executor, sess *session.Context) error {
		return e.ExpectTextContains(ctx, selector, sub)
	}
}

// CountIs expects exactly n matches.
func CountIs(selector string, n int) State {
	return func(ctx context.Context, e *Executor, sess *session.Context) error {
		return e.ExpectCount(ctx, selector, n)
	}
}

// CountAtLeast expects n or more matches.
func CountAtLeast(selector string, n int) State {
	return func(ctx context.Context, e *Executor, sess *session.Context) error {
		return e.ExpectMinCount(ctx, selector, n)
	}
}

// Shown expects the first match to be visible.
func Shown(selector string) State {
	return func(ctx context.Context, e *Executor, sess *session.Context) error {
		return e.ExpectVisible(ctx, selector)
	}
}

// PathIs expects the current URL path to equal path.
func PathIs(path string) State {
	return func(ctx context.Context, e *Executor, sess *session.Context) error {
		return e.ExpectPath(ctx, path)
	}
}

// URLHas expects the current URL to contain sub.
func URLHas(sub string) State {
	return func(ctx context.Context, e *Executor, sess *session.Context) error {
		return e.ExpectURLContains(ctx, sub)
	}
}
