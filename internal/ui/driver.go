// Package ui drives web pages through a Driver and turns eventually
// consistent page state into pass/fail steps by polling with a timeout.
package ui

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by drivers when a selector matches nothing.
var ErrNotFound = errors.New("element not found")

// Driver is the browser collaborator. Reads are snapshots: a driver never
// waits for elements to appear, the Executor does that.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error
	// ClickNth clicks the n-th (0-based) element matching selector.
	ClickNth(ctx context.Context, selector string, n int) error
	// Type appends text to the value of the first matching input.
	Type(ctx context.Context, selector, text string) error
	// Trigger dispatches DOM events such as mouseover or mousedown, in order,
	// on the first matching element.
	Trigger(ctx context.Context, selector string, events ...string) error
	// Texts returns the text of every matching element, empty when none match.
	Texts(ctx context.Context, selector string) ([]string, error)
	Visible(ctx context.Context, selector string) (bool, error)
	// Location returns the current page URL.
	Location(ctx context.Context) (string, error)
}

// Evaluator is implemented by drivers that can run page scripts.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string, out any) error
}

// ByData selects elements by their data-test attribute.
func ByData(value string) string {
	return fmt.Sprintf("[data-test=%s]", value)
}

// ByAria selects elements by aria-label.
func ByAria(label string) string {
	return fmt.Sprintf("[aria-label='%s']", label)
}

// ByHref selects links by their exact href.
func ByHref(href string) string {
	return fmt.Sprintf(`a[href="%s"]`, href)
}

func notFound(selector string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, selector)
}

// ByID selects the element with the given id.
func ByID(id string) string {
	return "#" + id
}
