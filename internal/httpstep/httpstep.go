// Package httpstep issues HTTP requests built from session values, asserts
// on the responses and copies values from them back into the session.
package httpstep

import (
	"net/http"

	"github.com/bouvet-sqad/flowcheck/internal/expect"
	"github.com/bouvet-sqad/flowcheck/internal/session"
)

// Request defines the HTTP request of a step. URL, header values and
// string bodies may contain {{field}} templates.
type Request struct {
	Method  string            `json:"method" yaml:"method"`
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body    any               `json:"body,omitempty" yaml:"body,omitempty"`
}

// Expect defines the expected response. A zero Status is not checked.
// Body maps JSONPath expressions to literals or operator maps.
type Expect struct {
	Status       int               `json:"status,omitempty" yaml:"status,omitempty"`
	BodyContains string            `json:"body_contains,omitempty" yaml:"body_contains,omitempty"`
	Headers      map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body         map[string]any    `json:"body,omitempty" yaml:"body,omitempty"`
}

// Rule is a custom extraction rule: the returned value is stored under Field.
type Rule struct {
	Field string
	From  func(resp *Response) (any, error)
}

// Check is a custom assertion that may read earlier session values.
type Check func(resp *Response, sess *session.Context) error

// Call is one request with its expectations and extractions.
type Call struct {
	Request Request
	Expect  Expect
	// Capture maps a session field to a JSONPath in the response body.
	Capture map[string]string
	Rules   []Rule
	Checks  []Check
}

// Response is a fully read HTTP response.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte

	doc    any
	parsed bool
	err    error
}

// JSON decodes the body once and caches the result.
func (r *Response) JSON() (any, error) {
	if !r.parsed {
		r.doc, r.err = expect.ParseJSON(r.Body)
		r.parsed = true
	}
	return r.doc, r.err
}

// Path returns the first value at a JSONPath in the body.
func (r *Response) Path(path string) (any, bool, error) {
	doc, err := r.JSON()
	if err != nil {
		return nil, false, err
	}
	return expect.First(doc, path)
}

// FromPath is a Rule source reading a JSONPath.
func FromPath(path string) func(resp *Response) (any, error) {
	return func(resp *Response) (any, error) {
		v, ok, err := resp.Path(path)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &expect.Mismatch{Path: path, Op: "exists", Expected: true, Actual: "no match"}
		}
		return v, nil
	}
}

// SameAs returns a Check that the value at path equals the session field
// captured earlier, e.g. a profile id that must not change after an update.
func SameAs(path, field string) Check {
	return func(resp *Response, sess *session.Context) error {
		want, err := sess.Get(field)
		if err != nil {
			return err
		}
		got, ok, err := resp.Path(path)
		if err != nil {
			return err
		}
		if !ok {
			return &expect.Mismatch{Path: path, Op: "==", Expected: want, Actual: "no match"}
		}
		return expect.Equal(path, want, got)
	}
}

