package httpstep

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bouvet-sqad/flowcheck/internal/expect"
	"github.com/bouvet-sqad/flowcheck/internal/scenario"
	"github.com/bouvet-sqad/flowcheck/internal/session"
)

// DefaultTimeout bounds a single request when the executor has no client.
const DefaultTimeout = 10 * time.Second

// Executor issues Calls against a base URL with one reused HTTP client.
type Executor struct {
	baseURL *url.URL
	client  *http.Client
	limiter *rate.Limiter
	headers map[string]string
	logger  *zap.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithClient replaces the default HTTP client.
func WithClient(c *http.Client) Option {
	return func(e *Executor) {
		if c != nil {
			e.client = c
		}
	}
}

// WithRateLimit limits outgoing requests to rps per second with the given
// burst. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(e *Executor) {
		if rps <= 0 {
			e.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithDefaultHeader sends a header on every request unless the call sets it.
func WithDefaultHeader(key, value string) Option {
	return func(e *Executor) {
		e.headers[key] = value
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

// New creates an Executor. Relative request URLs resolve against baseURL.
func New(baseURL string, opts ...Option) (*Executor, error) {
	e := &Executor{
		client:  &http.Client{Timeout: DefaultTimeout},
		headers: map[string]string{"Accept": "application/json"},
		logger:  zap.NewNop(),
	}
	if baseURL != "" {
		// A trailing slash keeps the last path segment when resolving "users/login".
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing base url %q: %w", baseURL, err)
		}
		e.baseURL = u
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// BaseURL returns the base URL requests resolve against.
func (e *Executor) BaseURL() string {
	if e.baseURL == nil {
		return ""
	}
	return e.baseURL.String()
}

// Step wraps a Call as a scenario step.
func (e *Executor) Step(name string, call Call) scenario.Step {
	return scenario.Func(name, func(ctx context.Context, sess *session.Context) error {
		_, err := e.Run(ctx, name, sess, call)
		return err
	})
}

// Run performs call and applies its expectations and extractions. The
// response is returned even when an expectation fails.
func (e *Executor) Run(ctx context.Context, name string, sess *session.Context, call Call) (*Response, error) {
	resp, err := e.Do(ctx, sess, call.Request)
	if err != nil {
		return nil, err
	}
	if err := e.verify(name, sess, call, resp); err != nil {
		return resp, err
	}
	if err := e.extract(name, sess, call, resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// Do sends the request and reads the full response. Any status code is a
// valid outcome; only transport failures are errors.
func (e *Executor) Do(ctx context.Context, sess *session.Context, r Request) (*Response, error) {
	req, err := e.build(ctx, sess, r)
	if err != nil {
		return nil, err
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, &scenario.TransportError{Method: req.Method, URL: req.URL.String(), Err: err}
		}
	}

	start := time.Now()
	httpResp, err := e.client.Do(req)
	if err != nil {
		return nil, &scenario.TransportError{Method: req.Method, URL: req.URL.String(), Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &scenario.TransportError{Method: req.Method, URL: req.URL.String(), Err: fmt.Errorf("reading response body: %w", err)}
	}

	e.logger.Debug("http exchange",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status", httpResp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)),
	)

	return &Response{Status: httpResp.StatusCode, Headers: httpResp.Header, Body: body}, nil
}

func (e *Executor) build(ctx context.Context, sess *session.Context, r Request) (*http.Request, error) {
	rawURL, err := session.Expand(r.URL, sess)
	if err != nil {
		return nil, fmt.Errorf("url: %w", err)
	}
	target, err := e.resolve(rawURL)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if r.Body != nil {
		s, err := buildBody(r.Body, sess)
		if err != nil {
			return nil, fmt.Errorf("body: %w", err)
		}
		body = strings.NewReader(s)
	}

	method := strings.ToUpper(r.Method)
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	for k, v := range e.headers {
		req.Header.Set(k, v)
	}
	headers, err := session.ExpandAll(r.Headers, sess)
	if err != nil {
		return nil, fmt.Errorf("header %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if r.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (e *Executor) resolve(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing url %q: %w", raw, err)
	}
	if u.IsAbs() || e.baseURL == nil {
		return u.String(), nil
	}
	return e.baseURL.ResolveReference(u).String(), nil
}

// buildBody renders a request body. Strings are expanded as-is. Anything
// else is decoded to plain JSON values, expanded leaf by leaf and encoded
// again, so substituted values are always escaped.
func buildBody(body any, sess *session.Context) (string, error) {
	if s, ok := body.(string); ok {
		return session.Expand(s, sess)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling body: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return "", fmt.Errorf("decoding body: %w", err)
	}
	tree, err = session.ExpandValue(tree, sess)
	if err != nil {
		return "", err
	}
	if data, err = json.Marshal(tree); err != nil {
		return "", fmt.Errorf("marshaling body: %w", err)
	}
	return string(data), nil
}

func (e *Executor) verify(name string, sess *session.Context, call Call, resp *Response) error {
	want := call.Expect
	if want.Status != 0 && resp.Status != want.Status {
		err := scenario.NewStatusMismatch(name, want.Status, resp.Status)
		err.Cause = fmt.Errorf("expected status %d, got %d: %s", want.Status, resp.Status, snippet(resp.Body))
		return err
	}

	if want.BodyContains != "" && !strings.Contains(string(resp.Body), want.BodyContains) {
		return &scenario.ResponseAssertionError{Step: name, Expected: fmt.Sprintf("body containing %q", want.BodyContains), Actual: snippet(resp.Body)}
	}

	for key, expected := range want.Headers {
		if actual := resp.Headers.Get(key); actual != expected {
			return &scenario.ResponseAssertionError{Step: name, Expected: fmt.Sprintf("header %s=%q", key, expected), Actual: fmt.Sprintf("%q", actual)}
		}
	}

	if len(want.Body) > 0 {
		expanded := make(map[string]any, len(want.Body))
		for path, expected := range want.Body {
			if s, ok := expected.(string); ok {
				v, err := session.Expand(s, sess)
				if err != nil {
					return fmt.Errorf("assertion %q: %w", path, err)
				}
				expected = v
			}
			expanded[path] = expected
		}
		doc, err := resp.JSON()
		if err != nil {
			return &scenario.ResponseAssertionError{Step: name, Expected: "JSON body", Actual: snippet(resp.Body), Cause: err}
		}
		if err := expect.EvaluateDoc(doc, expanded); err != nil {
			return assertionError(name, err)
		}
	}

	for _, check := range call.Checks {
		if err := check(resp, sess); err != nil {
			return assertionError(name, err)
		}
	}
	return nil
}

func (e *Executor) extract(name string, sess *session.Context, call Call, resp *Response) error {
	for field, path := range call.Capture {
		v, ok, err := resp.Path(path)
		if err != nil {
			return assertionError(name, fmt.Errorf("capture %q: %w", field, err))
		}
		if !ok {
			return assertionError(name, &expect.Mismatch{Path: path, Op: "exists", Expected: true, Actual: "no match", Detail: fmt.Sprintf("capture %q: no match", field)})
		}
		sess.Set(field, v)
	}
	for _, rule := range call.Rules {
		v, err := rule.From(resp)
		if err != nil {
			return assertionError(name, fmt.Errorf("extract %q: %w", rule.Field, err))
		}
		sess.Set(rule.Field, v)
	}
	return nil
}

// assertionError wraps err as a response assertion failure unless it is a
// missing context value, which must keep its own classification.
func assertionError(step string, err error) error {
	if scenario.KindOf(err) == scenario.KindMissingContextValue {
		return err
	}
	ae := &scenario.ResponseAssertionError{Step: step, Cause: err}
	var m *expect.Mismatch
	if errors.As(err, &m) {
		ae.Expected = m.Expected
		ae.Actual = m.Actual
	}
	return ae
}

func snippet(body []byte) string {
	const limit = 300
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
