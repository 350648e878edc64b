package httpstep

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bouvet-sqad/flowcheck/internal/scenario"
	"github.com/bouvet-sqad/flowcheck/internal/session"
)

func jsonHandler(status int, body string) http.Handler {
	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")
	return httphelpers.HandlerWithResponse(status, headers, []byte(body))
}

func newExecutor(t *testing.T, srv *httptest.Server, opts ...Option) *Executor {
	t.Helper()
	opts = append([]Option{WithClient(srv.Client()), WithLogger(zaptest.NewLogger(t))}, opts...)
	e, err := New(srv.URL+"/notes/api", opts...)
	require.NoError(t, err)
	return e
}

func TestExecutor_NonSuccessStatusIsAssertable(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(401, `{"success":false,"status":401,"message":"Incorrect email address or password"}`))
	defer srv.Close()

	e := newExecutor(t, srv)
	resp, err := e.Run(context.Background(), "bad login", session.New(), Call{
		Request: Request{Method: "POST", URL: "users/login", Body: map[string]string{"email": "invalid.user@example.com", "password": "invalidpassword"}},
		Expect: Expect{
			Status: 401,
			Body: map[string]any{
				"$.success": false,
				"$.status":  401,
				"$.message": "Incorrect email address or password",
			},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 401, resp.Status)
}

func TestExecutor_StatusMismatch(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(200, `{"success":true}`))
	defer srv.Close()

	e := newExecutor(t, srv)
	_, err := e.Run(context.Background(), "bad login", session.New(), Call{
		Request: Request{Method: "POST", URL: "users/login"},
		Expect:  Expect{Status: 401},
	})

	require.Error(t, err)
	var ae *scenario.ResponseAssertionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "status 401", ae.Expected)
	assert.Equal(t, "status 200", ae.Actual)
}

func TestExecutor_BodyMismatchCarriesValues(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(200, `{"message":"Profile successful"}`))
	defer srv.Close()

	e := newExecutor(t, srv)
	_, err := e.Run(context.Background(), "profile", session.New(), Call{
		Request: Request{Method: "GET", URL: "users/profile"},
		Expect:  Expect{Status: 200, Body: map[string]any{"$.message": "Profile updated successful"}},
	})

	var ae *scenario.ResponseAssertionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "Profile updated successful", ae.Expected)
	assert.Equal(t, "Profile successful", ae.Actual)
	assert.Equal(t, scenario.KindResponseAssertionFailed, scenario.KindOf(err))
}

func TestExecutor_CapturesIntoSession(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(200, `{"data":{"token":"abc","id":"u1"}}`))
	defer srv.Close()

	sess := session.New()
	e := newExecutor(t, srv)
	_, err := e.Run(context.Background(), "login", sess, Call{
		Request: Request{Method: "POST", URL: "users/login"},
		Expect:  Expect{Status: 200},
		Capture: map[string]string{"authToken": "$.data.token"},
		Rules:   []Rule{{Field: "userId", From: FromPath("$.data.id")}},
	})
	require.NoError(t, err)

	tok, err := sess.String("authToken")
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
	id, err := sess.String("userId")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)
}

func TestExecutor_CaptureMissingPathFails(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(200, `{"data":{}}`))
	defer srv.Close()

	e := newExecutor(t, srv)
	_, err := e.Run(context.Background(), "login", session.New(), Call{
		Request: Request{Method: "POST", URL: "users/login"},
		Capture: map[string]string{"authToken": "$.data.token"},
	})
	assert.Equal(t, scenario.KindResponseAssertionFailed, scenario.KindOf(err))
}

func TestExecutor_TemplatesInURLHeadersAndBody(t *testing.T) {
	handler, requests := httphelpers.RecordingHandler(jsonHandler(200, `{"success":true}`))
	srv := httptest.NewServer(handler)
	defer srv.Close()

	sess := session.New()
	sess.Set("authToken", "tok-1")
	sess.Set("noteId", "n42")

	e := newExecutor(t, srv)
	_, err := e.Run(context.Background(), "update note", sess, Call{
		Request: Request{
			Method:  "PATCH",
			URL:     "notes/{{noteId}}",
			Headers: map[string]string{"x-auth-token": "{{authToken}}"},
			Body:    map[string]any{"completed": true, "title": "note {{noteId}}"},
		},
		Expect: Expect{Status: 200},
	})
	require.NoError(t, err)

	info := <-requests
	assert.Equal(t, "/notes/api/notes/n42", info.Request.URL.Path)
	assert.Equal(t, "tok-1", info.Request.Header.Get("x-auth-token"))
	assert.Equal(t, "application/json", info.Request.Header.Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(info.Body, &body))
	assert.Equal(t, true, body["completed"])
	assert.Equal(t, "note n42", body["title"])
}

func TestExecutor_BodyValuesAreEscapedAndTyped(t *testing.T) {
	handler, requests := httphelpers.RecordingHandler(jsonHandler(200, `{"success":true}`))
	srv := httptest.NewServer(handler)
	defer srv.Close()

	sess := session.New()
	sess.Set("name", `Tom "TT" Testman`)
	sess.Set("note", "line one\nback\\slash")
	sess.Set("completed", true)
	sess.Set("count", 2)

	e := newExecutor(t, srv)
	_, err := e.Run(context.Background(), "update profile", sess, Call{
		Request: Request{
			Method: "PATCH",
			URL:    "users/profile",
			Body: map[string]any{
				"name":      "{{name}}",
				"about":     "{{note}}",
				"title":     "hello {{name}}",
				"completed": "{{completed}}",
				"count":     "{{count}}",
			},
		},
		Expect: Expect{Status: 200},
	})
	require.NoError(t, err)

	info := <-requests
	var body map[string]any
	require.NoError(t, json.Unmarshal(info.Body, &body), string(info.Body))
	assert.Equal(t, `Tom "TT" Testman`, body["name"])
	assert.Equal(t, "line one\nback\\slash", body["about"])
	assert.Equal(t, `hello Tom "TT" Testman`, body["title"])
	assert.Equal(t, true, body["completed"])
	assert.Equal(t, float64(2), body["count"])
}

func TestExecutor_MissingContextValueSendsNothing(t *testing.T) {
	handler, requests := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(200))
	srv := httptest.NewServer(handler)
	defer srv.Close()

	e := newExecutor(t, srv)
	_, err := e.Run(context.Background(), "profile", session.New(), Call{
		Request: Request{Method: "GET", URL: "users/profile", Headers: map[string]string{"x-auth-token": "{{authToken}}"}},
		Expect:  Expect{Status: 200},
	})

	assert.Equal(t, scenario.KindMissingContextValue, scenario.KindOf(err))
	assert.Len(t, requests, 0)
}

func TestExecutor_TransportError(t *testing.T) {
	srv := httptest.NewServer(httphelpers.HandlerWithStatus(200))
	e := newExecutor(t, srv)
	srv.Close()

	_, err := e.Run(context.Background(), "health", session.New(), Call{
		Request: Request{Method: "GET", URL: "health-check"},
		Expect:  Expect{Status: 200},
	})

	var te *scenario.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "GET", te.Method)
	assert.Equal(t, scenario.KindTransportError, scenario.KindOf(err))
}

func TestExecutor_ChecksReadSession(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(200, `{"data":{"id":"u1"}}`))
	defer srv.Close()

	sess := session.New()
	e := newExecutor(t, srv)

	sess.Set("profileId", "u1")
	_, err := e.Run(context.Background(), "id unchanged", sess, Call{
		Request: Request{Method: "GET", URL: "users/profile"},
		Checks:  []Check{SameAs("$.data.id", "profileId")},
	})
	assert.NoError(t, err)

	sess.Set("profileId", "u2")
	_, err = e.Run(context.Background(), "id unchanged", sess, Call{
		Request: Request{Method: "GET", URL: "users/profile"},
		Checks:  []Check{SameAs("$.data.id", "profileId")},
	})
	assert.Equal(t, scenario.KindResponseAssertionFailed, scenario.KindOf(err))

	_, err = e.Run(context.Background(), "id unchanged", sess, Call{
		Request: Request{Method: "GET", URL: "users/profile"},
		Checks:  []Check{SameAs("$.data.id", "neverCaptured")},
	})
	assert.Equal(t, scenario.KindMissingContextValue, scenario.KindOf(err))
}

func TestExecutor_HeadersAndBodyContains(t *testing.T) {
	headers := make(http.Header)
	headers.Set("Content-Type", "application/json; charset=utf-8")
	srv := httptest.NewServer(httphelpers.HandlerWithResponse(200, headers, []byte(`{"status":"UP","message":"API is up!"}`)))
	defer srv.Close()

	e := newExecutor(t, srv)
	_, err := e.Run(context.Background(), "health", session.New(), Call{
		Request: Request{Method: "GET", URL: "health-check"},
		Expect: Expect{
			Status:       200,
			BodyContains: "API is up!",
			Headers:      map[string]string{"Content-Type": "application/json; charset=utf-8"},
		},
	})
	assert.NoError(t, err)

	_, err = e.Run(context.Background(), "health", session.New(), Call{
		Request: Request{Method: "GET", URL: "health-check"},
		Expect:  Expect{BodyContains: "DOWN"},
	})
	assert.Error(t, err)
}

func TestExecutor_StepWrapsCall(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(200, `{"status":"UP"}`))
	defer srv.Close()

	e := newExecutor(t, srv, WithRateLimit(100, 1))
	step := e.Step("health", Call{Request: Request{URL: "health-check"}, Expect: Expect{Status: 200}})

	assert.Equal(t, "health", step.Name())
	assert.NoError(t, step.Run(context.Background(), session.New()))
}

func TestNew_ResolvesRelativeAndAbsoluteURLs(t *testing.T) {
	e, err := New("https://practice.expandtesting.com/notes/api")
	require.NoError(t, err)

	got, err := e.resolve("users/login")
	require.NoError(t, err)
	assert.Equal(t, "https://practice.expandtesting.com/notes/api/users/login", got)

	got, err = e.resolve("https://example.com/x")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/x", got)
}
