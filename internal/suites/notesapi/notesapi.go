// Package notesapi holds the Notes API scenarios: health, authentication
// failures and the chained account lifecycle that registers a user, works
// with the profile and a note, and deletes the account again.
package notesapi

import (
	"context"
	"fmt"
	"maps"
	"net/http"

	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/internal/fixture"
	"github.com/bouvet-sqad/flowcheck/internal/httpstep"
	"github.com/bouvet-sqad/flowcheck/internal/scenario"
	"github.com/bouvet-sqad/flowcheck/internal/session"
	"github.com/bouvet-sqad/flowcheck/internal/ui"
)

// TokenHeader carries the session token on authenticated requests.
const TokenHeader = "x-auth-token"

// Account details used by AccountLifecycle.
const (
	Password       = "validpassword"
	UserName       = "Tom Testman"
	UpdatedName    = "Tom Testman Updated"
	UpdatedPhone   = "0123456789"
	UpdatedCompany = "BOUVET ASA"
)

// Response messages asserted verbatim.
const (
	MsgRegistered     = "User account created successfully"
	MsgLoggedIn       = "Login successful"
	MsgBadLogin       = "Incorrect email address or password"
	MsgProfile        = "Profile successful"
	MsgProfileUpdated = "Profile updated successful"
	MsgNoteCreated    = "Note successfully created"
	MsgNoteUpdated    = "Note successfully Updated"
	MsgNoteDeleted    = "Note successfully deleted"
	MsgAccountDeleted = "Account successfully deleted"
)

// Session fields written by AccountLifecycle.
const (
	fieldEmail          = "email"
	fieldToken          = "authToken"
	fieldProfileID      = "profileId"
	fieldNoteID         = "noteId"
	fieldAccountDeleted = "accountDeleted"
)

// Suite builds the Notes API scenarios on one HTTP executor whose base URL
// is the API root (".../notes/api").
type Suite struct {
	api     *httpstep.Executor
	swagger *ui.Executor
	logger  *zap.Logger
}

// Option configures a Suite.
type Option func(*Suite)

// WithSwaggerUI adds the Swagger UI authorisation step to AccountLifecycle.
// The executor's base URL must be the API root.
func WithSwaggerUI(e *ui.Executor) Option {
	return func(s *Suite) { s.swagger = e }
}

// WithLogger sets the suite's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Suite) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Suite.
func New(api *httpstep.Executor, opts ...Option) *Suite {
	s := &Suite{api: api, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scenarios returns every Notes API scenario in run order.
func (s *Suite) Scenarios() []*scenario.Scenario {
	return []*scenario.Scenario{
		s.HealthCheck(),
		s.InvalidLogin(),
		s.Unauthorized(),
		s.AccountLifecycle(),
	}
}

// envelope asserts the {success, status, message} members of a response.
func envelope(status int, message string) map[string]any {
	body := map[string]any{
		"$.success": status < http.StatusBadRequest,
		"$.status":  status,
	}
	if message != "" {
		body["$.message"] = message
	}
	return body
}

func authHeaders() map[string]string {
	return map[string]string{TokenHeader: "{{" + fieldToken + "}}"}
}

// HealthCheck verifies the API reports itself up.
func (s *Suite) HealthCheck() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "notes api health check",
		Description: "GET /health-check answers 200 with success true",
		Steps: []scenario.Step{
			s.api.Step("health check", httpstep.Call{
				Request: httpstep.Request{Method: http.MethodGet, URL: "health-check"},
				Expect:  httpstep.Expect{Status: http.StatusOK, Body: envelope(http.StatusOK, "")},
			}),
		},
	}
}

// InvalidLogin verifies unknown credentials get exactly a 401 envelope.
func (s *Suite) InvalidLogin() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "notes api invalid login",
		Description: "unknown credentials are rejected with 401 and the fixed message",
		Steps: []scenario.Step{
			s.api.Step("login with unknown credentials", httpstep.Call{
				Request: httpstep.Request{
					Method: http.MethodPost,
					URL:    "users/login",
					Body:   map[string]string{"email": "invalid.user@example.com", "password": "invalidpassword"},
				},
				Expect: httpstep.Expect{Status: http.StatusUnauthorized, Body: envelope(http.StatusUnauthorized, MsgBadLogin)},
			}),
		},
	}
}

// Unauthorized verifies the profile is closed without a valid token.
func (s *Suite) Unauthorized() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "notes api unauthorized access",
		Description: "the profile endpoint rejects missing and bogus tokens",
		Steps: []scenario.Step{
			s.api.Step("profile without token", httpstep.Call{
				Request: httpstep.Request{Method: http.MethodGet, URL: "users/profile"},
				Expect:  httpstep.Expect{Status: http.StatusUnauthorized, Body: envelope(http.StatusUnauthorized, "")},
			}),
			s.api.Step("profile with bogus token", httpstep.Call{
				Request: httpstep.Request{
					Method:  http.MethodGet,
					URL:     "users/profile",
					Headers: map[string]string{TokenHeader: "not-a-real-token"},
				},
				Expect: httpstep.Expect{Status: http.StatusUnauthorized, Body: envelope(http.StatusUnauthorized, "")},
			}),
		},
	}
}

// AccountLifecycle registers a fresh user and walks the profile and a note
// through their lifecycle in one session. Cleanup deletes the account when
// the run stopped between login and the final delete.
func (s *Suite) AccountLifecycle() *scenario.Scenario {
	steps := []scenario.Step{
		scenario.Func("generate account", func(ctx context.Context, sess *session.Context) error {
			sess.Set(fieldEmail, fixture.RandomEmail("valid.testuser", "gmail.com"))
			return nil
		}),
		s.api.Step("register", httpstep.Call{
			Request: httpstep.Request{
				Method: http.MethodPost,
				URL:    "users/register",
				Body:   map[string]string{"name": "{{name}}", "email": "{{email}}", "password": "{{password}}"},
			},
			Expect: httpstep.Expect{Status: http.StatusCreated, Body: with(envelope(http.StatusCreated, MsgRegistered), map[string]any{
				"$.data.email": "{{email}}",
				"$.data.name":  "{{name}}",
			})},
		}),
		s.api.Step("login", httpstep.Call{
			Request: httpstep.Request{
				Method: http.MethodPost,
				URL:    "users/login",
				Body:   map[string]string{"email": "{{email}}", "password": "{{password}}"},
			},
			Expect:  httpstep.Expect{Status: http.StatusOK, Body: envelope(http.StatusOK, MsgLoggedIn)},
			Capture: map[string]string{fieldToken: "$.data.token"},
		}),
	}

	if s.swagger != nil {
		steps = append(steps, s.swagger.Step("authorise swagger ui", authoriseSwagger))
	}

	steps = append(steps,
		s.api.Step("read profile", httpstep.Call{
			Request: httpstep.Request{Method: http.MethodGet, URL: "users/profile", Headers: authHeaders()},
			Expect: httpstep.Expect{Status: http.StatusOK, Body: with(envelope(http.StatusOK, MsgProfile), map[string]any{
				"$.data.email":   "{{email}}",
				"$.data.phone":   map[string]any{"exists": false},
				"$.data.company": map[string]any{"exists": false},
			})},
			Capture: map[string]string{fieldProfileID: "$.data.id"},
		}),
		s.api.Step("update profile", httpstep.Call{
			Request: httpstep.Request{
				Method:  http.MethodPatch,
				URL:     "users/profile",
				Headers: authHeaders(),
				Body:    map[string]string{"name": UpdatedName, "phone": UpdatedPhone, "company": UpdatedCompany},
			},
			Expect: httpstep.Expect{Status: http.StatusOK, Body: with(envelope(http.StatusOK, MsgProfileUpdated), map[string]any{
				"$.data.name":    UpdatedName,
				"$.data.phone":   UpdatedPhone,
				"$.data.company": UpdatedCompany,
			})},
		}),
		s.api.Step("re-read profile", httpstep.Call{
			Request: httpstep.Request{Method: http.MethodGet, URL: "users/profile", Headers: authHeaders()},
			Expect: httpstep.Expect{Status: http.StatusOK, Body: with(envelope(http.StatusOK, MsgProfile), map[string]any{
				"$.data.name":    UpdatedName,
				"$.data.phone":   UpdatedPhone,
				"$.data.company": UpdatedCompany,
			})},
			Checks: []httpstep.Check{httpstep.SameAs("$.data.id", fieldProfileID)},
		}),
		s.api.Step("create note", httpstep.Call{
			Request: httpstep.Request{
				Method:  http.MethodPost,
				URL:     "notes",
				Headers: authHeaders(),
				Body:    map[string]string{"title": "{{noteTitle}}", "description": "{{noteDescription}}", "category": "{{noteCategory}}"},
			},
			Expect: httpstep.Expect{Status: http.StatusOK, Body: with(envelope(http.StatusOK, MsgNoteCreated), map[string]any{
				"$.data.title":       "{{noteTitle}}",
				"$.data.description": "{{noteDescription}}",
				"$.data.category":    "{{noteCategory}}",
			})},
			Capture: map[string]string{fieldNoteID: "$.data.id"},
		}),
		s.api.Step("complete note", httpstep.Call{
			Request: httpstep.Request{
				Method:  http.MethodPatch,
				URL:     "notes/{{noteId}}",
				Headers: authHeaders(),
				Body:    map[string]bool{"completed": true},
			},
			Expect: httpstep.Expect{Status: http.StatusOK, Body: with(envelope(http.StatusOK, MsgNoteUpdated), map[string]any{
				"$.data.completed": true,
			})},
		}),
		s.api.Step("delete note", httpstep.Call{
			Request: httpstep.Request{Method: http.MethodDelete, URL: "notes/{{noteId}}", Headers: authHeaders()},
			Expect:  httpstep.Expect{Status: http.StatusOK, Body: envelope(http.StatusOK, MsgNoteDeleted)},
		}),
		s.api.Step("deleted note is gone", httpstep.Call{
			Request: httpstep.Request{Method: http.MethodGet, URL: "notes/{{noteId}}", Headers: authHeaders()},
			Expect:  httpstep.Expect{Status: http.StatusNotFound, Body: map[string]any{"$.success": false}},
		}),
		s.api.Step("delete account", httpstep.Call{
			Request: httpstep.Request{Method: http.MethodDelete, URL: "users/delete-account", Headers: authHeaders()},
			Expect:  httpstep.Expect{Status: http.StatusOK, Body: envelope(http.StatusOK, MsgAccountDeleted)},
			Rules: []httpstep.Rule{{
				Field: fieldAccountDeleted,
				From:  func(*httpstep.Response) (any, error) { return true, nil },
			}},
		}),
	)

	return &scenario.Scenario{
		Name:        "notes api account lifecycle",
		Description: "register, log in, update the profile, manage a note and delete the account",
		Variables: map[string]any{
			"name":            UserName,
			"password":        Password,
			"noteTitle":       "Quarterly planning",
			"noteDescription": "Prepare the agenda for the quarterly planning meeting",
			"noteCategory":    "Work",
		},
		Steps:   steps,
		Cleanup: []scenario.Step{scenario.Func("remove leftover account", s.removeAccount)},
	}
}

// removeAccount deletes the account when the scenario logged in but never
// reached its own delete step.
func (s *Suite) removeAccount(ctx context.Context, sess *session.Context) error {
	if !sess.Has(fieldToken) || sess.Has(fieldAccountDeleted) {
		return nil
	}
	email, _ := sess.String(fieldEmail)
	s.logger.Info("deleting leftover account", zap.String("email", email))
	_, err := s.api.Run(ctx, "remove leftover account", sess, httpstep.Call{
		Request: httpstep.Request{Method: http.MethodDelete, URL: "users/delete-account", Headers: authHeaders()},
		Expect:  httpstep.Expect{Status: http.StatusOK},
	})
	if err != nil {
		return fmt.Errorf("deleting account %s: %w", email, err)
	}
	sess.Set(fieldAccountDeleted, true)
	return nil
}

// authoriseSwagger pastes the token into the Swagger UI authorise dialog.
func authoriseSwagger(ctx context.Context, e *ui.Executor, sess *session.Context) error {
	token, err := sess.String(fieldToken)
	if err != nil {
		return err
	}
	if err := e.Visit(ctx, "api-docs/"); err != nil {
		return err
	}
	if err := e.Click(ctx, "button.authorize"); err != nil {
		return err
	}
	if err := e.Type(ctx, ".modal-ux input[type=text]", token); err != nil {
		return err
	}
	if err := e.Click(ctx, ".auth-btn-wrapper button.authorize"); err != nil {
		return err
	}
	if err := e.ExpectVisible(ctx, ".auth-btn-wrapper button.btn-done"); err != nil {
		return err
	}
	return e.Click(ctx, ".auth-btn-wrapper button.btn-done")
}

func with(base, extra map[string]any) map[string]any {
	maps.Copy(base, extra)
	return base
}
