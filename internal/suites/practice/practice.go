// Package practice holds the scenarios for the automation practice site:
// two JSON endpoints and a set of browser checks on its demo pages.
package practice

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/internal/httpstep"
	"github.com/bouvet-sqad/flowcheck/internal/scenario"
	"github.com/bouvet-sqad/flowcheck/internal/ui"
)

// Login credentials accepted by the site.
const (
	Username = "practice"
	Password = "SuperSecretPassword!"
)

// Flash messages asserted by the UI scenarios.
const (
	MsgLoggedIn = "You logged into a secure area!"
	MsgActionOK = "Action successful"
)

// Selectors shared by several scenarios.
const (
	selFlash       = "div#flash b"
	selLoginButton = `button[class="btn btn-bg btn-primary d-block w-100"]`
	selLogout      = `a[class="button secondary radius"]`
	selAddButton   = `button[class="btn btn-primary mt-3"]`
	selAdded       = `button[class="added-manually btn btn-info"]`
	selElements    = "#elements > *"
)

// Suite builds the practice site scenarios. The UI executor is optional;
// without it only the API scenarios exist.
type Suite struct {
	api    *httpstep.Executor
	ui     *ui.Executor
	logger *zap.Logger
}

// Option configures a Suite.
type Option func(*Suite)

// WithUI enables the browser scenarios on e, whose base URL is the site root.
func WithUI(e *ui.Executor) Option {
	return func(s *Suite) { s.ui = e }
}

// WithLogger sets the suite's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Suite) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Suite on an HTTP executor rooted at the site.
func New(api *httpstep.Executor, opts ...Option) *Suite {
	s := &Suite{api: api, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// APIScenarios returns the JSON endpoint scenarios.
func (s *Suite) APIScenarios() []*scenario.Scenario {
	return []*scenario.Scenario{s.HealthCheck(), s.MyIP()}
}

// HealthCheck verifies GET /api/health-check.
func (s *Suite) HealthCheck() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "practice api health check",
		Description: "the practice API reports itself up",
		Steps: []scenario.Step{
			s.api.Step("health check", httpstep.Call{
				Request: httpstep.Request{Method: http.MethodGet, URL: "/api/health-check"},
				Expect: httpstep.Expect{Status: http.StatusOK, Body: map[string]any{
					"$.status":  "UP",
					"$.message": "API is up!",
				}},
			}),
		},
	}
}

// MyIP verifies GET /api/my-ip returns the caller's address and logs its
// location.
func (s *Suite) MyIP() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "practice api my ip",
		Description: "the IP endpoint returns the caller's address",
		Steps: []scenario.Step{
			s.api.Step("my ip", httpstep.Call{
				Request: httpstep.Request{Method: http.MethodGet, URL: "/api/my-ip"},
				Expect: httpstep.Expect{Status: http.StatusOK, Body: map[string]any{
					"$.ip": map[string]any{"exists": true, "ne": ""},
				}},
				Capture: map[string]string{"ip": "$.ip"},
				Rules: []httpstep.Rule{
					{Field: "city", From: optional("$.city")},
					{Field: "country", From: optional("$.country")},
				},
			}),
			scenario.Func("log location", s.logLocation),
		},
	}
}

// UIScenarios returns the browser scenarios the configured driver can run.
// Browser information needs a real Chrome and the broken image report
// needs script evaluation.
func (s *Suite) UIScenarios() []*scenario.Scenario {
	if s.ui == nil {
		return nil
	}
	out := []*scenario.Scenario{
		s.Inputs(),
		s.AddRemoveElements(),
		s.NotificationMessage(),
		s.DynamicTable(),
	}
	if _, ok := s.ui.Driver().(*ui.ChromeDriver); ok {
		out = append(out, s.BrowserInfo())
	}
	out = append(out, s.LoginInvalid(), s.LoginValid())
	if _, ok := s.ui.Driver().(ui.Evaluator); ok {
		out = append(out, s.BrokenImages())
	}
	return out
}
