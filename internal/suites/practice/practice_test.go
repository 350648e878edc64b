package practice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/internal/httpstep"
	"github.com/bouvet-sqad/flowcheck/internal/report"
	"github.com/bouvet-sqad/flowcheck/internal/scenario"
	"github.com/bouvet-sqad/flowcheck/internal/ui"
	"github.com/bouvet-sqad/flowcheck/pkg/testutil"
	"github.com/bouvet-sqad/flowcheck/pkg/twincore"
	twinpractice "github.com/bouvet-sqad/flowcheck/twin-practice"
)

type env struct {
	twin  *twinpractice.Twin
	srv   *httptest.Server
	suite *Suite
	admin *testutil.AdminClient
}

func newUIExecutor(t *testing.T, srv *httptest.Server, opts ...ui.Option) *ui.Executor {
	t.Helper()
	driver, err := ui.NewStaticDriver(srv.Client())
	require.NoError(t, err)
	opts = append([]ui.Option{
		ui.WithBaseURL(srv.URL),
		ui.WithTimeout(2 * time.Second),
		ui.WithPollInterval(10 * time.Millisecond),
	}, opts...)
	return ui.NewExecutor(driver, opts...)
}

func setup(t *testing.T, uiOpts ...ui.Option) *env {
	t.Helper()
	twin, err := twinpractice.New(&twincore.Config{Name: twinpractice.Name}, zap.NewNop())
	require.NoError(t, err)
	srv := httptest.NewServer(twin)
	t.Cleanup(srv.Close)

	api, err := httpstep.New(srv.URL, httpstep.WithClient(srv.Client()))
	require.NoError(t, err)
	return &env{
		twin:  twin,
		srv:   srv,
		suite: New(api, WithUI(newUIExecutor(t, srv, uiOpts...))),
		admin: testutil.NewAdminClient(testutil.NewTwinClient(t, srv)),
	}
}

func run(t *testing.T, s *scenario.Scenario) *scenario.Result {
	t.Helper()
	return scenario.NewRunner(scenario.WithObserver(report.NewTesting(t))).Run(context.Background(), s)
}

func TestAPIScenariosPass(t *testing.T) {
	f := setup(t)
	for _, s := range f.suite.APIScenarios() {
		result := run(t, s)
		assert.True(t, result.Passed, "%s: %+v", s.Name, result.Failed())
	}
}

func TestUIScenariosPassWithStaticDriver(t *testing.T) {
	f := setup(t)
	scenarios := f.suite.UIScenarios()

	var names []string
	for _, s := range scenarios {
		names = append(names, s.Name)
	}
	assert.NotContains(t, names, "practice browser information", "needs Chrome")
	assert.NotContains(t, names, "practice broken images", "needs script evaluation")
	require.Len(t, scenarios, 6)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result := run(t, s)
			require.True(t, result.Passed, "failed steps: %+v", result.Failed())
		})
	}
}

func TestUIScenariosNeedExecutor(t *testing.T) {
	api, err := httpstep.New("http://localhost")
	require.NoError(t, err)
	assert.Empty(t, New(api).UIScenarios())
	assert.Len(t, New(api).APIScenarios(), 2)
}

func TestNotificationRetriesUntilSuccess(t *testing.T) {
	f := setup(t)
	f.twin.SetNotificationOutcomes(false, false, false, true)

	result := run(t, f.suite.NotificationMessage())
	require.True(t, result.Passed, "%+v", result.Failed())

	loads := 0
	for _, e := range f.admin.GetRequests() {
		if e.Path == "/notification-message" {
			loads++
		}
	}
	assert.Equal(t, 4, loads)
}

func TestNotificationRetryExhausted(t *testing.T) {
	f := setup(t, ui.WithMaxAttempts(3))
	f.twin.SetNotificationOutcomes(false)

	result := run(t, f.suite.NotificationMessage())
	require.False(t, result.Passed)
	failed := result.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, scenario.KindRetryExhausted, failed[0].Kind)
	assert.Contains(t, failed[0].Message(), "Action unsuccessful")
}

func TestLoginInvalidFailsWhenLoginSucceeds(t *testing.T) {
	f := setup(t, ui.WithTimeout(200*time.Millisecond))
	s := f.suite.LoginValid()
	require.True(t, run(t, s).Passed)

	// Swapping the credentials into the invalid scenario's action must make
	// its flash expectation time out.
	bad := &scenario.Scenario{
		Name: "valid credentials in invalid scenario",
		Steps: []scenario.Step{
			f.suite.ui.Interact("submit", login(Username, Password), ui.TextContains(selFlash, "invalid")),
		},
	}
	result := run(t, bad)
	require.False(t, result.Passed)
	assert.Equal(t, scenario.KindUIAssertionTimeout, result.Failed()[0].Kind)
}

// ---

const tablePage = `<html><body>
<div class="table-responsive"><table>
<thead><tr><th>Name</th><th>Memory</th><th>CPU</th></tr></thead>
<tbody>
<tr><td>System</td><td>12 MB</td><td>0.4%</td></tr>
<tr><td>Chrome</td><td>50 MB</td><td>3.5%</td></tr>
</tbody></table></div>
<p id="chrome-cpu">Chrome CPU: LABEL</p>
</body></html>`

func TestDynamicTableLabelMismatch(t *testing.T) {
	tests := []struct {
		label string
		pass  bool
	}{
		{"3.5%", true},
		{"4.1%", false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			page := []byte(strings.Replace(tablePage, "LABEL", tt.label, 1))
			handler := httphelpers.HandlerWithResponse(http.StatusOK, http.Header{"Content-Type": {"text/html"}}, page)
			httphelpers.WithServer(handler, func(srv *httptest.Server) {
				api, err := httpstep.New(srv.URL)
				require.NoError(t, err)
				suite := New(api, WithUI(newUIExecutor(t, srv, ui.WithTimeout(200*time.Millisecond))))
				result := run(t, suite.DynamicTable())
				assert.Equal(t, tt.pass, result.Passed)
				if !tt.pass {
					assert.Equal(t, scenario.KindUIAssertionTimeout, result.Failed()[0].Kind)
				}
			})
		})
	}
}

// evalDriver adds canned script results to the static driver.
type evalDriver struct {
	*ui.StaticDriver
	images []imageInfo
}

func (d *evalDriver) Evaluate(_ context.Context, _ string, out any) error {
	data, err := json.Marshal(d.images)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func TestBrokenImagesWithEvaluator(t *testing.T) {
	twin, err := twinpractice.New(&twincore.Config{Name: twinpractice.Name}, zap.NewNop())
	require.NoError(t, err)
	srv := httptest.NewServer(twin)
	t.Cleanup(srv.Close)

	static, err := ui.NewStaticDriver(srv.Client())
	require.NoError(t, err)
	driver := &evalDriver{StaticDriver: static, images: []imageInfo{
		{Src: "/img/broken-1.jpg", Broken: true},
		{Src: "/img/broken-2.jpg", Broken: true},
		{Src: "/img/avatar.png"},
	}}
	exec := ui.NewExecutor(driver, ui.WithBaseURL(srv.URL), ui.WithTimeout(2*time.Second))
	api, err := httpstep.New(srv.URL)
	require.NoError(t, err)
	suite := New(api, WithUI(exec))

	scenarios := suite.UIScenarios()
	require.Equal(t, "practice broken images", scenarios[len(scenarios)-1].Name)
	result := run(t, scenarios[len(scenarios)-1])
	assert.True(t, result.Passed, "%+v", result.Failed())

	driver.images = nil
	result = run(t, suite.BrokenImages())
	assert.False(t, result.Passed, "an empty image list is a failure")
}
