package coffeecart

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/internal/report"
	"github.com/bouvet-sqad/flowcheck/internal/scenario"
	"github.com/bouvet-sqad/flowcheck/internal/ui"
	"github.com/bouvet-sqad/flowcheck/pkg/testutil"
	"github.com/bouvet-sqad/flowcheck/pkg/twincore"
	twincoffee "github.com/bouvet-sqad/flowcheck/twin-coffee"
)

func newExecutor(t *testing.T, srv *httptest.Server, opts ...ui.Option) *ui.Executor {
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

func setup(t *testing.T) (*twincoffee.Twin, *httptest.Server) {
	t.Helper()
	twin, err := twincoffee.New(&twincore.Config{Name: twincoffee.Name}, zap.NewNop())
	require.NoError(t, err)
	srv := httptest.NewServer(twin)
	t.Cleanup(srv.Close)
	return twin, srv
}

func run(t *testing.T, s *scenario.Scenario) *scenario.Result {
	t.Helper()
	return scenario.NewRunner(scenario.WithObserver(report.NewTesting(t))).Run(context.Background(), s)
}

func TestScenariosPassAgainstTwin(t *testing.T) {
	twin, srv := setup(t)
	suite := New(newExecutor(t, srv), WithPromoGrace(0))

	scenarios := suite.Scenarios()
	require.Len(t, scenarios, 4)
	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result := run(t, s)
			require.True(t, result.Passed, "failed steps: %+v", result.Failed())
		})
	}
	assert.Equal(t, 1, twin.Orders())
}

func TestPromoAnswersAlternate(t *testing.T) {
	_, srv := setup(t)
	exec := newExecutor(t, srv)
	suite := New(exec, WithCups(6), WithPromoGrace(0))

	result := run(t, &scenario.Scenario{
		Name: "promo",
		Steps: []scenario.Step{
			exec.Interact("open shop", ui.Navigate("/"), ui.CountAtLeast(selMenuItems, 1)),
			exec.Step("add cups", suite.addCups),
			exec.Step("cart count matches total", cartMatchesTotal),
			exec.Interact("open cart", ui.ClickOn(selCartLink), ui.PathIs("/cart")),
		},
	})
	require.True(t, result.Passed, "%+v", result.Failed())

	// The third and sixth cups open the promo; only the first answer accepts.
	label, err := exec.ReadText(context.Background(), selCartLink)
	require.NoError(t, err)
	assert.Equal(t, "cart (7)", label)
	lines, err := exec.ReadTexts(context.Background(), selCartItems+" div:first-child")
	require.NoError(t, err)
	assert.Contains(t, lines, "(Discounted) Mocha")
}

func TestPromoIgnoredWhenDisabled(t *testing.T) {
	twin, srv := setup(t)
	twin.SetPromoEvery(0)
	exec := newExecutor(t, srv)
	suite := New(exec, WithCups(4), WithPromoGrace(0))

	result := run(t, &scenario.Scenario{
		Name: "no promo",
		Steps: []scenario.Step{
			exec.Interact("open shop", ui.Navigate("/")),
			exec.Step("add cups", suite.addCups),
			exec.Interact("count", nil, ui.TextIs(selCartLink, "cart (4)")),
		},
	})
	require.True(t, result.Passed, "%+v", result.Failed())
}

func TestEmptyCartShowsZeroTotal(t *testing.T) {
	_, srv := setup(t)
	exec := newExecutor(t, srv)
	result := run(t, &scenario.Scenario{
		Name: "empty cart",
		Steps: []scenario.Step{
			exec.Interact("open shop", ui.Navigate("/")),
			exec.Step("cart count matches total", cartMatchesTotal),
		},
	})
	assert.True(t, result.Passed, "%+v", result.Failed())
}

func TestEditCartNeedsRecordedTotal(t *testing.T) {
	_, srv := setup(t)
	exec := newExecutor(t, srv)
	suite := New(exec)

	result := run(t, &scenario.Scenario{
		Name: "edit without total",
		Steps: []scenario.Step{
			exec.Interact("open cart", ui.Navigate("/cart")),
			exec.Step("add one", suite.editCart(selAddOne)),
		},
	})
	require.False(t, result.Passed)
	assert.Equal(t, scenario.KindMissingContextValue, result.Failed()[0].Kind)
}

// ---

const frozenCart = `<html><body>
<a href="/cart" aria-label="Cart page">cart (1)</a>
<div class="list"><div><ul><li class="list-item"><div>Espresso</div>
<form method="post" action="/cart/update"><input type="hidden" name="name" value="Espresso">
<button type="submit" name="op" value="add" aria-label="Add one Espresso">+</button></form>
</li></ul></div></div>
<button data-test="checkout">Total: $10.00</button>
</body></html>`

func TestEditCartFailsWhenTotalStays(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/cart", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(frozenCart))
	})
	r.Post("/cart/update", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/cart", http.StatusSeeOther)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	exec := newExecutor(t, srv, ui.WithTimeout(150*time.Millisecond))
	suite := New(exec)
	result := run(t, &scenario.Scenario{
		Name: "frozen total",
		Steps: []scenario.Step{
			exec.Interact("open cart", ui.Navigate("/cart"), ui.CountIs(selCartItems, 1)),
			exec.Step("record total", recordTotal),
			exec.Step("add one", suite.editCart(selAddOne)),
		},
	})
	require.False(t, result.Passed)
	failed := result.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "add one", failed[0].Name)
	assert.Equal(t, scenario.KindUIAssertionTimeout, failed[0].Kind)
}

func TestPurchaseFailsOnCheckoutFault(t *testing.T) {
	twin, srv := setup(t)
	admin := testutil.NewAdminClient(testutil.NewTwinClient(t, srv))
	admin.InjectFault("/checkout", twincore.FaultConfig{StatusCode: http.StatusServiceUnavailable})

	suite := New(newExecutor(t, srv, ui.WithTimeout(200*time.Millisecond)), WithCups(2), WithPromoGrace(0))
	result := run(t, suite.Purchase())
	require.False(t, result.Passed)
	assert.Equal(t, "proceed to checkout", result.Failed()[0].Name)
	assert.Equal(t, 0, twin.Orders())
}
