package twincoffee

import (
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/pkg/testutil"
	"github.com/bouvet-sqad/flowcheck/pkg/twincore"
)

func TestNewServesShopAndAdmin(t *testing.T) {
	twin, err := New(&twincore.Config{Name: Name}, zap.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	srv := httptest.NewServer(twin)
	t.Cleanup(srv.Close)
	tc := testutil.NewTwinClient(t, srv)

	tc.Get("/").AssertStatus(http.StatusOK).AssertBodyContains(`aria-label="Cart page"`)
	tc.Get("/list.json").AssertStatus(http.StatusOK).AssertBodyContains("Espresso")

	ac := testutil.NewAdminClient(tc)
	ac.InjectFault("/list.json", twincore.FaultConfig{StatusCode: http.StatusBadGateway})
	tc.Get("/list.json").AssertStatus(http.StatusBadGateway)
	ac.Reset()
	tc.Get("/list.json").AssertStatus(http.StatusOK)

	state := ac.GetState().AssertStatus(http.StatusOK).JSONMap()
	if state["promo_every"] != float64(3) {
		t.Errorf("expected default promo interval in state, got %v", state["promo_every"])
	}
}

func TestLoadSeedAndPromo(t *testing.T) {
	twin, err := New(&twincore.Config{Name: Name}, zap.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "seed.json")
	seed := `{"orders":{"0d0000000000000000000001":{"id":"0d0000000000000000000001","name":"Seed","email":"seed@example.com","total":10}},"promo_every":0}`
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := twin.LoadSeed(path); err != nil {
		t.Fatalf("LoadSeed() error: %v", err)
	}
	if got := twin.Orders(); got != 1 {
		t.Errorf("Orders() = %d, want 1", got)
	}
	if err := twin.LoadSeed(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing seed file")
	}

	srv := httptest.NewServer(twin)
	t.Cleanup(srv.Close)
	tc := testutil.NewTwinClient(t, srv)
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	tc.HTTPClient.Jar = jar
	for range 3 {
		tc.PostForm("/add", map[string]string{"name": "Mocha"})
	}
	body := tc.Get("/").AssertStatus(http.StatusOK)
	if strings.Contains(string(body.Body), `class="promo"`) {
		t.Error("promo should be disabled by the seed")
	}

	twin.SetPromoEvery(1)
	tc.PostForm("/add", map[string]string{"name": "Mocha"})
	tc.Get("/").AssertBodyContains(`class="promo"`)
}
