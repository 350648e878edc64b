// Package twincoffee assembles the coffee shop twin: a server-rendered
// stand-in for the coffee cart demo shop with menu, promo, cart and
// checkout.
//
// Default port: 12212
package twincoffee

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/pkg/admin"
	"github.com/bouvet-sqad/flowcheck/pkg/twincore"
	"github.com/bouvet-sqad/flowcheck/twin-coffee/internal/shop"
)

// Name is the twin's name in logs and flags.
const Name = "twin-coffee"

// DefaultPort is used when neither --port nor PORT is set.
const DefaultPort = 12212

// Twin is a ready-to-serve coffee shop twin.
type Twin struct {
	*twincore.Twin
	state *shop.State
}

// New wires the shop and admin handlers onto a twincore server.
func New(cfg *twincore.Config, logger *zap.Logger) (*Twin, error) {
	core := twincore.New(cfg, logger)
	state := shop.NewState()

	h, err := shop.NewHandler(state, core.Middleware(), core.Logger)
	if err != nil {
		return nil, err
	}
	h.Routes(core.Router)

	adminHandler := admin.NewHandler(state, core.Middleware(), state.Clock)
	adminHandler.SetConfigProvider(core)
	adminHandler.Routes(core.Router)

	return &Twin{Twin: core, state: state}, nil
}

// SetPromoEvery changes how many cups open the promo offer; zero disables
// it.
func (t *Twin) SetPromoEvery(n int) {
	t.state.SetPromoEvery(n)
}

// Orders returns the number of completed checkouts.
func (t *Twin) Orders() int {
	return t.state.Orders.Count()
}

// LoadSeed replaces the twin's state with a JSON fixture.
func (t *Twin) LoadSeed(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}
	if err := t.state.LoadState(data); err != nil {
		return fmt.Errorf("loading seed data: %w", err)
	}
	t.Logger.Info("loaded seed data", zap.String("file", path))
	return nil
}
