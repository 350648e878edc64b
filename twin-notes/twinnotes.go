// Package twinnotes assembles the Notes API twin: a local fake of the
// practice Notes API with users, profiles, notes and token sessions.
//
// Default port: 12210
package twinnotes

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/pkg/admin"
	"github.com/bouvet-sqad/flowcheck/pkg/twincore"
	"github.com/bouvet-sqad/flowcheck/twin-notes/internal/api"
	"github.com/bouvet-sqad/flowcheck/twin-notes/internal/store"
)

// Name is the twin's name in logs and flags.
const Name = "twin-notes"

// DefaultPort is used when neither --port nor PORT is set.
const DefaultPort = 12210

// Twin is a ready-to-serve Notes API twin.
type Twin struct {
	*twincore.Twin
	state *store.MemoryStore
}

// New wires the API and admin handlers onto a twincore server.
func New(cfg *twincore.Config, logger *zap.Logger) (*Twin, error) {
	core := twincore.New(cfg, logger)
	state := store.New()

	tokens, err := api.NewTokenManager(state.Clock.Now)
	if err != nil {
		return nil, err
	}
	api.NewHandler(state, core.Middleware(), tokens, core.Logger).Routes(core.Router)

	adminHandler := admin.NewHandler(state, core.Middleware(), state.Clock)
	adminHandler.SetConfigProvider(core)
	adminHandler.Routes(core.Router)

	return &Twin{Twin: core, state: state}, nil
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

// Advance moves the twin's clock forward, expiring tokens older than the
// token lifetime.
func (t *Twin) Advance(d time.Duration) {
	t.state.Clock.Advance(d)
}

// Reset clears users, notes and revoked tokens.
func (t *Twin) Reset() {
	t.state.Reset()
}
