// Package twinpractice assembles the practice site twin: server-rendered
// versions of the practice pages plus the /api endpoints.
//
// Default port: 12211
package twinpractice

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/pkg/admin"
	"github.com/bouvet-sqad/flowcheck/pkg/twincore"
	"github.com/bouvet-sqad/flowcheck/twin-practice/internal/site"
)

// Name is the twin's name in logs and flags.
const Name = "twin-practice"

// DefaultPort is used when neither --port nor PORT is set.
const DefaultPort = 12211

// Twin is a ready-to-serve practice site twin.
type Twin struct {
	*twincore.Twin
	state *site.State
}

// New wires the site and admin handlers onto a twincore server.
func New(cfg *twincore.Config, logger *zap.Logger) (*Twin, error) {
	core := twincore.New(cfg, logger)
	state := site.NewState()

	h, err := site.NewHandler(state, core.Middleware(), core.Logger)
	if err != nil {
		return nil, err
	}
	h.Routes(core.Router)

	adminHandler := admin.NewHandler(state, core.Middleware(), nil)
	adminHandler.SetConfigProvider(core)
	adminHandler.Routes(core.Router)

	return &Twin{Twin: core, state: state}, nil
}

// SetNotificationOutcomes replaces the success/failure cycle of the
// notification page.
func (t *Twin) SetNotificationOutcomes(outcomes ...bool) {
	t.state.SetOutcomes(outcomes...)
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
