// twin-notes serves a local fake of the Notes API under /notes/api, with the
// shared /admin control plane.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/pkg/twincore"
	twinnotes "github.com/bouvet-sqad/flowcheck/twin-notes"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", twinnotes.Name, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := twincore.ParseFlags(twinnotes.Name, os.Args[1:])
	if err != nil {
		return err
	}
	if cfg.Port == 0 {
		cfg.Port = twinnotes.DefaultPort
	}

	twin, err := twinnotes.New(cfg, nil)
	if err != nil {
		return err
	}
	defer twin.Logger.Sync()

	if cfg.SeedFile != "" {
		if err := twin.LoadSeed(cfg.SeedFile); err != nil {
			return err
		}
	}

	twin.Logger.Info("twin-notes ready",
		zap.Int("port", cfg.Port),
		zap.String("api", "/notes/api"),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return twin.Serve(ctx)
}
