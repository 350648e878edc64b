// twin-coffee serves a local fake of the coffee shop with the shared
// /admin control plane.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/pkg/twincore"
	twincoffee "github.com/bouvet-sqad/flowcheck/twin-coffee"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", twincoffee.Name, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := twincore.ParseFlags(twincoffee.Name, os.Args[1:])
	if err != nil {
		return err
	}
	if cfg.Port == 0 {
		cfg.Port = twincoffee.DefaultPort
	}

	twin, err := twincoffee.New(cfg, nil)
	if err != nil {
		return err
	}
	defer twin.Logger.Sync()

	if cfg.SeedFile != "" {
		if err := twin.LoadSeed(cfg.SeedFile); err != nil {
			return err
		}
	}

	twin.Logger.Info("twin-coffee ready", zap.Int("port", cfg.Port))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return twin.Serve(ctx)
}
