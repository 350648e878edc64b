// twin-practice serves a local fake of the practice site with the shared
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
	twinpractice "github.com/bouvet-sqad/flowcheck/twin-practice"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", twinpractice.Name, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := twincore.ParseFlags(twinpractice.Name, os.Args[1:])
	if err != nil {
		return err
	}
	if cfg.Port == 0 {
		cfg.Port = twinpractice.DefaultPort
	}

	twin, err := twinpractice.New(cfg, nil)
	if err != nil {
		return err
	}
	defer twin.Logger.Sync()

	if cfg.SeedFile != "" {
		if err := twin.LoadSeed(cfg.SeedFile); err != nil {
			return err
		}
	}

	twin.Logger.Info("twin-practice ready", zap.Int("port", cfg.Port))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return twin.Serve(ctx)
}
