package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/internal/scenario"
	"github.com/bouvet-sqad/flowcheck/internal/suites"
)

type runOptions struct {
	list      bool
	noBrowser bool
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run [group...]",
		Short: "Run scenario groups",
		Long: `Run the built-in scenario groups against the configured targets.

Groups: notes, practice-api, practice-ui, coffee-cart. Without arguments
every group runs. The UI groups need Chrome and are left out with
--no-browser or when ui.enabled is false.`,
		Example: `  # everything
  flowcheck run

  # API groups only, no browser
  flowcheck run --no-browser notes practice-api

  # show what would run
  flowcheck run --list`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.run(ctx, args, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.list, "list", false, "list groups and scenarios without running them")
	cmd.Flags().BoolVar(&opts.noBrowser, "no-browser", false, "skip groups that need a browser")
	return cmd
}

func (a *app) run(ctx context.Context, names []string, opts runOptions) error {
	deps := suites.Deps{
		Targets: a.cfg.Targets,
		HTTP:    a.httpOptions(),
		Logger:  a.logger,
	}
	browser := a.cfg.UI.Enabled && !opts.noBrowser && needsBrowser(names)
	if browser {
		if opts.list {
			// Listing builds the scenarios but never drives them.
			deps.UI = a.uiExecutor(nil)
		} else {
			exec, closeBrowser, err := a.browser(ctx)
			if err != nil {
				return err
			}
			defer closeBrowser()
			deps.UI = exec
		}
	}

	groups, err := suites.Build(deps)
	if err != nil {
		return err
	}
	selected, err := suites.Select(groups, names)
	if errors.Is(err, suites.ErrNeedsBrowser) {
		return fmt.Errorf("%w: drop --no-browser and set ui.enabled: true", err)
	}
	if err != nil {
		return err
	}

	if opts.list {
		for _, g := range selected {
			fmt.Fprintln(a.out, g.Name)
			for _, s := range g.Scenarios {
				fmt.Fprintf(a.out, "  %s\n", s.Name)
			}
		}
		return nil
	}

	var scenarios []*scenario.Scenario
	for _, g := range selected {
		scenarios = append(scenarios, g.Scenarios...)
	}
	a.logger.Info("running scenarios",
		zap.Strings("groups", suites.Names(selected)),
		zap.Int("scenarios", len(scenarios)),
		zap.Bool("browser", deps.UI != nil),
	)
	return a.runScenarios(ctx, scenarios)
}

// needsBrowser reports whether any requested group drives a browser. No
// names means every group.
func needsBrowser(names []string) bool {
	if len(names) == 0 {
		return true
	}
	return slices.ContainsFunc(names, suites.NeedsBrowser)
}
