package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/internal/config"
	"github.com/bouvet-sqad/flowcheck/internal/httpstep"
	"github.com/bouvet-sqad/flowcheck/internal/logging"
	"github.com/bouvet-sqad/flowcheck/internal/report"
	"github.com/bouvet-sqad/flowcheck/internal/scenario"
	"github.com/bouvet-sqad/flowcheck/internal/ui"
)

// errScenariosFailed is returned after the summary has been printed, so
// main only sets the exit code.
var errScenariosFailed = errors.New("scenarios failed")

// app carries the global flags and what PersistentPreRunE builds from them.
type app struct {
	out     io.Writer
	cfgFile string
	debug   bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}
	root := &cobra.Command{
		Use:           "flowcheck",
		Short:         "End-to-end scenario runner for web and API test suites",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default flowcheck.yaml or flowcheck.toml)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(out)

	root.AddCommand(newRunCmd(a), newFileCmd(a), newVersionCmd())
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.debug {
		cfg.Logging.Level = "debug"
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) httpOptions() []httpstep.Option {
	return []httpstep.Option{
		httpstep.WithClient(&http.Client{Timeout: a.cfg.HTTP.Timeout.Duration}),
		httpstep.WithRateLimit(a.cfg.HTTP.RequestsPerSecond, a.cfg.HTTP.Burst),
		httpstep.WithLogger(a.logger.Named("http")),
	}
}

// browser starts Chrome and wraps it in an executor. The returned close
// function stops the browser.
func (a *app) browser(ctx context.Context) (*ui.Executor, func(), error) {
	u := a.cfg.UI
	driver, err := ui.NewChromeDriver(ctx, ui.ChromeOptions{
		Headless: u.Headless,
		Width:    u.Width,
		Height:   u.Height,
		ExecPath: u.ChromePath,
	})
	if err != nil {
		return nil, nil, err
	}
	return a.uiExecutor(driver), driver.Close, nil
}

func (a *app) uiExecutor(d ui.Driver) *ui.Executor {
	u := a.cfg.UI
	return ui.NewExecutor(d,
		ui.WithTimeout(u.Timeout.Duration),
		ui.WithPollInterval(u.PollInterval.Duration),
		ui.WithMaxAttempts(u.MaxAttempts),
		ui.WithLogger(a.logger.Named("ui")),
	)
}

// runScenarios runs scenarios in order, printing each step, and returns
// errScenariosFailed when any of them failed.
func (a *app) runScenarios(ctx context.Context, scenarios []*scenario.Scenario) error {
	console := report.NewConsole(a.out)
	opts := []scenario.Option{
		scenario.WithLogger(a.logger.Named("runner")),
		scenario.WithStepTimeout(a.cfg.Runner.StepTimeout.Duration),
		scenario.WithObserver(console),
	}
	var hook *report.Webhook
	if url := a.cfg.Report.WebhookURL; url != "" {
		hook = report.NewWebhook(report.WebhookConfig{
			URL:    url,
			Secret: a.cfg.Report.WebhookSecret,
			Logger: a.logger.Named("webhook"),
		})
		opts = append(opts, scenario.WithObserver(hook))
	}

	scenario.NewRunner(opts...).RunAll(ctx, scenarios)
	if hook != nil {
		// Results are still delivered after an interrupt.
		if err := hook.Flush(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("delivering results to webhook", zap.Error(err))
		}
	}
	if !console.Summary() {
		return errScenariosFailed
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// No config is needed to print the version.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "flowcheck version %s\n", version)
		},
	}
}
