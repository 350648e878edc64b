package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/internal/httpstep"
	"github.com/bouvet-sqad/flowcheck/internal/scenario"
	"github.com/bouvet-sqad/flowcheck/internal/scenariofile"
)

func newFileCmd(a *app) *cobra.Command {
	var base string
	cmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Run declarative HTTP scenarios from a file or directory",
		Long: `Run scenarios written as YAML or JSON. A directory runs every
.yaml, .yml and .json file in it. Relative request URLs resolve against the
document's base_url, or --base when the document has none.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if base == "" {
				base = a.cfg.Targets.NotesAPI
			}
			return a.runFiles(ctx, args[0], base)
		},
	}
	cmd.Flags().StringVar(&base, "base", "", "base URL for documents without base_url (default targets.notes_api)")
	return cmd
}

func (a *app) runFiles(ctx context.Context, path, base string) error {
	docs, err := scenariofile.Load(path)
	if err != nil {
		return err
	}

	executors := map[string]*httpstep.Executor{}
	scenarios := make([]*scenario.Scenario, 0, len(docs))
	for _, doc := range docs {
		url := doc.BaseURL
		if url == "" {
			url = base
		}
		exec, ok := executors[url]
		if !ok {
			if exec, err = httpstep.New(url, a.httpOptions()...); err != nil {
				return fmt.Errorf("scenario %q: %w", doc.Name, err)
			}
			executors[url] = exec
		}
		scenarios = append(scenarios, scenariofile.Build(doc, exec))
	}

	a.logger.Info("running scenario files", zap.String("path", path), zap.Int("scenarios", len(scenarios)))
	return a.runScenarios(ctx, scenarios)
}
