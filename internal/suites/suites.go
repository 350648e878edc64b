// Package suites assembles the scenario groups the CLI can run.
package suites

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/internal/config"
	"github.com/bouvet-sqad/flowcheck/internal/httpstep"
	"github.com/bouvet-sqad/flowcheck/internal/scenario"
	"github.com/bouvet-sqad/flowcheck/internal/suites/coffeecart"
	"github.com/bouvet-sqad/flowcheck/internal/suites/notesapi"
	"github.com/bouvet-sqad/flowcheck/internal/suites/practice"
	"github.com/bouvet-sqad/flowcheck/internal/ui"
)

// Group names.
const (
	Notes       = "notes"
	PracticeAPI = "practice-api"
	PracticeUI  = "practice-ui"
	CoffeeCart  = "coffee-cart"
)

// ErrNeedsBrowser is returned by Select for a UI group that Build left out
// because no browser was available.
var ErrNeedsBrowser = errors.New("needs a browser")

// NeedsBrowser reports whether the named group drives a browser.
func NeedsBrowser(name string) bool {
	return name == PracticeUI || name == CoffeeCart
}

// Group is a named list of scenarios run together.
type Group struct {
	Name      string
	Scenarios []*scenario.Scenario
}

// Deps are the shared handles every suite is built on.
type Deps struct {
	Targets config.Targets
	// HTTP options apply to every API executor.
	HTTP []httpstep.Option
	// UI is nil when no browser is available; UI groups are then left out.
	UI     *ui.Executor
	Logger *zap.Logger
}

// Build returns every available group in run order.
func Build(d Deps) ([]Group, error) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	httpOpts := append(slices.Clone(d.HTTP), httpstep.WithLogger(logger))

	notesBase := withSlash(d.Targets.NotesAPI)
	notesHTTP, err := httpstep.New(notesBase, httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("notes api executor: %w", err)
	}
	practiceHTTP, err := httpstep.New(withSlash(d.Targets.Practice), httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("practice executor: %w", err)
	}

	notesOpts := []notesapi.Option{notesapi.WithLogger(logger.Named("notes"))}
	practiceOpts := []practice.Option{practice.WithLogger(logger.Named("practice"))}
	if d.UI != nil {
		notesOpts = append(notesOpts, notesapi.WithSwaggerUI(d.UI.WithBase(notesBase)))
		practiceOpts = append(practiceOpts, practice.WithUI(d.UI.WithBase(withSlash(d.Targets.Practice))))
	}
	notes := notesapi.New(notesHTTP, notesOpts...)
	site := practice.New(practiceHTTP, practiceOpts...)

	groups := []Group{
		{Name: Notes, Scenarios: notes.Scenarios()},
		{Name: PracticeAPI, Scenarios: site.APIScenarios()},
	}
	if d.UI == nil {
		return groups, nil
	}
	cart := coffeecart.New(d.UI.WithBase(withSlash(d.Targets.CoffeeCart)), coffeecart.WithLogger(logger.Named("coffee-cart")))
	return append(groups,
		Group{Name: PracticeUI, Scenarios: site.UIScenarios()},
		Group{Name: CoffeeCart, Scenarios: cart.Scenarios()},
	), nil
}

// Select returns the named groups in the order given. No names selects all.
func Select(groups []Group, names []string) ([]Group, error) {
	if len(names) == 0 {
		return groups, nil
	}
	out := make([]Group, 0, len(names))
	for _, name := range names {
		i := slices.IndexFunc(groups, func(g Group) bool { return g.Name == name })
		if i < 0 && NeedsBrowser(name) {
			return nil, fmt.Errorf("group %q %w", name, ErrNeedsBrowser)
		}
		if i < 0 {
			return nil, fmt.Errorf("unknown group %q (available: %s)", name, strings.Join(Names(groups), ", "))
		}
		out = append(out, groups[i])
	}
	return out, nil
}

// Names lists group names.
func Names(groups []Group) []string {
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.Name
	}
	return names
}

func withSlash(base string) string {
	if strings.HasSuffix(base, "/") {
		return base
	}
	return base + "/"
}
