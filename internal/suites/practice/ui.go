package practice

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/internal/expect"
	"github.com/bouvet-sqad/flowcheck/internal/httpstep"
	"github.com/bouvet-sqad/flowcheck/internal/scenario"
	"github.com/bouvet-sqad/flowcheck/internal/session"
	"github.com/bouvet-sqad/flowcheck/internal/ui"
)

// ElementsToAdd is how many elements AddRemoveElements adds and removes.
const ElementsToAdd = 10

// optional reads path when present and yields "" otherwise.
func optional(path string) func(*httpstep.Response) (any, error) {
	return func(resp *httpstep.Response) (any, error) {
		v, ok, err := resp.Path(path)
		if err != nil || !ok {
			return "", err
		}
		return v, nil
	}
}

func (s *Suite) logLocation(ctx context.Context, sess *session.Context) error {
	ip, err := sess.String("ip")
	if err != nil {
		return err
	}
	city, _ := sess.String("city")
	country, _ := sess.String("country")
	s.logger.Info("caller location", zap.String("ip", ip), zap.String("city", city), zap.String("country", country))
	return nil
}

// Inputs fills the web inputs form and checks the echoed values. The number
// field drops non-numeric keystrokes.
func (s *Suite) Inputs() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "practice inputs round trip",
		Description: "typed inputs are displayed back, with the number field keeping digits only",
		Steps: []scenario.Step{
			s.ui.Interact("open inputs page", ui.Navigate("/inputs"), ui.Shown("#btn-display-inputs")),
			s.ui.Interact("clear inputs", ui.ClickOn("#btn-clear-inputs"), ui.CountIs("#output-number", 0)),
			s.ui.Interact("fill and display",
				ui.Sequence(
					ui.TypeInto("#input-number", "A5982"),
					ui.TypeInto("#input-text", "Joachim Holseter"),
					ui.TypeInto("#input-password", "SQAD"),
					ui.ClickOn("#btn-display-inputs"),
				),
				ui.TextIs("#output-number", "5982"),
				ui.TextIs("#output-text", "Joachim Holseter"),
				ui.TextIs("#output-password", "SQAD"),
			),
		},
	}
}

// AddRemoveElements adds ElementsToAdd elements and removes them again.
func (s *Suite) AddRemoveElements() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "practice add and remove elements",
		Description: "added elements appear one per click and disappear one per click",
		Steps: []scenario.Step{
			s.ui.Interact("open elements page", ui.Navigate("/add-remove-elements"), ui.CountIs(selElements, 0)),
			s.ui.Interact("add elements", ui.ClickEach(selAddButton, ElementsToAdd), ui.CountIs(selAdded, ElementsToAdd)),
			s.ui.Interact("remove elements", ui.ClickEach(selAdded, ElementsToAdd), ui.CountIs(selElements, 0)),
		},
	}
}

// NotificationMessage reloads the notification page until the action
// succeeds, within the executor's attempt bound.
func (s *Suite) NotificationMessage() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "practice notification message",
		Description: "the notification eventually reports a successful action",
		Steps: []scenario.Step{
			s.ui.Step("reload until successful", func(ctx context.Context, e *ui.Executor, sess *session.Context) error {
				attempts, err := e.RetryCycle(ctx, "notification says "+MsgActionOK, func(ctx context.Context, _ int) error {
					if err := e.Visit(ctx, "/notification-message"); err != nil {
						return err
					}
					msg, err := e.ReadText(ctx, selFlash)
					if err != nil {
						return err
					}
					if msg != MsgActionOK {
						return ui.Retry(fmt.Errorf("notification was %q", msg))
					}
					return nil
				})
				if err != nil {
					return err
				}
				sess.Set("notificationAttempts", attempts)
				s.logger.Debug("notification succeeded", zap.Int("attempts", attempts))
				return nil
			}),
		},
	}
}

// DynamicTable finds Chrome's CPU cell in the shuffled table and compares it
// with the highlighted label.
func (s *Suite) DynamicTable() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "practice dynamic table",
		Description: "the Chrome CPU value in the table matches the label under it",
		Steps: []scenario.Step{
			s.ui.Interact("open dynamic table", ui.Navigate("/dynamic-table"), ui.CountAtLeast("div.table-responsive tbody tr", 1)),
			s.ui.Step("find chrome cpu", func(ctx context.Context, e *ui.Executor, sess *session.Context) error {
				cell, err := chromeCPU(ctx, e)
				if err != nil {
					return err
				}
				sess.Set("chromeCPU", cell)
				return nil
			}),
			s.ui.Step("label matches table", func(ctx context.Context, e *ui.Executor, sess *session.Context) error {
				cell, err := sess.String("chromeCPU")
				if err != nil {
					return err
				}
				want, err := expect.ParsePercent(cell)
				if err != nil {
					return err
				}
				return e.ExpectTextFunc(ctx, "p#chrome-cpu", "chrome cpu label matches "+cell, func(text string) error {
					got, err := expect.StripNumeric(text)
					if err != nil {
						return err
					}
					if math.Abs(got-want) > 1e-9 {
						return &expect.Mismatch{Path: "chrome cpu label", Op: "==", Expected: want, Actual: got}
					}
					return nil
				})
			}),
		},
	}
}

// chromeCPU returns the CPU cell of the Chrome row. Column and row order
// change on every load, so both are located by their labels.
func chromeCPU(ctx context.Context, e *ui.Executor) (string, error) {
	headers, err := e.ReadTexts(ctx, "div.table-responsive thead th")
	if err != nil {
		return "", err
	}
	col := slices.Index(headers, "CPU")
	if col < 0 {
		return "", fmt.Errorf("no CPU column in %v", headers)
	}
	cells, err := e.ReadTexts(ctx, "div.table-responsive tbody td")
	if err != nil {
		return "", err
	}
	for row := range slices.Chunk(cells, len(headers)) {
		if len(row) > col && row[0] == "Chrome" {
			if !strings.HasSuffix(row[col], "%") {
				return "", fmt.Errorf("chrome cpu cell %q is not a percentage", row[col])
			}
			return row[col], nil
		}
	}
	return "", errors.New("no Chrome row in the table")
}

// BrowserInfo reveals the browser information panel. It only makes sense
// in a real Chrome.
func (s *Suite) BrowserInfo() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "practice browser information",
		Description: "the browser information panel names Google Chrome",
		Steps: []scenario.Step{
			s.ui.Interact("open browser page", ui.Navigate("/my-browser"), ui.Shown("#browser-toggle")),
			s.ui.Interact("show information", ui.ClickOn("#browser-toggle"),
				ui.Shown("#browser-info"),
				ui.TextIs("td#browser-name", "Google Chrome"),
			),
		},
	}
}

func login(username, password string) ui.Action {
	return ui.Sequence(
		ui.Navigate("/login"),
		ui.TypeInto("#username", username),
		ui.TypeInto("#password", password),
		ui.ClickOn(selLoginButton),
	)
}

// LoginInvalid submits unknown credentials.
func (s *Suite) LoginInvalid() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "practice login invalid",
		Description: "unknown credentials stay on the login page with an error flash",
		Steps: []scenario.Step{
			s.ui.Interact("submit unknown credentials", login("JoachimHolseter", "Password1"),
				ui.TextContains(selFlash, "invalid"),
				ui.PathIs("/login"),
			),
		},
	}
}

// LoginValid logs in, checks the secure area and logs out again.
func (s *Suite) LoginValid() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "practice login valid",
		Description: "valid credentials reach the secure area and logout returns to login",
		Steps: []scenario.Step{
			s.ui.Interact("log in", login(Username, Password),
				ui.TextIs(selFlash, MsgLoggedIn),
				ui.URLHas("/secure"),
			),
			s.ui.Interact("log out", ui.ClickOn(selLogout), ui.PathIs("/login")),
		},
	}
}

type imageInfo struct {
	Src    string `json:"src"`
	Broken bool   `json:"broken"`
}

const imagesScript = `Array.from(document.querySelectorAll("img")).map(i => ({src: i.getAttribute("src"), broken: i.complete && i.naturalWidth === 0}))`

// BrokenImages reports which images on the broken images page failed to
// load. The report is informational; the step fails only when the page
// shows no images at all.
func (s *Suite) BrokenImages() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "practice broken images",
		Description: "report images whose natural width is zero",
		Steps: []scenario.Step{
			s.ui.Interact("open broken images page", ui.Navigate("/broken-images"), ui.CountAtLeast("img", 1)),
			s.ui.Step("report broken images", func(ctx context.Context, e *ui.Executor, sess *session.Context) error {
				ev, ok := e.Driver().(ui.Evaluator)
				if !ok {
					return errors.New("driver cannot evaluate scripts")
				}
				var images []imageInfo
				if err := ev.Evaluate(ctx, imagesScript, &images); err != nil {
					return fmt.Errorf("inspecting images: %w", err)
				}
				if len(images) == 0 {
					return errors.New("page shows no images")
				}
				var broken []string
				for _, img := range images {
					if img.Broken {
						broken = append(broken, img.Src)
					}
				}
				sess.Set("brokenImages", len(broken))
				s.logger.Info("broken images", zap.Int("total", len(images)), zap.Strings("broken", broken))
				return nil
			}),
		},
	}
}
