// Package coffeecart holds the webshop scenarios for the coffee cart demo:
// header navigation, menu content and a randomised purchase from adding
// cups through checkout.
package coffeecart

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/internal/expect"
	"github.com/bouvet-sqad/flowcheck/internal/fixture"
	"github.com/bouvet-sqad/flowcheck/internal/scenario"
	"github.com/bouvet-sqad/flowcheck/internal/session"
	"github.com/bouvet-sqad/flowcheck/internal/ui"
)

// Defaults for the purchase scenario.
const (
	DefaultCups       = 10
	DefaultPromoGrace = 500 * time.Millisecond
	EmptyTotal        = "Total: $0.00"
)

// Checkout form input.
const (
	CustomerName  = "John Doe"
	CustomerEmail = "john@aol.com"
)

var (
	selMenuLink   = ui.ByAria("Menu page")
	selCartLink   = ui.ByAria("Cart page")
	selGitHubLink = ui.ByAria("GitHub page")
	selProceed    = ui.ByAria("Proceed to checkout")
	selPromoBox   = ui.ByAria("Promotion checkbox")
)

const (
	selMenuItems   = "ul[data-v-a9662a08] li"
	selHeadings    = "ul[data-v-a9662a08] li h4"
	selCheckout    = `button[data-test="checkout"]`
	selPromo       = ".promo"
	selPromoYes    = ".promo .buttons .yes"
	selPromoNo     = ".promo .buttons button:not(.yes)"
	selCartItems   = ".list>div>ul>.list-item"
	selAddOne      = `button[aria-label*="Add one"]`
	selRemoveOne   = `button[aria-label*="Remove one"]`
	selRemoveAll   = `button[aria-label*="Remove all"]`
	selSnackbarOK  = `div[class="snackbar success"]`
	cartCountRegex = `\((\d+)\)`
)

const fieldTotal = "cartTotal"

// Suite builds the coffee cart scenarios on a UI executor rooted at the
// shop.
type Suite struct {
	ui         *ui.Executor
	cups       int
	promoGrace time.Duration
	logger     *zap.Logger
}

// Option configures a Suite.
type Option func(*Suite)

// WithCups sets how many random cups the purchase scenario adds.
func WithCups(n int) Option {
	return func(s *Suite) {
		if n > 0 {
			s.cups = n
		}
	}
}

// WithPromoGrace sets how long to look for the promo dialog after each
// cup. Zero checks once.
func WithPromoGrace(d time.Duration) Option {
	return func(s *Suite) {
		if d >= 0 {
			s.promoGrace = d
		}
	}
}

// WithLogger sets the suite's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Suite) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Suite.
func New(e *ui.Executor, opts ...Option) *Suite {
	s := &Suite{ui: e, cups: DefaultCups, promoGrace: DefaultPromoGrace, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scenarios returns every coffee cart scenario in run order.
func (s *Suite) Scenarios() []*scenario.Scenario {
	return []*scenario.Scenario{
		s.HeaderLinks(),
		s.HeaderNavigation(),
		s.MenuItems(),
		s.Purchase(),
	}
}

// HeaderLinks checks the three header links exist with their labels.
func (s *Suite) HeaderLinks() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "coffee cart header links",
		Description: "the header shows menu, cart and github links",
		Steps: []scenario.Step{
			s.ui.Interact("open shop", ui.Navigate("/"),
				ui.TextContains(selMenuLink, "menu"),
				ui.TextContains(selCartLink, "cart"),
				ui.TextContains(selGitHubLink, "github"),
			),
		},
	}
}

// HeaderNavigation follows each header link.
func (s *Suite) HeaderNavigation() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "coffee cart header navigation",
		Description: "header links reach the cart, github and menu pages",
		Steps: []scenario.Step{
			s.ui.Interact("open shop", ui.Navigate("/"), ui.Shown(selCartLink)),
			s.ui.Interact("go to cart", ui.ClickOn(selCartLink), ui.PathIs("/cart")),
			s.ui.Interact("go to github", ui.ClickOn(selGitHubLink), ui.PathIs("/github")),
			s.ui.Interact("go to menu", ui.ClickOn(selMenuLink), ui.PathIs("/")),
		},
	}
}

// MenuItems checks the menu is populated and every heading carries a name
// and a positive price.
func (s *Suite) MenuItems() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "coffee cart menu items",
		Description: "every menu item has a name and a price",
		Steps: []scenario.Step{
			s.ui.Interact("menu has items", ui.Navigate("/"), ui.CountAtLeast(selMenuItems, 1)),
			s.ui.Step("items have name and price", func(ctx context.Context, e *ui.Executor, sess *session.Context) error {
				headings, err := e.ReadTexts(ctx, selHeadings)
				if err != nil {
					return err
				}
				for i, h := range headings {
					name, price, err := expect.SplitNamePrice(h)
					if err != nil {
						return fmt.Errorf("menu item %d: %w", i+1, err)
					}
					if err := expect.GreaterThan(name+" price", 0, price); err != nil {
						return err
					}
					s.logger.Debug("menu item", zap.Int("index", i+1), zap.String("name", name), zap.String("price", expect.FormatPrice(price)))
				}
				sess.Set("menuItems", len(headings))
				s.logger.Info("menu checked", zap.Int("items", len(headings)))
				return nil
			}),
		},
	}
}

// Purchase adds random cups, edits the cart and checks out.
func (s *Suite) Purchase() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "coffee cart purchase",
		Description: "add random cups, answer promos, edit the cart and check out",
		Steps: []scenario.Step{
			s.ui.Interact("open shop", ui.Navigate("/"), ui.CountAtLeast(selMenuItems, 1)),
			s.ui.Step(fmt.Sprintf("add %d random cups", s.cups), s.addCups),
			s.ui.Step("cart count matches total", cartMatchesTotal),
			s.ui.Interact("open cart", ui.ClickOn(selCartLink), ui.PathIs("/cart"), ui.CountAtLeast(selCartItems, 1)),
			s.ui.Step("record total", recordTotal),
			s.ui.Step("add one", s.editCart(selAddOne)),
			s.ui.Step("remove one", s.editCart(selRemoveOne)),
			s.ui.Step("remove all", s.editCart(selRemoveAll)),
			s.ui.Interact("proceed to checkout", ui.ClickOn(selProceed), ui.Shown("input#name")),
			s.ui.Interact("submit payment",
				ui.Sequence(
					ui.TypeInto("input#name", CustomerName),
					ui.TypeInto("input#email", CustomerEmail),
					ui.ClickOn(selPromoBox),
					ui.ClickOn("button#submit-payment"),
				),
				ui.CountAtLeast(selSnackbarOK, 1),
			),
		},
	}
}

// addCups clicks random cups and answers each promo offer, accepting and
// declining in turn.
func (s *Suite) addCups(ctx context.Context, e *ui.Executor, sess *session.Context) error {
	accept := true
	answered := 0
	for i := range s.cups {
		texts, err := e.ReadTexts(ctx, selMenuItems)
		if err != nil {
			return err
		}
		cup := fmt.Sprintf("%s:nth-child(%d) .cup", selMenuItems, fixture.PickIndex(len(texts))+1)
		if err := e.Trigger(ctx, cup, "mouseover", "mousedown", "mouseup", "click"); err != nil {
			return fmt.Errorf("cup %d: %w", i+1, err)
		}

		outcome, err := e.Probe(ctx, selPromo, s.promoGrace)
		if err != nil {
			return err
		}
		switch outcome.(type) {
		case ui.Present:
			button := selPromoNo
			if accept {
				button = selPromoYes
			}
			if err := e.Click(ctx, button); err != nil {
				return fmt.Errorf("answering promo: %w", err)
			}
			if err := e.ExpectCount(ctx, selPromo, 0); err != nil {
				return err
			}
			s.logger.Debug("promo answered", zap.Bool("accepted", accept))
			accept = !accept
			answered++
		case ui.Absent:
		}
	}
	sess.Set("promosAnswered", answered)
	return nil
}

// cartMatchesTotal checks the total is zero exactly when the cart is empty.
func cartMatchesTotal(ctx context.Context, e *ui.Executor, sess *session.Context) error {
	label, err := e.ReadText(ctx, selCartLink)
	if err != nil {
		return err
	}
	count, err := expect.ExtractInt(label, cartCountRegex)
	if err != nil {
		return err
	}
	sess.Set("cartCount", count)
	if count > 0 {
		return e.ExpectTextNot(ctx, selCheckout, EmptyTotal)
	}
	return e.ExpectText(ctx, selCheckout, EmptyTotal)
}

func recordTotal(ctx context.Context, e *ui.Executor, sess *session.Context) error {
	total, err := e.ReadText(ctx, selCheckout)
	if err != nil {
		return err
	}
	tracker := expect.NewTracker("cart total")
	tracker.Observe(total)
	sess.Set(fieldTotal, tracker)
	return nil
}

// editCart clicks button on a random cart line and waits for the total to
// change.
func (s *Suite) editCart(button string) func(ctx context.Context, e *ui.Executor, sess *session.Context) error {
	return func(ctx context.Context, e *ui.Executor, sess *session.Context) error {
		v, err := sess.Get(fieldTotal)
		if err != nil {
			return err
		}
		tracker, ok := v.(*expect.Tracker)
		if !ok {
			return fmt.Errorf("%s holds %T, not a total tracker", fieldTotal, v)
		}

		lines, err := e.ReadTexts(ctx, selCartItems)
		if err != nil {
			return err
		}
		if err := e.ClickNth(ctx, selCartItems+" "+button, fixture.PickIndex(len(lines))); err != nil {
			return err
		}
		return e.ExpectTextFunc(ctx, selCheckout, "cart total changes", func(text string) error {
			if err := tracker.Changed(text); err != nil {
				return err
			}
			s.logger.Debug("cart total changed", zap.String("total", text))
			return nil
		})
	}
}
