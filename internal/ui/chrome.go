package ui

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/chromedp"
)

// ChromeOptions configures the browser behind a ChromeDriver.
type ChromeOptions struct {
	Headless bool
	Width    int
	Height   int
	// ExecPath overrides Chrome discovery.
	ExecPath string
}

// ChromeDriver drives a real Chrome tab through the DevTools protocol.
type ChromeDriver struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewChromeDriver starts a browser with one tab. The browser lives until
// Close or until parent is cancelled.
func NewChromeDriver(parent context.Context, o ChromeOptions) (*ChromeDriver, error) {
	if o.Width == 0 || o.Height == 0 {
		o.Width, o.Height = 1280, 720
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(o.Width, o.Height),
	)
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run binds the browser to browserCtx; it must not carry a
	// deadline or the browser dies with it.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("starting chrome: %w", err)
	}

	return &ChromeDriver{
		ctx: browserCtx,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
	}, nil
}

// Close shuts the browser down.
func (d *ChromeDriver) Close() {
	d.cancel()
}

// run executes actions on the tab, bounded by ctx's deadline and
// cancellation.
func (d *ChromeDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(d.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (d *ChromeDriver) eval(ctx context.Context, out any, format string, args ...any) error {
	quoted := make([]any, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return err
		}
		quoted[i] = string(b)
	}
	return d.run(ctx, chromedp.Evaluate(fmt.Sprintf(format, quoted...), out))
}

func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, chromedp.Navigate(url))
}

func (d *ChromeDriver) Click(ctx context.Context, selector string) error {
	return d.ClickNth(ctx, selector, 0)
}

const clickScript = `(function(sel, n) {
	const els = document.querySelectorAll(sel);
	if (els.length <= n) return false;
	els[n].scrollIntoView({block: "center"});
	els[n].click();
	return true;
})(%s, %s)`

func (d *ChromeDriver) ClickNth(ctx context.Context, selector string, n int) error {
	var ok bool
	if err := d.eval(ctx, &ok, clickScript, selector, n); err != nil {
		return err
	}
	if !ok {
		return notFound(selector)
	}
	return nil
}

func (d *ChromeDriver) Type(ctx context.Context, selector, text string) error {
	n, err := d.count(ctx, selector)
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(selector)
	}
	return d.run(ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

const triggerScript = `(function(sel, events) {
	const el = document.querySelector(sel);
	if (!el) return false;
	for (const ev of events) {
		if (ev === "click") { el.click(); continue; }
		el.dispatchEvent(new MouseEvent(ev, {bubbles: true, cancelable: true, view: window}));
	}
	return true;
})(%s, %s)`

func (d *ChromeDriver) Trigger(ctx context.Context, selector string, events ...string) error {
	var ok bool
	if err := d.eval(ctx, &ok, triggerScript, selector, events); err != nil {
		return err
	}
	if !ok {
		return notFound(selector)
	}
	return nil
}

const textsScript = `Array.from(document.querySelectorAll(%s)).map(e => e.innerText || e.textContent || e.value || "")`

func (d *ChromeDriver) Texts(ctx context.Context, selector string) ([]string, error) {
	var texts []string
	if err := d.eval(ctx, &texts, textsScript, selector); err != nil {
		return nil, err
	}
	if texts == nil {
		texts = []string{}
	}
	return texts, nil
}

func (d *ChromeDriver) count(ctx context.Context, selector string) (int, error) {
	var n int
	err := d.eval(ctx, &n, `document.querySelectorAll(%s).length`, selector)
	return n, err
}

const visibleScript = `(function(sel) {
	const el = document.querySelector(sel);
	if (!el) return false;
	const s = window.getComputedStyle(el);
	return s.display !== "none" && s.visibility !== "hidden" && el.getClientRects().length > 0;
})(%s)`

func (d *ChromeDriver) Visible(ctx context.Context, selector string) (bool, error) {
	var ok bool
	err := d.eval(ctx, &ok, visibleScript, selector)
	return ok, err
}

func (d *ChromeDriver) Location(ctx context.Context) (string, error) {
	var loc string
	err := d.run(ctx, chromedp.Location(&loc))
	return loc, err
}

// Evaluate runs a page script and decodes its result into out.
func (d *ChromeDriver) Evaluate(ctx context.Context, expression string, out any) error {
	return d.run(ctx, chromedp.Evaluate(expression, out))
}
