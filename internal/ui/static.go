package ui

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

var errNoPage = errors.New("no page loaded")

// StaticDriver is a browserless Driver for server-rendered pages. It parses
// HTML with goquery, follows links and submits forms over HTTP with a
// cookie jar. Scripts never run, so pages that render client-side need the
// ChromeDriver.
type StaticDriver struct {
	client *http.Client

	mu      sync.Mutex
	current *url.URL
	doc     *goquery.Document
}

// NewStaticDriver creates a driver on client, adding a cookie jar when it
// has none. A nil client gets a fresh one.
func NewStaticDriver(client *http.Client) (*StaticDriver, error) {
	c := &http.Client{}
	if client != nil {
		cp := *client
		c = &cp
	}
	if c.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c.Jar = jar
	}
	return &StaticDriver{client: c}, nil
}

func (d *StaticDriver) Navigate(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return d.load(req)
}

func (d *StaticDriver) load(req *http.Request) error {
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", req.URL, err)
	}

	d.mu.Lock()
	d.current = resp.Request.URL
	d.doc = doc
	d.mu.Unlock()
	return nil
}

func (d *StaticDriver) page() (*goquery.Document, *url.URL, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return nil, nil, errNoPage
	}
	return d.doc, d.current, nil
}

func (d *StaticDriver) Click(ctx context.Context, selector string) error {
	return d.ClickNth(ctx, selector, 0)
}

func (d *StaticDriver) ClickNth(ctx context.Context, selector string, n int) error {
	doc, current, err := d.page()
	if err != nil {
		return err
	}
	matches := doc.Find(selector)
	if matches.Length() <= n {
		return notFound(selector)
	}
	el := matches.Eq(n)

	switch goquery.NodeName(el) {
	case "a":
		href, ok := el.Attr("href")
		if !ok {
			return fmt.Errorf("%s has no href", selector)
		}
		return d.Navigate(ctx, resolveRef(current, href))
	case "input":
		switch typ, _ := el.Attr("type"); typ {
		case "checkbox", "radio":
			if _, checked := el.Attr("checked"); checked {
				el.RemoveAttr("checked")
			} else {
				el.SetAttr("checked", "checked")
			}
			return nil
		case "submit", "button", "image":
			return d.submit(ctx, current, el)
		}
	case "button":
		return d.submit(ctx, current, el)
	}
	return fmt.Errorf("clicking <%s> %s needs a script-capable driver", goquery.NodeName(el), selector)
}

// submit posts the form enclosing submitter, the way a browser would.
func (d *StaticDriver) submit(ctx context.Context, current *url.URL, submitter *goquery.Selection) error {
	form := submitter.Closest("form")
	if form.Length() == 0 {
		return fmt.Errorf("button is not inside a form")
	}

	values := url.Values{}
	form.Find("input[name], textarea[name], select[name]").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		switch goquery.NodeName(s) {
		case "textarea":
			values.Add(name, s.Text())
			return
		case "select":
			opt := s.Find("option[selected]").First()
			if opt.Length() == 0 {
				opt = s.Find("option").First()
			}
			if v, ok := opt.Attr("value"); ok {
				values.Add(name, v)
			} else {
				values.Add(name, strings.TrimSpace(opt.Text()))
			}
			return
		}
		typ, _ := s.Attr("type")
		switch typ {
		case "submit", "button", "image", "reset":
			return
		case "checkbox", "radio":
			if _, checked := s.Attr("checked"); !checked {
				return
			}
			values.Add(name, s.AttrOr("value", "on"))
			return
		}
		values.Add(name, s.AttrOr("value", ""))
	})
	if name, ok := submitter.Attr("name"); ok {
		values.Add(name, submitter.AttrOr("value", ""))
	}

	action := resolveRef(current, form.AttrOr("action", current.String()))
	method := strings.ToUpper(form.AttrOr("method", http.MethodGet))

	var req *http.Request
	var err error
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, action, strings.NewReader(values.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		u, perr := url.Parse(action)
		if perr != nil {
			return perr
		}
		u.RawQuery = values.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	}
	if err != nil {
		return err
	}
	return d.load(req)
}

func (d *StaticDriver) Type(ctx context.Context, selector, text string) error {
	doc, _, err := d.page()
	if err != nil {
		return err
	}
	el := doc.Find(selector).First()
	if el.Length() == 0 {
		return notFound(selector)
	}
	if goquery.NodeName(el) == "textarea" {
		el.SetText(el.Text() + text)
		return nil
	}
	el.SetAttr("value", el.AttrOr("value", "")+text)
	return nil
}

// Trigger only understands click; other events need scripts, so the
// element's presence is all that is checked.
func (d *StaticDriver) Trigger(ctx context.Context, selector string, events ...string) error {
	for _, ev := range events {
		if ev == "click" {
			return d.Click(ctx, selector)
		}
	}
	doc, _, err := d.page()
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return notFound(selector)
	}
	return nil
}

func (d *StaticDriver) Texts(ctx context.Context, selector string) ([]string, error) {
	doc, _, err := d.page()
	if err != nil {
		return nil, err
	}
	texts := []string{}
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		t := strings.TrimSpace(s.Text())
		if t == "" && goquery.NodeName(s) == "input" {
			t = s.AttrOr("value", "")
		}
		texts = append(texts, t)
	})
	return texts, nil
}

func (d *StaticDriver) Visible(ctx context.Context, selector string) (bool, error) {
	doc, _, err := d.page()
	if err != nil {
		return false, err
	}
	el := doc.Find(selector).First()
	if el.Length() == 0 {
		return false, nil
	}
	hidden := false
	el.AddSelection(el.Parents()).Each(func(_ int, s *goquery.Selection) {
		if _, ok := s.Attr("hidden"); ok {
			hidden = true
		}
		style := strings.ReplaceAll(s.AttrOr("style", ""), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			hidden = true
		}
	})
	return !hidden, nil
}

func (d *StaticDriver) Location(ctx context.Context) (string, error) {
	_, current, err := d.page()
	if err != nil {
		return "", err
	}
	return current.String(), nil
}

func resolveRef(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil || base == nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
