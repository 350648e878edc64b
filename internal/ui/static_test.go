package ui

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginPage = `<!doctype html>
<html><body>
<div id="flash" style="display: none">hidden</div>
<form id="login" action="/authenticate" method="post">
  <input id="username" name="username" type="text">
  <input id="password" name="password" type="password">
  <input id="remember" name="remember" type="checkbox" value="yes">
  <button id="submit-login" type="submit">Login</button>
</form>
<a href="/about">About</a>
<ul><li class="item">one</li><li class="item">two</li></ul>
</body></html>`

func siteServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, loginPage)
	})
	mux.HandleFunc("POST /authenticate", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		http.SetCookie(w, &http.Cookie{Name: "user", Value: r.PostForm.Get("username"), Path: "/"})
		http.Redirect(w, r, "/secure?remember="+r.PostForm.Get("remember"), http.StatusSeeOther)
	})
	mux.HandleFunc("GET /secure", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("user")
		if err != nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		fmt.Fprintf(w, `<div id="flash">Welcome %s (%s)</div>`, c.Value, r.URL.Query().Get("remember"))
	})
	mux.HandleFunc("GET /about", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<h1>About</h1>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestStaticDriverFormFlow(t *testing.T) {
	srv := siteServer(t)
	d, err := NewStaticDriver(nil)
	require.NoError(t, err)
	e := fastExecutor(d, WithBaseURL(srv.URL))
	ctx := context.Background()

	require.NoError(t, e.Visit(ctx, "/login"))
	require.NoError(t, e.ExpectCount(ctx, ".item", 2))

	visible, err := d.Visible(ctx, "#flash")
	require.NoError(t, err)
	assert.False(t, visible)

	require.NoError(t, e.Type(ctx, "#username", "prac"))
	require.NoError(t, e.Type(ctx, "#username", "tice"))
	require.NoError(t, e.Click(ctx, "#remember"))
	require.NoError(t, e.Click(ctx, "#submit-login"))

	require.NoError(t, e.ExpectPath(ctx, "/secure"))
	require.NoError(t, e.ExpectText(ctx, "#flash", "Welcome practice (yes)"))
	require.NoError(t, e.ExpectVisible(ctx, "#flash"))
}

func TestStaticDriverLinksAndErrors(t *testing.T) {
	srv := siteServer(t)
	d, err := NewStaticDriver(srv.Client())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = d.Texts(ctx, "h1")
	assert.ErrorIs(t, err, errNoPage)

	require.NoError(t, d.Navigate(ctx, srv.URL+"/login"))
	require.NoError(t, d.Click(ctx, ByHref("/about")))

	texts, err := d.Texts(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, []string{"About"}, texts)

	assert.ErrorIs(t, d.Click(ctx, "#nope"), ErrNotFound)
	assert.Error(t, d.Click(ctx, "h1"), "headings are not clickable without scripts")
}

func TestChromeDriver(t *testing.T) {
	if os.Getenv("FLOWCHECK_CHROME") != "1" {
		t.Skip("set FLOWCHECK_CHROME=1 to run browser tests")
	}
	srv := siteServer(t)

	d, err := NewChromeDriver(context.Background(), ChromeOptions{Headless: true})
	require.NoError(t, err)
	t.Cleanup(d.Close)

	e := NewExecutor(d, WithBaseURL(srv.URL), WithTimeout(10*time.Second))
	ctx := context.Background()

	require.NoError(t, e.Visit(ctx, "/login"))
	require.NoError(t, e.Type(ctx, "#username", "practice"))
	require.NoError(t, e.Click(ctx, "#submit-login"))
	require.NoError(t, e.ExpectPath(ctx, "/secure"))
	require.NoError(t, e.ExpectTextContains(ctx, "#flash", "Welcome practice"))

	var title string
	require.NoError(t, d.Evaluate(ctx, `document.querySelector("#flash").id`, &title))
	assert.Equal(t, "flash", title)
}
