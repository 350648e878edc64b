package site

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bouvet-sqad/flowcheck/pkg/twincore"
)

func setupSite(t *testing.T) (*State, *httptest.Server, *http.Client) {
	t.Helper()
	state := NewState()
	h, err := NewHandler(state, twincore.NewMiddleware(twincore.StaticSettings(twincore.Config{}), nil), nil)
	require.NoError(t, err)

	r := chi.NewRouter()
	h.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := srv.Client()
	client.Jar = jar
	return state, srv, client
}

func getDoc(t *testing.T, client *http.Client, target string) (*goquery.Document, *url.URL) {
	t.Helper()
	resp, err := client.Get(target)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	return doc, resp.Request.URL
}

func postDoc(t *testing.T, client *http.Client, target string, form url.Values) (*goquery.Document, *url.URL) {
	t.Helper()
	resp, err := client.PostForm(target, form)
	require.NoError(t, err)
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	return doc, resp.Request.URL
}

func flash(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("div#flash b").Text())
}

func TestHomeLinks(t *testing.T) {
	_, srv, client := setupSite(t)
	doc, _ := getDoc(t, client, srv.URL+"/")
	for _, href := range []string{"/inputs", "/add-remove-elements", "/notification-message", "/dynamic-table", "/my-browser", "/login"} {
		assert.Equal(t, 1, doc.Find(`a[href="`+href+`"]`).Length(), "link %s", href)
	}
}

func TestInputsDisplay(t *testing.T) {
	_, srv, client := setupSite(t)
	q := url.Values{
		"input-number":   {"A5982"},
		"input-text":     {"Joachim Holseter"},
		"input-password": {"SQAD"},
		"input-date":     {"1997-02-17"},
		"action":         {"display"},
	}
	doc, _ := getDoc(t, client, srv.URL+"/inputs?"+q.Encode())

	assert.Equal(t, "5982", doc.Find("#output-number").Text())
	assert.Equal(t, "Joachim Holseter", doc.Find("#output-text").Text())
	assert.Equal(t, "SQAD", doc.Find("#output-password").Text())
	assert.Equal(t, "1997-02-17", doc.Find("#output-date").Text())

	cleared, _ := getDoc(t, client, srv.URL+"/inputs?action=clear&input-text=x")
	assert.Equal(t, 0, cleared.Find("#output-text").Length())
	assert.Equal(t, "", cleared.Find("#input-text").AttrOr("value", ""))
}

func TestAddRemoveElements(t *testing.T) {
	_, srv, client := setupSite(t)
	target := srv.URL + "/add-remove-elements"

	doc, _ := getDoc(t, client, target)
	assert.Equal(t, 0, doc.Find("#elements").Children().Length())

	count := 0
	for range 3 {
		doc, _ = postDoc(t, client, target, url.Values{"count": {strconv.Itoa(count)}, "action": {"add"}})
		count = doc.Find(`button[class="added-manually btn btn-info"]`).Length()
	}
	assert.Equal(t, 3, count)

	doc, _ = postDoc(t, client, target, url.Values{"count": {"3"}, "action": {"remove"}})
	assert.Equal(t, 2, doc.Find("#elements").Children().Length())

	doc, _ = postDoc(t, client, target, url.Values{"count": {"0"}, "action": {"remove"}})
	assert.Equal(t, 0, doc.Find("#elements").Children().Length(), "count never goes negative")
}

func TestNotificationCycle(t *testing.T) {
	state, srv, client := setupSite(t)

	var got []string
	for range 4 {
		doc, _ := getDoc(t, client, srv.URL+"/notification-message")
		got = append(got, flash(doc))
	}
	assert.Equal(t, []string{MsgActionFailed, MsgActionFailed, MsgActionOK, MsgActionFailed}, got)

	state.SetOutcomes(true)
	doc, _ := getDoc(t, client, srv.URL+"/notification-message")
	assert.Equal(t, MsgActionOK, flash(doc))
}

func TestDynamicTable(t *testing.T) {
	_, srv, client := setupSite(t)
	doc, _ := getDoc(t, client, srv.URL+"/dynamic-table")

	cpuCol := -1
	doc.Find("div.table-responsive thead th").Each(func(i int, s *goquery.Selection) {
		if s.Text() == "CPU" {
			cpuCol = i
		}
	})
	require.NotEqual(t, -1, cpuCol)

	var chromeCPU string
	doc.Find("div.table-responsive tbody tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.Find("td").First().Text() == "Chrome" {
			chromeCPU = tr.Find("td").Eq(cpuCol).Text()
		}
	})
	require.NotEmpty(t, chromeCPU)
	assert.Equal(t, "Chrome CPU: "+chromeCPU, doc.Find("p#chrome-cpu").Text())
	assert.True(t, strings.HasSuffix(chromeCPU, "%"))
}

func TestBrowserName(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36", "Google Chrome"},
		{"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) HeadlessChrome/126.0.0.0 Safari/537.36", "Google Chrome"},
		{"Mozilla/5.0 (Windows NT 10.0) AppleWebKit/537.36 Chrome/126.0 Safari/537.36 Edg/126.0", "Microsoft Edge"},
		{"Mozilla/5.0 (X11; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0", "Mozilla Firefox"},
		{"Go-http-client/1.1", "Unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BrowserName(tt.ua), tt.ua)
	}
}

func TestBrowserToggle(t *testing.T) {
	_, srv, client := setupSite(t)

	doc, _ := getDoc(t, client, srv.URL+"/my-browser")
	assert.True(t, doc.Find("#browser-info").HasClass("hidden"))

	doc, _ = getDoc(t, client, srv.URL+"/my-browser?show=1")
	assert.False(t, doc.Find("#browser-info").HasClass("hidden"))
	assert.Equal(t, "Unknown", doc.Find("td#browser-name").Text())
}

func TestLoginFlow(t *testing.T) {
	_, srv, client := setupSite(t)

	doc, u := postDoc(t, client, srv.URL+"/authenticate", url.Values{"username": {"JoachimHolseter"}, "password": {"Password1"}})
	assert.Equal(t, "/login", u.Path)
	assert.Contains(t, flash(doc), "invalid")

	doc, _ = getDoc(t, client, srv.URL+"/login")
	assert.Empty(t, flash(doc), "flash is shown once")

	doc, u = postDoc(t, client, srv.URL+"/authenticate", url.Values{"username": {Username}, "password": {"wrong"}})
	assert.Equal(t, "/login", u.Path)
	assert.Equal(t, MsgInvalidPassword, flash(doc))

	doc, u = postDoc(t, client, srv.URL+"/authenticate", url.Values{"username": {Username}, "password": {Password}})
	assert.Equal(t, "/secure", u.Path)
	assert.Equal(t, MsgLoggedIn, flash(doc))
	logout := doc.Find(`a[class="button secondary radius"]`)
	require.Equal(t, 1, logout.Length())

	doc, u = getDoc(t, client, srv.URL+logout.AttrOr("href", ""))
	assert.Equal(t, "/login", u.Path)
	assert.Equal(t, MsgLoggedOut, flash(doc))

	doc, u = getDoc(t, client, srv.URL+"/secure")
	assert.Equal(t, "/login", u.Path)
	assert.Equal(t, MsgLoginRequired, flash(doc))
}

func TestBrokenImages(t *testing.T) {
	_, srv, client := setupSite(t)
	doc, _ := getDoc(t, client, srv.URL+"/broken-images")

	var statuses []int
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		resp, err := client.Get(srv.URL + s.AttrOr("src", ""))
		require.NoError(t, err)
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	})
	assert.ElementsMatch(t, []int{http.StatusNotFound, http.StatusNotFound, http.StatusOK}, statuses)
}

func TestAPI(t *testing.T) {
	_, srv, client := setupSite(t)

	resp, err := client.Get(srv.URL + "/api/health-check")
	require.NoError(t, err)
	defer resp.Body.Close()
	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, map[string]string{"status": "UP", "message": "API is up!"}, health)

	resp2, err := client.Get(srv.URL + "/api/my-ip")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var ip map[string]string
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&ip))
	assert.Equal(t, "127.0.0.1", ip["ip"])
	assert.NotEmpty(t, ip["country"])
}

func TestStateSnapshot(t *testing.T) {
	state := NewState()
	state.NextOutcome()

	data, err := json.Marshal(state.Snapshot())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"notifications_sent":1`)

	require.NoError(t, state.LoadState([]byte(`{"notification_outcomes":[true,false]}`)))
	assert.True(t, state.NextOutcome())
	assert.False(t, state.NextOutcome())

	state.Reset()
	assert.False(t, state.NextOutcome(), "reset restores the default cycle")
	assert.Error(t, state.LoadState([]byte("{bad")))
}
