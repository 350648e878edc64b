// Package site implements the practice site's pages and JSON endpoints for
// the twin. Pages are server-rendered so both the browser and the
// browserless driver can exercise them.
package site

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/pkg/twincore"
)

//go:embed templates/*.html
var templateFS embed.FS

// Credentials accepted by the login form.
const (
	Username = "practice"
	Password = "SuperSecretPassword!"
)

// Flash messages.
const (
	MsgLoggedIn        = "You logged into a secure area!"
	MsgLoggedOut       = "You logged out of the secure area!"
	MsgInvalidUsername = "Your username is invalid!"
	MsgInvalidPassword = "Your password is invalid!"
	MsgLoginRequired   = "You must login to view the secure area!"
	MsgActionOK        = "Action successful"
	MsgActionFailed    = "Action unsuccessful, please try again"
)

const sessionCookie = "sid"

var pages = []string{"home", "inputs", "elements", "notification", "table", "browser", "login", "secure", "images"}

// Handler serves the site.
type Handler struct {
	state  *State
	mw     *twincore.Middleware
	tmpl   map[string]*template.Template
	logger *zap.Logger
}

// NewHandler parses the page templates.
func NewHandler(state *State, mw *twincore.Middleware, logger *zap.Logger) (*Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	funcs := template.FuncMap{"seq": func(n int) []struct{} { return make([]struct{}, max(n, 0)) }}
	tmpl := make(map[string]*template.Template, len(pages))
	for _, p := range pages {
		t, err := template.New(p).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+p+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", p, err)
		}
		tmpl[p] = t
	}
	return &Handler{state: state, mw: mw, tmpl: tmpl, logger: logger}, nil
}

// Routes mounts the site's pages and API endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.FaultInjection)

		r.Get("/", h.Home)
		r.Get("/inputs", h.Inputs)
		r.Get("/add-remove-elements", h.Elements)
		r.Post("/add-remove-elements", h.Elements)
		r.Get("/notification-message", h.Notification)
		r.Get("/dynamic-table", h.DynamicTable)
		r.Get("/my-browser", h.Browser)
		r.Get("/login", h.LoginPage)
		r.Post("/authenticate", h.Authenticate)
		r.Get("/secure", h.Secure)
		r.Get("/logout", h.Logout)
		r.Get("/broken-images", h.BrokenImages)
		r.Get("/img/avatar.png", h.Avatar)

		r.Get("/api/health-check", h.HealthCheck)
		r.Get("/api/my-ip", h.MyIP)
	})
}

// page is the data every template renders.
type page struct {
	Title   string
	Flash   string
	FlashOK bool
	Data    any
}

func (h *Handler) render(w http.ResponseWriter, name string, p page) {
	var buf bytes.Buffer
	if err := h.tmpl[name].ExecuteTemplate(&buf, "layout", p); err != nil {
		h.logger.Error("rendering page", zap.String("page", name), zap.Error(err))
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// Home handles GET /.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, "home", page{Title: "Automation Testing Practice Website"})
}
