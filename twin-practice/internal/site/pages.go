package site

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/bouvet-sqad/flowcheck/pkg/twincore"
)

// --- Inputs ---

type inputsData struct {
	Display  bool
	Number   string
	Text     string
	Password string
	Date     string
}

// Inputs handles GET /inputs. The number field keeps digits only, the way a
// browser's number input drops other keystrokes.
func (h *Handler) Inputs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := inputsData{}
	if q.Get("action") == "display" {
		data = inputsData{
			Display:  true,
			Number:   digitsOnly(q.Get("input-number")),
			Text:     q.Get("input-text"),
			Password: q.Get("input-password"),
			Date:     q.Get("input-date"),
		}
	}
	h.render(w, "inputs", page{Title: "Web inputs page for Automation Testing Practice", Data: data})
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
}

// --- Add/remove elements ---

// Elements handles /add-remove-elements. The element count travels in a
// hidden field, so each submit renders the next state.
func (h *Handler) Elements(w http.ResponseWriter, r *http.Request) {
	count := 0
	if r.Method == http.MethodPost {
		_ = r.ParseForm()
		count, _ = strconv.Atoi(r.PostForm.Get("count"))
		switch r.PostForm.Get("action") {
		case "add":
			count++
		case "remove":
			count--
		}
		count = max(count, 0)
	}
	h.render(w, "elements", page{Title: "Add/Remove Elements", Data: count})
}

// --- Notification message ---

// Notification handles GET /notification-message. Each load takes the next
// outcome from the configured cycle.
func (h *Handler) Notification(w http.ResponseWriter, r *http.Request) {
	p := page{Title: "Notification Message", Flash: MsgActionFailed}
	if h.state.NextOutcome() {
		p.Flash, p.FlashOK = MsgActionOK, true
	}
	h.render(w, "notification", p)
}

// --- Dynamic table ---

type tableData struct {
	Columns   []string
	Rows      [][]string
	ChromeCPU string
}

var (
	processes = []string{"Chrome", "Firefox", "Internet Explorer", "System"}
	metrics   = []string{"CPU", "Memory", "Network", "Disk"}
)

// DynamicTable handles GET /dynamic-table: column order, row order and
// values change on every load.
func (h *Handler) DynamicTable(w http.ResponseWriter, r *http.Request) {
	cols := append([]string(nil), metrics...)
	rand.Shuffle(len(cols), func(i, j int) { cols[i], cols[j] = cols[j], cols[i] })
	rows := append([]string(nil), processes...)
	rand.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })

	data := tableData{Columns: append([]string{"Name"}, cols...)}
	for _, name := range rows {
		row := []string{name}
		for _, c := range cols {
			v := metricValue(c)
			if name == "Chrome" && c == "CPU" {
				data.ChromeCPU = v
			}
			row = append(row, v)
		}
		data.Rows = append(data.Rows, row)
	}
	h.render(w, "table", page{Title: "Dynamic Table", Data: data})
}

func metricValue(metric string) string {
	switch metric {
	case "CPU":
		return fmt.Sprintf("%.1f%%", rand.Float64()*10)
	case "Memory":
		return fmt.Sprintf("%.1f MB", 10+rand.Float64()*90)
	case "Network":
		return fmt.Sprintf("%.1f Mbps", rand.Float64()*10)
	default:
		return fmt.Sprintf("%.1f MB/s", rand.Float64()*5)
	}
}

// --- Browser information ---

type browserData struct {
	Show      bool
	Name      string
	UserAgent string
}

// Browser handles GET /my-browser.
func (h *Handler) Browser(w http.ResponseWriter, r *http.Request) {
	ua := r.UserAgent()
	h.render(w, "browser", page{Title: "My Browser Information", Data: browserData{
		Show:      r.URL.Query().Get("show") == "1",
		Name:      BrowserName(ua),
		UserAgent: ua,
	}})
}

// BrowserName maps a User-Agent to the display name the page shows.
func BrowserName(ua string) string {
	switch {
	case strings.Contains(ua, "Edg/"):
		return "Microsoft Edge"
	case strings.Contains(ua, "Firefox/"):
		return "Mozilla Firefox"
	case strings.Contains(ua, "Chrome/"):
		return "Google Chrome"
	case strings.Contains(ua, "Safari/"):
		return "Safari"
	default:
		return "Unknown"
	}
}

// --- Login ---

// session returns the caller's session, creating one (and its cookie) when
// create is set.
func (h *Handler) session(w http.ResponseWriter, r *http.Request, create bool) (string, Session, bool) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if s, ok := h.state.Sessions.Get(c.Value); ok {
			return c.Value, s, true
		}
	}
	if !create {
		return "", Session{}, false
	}
	id := uuid.NewString()
	h.state.Sessions.Set(id, Session{})
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: id, Path: "/", HttpOnly: true})
	return id, Session{}, true
}

// redirectWithFlash stores a one-shot flash message on session id and
// redirects.
func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, id, to, msg string, ok bool) {
	h.state.Sessions.Update(id, func(s Session) (Session, error) {
		s.Flash, s.FlashOK = msg, ok
		return s, nil
	})
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// takeFlash returns and clears the session's flash message.
func (h *Handler) takeFlash(id string) (string, bool) {
	var msg string
	var ok bool
	h.state.Sessions.Update(id, func(s Session) (Session, error) {
		msg, ok = s.Flash, s.FlashOK
		s.Flash, s.FlashOK = "", false
		return s, nil
	})
	return msg, ok
}

// LoginPage handles GET /login.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	p := page{Title: "Test Login page for Automation Testing Practice"}
	if id, _, ok := h.session(w, r, false); ok {
		p.Flash, p.FlashOK = h.takeFlash(id)
	}
	h.render(w, "login", p)
}

// Authenticate handles POST /authenticate.
func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, _, _ := h.session(w, r, true)
	switch {
	case r.PostForm.Get("username") != Username:
		h.redirectWithFlash(w, r, id, "/login", MsgInvalidUsername, false)
	case r.PostForm.Get("password") != Password:
		h.redirectWithFlash(w, r, id, "/login", MsgInvalidPassword, false)
	default:
		h.state.Sessions.Update(id, func(s Session) (Session, error) {
			s.Username = Username
			return s, nil
		})
		h.redirectWithFlash(w, r, id, "/secure", MsgLoggedIn, true)
	}
}

// Secure handles GET /secure.
func (h *Handler) Secure(w http.ResponseWriter, r *http.Request) {
	id, s, _ := h.session(w, r, true)
	if !s.Authenticated() {
		h.redirectWithFlash(w, r, id, "/login", MsgLoginRequired, false)
		return
	}
	flash, flashOK := h.takeFlash(id)
	h.render(w, "secure", page{Title: "Secure Area page for Automation Testing Practice", Flash: flash, FlashOK: flashOK, Data: s.Username})
}

// Logout handles GET /logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	id, _, _ := h.session(w, r, true)
	h.state.Sessions.Update(id, func(s Session) (Session, error) {
		s.Username = ""
		return s, nil
	})
	h.redirectWithFlash(w, r, id, "/login", MsgLoggedOut, true)
}

// --- Broken images ---

// BrokenImages handles GET /broken-images: two of the three images 404.
func (h *Handler) BrokenImages(w http.ResponseWriter, r *http.Request) {
	h.render(w, "images", page{Title: "Broken Images", Data: []string{"/img/broken-1.jpg", "/img/broken-2.jpg", "/img/avatar.png"}})
}

// Avatar serves the one working image.
func (h *Handler) Avatar(w http.ResponseWriter, r *http.Request) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := range 8 {
		for y := range 8 {
			img.Set(x, y, color.RGBA{R: 0x33, G: 0x66, B: 0x99, A: 0xff})
		}
	}
	w.Header().Set("Content-Type", "image/png")
	png.Encode(w, img)
}

// --- API ---

// HealthCheck handles GET /api/health-check.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, map[string]string{"status": "UP", "message": "API is up!"})
}

// MyIP handles GET /api/my-ip. The twin has no geo database, so location
// is fixed.
func (h *Handler) MyIP(w http.ResponseWriter, r *http.Request) {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	twincore.JSON(w, http.StatusOK, map[string]string{"ip": ip, "city": "Oslo", "country": "Norway"})
}
