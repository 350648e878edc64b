// Package shop implements a server-rendered coffee shop for the twin: the
// menu with its promo offer, the cart and the checkout form. Markup keeps
// the labels and test hooks of the real shop so the same scenarios run
// against both.
package shop

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/pkg/twincore"
)

//go:embed templates/*.html
var templateFS embed.FS

// Messages shown by the shop.
const (
	MsgPurchased    = "Thanks for your purchase. Please check your email for payment."
	MsgPromo        = "It's your lucky day! Get an extra cup of Mocha for $4."
	MsgCheckoutForm = "Name and a valid email are required"
)

const cartCookie = "cart"

var pages = []string{"menu", "cart", "checkout", "github"}

// Handler serves the shop.
type Handler struct {
	state    *State
	mw       *twincore.Middleware
	tmpl     map[string]*template.Template
	validate *validator.Validate
	logger   *zap.Logger
}

// NewHandler parses the page templates.
func NewHandler(state *State, mw *twincore.Middleware, logger *zap.Logger) (*Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	funcs := template.FuncMap{"price": FormatPrice}
	tmpl := make(map[string]*template.Template, len(pages))
	for _, p := range pages {
		t, err := template.New(p).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+p+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", p, err)
		}
		tmpl[p] = t
	}
	return &Handler{
		state:    state,
		mw:       mw,
		tmpl:     tmpl,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}, nil
}

// Routes mounts the shop pages and the menu endpoint.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.FaultInjection)

		r.Get("/", h.MenuPage)
		r.Post("/add", h.Add)
		r.Post("/promo", h.Promo)
		r.Get("/cart", h.CartPage)
		r.Post("/cart/update", h.UpdateCart)
		r.Get("/checkout", h.CheckoutPage)
		r.Post("/checkout", h.Checkout)
		r.Get("/github", h.GitHub)
		r.Get("/list.json", h.List)
	})
}

// FormatPrice renders an amount as $12.00.
func FormatPrice(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

type page struct {
	Title string
	Count int
	Data  any
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

// cart returns the visitor's cart id and cart, creating both on first use.
func (h *Handler) cart(w http.ResponseWriter, r *http.Request) (string, Cart) {
	if c, err := r.Cookie(cartCookie); err == nil {
		if cart, ok := h.state.Carts.Get(c.Value); ok {
			return c.Value, cart
		}
	}
	id := uuid.NewString()
	h.state.Carts.Set(id, Cart{})
	http.SetCookie(w, &http.Cookie{Name: cartCookie, Value: id, Path: "/", HttpOnly: true})
	return id, Cart{}
}

func (h *Handler) update(id string, fn func(Cart) Cart) {
	h.state.Carts.Update(id, func(c Cart) (Cart, error) { return fn(c), nil })
}

func lookup(name string) (Coffee, bool) {
	for _, c := range Menu {
		if c.Name == name {
			return c, true
		}
	}
	return Coffee{}, false
}

type menuData struct {
	Menu      []Coffee
	Total     float64
	PromoOpen bool
	Promo     string
	Snackbar  string
}

// MenuPage handles GET /. A pending snackbar is shown once.
func (h *Handler) MenuPage(w http.ResponseWriter, r *http.Request) {
	id, cart := h.cart(w, r)
	if cart.Snackbar != "" {
		h.update(id, func(c Cart) Cart { c.Snackbar = ""; return c })
	}
	h.render(w, "menu", page{Title: "Coffee cart", Count: cart.Count(), Data: menuData{
		Menu:      Menu,
		Total:     cart.Total(),
		PromoOpen: cart.PromoOpen,
		Promo:     MsgPromo,
		Snackbar:  cart.Snackbar,
	}})
}

// Add handles POST /add: one cup of the named coffee. Every PromoEvery-th
// cup opens the promo offer.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	item, ok := lookup(r.PostForm.Get("name"))
	if !ok {
		http.Error(w, "unknown coffee", http.StatusBadRequest)
		return
	}
	every := h.state.PromoEvery()
	id, _ := h.cart(w, r)
	h.update(id, func(c Cart) Cart {
		c = c.add(item)
		c.Added++
		if every > 0 && c.Added%every == 0 {
			c.PromoOpen = true
		}
		return c
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Promo handles POST /promo: accept adds the discounted cup, anything else
// declines. The offer closes either way.
func (h *Handler) Promo(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	accept := r.PostForm.Get("accept") == "yes"
	id, _ := h.cart(w, r)
	h.update(id, func(c Cart) Cart {
		if c.PromoOpen && accept {
			c = c.add(PromoItem)
		}
		c.PromoOpen = false
		return c
	})
	h.logger.Debug("promo answered", zap.Bool("accepted", accept))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// CartPage handles GET /cart.
func (h *Handler) CartPage(w http.ResponseWriter, r *http.Request) {
	_, cart := h.cart(w, r)
	h.render(w, "cart", page{Title: "Cart", Count: cart.Count(), Data: cart})
}

// UpdateCart handles POST /cart/update with op add, remove or delete.
func (h *Handler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name := r.PostForm.Get("name")
	id, _ := h.cart(w, r)
	h.update(id, func(c Cart) Cart {
		switch r.PostForm.Get("op") {
		case "add":
			for _, l := range c.Lines {
				if l.Name == name {
					return c.add(Coffee{Name: l.Name, Price: l.Price})
				}
			}
		case "remove":
			return c.removeOne(name)
		case "delete":
			return c.removeAll(name)
		}
		return c
	})
	http.Redirect(w, r, "/cart", http.StatusSeeOther)
}

type checkoutForm struct {
	Name      string `validate:"required"`
	Email     string `validate:"required,email"`
	Promotion bool
	Error     string
}

// CheckoutPage handles GET /checkout.
func (h *Handler) CheckoutPage(w http.ResponseWriter, r *http.Request) {
	_, cart := h.cart(w, r)
	h.render(w, "checkout", page{Title: "Payment details", Count: cart.Count(), Data: checkoutForm{}})
}

// Checkout handles POST /checkout: records the order, empties the cart and
// shows the success snackbar on the menu.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	form := checkoutForm{
		Name:      strings.TrimSpace(r.PostForm.Get("name")),
		Email:     strings.TrimSpace(r.PostForm.Get("email")),
		Promotion: r.PostForm.Get("promotion") != "",
	}
	id, cart := h.cart(w, r)
	if err := h.validate.Struct(form); err != nil {
		form.Error = MsgCheckoutForm
		h.render(w, "checkout", page{Title: "Payment details", Count: cart.Count(), Data: form})
		return
	}

	order := Order{
		ID:        h.state.Orders.NextID(),
		Name:      form.Name,
		Email:     form.Email,
		Promotion: form.Promotion,
		Lines:     cart.Lines,
		Total:     cart.Total(),
		CreatedAt: h.state.Clock.Now(),
	}
	h.state.Orders.Set(order.ID, order)
	h.update(id, func(Cart) Cart { return Cart{Snackbar: MsgPurchased} })
	h.logger.Debug("order placed", zap.String("order_id", order.ID), zap.Float64("total", order.Total))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// GitHub handles GET /github.
func (h *Handler) GitHub(w http.ResponseWriter, r *http.Request) {
	_, cart := h.cart(w, r)
	h.render(w, "github", page{Title: "GitHub", Count: cart.Count()})
}

// List handles GET /list.json: the menu as JSON.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, Menu)
}
