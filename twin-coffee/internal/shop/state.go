package shop

import (
	"encoding/json"
	"math"
	"slices"
	"sync"
	"time"

	pkgstore "github.com/bouvet-sqad/flowcheck/pkg/store"
)

// Coffee is a menu entry.
type Coffee struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Menu is the shop's fixed menu.
var Menu = []Coffee{
	{"Espresso", 10},
	{"Espresso Macchiato", 12},
	{"Cappuccino", 19},
	{"Mocha", 8},
	{"Flat White", 18},
	{"Americano", 7},
	{"Cafe Latte", 16},
	{"Espresso Con Panna", 14},
	{"Cafe Breve", 15},
}

// PromoItem is what an accepted promo adds to the cart.
var PromoItem = Coffee{Name: "(Discounted) Mocha", Price: 4}

// DefaultPromoEvery opens the promo after every third cup.
const DefaultPromoEvery = 3

// Line is one coffee in a cart.
type Line struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// Subtotal is price times quantity.
func (l Line) Subtotal() float64 { return l.Price * float64(l.Quantity) }

// Cart is a visitor's cart, keyed by the cart cookie.
type Cart struct {
	Lines     []Line `json:"lines"`
	Added     int    `json:"added"`
	PromoOpen bool   `json:"promo_open,omitempty"`
	Snackbar  string `json:"snackbar,omitempty"`
}

// Count is the number of cups in the cart.
func (c Cart) Count() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Total is the cart's price rounded to cents.
func (c Cart) Total() float64 {
	var t float64
	for _, l := range c.Lines {
		t += l.Subtotal()
	}
	return math.Round(t*100) / 100
}

func (c Cart) add(item Coffee) Cart {
	c.Lines = slices.Clone(c.Lines)
	for i := range c.Lines {
		if c.Lines[i].Name == item.Name {
			c.Lines[i].Quantity++
			return c
		}
	}
	c.Lines = append(c.Lines, Line{Name: item.Name, Price: item.Price, Quantity: 1})
	return c
}

func (c Cart) removeOne(name string) Cart {
	c.Lines = slices.Clone(c.Lines)
	for i := range c.Lines {
		if c.Lines[i].Name == name {
			c.Lines[i].Quantity--
		}
	}
	c.Lines = slices.DeleteFunc(c.Lines, func(l Line) bool { return l.Quantity <= 0 })
	return c
}

func (c Cart) removeAll(name string) Cart {
	c.Lines = slices.DeleteFunc(slices.Clone(c.Lines), func(l Line) bool { return l.Name == name })
	return c
}

// Order is a completed checkout.
type Order struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Promotion bool      `json:"promotion"`
	Lines     []Line    `json:"lines"`
	Total     float64   `json:"total"`
	CreatedAt time.Time `json:"created_at"`
}

// State is the shop's mutable state.
type State struct {
	Carts  *pkgstore.Store[Cart]
	Orders *pkgstore.Store[Order]
	Clock  *pkgstore.Clock

	mu         sync.Mutex
	promoEvery int
}

// NewState creates an empty shop.
func NewState() *State {
	return &State{
		Carts:      pkgstore.New[Cart]("ca"),
		Orders:     pkgstore.New[Order]("0d"),
		Clock:      pkgstore.NewClock(),
		promoEvery: DefaultPromoEvery,
	}
}

// PromoEvery returns how many cups open the promo. Zero disables it.
func (s *State) PromoEvery() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promoEvery
}

// SetPromoEvery changes the promo interval; n <= 0 disables the promo.
func (s *State) SetPromoEvery(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promoEvery = max(n, 0)
}

type stateSnapshot struct {
	Carts      map[string]Cart  `json:"carts"`
	Orders     map[string]Order `json:"orders"`
	PromoEvery *int             `json:"promo_every,omitempty"`
}

// Snapshot returns the full state as a JSON-serializable value.
func (s *State) Snapshot() any {
	every := s.PromoEvery()
	return stateSnapshot{
		Carts:      s.Carts.Snapshot(),
		Orders:     s.Orders.Snapshot(),
		PromoEvery: &every,
	}
}

// LoadState replaces carts and orders. An omitted promo interval keeps the
// current one.
func (s *State) LoadState(data []byte) error {
	var snap stateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	if snap.Carts != nil {
		s.Carts.LoadSnapshot(snap.Carts)
	}
	if snap.Orders != nil {
		s.Orders.LoadSnapshot(snap.Orders)
	}
	if snap.PromoEvery != nil {
		s.SetPromoEvery(*snap.PromoEvery)
	}
	return nil
}

// Reset empties the shop and restores the default promo interval.
func (s *State) Reset() {
	s.Carts.Reset()
	s.Orders.Reset()
	s.Clock.Reset()
	s.SetPromoEvery(DefaultPromoEvery)
}
