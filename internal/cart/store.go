// internal/cart/store.go
//
// The cart store holds the user's pending selection of products and
// quantities. It lives in memory, mirrored to a persistent file after every
// mutation, and stays independent of the backend until checkout. The store
// has a single owner (the TUI model), so mutations never interleave and no
// locking is needed.

package cart

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sieger/storefront/internal/catalog"
)

// Line pairs a product snapshot with a requested quantity. At most one line
// exists per product identifier.
type Line struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

// LineTotal returns the line's price contribution.
func (l Line) LineTotal() float64 {
	return l.Product.Price * float64(l.Quantity)
}

// Totals is the derived view over the current line list, recomputed on every
// read so it can never diverge from the lines.
type Totals struct {
	ItemCount int
	Subtotal  float64
	Total     float64
}

// Warning signals that a requested quantity was clamped to the last known
// stock. It is advisory: the mutation still happened with the clamped value.
type Warning struct {
	ProductID string
	Requested int
	Available int
}

// Message renders the user-facing warning text.
func (w *Warning) Message() string {
	if w == nil {
		return ""
	}
	return fmt.Sprintf("Insufficient stock: only %d available", w.Available)
}

// Storage mirrors the line list across restarts. Implementations must treat
// a missing mirror as an empty cart.
type Storage interface {
	Load() ([]Line, error)
	Save(lines []Line) error
	Clear() error
}

// Store is the in-memory cart with its persisted mirror.
type Store struct {
	lines   []Line
	storage Storage
	log     zerolog.Logger
}

// NewStore builds a store over the given mirror, loading any persisted lines.
// Lines that fail basic sanity (quantity below one) are dropped. A load
// failure is logged and yields an empty cart; it never fails construction.
func NewStore(storage Storage, log zerolog.Logger) *Store {
	s := &Store{storage: storage, log: log}
	if storage == nil {
		return s
	}
	lines, err := storage.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load cart from storage")
		return s
	}
	for _, line := range lines {
		if line.Quantity < 1 || line.Product.ID == "" {
			continue
		}
		s.lines = append(s.lines, line)
	}
	return s
}

// AddItem inserts a new line or increases an existing one. The resulting
// quantity is clamped to the product's last known stock; a non-nil Warning
// is returned when the request exceeded it.
func (s *Store) AddItem(product catalog.Product, quantity int) *Warning {
	if quantity < 1 {
		quantity = 1
	}
	idx := s.indexOf(product.ID)

	requested := quantity
	if idx >= 0 {
		requested = s.lines[idx].Quantity + quantity
	}
	clamped, warning := clampToStock(product, requested)

	switch {
	case clamped < 1 && idx >= 0:
		// Stock dropped to zero since the line was added.
		s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
	case clamped < 1:
		// Nothing to insert.
	case idx >= 0:
		s.lines[idx].Product = product
		s.lines[idx].Quantity = clamped
	default:
		s.lines = append(s.lines, Line{Product: product, Quantity: clamped})
	}

	s.persist()
	s.log.Debug().Str("product", product.ID).Int("quantity", clamped).Msg("cart item added")
	return warning
}

// RemoveItem deletes the line for the product. Absent products are a no-op.
func (s *Store) RemoveItem(productID string) {
	idx := s.indexOf(productID)
	if idx < 0 {
		return
	}
	s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
	s.persist()
	s.log.Debug().Str("product", productID).Msg("cart item removed")
}

// UpdateQuantity sets a line's quantity, clamped to the product's last known
// stock. A quantity of zero or less removes the line. Products not in the
// cart are a no-op.
func (s *Store) UpdateQuantity(productID string, quantity int) *Warning {
	if quantity <= 0 {
		s.RemoveItem(productID)
		return nil
	}
	idx := s.indexOf(productID)
	if idx < 0 {
		return nil
	}
	clamped, warning := clampToStock(s.lines[idx].Product, quantity)
	if clamped < 1 {
		s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
	} else {
		s.lines[idx].Quantity = clamped
	}
	s.persist()
	s.log.Debug().Str("product", productID).Int("quantity", clamped).Msg("cart quantity updated")
	return warning
}

// ClearCart empties the store and removes the persisted mirror.
func (s *Store) ClearCart() {
	s.lines = nil
	if s.storage != nil {
		if err := s.storage.Clear(); err != nil {
			s.log.Error().Err(err).Msg("failed to clear cart storage")
		}
	}
	s.log.Debug().Msg("cart cleared")
}

// GetItemQuantity returns the quantity for a product, zero when absent.
func (s *Store) GetItemQuantity(productID string) int {
	if idx := s.indexOf(productID); idx >= 0 {
		return s.lines[idx].Quantity
	}
	return 0
}

// IsInCart reports whether the product has a line.
func (s *Store) IsInCart(productID string) bool {
	return s.indexOf(productID) >= 0
}

// Items returns a copy of the current lines in insertion order.
func (s *Store) Items() []Line {
	items := make([]Line, len(s.lines))
	copy(items, s.lines)
	return items
}

// IsEmpty reports whether the cart has no lines.
func (s *Store) IsEmpty() bool {
	return len(s.lines) == 0
}

// Len returns the number of lines (not units).
func (s *Store) Len() int {
	return len(s.lines)
}

// Totals recomputes the derived totals from the current lines.
func (s *Store) Totals() Totals {
	var t Totals
	for _, line := range s.lines {
		t.ItemCount += line.Quantity
		t.Subtotal += line.LineTotal()
	}
	// No tax or shipping modeled.
	t.Total = t.Subtotal
	return t
}

// ToOrderRequest maps the cart into the order-creation payload.
func (s *Store) ToOrderRequest() catalog.OrderRequest {
	products := make(map[string]int, len(s.lines))
	for _, line := range s.lines {
		products[line.Product.ID] = line.Quantity
	}
	return catalog.OrderRequest{Products: products}
}

func (s *Store) indexOf(productID string) int {
	for i, line := range s.lines {
		if line.Product.ID == productID {
			return i
		}
	}
	return -1
}

// persist mirrors the lines to storage. Failures are logged, never returned:
// the in-memory state stays authoritative for the session.
func (s *Store) persist() {
	if s.storage == nil {
		return
	}
	if err := s.storage.Save(s.Items()); err != nil {
		s.log.Error().Err(err).Msg("failed to save cart to storage")
	}
}

func clampToStock(product catalog.Product, requested int) (int, *Warning) {
	if requested <= product.Quantity {
		return requested, nil
	}
	return product.Quantity, &Warning{
		ProductID: product.ID,
		Requested: requested,
		Available: product.Quantity,
	}
}
