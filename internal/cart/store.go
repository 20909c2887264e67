// Package cart is the in-memory shopping cart. Memory is authoritative; each
// change is mirrored to the signed-in user's snapshot on a best-effort basis.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/skincare-storefront/internal/catalog"
	"github.com/vasiliy-maslov/skincare-storefront/internal/notify"
	"github.com/vasiliy-maslov/skincare-storefront/internal/order"
	"github.com/vasiliy-maslov/skincare-storefront/internal/user"
)

var (
	ErrInvalidProduct  = errors.New("cart: product has no id")
	ErrEmptyCart       = errors.New("cart: cart is empty")
	ErrInvalidQuantity = errors.New("cart: quantity must be positive")
)

type UserProvider interface {
	CurrentUser() *user.User
}

type SnapshotRepository interface {
	Load(ctx context.Context, userID int64) ([]Line, error)
	Save(ctx context.Context, userID int64, lines []Line) error
}

type OrderCreator interface {
	CreateOrder(ctx context.Context, req order.CreateRequest) (*order.Order, error)
}

type Store struct {
	users     UserProvider
	snapshots SnapshotRepository
	orders    OrderCreator
	notifier  notify.Notifier

	mu        sync.RWMutex
	lines     []Line
	total     decimal.Decimal
	itemCount int
	loading   bool
	hydrated  bool
	owner     *int64
	version   uint64

	// persistMu orders snapshot writes; persisted holds the last version
	// written per user.
	persistMu sync.Mutex
	persisted map[int64]uint64
}

func NewStore(users UserProvider, snapshots SnapshotRepository, orders OrderCreator, notifier notify.Notifier) *Store {
	return &Store{
		users:     users,
		snapshots: snapshots,
		orders:    orders,
		notifier:  notifier,
		lines:     []Line{},
		total:     decimal.Zero,
		loading:   true,
		persisted: make(map[int64]uint64),
	}
}

// pendingWrite is a snapshot captured under the lock, written after it is
// released.
type pendingWrite struct {
	userID  int64
	lines   []Line
	version uint64
	skip    bool
}

// commitLocked installs lines and recomputes the derived fields. s.mu must
// be held for writing.
func (s *Store) commitLocked(lines []Line) pendingWrite {
	s.lines = lines
	s.total, s.itemCount = totals(lines)
	s.version++

	u := s.users.CurrentUser()
	if u == nil {
		return pendingWrite{skip: true}
	}
	return pendingWrite{userID: u.ID, lines: cloneLines(lines), version: s.version}
}

func (s *Store) persist(ctx context.Context, w pendingWrite) {
	if w.skip {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if w.version <= s.persisted[w.userID] {
		log.Debug().Int64("user_id", w.userID).Uint64("version", w.version).Msg("cart: newer snapshot already written")
		return
	}
	if err := s.snapshots.Save(ctx, w.userID, w.lines); err != nil {
		log.Error().Err(err).Int64("user_id", w.userID).Msg("cart: failed to persist snapshot")
		return
	}
	s.persisted[w.userID] = w.version
}

// AddToCart adds one unit of p, creating the line if needed.
func (s *Store) AddToCart(ctx context.Context, p catalog.Product) error {
	return s.AddQuantity(ctx, p, 1)
}

// AddQuantity adds n units of p as a single change.
func (s *Store) AddQuantity(ctx context.Context, p catalog.Product, n int) error {
	if p.ID == 0 {
		return ErrInvalidProduct
	}
	if n <= 0 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	lines := cloneLines(s.lines)
	i := findLine(lines, p.ID)
	if i >= 0 {
		lines[i].Quantity += n
	} else {
		lines = append(lines, Line{Product: p, Quantity: n})
	}
	w := s.commitLocked(lines)
	s.mu.Unlock()

	if i >= 0 {
		notify.Success(s.notifier, "Quantity updated", p.Title+" quantity increased")
	} else {
		notify.Success(s.notifier, "Added to cart", p.Title+" added successfully")
	}
	log.Debug().Int64("product_id", p.ID).Int("quantity", n).Msg("cart: product added")

	s.persist(ctx, w)
	return nil
}

// RemoveFromCart drops the product's line. Unknown products are ignored.
func (s *Store) RemoveFromCart(ctx context.Context, productID int64) {
	s.mu.Lock()
	i := findLine(s.lines, productID)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	removed := s.lines[i]
	w := s.commitLocked(removeLine(s.lines, i))
	s.mu.Unlock()

	notify.Info(s.notifier, "Removed from cart", removed.Product.Title+" removed")
	log.Debug().Int64("product_id", productID).Msg("cart: product removed")

	s.persist(ctx, w)
}

// UpdateQuantity sets the product's quantity. A quantity of zero or less
// removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, productID int64, quantity int) {
	if quantity <= 0 {
		s.RemoveFromCart(ctx, productID)
		return
	}

	s.mu.Lock()
	i := findLine(s.lines, productID)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	lines := cloneLines(s.lines)
	lines[i].Quantity = quantity
	w := s.commitLocked(lines)
	s.mu.Unlock()

	s.persist(ctx, w)
}

// ClearCart empties the cart and the user's snapshot.
func (s *Store) ClearCart(ctx context.Context) {
	s.mu.Lock()
	w := s.commitLocked([]Line{})
	s.mu.Unlock()

	s.persist(ctx, w)
}

// ClearUserData forgets the cart in memory only, leaving the snapshot for
// the next sign-in.
func (s *Store) ClearUserData() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = []Line{}
	s.total, s.itemCount = decimal.Zero, 0
	s.loading = true
	s.hydrated = false
	s.owner = nil
	s.version++
}

// LoadCart restores the signed-in user's snapshot. A cart held for a
// different user is dropped first. Read and parse failures are logged and
// leave the new user with an empty cart.
func (s *Store) LoadCart(ctx context.Context) {
	u := s.users.CurrentUser()
	if u == nil {
		return
	}
	userID := u.ID

	lines, err := s.snapshots.Load(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("cart: failed to load snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err == nil && lines != nil:
		s.lines = normalize(lines)
	case err != nil || (s.owner != nil && *s.owner != userID):
		s.lines = []Line{}
	}
	s.total, s.itemCount = totals(s.lines)
	s.version++
	s.owner = &userID
	s.loading = false
	s.hydrated = true
	log.Debug().Int64("user_id", userID).Int("lines", len(s.lines)).Msg("cart: loaded")
}

// Checkout submits lines as an order. The cart is left as it is; the caller
// removes the purchased lines once the order is confirmed.
func (s *Store) Checkout(ctx context.Context, lines []Line, address order.Address, paymentID string) (*order.Order, error) {
	items := make([]order.CreateItem, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		items = append(items, order.CreateItem{ProductID: l.Product.ID, Quantity: l.Quantity})
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	o, err := s.orders.CreateOrder(ctx, order.CreateRequest{
		Items:     items,
		Address:   address,
		PaymentID: paymentID,
	})
	if err != nil {
		return nil, fmt.Errorf("cart: create order: %w", err)
	}
	return o, nil
}

// RemovePurchased subtracts the purchased quantities from the cart. Units
// added after the lines were captured stay in the cart.
func (s *Store) RemovePurchased(ctx context.Context, purchased []Line) {
	s.mu.Lock()
	lines := cloneLines(s.lines)
	for _, p := range purchased {
		i := findLine(lines, p.Product.ID)
		if i < 0 {
			continue
		}
		lines[i].Quantity -= p.Quantity
		if lines[i].Quantity <= 0 {
			lines = removeLine(lines, i)
		}
	}
	w := s.commitLocked(lines)
	s.mu.Unlock()

	s.persist(ctx, w)
}

// State returns a copy safe to read without the lock.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		Lines:     cloneLines(s.lines),
		Total:     s.total,
		ItemCount: s.itemCount,
		Loading:   s.loading,
		Hydrated:  s.hydrated,
	}
	if s.owner != nil {
		id := *s.owner
		st.UserID = &id
	}
	return st
}
