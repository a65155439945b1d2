package ordering

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/iconidentify/cardvault/internal/domain"
)

// Store holds the current ItemOrderingState. It is safe for concurrent use.
// Every method that changes the order stamps LastSortTimestamp and bumps Version.
type Store struct {
	mu         sync.RWMutex
	state      domain.ItemOrderingState
	categories map[domain.ItemID]domain.Category
	version    uint64

	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for LastSortTimestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty ordering store.
func NewStore(logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		state:      emptyState(),
		categories: make(map[domain.ItemID]domain.Category),
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func emptyState() domain.ItemOrderingState {
	return domain.ItemOrderingState{
		GlobalOrder:    []domain.ItemID{},
		CategoryOrders: make(map[domain.Category][]domain.ItemID),
	}
}

// State returns a copy of the current state.
func (s *Store) State() domain.ItemOrderingState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Order returns a copy of the global order.
func (s *Store) Order() []domain.ItemID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.GlobalOrder)
}

// Version increases on every mutation. Auto-save uses it to skip clean states.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Restore replaces the state with one loaded from storage. Categories recorded
// in the persisted CategoryOrders are learned so moves keep them consistent.
func (s *Store) Restore(state domain.ItemOrderingState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state.Clone()
	s.state.GlobalOrder = Dedupe(s.state.GlobalOrder)
	if s.state.CategoryOrders == nil {
		s.state.CategoryOrders = make(map[domain.Category][]domain.ItemID)
	}
	for c, ids := range s.state.CategoryOrders {
		for _, id := range ids {
			s.categories[id] = c
		}
	}
	s.rebuildCategoryOrders()
	s.version++
}

// Reset discards all ordering state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = emptyState()
	s.categories = make(map[domain.ItemID]domain.Category)
	s.version++
}

// Initialize seeds the order from items on first use and appends items the
// order has not seen yet. It does not change LastSortMethod.
func (s *Store) Initialize(items []domain.CollectionItem) []domain.ItemID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.learn(items)
	known := make(map[domain.ItemID]bool, len(s.state.GlobalOrder))
	for _, id := range s.state.GlobalOrder {
		known[id] = true
	}
	added := 0
	for _, it := range items {
		if !known[it.ID] {
			known[it.ID] = true
			s.state.GlobalOrder = append(s.state.GlobalOrder, it.ID)
			added++
		}
	}
	if added > 0 {
		s.rebuildCategoryOrders()
		s.version++
	}
	return slices.Clone(s.state.GlobalOrder)
}

// MoveItemUp swaps the item with its predecessor.
func (s *Store) MoveItemUp(id domain.ItemID) []domain.ItemID {
	return s.move(id, MoveUp)
}

// MoveItemDown swaps the item with its successor.
func (s *Store) MoveItemDown(id domain.ItemID) []domain.ItemID {
	return s.move(id, MoveDown)
}

func (s *Store) move(id domain.ItemID, fn func([]domain.ItemID, domain.ItemID) []domain.ItemID) []domain.ItemID {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := fn(s.state.GlobalOrder, id)
	if slices.Equal(next, s.state.GlobalOrder) {
		return slices.Clone(s.state.GlobalOrder)
	}
	s.commit(next, domain.SortMethodManual)
	return slices.Clone(next)
}

// ReorderItems replaces the global order. The new order is not validated;
// GetOrderedItems repairs it against the live list.
func (s *Store) ReorderItems(newOrder []domain.ItemID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commit(slices.Clone(newOrder), domain.SortMethodManual)
}

// AutoSortByPrice orders all items by price.
func (s *Store) AutoSortByPrice(items []domain.CollectionItem, ascending bool) []domain.ItemID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.learn(items)
	next := domain.ItemIDs(SortByPrice(items, ascending))
	s.commit(next, domain.PriceSortMethod(ascending))
	return slices.Clone(next)
}

// SortCategoryByPrice orders the items of one category by price, leaving the
// positions of other categories untouched.
func (s *Store) SortCategoryByPrice(items []domain.CollectionItem, category domain.Category, ascending bool) []domain.ItemID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.learn(items)
	next := SortCategory(s.state.GlobalOrder, items, category, ascending)
	s.commit(next, domain.PriceSortMethod(ascending))
	return slices.Clone(next)
}

// ResetOrder restores the natural order of items and clears LastSortMethod.
func (s *Store) ResetOrder(items []domain.CollectionItem) []domain.ItemID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.learn(items)
	next := domain.ItemIDs(items)
	s.commit(next, domain.SortMethodNone)
	return slices.Clone(next)
}

// GetOrderedItems returns items in the stored order. Items absent from the
// order are appended in natural order; nothing is dropped.
func (s *Store) GetOrderedItems(items []domain.CollectionItem) []domain.CollectionItem {
	s.mu.RLock()
	order := s.state.GlobalOrder
	s.mu.RUnlock()

	res := reconcileOrder(order, items)
	if res.Repaired() {
		s.logger.Debug("ordering repaired against live items",
			"unknown", len(res.Unknown),
			"appended", len(res.Appended),
		)
	}
	return res.Items
}

// commit installs a new global order. Caller holds s.mu.
func (s *Store) commit(order []domain.ItemID, method domain.SortMethod) {
	s.state.GlobalOrder = Dedupe(order)
	s.state.LastSortMethod = method
	s.state.LastSortTimestamp = s.now().UTC()
	s.rebuildCategoryOrders()
	s.version++
}

// learn records item categories. Caller holds s.mu.
func (s *Store) learn(items []domain.CollectionItem) {
	for _, it := range items {
		s.categories[it.ID] = it.Category
	}
}

// rebuildCategoryOrders derives per-category orders from the global order so
// they always partition a subset of it. Caller holds s.mu.
func (s *Store) rebuildCategoryOrders() {
	orders := make(map[domain.Category][]domain.ItemID)
	for _, id := range s.state.GlobalOrder {
		c, ok := s.categories[id]
		if !ok {
			continue
		}
		orders[c] = append(orders[c], id)
	}
	s.state.CategoryOrders = orders
}
