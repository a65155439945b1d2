package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/iconidentify/cardvault/internal/domain"
	"github.com/iconidentify/cardvault/internal/ordering"
	"github.com/iconidentify/cardvault/internal/persistence"
)

// OrderingService applies user ordering actions to the ordering store and
// keeps storage in step: every mutation refreshes the export session, and the
// auto-save loop picks up the full state.
type OrderingService struct {
	store        *ordering.Store
	adapter      *persistence.Adapter
	eventEmitter domain.EventEmitter
	logger       *slog.Logger

	// offeredVersion is the store version last handed to the auto-save loop,
	// savedVersion the last one storage confirmed.
	mu             sync.Mutex
	offeredVersion uint64
	savedVersion   uint64
}

// NewOrderingService creates an ordering service. eventEmitter may be nil.
func NewOrderingService(store *ordering.Store, adapter *persistence.Adapter, eventEmitter domain.EventEmitter, logger *slog.Logger) *OrderingService {
	return &OrderingService{
		store:          store,
		adapter:        adapter,
		eventEmitter:   eventEmitter,
		logger:         logger,
		offeredVersion: store.Version(),
		savedVersion:   store.Version(),
	}
}

// Store returns the underlying ordering store.
func (s *OrderingService) Store() *ordering.Store {
	return s.store
}

// Load migrates legacy keys and restores the persisted ordering into the
// store. It reports whether a persisted ordering was found.
func (s *OrderingService) Load(ctx context.Context) bool {
	if s.adapter.MigrateOldFormat(ctx) {
		s.emit(domain.EventSeverityInfo, "Migrated saved order from an older version", nil)
	}

	state := s.adapter.LoadOrdering(ctx)
	if state == nil {
		return false
	}
	s.store.Restore(*state)
	s.markSaved()

	s.logger.Info("ordering restored",
		"items", len(state.GlobalOrder),
		"sort_method", state.LastSortMethod,
	)
	return true
}

// Reload replaces the in-memory ordering with the persisted one. It is used
// when another process has written the ordering key.
func (s *OrderingService) Reload(ctx context.Context) bool {
	state := s.adapter.LoadOrdering(ctx)
	if state == nil {
		return false
	}
	s.store.Restore(*state)
	s.markSaved()
	return true
}

// State returns a copy of the current ordering state.
func (s *OrderingService) State() domain.ItemOrderingState {
	return s.store.State()
}

// Initialize adds items the order has not seen yet.
func (s *OrderingService) Initialize(ctx context.Context, items []domain.CollectionItem) []domain.ItemID {
	before := s.store.Version()
	order := s.store.Initialize(items)
	if s.store.Version() != before {
		s.refreshSession(ctx)
	}
	return order
}

// OrderedItems returns items in the current order.
func (s *OrderingService) OrderedItems(items []domain.CollectionItem) []domain.CollectionItem {
	return s.store.GetOrderedItems(items)
}

// MoveUp moves id one position towards the front.
func (s *OrderingService) MoveUp(ctx context.Context, id domain.ItemID) []domain.ItemID {
	order := s.store.MoveItemUp(id)
	s.refreshSession(ctx)
	return order
}

// MoveDown moves id one position towards the back.
func (s *OrderingService) MoveDown(ctx context.Context, id domain.ItemID) []domain.ItemID {
	order := s.store.MoveItemDown(id)
	s.refreshSession(ctx)
	return order
}

// Reorder replaces the order, typically after a drag and drop.
func (s *OrderingService) Reorder(ctx context.Context, order []domain.ItemID) []domain.ItemID {
	s.store.ReorderItems(order)
	s.refreshSession(ctx)
	return s.store.Order()
}

// SortByPrice orders all items by price.
func (s *OrderingService) SortByPrice(ctx context.Context, items []domain.CollectionItem, ascending bool) []domain.ItemID {
	order := s.store.AutoSortByPrice(items, ascending)
	s.refreshSession(ctx)
	s.emit(domain.EventSeverityInfo, "Items "+priceDirection(ascending), domain.EventMetadata{
		"count": len(items),
	})
	return order
}

// SortCategoryByPrice orders one category by price in place.
func (s *OrderingService) SortCategoryByPrice(ctx context.Context, items []domain.CollectionItem, category domain.Category, ascending bool) []domain.ItemID {
	order := s.store.SortCategoryByPrice(items, category, ascending)
	s.refreshSession(ctx)
	s.emit(domain.EventSeverityInfo, "Items of type "+category.Label()+" "+priceDirection(ascending), domain.EventMetadata{
		"category": category,
	})
	return order
}

// Reset restores the natural order.
func (s *OrderingService) Reset(ctx context.Context, items []domain.CollectionItem) []domain.ItemID {
	order := s.store.ResetOrder(items)
	s.refreshSession(ctx)
	return order
}

// Save writes the current ordering immediately.
func (s *OrderingService) Save(ctx context.Context) bool {
	version := s.store.Version()
	if !s.adapter.SaveOrdering(ctx, s.store.State()) {
		return false
	}
	s.markSavedVersion(version)
	return true
}

// Clear discards the in-memory ordering and deletes the persisted copy.
func (s *OrderingService) Clear(ctx context.Context) {
	s.store.Reset()
	s.adapter.ClearOrdering(ctx)
	s.markSaved()
	s.logger.Info("ordering cleared")
}

// AutoSavePayload returns the state once per change, or nil when it was
// already handed out. It is the callback for persistence.Adapter.StartAutoSave;
// the state only counts as saved once the loop confirms the write.
func (s *OrderingService) AutoSavePayload() *persistence.AutoSavePayload {
	version := s.store.Version()

	s.mu.Lock()
	defer s.mu.Unlock()
	if version == s.offeredVersion {
		return nil
	}
	s.offeredVersion = version
	return &persistence.AutoSavePayload{
		State: s.store.State(),
		Saved: func() { s.markSavedVersion(version) },
	}
}

// Dirty reports whether the ordering changed since storage last confirmed a write.
func (s *OrderingService) Dirty() bool {
	version := s.store.Version()
	s.mu.Lock()
	defer s.mu.Unlock()
	return version != s.savedVersion
}

// StartAutoSave starts periodic persistence of the ordering.
func (s *OrderingService) StartAutoSave() {
	s.adapter.StartAutoSave(s.AutoSavePayload)
}

// StopAutoSave stops periodic persistence, flushing any pending write.
func (s *OrderingService) StopAutoSave() {
	s.adapter.StopAutoSave()
}

func (s *OrderingService) markSaved() {
	s.markSavedVersion(s.store.Version())
}

func (s *OrderingService) markSavedVersion(version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savedVersion = max(s.savedVersion, version)
	s.offeredVersion = max(s.offeredVersion, version)
}

// refreshSession mirrors the order into the export session.
func (s *OrderingService) refreshSession(ctx context.Context) {
	state := s.store.State()
	if !s.adapter.SaveSessionData(ctx, domain.WithOrder(state.GlobalOrder, state.LastSortMethod)) {
		s.logger.Warn("failed to refresh export session", "items", len(state.GlobalOrder))
	}
}

func (s *OrderingService) emit(severity domain.EventSeverity, message string, metadata domain.EventMetadata) {
	if s.eventEmitter == nil {
		return
	}
	s.eventEmitter.Emit(domain.Event{
		Severity: severity,
		Category: domain.EventCategoryOrdering,
		Message:  message,
		Source:   "OrderingService",
		Metadata: metadata.ToJSON(),
	})
}

func priceDirection(ascending bool) string {
	if ascending {
		return "sorted by price lowest to highest"
	}
	return "sorted by price highest to lowest"
}
