package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/iconidentify/cardvault/internal/domain"
	"github.com/iconidentify/cardvault/internal/persistence"
)

// SelectionService tracks which items are selected for export. The selection
// keeps the order in which items were picked and is written to the export
// session after every change.
type SelectionService struct {
	adapter      *persistence.Adapter
	eventEmitter domain.EventEmitter
	logger       *slog.Logger

	mu       sync.RWMutex
	selected []domain.ItemID
}

// NewSelectionService creates a selection service. eventEmitter may be nil.
func NewSelectionService(adapter *persistence.Adapter, eventEmitter domain.EventEmitter, logger *slog.Logger) *SelectionService {
	return &SelectionService{
		adapter:      adapter,
		eventEmitter: eventEmitter,
		logger:       logger,
		selected:     []domain.ItemID{},
	}
}

// Selected returns the selected IDs in selection order.
func (s *SelectionService) Selected() []domain.ItemID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.selected)
}

// IsSelected reports whether id is selected.
func (s *SelectionService) IsSelected(id domain.ItemID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.selected, id)
}

// Count returns the number of selected items.
func (s *SelectionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.selected)
}

// ToggleSelection selects id, or deselects it if already selected. It returns
// whether id is selected afterwards.
func (s *SelectionService) ToggleSelection(ctx context.Context, id domain.ItemID) bool {
	s.mu.Lock()
	idx := slices.Index(s.selected, id)
	if idx >= 0 {
		s.selected = slices.Delete(s.selected, idx, idx+1)
	} else {
		s.selected = append(s.selected, id)
	}
	snapshot := slices.Clone(s.selected)
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	return idx < 0
}

// SelectAll replaces the selection with every item in items.
func (s *SelectionService) SelectAll(ctx context.Context, items []domain.CollectionItem) int {
	ids := domain.ItemIDs(items)

	s.mu.Lock()
	s.selected = ids
	snapshot := slices.Clone(ids)
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	s.emit(domain.EventSeverityInfo, fmt.Sprintf("Selected %d item(s)", len(snapshot)), domain.EventMetadata{
		"count": len(snapshot),
	})
	return len(snapshot)
}

// ClearSelection deselects everything.
func (s *SelectionService) ClearSelection(ctx context.Context) {
	s.mu.Lock()
	cleared := len(s.selected)
	s.selected = []domain.ItemID{}
	s.mu.Unlock()

	s.persist(ctx, []domain.ItemID{})
	if cleared > 0 {
		s.logger.Debug("selection cleared", "count", cleared)
	}
}

// RestoreFromSession loads the selection from an unexpired export session.
// It returns the number of restored IDs.
func (s *SelectionService) RestoreFromSession(ctx context.Context) int {
	if s.adapter.IsSessionExpired(ctx) {
		return 0
	}
	data := s.adapter.GetSessionData(ctx)
	if data == nil {
		return 0
	}

	s.mu.Lock()
	s.selected = slices.Clone(data.SelectedItemIDs)
	if s.selected == nil {
		s.selected = []domain.ItemID{}
	}
	n := len(s.selected)
	s.mu.Unlock()

	if n > 0 {
		s.logger.Info("selection restored from session", "count", n)
	}
	return n
}

func (s *SelectionService) persist(ctx context.Context, ids []domain.ItemID) {
	if !s.adapter.SaveSessionData(ctx, domain.WithSelection(ids)) {
		s.emit(domain.EventSeverityWarning, "Selection could not be saved; it will be lost on restart", nil)
	}
}

func (s *SelectionService) emit(severity domain.EventSeverity, message string, metadata domain.EventMetadata) {
	if s.eventEmitter == nil {
		return
	}
	s.eventEmitter.Emit(domain.Event{
		Severity: severity,
		Category: domain.EventCategorySelection,
		Message:  message,
		Source:   "SelectionService",
		Metadata: metadata.ToJSON(),
	})
}
