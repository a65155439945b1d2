package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/iconidentify/cardvault/internal/config"
	"github.com/iconidentify/cardvault/internal/domain"
	"github.com/iconidentify/cardvault/internal/download"
	"github.com/iconidentify/cardvault/internal/ordering"
	"github.com/iconidentify/cardvault/pkg/cardapi"
)

// ExportClient renders an export remotely.
type ExportClient interface {
	Export(ctx context.Context, req domain.ExportRequest) (*cardapi.ExportResult, error)
}

// FileSaver stores a finished export.
type FileSaver interface {
	Save(ctx context.Context, filename string, data []byte, opts download.SaveOptions) (*download.SavedFile, error)
}

// Export phases reported by ExportStatus.
const (
	ExportPhaseValidating = "validating"
	ExportPhaseExporting  = "exporting"
	ExportPhaseSaving     = "saving"
	ExportPhaseCompleted  = "completed"
	ExportPhaseFailed     = "failed"
)

// ExportStatus tracks the running or most recent export.
type ExportStatus struct {
	ID         string              `json:"export_id"`
	ItemType   domain.ItemType     `json:"item_type"`
	Format     domain.ExportFormat `json:"format"`
	Phase      string              `json:"phase"`
	ItemCount  int                 `json:"item_count"`
	File       *download.SavedFile `json:"file,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// ExportOutcome is the result of a successful export.
type ExportOutcome struct {
	ID        string              `json:"export_id"`
	ItemIDs   []domain.ItemID     `json:"item_ids"`
	ItemCount int                 `json:"item_count"`
	File      *download.SavedFile `json:"file"`
	Message   string              `json:"message"`
}

// ExportOption adjusts a single export.
type ExportOption func(*exportOptions)

type exportOptions struct {
	password      string
	selectionOnly bool
}

// WithSealPassword seals the downloaded file with password.
func WithSealPassword(password string) ExportOption {
	return func(o *exportOptions) {
		o.password = password
	}
}

// WithSelectionOnly marks req.ItemIDs as the user's selection. An empty
// selection is rejected instead of exporting every item.
func WithSelectionOnly() ExportOption {
	return func(o *exportOptions) {
		o.selectionOnly = true
	}
}

// ExportService runs ordered exports: validate, order, export remotely, save
// the file, notify and clear the selection. Only one export runs at a time.
type ExportService struct {
	client       ExportClient
	saver        FileSaver
	orderingSvc  *OrderingService
	selectionSvc *SelectionService
	prefs        config.PreferencesConfig
	eventEmitter domain.EventEmitter
	logger       *slog.Logger

	exporting atomic.Bool

	mu     sync.Mutex
	status *ExportStatus
}

// NewExportService creates a new export service. eventEmitter may be nil.
func NewExportService(
	client ExportClient,
	saver FileSaver,
	orderingSvc *OrderingService,
	selectionSvc *SelectionService,
	prefs config.PreferencesConfig,
	eventEmitter domain.EventEmitter,
	logger *slog.Logger,
) *ExportService {
	return &ExportService{
		client:       client,
		saver:        saver,
		orderingSvc:  orderingSvc,
		selectionSvc: selectionSvc,
		prefs:        prefs,
		eventEmitter: eventEmitter,
		logger:       logger,
	}
}

// emitEvent emits an event if the event emitter is configured.
func (s *ExportService) emitEvent(severity domain.EventSeverity, message string, metadata domain.EventMetadata) {
	if s.eventEmitter == nil {
		return
	}
	s.eventEmitter.Emit(domain.Event{
		Severity: severity,
		Category: domain.EventCategoryExport,
		Message:  message,
		Source:   "ExportService",
		Metadata: metadata.ToJSON(),
	})
}

// IsExporting reports whether an export is running.
func (s *ExportService) IsExporting() bool {
	return s.exporting.Load()
}

// GetStatus returns the running or most recent export, or nil.
func (s *ExportService) GetStatus() *ExportStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == nil {
		return nil
	}
	cp := *s.status
	return &cp
}

func (s *ExportService) setStatus(fn func(*ExportStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != nil {
		fn(s.status)
	}
}

// WithSavedOrder fills in the ordering fields of req from the current
// ordering state when the request carries none.
func (s *ExportService) WithSavedOrder(req domain.ExportRequest) domain.ExportRequest {
	if len(req.ItemOrder) > 0 || req.SortByPrice || s.orderingSvc == nil {
		return req
	}
	state := s.orderingSvc.State()
	switch state.LastSortMethod {
	case domain.SortMethodManual:
		req.ItemOrder = state.GlobalOrder
	case domain.SortMethodPriceAsc, domain.SortMethodPriceDesc:
		req.SortByPrice = true
		req.SortAscending = state.LastSortMethod == domain.SortMethodPriceAsc
	}
	return req
}

// ExportOrderedItems exports the requested items in their final order. items
// is the live collection listing. An empty req.ItemIDs exports every item
// unless WithSelectionOnly is given.
func (s *ExportService) ExportOrderedItems(ctx context.Context, req domain.ExportRequest, items []domain.CollectionItem, opts ...ExportOption) (*ExportOutcome, error) {
	var o exportOptions
	for _, opt := range opts {
		opt(&o)
	}

	if !s.exporting.CompareAndSwap(false, true) {
		s.emitEvent(domain.EventSeverityWarning, "An export is already in progress", nil)
		return nil, domain.ErrExportInProgress
	}
	defer s.exporting.Store(false)

	exportID := uuid.NewString()
	s.mu.Lock()
	s.status = &ExportStatus{
		ID:        exportID,
		ItemType:  req.ItemType,
		Format:    req.Format,
		Phase:     ExportPhaseValidating,
		StartedAt: time.Now(),
	}
	s.mu.Unlock()

	ids := req.ItemIDs
	if len(ids) == 0 && !o.selectionOnly {
		ids = domain.ItemIDs(items)
	}
	if err := req.Validate(ids); err != nil {
		s.finish(err)
		s.emitEvent(domain.EventSeverityWarning, validationMessage(req, err), domain.EventMetadata{
			"item_type": req.ItemType,
			"format":    req.Format,
			"count":     len(ids),
		})
		return nil, domain.NewExportError(req, "validate", err)
	}

	ordered := OrderForExport(req, ids, items)
	req.ItemIDs = ordered

	s.setStatus(func(st *ExportStatus) {
		st.Phase = ExportPhaseExporting
		st.ItemCount = len(ordered)
	})
	s.logger.Info("starting export",
		"export_id", exportID,
		"item_type", req.ItemType,
		"format", req.Format,
		"items", len(ordered),
		"ordering", req.OrderingSummary(),
	)

	result, err := s.client.Export(ctx, req)
	if err != nil {
		return nil, s.fail(req, "export", err)
	}

	s.setStatus(func(st *ExportStatus) { st.Phase = ExportPhaseSaving })
	saved, err := s.saver.Save(ctx, result.Filename, result.Data, download.SaveOptions{Password: o.password})
	if err != nil {
		return nil, s.fail(req, "save", err)
	}

	count := result.ItemCount
	if count <= 0 {
		count = len(ordered)
	}
	message := fmt.Sprintf("Exported %d item(s) as %s", count, req.Format.Label())
	if summary := req.OrderingSummary(); summary != "" {
		message += " (" + summary + ")"
	}

	s.setStatus(func(st *ExportStatus) {
		st.ItemCount = count
		st.File = saved
	})
	s.finish(nil)
	s.emitEvent(domain.EventSeveritySuccess, message, domain.EventMetadata{
		"export_id": exportID,
		"item_type": req.ItemType,
		"format":    req.Format,
		"count":     count,
		"file":      saved.Name,
		"sealed":    saved.Sealed,
	})

	s.clearAfterExport(ctx)

	s.logger.Info("export completed",
		"export_id", exportID,
		"items", count,
		"file", saved.Path,
	)

	return &ExportOutcome{
		ID:        exportID,
		ItemIDs:   ordered,
		ItemCount: count,
		File:      saved,
		Message:   message,
	}, nil
}

// fail records a failed export and emits the error notification. Selection
// and ordering are left as they were.
func (s *ExportService) fail(req domain.ExportRequest, op string, err error) error {
	s.finish(err)
	s.logger.Error("export failed",
		"op", op,
		"item_type", req.ItemType,
		"format", req.Format,
		"error", err,
	)
	s.emitEvent(domain.EventSeverityError,
		fmt.Sprintf("Failed to export %s for %s: %v", req.Format.Label(), req.ItemType, err),
		domain.EventMetadata{
			"item_type": req.ItemType,
			"format":    req.Format,
			"op":        op,
		})
	return domain.NewExportError(req, op, err)
}

func (s *ExportService) finish(err error) {
	now := time.Now()
	s.setStatus(func(st *ExportStatus) {
		st.FinishedAt = &now
		if err != nil {
			st.Phase = ExportPhaseFailed
			st.Error = err.Error()
			return
		}
		st.Phase = ExportPhaseCompleted
	})
}

func (s *ExportService) clearAfterExport(ctx context.Context) {
	if s.selectionSvc != nil {
		s.selectionSvc.ClearSelection(ctx)
	}
	if s.prefs.ClearOrderAfterExport && s.orderingSvc != nil {
		s.orderingSvc.Clear(ctx)
	}
}

// OrderForExport returns ids in export order. A manual ItemOrder wins over a
// price sort; with neither, ids keep their given order. IDs that are not in
// items cannot be ordered and follow in their given order.
func OrderForExport(req domain.ExportRequest, ids []domain.ItemID, items []domain.CollectionItem) []domain.ItemID {
	byID := make(map[domain.ItemID]domain.CollectionItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	seen := make(map[domain.ItemID]bool, len(ids))
	subset := make([]domain.CollectionItem, 0, len(ids))
	var unknown []domain.ItemID
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if it, ok := byID[id]; ok {
			subset = append(subset, it)
		} else {
			unknown = append(unknown, id)
		}
	}

	switch {
	case len(req.ItemOrder) > 0:
		subset = ordering.Apply(req.ItemOrder, subset)
	case req.SortByPrice && req.MaintainCategoryGrouping:
		subset = ordering.SortByPriceGrouped(subset, req.SortAscending)
	case req.SortByPrice:
		subset = ordering.SortByPrice(subset, req.SortAscending)
	}

	return append(domain.ItemIDs(subset), unknown...)
}

// validationMessage names the rejected format and item type along with the
// reason, matching the wording of remote failures.
func validationMessage(req domain.ExportRequest, err error) string {
	reason := err.Error()
	switch {
	case errors.Is(err, domain.ErrEmptySelection):
		reason = "select at least one item"
	case errors.Is(err, domain.ErrAuctionRequiresSingleItem):
		reason = "auctions need exactly one item"
	case errors.Is(err, domain.ErrUnsupportedFormat):
		reason = "format not available for this item type"
	}
	return fmt.Sprintf("Cannot export %s for %s: %s", req.Format.Label(), req.ItemType, reason)
}
