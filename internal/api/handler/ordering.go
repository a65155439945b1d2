package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/iconidentify/cardvault/internal/domain"
	"github.com/iconidentify/cardvault/internal/service"
)

// OrderingHandler serves the collection listing and the ordering endpoints.
type OrderingHandler struct {
	items       ItemLister
	orderingSvc *service.OrderingService
	logger      *slog.Logger
}

// NewOrderingHandler creates a new ordering handler.
func NewOrderingHandler(items ItemLister, orderingSvc *service.OrderingService, logger *slog.Logger) *OrderingHandler {
	return &OrderingHandler{
		items:       items,
		orderingSvc: orderingSvc,
		logger:      logger,
	}
}

// ItemsResponse is the ordered collection listing.
type ItemsResponse struct {
	Items      []domain.CollectionItem `json:"items"`
	Total      int                     `json:"total"`
	SortMethod domain.SortMethod       `json:"sort_method,omitempty"`
}

// OrderingResponse describes the current ordering state.
type OrderingResponse struct {
	Order             []domain.ItemID                     `json:"order"`
	CategoryOrders    map[domain.Category][]domain.ItemID `json:"category_orders"`
	SortMethod        domain.SortMethod                   `json:"sort_method,omitempty"`
	LastSortTimestamp *time.Time                          `json:"last_sort_timestamp,omitempty"`
}

// MoveRequest moves one item a single position.
type MoveRequest struct {
	ItemID    domain.ItemID `json:"item_id"`
	Direction string        `json:"direction"` // up or down
}

// ReorderRequest replaces the whole order.
type ReorderRequest struct {
	Order []domain.ItemID `json:"order"`
}

// SortRequest sorts by price, optionally within one category.
type SortRequest struct {
	Ascending bool            `json:"ascending"`
	Category  domain.Category `json:"category,omitempty"`
}

// Items handles GET /api/v1/items
// Query parameters:
//   - category: psa-card, raw-card or sealed-product
//
// Items unseen by the ordering are added to it before the listing is returned.
func (h *OrderingHandler) Items(w http.ResponseWriter, r *http.Request) {
	category := domain.Category(r.URL.Query().Get("category"))
	items, err := listItems(r.Context(), h.items, category)
	if err != nil {
		h.fail(w, "failed to list items", err)
		return
	}

	h.orderingSvc.Initialize(r.Context(), items)
	ordered := h.orderingSvc.OrderedItems(items)

	writeJSON(w, http.StatusOK, ItemsResponse{
		Items:      ordered,
		Total:      len(ordered),
		SortMethod: h.orderingSvc.State().LastSortMethod,
	})
}

// Get handles GET /api/v1/ordering
func (h *OrderingHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.response())
}

// Move handles POST /api/v1/ordering/move
func (h *OrderingHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ItemID == "" {
		writeError(w, http.StatusBadRequest, "item_id is required")
		return
	}

	switch req.Direction {
	case "up":
		h.orderingSvc.MoveUp(r.Context(), req.ItemID)
	case "down":
		h.orderingSvc.MoveDown(r.Context(), req.ItemID)
	default:
		writeError(w, http.StatusBadRequest, `direction must be "up" or "down"`)
		return
	}
	writeJSON(w, http.StatusOK, h.response())
}

// Replace handles PUT /api/v1/ordering
func (h *OrderingHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Order == nil {
		writeError(w, http.StatusBadRequest, "order is required")
		return
	}

	h.orderingSvc.Reorder(r.Context(), req.Order)
	writeJSON(w, http.StatusOK, h.response())
}

// Sort handles POST /api/v1/ordering/sort
func (h *OrderingHandler) Sort(w http.ResponseWriter, r *http.Request) {
	var req SortRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Category != "" && !req.Category.Valid() {
		writeError(w, http.StatusBadRequest, "unknown category: "+string(req.Category))
		return
	}

	items, err := listItems(r.Context(), h.items, "")
	if err != nil {
		h.fail(w, "failed to list items", err)
		return
	}

	if req.Category != "" {
		h.orderingSvc.SortCategoryByPrice(r.Context(), items, req.Category, req.Ascending)
	} else {
		h.orderingSvc.SortByPrice(r.Context(), items, req.Ascending)
	}
	writeJSON(w, http.StatusOK, h.response())
}

// Reset handles POST /api/v1/ordering/reset
func (h *OrderingHandler) Reset(w http.ResponseWriter, r *http.Request) {
	items, err := listItems(r.Context(), h.items, "")
	if err != nil {
		h.fail(w, "failed to list items", err)
		return
	}

	h.orderingSvc.Reset(r.Context(), items)
	writeJSON(w, http.StatusOK, h.response())
}

func (h *OrderingHandler) response() OrderingResponse {
	state := h.orderingSvc.State()
	resp := OrderingResponse{
		Order:          state.GlobalOrder,
		CategoryOrders: state.CategoryOrders,
		SortMethod:     state.LastSortMethod,
	}
	if !state.LastSortTimestamp.IsZero() {
		ts := state.LastSortTimestamp
		resp.LastSortTimestamp = &ts
	}
	return resp
}

func (h *OrderingHandler) fail(w http.ResponseWriter, msg string, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "error", err)
	}
	writeError(w, status, err.Error())
}
