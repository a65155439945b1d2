package handler

import (
	"log/slog"
	"net/http"

	"github.com/iconidentify/cardvault/internal/domain"
	"github.com/iconidentify/cardvault/internal/service"
)

// SelectionHandler serves the export selection.
type SelectionHandler struct {
	items        ItemLister
	selectionSvc *service.SelectionService
	logger       *slog.Logger
}

// NewSelectionHandler creates a new selection handler.
func NewSelectionHandler(items ItemLister, selectionSvc *service.SelectionService, logger *slog.Logger) *SelectionHandler {
	return &SelectionHandler{
		items:        items,
		selectionSvc: selectionSvc,
		logger:       logger,
	}
}

// SelectionResponse lists the selected item IDs in selection order.
type SelectionResponse struct {
	Selected []domain.ItemID `json:"selected"`
	Count    int             `json:"count"`
}

// ToggleRequest flips the selection of one item.
type ToggleRequest struct {
	ItemID domain.ItemID `json:"item_id"`
}

// ToggleResponse reports the item's new state.
type ToggleResponse struct {
	ItemID   domain.ItemID `json:"item_id"`
	Selected bool          `json:"selected"`
	Count    int           `json:"count"`
}

// SelectAllRequest selects a whole category, or everything when empty.
type SelectAllRequest struct {
	Category domain.Category `json:"category,omitempty"`
}

// Get handles GET /api/v1/selection
func (h *SelectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.response())
}

// Toggle handles POST /api/v1/selection/toggle
func (h *SelectionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req ToggleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ItemID == "" {
		writeError(w, http.StatusBadRequest, "item_id is required")
		return
	}

	selected := h.selectionSvc.ToggleSelection(r.Context(), req.ItemID)
	writeJSON(w, http.StatusOK, ToggleResponse{
		ItemID:   req.ItemID,
		Selected: selected,
		Count:    h.selectionSvc.Count(),
	})
}

// All handles POST /api/v1/selection/all
func (h *SelectionHandler) All(w http.ResponseWriter, r *http.Request) {
	var req SelectAllRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := listItems(r.Context(), h.items, req.Category)
	if err != nil {
		status := errorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("failed to list items for selection", "error", err)
		}
		writeError(w, status, err.Error())
		return
	}

	h.selectionSvc.SelectAll(r.Context(), items)
	writeJSON(w, http.StatusOK, h.response())
}

// Clear handles DELETE /api/v1/selection
func (h *SelectionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.selectionSvc.ClearSelection(r.Context())
	writeJSON(w, http.StatusOK, h.response())
}

func (h *SelectionHandler) response() SelectionResponse {
	selected := h.selectionSvc.Selected()
	return SelectionResponse{Selected: selected, Count: len(selected)}
}
