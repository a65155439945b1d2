package handler

import (
	"log/slog"
	"net/http"

	"github.com/iconidentify/cardvault/internal/domain"
	"github.com/iconidentify/cardvault/internal/service"
)

// ExportHandler handles export-related HTTP requests.
type ExportHandler struct {
	items         ItemLister
	exportSvc     *service.ExportService
	selectionSvc  *service.SelectionService
	defaultFormat domain.ExportFormat
	logger        *slog.Logger
}

// NewExportHandler creates a new export handler.
func NewExportHandler(
	items ItemLister,
	exportSvc *service.ExportService,
	selectionSvc *service.SelectionService,
	defaultFormat domain.ExportFormat,
	logger *slog.Logger,
) *ExportHandler {
	return &ExportHandler{
		items:         items,
		exportSvc:     exportSvc,
		selectionSvc:  selectionSvc,
		defaultFormat: defaultFormat,
		logger:        logger,
	}
}

// ExportStartRequest is the request body for starting an export.
type ExportStartRequest struct {
	ItemType                 domain.ItemType     `json:"item_type"`
	Format                   domain.ExportFormat `json:"format,omitempty"`
	ItemIDs                  []domain.ItemID     `json:"item_ids,omitempty"`
	ItemOrder                []domain.ItemID     `json:"item_order,omitempty"`
	SortByPrice              bool                `json:"sort_by_price,omitempty"`
	SortAscending            bool                `json:"sort_ascending,omitempty"`
	MaintainCategoryGrouping bool                `json:"maintain_category_grouping,omitempty"`

	// UseSelection exports the current selection when ItemIDs is empty.
	UseSelection bool `json:"use_selection,omitempty"`
	// UseSavedOrder applies the stored ordering when no ordering is given.
	UseSavedOrder bool `json:"use_saved_order,omitempty"`
	// Password seals the downloaded file.
	Password string `json:"password,omitempty"`
}

// ExportStatusResponse is the response for export status.
type ExportStatusResponse struct {
	Active bool                  `json:"active"`
	Export *service.ExportStatus `json:"export,omitempty"`
}

// FormatsResponse lists the formats each item type supports.
type FormatsResponse struct {
	Default string                                    `json:"default"`
	Formats map[domain.ItemType][]domain.ExportFormat `json:"formats"`
}

// Start handles POST /api/v1/export
// The export runs synchronously; the response carries the saved file.
func (h *ExportHandler) Start(w http.ResponseWriter, r *http.Request) {
	var body ExportStartRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Format == "" {
		body.Format = h.defaultFormat
	}

	req := domain.ExportRequest{
		ItemType:                 body.ItemType,
		Format:                   body.Format,
		ItemIDs:                  body.ItemIDs,
		ItemOrder:                body.ItemOrder,
		SortByPrice:              body.SortByPrice,
		SortAscending:            body.SortAscending,
		MaintainCategoryGrouping: body.MaintainCategoryGrouping,
	}
	var opts []service.ExportOption
	if len(req.ItemIDs) == 0 && body.UseSelection {
		req.ItemIDs = h.selectionSvc.Selected()
		opts = append(opts, service.WithSelectionOnly())
	}
	if body.UseSavedOrder {
		req = h.exportSvc.WithSavedOrder(req)
	}

	category, _ := req.ItemType.Category()
	items, err := listItems(r.Context(), h.items, category)
	if err != nil {
		h.fail(w, "failed to list items for export", err)
		return
	}

	if body.Password != "" {
		opts = append(opts, service.WithSealPassword(body.Password))
	}

	outcome, err := h.exportSvc.ExportOrderedItems(r.Context(), req, items, opts...)
	if err != nil {
		h.fail(w, "export failed", err)
		return
	}

	w.Header().Set("X-Export-ID", outcome.ID)
	writeJSON(w, http.StatusOK, outcome)
}

// Status handles GET /api/v1/export/status
func (h *ExportHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ExportStatusResponse{
		Active: h.exportSvc.IsExporting(),
		Export: h.exportSvc.GetStatus(),
	})
}

// Formats handles GET /api/v1/export/formats
func (h *ExportHandler) Formats(w http.ResponseWriter, r *http.Request) {
	itemTypes := []domain.ItemType{
		domain.ItemTypePSACard,
		domain.ItemTypeRawCard,
		domain.ItemTypeSealedProduct,
		domain.ItemTypeAuction,
		domain.ItemTypeCollection,
	}
	formats := []domain.ExportFormat{domain.FormatZip, domain.FormatFacebookText, domain.FormatDBA, domain.FormatJSON}

	resp := FormatsResponse{
		Default: string(h.defaultFormat),
		Formats: make(map[domain.ItemType][]domain.ExportFormat, len(itemTypes)),
	}
	for _, t := range itemTypes {
		supported := []domain.ExportFormat{}
		for _, f := range formats {
			if domain.Supports(t, f) {
				supported = append(supported, f)
			}
		}
		resp.Formats[t] = supported
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ExportHandler) fail(w http.ResponseWriter, msg string, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "error", err)
	} else {
		h.logger.Warn(msg, "error", err, "status", status)
	}
	writeError(w, status, err.Error())
}
