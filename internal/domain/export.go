package domain

import "fmt"

// ItemType is the kind of items an export request covers.
type ItemType string

const (
	ItemTypePSACard       ItemType = "psa-card"
	ItemTypeRawCard       ItemType = "raw-card"
	ItemTypeSealedProduct ItemType = "sealed-product"
	ItemTypeAuction       ItemType = "auction"
	ItemTypeCollection    ItemType = "collection" // mixed selection
)

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	switch t {
	case ItemTypePSACard, ItemTypeRawCard, ItemTypeSealedProduct, ItemTypeAuction, ItemTypeCollection:
		return true
	}
	return false
}

// Category returns the collection category an item type lists from. Auction
// and collection exports draw from every category and report false.
func (t ItemType) Category() (Category, bool) {
	switch t {
	case ItemTypePSACard:
		return CategoryPSACard, true
	case ItemTypeRawCard:
		return CategoryRawCard, true
	case ItemTypeSealedProduct:
		return CategorySealedProduct, true
	}
	return "", false
}

// ExportFormat is the output format produced by the remote export API.
type ExportFormat string

const (
	FormatZip          ExportFormat = "zip"
	FormatFacebookText ExportFormat = "facebook-text"
	FormatDBA          ExportFormat = "dba"
	FormatJSON         ExportFormat = "json"
)

// Valid reports whether f is a known format.
func (f ExportFormat) Valid() bool {
	switch f {
	case FormatZip, FormatFacebookText, FormatDBA, FormatJSON:
		return true
	}
	return false
}

// Label returns the format name used in notifications.
func (f ExportFormat) Label() string {
	switch f {
	case FormatZip:
		return "ZIP image archive"
	case FormatFacebookText:
		return "Facebook text"
	case FormatDBA:
		return "DBA.dk listing"
	case FormatJSON:
		return "JSON"
	}
	return string(f)
}

// Extension returns the file extension used when the server suggests no filename.
func (f ExportFormat) Extension() string {
	switch f {
	case FormatZip:
		return ".zip"
	case FormatJSON:
		return ".json"
	}
	return ".txt"
}

// zipItemTypes lists the item types that have images to archive.
var zipItemTypes = map[ItemType]bool{
	ItemTypePSACard:       true,
	ItemTypeRawCard:       true,
	ItemTypeSealedProduct: true,
	ItemTypeAuction:       true,
}

// Supports reports whether the (item type, format) pair is exportable.
func Supports(t ItemType, f ExportFormat) bool {
	if !t.Valid() {
		return false
	}
	switch f {
	case FormatZip:
		return zipItemTypes[t]
	case FormatFacebookText, FormatDBA, FormatJSON:
		return true
	}
	return false
}

// ExportRequest describes a single export call. It is built per call and never persisted.
type ExportRequest struct {
	ItemType                 ItemType     `json:"itemType"`
	Format                   ExportFormat `json:"format"`
	ItemIDs                  []ItemID     `json:"itemIds,omitempty"`
	ItemOrder                []ItemID     `json:"itemOrder,omitempty"`
	SortByPrice              bool         `json:"sortByPrice,omitempty"`
	SortAscending            bool         `json:"sortAscending,omitempty"`
	MaintainCategoryGrouping bool         `json:"maintainCategoryGrouping,omitempty"`
}

// Validate checks the format matrix and the auction constraint. ids is the
// resolved list of item IDs the export will cover.
func (r ExportRequest) Validate(ids []ItemID) error {
	if !Supports(r.ItemType, r.Format) {
		return fmt.Errorf("%w: %s for %s", ErrUnsupportedFormat, r.Format, r.ItemType)
	}
	if r.ItemType == ItemTypeAuction && len(ids) != 1 {
		return fmt.Errorf("%w: got %d", ErrAuctionRequiresSingleItem, len(ids))
	}
	if len(ids) == 0 {
		return ErrEmptySelection
	}
	return nil
}

// OrderingSummary describes how the exported items were ordered, or "" if unordered.
func (r ExportRequest) OrderingSummary() string {
	var s string
	switch {
	case len(r.ItemOrder) > 0:
		s = "in custom order"
	case r.SortByPrice && r.SortAscending:
		s = "sorted by price lowest to highest"
	case r.SortByPrice:
		s = "sorted by price highest to lowest"
	default:
		return ""
	}
	if r.MaintainCategoryGrouping && len(r.ItemOrder) == 0 {
		s += ", grouped by category"
	}
	return s
}

// ExportError wraps an export failure with its request context.
type ExportError struct {
	Op       string
	ItemType ItemType
	Format   ExportFormat
	Err      error
}

func (e *ExportError) Error() string {
	return e.Op + " [" + string(e.Format) + "/" + string(e.ItemType) + "]: " + e.Err.Error()
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// NewExportError creates a new ExportError.
func NewExportError(req ExportRequest, op string, err error) *ExportError {
	return &ExportError{Op: op, ItemType: req.ItemType, Format: req.Format, Err: err}
}
