package domain

import "errors"

// Domain errors.
var (
	// ErrMissingItemID is returned when a collection item has no ID.
	ErrMissingItemID = errors.New("item ID is required")

	// ErrUnknownCategory is returned for a category outside the known set.
	ErrUnknownCategory = errors.New("unknown item category")

	// ErrCategoryMismatch is returned when an item's payload disagrees with its category tag.
	ErrCategoryMismatch = errors.New("item payload does not match category")

	// ErrItemNotFound is returned when an item ID is not part of the current listing.
	ErrItemNotFound = errors.New("item not found")

	// ErrUnsupportedFormat is returned for an unsupported item type / format combination.
	ErrUnsupportedFormat = errors.New("unsupported export format")

	// ErrAuctionRequiresSingleItem is returned when an auction export does not name exactly one item.
	ErrAuctionRequiresSingleItem = errors.New("auction export requires exactly one item")

	// ErrEmptySelection is returned when an export has no items.
	ErrEmptySelection = errors.New("no items selected for export")

	// ErrExportInProgress is returned when an export is already running.
	ErrExportInProgress = errors.New("export already in progress")

	// ErrEmptyExport is returned when the remote export returns no data.
	ErrEmptyExport = errors.New("export returned no data")

	// ErrKeyNotFound is returned by key/value stores for a missing key.
	ErrKeyNotFound = errors.New("key not found")

	// ErrQuotaExceeded is returned when a stored value exceeds the storage quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrInsufficientSpace is returned when the download directory is too full.
	ErrInsufficientSpace = errors.New("insufficient disk space for download")
)
