package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/iconidentify/cardvault/internal/domain"
	"github.com/iconidentify/cardvault/pkg/cardapi"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// errUpstream marks failures talking to the collection backend.
var errUpstream = errors.New("collection backend unavailable")

// ItemLister fetches the live collection.
type ItemLister interface {
	ListItems(ctx context.Context, category domain.Category) ([]domain.CollectionItem, error)
}

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// errorStatus maps domain and upstream errors to HTTP status codes.
func errorStatus(err error) int {
	var apiErr *cardapi.APIError
	switch {
	case errors.Is(err, domain.ErrUnsupportedFormat),
		errors.Is(err, domain.ErrAuctionRequiresSingleItem),
		errors.Is(err, domain.ErrEmptySelection),
		errors.Is(err, domain.ErrUnknownCategory),
		errors.Is(err, domain.ErrMissingItemID):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrExportInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientSpace):
		return http.StatusInsufficientStorage
	case errors.As(err, &apiErr), errors.Is(err, domain.ErrEmptyExport), errors.Is(err, errUpstream):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// listItems fetches items for category ("" for all) and maps upstream errors.
func listItems(ctx context.Context, lister ItemLister, category domain.Category) ([]domain.CollectionItem, error) {
	if category != "" && !category.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, category)
	}
	items, err := lister.ListItems(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errUpstream, err)
	}
	return items, nil
}
