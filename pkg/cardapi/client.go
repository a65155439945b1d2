// Package cardapi talks to the remote collection backend: the collection
// listing and the export endpoint.
package cardapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/iconidentify/cardvault/internal/config"
	"github.com/iconidentify/cardvault/internal/domain"
)

// Client is the remote collection backend.
type Client interface {
	// ListItems returns the live collection, optionally limited to one category.
	ListItems(ctx context.Context, category domain.Category) ([]domain.CollectionItem, error)
	// Export asks the backend to render the listed items. It is never retried.
	Export(ctx context.Context, req domain.ExportRequest) (*ExportResult, error)
}

// ExportResult is the binary payload returned by the export endpoint.
type ExportResult struct {
	Data        []byte
	Filename    string
	ItemCount   int
	ContentType string
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed if sent again.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	userAgent  string
	retry      RetryConfig
	httpClient *http.Client
}

// NewClient creates a new collection API client.
func NewClient(cfg config.CollectionAPIConfig) *HTTPClient {
	retry := DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxAttempts = cfg.MaxRetries
	}
	if cfg.RetryDelay > 0 {
		retry.InitialDelay = cfg.RetryDelay
	}
	if cfg.MaxRetryDelay > 0 {
		retry.MaxDelay = cfg.MaxRetryDelay
	}

	return &HTTPClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		userAgent: cfg.UserAgent,
		retry:     retry,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type listResponse struct {
	Items []domain.CollectionItem `json:"items"`
}

// ListItems fetches the collection. Transport errors, 5xx and 429 are retried
// with exponential backoff. Items that fail validation are dropped.
func (c *HTTPClient) ListItems(ctx context.Context, category domain.Category) ([]domain.CollectionItem, error) {
	endpoint := c.baseURL + "/api/collection/items"
	if category != "" {
		endpoint += "?" + url.Values{"category": {string(category)}}.Encode()
	}

	items, err := RetryWithCheck(ctx, c.retry, func() ([]domain.CollectionItem, error) {
		return c.listOnce(ctx, endpoint)
	}, shouldRetry)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	valid := items[:0]
	for _, it := range items {
		if it.Validate() == nil {
			valid = append(valid, it)
		}
	}
	return valid, nil
}

func (c *HTTPClient) listOnce(ctx context.Context, endpoint string) ([]domain.CollectionItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, body)
	}

	var out listResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if out.Items == nil {
		out.Items = []domain.CollectionItem{}
	}
	return out.Items, nil
}

// Export posts the request and returns the rendered file.
func (c *HTTPClient) Export(ctx context.Context, exportReq domain.ExportRequest) (*ExportResult, error) {
	body, err := json.Marshal(exportReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/export", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, data)
	}
	if len(data) == 0 {
		return nil, domain.ErrEmptyExport
	}

	result := &ExportResult{
		Data:        data,
		Filename:    filenameFromHeader(resp.Header.Get("Content-Disposition")),
		ItemCount:   len(exportReq.ItemIDs),
		ContentType: resp.Header.Get("Content-Type"),
	}
	if result.Filename == "" {
		result.Filename = "cardvault-" + string(exportReq.ItemType) + "-export" + exportReq.Format.Extension()
	}
	if n, err := strconv.Atoi(resp.Header.Get("X-Item-Count")); err == nil && n >= 0 {
		result.ItemCount = n
	}
	return result, nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

// newAPIError extracts a message from {"error": ...} or {"detail": ...}
// bodies, falling back to the raw text.
func newAPIError(status int, body []byte) *APIError {
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.Error != "":
			msg = payload.Error
		case payload.Detail != "":
			msg = payload.Detail
		}
	}
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return &APIError{StatusCode: status, Message: msg}
}

// filenameFromHeader returns the base filename from a Content-Disposition value.
func filenameFromHeader(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	name := params["filename"]
	if name == "" {
		return ""
	}
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}

func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return false
	}
	return true
}
