package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/iconidentify/cardvault/internal/domain"
	"github.com/iconidentify/cardvault/internal/service"
)

// EventHandler serves the notification log.
type EventHandler struct {
	eventSvc  *service.EventService
	logger    *slog.Logger
	keepalive time.Duration
}

// NewEventHandler creates a new event handler.
func NewEventHandler(eventSvc *service.EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		eventSvc:  eventSvc,
		logger:    logger,
		keepalive: 30 * time.Second,
	}
}

// EventListResponse is one page of notifications.
type EventListResponse struct {
	Events  []domain.Event `json:"events"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	HasMore bool           `json:"has_more"`
}

// RecentEventsResponse wraps the newest notifications.
type RecentEventsResponse struct {
	Events []domain.Event `json:"events"`
}

// EventStatsResponse adds a per-severity breakdown of the buffer to the
// service stats.
type EventStatsResponse struct {
	service.EventStats
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"by_severity"`
}

// List handles GET /api/v1/events.
//
// Filters: severity, category, source, search, start_time and end_time
// (RFC3339). Paging: limit (max 200) and offset. historical=true reads the
// SQLite archive instead of the in-memory buffer.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query := parseEventQuery(params)

	lookup := h.eventSvc.Query
	if historical, _ := strconv.ParseBool(params.Get("historical")); historical {
		lookup = h.eventSvc.QueryHistorical
	}
	result, err := lookup(r.Context(), query)
	if err != nil {
		h.logger.Error("failed to query notifications", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to query events")
		return
	}

	writeJSON(w, http.StatusOK, EventListResponse{
		Events:  result.Events,
		Total:   result.Total,
		Limit:   query.Limit,
		Offset:  query.Offset,
		HasMore: result.HasMore,
	})
}

// Recent handles GET /api/v1/events/recent.
func (h *EventHandler) Recent(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 || n > 200 {
		n = 50
	}
	writeJSON(w, http.StatusOK, RecentEventsResponse{Events: h.eventSvc.GetRecent(n)})
}

// Stats handles GET /api/v1/events/stats.
func (h *EventHandler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := EventStatsResponse{
		EventStats: h.eventSvc.Stats(),
		BySeverity: make(map[string]int),
	}
	for _, sev := range domain.EventSeverities() {
		resp.BySeverity[string(sev)] = 0
	}
	for _, e := range h.eventSvc.GetRecent(resp.BufferSize) {
		resp.BySeverity[string(e.Severity)]++
		resp.Total++
	}
	writeJSON(w, http.StatusOK, resp)
}

// Stream handles GET /api/v1/events/stream. Each notification is sent as an
// SSE "event" message; comments keep idle connections open.
func (h *EventHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	subID, notifications := h.eventSvc.Subscribe()
	defer h.eventSvc.Unsubscribe(subID)

	log := h.logger.With("subscriber_id", subID)
	log.Info("notification stream opened", "remote_addr", r.RemoteAddr)

	writeSSE(w, "connected", map[string]uint64{"subscriber_id": subID})
	flusher.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Info("notification stream closed")
			return
		case e, ok := <-notifications:
			if !ok {
				return
			}
			if err := writeSSE(w, "event", e); err != nil {
				log.Warn("failed to write notification", "event_id", e.ID, "error", err)
				continue
			}
		case <-keepalive.C:
			io.WriteString(w, ": keepalive\n\n")
		}
		flusher.Flush()
	}
}

func writeSSE(w io.Writer, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}

// Categories handles GET /api/v1/events/categories.
func (h *EventHandler) Categories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]domain.EventCategory{"categories": domain.EventCategories()})
}

// Severities handles GET /api/v1/events/severities.
func (h *EventHandler) Severities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]domain.EventSeverity{"severities": domain.EventSeverities()})
}

func parseEventQuery(params url.Values) domain.EventQuery {
	query := domain.EventQuery{
		Limit: 50,
		Filter: domain.EventFilter{
			Source:     params.Get("source"),
			SearchText: params.Get("search"),
		},
	}
	if n, err := strconv.Atoi(params.Get("limit")); err == nil && n > 0 {
		query.Limit = n
	}
	if n, err := strconv.Atoi(params.Get("offset")); err == nil && n >= 0 {
		query.Offset = n
	}
	if v := params.Get("severity"); v != "" {
		sev := domain.EventSeverity(v)
		query.Filter.Severity = &sev
	}
	if v := params.Get("category"); v != "" {
		cat := domain.EventCategory(v)
		query.Filter.Category = &cat
	}
	if t, err := time.Parse(time.RFC3339, params.Get("start_time")); err == nil {
		query.Filter.StartTime = &t
	}
	if t, err := time.Parse(time.RFC3339, params.Get("end_time")); err == nil {
		query.Filter.EndTime = &t
	}
	return query
}
