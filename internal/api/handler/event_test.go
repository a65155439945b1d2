package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iconidentify/cardvault/internal/domain"
)

func TestEventHandler_ListAndRecent(t *testing.T) {
	env := newTestEnv(t)
	env.ordering.SortByPrice(t.Context(), testItems(), true)
	postExport(env, `{"item_type":"raw-card"}`)

	w := httptest.NewRecorder()
	env.eventHandler.List(w, httptest.NewRequest(http.MethodGet, "/api/v1/events?category=export", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var list EventListResponse
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if list.Total != 1 {
		t.Fatalf("total = %d, want 1", list.Total)
	}
	if got := list.Events[0]; got.Severity != "success" || !strings.HasPrefix(got.Message, "Exported 1 item(s)") {
		t.Errorf("event = %+v", got)
	}

	w = httptest.NewRecorder()
	env.eventHandler.Recent(w, httptest.NewRequest(http.MethodGet, "/api/v1/events/recent?limit=1", nil))
	var recent RecentEventsResponse
	json.NewDecoder(w.Body).Decode(&recent)
	if len(recent.Events) != 1 || recent.Events[0].Category != "export" {
		t.Errorf("recent = %+v, want the export event", recent.Events)
	}
}

func TestEventHandler_Stats(t *testing.T) {
	env := newTestEnv(t)
	env.events.EmitWarning(domain.EventCategoryStorage, "test", "storage quota exceeded", nil)

	w := httptest.NewRecorder()
	env.eventHandler.Stats(w, httptest.NewRequest(http.MethodGet, "/api/v1/events/stats", nil))

	var stats EventStatsResponse
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if stats.Total != 1 || stats.BySeverity["warning"] != 1 || stats.BySeverity["error"] != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.BufferSize != 50 {
		t.Errorf("buffer_size = %d, want 50", stats.BufferSize)
	}
}

func TestEventHandler_Categories(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.eventHandler.Categories(w, httptest.NewRequest(http.MethodGet, "/api/v1/events/categories", nil))

	var resp map[string][]string
	json.NewDecoder(w.Body).Decode(&resp)
	if got := resp["categories"]; len(got) != len(domain.EventCategories()) || got[0] != "export" {
		t.Errorf("categories = %v", got)
	}

	w = httptest.NewRecorder()
	env.eventHandler.Severities(w, httptest.NewRequest(http.MethodGet, "/api/v1/events/severities", nil))
	json.NewDecoder(w.Body).Decode(&resp)
	if got := resp["severities"]; len(got) != 4 {
		t.Errorf("severities = %v", got)
	}
}

func TestEventHandler_Stream(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		env.eventHandler.Stream(w, req)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for env.events.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	env.events.EmitInfo(domain.EventCategoryOrdering, "test", "moved item 3", nil)
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	if !strings.HasPrefix(body, "event: connected") {
		t.Errorf("stream should start with a connected event, got %q", body)
	}
	if !strings.Contains(body, "moved item 3") {
		t.Errorf("stream body missing event: %q", body)
	}
	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", got)
	}
	if env.events.SubscriberCount() != 0 {
		t.Error("subscriber should be removed after disconnect")
	}
}
