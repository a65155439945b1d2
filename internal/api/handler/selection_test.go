package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/iconidentify/cardvault/internal/domain"
)

func TestSelectionHandler_Toggle(t *testing.T) {
	env := newTestEnv(t)

	toggle := func(body string) (*httptest.ResponseRecorder, ToggleResponse) {
		w := httptest.NewRecorder()
		env.selectionHandler.Toggle(w, httptest.NewRequest(http.MethodPost, "/api/v1/selection/toggle", strings.NewReader(body)))
		var resp ToggleResponse
		json.NewDecoder(w.Body).Decode(&resp)
		return w, resp
	}

	if _, resp := toggle(`{"item_id":"B"}`); !resp.Selected || resp.Count != 1 {
		t.Errorf("first toggle = %+v, want selected with count 1", resp)
	}
	if _, resp := toggle(`{"item_id":"B"}`); resp.Selected || resp.Count != 0 {
		t.Errorf("second toggle = %+v, want deselected with count 0", resp)
	}
	if w, _ := toggle(`{}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing item_id: status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSelectionHandler_AllGetClear(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.selectionHandler.All(w, httptest.NewRequest(http.MethodPost, "/api/v1/selection/all",
		strings.NewReader(`{"category":"psa-card"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	w = httptest.NewRecorder()
	env.selectionHandler.Get(w, httptest.NewRequest(http.MethodGet, "/api/v1/selection", nil))
	var resp SelectionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if diff := cmp.Diff([]domain.ItemID{"A", "B", "C"}, resp.Selected); diff != "" {
		t.Errorf("selection mismatch (-want +got):\n%s", diff)
	}

	w = httptest.NewRecorder()
	env.selectionHandler.Clear(w, httptest.NewRequest(http.MethodDelete, "/api/v1/selection", nil))
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Count != 0 || len(resp.Selected) != 0 {
		t.Errorf("after clear = %+v, want empty", resp)
	}
}

func TestSelectionHandler_All_UnknownCategory(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.selectionHandler.All(w, httptest.NewRequest(http.MethodPost, "/api/v1/selection/all",
		strings.NewReader(`{"category":"binder"}`)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if env.selection.Count() != 0 {
		t.Error("nothing should be selected")
	}
}
