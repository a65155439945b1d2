package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/iconidentify/cardvault/internal/domain"
	"github.com/iconidentify/cardvault/internal/service"
	"github.com/iconidentify/cardvault/pkg/cardapi"
)

func postExport(env *testEnv, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/export", strings.NewReader(body))
	w := httptest.NewRecorder()
	env.exportHandler.Start(w, req)
	return w
}

func TestExportHandler_Start_SavedOrder(t *testing.T) {
	env := newTestEnv(t)
	env.ordering.SortByPrice(t.Context(), testItems(), true)
	env.selection.ToggleSelection(t.Context(), "B")

	w := postExport(env, `{"item_type":"psa-card","use_saved_order":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (%s)", w.Code, http.StatusOK, w.Body.String())
	}

	var outcome service.ExportOutcome
	if err := json.NewDecoder(w.Body).Decode(&outcome); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if diff := cmp.Diff([]domain.ItemID{"A", "C", "B"}, outcome.ItemIDs); diff != "" {
		t.Errorf("exported order mismatch (-want +got):\n%s", diff)
	}
	if want := "Exported 3 item(s) as ZIP image archive (sorted by price lowest to highest)"; outcome.Message != want {
		t.Errorf("message = %q, want %q", outcome.Message, want)
	}
	if got := w.Header().Get("X-Export-ID"); got == "" || got != outcome.ID {
		t.Errorf("X-Export-ID = %q, want %q", got, outcome.ID)
	}
	if outcome.File == nil || outcome.File.Name != "export.zip" {
		t.Errorf("file = %+v, want export.zip", outcome.File)
	}

	if env.client.calls() != 1 {
		t.Fatalf("export calls = %d, want 1", env.client.calls())
	}
	sent := env.client.reqs[0]
	if sent.Format != domain.FormatZip {
		t.Errorf("format = %q, want default zip", sent.Format)
	}
	if env.selection.Count() != 0 {
		t.Error("selection should be cleared after a successful export")
	}
}

func TestExportHandler_Start_Selection(t *testing.T) {
	env := newTestEnv(t)
	env.selection.ToggleSelection(t.Context(), "C")
	env.selection.ToggleSelection(t.Context(), "A")

	w := postExport(env, `{"item_type":"collection","format":"facebook-text","use_selection":true,"item_order":["A","C"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (%s)", w.Code, http.StatusOK, w.Body.String())
	}

	var outcome service.ExportOutcome
	json.NewDecoder(w.Body).Decode(&outcome)
	if diff := cmp.Diff([]domain.ItemID{"A", "C"}, outcome.ItemIDs); diff != "" {
		t.Errorf("exported order mismatch (-want +got):\n%s", diff)
	}
}

func TestExportHandler_Start_Rejected(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		want      int
		wantToast string
	}{
		{"auction with several items", `{"item_type":"auction","item_ids":["A","B"]}`, http.StatusBadRequest,
			"Cannot export ZIP image archive for auction: auctions need exactly one item"},
		{"zip for a collection", `{"item_type":"collection","format":"zip"}`, http.StatusBadRequest,
			"Cannot export ZIP image archive for collection: format not available for this item type"},
		{"empty selection", `{"item_type":"psa-card","use_selection":true}`, http.StatusBadRequest,
			"Cannot export ZIP image archive for psa-card: select at least one item"},
		{"unknown field", `{"item_type":"psa-card","sort":"price"}`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := postExport(env, tt.body)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
			if env.client.calls() != 0 {
				t.Errorf("export calls = %d, want 0", env.client.calls())
			}

			var toast string
			for _, e := range env.events.GetRecent(10) {
				if e.Category == domain.EventCategoryExport {
					toast = e.Message
					break
				}
			}
			if toast != tt.wantToast {
				t.Errorf("toast = %q, want %q", toast, tt.wantToast)
			}
		})
	}
}

func TestExportHandler_Start_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.client.err = &cardapi.APIError{StatusCode: http.StatusInternalServerError, Message: "renderer crashed"}
	env.selection.ToggleSelection(t.Context(), "A")

	w := postExport(env, `{"item_type":"psa-card","item_ids":["A"]}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
	if !env.selection.IsSelected("A") {
		t.Error("selection should survive a failed export")
	}

	status := env.export.GetStatus()
	if status == nil || status.Phase != service.ExportPhaseFailed {
		t.Errorf("status = %+v, want failed", status)
	}
}

func TestExportHandler_Start_ListFailure(t *testing.T) {
	env := newTestEnv(t)
	env.lister.err = errors.New("timeout")

	w := postExport(env, `{"item_type":"psa-card"}`)
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
}

func TestExportHandler_Status(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.exportHandler.Status(w, httptest.NewRequest(http.MethodGet, "/api/v1/export/status", nil))
	var idle ExportStatusResponse
	json.NewDecoder(w.Body).Decode(&idle)
	if idle.Active || idle.Export != nil {
		t.Errorf("idle status = %+v", idle)
	}

	postExport(env, `{"item_type":"raw-card"}`)

	w = httptest.NewRecorder()
	env.exportHandler.Status(w, httptest.NewRequest(http.MethodGet, "/api/v1/export/status", nil))
	var done ExportStatusResponse
	json.NewDecoder(w.Body).Decode(&done)
	if done.Active {
		t.Error("export should not be active after completion")
	}
	if done.Export == nil || done.Export.Phase != service.ExportPhaseCompleted || done.Export.ItemCount != 1 {
		t.Errorf("export status = %+v, want completed with 1 item", done.Export)
	}
}

func TestExportHandler_Formats(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.exportHandler.Formats(w, httptest.NewRequest(http.MethodGet, "/api/v1/export/formats", nil))

	var resp FormatsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Default != "zip" {
		t.Errorf("default = %q, want zip", resp.Default)
	}

	want := []domain.ExportFormat{domain.FormatFacebookText, domain.FormatDBA, domain.FormatJSON}
	if diff := cmp.Diff(want, resp.Formats[domain.ItemTypeCollection]); diff != "" {
		t.Errorf("collection formats mismatch (-want +got):\n%s", diff)
	}
	if got := resp.Formats[domain.ItemTypeAuction]; len(got) != 4 {
		t.Errorf("auction formats = %v, want all four", got)
	}
}
