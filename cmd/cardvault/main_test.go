package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/iconidentify/cardvault/internal/domain"
)

// fakeBackend serves the collection and export endpoints.
type fakeBackend struct {
	mu      sync.Mutex
	items   []domain.CollectionItem
	exports []domain.ExportRequest
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/collection/items":
		category := domain.Category(r.URL.Query().Get("category"))
		out := []domain.CollectionItem{}
		for _, it := range b.items {
			if category == "" || it.Category == category {
				out = append(out, it)
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"items": out})
	case "/api/export":
		var req domain.ExportRequest
		json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		b.exports = append(b.exports, req)
		b.mu.Unlock()

		ids := make([]string, len(req.ItemIDs))
		for i, id := range req.ItemIDs {
			ids[i] = string(id)
		}
		w.Header().Set("Content-Disposition", `attachment; filename="cards.txt"`)
		w.Write([]byte(strings.Join(ids, ",")))
	default:
		http.NotFound(w, r)
	}
}

func (b *fakeBackend) lastExport(t *testing.T) domain.ExportRequest {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.exports) == 0 {
		t.Fatal("no export request received")
	}
	return b.exports[len(b.exports)-1]
}

// setupCLI points the configuration at a temp directory and a fake backend.
// It returns the download directory.
func setupCLI(t *testing.T) (*fakeBackend, string) {
	t.Helper()
	backend := &fakeBackend{items: []domain.CollectionItem{
		domain.NewGradedCard("A", "Charizard", 10, domain.GradedDetails{Grade: 9}),
		domain.NewGradedCard("B", "Blastoise", 30, domain.GradedDetails{Grade: 10}),
		domain.NewGradedCard("C", "Venusaur", 20, domain.GradedDetails{Grade: 8}),
		domain.NewRawCard("R", "Pikachu", 5, domain.RawDetails{Condition: "NM"}),
	}}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	downloads := filepath.Join(dir, "downloads")
	t.Setenv("STORAGE_BACKEND", "file")
	t.Setenv("STORAGE_PATH", filepath.Join(dir, "state"))
	t.Setenv("DOWNLOAD_DIR", downloads)
	t.Setenv("DOWNLOAD_MIN_FREE_BYTES", "0")
	t.Setenv("COLLECTION_API_URL", srv.URL)
	t.Setenv("COLLECTION_API_MAX_RETRIES", "1")
	t.Setenv("DEFAULT_EXPORT_FORMAT", "facebook-text")
	return backend, downloads
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// listedIDs extracts the ID column of the show table.
func listedIDs(output string) []string {
	var ids []string
	for _, line := range strings.Split(output, "\n")[1:] {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] == "Order:" {
			continue
		}
		ids = append(ids, fields[1])
	}
	return ids
}

func TestCLI_SortPersistsAcrossRuns(t *testing.T) {
	setupCLI(t)

	if _, err := runCLI(t, "", "sort"); err != nil {
		t.Fatalf("sort: %v", err)
	}

	out, err := runCLI(t, "", "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if diff := cmp.Diff([]string{"R", "A", "C", "B"}, listedIDs(out)); diff != "" {
		t.Errorf("shown order mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(out, "Order: price_asc") {
		t.Errorf("show output missing sort method:\n%s", out)
	}
}

func TestCLI_MoveAndReset(t *testing.T) {
	setupCLI(t)

	runCLI(t, "", "show")
	out, err := runCLI(t, "", "move", "C", "up")
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if strings.TrimSpace(out) != "A C B R" {
		t.Errorf("move output = %q, want %q", out, "A C B R")
	}

	if _, err := runCLI(t, "", "move", "C", "sideways"); err == nil {
		t.Error("invalid direction should fail")
	}

	out, _ = runCLI(t, "", "reset")
	if strings.TrimSpace(out) != "A B C R" {
		t.Errorf("reset output = %q, want %q", out, "A B C R")
	}
}

func TestCLI_ExportSavedOrder(t *testing.T) {
	backend, downloads := setupCLI(t)

	runCLI(t, "", "sort", "--desc")
	out, err := runCLI(t, "", "export", "--type", "psa-card", "--saved-order")
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	req := backend.lastExport(t)
	if diff := cmp.Diff([]domain.ItemID{"B", "C", "A"}, req.ItemIDs); diff != "" {
		t.Errorf("exported order mismatch (-want +got):\n%s", diff)
	}
	if req.Format != domain.FormatFacebookText {
		t.Errorf("format = %q, want the configured default", req.Format)
	}
	if !strings.Contains(out, "Exported 3 item(s) as Facebook text (sorted by price highest to lowest)") {
		t.Errorf("unexpected output:\n%s", out)
	}

	data, err := os.ReadFile(filepath.Join(downloads, "cards.txt"))
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if string(data) != "B,C,A" {
		t.Errorf("download = %q, want %q", data, "B,C,A")
	}
}

func TestCLI_ExportSelection(t *testing.T) {
	backend, _ := setupCLI(t)

	out, err := runCLI(t, "", "select", "R", "A")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !strings.Contains(out, "2 item(s) selected: R A") {
		t.Errorf("select output = %q", out)
	}

	if _, err := runCLI(t, "", "export", "--type", "collection", "--format", "json", "--selection", "--order", "A,R"); err != nil {
		t.Fatalf("export: %v", err)
	}
	if diff := cmp.Diff([]domain.ItemID{"A", "R"}, backend.lastExport(t).ItemIDs); diff != "" {
		t.Errorf("exported ids mismatch (-want +got):\n%s", diff)
	}

	out, _ = runCLI(t, "", "select")
	if strings.TrimSpace(out) != "0 item(s) selected" {
		t.Errorf("selection after export = %q, want empty", out)
	}

	if _, err := runCLI(t, "", "export", "--type", "collection", "--format", "json", "--selection"); err == nil {
		t.Error("exporting an empty selection should fail")
	}
}

func TestCLI_SealAndUnseal(t *testing.T) {
	_, downloads := setupCLI(t)

	if _, err := runCLI(t, "hunter2\n", "export", "--type", "auction", "--ids", "B", "--format", "dba", "--seal"); err != nil {
		t.Fatalf("export: %v", err)
	}

	sealed := filepath.Join(downloads, "cards.txt.sealed")
	if _, err := os.Stat(sealed); err != nil {
		t.Fatalf("sealed file missing: %v", err)
	}

	plain := filepath.Join(t.TempDir(), "plain.txt")
	if _, err := runCLI(t, "wrong\n", "unseal", sealed, "-o", plain); err == nil {
		t.Error("wrong password should fail")
	}
	if _, err := runCLI(t, "hunter2\n", "unseal", sealed, "-o", plain); err != nil {
		t.Fatalf("unseal: %v", err)
	}
	data, _ := os.ReadFile(plain)
	if string(data) != "B" {
		t.Errorf("unsealed = %q, want %q", data, "B")
	}
}

func TestExportFlags_Request(t *testing.T) {
	tests := []struct {
		name    string
		flags   exportFlags
		wantErr bool
		check   func(domain.ExportRequest) bool
	}{
		{"price desc", exportFlags{itemType: "raw-card", sortPrice: "desc"}, false,
			func(r domain.ExportRequest) bool { return r.SortByPrice && !r.SortAscending }},
		{"price asc grouped", exportFlags{itemType: "collection", sortPrice: "asc", grouped: true}, false,
			func(r domain.ExportRequest) bool { return r.SortAscending && r.MaintainCategoryGrouping }},
		{"explicit order", exportFlags{itemType: "psa-card", order: []string{"B", "A"}}, false,
			func(r domain.ExportRequest) bool { return len(r.ItemOrder) == 2 && r.ItemOrder[0] == "B" }},
		{"unknown type", exportFlags{itemType: "binder"}, true, nil},
		{"unknown format", exportFlags{itemType: "psa-card", format: "pdf"}, true, nil},
		{"bad sort", exportFlags{itemType: "psa-card", sortPrice: "up"}, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := tt.flags.request()
			if (err != nil) != tt.wantErr {
				t.Fatalf("request() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(req) {
				t.Errorf("request() = %+v", req)
			}
		})
	}
}
