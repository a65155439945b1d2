package handler

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/iconidentify/cardvault/internal/config"
	"github.com/iconidentify/cardvault/internal/domain"
	"github.com/iconidentify/cardvault/internal/download"
	"github.com/iconidentify/cardvault/internal/ordering"
	"github.com/iconidentify/cardvault/internal/persistence"
	"github.com/iconidentify/cardvault/internal/repository"
	"github.com/iconidentify/cardvault/internal/service"
	"github.com/iconidentify/cardvault/pkg/cardapi"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockLister serves a fixed collection.
type mockLister struct {
	items []domain.CollectionItem
	err   error
}

func (m *mockLister) ListItems(ctx context.Context, category domain.Category) ([]domain.CollectionItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	if category == "" {
		return m.items, nil
	}
	var out []domain.CollectionItem
	for _, it := range m.items {
		if it.Category == category {
			out = append(out, it)
		}
	}
	return out, nil
}

// mockExportClient records export requests.
type mockExportClient struct {
	mu   sync.Mutex
	reqs []domain.ExportRequest
	err  error
}

func (m *mockExportClient) Export(ctx context.Context, req domain.ExportRequest) (*cardapi.ExportResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	if m.err != nil {
		return nil, m.err
	}
	return &cardapi.ExportResult{Data: []byte("data"), Filename: "export" + req.Format.Extension()}, nil
}

func (m *mockExportClient) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reqs)
}

func testItems() []domain.CollectionItem {
	return []domain.CollectionItem{
		domain.NewGradedCard("A", "Charizard", 10, domain.GradedDetails{Grade: 9}),
		domain.NewGradedCard("B", "Blastoise", 30, domain.GradedDetails{Grade: 10}),
		domain.NewGradedCard("C", "Venusaur", 20, domain.GradedDetails{Grade: 8}),
		domain.NewRawCard("R", "Pikachu", 5, domain.RawDetails{Condition: "NM"}),
	}
}

// testEnv is a fully wired set of handlers backed by in-memory storage.
type testEnv struct {
	lister    *mockLister
	client    *mockExportClient
	kv        repository.KeyValueStore
	events    *service.EventService
	ordering  *service.OrderingService
	selection *service.SelectionService
	export    *service.ExportService

	orderingHandler  *OrderingHandler
	selectionHandler *SelectionHandler
	exportHandler    *ExportHandler
	eventHandler     *EventHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	events, err := service.NewEventService(service.EventServiceConfig{RingBufferSize: 50}, testLogger())
	if err != nil {
		t.Fatalf("NewEventService: %v", err)
	}
	t.Cleanup(func() { events.Close() })

	kv := repository.NewInMemoryKeyValueStore(0)
	adapter := persistence.NewAdapter(kv, persistence.DefaultConfig(), testLogger())
	orderingSvc := service.NewOrderingService(ordering.NewStore(testLogger()), adapter, events, testLogger())
	selectionSvc := service.NewSelectionService(adapter, events, testLogger())
	saver := download.NewSaver(config.DownloadConfig{Dir: filepath.Join(t.TempDir(), "downloads")}, testLogger(),
		download.WithFreeSpaceFunc(func(string) int64 { return 0 }))

	lister := &mockLister{items: testItems()}
	client := &mockExportClient{}
	exportSvc := service.NewExportService(client, saver, orderingSvc, selectionSvc, config.PreferencesConfig{}, events, testLogger())

	return &testEnv{
		lister:           lister,
		client:           client,
		kv:               kv,
		events:           events,
		ordering:         orderingSvc,
		selection:        selectionSvc,
		export:           exportSvc,
		orderingHandler:  NewOrderingHandler(lister, orderingSvc, testLogger()),
		selectionHandler: NewSelectionHandler(lister, selectionSvc, testLogger()),
		exportHandler:    NewExportHandler(lister, exportSvc, selectionSvc, domain.FormatZip, testLogger()),
		eventHandler:     NewEventHandler(events, testLogger()),
	}
}
