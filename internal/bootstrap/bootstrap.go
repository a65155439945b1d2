// Package bootstrap wires configuration, storage and services into an App
// shared by the server, the CLI and the terminal UI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/iconidentify/cardvault/internal/config"
	"github.com/iconidentify/cardvault/internal/domain"
	"github.com/iconidentify/cardvault/internal/download"
	"github.com/iconidentify/cardvault/internal/ordering"
	"github.com/iconidentify/cardvault/internal/persistence"
	"github.com/iconidentify/cardvault/internal/repository"
	"github.com/iconidentify/cardvault/internal/service"
	"github.com/iconidentify/cardvault/internal/worker"
	"github.com/iconidentify/cardvault/pkg/cardapi"
)

// App holds the wired components.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     repository.KeyValueStore
	Adapter   *persistence.Adapter
	Events    *service.EventService
	Client    cardapi.Client
	Saver     *download.Saver
	Ordering  *service.OrderingService
	Selection *service.SelectionService
	Export    *service.ExportService
}

// Option customises New.
type Option func(*options)

type options struct {
	client cardapi.Client
	saver  []download.Option
}

// WithClient replaces the HTTP collection API client.
func WithClient(c cardapi.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithSaverOptions passes options through to the download saver.
func WithSaverOptions(opts ...download.Option) Option {
	return func(o *options) {
		o.saver = append(o.saver, opts...)
	}
}

// New opens storage and builds every service. The caller must Close the App.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.Storage.Backend != repository.BackendMemory {
		if err := os.MkdirAll(cfg.Storage.BasePath, 0755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}
	store, err := repository.Open(repository.OpenOptions{
		Backend:       cfg.Storage.Backend,
		Dir:           cfg.Storage.BasePath,
		MaxValueBytes: cfg.Storage.MaxValueBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	events, err := service.NewEventService(service.EventServiceConfig{
		RingBufferSize:  cfg.Events.RingBufferSize,
		PersistToSQLite: cfg.Events.PersistToSQLite,
		SQLitePath:      cfg.Events.SQLitePath,
		RetentionDays:   cfg.Events.RetentionDays,
	}, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create event service: %w", err)
	}

	client := o.client
	if client == nil {
		client = cardapi.NewClient(cfg.CollectionAPI)
	}

	adapter := persistence.NewAdapter(store, persistence.Config{
		SessionTTL:       cfg.Session.TTL,
		AutoSaveInterval: cfg.Session.AutoSaveInterval,
		AutoSaveThrottle: cfg.Session.AutoSaveThrottle,
	}, logger)

	orderingSvc := service.NewOrderingService(ordering.NewStore(logger), adapter, events, logger)
	selectionSvc := service.NewSelectionService(adapter, events, logger)
	saver := download.NewSaver(cfg.Download, logger, o.saver...)
	exportSvc := service.NewExportService(client, saver, orderingSvc, selectionSvc, cfg.Preferences, events, logger)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Adapter:   adapter,
		Events:    events,
		Client:    client,
		Saver:     saver,
		Ordering:  orderingSvc,
		Selection: selectionSvc,
		Export:    exportSvc,
	}, nil
}

// Restore loads the persisted ordering and the unexpired selection.
func (a *App) Restore(ctx context.Context) {
	a.Ordering.Load(ctx)
	a.Selection.RestoreFromSession(ctx)
}

// DefaultFormat returns the configured default export format.
func (a *App) DefaultFormat() domain.ExportFormat {
	if a.Config.Preferences.DefaultFormat == "" {
		return domain.FormatZip
	}
	return domain.ExportFormat(a.Config.Preferences.DefaultFormat)
}

// Scheduler returns the maintenance scheduler for this App.
func (a *App) Scheduler() *worker.Scheduler {
	return worker.NewScheduler(a.Logger,
		worker.SessionSweepTask(a.Adapter, a.Config.Maintenance.SessionSweepInterval),
		worker.EventCleanupTask(a.Events, a.Config.Maintenance.EventCleanupInterval),
	)
}

// ErrWatchUnsupported is returned by Watch for backends without files to watch.
var ErrWatchUnsupported = errors.New("storage backend cannot be watched")

// Watch reports keys written by other processes. Only the file backend
// supports it. The caller must Stop the returned watcher.
func (a *App) Watch(ctx context.Context, onChange func(key string)) (*repository.Watcher, error) {
	fs, ok := a.Store.(*repository.FilesystemKeyValueStore)
	if !ok {
		return nil, ErrWatchUnsupported
	}
	w, err := repository.NewWatcher(fs, a.Config.Storage.WatchDebounce, a.Logger)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx, onChange); err != nil {
		w.Stop()
		return nil, err
	}
	return w, nil
}

// ApplyExternalChange reloads state after another process wrote key. Our own
// writes are reported too; an ordering that is not newer than the in-memory
// one is ignored so that unsaved local changes survive.
func (a *App) ApplyExternalChange(ctx context.Context, key string) {
	switch key {
	case persistence.OrderingKey:
		persisted := a.Adapter.LoadOrdering(ctx)
		if persisted == nil || !persisted.LastSortTimestamp.After(a.Ordering.State().LastSortTimestamp) {
			return
		}
		if a.Ordering.Reload(ctx) {
			a.Logger.Info("ordering reloaded after external change")
		}
	case persistence.SessionKey:
		a.Selection.RestoreFromSession(ctx)
	}
}

// Close flushes pending state and releases storage.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.Ordering.StopAutoSave()
	if a.Ordering.Dirty() {
		a.Ordering.Save(ctx)
	}

	return errors.Join(a.Events.Close(), a.Store.Close())
}
