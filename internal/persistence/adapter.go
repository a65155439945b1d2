// Package persistence stores ordering state and export session data in a
// key/value store. Nothing here returns errors to callers: failures are logged
// and reported as false or nil, and in-memory state stays authoritative.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iconidentify/cardvault/internal/domain"
	"github.com/iconidentify/cardvault/internal/repository"
)

// Storage keys.
const (
	OrderingKey = "cardvault.ordering.v2"
	SessionKey  = "cardvault.export_session.v2"

	LegacyOrderKey     = "cardvault.itemOrder"
	LegacySelectionKey = "cardvault.selectedItems"
)

// Config controls session expiry and auto-save timing.
type Config struct {
	// SessionTTL is how long session data stays valid after its last write.
	// Default: 24h
	SessionTTL time.Duration

	// AutoSaveInterval is how often the auto-save callback is polled.
	// Default: 5s
	AutoSaveInterval time.Duration

	// AutoSaveThrottle is the minimum gap between two ordering writes.
	// Default: 1s
	AutoSaveThrottle time.Duration
}

// DefaultConfig returns the default timings.
func DefaultConfig() Config {
	return Config{
		SessionTTL:       24 * time.Hour,
		AutoSaveInterval: 5 * time.Second,
		AutoSaveThrottle: time.Second,
	}
}

// Adapter persists ordering state and session data.
type Adapter struct {
	store  repository.KeyValueStore
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	// lastWrite is the time of the last ordering write, explicit or automatic.
	writeMu   sync.Mutex
	lastWrite time.Time

	autoMu     sync.Mutex
	autoCancel context.CancelFunc
	autoDone   chan struct{}
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithClock overrides the time source used for TTL and throttle checks.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		a.now = now
	}
}

// NewAdapter creates an adapter over store. Zero SessionTTL and
// AutoSaveInterval take defaults; a zero AutoSaveThrottle disables throttling.
func NewAdapter(store repository.KeyValueStore, cfg Config, logger *slog.Logger, opts ...Option) *Adapter {
	def := DefaultConfig()
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = def.SessionTTL
	}
	if cfg.AutoSaveInterval <= 0 {
		cfg.AutoSaveInterval = def.AutoSaveInterval
	}
	if cfg.AutoSaveThrottle < 0 {
		cfg.AutoSaveThrottle = def.AutoSaveThrottle
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &Adapter{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SaveOrdering writes state. It returns false if the write was skipped.
func (a *Adapter) SaveOrdering(ctx context.Context, state domain.ItemOrderingState) bool {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return a.saveOrderingLocked(ctx, state)
}

func (a *Adapter) saveOrderingLocked(ctx context.Context, state domain.ItemOrderingState) bool {
	if err := a.putJSON(ctx, OrderingKey, state); err != nil {
		a.logger.Warn("failed to save ordering", "error", err)
		return false
	}
	a.lastWrite = a.now()
	return true
}

// LoadOrdering returns the stored state, or nil if it is absent or corrupt.
func (a *Adapter) LoadOrdering(ctx context.Context) *domain.ItemOrderingState {
	var state domain.ItemOrderingState
	if !a.getJSON(ctx, OrderingKey, &state) {
		return nil
	}
	if !state.LastSortMethod.Valid() {
		a.logger.Warn("discarding stored ordering", "key", OrderingKey, "sort_method", state.LastSortMethod)
		return nil
	}
	if state.GlobalOrder == nil {
		state.GlobalOrder = []domain.ItemID{}
	}
	if state.CategoryOrders == nil {
		state.CategoryOrders = make(map[domain.Category][]domain.ItemID)
	}
	return &state
}

// ClearOrdering deletes the stored ordering.
func (a *Adapter) ClearOrdering(ctx context.Context) bool {
	if err := a.store.Remove(ctx, OrderingKey); err != nil {
		a.logger.Warn("failed to clear ordering", "error", err)
		return false
	}
	return true
}

// SaveSessionData merges patch into the stored session and refreshes its
// LastUpdated time. An expired session is replaced rather than extended.
func (a *Adapter) SaveSessionData(ctx context.Context, patch domain.SessionPatch) bool {
	data := a.GetSessionData(ctx)
	if data == nil || a.expired(data) {
		data = &domain.ExportSessionData{
			SelectedItemIDs: []domain.ItemID{},
			ItemOrder:       []domain.ItemID{},
		}
	}
	patch.Apply(data)
	data.LastUpdated = a.now().UTC()

	if err := a.putJSON(ctx, SessionKey, data); err != nil {
		a.logger.Warn("failed to save session data", "error", err)
		return false
	}
	return true
}

// GetSessionData returns the stored session, or nil if it is absent or corrupt.
// Expiry is not checked here; see IsSessionExpired.
func (a *Adapter) GetSessionData(ctx context.Context) *domain.ExportSessionData {
	var data domain.ExportSessionData
	if !a.getJSON(ctx, SessionKey, &data) {
		return nil
	}
	if data.SelectedItemIDs == nil {
		data.SelectedItemIDs = []domain.ItemID{}
	}
	if data.ItemOrder == nil {
		data.ItemOrder = []domain.ItemID{}
	}
	return &data
}

// IsSessionExpired reports whether the session is older than the TTL.
// An absent or unreadable session counts as expired.
func (a *Adapter) IsSessionExpired(ctx context.Context) bool {
	data := a.GetSessionData(ctx)
	return data == nil || a.expired(data)
}

func (a *Adapter) expired(data *domain.ExportSessionData) bool {
	return a.now().Sub(data.LastUpdated) > a.cfg.SessionTTL
}

// ClearSession deletes the stored session.
func (a *Adapter) ClearSession(ctx context.Context) bool {
	if err := a.store.Remove(ctx, SessionKey); err != nil {
		a.logger.Warn("failed to clear session data", "error", err)
		return false
	}
	return true
}

// CleanupExpiredSessions removes the session if its TTL has elapsed. It
// returns true when something was removed.
func (a *Adapter) CleanupExpiredSessions(ctx context.Context) bool {
	raw, err := a.store.Get(ctx, SessionKey)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			a.logger.Warn("failed to read session data", "error", err)
		}
		return false
	}

	var data domain.ExportSessionData
	if err := json.Unmarshal(raw, &data); err == nil && !a.expired(&data) {
		return false
	}

	if !a.ClearSession(ctx) {
		return false
	}
	a.logger.Info("removed expired export session", "last_updated", data.LastUpdated)
	return true
}

// MigrateOldFormat converts legacy keys into the current schema and removes
// them. It never overwrites current data and is safe to call on every start.
// A legacy key whose conversion could not be written is kept for the next
// start. It returns true if anything was migrated.
func (a *Adapter) MigrateOldFormat(ctx context.Context) bool {
	migrated := false

	if ids, ok := a.readLegacyIDs(ctx, LegacyOrderKey); ok {
		done := true
		if len(ids) > 0 && a.LoadOrdering(ctx) == nil {
			state := domain.ItemOrderingState{
				GlobalOrder:       ids,
				CategoryOrders:    make(map[domain.Category][]domain.ItemID),
				LastSortMethod:    domain.SortMethodManual,
				LastSortTimestamp: a.now().UTC(),
			}
			done = a.SaveOrdering(ctx, state)
			if done {
				migrated = true
				a.logger.Info("migrated legacy item order", "items", len(ids))
			}
		}
		a.finishLegacy(ctx, LegacyOrderKey, done)
	}

	if ids, ok := a.readLegacyIDs(ctx, LegacySelectionKey); ok {
		done := true
		if len(ids) > 0 && a.IsSessionExpired(ctx) {
			done = a.SaveSessionData(ctx, domain.WithSelection(ids))
			if done {
				migrated = true
				a.logger.Info("migrated legacy selection", "items", len(ids))
			}
		}
		a.finishLegacy(ctx, LegacySelectionKey, done)
	}

	return migrated
}

// readLegacyIDs reads a legacy JSON array of IDs. ok is false when the key
// is absent. A corrupt value yields ok with no IDs so it still gets removed.
func (a *Adapter) readLegacyIDs(ctx context.Context, key string) ([]domain.ItemID, bool) {
	raw, err := a.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			a.logger.Warn("failed to read legacy key", "key", key, "error", err)
		}
		return nil, false
	}
	var ids []domain.ItemID
	if err := json.Unmarshal(raw, &ids); err != nil {
		a.logger.Warn("ignoring corrupt legacy data", "key", key, "error", err)
		return []domain.ItemID{}, true
	}
	if ids == nil {
		ids = []domain.ItemID{}
	}
	return ids, true
}

func (a *Adapter) finishLegacy(ctx context.Context, key string, done bool) {
	if !done {
		a.logger.Warn("keeping legacy key after failed migration", "key", key)
		return
	}
	if err := a.store.Remove(ctx, key); err != nil {
		a.logger.Warn("failed to remove legacy key", "key", key, "error", err)
	}
}

func (a *Adapter) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return a.store.Set(ctx, key, data)
}

// getJSON decodes key into v. It returns false for absent or corrupt values.
func (a *Adapter) getJSON(ctx context.Context, key string, v any) bool {
	raw, err := a.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			a.logger.Warn("failed to read stored value", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		a.logger.Warn("ignoring corrupt stored value", "key", key, "error", err)
		return false
	}
	return true
}
