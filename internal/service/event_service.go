package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iconidentify/cardvault/internal/domain"
)

const (
	defaultRingSize   = 500
	defaultQueryLimit = 50
	maxQueryLimit     = 200
	subscriberBuffer  = 100
)

// EventServiceConfig configures the notification log.
type EventServiceConfig struct {
	// RingBufferSize is the number of notifications kept in memory.
	RingBufferSize int

	// PersistToSQLite archives every notification in SQLitePath.
	PersistToSQLite bool
	SQLitePath      string

	// RetentionDays bounds the archive. Zero keeps everything.
	RetentionDays int
}

// DefaultEventServiceConfig returns an in-memory log with 30 day retention.
func DefaultEventServiceConfig() EventServiceConfig {
	return EventServiceConfig{
		RingBufferSize: defaultRingSize,
		RetentionDays:  30,
	}
}

// EventService is the notification log: the newest toasts in memory, an
// optional SQLite archive and live fan-out to subscribers.
type EventService struct {
	cfg    EventServiceConfig
	logger *slog.Logger
	now    func() time.Time

	mu   sync.RWMutex
	ring *eventRing

	history *eventHistory

	subMu  sync.RWMutex
	subs   map[uint64]chan domain.Event
	lastID uint64
}

var _ domain.EventEmitter = (*EventService)(nil)

// NewEventService creates the log and opens the archive when enabled.
func NewEventService(cfg EventServiceConfig, logger *slog.Logger) (*EventService, error) {
	if cfg.RingBufferSize <= 0 {
		cfg.RingBufferSize = defaultRingSize
	}

	s := &EventService{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		ring:   newEventRing(cfg.RingBufferSize),
		subs:   make(map[uint64]chan domain.Event),
	}

	if cfg.PersistToSQLite && cfg.SQLitePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
		h, err := openEventHistory(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open notification history: %w", err)
		}
		s.history = h
		logger.Info("notification history enabled", "path", cfg.SQLitePath, "retention_days", cfg.RetentionDays)
	}

	return s, nil
}

// Close closes the archive.
func (s *EventService) Close() error {
	if s.history == nil {
		return nil
	}
	return s.history.close()
}

// Emit stamps e, records it and hands it to every subscriber.
func (s *EventService) Emit(e domain.Event) {
	if e.ID == "" {
		e.ID = domain.EventID("evt_" + uuid.NewString())
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now().UTC()
	}

	s.mu.Lock()
	s.ring.push(e)
	s.mu.Unlock()

	if s.history != nil {
		if err := s.history.insert(context.Background(), e); err != nil {
			s.logger.Warn("failed to archive notification", "event_id", e.ID, "error", err)
		}
	}

	s.broadcast(e)

	s.logger.Log(context.Background(), logLevel(e.Severity), e.Message,
		"event_id", e.ID,
		"category", e.Category,
		"source", e.Source,
	)
}

func logLevel(s domain.EventSeverity) slog.Level {
	switch s {
	case domain.EventSeverityWarning:
		return slog.LevelWarn
	case domain.EventSeverityError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

func (s *EventService) EmitInfo(category domain.EventCategory, source, message string, metadata domain.EventMetadata) {
	s.Emit(domain.NewEvent(domain.EventSeverityInfo, category, source, message, metadata))
}

func (s *EventService) EmitWarning(category domain.EventCategory, source, message string, metadata domain.EventMetadata) {
	s.Emit(domain.NewEvent(domain.EventSeverityWarning, category, source, message, metadata))
}

func (s *EventService) EmitError(category domain.EventCategory, source, message string, metadata domain.EventMetadata) {
	s.Emit(domain.NewEvent(domain.EventSeverityError, category, source, message, metadata))
}

func (s *EventService) EmitSuccess(category domain.EventCategory, source, message string, metadata domain.EventMetadata) {
	s.Emit(domain.NewEvent(domain.EventSeveritySuccess, category, source, message, metadata))
}

func normalizeQuery(q domain.EventQuery) domain.EventQuery {
	switch {
	case q.Limit <= 0:
		q.Limit = defaultQueryLimit
	case q.Limit > maxQueryLimit:
		q.Limit = maxQueryLimit
	}
	q.Offset = max(q.Offset, 0)
	return q
}

// Query pages through the in-memory notifications, newest first.
func (s *EventService) Query(ctx context.Context, q domain.EventQuery) (*domain.EventQueryResult, error) {
	q = normalizeQuery(q)

	s.mu.RLock()
	matched := s.ring.newest(0, q.Filter.Matches)
	s.mu.RUnlock()

	total := len(matched)
	start := min(q.Offset, total)
	end := min(start+q.Limit, total)
	return &domain.EventQueryResult{
		Events:  matched[start:end],
		Total:   total,
		HasMore: end < total,
	}, nil
}

// QueryHistorical pages through the archive. Without one it returns an
// empty result.
func (s *EventService) QueryHistorical(ctx context.Context, q domain.EventQuery) (*domain.EventQueryResult, error) {
	if s.history == nil {
		return &domain.EventQueryResult{Events: []domain.Event{}}, nil
	}
	return s.history.query(ctx, normalizeQuery(q))
}

// GetRecent returns up to n buffered notifications, newest first.
func (s *EventService) GetRecent(n int) []domain.Event {
	if n <= 0 {
		n = defaultQueryLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ring.newest(n, nil)
}

// Subscribe registers a live listener. The caller must Unsubscribe, which
// closes the channel.
func (s *EventService) Subscribe() (uint64, <-chan domain.Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.lastID++
	ch := make(chan domain.Event, subscriberBuffer)
	s.subs[s.lastID] = ch
	s.logger.Debug("notification subscriber added", "subscriber_id", s.lastID, "subscribers", len(s.subs))
	return s.lastID, ch
}

func (s *EventService) Unsubscribe(id uint64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	ch, ok := s.subs[id]
	if !ok {
		return
	}
	delete(s.subs, id)
	close(ch)
	s.logger.Debug("notification subscriber removed", "subscriber_id", id, "subscribers", len(s.subs))
}

// broadcast never blocks; a subscriber that fell behind misses e.
func (s *EventService) broadcast(e domain.Event) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for id, ch := range s.subs {
		select {
		case ch <- e:
		default:
			s.logger.Warn("notification subscriber lagging, dropped event", "subscriber_id", id, "event_id", e.ID)
		}
	}
}

func (s *EventService) SubscriberCount() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subs)
}

// EventStats describes the log's buffers and listeners.
type EventStats struct {
	BufferSize     int  `json:"buffer_size"`
	BufferUsed     int  `json:"buffer_used"`
	SSESubscribers int  `json:"sse_subscribers"`
	SQLiteEnabled  bool `json:"sqlite_enabled"`
}

func (s *EventService) Stats() EventStats {
	s.mu.RLock()
	used := s.ring.size
	s.mu.RUnlock()

	return EventStats{
		BufferSize:     s.cfg.RingBufferSize,
		BufferUsed:     used,
		SSESubscribers: s.SubscriberCount(),
		SQLiteEnabled:  s.history != nil,
	}
}

// CleanupOldEvents drops archived notifications past the retention window.
func (s *EventService) CleanupOldEvents(ctx context.Context) error {
	if s.history == nil || s.cfg.RetentionDays <= 0 {
		return nil
	}

	cutoff := s.now().UTC().AddDate(0, 0, -s.cfg.RetentionDays)
	deleted, err := s.history.prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune notifications: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("pruned notification history", "deleted", deleted, "cutoff", cutoff)
	}
	return nil
}
