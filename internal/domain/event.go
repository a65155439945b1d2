package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// EventID identifies a notification.
type EventID string

func (id EventID) String() string {
	return string(id)
}

// EventSeverity is the toast style of a notification.
type EventSeverity string

const (
	EventSeverityInfo    EventSeverity = "info"
	EventSeverityWarning EventSeverity = "warning"
	EventSeverityError   EventSeverity = "error"
	EventSeveritySuccess EventSeverity = "success"
)

// EventSeverities lists every severity, mildest first.
func EventSeverities() []EventSeverity {
	return []EventSeverity{EventSeverityInfo, EventSeveritySuccess, EventSeverityWarning, EventSeverityError}
}

// EventCategory groups notifications by the subsystem that raised them.
type EventCategory string

const (
	EventCategoryExport    EventCategory = "export"
	EventCategoryOrdering  EventCategory = "ordering"
	EventCategorySelection EventCategory = "selection"
	EventCategoryStorage   EventCategory = "storage"
	EventCategorySystem    EventCategory = "system"
)

// EventCategories lists every category.
func EventCategories() []EventCategory {
	return []EventCategory{
		EventCategoryExport,
		EventCategoryOrdering,
		EventCategorySelection,
		EventCategoryStorage,
		EventCategorySystem,
	}
}

// Event is a user-facing notification. Front-ends render them as toasts.
type Event struct {
	ID        EventID         `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Severity  EventSeverity   `json:"severity"`
	Category  EventCategory   `json:"category"`
	Message   string          `json:"message"`
	Source    string          `json:"source,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// NewEvent builds an unstamped notification. The emitter assigns ID and Timestamp.
func NewEvent(severity EventSeverity, category EventCategory, source, message string, metadata EventMetadata) Event {
	return Event{
		Severity: severity,
		Category: category,
		Source:   source,
		Message:  message,
		Metadata: metadata.ToJSON(),
	}
}

// EventMetadata carries structured detail such as item counts or file names.
type EventMetadata map[string]any

// ToJSON encodes m, returning nil for empty or unencodable metadata.
func (m EventMetadata) ToJSON() json.RawMessage {
	if len(m) == 0 {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return data
}

// EventFilter narrows a notification query. Zero fields match everything.
type EventFilter struct {
	Severity   *EventSeverity `json:"severity,omitempty"`
	Category   *EventCategory `json:"category,omitempty"`
	Source     string         `json:"source,omitempty"`
	StartTime  *time.Time     `json:"start_time,omitempty"`
	EndTime    *time.Time     `json:"end_time,omitempty"`
	SearchText string         `json:"search_text,omitempty"`
}

// Matches reports whether e passes every set field of f. SearchText is
// matched case-insensitively against the message.
func (f EventFilter) Matches(e Event) bool {
	switch {
	case f.Severity != nil && e.Severity != *f.Severity:
		return false
	case f.Category != nil && e.Category != *f.Category:
		return false
	case f.Source != "" && e.Source != f.Source:
		return false
	case f.StartTime != nil && e.Timestamp.Before(*f.StartTime):
		return false
	case f.EndTime != nil && e.Timestamp.After(*f.EndTime):
		return false
	case f.SearchText != "" && !strings.Contains(strings.ToLower(e.Message), strings.ToLower(f.SearchText)):
		return false
	}
	return true
}

// EventEmitter is the notification layer. Emitting never blocks the caller.
type EventEmitter interface {
	Emit(event Event)
	EmitInfo(category EventCategory, source, message string, metadata EventMetadata)
	EmitWarning(category EventCategory, source, message string, metadata EventMetadata)
	EmitError(category EventCategory, source, message string, metadata EventMetadata)
	EmitSuccess(category EventCategory, source, message string, metadata EventMetadata)
}

// EventQuery is a filtered page of notifications, newest first.
type EventQuery struct {
	Filter EventFilter `json:"filter"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// EventQueryResult is one page of a query. Total counts every match.
type EventQueryResult struct {
	Events  []Event `json:"events"`
	Total   int     `json:"total"`
	HasMore bool    `json:"has_more"`
}
