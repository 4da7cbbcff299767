package models

import "time"

// EventType distinguishes institution events from holidays.
type EventType string

const (
	EventTypeEvent   EventType = "event"
	EventTypeHoliday EventType = "holiday"
)

// Valid returns true for a supported event type.
func (t EventType) Valid() bool {
	return t == EventTypeEvent || t == EventTypeHoliday
}

// Event represents an academic calendar entry (event or holiday).
type Event struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description,omitempty"`
	EventType   EventType `db:"event_type" json:"event_type"`
	Date        time.Time `db:"date" json:"date"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// EventFilter narrows event listings.
type EventFilter struct {
	Type *EventType
	From *time.Time
	To   *time.Time
}
