package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"timetracker/internal/core"
)

// Event types carried in EntryEvent.Type and the AMQP "type" property.
const (
	EventEntrySaved   = "entry.saved"
	EventEntryDeleted = "entry.deleted"
)

// EntryEvent announces a completed write. Saved events carry the full entry
// so consumers never read back from the backend; deleted events carry the id.
type EntryEvent struct {
	Type            string    `json:"type"`
	ID              string    `json:"id"`
	Date            string    `json:"date,omitempty"`
	Description     string    `json:"description,omitempty"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
	CategoryID      string    `json:"category_id,omitempty"`
	UserID          string    `json:"user_id,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

func NewEntrySavedEvent(e core.FlatTimeEntry, userID string) *EntryEvent {
	return &EntryEvent{
		Type:            EventEntrySaved,
		ID:              e.ID,
		Date:            e.Date,
		Description:     e.Description,
		DurationMinutes: e.DurationMinutes,
		CategoryID:      e.CategoryID,
		UserID:          userID,
		Timestamp:       time.Now(),
	}
}

func NewEntryDeletedEvent(id, userID string) *EntryEvent {
	return &EntryEvent{Type: EventEntryDeleted, ID: id, UserID: userID, Timestamp: time.Now()}
}

// Entry returns the entry a saved event describes.
func (m *EntryEvent) Entry() core.FlatTimeEntry {
	return core.FlatTimeEntry{
		TimeEntry: core.TimeEntry{
			ID:              m.ID,
			Description:     m.Description,
			DurationMinutes: m.DurationMinutes,
			CategoryID:      m.CategoryID,
		},
		Date: m.Date,
	}
}

// ToJSON converts the message to JSON bytes
func (m *EntryEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntryEventFromJSON decodes and checks an event body.
func EntryEventFromJSON(data []byte) (*EntryEvent, error) {
	var msg EntryEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type != EventEntrySaved && msg.Type != EventEntryDeleted {
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("event without entry id")
	}
	return &msg, nil
}
