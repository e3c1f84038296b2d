package webhook

import (
	"encoding/json"
	"time"
)

// EventType identifies one kind of outbound automation event.
type EventType string

// Outbound event types.
const (
	EventNewDocument      EventType = "new_document"
	EventChatQuery        EventType = "chat_query"
	EventContentGenerated EventType = "content_generated"
	EventMeetingSynced    EventType = "meeting_synced"
	EventAirtableUpdated  EventType = "airtable_updated"
)

// EventData is the per-event payload variant. Each event type carries its own
// concrete field set; the wire shape of the envelope stays stable.
type EventData interface {
	isEventData()
}

// NewDocumentData payload for a document upload.
type NewDocumentData struct {
	DocumentID string `json:"document_id"`
	FileName   string `json:"file_name"`
	FileType   string `json:"file_type"`
}

// ChatQueryData payload for a user chat query.
type ChatQueryData struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

// ContentGeneratedData payload for generated content.
type ContentGeneratedData struct {
	ContentID   string `json:"content_id"`
	ContentType string `json:"content_type"` // presentation, report, infographic
	Title       string `json:"title"`
}

// MeetingSyncedData payload for a synced meeting transcript.
type MeetingSyncedData struct {
	MeetingID       string `json:"meeting_id"`
	Title           string `json:"title"`
	DurationSeconds int    `json:"duration_seconds"`
}

// AirtableUpdatedData payload for a completed tabular sync run.
type AirtableUpdatedData struct {
	BaseID      string `json:"base_id"`
	TableCount  int    `json:"table_count"`
	RecordCount int    `json:"record_count"`
	Success     bool   `json:"success"`
}

func (NewDocumentData) isEventData()      {}
func (ChatQueryData) isEventData()        {}
func (ContentGeneratedData) isEventData() {}
func (MeetingSyncedData) isEventData()    {}
func (AirtableUpdatedData) isEventData()  {}

// Event is one outbound automation notification.
type Event struct {
	Type      EventType
	PartnerID string
	Data      EventData
	Timestamp time.Time
}

// wirePayload is the stable contract posted to the automation endpoint.
type wirePayload struct {
	Type      string    `json:"type"`
	PartnerID string    `json:"partner_id"`
	Data      EventData `json:"data"`
	Timestamp string    `json:"timestamp"`
}

// MarshalPayload renders the event into the wire contract
// {type, partner_id, data, timestamp(ISO-8601)}.
func MarshalPayload(event *Event) ([]byte, error) {
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return json.Marshal(wirePayload{
		Type:      string(event.Type),
		PartnerID: event.PartnerID,
		Data:      event.Data,
		Timestamp: ts.UTC().Format(time.RFC3339),
	})
}
