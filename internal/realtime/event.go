package realtime

import (
	"bufio"
	"time"

	"github.com/goccy/go-json"
)

// Event types
const (
	RecordCreated     = "record.created"
	RecordUpdated     = "record.updated"
	RecordDeleted     = "record.deleted"
	CollectionCreated = "collection.created"
	CollectionUpdated = "collection.updated"
	CollectionDeleted = "collection.deleted"
)

// Event describes one completed mutation. Events are shared read-only
// between every subscriber they are delivered to.
type Event struct {
	Type       string      `json:"type"`
	Collection string      `json:"collection"`
	RecordID   string      `json:"record_id,omitempty"`
	Data       interface{} `json:"data"`
	Timestamp  time.Time   `json:"timestamp"`
}

// NewEvent stamps a new event with the current time
func NewEvent(eventType, collection, recordID string, data interface{}) *Event {
	return &Event{
		Type:       eventType,
		Collection: collection,
		RecordID:   recordID,
		Data:       data,
		Timestamp:  time.Now().UTC(),
	}
}

// WriteSSE writes the event as a server-sent events frame
func (e *Event) WriteSSE(w *bufio.Writer) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return writeFrame(w, e.Type, payload)
}

// WriteConnected writes the frame that opens every stream
func WriteConnected(w *bufio.Writer, collection string, subscribers int) error {
	payload, err := json.Marshal(map[string]interface{}{
		"collection":  collection,
		"subscribers": subscribers,
		"timestamp":   time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return writeFrame(w, "connected", payload)
}

// WriteKeepAlive writes an SSE comment frame, ignored by clients
func WriteKeepAlive(w *bufio.Writer) error {
	_, err := w.WriteString(": keep-alive\n\n")
	return err
}

func writeFrame(w *bufio.Writer, event string, payload []byte) error {
	if _, err := w.WriteString("event: " + event + "\ndata: "); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	_, err := w.WriteString("\n\n")
	return err
}
