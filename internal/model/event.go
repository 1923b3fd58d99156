package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Event is one row of the audit trail. Every bus publish is recorded here
// first, so the trail stays complete even when NATS is down.
type Event struct {
	ID        int64           `json:"id"`
	Topic     string          `json:"topic"`
	Subject   string          `json:"subject"`
	Actor     string          `json:"actor,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// ShortTopic strips the shared "deptex." root for compact display.
func (e *Event) ShortTopic() string {
	return strings.TrimPrefix(e.Topic, "deptex.")
}
