package agent

import (
	"encoding/json"
	"strings"
)

// Content is the normalized chat message body. Assistant replies arrive as
// a JSON object, a JSON-encoded string, or plain prose depending on model
// mood; everything funnels through ParseContent exactly once.
type Content struct {
	Text       string   `json:"text"`
	References []string `json:"references,omitempty"`

	// Fallback is true when the raw value did not parse and Text carries it
	// verbatim.
	Fallback bool `json:"-"`
}

// ParseContent normalizes a stored message body. Unparseable input is never
// an error; the raw text is shown as-is.
func ParseContent(raw string) Content {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, "{") {
		var c Content
		if err := json.Unmarshal([]byte(trimmed), &c); err == nil && c.Text != "" {
			return c
		}
		return Content{Text: raw, Fallback: true}
	}

	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
			return Content{Text: s}
		}
		return Content{Text: raw, Fallback: true}
	}

	return Content{Text: raw}
}
