// Package idgen mints short URL-safe identifiers for records the gateway
// creates itself. Entities owned by the core API keep the ids the backend
// assigned.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for gateway-minted records.
const (
	PrefixView         = "view-"
	PrefixChat         = "chat-"
	PrefixConversation = "conv-"
	PrefixViolation    = "vio-"
)

// alphabet is the URL-safe character set for the random portion.
const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const randLen = 10

// New returns prefix followed by randLen random characters.
func New(prefix string) (string, error) {
	id, err := nanoid.Generate(alphabet, randLen)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
