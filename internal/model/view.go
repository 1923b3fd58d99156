package model

import (
	"encoding/json"
	"time"
)

// SavedView is a named, persisted graph configuration: scope plus the
// filter and layout settings to restore when it is loaded.
type SavedView struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Name      string          `json:"name"`
	Scope     string          `json:"scope"`
	Filters   json.RawMessage `json:"filters,omitempty"`
	Layout    json.RawMessage `json:"layout,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Preference is a single per-user key/value setting. Role and permission
// grants are stored as plain strings under well-known keys alongside
// display preferences.
type Preference struct {
	UserID    string    `json:"user_id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Well-known preference keys.
const (
	PrefRole        = "role"
	PrefPermissions = "permissions"
	PrefTheme       = "theme"
	PrefLastScope   = "last_scope"
)
