package store

import (
	"context"

	"github.com/deptexhq/deptex/internal/model"
)

// Store defines the gateway's local persistence interface. Dependency and
// vulnerability data stays upstream; this holds only what the gateway owns:
// saved views, user preferences, chat history, violations, audit events.
type Store interface {
	// Saved views
	SaveView(ctx context.Context, view *model.SavedView) error
	GetView(ctx context.Context, userID, name string) (*model.SavedView, error)
	ListViews(ctx context.Context, userID string) ([]*model.SavedView, error)
	DeleteView(ctx context.Context, userID, name string) error

	// Preferences
	SetPreference(ctx context.Context, pref *model.Preference) error
	GetPreference(ctx context.Context, userID, key string) (*model.Preference, error)
	ListPreferences(ctx context.Context, userID string) ([]*model.Preference, error)
	DeletePreference(ctx context.Context, userID, key string) error

	// Chat history
	AddChatMessage(ctx context.Context, m *model.ChatMessage) error
	ListChatMessages(ctx context.Context, conversationID string, limit int) ([]*model.ChatMessage, error)
	ListConversations(ctx context.Context, limit int) ([]string, error)

	// Policy violations
	RecordViolation(ctx context.Context, v *model.Violation) error
	ResolveViolation(ctx context.Context, id string) error
	ResolveViolationsForBan(ctx context.Context, banID string) (int, error)
	ListOpenViolations(ctx context.Context, orgID string) ([]*model.Violation, error)
	ListProjectViolations(ctx context.Context, projectID string) ([]*model.Violation, error)

	// Audit events
	RecordEvent(ctx context.Context, event *model.Event) error
	ListEvents(ctx context.Context, subject string, limit int) ([]*model.Event, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
