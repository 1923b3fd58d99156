// Package postgres persists the gateway-owned tables: saved views, user
// preferences, chat history, policy violations, and the audit trail. Org,
// project, and dependency data never lands here; the core API owns those.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/deptexhq/deptex/internal/model"
	"github.com/deptexhq/deptex/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
)

// PostgresStore is the durable store.Store implementation.
type PostgresStore struct {
	db *sql.DB
}

var (
	_ store.Store = (*PostgresStore)(nil)
	_ store.Store = (*txStore)(nil)
)

// New connects to Postgres, verifies the connection, and brings the schema
// up to date before returning.
func New(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// RunInTransaction runs fn against a store bound to a single transaction,
// committing when fn returns nil and rolling back otherwise.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(&txStore{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Saved views

func (s *PostgresStore) SaveView(ctx context.Context, view *model.SavedView) error {
	return querySaveView(ctx, s.db, view)
}

func (s *PostgresStore) GetView(ctx context.Context, userID, name string) (*model.SavedView, error) {
	return queryGetView(ctx, s.db, userID, name)
}

func (s *PostgresStore) ListViews(ctx context.Context, userID string) ([]*model.SavedView, error) {
	return queryListViews(ctx, s.db, userID)
}

func (s *PostgresStore) DeleteView(ctx context.Context, userID, name string) error {
	return queryDeleteView(ctx, s.db, userID, name)
}

// Preferences

func (s *PostgresStore) SetPreference(ctx context.Context, pref *model.Preference) error {
	return querySetPreference(ctx, s.db, pref)
}

func (s *PostgresStore) GetPreference(ctx context.Context, userID, key string) (*model.Preference, error) {
	return queryGetPreference(ctx, s.db, userID, key)
}

func (s *PostgresStore) ListPreferences(ctx context.Context, userID string) ([]*model.Preference, error) {
	return queryListPreferences(ctx, s.db, userID)
}

func (s *PostgresStore) DeletePreference(ctx context.Context, userID, key string) error {
	return queryDeletePreference(ctx, s.db, userID, key)
}

// Chat history

func (s *PostgresStore) AddChatMessage(ctx context.Context, m *model.ChatMessage) error {
	return queryAddChatMessage(ctx, s.db, m)
}

func (s *PostgresStore) ListChatMessages(ctx context.Context, conversationID string, limit int) ([]*model.ChatMessage, error) {
	return queryListChatMessages(ctx, s.db, conversationID, limit)
}

func (s *PostgresStore) ListConversations(ctx context.Context, limit int) ([]string, error) {
	return queryListConversations(ctx, s.db, limit)
}

// Policy violations

func (s *PostgresStore) RecordViolation(ctx context.Context, v *model.Violation) error {
	return queryRecordViolation(ctx, s.db, v)
}

func (s *PostgresStore) ResolveViolation(ctx context.Context, id string) error {
	return queryResolveViolation(ctx, s.db, id)
}

func (s *PostgresStore) ResolveViolationsForBan(ctx context.Context, banID string) (int, error) {
	return queryResolveViolationsForBan(ctx, s.db, banID)
}

func (s *PostgresStore) ListOpenViolations(ctx context.Context, orgID string) ([]*model.Violation, error) {
	return queryListOpenViolations(ctx, s.db, orgID)
}

func (s *PostgresStore) ListProjectViolations(ctx context.Context, projectID string) ([]*model.Violation, error) {
	return queryListProjectViolations(ctx, s.db, projectID)
}

// Audit trail

func (s *PostgresStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.db, event)
}

func (s *PostgresStore) ListEvents(ctx context.Context, subject string, limit int) ([]*model.Event, error) {
	return queryListEvents(ctx, s.db, subject, limit)
}

// txStore is the transaction-bound variant handed to RunInTransaction
// callbacks. Every query helper takes an executor, so the method bodies are
// identical to PostgresStore's with s.tx swapped in.
type txStore struct {
	tx *sql.Tx
}

func (s *txStore) SaveView(ctx context.Context, view *model.SavedView) error {
	return querySaveView(ctx, s.tx, view)
}

func (s *txStore) GetView(ctx context.Context, userID, name string) (*model.SavedView, error) {
	return queryGetView(ctx, s.tx, userID, name)
}

func (s *txStore) ListViews(ctx context.Context, userID string) ([]*model.SavedView, error) {
	return queryListViews(ctx, s.tx, userID)
}

func (s *txStore) DeleteView(ctx context.Context, userID, name string) error {
	return queryDeleteView(ctx, s.tx, userID, name)
}

func (s *txStore) SetPreference(ctx context.Context, pref *model.Preference) error {
	return querySetPreference(ctx, s.tx, pref)
}

func (s *txStore) GetPreference(ctx context.Context, userID, key string) (*model.Preference, error) {
	return queryGetPreference(ctx, s.tx, userID, key)
}

func (s *txStore) ListPreferences(ctx context.Context, userID string) ([]*model.Preference, error) {
	return queryListPreferences(ctx, s.tx, userID)
}

func (s *txStore) DeletePreference(ctx context.Context, userID, key string) error {
	return queryDeletePreference(ctx, s.tx, userID, key)
}

func (s *txStore) AddChatMessage(ctx context.Context, m *model.ChatMessage) error {
	return queryAddChatMessage(ctx, s.tx, m)
}

func (s *txStore) ListChatMessages(ctx context.Context, conversationID string, limit int) ([]*model.ChatMessage, error) {
	return queryListChatMessages(ctx, s.tx, conversationID, limit)
}

func (s *txStore) ListConversations(ctx context.Context, limit int) ([]string, error) {
	return queryListConversations(ctx, s.tx, limit)
}

func (s *txStore) RecordViolation(ctx context.Context, v *model.Violation) error {
	return queryRecordViolation(ctx, s.tx, v)
}

func (s *txStore) ResolveViolation(ctx context.Context, id string) error {
	return queryResolveViolation(ctx, s.tx, id)
}

func (s *txStore) ResolveViolationsForBan(ctx context.Context, banID string) (int, error) {
	return queryResolveViolationsForBan(ctx, s.tx, banID)
}

func (s *txStore) ListOpenViolations(ctx context.Context, orgID string) ([]*model.Violation, error) {
	return queryListOpenViolations(ctx, s.tx, orgID)
}

func (s *txStore) ListProjectViolations(ctx context.Context, projectID string) ([]*model.Violation, error) {
	return queryListProjectViolations(ctx, s.tx, projectID)
}

func (s *txStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.tx, event)
}

func (s *txStore) ListEvents(ctx context.Context, subject string, limit int) ([]*model.Event, error) {
	return queryListEvents(ctx, s.tx, subject, limit)
}

// RunInTransaction joins the transaction already in flight.
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
