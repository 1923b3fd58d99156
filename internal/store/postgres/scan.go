package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/deptexhq/deptex/internal/model"
)

// scannable covers *sql.Row and *sql.Rows so single-row scanners serve both
// QueryRow and iteration.
type scannable interface {
	Scan(dest ...any) error
}

// collectRows drains rows through scan, surfacing row and iteration errors.
func collectRows[T any](rows *sql.Rows, scan func(scannable) (*T, error)) ([]*T, error) {
	var out []*T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// errIfNoRows converts a write that matched nothing into sql.ErrNoRows, so
// delete and resolve paths surface missing records the same way reads do.
func errIfNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Column order in each scanner matches the SELECT lists in queries.go.

func scanView(row scannable) (*model.SavedView, error) {
	var v model.SavedView
	var filters, layout []byte
	err := row.Scan(
		&v.ID,
		&v.UserID,
		&v.Name,
		&v.Scope,
		&filters,
		&layout,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(filters) > 0 {
		v.Filters = json.RawMessage(filters)
	}
	if len(layout) > 0 {
		v.Layout = json.RawMessage(layout)
	}
	return &v, nil
}

func scanPreference(row scannable) (*model.Preference, error) {
	var p model.Preference
	if err := row.Scan(&p.UserID, &p.Key, &p.Value, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanChatMessage(row scannable) (*model.ChatMessage, error) {
	var m model.ChatMessage
	if err := row.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanViolation(row scannable) (*model.Violation, error) {
	var v model.Violation
	var resolvedAt sql.NullTime
	err := row.Scan(
		&v.ID,
		&v.BanID,
		&v.OrgID,
		&v.ProjectID,
		&v.Package,
		&v.Version,
		&v.Direct,
		&v.Action,
		&v.Excepted,
		&v.DetectedAt,
		&resolvedAt,
	)
	if err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		v.ResolvedAt = &t
	}
	return &v, nil
}

func scanEvent(row scannable) (*model.Event, error) {
	var e model.Event
	var (
		actor   sql.NullString
		payload []byte
	)
	if err := row.Scan(&e.ID, &e.Topic, &e.Subject, &actor, &payload, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Actor = actor.String
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}
	return &e, nil
}

// jsonbBytes maps an absent json.RawMessage to NULL rather than an empty
// JSONB value.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}
