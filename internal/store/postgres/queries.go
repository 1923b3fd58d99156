package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/deptexhq/deptex/internal/model"
)

// viewColumns is the column list used for SELECT statements on saved_views.
const viewColumns = `id, user_id, name, scope, filters, layout, created_at, updated_at`

// violationColumns is the column list for SELECT statements on violations.
const violationColumns = `id, ban_id, org_id, project_id, package, version,
	direct, action, excepted, detected_at, resolved_at`

// defaultChatLimit caps history reads when the caller does not set one.
const defaultChatLimit = 200

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// querySaveView upserts a view by (user_id, name). The caller supplies the
// id for new rows; on conflict the existing row keeps its id and created_at
// and both are written back into v.
func querySaveView(ctx context.Context, db executor, v *model.SavedView) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO saved_views (id, user_id, name, scope, filters, layout)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, name) DO UPDATE
		SET scope = $4, filters = $5, layout = $6, updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		v.ID,
		v.UserID,
		v.Name,
		v.Scope,
		jsonbBytes(v.Filters),
		jsonbBytes(v.Layout),
	).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
}

func queryGetView(ctx context.Context, db executor, userID, name string) (*model.SavedView, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+viewColumns+` FROM saved_views
		WHERE user_id = $1 AND name = $2`,
		userID, name,
	)
	return scanView(row)
}

func queryListViews(ctx context.Context, db executor, userID string) ([]*model.SavedView, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+viewColumns+` FROM saved_views
		WHERE user_id = $1
		ORDER BY name`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRows(rows, scanView)
}

func queryDeleteView(ctx context.Context, db executor, userID, name string) error {
	res, err := db.ExecContext(ctx, `
		DELETE FROM saved_views
		WHERE user_id = $1 AND name = $2`,
		userID, name,
	)
	if err != nil {
		return err
	}
	return errIfNoRows(res)
}

func querySetPreference(ctx context.Context, db executor, p *model.Preference) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO preferences (user_id, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, key) DO UPDATE SET value = $3, updated_at = NOW()
		RETURNING updated_at`,
		p.UserID, p.Key, p.Value,
	).Scan(&p.UpdatedAt)
}

func queryGetPreference(ctx context.Context, db executor, userID, key string) (*model.Preference, error) {
	row := db.QueryRowContext(ctx, `
		SELECT user_id, key, value, updated_at
		FROM preferences WHERE user_id = $1 AND key = $2`,
		userID, key,
	)
	return scanPreference(row)
}

func queryListPreferences(ctx context.Context, db executor, userID string) ([]*model.Preference, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT user_id, key, value, updated_at
		FROM preferences WHERE user_id = $1
		ORDER BY key`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRows(rows, scanPreference)
}

func queryDeletePreference(ctx context.Context, db executor, userID, key string) error {
	res, err := db.ExecContext(ctx, `
		DELETE FROM preferences
		WHERE user_id = $1 AND key = $2`,
		userID, key,
	)
	if err != nil {
		return err
	}
	return errIfNoRows(res)
}

func queryAddChatMessage(ctx context.Context, db executor, m *model.ChatMessage) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO chat_messages (id, conversation_id, role, content)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		m.ID, m.ConversationID, string(m.Role), m.Content,
	).Scan(&m.CreatedAt)
}

// queryListChatMessages returns the most recent messages of a conversation
// in chronological order. The query reads newest-first so the limit trims
// old history, then the slice is reversed.
func queryListChatMessages(ctx context.Context, db executor, conversationID string, limit int) ([]*model.ChatMessage, error) {
	if limit <= 0 {
		limit = defaultChatLimit
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM chat_messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`,
		conversationID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs, err := collectRows(rows, scanChatMessage)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func queryListConversations(ctx context.Context, db executor, limit int) ([]string, error) {
	if limit <= 0 {
		limit = defaultChatLimit
	}
	rows, err := db.QueryContext(ctx, `
		SELECT conversation_id
		FROM chat_messages
		GROUP BY conversation_id
		ORDER BY MAX(created_at) DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// queryRecordViolation upserts a violation on its natural key. Re-detecting
// a resolved violation reopens it; the original detected_at is kept and the
// stored row's id wins over the caller's.
func queryRecordViolation(ctx context.Context, db executor, v *model.Violation) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO violations (
			id, ban_id, org_id, project_id, package, version,
			direct, action, excepted, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (ban_id, project_id, package, version) DO UPDATE
		SET direct = $7, action = $8, excepted = $9, resolved_at = NULL
		RETURNING id, detected_at`,
		v.ID,
		v.BanID,
		v.OrgID,
		v.ProjectID,
		v.Package,
		v.Version,
		v.Direct,
		string(v.Action),
		v.Excepted,
		v.DetectedAt,
	).Scan(&v.ID, &v.DetectedAt)
}

func queryResolveViolation(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE violations SET resolved_at = NOW()
		WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	return errIfNoRows(res)
}

func queryResolveViolationsForBan(ctx context.Context, db executor, banID string) (int, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE violations SET resolved_at = NOW()
		WHERE ban_id = $1 AND resolved_at IS NULL`,
		banID,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func queryListOpenViolations(ctx context.Context, db executor, orgID string) ([]*model.Violation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+violationColumns+` FROM violations
		WHERE org_id = $1 AND resolved_at IS NULL
		ORDER BY detected_at DESC`,
		orgID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRows(rows, scanViolation)
}

func queryListProjectViolations(ctx context.Context, db executor, projectID string) ([]*model.Violation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+violationColumns+` FROM violations
		WHERE project_id = $1
		ORDER BY detected_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRows(rows, scanViolation)
}

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO events (topic, subject, actor, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		e.Topic, e.Subject, e.Actor, jsonbBytes(e.Payload),
	).Scan(&e.ID, &e.CreatedAt)
}

func queryListEvents(ctx context.Context, db executor, subject string, limit int) ([]*model.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, topic, subject, actor, payload, created_at
		FROM events
		WHERE subject = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		subject, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRows(rows, scanEvent)
}
