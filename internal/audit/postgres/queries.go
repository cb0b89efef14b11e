package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/alfredjeanlab/gatepass/internal/model"
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queryLockCategory holds the category's advisory lock until the
// surrounding transaction ends.
func queryLockCategory(ctx context.Context, db executor, category model.Category) error {
	_, err := db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(category))
	return err
}

// queryAppend inserts e as the next entry of its category and fills in the
// allocated sequence number. The caller holds the category lock.
func queryAppend(ctx context.Context, db executor, e *model.AuditEntry) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO audit_entries (category, seq, created_at, payload)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2::timestamptz, $3::jsonb
		FROM audit_entries
		WHERE category = $1
		RETURNING seq`,
		string(e.Category),
		e.Timestamp,
		string(e.Payload),
	).Scan(&e.Seq)
}

func queryList(ctx context.Context, db executor, category model.Category) ([]model.AuditEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT seq, category, created_at, payload
		FROM audit_entries
		WHERE category = $1
		ORDER BY seq`,
		string(category),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.AuditEntry{}
	for rows.Next() {
		var (
			e       model.AuditEntry
			cat     string
			payload []byte
		)
		if err := rows.Scan(&e.Seq, &cat, &e.Timestamp, &payload); err != nil {
			return nil, err
		}
		e.Category = model.Category(cat)
		e.Timestamp = e.Timestamp.UTC()
		e.Payload = json.RawMessage(payload)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
