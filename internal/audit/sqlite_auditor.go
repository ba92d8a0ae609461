package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/guillermoBallester/querygate/internal/core/port"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS query_audit (
	id            TEXT PRIMARY KEY,
	ts            TEXT NOT NULL,
	tool          TEXT NOT NULL,
	sql_text      TEXT NOT NULL,
	decision      TEXT NOT NULL,
	reason        TEXT,
	rows_returned INTEGER NOT NULL DEFAULT 0,
	duration_ms   INTEGER NOT NULL DEFAULT 0,
	error         TEXT
);
CREATE INDEX IF NOT EXISTS idx_query_audit_decision ON query_audit(decision, reason);
`

const sqliteInsert = `
INSERT INTO query_audit (id, ts, tool, sql_text, decision, reason, rows_returned, duration_ms, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLiteAuditor stores audit entries in an embedded SQLite database so
// rejections can be queried after the fact.
type SQLiteAuditor struct {
	db *sql.DB
}

// NewSQLiteAuditor opens (or creates) the database at path and applies the schema.
func NewSQLiteAuditor(path string) (*SQLiteAuditor, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening audit db: %w", err)
	}
	// SQLite allows one writer; serialize through a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating audit db: %w", err)
	}
	return &SQLiteAuditor{db: db}, nil
}

func (a *SQLiteAuditor) Record(ctx context.Context, entry port.AuditEntry) {
	rec := newRecord(entry)
	// Audit must not fail the request, nor be cancelled with it.
	_, _ = a.db.ExecContext(context.WithoutCancel(ctx), sqliteInsert,
		rec.ID, rec.Timestamp, rec.Tool, rec.SQL, rec.Decision,
		nullString(rec.Reason), rec.RowsReturned, rec.DurationMS, rec.Error,
	)
}

// CountByReason returns how many rejected entries were recorded per reason code.
func (a *SQLiteAuditor) CountByReason(ctx context.Context) (map[string]int, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT reason, count(*) FROM query_audit WHERE decision = ? GROUP BY reason`, decisionRejected)
	if err != nil {
		return nil, fmt.Errorf("counting rejections: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var reason sql.NullString
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, fmt.Errorf("scanning rejection count: %w", err)
		}
		counts[reason.String] = n
	}
	return counts, rows.Err()
}

func (a *SQLiteAuditor) Close() error {
	return a.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
