package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/guillermoBallester/querygate/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteAuditor_RecordAndCount(t *testing.T) {
	t.Parallel()
	sa, err := NewSQLiteAuditor(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer func() { require.NoError(t, sa.Close()) }()

	ctx := context.Background()
	sa.Record(ctx, port.AuditEntry{Tool: "query", SQL: "SELECT 1", Accepted: true, RowsReturned: 1})
	sa.Record(ctx, port.AuditEntry{Tool: "query", SQL: "DROP TABLE t", Reason: "destructive_operation", Err: errors.New("blocked")})
	sa.Record(ctx, port.AuditEntry{Tool: "query", SQL: "DELETE FROM t", Reason: "destructive_operation", Err: errors.New("blocked")})
	sa.Record(ctx, port.AuditEntry{Tool: "check_query", SQL: "SELECT 1; SELECT 2", Reason: "multi_statement", Err: errors.New("blocked")})

	counts, err := sa.CountByReason(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"destructive_operation": 2,
		"multi_statement":       1,
	}, counts)

	var rows int
	require.NoError(t, sa.db.QueryRow(`SELECT count(*) FROM query_audit`).Scan(&rows))
	assert.Equal(t, 4, rows)
}

func TestSQLiteAuditor_Reopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audit.db")

	sa, err := NewSQLiteAuditor(path)
	require.NoError(t, err)
	sa.Record(context.Background(), port.AuditEntry{Tool: "query", SQL: "SELECT 1 OR 1=1", Reason: "not_select"})
	require.NoError(t, sa.Close())

	sa, err = NewSQLiteAuditor(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, sa.Close()) }()

	counts, err := sa.CountByReason(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts["not_select"])
}

func TestSQLiteAuditor_SurvivesCancelledContext(t *testing.T) {
	t.Parallel()
	sa, err := NewSQLiteAuditor(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer func() { require.NoError(t, sa.Close()) }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sa.Record(ctx, port.AuditEntry{Tool: "query", SQL: "SELECT 1", Accepted: true})

	var rows int
	require.NoError(t, sa.db.QueryRow(`SELECT count(*) FROM query_audit`).Scan(&rows))
	assert.Equal(t, 1, rows)
}
