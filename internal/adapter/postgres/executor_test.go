package postgres_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/guillermoBallester/querygate/internal/adapter/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_Explain(t *testing.T) {
	pool := setupTestDB(t)
	executor := postgres.NewExecutor(pool, true, 100, 10*time.Second)
	ctx := context.Background()

	results, err := executor.Execute(ctx, "EXPLAIN SELECT * FROM customers;")
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestExecute_TrailingSemicolon(t *testing.T) {
	pool := setupTestDB(t)
	executor := postgres.NewExecutor(pool, true, 100, 10*time.Second)

	results, err := executor.Execute(context.Background(), "SELECT name FROM customers ORDER BY id;")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "alice", results[0]["name"])
}

func TestExecute_Select_RowLimit(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := pool.Exec(ctx, "INSERT INTO customers (name, email) VALUES ($1, $2)", "user", nil)
		require.NoError(t, err)
	}

	executor := postgres.NewExecutor(pool, true, 3, 10*time.Second)

	results, err := executor.Execute(ctx, "SELECT id, name FROM customers")
	require.NoError(t, err)
	assert.Len(t, results, 3, "should be limited to maxRows=3")
}

func TestExecute_ReadOnlyTransaction(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	executor := postgres.NewExecutor(pool, true, 100, 10*time.Second)

	// This text passes the gate; execution must still leave the schema untouched.
	_, err := executor.Execute(ctx, "SELECT * INTO stolen FROM customers")
	require.Error(t, err)

	var exists bool
	require.NoError(t, pool.QueryRow(ctx, "SELECT to_regclass('public.stolen') IS NOT NULL").Scan(&exists))
	assert.False(t, exists)
}

func TestExecute_StatementTimeout(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	executor := postgres.NewExecutor(pool, true, 100, 1*time.Second)

	_, err := executor.Execute(ctx, "SELECT pg_sleep(30)")
	require.Error(t, err)

	// PostgreSQL cancels with SQLSTATE 57014 (query_canceled), or the Go
	// context expires first.
	errMsg := strings.ToLower(err.Error())
	assert.True(t,
		strings.Contains(errMsg, "statement timeout") ||
			strings.Contains(errMsg, "cancel") ||
			strings.Contains(errMsg, "57014") ||
			strings.Contains(errMsg, "deadline exceeded") ||
			strings.Contains(errMsg, "timeout"),
		"expected timeout-related error, got: %s", err,
	)
}
