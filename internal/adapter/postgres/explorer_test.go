package postgres_test

import (
	"context"
	"testing"

	"github.com/guillermoBallester/querygate/internal/adapter/postgres"
	"github.com/guillermoBallester/querygate/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExplorer_ListTables(t *testing.T) {
	pool := setupTestDB(t)
	explorer := postgres.NewExplorer(pool, nil)

	tables, err := explorer.ListTables(context.Background())
	require.NoError(t, err)

	names := make(map[string]string)
	for _, tbl := range tables {
		names[tbl.Name] = tbl.Comment
		assert.Equal(t, "public", tbl.Schema)
		assert.Equal(t, "table", tbl.Type)
	}
	assert.Len(t, tables, 3)
	assert.Equal(t, "People who place orders", names["customers"])
}

func TestExplorer_SchemaFilter(t *testing.T) {
	pool := setupTestDB(t)
	explorer := postgres.NewExplorer(pool, []string{"does_not_exist"})

	tables, err := explorer.ListTables(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestExplorer_DescribeTable(t *testing.T) {
	pool := setupTestDB(t)
	explorer := postgres.NewExplorer(pool, nil)

	detail, err := explorer.DescribeTable(context.Background(), "", "orders")
	require.NoError(t, err)

	assert.Equal(t, "public", detail.Schema)
	require.Len(t, detail.Columns, 3)
	assert.Equal(t, "id", detail.Columns[0].Name)
	assert.True(t, detail.Columns[0].IsPrimaryKey)
	assert.False(t, detail.Columns[1].IsPrimaryKey)

	require.Len(t, detail.ForeignKeys, 1)
	assert.Equal(t, "customer_id", detail.ForeignKeys[0].ColumnName)
	assert.Equal(t, "customers", detail.ForeignKeys[0].ReferencedTable)
}

func TestExplorer_DescribeTable_NotFound(t *testing.T) {
	pool := setupTestDB(t)
	explorer := postgres.NewExplorer(pool, nil)

	_, err := explorer.DescribeTable(context.Background(), "", "nope")
	assert.ErrorIs(t, err, port.ErrTableNotFound)

	_, err = explorer.DescribeTable(context.Background(), "public", "nope")
	assert.ErrorIs(t, err, port.ErrTableNotFound)
}
