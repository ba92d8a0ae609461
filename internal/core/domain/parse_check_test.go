package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChecker_Validate(t *testing.T) {
	c := NewParseChecker()

	tests := []struct {
		name    string
		sql     string
		wantErr error
	}{
		{"plain select", "SELECT id, name FROM users WHERE id = 1", nil},
		{"trailing semicolon", "SELECT 1;", nil},
		{"join and group by", "SELECT c.name, count(*) FROM orders o JOIN customers c ON c.id = o.customer_id GROUP BY c.name", nil},
		{"select into", "SELECT * INTO backup_users FROM users", ErrNotPlainQuery},
		{"for update", "SELECT * FROM users FOR UPDATE", ErrNotPlainQuery},
		{"syntax error", "SELECT FROM WHERE", ErrParseFailed},
		{"values list is a select node", "VALUES (1), (2)", nil},
		{"insert", "INSERT INTO users (name) VALUES ('x')", ErrNotSelect},
		{"two statements", "SELECT 1; SELECT 2", ErrMultiStatement},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Validate(tt.sql)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseChecker_RejectsWhatTheGateMisses(t *testing.T) {
	// Passes the text rules but creates a table when executed.
	sql := "select * into stolen from users"
	require.True(t, Admit(sql).Accepted())
	assert.ErrorIs(t, NewParseChecker().Validate(sql), ErrNotPlainQuery)
}
