package domain

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmit_Scenarios(t *testing.T) {
	tests := []struct {
		name   string
		sql    string
		reason Reason
		want   string // accepted value when reason is ReasonNone
	}{
		{"select with trailing semicolon", "SELECT * FROM users;", ReasonNone, "SELECT * FROM users;"},
		{"drop table", "DROP TABLE users", ReasonDestructiveOperation, ""},
		{"stacked drop", "SELECT * FROM users; DROP TABLE users;", ReasonMultiStatement, ""},
		{"tautology", "SELECT * FROM users WHERE 1=1 OR 1=1", ReasonInjectionPattern, ""},
		{"whitespace only", "  ", ReasonEmptyQuery, ""},
		{"update", "UPDATE users SET name='x'", ReasonDestructiveOperation, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Admit(tt.sql)
			assert.Equal(t, tt.reason, d.Reason)
			assert.Equal(t, tt.want, d.Query)
		})
	}
}

func TestAdmit_Empty(t *testing.T) {
	for _, sql := range []string{"", " ", "\t", "\n\r\n", "   \t  "} {
		d := Admit(sql)
		assert.False(t, d.Accepted())
		assert.Equal(t, ReasonEmptyQuery, d.Reason, "input %q", sql)
	}
}

func TestAdmit_TrimsButNeverRewrites(t *testing.T) {
	d := Admit("  \n SeLeCt id, Name FROM Users WHERE id = 1  \t")
	require.True(t, d.Accepted())
	assert.Equal(t, "SeLeCt id, Name FROM Users WHERE id = 1", d.Query)
}

func TestAdmit_Semicolons(t *testing.T) {
	tests := []struct {
		sql    string
		reason Reason
	}{
		{"select 1;", ReasonNone},
		{"select 1", ReasonNone},
		{"select 1 ;", ReasonNone},
		{"select 1;  ", ReasonNone},
		{"select 1;;", ReasonMultiStatement},
		{"select 1; select 2", ReasonMultiStatement},
		{"select ';' from t", ReasonMultiStatement},
		{";select 1", ReasonMultiStatement},
		{";", ReasonNotSelect},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			assert.Equal(t, tt.reason, Admit(tt.sql).Reason)
		})
	}
}

func TestAdmit_InjectionPatterns(t *testing.T) {
	tests := []struct {
		sql  string
		rule string
	}{
		{"select * from users -- where id = 1", "line_comment"},
		{"select * from users/* hidden */", "block_comment_open"},
		{"select * from users */", "block_comment_close"},
		{"select * from users where name = 'a' or 1=1", "tautology"},
		{"select * from users where name = 'a' OR   1 = 1", "tautology"},
		{"select * from users where name = 'a' or\n1=1", "tautology"},
		{"select id from users union select password from secrets", "union_select"},
		{"select id from users UNION\t\tSELECT password from secrets", "union_select"},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			d := Admit(tt.sql)
			assert.Equal(t, ReasonInjectionPattern, d.Reason)
			assert.Equal(t, tt.rule, d.Rule)
		})
	}
}

func TestAdmit_InjectionWordBoundaries(t *testing.T) {
	for _, sql := range []string{
		"select * from t where color = 1",
		"select floor(1) from t",
		"select * from reunion_selections",
		"select * from t where x or 10=1",
	} {
		assert.True(t, Admit(sql).Accepted(), "expected %q to be accepted", sql)
	}
}

func TestAdmit_DestructiveVerbs(t *testing.T) {
	for _, verb := range DefaultDestructiveVerbs {
		t.Run(verb, func(t *testing.T) {
			d := Admit(strings.ToUpper(verb) + " something")
			assert.Equal(t, ReasonDestructiveOperation, d.Reason)
			assert.Equal(t, verb, d.Rule)

			assert.Equal(t, ReasonDestructiveOperation, Admit(verb).Reason, "bare keyword")
		})
	}
}

func TestAdmit_TokenBoundaries(t *testing.T) {
	assert.True(t, Admit("select * from dropped_items").Accepted())
	assert.Equal(t, ReasonDestructiveOperation, Admit("drop table t").Reason)

	// Identifiers that merely start with a destructive verb are not verbs.
	assert.Equal(t, ReasonNotSelect, Admit("dropped_items").Reason)
	assert.Equal(t, ReasonNotSelect, Admit("updates").Reason)
	assert.Equal(t, ReasonNotSelect, Admit("selected from t").Reason)
}

func TestAdmit_DestructiveVerbNotFollowedBySpace(t *testing.T) {
	// The verb is the leading identifier token, so any non-identifier byte
	// ends it, not only a space.
	tests := []struct {
		sql  string
		rule string
	}{
		{"drop\ttable t", "drop"},
		{"DROP\ntable t", "drop"},
		{"delete*", "delete"},
		{"truncate(t)", "truncate"},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			d := Admit(tt.sql)
			assert.Equal(t, ReasonDestructiveOperation, d.Reason)
			assert.Equal(t, tt.rule, d.Rule)
		})
	}
}

func TestAdmit_NotSelect(t *testing.T) {
	for _, sql := range []string{
		"with x as (select 1) select * from x",
		"explain select 1",
		"show tables",
		"(select 1)",
		"grant all on users to public",
		"vacuum",
	} {
		assert.Equal(t, ReasonNotSelect, Admit(sql).Reason, "input %q", sql)
	}
}

func TestAdmit_RuleOrder(t *testing.T) {
	// Multi-statement beats injection and destructive checks.
	assert.Equal(t, ReasonMultiStatement, Admit("drop table t; -- x").Reason)
	// Injection beats the destructive verb check.
	assert.Equal(t, ReasonInjectionPattern, Admit("delete from t -- x").Reason)
	// Destructive beats the allow-list.
	assert.Equal(t, ReasonDestructiveOperation, Admit("insert into t values (1)").Reason)
}

func TestAdmit_AcceptedIsFixedPoint(t *testing.T) {
	for _, sql := range []string{
		"SELECT * FROM users;",
		"  select id from t where a = 'b'  ",
		"select\n  count(*)\nfrom orders\n",
	} {
		first := Admit(sql)
		require.True(t, first.Accepted())
		second := Admit(first.Query)
		require.True(t, second.Accepted())
		assert.Equal(t, first.Query, second.Query)
	}
}

func TestAdmit_AcceptedLeadingTokenIsSelect(t *testing.T) {
	for _, sql := range []string{
		"SELECT 1",
		"select*from t",
		"Select\tid from t;",
	} {
		d := Admit(sql)
		require.True(t, d.Accepted(), sql)
		assert.Equal(t, "select", leadingToken(strings.ToLower(d.Query)))
	}
}

func TestDecision_Err(t *testing.T) {
	assert.NoError(t, Admit("select 1").Err())

	err := Admit("drop table users").Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDestructiveOperation))
	assert.False(t, errors.Is(err, ErrNotSelect))

	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonDestructiveOperation, rej.Reason)
	assert.Equal(t, "drop", rej.Rule)
	assert.Equal(t, "destructive SQL operation blocked (drop)", err.Error())
}

func TestReason_Codes(t *testing.T) {
	tests := []struct {
		reason Reason
		code   string
	}{
		{ReasonEmptyQuery, "empty_query"},
		{ReasonMultiStatement, "multi_statement"},
		{ReasonInjectionPattern, "injection_pattern"},
		{ReasonDestructiveOperation, "destructive_operation"},
		{ReasonNotSelect, "not_select"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, tt.reason.String())
		assert.NotEmpty(t, tt.reason.Message())

		parsed, ok := ParseReason(tt.code)
		require.True(t, ok)
		assert.Equal(t, tt.reason, parsed)
	}

	_, ok := ParseReason("bogus")
	assert.False(t, ok)
	assert.Nil(t, ReasonNone.Sentinel())
}

func TestNewGate_Extensions(t *testing.T) {
	g, err := NewGate(
		WithDestructiveVerbs("GRANT", "revoke"),
		WithInjectionPatterns(InjectionPattern{Name: "union_all_select", Pattern: `\bunion\s+all\s+select\b`}),
	)
	require.NoError(t, err)

	d := g.Admit("grant all on users to public")
	assert.Equal(t, ReasonDestructiveOperation, d.Reason)
	assert.Equal(t, "grant", d.Rule)

	d = g.Admit("select a from t union all select b from u")
	assert.Equal(t, ReasonInjectionPattern, d.Reason)
	assert.Equal(t, "union_all_select", d.Rule)

	// Built-ins stay in place.
	assert.Equal(t, ReasonDestructiveOperation, g.Admit("drop table t").Reason)
	assert.True(t, g.Admit("select 1").Accepted())

	// Extensions never leak into the default gate.
	assert.Equal(t, ReasonNotSelect, Admit("grant all on users to public").Reason)
}

func TestNewGate_InvalidExtensions(t *testing.T) {
	tests := []struct {
		name string
		opt  GateOption
	}{
		{"multi-word verb", WithDestructiveVerbs("drop table")},
		{"empty verb", WithDestructiveVerbs("")},
		{"select as verb", WithDestructiveVerbs("SELECT")},
		{"bad regex", WithInjectionPatterns(InjectionPattern{Name: "broken", Pattern: `(`})},
		{"unnamed pattern", WithInjectionPatterns(InjectionPattern{Pattern: `x`})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGate(tt.opt)
			assert.Error(t, err)
		})
	}
}

func TestGate_ConcurrentAdmit(t *testing.T) {
	g, err := NewGate()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				assert.True(t, g.Admit("select 1").Accepted())
			} else {
				assert.Equal(t, ReasonDestructiveOperation, g.Admit("delete from t").Reason)
			}
		}()
	}
	wg.Wait()
}
