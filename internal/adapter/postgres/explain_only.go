package postgres

import (
	"context"

	"github.com/guillermoBallester/querygate/internal/core/port"
)

// ExplainOnlyExecutor plans admitted queries without running them.
// Statements that already start with EXPLAIN are passed through unchanged.
type ExplainOnlyExecutor struct {
	inner port.QueryExecutor
}

func NewExplainOnlyExecutor(inner port.QueryExecutor) *ExplainOnlyExecutor {
	return &ExplainOnlyExecutor{inner: inner}
}

func (e *ExplainOnlyExecutor) Execute(ctx context.Context, sql string) ([]map[string]any, error) {
	if !isExplain(sql) {
		sql = "EXPLAIN " + trimTerminator(sql)
	}
	return e.inner.Execute(ctx, sql)
}
