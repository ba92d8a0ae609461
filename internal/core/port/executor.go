package port

import "context"

// QueryExecutor runs admitted SQL and returns rows keyed by column name.
type QueryExecutor interface {
	Execute(ctx context.Context, sql string) ([]map[string]any, error)
}
