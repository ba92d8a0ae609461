package domain

import (
	"errors"
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

var (
	ErrParseFailed   = errors.New("failed to parse SQL")
	ErrNotPlainQuery = errors.New("statement is not a plain SELECT")
)

// ParseChecker cross-checks gate-accepted SQL with PostgreSQL's own parser.
// It runs after the gate and never replaces it: text the gate rejected is
// never handed to the parser.
type ParseChecker struct{}

func NewParseChecker() *ParseChecker {
	return &ParseChecker{}
}

// Validate requires exactly one SELECT statement without INTO or a locking clause.
func (c *ParseChecker) Validate(sql string) error {
	tree, err := pg_query.Parse(sql)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}

	switch len(tree.Stmts) {
	case 0:
		return ErrEmptyQuery
	case 1:
	default:
		return ErrMultiStatement
	}

	node, ok := tree.Stmts[0].GetStmt().GetNode().(*pg_query.Node_SelectStmt)
	if !ok {
		return ErrNotSelect
	}

	sel := node.SelectStmt
	if sel.GetIntoClause() != nil {
		return fmt.Errorf("%w: SELECT INTO creates a table", ErrNotPlainQuery)
	}
	if len(sel.GetLockingClause()) > 0 {
		return fmt.Errorf("%w: row locking clauses are not allowed", ErrNotPlainQuery)
	}
	return nil
}
