package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/guillermoBallester/querygate/internal/core/domain"
	"github.com/guillermoBallester/querygate/internal/core/port"
	"github.com/guillermoBallester/querygate/internal/core/service"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const serverName = "querygate"

// Tool descriptions
const (
	descListTables = "List all tables and views with schema, type, estimated row count and comment. " +
		"Use this to find out what you can query; row estimates help you pick sensible filters."

	descDescribeTable = "Describe a table's columns (type, nullability, default, primary key, comment) " +
		"and its foreign keys. Use foreign keys to find JOIN paths before writing a query."

	descDescribeTableParam = "Name of the table to describe"

	descQuery = "Execute a single read-only SELECT statement and return the rows as a JSON array of objects. " +
		"The statement must start with SELECT and may end with one semicolon. " +
		"SQL comments, stacked statements, UNION SELECT and data-modifying keywords are refused. " +
		"A server-side row limit and statement timeout are enforced."

	descQueryParam = "SQL query to execute (a single SELECT statement)"

	descExplainQuery = "Show the PostgreSQL execution plan for a SELECT statement. " +
		"The statement is checked by the same rules as the query tool before EXPLAIN is added. " +
		"With analyze=true the statement is actually executed to collect timings, " +
		"inside the same read-only transaction as the query tool when read-only mode is on."

	descExplainQuerySQL = "The SELECT query to explain (without the EXPLAIN keyword)"

	descCheckQuery = "Check whether a SQL statement would be admitted by the query tool, without touching the database. " +
		"Returns {accepted, query, reason, message}; reason is one of empty_query, multi_statement, " +
		"injection_pattern, destructive_operation, not_select."

	descCheckQueryParam = "SQL statement to check"
)

// RegisterTools adds the tools the wiring supports: check_query always, query
// and explain_query when an executor is available, and the schema tools when an
// explorer is given.
func RegisterTools(s *server.MCPServer, explorer port.SchemaExplorer, query *service.QueryService, logger *slog.Logger) {
	s.AddTool(
		mcp.NewTool("check_query",
			mcp.WithDescription(descCheckQuery),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithString("sql",
				mcp.Required(),
				mcp.Description(descCheckQueryParam),
			),
		),
		checkQueryHandler(query, logger),
	)

	if query.CanExecute() {
		s.AddTool(
			mcp.NewTool("query",
				mcp.WithDescription(descQuery),
				mcp.WithString("sql",
					mcp.Required(),
					mcp.Description(descQueryParam),
				),
			),
			queryHandler(query, logger),
		)

		s.AddTool(
			mcp.NewTool("explain_query",
				mcp.WithDescription(descExplainQuery),
				mcp.WithString("sql",
					mcp.Required(),
					mcp.Description(descExplainQuerySQL),
				),
				mcp.WithBoolean("analyze",
					mcp.Description("Include actual execution statistics (executes the query). Defaults to false."),
				),
			),
			explainQueryHandler(query, logger),
		)
	}

	if explorer == nil {
		return
	}

	s.AddTool(
		mcp.NewTool("list_tables",
			mcp.WithDescription(descListTables),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		listTablesHandler(explorer, logger),
	)

	s.AddTool(
		mcp.NewTool("describe_table",
			mcp.WithDescription(descDescribeTable),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithString("table_name",
				mcp.Required(),
				mcp.Description(descDescribeTableParam),
			),
			mcp.WithString("schema",
				mcp.Description("Schema name (optional, resolves automatically if omitted)"),
			),
		),
		describeTableHandler(explorer, logger),
	)
}

// CheckResult is the JSON shape of an admission decision.
type CheckResult struct {
	Accepted bool   `json:"accepted"`
	Query    string `json:"query,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Rule     string `json:"rule,omitempty"`
	Message  string `json:"message,omitempty"`
}

func NewCheckResult(d domain.Decision) CheckResult {
	if d.Accepted() {
		return CheckResult{Accepted: true, Query: d.Query}
	}
	return CheckResult{
		Reason:  d.Reason.String(),
		Rule:    d.Rule,
		Message: d.Reason.Message(),
	}
}

func checkQueryHandler(query *service.QueryService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, ok := request.GetArguments()["sql"].(string)
		if !ok {
			return mcp.NewToolResultError("sql is required"), nil
		}

		ctx = service.WithToolName(ctx, "check_query")
		decision, err := query.Check(ctx, sql)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "check query")), nil
		}

		return jsonResult(NewCheckResult(decision))
	}
}

func listTablesHandler(explorer port.SchemaExplorer, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tables, err := explorer.ListTables(ctx)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "list tables")), nil
		}
		if tables == nil {
			tables = []port.TableInfo{}
		}
		return jsonResult(tables)
	}
}

func describeTableHandler(explorer port.SchemaExplorer, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tableName, ok := request.GetArguments()["table_name"].(string)
		if !ok || tableName == "" {
			return mcp.NewToolResultError("table_name is required"), nil
		}

		schema, _ := request.GetArguments()["schema"].(string)

		detail, err := explorer.DescribeTable(ctx, schema, tableName)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "describe table")), nil
		}
		return jsonResult(detail)
	}
}

func explainQueryHandler(query *service.QueryService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, ok := request.GetArguments()["sql"].(string)
		if !ok {
			return mcp.NewToolResultError("sql is required"), nil
		}

		analyze, _ := request.GetArguments()["analyze"].(bool)

		ctx = service.WithToolName(ctx, "explain_query")
		results, err := query.Explain(ctx, sql, analyze)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "explain query")), nil
		}
		return jsonResult(rowsOrEmpty(results))
	}
}

func queryHandler(query *service.QueryService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, ok := request.GetArguments()["sql"].(string)
		if !ok {
			return mcp.NewToolResultError("sql is required"), nil
		}

		ctx = service.WithToolName(ctx, "query")
		results, err := query.Execute(ctx, sql)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "query")), nil
		}
		return jsonResult(rowsOrEmpty(results))
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func rowsOrEmpty(rows []map[string]any) []map[string]any {
	if rows == nil {
		return []map[string]any{}
	}
	return rows
}

// pgQueryCanceled is SQLSTATE 57014, raised when statement_timeout fires.
const pgQueryCanceled = "57014"

// sanitizeError turns an error into a message safe to show the model.
// Admission and validation errors are already phrased for the caller;
// anything else is logged in full and replaced with a generic message.
func sanitizeError(logger *slog.Logger, err error, op string) string {
	var rej *domain.RejectionError
	switch {
	case errors.As(err, &rej):
		return err.Error()
	case errors.Is(err, domain.ErrEmptyQuery),
		errors.Is(err, domain.ErrMultiStatement),
		errors.Is(err, domain.ErrNotSelect),
		errors.Is(err, domain.ErrParseFailed),
		errors.Is(err, domain.ErrNotPlainQuery),
		errors.Is(err, service.ErrQueryTooLarge),
		errors.Is(err, service.ErrNoExecutor),
		errors.Is(err, port.ErrTableNotFound):
		return err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "query timed out"
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgQueryCanceled {
		return "query timed out"
	}

	logger.Error("tool call failed",
		slog.String("mcp.operation", op),
		slog.String("error.message", err.Error()),
	)
	return fmt.Sprintf("internal error: %s failed, check server logs for details", op)
}
