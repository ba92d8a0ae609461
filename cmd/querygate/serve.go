package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/guillermoBallester/querygate/internal/adapter/mcp"
	"github.com/guillermoBallester/querygate/internal/adapter/postgres"
	"github.com/guillermoBallester/querygate/internal/audit"
	"github.com/guillermoBallester/querygate/internal/config"
	"github.com/guillermoBallester/querygate/internal/core/domain"
	"github.com/guillermoBallester/querygate/internal/core/port"
	"github.com/guillermoBallester/querygate/internal/core/service"
	"github.com/guillermoBallester/querygate/internal/telemetry"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/guillermoBallester/querygate"

func serve(ctx context.Context, cfg *config.Config, stdin io.Reader, stdout, stderr io.Writer) error {
	// Logs go to stderr; stdout is reserved for the MCP stdio transport.
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	logger.Info("starting querygate",
		slog.String("version", version),
		slog.String("log_level", cfg.LogLevel.String()),
		slog.String("transport", cfg.Transport),
		slog.Bool("read_only", cfg.ReadOnly),
		slog.Int("max_rows", cfg.MaxRows),
		slog.String("query_timeout", cfg.QueryTimeout.String()),
		slog.Int("max_query_bytes", cfg.MaxQueryBytes),
		slog.Bool("parse_check", cfg.ParseCheck),
		slog.Bool("dry_run", cfg.DryRun),
		slog.Bool("explain_only", cfg.ExplainOnly),
	)

	if !cfg.ReadOnly && !cfg.ParseCheck && !cfg.DryRun {
		logger.Warn("read-only mode is off without --parse-check; SELECT ... INTO can write under EXPLAIN ANALYZE")
	}

	gate, err := loadGate(cfg.PolicyFile)
	if err != nil {
		return err
	}
	if cfg.PolicyFile != "" {
		logger.Info("policy loaded", slog.String("file", cfg.PolicyFile))
	}

	var tracer trace.Tracer = telemetry.NoopTracer()
	var inst port.Instrumentation = port.NoopInstrumentation{}
	if cfg.OTelEnabled {
		provider, err := telemetry.Init(ctx, "querygate", version)
		if err != nil {
			return fmt.Errorf("initializing telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logger.Error("telemetry shutdown failed", slog.String("error.message", err.Error()))
			}
		}()
		tracer = provider.Tracer(instrumentationName)
		inst = telemetry.NewInstruments()
		logger.Info("telemetry enabled")
	}

	auditor, err := openAuditor(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := auditor.Close(); err != nil {
			logger.Error("closing audit sink failed", slog.String("error.message", err.Error()))
		}
	}()

	// Adapters. Dry run leaves both nil so only check_query is served.
	var explorer port.SchemaExplorer
	var executor port.QueryExecutor
	if !cfg.DryRun {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolConfig{
			MaxConns:        cfg.PoolMaxConns,
			MinConns:        cfg.PoolMinConns,
			MaxConnLifetime: cfg.PoolMaxConnLifetime,
		})
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()

		logger.Info("database pool connected",
			slog.String("db.system", "postgresql"),
			slog.String("db.url", redactDSN(cfg.DatabaseURL)),
		)

		explorer = postgres.NewExplorer(pool, cfg.Schemas)
		executor = postgres.NewExecutor(pool, cfg.ReadOnly, cfg.MaxRows, cfg.QueryTimeout)
		if cfg.ExplainOnly {
			executor = postgres.NewExplainOnlyExecutor(executor)
		}
	}

	opts := []service.Option{
		service.WithTracer(tracer),
		service.WithInstrumentation(inst),
		service.WithMaxQueryBytes(cfg.MaxQueryBytes),
	}
	if cfg.ParseCheck {
		opts = append(opts, service.WithParseCheck(domain.NewParseChecker()))
	}
	querySvc := service.NewQueryService(gate, executor, auditor, logger, opts...)

	mcpServer := mcp.NewServer(version, explorer, querySvc, logger, tracer, inst)

	if cfg.Transport == "http" {
		return serveHTTP(ctx, mcpServer, cfg.HTTPAddr, cfg.HTTPBearerToken, logger)
	}

	stdioServer := mcpserver.NewStdioServer(mcpServer)
	logger.Info("serving MCP over stdio")
	if err := stdioServer.Listen(ctx, stdin, stdout); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stdio server: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// openAuditor returns the configured audit sinks, or a no-op auditor.
func openAuditor(cfg *config.Config) (port.QueryAuditor, error) {
	var sinks audit.Multi
	if cfg.AuditLog != "" {
		a, err := audit.NewFileAuditor(cfg.AuditLog)
		if err != nil {
			return nil, fmt.Errorf("opening audit log: %w", err)
		}
		sinks = append(sinks, a)
	}
	if cfg.AuditDB != "" {
		a, err := audit.NewSQLiteAuditor(cfg.AuditDB)
		if err != nil {
			_ = sinks.Close()
			return nil, fmt.Errorf("opening audit db: %w", err)
		}
		sinks = append(sinks, a)
	}

	switch len(sinks) {
	case 0:
		return port.NoopAuditor{}, nil
	case 1:
		return sinks[0], nil
	default:
		return sinks, nil
	}
}
