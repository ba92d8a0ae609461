package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/guillermoBallester/querygate/internal/core/domain"
	"github.com/guillermoBallester/querygate/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// DefaultMaxQueryBytes bounds candidate SQL before it reaches the gate.
const DefaultMaxQueryBytes = 16 * 1024

var (
	ErrQueryTooLarge = errors.New("query exceeds maximum length")
	ErrNoExecutor    = errors.New("query execution is disabled (dry run)")
)

type toolNameKey struct{}

// WithToolName returns a context carrying the MCP tool name for audit logging.
func WithToolName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, toolNameKey{}, name)
}

func toolNameFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(toolNameKey{}).(string); ok {
		return v
	}
	return ""
}

// Option configures a QueryService.
type Option func(*QueryService)

// WithParseCheck adds a validator that runs on every gate-accepted query.
func WithParseCheck(v port.QueryValidator) Option {
	return func(s *QueryService) { s.checker = v }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *QueryService) {
		if t != nil {
			s.tracer = t
		}
	}
}

func WithInstrumentation(inst port.Instrumentation) Option {
	return func(s *QueryService) {
		if inst != nil {
			s.inst = inst
		}
	}
}

// WithMaxQueryBytes overrides DefaultMaxQueryBytes. Non-positive values are ignored.
func WithMaxQueryBytes(n int) Option {
	return func(s *QueryService) {
		if n > 0 {
			s.maxQueryBytes = n
		}
	}
}

// QueryService orchestrates admission (domain) and execution (infrastructure).
// Nothing reaches the executor unless the gate accepted it.
type QueryService struct {
	gate          *domain.Gate
	checker       port.QueryValidator
	executor      port.QueryExecutor // nil in dry-run mode
	auditor       port.QueryAuditor
	logger        *slog.Logger
	tracer        trace.Tracer
	inst          port.Instrumentation
	maxQueryBytes int
}

func NewQueryService(gate *domain.Gate, executor port.QueryExecutor, auditor port.QueryAuditor, logger *slog.Logger, opts ...Option) *QueryService {
	if auditor == nil {
		auditor = port.NoopAuditor{}
	}
	s := &QueryService{
		gate:          gate,
		executor:      executor,
		auditor:       auditor,
		logger:        logger,
		tracer:        noop.NewTracerProvider().Tracer("noop"),
		inst:          port.NoopInstrumentation{},
		maxQueryBytes: DefaultMaxQueryBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CanExecute reports whether an executor is wired.
func (s *QueryService) CanExecute() bool {
	return s.executor != nil
}

// Check runs admission only. The error is non-nil when the input is too large
// or an accepted query fails the parse check.
func (s *QueryService) Check(ctx context.Context, sql string) (domain.Decision, error) {
	ctx, span := s.startSpan(ctx, "QueryService.Check", sql)
	defer span.End()

	if err := s.checkLength(sql); err != nil {
		s.reject(ctx, span, sql, "", err)
		return domain.Decision{}, err
	}

	decision := s.gate.Admit(sql)
	if !decision.Accepted() {
		s.reject(ctx, span, sql, decision.Reason.String(), decision.Err())
		return decision, nil
	}
	if err := s.parseCheck(decision.Query); err != nil {
		s.reject(ctx, span, sql, "", err)
		return decision, err
	}

	s.auditor.Record(ctx, port.AuditEntry{
		Tool:     toolNameFromCtx(ctx),
		SQL:      decision.Query,
		Accepted: true,
	})
	return decision, nil
}

// Execute admits the SQL statement and, if accepted, delegates to the executor.
func (s *QueryService) Execute(ctx context.Context, sql string) ([]map[string]any, error) {
	ctx, span := s.startSpan(ctx, "QueryService.Execute", sql)
	defer span.End()

	admitted, err := s.admit(ctx, span, sql)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, span, admitted)
}

// Explain admits the SQL statement and runs it under EXPLAIN. With analyze the
// statement is actually executed.
func (s *QueryService) Explain(ctx context.Context, sql string, analyze bool) ([]map[string]any, error) {
	ctx, span := s.startSpan(ctx, "QueryService.Explain", sql)
	defer span.End()
	span.SetAttributes(attribute.Bool("db.explain.analyze", analyze))

	admitted, err := s.admit(ctx, span, sql)
	if err != nil {
		return nil, err
	}

	prefix := "EXPLAIN "
	if analyze {
		prefix = "EXPLAIN ANALYZE "
	}
	return s.run(ctx, span, prefix+admitted)
}

func (s *QueryService) startSpan(ctx context.Context, name, sql string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation.name", "query"),
			attribute.String("db.statement", sql),
		),
	)
}

// admit returns the accepted query text or the reason it must not run.
func (s *QueryService) admit(ctx context.Context, span trace.Span, sql string) (string, error) {
	if err := s.checkLength(sql); err != nil {
		s.reject(ctx, span, sql, "", err)
		return "", err
	}

	decision := s.gate.Admit(sql)
	if !decision.Accepted() {
		err := decision.Err()
		s.reject(ctx, span, sql, decision.Reason.String(), err)
		return "", err
	}

	if err := s.parseCheck(decision.Query); err != nil {
		s.reject(ctx, span, sql, "", err)
		return "", err
	}
	return decision.Query, nil
}

func (s *QueryService) checkLength(sql string) error {
	if len(sql) > s.maxQueryBytes {
		return fmt.Errorf("%w (%d bytes, limit %d)", ErrQueryTooLarge, len(sql), s.maxQueryBytes)
	}
	return nil
}

func (s *QueryService) parseCheck(sql string) error {
	if s.checker == nil {
		return nil
	}
	if err := s.checker.Validate(sql); err != nil {
		return fmt.Errorf("parse check: %w", err)
	}
	return nil
}

// reject logs, counts and audits a query that will not be executed.
func (s *QueryService) reject(ctx context.Context, span trace.Span, sql, reason string, err error) {
	if reason == "" {
		reason = "validation_error"
	}
	s.logger.WarnContext(ctx, "query admission rejected",
		slog.String("db.operation.name", "query"),
		slog.String("db.statement", sql),
		slog.String("querygate.reason", reason),
		slog.String("error.message", err.Error()),
	)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("querygate.reason", reason))
	s.inst.IncrementRejections(ctx, reason)

	s.auditor.Record(ctx, port.AuditEntry{
		Tool:   toolNameFromCtx(ctx),
		SQL:    sql,
		Reason: reason,
		Err:    err,
	})
}

func (s *QueryService) run(ctx context.Context, span trace.Span, sql string) ([]map[string]any, error) {
	if s.executor == nil {
		span.SetStatus(codes.Error, ErrNoExecutor.Error())
		return nil, ErrNoExecutor
	}

	start := time.Now()
	results, err := s.executor.Execute(ctx, sql)
	durationMS := time.Since(start).Milliseconds()

	s.inst.RecordQueryDuration(ctx, float64(durationMS))

	s.auditor.Record(ctx, port.AuditEntry{
		Tool:         toolNameFromCtx(ctx),
		SQL:          sql,
		Accepted:     true,
		RowsReturned: len(results),
		DurationMS:   durationMS,
		Err:          err,
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.inst.IncrementQueryErrors(ctx)
		return results, err
	}

	s.inst.IncrementQueryCount(ctx)
	span.SetAttributes(attribute.Int("db.response.rows", len(results)))
	return results, nil
}
