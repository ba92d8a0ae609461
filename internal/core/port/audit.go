package port

import "context"

// AuditEntry represents a single auditable query event, accepted or rejected.
type AuditEntry struct {
	Tool         string
	SQL          string
	Accepted     bool
	Reason       string // admission reason code; empty when accepted
	RowsReturned int
	DurationMS   int64
	Err          error
}

// QueryAuditor records query audit events.
type QueryAuditor interface {
	Record(ctx context.Context, entry AuditEntry)
	Close() error
}

// NoopAuditor discards all audit entries.
type NoopAuditor struct{}

func (NoopAuditor) Record(context.Context, AuditEntry) {}
func (NoopAuditor) Close() error                       { return nil }
