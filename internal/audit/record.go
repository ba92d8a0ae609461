package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/guillermoBallester/querygate/internal/core/port"
)

const (
	decisionAccepted = "accepted"
	decisionRejected = "rejected"
)

// record is the serialized form shared by every sink.
type record struct {
	ID           string  `json:"id"`
	Timestamp    string  `json:"ts"`
	Tool         string  `json:"tool"`
	SQL          string  `json:"sql"`
	Decision     string  `json:"decision"`
	Reason       string  `json:"reason,omitempty"`
	RowsReturned int     `json:"rows_returned"`
	DurationMS   int64   `json:"duration_ms"`
	Error        *string `json:"error"`
}

func newRecord(entry port.AuditEntry) record {
	rec := record{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
		Tool:         entry.Tool,
		SQL:          entry.SQL,
		Decision:     decisionRejected,
		Reason:       entry.Reason,
		RowsReturned: entry.RowsReturned,
		DurationMS:   entry.DurationMS,
	}
	if entry.Accepted {
		rec.Decision = decisionAccepted
	}
	if entry.Err != nil {
		s := entry.Err.Error()
		rec.Error = &s
	}
	return rec
}

// Multi fans every entry out to all auditors.
type Multi []port.QueryAuditor

func (m Multi) Record(ctx context.Context, entry port.AuditEntry) {
	for _, a := range m {
		a.Record(ctx, entry)
	}
}

func (m Multi) Close() error {
	var errs []error
	for _, a := range m {
		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
