package domain

import (
	"errors"
	"fmt"
)

// Reason identifies why the admission gate rejected a query.
// The zero value means the query was not rejected.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonEmptyQuery
	ReasonMultiStatement
	ReasonInjectionPattern
	ReasonDestructiveOperation
	ReasonNotSelect
)

// Reason codes are stable and safe to expose to clients, logs and metrics.
const (
	codeEmptyQuery           = "empty_query"
	codeMultiStatement       = "multi_statement"
	codeInjectionPattern     = "injection_pattern"
	codeDestructiveOperation = "destructive_operation"
	codeNotSelect            = "not_select"
)

var (
	ErrEmptyQuery           = errors.New("empty query")
	ErrMultiStatement       = errors.New("multiple statements are not allowed")
	ErrInjectionPattern     = errors.New("suspicious SQL detected: possible injection attempt")
	ErrDestructiveOperation = errors.New("destructive SQL operation blocked")
	ErrNotSelect            = errors.New("only SELECT queries are allowed")
)

// String returns the stable reason code.
func (r Reason) String() string {
	switch r {
	case ReasonEmptyQuery:
		return codeEmptyQuery
	case ReasonMultiStatement:
		return codeMultiStatement
	case ReasonInjectionPattern:
		return codeInjectionPattern
	case ReasonDestructiveOperation:
		return codeDestructiveOperation
	case ReasonNotSelect:
		return codeNotSelect
	default:
		return "none"
	}
}

// Sentinel returns the sentinel error matching this reason, or nil for ReasonNone.
func (r Reason) Sentinel() error {
	switch r {
	case ReasonEmptyQuery:
		return ErrEmptyQuery
	case ReasonMultiStatement:
		return ErrMultiStatement
	case ReasonInjectionPattern:
		return ErrInjectionPattern
	case ReasonDestructiveOperation:
		return ErrDestructiveOperation
	case ReasonNotSelect:
		return ErrNotSelect
	default:
		return nil
	}
}

// Message is the human readable explanation shown to the user or the model.
func (r Reason) Message() string {
	if err := r.Sentinel(); err != nil {
		return err.Error()
	}
	return ""
}

// ParseReason maps a reason code back to its Reason.
func ParseReason(code string) (Reason, bool) {
	for _, r := range []Reason{ReasonEmptyQuery, ReasonMultiStatement, ReasonInjectionPattern, ReasonDestructiveOperation, ReasonNotSelect} {
		if r.String() == code {
			return r, true
		}
	}
	return ReasonNone, false
}

// RejectionError is returned by Decision.Err for rejected queries.
// errors.Is matches it against the reason's sentinel error.
type RejectionError struct {
	Reason Reason
	// Rule names the matcher that fired, e.g. "line_comment" or "drop".
	Rule string
}

func (e *RejectionError) Error() string {
	if e.Rule == "" {
		return e.Reason.Message()
	}
	return fmt.Sprintf("%s (%s)", e.Reason.Message(), e.Rule)
}

func (e *RejectionError) Unwrap() error {
	return e.Reason.Sentinel()
}
