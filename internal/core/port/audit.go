package port

import "context"

// AuditEntry records one rule query sent to the database.
type AuditEntry struct {
	RuleID       string
	SQL          string
	RowsReturned int
	DurationMS   int64
	Outcome      string
	Err          error
}

// QueryAuditor records query audit events.
type QueryAuditor interface {
	Record(ctx context.Context, entry AuditEntry)
	Close() error
}
