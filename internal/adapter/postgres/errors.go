package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/guillermoBallester/stagecheck/internal/core/domain"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes that mean the rule references something that isn't there.
var schemaCodes = map[string]bool{
	"42P01": true, // undefined_table
	"42703": true, // undefined_column
	"3F000": true, // invalid_schema_name
}

// classify maps a driver error onto the rule-level error taxonomy.
func classify(err error, timeout time.Duration) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if schemaCodes[pgErr.Code] {
			return fmt.Errorf("%w: %w", domain.ErrSchema, err)
		}
		if pgErr.Code == "57014" { // query_canceled
			return fmt.Errorf("%w: query exceeded %s timeout: %w", domain.ErrExecution, timeout, err)
		}
		return fmt.Errorf("%w: %w", domain.ErrExecution, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: query exceeded %s timeout: %w", domain.ErrExecution, timeout, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrExecution, err)
}
