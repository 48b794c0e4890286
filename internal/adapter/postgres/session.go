package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/guillermoBallester/stagecheck/internal/core/domain"
	"github.com/jackc/pgx/v5"
)

// clientGrace lets the server-side statement_timeout fire before the client
// deadline, so a slow rule is cancelled by PostgreSQL and the connection
// stays usable for the next rule.
const clientGrace = 5 * time.Second

const rollbackTimeout = 5 * time.Second

// Session runs rule queries on a single connection.
type Session struct {
	conn         *pgx.Conn
	queryTimeout time.Duration
}

func newSession(conn *pgx.Conn, queryTimeout time.Duration) *Session {
	return &Session{conn: conn, queryTimeout: queryTimeout}
}

// Query runs q inside its own read-only transaction. The transaction is
// always rolled back so a failing rule leaves nothing behind on the session.
func (s *Session) Query(ctx context.Context, q domain.Query) ([]domain.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout+clientGrace)
	defer cancel()

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, classify(fmt.Errorf("beginning transaction: %w", err), s.queryTimeout)
	}
	defer func() {
		rbCtx, rbCancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
		defer rbCancel()
		_ = tx.Rollback(rbCtx)
	}()

	// SET LOCAL scopes the timeout to this transaction only.
	timeoutMS := s.queryTimeout.Milliseconds()
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%d'", timeoutMS)); err != nil {
		return nil, classify(fmt.Errorf("setting statement timeout: %w", err), s.queryTimeout)
	}

	rows, err := tx.Query(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, classify(fmt.Errorf("executing query: %w", err), s.queryTimeout)
	}
	defer rows.Close()

	result, err := collectRows(rows)
	if err != nil {
		return nil, classify(err, s.queryTimeout)
	}
	return result, nil
}

func (s *Session) Alive() bool {
	return !s.conn.IsClosed()
}

func (s *Session) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}
