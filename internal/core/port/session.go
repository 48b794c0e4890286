package port

import (
	"context"

	"github.com/guillermoBallester/stagecheck/internal/core/domain"
)

// Session is one live database connection owned by a single run.
type Session interface {
	// Query runs a compiled rule query and returns its rows in order.
	Query(ctx context.Context, q domain.Query) ([]domain.Row, error)
	// Alive reports whether the connection can still serve queries.
	Alive() bool
	Close(ctx context.Context) error
}

// ConnectionProvider opens sessions. Acquire errors wrap domain.ErrConnection.
type ConnectionProvider interface {
	Acquire(ctx context.Context) (Session, error)
}
