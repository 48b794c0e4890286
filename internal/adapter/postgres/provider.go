package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/guillermoBallester/stagecheck/internal/core/domain"
	"github.com/guillermoBallester/stagecheck/internal/core/port"
	"github.com/jackc/pgx/v5"
)

const pingTimeout = 10 * time.Second

// Provider opens one dedicated connection per run. There is no pool and no
// retry: a run either gets its session or fails with domain.ErrConnection.
type Provider struct {
	connString   string
	queryTimeout time.Duration
}

func NewProvider(connString string, queryTimeout time.Duration) *Provider {
	return &Provider{connString: connString, queryTimeout: queryTimeout}
}

// Acquire connects and verifies the session is ready to query.
// The caller owns the session and must Close it.
func (p *Provider) Acquire(ctx context.Context) (port.Session, error) {
	conn, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	return newSession(conn, p.queryTimeout), nil
}

func (p *Provider) connect(ctx context.Context) (*pgx.Conn, error) {
	config, err := pgx.ParseConfig(p.connString)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing connection settings: %w", domain.ErrConnection, err)
	}

	conn, err := pgx.ConnectConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to %s/%s: %w", domain.ErrConnection, config.Host, config.Database, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := conn.Ping(pingCtx); err != nil {
		_ = conn.Close(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("%w: pinging database (10s timeout): %w", domain.ErrConnection, err)
	}

	return conn, nil
}
