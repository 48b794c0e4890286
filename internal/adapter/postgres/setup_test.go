package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const stagingSchema = `
	CREATE SCHEMA staging;

	CREATE TABLE staging.patient_leo (
		identifier             VARCHAR(32),
		gender                 VARCHAR(16),
		managingorganizationid VARCHAR(16)
	);
	COMMENT ON TABLE staging.patient_leo IS 'Patients loaded from the registry extract';

	CREATE TABLE staging.specimen_leo (
		identifier       VARCHAR(32),
		bodysite         INTEGER,
		registrationdate DATE
	);

	CREATE TABLE staging.culture_leo (
		identifier       VARCHAR(32),
		value            VARCHAR(32),
		culturetype      VARCHAR(16),
		registrationdate VARCHAR(32),
		issued           DATE
	);
	COMMENT ON COLUMN staging.culture_leo.issued IS 'Date the result was issued';

	INSERT INTO staging.patient_leo VALUES
		('P-1', 'male',    'NCTBLD'),
		('P-2', 'female',  'NCTBLD'),
		('P-2', 'unknown', 'NCTBLD'),
		('P-3', NULL,      'NCTBLD');

	INSERT INTO staging.specimen_leo VALUES
		('S-1', 1, '2023-01-01'),
		('S-2', 2, NULL);

	INSERT INTO staging.culture_leo VALUES
		('C-1', 'positive', 'solid',  '2023-01-01', '2023-01-04'),
		('C-2', 'negative', 'liquid', '2023-01-01', '2023-01-01'),
		('C-3', 'negative', 'liquid', '2023-01-01', '2023-01-03');
`

// setupStagingDB starts a PostgreSQL container seeded with a small staging
// schema and returns its connection string.
func setupStagingDB(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("georgia"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := pgx.Connect(ctx, connStr)
	require.NoError(t, err)
	defer func() { _ = conn.Close(ctx) }()

	_, err = conn.Exec(ctx, stagingSchema)
	require.NoError(t, err)

	_, err = conn.Exec(ctx, "ANALYZE")
	require.NoError(t, err)

	return connStr
}
