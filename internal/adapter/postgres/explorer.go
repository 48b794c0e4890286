package postgres

import (
	"context"
	"fmt"

	"github.com/guillermoBallester/stagecheck/internal/core/domain"
	"github.com/guillermoBallester/stagecheck/internal/core/port"
	"github.com/jackc/pgx/v5"
)

// Explorer inspects the schema rules are written against. Like a run, each
// call uses its own short-lived connection.
type Explorer struct {
	provider *Provider
	schema   string
}

func NewExplorer(provider *Provider, schema string) *Explorer {
	return &Explorer{provider: provider, schema: schema}
}

func (e *Explorer) ListTables(ctx context.Context) ([]port.TableInfo, error) {
	conn, err := e.provider.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close(context.WithoutCancel(ctx)) }()

	rows, err := conn.Query(ctx, queryListTables, e.schema)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var tables []port.TableInfo
	for rows.Next() {
		var t port.TableInfo
		if err := rows.Scan(
			&t.Schema, &t.Name, &t.Type, &t.RowEstimate,
			&t.SizeHuman, &t.ColumnCount, &t.Comment,
		); err != nil {
			return nil, fmt.Errorf("scanning table row: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// DescribeTable accepts "table" or "schema.table".
func (e *Explorer) DescribeTable(ctx context.Context, tableName string) (*port.TableDetail, error) {
	table, err := domain.ParseTableName(tableName, e.schema)
	if err != nil {
		return nil, err
	}

	conn, err := e.provider.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close(context.WithoutCancel(ctx)) }()

	detail := &port.TableDetail{Schema: table.Schema, Name: table.Name}

	detail.Columns, err = fetchColumns(ctx, conn, table)
	if err != nil {
		return nil, err
	}
	if len(detail.Columns) == 0 {
		return nil, fmt.Errorf("%w: table %s not found", domain.ErrSchema, table)
	}

	if err := conn.QueryRow(ctx, queryTableComment, table.Schema, table.Name).Scan(&detail.Comment); err != nil {
		return nil, classify(fmt.Errorf("fetching table comment: %w", err), 0)
	}

	return detail, nil
}

func fetchColumns(ctx context.Context, conn *pgx.Conn, table domain.TableName) ([]port.ColumnInfo, error) {
	rows, err := conn.Query(ctx, queryColumns, table.Schema, table.Name)
	if err != nil {
		return nil, fmt.Errorf("fetching columns: %w", err)
	}
	defer rows.Close()

	var cols []port.ColumnInfo
	for rows.Next() {
		var c port.ColumnInfo
		if err := rows.Scan(&c.Name, &c.DataType, &c.IsNullable, &c.DefaultValue, &c.Comment); err != nil {
			return nil, fmt.Errorf("scanning column row: %w", err)
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}
