package postgres

import (
	"fmt"

	"github.com/guillermoBallester/stagecheck/internal/core/domain"
	"github.com/jackc/pgx/v5"
)

// collectRows converts pgx.Rows into ordered domain rows.
func collectRows(rows pgx.Rows) ([]domain.Row, error) {
	fields := rows.FieldDescriptions()
	var result []domain.Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("reading row values: %w", err)
		}
		row := make(domain.Row, len(fields))
		for i, fd := range fields {
			row[i] = domain.Cell{Column: fd.Name, Value: vals[i]}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return result, nil
}
