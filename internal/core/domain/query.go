package domain

import "fmt"

// Query is a compiled rule: one SELECT plus its bind parameters.
type Query struct {
	SQL  string
	Args []any
}

// Each template takes quoted identifiers only. Values are always bound.
const (
	// %[1]s column, %[2]s table, %[3]s predicate, %[4]d limit.
	sqlAllowedValues = `SELECT DISTINCT %[1]s::text AS %[1]s FROM %[2]s WHERE %[3]s ORDER BY 1 LIMIT %[4]d`

	// %[1]s column, %[2]s table, %[3]d limit.
	sqlNonNull = `SELECT * FROM %[2]s WHERE %[1]s IS NULL LIMIT %[3]d`

	// %[1]s column, %[2]s table, %[3]d limit.
	sqlUnique = `SELECT %[1]s::text AS %[1]s, COUNT(*) AS count FROM %[2]s GROUP BY %[1]s HAVING COUNT(*) > 1 ORDER BY 2 DESC, 1 LIMIT %[3]d`

	// $1 schema, $2 table, $3 column.
	sqlColumnType = `SELECT column_name::text AS column_name, data_type::text AS data_type FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2 AND column_name = $3`

	// %[1]s later column, %[2]s earlier column, %[3]s table, %[4]d limit. $1 interval text.
	sqlDateOffset = `SELECT * FROM %[3]s WHERE CAST(%[1]s AS TIMESTAMP) < CAST(%[2]s AS TIMESTAMP) + $1::text::interval LIMIT %[4]d`
)

// Compile turns a rule into a single parameterized SELECT. limit caps the
// number of offending rows returned as evidence.
func Compile(r Rule, limit int) (Query, error) {
	if err := r.Validate(); err != nil {
		return Query{}, err
	}
	if limit <= 0 {
		return Query{}, fmt.Errorf("%w: rule %q: evidence limit must be positive", ErrInvalidRule, r.ID)
	}

	table := r.Table.Quoted()
	switch r.Kind {
	case KindAllowedValues:
		col := quoteIdent(r.Column)
		pred := fmt.Sprintf("NOT (%s::text = ANY($1::text[]))", col)
		if !r.AllowNull {
			pred = fmt.Sprintf("%s IS NULL OR %s", col, pred)
		}
		return Query{
			SQL:  fmt.Sprintf(sqlAllowedValues, col, table, pred, limit),
			Args: []any{r.AllowedValues},
		}, nil

	case KindNonNull:
		return Query{SQL: fmt.Sprintf(sqlNonNull, quoteIdent(r.Column), table, limit)}, nil

	case KindUnique:
		return Query{SQL: fmt.Sprintf(sqlUnique, quoteIdent(r.Column), table, limit)}, nil

	case KindExpectedType:
		return Query{
			SQL:  sqlColumnType,
			Args: []any{r.Table.Schema, r.Table.Name, r.Column},
		}, nil

	case KindDateOffset:
		return Query{
			SQL:  fmt.Sprintf(sqlDateOffset, quoteIdent(r.LaterColumn), quoteIdent(r.EarlierColumn), table, limit),
			Args: []any{r.MinInterval},
		}, nil
	}

	return Query{}, fmt.Errorf("%w: rule %q: unknown kind %q", ErrInvalidRule, r.ID, r.Kind)
}
