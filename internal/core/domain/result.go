package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Cell is one column value of a result row.
type Cell struct {
	Column string `json:"column"`
	Value  any    `json:"value"`
}

// Row is an ordered result row as returned by the database.
type Row []Cell

// Get returns the value of the named column.
func (r Row) Get(column string) (any, bool) {
	for _, c := range r {
		if c.Column == column {
			return c.Value, true
		}
	}
	return nil, false
}

func (r Row) String() string {
	parts := make([]string, len(r))
	for i, c := range r {
		parts[i] = c.Column + ": " + FormatValue(c.Value)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Outcome classifies a single rule execution.
type Outcome string

const (
	OutcomePass           Outcome = "pass"
	OutcomeFail           Outcome = "fail"
	OutcomeSchemaError    Outcome = "schema_error"
	OutcomeExecutionError Outcome = "execution_error"
)

// ValidationResult is the verdict of one rule. OffendingRows is non-empty
// exactly when Outcome is OutcomeFail; Err is set for the two error outcomes.
type ValidationResult struct {
	Rule          Rule
	Outcome       Outcome
	OffendingRows []Row
	Truncated     bool // evidence hit the row limit
	Err           error
	Duration      time.Duration
}

func (r ValidationResult) Passed() bool {
	return r.Outcome == OutcomePass
}

// AsError returns nil for a passing result and an error wrapping the
// matching taxonomy sentinel otherwise.
func (r ValidationResult) AsError() error {
	switch r.Outcome {
	case OutcomePass:
		return nil
	case OutcomeFail:
		return fmt.Errorf("%w: %s", ErrValidationFailure, r.Diagnostic())
	default:
		return r.Err
	}
}

// ErrorResult converts a rule-level error into a failed result. Errors
// wrapping ErrSchema become schema errors; anything else is an execution error.
func ErrorResult(rule Rule, err error) ValidationResult {
	outcome := OutcomeExecutionError
	if errors.Is(err, ErrSchema) {
		outcome = OutcomeSchemaError
	} else if !errors.Is(err, ErrExecution) {
		err = fmt.Errorf("%w: %w", ErrExecution, err)
	}
	return ValidationResult{Rule: rule, Outcome: outcome, Err: err}
}

// Evaluate interprets the rows returned by a rule's compiled query.
// limit is the evidence cap the query was compiled with.
func Evaluate(rule Rule, rows []Row, limit int) ValidationResult {
	if rule.Kind == KindExpectedType {
		return evaluateType(rule, rows)
	}
	if len(rows) == 0 {
		return ValidationResult{Rule: rule, Outcome: OutcomePass}
	}
	return ValidationResult{
		Rule:          rule,
		Outcome:       OutcomeFail,
		OffendingRows: rows,
		Truncated:     limit > 0 && len(rows) >= limit,
	}
}

func evaluateType(rule Rule, rows []Row) ValidationResult {
	if len(rows) == 0 {
		return ErrorResult(rule, fmt.Errorf("%w: column %s not found in %s", ErrSchema, rule.Column, rule.Table))
	}

	v, _ := rows[0].Get("data_type")
	actual := FormatValue(v)
	if actual == rule.ExpectedType {
		return ValidationResult{Rule: rule, Outcome: OutcomePass}
	}

	return ValidationResult{
		Rule:    rule,
		Outcome: OutcomeFail,
		OffendingRows: []Row{{
			{Column: "column", Value: rule.Column},
			{Column: "expected_type", Value: rule.ExpectedType},
			{Column: "actual_type", Value: actual},
		}},
	}
}

// Diagnostic is the human-readable explanation of a non-passing result.
// It is empty for passing results.
func (r ValidationResult) Diagnostic() string {
	switch r.Outcome {
	case OutcomePass:
		return ""
	case OutcomeSchemaError, OutcomeExecutionError:
		if r.Err == nil {
			return string(r.Outcome)
		}
		return r.Err.Error()
	}

	rule := r.Rule
	var msg string
	switch rule.Kind {
	case KindAllowedValues:
		msg = fmt.Sprintf("Unexpected values found in %s column of %s: %s",
			rule.Column, rule.Table, joinColumn(r.OffendingRows, rule.Column))
	case KindNonNull:
		msg = fmt.Sprintf("Null values found in %s of %s: %s",
			rule.Column, rule.Table, joinRows(r.OffendingRows))
	case KindUnique:
		msg = fmt.Sprintf("Duplicate values found in %s of %s: %s",
			rule.Column, rule.Table, joinDuplicates(r.OffendingRows, rule.Column))
	case KindExpectedType:
		actual, _ := r.OffendingRows[0].Get("actual_type")
		msg = fmt.Sprintf("Unexpected data type found in %s column of %s. Expected: %s, Actual: %s",
			rule.Column, rule.Table, rule.ExpectedType, FormatValue(actual))
	case KindDateOffset:
		msg = fmt.Sprintf("Dates mismatched in %s column for rows where %s is not at least %s after %s:\n%s",
			rule.LaterColumn, rule.LaterColumn, rule.MinInterval, rule.EarlierColumn,
			joinDatePairs(r.OffendingRows, rule.EarlierColumn, rule.LaterColumn))
	default:
		msg = joinRows(r.OffendingRows)
	}

	if r.Truncated {
		msg += fmt.Sprintf(" (first %d rows shown)", len(r.OffendingRows))
	}
	return msg
}

func joinColumn(rows []Row, column string) string {
	vals := make([]string, len(rows))
	for i, row := range rows {
		v, _ := row.Get(column)
		vals[i] = FormatValue(v)
	}
	return "[" + strings.Join(vals, ", ") + "]"
}

func joinDuplicates(rows []Row, column string) string {
	vals := make([]string, len(rows))
	for i, row := range rows {
		v, _ := row.Get(column)
		n, _ := row.Get("count")
		vals[i] = fmt.Sprintf("(%s, %s)", FormatValue(v), FormatValue(n))
	}
	return "[" + strings.Join(vals, ", ") + "]"
}

func joinDatePairs(rows []Row, earlier, later string) string {
	vals := make([]string, len(rows))
	for i, row := range rows {
		e, _ := row.Get(earlier)
		l, _ := row.Get(later)
		vals[i] = fmt.Sprintf("%s: %s, %s: %s", earlier, FormatValue(e), later, FormatValue(l))
	}
	return strings.Join(vals, "\n")
}

func joinRows(rows []Row) string {
	vals := make([]string, len(rows))
	for i, row := range rows {
		vals[i] = row.String()
	}
	return "[" + strings.Join(vals, ", ") + "]"
}

// FormatValue renders a database value for diagnostics.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.DateTime)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}
