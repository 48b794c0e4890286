package domain

import (
	"fmt"
	"strings"
)

// DefaultSchema is the namespace unqualified table names resolve against.
const DefaultSchema = "staging"

// TableName is a schema-qualified relation name.
type TableName struct {
	Schema string
	Name   string
}

// ParseTableName splits "schema.table" into its parts. A bare table name
// resolves against defaultSchema.
func ParseTableName(s, defaultSchema string) (TableName, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TableName{}, fmt.Errorf("empty table name")
	}

	parts := strings.Split(s, ".")
	switch len(parts) {
	case 1:
		if defaultSchema == "" {
			defaultSchema = DefaultSchema
		}
		return TableName{Schema: defaultSchema, Name: parts[0]}, nil
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return TableName{}, fmt.Errorf("malformed table name %q", s)
		}
		return TableName{Schema: parts[0], Name: parts[1]}, nil
	default:
		return TableName{}, fmt.Errorf("malformed table name %q: expected [schema.]table", s)
	}
}

func (t TableName) String() string {
	return t.Schema + "." + t.Name
}

// Quoted returns the table as a quoted SQL identifier pair.
func (t TableName) Quoted() string {
	return quoteIdent(t.Schema) + "." + quoteIdent(t.Name)
}

func (t TableName) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// quoteIdent quotes a SQL identifier to prevent injection.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
