package domain

import (
	"fmt"
	"strings"
)

// RuleKind identifies the predicate a rule asserts.
type RuleKind string

const (
	KindAllowedValues RuleKind = "allowed_values"
	KindNonNull       RuleKind = "non_null"
	KindUnique        RuleKind = "unique"
	KindExpectedType  RuleKind = "expected_type"
	KindDateOffset    RuleKind = "date_offset_at_least"
)

// Valid returns true if k is a recognised rule kind.
func (k RuleKind) Valid() bool {
	switch k {
	case KindAllowedValues, KindNonNull, KindUnique, KindExpectedType, KindDateOffset:
		return true
	}
	return false
}

// Rule is one declarative validation check. Rules are immutable once the
// catalogue is built.
type Rule struct {
	ID          string    `json:"id"`
	Kind        RuleKind  `json:"kind"`
	Table       TableName `json:"table"`
	Column      string    `json:"column,omitempty"`
	Description string    `json:"description,omitempty"`

	// AllowedValues rules. NULL counts as an unexpected value unless AllowNull is set.
	AllowedValues []string `json:"allowed_values,omitempty"`
	AllowNull     bool     `json:"allow_null,omitempty"`

	// ExpectedType rules compare against information_schema.columns.data_type.
	ExpectedType string `json:"expected_type,omitempty"`

	// DateOffset rules require LaterColumn >= EarlierColumn + MinInterval,
	// where MinInterval is a PostgreSQL interval literal such as "3 days".
	LaterColumn   string `json:"later_column,omitempty"`
	EarlierColumn string `json:"earlier_column,omitempty"`
	MinInterval   string `json:"min_interval,omitempty"`
}

// Target renders what the rule inspects, e.g. "staging.patient_leo.gender".
func (r Rule) Target() string {
	if r.Kind == KindDateOffset {
		return fmt.Sprintf("%s(%s, %s)", r.Table, r.LaterColumn, r.EarlierColumn)
	}
	if r.Column == "" {
		return r.Table.String()
	}
	return r.Table.String() + "." + r.Column
}

// Validate checks that the rule carries every parameter its kind needs.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRule)
	}
	if r.Table.Name == "" || r.Table.Schema == "" {
		return fmt.Errorf("%w: rule %q: missing table", ErrInvalidRule, r.ID)
	}

	switch r.Kind {
	case KindAllowedValues:
		if r.Column == "" {
			return fmt.Errorf("%w: rule %q: column is required", ErrInvalidRule, r.ID)
		}
		if len(r.AllowedValues) == 0 {
			return fmt.Errorf("%w: rule %q: allowed values must not be empty", ErrInvalidRule, r.ID)
		}
	case KindNonNull, KindUnique:
		if r.Column == "" {
			return fmt.Errorf("%w: rule %q: column is required", ErrInvalidRule, r.ID)
		}
	case KindExpectedType:
		if r.Column == "" {
			return fmt.Errorf("%w: rule %q: column is required", ErrInvalidRule, r.ID)
		}
		if r.ExpectedType == "" {
			return fmt.Errorf("%w: rule %q: expected type is required", ErrInvalidRule, r.ID)
		}
	case KindDateOffset:
		if r.LaterColumn == "" || r.EarlierColumn == "" {
			return fmt.Errorf("%w: rule %q: later and earlier columns are required", ErrInvalidRule, r.ID)
		}
		if strings.TrimSpace(r.MinInterval) == "" {
			return fmt.Errorf("%w: rule %q: minimum interval is required", ErrInvalidRule, r.ID)
		}
	default:
		return fmt.Errorf("%w: rule %q: unknown kind %q", ErrInvalidRule, r.ID, r.Kind)
	}
	return nil
}

// ValidateCatalog validates every rule and rejects duplicate IDs.
func ValidateCatalog(rules []Rule) error {
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return err
		}
		if seen[r.ID] {
			return fmt.Errorf("%w: duplicate rule id %q", ErrInvalidRule, r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}

// SelectRules returns the rules named by ids, in catalogue order.
// An empty ids list selects the whole catalogue.
func SelectRules(rules []Rule, ids []string) ([]Rule, error) {
	if len(ids) == 0 {
		return rules, nil
	}

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	var selected []Rule
	for _, r := range rules {
		if want[r.ID] {
			selected = append(selected, r)
			delete(want, r.ID)
		}
	}
	for _, id := range ids {
		if want[id] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRule, id)
		}
	}
	return selected, nil
}
