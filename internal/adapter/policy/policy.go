package policy

import (
	"fmt"

	"github.com/guillermoBallester/stagecheck/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// Policy is the operator-controlled YAML file: an optional rule catalogue
// replacing the built-in one, plus per-table context (descriptions and
// evidence masks).
//
//	version: "1"
//	schema: staging
//	rules:
//	  - table: patient_leo
//	    column: gender
//	    kind: allowed_values
//	    allowed: [male, female]
//	context:
//	  tables:
//	    staging.patient_leo:
//	      description: "Patients from the registry extract"
//	      columns:
//	        identifier:
//	          mask: hash
type Policy struct {
	Version string        `yaml:"version,omitempty"`
	Schema  string        `yaml:"schema,omitempty"`
	Rules   []RuleSpec    `yaml:"rules,omitempty"`
	Context ContextConfig `yaml:"context"`
}

// RuleSpec is the YAML form of a domain.Rule. An empty ID defaults to
// "table.column.kind".
type RuleSpec struct {
	ID            string          `yaml:"id,omitempty"`
	Kind          domain.RuleKind `yaml:"kind"`
	Table         string          `yaml:"table"`
	Column        string          `yaml:"column,omitempty"`
	Description   string          `yaml:"description,omitempty"`
	Allowed       []string        `yaml:"allowed,omitempty"`
	AllowNull     bool            `yaml:"allow_null,omitempty"`
	ExpectedType  string          `yaml:"expected_type,omitempty"`
	LaterColumn   string          `yaml:"later_column,omitempty"`
	EarlierColumn string          `yaml:"earlier_column,omitempty"`
	MinInterval   string          `yaml:"min_interval,omitempty"`
}

// ContextConfig maps fully-qualified table names (schema.table) to their
// descriptions and column masks.
type ContextConfig struct {
	Tables map[string]TableContext `yaml:"tables"`
}

type TableContext struct {
	Description string                   `yaml:"description"`
	Columns     map[string]ColumnContext `yaml:"columns"`
}

// ColumnContext holds a column's description and optional mask directive.
type ColumnContext struct {
	Description string          `yaml:"description"`
	Mask        domain.MaskType `yaml:"mask,omitempty"`
}

// UnmarshalYAML accepts a plain string as shorthand for a description.
//
//	columns:
//	  value: "Culture growth grade"   # description only
//	  identifier:
//	    mask: hash
func (cc *ColumnContext) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		cc.Description = value.Value
		return nil
	}
	type alias ColumnContext
	var a alias
	if err := value.Decode(&a); err != nil {
		return fmt.Errorf("decoding column context: %w", err)
	}
	*cc = ColumnContext(a)
	return nil
}

// Catalog resolves the policy's rules against schema. The policy's own
// schema wins over the argument; without rules the built-in catalogue is
// returned. A nil policy also yields the built-in catalogue.
func (p *Policy) Catalog(schema string) ([]domain.Rule, error) {
	if p != nil && p.Schema != "" {
		schema = p.Schema
	}
	if p == nil || len(p.Rules) == 0 {
		return domain.DefaultCatalog(schema), nil
	}

	rules := make([]domain.Rule, 0, len(p.Rules))
	for i, spec := range p.Rules {
		rule, err := spec.toRule(schema)
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		rules = append(rules, rule)
	}

	if err := domain.ValidateCatalog(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (s RuleSpec) toRule(schema string) (domain.Rule, error) {
	table, err := domain.ParseTableName(s.Table, schema)
	if err != nil {
		return domain.Rule{}, fmt.Errorf("%w: %w", domain.ErrInvalidRule, err)
	}

	id := s.ID
	if id == "" {
		column := s.Column
		if s.Kind == domain.KindDateOffset {
			column = s.LaterColumn
		}
		id = domain.RuleID(table.Name, column, s.Kind)
	}

	return domain.Rule{
		ID:            id,
		Kind:          s.Kind,
		Table:         table,
		Column:        s.Column,
		Description:   s.Description,
		AllowedValues: s.Allowed,
		AllowNull:     s.AllowNull,
		ExpectedType:  s.ExpectedType,
		LaterColumn:   s.LaterColumn,
		EarlierColumn: s.EarlierColumn,
		MinInterval:   s.MinInterval,
	}, nil
}

// MaskSpec extracts the table -> column -> mask map used on evidence rows.
func (p *Policy) MaskSpec() domain.MaskSpec {
	if p == nil {
		return nil
	}
	spec := make(domain.MaskSpec)
	for table, tc := range p.Context.Tables {
		for col, cc := range tc.Columns {
			if cc.Mask == "" {
				continue
			}
			if spec[table] == nil {
				spec[table] = make(map[string]domain.MaskType)
			}
			spec[table][col] = cc.Mask
		}
	}
	if len(spec) == 0 {
		return nil
	}
	return spec
}
