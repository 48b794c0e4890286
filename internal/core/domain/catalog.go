package domain

import "fmt"

// identifierTables are the staging tables whose identifier column must be unique.
var identifierTables = []string{"patient_leo", "specimen_leo", "microscopy_leo", "culture_leo", "condition_leo"}

// DefaultCatalog returns the built-in rule set for the surveillance staging
// tables, resolved against schema.
func DefaultCatalog(schema string) []Rule {
	if schema == "" {
		schema = DefaultSchema
	}
	table := func(name string) TableName { return TableName{Schema: schema, Name: name} }

	rules := []Rule{
		allowed(table("patient_leo"), "gender", false, "male", "female"),
		allowed(table("patient_leo"), "managingorganizationid", false, "NCTBLD"),
	}

	for _, name := range identifierTables {
		rules = append(rules, Rule{
			ID:     RuleID(name, "identifier", KindUnique),
			Kind:   KindUnique,
			Table:  table(name),
			Column: "identifier",
		})
	}

	// patient_leo carries no registrationdate.
	for _, name := range identifierTables[1:] {
		rules = append(rules, Rule{
			ID:     RuleID(name, "registrationdate", KindNonNull),
			Kind:   KindNonNull,
			Table:  table(name),
			Column: "registrationdate",
		})
	}

	rules = append(rules,
		allowed(table("specimen_leo"), "bodysite", true,
			"biopsy", "sputum", "other", "surgeryCaseousMasses", "surgeryCavityInternalWall",
			"surgeryCavityExternalWall", "surgeryModulu", "surgeryHealthy tissue", "bronchialLavage",
			"asciticFluid", "blood", "urine", "pleuralFluid", "cerebrospinalFluid", "paraffinEmbeddedTissue"),
		allowed(table("microscopy_leo"), "value", true,
			"-0.09", "1+", "2+", "3+", "4+", "saliva", "unknownData", "negative", "notDone"),
		allowed(table("microscopy_leo"), "microscopytype", true,
			"zn", "florescence", "notSpecified"),
		allowed(table("culture_leo"), "value", true,
			"singleColony", "1+", "2+", "3+", "positive", "negative", "unknownData",
			"unfinishedResult", "notDone", "contamination", "mott"),
		allowed(table("culture_leo"), "culturetype", true,
			"liquid", "solid", "notSpecified"),

		expectType(table("specimen_leo"), "bodysite", "character varying"),
		expectType(table("microscopy_leo"), "microscopytype", "character varying"),
		expectType(table("culture_leo"), "value", "character varying"),

		Rule{
			ID:            RuleID("culture_leo", "issued", KindDateOffset),
			Kind:          KindDateOffset,
			Table:         table("culture_leo"),
			LaterColumn:   "issued",
			EarlierColumn: "registrationdate",
			MinInterval:   "3 days",
			Description:   "culture results are issued at least 3 days after registration",
		},
	)

	return rules
}

func allowed(t TableName, column string, allowNull bool, values ...string) Rule {
	return Rule{
		ID:            RuleID(t.Name, column, KindAllowedValues),
		Kind:          KindAllowedValues,
		Table:         t,
		Column:        column,
		AllowedValues: values,
		AllowNull:     allowNull,
	}
}

func expectType(t TableName, column, dataType string) Rule {
	return Rule{
		ID:           RuleID(t.Name, column, KindExpectedType),
		Kind:         KindExpectedType,
		Table:        t,
		Column:       column,
		ExpectedType: dataType,
	}
}

// RuleID builds the conventional "table.column.kind" rule identifier.
func RuleID(table, column string, kind RuleKind) string {
	return fmt.Sprintf("%s.%s.%s", table, column, kind)
}
