package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/guillermoBallester/stagecheck/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var patients = domain.TableName{Schema: "staging", Name: "patient_leo"}

func sampleReport() *domain.Report {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	gender := domain.Rule{ID: "patient_leo.gender.allowed_values", Kind: domain.KindAllowedValues, Table: patients, Column: "gender", AllowedValues: []string{"male", "female"}}
	unique := domain.Rule{ID: "patient_leo.identifier.unique", Kind: domain.KindUnique, Table: patients, Column: "identifier"}
	missing := domain.Rule{ID: "condition_leo.identifier.unique", Kind: domain.KindUnique, Table: domain.TableName{Schema: "staging", Name: "condition_leo"}, Column: "identifier"}

	return &domain.Report{
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Results: []domain.ValidationResult{
			{Rule: gender, Outcome: domain.OutcomePass, Duration: 20 * time.Millisecond},
			{
				Rule:    unique,
				Outcome: domain.OutcomeFail,
				OffendingRows: []domain.Row{{
					{Column: "identifier", Value: "P-2"},
					{Column: "count", Value: int64(2)},
				}},
			},
			domain.ErrorResult(missing, fmt.Errorf("%w: relation does not exist", domain.ErrSchema)),
		},
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleReport()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "PASS "))
	assert.Contains(t, lines[0], "staging.patient_leo.gender")
	assert.True(t, strings.HasPrefix(lines[1], "FAIL "))
	assert.Equal(t, "    Duplicate values found in identifier of staging.patient_leo: [(P-2, 2)]", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "SCHEMA_ERROR "))
	assert.Contains(t, lines[4], "relation does not exist")
	assert.Equal(t, "FAILED: 3 rules, 1 passed, 1 failed, 1 schema errors, 0 execution errors (1.5s)", lines[5])
}

func TestWriteText_AllPass(t *testing.T) {
	r := &domain.Report{Results: []domain.ValidationResult{{
		Rule:    domain.Rule{ID: "x", Kind: domain.KindNonNull, Table: patients, Column: "identifier"},
		Outcome: domain.OutcomePass,
	}}}

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, r))
	assert.Contains(t, buf.String(), "PASSED: 1 rules, 1 passed")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleReport(), FormatJSON))

	var doc struct {
		Passed  bool           `json:"passed"`
		Counts  map[string]int `json:"counts"`
		Results []struct {
			ID            string           `json:"id"`
			Outcome       string           `json:"outcome"`
			Diagnostic    string           `json:"diagnostic"`
			OffendingRows []map[string]any `json:"offending_rows"`
			DurationMS    int64            `json:"duration_ms"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.False(t, doc.Passed)
	assert.Equal(t, 1, doc.Counts["fail"])
	require.Len(t, doc.Results, 3)
	assert.Equal(t, "pass", doc.Results[0].Outcome)
	assert.Empty(t, doc.Results[0].Diagnostic)
	assert.Equal(t, int64(20), doc.Results[0].DurationMS)
	require.Len(t, doc.Results[1].OffendingRows, 1)
	assert.Equal(t, "P-2", doc.Results[1].OffendingRows[0]["identifier"])
	assert.InDelta(t, 2, doc.Results[1].OffendingRows[0]["count"], 0)
	assert.Equal(t, "schema_error", doc.Results[2].Outcome)
}

func TestOrderedRow_KeepsColumnOrder(t *testing.T) {
	row := orderedRow{
		{Column: "registrationdate", Value: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Column: "issued", Value: nil},
		{Column: "identifier", Value: "C-1"},
	}
	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Equal(t, `{"registrationdate":"2023-01-01","issued":null,"identifier":"C-1"}`, string(data))
}

func TestWrite_UnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, sampleReport(), "xml")
	require.Error(t, err)
}
