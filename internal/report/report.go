// Package report renders a validation run for humans (text) or machines (JSON).
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/guillermoBallester/stagecheck/internal/core/domain"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Write renders r in the given format.
func Write(w io.Writer, r *domain.Report, format string) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatText, "":
		return WriteText(w, r)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

var labels = map[domain.Outcome]string{
	domain.OutcomePass:           "PASS",
	domain.OutcomeFail:           "FAIL",
	domain.OutcomeSchemaError:    "SCHEMA_ERROR",
	domain.OutcomeExecutionError: "EXEC_ERROR",
}

// WriteText prints one line per rule in catalogue order, the diagnostic of
// every non-passing rule indented below it, then a summary line.
func WriteText(w io.Writer, r *domain.Report) error {
	var b strings.Builder

	idWidth := 0
	for _, res := range r.Results {
		idWidth = max(idWidth, len(res.Rule.ID))
	}

	for _, res := range r.Results {
		fmt.Fprintf(&b, "%-12s  %-*s  %s\n", labels[res.Outcome], idWidth, res.Rule.ID, res.Rule.Target())
		if res.Passed() {
			continue
		}
		for _, line := range strings.Split(res.Diagnostic(), "\n") {
			fmt.Fprintf(&b, "    %s\n", line)
		}
	}

	b.WriteString(Summary(r))
	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}

// Summary is the one-line verdict of a run.
func Summary(r *domain.Report) string {
	counts := r.Counts()
	verdict := "PASSED"
	if !r.Passed() {
		verdict = "FAILED"
	}
	return fmt.Sprintf("%s: %d rules, %d passed, %d failed, %d schema errors, %d execution errors (%s)",
		verdict, len(r.Results),
		counts[domain.OutcomePass], counts[domain.OutcomeFail],
		counts[domain.OutcomeSchemaError], counts[domain.OutcomeExecutionError],
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
}

type jsonReport struct {
	Passed     bool                   `json:"passed"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Counts     map[domain.Outcome]int `json:"counts"`
	Results    []jsonResult           `json:"results"`
}

type jsonResult struct {
	ID            string          `json:"id"`
	Kind          domain.RuleKind `json:"kind"`
	Target        string          `json:"target"`
	Outcome       domain.Outcome  `json:"outcome"`
	Passed        bool            `json:"passed"`
	Diagnostic    string          `json:"diagnostic,omitempty"`
	OffendingRows []orderedRow    `json:"offending_rows,omitempty"`
	Truncated     bool            `json:"truncated,omitempty"`
	DurationMS    int64           `json:"duration_ms"`
}

// orderedRow encodes a row as a JSON object keeping the query's column order.
type orderedRow domain.Row

func (r orderedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, cell := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(cell.Column)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		val, err := json.Marshal(jsonValue(cell.Value))
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// jsonValue keeps JSON-native scalars and renders everything else the way
// diagnostics do.
func jsonValue(v any) any {
	switch v.(type) {
	case nil, bool, string, int, int16, int32, int64, float32, float64:
		return v
	default:
		return domain.FormatValue(v)
	}
}

// Build converts a report into its JSON document form.
func Build(r *domain.Report) any {
	out := jsonReport{
		Passed:     r.Passed(),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Counts:     r.Counts(),
		Results:    make([]jsonResult, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		jr := jsonResult{
			ID:         res.Rule.ID,
			Kind:       res.Rule.Kind,
			Target:     res.Rule.Target(),
			Outcome:    res.Outcome,
			Passed:     res.Passed(),
			Diagnostic: res.Diagnostic(),
			Truncated:  res.Truncated,
			DurationMS: res.Duration.Milliseconds(),
		}
		for _, row := range res.OffendingRows {
			jr.OffendingRows = append(jr.OffendingRows, orderedRow(row))
		}
		out.Results = append(out.Results, jr)
	}
	return out
}

func WriteJSON(w io.Writer, r *domain.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Build(r))
}
