package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/guillermoBallester/stagecheck/internal/audit"
	"github.com/guillermoBallester/stagecheck/internal/core/domain"
	"github.com/guillermoBallester/stagecheck/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- mock ConnectionProvider / Session ---

type queryFunc func(q domain.Query) ([]domain.Row, error)

type mockSession struct {
	mu      sync.Mutex
	queries []domain.Query
	respond queryFunc
	dead    bool
	closed  bool
}

func (s *mockSession) Query(_ context.Context, q domain.Query) ([]domain.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	if s.respond == nil {
		return nil, nil
	}
	return s.respond(q)
}

func (s *mockSession) Alive() bool { return !s.dead }

func (s *mockSession) Close(context.Context) error {
	s.closed = true
	return nil
}

type mockProvider struct {
	session  *mockSession
	err      error
	acquired int
}

func (p *mockProvider) Acquire(context.Context) (port.Session, error) {
	p.acquired++
	if p.err != nil {
		return nil, p.err
	}
	return p.session, nil
}

// --- mock auditor / instrumentation ---

type recordingAuditor struct {
	entries []port.AuditEntry
}

func (a *recordingAuditor) Record(_ context.Context, e port.AuditEntry) {
	a.entries = append(a.entries, e)
}
func (a *recordingAuditor) Close() error { return nil }

type countingInst struct {
	port.NoopInstrumentation
	outcomes map[string]int
}

func (c *countingInst) IncrementRuleCount(_ context.Context, outcome string) {
	if c.outcomes == nil {
		c.outcomes = make(map[string]int)
	}
	c.outcomes[outcome]++
}

// --- fixtures ---

var patients = domain.TableName{Schema: "staging", Name: "patient_leo"}

func genderRule() domain.Rule {
	return domain.Rule{
		ID: "patient_leo.gender.allowed_values", Kind: domain.KindAllowedValues,
		Table: patients, Column: "gender", AllowedValues: []string{"male", "female"},
	}
}

func uniqueRule() domain.Rule {
	return domain.Rule{ID: "patient_leo.identifier.unique", Kind: domain.KindUnique, Table: patients, Column: "identifier"}
}

func nonNullRule() domain.Rule {
	return domain.Rule{ID: "patient_leo.identifier.non_null", Kind: domain.KindNonNull, Table: patients, Column: "identifier"}
}

func newTestRunner(p port.ConnectionProvider, auditor port.QueryAuditor, masks domain.MaskSpec, inst port.Instrumentation) *Runner {
	return NewRunner(p, domain.NewPgQueryValidator(), auditor, testLogger(), masks, 100, nil, inst)
}

// --- tests ---

func TestRunner_AllPass(t *testing.T) {
	sess := &mockSession{}
	p := &mockProvider{session: sess}
	r := newTestRunner(p, audit.NoopAuditor{}, nil, nil)

	report, err := r.Run(context.Background(), []domain.Rule{genderRule(), uniqueRule()})
	require.NoError(t, err)
	assert.True(t, report.Passed())
	require.Len(t, report.Results, 2)
	assert.Len(t, sess.queries, 2)
	assert.Equal(t, 1, p.acquired, "one session per run")
	assert.True(t, sess.closed)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestRunner_FailureDoesNotStopRun(t *testing.T) {
	sess := &mockSession{respond: func(q domain.Query) ([]domain.Row, error) {
		if strings.Contains(q.SQL, "DISTINCT") {
			return []domain.Row{{{Column: "gender", Value: "unknown"}}}, nil
		}
		return nil, nil
	}}
	r := newTestRunner(&mockProvider{session: sess}, audit.NoopAuditor{}, nil, nil)

	report, err := r.Run(context.Background(), []domain.Rule{genderRule(), uniqueRule()})
	require.NoError(t, err)
	assert.False(t, report.Passed())
	assert.Equal(t, domain.OutcomeFail, report.Results[0].Outcome)
	assert.Equal(t, domain.OutcomePass, report.Results[1].Outcome)
}

func TestRunner_ResultsFollowCatalogueOrder(t *testing.T) {
	rules := []domain.Rule{uniqueRule(), genderRule(), nonNullRule()}
	r := newTestRunner(&mockProvider{session: &mockSession{}}, audit.NoopAuditor{}, nil, nil)

	report, err := r.Run(context.Background(), rules)
	require.NoError(t, err)
	for i, res := range report.Results {
		assert.Equal(t, rules[i].ID, res.Rule.ID)
	}
}

func TestRunner_RuleErrorsAreIsolated(t *testing.T) {
	sess := &mockSession{respond: func(q domain.Query) ([]domain.Row, error) {
		switch {
		case strings.Contains(q.SQL, "DISTINCT"):
			return nil, fmt.Errorf("%w: relation does not exist", domain.ErrSchema)
		case strings.Contains(q.SQL, "GROUP BY"):
			return nil, errors.New("invalid input syntax for type date")
		}
		return nil, nil
	}}
	r := newTestRunner(&mockProvider{session: sess}, audit.NoopAuditor{}, nil, nil)

	report, err := r.Run(context.Background(), []domain.Rule{genderRule(), uniqueRule(), nonNullRule()})
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	assert.Equal(t, domain.OutcomeSchemaError, report.Results[0].Outcome)
	assert.Equal(t, domain.OutcomeExecutionError, report.Results[1].Outcome)
	assert.ErrorIs(t, report.Results[1].Err, domain.ErrExecution)
	assert.Equal(t, domain.OutcomePass, report.Results[2].Outcome)
	assert.False(t, report.Passed())
}

func TestRunner_PanicBecomesExecutionError(t *testing.T) {
	sess := &mockSession{respond: func(q domain.Query) ([]domain.Row, error) {
		if strings.Contains(q.SQL, "GROUP BY") {
			panic("driver exploded")
		}
		return nil, nil
	}}
	r := newTestRunner(&mockProvider{session: sess}, audit.NoopAuditor{}, nil, nil)

	report, err := r.Run(context.Background(), []domain.Rule{uniqueRule(), nonNullRule()})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeExecutionError, report.Results[0].Outcome)
	assert.Contains(t, report.Results[0].Err.Error(), "driver exploded")
	assert.Equal(t, domain.OutcomePass, report.Results[1].Outcome)
}

func TestRunner_ConnectionErrorAborts(t *testing.T) {
	p := &mockProvider{err: fmt.Errorf("%w: connection refused", domain.ErrConnection)}
	r := newTestRunner(p, audit.NoopAuditor{}, nil, nil)

	report, err := r.Run(context.Background(), []domain.Rule{genderRule()})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConnection)
	assert.Nil(t, report)
}

func TestRunner_UnwrappedAcquireErrorIsConnectionError(t *testing.T) {
	p := &mockProvider{err: errors.New("dial tcp: refused")}
	r := newTestRunner(p, audit.NoopAuditor{}, nil, nil)

	_, err := r.Run(context.Background(), []domain.Rule{genderRule()})
	assert.ErrorIs(t, err, domain.ErrConnection)
}

func TestRunner_LostSessionAbortsRun(t *testing.T) {
	sess := &mockSession{}
	sess.respond = func(q domain.Query) ([]domain.Row, error) {
		if strings.Contains(q.SQL, "DISTINCT") {
			sess.dead = true
			return nil, fmt.Errorf("%w: conn closed", domain.ErrExecution)
		}
		return nil, nil
	}
	r := newTestRunner(&mockProvider{session: sess}, audit.NoopAuditor{}, nil, nil)

	report, err := r.Run(context.Background(), []domain.Rule{genderRule(), uniqueRule()})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConnection)
	require.NotNil(t, report)
	assert.Len(t, report.Results, 1, "partial report stops at the rule that lost the session")
	assert.Len(t, sess.queries, 1)
}

func TestRunner_InvalidCatalogue(t *testing.T) {
	p := &mockProvider{session: &mockSession{}}
	r := newTestRunner(p, audit.NoopAuditor{}, nil, nil)

	bad := genderRule()
	bad.AllowedValues = nil

	_, err := r.Run(context.Background(), []domain.Rule{bad})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidRule)
	assert.Zero(t, p.acquired, "no connection for an invalid catalogue")
}

func TestRunner_Cancelled(t *testing.T) {
	r := newTestRunner(&mockProvider{session: &mockSession{}}, audit.NoopAuditor{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := r.Run(ctx, []domain.Rule{genderRule()})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Results)
}

func TestRunner_BindsAllowedValues(t *testing.T) {
	sess := &mockSession{}
	r := newTestRunner(&mockProvider{session: sess}, audit.NoopAuditor{}, nil, nil)

	_, err := r.Run(context.Background(), []domain.Rule{genderRule()})
	require.NoError(t, err)
	require.Len(t, sess.queries, 1)
	assert.NotContains(t, sess.queries[0].SQL, "male", "values are bound, never interpolated")
	assert.Equal(t, []any{[]string{"male", "female"}}, sess.queries[0].Args)
}

func TestRunner_MasksEvidence(t *testing.T) {
	sess := &mockSession{respond: func(domain.Query) ([]domain.Row, error) {
		return []domain.Row{{
			{Column: "identifier", Value: nil},
			{Column: "gender", Value: "female"},
			{Column: "phone", Value: "555-123-4567"},
		}}, nil
	}}
	masks := domain.MaskSpec{"staging.patient_leo": {"phone": domain.MaskRedact}}
	r := newTestRunner(&mockProvider{session: sess}, audit.NoopAuditor{}, masks, nil)

	report, err := r.Run(context.Background(), []domain.Rule{nonNullRule()})
	require.NoError(t, err)
	row := report.Results[0].OffendingRows[0]
	v, _ := row.Get("phone")
	assert.Equal(t, "***", v)
	v, _ = row.Get("gender")
	assert.Equal(t, "female", v)
}

func TestRunner_AuditAndMetrics(t *testing.T) {
	sess := &mockSession{respond: func(q domain.Query) ([]domain.Row, error) {
		if strings.Contains(q.SQL, "GROUP BY") {
			return []domain.Row{{{Column: "identifier", Value: "P-2"}, {Column: "count", Value: int64(2)}}}, nil
		}
		return nil, nil
	}}
	auditor := &recordingAuditor{}
	inst := &countingInst{}
	r := newTestRunner(&mockProvider{session: sess}, auditor, nil, inst)

	_, err := r.Run(context.Background(), []domain.Rule{genderRule(), uniqueRule()})
	require.NoError(t, err)

	require.Len(t, auditor.entries, 2)
	assert.Equal(t, "patient_leo.gender.allowed_values", auditor.entries[0].RuleID)
	assert.Equal(t, "pass", auditor.entries[0].Outcome)
	assert.Equal(t, "fail", auditor.entries[1].Outcome)
	assert.Equal(t, 1, auditor.entries[1].RowsReturned)
	assert.Equal(t, map[string]int{"pass": 1, "fail": 1}, inst.outcomes)
}

func TestRunner_Idempotent(t *testing.T) {
	sess := &mockSession{respond: func(domain.Query) ([]domain.Row, error) {
		return []domain.Row{{{Column: "gender", Value: "x"}}}, nil
	}}
	r := newTestRunner(&mockProvider{session: sess}, audit.NoopAuditor{}, nil, nil)

	first, err := r.Run(context.Background(), []domain.Rule{genderRule()})
	require.NoError(t, err)
	second, err := r.Run(context.Background(), []domain.Rule{genderRule()})
	require.NoError(t, err)
	assert.Equal(t, first.Results[0].Diagnostic(), second.Results[0].Diagnostic())
}
