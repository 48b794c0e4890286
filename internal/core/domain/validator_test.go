package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPgQueryValidator_Validate(t *testing.T) {
	t.Parallel()
	v := NewPgQueryValidator()
	tests := []struct {
		name    string
		sql     string
		wantErr error
	}{
		{name: "select", sql: "SELECT 1"},
		{name: "select with params", sql: "SELECT * FROM staging.t WHERE c = ANY($1::text[])"},
		{name: "empty", sql: "   ", wantErr: ErrEmptyQuery},
		{name: "insert", sql: "INSERT INTO t VALUES (1)", wantErr: ErrNotAllowed},
		{name: "select into", sql: "SELECT * INTO copy FROM t", wantErr: ErrNotAllowed},
		{name: "for update", sql: "SELECT * FROM t FOR UPDATE", wantErr: ErrNotAllowed},
		{name: "explain", sql: "EXPLAIN SELECT 1", wantErr: ErrNotAllowed},
		{name: "multi", sql: "SELECT 1; SELECT 2", wantErr: ErrMultiStatement},
		{name: "garbage", sql: "SELEC FROM", wantErr: ErrParseFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.sql)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
