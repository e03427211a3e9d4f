package errs

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Format(t *testing.T) {
	plain := New(ErrKindMissingWhereClause, "update requires filters")
	assert.Equal(t, "[missing_where_clause] update requires filters", plain.Error())

	cause := errors.New("duplicate key value")
	wrapped := Wrap(ErrKindConstraintViolation, "insert rejected", cause)
	assert.Equal(t, "[constraint_violation] insert rejected: duplicate key value", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestKindOf_ThroughWrapping(t *testing.T) {
	inner := New(ErrKindConnectFailed, "dial tcp: refused")
	outer := fmt.Errorf("select_records: %w", inner)

	assert.Equal(t, ErrKindConnectFailed, KindOf(outer))
	assert.True(t, IsConnectFailed(outer))
	assert.Equal(t, ErrKindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, ErrKindUnknown, KindOf(nil))
}

func TestIsValidation(t *testing.T) {
	tests := []struct {
		kind ErrKind
		want bool
	}{
		{ErrKindInvalidArgument, true},
		{ErrKindInvalidIdentifier, true},
		{ErrKindMissingWhereClause, true},
		{ErrKindEmptyColumnSet, true},
		{ErrKindUnsupportedOperator, true},
		{ErrKindStatementKindMismatch, true},
		{ErrKindTableNotFound, false},
		{ErrKindPoolExhausted, false},
		{ErrKindConnectFailed, false},
		{ErrKindConstraintViolation, false},
		{ErrKindTimeout, false},
		{ErrKindQueryExecutionFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidation(New(tt.kind, "x")))
		})
	}
}

func TestErrKind_MarshalJSON(t *testing.T) {
	out, err := json.Marshal(map[string]ErrKind{"kind": ErrKindPoolExhausted})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"pool_exhausted"}`, string(out))
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "relation does not exist", MessageOf(Wrap(ErrKindTableNotFound, "relation does not exist", errors.New("42P01"))))
	assert.Equal(t, "boom", MessageOf(errors.New("boom")))
	assert.Empty(t, MessageOf(nil))
}
