package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umarmk/mcp-server/internal/errs"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		ident string
		ok    bool
	}{
		{"simple", "items", true},
		{"underscore start", "_tmp", true},
		{"mixed case digits", "Order_Items2", true},
		{"reserved word", "select", true},
		{"max length", strings.Repeat("a", MaxIdentifierLength), true},
		{"too long", strings.Repeat("a", MaxIdentifierLength+1), false},
		{"empty", "", false},
		{"digit start", "1items", false},
		{"space", "order items", false},
		{"dot", "public.items", false},
		{"quote", `items"`, false},
		{"semicolon injection", "items; DROP TABLE users", false},
		{"comment", "items--", false},
		{"unicode", "café", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateIdentifier(tt.ident)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.ident, got)
				return
			}
			require.Error(t, err)
			assert.Equal(t, errs.ErrKindInvalidIdentifier, errs.KindOf(err))
		})
	}
}

func TestValidateFilterPresent(t *testing.T) {
	err := ValidateFilterPresent("delete", nil)
	assert.Equal(t, errs.ErrKindMissingWhereClause, errs.KindOf(err))
	assert.Contains(t, err.Error(), "delete")

	assert.NoError(t, ValidateFilterPresent("delete", []Filter{{Column: "id", Operator: "=", Value: 1}}))
}

func TestParseOperator(t *testing.T) {
	tests := []struct {
		in   string
		want Operator
	}{
		{"=", OpEq},
		{"!=", OpNe},
		{"<>", OpNe},
		{"<=", OpLe},
		{" >= ", OpGe},
		{"like", OpLike},
		{"In", OpIn},
		{"is null", OpIsNull},
		{"IS   NOT\tNULL", OpIsNotNull},
	}
	for _, tt := range tests {
		got, err := ParseOperator(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "ILIKE", "= 1 OR 1", "BETWEEN", "~"} {
		_, err := ParseOperator(bad)
		assert.Equal(t, errs.ErrKindUnsupportedOperator, errs.KindOf(err), bad)
	}
}

func TestDialect(t *testing.T) {
	assert.Equal(t, "$3", DialectPostgres.Placeholder(3))
	assert.Equal(t, "?", DialectMySQL.Placeholder(3))
	assert.Equal(t, `"a""b"`, DialectPostgres.QuoteIdent(`a"b`))
	assert.Equal(t, "`a``b`", DialectMySQL.QuoteIdent("a`b"))
	assert.Equal(t, "public", DialectPostgres.DefaultSchema("shop"))
	assert.Equal(t, "shop", DialectMySQL.DefaultSchema("shop"))
	assert.True(t, DialectPostgres.SupportsReturning())
	assert.False(t, DialectMySQL.SupportsReturning())
	assert.Equal(t, "mysql", DialectMySQL.String())
}
