// Package query turns structured tool arguments into parameterized SQL.
//
// Nothing in this package performs I/O. Every name that becomes SQL structure
// (schema, table, column) is checked by ValidateIdentifier and then quoted;
// every caller value is bound as an argument and never spliced into the text.
package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/umarmk/mcp-server/internal/errs"
)

// MaxIdentifierLength is PostgreSQL's NAMEDATALEN-1. MySQL allows 64, so the
// tighter bound is applied to both dialects.
const MaxIdentifierLength = 63

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdentifier checks that name is a plain SQL identifier. Reserved
// words pass: the builder always quotes, so they are never parsed as keywords.
func ValidateIdentifier(name string) (string, error) {
	if name == "" {
		return "", errs.New(errs.ErrKindInvalidIdentifier, "identifier must not be empty")
	}
	if len(name) > MaxIdentifierLength {
		return "", errs.Newf(errs.ErrKindInvalidIdentifier,
			"identifier is %d characters long, limit is %d", len(name), MaxIdentifierLength)
	}
	if !identRE.MatchString(name) {
		return "", errs.Newf(errs.ErrKindInvalidIdentifier,
			"invalid identifier %q: must match %s", name, identRE.String())
	}
	return name, nil
}

// ValidateIdentifiers runs ValidateIdentifier over names, stopping at the first failure.
func ValidateIdentifiers(names []string) error {
	for _, n := range names {
		if _, err := ValidateIdentifier(n); err != nil {
			return err
		}
	}
	return nil
}

// ValidateFilterPresent rejects an empty filter list. UPDATE and DELETE call
// it before any SQL text is produced.
func ValidateFilterPresent(op string, filters []Filter) error {
	if len(filters) == 0 {
		return errs.Newf(errs.ErrKindMissingWhereClause,
			"%s requires at least one filter; refusing to touch every row", op)
	}
	return nil
}

// Operator is a filter comparison from the allow-list.
type Operator string

const (
	OpEq        Operator = "="
	OpNe        Operator = "!="
	OpLt        Operator = "<"
	OpLe        Operator = "<="
	OpGt        Operator = ">"
	OpGe        Operator = ">="
	OpLike      Operator = "LIKE"
	OpIn        Operator = "IN"
	OpIsNull    Operator = "IS NULL"
	OpIsNotNull Operator = "IS NOT NULL"
)

// validOps is the allow-list. The operator position cannot be parameterized,
// so anything outside it is rejected.
var validOps = map[string]Operator{
	"=":           OpEq,
	"!=":          OpNe,
	"<>":          OpNe,
	"<":           OpLt,
	"<=":          OpLe,
	">":           OpGt,
	">=":          OpGe,
	"LIKE":        OpLike,
	"IN":          OpIn,
	"IS NULL":     OpIsNull,
	"IS NOT NULL": OpIsNotNull,
}

// ParseOperator normalises case and inner whitespace and checks the allow-list.
func ParseOperator(raw string) (Operator, error) {
	norm := strings.ToUpper(strings.Join(strings.Fields(raw), " "))
	op, ok := validOps[norm]
	if !ok {
		return "", errs.Newf(errs.ErrKindUnsupportedOperator,
			"unsupported operator %q (allowed: =, !=, <, <=, >, >=, LIKE, IN, IS NULL, IS NOT NULL)", raw)
	}
	return op, nil
}

// arity is the number of bound values the operator consumes; -1 means one per
// element of a list value.
func (o Operator) arity() int {
	switch o {
	case OpIsNull, OpIsNotNull:
		return 0
	case OpIn:
		return -1
	default:
		return 1
	}
}

func errInvalidArgument(format string, args ...any) error {
	return errs.New(errs.ErrKindInvalidArgument, fmt.Sprintf(format, args...))
}
