package query

import (
	"fmt"
	"strings"
)

// Dialect controls placeholder style, identifier quoting and RETURNING support.
type Dialect int

const (
	// DialectPostgres uses $1, $2, … placeholders and "double-quoted" identifiers.
	DialectPostgres Dialect = iota

	// DialectMySQL uses ? placeholders and `backtick` identifiers.
	DialectMySQL
)

func (d Dialect) String() string {
	if d == DialectMySQL {
		return "mysql"
	}
	return "postgres"
}

// Placeholder returns the bind placeholder for the 1-based argument idx.
// Postgres: $1, $2, …   MySQL: ? (index is ignored)
func (d Dialect) Placeholder(idx int) string {
	if d == DialectMySQL {
		return "?"
	}
	return fmt.Sprintf("$%d", idx)
}

// QuoteIdent wraps a SQL identifier in the dialect's quote characters so
// reserved words and mixed-case names are always treated as names.
func (d Dialect) QuoteIdent(name string) string {
	if d == DialectMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// SupportsReturning reports whether INSERT/UPDATE/DELETE accept RETURNING.
func (d Dialect) SupportsReturning() bool {
	return d == DialectPostgres
}

// DefaultSchema is the schema used when a request names none. MySQL has no
// schema separate from the database, so the connected database is used.
func (d Dialect) DefaultSchema(database string) string {
	if d == DialectMySQL {
		return database
	}
	return "public"
}
