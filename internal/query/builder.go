package query

import (
	"sort"
	"strconv"
	"strings"

	"github.com/umarmk/mcp-server/internal/errs"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Statement is SQL text plus its bound arguments. The number of placeholders
// in SQL always equals len(Args).
type Statement struct {
	SQL  string
	Args []any

	// Rows reports whether executing the statement yields a result set
	// (SELECT, or a write with RETURNING).
	Rows bool
}

// Table names a relation, optionally schema-qualified.
type Table struct {
	Schema string
	Name   string
}

// Filter is one conjunct of a WHERE clause.
type Filter struct {
	Column   string `json:"column" jsonschema:"Column to compare" validate:"required"`
	Operator string `json:"operator" jsonschema:"One of: =, !=, <, <=, >, >=, LIKE, IN, IS NULL, IS NOT NULL" validate:"required"`
	Value    any    `json:"value,omitempty" jsonschema:"Value to compare against; an array for IN; omitted for IS NULL and IS NOT NULL"`
}

// Order is one ORDER BY term.
type Order struct {
	Column    string `json:"column" jsonschema:"Column to sort by" validate:"required"`
	Direction string `json:"direction,omitempty" jsonschema:"asc (default) or desc"`
}

// SelectSpec describes a SELECT over one table.
type SelectSpec struct {
	Table   Table
	Columns []string // empty means *
	Filters []Filter
	OrderBy []Order // empty means ORDER BY 1
	Limit   *int
	Offset  *int
}

// InsertSpec describes a single-row INSERT.
type InsertSpec struct {
	Table     Table
	Values    map[string]any
	Returning bool
}

// UpdateSpec describes an UPDATE. Filters must not be empty.
type UpdateSpec struct {
	Table     Table
	Set       map[string]any
	Filters   []Filter
	Returning bool
}

// DeleteSpec describes a DELETE. Filters must not be empty.
type DeleteSpec struct {
	Table     Table
	Filters   []Filter
	Returning bool
}

// Builder produces parameterized statements for one dialect.
//
// Usage:
//
//	b := query.NewBuilder(query.DialectPostgres)
//	stmt, err := b.Select(query.SelectSpec{
//	    Table:   query.Table{Schema: "public", Name: "items"},
//	    Filters: []query.Filter{{Column: "id", Operator: "=", Value: 7}},
//	})
//	// stmt.SQL  == `SELECT * FROM "public"."items" WHERE "id" = $1 ORDER BY 1 LIMIT 100 OFFSET 0`
//	// stmt.Args == []any{7}
type Builder struct {
	dialect      Dialect
	defaultLimit int
	maxLimit     int
}

// Option configures a Builder.
type Option func(*Builder)

// WithLimits overrides the default page size and its ceiling.
func WithLimits(defaultLimit, maxLimit int) Option {
	return func(b *Builder) {
		if maxLimit > 0 {
			b.maxLimit = maxLimit
		}
		if defaultLimit > 0 {
			b.defaultLimit = defaultLimit
		}
		if b.defaultLimit > b.maxLimit {
			b.defaultLimit = b.maxLimit
		}
	}
}

// NewBuilder returns a Builder for d.
func NewBuilder(d Dialect, opts ...Option) *Builder {
	b := &Builder{dialect: d, defaultLimit: DefaultLimit, maxLimit: MaxLimit}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Dialect returns the dialect the builder emits.
func (b *Builder) Dialect() Dialect { return b.dialect }

// Page resolves optional limit/offset to the values a SELECT will use.
// Limits above the ceiling are clamped; negative values are rejected.
func (b *Builder) Page(limit, offset *int) (int, int, error) {
	l, o := b.defaultLimit, 0
	if limit != nil {
		if *limit < 1 {
			return 0, 0, errInvalidArgument("limit must be at least 1, got %d", *limit)
		}
		l = min(*limit, b.maxLimit)
	}
	if offset != nil {
		if *offset < 0 {
			return 0, 0, errInvalidArgument("offset must not be negative, got %d", *offset)
		}
		o = *offset
	}
	return l, o, nil
}

// Select builds SELECT <cols|*> FROM t [WHERE …] [ORDER BY …] LIMIT n OFFSET m.
// LIMIT and OFFSET are validated integers and are written into the text, so
// Args holds exactly the filter values.
func (b *Builder) Select(s SelectSpec) (Statement, error) {
	from, err := b.table(s.Table)
	if err != nil {
		return Statement{}, err
	}
	cols := "*"
	if len(s.Columns) > 0 {
		quoted, err := b.columns(s.Columns)
		if err != nil {
			return Statement{}, err
		}
		cols = strings.Join(quoted, ", ")
	}
	limit, offset, err := b.Page(s.Limit, s.Offset)
	if err != nil {
		return Statement{}, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(from)

	where, args, err := b.where(s.Filters, 1)
	if err != nil {
		return Statement{}, err
	}
	sb.WriteString(where)

	if len(s.OrderBy) > 0 {
		parts := make([]string, len(s.OrderBy))
		for i, o := range s.OrderBy {
			if _, err := ValidateIdentifier(o.Column); err != nil {
				return Statement{}, err
			}
			dir, err := direction(o.Direction)
			if err != nil {
				return Statement{}, err
			}
			parts[i] = b.dialect.QuoteIdent(o.Column) + " " + dir
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	} else {
		// Pages are only stable under an ordering; fall back to the first
		// selected column.
		sb.WriteString(" ORDER BY 1")
	}

	sb.WriteString(" LIMIT ")
	sb.WriteString(strconv.Itoa(limit))
	sb.WriteString(" OFFSET ")
	sb.WriteString(strconv.Itoa(offset))

	return Statement{SQL: sb.String(), Args: args, Rows: true}, nil
}

// Count builds SELECT COUNT(*) AS total over the same table and filters a
// Select would use, for reporting the unpaginated match count.
func (b *Builder) Count(t Table, filters []Filter) (Statement, error) {
	from, err := b.table(t)
	if err != nil {
		return Statement{}, err
	}
	where, args, err := b.where(filters, 1)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: "SELECT COUNT(*) AS total FROM " + from + where, Args: args, Rows: true}, nil
}

// Insert builds INSERT INTO t (cols) VALUES (…), with RETURNING * when
// requested and the dialect supports it.
func (b *Builder) Insert(s InsertSpec) (Statement, error) {
	into, err := b.table(s.Table)
	if err != nil {
		return Statement{}, err
	}
	if len(s.Values) == 0 {
		return Statement{}, errs.New(errs.ErrKindEmptyColumnSet, "insert requires at least one column value")
	}
	names := sortedKeys(s.Values)
	quoted, err := b.columns(names)
	if err != nil {
		return Statement{}, err
	}

	args := make([]any, len(names))
	holders := make([]string, len(names))
	for i, n := range names {
		args[i] = s.Values[n]
		holders[i] = b.dialect.Placeholder(i + 1)
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(into)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(quoted, ", "))
	sb.WriteString(") VALUES (")
	sb.WriteString(strings.Join(holders, ", "))
	sb.WriteString(")")
	rows := b.returning(&sb, s.Returning)

	return Statement{SQL: sb.String(), Args: args, Rows: rows}, nil
}

// Update builds UPDATE t SET … WHERE …. The filter check runs before anything
// else about the statement is looked at.
func (b *Builder) Update(s UpdateSpec) (Statement, error) {
	if err := ValidateFilterPresent("update", s.Filters); err != nil {
		return Statement{}, err
	}
	target, err := b.table(s.Table)
	if err != nil {
		return Statement{}, err
	}
	if len(s.Set) == 0 {
		return Statement{}, errs.New(errs.ErrKindEmptyColumnSet, "update requires at least one column in set")
	}
	names := sortedKeys(s.Set)
	if err := ValidateIdentifiers(names); err != nil {
		return Statement{}, err
	}

	args := make([]any, 0, len(names)+len(s.Filters))
	assigns := make([]string, len(names))
	for i, n := range names {
		assigns[i] = b.dialect.QuoteIdent(n) + " = " + b.dialect.Placeholder(i+1)
		args = append(args, s.Set[n])
	}

	where, whereArgs, err := b.where(s.Filters, len(names)+1)
	if err != nil {
		return Statement{}, err
	}
	args = append(args, whereArgs...)

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(target)
	sb.WriteString(" SET ")
	sb.WriteString(strings.Join(assigns, ", "))
	sb.WriteString(where)
	rows := b.returning(&sb, s.Returning)

	return Statement{SQL: sb.String(), Args: args, Rows: rows}, nil
}

// Delete builds DELETE FROM t WHERE ….
func (b *Builder) Delete(s DeleteSpec) (Statement, error) {
	if err := ValidateFilterPresent("delete", s.Filters); err != nil {
		return Statement{}, err
	}
	from, err := b.table(s.Table)
	if err != nil {
		return Statement{}, err
	}
	where, args, err := b.where(s.Filters, 1)
	if err != nil {
		return Statement{}, err
	}

	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(from)
	sb.WriteString(where)
	rows := b.returning(&sb, s.Returning)

	return Statement{SQL: sb.String(), Args: args, Rows: rows}, nil
}

// Custom checks caller SQL against its declared kind and passes it through
// with its parameters. Placeholders are the caller's, in the dialect's style.
func (b *Builder) Custom(sql string, params []any, kind StatementKind) (Statement, error) {
	if err := ValidateStatementKind(b.dialect, sql, kind); err != nil {
		return Statement{}, err
	}
	return Statement{SQL: sql, Args: params, Rows: kind == KindRead}, nil
}

// --- helpers ---

func (b *Builder) table(t Table) (string, error) {
	if _, err := ValidateIdentifier(t.Name); err != nil {
		return "", err
	}
	if t.Schema == "" {
		return b.dialect.QuoteIdent(t.Name), nil
	}
	if _, err := ValidateIdentifier(t.Schema); err != nil {
		return "", err
	}
	return b.dialect.QuoteIdent(t.Schema) + "." + b.dialect.QuoteIdent(t.Name), nil
}

func (b *Builder) columns(names []string) ([]string, error) {
	quoted := make([]string, len(names))
	for i, n := range names {
		if _, err := ValidateIdentifier(n); err != nil {
			return nil, err
		}
		quoted[i] = b.dialect.QuoteIdent(n)
	}
	return quoted, nil
}

// where renders " WHERE a AND b …" with placeholders numbered from argIdx.
// It returns "" for no filters.
func (b *Builder) where(filters []Filter, argIdx int) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(filters))
	var args []any
	for _, f := range filters {
		if _, err := ValidateIdentifier(f.Column); err != nil {
			return "", nil, err
		}
		op, err := ParseOperator(f.Operator)
		if err != nil {
			return "", nil, err
		}
		col := b.dialect.QuoteIdent(f.Column)

		switch op.arity() {
		case 0:
			parts = append(parts, col+" "+string(op))
		case -1:
			list, ok := f.Value.([]any)
			if !ok || len(list) == 0 {
				return "", nil, errInvalidArgument("IN on %q requires a non-empty array value", f.Column)
			}
			holders := make([]string, len(list))
			for i, v := range list {
				holders[i] = b.dialect.Placeholder(argIdx)
				args = append(args, v)
				argIdx++
			}
			parts = append(parts, col+" IN ("+strings.Join(holders, ", ")+")")
		default:
			if f.Value == nil {
				return "", nil, errInvalidArgument("operator %s on %q requires a value; use IS NULL to match nulls", op, f.Column)
			}
			parts = append(parts, col+" "+string(op)+" "+b.dialect.Placeholder(argIdx))
			args = append(args, f.Value)
			argIdx++
		}
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

func (b *Builder) returning(sb *strings.Builder, want bool) bool {
	if !want || !b.dialect.SupportsReturning() {
		return false
	}
	sb.WriteString(" RETURNING *")
	return true
}

func direction(d string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(d)) {
	case "", "ASC":
		return "ASC", nil
	case "DESC":
		return "DESC", nil
	default:
		return "", errInvalidArgument("order direction must be asc or desc, got %q", d)
	}
}

// sortedKeys fixes column order; JSON objects arrive unordered.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
