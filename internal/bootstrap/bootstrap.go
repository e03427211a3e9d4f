// Package bootstrap creates the demonstration tables and seed rows the
// tools are usually tried against.
package bootstrap

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/umarmk/mcp-server/internal/database"
	"github.com/umarmk/mcp-server/internal/errs"
	"github.com/umarmk/mcp-server/internal/logger"
	"github.com/umarmk/mcp-server/internal/query"
)

var (
	//go:embed schema_postgres.sql
	postgresScript string

	//go:embed schema_mysql.sql
	mysqlScript string
)

// Tables are the tables the scripts create, in dependency order.
var Tables = []string{"items", "users", "products", "orders", "order_items"}

// TableCount is the row count of one table after bootstrap.
type TableCount struct {
	Table string
	Rows  int64
}

// Report summarises a bootstrap run.
type Report struct {
	Dialect    query.Dialect
	Statements int
	Counts     []TableCount
}

// Script returns the bootstrap script for d.
func Script(d query.Dialect) (string, error) {
	switch d {
	case query.DialectPostgres:
		return postgresScript, nil
	case query.DialectMySQL:
		return mysqlScript, nil
	default:
		return "", errs.Newf(errs.ErrKindInvalidArgument, "no bootstrap script for dialect %s", d)
	}
}

// Run executes the script for the pool's dialect one statement per lease,
// then counts the rows in each table. It stops at the first failed statement.
func Run(ctx context.Context, pool database.Pool, log *logger.Logger) (*Report, error) {
	if log == nil {
		log = logger.Nop()
	}
	d := pool.Dialect()
	script, err := Script(d)
	if err != nil {
		return nil, err
	}

	stmts := Statements(script)
	for i, stmt := range stmts {
		if err := execOne(ctx, pool, stmt); err != nil {
			return nil, errs.Wrap(errs.KindOf(err), fmt.Sprintf("bootstrap statement %d of %d failed", i+1, len(stmts)), err)
		}
	}
	log.InfoWith("bootstrap script applied", map[string]interface{}{
		"dialect":    d.String(),
		"statements": len(stmts),
	})

	report := &Report{Dialect: d, Statements: len(stmts)}
	b := query.NewBuilder(d)
	for _, name := range Tables {
		n, err := countRows(ctx, pool, b, name)
		if err != nil {
			return nil, err
		}
		report.Counts = append(report.Counts, TableCount{Table: name, Rows: n})
	}
	return report, nil
}

func execOne(ctx context.Context, pool database.Pool, stmt string) error {
	lease, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	_, err = lease.Exec(ctx, stmt)
	return err
}

func countRows(ctx context.Context, pool database.Pool, b *query.Builder, name string) (int64, error) {
	stmt, err := b.Count(query.Table{Name: name}, nil)
	if err != nil {
		return 0, err
	}

	lease, err := pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer lease.Release()

	rows, err := lease.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

// Render writes the per-table row counts as a table.
func Render(w io.Writer, r *Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Table", "Rows"})
	for _, c := range r.Counts {
		t.AppendRow(table.Row{c.Table, c.Rows})
	}
	t.AppendFooter(table.Row{"statements", r.Statements})
	t.Render()
}

// Statements splits a script on top-level semicolons. Semicolons inside
// quoted strings, quoted identifiers and comments do not split. Comments
// are dropped and empty statements skipped.
func Statements(script string) []string {
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(script); i++ {
		c := script[i]
		switch {
		case c == '-' && i+1 < len(script) && script[i+1] == '-':
			for i < len(script) && script[i] != '\n' {
				i++
			}
			cur.WriteByte('\n')
		case c == '/' && i+1 < len(script) && script[i+1] == '*':
			end := strings.Index(script[i+2:], "*/")
			if end < 0 {
				i = len(script)
			} else {
				i += end + 3
			}
			cur.WriteByte(' ')
		case c == '\'' || c == '"' || c == '`':
			j := i + 1
			for j < len(script) && script[j] != c {
				j++
			}
			// A doubled quote closes and reopens, so it falls out of the
			// next iteration as another quoted run.
			if j >= len(script) {
				j = len(script) - 1
			}
			cur.WriteString(script[i : j+1])
			i = j
		case c == ';':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return out
}
