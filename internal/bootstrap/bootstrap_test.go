package bootstrap

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umarmk/mcp-server/internal/database/dbtest"
	"github.com/umarmk/mcp-server/internal/errs"
	"github.com/umarmk/mcp-server/internal/query"
)

func TestStatements(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "simple",
			script: "CREATE TABLE a (id INT);\nCREATE TABLE b (id INT);",
			want:   []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"},
		},
		{
			name:   "no trailing semicolon",
			script: "SELECT 1;\nSELECT 2",
			want:   []string{"SELECT 1", "SELECT 2"},
		},
		{
			name:   "semicolon in string",
			script: "INSERT INTO t VALUES ('a;b');",
			want:   []string{"INSERT INTO t VALUES ('a;b')"},
		},
		{
			name:   "doubled quote",
			script: "INSERT INTO t VALUES ('it''s; fine');",
			want:   []string{"INSERT INTO t VALUES ('it''s; fine')"},
		},
		{
			name:   "quoted identifiers",
			script: `SELECT "a;b" FROM t; SELECT ` + "`c;d`" + ` FROM u;`,
			want:   []string{`SELECT "a;b" FROM t`, "SELECT `c;d` FROM u"},
		},
		{
			name:   "comments dropped",
			script: "-- header; not a statement\nSELECT 1; /* block; comment */ SELECT 2;",
			want:   []string{"SELECT 1", "SELECT 2"},
		},
		{
			name:   "empty statements skipped",
			script: ";;\n  ;SELECT 1;;",
			want:   []string{"SELECT 1"},
		},
		{
			name:   "only comments",
			script: "-- nothing here\n",
			want:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Statements(tt.script))
		})
	}
}

func TestScripts(t *testing.T) {
	tests := []struct {
		dialect    query.Dialect
		statements int
	}{
		{query.DialectPostgres, 18},
		{query.DialectMySQL, 10},
	}
	for _, tt := range tests {
		t.Run(tt.dialect.String(), func(t *testing.T) {
			script, err := Script(tt.dialect)
			require.NoError(t, err)

			stmts := Statements(script)
			assert.Len(t, stmts, tt.statements)
			for _, table := range Tables {
				assert.Contains(t, script, "CREATE TABLE IF NOT EXISTS "+table+" (")
			}
			for _, s := range stmts {
				assert.NotContains(t, s, "--", "comments are stripped")
			}
		})
	}
}

func countResponder(c dbtest.Call) (*dbtest.Result, error) {
	if strings.HasPrefix(c.SQL, "SELECT COUNT(*)") {
		return &dbtest.Result{Columns: []string{"total"}, Rows: [][]any{{int64(3)}}}, nil
	}
	return &dbtest.Result{RowsAffected: 1}, nil
}

func TestRun(t *testing.T) {
	pool := dbtest.New(countResponder)

	report, err := Run(context.Background(), pool, nil)
	require.NoError(t, err)

	assert.Equal(t, query.DialectPostgres, report.Dialect)
	assert.Equal(t, 18, report.Statements)
	require.Len(t, report.Counts, len(Tables))
	for i, c := range report.Counts {
		assert.Equal(t, Tables[i], c.Table)
		assert.Equal(t, int64(3), c.Rows)
	}

	calls := pool.Calls()
	require.Len(t, calls, 18+len(Tables))
	for _, c := range calls[:18] {
		assert.True(t, c.Exec)
	}
	assert.Equal(t, `SELECT COUNT(*) AS total FROM "order_items"`, calls[len(calls)-1].SQL)

	// One lease per statement, all returned.
	assert.Equal(t, len(calls), pool.Acquired())
	assert.Equal(t, pool.Acquired(), pool.Released())
}

func TestRun_MySQL(t *testing.T) {
	pool := dbtest.New(countResponder)
	pool.DialectValue = query.DialectMySQL

	report, err := Run(context.Background(), pool, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, report.Statements)

	calls := pool.Calls()
	assert.Equal(t, "SELECT COUNT(*) AS total FROM `items`", calls[10].SQL)
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	pool := dbtest.New(func(c dbtest.Call) (*dbtest.Result, error) {
		if strings.Contains(c.SQL, "CREATE TABLE IF NOT EXISTS products") {
			return nil, errs.New(errs.ErrKindQueryExecutionFailed, `permission denied for schema public`)
		}
		return nil, nil
	})

	_, err := Run(context.Background(), pool, nil)
	require.Error(t, err)
	assert.Equal(t, errs.ErrKindQueryExecutionFailed, errs.KindOf(err))
	assert.Contains(t, err.Error(), "bootstrap statement 3 of 18 failed")
	assert.Contains(t, err.Error(), "permission denied")

	assert.Len(t, pool.Calls(), 3)
	assert.Equal(t, pool.Acquired(), pool.Released())
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	Render(&buf, &Report{
		Dialect:    query.DialectPostgres,
		Statements: 18,
		Counts:     []TableCount{{Table: "items", Rows: 3}, {Table: "users", Rows: 2}},
	})

	out := buf.String()
	assert.Contains(t, out, "items")
	assert.Contains(t, out, "users")
	assert.Contains(t, out, "18")
}
