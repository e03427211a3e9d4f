// Package schema answers catalog questions: which tables exist, what a table
// looks like, and how big it is. Every method leases its own connection from
// the pool and returns it before returning.
package schema

import (
	"context"

	"github.com/dustin/go-humanize"

	"github.com/umarmk/mcp-server/internal/database"
	"github.com/umarmk/mcp-server/internal/errs"
	"github.com/umarmk/mcp-server/internal/logger"
	"github.com/umarmk/mcp-server/internal/query"
)

// Reader is the interface for introspecting a database schema
type Reader interface {
	// ListTables returns the base tables in schema, ordered by name.
	ListTables(ctx context.Context, schema string) ([]string, error)

	// InspectTable returns columns, constraints, indexes and foreign keys.
	// A table with no visible columns is reported as ErrKindTableNotFound.
	InspectTable(ctx context.Context, schema, table string) (*TableInfo, error)

	// TableStatistics returns size and row figures. exact adds a COUNT(*).
	TableStatistics(ctx context.Context, schema, table string, exact bool) (*TableStats, error)
}

// NewReader returns the Reader matching the pool's dialect.
func NewReader(pool database.Pool) Reader {
	if pool.Dialect() == query.DialectMySQL {
		return NewMySQLIntrospector(pool)
	}
	return NewPgIntrospector(pool)
}

// withLease runs fn on a leased connection and always releases it.
func withLease(ctx context.Context, pool database.Pool, fn func(database.Lease) error) error {
	lease, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	if err := fn(lease); err != nil {
		logger.FromContext(ctx).DebugWith("catalog query failed", map[string]interface{}{
			"dialect": pool.Dialect().String(),
			"error":   err.Error(),
		})
		return err
	}
	return nil
}

func validateNames(names ...string) error {
	return query.ValidateIdentifiers(names)
}

func tableNotFound(schema, table string) error {
	return errs.Newf(errs.ErrKindTableNotFound, "table %s.%s does not exist", schema, table)
}

// exactCount runs a builder-produced COUNT(*) on the lease.
func exactCount(ctx context.Context, lease database.Lease, d query.Dialect, schema, table string) (*int64, error) {
	stmt, err := query.NewBuilder(d).Count(query.Table{Schema: schema, Name: table}, nil)
	if err != nil {
		return nil, err
	}
	rows, err := lease.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &n, nil
}

func fillSizes(s *TableStats) {
	s.TotalSize = humanize.Bytes(uint64(max(s.TotalBytes, 0)))
	s.TableSize = humanize.Bytes(uint64(max(s.TableBytes, 0)))
	s.IndexSize = humanize.Bytes(uint64(max(s.IndexBytes, 0)))
}

// scanStrings collects a single text column.
func scanStrings(rows database.Rows) ([]string, error) {
	defer rows.Close()
	list := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
