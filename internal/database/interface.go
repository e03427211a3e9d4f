package database

import (
	"context"

	"github.com/umarmk/mcp-server/internal/query"
)

// Pool is the Connection Manager contract. Everything above this package
// talks to it; nothing imports the postgres or mysql packages directly
// except the code that constructs the pool.
//
// A Pool is constructed once at startup and passed down explicitly.
type Pool interface {
	// Acquire leases a connection, waiting up to the configured acquire
	// bound. The caller owns the Lease until Release.
	Acquire(ctx context.Context) (Lease, error)

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Stats is a read-only snapshot of pool health.
	Stats() PoolStats

	// Dialect is the SQL dialect of the backing engine.
	Dialect() query.Dialect

	// Close releases all resources held by the pool.
	Close()
}

// Lease is one connection borrowed from a Pool. It is not safe for
// concurrent use; each request holds its own.
type Lease interface {
	// Query executes a statement that returns rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// Exec executes a statement and reports the rows it touched.
	Exec(ctx context.Context, sql string, args ...any) (ExecResult, error)

	// Release returns the connection to the pool. Calling it more than
	// once is a no-op.
	Release()
}

// ExecResult is the outcome of Lease.Exec.
type ExecResult struct {
	RowsAffected int64
	LastInsertID int64 // MySQL AUTO_INCREMENT id; always 0 on PostgreSQL
}

// PoolStats is a snapshot of pool health.
type PoolStats struct {
	TotalConns        int32 `json:"total_conns"`
	AcquiredConns     int32 `json:"acquired_conns"`
	IdleConns         int32 `json:"idle_conns"`
	MaxConns          int32 `json:"max_conns"`
	MinConns          int32 `json:"min_conns"`
	AcquireCount      int64 `json:"acquire_count"`
	EmptyAcquireCount int64 `json:"empty_acquire_count"` // acquires that had to wait
}

// Rows is an abstraction over a database result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	// Next advances to the next row.
	// Returns false when no more rows exist or on error.
	Next() bool

	// Scan copies the current row's columns into the provided destinations.
	Scan(dest ...any) error

	// Columns returns the column names of the result set.
	Columns() ([]string, error)

	// Close releases resources held by the result set.
	Close()

	// Err returns any error encountered during iteration, already mapped to
	// an *errs.Error by the driver.
	Err() error
}
