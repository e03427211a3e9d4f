package mysql

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/umarmk/mcp-server/internal/database"
	"github.com/umarmk/mcp-server/internal/errs"
	"github.com/umarmk/mcp-server/internal/logger"
	"github.com/umarmk/mcp-server/internal/query"
)

// Pool is a MySQL implementation of database.Pool backed by database/sql.
// A lease is a dedicated *sql.Conn. It is safe for concurrent use by
// multiple goroutines.
type Pool struct {
	db             *sql.DB
	acquireTimeout time.Duration
	minConns       int32
}

var _ database.Pool = (*Pool)(nil)

// New opens a MySQL connection pool using the provided Config and returns a Pool.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *database.Config) (*Pool, error) {
	db, err := buildPool(cfg)
	if err != nil {
		return nil, err
	}

	p := newPool(db, cfg)

	pingCtx, cancel := context.WithTimeout(ctx, withDefaultDuration(cfg.ConnectTimeout, defaultConnTimeout))
	defer cancel()

	if err := p.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return p, nil
}

// newPool wraps an already opened *sql.DB.
func newPool(db *sql.DB, cfg *database.Config) *Pool {
	return &Pool{
		db:             db,
		acquireTimeout: withDefaultDuration(cfg.AcquireTimeout, defaultAcquireTimeout),
		minConns:       cfg.MinConns,
	}
}

// --- database.Pool implementation ---

func (p *Pool) Acquire(ctx context.Context) (database.Lease, error) {
	actx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	start := time.Now()
	conn, err := p.db.Conn(actx)
	waited := time.Since(start)
	if err != nil {
		err = p.acquireError(ctx, err)
		logAcquire(ctx, p.Stats(), waited, err)
		return nil, err
	}
	if waited > p.acquireTimeout/2 {
		logAcquire(ctx, p.Stats(), waited, nil)
	}
	return &lease{conn: conn}, nil
}

func (p *Pool) acquireError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errs.Wrap(errs.ErrKindTimeout, "request cancelled while waiting for a connection", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		st := p.db.Stats()
		if st.MaxOpenConnections > 0 && st.InUse >= st.MaxOpenConnections {
			return errs.Wrap(errs.ErrKindPoolExhausted,
				"no connection available within "+p.acquireTimeout.String(), err)
		}
	}
	e := mapError(err, "failed to acquire connection")
	if e.Kind == errs.ErrKindQueryExecutionFailed || e.Kind == errs.ErrKindTimeout {
		e.Kind = errs.ErrKindConnectFailed
	}
	return e
}

// logAcquire reports a failed or slow acquire through the request logger.
func logAcquire(ctx context.Context, st database.PoolStats, waited time.Duration, err error) {
	fields := map[string]interface{}{
		"waited_ms":  waited.Milliseconds(),
		"in_use":     st.AcquiredConns,
		"max_open":   st.MaxConns,
		"wait_count": st.EmptyAcquireCount,
	}
	log := logger.FromContext(ctx)
	if err != nil {
		log.WarnWith("connection acquire failed", err, fields)
		return
	}
	log.InfoWith("slow connection acquire", fields)
}

func (p *Pool) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		e := mapError(err, "ping failed")
		if e.Kind == errs.ErrKindQueryExecutionFailed {
			e.Kind = errs.ErrKindConnectFailed
		}
		return e
	}
	return nil
}

// Stats maps sql.DBStats onto the pool snapshot. database/sql keeps no
// acquire counter, so AcquireCount is left at zero and EmptyAcquireCount is
// the number of waits for a free connection.
func (p *Pool) Stats() database.PoolStats {
	st := p.db.Stats()
	return database.PoolStats{
		TotalConns:        int32(st.OpenConnections),
		AcquiredConns:     int32(st.InUse),
		IdleConns:         int32(st.Idle),
		MaxConns:          int32(st.MaxOpenConnections),
		MinConns:          p.minConns,
		EmptyAcquireCount: st.WaitCount,
	}
}

func (p *Pool) Dialect() query.Dialect { return query.DialectMySQL }

func (p *Pool) Close() {
	_ = p.db.Close()
}

// --- lease ---

type lease struct {
	conn *sql.Conn
	once sync.Once
}

func (l *lease) Query(ctx context.Context, q string, args ...any) (database.Rows, error) {
	rows, err := l.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &mysqlRows{rows: rows}, nil
}

func (l *lease) Exec(ctx context.Context, q string, args ...any) (database.ExecResult, error) {
	res, err := l.conn.ExecContext(ctx, q, args...)
	if err != nil {
		return database.ExecResult{}, mapError(err, "statement failed")
	}
	affected, _ := res.RowsAffected()
	lastID, _ := res.LastInsertId()
	return database.ExecResult{RowsAffected: affected, LastInsertID: lastID}, nil
}

func (l *lease) Release() {
	l.once.Do(func() { _ = l.conn.Close() })
}

// --- sql type wrappers ---

// mysqlRows wraps *sql.Rows to satisfy database.Rows. Text columns arrive
// as []byte and are returned as strings.
type mysqlRows struct {
	rows *sql.Rows
}

func (r *mysqlRows) Next() bool                 { return r.rows.Next() }
func (r *mysqlRows) Close()                     { _ = r.rows.Close() }
func (r *mysqlRows) Columns() ([]string, error) { return r.rows.Columns() }

func (r *mysqlRows) Scan(dest ...any) error {
	if err := r.rows.Scan(dest...); err != nil {
		return mapError(err, "failed to scan row")
	}
	for _, d := range dest {
		if p, ok := d.(*any); ok {
			if b, ok := (*p).([]byte); ok {
				*p = string(b)
			}
		}
	}
	return nil
}

func (r *mysqlRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return mapError(err, "query failed")
	}
	return nil
}
