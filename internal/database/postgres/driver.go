package postgres

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/umarmk/mcp-server/internal/database"
	"github.com/umarmk/mcp-server/internal/errs"
	"github.com/umarmk/mcp-server/internal/logger"
	"github.com/umarmk/mcp-server/internal/query"
)

// Pool is a PostgreSQL implementation of database.Pool backed by pgxpool.
// It is safe for concurrent use by multiple goroutines.
type Pool struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
}

var _ database.Pool = (*Pool)(nil)

// New connects to PostgreSQL using the provided Config and returns a Pool.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *database.Config) (*Pool, error) {
	poolCfg, err := buildConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, mapError(err, "failed to create connection pool")
	}

	p := &Pool{pool: pool, acquireTimeout: withDefaultDuration(cfg.AcquireTimeout, defaultAcquireTimeout)}

	if err := p.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return p, nil
}

// --- database.Pool implementation ---

// Acquire leases a connection. It waits at most the acquire timeout; if every
// connection is leased for that long the error is ErrKindPoolExhausted.
func (p *Pool) Acquire(ctx context.Context) (database.Lease, error) {
	actx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	start := time.Now()
	conn, err := p.pool.Acquire(actx)
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

// logAcquire reports a failed or slow acquire through the request logger.
func logAcquire(ctx context.Context, st database.PoolStats, waited time.Duration, err error) {
	fields := map[string]interface{}{
		"waited_ms":      waited.Milliseconds(),
		"acquired_conns": st.AcquiredConns,
		"max_conns":      st.MaxConns,
	}
	log := logger.FromContext(ctx)
	if err != nil {
		log.WarnWith("connection acquire failed", err, fields)
		return
	}
	log.InfoWith("slow connection acquire", fields)
}

func (p *Pool) acquireError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errs.Wrap(errs.ErrKindTimeout, "request cancelled while waiting for a connection", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		st := p.pool.Stat()
		if st.AcquiredConns() >= st.MaxConns() {
			return errs.Wrap(errs.ErrKindPoolExhausted,
				"no connection available within "+p.acquireTimeout.String(), err)
		}
		return errs.Wrap(errs.ErrKindConnectFailed, "timed out opening a new connection", err)
	}
	e := mapError(err, "failed to acquire connection")
	if e.Kind == errs.ErrKindQueryExecutionFailed {
		e.Kind = errs.ErrKindConnectFailed
	}
	return e
}

// Ping verifies the database is reachable by acquiring and releasing a connection.
func (p *Pool) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		e := mapError(err, "ping failed")
		if e.Kind == errs.ErrKindQueryExecutionFailed {
			e.Kind = errs.ErrKindConnectFailed
		}
		return e
	}
	return nil
}

// Stats reads pgxpool's counters.
func (p *Pool) Stats() database.PoolStats {
	st := p.pool.Stat()
	return database.PoolStats{
		TotalConns:        st.TotalConns(),
		AcquiredConns:     st.AcquiredConns(),
		IdleConns:         st.IdleConns(),
		MaxConns:          st.MaxConns(),
		MinConns:          p.pool.Config().MinConns,
		AcquireCount:      st.AcquireCount(),
		EmptyAcquireCount: st.EmptyAcquireCount(),
	}
}

func (p *Pool) Dialect() query.Dialect { return query.DialectPostgres }

// Close drains the connection pool. Call when the application shuts down.
func (p *Pool) Close() {
	p.pool.Close()
}

// --- lease ---

type lease struct {
	conn *pgxpool.Conn
	once sync.Once
}

func (l *lease) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	rows, err := l.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &pgxRows{rows: rows}, nil
}

func (l *lease) Exec(ctx context.Context, sql string, args ...any) (database.ExecResult, error) {
	tag, err := l.conn.Exec(ctx, sql, args...)
	if err != nil {
		return database.ExecResult{}, mapError(err, "statement failed")
	}
	return database.ExecResult{RowsAffected: tag.RowsAffected()}, nil
}

func (l *lease) Release() {
	l.once.Do(l.conn.Release)
}

// --- pgx type wrappers ---

// pgxRows wraps pgx.Rows to satisfy database.Rows. Values scanned into *any
// are normalised for JSON.
type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool { return r.rows.Next() }
func (r *pgxRows) Close()     { r.rows.Close() }

func (r *pgxRows) Scan(dest ...any) error {
	if err := r.rows.Scan(dest...); err != nil {
		return mapError(err, "failed to scan row")
	}
	for _, d := range dest {
		if p, ok := d.(*any); ok {
			*p = normalize(*p)
		}
	}
	return nil
}

func (r *pgxRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return mapError(err, "query failed")
	}
	return nil
}

func (r *pgxRows) Columns() ([]string, error) {
	descs := r.rows.FieldDescriptions()
	cols := make([]string, len(descs))
	for i, d := range descs {
		cols[i] = d.Name
	}
	return cols, nil
}
