// Package dbtest provides an in-memory database.Pool for tests of code that
// sits above the drivers. It records every statement and counts leases so
// tests can assert that every Acquire is matched by a Release.
package dbtest

import (
	"context"
	"errors"
	"sync"

	"github.com/umarmk/mcp-server/internal/database"
	"github.com/umarmk/mcp-server/internal/errs"
	"github.com/umarmk/mcp-server/internal/query"
)

// Call is one statement sent through a lease.
type Call struct {
	SQL  string
	Args []any
	Exec bool // Exec rather than Query
}

// Result is what the Responder hands back for a Call.
type Result struct {
	Columns      []string
	Rows         [][]any
	RowsAffected int64
	LastInsertID int64
}

// Responder decides the outcome of each statement.
type Responder func(call Call) (*Result, error)

// Pool is a fake database.Pool.
type Pool struct {
	DialectValue query.Dialect
	Respond      Responder
	PingErr      error
	StatsValue   database.PoolStats

	// AcquireErrs are returned by successive Acquire calls before any lease
	// is handed out; nil entries succeed.
	AcquireErrs []error

	mu       sync.Mutex
	acquired int
	released int
	calls    []Call
}

var _ database.Pool = (*Pool)(nil)

// New returns a postgres-dialect fake that answers with respond.
func New(respond Responder) *Pool {
	return &Pool{DialectValue: query.DialectPostgres, Respond: respond}
}

func (p *Pool) Acquire(ctx context.Context) (database.Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindTimeout, "request cancelled while waiting for a connection", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.AcquireErrs) > 0 {
		err := p.AcquireErrs[0]
		p.AcquireErrs = p.AcquireErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	p.acquired++
	return &lease{pool: p}, nil
}

func (p *Pool) Ping(context.Context) error { return p.PingErr }
func (p *Pool) Stats() database.PoolStats  { return p.StatsValue }
func (p *Pool) Dialect() query.Dialect     { return p.DialectValue }
func (p *Pool) Close()                     {}

func (p *Pool) respond(c Call) (*Result, error) {
	p.mu.Lock()
	p.calls = append(p.calls, c)
	p.mu.Unlock()

	if p.Respond == nil {
		return &Result{}, nil
	}
	res, err := p.Respond(c)
	if err == nil && res == nil {
		res = &Result{}
	}
	return res, err
}

// Acquired is the number of leases handed out.
func (p *Pool) Acquired() int { p.mu.Lock(); defer p.mu.Unlock(); return p.acquired }

// Released is the number of leases returned.
func (p *Pool) Released() int { p.mu.Lock(); defer p.mu.Unlock(); return p.released }

// Calls returns the statements executed so far.
func (p *Pool) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

type lease struct {
	pool *Pool
	once sync.Once
	done bool
}

var errReleased = errors.New("dbtest: lease used after release")

func (l *lease) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	if l.done {
		return nil, errReleased
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := l.pool.respond(Call{SQL: sql, Args: args})
	if err != nil {
		return nil, err
	}
	return &rows{res: res, pos: -1}, nil
}

func (l *lease) Exec(ctx context.Context, sql string, args ...any) (database.ExecResult, error) {
	if l.done {
		return database.ExecResult{}, errReleased
	}
	if err := ctx.Err(); err != nil {
		return database.ExecResult{}, err
	}
	res, err := l.pool.respond(Call{SQL: sql, Args: args, Exec: true})
	if err != nil {
		return database.ExecResult{}, err
	}
	return database.ExecResult{RowsAffected: res.RowsAffected, LastInsertID: res.LastInsertID}, nil
}

func (l *lease) Release() {
	l.once.Do(func() {
		l.done = true
		l.pool.mu.Lock()
		l.pool.released++
		l.pool.mu.Unlock()
	})
}

type rows struct {
	res *Result
	pos int
}

func (r *rows) Next() bool {
	r.pos++
	return r.pos < len(r.res.Rows)
}

func (r *rows) Scan(dest ...any) error {
	row := r.res.Rows[r.pos]
	if len(dest) != len(row) {
		return errors.New("dbtest: scan destination count does not match row width")
	}
	for i, d := range dest {
		if err := assign(d, row[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *rows) Columns() ([]string, error) { return r.res.Columns, nil }
func (r *rows) Close()                     {}
func (r *rows) Err() error                 { return nil }

// assign copies v into the pointer d for the types the introspectors scan.
// Nullable destinations take nil, a bare value or a pointer to one.
func assign(d any, v any) error {
	switch p := d.(type) {
	case *any:
		*p = v
	case *string:
		s, ok := v.(string)
		if !ok {
			return errors.New("dbtest: value is not a string")
		}
		*p = s
	case **string:
		switch s := v.(type) {
		case nil:
			*p = nil
		case *string:
			*p = s
		case string:
			*p = &s
		default:
			return errors.New("dbtest: value is not a string")
		}
	case *bool:
		b, ok := v.(bool)
		if !ok {
			return errors.New("dbtest: value is not a bool")
		}
		*p = b
	case *int:
		n, ok := v.(int)
		if !ok {
			return errors.New("dbtest: value is not an int")
		}
		*p = n
	case *int64:
		n, ok := v.(int64)
		if !ok {
			return errors.New("dbtest: value is not an int64")
		}
		*p = n
	case **int64:
		switch n := v.(type) {
		case nil:
			*p = nil
		case *int64:
			*p = n
		case int64:
			*p = &n
		default:
			return errors.New("dbtest: value is not an int64")
		}
	case *[]string:
		s, ok := v.([]string)
		if !ok {
			return errors.New("dbtest: value is not a []string")
		}
		*p = s
	default:
		return errors.New("dbtest: unsupported scan destination")
	}
	return nil
}
