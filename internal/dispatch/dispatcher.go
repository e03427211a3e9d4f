// Package dispatch turns typed tool requests into database work.
//
// Every operation follows the same path: validate the request shape, build
// the statement (identifier and clause checks happen here, before any
// connection is taken), lease a connection, execute under the command
// timeout, map the result, release the lease. The lease is released on
// every exit path.
//
// Usage:
//
//	d := dispatch.New(pool, dispatch.WithLogger(log), dispatch.WithMetrics(m))
//	res, err := d.Select(ctx, dispatch.SelectRequest{Table: "items"})
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/umarmk/mcp-server/internal/audit"
	"github.com/umarmk/mcp-server/internal/database"
	"github.com/umarmk/mcp-server/internal/errs"
	"github.com/umarmk/mcp-server/internal/logger"
	"github.com/umarmk/mcp-server/internal/metrics"
	"github.com/umarmk/mcp-server/internal/query"
	"github.com/umarmk/mcp-server/internal/schema"
)

const (
	defaultCommandTimeout = 60 * time.Second
	defaultRetryDelay     = 200 * time.Millisecond
)

// Identity is what get_server_info reports about this server and its target.
type Identity struct {
	Name     string
	Version  string
	Host     string
	Port     int
	Database string
}

// Dispatcher executes tool requests against one pool. It holds no per-call
// state and is safe for concurrent use.
type Dispatcher struct {
	pool    database.Pool
	reader  schema.Reader
	builder *query.Builder

	log      *logger.Logger
	metrics  *metrics.Metrics
	recorder *audit.Recorder

	identity       Identity
	commandTimeout time.Duration
	retryDelay     time.Duration
	limits         []query.Option
	now            func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithLogger(l *logger.Logger) Option { return func(d *Dispatcher) { d.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(d *Dispatcher) { d.metrics = m } }

func WithAuditRecorder(r *audit.Recorder) Option { return func(d *Dispatcher) { d.recorder = r } }

func WithIdentity(id Identity) Option { return func(d *Dispatcher) { d.identity = id } }

// WithCommandTimeout bounds each statement execution. Zero keeps the default.
func WithCommandTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.commandTimeout = t
		}
	}
}

// WithRetryDelay sets the pause before a read is retried after a failed
// connection. Zero keeps the default.
func WithRetryDelay(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.retryDelay = t
		}
	}
}

// WithLimits sets the select page size default and ceiling.
func WithLimits(defaultLimit, maxLimit int) Option {
	return func(d *Dispatcher) {
		d.limits = append(d.limits, query.WithLimits(defaultLimit, maxLimit))
	}
}

// New returns a Dispatcher over pool. The pool is owned by the caller.
func New(pool database.Pool, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		pool:           pool,
		reader:         schema.NewReader(pool),
		log:            logger.Nop(),
		commandTimeout: defaultCommandTimeout,
		retryDelay:     defaultRetryDelay,
		now:            time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	d.builder = query.NewBuilder(pool.Dialect(), d.limits...)
	return d
}

// Dispatch routes req to its operation. The result is one of the *Result
// types in this package.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (any, error) {
	switch r := req.(type) {
	case PingRequest:
		return d.Ping(ctx, r)
	case ServerInfoRequest:
		return d.ServerInfo(ctx, r)
	case ListTablesRequest:
		return d.ListTables(ctx, r)
	case DescribeTableRequest:
		return d.DescribeTable(ctx, r)
	case TableStatisticsRequest:
		return d.TableStatistics(ctx, r)
	case InsertRequest:
		return d.Insert(ctx, r)
	case SelectRequest:
		return d.Select(ctx, r)
	case UpdateRequest:
		return d.Update(ctx, r)
	case DeleteRequest:
		return d.Delete(ctx, r)
	case CustomQueryRequest:
		return d.CustomQuery(ctx, r)
	default:
		return nil, errs.Newf(errs.ErrKindInvalidArgument, "unsupported request type %T", req)
	}
}

// call collects what one invocation did, for logging and audit.
type call struct {
	id           string
	log          *logger.Logger
	schema       string
	table        string
	sql          string
	rowsAffected int64
}

// run wraps one operation with validation, logging, metrics and audit.
func run[T any](ctx context.Context, d *Dispatcher, req Request, op func(context.Context, *call) (T, error)) (T, error) {
	c := &call{id: uuid.NewString()}
	c.log = d.log.With().Str("tool", string(req.Kind())).Str("request_id", c.id).Logger()
	ctx = c.log.WithContext(ctx)
	start := time.Now()

	var res T
	err := req.Validate()
	if err == nil {
		res, err = op(ctx, c)
	}

	d.finish(ctx, req, c, time.Since(start), err)
	return res, err
}

func (d *Dispatcher) finish(ctx context.Context, req Request, c *call, elapsed time.Duration, err error) {
	log := c.log
	status, kind := "ok", ""
	if err != nil {
		status, kind = "error", errs.KindOf(err).String()
	}
	d.metrics.ObserveTool(string(req.Kind()), elapsed, kind)

	fields := map[string]interface{}{
		"duration_ms": elapsed.Milliseconds(),
		"status":      status,
	}
	if c.table != "" {
		fields["table"] = c.table
	}
	if c.sql != "" {
		log.DebugWith("statement", map[string]interface{}{"sql": c.sql})
	}
	switch {
	case err == nil:
		log.InfoWith("tool call", fields)
	case errs.IsValidation(err):
		fields["error_kind"] = kind
		log.WarnWith("tool call rejected", err, fields)
	default:
		fields["error_kind"] = kind
		log.ErrorWith("tool call failed", err, fields)
	}

	// Only writes that reached the database are audited.
	if writes(req) && c.sql != "" {
		d.recorder.Record(context.WithoutCancel(ctx), audit.Entry{
			ID:           c.id,
			Time:         d.now().UTC(),
			Tool:         string(req.Kind()),
			Schema:       c.schema,
			Table:        c.table,
			SQL:          c.sql,
			Status:       status,
			ErrorKind:    kind,
			RowsAffected: c.rowsAffected,
			DurationMS:   elapsed.Milliseconds(),
		})
	}
}

// withLease acquires a connection, runs fn under the command timeout and
// releases the connection. Reads are retried once when the connection
// failed; writes never are.
func (d *Dispatcher) withLease(ctx context.Context, c *call, read bool, fn func(context.Context, database.Lease) error) error {
	attempt := func(ctx context.Context) error {
		lease, err := d.pool.Acquire(ctx)
		if err != nil {
			return err
		}
		defer lease.Release()

		ctx, cancel := context.WithTimeout(ctx, d.commandTimeout)
		defer cancel()
		return fn(ctx, lease)
	}
	if !read {
		return attempt(ctx)
	}
	return d.retryRead(ctx, c, attempt)
}

// inspect runs a schema reader call under the command timeout. The reader
// leases its own connection.
func (d *Dispatcher) inspect(ctx context.Context, c *call, fn func(context.Context) error) error {
	return d.retryRead(ctx, c, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, d.commandTimeout)
		defer cancel()
		return fn(ctx)
	})
}

// retryRead runs fn and runs it once more if it failed to connect.
func (d *Dispatcher) retryRead(ctx context.Context, c *call, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(1, retry.NewConstant(d.retryDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if errs.IsConnectFailed(err) {
			c.log.WarnWith("read failed to connect", err, nil)
			return retry.RetryableError(err)
		}
		return err
	})
}

// schemaOr resolves the schema a request names, or the dialect default.
func (d *Dispatcher) schemaOr(name string) string {
	if name != "" {
		return name
	}
	return d.pool.Dialect().DefaultSchema(d.identity.Database)
}

// queryRows executes stmt on lease and scans all rows.
func queryRows(ctx context.Context, lease database.Lease, stmt query.Statement) ([]map[string]any, error) {
	return database.QueryRows(ctx, lease, stmt.SQL, stmt.Args...)
}

func qualified(schema, table string) string {
	if schema == "" {
		return table
	}
	return fmt.Sprintf("%s.%s", schema, table)
}
