package postgres

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/umarmk/mcp-server/internal/errs"
)

// PostgreSQL SQLSTATE codes and classes the server distinguishes.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgClassIntegrityConstraint = "23"
	pgClassConnection          = "08"
	pgClassInvalidAuth         = "28"
	pgErrUndefinedTable        = "42P01"
	pgErrQueryCanceled         = "57014"
	pgErrTooManyConnections    = "53300"
	pgErrCannotConnectNow      = "57P03"
)

// mapError translates pgx / pgconn native errors into *errs.Error. The
// server's own message is kept so the caller sees what PostgreSQL said.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg+": command timed out or was cancelled", err)
	}

	// Postgres server-side error (SQLSTATE codes)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.Wrap(sqlstateKind(pgErr.Code), msg+": "+pgMessage(pgErr), err)
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) {
		return errs.Wrap(errs.ErrKindConnectFailed, msg, err)
	}
	if pgconn.Timeout(err) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}
	// The statement never reached the server, so a fresh connection can retry it.
	if pgconn.SafeToRetry(err) {
		return errs.Wrap(errs.ErrKindConnectFailed, msg, err)
	}

	return errs.Wrap(errs.ErrKindQueryExecutionFailed, msg, err)
}

func sqlstateKind(code string) errs.ErrKind {
	switch {
	case code == pgErrUndefinedTable:
		return errs.ErrKindTableNotFound
	case code == pgErrQueryCanceled:
		return errs.ErrKindTimeout
	case code == pgErrTooManyConnections, code == pgErrCannotConnectNow:
		return errs.ErrKindConnectFailed
	case strings.HasPrefix(code, pgClassIntegrityConstraint):
		return errs.ErrKindConstraintViolation
	case strings.HasPrefix(code, pgClassConnection), strings.HasPrefix(code, pgClassInvalidAuth):
		return errs.ErrKindConnectFailed
	default:
		return errs.ErrKindQueryExecutionFailed
	}
}

func pgMessage(e *pgconn.PgError) string {
	if e.Detail != "" {
		return e.Message + " (" + e.Detail + ")"
	}
	return e.Message
}
