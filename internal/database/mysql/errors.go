package mysql

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/umarmk/mcp-server/internal/errs"
)

// MySQL error numbers
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errDuplicateEntry     = 1062
	errNoReferencedRow    = 1452
	errRowIsReferenced    = 1451
	errNoReferencedRowOld = 1216
	errRowIsReferencedOld = 1217
	errBadNull            = 1048
	errCheckConstraint    = 3819
	errNoSuchTable        = 1146
	errAccessDenied       = 1045
	errUnknownDatabase    = 1049
	errTooManyConnections = 1040
	errConnRefused        = 2003
	errLocalSocket        = 2002
	errServerGone         = 2006
	errServerLost         = 2013
	errQueryTimeout       = 3024
)

// mapError converts a MySQL driver error into an *errs.Error, keeping the
// server's message.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg+": command timed out or was cancelled", err)
	}

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return errs.Wrap(numberKind(mysqlErr.Number), msg+": "+mysqlErr.Message, err)
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, gomysql.ErrInvalidConn) || errors.As(err, &netErr) {
		return errs.Wrap(errs.ErrKindConnectFailed, msg, err)
	}

	return errs.Wrap(errs.ErrKindQueryExecutionFailed, msg, err)
}

func numberKind(n uint16) errs.ErrKind {
	switch n {
	case errDuplicateEntry, errNoReferencedRow, errRowIsReferenced,
		errNoReferencedRowOld, errRowIsReferencedOld, errBadNull, errCheckConstraint:
		return errs.ErrKindConstraintViolation
	case errNoSuchTable:
		return errs.ErrKindTableNotFound
	case errAccessDenied, errUnknownDatabase, errTooManyConnections,
		errConnRefused, errLocalSocket, errServerGone, errServerLost:
		return errs.ErrKindConnectFailed
	case errQueryTimeout:
		return errs.ErrKindTimeout
	default:
		return errs.ErrKindQueryExecutionFailed
	}
}
