package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umarmk/mcp-server/internal/database"
	"github.com/umarmk/mcp-server/internal/errs"
	"github.com/umarmk/mcp-server/internal/query"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind errs.ErrKind
	}{
		{"unique violation", &pgconn.PgError{Code: "23505", Message: "duplicate key value"}, errs.ErrKindConstraintViolation},
		{"foreign key violation", &pgconn.PgError{Code: "23503", Message: "violates foreign key"}, errs.ErrKindConstraintViolation},
		{"not null violation", &pgconn.PgError{Code: "23502", Message: "null value"}, errs.ErrKindConstraintViolation},
		{"undefined table", &pgconn.PgError{Code: "42P01", Message: `relation "nope" does not exist`}, errs.ErrKindTableNotFound},
		{"connection failure", &pgconn.PgError{Code: "08006", Message: "connection failure"}, errs.ErrKindConnectFailed},
		{"bad password", &pgconn.PgError{Code: "28P01", Message: "password authentication failed"}, errs.ErrKindConnectFailed},
		{"too many connections", &pgconn.PgError{Code: "53300", Message: "too many clients"}, errs.ErrKindConnectFailed},
		{"statement timeout", &pgconn.PgError{Code: "57014", Message: "canceling statement"}, errs.ErrKindTimeout},
		{"syntax error", &pgconn.PgError{Code: "42601", Message: "syntax error"}, errs.ErrKindQueryExecutionFailed},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), errs.ErrKindTimeout},
		{"network", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, errs.ErrKindConnectFailed},
		{"other", errors.New("unable to encode"), errs.ErrKindQueryExecutionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "query failed")
			require.NotNil(t, got)
			assert.Equal(t, tt.kind, got.Kind)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.Nil(t, mapError(nil, "x"))
}

func TestMapError_KeepsServerMessage(t *testing.T) {
	err := mapError(&pgconn.PgError{
		Code:    "23505",
		Message: `duplicate key value violates unique constraint "users_email_key"`,
		Detail:  "Key (email)=(a@b.c) already exists.",
	}, "statement failed")

	assert.Contains(t, err.Message, "users_email_key")
	assert.Contains(t, err.Message, "already exists")
}

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(&database.Config{
		Host:     "db.internal",
		User:     "app",
		Password: "p@ss word'",
		Database: "shop",
	})
	assert.Equal(t, `host='db.internal' port=5432 user='app' password='p@ss word\'' dbname='shop' sslmode=disable`, dsn)
}

func TestBuildConfig(t *testing.T) {
	cfg := &database.Config{
		Host:            "localhost",
		Port:            6543,
		User:            "app",
		Password:        "secret",
		Database:        "shop",
		MaxConns:        4,
		MinConns:        9,
		MaxConnLifetime: time.Hour,
		ConnectTimeout:  3 * time.Second,
	}

	poolCfg, err := buildConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(4), poolCfg.MaxConns)
	assert.Equal(t, int32(4), poolCfg.MinConns, "min is capped at max")
	assert.Equal(t, time.Hour, poolCfg.MaxConnLifetime)
	assert.Equal(t, uint16(6543), poolCfg.ConnConfig.Port)
	assert.Equal(t, "secret", poolCfg.ConnConfig.Password)
	assert.Equal(t, 3*time.Second, poolCfg.ConnConfig.ConnectTimeout)
}

func TestBuildConfig_DSNOverride(t *testing.T) {
	poolCfg, err := buildConfig(&database.Config{DSN: "postgres://u:p@example.com:5000/other"})
	require.NoError(t, err)
	assert.Equal(t, "example.com", poolCfg.ConnConfig.Host)
	assert.Equal(t, "other", poolCfg.ConnConfig.Database)
	assert.Equal(t, int32(defaultMaxConns), poolCfg.MaxConns)
}

func TestBuildConfig_Invalid(t *testing.T) {
	_, err := buildConfig(&database.Config{DSN: "postgres://u:p@host:notaport/db"})
	assert.Equal(t, errs.ErrKindConnectFailed, errs.KindOf(err))
}

func TestNormalize(t *testing.T) {
	id := [16]byte{0x12, 0x3e, 0x45, 0x67, 0xe8, 0x9b, 0x12, 0xd3, 0xa4, 0x56, 0x42, 0x66, 0x14, 0x17, 0x40, 0x00}
	assert.Equal(t, "123e4567-e89b-12d3-a456-426614174000", normalize(id))

	price := pgtype.Numeric{Int: big.NewInt(1999), Exp: -2, Valid: true}
	out, err := json.Marshal(map[string]any{"price": normalize(price)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":19.99}`, string(out))

	assert.Equal(t, "NaN", normalize(pgtype.Numeric{NaN: true, Valid: true}))
	assert.Nil(t, normalize(pgtype.Numeric{}))
	assert.Equal(t, "13:30:00", normalize(pgtype.Time{Microseconds: int64(13*time.Hour+30*time.Minute) / 1000, Valid: true}))
	assert.Equal(t, int64(5), normalize(int64(5)))
}

func TestPoolDialect(t *testing.T) {
	assert.Equal(t, query.DialectPostgres, (&Pool{}).Dialect())
}
