package postgres

import (
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/umarmk/mcp-server/internal/database"
	"github.com/umarmk/mcp-server/internal/errs"
)

const (
	defaultMaxConns       = 20
	defaultMinConns       = 2
	defaultPort           = 5432
	defaultConnTimeout    = 10 * time.Second
	defaultAcquireTimeout = 10 * time.Second
)

// buildConfig turns a database.Config into a pgxpool.Config without dialling.
func buildConfig(cfg *database.Config) (*pgxpool.Config, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = buildDSN(cfg)
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectFailed, "invalid postgres connection settings", err)
	}

	poolCfg.MaxConns = withDefault(cfg.MaxConns, defaultMaxConns)
	poolCfg.MinConns = withDefault(cfg.MinConns, defaultMinConns)
	if poolCfg.MinConns > poolCfg.MaxConns {
		poolCfg.MinConns = poolCfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	poolCfg.ConnConfig.ConnectTimeout = withDefaultDuration(cfg.ConnectTimeout, defaultConnTimeout)

	return poolCfg, nil
}

// buildDSN constructs a keyword/value connection string. Values are quoted
// so passwords with spaces or quotes survive.
func buildDSN(cfg *database.Config) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dsnValue(cfg.Host), port, dsnValue(cfg.User), dsnValue(cfg.Password), dsnValue(cfg.Database), sslMode,
	)
}

func dsnValue(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// withDefault returns val if non-zero, otherwise returns def
func withDefault(val, def int32) int32 {
	if val == 0 {
		return def
	}
	return val
}

func withDefaultDuration(val, def time.Duration) time.Duration {
	if val <= 0 {
		return def
	}
	return val
}
