package mysql

import (
	"database/sql"
	"net"
	"strconv"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/umarmk/mcp-server/internal/database"
	"github.com/umarmk/mcp-server/internal/errs"
)

const (
	defaultMaxOpenConns    = 20
	defaultMinConns        = 2
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
	defaultConnTimeout     = 10 * time.Second
	defaultAcquireTimeout  = 10 * time.Second
	defaultPort            = 3306
)

// buildPool configures and returns a *sql.DB with pool settings
func buildPool(cfg *database.Config) (*sql.DB, error) {
	myCfg, err := buildDriverConfig(cfg)
	if err != nil {
		return nil, err
	}

	connector, err := gomysql.NewConnector(myCfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectFailed, "invalid mysql connection settings", err)
	}
	db := sql.OpenDB(connector)

	maxOpen := int(cfg.MaxConns)
	if maxOpen == 0 {
		maxOpen = defaultMaxOpenConns
	}
	minConns := int(cfg.MinConns)
	if minConns == 0 {
		minConns = defaultMinConns
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(min(minConns, maxOpen))
	db.SetConnMaxLifetime(withDefaultDuration(cfg.MaxConnLifetime, defaultConnMaxLifetime))
	db.SetConnMaxIdleTime(withDefaultDuration(cfg.MaxConnIdleTime, defaultConnMaxIdleTime))

	return db, nil
}

// buildDriverConfig parses cfg.DSN, or assembles the driver config from the
// parts. Multi-statement mode stays off: one call, one statement.
func buildDriverConfig(cfg *database.Config) (*gomysql.Config, error) {
	if cfg.DSN != "" {
		myCfg, err := gomysql.ParseDSN(cfg.DSN)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindConnectFailed, "invalid mysql DSN", err)
		}
		myCfg.ParseTime = true
		myCfg.MultiStatements = false
		return myCfg, nil
	}

	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	myCfg := gomysql.NewConfig()
	myCfg.User = cfg.User
	myCfg.Passwd = cfg.Password
	myCfg.Net = "tcp"
	myCfg.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	myCfg.DBName = cfg.Database
	myCfg.ParseTime = true
	myCfg.Timeout = withDefaultDuration(cfg.ConnectTimeout, defaultConnTimeout)
	return myCfg, nil
}

func withDefaultDuration(val, def time.Duration) time.Duration {
	if val <= 0 {
		return def
	}
	return val
}
