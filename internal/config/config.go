// Package config loads server settings.
//
// Sources are layered, lowest precedence first:
//
//	defaults < YAML file (--config) < environment (.env included) < flags
//
// The result is validated before anything is built from it.
package config

import (
	"fmt"
	"time"

	"github.com/umarmk/mcp-server/internal/database"
	"github.com/umarmk/mcp-server/internal/filestore"
	"github.com/umarmk/mcp-server/internal/logger"
)

const redacted = "****"

// Config is the root configuration object.
type Config struct {
	Driver   string         `koanf:"driver" yaml:"driver" validate:"oneof=postgres mysql"`
	Database DatabaseConfig `koanf:"database" yaml:"database"`
	Pool     PoolConfig     `koanf:"pool" yaml:"pool"`
	Query    QueryConfig    `koanf:"query" yaml:"query"`
	Server   ServerConfig   `koanf:"server" yaml:"server"`
	Log      LogConfig      `koanf:"log" yaml:"log"`
	Audit    AuditConfig    `koanf:"audit" yaml:"audit"`
}

// DatabaseConfig names the target database. DSN, when set, replaces the
// individual parts.
type DatabaseConfig struct {
	Host     string `koanf:"host" yaml:"host" validate:"required_without=DSN"`
	Port     int    `koanf:"port" yaml:"port" validate:"gte=0,lte=65535"`
	User     string `koanf:"user" yaml:"user" validate:"required_without=DSN"`
	Password string `koanf:"password" yaml:"password" validate:"required_without=DSN"`
	Name     string `koanf:"name" yaml:"name" validate:"required_without=DSN"`
	SSLMode  string `koanf:"sslmode" yaml:"sslmode"`
	DSN      string `koanf:"dsn" yaml:"dsn,omitempty"`
}

type PoolConfig struct {
	MinConns        int32    `koanf:"min_conns" yaml:"min_conns" validate:"gte=0,ltefield=MaxConns"`
	MaxConns        int32    `koanf:"max_conns" yaml:"max_conns" validate:"gte=1"`
	AcquireTimeout  Duration `koanf:"acquire_timeout" yaml:"acquire_timeout" validate:"gt=0"`
	CommandTimeout  Duration `koanf:"command_timeout" yaml:"command_timeout" validate:"gt=0"`
	ConnectTimeout  Duration `koanf:"connect_timeout" yaml:"connect_timeout" validate:"gt=0"`
	MaxConnLifetime Duration `koanf:"max_conn_lifetime" yaml:"max_conn_lifetime"`
	MaxConnIdleTime Duration `koanf:"max_conn_idle_time" yaml:"max_conn_idle_time"`
}

type QueryConfig struct {
	DefaultLimit int `koanf:"default_limit" yaml:"default_limit" validate:"gte=1,ltefield=MaxLimit"`
	MaxLimit     int `koanf:"max_limit" yaml:"max_limit" validate:"gte=1"`
}

type ServerConfig struct {
	Transport          string   `koanf:"transport" yaml:"transport" validate:"oneof=stdio http"`
	HTTPAddr           string   `koanf:"http_addr" yaml:"http_addr" validate:"required_if=Transport http"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins" yaml:"cors_allowed_origins"`
}

type LogConfig struct {
	Level  string `koanf:"level" yaml:"level" validate:"loglevel"`
	Format string `koanf:"format" yaml:"format" validate:"oneof=json console"`
}

// AuditConfig enables the write-audit archive. Leaving Bucket empty keeps
// audit entries in the log only.
type AuditConfig struct {
	Bucket    string `koanf:"bucket" yaml:"bucket"`
	Endpoint  string `koanf:"endpoint" yaml:"endpoint" validate:"required_with=Bucket"`
	AccessKey string `koanf:"access_key" yaml:"access_key"`
	SecretKey string `koanf:"secret_key" yaml:"secret_key"`
	UseSSL    bool   `koanf:"use_ssl" yaml:"use_ssl"`
	Region    string `koanf:"region" yaml:"region"`
}

// Duration is a time.Duration that reads and prints as "30s", "5m".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) { return d.String(), nil }

// DatabasePort returns the configured port or the driver's default.
func (c *Config) DatabasePort() int {
	if c.Database.Port != 0 {
		return c.Database.Port
	}
	if database.Driver(c.Driver) == database.DriverMySQL {
		return 3306
	}
	return 5432
}

// DatabaseConfig converts to the connection manager's settings.
func (c *Config) DatabaseConfig() *database.Config {
	return &database.Config{
		Driver:          database.Driver(c.Driver),
		Host:            c.Database.Host,
		Port:            c.DatabasePort(),
		User:            c.Database.User,
		Password:        c.Database.Password,
		Database:        c.Database.Name,
		SSLMode:         c.Database.SSLMode,
		DSN:             c.Database.DSN,
		MaxConns:        c.Pool.MaxConns,
		MinConns:        c.Pool.MinConns,
		MaxConnLifetime: c.Pool.MaxConnLifetime.Std(),
		MaxConnIdleTime: c.Pool.MaxConnIdleTime.Std(),
		ConnectTimeout:  c.Pool.ConnectTimeout.Std(),
		AcquireTimeout:  c.Pool.AcquireTimeout.Std(),
	}
}

// AuditStoreConfig returns the object store settings, or nil when the
// archive is disabled.
func (c *Config) AuditStoreConfig() *filestore.Config {
	if c.Audit.Bucket == "" {
		return nil
	}
	return &filestore.Config{
		Endpoint:  c.Audit.Endpoint,
		AccessKey: c.Audit.AccessKey,
		SecretKey: c.Audit.SecretKey,
		UseSSL:    c.Audit.UseSSL,
		Region:    c.Audit.Region,
	}
}

// LoggerConfig returns logger settings. Output stays on stderr.
func (c *Config) LoggerConfig() *logger.Config {
	lc := logger.DefaultConfig()
	lc.Level = c.Log.Level
	lc.Format = c.Log.Format
	return lc
}

// Redacted returns a copy with credentials masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.Server.CORSAllowedOrigins = append([]string(nil), c.Server.CORSAllowedOrigins...)
	if out.Database.Password != "" {
		out.Database.Password = redacted
	}
	if out.Database.DSN != "" {
		out.Database.DSN = redactDSN(out.Database.DSN)
	}
	if out.Audit.AccessKey != "" {
		out.Audit.AccessKey = redacted
	}
	if out.Audit.SecretKey != "" {
		out.Audit.SecretKey = redacted
	}
	return &out
}
