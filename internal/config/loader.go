package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	yamlv3 "go.yaml.in/yaml/v3"

	"github.com/umarmk/mcp-server/internal/logger"
)

// DotEnvFile is read into the environment before loading, if present.
// Variables already set in the process win.
var DotEnvFile = ".env"

// envKeys maps environment variables to config keys.
var envKeys = map[string]string{
	"DB_DRIVER":            "driver",
	"DB_DSN":               "database.dsn",
	"PG_HOST":              "database.host",
	"PG_PORT":              "database.port",
	"PG_USER":              "database.user",
	"PG_PASSWORD":          "database.password",
	"PG_DATABASE":          "database.name",
	"PG_SSLMODE":           "database.sslmode",
	"POOL_MIN_CONNS":       "pool.min_conns",
	"POOL_MAX_CONNS":       "pool.max_conns",
	"POOL_ACQUIRE_TIMEOUT": "pool.acquire_timeout",
	"COMMAND_TIMEOUT":      "pool.command_timeout",
	"QUERY_DEFAULT_LIMIT":  "query.default_limit",
	"QUERY_MAX_LIMIT":      "query.max_limit",
	"MCP_TRANSPORT":        "server.transport",
	"MCP_HTTP_ADDR":        "server.http_addr",
	"MCP_CORS_ORIGINS":     "server.cors_allowed_origins",
	"LOG_LEVEL":            "log.level",
	"LOG_FORMAT":           "log.format",
	"AUDIT_BUCKET":         "audit.bucket",
	"AUDIT_S3_ENDPOINT":    "audit.endpoint",
	"AUDIT_S3_ACCESS_KEY":  "audit.access_key",
	"AUDIT_S3_SECRET_KEY":  "audit.secret_key",
	"AUDIT_S3_USE_SSL":     "audit.use_ssl",
	"AUDIT_S3_REGION":      "audit.region",
}

// flagKeys maps CLI flag names to config keys. Flags not listed here are
// not configuration (e.g. --config itself).
var flagKeys = map[string]string{
	"driver":     "driver",
	"transport":  "server.transport",
	"http-addr":  "server.http_addr",
	"log-level":  "log.level",
	"log-format": "log.format",
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"driver":                      "postgres",
		"database.host":               "localhost",
		"database.sslmode":            "disable",
		"pool.min_conns":              2,
		"pool.max_conns":              20,
		"pool.acquire_timeout":        "10s",
		"pool.command_timeout":        "60s",
		"pool.connect_timeout":        "10s",
		"pool.max_conn_lifetime":      "30m",
		"pool.max_conn_idle_time":     "5m",
		"query.default_limit":         100,
		"query.max_limit":             1000,
		"server.transport":            "stdio",
		"server.http_addr":            ":8080",
		"server.cors_allowed_origins": []string{"*"},
		"log.level":                   "info",
		"log.format":                  "json",
	}
}

// Load builds the configuration. cfgFile may be empty; flags may be nil.
// Only flags the user actually set override other sources.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", DotEnvFile, err)
	}

	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// 3. Environment. Unlisted variables are skipped.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.TextUnmarshallerHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           &cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		return logger.ValidLevel(fl.Field().String())
	})
	return v
}

// Validate checks the loaded values. The error names every failed key.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", keyOf(fe), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// keyOf turns "Config.Pool.MaxConns" into "pool.maxconns"-style paths the
// user can find in the file or env table.
func keyOf(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ToLower(ns)
}

// YAML renders the configuration with credentials masked.
func (c *Config) YAML() ([]byte, error) {
	return yamlv3.Marshal(c.Redacted())
}

// WriteYAML writes the redacted configuration to w.
func (c *Config) WriteYAML(w io.Writer) error {
	b, err := c.YAML()
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// redactDSN masks the password in URL-form DSNs (as "xxxxx") and the whole
// value otherwise.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" || u.User == nil {
		return redacted
	}
	return u.Redacted()
}
