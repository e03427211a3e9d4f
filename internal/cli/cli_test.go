package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umarmk/mcp-server/internal/config"
)

var testEnv = []string{
	"DB_DRIVER", "DB_DSN", "PG_HOST", "PG_PORT", "PG_USER", "PG_PASSWORD", "PG_DATABASE",
	"LOG_LEVEL", "LOG_FORMAT", "MCP_TRANSPORT", "AUDIT_BUCKET", "AUDIT_S3_ENDPOINT",
}

func setupEnv(t *testing.T) {
	t.Helper()
	for _, name := range testEnv {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
	prev := config.DotEnvFile
	config.DotEnvFile = filepath.Join(t.TempDir(), ".env")
	t.Cleanup(func() { config.DotEnvFile = prev })

	t.Setenv("PG_USER", "app")
	t.Setenv("PG_PASSWORD", "s3cret")
	t.Setenv("PG_DATABASE", "shop")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, ServerName+" v"+Version)
}

func TestVersionSkipsConfig(t *testing.T) {
	setupEnv(t)
	t.Setenv("DB_DRIVER", "oracle")

	_, err := run(t, "version")
	assert.NoError(t, err)
}

func TestConfigCommand(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "config", "--log-level", "debug", "--transport", "http")
	require.NoError(t, err)

	assert.Contains(t, out, "driver: postgres")
	assert.Contains(t, out, "level: debug")
	assert.Contains(t, out, "transport: http")
	assert.Contains(t, out, "password: '****'")
	assert.NotContains(t, out, "s3cret")
}

func TestConfigCommand_InvalidConfig(t *testing.T) {
	setupEnv(t)
	t.Setenv("DB_DRIVER", "oracle")

	_, err := run(t, "config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "driver failed oneof")
}

func TestConfigCommand_File(t *testing.T) {
	setupEnv(t)
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("query:\n  max_limit: 250\n"), 0o600))

	out, err := run(t, "--config", path, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "max_limit: 250")
}

func TestAuditListRequiresBucket(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "audit", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUDIT_BUCKET")
}

func TestAuditShowNeedsKey(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "audit", "show")
	require.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"serve", "bootstrap", "config", "audit", "version"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestPreRunStoresLoggerInContext(t *testing.T) {
	setupEnv(t)

	var level zerolog.Level
	root := NewRootCmd()
	root.AddCommand(&cobra.Command{
		Use: "show-logger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			level = zerolog.Ctx(cmd.Context()).GetLevel()
			require.NotNil(t, loggerFrom(cmd.Context()))
			return nil
		},
	})
	root.SetArgs([]string{"show-logger", "--log-level", "debug"})

	require.NoError(t, root.Execute())
	assert.Equal(t, zerolog.DebugLevel, level)
}
