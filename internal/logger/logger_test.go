package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "default config", config: nil},
		{name: "json without output", config: &Config{Level: "debug", Format: "json"}},
		{name: "console config", config: &Config{Level: "info", Format: "console", Output: io.Discard}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, New(tt.config))
		})
	}
}

func TestDefaultConfig_WritesToStderr(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, os.Stderr, cfg.Output)
	assert.Equal(t, "json", cfg.Format)
}

func TestLogger_JSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Format: "json", Output: buf})

	log.Info("pool ready")

	entry := decode(t, buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "pool ready", entry["message"])
	assert.NotEmpty(t, entry["time"])
}

func TestLogger_WithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Format: "json", Output: buf})

	child := log.With().
		Str("tool", "select_records").
		Str("request_id", "r-1").
		Logger()

	child.Info("tool call finished")

	entry := decode(t, buf)
	assert.Equal(t, "select_records", entry["tool"])
	assert.Equal(t, "r-1", entry["request_id"])
	assert.Equal(t, "tool call finished", entry["message"])
}

func TestLogger_ErrorWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "error", Format: "json", Output: buf})

	log.ErrorWith("failed to connect", errors.New("connection refused"), map[string]interface{}{
		"host": "localhost",
		"port": 5432,
	})

	entry := decode(t, buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "failed to connect", entry["message"])
	assert.Equal(t, "connection refused", entry["error"])
	assert.Equal(t, "localhost", entry["host"])
	assert.Equal(t, float64(5432), entry["port"])
}

func TestLogger_WarnWith(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "warn", Format: "json", Output: buf})

	log.WarnWith("audit archive failed", errors.New("bucket missing"), map[string]interface{}{"bucket": "audit"})

	entry := decode(t, buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "bucket missing", entry["error"])
	assert.Equal(t, "audit", entry["bucket"])
}

func TestLogger_Context(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Format: "json", Output: buf})

	ctx := log.WithContext(context.Background())
	FromContext(ctx).Info("from context")

	entry := decode(t, buf)
	assert.Equal(t, "from context", entry["message"])
}

func TestFromContext_WithoutLoggerIsNop(t *testing.T) {
	log := FromContext(context.Background())
	require.NotNil(t, log)
	assert.Equal(t, zerolog.Disabled, log.zlog.GetLevel())
}

func TestFromContext_KeepsChildFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "debug", Format: "json", Output: buf}).
		With().Str("request_id", "abc").Logger()

	ctx := log.WithContext(context.Background())
	FromContext(ctx).DebugWith("catalog query failed", map[string]interface{}{"table": "items"})

	entry := decode(t, buf)
	assert.Equal(t, "abc", entry["request_id"])
	assert.Equal(t, "items", entry["table"])
}

func TestLogger_Nop(t *testing.T) {
	log := Nop()
	assert.NotPanics(t, func() {
		log.Info("dropped")
		log.ErrorWith("dropped", errors.New("x"), nil)
	})
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logFunc  func(*Logger)
		expected bool
	}{
		{
			name:     "debug level logs debug",
			level:    "debug",
			logFunc:  func(l *Logger) { l.Debug("debug message") },
			expected: true,
		},
		{
			name:     "info level skips debug",
			level:    "info",
			logFunc:  func(l *Logger) { l.DebugWith("debug message", map[string]interface{}{"sql": "SELECT 1"}) },
			expected: false,
		},
		{
			name:     "error level logs error",
			level:    "error",
			logFunc:  func(l *Logger) { l.ErrorWith("error message", errors.New("boom"), nil) },
			expected: true,
		},
		{
			name:     "error level skips info",
			level:    "error",
			logFunc:  func(l *Logger) { l.Info("info message") },
			expected: false,
		},
		{
			name:     "unknown level falls back to info",
			level:    "verbose",
			logFunc:  func(l *Logger) { l.Info("info message") },
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			log := New(&Config{Level: tt.level, Format: "json", Output: buf})

			tt.logFunc(log)

			if tt.expected {
				assert.NotEmpty(t, buf.String(), "expected log output")
			} else {
				assert.Empty(t, buf.String(), "expected no log output")
			}
		})
	}
}

func TestValidLevel(t *testing.T) {
	assert.True(t, ValidLevel("debug"))
	assert.True(t, ValidLevel("error"))
	assert.False(t, ValidLevel("trace"))
	assert.False(t, ValidLevel(""))
}

func BenchmarkLogger_WithFields(b *testing.B) {
	log := New(&Config{Level: "info", Format: "json", Output: io.Discard})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		log.With().
			Str("tool", "ping").
			Str("request_id", "bench").
			Logger().
			Info("benchmark message")
	}
}
