package mcpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umarmk/mcp-server/internal/database/dbtest"
	"github.com/umarmk/mcp-server/internal/dispatch"
	"github.com/umarmk/mcp-server/internal/mcpserver"
	"github.com/umarmk/mcp-server/internal/metrics"
)

func newServer(t *testing.T, pool *dbtest.Pool, cfg mcpserver.Config) *mcpserver.Server {
	t.Helper()
	m := metrics.New()
	d := dispatch.New(pool, dispatch.WithMetrics(m))
	if cfg.Name == "" {
		cfg.Name = "test-server"
	}
	return mcpserver.New(cfg, d, m, nil)
}

func connect(t *testing.T, s *mcpserver.Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverT, clientT := mcp.NewInMemoryTransports()

	ss, err := s.MCP().Connect(ctx, serverT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func callJSON(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (*mcp.CallToolResult, map[string]any) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &body))
	return res, body
}

func TestToolsAreRegistered(t *testing.T) {
	cs := connect(t, newServer(t, dbtest.New(nil), mcpserver.Config{}))

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description, tool.Name)
		assert.NotNil(t, tool.InputSchema, tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"delete_records",
		"describe_table",
		"execute_custom_query",
		"get_server_info",
		"get_table_statistics",
		"insert_record",
		"list_tables",
		"ping",
		"select_records",
		"update_records",
	}, names)
}

func TestPingTool(t *testing.T) {
	cs := connect(t, newServer(t, dbtest.New(nil), mcpserver.Config{}))

	res, body := callJSON(t, cs, "ping", map[string]any{})
	assert.False(t, res.IsError)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "pong", body["status"])
	assert.Equal(t, true, body["database_reachable"])
}

func TestSelectTool(t *testing.T) {
	pool := dbtest.New(func(c dbtest.Call) (*dbtest.Result, error) {
		if strings.Contains(c.SQL, "COUNT(*)") {
			return &dbtest.Result{Columns: []string{"total"}, Rows: [][]any{{int64(1)}}}, nil
		}
		return &dbtest.Result{Columns: []string{"id", "name"}, Rows: [][]any{{int64(1), "widget"}}}, nil
	})
	cs := connect(t, newServer(t, pool, mcpserver.Config{}))

	res, body := callJSON(t, cs, "select_records", map[string]any{
		"table":   "items",
		"filters": []any{map[string]any{"column": "id", "operator": "=", "value": 1}},
	})
	require.False(t, res.IsError, body)
	assert.Equal(t, "public.items", body["table"])
	assert.EqualValues(t, 1, body["total_count"])

	records, ok := body["records"].([]any)
	require.True(t, ok)
	require.Len(t, records, 1)
	assert.Equal(t, "widget", records[0].(map[string]any)["name"])
}

func TestToolErrorCarriesKind(t *testing.T) {
	pool := dbtest.New(nil)
	cs := connect(t, newServer(t, pool, mcpserver.Config{}))

	res, body := callJSON(t, cs, "update_records", map[string]any{
		"table": "items",
		"set":   map[string]any{"price": 1},
	})
	assert.True(t, res.IsError)
	assert.Equal(t, false, body["success"])

	e, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "missing_where_clause", e["kind"])
	assert.NotEmpty(t, e["message"])
	assert.Zero(t, pool.Acquired())
}

func TestCustomQueryKindMismatch(t *testing.T) {
	pool := dbtest.New(nil)
	cs := connect(t, newServer(t, pool, mcpserver.Config{}))

	res, body := callJSON(t, cs, "execute_custom_query", map[string]any{
		"sql":           "DELETE FROM items WHERE id = $1",
		"declared_kind": "read",
		"params":        []any{1},
	})
	assert.True(t, res.IsError)
	assert.Equal(t, "statement_kind_mismatch", body["error"].(map[string]any)["kind"])
	assert.Zero(t, pool.Acquired())
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name    string
		pingErr error
		status  int
	}{
		{name: "reachable", status: http.StatusOK},
		{name: "unreachable", pingErr: errors.New("connection refused"), status: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := dbtest.New(nil)
			pool.PingErr = tt.pingErr
			h := newServer(t, pool, mcpserver.Config{}).Handler()

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.pingErr == nil, body["database_reachable"])
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newServer(t, dbtest.New(nil), mcpserver.Config{}).Handler()

	// A health check goes through the dispatcher and so shows up as a ping call.
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `mcp_server_tool_calls_total{status="ok",tool="ping"} 1`)
}

func TestCORS(t *testing.T) {
	h := newServer(t, dbtest.New(nil), mcpserver.Config{CORSOrigins: []string{"https://app.example.com"}}).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/mcp", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRunRejectsUnknownTransport(t *testing.T) {
	s := newServer(t, dbtest.New(nil), mcpserver.Config{Transport: "carrier-pigeon"})
	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestRunHTTPStopsOnCancel(t *testing.T) {
	s := newServer(t, dbtest.New(nil), mcpserver.Config{Transport: mcpserver.TransportHTTP, HTTPAddr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Run(ctx))
}
