package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/umarmk/mcp-server/internal/dispatch"
	"github.com/umarmk/mcp-server/internal/errs"
)

func (s *Server) registerTools() {
	d := s.dispatcher

	addTool(s, dispatch.OpPing,
		"Health check. Reports whether the server is alive and the database reachable.",
		d.Ping)
	addTool(s, dispatch.OpServerInfo,
		"Server name and version, database version and size, and connection pool statistics.",
		d.ServerInfo)

	addTool(s, dispatch.OpListTables,
		"List the base tables in a schema.",
		d.ListTables)
	addTool(s, dispatch.OpDescribeTable,
		"Describe a table: columns with types, nullability and defaults; constraints; indexes; foreign keys.",
		d.DescribeTable)
	addTool(s, dispatch.OpTableStatistics,
		"Row estimate, on-disk sizes and index count for a table. Set exact_count for a COUNT(*).",
		d.TableStatistics)

	addTool(s, dispatch.OpInsert, `Insert one row.

**Example usage:**
`+"```json"+`
{"table": "items", "columns": {"name": "widget", "price": 9.99}}
`+"```",
		d.Insert)

	addTool(s, dispatch.OpSelect, `Read rows with optional filters, ordering and pagination.
Filters are combined with AND.

**Example usage:**
`+"```json"+`
{
  "table": "items",
  "columns": ["id", "name"],
  "filters": [
    {"column": "price", "operator": ">=", "value": 5},
    {"column": "id", "operator": "IN", "value": [1, 2, 3]}
  ],
  "order_by": [{"column": "name", "direction": "asc"}],
  "limit": 10
}
`+"```"+`

**Operators:** =, !=, <, <=, >, >=, LIKE, IN, IS NULL, IS NOT NULL`,
		d.Select)

	addTool(s, dispatch.OpUpdate, `Update rows matching the filters. At least one filter is required.

**Example usage:**
`+"```json"+`
{"table": "items", "set": {"price": 12.5}, "filters": [{"column": "id", "operator": "=", "value": 3}]}
`+"```",
		d.Update)

	addTool(s, dispatch.OpDelete, `Delete rows matching the filters. At least one filter is required.

**Example usage:**
`+"```json"+`
{"table": "items", "filters": [{"column": "id", "operator": "=", "value": 3}]}
`+"```",
		d.Delete)

	addTool(s, dispatch.OpCustomQuery, `Run one SQL statement with bound parameters.
declared_kind must match the statement: read for SELECT, write for INSERT, UPDATE or DELETE.
DDL and multiple statements are rejected.

**Example usage:**
`+"```json"+`
{"sql": "SELECT * FROM orders WHERE user_id = $1", "declared_kind": "read", "params": [7]}
`+"```",
		d.CustomQuery)
}

// addTool registers op under name. Failures become an IsError result
// carrying the error kind, so clients can tell validation from database
// problems.
func addTool[In, Out any](s *Server, name dispatch.OperationKind, desc string, op func(context.Context, In) (Out, error)) {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: string(name), Description: desc},
		func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
			out, err := op(ctx, in)
			if err != nil {
				return errorResult(err), nil, nil
			}
			return jsonResult(out), nil, nil
		})
}

type errorBody struct {
	Success bool `json:"success"`
	Error   struct {
		Kind    errs.ErrKind `json:"kind"`
		Message string       `json:"message"`
	} `json:"error"`
}

func errorResult(err error) *mcp.CallToolResult {
	var body errorBody
	body.Error.Kind = errs.KindOf(err)
	body.Error.Message = errs.MessageOf(err)
	b, _ := json.Marshal(body)
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: string(b)}},
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return errorResult(errs.Wrap(errs.ErrKindQueryExecutionFailed, "failed to encode result", err))
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(b)}}}
}
