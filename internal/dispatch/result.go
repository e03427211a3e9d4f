package dispatch

import (
	"time"

	"github.com/umarmk/mcp-server/internal/database"
	"github.com/umarmk/mcp-server/internal/schema"
)

type PingResult struct {
	Success           bool      `json:"success"`
	Status            string    `json:"status"`
	Alive             bool      `json:"alive"`
	DatabaseReachable bool      `json:"database_reachable"`
	Timestamp         time.Time `json:"timestamp"`
}

// ServerInfoResult reports identity and health. A database failure is
// reported in Status and Error rather than failing the call.
type ServerInfoResult struct {
	Success         bool               `json:"success"`
	Status          string             `json:"status"` // connected or error
	ServerName      string             `json:"server_name"`
	ServerVersion   string             `json:"server_version"`
	Driver          string             `json:"driver"`
	Host            string             `json:"host,omitempty"`
	Port            int                `json:"port,omitempty"`
	Database        string             `json:"database,omitempty"`
	DatabaseVersion string             `json:"database_version,omitempty"`
	DatabaseSize    string             `json:"database_size,omitempty"`
	Pool            database.PoolStats `json:"pool"`
	Error           string             `json:"error,omitempty"`
}

type ListTablesResult struct {
	Success bool     `json:"success"`
	Schema  string   `json:"schema"`
	Tables  []string `json:"tables"`
	Count   int      `json:"count"`
}

type DescribeTableResult struct {
	Success bool `json:"success"`
	*schema.TableInfo
}

type TableStatisticsResult struct {
	Success bool `json:"success"`
	*schema.TableStats
}

// InsertResult carries the inserted row on PostgreSQL. MySQL has no
// RETURNING, so it reports the affected count and AUTO_INCREMENT id instead.
type InsertResult struct {
	Success      bool             `json:"success"`
	Table        string           `json:"table"`
	Records      []map[string]any `json:"records,omitempty"`
	RowsAffected int64            `json:"rows_affected"`
	LastInsertID *int64           `json:"last_insert_id,omitempty"`
}

type SelectResult struct {
	Success       bool             `json:"success"`
	Table         string           `json:"table"`
	Records       []map[string]any `json:"records"`
	ReturnedCount int              `json:"returned_count"`
	TotalCount    int64            `json:"total_count"`
	Limit         int              `json:"limit"`
	Offset        int              `json:"offset"`
}

// WriteResult is the result of update_records and delete_records.
type WriteResult struct {
	Success      bool             `json:"success"`
	Table        string           `json:"table"`
	RowsAffected int64            `json:"rows_affected"`
	Records      []map[string]any `json:"records,omitempty"`
}

type CustomQueryResult struct {
	Success      bool             `json:"success"`
	DeclaredKind string           `json:"declared_kind"`
	Records      []map[string]any `json:"records,omitempty"`
	RecordCount  int              `json:"record_count"`
	RowsAffected int64            `json:"rows_affected"`
}
