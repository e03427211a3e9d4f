package schema

// ColumnInfo describes a single column in a table
type ColumnInfo struct {
	Name             string  `json:"name"`
	DataType         string  `json:"data_type"`
	IsNullable       bool    `json:"is_nullable"`
	IsPrimaryKey     bool    `json:"is_primary_key"`
	IsUnique         bool    `json:"is_unique"`
	DefaultValue     *string `json:"default_value"`                // nil if no default
	MaxLength        *int64  `json:"max_length,omitempty"`         // nil for non-char types
	NumericPrecision *int64  `json:"numeric_precision,omitempty"`  // nil for non-numeric types
	NumericScale     *int64  `json:"numeric_scale,omitempty"`
	Position         int64   `json:"ordinal_position"`
}

// Constraint is a table constraint: PRIMARY KEY, UNIQUE, FOREIGN KEY, CHECK
// or EXCLUDE.
type Constraint struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	Columns    []string `json:"columns"`
	Definition string   `json:"definition"`
}

// Index describes one index on a table. Expression columns are omitted
// from Columns but appear in Definition.
type Index struct {
	Name       string   `json:"name"`
	Columns    []string `json:"columns"`
	IsUnique   bool     `json:"is_unique"`
	IsPrimary  bool     `json:"is_primary"`
	Definition string   `json:"definition"`
}

// ForeignKey describes a relationship between two tables
type ForeignKey struct {
	Name       string `json:"name"`
	FromColumn string `json:"from_column"`
	ToTable    string `json:"to_table"`
	ToColumn   string `json:"to_column"`
}

// TableInfo is the full description of one table.
type TableInfo struct {
	Schema      string       `json:"schema"`
	Name        string       `json:"table"`
	Columns     []ColumnInfo `json:"columns"`
	Constraints []Constraint `json:"constraints"`
	Indexes     []Index      `json:"indexes"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
}

// TableStats reports size and row figures for one table.
type TableStats struct {
	Schema string `json:"schema"`
	Name   string `json:"table"`
	Owner  string `json:"owner,omitempty"`

	// RowEstimate comes from planner statistics; nil when the table has
	// never been analysed.
	RowEstimate *int64 `json:"row_estimate"`
	// ExactRowCount is only filled when an exact count was requested.
	ExactRowCount *int64 `json:"exact_row_count,omitempty"`

	TotalBytes int64  `json:"total_bytes"`
	TableBytes int64  `json:"table_bytes"`
	IndexBytes int64  `json:"index_bytes"`
	TotalSize  string `json:"total_size"`
	TableSize  string `json:"table_size"`
	IndexSize  string `json:"index_size"`

	IndexCount  int64 `json:"index_count"`
	HasTriggers bool  `json:"has_triggers"`
}
