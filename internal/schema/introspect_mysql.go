package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/umarmk/mcp-server/internal/database"
	"github.com/umarmk/mcp-server/internal/query"
)

// MySQLIntrospector implements Reader for MySQL using information_schema.
// In MySQL the schema is the database name.
type MySQLIntrospector struct {
	pool database.Pool
}

// NewMySQLIntrospector creates a new MySQL schema introspector
func NewMySQLIntrospector(pool database.Pool) *MySQLIntrospector {
	return &MySQLIntrospector{pool: pool}
}

// ListTables returns all base tables in the given database
func (m *MySQLIntrospector) ListTables(ctx context.Context, schema string) ([]string, error) {
	if err := validateNames(schema); err != nil {
		return nil, err
	}
	const q = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ?
		  AND table_type   = 'BASE TABLE'
		ORDER BY table_name`

	var tables []string
	err := withLease(ctx, m.pool, func(l database.Lease) error {
		rows, err := l.Query(ctx, q, schema)
		if err != nil {
			return err
		}
		tables, err = scanStrings(rows)
		return err
	})
	return tables, err
}

// InspectTable returns column, constraint and index details for a single table
func (m *MySQLIntrospector) InspectTable(ctx context.Context, schema, table string) (*TableInfo, error) {
	if err := validateNames(schema, table); err != nil {
		return nil, err
	}

	info := &TableInfo{Schema: schema, Name: table}
	err := withLease(ctx, m.pool, func(l database.Lease) error {
		var err error
		if info.Columns, err = m.columns(ctx, l, schema, table); err != nil {
			return err
		}
		if len(info.Columns) == 0 {
			return tableNotFound(schema, table)
		}
		if info.Constraints, err = m.constraints(ctx, l, schema, table); err != nil {
			return err
		}
		if info.Indexes, err = m.indexes(ctx, l, schema, table); err != nil {
			return err
		}
		info.ForeignKeys, err = m.foreignKeys(ctx, l, schema, table)
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (m *MySQLIntrospector) columns(ctx context.Context, l database.Lease, schema, table string) ([]ColumnInfo, error) {
	const q = `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES'                         AS is_nullable,
			c.column_default,
			c.character_maximum_length,
			c.numeric_precision,
			c.numeric_scale,
			c.ordinal_position,
			(c.column_key = 'PRI')                        AS is_primary_key,
			(c.column_key = 'UNI')                        AS is_unique
		FROM information_schema.columns c
		WHERE c.table_schema = ?
		  AND c.table_name   = ?
		ORDER BY c.ordinal_position`

	rows, err := l.Query(ctx, q, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make([]ColumnInfo, 0)
	for rows.Next() {
		var col ColumnInfo
		if err := rows.Scan(
			&col.Name,
			&col.DataType,
			&col.IsNullable,
			&col.DefaultValue,
			&col.MaxLength,
			&col.NumericPrecision,
			&col.NumericScale,
			&col.Position,
			&col.IsPrimaryKey,
			&col.IsUnique,
		); err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (m *MySQLIntrospector) constraints(ctx context.Context, l database.Lease, schema, table string) ([]Constraint, error) {
	const q = `
		SELECT
			tc.constraint_name,
			tc.constraint_type,
			COALESCE(GROUP_CONCAT(kcu.column_name ORDER BY kcu.ordinal_position SEPARATOR ','), '')
		FROM information_schema.table_constraints tc
		LEFT JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_schema = tc.constraint_schema
			AND kcu.constraint_name = tc.constraint_name
			AND kcu.table_name = tc.table_name
		WHERE tc.table_schema = ?
		  AND tc.table_name   = ?
		GROUP BY tc.constraint_name, tc.constraint_type
		ORDER BY tc.constraint_name`

	rows, err := l.Query(ctx, q, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Constraint, 0)
	for rows.Next() {
		var c Constraint
		var cols string
		if err := rows.Scan(&c.Name, &c.Kind, &cols); err != nil {
			return nil, err
		}
		c.Columns = splitList(cols)
		c.Definition = fmt.Sprintf("%s (%s)", c.Kind, strings.Join(c.Columns, ", "))
		out = append(out, c)
	}
	return out, rows.Err()
}

func (m *MySQLIntrospector) indexes(ctx context.Context, l database.Lease, schema, table string) ([]Index, error) {
	const q = `
		SELECT
			index_name,
			GROUP_CONCAT(column_name ORDER BY seq_in_index SEPARATOR ','),
			MIN(non_unique) = 0
		FROM information_schema.statistics
		WHERE table_schema = ?
		  AND table_name   = ?
		GROUP BY index_name
		ORDER BY index_name`

	rows, err := l.Query(ctx, q, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Index, 0)
	for rows.Next() {
		var ix Index
		var cols string
		if err := rows.Scan(&ix.Name, &cols, &ix.IsUnique); err != nil {
			return nil, err
		}
		ix.Columns = splitList(cols)
		ix.IsPrimary = ix.Name == "PRIMARY"
		kind := "INDEX"
		if ix.IsUnique {
			kind = "UNIQUE INDEX"
		}
		ix.Definition = fmt.Sprintf("%s %s ON %s (%s)", kind, ix.Name, table, strings.Join(ix.Columns, ", "))
		out = append(out, ix)
	}
	return out, rows.Err()
}

// foreignKeys returns the FK relationships leaving the table
func (m *MySQLIntrospector) foreignKeys(ctx context.Context, l database.Lease, schema, table string) ([]ForeignKey, error) {
	const q = `
		SELECT
			rc.constraint_name,
			kcu.column_name            AS from_column,
			kcu.referenced_table_name  AS to_table,
			kcu.referenced_column_name AS to_column
		FROM information_schema.referential_constraints rc
		JOIN information_schema.key_column_usage kcu
			ON rc.constraint_name = kcu.constraint_name
			AND rc.constraint_schema = kcu.table_schema
		WHERE rc.constraint_schema = ?
		  AND kcu.table_name = ?
		ORDER BY rc.constraint_name`

	rows, err := l.Query(ctx, q, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fks := make([]ForeignKey, 0)
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Name, &fk.FromColumn, &fk.ToTable, &fk.ToColumn); err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// TableStatistics reads row and size figures from information_schema.tables.
// table_rows is an estimate for InnoDB.
func (m *MySQLIntrospector) TableStatistics(ctx context.Context, schema, table string, exact bool) (*TableStats, error) {
	if err := validateNames(schema, table); err != nil {
		return nil, err
	}
	const q = `
		SELECT
			t.table_rows,
			COALESCE(t.data_length, 0) + COALESCE(t.index_length, 0),
			COALESCE(t.data_length, 0),
			COALESCE(t.index_length, 0),
			(SELECT COUNT(DISTINCT s.index_name)
			   FROM information_schema.statistics s
			  WHERE s.table_schema = t.table_schema AND s.table_name = t.table_name),
			EXISTS (SELECT 1
			   FROM information_schema.triggers tr
			  WHERE tr.event_object_schema = t.table_schema AND tr.event_object_table = t.table_name)
		FROM information_schema.tables t
		WHERE t.table_schema = ?
		  AND t.table_name   = ?
		  AND t.table_type   = 'BASE TABLE'`

	stats := &TableStats{Schema: schema, Name: table}
	err := withLease(ctx, m.pool, func(l database.Lease) error {
		rows, err := l.Query(ctx, q, schema, table)
		if err != nil {
			return err
		}
		found := false
		for rows.Next() {
			found = true
			if err := rows.Scan(
				&stats.RowEstimate,
				&stats.TotalBytes,
				&stats.TableBytes,
				&stats.IndexBytes,
				&stats.IndexCount,
				&stats.HasTriggers,
			); err != nil {
				rows.Close()
				return err
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if !found {
			return tableNotFound(schema, table)
		}
		if exact {
			stats.ExactRowCount, err = exactCount(ctx, l, query.DialectMySQL, schema, table)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	fillSizes(stats)
	return stats, nil
}

func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
