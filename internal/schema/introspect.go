package schema

import (
	"context"

	"github.com/umarmk/mcp-server/internal/database"
	"github.com/umarmk/mcp-server/internal/query"
)

// PgIntrospector implements Reader for PostgreSQL using information_schema
// and the pg_catalog tables. Casts to text/bigint keep the scanned types
// independent of information_schema's domain types.
type PgIntrospector struct {
	pool database.Pool
}

// NewPgIntrospector creates a new Postgres schema introspector
func NewPgIntrospector(pool database.Pool) *PgIntrospector {
	return &PgIntrospector{pool: pool}
}

// ListTables returns all user-defined table names in the given schema
func (p *PgIntrospector) ListTables(ctx context.Context, schema string) ([]string, error) {
	if err := validateNames(schema); err != nil {
		return nil, err
	}
	const q = `
		SELECT table_name::text
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	var tables []string
	err := withLease(ctx, p.pool, func(l database.Lease) error {
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
func (p *PgIntrospector) InspectTable(ctx context.Context, schema, table string) (*TableInfo, error) {
	if err := validateNames(schema, table); err != nil {
		return nil, err
	}

	info := &TableInfo{Schema: schema, Name: table}
	err := withLease(ctx, p.pool, func(l database.Lease) error {
		var err error
		if info.Columns, err = p.columns(ctx, l, schema, table); err != nil {
			return err
		}
		if len(info.Columns) == 0 {
			return tableNotFound(schema, table)
		}
		if info.Constraints, err = p.constraints(ctx, l, schema, table); err != nil {
			return err
		}
		if info.Indexes, err = p.indexes(ctx, l, schema, table); err != nil {
			return err
		}
		info.ForeignKeys, err = p.foreignKeys(ctx, l, schema, table)
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (p *PgIntrospector) columns(ctx context.Context, l database.Lease, schema, table string) ([]ColumnInfo, error) {
	const q = `
		SELECT
			c.column_name::text,
			c.data_type::text,
			c.is_nullable = 'YES'              AS is_nullable,
			c.column_default::text,
			c.character_maximum_length::bigint,
			c.numeric_precision::bigint,
			c.numeric_scale::bigint,
			c.ordinal_position::bigint,
			COALESCE(pk.is_pk, false)          AS is_primary_key,
			COALESCE(uq.is_unique, false)      AS is_unique
		FROM information_schema.columns c

		-- Primary key check
		LEFT JOIN (
			SELECT DISTINCT kcu.column_name, true AS is_pk
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
			WHERE tc.constraint_type = 'PRIMARY KEY'
			  AND tc.table_schema = $1
			  AND tc.table_name   = $2
		) pk ON pk.column_name = c.column_name

		-- Unique constraint check
		LEFT JOIN (
			SELECT DISTINCT kcu.column_name, true AS is_unique
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
			WHERE tc.constraint_type = 'UNIQUE'
			  AND tc.table_schema = $1
			  AND tc.table_name   = $2
		) uq ON uq.column_name = c.column_name

		WHERE c.table_schema = $1 AND c.table_name = $2
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

func (p *PgIntrospector) constraints(ctx context.Context, l database.Lease, schema, table string) ([]Constraint, error) {
	const q = `
		SELECT
			con.conname::text,
			CASE con.contype
				WHEN 'p' THEN 'PRIMARY KEY'
				WHEN 'u' THEN 'UNIQUE'
				WHEN 'f' THEN 'FOREIGN KEY'
				WHEN 'c' THEN 'CHECK'
				WHEN 'x' THEN 'EXCLUDE'
				ELSE con.contype::text
			END,
			ARRAY(
				SELECT a.attname::text
				FROM unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord)
				JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
				ORDER BY k.ord
			),
			pg_get_constraintdef(con.oid)
		FROM pg_constraint con
		JOIN pg_class rel ON rel.oid = con.conrelid
		JOIN pg_namespace nsp ON nsp.oid = rel.relnamespace
		WHERE nsp.nspname = $1 AND rel.relname = $2
		ORDER BY con.conname`

	rows, err := l.Query(ctx, q, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Constraint, 0)
	for rows.Next() {
		var c Constraint
		if err := rows.Scan(&c.Name, &c.Kind, &c.Columns, &c.Definition); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *PgIntrospector) indexes(ctx context.Context, l database.Lease, schema, table string) ([]Index, error) {
	const q = `
		SELECT
			i.relname::text,
			ARRAY(
				SELECT a.attname::text
				FROM unnest(ix.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
				JOIN pg_attribute a ON a.attrelid = ix.indrelid AND a.attnum = k.attnum
				ORDER BY k.ord
			),
			ix.indisunique,
			ix.indisprimary,
			pg_get_indexdef(ix.indexrelid)
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE n.nspname = $1 AND t.relname = $2
		ORDER BY i.relname`

	rows, err := l.Query(ctx, q, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Index, 0)
	for rows.Next() {
		var ix Index
		if err := rows.Scan(&ix.Name, &ix.Columns, &ix.IsUnique, &ix.IsPrimary, &ix.Definition); err != nil {
			return nil, err
		}
		out = append(out, ix)
	}
	return out, rows.Err()
}

// foreignKeys returns the FK relationships leaving the table
func (p *PgIntrospector) foreignKeys(ctx context.Context, l database.Lease, schema, table string) ([]ForeignKey, error) {
	const q = `
		SELECT
			tc.constraint_name::text,
			kcu.column_name::text  AS from_column,
			ccu.table_name::text   AS to_table,
			ccu.column_name::text  AS to_column
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage AS ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = $1
		  AND tc.table_name = $2
		ORDER BY tc.constraint_name`

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

// TableStatistics reads planner and storage figures from pg_class.
func (p *PgIntrospector) TableStatistics(ctx context.Context, schema, table string, exact bool) (*TableStats, error) {
	if err := validateNames(schema, table); err != nil {
		return nil, err
	}
	const q = `
		SELECT
			pg_get_userbyid(c.relowner)::text,
			CASE WHEN c.reltuples < 0 THEN NULL ELSE c.reltuples::bigint END,
			pg_total_relation_size(c.oid),
			pg_relation_size(c.oid),
			pg_indexes_size(c.oid),
			(SELECT count(*) FROM pg_index ix WHERE ix.indrelid = c.oid),
			c.relhastriggers
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
		  AND c.relname = $2
		  AND c.relkind IN ('r', 'p')`

	stats := &TableStats{Schema: schema, Name: table}
	err := withLease(ctx, p.pool, func(l database.Lease) error {
		rows, err := l.Query(ctx, q, schema, table)
		if err != nil {
			return err
		}
		found := false
		for rows.Next() {
			found = true
			if err := rows.Scan(
				&stats.Owner,
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
			stats.ExactRowCount, err = exactCount(ctx, l, query.DialectPostgres, schema, table)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	fillSizes(stats)
	return stats, nil
}
