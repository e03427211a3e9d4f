package dispatch

import (
	"context"

	"github.com/umarmk/mcp-server/internal/database"
	"github.com/umarmk/mcp-server/internal/query"
	"github.com/umarmk/mcp-server/internal/schema"
)

// Ping reports liveness. It never fails; an unreachable database shows up as
// DatabaseReachable false.
func (d *Dispatcher) Ping(ctx context.Context, req PingRequest) (*PingResult, error) {
	return run(ctx, d, req, func(ctx context.Context, c *call) (*PingResult, error) {
		ctx, cancel := context.WithTimeout(ctx, d.commandTimeout)
		defer cancel()

		err := d.pool.Ping(ctx)
		if err != nil {
			c.log.WarnWith("database ping failed", err, nil)
		}
		return &PingResult{
			Success:           true,
			Status:            "pong",
			Alive:             true,
			DatabaseReachable: err == nil,
			Timestamp:         d.now().UTC(),
		}, nil
	})
}

// ServerInfo reports server identity, database version and size, and pool
// stats. Database errors are folded into the result.
func (d *Dispatcher) ServerInfo(ctx context.Context, req ServerInfoRequest) (*ServerInfoResult, error) {
	return run(ctx, d, req, func(ctx context.Context, c *call) (*ServerInfoResult, error) {
		res := &ServerInfoResult{
			Success:       true,
			Status:        "connected",
			ServerName:    d.identity.Name,
			ServerVersion: d.identity.Version,
			Driver:        d.pool.Dialect().String(),
			Host:          d.identity.Host,
			Port:          d.identity.Port,
			Database:      d.identity.Database,
		}

		err := d.withLease(ctx, c, true, func(ctx context.Context, l database.Lease) error {
			var err error
			if res.DatabaseVersion, err = scanText(ctx, l, "SELECT version()"); err != nil {
				return err
			}
			if d.pool.Dialect() == query.DialectPostgres && d.identity.Database != "" {
				res.DatabaseSize, err = scanText(ctx, l, "SELECT pg_size_pretty(pg_database_size($1))", d.identity.Database)
			}
			return err
		})
		if err != nil {
			c.log.WarnWith("server info query failed", err, nil)
			res.Status = "error"
			res.Error = err.Error()
		}
		res.Pool = d.pool.Stats()
		return res, nil
	})
}

func (d *Dispatcher) ListTables(ctx context.Context, req ListTablesRequest) (*ListTablesResult, error) {
	return run(ctx, d, req, func(ctx context.Context, c *call) (*ListTablesResult, error) {
		c.schema = d.schemaOr(req.Schema)

		var tables []string
		err := d.inspect(ctx, c, func(ctx context.Context) error {
			var err error
			tables, err = d.reader.ListTables(ctx, c.schema)
			return err
		})
		if err != nil {
			return nil, err
		}
		return &ListTablesResult{Success: true, Schema: c.schema, Tables: tables, Count: len(tables)}, nil
	})
}

func (d *Dispatcher) DescribeTable(ctx context.Context, req DescribeTableRequest) (*DescribeTableResult, error) {
	return run(ctx, d, req, func(ctx context.Context, c *call) (*DescribeTableResult, error) {
		c.schema, c.table = d.schemaOr(req.Schema), req.Table

		var info *schema.TableInfo
		err := d.inspect(ctx, c, func(ctx context.Context) error {
			var err error
			info, err = d.reader.InspectTable(ctx, c.schema, c.table)
			return err
		})
		if err != nil {
			return nil, err
		}
		return &DescribeTableResult{Success: true, TableInfo: info}, nil
	})
}

func (d *Dispatcher) TableStatistics(ctx context.Context, req TableStatisticsRequest) (*TableStatisticsResult, error) {
	return run(ctx, d, req, func(ctx context.Context, c *call) (*TableStatisticsResult, error) {
		c.schema, c.table = d.schemaOr(req.Schema), req.Table

		var stats *schema.TableStats
		err := d.inspect(ctx, c, func(ctx context.Context) error {
			var err error
			stats, err = d.reader.TableStatistics(ctx, c.schema, c.table, req.ExactCount)
			return err
		})
		if err != nil {
			return nil, err
		}
		return &TableStatisticsResult{Success: true, TableStats: stats}, nil
	})
}

func (d *Dispatcher) Insert(ctx context.Context, req InsertRequest) (*InsertResult, error) {
	return run(ctx, d, req, func(ctx context.Context, c *call) (*InsertResult, error) {
		c.schema, c.table = d.schemaOr(req.Schema), req.Table
		stmt, err := d.builder.Insert(query.InsertSpec{
			Table:     query.Table{Schema: c.schema, Name: c.table},
			Values:    normalizeValues(req.Columns),
			Returning: true,
		})
		if err != nil {
			return nil, err
		}
		c.sql = stmt.SQL

		res := &InsertResult{Success: true, Table: qualified(c.schema, c.table)}
		err = d.withLease(ctx, c, false, func(ctx context.Context, l database.Lease) error {
			if stmt.Rows {
				rows, err := queryRows(ctx, l, stmt)
				if err != nil {
					return err
				}
				res.Records = rows
				res.RowsAffected = int64(len(rows))
				return nil
			}
			out, err := l.Exec(ctx, stmt.SQL, stmt.Args...)
			if err != nil {
				return err
			}
			res.RowsAffected = out.RowsAffected
			if out.LastInsertID != 0 {
				id := out.LastInsertID
				res.LastInsertID = &id
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		c.rowsAffected = res.RowsAffected
		return res, nil
	})
}

// Select returns one page of rows plus the unpaginated match count. Both
// statements run on the same connection.
func (d *Dispatcher) Select(ctx context.Context, req SelectRequest) (*SelectResult, error) {
	return run(ctx, d, req, func(ctx context.Context, c *call) (*SelectResult, error) {
		c.schema, c.table = d.schemaOr(req.Schema), req.Table
		table := query.Table{Schema: c.schema, Name: c.table}
		filters := normalizeFilters(req.Filters)

		stmt, err := d.builder.Select(query.SelectSpec{
			Table:   table,
			Columns: req.Columns,
			Filters: filters,
			OrderBy: req.OrderBy,
			Limit:   req.Limit,
			Offset:  req.Offset,
		})
		if err != nil {
			return nil, err
		}
		count, err := d.builder.Count(table, filters)
		if err != nil {
			return nil, err
		}
		limit, offset, err := d.builder.Page(req.Limit, req.Offset)
		if err != nil {
			return nil, err
		}
		c.sql = stmt.SQL

		res := &SelectResult{Success: true, Table: qualified(c.schema, c.table), Limit: limit, Offset: offset}
		err = d.withLease(ctx, c, true, func(ctx context.Context, l database.Lease) error {
			rows, err := queryRows(ctx, l, stmt)
			if err != nil {
				return err
			}
			total, err := scanCount(ctx, l, count)
			if err != nil {
				return err
			}
			res.Records, res.ReturnedCount, res.TotalCount = rows, len(rows), total
			return nil
		})
		if err != nil {
			return nil, err
		}
		return res, nil
	})
}

func (d *Dispatcher) Update(ctx context.Context, req UpdateRequest) (*WriteResult, error) {
	return run(ctx, d, req, func(ctx context.Context, c *call) (*WriteResult, error) {
		c.schema, c.table = d.schemaOr(req.Schema), req.Table
		stmt, err := d.builder.Update(query.UpdateSpec{
			Table:     query.Table{Schema: c.schema, Name: c.table},
			Set:       normalizeValues(req.Set),
			Filters:   normalizeFilters(req.Filters),
			Returning: req.ReturnRecords,
		})
		if err != nil {
			return nil, err
		}
		return d.write(ctx, c, stmt)
	})
}

func (d *Dispatcher) Delete(ctx context.Context, req DeleteRequest) (*WriteResult, error) {
	return run(ctx, d, req, func(ctx context.Context, c *call) (*WriteResult, error) {
		c.schema, c.table = d.schemaOr(req.Schema), req.Table
		stmt, err := d.builder.Delete(query.DeleteSpec{
			Table:     query.Table{Schema: c.schema, Name: c.table},
			Filters:   normalizeFilters(req.Filters),
			Returning: req.ReturnRecords,
		})
		if err != nil {
			return nil, err
		}
		return d.write(ctx, c, stmt)
	})
}

// write executes an UPDATE or DELETE, collecting RETURNING rows when the
// statement has them.
func (d *Dispatcher) write(ctx context.Context, c *call, stmt query.Statement) (*WriteResult, error) {
	c.sql = stmt.SQL
	res := &WriteResult{Success: true, Table: qualified(c.schema, c.table)}
	err := d.withLease(ctx, c, false, func(ctx context.Context, l database.Lease) error {
		if stmt.Rows {
			rows, err := queryRows(ctx, l, stmt)
			if err != nil {
				return err
			}
			res.Records, res.RowsAffected = rows, int64(len(rows))
			return nil
		}
		out, err := l.Exec(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			return err
		}
		res.RowsAffected = out.RowsAffected
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.rowsAffected = res.RowsAffected
	return res, nil
}

// CustomQuery runs caller SQL after checking it against its declared kind.
// Reads return rows; writes return the affected count.
func (d *Dispatcher) CustomQuery(ctx context.Context, req CustomQueryRequest) (*CustomQueryResult, error) {
	return run(ctx, d, req, func(ctx context.Context, c *call) (*CustomQueryResult, error) {
		kind, err := query.ParseStatementKind(req.DeclaredKind)
		if err != nil {
			return nil, err
		}
		stmt, err := d.builder.Custom(req.SQL, normalizeArgs(req.Params), kind)
		if err != nil {
			return nil, err
		}
		c.sql = stmt.SQL

		res := &CustomQueryResult{Success: true, DeclaredKind: string(kind)}
		err = d.withLease(ctx, c, kind == query.KindRead, func(ctx context.Context, l database.Lease) error {
			if kind == query.KindRead {
				rows, err := queryRows(ctx, l, stmt)
				if err != nil {
					return err
				}
				res.Records, res.RecordCount = rows, len(rows)
				return nil
			}
			out, err := l.Exec(ctx, stmt.SQL, stmt.Args...)
			if err != nil {
				return err
			}
			res.RowsAffected = out.RowsAffected
			return nil
		})
		if err != nil {
			return nil, err
		}
		c.rowsAffected = res.RowsAffected
		return res, nil
	})
}

// scanText reads the first column of the first row as text.
func scanText(ctx context.Context, l database.Lease, sql string, args ...any) (string, error) {
	rows, err := l.Query(ctx, sql, args...)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var s string
	if rows.Next() {
		if err := rows.Scan(&s); err != nil {
			return "", err
		}
	}
	return s, rows.Err()
}

func scanCount(ctx context.Context, l database.Lease, stmt query.Statement) (int64, error) {
	rows, err := l.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}
