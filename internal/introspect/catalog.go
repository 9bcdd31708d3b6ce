package introspect

import (
	"context"
	"database/sql"

	_ "github.com/denisenkom/go-mssqldb"

	"github.com/hlop3z/schemadiff/internal/alerr"
	"github.com/hlop3z/schemadiff/internal/mssql"
)

// DriverName is the database/sql driver registered by go-mssqldb.
const DriverName = "sqlserver"

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, alerr.Wrap(alerr.ErrSQLConnection, err, "failed to open database")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, alerr.Wrap(alerr.ErrSQLConnection, err, "failed to connect to database").
			WithHelp("check database_url and that the server accepts connections")
	}
	return db, nil
}

// NewCatalog returns the catalog of the database behind q.
func NewCatalog(q Querier) Catalog {
	return &sqlCatalog{q: q}
}

type sqlCatalog struct {
	q Querier
}

// query runs q and scans every row with scan.
func query[T any](ctx context.Context, q Querier, sqlText string, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := q.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, alerr.Wrap(alerr.ErrSQLExecution, err, "catalog query failed").WithSQL(sqlText)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, alerr.Wrap(alerr.ErrSQLExecution, err, "failed to scan catalog row").WithSQL(sqlText)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, alerr.Wrap(alerr.ErrSQLExecution, err, "catalog query failed").WithSQL(sqlText)
	}
	return out, nil
}

func (c *sqlCatalog) Schemas(ctx context.Context) ([]string, error) {
	const q = `SELECT s.name FROM sys.schemas s WHERE s.schema_id < 16384 ORDER BY s.name`
	return query(ctx, c.q, q, func(r *sql.Rows) (string, error) {
		var name string
		err := r.Scan(&name)
		return name, err
	})
}

func (c *sqlCatalog) Tables(ctx context.Context) ([]mssql.Table, error) {
	const q = `SELECT SCHEMA_NAME(t.schema_id), t.name
FROM sys.tables t
WHERE t.is_ms_shipped = 0
ORDER BY 1, 2`
	return query(ctx, c.q, q, func(r *sql.Rows) (mssql.Table, error) {
		var t mssql.Table
		err := r.Scan(&t.Schema, &t.Name)
		return t, err
	})
}

func (c *sqlCatalog) Columns(ctx context.Context) ([]RawColumn, error) {
	const q = `SELECT
	SCHEMA_NAME(o.schema_id),
	o.name,
	c.name,
	tp.name,
	c.max_length,
	c.precision,
	c.scale,
	c.is_nullable,
	c.is_identity,
	CAST(ISNULL(ic.seed_value, 0) AS bigint),
	CAST(ISNULL(ic.increment_value, 0) AS bigint),
	c.is_computed,
	ISNULL(cc.definition, ''),
	CAST(ISNULL(cc.is_persisted, 0) AS bit),
	CAST(CASE WHEN o.type = 'V' THEN 1 ELSE 0 END AS bit)
FROM sys.columns c
JOIN sys.objects o ON o.object_id = c.object_id
JOIN sys.types tp ON tp.user_type_id = c.user_type_id
LEFT JOIN sys.identity_columns ic ON ic.object_id = c.object_id AND ic.column_id = c.column_id
LEFT JOIN sys.computed_columns cc ON cc.object_id = c.object_id AND cc.column_id = c.column_id
WHERE o.type IN ('U', 'V') AND o.is_ms_shipped = 0
ORDER BY 1, 2, c.column_id`
	return query(ctx, c.q, q, func(r *sql.Rows) (RawColumn, error) {
		var col RawColumn
		err := r.Scan(
			&col.Schema, &col.Table, &col.Name, &col.TypeName,
			&col.MaxLength, &col.Precision, &col.Scale,
			&col.Nullable, &col.IsIdentity, &col.Seed, &col.Increment,
			&col.IsComputed, &col.Computed, &col.Persisted, &col.IsView,
		)
		return col, err
	})
}

func (c *sqlCatalog) Indexes(ctx context.Context) ([]RawIndexColumn, error) {
	const q = `SELECT
	SCHEMA_NAME(t.schema_id),
	t.name,
	i.name,
	i.is_primary_key,
	i.is_unique_constraint,
	i.is_unique,
	ISNULL(i.filter_definition, ''),
	COL_NAME(ic.object_id, ic.column_id),
	ic.is_descending_key
FROM sys.indexes i
JOIN sys.tables t ON t.object_id = i.object_id
JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
WHERE t.is_ms_shipped = 0 AND i.name IS NOT NULL AND ic.is_included_column = 0
ORDER BY 1, 2, 3, ic.key_ordinal`
	return query(ctx, c.q, q, func(r *sql.Rows) (RawIndexColumn, error) {
		var ix RawIndexColumn
		err := r.Scan(
			&ix.Schema, &ix.Table, &ix.Index,
			&ix.IsPrimaryKey, &ix.IsUniqueConstraint, &ix.IsUnique,
			&ix.Filter, &ix.Column, &ix.Descending,
		)
		return ix, err
	})
}

func (c *sqlCatalog) ForeignKeys(ctx context.Context) ([]RawFKColumn, error) {
	const q = `SELECT
	SCHEMA_NAME(fk.schema_id),
	OBJECT_NAME(fk.parent_object_id),
	fk.name,
	COL_NAME(fkc.parent_object_id, fkc.parent_column_id),
	OBJECT_SCHEMA_NAME(fk.referenced_object_id),
	OBJECT_NAME(fk.referenced_object_id),
	COL_NAME(fkc.referenced_object_id, fkc.referenced_column_id),
	fk.delete_referential_action_desc,
	fk.update_referential_action_desc
FROM sys.foreign_keys fk
JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
ORDER BY 1, 2, 3, fkc.constraint_column_id`
	return query(ctx, c.q, q, func(r *sql.Rows) (RawFKColumn, error) {
		var fk RawFKColumn
		err := r.Scan(
			&fk.Schema, &fk.Table, &fk.Name, &fk.Column,
			&fk.SchemaTo, &fk.TableTo, &fk.ColumnTo,
			&fk.OnDelete, &fk.OnUpdate,
		)
		return fk, err
	})
}

func (c *sqlCatalog) Checks(ctx context.Context) ([]mssql.Check, error) {
	const q = `SELECT SCHEMA_NAME(cc.schema_id), OBJECT_NAME(cc.parent_object_id), cc.name, cc.definition
FROM sys.check_constraints cc
ORDER BY 1, 2, 3`
	return query(ctx, c.q, q, func(r *sql.Rows) (mssql.Check, error) {
		var ck mssql.Check
		err := r.Scan(&ck.Schema, &ck.Table, &ck.Name, &ck.Value)
		return ck, err
	})
}

func (c *sqlCatalog) Defaults(ctx context.Context) ([]RawDefault, error) {
	const q = `SELECT
	SCHEMA_NAME(dc.schema_id),
	OBJECT_NAME(dc.parent_object_id),
	dc.name,
	COL_NAME(dc.parent_object_id, dc.parent_column_id),
	dc.definition
FROM sys.default_constraints dc
ORDER BY 1, 2, 3`
	return query(ctx, c.q, q, func(r *sql.Rows) (RawDefault, error) {
		var d RawDefault
		err := r.Scan(&d.Schema, &d.Table, &d.Name, &d.Column, &d.Definition)
		return d, err
	})
}

func (c *sqlCatalog) Views(ctx context.Context) ([]RawView, error) {
	const q = `SELECT
	SCHEMA_NAME(v.schema_id),
	v.name,
	ISNULL(m.definition, ''),
	CAST(ISNULL(OBJECTPROPERTY(v.object_id, 'IsEncrypted'), 0) AS bit),
	CAST(ISNULL(m.is_schema_bound, 0) AS bit),
	v.has_opaque_metadata,
	v.with_check_option
FROM sys.views v
LEFT JOIN sys.sql_modules m ON m.object_id = v.object_id
WHERE v.is_ms_shipped = 0
ORDER BY 1, 2`
	return query(ctx, c.q, q, func(r *sql.Rows) (RawView, error) {
		var v RawView
		err := r.Scan(&v.Schema, &v.Name, &v.Definition, &v.Encrypted, &v.SchemaBound, &v.ViewMetadata, &v.CheckOption)
		return v, err
	})
}
