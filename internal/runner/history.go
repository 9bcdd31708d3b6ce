package runner

import (
	"context"
	"database/sql"
	"time"

	"github.com/hlop3z/schemadiff/internal/alerr"
	"github.com/hlop3z/schemadiff/internal/introspect"
	"github.com/hlop3z/schemadiff/internal/sqlgen"
)

// HistorySchema owns the migrations table.
const HistorySchema = "dbo"

// Applied is one row of the migrations table.
type Applied struct {
	Tag       string
	Checksum  string
	AppliedAt time.Time
	ExecTime  time.Duration
}

// History records which journal entries a database has applied.
type History interface {
	Ensure(ctx context.Context) error
	Applied(ctx context.Context) ([]Applied, error)
	Record(ctx context.Context, a Applied) error
}

// SQLHistory keeps the history in [dbo].[__schemadiff_migrations].
type SQLHistory struct {
	db *sql.DB
}

// NewSQLHistory returns the history stored in db.
func NewSQLHistory(db *sql.DB) *SQLHistory {
	return &SQLHistory{db: db}
}

func historyTable() string {
	return sqlgen.Qualified(HistorySchema, introspect.MigrationsTable)
}

// createHistorySQL returns the idempotent CREATE TABLE batch.
func createHistorySQL() string {
	b := sqlgen.New().
		Raw("IF OBJECT_ID(" + sqlgen.QuoteString(historyTable()) + ", 'U') IS NULL").Newline().
		CreateTable(HistorySchema, introspect.MigrationsTable).OpenParen().Newline()
	b.Indent().Column("tag", "nvarchar(255)").NotNull().Comma().Newline()
	b.Indent().Column("checksum", "varchar(64)").NotNull().Comma().Newline()
	b.Indent().Column("applied_at", "datetime2").NotNull().Default("SYSUTCDATETIME()").Comma().Newline()
	b.Indent().Column("exec_time_ms", "int").NotNull().Comma().Newline()
	b.Indent().Constraint(introspect.MigrationsTable + "_pkey").PrimaryKey("tag").Newline()
	return b.CloseParen().End().String()
}

// Ensure creates the migrations table if it does not exist.
func (h *SQLHistory) Ensure(ctx context.Context) error {
	q := createHistorySQL()
	if _, err := h.db.ExecContext(ctx, q); err != nil {
		return alerr.Wrap(alerr.ErrSQLExecution, err, "failed to create migrations table").WithSQL(q)
	}
	return nil
}

// Applied returns every recorded migration ordered by tag.
func (h *SQLHistory) Applied(ctx context.Context) ([]Applied, error) {
	q := "SELECT [tag], [checksum], [applied_at], [exec_time_ms] FROM " + historyTable() + " ORDER BY [tag]"
	rows, err := h.db.QueryContext(ctx, q)
	if err != nil {
		return nil, alerr.Wrap(alerr.ErrSQLExecution, err, "failed to query applied migrations").WithSQL(q)
	}
	defer rows.Close()

	var out []Applied
	for rows.Next() {
		var a Applied
		var ms int64
		if err := rows.Scan(&a.Tag, &a.Checksum, &a.AppliedAt, &ms); err != nil {
			return nil, alerr.Wrap(alerr.ErrSQLExecution, err, "failed to scan migration row")
		}
		a.ExecTime = time.Duration(ms) * time.Millisecond
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, alerr.Wrap(alerr.ErrSQLExecution, err, "error iterating migration rows")
	}
	return out, nil
}

// Record inserts a.
func (h *SQLHistory) Record(ctx context.Context, a Applied) error {
	q := "INSERT INTO " + historyTable() + " (" + sqlgen.Columns("tag", "checksum", "exec_time_ms") +
		") VALUES (" + sqlgen.Placeholders(3) + ")"
	if _, err := h.db.ExecContext(ctx, q, a.Tag, a.Checksum, a.ExecTime.Milliseconds()); err != nil {
		return alerr.Wrap(alerr.ErrSQLExecution, err, "failed to record migration").
			With("tag", a.Tag).
			WithSQL(q)
	}
	return nil
}
