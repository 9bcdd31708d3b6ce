// Package runner applies journal migrations to a database and records them
// in the migrations table.
package runner

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/hlop3z/schemadiff/internal/alerr"
	"github.com/hlop3z/schemadiff/internal/convertor"
	"github.com/hlop3z/schemadiff/internal/snapshot"
)

// Execer runs one batch. *sql.DB, *sql.Conn and *sql.Tx satisfy it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Runner executes journal entries.
type Runner struct {
	exec    Execer
	history History
}

// New returns a runner that executes on exec and records in history.
func New(exec Execer, history History) *Runner {
	return &Runner{exec: exec, history: history}
}

// Checksum is the hex sha256 of a migration script.
func Checksum(script string) string {
	sum := sha256.Sum256([]byte(script))
	return hex.EncodeToString(sum[:])
}

// Pending returns the entries the database has not applied. An applied
// entry whose script changed since it ran is a conflict.
func (r *Runner) Pending(ctx context.Context, entries []snapshot.Entry) ([]snapshot.Entry, error) {
	if err := r.history.Ensure(ctx); err != nil {
		return nil, err
	}
	applied, err := r.history.Applied(ctx)
	if err != nil {
		return nil, err
	}
	checksums := make(map[string]string, len(applied))
	for _, a := range applied {
		checksums[a.Tag] = a.Checksum
	}

	var pending []snapshot.Entry
	for _, e := range entries {
		sum, ok := checksums[e.Tag()]
		if !ok {
			pending = append(pending, e)
			continue
		}
		delete(checksums, e.Tag())
		script, err := e.SQL()
		if err != nil {
			return nil, err
		}
		if Checksum(script) != sum {
			return nil, alerr.New(alerr.ErrMigrationConflict, "applied migration was modified").
				With("migration", e.Tag()).
				WithHelp("restore the original migration.sql or add a new migration")
		}
	}
	for tag := range checksums {
		slog.Warn("database has a migration missing from the journal", "tag", tag)
	}
	return pending, nil
}

// Apply runs every pending entry batch by batch and records it. It stops
// at the first failing batch; entries applied before it stay recorded.
func (r *Runner) Apply(ctx context.Context, entries []snapshot.Entry) ([]snapshot.Entry, error) {
	pending, err := r.Pending(ctx, entries)
	if err != nil {
		return nil, err
	}

	var done []snapshot.Entry
	for _, e := range pending {
		if err := r.applyOne(ctx, e); err != nil {
			return done, err
		}
		done = append(done, e)
	}
	return done, nil
}

func (r *Runner) applyOne(ctx context.Context, e snapshot.Entry) error {
	script, err := e.SQL()
	if err != nil {
		return err
	}

	start := time.Now()
	batches := convertor.Split(script)
	slog.Info("applying migration", "tag", e.Tag(), "batches", len(batches))
	for i, batch := range batches {
		if _, err := r.exec.ExecContext(ctx, batch); err != nil {
			return alerr.Wrap(alerr.ErrMigrationFailed, err, "migration failed").
				With("migration", e.Tag()).
				With("batch", i+1).
				WithSQL(batch)
		}
	}

	return r.history.Record(ctx, Applied{
		Tag:      e.Tag(),
		Checksum: Checksum(script),
		ExecTime: time.Since(start),
	})
}

// DryRun returns the batches Apply would execute.
func (r *Runner) DryRun(ctx context.Context, entries []snapshot.Entry) ([]string, error) {
	pending, err := r.Pending(ctx, entries)
	if err != nil {
		return nil, err
	}
	var batches []string
	for _, e := range pending {
		script, err := e.SQL()
		if err != nil {
			return nil, err
		}
		batches = append(batches, convertor.Split(script)...)
	}
	return batches, nil
}
