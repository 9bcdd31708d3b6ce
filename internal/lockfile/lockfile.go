// Package lockfile provides read/write/verify for schemadiff.lock files.
// The lock file tracks the integrity of generated migration scripts using
// SHA-256 checksums, so hand edits to an applied migration are caught.
package lockfile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hlop3z/schemadiff/internal/alerr"
)

// FileName is the lock file name inside the migrations folder.
const FileName = "schemadiff.lock"

// Entry is one migration script and its checksum.
type Entry struct {
	Filename string // relative to the migrations folder, slash separated
	Checksum string
}

// LockFile is the parsed contents of a lock file.
type LockFile struct {
	Aggregate string  // SHA-256 of all individual checksums combined
	Entries   []Entry // Individual file checksums
}

// Read reads and parses a lock file. Returns nil if the file does not
// exist.
func Read(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, alerr.Wrap(alerr.ErrSnapshotRead, err, "failed to read lock file").With("path", path)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	lf := &LockFile{Aggregate: strings.TrimSpace(lines[0])}
	if lf.Aggregate == "" {
		return nil, alerr.New(alerr.ErrSnapshotCorrupt, "lock file is empty").With("path", path)
	}

	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			continue
		}
		lf.Entries = append(lf.Entries, Entry{
			Filename: strings.TrimSpace(parts[1]),
			Checksum: strings.TrimSpace(parts[0]),
		})
	}
	return lf, nil
}

// Write checksums every migration script under dir and writes the lock
// file there.
func Write(dir string) error {
	entries, err := computeEntries(dir)
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString(computeAggregate(entries) + "\n")
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("%s %s\n", e.Checksum, e.Filename))
	}

	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return alerr.Wrap(alerr.ErrSnapshotWrite, err, "failed to write lock file").With("path", path)
	}
	return nil
}

// Result holds detailed results of lock file verification.
type Result struct {
	Valid          bool     // Overall validity
	LockFileExists bool     // Whether lock file exists
	NewFiles       []string // Files on disk but not in lock
	RemovedFiles   []string // Files in lock but not on disk
	ModifiedFiles  []string // Files with checksum mismatches
}

// Verify compares the lock file in dir with the scripts on disk. A missing
// lock file is valid when there are no scripts yet.
func Verify(dir string) (*Result, error) {
	lf, err := Read(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}
	entries, err := computeEntries(dir)
	if err != nil {
		return nil, err
	}

	result := &Result{Valid: true, LockFileExists: lf != nil}
	if lf == nil {
		for _, e := range entries {
			result.NewFiles = append(result.NewFiles, e.Filename)
		}
		result.Valid = len(entries) == 0
		return result, nil
	}

	lockMap := make(map[string]string, len(lf.Entries))
	for _, e := range lf.Entries {
		lockMap[e.Filename] = e.Checksum
	}
	onDisk := make(map[string]bool, len(entries))
	for _, e := range entries {
		onDisk[e.Filename] = true
		expected, ok := lockMap[e.Filename]
		switch {
		case !ok:
			result.NewFiles = append(result.NewFiles, e.Filename)
		case expected != e.Checksum:
			result.ModifiedFiles = append(result.ModifiedFiles, e.Filename)
		}
	}
	for _, e := range lf.Entries {
		if !onDisk[e.Filename] {
			result.RemovedFiles = append(result.RemovedFiles, e.Filename)
		}
	}

	result.Valid = len(result.NewFiles)+len(result.ModifiedFiles)+len(result.RemovedFiles) == 0 &&
		computeAggregate(entries) == lf.Aggregate
	return result, nil
}

// Err converts a failed verification into an error, or nil when valid.
func (r *Result) Err() error {
	if r.Valid {
		return nil
	}
	e := alerr.New(alerr.ErrMigrationConflict, "migration scripts do not match the lock file")
	if len(r.ModifiedFiles) > 0 {
		e.With("modified", strings.Join(r.ModifiedFiles, ", "))
	}
	if len(r.NewFiles) > 0 {
		e.With("new", strings.Join(r.NewFiles, ", "))
	}
	if len(r.RemovedFiles) > 0 {
		e.With("removed", strings.Join(r.RemovedFiles, ", "))
	}
	return e.WithHelp("restore the original scripts or regenerate the migrations")
}

// computeEntries checksums every <entry>/migration.sql below dir.
func computeEntries(dir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, alerr.Wrap(alerr.ErrSnapshotRead, err, "failed to read migrations directory").With("path", dir)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		path := filepath.Join(dir, de.Name(), "migration.sql")
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, alerr.Wrap(alerr.ErrSnapshotRead, err, "failed to read migration").With("path", path)
		}
		sum := sha256.Sum256(data)
		entries = append(entries, Entry{
			Filename: de.Name() + "/migration.sql",
			Checksum: hex.EncodeToString(sum[:]),
		})
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.Filename, b.Filename)
	})
	return entries, nil
}

// computeAggregate hashes every individual checksum together.
func computeAggregate(entries []Entry) string {
	h := sha256.New()
	for _, e := range entries {
		h.Write([]byte(e.Checksum))
	}
	return hex.EncodeToString(h.Sum(nil))
}
