package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/hlop3z/schemadiff/internal/alerr"
	"github.com/hlop3z/schemadiff/internal/lockfile"
)

// File names inside a journal entry folder.
const (
	SnapshotFile  = "snapshot.json"
	MigrationFile = "migration.sql"
)

var (
	entryPattern = regexp.MustCompile(`^(\d{4})_(.+)$`)
	nameCleaner  = regexp.MustCompile(`[^a-z0-9]+`)
)

// Entry is one migration folder: <dir>/<NNNN>_<name>/.
type Entry struct {
	Index int
	Name  string
	Dir   string
}

// Tag returns the folder name.
func (e Entry) Tag() string {
	return filepath.Base(e.Dir)
}

// Snapshot loads the entry's snapshot.
func (e Entry) Snapshot() (*Snapshot, error) {
	return Load(filepath.Join(e.Dir, SnapshotFile))
}

// SQL reads the entry's migration script.
func (e Entry) SQL() (string, error) {
	path := filepath.Join(e.Dir, MigrationFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", alerr.Wrap(alerr.ErrSnapshotRead, err, "failed to read migration").With("path", path)
	}
	return string(data), nil
}

// Journal is the migrations folder.
type Journal struct {
	Dir string
}

// Open returns the journal rooted at dir. The folder is created on the
// first Write.
func Open(dir string) *Journal {
	return &Journal{Dir: dir}
}

// Entries lists the migration folders in index order. Anything that does
// not look like <NNNN>_<name> is ignored.
func (j *Journal) Entries() ([]Entry, error) {
	des, err := os.ReadDir(j.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, alerr.Wrap(alerr.ErrSnapshotRead, err, "failed to read migrations folder").With("path", j.Dir)
	}

	var entries []Entry
	for _, de := range des {
		if !de.IsDir() {
			continue
		}
		m := entryPattern.FindStringSubmatch(de.Name())
		if m == nil {
			continue
		}
		idx, _ := strconv.Atoi(m[1])
		entries = append(entries, Entry{Index: idx, Name: m[2], Dir: filepath.Join(j.Dir, de.Name())})
	}
	slices.SortFunc(entries, func(a, b Entry) int { return a.Index - b.Index })
	return entries, nil
}

// Latest returns the newest snapshot, or Empty when the journal has none.
func (j *Journal) Latest() (*Snapshot, error) {
	entries, err := j.Entries()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return Empty(), nil
	}
	return entries[len(entries)-1].Snapshot()
}

// Verify checks that every snapshot descends from the one before it and
// that no migration script was edited after generation.
func (j *Journal) Verify() error {
	entries, err := j.Entries()
	if err != nil {
		return err
	}

	prev := OriginID
	for _, e := range entries {
		s, err := e.Snapshot()
		if err != nil {
			return err
		}
		if !slices.Contains(s.PrevIDs, prev) {
			return alerr.New(alerr.ErrMigrationConflict, "migration does not descend from the previous one").
				With("migration", e.Tag()).
				With("expected_parent", prev).
				With("prevIds", strings.Join(s.PrevIDs, ", ")).
				WithHelp("two branches generated migrations concurrently; regenerate the later one")
		}
		prev = s.ID
	}

	res, err := lockfile.Verify(j.Dir)
	if err != nil {
		return err
	}
	return res.Err()
}

// Write stores a new entry after the latest one and refreshes the lock
// file.
func (j *Journal) Write(name string, snap *Snapshot, sql string) (Entry, error) {
	entries, err := j.Entries()
	if err != nil {
		return Entry{}, err
	}
	next := 0
	if len(entries) > 0 {
		next = entries[len(entries)-1].Index + 1
	}

	name = cleanName(name)
	e := Entry{
		Index: next,
		Name:  name,
		Dir:   filepath.Join(j.Dir, fmt.Sprintf("%04d_%s", next, name)),
	}
	if err := os.MkdirAll(e.Dir, 0755); err != nil {
		return Entry{}, alerr.Wrap(alerr.ErrSnapshotWrite, err, "failed to create migration folder").With("path", e.Dir)
	}
	if err := snap.Save(filepath.Join(e.Dir, SnapshotFile)); err != nil {
		return Entry{}, err
	}
	path := filepath.Join(e.Dir, MigrationFile)
	if err := os.WriteFile(path, []byte(sql), 0644); err != nil {
		return Entry{}, alerr.Wrap(alerr.ErrSnapshotWrite, err, "failed to write migration").With("path", path)
	}
	if err := lockfile.Write(j.Dir); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// cleanName turns free text into a folder-safe slug.
func cleanName(name string) string {
	name = nameCleaner.ReplaceAllString(strings.ToLower(name), "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return "migration"
	}
	return name
}
