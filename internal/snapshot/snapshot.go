// Package snapshot persists schema snapshots and the migration journal.
//
// A snapshot is the flat entity list of a DDL plus the lineage needed to
// detect divergent histories:
//
//	{"version": "2", "dialect": "mssql", "id": uuid, "prevIds": [...], "ddl": [...], "renames": [...]}
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"sort"

	"github.com/cbergoon/merkletree"
	"github.com/google/uuid"

	"github.com/hlop3z/schemadiff/internal/alerr"
	"github.com/hlop3z/schemadiff/internal/entity"
	"github.com/hlop3z/schemadiff/internal/mssql"
)

const (
	// Version is the current snapshot format.
	Version = "2"
	// Dialect is the only dialect snapshots are written for.
	Dialect = "mssql"
	// OriginID is the parent of the first snapshot in a journal.
	OriginID = "00000000-0000-0000-0000-000000000000"
)

// Snapshot is a persisted schema state.
type Snapshot struct {
	Version string       `json:"version"`
	Dialect string       `json:"dialect"`
	ID      string       `json:"id"`
	PrevIDs []string     `json:"prevIds"`
	DDL     []entity.Row `json:"ddl"`
	Renames []string     `json:"renames"`
}

// Empty returns the snapshot of an empty database.
func Empty() *Snapshot {
	return &Snapshot{
		Version: Version,
		Dialect: Dialect,
		ID:      OriginID,
		PrevIDs: []string{},
		DDL:     []entity.Row{},
		Renames: []string{},
	}
}

// New captures ddl as the successor of prev.
func New(ddl *mssql.DDL, prev *Snapshot, renames []string) *Snapshot {
	if prev == nil {
		prev = Empty()
	}
	if renames == nil {
		renames = []string{}
	}
	return &Snapshot{
		Version: Version,
		Dialect: Dialect,
		ID:      uuid.NewString(),
		PrevIDs: []string{prev.ID},
		DDL:     ddl.Entities(),
		Renames: renames,
	}
}

// DDLOf rebuilds the store the snapshot was taken from.
func (s *Snapshot) DDLOf() (*mssql.DDL, error) {
	ddl, err := mssql.FromEntities(s.DDL)
	if err != nil {
		return nil, alerr.Wrap(alerr.ErrSnapshotCorrupt, err, "snapshot entities do not form a valid schema").
			With("id", s.ID)
	}
	return ddl, nil
}

// Parse decodes a snapshot, upgrading older versions.
func Parse(data []byte) (*Snapshot, error) {
	var probe struct {
		Version string `json:"version"`
		Dialect string `json:"dialect"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, alerr.Wrap(alerr.ErrSnapshotCorrupt, err, "snapshot is not valid JSON")
	}
	if probe.Dialect != "" && probe.Dialect != Dialect {
		return nil, alerr.New(alerr.EUnsupportedDialect, "snapshot was written for another dialect").
			With("dialect", probe.Dialect)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, alerr.Wrap(alerr.ErrSnapshotCorrupt, err, "snapshot does not match the expected layout")
	}

	switch probe.Version {
	case Version:
		return &s, nil
	case "1":
		return UpToV2(&s)
	default:
		return nil, alerr.New(alerr.ErrSnapshotVersion, "unsupported snapshot version").
			With("version", probe.Version).
			WithHelp("upgrade schemadiff or regenerate the snapshot")
	}
}

// Load reads a snapshot file.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, alerr.Wrap(alerr.ErrSnapshotRead, err, "failed to read snapshot").With("path", path)
	}
	s, err := Parse(data)
	if err != nil {
		var ae *alerr.Error
		if errors.As(err, &ae) {
			return nil, ae.With("path", path)
		}
		return nil, err
	}
	return s, nil
}

// Save writes the snapshot as indented JSON.
func (s *Snapshot) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return alerr.Wrap(alerr.ErrSnapshotWrite, err, "failed to encode snapshot")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return alerr.Wrap(alerr.ErrSnapshotWrite, err, "failed to write snapshot").With("path", path)
	}
	return nil
}

// UpToV2 upgrades a version 1 snapshot. Every entity is pushed into a fresh
// store; index columns, plain names in version 1, become
// {value, isExpression: false}.
func UpToV2(v1 *Snapshot) (*Snapshot, error) {
	ddl := mssql.CreateDDL()
	store := ddl.Store()
	for _, row := range v1.DDL {
		row = row.Clone()
		typ := row.Str(entity.FieldEntityType)
		if typ == mssql.EntityIndexes {
			row["columns"] = upgradeIndexColumns(row["columns"])
		}
		c := store.Collection(typ)
		if c == nil {
			return nil, alerr.New(alerr.ErrSnapshotCorrupt, "unknown entity type in version 1 snapshot").
				With("entityType", typ)
		}
		delete(row, entity.FieldEntityType)
		if res, err := c.Push(row); err != nil {
			return nil, alerr.Wrap(alerr.ErrSnapshotCorrupt, err, "invalid entity in version 1 snapshot")
		} else if res.Status != entity.StatusOK {
			return nil, alerr.New(alerr.ErrSnapshotCorrupt, "duplicate entity in version 1 snapshot").
				With("entityType", typ).
				With("key", entity.KeyOf(row).String())
		}
	}

	prev := v1.PrevIDs
	if prev == nil {
		prev = []string{}
	}
	renames := v1.Renames
	if renames == nil {
		renames = []string{}
	}
	return &Snapshot{
		Version: Version,
		Dialect: Dialect,
		ID:      v1.ID,
		PrevIDs: prev,
		DDL:     ddl.Entities(),
		Renames: renames,
	}, nil
}

func upgradeIndexColumns(v any) []entity.Row {
	var out []entity.Row
	switch cols := v.(type) {
	case []any:
		for _, c := range cols {
			switch c := c.(type) {
			case string:
				out = append(out, entity.Row{"value": c, "isExpression": false})
			case map[string]any:
				out = append(out, entity.Row{"value": c["value"], "isExpression": false})
			}
		}
	case []string:
		for _, c := range cols {
			out = append(out, entity.Row{"value": c, "isExpression": false})
		}
	}
	if out == nil {
		out = []entity.Row{}
	}
	return out
}

// -----------------------------------------------------------------------------
// Fingerprint
// -----------------------------------------------------------------------------

// entityContent implements merkletree.Content for one serialized entity.
type entityContent struct {
	data string
}

func (e entityContent) CalculateHash() ([]byte, error) {
	h := sha256.Sum256([]byte(e.data))
	return h[:], nil
}

func (e entityContent) Equals(other merkletree.Content) (bool, error) {
	o, ok := other.(entityContent)
	if !ok {
		return false, nil
	}
	return e.data == o.data, nil
}

// Fingerprint is the merkle root over the sorted entity JSON. Two snapshots
// with the same entities share a fingerprint regardless of id or order.
func (s *Snapshot) Fingerprint() (string, error) {
	if len(s.DDL) == 0 {
		return emptyHash(), nil
	}

	encoded := make([]string, 0, len(s.DDL))
	for _, row := range s.DDL {
		data, err := json.Marshal(row)
		if err != nil {
			return "", alerr.Wrap(alerr.ErrSnapshotCorrupt, err, "failed to encode entity")
		}
		encoded = append(encoded, string(data))
	}
	sort.Strings(encoded)

	contents := make([]merkletree.Content, len(encoded))
	for i, e := range encoded {
		contents[i] = entityContent{data: e}
	}
	tree, err := merkletree.NewTree(contents)
	if err != nil {
		return "", alerr.Wrap(alerr.EInternalError, err, "failed to build merkle tree")
	}
	return hex.EncodeToString(tree.MerkleRoot()), nil
}

func emptyHash() string {
	h := sha256.Sum256(nil)
	return hex.EncodeToString(h[:])
}
