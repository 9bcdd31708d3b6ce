package entity

import (
	"github.com/hlop3z/schemadiff/internal/alerr"
)

// Status is the outcome of a push or update.
type Status string

const (
	// StatusOK means the operation was applied.
	StatusOK Status = "OK"
	// StatusConflict means the operation would break composite key
	// uniqueness and nothing was changed.
	StatusConflict Status = "CONFLICT"
)

// PushResult is returned by Push. On conflict Data is the existing row.
type PushResult struct {
	Status Status
	Data   Row
}

// UpdateResult is returned by Update. On success Data holds the updated
// rows; on conflict it holds every row an updated row would collide with.
type UpdateResult struct {
	Status Status
	Data   []Row
}

// Mapper rewrites a value during Update. For array fields it is applied to
// each element.
type Mapper func(v any) any

// Update describes a batch update.
type Update struct {
	Set   map[string]any // literal values or Mapper
	Where Filter
}

// Store holds entities of every declared type in one insertion-ordered
// sequence.
type Store struct {
	types       []*typeInfo
	byName      map[string]*typeInfo
	rows        []Row
	collections map[string]*Collection
	all         *Collection
}

// New creates a store for the definition.
func New(def Definition) (*Store, error) {
	infos, err := def.compile()
	if err != nil {
		return nil, err
	}
	s := &Store{
		types:       infos,
		byName:      make(map[string]*typeInfo, len(infos)),
		collections: make(map[string]*Collection, len(infos)),
	}
	for _, info := range infos {
		s.byName[info.name] = info
		s.collections[info.name] = &Collection{store: s, info: info}
	}
	s.all = &Collection{store: s}
	return s, nil
}

// MustNew is like New but panics on an invalid definition.
func MustNew(def Definition) *Store {
	s, err := New(def)
	if err != nil {
		panic(err)
	}
	return s
}

// Collection returns the facade for one entity type, or nil.
func (s *Store) Collection(entityType string) *Collection {
	return s.collections[entityType]
}

// Entities returns the facade over every row of every type.
func (s *Store) Entities() *Collection {
	return s.all
}

// Types returns the declared entity type names in declaration order.
func (s *Store) Types() []string {
	names := make([]string, len(s.types))
	for i, t := range s.types {
		names[i] = t.name
	}
	return names
}

// Collection is the per-type read/write facade. A collection without a
// type operates over all rows.
type Collection struct {
	store *Store
	info  *typeInfo
}

// EntityType returns the type name, or "" for the umbrella collection.
func (c *Collection) EntityType() string {
	if c.info == nil {
		return ""
	}
	return c.info.name
}

func (c *Collection) scope(f Filter) Filter {
	if c.info == nil {
		return f
	}
	return f.with(FieldEntityType, c.info.name)
}

func (c *Collection) typeFor(r Row) (*typeInfo, error) {
	if c.info != nil {
		return c.info, nil
	}
	info, ok := c.store.byName[r.Type()]
	if !ok {
		return nil, alerr.New(alerr.ErrSchemaInvalid, "unknown entity type").
			With("type", r.Type())
	}
	return info, nil
}

// Push inserts a row. The default uniqueness check is the composite key;
// uniques narrows it to the given fields within the same type.
func (c *Collection) Push(in Row, uniques ...string) (PushResult, error) {
	info, err := c.typeFor(in)
	if err != nil {
		return PushResult{}, err
	}
	row := info.normalizeRow(in)

	var existing Row
	if len(uniques) > 0 {
		f := Filter{FieldEntityType: info.name}
		for _, u := range uniques {
			f[u] = row[u]
		}
		existing = c.store.find(f)
	} else {
		key := KeyOf(row).String()
		for _, r := range c.store.rows {
			if r.Type() == info.name && KeyOf(r).String() == key {
				existing = r
				break
			}
		}
	}
	if existing != nil {
		return PushResult{Status: StatusConflict, Data: existing.Clone()}, nil
	}
	c.store.rows = append(c.store.rows, row)
	return PushResult{Status: StatusOK, Data: row.Clone()}, nil
}

func (s *Store) find(f Filter) Row {
	for _, r := range s.rows {
		if f.Match(r) {
			return r
		}
	}
	return nil
}

// List returns copies of the matching rows in insertion order.
func (c *Collection) List(f Filter) []Row {
	f = c.scope(f)
	var out []Row
	for _, r := range c.store.rows {
		if f.Match(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

// One returns the first matching row, or nil.
func (c *Collection) One(f Filter) Row {
	if r := c.store.find(c.scope(f)); r != nil {
		return r.Clone()
	}
	return nil
}

// Update applies the batch. If any updated row would collide with another
// row on its composite key, nothing is changed and the colliding rows are
// returned with StatusConflict.
func (c *Collection) Update(u Update) UpdateResult {
	where := c.scope(u.Where)

	type pending struct {
		index int
		row   Row
	}
	var updates []pending
	for i, r := range c.store.rows {
		if !where.Match(r) {
			continue
		}
		next := r.Clone()
		for field, v := range u.Set {
			switch m := v.(type) {
			case Mapper:
				next[field] = applyMapper(next[field], m)
			case func(any) any:
				next[field] = applyMapper(next[field], m)
			default:
				next[field] = cloneValue(v)
			}
		}
		updates = append(updates, pending{index: i, row: next})
	}
	if len(updates) == 0 {
		return UpdateResult{Status: StatusOK}
	}

	// Prospective state: rows in the batch take their new values.
	prospective := make([]Row, len(c.store.rows))
	copy(prospective, c.store.rows)
	for _, p := range updates {
		prospective[p.index] = p.row
	}

	var conflicts []Row
	seen := make(map[int]bool)
	for _, p := range updates {
		key := KeyOf(p.row).String()
		for j, other := range prospective {
			if j == p.index || seen[j] {
				continue
			}
			if other.Type() != p.row.Type() {
				continue
			}
			if KeyOf(other).String() == key {
				seen[j] = true
				conflicts = append(conflicts, other.Clone())
			}
		}
	}
	if len(conflicts) > 0 {
		return UpdateResult{Status: StatusConflict, Data: conflicts}
	}

	out := make([]Row, 0, len(updates))
	for _, p := range updates {
		c.store.rows[p.index] = p.row
		out = append(out, p.row.Clone())
	}
	return UpdateResult{Status: StatusOK, Data: out}
}

func applyMapper(v any, m Mapper) any {
	switch l := v.(type) {
	case []string:
		out := make([]string, 0, len(l))
		for _, e := range l {
			if s, ok := m(e).(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []Row:
		out := make([]Row, 0, len(l))
		for _, e := range l {
			if r, ok := m(e.Clone()).(Row); ok {
				out = append(out, r)
			}
		}
		return out
	default:
		return m(v)
	}
}

// Delete removes the matching rows and returns them. A nil filter removes
// every row of the collection.
func (c *Collection) Delete(f Filter) []Row {
	f = c.scope(f)
	var removed []Row
	kept := c.store.rows[:0]
	for _, r := range c.store.rows {
		if f.Match(r) {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	for i := len(kept); i < len(c.store.rows); i++ {
		c.store.rows[i] = nil
	}
	c.store.rows = kept
	return removed
}

// Validate type-checks arbitrary data against the collection's type. The
// umbrella collection routes by the data's entityType.
func (c *Collection) Validate(data any) bool {
	info := c.info
	if info == nil {
		r := asObject(data)
		if r == nil {
			return false
		}
		var ok bool
		if info, ok = c.store.byName[r.Type()]; !ok {
			return false
		}
	}
	return info.validateRow(data)
}

// HasDiff reports whether an alter record still carries a changed field.
func (c *Collection) HasDiff(rec Record) bool {
	return len(rec.Changes) > 0
}

// Len returns the number of rows in the collection.
func (c *Collection) Len() int {
	if c.info == nil {
		return len(c.store.rows)
	}
	n := 0
	for _, r := range c.store.rows {
		if r.Type() == c.info.name {
			n++
		}
	}
	return n
}
