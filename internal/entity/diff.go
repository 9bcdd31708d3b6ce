package entity

// DiffType tags a diff record.
type DiffType string

const (
	DiffCreate DiffType = "create"
	DiffDrop   DiffType = "drop"
	DiffAlter  DiffType = "alter"
)

// Mode selects which record kinds a diff produces.
type Mode int

const (
	ModeAll Mode = iota
	ModeCreate
	ModeDrop
	ModeCreateDrop
	ModeAlter
)

func (m Mode) creates() bool { return m == ModeAll || m == ModeCreate || m == ModeCreateDrop }
func (m Mode) drops() bool   { return m == ModeAll || m == ModeDrop || m == ModeCreateDrop }
func (m Mode) alters() bool  { return m == ModeAll || m == ModeAlter }

// Change is the before and after value of one altered field.
type Change struct {
	From any
	To   any
}

// Record is one structural difference. Create and drop records carry the
// entity in Row; alter records carry the changed fields in Changes and the
// full snapshots in Left and Right.
type Record struct {
	Type       DiffType
	EntityType string
	Row        Row
	Changes    map[string]Change
	Left       Row
	Right      Row
}

// Entity returns the row the record is about: the created or dropped row,
// or the right-hand snapshot of an alter.
func (r Record) Entity() Row {
	if r.Type == DiffAlter {
		return r.Right
	}
	return r.Row
}

// ignoredFields are not compared when building alter records.
var ignoredFields = map[string]bool{
	FieldEntityType: true,
	FieldName:       true,
	FieldSchema:     true,
	FieldTable:      true,
}

// Diff compares the rows of one collection (or every row when collection
// is "") between two stores. Drops come first, then creates, then alters,
// each in insertion order.
func Diff(oldDB, newDB *Store, collection string, mode Mode) []Record {
	left := rowsOf(oldDB, collection)
	right := rowsOf(newDB, collection)

	rightByKey := make(map[string]Row, len(right))
	for _, r := range right {
		rightByKey[KeyOf(r).String()] = r
	}
	leftByKey := make(map[string]Row, len(left))
	for _, r := range left {
		leftByKey[KeyOf(r).String()] = r
	}

	var drops, creates, alters []Record
	for _, l := range left {
		key := KeyOf(l).String()
		r, ok := rightByKey[key]
		if !ok {
			if mode.drops() {
				drops = append(drops, Record{Type: DiffDrop, EntityType: l.Type(), Row: l})
			}
			continue
		}
		if !mode.alters() {
			continue
		}
		if changes := changedFields(l, r); len(changes) > 0 {
			alters = append(alters, Record{
				Type:       DiffAlter,
				EntityType: l.Type(),
				Changes:    changes,
				Left:       l,
				Right:      r,
			})
		}
	}
	if mode.creates() {
		for _, r := range right {
			if _, ok := leftByKey[KeyOf(r).String()]; !ok {
				creates = append(creates, Record{Type: DiffCreate, EntityType: r.Type(), Row: r})
			}
		}
	}

	out := make([]Record, 0, len(drops)+len(creates)+len(alters))
	out = append(out, drops...)
	out = append(out, creates...)
	return append(out, alters...)
}

// DiffAll returns creates, drops and alters.
func DiffAll(oldDB, newDB *Store, collection string) []Record {
	return Diff(oldDB, newDB, collection, ModeAll)
}

// Creates returns only create records.
func Creates(oldDB, newDB *Store, collection string) []Record {
	return Diff(oldDB, newDB, collection, ModeCreate)
}

// Drops returns only drop records.
func Drops(oldDB, newDB *Store, collection string) []Record {
	return Diff(oldDB, newDB, collection, ModeDrop)
}

// Alters returns only alter records.
func Alters(oldDB, newDB *Store, collection string) []Record {
	return Diff(oldDB, newDB, collection, ModeAlter)
}

func rowsOf(s *Store, collection string) []Row {
	if collection == "" {
		return s.Entities().List(nil)
	}
	c := s.Collection(collection)
	if c == nil {
		return nil
	}
	return c.List(nil)
}

func changedFields(l, r Row) map[string]Change {
	var changes map[string]Change
	for _, k := range unionKeys(l, r) {
		if ignoredFields[k] {
			continue
		}
		if IsEqual(l[k], r[k]) {
			continue
		}
		if changes == nil {
			changes = make(map[string]Change)
		}
		changes[k] = Change{From: l[k], To: r[k]}
	}
	return changes
}
