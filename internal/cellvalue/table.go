package cellvalue

import (
	"encoding/json"
	"sort"
)

// LinkTable is a peer table that link fields resolve imported values against
type LinkTable interface {
	ID() string
	Field(id string) (*Field, bool)
	// Search returns the ids of records whose primary field equals the
	// normalized value
	Search(fieldID string, value any) []string
}

// Record is a remote record with its raw field values keyed by field id
type Record struct {
	ID     string
	Fields map[string]any
}

// IndexedTable is an in-memory LinkTable indexed on chosen fields
type IndexedTable struct {
	id     string
	fields map[string]*Field
	index  map[string]map[string][]string // field id -> key -> record ids
	keys   []string
}

// NewIndexedTable normalizes the base values of the indexed fields and
// indexes records by them. Values that fail to normalize are left out.
func NewIndexedTable(r *Registry, s *Session, id string, fields []*Field, records []Record, indexed ...string) *IndexedTable {
	t := &IndexedTable{
		id:     id,
		fields: make(map[string]*Field, len(fields)),
		index:  make(map[string]map[string][]string, len(indexed)),
		keys:   indexed,
	}
	for _, f := range fields {
		t.fields[f.ID] = f
	}

	for _, fieldID := range indexed {
		f, ok := t.fields[fieldID]
		if !ok {
			continue
		}
		keys := make(map[string][]string)
		for _, rec := range records {
			raw, ok := rec.Fields[fieldID]
			if !ok {
				continue
			}
			v, err := r.ParseBaseValue(s, f.Type, f, raw)
			if err != nil || v == nil {
				continue
			}
			key := indexKey(v)
			keys[key] = append(keys[key], rec.ID)
		}
		t.index[fieldID] = keys
	}
	return t
}

func (t *IndexedTable) ID() string { return t.id }

// IndexedFields returns the ids of the searchable fields in index order
func (t *IndexedTable) IndexedFields() []string { return t.keys }

func (t *IndexedTable) Field(id string) (*Field, bool) {
	f, ok := t.fields[id]
	return f, ok
}

func (t *IndexedTable) Search(fieldID string, value any) []string {
	keys, ok := t.index[fieldID]
	if !ok || value == nil {
		return nil
	}
	ids := keys[indexKey(value)]
	out := make([]string, len(ids))
	copy(out, ids)
	sort.Strings(out)
	return out
}

// indexKey renders a normalized value canonically; int64(5) and 5.0 collide
func indexKey(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
