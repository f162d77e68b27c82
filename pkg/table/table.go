package table

import (
	"sort"

	"github.com/lintang-b-s/accessx/pkg/util"
)

// Locations is an attribute table keyed by location id: one row per origin
// or destination, one named numeric column per attribute (population,
// doctors, dentists, ...). Column order is irrelevant, row order is the id
// order given at construction.
type Locations struct {
	ids    []string
	index  map[string]int
	values map[string][]float64
}

func NewLocations(ids []string, values map[string][]float64) (*Locations, error) {
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, dup := index[id]; dup {
			return nil, util.WrapErrorf(nil, util.ErrDataIntegrity,
				"duplicate location id %s", id)
		}
		index[id] = i
	}
	for name, col := range values {
		if len(col) != len(ids) {
			return nil, util.WrapErrorf(nil, util.ErrConfiguration,
				"column %s has %d values for %d locations", name, len(col), len(ids))
		}
	}
	return &Locations{ids: ids, index: index, values: values}, nil
}

func (l *Locations) Len() int { return len(l.ids) }

// IDs returns the location ids in row order. Callers must not mutate the
// returned slice.
func (l *Locations) IDs() []string { return l.ids }

func (l *Locations) Has(id string) bool {
	_, ok := l.index[id]
	return ok
}

func (l *Locations) Index(id string) (int, bool) {
	i, ok := l.index[id]
	return i, ok
}

func (l *Locations) Columns() []string {
	names := make([]string, 0, len(l.values))
	for name := range l.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (l *Locations) HasColumn(name string) bool {
	_, ok := l.values[name]
	return ok
}

func (l *Locations) Column(name string) ([]float64, error) {
	col, ok := l.values[name]
	if !ok {
		return nil, util.WrapErrorf(nil, util.ErrConfiguration,
			"unknown column %s, have %v", name, l.Columns())
	}
	return col, nil
}

func (l *Locations) Value(id, column string) (float64, bool) {
	i, ok := l.index[id]
	if !ok {
		return 0, false
	}
	col, ok := l.values[column]
	if !ok {
		return 0, false
	}
	return col[i], true
}
