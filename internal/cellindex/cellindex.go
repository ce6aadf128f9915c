// Package cellindex maps the cell ids stored in a VLSV file to the record
// positions of their values.
//
// An Index is a dense arena of two parallel slices sorted by id, built once
// per file. Lookups are a binary search.
package cellindex

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownCellID is returned for ids the file does not store.
	ErrUnknownCellID = errors.New("unknown cell id")
	// ErrDuplicateCellID is returned when an id array repeats an id.
	ErrDuplicateCellID = errors.New("duplicate cell id")
)

// Index maps cell ids to record positions.
type Index struct {
	ids     []uint64
	records []int
}

// New builds an index over ids, where ids[i] is the cell of record i.
func New(ids []uint64) (*Index, error) {
	n := len(ids)
	x := &Index{
		ids:     make([]uint64, n),
		records: make([]int, n),
	}
	for i := range x.records {
		x.records[i] = i
	}
	sort.Slice(x.records, func(a, b int) bool {
		return ids[x.records[a]] < ids[x.records[b]]
	})
	for i, r := range x.records {
		x.ids[i] = ids[r]
		if i > 0 && x.ids[i] == x.ids[i-1] {
			return nil, fmt.Errorf("%w: %d at records %d and %d", ErrDuplicateCellID, x.ids[i], x.records[i-1], r)
		}
	}
	return x, nil
}

// Len returns the number of stored ids.
func (x *Index) Len() int {
	return len(x.ids)
}

// Lookup returns the record position of id.
func (x *Index) Lookup(id uint64) (int, bool) {
	i := sort.Search(len(x.ids), func(i int) bool { return x.ids[i] >= id })
	if i == len(x.ids) || x.ids[i] != id {
		return 0, false
	}
	return x.records[i], true
}

// Contains reports whether id is stored.
func (x *Index) Contains(id uint64) bool {
	_, ok := x.Lookup(id)
	return ok
}

// Sorted returns the stored ids in ascending order. The slice is shared and
// must not be modified.
func (x *Index) Sorted() []uint64 {
	return x.ids
}

// Permutation returns the record positions in ascending id order: record
// Permutation()[i] holds the i-th smallest id. The slice is shared and
// must not be modified.
func (x *Index) Permutation() []int {
	return x.records
}

// Identity reports whether records are already in ascending id order.
func (x *Index) Identity() bool {
	for i, r := range x.records {
		if r != i {
			return false
		}
	}
	return true
}

// Max returns the largest stored id, or 0 for an empty index.
func (x *Index) Max() uint64 {
	if len(x.ids) == 0 {
		return 0
	}
	return x.ids[len(x.ids)-1]
}

// Records resolves every id to its record position, in the order given.
func (x *Index) Records(ids []uint64) ([]int, error) {
	out := make([]int, len(ids))
	for i, id := range ids {
		r, ok := x.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownCellID, id)
		}
		out[i] = r
	}
	return out, nil
}
