// Package vspace indexes the velocity distributions stored per population
// in a VLSV file.
//
// A population P stores its distributions in four arrays sharing one record
// order: CELLSWITHBLOCKS (the spatial cell of each distribution),
// BLOCKSPERCELL (how many velocity blocks each distribution has), BLOCKIDS
// (the block ids of all distributions, concatenated) and BLOCKVARIABLE
// (WID^3 values per block). Table locates the block run of one cell; VMesh
// turns block ids into velocity cell ids and coordinates.
package vspace

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-vlsv/internal/cellindex"
)

var (
	// ErrInvalidBlock is returned for block or velocity cell ids outside the
	// velocity mesh.
	ErrInvalidBlock = errors.New("invalid velocity block")
	// ErrNotFound is returned when no cell of a population stores a
	// distribution.
	ErrNotFound = errors.New("not found")
)

// Entry locates the blocks of one distribution inside BLOCKIDS and
// BLOCKVARIABLE.
type Entry struct {
	CellID uint64
	// Record is the position of the cell in CELLSWITHBLOCKS.
	Record int
	// BlockOffset is the index of the first block in BLOCKIDS.
	BlockOffset uint64
	Blocks      uint64
}

// Table maps spatial cell ids to their block runs for one population.
type Table struct {
	Population string

	cells   *cellindex.Index
	ids     []uint64
	offsets []uint64
}

// NewTable builds the table from CELLSWITHBLOCKS and BLOCKSPERCELL.
func NewTable(pop string, cells, blocksPerCell []uint64) (*Table, error) {
	if len(cells) != len(blocksPerCell) {
		return nil, fmt.Errorf("population %q: %d cells with blocks but %d block counts", pop, len(cells), len(blocksPerCell))
	}
	idx, err := cellindex.New(cells)
	if err != nil {
		return nil, fmt.Errorf("population %q: %w", pop, err)
	}
	offsets := make([]uint64, len(cells)+1)
	for i, n := range blocksPerCell {
		offsets[i+1] = offsets[i] + n
	}
	return &Table{Population: pop, cells: idx, ids: cells, offsets: offsets}, nil
}

// Lookup returns the block run of id. The second result is false when the
// cell stores no distribution for this population.
func (t *Table) Lookup(id uint64) (Entry, bool) {
	r, ok := t.cells.Lookup(id)
	if !ok {
		return Entry{}, false
	}
	return Entry{
		CellID:      id,
		Record:      r,
		BlockOffset: t.offsets[r],
		Blocks:      t.offsets[r+1] - t.offsets[r],
	}, true
}

// Cells returns the cells with a distribution in ascending order. The slice
// is shared and must not be modified.
func (t *Table) Cells() []uint64 {
	return t.cells.Sorted()
}

// Len returns the number of distributions.
func (t *Table) Len() int {
	return len(t.ids)
}

// TotalBlocks returns the length BLOCKIDS must have.
func (t *Table) TotalBlocks() uint64 {
	return t.offsets[len(t.offsets)-1]
}
