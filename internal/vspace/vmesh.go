package vspace

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/robert-malhotra/go-vlsv/internal/mesh"
)

// VMesh is the velocity mesh of one population: a uniform grid of blocks,
// each holding WID^3 velocity cells. Block ids and the cell index inside a
// block both run x fastest.
type VMesh struct {
	Population string
	// Blocks is the number of blocks per axis.
	Blocks [3]int
	// WID is the number of cells per block per axis.
	WID      [3]int
	Min, Max r3.Vec
}

// NewVMesh builds a velocity mesh from its descriptor, whose Cells count
// blocks and whose BlockSize is the block width.
func NewVMesh(d *mesh.Descriptor) (*VMesh, error) {
	if d.Kind != mesh.Velocity {
		return nil, fmt.Errorf("mesh %q is %s, not a velocity mesh", d.Name, d.Kind)
	}
	return &VMesh{Population: d.Name, Blocks: d.Cells, WID: d.BlockSize, Min: d.Min, Max: d.Max}, nil
}

// CellsPerBlock returns WID^3.
func (m *VMesh) CellsPerBlock() int {
	return m.WID[0] * m.WID[1] * m.WID[2]
}

// TotalBlocks returns the number of blocks in the mesh.
func (m *VMesh) TotalBlocks() uint64 {
	return uint64(m.Blocks[0]) * uint64(m.Blocks[1]) * uint64(m.Blocks[2])
}

// CellSize returns the edge lengths of one velocity cell.
func (m *VMesh) CellSize() r3.Vec {
	e := r3.Sub(m.Max, m.Min)
	return r3.Vec{
		X: e.X / float64(m.Blocks[0]*m.WID[0]),
		Y: e.Y / float64(m.Blocks[1]*m.WID[1]),
		Z: e.Z / float64(m.Blocks[2]*m.WID[2]),
	}
}

// CellID returns the velocity cell id of a local index inside a block.
func (m *VMesh) CellID(block uint64, local int) uint64 {
	return block*uint64(m.CellsPerBlock()) + uint64(local)
}

// Coordinates returns the centre of a velocity cell.
func (m *VMesh) Coordinates(vcell uint64) (r3.Vec, error) {
	n := uint64(m.CellsPerBlock())
	block, local := vcell/n, int(vcell%n)
	if block >= m.TotalBlocks() {
		return r3.Vec{}, fmt.Errorf("%w: velocity cell %d is in block %d of %d (population %q)",
			ErrInvalidBlock, vcell, block, m.TotalBlocks(), m.Population)
	}
	bx, by := uint64(m.Blocks[0]), uint64(m.Blocks[1])
	b := [3]int{int(block % bx), int((block / bx) % by), int(block / (bx * by))}
	l := [3]int{local % m.WID[0], (local / m.WID[0]) % m.WID[1], local / (m.WID[0] * m.WID[1])}

	s := m.CellSize()
	return r3.Vec{
		X: m.Min.X + (float64(b[0]*m.WID[0]+l[0])+0.5)*s.X,
		Y: m.Min.Y + (float64(b[1]*m.WID[1]+l[1])+0.5)*s.Y,
		Z: m.Min.Z + (float64(b[2]*m.WID[2]+l[2])+0.5)*s.Z,
	}, nil
}

// Expand turns a block list and its WID^3 values per block into velocity
// cell ids and values, ordered by ascending velocity cell id.
func (m *VMesh) Expand(blocks []uint64, values []float64) ([]uint64, []float64, error) {
	n := m.CellsPerBlock()
	if len(values) != len(blocks)*n {
		return nil, nil, fmt.Errorf("population %q: %d blocks need %d values, have %d",
			m.Population, len(blocks), len(blocks)*n, len(values))
	}
	order := make([]int, len(blocks))
	for i := range order {
		order[i] = i
		if blocks[i] >= m.TotalBlocks() {
			return nil, nil, fmt.Errorf("%w: block %d of %d (population %q)", ErrInvalidBlock, blocks[i], m.TotalBlocks(), m.Population)
		}
	}
	sort.Slice(order, func(a, b int) bool { return blocks[order[a]] < blocks[order[b]] })

	vcells := make([]uint64, 0, len(values))
	vals := make([]float64, 0, len(values))
	for _, i := range order {
		vals = append(vals, values[i*n:(i+1)*n]...)
		for local := 0; local < n; local++ {
			vcells = append(vcells, m.CellID(blocks[i], local))
		}
	}
	return vcells, vals, nil
}
