// Package mesh describes VLSV meshes and implements the cell-id arithmetic
// of the adaptively refined (DCCRG) spatial grid.
//
// Cell ids are 1-based and unique across refinement levels. Level 0 holds
// the base grid; every cell of level L splits into 8 children on level L+1,
// so level L holds base*8^L ids directly after those of level L-1. Within a
// level, ids run x fastest, then y, then z.
package mesh

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrMissingParameter is returned when a descriptor cannot be derived.
	ErrMissingParameter = errors.New("missing parameter")
	// ErrInvalidCellID is returned for ids outside the mesh id range.
	ErrInvalidCellID = errors.New("invalid cell id")
	// ErrOutOfDomain is returned for points outside [Min, Max).
	ErrOutOfDomain = errors.New("point outside domain")
	// ErrNoCell is returned when no stored cell covers a point.
	ErrNoCell = errors.New("no stored cell covers point")
	// ErrInvalidMesh is returned for inconsistent geometry.
	ErrInvalidMesh = errors.New("invalid mesh geometry")
)

// maxSupportedLevel bounds refinement so every id fits in a uint64.
const maxSupportedLevel = 20

// Kind distinguishes the meshes stored in a VLSV file.
type Kind int

const (
	// DCCRG is the adaptively refined spatial grid addressed by cell id.
	DCCRG Kind = iota
	// FieldSolver is the uniform grid stored in implicit grid order.
	FieldSolver
	// Velocity is a population's velocity-space block mesh.
	Velocity
)

func (k Kind) String() string {
	switch k {
	case DCCRG:
		return "dccrg"
	case FieldSolver:
		return "fsgrid"
	case Velocity:
		return "velocity"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Descriptor is the geometry of one mesh.
type Descriptor struct {
	Name string
	Kind Kind

	// Min and Max are the domain bounds.
	Min, Max r3.Vec
	// Cells is the number of base (level 0) cells per axis.
	Cells [3]int
	// BlockSize is the number of cells per block per axis. It is 1 for
	// spatial meshes and the block width for velocity meshes.
	BlockSize [3]int
	// MaxLevel is the deepest refinement level.
	MaxLevel int
	// Periodic marks periodic axes.
	Periodic [3]bool

	// CellsPerLevel[L] is the number of ids on level L.
	CellsPerLevel []uint64
	// LevelStart[L] is the number of ids on all levels below L. It has
	// MaxLevel+2 entries; the last is the total id count.
	LevelStart []uint64
}

// New validates the geometry and derives the per-level tables.
func New(name string, kind Kind, min, max r3.Vec, cells [3]int, maxLevel int) (*Descriptor, error) {
	d := &Descriptor{
		Name:      name,
		Kind:      kind,
		Min:       min,
		Max:       max,
		Cells:     cells,
		BlockSize: [3]int{1, 1, 1},
		MaxLevel:  maxLevel,
	}
	for a := 0; a < 3; a++ {
		if cells[a] <= 0 {
			return nil, fmt.Errorf("%w: mesh %q has %d cells on axis %s", ErrInvalidMesh, name, cells[a], Axis(a))
		}
		if !(Comp(max, Axis(a)) > Comp(min, Axis(a))) {
			return nil, fmt.Errorf("%w: mesh %q has empty extent on axis %s", ErrInvalidMesh, name, Axis(a))
		}
	}
	if maxLevel < 0 || maxLevel > maxSupportedLevel {
		return nil, fmt.Errorf("%w: mesh %q has max refinement level %d", ErrInvalidMesh, name, maxLevel)
	}

	base := uint64(cells[0]) * uint64(cells[1]) * uint64(cells[2])
	d.CellsPerLevel = make([]uint64, maxLevel+1)
	d.LevelStart = make([]uint64, maxLevel+2)
	n := base
	for l := 0; l <= maxLevel; l++ {
		d.CellsPerLevel[l] = n
		sum, carry := bits.Add64(d.LevelStart[l], n, 0)
		if carry != 0 {
			return nil, fmt.Errorf("%w: mesh %q id range overflows at level %d", ErrInvalidMesh, name, l)
		}
		d.LevelStart[l+1] = sum
		hi, lo := bits.Mul64(n, 8)
		if hi != 0 && l < maxLevel {
			return nil, fmt.Errorf("%w: mesh %q id range overflows at level %d", ErrInvalidMesh, name, l+1)
		}
		n = lo
	}
	return d, nil
}

// FromParameters builds a descriptor from the scalar parameters older
// files carry (xcells_ini, xmin, xmax and their y and z counterparts).
func FromParameters(name string, kind Kind, lookup func(string) (float64, bool), maxLevel int) (*Descriptor, error) {
	get := func(p string) (float64, error) {
		v, ok := lookup(p)
		if !ok {
			return 0, fmt.Errorf("%w: %q (mesh %q)", ErrMissingParameter, p, name)
		}
		return v, nil
	}

	var (
		cells    [3]int
		min, max [3]float64
	)
	for a, axis := range []string{"x", "y", "z"} {
		n, err := get(axis + "cells_ini")
		if err != nil {
			return nil, err
		}
		if n != math.Trunc(n) || n < 1 {
			return nil, fmt.Errorf("%w: %scells_ini is %g", ErrInvalidMesh, axis, n)
		}
		cells[a] = int(n)
		if min[a], err = get(axis + "min"); err != nil {
			return nil, err
		}
		if max[a], err = get(axis + "max"); err != nil {
			return nil, err
		}
	}
	return New(name, kind, r3.Vec{X: min[0], Y: min[1], Z: min[2]}, r3.Vec{X: max[0], Y: max[1], Z: max[2]}, cells, maxLevel)
}

// FromBBox builds a descriptor from a MESH_BBOX array (cells per axis
// followed by block size per axis) and the node coordinates of each axis.
// The first and last node of an axis are the domain bounds.
func FromBBox(name string, kind Kind, bbox []uint64, nodes [3][]float64, maxLevel int) (*Descriptor, error) {
	if len(bbox) < 6 {
		return nil, fmt.Errorf("%w: mesh %q bounding box has %d values, want 6", ErrInvalidMesh, name, len(bbox))
	}
	var (
		cells, block [3]int
		min, max     [3]float64
	)
	for a := 0; a < 3; a++ {
		if bbox[a] == 0 || bbox[a] > math.MaxInt32 || bbox[a+3] == 0 || bbox[a+3] > math.MaxInt32 {
			return nil, fmt.Errorf("%w: mesh %q bounding box %v", ErrInvalidMesh, name, bbox)
		}
		cells[a], block[a] = int(bbox[a]), int(bbox[a+3])
		n := nodes[a]
		if len(n) < 2 {
			return nil, fmt.Errorf("%w: mesh %q has %d node coordinates on axis %s", ErrInvalidMesh, name, len(n), Axis(a))
		}
		min[a], max[a] = n[0], n[len(n)-1]
	}
	d, err := New(name, kind, r3.Vec{X: min[0], Y: min[1], Z: min[2]}, r3.Vec{X: max[0], Y: max[1], Z: max[2]}, cells, maxLevel)
	if err != nil {
		return nil, err
	}
	d.BlockSize = block
	return d, nil
}

// InferMaxLevel returns the lowest level whose id range contains maxID on
// a grid with the given number of base cells.
func InferMaxLevel(baseCells, maxID uint64) (int, error) {
	if baseCells == 0 {
		return 0, fmt.Errorf("%w: no base cells", ErrInvalidMesh)
	}
	var end uint64
	n := baseCells
	for l := 0; l <= maxSupportedLevel; l++ {
		end += n
		if maxID <= end {
			return l, nil
		}
		n *= 8
	}
	return 0, fmt.Errorf("%w: id %d beyond level %d", ErrInvalidCellID, maxID, maxSupportedLevel)
}

// BaseCells returns the number of level 0 cells.
func (d *Descriptor) BaseCells() uint64 {
	return d.CellsPerLevel[0]
}

// TotalCells returns the number of ids over all levels.
func (d *Descriptor) TotalCells() uint64 {
	return d.LevelStart[d.MaxLevel+1]
}

// Dims returns the number of cells per axis on a level.
func (d *Descriptor) Dims(level int) [3]int {
	f := 1 << level
	return [3]int{d.Cells[0] * f, d.Cells[1] * f, d.Cells[2] * f}
}

// Extent returns Max - Min.
func (d *Descriptor) Extent() r3.Vec {
	return r3.Sub(d.Max, d.Min)
}

// CellSize returns the edge lengths of a cell on a level.
func (d *Descriptor) CellSize(level int) r3.Vec {
	e := d.Extent()
	f := float64(int(1) << level)
	return r3.Vec{
		X: e.X / (float64(d.Cells[0]) * f),
		Y: e.Y / (float64(d.Cells[1]) * f),
		Z: e.Z / (float64(d.Cells[2]) * f),
	}
}

// LevelOf returns the refinement level of id.
func (d *Descriptor) LevelOf(id uint64) (int, error) {
	if id == 0 || id > d.TotalCells() {
		return 0, fmt.Errorf("%w: %d not in [1, %d] of mesh %q", ErrInvalidCellID, id, d.TotalCells(), d.Name)
	}
	// Largest L with LevelStart[L] < id.
	return sort.Search(d.MaxLevel+1, func(l int) bool { return d.LevelStart[l+1] >= id }), nil
}
