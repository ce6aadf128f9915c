package vlsv

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/robert-malhotra/go-vlsv/internal/mesh"
)

// Mesh types shared with the indexer.
type (
	Descriptor = mesh.Descriptor
	LineCell   = mesh.LineCell
	Axis       = mesh.Axis
	Box        = mesh.Box
	Grid2D     = mesh.Grid2D
	Grid3D     = mesh.Grid3D
)

const (
	X = mesh.X
	Y = mesh.Y
	Z = mesh.Z
)

// Unbounded returns a slice box that restricts nothing.
func Unbounded() Box {
	return mesh.Unbounded()
}

// ParseAxis accepts "x", "y" or "z".
func ParseAxis(s string) (Axis, error) {
	return mesh.ParseAxis(s)
}

// SpatialMesh returns the adaptively refined mesh, or nil if the file has
// none.
func (md *MetaData) SpatialMesh() *Descriptor {
	return md.mesh
}

// FieldSolverMesh returns the uniform field-solver mesh, or nil.
func (md *MetaData) FieldSolverMesh() *Descriptor {
	return md.fsgrid
}

func (md *MetaData) spatial() (*mesh.Descriptor, error) {
	if err := md.check(); err != nil {
		return nil, err
	}
	if md.mesh == nil {
		return nil, fmt.Errorf("%w: %s has no %q mesh", ErrFormat, md.path, md.opts.spatialMesh)
	}
	return md.mesh, nil
}

// MaxAMRLevel returns the deepest refinement level of the spatial mesh.
func (md *MetaData) MaxAMRLevel() (int, error) {
	d, err := md.spatial()
	if err != nil {
		return 0, err
	}
	return d.MaxLevel, nil
}

// AMRLevel returns the refinement level of a cell id.
func (md *MetaData) AMRLevel(id uint64) (int, error) {
	d, err := md.spatial()
	if err != nil {
		return 0, err
	}
	return d.LevelOf(id)
}

// CellCoordinates returns the centre of a cell.
func (md *MetaData) CellCoordinates(id uint64) (r3.Vec, error) {
	d, err := md.spatial()
	if err != nil {
		return r3.Vec{}, err
	}
	return d.Coordinates(id)
}

// CellID returns the stored cell containing p. A point inside the domain
// that no stored cell covers fails with ErrNoCell.
func (md *MetaData) CellID(p r3.Vec) (uint64, error) {
	d, err := md.spatial()
	if err != nil {
		return 0, err
	}
	return d.Locate(p, md.cells.Contains)
}

// CellNeighbors returns the stored cells sharing a face with the stored
// cell id, across refinement boundaries, in ascending order.
func (md *MetaData) CellNeighbors(id uint64) ([]uint64, error) {
	d, err := md.spatial()
	if err != nil {
		return nil, err
	}
	if !md.cells.Contains(id) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCellID, id)
	}
	return d.Neighbors(id, md.cells.Contains)
}

// CellsInLine returns the stored cells crossed by the segment p1-p2,
// ordered by distance from p1.
func (md *MetaData) CellsInLine(p1, p2 r3.Vec) ([]LineCell, error) {
	d, err := md.spatial()
	if err != nil {
		return nil, err
	}
	return d.Line(p1, p2, func(p r3.Vec) (uint64, error) {
		return d.Locate(p, md.cells.Contains)
	})
}

// SliceCellIDs returns the stored cells cut by the plane normal to axis at
// loc, restricted in plane to box, in ascending order.
func (md *MetaData) SliceCellIDs(loc float64, axis Axis, box Box) ([]uint64, error) {
	d, err := md.spatial()
	if err != nil {
		return nil, err
	}
	return d.Slice(loc, axis, box, md.cells.Sorted())
}
