package vlsv

import (
	"fmt"
)

// RefineSlice projects one value per cell of a slice onto a uniform image at
// the finest level. Coarse cells are replicated, not interpolated.
func (md *MetaData) RefineSlice(ids []uint64, values []float64, axis Axis) (*Grid2D, error) {
	d, err := md.spatial()
	if err != nil {
		return nil, err
	}
	return d.RefineSlice(ids, values, axis)
}

// RefineVolume projects one value per cell onto a uniform volume at the
// finest level.
func (md *MetaData) RefineVolume(ids []uint64, values []float64) (*Grid3D, error) {
	d, err := md.spatial()
	if err != nil {
		return nil, err
	}
	return d.RefineVolume(ids, values)
}

// ReadSlice reads a scalar variable on the plane normal to axis at loc and
// returns it refined to the finest level.
func (md *MetaData) ReadSlice(name string, axis Axis, loc float64) (*Grid2D, error) {
	ids, err := md.SliceCellIDs(loc, axis, Unbounded())
	if err != nil {
		return nil, err
	}
	a, err := md.ReadVariableSelect(name, ids)
	if err != nil {
		return nil, err
	}
	if a.VectorSize != 1 {
		return nil, fmt.Errorf("slicing %q: variable has %d components, want 1", name, a.VectorSize)
	}
	values, err := a.Float64()
	if err != nil {
		return nil, err
	}
	return md.RefineSlice(ids, values, axis)
}
