package mesh

import (
	"fmt"
	"math"
)

// Grid2D is a uniform finest-level image of a slice. Cells of the image not
// covered by any input id hold NaN.
type Grid2D struct {
	// Axes are the in-plane axes; Data runs along Axes[0] fastest.
	Axes [2]Axis
	// NX and NY are the image dimensions along Axes[0] and Axes[1].
	NX, NY int
	// Min and Max are the physical bounds along the two axes.
	Min, Max [2]float64
	Data     []float64
}

// At returns the value at column i, row j.
func (g *Grid2D) At(i, j int) float64 {
	return g.Data[i+j*g.NX]
}

// Grid3D is a uniform finest-level volume. Uncovered cells hold NaN.
type Grid3D struct {
	Dims [3]int
	Data []float64
}

// At returns the value at (i, j, k).
func (g *Grid3D) At(i, j, k int) float64 {
	return g.Data[i+j*g.Dims[0]+k*g.Dims[0]*g.Dims[1]]
}

// RefineSlice projects scalar cell values of a slice normal to axis onto the
// finest level: a cell on level L fills a square of 2^(MaxLevel-L) finest
// cells. This is nearest-neighbour upsampling, not interpolation.
func (d *Descriptor) RefineSlice(ids []uint64, values []float64, axis Axis) (*Grid2D, error) {
	if len(ids) != len(values) {
		return nil, fmt.Errorf("%w: refining slice with %d ids but %d values", ErrInvalidCellID, len(ids), len(values))
	}
	a, b := axis.Plane()
	dims := d.Dims(d.MaxLevel)
	g := &Grid2D{
		Axes: [2]Axis{a, b},
		NX:   dims[a],
		NY:   dims[b],
		Min:  [2]float64{Comp(d.Min, a), Comp(d.Min, b)},
		Max:  [2]float64{Comp(d.Max, a), Comp(d.Max, b)},
	}
	g.Data = nanSlice(g.NX * g.NY)

	for n, id := range ids {
		level, idx, err := d.Index(id)
		if err != nil {
			return nil, err
		}
		r := 1 << (d.MaxLevel - level)
		i0, j0 := idx[a]*r, idx[b]*r
		for j := j0; j < j0+r; j++ {
			row := g.Data[j*g.NX : (j+1)*g.NX]
			for i := i0; i < i0+r; i++ {
				row[i] = values[n]
			}
		}
	}
	return g, nil
}

// RefineVolume projects scalar cell values onto the finest level: a cell on
// level L fills a cube of 2^(MaxLevel-L) finest cells per axis.
func (d *Descriptor) RefineVolume(ids []uint64, values []float64) (*Grid3D, error) {
	if len(ids) != len(values) {
		return nil, fmt.Errorf("%w: refining volume with %d ids but %d values", ErrInvalidCellID, len(ids), len(values))
	}
	dims := d.Dims(d.MaxLevel)
	g := &Grid3D{Dims: dims, Data: nanSlice(dims[0] * dims[1] * dims[2])}
	nx, nxy := dims[0], dims[0]*dims[1]

	for n, id := range ids {
		level, idx, err := d.Index(id)
		if err != nil {
			return nil, err
		}
		r := 1 << (d.MaxLevel - level)
		i0, j0, k0 := idx[0]*r, idx[1]*r, idx[2]*r
		for k := k0; k < k0+r; k++ {
			for j := j0; j < j0+r; j++ {
				row := g.Data[j*nx+k*nxy : j*nx+k*nxy+nx]
				for i := i0; i < i0+r; i++ {
					row[i] = values[n]
				}
			}
		}
	}
	return g, nil
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	nan := math.NaN()
	for i := range s {
		s[i] = nan
	}
	return s
}
