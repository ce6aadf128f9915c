package mesh

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// Box is an axis-aligned region used to restrict slices.
type Box struct {
	Min, Max r3.Vec
}

// Unbounded returns a box covering all of space.
func Unbounded() Box {
	inf := math.Inf(1)
	return Box{
		Min: r3.Vec{X: -inf, Y: -inf, Z: -inf},
		Max: r3.Vec{X: inf, Y: inf, Z: inf},
	}
}

// Slice returns the ids among stored whose cell volume is cut by the plane
// normal to axis at loc and overlaps box in the two in-plane axes. The
// plane belongs to the cell on its positive side. The result is ascending.
func (d *Descriptor) Slice(loc float64, axis Axis, box Box, stored []uint64) ([]uint64, error) {
	if axis < X || axis > Z {
		return nil, fmt.Errorf("invalid slice axis %d", int(axis))
	}
	lo, hi := Comp(d.Min, axis), Comp(d.Max, axis)
	if loc < lo || loc >= hi {
		return nil, fmt.Errorf("%w: slice at %s=%g not in [%g, %g)", ErrOutOfDomain, axis, loc, lo, hi)
	}
	a, b := axis.Plane()

	// Per level, the plane cuts exactly one layer of cells.
	layer := make([]int, d.MaxLevel+1)
	for l := range layer {
		p := SetComp(d.Min, axis, loc)
		layer[l] = d.IndexAt(p, l)[axis]
	}

	var out []uint64
	for _, id := range stored {
		level, idx, err := d.Index(id)
		if err != nil {
			return nil, err
		}
		if idx[axis] != layer[level] {
			continue
		}
		clo, chi, _ := d.Bounds(id)
		if Comp(chi, a) <= Comp(box.Min, a) || Comp(clo, a) >= Comp(box.Max, a) {
			continue
		}
		if Comp(chi, b) <= Comp(box.Min, b) || Comp(clo, b) >= Comp(box.Max, b) {
			continue
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
