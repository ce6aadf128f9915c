package mesh

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// LineCell is one cell crossed by a segment.
type LineCell struct {
	ID uint64
	// Distance from the segment start to the point where the segment
	// enters the cell.
	Distance float64
	// Coord is that entry point; the start point for the first cell.
	Coord r3.Vec
}

// stepsPerFinestCell is the number of samples taken per finest cell width.
const stepsPerFinestCell = 4

// Line returns the cells crossed by the segment p1-p2 in order of
// increasing distance from p1, without consecutive repeats. The segment is
// sampled at a fixed step of a quarter of the smallest finest-level cell
// edge; between two samples in different cells the crossing is bisected so
// that thin cells clipped between samples are not lost and entry distances
// are exact to a small fraction of the step.
func (d *Descriptor) Line(p1, p2 r3.Vec, locate func(r3.Vec) (uint64, error)) ([]LineCell, error) {
	for _, p := range []r3.Vec{p1, p2} {
		if !d.Contains(p) {
			return nil, fmt.Errorf("%w: segment end %v not in [%v, %v)", ErrOutOfDomain, p, d.Min, d.Max)
		}
	}

	first, err := locate(p1)
	if err != nil {
		return nil, err
	}
	cells := []LineCell{{ID: first, Distance: 0, Coord: p1}}

	length := r3.Norm(r3.Sub(p2, p1))
	if length == 0 {
		return cells, nil
	}
	dir := r3.Scale(1/length, r3.Sub(p2, p1))

	s := d.CellSize(d.MaxLevel)
	step := math.Min(s.X, math.Min(s.Y, s.Z)) / stepsPerFinestCell
	tol := step * 1e-6

	w := &lineWalk{d: d, p1: p1, dir: dir, locate: locate, tol: tol}
	n := int(math.Ceil(length / step))
	prevT, prevID := 0.0, first
	for i := 1; i <= n; i++ {
		t := math.Min(float64(i)*step, length)
		p := w.at(t)
		id, err := locate(p)
		if err != nil {
			return nil, err
		}
		if id != prevID {
			if cells, err = w.bisect(cells, prevT, prevID, t, id); err != nil {
				return nil, err
			}
		}
		prevT, prevID = t, id
	}
	return cells, nil
}

type lineWalk struct {
	d      *Descriptor
	p1     r3.Vec
	dir    r3.Vec
	locate func(r3.Vec) (uint64, error)
	tol    float64
}

// at returns the point at distance t along the segment, clamped into the
// half-open domain.
func (w *lineWalk) at(t float64) r3.Vec {
	p := r3.Add(w.p1, r3.Scale(t, w.dir))
	for a := Axis(0); a < 3; a++ {
		lo, hi := Comp(w.d.Min, a), Comp(w.d.Max, a)
		v := Comp(p, a)
		if v < lo {
			v = lo
		}
		if v >= hi {
			v = math.Nextafter(hi, lo)
		}
		p = SetComp(p, a, v)
	}
	return p
}

// bisect appends every cell entered between t0 (in id0) and t1 (in id1).
func (w *lineWalk) bisect(cells []LineCell, t0 float64, id0 uint64, t1 float64, id1 uint64) ([]LineCell, error) {
	if id0 == id1 {
		return cells, nil
	}
	if t1-t0 <= w.tol {
		if cells[len(cells)-1].ID != id1 {
			cells = append(cells, LineCell{ID: id1, Distance: t1, Coord: w.at(t1)})
		}
		return cells, nil
	}
	tm := 0.5 * (t0 + t1)
	idm, err := w.locate(w.at(tm))
	if err != nil {
		return nil, err
	}
	if cells, err = w.bisect(cells, t0, id0, tm, idm); err != nil {
		return nil, err
	}
	return w.bisect(cells, tm, idm, t1, id1)
}
