package mesh

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// Axis names a Cartesian axis.
type Axis int

const (
	X Axis = iota
	Y
	Z
)

func (a Axis) String() string {
	switch a {
	case X:
		return "x"
	case Y:
		return "y"
	case Z:
		return "z"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// ParseAxis accepts "x", "y" or "z".
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "x", "X":
		return X, nil
	case "y", "Y":
		return Y, nil
	case "z", "Z":
		return Z, nil
	}
	return 0, fmt.Errorf("unknown axis %q", s)
}

// Plane returns the two in-plane axes of a cut normal to a, in ascending order.
func (a Axis) Plane() (Axis, Axis) {
	switch a {
	case X:
		return Y, Z
	case Y:
		return X, Z
	default:
		return X, Y
	}
}

// Comp returns the component of v along a.
func Comp(v r3.Vec, a Axis) float64 {
	switch a {
	case X:
		return v.X
	case Y:
		return v.Y
	default:
		return v.Z
	}
}

// SetComp returns v with the component along a replaced.
func SetComp(v r3.Vec, a Axis, f float64) r3.Vec {
	switch a {
	case X:
		v.X = f
	case Y:
		v.Y = f
	default:
		v.Z = f
	}
	return v
}

// Index returns the level of id and its (i, j, k) index on that level.
func (d *Descriptor) Index(id uint64) (int, [3]int, error) {
	level, err := d.LevelOf(id)
	if err != nil {
		return 0, [3]int{}, err
	}
	dims := d.Dims(level)
	local := id - 1 - d.LevelStart[level]
	nx, ny := uint64(dims[0]), uint64(dims[1])
	return level, [3]int{
		int(local % nx),
		int((local / nx) % ny),
		int(local / (nx * ny)),
	}, nil
}

// CellID returns the id of the cell at idx on a level.
func (d *Descriptor) CellID(level int, idx [3]int) (uint64, error) {
	if level < 0 || level > d.MaxLevel {
		return 0, fmt.Errorf("%w: level %d outside [0, %d]", ErrInvalidCellID, level, d.MaxLevel)
	}
	dims := d.Dims(level)
	for a := 0; a < 3; a++ {
		if idx[a] < 0 || idx[a] >= dims[a] {
			return 0, fmt.Errorf("%w: index %v outside level %d grid %v", ErrInvalidCellID, idx, level, dims)
		}
	}
	return d.cellID(level, idx), nil
}

// cellID is CellID without range checks.
func (d *Descriptor) cellID(level int, idx [3]int) uint64 {
	dims := d.Dims(level)
	nx, ny := uint64(dims[0]), uint64(dims[1])
	return d.LevelStart[level] + 1 + uint64(idx[0]) + uint64(idx[1])*nx + uint64(idx[2])*nx*ny
}

// Coordinates returns the centre of a cell.
func (d *Descriptor) Coordinates(id uint64) (r3.Vec, error) {
	level, idx, err := d.Index(id)
	if err != nil {
		return r3.Vec{}, err
	}
	return d.center(level, idx), nil
}

func (d *Descriptor) center(level int, idx [3]int) r3.Vec {
	s := d.CellSize(level)
	return r3.Vec{
		X: d.Min.X + (float64(idx[0])+0.5)*s.X,
		Y: d.Min.Y + (float64(idx[1])+0.5)*s.Y,
		Z: d.Min.Z + (float64(idx[2])+0.5)*s.Z,
	}
}

// Bounds returns the lower and upper corners of a cell.
func (d *Descriptor) Bounds(id uint64) (lo, hi r3.Vec, err error) {
	level, idx, err := d.Index(id)
	if err != nil {
		return r3.Vec{}, r3.Vec{}, err
	}
	s := d.CellSize(level)
	lo = r3.Vec{
		X: d.Min.X + float64(idx[0])*s.X,
		Y: d.Min.Y + float64(idx[1])*s.Y,
		Z: d.Min.Z + float64(idx[2])*s.Z,
	}
	return lo, r3.Add(lo, s), nil
}

// Contains reports whether Min <= p < Max on every axis.
func (d *Descriptor) Contains(p r3.Vec) bool {
	return p.X >= d.Min.X && p.X < d.Max.X &&
		p.Y >= d.Min.Y && p.Y < d.Max.Y &&
		p.Z >= d.Min.Z && p.Z < d.Max.Z
}

// IndexAt returns the index of the level cell containing p. A coordinate
// on a face belongs to the higher-index cell. p must be inside the domain.
func (d *Descriptor) IndexAt(p r3.Vec, level int) [3]int {
	s := d.CellSize(level)
	dims := d.Dims(level)
	var idx [3]int
	for a := Axis(0); a < 3; a++ {
		f := (Comp(p, a) - Comp(d.Min, a)) / Comp(s, a)
		i := int(math.Floor(f))
		// Rounding can land a point just below Max on the last face.
		if i >= dims[a] {
			i = dims[a] - 1
		}
		if i < 0 {
			i = 0
		}
		idx[a] = i
	}
	return idx
}

// Locate returns the stored cell containing p, walking from level 0 to
// MaxLevel and stopping at the first id for which stored reports true.
// Refined cells are never stored, so the walk ends at the leaf.
func (d *Descriptor) Locate(p r3.Vec, stored func(uint64) bool) (uint64, error) {
	if !d.Contains(p) {
		return 0, fmt.Errorf("%w: %v not in [%v, %v)", ErrOutOfDomain, p, d.Min, d.Max)
	}
	for level := 0; level <= d.MaxLevel; level++ {
		id := d.cellID(level, d.IndexAt(p, level))
		if stored(id) {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %v in mesh %q", ErrNoCell, p, d.Name)
}

// Parent returns the id of the cell one level up. Level 0 cells have none.
func (d *Descriptor) Parent(id uint64) (uint64, bool, error) {
	level, idx, err := d.Index(id)
	if err != nil {
		return 0, false, err
	}
	if level == 0 {
		return 0, false, nil
	}
	return d.cellID(level-1, [3]int{idx[0] / 2, idx[1] / 2, idx[2] / 2}), true, nil
}

// Children returns the 8 ids one level down in ascending order, or nil on
// the deepest level.
func (d *Descriptor) Children(id uint64) ([]uint64, error) {
	level, idx, err := d.Index(id)
	if err != nil {
		return nil, err
	}
	if level == d.MaxLevel {
		return nil, nil
	}
	out := make([]uint64, 0, 8)
	for dk := 0; dk < 2; dk++ {
		for dj := 0; dj < 2; dj++ {
			for di := 0; di < 2; di++ {
				out = append(out, d.cellID(level+1, [3]int{2*idx[0] + di, 2*idx[1] + dj, 2*idx[2] + dk}))
			}
		}
	}
	return out, nil
}

// Neighbors returns the cells sharing a face with id, ascending. With a nil
// stored it returns the face neighbours on the level of id. Otherwise each
// face resolves to the stored cells across it: the neighbour itself, its
// parent, or those of its children that touch the face. Periodic axes
// wrap; elsewhere faces on the domain boundary have no neighbour.
func (d *Descriptor) Neighbors(id uint64, stored func(uint64) bool) ([]uint64, error) {
	level, idx, err := d.Index(id)
	if err != nil {
		return nil, err
	}
	dims := d.Dims(level)
	seen := make(map[uint64]bool, 6)
	out := make([]uint64, 0, 6)
	add := func(n uint64) {
		if n != id && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for a := 0; a < 3; a++ {
		for _, step := range []int{-1, 1} {
			n := idx
			n[a] += step
			if n[a] < 0 || n[a] >= dims[a] {
				if !d.Periodic[a] {
					continue
				}
				n[a] = (n[a] + dims[a]) % dims[a]
			}
			nid := d.cellID(level, n)
			if stored == nil || stored(nid) {
				add(nid)
				continue
			}
			if p, ok, _ := d.Parent(nid); ok && stored(p) {
				add(p)
				continue
			}
			if level < d.MaxLevel {
				for _, c := range d.facingChildren(level, n, a, step) {
					if stored(c) {
						add(c)
					}
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// facingChildren returns the 4 children of the level cell at n that touch
// the face crossed when stepping along axis a in direction step.
func (d *Descriptor) facingChildren(level int, n [3]int, a, step int) []uint64 {
	side := 2 * n[a]
	if step < 0 {
		side++
	}
	out := make([]uint64, 0, 4)
	for dk := 0; dk < 2; dk++ {
		for dj := 0; dj < 2; dj++ {
			for di := 0; di < 2; di++ {
				c := [3]int{2*n[0] + di, 2*n[1] + dj, 2*n[2] + dk}
				if c[a] == side {
					out = append(out, d.cellID(level+1, c))
				}
			}
		}
	}
	return out
}
