package vspace

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// Nearest finds the closest cell among a fixed set of cells.
type Nearest struct {
	tree *kdtree.Tree
	n    int
}

// NewNearest builds a k-d tree over cell centres. ids and centres are
// parallel.
func NewNearest(ids []uint64, centres []r3.Vec) *Nearest {
	s := make(sites, len(ids))
	for i := range ids {
		s[i] = site{id: ids[i], p: centres[i]}
	}
	if len(s) == 0 {
		return &Nearest{}
	}
	return &Nearest{tree: kdtree.New(s, false), n: len(s)}
}

// Find returns the id of the cell whose centre is closest to p and the
// distance to it. Among equidistant cells the smallest id wins.
func (n *Nearest) Find(p r3.Vec) (uint64, float64, error) {
	if n.n == 0 {
		return 0, 0, ErrNotFound
	}
	q := site{p: p}
	_, d2 := n.tree.Nearest(q)

	keep := kdtree.NewDistKeeper(d2)
	n.tree.NearestSet(keep, q)
	best := uint64(math.MaxUint64)
	for _, c := range keep.Heap {
		if s, ok := c.Comparable.(site); ok && s.id < best {
			best = s.id
		}
	}
	return best, math.Sqrt(d2), nil
}

type site struct {
	id uint64
	p  r3.Vec
}

func (s site) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(site)
	switch d {
	case 0:
		return s.p.X - q.p.X
	case 1:
		return s.p.Y - q.p.Y
	default:
		return s.p.Z - q.p.Z
	}
}

func (s site) Dims() int { return 3 }

// Distance is squared Euclidean, as kdtree.Point uses.
func (s site) Distance(c kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(s.p, c.(site).p))
}

type sites []site

func (s sites) Index(i int) kdtree.Comparable         { return s[i] }
func (s sites) Len() int                              { return len(s) }
func (s sites) Pivot(d kdtree.Dim) int                { return plane{Dim: d, sites: s}.Pivot() }
func (s sites) Slice(start, end int) kdtree.Interface { return s[start:end] }

// plane sorts sites along one dimension for median partitioning.
type plane struct {
	kdtree.Dim
	sites
}

func (p plane) Less(i, j int) bool {
	return p.sites[i].Compare(p.sites[j], p.Dim) < 0
}
func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.sites = p.sites[start:end]
	return p
}
func (p plane) Swap(i, j int) {
	p.sites[i], p.sites[j] = p.sites[j], p.sites[i]
}
