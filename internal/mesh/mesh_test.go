package mesh

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func vec(x, y, z float64) r3.Vec { return r3.Vec{X: x, Y: y, Z: z} }

func newMesh(t *testing.T, cells [3]int, max r3.Vec, level int) *Descriptor {
	t.Helper()
	d, err := New("SpatialGrid", DCCRG, r3.Vec{}, max, cells, level)
	require.NoError(t, err)
	return d
}

// leaves returns the stored ids of a mesh where the given cells were refined.
func leaves(t *testing.T, d *Descriptor, refined ...uint64) []uint64 {
	t.Helper()
	set := make(map[uint64]bool)
	for id := uint64(1); id <= d.BaseCells(); id++ {
		set[id] = true
	}
	for _, id := range refined {
		require.True(t, set[id], "refining non-leaf %d", id)
		delete(set, id)
		children, err := d.Children(id)
		require.NoError(t, err)
		for _, c := range children {
			set[c] = true
		}
	}
	out := make([]uint64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func storedFunc(ids []uint64) func(uint64) bool {
	set := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return func(id uint64) bool { return set[id] }
}

func TestNewLevelTables(t *testing.T) {
	d := newMesh(t, [3]int{4, 4, 4}, vec(4, 4, 4), 1)

	assert.Equal(t, []uint64{64, 512}, d.CellsPerLevel)
	assert.Equal(t, []uint64{0, 64, 576}, d.LevelStart)
	assert.Equal(t, uint64(576), d.TotalCells())

	deep := newMesh(t, [3]int{3, 2, 5}, vec(3, 2, 5), 4)
	for l := 0; l <= deep.MaxLevel; l++ {
		assert.Equal(t, deep.CellsPerLevel[l], deep.LevelStart[l+1]-deep.LevelStart[l])
		assert.Equal(t, deep.CellsPerLevel[0]*uint64(math.Pow(8, float64(l))), deep.CellsPerLevel[l])
	}
}

func TestNewInvalid(t *testing.T) {
	tests := []struct {
		name  string
		cells [3]int
		max   r3.Vec
		level int
	}{
		{"zero cells", [3]int{0, 1, 1}, vec(1, 1, 1), 0},
		{"empty extent", [3]int{1, 1, 1}, vec(1, 0, 1), 0},
		{"negative level", [3]int{1, 1, 1}, vec(1, 1, 1), -1},
		{"too deep", [3]int{1, 1, 1}, vec(1, 1, 1), 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("m", DCCRG, r3.Vec{}, tt.max, tt.cells, tt.level)
			assert.ErrorIs(t, err, ErrInvalidMesh)
		})
	}
}

func TestLevelOf(t *testing.T) {
	d := newMesh(t, [3]int{4, 4, 4}, vec(4, 4, 4), 1)

	tests := []struct {
		id    uint64
		level int
		ok    bool
	}{
		{1, 0, true},
		{64, 0, true},
		{65, 1, true},
		{576, 1, true},
		{0, 0, false},
		{577, 0, false},
	}
	for _, tt := range tests {
		level, err := d.LevelOf(tt.id)
		if !tt.ok {
			assert.ErrorIs(t, err, ErrInvalidCellID, "id %d", tt.id)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.level, level, "id %d", tt.id)
	}
}

func TestCoordinates(t *testing.T) {
	d := newMesh(t, [3]int{4, 4, 4}, vec(4, 4, 4), 1)

	tests := []struct {
		id   uint64
		want r3.Vec
	}{
		{1, vec(0.5, 0.5, 0.5)},
		{2, vec(1.5, 0.5, 0.5)},
		{5, vec(0.5, 1.5, 0.5)},
		{17, vec(0.5, 0.5, 1.5)},
		{64, vec(3.5, 3.5, 3.5)},
		{65, vec(0.25, 0.25, 0.25)},
		{576, vec(3.75, 3.75, 3.75)},
	}
	for _, tt := range tests {
		got, err := d.Coordinates(tt.id)
		require.NoError(t, err)
		assert.InDelta(t, tt.want.X, got.X, 1e-12, "id %d", tt.id)
		assert.InDelta(t, tt.want.Y, got.Y, 1e-12, "id %d", tt.id)
		assert.InDelta(t, tt.want.Z, got.Z, 1e-12, "id %d", tt.id)
	}

	_, err := d.Coordinates(0)
	assert.ErrorIs(t, err, ErrInvalidCellID)
}

func TestIndexCellIDRoundTrip(t *testing.T) {
	d := newMesh(t, [3]int{3, 2, 2}, vec(3, 2, 2), 2)
	for id := uint64(1); id <= d.TotalCells(); id++ {
		level, idx, err := d.Index(id)
		require.NoError(t, err)
		back, err := d.CellID(level, idx)
		require.NoError(t, err)
		require.Equal(t, id, back)
	}

	_, err := d.CellID(0, [3]int{3, 0, 0})
	assert.ErrorIs(t, err, ErrInvalidCellID)
	_, err = d.CellID(3, [3]int{0, 0, 0})
	assert.ErrorIs(t, err, ErrInvalidCellID)
}

func TestLocateRoundTrip(t *testing.T) {
	d := newMesh(t, [3]int{4, 4, 4}, vec(4, 4, 4), 2)
	// Refine two base cells, then one of the new children again.
	ids := leaves(t, d, 1, 22, 65)
	stored := storedFunc(ids)

	for _, id := range ids {
		c, err := d.Coordinates(id)
		require.NoError(t, err)
		got, err := d.Locate(c, stored)
		require.NoError(t, err)
		require.Equal(t, id, got)
	}
}

func TestLocateBoundaryAndDomain(t *testing.T) {
	d := newMesh(t, [3]int{4, 4, 4}, vec(4, 4, 4), 1)
	stored := storedFunc(leaves(t, d))

	// A face belongs to the cell on its positive side.
	id, err := d.Locate(vec(1, 0.5, 0.5), stored)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), id)

	id, err = d.Locate(vec(0, 0, 0), stored)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	for _, p := range []r3.Vec{vec(4, 1, 1), vec(-0.1, 1, 1), vec(1, 1, 4.5)} {
		_, err := d.Locate(p, stored)
		assert.ErrorIs(t, err, ErrOutOfDomain, "%v", p)
	}

	_, err = d.Locate(vec(1, 1, 1), func(uint64) bool { return false })
	assert.ErrorIs(t, err, ErrNoCell)
}

func TestParentChildren(t *testing.T) {
	d := newMesh(t, [3]int{4, 4, 4}, vec(4, 4, 4), 1)

	children, err := d.Children(1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{65, 66, 73, 74, 129, 130, 137, 138}, children)

	for _, c := range children {
		p, ok, err := d.Parent(c)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, uint64(1), p)
	}

	_, ok, err := d.Parent(1)
	require.NoError(t, err)
	assert.False(t, ok)

	none, err := d.Children(65)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestNeighbors(t *testing.T) {
	d := newMesh(t, [3]int{4, 4, 4}, vec(4, 4, 4), 0)

	n, err := d.Neighbors(1, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 5, 17}, n)

	n, err = d.Neighbors(22, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint64{6, 18, 21, 23, 26, 38}, n)

	d.Periodic = [3]bool{true, false, false}
	n, err = d.Neighbors(1, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 4, 5, 17}, n)

	_, err = d.Neighbors(0, nil)
	assert.ErrorIs(t, err, ErrInvalidCellID)
}

func TestNeighborsAcrossRefinement(t *testing.T) {
	d := newMesh(t, [3]int{2, 2, 2}, vec(2, 2, 2), 1)
	ids := leaves(t, d, 1)
	stored := storedFunc(ids)

	tests := []struct {
		id   uint64
		want []uint64
	}{
		// coarse cell next to the refined one sees the 4 facing children
		{2, []uint64{4, 6, 10, 14, 26, 30}},
		// fine cell next to a coarse one sees the coarse cell
		{10, []uint64{2, 9, 14, 26}},
		{30, []uint64{2, 3, 5, 14, 26, 29}},
	}
	for _, tt := range tests {
		got, err := d.Neighbors(tt.id, stored)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "cell %d", tt.id)
	}
}

func TestInferMaxLevel(t *testing.T) {
	tests := []struct {
		maxID uint64
		want  int
	}{
		{1, 0},
		{64, 0},
		{65, 1},
		{576, 1},
		{577, 2},
	}
	for _, tt := range tests {
		got, err := InferMaxLevel(64, tt.maxID)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "max id %d", tt.maxID)
	}
	_, err := InferMaxLevel(0, 1)
	assert.ErrorIs(t, err, ErrInvalidMesh)
}

func TestFromParameters(t *testing.T) {
	params := map[string]float64{
		"xcells_ini": 4, "ycells_ini": 2, "zcells_ini": 1,
		"xmin": -2, "xmax": 2, "ymin": 0, "ymax": 1, "zmin": 0, "zmax": 0.5,
	}
	lookup := func(m map[string]float64) func(string) (float64, bool) {
		return func(name string) (float64, bool) {
			v, ok := m[name]
			return v, ok
		}
	}

	d, err := FromParameters("SpatialGrid", DCCRG, lookup(params), 1)
	require.NoError(t, err)
	assert.Equal(t, [3]int{4, 2, 1}, d.Cells)
	assert.Equal(t, vec(-2, 0, 0), d.Min)
	assert.Equal(t, vec(2, 1, 0.5), d.Max)

	delete(params, "ycells_ini")
	_, err = FromParameters("SpatialGrid", DCCRG, lookup(params), 1)
	require.ErrorIs(t, err, ErrMissingParameter)
	assert.Contains(t, err.Error(), "ycells_ini")
}

func TestFromBBox(t *testing.T) {
	nodes := [3][]float64{
		{-1, 0, 1},
		{0, 0.5, 1, 1.5, 2},
		{0, 3},
	}
	d, err := FromBBox("SpatialGrid", DCCRG, []uint64{2, 4, 1, 1, 1, 1}, nodes, 2)
	require.NoError(t, err)
	assert.Equal(t, [3]int{2, 4, 1}, d.Cells)
	assert.Equal(t, [3]int{1, 1, 1}, d.BlockSize)
	assert.Equal(t, vec(-1, 0, 0), d.Min)
	assert.Equal(t, vec(1, 2, 3), d.Max)
	assert.Equal(t, 2, d.MaxLevel)

	v, err := FromBBox("proton", Velocity, []uint64{10, 10, 10, 4, 4, 4}, [3][]float64{{-1, 1}, {-1, 1}, {-1, 1}}, 0)
	require.NoError(t, err)
	assert.Equal(t, [3]int{4, 4, 4}, v.BlockSize)

	_, err = FromBBox("m", DCCRG, []uint64{1, 1, 1}, nodes, 0)
	assert.ErrorIs(t, err, ErrInvalidMesh)
	_, err = FromBBox("m", DCCRG, []uint64{0, 1, 1, 1, 1, 1}, nodes, 0)
	assert.ErrorIs(t, err, ErrInvalidMesh)
	_, err = FromBBox("m", DCCRG, []uint64{1, 1, 1, 1, 1, 1}, [3][]float64{{0}, {0, 1}, {0, 1}}, 0)
	assert.ErrorIs(t, err, ErrInvalidMesh)
}

func TestLineDegenerate(t *testing.T) {
	d := newMesh(t, [3]int{4, 4, 4}, vec(4, 4, 4), 1)
	stored := storedFunc(leaves(t, d))
	locate := func(p r3.Vec) (uint64, error) { return d.Locate(p, stored) }

	p := vec(2.5, 1.5, 0.5)
	cells, err := d.Line(p, p, locate)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, uint64(7), cells[0].ID)
	assert.Zero(t, cells[0].Distance)
	assert.Equal(t, p, cells[0].Coord)
}

func TestLineAcrossRefinement(t *testing.T) {
	d := newMesh(t, [3]int{4, 4, 4}, vec(4, 4, 4), 1)
	stored := storedFunc(leaves(t, d, 1))
	locate := func(p r3.Vec) (uint64, error) { return d.Locate(p, stored) }

	cells, err := d.Line(vec(0.1, 0.25, 0.25), vec(3.9, 0.25, 0.25), locate)
	require.NoError(t, err)

	ids := make([]uint64, len(cells))
	for i, c := range cells {
		ids[i] = c.ID
	}
	assert.Equal(t, []uint64{65, 66, 2, 3, 4}, ids)

	wantDist := []float64{0, 0.4, 0.9, 1.9, 2.9}
	for i, c := range cells {
		assert.InDelta(t, wantDist[i], c.Distance, 1e-6, "cell %d", c.ID)
		if i > 0 {
			assert.Greater(t, c.Distance, cells[i-1].Distance)
		}
	}
}

func TestLineOutOfDomain(t *testing.T) {
	d := newMesh(t, [3]int{4, 4, 4}, vec(4, 4, 4), 0)
	stored := storedFunc(leaves(t, d))
	locate := func(p r3.Vec) (uint64, error) { return d.Locate(p, stored) }

	_, err := d.Line(vec(0.5, 0.5, 0.5), vec(4.5, 0.5, 0.5), locate)
	assert.ErrorIs(t, err, ErrOutOfDomain)
}

func TestSlice(t *testing.T) {
	d := newMesh(t, [3]int{4, 4, 4}, vec(4, 4, 4), 1)
	flat := leaves(t, d)

	ids, err := d.Slice(0.5, Z, Unbounded(), flat)
	require.NoError(t, err)
	assert.Equal(t, seq(1, 16), ids)

	// On a face the plane belongs to the upper layer.
	ids, err = d.Slice(1.0, Z, Unbounded(), flat)
	require.NoError(t, err)
	assert.Equal(t, seq(17, 32), ids)

	box := Unbounded()
	box.Max.X = 2
	ids, err = d.Slice(0.5, Z, box, flat)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 5, 6, 9, 10, 13, 14}, ids)

	refined := leaves(t, d, 1)
	ids, err = d.Slice(0.25, Z, Unbounded(), refined)
	require.NoError(t, err)
	assert.Equal(t, append(seq(2, 16), 65, 66, 73, 74), ids)

	_, err = d.Slice(4, Z, Unbounded(), flat)
	assert.ErrorIs(t, err, ErrOutOfDomain)
}

func TestRefineSlice(t *testing.T) {
	d := newMesh(t, [3]int{2, 2, 2}, vec(2, 2, 2), 1)
	ids, err := d.Slice(0.5, Z, Unbounded(), leaves(t, d, 1))
	require.NoError(t, err)
	require.Equal(t, []uint64{2, 3, 4, 25, 26, 29, 30}, ids)

	values := make([]float64, len(ids))
	for i, id := range ids {
		values[i] = float64(id)
	}
	g, err := d.RefineSlice(ids, values, Z)
	require.NoError(t, err)

	assert.Equal(t, [2]Axis{X, Y}, g.Axes)
	assert.Equal(t, 4, g.NX)
	assert.Equal(t, 4, g.NY)
	want := []float64{
		25, 26, 2, 2,
		29, 30, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}
	assert.Equal(t, want, g.Data)
	assert.Equal(t, 26.0, g.At(1, 0))

	_, err = d.RefineSlice(ids, values[:2], Z)
	assert.ErrorIs(t, err, ErrInvalidCellID)
}

func TestRefineVolume(t *testing.T) {
	d := newMesh(t, [3]int{2, 2, 2}, vec(2, 2, 2), 1)
	ids := leaves(t, d, 8)
	values := make([]float64, len(ids))
	for i, id := range ids {
		values[i] = float64(id)
	}

	g, err := d.RefineVolume(ids, values)
	require.NoError(t, err)
	assert.Equal(t, [3]int{4, 4, 4}, g.Dims)
	for _, v := range g.Data {
		require.False(t, math.IsNaN(v))
	}
	assert.Equal(t, 1.0, g.At(0, 0, 0))
	assert.Equal(t, 1.0, g.At(1, 1, 1))
	assert.Equal(t, 2.0, g.At(3, 0, 0))

	// Cell 8 is base (1,1,1); its first child is level-1 (2,2,2).
	first, err := d.CellID(1, [3]int{2, 2, 2})
	require.NoError(t, err)
	assert.Equal(t, float64(first), g.At(2, 2, 2))

	// Uncovered cells stay NaN.
	partial, err := d.RefineVolume([]uint64{1}, []float64{5})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(partial.At(3, 3, 3)))
}

func seq(from, to uint64) []uint64 {
	out := make([]uint64, 0, to-from+1)
	for id := from; id <= to; id++ {
		out = append(out, id)
	}
	return out
}
