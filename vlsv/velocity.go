package vlsv

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/robert-malhotra/go-vlsv/internal/dtype"
	"github.com/robert-malhotra/go-vlsv/internal/footer"
	"github.com/robert-malhotra/go-vlsv/internal/mesh"
	"github.com/robert-malhotra/go-vlsv/internal/vspace"
)

// legacyBlockVariable is the BLOCKVARIABLE name files without populations use.
const legacyBlockVariable = "avgs"

// legacyWID is the block width of files that predate MESH_BBOX on the
// velocity mesh.
const legacyWID = 4

// VelocityMesh is the block mesh of one population.
type VelocityMesh = vspace.VMesh

// VelocityDistribution is the distribution of one population in one
// spatial cell. VCellIDs is ascending and parallel to Values.
type VelocityDistribution struct {
	CellID     uint64
	Population string
	VCellIDs   []uint64
	Values     []float64
}

// Len returns the number of velocity cells.
func (v *VelocityDistribution) Len() int {
	return len(v.VCellIDs)
}

// Map returns the distribution keyed by velocity cell id.
func (v *VelocityDistribution) Map() map[uint64]float64 {
	m := make(map[uint64]float64, len(v.VCellIDs))
	for i, id := range v.VCellIDs {
		m[id] = v.Values[i]
	}
	return m
}

type population struct {
	table    *vspace.Table
	vmesh    *vspace.VMesh
	blockIDs *footer.Entry
	values   *footer.Entry
	nearest  *vspace.Nearest
}

// Populations returns the names of the populations with velocity data.
func (md *MetaData) Populations() []string {
	return names(md.footer.ByTag(footer.TagBlockIDs))
}

// population returns the cached velocity index of pop, building it on
// first use.
func (md *MetaData) population(pop string) (*population, error) {
	md.popMu.Lock()
	defer md.popMu.Unlock()
	if p, ok := md.pops[pop]; ok {
		return p, nil
	}
	p, err := md.loadPopulation(pop)
	if err != nil {
		return nil, err
	}
	md.pops[pop] = p
	return p, nil
}

func (md *MetaData) loadPopulation(pop string) (*population, error) {
	cwb, ok := md.footer.Find(footer.TagCellsWithBlocks, pop)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPopulation, pop)
	}
	bpc, ok := md.footer.Find(footer.TagBlocksPerCell, pop)
	if !ok {
		return nil, fmt.Errorf("%w: population %q has no %s", ErrFormat, pop, footer.TagBlocksPerCell)
	}
	bids, ok := md.footer.Find(footer.TagBlockIDs, pop)
	if !ok {
		return nil, fmt.Errorf("%w: population %q has no %s", ErrFormat, pop, footer.TagBlockIDs)
	}
	vals, ok := md.footer.Find(footer.TagBlockVariable, pop)
	if !ok {
		if vals, ok = md.footer.Find(footer.TagBlockVariable, legacyBlockVariable); !ok {
			return nil, fmt.Errorf("%w: population %q has no %s", ErrFormat, pop, footer.TagBlockVariable)
		}
		md.log.WithField("population", pop).Debug("using legacy avgs block variable")
	}

	cells, err := md.readUints(cwb)
	if err != nil {
		return nil, err
	}
	counts, err := md.readUints(bpc)
	if err != nil {
		return nil, err
	}
	table, err := vspace.NewTable(pop, cells, counts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if table.TotalBlocks() != uint64(bids.ArraySize) || bids.ArraySize != vals.ArraySize {
		return nil, fmt.Errorf("%w: population %q counts %d blocks, %s has %d and %s has %d",
			ErrFormat, pop, table.TotalBlocks(), bids, bids.ArraySize, vals, vals.ArraySize)
	}

	vm, err := md.velocityMesh(pop)
	if err != nil {
		return nil, err
	}
	if vals.VectorSize != vm.CellsPerBlock() {
		return nil, fmt.Errorf("%w: %s has %d values per block, velocity mesh has %d cells per block",
			ErrFormat, vals, vals.VectorSize, vm.CellsPerBlock())
	}

	md.log.WithFields(logrus.Fields{
		"population": pop,
		"cells":      table.Len(),
		"blocks":     table.TotalBlocks(),
	}).Debug("indexed velocity distributions")
	return &population{table: table, vmesh: vm, blockIDs: bids, values: vals}, nil
}

// velocityMesh reads the block mesh of pop from its MESH_BBOX or, in older
// files, from the vxblocks_ini family of parameters.
func (md *MetaData) velocityMesh(pop string) (*vspace.VMesh, error) {
	if _, ok := md.footer.FindMesh(footer.TagMeshBBox, pop); ok {
		d, err := md.geometry(pop, mesh.Velocity)
		if err != nil {
			return nil, err
		}
		return vspace.NewVMesh(d)
	}

	var (
		blocks   [3]int
		min, max r3.Vec
	)
	for a, axis := range []string{"x", "y", "z"} {
		vals := make([]float64, 3)
		for i, p := range []string{"v" + axis + "blocks_ini", "v" + axis + "min", "v" + axis + "max"} {
			v, ok := md.lookupParameter(p)
			if !ok {
				return nil, fmt.Errorf("%w: %q (velocity mesh of %q)", ErrMissingParameter, p, pop)
			}
			vals[i] = v
		}
		blocks[a] = int(vals[0])
		min = mesh.SetComp(min, mesh.Axis(a), vals[1])
		max = mesh.SetComp(max, mesh.Axis(a), vals[2])
	}
	d, err := mesh.New(pop, mesh.Velocity, min, max, blocks, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	d.BlockSize = [3]int{legacyWID, legacyWID, legacyWID}
	md.log.WithField("population", pop).Warn("velocity mesh derived from parameters")
	return vspace.NewVMesh(d)
}

// VelocityMesh returns the block mesh of a population.
func (md *MetaData) VelocityMesh(pop string) (*VelocityMesh, error) {
	if err := md.check(); err != nil {
		return nil, err
	}
	p, err := md.population(pop)
	if err != nil {
		return nil, err
	}
	return p.vmesh, nil
}

// ReadVelocityCells reads the velocity distribution of population pop in
// spatial cell id. Cells without a distribution fail with
// ErrNoDistribution.
func (md *MetaData) ReadVelocityCells(id uint64, pop string) (*VelocityDistribution, error) {
	if err := md.check(); err != nil {
		return nil, err
	}
	p, err := md.population(pop)
	if err != nil {
		return nil, err
	}
	entry, ok := p.table.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: cell %d, population %q", ErrNoDistribution, id, pop)
	}

	first, n := int64(entry.BlockOffset), int64(entry.Blocks)
	raw, err := md.readRecords(p.blockIDs, first, n)
	if err != nil {
		return nil, err
	}
	blocks, err := dtype.Decode[uint64](p.blockIDs.Type, md.footer.ByteOrder, raw, int(n))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFormat, p.blockIDs, err)
	}
	if raw, err = md.readRecords(p.values, first, n); err != nil {
		return nil, err
	}
	values, err := dtype.Decode[float64](p.values.Type, md.footer.ByteOrder, raw, int(n)*p.values.VectorSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFormat, p.values, err)
	}

	vcells, vals, err := p.vmesh.Expand(blocks, values)
	if err != nil {
		return nil, fmt.Errorf("%w: cell %d: %w", ErrFormat, id, err)
	}
	return &VelocityDistribution{CellID: id, Population: pop, VCellIDs: vcells, Values: vals}, nil
}

// HasDistribution reports whether spatial cell id stores a distribution of
// population pop.
func (md *MetaData) HasDistribution(id uint64, pop string) (bool, error) {
	if err := md.check(); err != nil {
		return false, err
	}
	p, err := md.population(pop)
	if err != nil {
		return false, err
	}
	_, ok := p.table.Lookup(id)
	return ok, nil
}

// CellsWithDistribution returns the spatial cells that store a distribution
// of population pop, ascending.
func (md *MetaData) CellsWithDistribution(pop string) ([]uint64, error) {
	if err := md.check(); err != nil {
		return nil, err
	}
	p, err := md.population(pop)
	if err != nil {
		return nil, err
	}
	return append([]uint64(nil), p.table.Cells()...), nil
}

// VelocityCellCoordinates returns the centres of velocity cells of a
// population.
func (md *MetaData) VelocityCellCoordinates(pop string, vcells []uint64) ([]r3.Vec, error) {
	if err := md.check(); err != nil {
		return nil, err
	}
	p, err := md.population(pop)
	if err != nil {
		return nil, err
	}
	out := make([]r3.Vec, len(vcells))
	for i, v := range vcells {
		if out[i], err = p.vmesh.Coordinates(v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// NearestCellWithDistribution returns id itself if it stores a distribution
// of pop, and otherwise the cell with a distribution whose centre is
// closest to the centre of id. Equidistant candidates resolve to the
// smallest id. It fails with ErrNotFound when no cell stores one.
func (md *MetaData) NearestCellWithDistribution(id uint64, pop string) (uint64, error) {
	d, err := md.spatial()
	if err != nil {
		return 0, err
	}
	p, err := md.population(pop)
	if err != nil {
		return 0, err
	}
	if p.table.Len() == 0 {
		return 0, fmt.Errorf("%w: population %q stores no distribution", ErrNotFound, pop)
	}
	if _, ok := p.table.Lookup(id); ok {
		return id, nil
	}
	c, err := d.Coordinates(id)
	if err != nil {
		return 0, err
	}

	n, err := md.nearestIndex(d, pop, p)
	if err != nil {
		return 0, err
	}
	nid, _, err := n.Find(c)
	if errors.Is(err, vspace.ErrNotFound) {
		return 0, fmt.Errorf("%w: population %q stores no distribution", ErrNotFound, pop)
	}
	return nid, err
}

// nearestIndex builds the k-d tree over the cells with a distribution once
// per population.
func (md *MetaData) nearestIndex(d *mesh.Descriptor, pop string, p *population) (*vspace.Nearest, error) {
	md.popMu.Lock()
	defer md.popMu.Unlock()
	if p.nearest != nil {
		return p.nearest, nil
	}
	ids := p.table.Cells()
	centres := make([]r3.Vec, len(ids))
	for i, id := range ids {
		c, err := d.Coordinates(id)
		if err != nil {
			return nil, fmt.Errorf("%w: population %q: %w", ErrFormat, pop, err)
		}
		centres[i] = c
	}
	p.nearest = vspace.NewNearest(ids, centres)
	return p.nearest, nil
}
