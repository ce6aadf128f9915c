package vlsv

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	binpkg "github.com/robert-malhotra/go-vlsv/internal/binary"
	"github.com/robert-malhotra/go-vlsv/internal/cellindex"
	"github.com/robert-malhotra/go-vlsv/internal/dtype"
	"github.com/robert-malhotra/go-vlsv/internal/footer"
	"github.com/robert-malhotra/go-vlsv/internal/mesh"
)

// MetaData is an open VLSV file together with its catalog, its spatial mesh
// and the index from stored cell ids to record positions. All methods are
// safe for concurrent use; reads are positioned and share one file handle.
type MetaData struct {
	path   string
	file   *os.File
	size   int64
	footer *footer.Footer
	reader *binpkg.Reader
	opts   *options
	log    logrus.FieldLogger

	// mesh is nil when the file has no spatial grid.
	mesh    *mesh.Descriptor
	fsgrid  *mesh.Descriptor
	cellIDs []uint64
	cells   *cellindex.Index

	mu     sync.Mutex
	closed bool

	popMu sync.Mutex
	pops  map[string]*population
}

// Open opens a VLSV file and parses its footer and spatial mesh. The file
// stays open until Close; on error nothing is left open.
func Open(path string, opts ...Option) (*MetaData, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening file: %w", ErrIO, err)
	}

	md, err := newMetaData(path, f, o)
	if err != nil {
		f.Close()
		return nil, err
	}
	return md, nil
}

func newMetaData(path string, f *os.File, o *options) (*MetaData, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", ErrIO, path, err)
	}

	ft, err := footer.Read(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("reading footer of %s: %w", path, err)
	}

	md := &MetaData{
		path:   path,
		file:   f,
		size:   info.Size(),
		footer: ft,
		reader: binpkg.NewReader(f, ft.ByteOrder),
		opts:   o,
		log:    o.logger.WithField("file", path),
		pops:   make(map[string]*population),
	}

	if err := md.loadSpatialMesh(); err != nil {
		return nil, err
	}
	if err := md.loadFieldSolverMesh(); err != nil {
		return nil, err
	}

	fields := logrus.Fields{
		"entries":     len(ft.Entries),
		"footer_at":   ft.Offset,
		"variables":   len(ft.ByTag(footer.TagVariable)),
		"parameters":  len(ft.ByTag(footer.TagParameter)),
		"populations": len(ft.ByTag(footer.TagBlockIDs)),
		"byte_order":  ft.ByteOrder.String(),
	}
	if md.mesh != nil {
		fields["cells"] = md.cells.Len()
		fields["max_amr_level"] = md.mesh.MaxLevel
	}
	md.log.WithFields(fields).Debug("opened vlsv file")
	return md, nil
}

// Close releases the file. Further reads fail with ErrClosed.
func (md *MetaData) Close() error {
	md.mu.Lock()
	defer md.mu.Unlock()
	if md.closed {
		return nil
	}
	md.closed = true
	if err := md.file.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", ErrIO, md.path, err)
	}
	return nil
}

func (md *MetaData) check() error {
	md.mu.Lock()
	defer md.mu.Unlock()
	if md.closed {
		return ErrClosed
	}
	return nil
}

// Path returns the path the file was opened from.
func (md *MetaData) Path() string {
	return md.path
}

// Size returns the file size in bytes.
func (md *MetaData) Size() int64 {
	return md.size
}

func (md *MetaData) loadSpatialMesh() error {
	name := md.opts.spatialMesh
	me, ok := md.footer.Find(footer.TagMesh, name)
	if !ok {
		md.log.WithField("mesh", name).Debug("file has no spatial mesh")
		return nil
	}

	ids, err := md.storedCellIDs(me)
	if err != nil {
		return err
	}
	idx, err := cellindex.New(ids)
	if err != nil {
		return fmt.Errorf("%w: mesh %q: %w", ErrFormat, name, err)
	}

	d, err := md.geometry(name, mesh.DCCRG)
	if err != nil {
		return err
	}
	level, err := md.maxLevel(me, d, idx.Max())
	if err != nil {
		return err
	}
	if level != d.MaxLevel {
		block := d.BlockSize
		if d, err = mesh.New(name, mesh.DCCRG, d.Min, d.Max, d.Cells, level); err != nil {
			return fmt.Errorf("%w: %w", ErrFormat, err)
		}
		d.BlockSize = block
	}
	for a, attr := range []string{"xperiodic", "yperiodic", "zperiodic"} {
		d.Periodic[a] = me.Attr(attr) == "yes"
	}
	if idx.Max() > d.TotalCells() {
		return fmt.Errorf("%w: mesh %q stores cell %d beyond the %d ids of level %d",
			ErrFormat, name, idx.Max(), d.TotalCells(), d.MaxLevel)
	}

	md.mesh, md.cellIDs, md.cells = d, ids, idx
	return nil
}

// storedCellIDs returns the cell id of every record, from the CellID
// variable or, failing that, the MESH array itself.
func (md *MetaData) storedCellIDs(me *footer.Entry) ([]uint64, error) {
	src := me
	if v, ok := md.footer.FindIn(footer.TagVariable, "CellID", me.Name); ok {
		src = v
	} else {
		md.log.WithField("mesh", me.Name).Warn("no CellID variable, using the mesh array as cell ids")
	}
	return md.readUints(src)
}

func (md *MetaData) loadFieldSolverMesh() error {
	me, ok := md.footer.Find(footer.TagMesh, md.opts.fieldSolverMesh)
	if !ok {
		for _, e := range md.footer.Meshes() {
			if e.Attr("type") == "multi_ucd" {
				me, ok = e, true
				break
			}
		}
	}
	if !ok {
		return nil
	}
	if _, ok := md.footer.FindMesh(footer.TagMeshBBox, me.Name); !ok {
		md.log.WithField("mesh", me.Name).Warn("field-solver mesh has no bounding box, ignoring it")
		return nil
	}
	d, err := md.geometry(me.Name, mesh.FieldSolver)
	if err != nil {
		return err
	}
	md.fsgrid = d
	return nil
}

var nodeTags = [3]string{footer.TagNodeCrdsX, footer.TagNodeCrdsY, footer.TagNodeCrdsZ}

// geometry derives the level 0 geometry of a mesh from its bounding box and
// node coordinates, or from the scalar parameters of older files.
func (md *MetaData) geometry(name string, kind mesh.Kind) (*mesh.Descriptor, error) {
	bboxEntry, ok := md.footer.FindMesh(footer.TagMeshBBox, name)
	if !ok {
		md.log.WithField("mesh", name).Warn("no MESH_BBOX, deriving geometry from parameters")
		d, err := mesh.FromParameters(name, kind, md.lookupParameter, 0)
		if err != nil && !errors.Is(err, mesh.ErrMissingParameter) {
			return nil, fmt.Errorf("%w: %w", ErrFormat, err)
		}
		return d, err
	}

	bbox, err := md.readUints(bboxEntry)
	if err != nil {
		return nil, err
	}
	var nodes [3][]float64
	for a, tag := range nodeTags {
		e, ok := md.footer.FindMesh(tag, name)
		if !ok {
			return nil, fmt.Errorf("%w: mesh %q has no %s", ErrFormat, name, tag)
		}
		if nodes[a], err = md.readFloats(e); err != nil {
			return nil, err
		}
	}
	d, err := mesh.FromBBox(name, kind, bbox, nodes, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return d, nil
}

// maxLevel resolves the deepest refinement level from the MESH attribute,
// the max_refinement_level parameter, or the largest stored id.
func (md *MetaData) maxLevel(me *footer.Entry, d *mesh.Descriptor, maxID uint64) (int, error) {
	if s := me.Attr("max_refinement_level"); s != "" {
		level, err := strconv.Atoi(s)
		if err != nil || level < 0 {
			return 0, fmt.Errorf("%w: mesh %q has max_refinement_level %q", ErrFormat, me.Name, s)
		}
		return level, nil
	}
	if v, ok := md.lookupParameter("max_refinement_level"); ok {
		if v < 0 || v != math.Trunc(v) || v > 32 {
			return 0, fmt.Errorf("%w: parameter max_refinement_level is %g", ErrFormat, v)
		}
		return int(v), nil
	}
	level, err := mesh.InferMaxLevel(d.BaseCells(), maxID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	md.log.WithFields(logrus.Fields{
		"mesh":   me.Name,
		"max_id": maxID,
		"level":  level,
	}).Warn("max refinement level not recorded, inferred from cell ids")
	return level, nil
}

// readRecords reads count records of e starting at record first.
func (md *MetaData) readRecords(e *footer.Entry, first, count int64) ([]byte, error) {
	if first < 0 || count < 0 || first+count > int64(e.ArraySize) {
		return nil, fmt.Errorf("%w: records [%d, %d) outside %s of %d records",
			ErrFormat, first, first+count, e, e.ArraySize)
	}
	rb := e.RecordBytes()
	buf := make([]byte, count*rb)
	if err := md.reader.ReadAt(buf, e.Offset+first*rb); err != nil {
		return nil, md.readError(e, err)
	}
	return buf, nil
}

func (md *MetaData) readError(e *footer.Entry, err error) error {
	if errors.Is(err, binpkg.ErrShortRead) {
		return fmt.Errorf("%w: %s: %w", ErrFormat, e, err)
	}
	return fmt.Errorf("%w: %s at offset %d: %w", ErrIO, e, e.Offset, err)
}

func (md *MetaData) readUints(e *footer.Entry) ([]uint64, error) {
	if !e.Type.IsInteger() {
		return nil, fmt.Errorf("%w: %s holds %s, want integers", ErrFormat, e, e.Type)
	}
	data, err := md.readRecords(e, 0, int64(e.ArraySize))
	if err != nil {
		return nil, err
	}
	return dtype.Decode[uint64](e.Type, md.footer.ByteOrder, data, e.ArraySize*e.VectorSize)
}

func (md *MetaData) readFloats(e *footer.Entry) ([]float64, error) {
	data, err := md.readRecords(e, 0, int64(e.ArraySize))
	if err != nil {
		return nil, err
	}
	return dtype.Decode[float64](e.Type, md.footer.ByteOrder, data, e.ArraySize*e.VectorSize)
}
