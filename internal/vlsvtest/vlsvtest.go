// Package vlsvtest builds synthetic VLSV files for tests.
package vlsvtest

import (
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"testing"

	binpkg "github.com/robert-malhotra/go-vlsv/internal/binary"
	"github.com/robert-malhotra/go-vlsv/internal/mesh"
)

// Attr is one extra footer attribute.
type Attr struct {
	Name, Value string
}

type array struct {
	tag   string
	attrs []Attr
	data  any
}

// Builder accumulates arrays and writes them as a VLSV file: the 16 byte
// header, the payloads in insertion order, then the XML footer.
type Builder struct {
	order        binary.ByteOrder
	arrays       []array
	footerOffset *uint64
	rawFooter    *string
}

// New returns a little-endian builder.
func New() *Builder {
	return &Builder{order: binary.LittleEndian}
}

// BigEndian switches the file to big-endian payloads.
func (b *Builder) BigEndian() *Builder {
	b.order = binary.BigEndian
	return b
}

// FooterOffset overrides the footer offset written in the header.
func (b *Builder) FooterOffset(off uint64) *Builder {
	b.footerOffset = &off
	return b
}

// RawFooter replaces the generated footer text.
func (b *Builder) RawFooter(text string) *Builder {
	b.rawFooter = &text
	return b
}

// Add appends an array. data must be a slice of a fixed-size numeric type;
// arraysize is len(data)/vectorSize.
func (b *Builder) Add(tag string, vectorSize int, data any, attrs ...Attr) *Builder {
	if vectorSize < 1 {
		vectorSize = 1
	}
	attrs = append(attrs, Attr{"vectorsize", strconv.Itoa(vectorSize)})
	b.arrays = append(b.arrays, array{tag: tag, attrs: attrs, data: data})
	return b
}

// Parameter adds a scalar float64 PARAMETER.
func (b *Builder) Parameter(name string, v float64) *Builder {
	return b.Add("PARAMETER", 1, []float64{v}, Attr{"name", name})
}

// Version adds the VERSION tag.
func (b *Builder) Version(v float64) *Builder {
	return b.Add("VERSION", 1, []float64{v})
}

// Variable adds a VARIABLE on a mesh.
func (b *Builder) Variable(name, meshName string, vectorSize int, data any, attrs ...Attr) *Builder {
	return b.Add("VARIABLE", vectorSize, data, append([]Attr{{"name", name}, {"mesh", meshName}}, attrs...)...)
}

// Mesh adds a MESH tag holding ids together with its MESH_BBOX and node
// coordinates derived from d.
func (b *Builder) Mesh(d *mesh.Descriptor, ids []uint64, attrs ...Attr) *Builder {
	b.Add("MESH", 1, ids, append([]Attr{{"name", d.Name}}, attrs...)...)
	bbox := []uint64{
		uint64(d.Cells[0]), uint64(d.Cells[1]), uint64(d.Cells[2]),
		uint64(d.BlockSize[0]), uint64(d.BlockSize[1]), uint64(d.BlockSize[2]),
	}
	b.Add("MESH_BBOX", 1, bbox, Attr{"mesh", d.Name})
	for a, tag := range []string{"MESH_NODE_CRDS_X", "MESH_NODE_CRDS_Y", "MESH_NODE_CRDS_Z"} {
		b.Add(tag, 1, nodes(d, mesh.Axis(a)), Attr{"mesh", d.Name})
	}
	return b
}

func nodes(d *mesh.Descriptor, a mesh.Axis) []float64 {
	n := d.Cells[a]
	lo, hi := mesh.Comp(d.Min, a), mesh.Comp(d.Max, a)
	out := make([]float64, n+1)
	for i := range out {
		out[i] = lo + (hi-lo)*float64(i)/float64(n)
	}
	out[n] = hi
	return out
}

// SpatialGrid adds the DCCRG mesh with ids in the given record order, the
// max_refinement_level attribute and the CellID variable.
func (b *Builder) SpatialGrid(d *mesh.Descriptor, ids []uint64) *Builder {
	b.Mesh(d, ids, Attr{"type", "amr_ucd"}, Attr{"max_refinement_level", strconv.Itoa(d.MaxLevel)})
	return b.Variable("CellID", d.Name, 1, ids)
}

// FieldSolver adds a uniform field-solver mesh.
func (b *Builder) FieldSolver(d *mesh.Descriptor) *Builder {
	n := d.Cells[0] * d.Cells[1] * d.Cells[2]
	ids := make([]uint64, n)
	for i := range ids {
		ids[i] = uint64(i)
	}
	return b.Mesh(d, ids, Attr{"type", "multi_ucd"})
}

// Population adds the velocity mesh vd (named after the population) and
// one distribution per cell. blocks[i] and values[i] belong to cells[i];
// values[i] holds WID^3 values per block.
func (b *Builder) Population(vd *mesh.Descriptor, spatialMesh string, cells []uint64, blocks [][]uint64, values [][]float32) *Builder {
	pop := vd.Name
	counts := make([]uint32, len(cells))
	var (
		allBlocks []uint32
		allValues []float32
	)
	for i := range cells {
		counts[i] = uint32(len(blocks[i]))
		for _, id := range blocks[i] {
			allBlocks = append(allBlocks, uint32(id))
		}
		allValues = append(allValues, values[i]...)
	}
	wid3 := vd.BlockSize[0] * vd.BlockSize[1] * vd.BlockSize[2]

	b.Mesh(vd, []uint64{0}, Attr{"type", "amr_ucd"})
	b.Add("CELLSWITHBLOCKS", 1, cells, Attr{"name", pop}, Attr{"mesh", spatialMesh})
	b.Add("BLOCKSPERCELL", 1, counts, Attr{"name", pop}, Attr{"mesh", spatialMesh})
	b.Add("BLOCKIDS", 1, allBlocks, Attr{"name", pop}, Attr{"mesh", spatialMesh})
	return b.Add("BLOCKVARIABLE", wid3, allValues, Attr{"name", pop}, Attr{"mesh", spatialMesh})
}

// Write lays out the file on w and returns its size.
func (b *Builder) Write(w io.WriterAt) (int64, error) {
	payload := binpkg.NewWriter(w, b.order).At(16)
	var footer bytes.Buffer
	footer.WriteString("<VLSV>\n")
	for _, a := range b.arrays {
		kind, size, n, err := describe(a.data)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", a.tag, err)
		}
		vs, _ := strconv.Atoi(lookup(a.attrs, "vectorsize"))
		offset := payload.Pos()
		if err := payload.WriteValues(a.data); err != nil {
			return 0, err
		}
		fmt.Fprintf(&footer, "  <%s", a.tag)
		for _, at := range a.attrs {
			writeAttr(&footer, at.Name, at.Value)
		}
		writeAttr(&footer, "arraysize", strconv.Itoa(n/vs))
		writeAttr(&footer, "datasize", strconv.Itoa(size))
		writeAttr(&footer, "datatype", kind)
		fmt.Fprintf(&footer, ">%d</%s>\n", offset, a.tag)
	}
	footer.WriteString("</VLSV>\n")

	text := footer.Bytes()
	if b.rawFooter != nil {
		text = []byte(*b.rawFooter)
	}
	footerAt := payload.Pos()
	if err := payload.WriteBytes(text); err != nil {
		return 0, err
	}
	size := payload.Pos()

	off := uint64(footerAt)
	if b.footerOffset != nil {
		off = *b.footerOffset
	}
	head := binpkg.NewWriter(w, b.order)
	var marker uint8
	if b.order == binary.BigEndian {
		marker = 1
	}
	if err := head.WriteUint8(marker); err != nil {
		return 0, err
	}
	if err := head.WriteZeros(7); err != nil {
		return 0, err
	}
	if err := head.WriteUint64(off); err != nil {
		return 0, err
	}
	return size, nil
}

// WriteFile writes the file into t.TempDir and returns its path.
func (b *Builder) WriteFile(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bulk.0000000.vlsv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating fixture: %v", err)
	}
	defer f.Close()
	if _, err := b.Write(f); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func writeAttr(buf *bytes.Buffer, name, value string) {
	fmt.Fprintf(buf, " %s=\"", name)
	_ = xml.EscapeText(buf, []byte(value))
	buf.WriteByte('"')
}

func lookup(attrs []Attr, name string) string {
	for _, a := range attrs {
		if a.Name == name {
			return a.Value
		}
	}
	return ""
}

func describe(data any) (kind string, size, n int, err error) {
	switch d := data.(type) {
	case []float64:
		return "float", 8, len(d), nil
	case []float32:
		return "float", 4, len(d), nil
	case []int64:
		return "int", 8, len(d), nil
	case []int32:
		return "int", 4, len(d), nil
	case []uint64:
		return "uint", 8, len(d), nil
	case []uint32:
		return "uint", 4, len(d), nil
	case []uint8:
		return "uint", 1, len(d), nil
	}
	return "", 0, 0, fmt.Errorf("unsupported payload %T", data)
}

// LeafIDs returns the stored ids, ascending, of a mesh where the given cells
// were refined in order.
func LeafIDs(d *mesh.Descriptor, refined ...uint64) ([]uint64, error) {
	set := make(map[uint64]bool)
	for id := uint64(1); id <= d.BaseCells(); id++ {
		set[id] = true
	}
	for _, id := range refined {
		if !set[id] {
			return nil, fmt.Errorf("cell %d is not a leaf", id)
		}
		children, err := d.Children(id)
		if err != nil {
			return nil, err
		}
		if children == nil {
			return nil, fmt.Errorf("cell %d is on the deepest level", id)
		}
		delete(set, id)
		for _, c := range children {
			set[c] = true
		}
	}
	out := make([]uint64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Shuffled returns a deterministic permutation of ids, as a parallel writer
// would leave them.
func Shuffled(ids []uint64, seed int64) []uint64 {
	out := append([]uint64(nil), ids...)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
