package footer

import (
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	binpkg "github.com/robert-malhotra/go-vlsv/internal/binary"
	"github.com/robert-malhotra/go-vlsv/internal/dtype"
)

// ErrFormat is returned for a malformed header or footer.
var ErrFormat = errors.New("malformed VLSV file")

// HeaderSize is the size of the fixed header preceding the payload region.
const HeaderSize = 16

// Footer tags written by Vlasiator.
const (
	TagParameter       = "PARAMETER"
	TagVariable        = "VARIABLE"
	TagMesh            = "MESH"
	TagMeshBBox        = "MESH_BBOX"
	TagNodeCrdsX       = "MESH_NODE_CRDS_X"
	TagNodeCrdsY       = "MESH_NODE_CRDS_Y"
	TagNodeCrdsZ       = "MESH_NODE_CRDS_Z"
	TagDomainSizes     = "MESH_DOMAIN_SIZES"
	TagGhostDomains    = "MESH_GHOST_DOMAINS"
	TagGhostLocalIDs   = "MESH_GHOST_LOCALIDS"
	TagDecomposition   = "MESH_DECOMPOSITION"
	TagBlockIDs        = "BLOCKIDS"
	TagBlockVariable   = "BLOCKVARIABLE"
	TagBlocksPerCell   = "BLOCKSPERCELL"
	TagCellsWithBlocks = "CELLSWITHBLOCKS"
	TagVersion         = "VERSION"
	TagConfig          = "CONFIG"
)

// rootElement is the name of the footer's document element.
const rootElement = "VLSV"

// Entry describes one stored array.
type Entry struct {
	Tag        string
	Name       string
	Mesh       string
	Offset     int64
	Type       dtype.Type
	VectorSize int
	ArraySize  int
	Attrs      map[string]string
}

// RecordBytes is the size of one record (all vector components).
func (e *Entry) RecordBytes() int64 {
	return int64(e.Type.Size) * int64(e.VectorSize)
}

// ByteLength is the size of the whole payload. Read guarantees it does
// not overflow for the entries it returns.
func (e *Entry) ByteLength() int64 {
	return e.RecordBytes() * int64(e.ArraySize)
}

// Attr returns an attribute value, or "" if absent.
func (e *Entry) Attr(name string) string {
	return e.Attrs[name]
}

func (e *Entry) String() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %q", e.Tag, e.Name)
	}
	return fmt.Sprintf("%s (mesh %q)", e.Tag, e.Mesh)
}

// Footer is the parsed catalog of a VLSV file.
type Footer struct {
	// ByteOrder is the payload byte order from the header marker.
	ByteOrder binary.ByteOrder
	// Offset is the byte offset of the XML footer.
	Offset int64
	// Entries lists every array in footer order.
	Entries []Entry

	byTag map[string][]int
}

// Read parses the header and footer of a file of the given size.
func Read(r io.ReaderAt, size int64) (*Footer, error) {
	if size < HeaderSize {
		return nil, fmt.Errorf("%w: file of %d bytes is shorter than the %d byte header", ErrFormat, size, HeaderSize)
	}
	br := binpkg.NewReader(r, binary.LittleEndian)

	marker, err := br.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("reading endianness marker: %w", err)
	}
	var order binary.ByteOrder
	switch marker {
	case 0:
		order = binary.LittleEndian
	case 1:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: unknown endianness marker %d", ErrFormat, marker)
	}

	offset, err := br.At(8).WithOrder(order).ReadUint64()
	if err != nil {
		return nil, fmt.Errorf("reading footer offset: %w", err)
	}
	if offset < HeaderSize || offset >= uint64(size) {
		return nil, fmt.Errorf("%w: footer offset %d outside file of %d bytes", ErrFormat, offset, size)
	}

	text, err := br.At(int64(offset)).ReadBytes(int(size - int64(offset)))
	if err != nil {
		return nil, fmt.Errorf("reading footer at %d: %w", offset, err)
	}

	entries, err := Parse(text)
	if err != nil {
		return nil, err
	}

	f := New(order, int64(offset), entries)
	for i := range f.Entries {
		e := &f.Entries[i]
		if e.Offset < HeaderSize || e.Offset > int64(offset) ||
			int64(e.ArraySize) > (int64(offset)-e.Offset)/e.RecordBytes() {
			return nil, fmt.Errorf("%w: %s payload of %d records of %d bytes at %d outside data region [%d, %d)",
				ErrFormat, e, e.ArraySize, e.RecordBytes(), e.Offset, HeaderSize, offset)
		}
	}
	return f, nil
}

// New builds a footer from already parsed entries.
func New(order binary.ByteOrder, offset int64, entries []Entry) *Footer {
	f := &Footer{
		ByteOrder: order,
		Offset:    offset,
		Entries:   entries,
		byTag:     make(map[string][]int),
	}
	for i := range entries {
		f.byTag[entries[i].Tag] = append(f.byTag[entries[i].Tag], i)
	}
	return f
}

// Parse decodes footer XML into entries.
func Parse(data []byte) ([]Entry, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		entries []Entry
		depth   int
		sawRoot bool
		cur     *Entry
		text    strings.Builder
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: footer xml: %v", ErrFormat, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch depth {
			case 1:
				if t.Name.Local != rootElement {
					return nil, fmt.Errorf("%w: footer root is <%s>, want <%s>", ErrFormat, t.Name.Local, rootElement)
				}
				sawRoot = true
			case 2:
				cur = &Entry{Tag: t.Name.Local, Attrs: make(map[string]string, len(t.Attr))}
				for _, a := range t.Attr {
					cur.Attrs[a.Name.Local] = a.Value
				}
				text.Reset()
			}
		case xml.CharData:
			if depth == 2 {
				text.Write(t)
			}
		case xml.EndElement:
			if depth == 2 && cur != nil {
				if err := cur.fill(text.String()); err != nil {
					return nil, err
				}
				entries = append(entries, *cur)
				cur = nil
			}
			depth--
		}
	}

	if !sawRoot {
		return nil, fmt.Errorf("%w: footer has no <%s> element", ErrFormat, rootElement)
	}
	if depth != 0 {
		return nil, fmt.Errorf("%w: footer xml is truncated", ErrFormat)
	}
	return entries, nil
}

// nameRequired lists tags whose entries are keyed by name.
var nameRequired = map[string]bool{
	TagParameter:       true,
	TagVariable:        true,
	TagMesh:            true,
	TagBlockIDs:        true,
	TagBlockVariable:   true,
	TagBlocksPerCell:   true,
	TagCellsWithBlocks: true,
}

// fill validates attributes and sets the typed fields.
func (e *Entry) fill(text string) error {
	e.Name = e.Attrs["name"]
	e.Mesh = e.Attrs["mesh"]

	if nameRequired[e.Tag] && e.Name == "" {
		return fmt.Errorf("%w: %s entry without name", ErrFormat, e.Tag)
	}
	if strings.HasPrefix(e.Tag, "MESH_") && e.Mesh == "" {
		return fmt.Errorf("%w: %s entry without mesh", ErrFormat, e.Tag)
	}

	var err error
	if e.ArraySize, err = e.intAttr("arraysize", true); err != nil {
		return err
	}
	if e.VectorSize, err = e.intAttr("vectorsize", false); err != nil {
		return err
	}
	if e.VectorSize == 0 {
		if _, ok := e.Attrs["vectorsize"]; ok {
			return fmt.Errorf("%w: %s has vectorsize 0", ErrFormat, e)
		}
		e.VectorSize = 1
	}

	size, err := e.intAttr("datasize", true)
	if err != nil {
		return err
	}
	kindAttr, ok := e.Attrs["datatype"]
	if !ok {
		return fmt.Errorf("%w: %s missing datatype", ErrFormat, e)
	}
	kind, err := dtype.ParseKind(kindAttr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFormat, e, err)
	}
	e.Type = dtype.Type{Kind: kind, Size: size}
	if err := e.Type.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFormat, e, err)
	}
	if e.VectorSize > math.MaxInt64/size {
		return fmt.Errorf("%w: %s has vectorsize %d", ErrFormat, e, e.VectorSize)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: %s missing payload offset", ErrFormat, e)
	}
	e.Offset, err = strconv.ParseInt(text, 10, 64)
	if err != nil || e.Offset < 0 {
		return fmt.Errorf("%w: %s has invalid payload offset %q", ErrFormat, e, text)
	}
	return nil
}

func (e *Entry) intAttr(name string, required bool) (int, error) {
	v, ok := e.Attrs[name]
	if !ok {
		if required {
			return 0, fmt.Errorf("%w: %s missing %s", ErrFormat, e, name)
		}
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s has invalid %s %q", ErrFormat, e, name, v)
	}
	return n, nil
}

// ByTag returns the entries with the given tag in footer order.
func (f *Footer) ByTag(tag string) []*Entry {
	idx := f.byTag[tag]
	out := make([]*Entry, len(idx))
	for i, j := range idx {
		out[i] = &f.Entries[j]
	}
	return out
}

// Find returns the first entry with the given tag and name.
func (f *Footer) Find(tag, name string) (*Entry, bool) {
	for _, j := range f.byTag[tag] {
		if f.Entries[j].Name == name {
			return &f.Entries[j], true
		}
	}
	return nil, false
}

// FindIn returns the entry with the given tag and name on a mesh.
func (f *Footer) FindIn(tag, name, mesh string) (*Entry, bool) {
	for _, j := range f.byTag[tag] {
		if e := &f.Entries[j]; e.Name == name && e.Mesh == mesh {
			return e, true
		}
	}
	return nil, false
}

// FindMesh returns the first entry with the given tag on a mesh.
func (f *Footer) FindMesh(tag, mesh string) (*Entry, bool) {
	for _, j := range f.byTag[tag] {
		if f.Entries[j].Mesh == mesh {
			return &f.Entries[j], true
		}
	}
	return nil, false
}

// Meshes returns the MESH entries in footer order.
func (f *Footer) Meshes() []*Entry {
	return f.ByTag(TagMesh)
}

// Has reports whether an entry with the tag and name exists.
func (f *Footer) Has(tag, name string) bool {
	_, ok := f.Find(tag, name)
	return ok
}
