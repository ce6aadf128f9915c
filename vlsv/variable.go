package vlsv

import (
	"encoding/binary"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	binpkg "github.com/robert-malhotra/go-vlsv/internal/binary"
	"github.com/robert-malhotra/go-vlsv/internal/dtype"
	"github.com/robert-malhotra/go-vlsv/internal/footer"
)

// DataType is the stored element type of an array.
type DataType = dtype.Type

// Array is a variable read from a file. Values stay in their stored
// representation until one of the accessors decodes them.
type Array struct {
	Name       string
	Mesh       string
	Type       DataType
	VectorSize int
	// Len is the number of records; each record has VectorSize values.
	Len int

	order binary.ByteOrder
	data  []byte
}

func (a *Array) values() int {
	return a.Len * a.VectorSize
}

// Float64 decodes all values, record after record.
func (a *Array) Float64() ([]float64, error) {
	return dtype.Decode[float64](a.Type, a.order, a.data, a.values())
}

// Float32 decodes all values as float32.
func (a *Array) Float32() ([]float32, error) {
	return dtype.Decode[float32](a.Type, a.order, a.data, a.values())
}

// Int64 decodes all values as int64.
func (a *Array) Int64() ([]int64, error) {
	return dtype.Decode[int64](a.Type, a.order, a.data, a.values())
}

// Uint64 decodes all values as uint64.
func (a *Array) Uint64() ([]uint64, error) {
	return dtype.Decode[uint64](a.Type, a.order, a.data, a.values())
}

// Decode decodes all values into dest, a pointer to a numeric slice.
func (a *Array) Decode(dest any) error {
	return dtype.DecodeAny(a.Type, a.order, a.data, a.values(), dest)
}

// Record decodes the VectorSize values of record i.
func (a *Array) Record(i int) ([]float64, error) {
	if i < 0 || i >= a.Len {
		return nil, fmt.Errorf("record %d outside %q of %d records", i, a.Name, a.Len)
	}
	rb := a.Type.Size * a.VectorSize
	return dtype.Decode[float64](a.Type, a.order, a.data[i*rb:(i+1)*rb], a.VectorSize)
}

// Bytes returns the raw stored bytes. The slice is shared.
func (a *Array) Bytes() []byte {
	return a.data
}

func (md *MetaData) newArray(e *footer.Entry, data []byte, records int) *Array {
	return &Array{
		Name:       e.Name,
		Mesh:       e.Mesh,
		Type:       e.Type,
		VectorSize: e.VectorSize,
		Len:        records,
		order:      md.footer.ByteOrder,
		data:       data,
	}
}

// variable finds a VARIABLE, preferring the one on the spatial mesh when
// several meshes store the same name.
func (md *MetaData) variable(name string) (*footer.Entry, error) {
	if md.mesh != nil {
		if e, ok := md.footer.FindIn(footer.TagVariable, name, md.mesh.Name); ok {
			return e, nil
		}
	}
	if e, ok := md.footer.Find(footer.TagVariable, name); ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownVariable, name)
}

// onSpatialMesh reports whether e has one record per stored spatial cell.
func (md *MetaData) onSpatialMesh(e *footer.Entry) (bool, error) {
	if md.mesh == nil || e.Mesh != md.mesh.Name {
		return false, nil
	}
	if e.ArraySize != md.cells.Len() {
		return false, fmt.Errorf("%w: %s has %d records but mesh %q stores %d cells",
			ErrFormat, e, e.ArraySize, md.mesh.Name, md.cells.Len())
	}
	return true, nil
}

// ReadVariable reads a whole variable. With sorted set, variables of the
// spatial mesh are permuted into ascending cell id order; otherwise records
// keep file order. Field-solver variables are always in grid order.
func (md *MetaData) ReadVariable(name string, sorted bool) (*Array, error) {
	if err := md.check(); err != nil {
		return nil, err
	}
	return md.readVariable(name, sorted)
}

func (md *MetaData) readVariable(name string, sorted bool) (*Array, error) {
	e, err := md.variable(name)
	if err != nil {
		return nil, err
	}
	spatial, err := md.onSpatialMesh(e)
	if err != nil {
		return nil, err
	}
	data, err := md.readRecords(e, 0, int64(e.ArraySize))
	if err != nil {
		return nil, err
	}
	if sorted && spatial && !md.cells.Identity() {
		data = permute(data, md.cells.Permutation(), int(e.RecordBytes()))
	}
	return md.newArray(e, data, e.ArraySize), nil
}

// permute returns the records of data in the order given by perm.
func permute(data []byte, perm []int, recordBytes int) []byte {
	out := make([]byte, len(data))
	for i, r := range perm {
		copy(out[i*recordBytes:(i+1)*recordBytes], data[r*recordBytes:(r+1)*recordBytes])
	}
	return out
}

// ReadVariableSelect reads the records of the given cells, in the order
// given. Runs of adjacent records are fetched with one read each.
func (md *MetaData) ReadVariableSelect(name string, ids []uint64) (*Array, error) {
	if err := md.check(); err != nil {
		return nil, err
	}
	e, err := md.variable(name)
	if err != nil {
		return nil, err
	}
	spatial, err := md.onSpatialMesh(e)
	if err != nil {
		return nil, err
	}
	if !spatial {
		return nil, fmt.Errorf("%w: %q is not stored per cell of mesh %q", ErrUnknownVariable, name, md.opts.spatialMesh)
	}
	recs, err := md.cells.Records(ids)
	if err != nil {
		return nil, fmt.Errorf("selecting %q: %w", name, err)
	}
	data, err := md.readSelected(e, recs)
	if err != nil {
		return nil, err
	}
	return md.newArray(e, data, len(recs)), nil
}

func (md *MetaData) readSelected(e *footer.Entry, recs []int) ([]byte, error) {
	rb := e.RecordBytes()
	if len(recs) == 0 {
		return []byte{}, nil
	}

	uniq := append([]int(nil), recs...)
	sort.Ints(uniq)
	runs := make([]binpkg.Run, 0, len(uniq))
	for i, r := range uniq {
		if i > 0 && r == uniq[i-1] {
			continue
		}
		runs = append(runs, binpkg.Run{Offset: e.Offset + int64(r)*rb, Length: rb})
	}
	runs = binpkg.Coalesce(runs)

	bufs := make([][]byte, len(runs))
	for i, run := range runs {
		bufs[i] = make([]byte, run.Length)
		if err := md.reader.ReadAt(bufs[i], run.Offset); err != nil {
			return nil, md.readError(e, err)
		}
	}

	out := make([]byte, int64(len(recs))*rb)
	for i, r := range recs {
		off := e.Offset + int64(r)*rb
		j := sort.Search(len(runs), func(j int) bool { return runs[j].Offset+runs[j].Length > off })
		start := off - runs[j].Offset
		copy(out[int64(i)*rb:], bufs[j][start:start+rb])
	}
	return out, nil
}

// ReadVariables reads several variables concurrently, at most
// WithConcurrency at a time. The result is in the order of names.
func (md *MetaData) ReadVariables(names []string, sorted bool) ([]*Array, error) {
	if err := md.check(); err != nil {
		return nil, err
	}
	out := make([]*Array, len(names))
	var g errgroup.Group
	g.SetLimit(md.opts.concurrency)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			a, err := md.readVariable(name, sorted)
			if err != nil {
				return err
			}
			out[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// CellIDs returns the stored spatial cell ids, ascending when sorted is set
// and in record order otherwise. It returns nil without a spatial mesh.
func (md *MetaData) CellIDs(sorted bool) []uint64 {
	if md.mesh == nil {
		return nil
	}
	if sorted {
		return append([]uint64(nil), md.cells.Sorted()...)
	}
	return append([]uint64(nil), md.cellIDs...)
}

// Variables returns the names of all variables, sorted and without
// duplicates.
func (md *MetaData) Variables() []string {
	return names(md.footer.ByTag(footer.TagVariable))
}

// HasVariable reports whether a variable is stored on any mesh.
func (md *MetaData) HasVariable(name string) bool {
	return md.footer.Has(footer.TagVariable, name)
}

// VariableInfo describes a stored variable.
type VariableInfo struct {
	Name           string
	Mesh           string
	Unit           string
	UnitLaTeX      string
	VariableLaTeX  string
	UnitConversion string
	Type           DataType
	VectorSize     int
	Len            int
}

// VariableInfo returns the units and layout of a variable without reading it.
func (md *MetaData) VariableInfo(name string) (*VariableInfo, error) {
	e, err := md.variable(name)
	if err != nil {
		return nil, err
	}
	return &VariableInfo{
		Name:           e.Name,
		Mesh:           e.Mesh,
		Unit:           e.Attr("unit"),
		UnitLaTeX:      e.Attr("unitLaTeX"),
		VariableLaTeX:  e.Attr("variableLaTeX"),
		UnitConversion: e.Attr("unitConversion"),
		Type:           e.Type,
		VectorSize:     e.VectorSize,
		Len:            e.ArraySize,
	}, nil
}

func names(entries []*footer.Entry) []string {
	seen := make(map[string]bool, len(entries))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if !seen[e.Name] {
			seen[e.Name] = true
			out = append(out, e.Name)
		}
	}
	sort.Strings(out)
	return out
}
