package footer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-vlsv/internal/dtype"
)

// buildFile lays out a header, payload bytes and footer xml.
func buildFile(marker byte, order binary.ByteOrder, payload []byte, xmlText string) []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = marker
	order.PutUint64(buf[8:], uint64(HeaderSize+len(payload)))
	buf = append(buf, payload...)
	return append(buf, xmlText...)
}

const sampleFooter = `<VLSV>
  <PARAMETER name="time" mesh="" arraysize="1" vectorsize="1" datasize="8" datatype="float">16</PARAMETER>
  <MESH name="SpatialGrid" arraysize="4" vectorsize="1" datasize="8" datatype="uint" type="amr_ucd" max_refinement_level="1">24</MESH>
  <VARIABLE name="vg_b_vol" mesh="SpatialGrid" arraysize="4" vectorsize="3" datasize="4" datatype="float" unit="T">56</VARIABLE>
  <MESH_BBOX mesh="SpatialGrid" arraysize="6" vectorsize="1" datasize="8" datatype="int">104</MESH_BBOX>
</VLSV>`

func TestRead(t *testing.T) {
	payload := make([]byte, 8+32+48+48)
	data := buildFile(0, binary.LittleEndian, payload, sampleFooter)

	f, err := Read(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	assert.Equal(t, binary.LittleEndian, f.ByteOrder)
	assert.Equal(t, int64(HeaderSize+len(payload)), f.Offset)
	require.Len(t, f.Entries, 4)

	v, ok := f.Find(TagVariable, "vg_b_vol")
	require.True(t, ok)
	assert.Equal(t, "SpatialGrid", v.Mesh)
	assert.Equal(t, int64(56), v.Offset)
	assert.Equal(t, dtype.Float32, v.Type)
	assert.Equal(t, 3, v.VectorSize)
	assert.Equal(t, 4, v.ArraySize)
	assert.Equal(t, int64(12), v.RecordBytes())
	assert.Equal(t, int64(48), v.ByteLength())
	assert.Equal(t, "T", v.Attr("unit"))
	assert.Equal(t, "", v.Attr("missing"))

	m, ok := f.FindMesh(TagMeshBBox, "SpatialGrid")
	require.True(t, ok)
	assert.Equal(t, dtype.Int64, m.Type)

	assert.Len(t, f.Meshes(), 1)
	assert.True(t, f.Has(TagParameter, "time"))
	assert.False(t, f.Has(TagParameter, "dt"))

	_, ok = f.FindIn(TagVariable, "vg_b_vol", "fsgrid")
	assert.False(t, ok)
}

func TestReadBigEndian(t *testing.T) {
	x := `<VLSV><PARAMETER name="time" arraysize="1" vectorsize="1" datasize="8" datatype="float">16</PARAMETER></VLSV>`
	data := buildFile(1, binary.BigEndian, make([]byte, 8), x)

	f, err := Read(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, binary.BigEndian, f.ByteOrder)
	assert.Equal(t, int64(24), f.Offset)
}

func TestReadInvalidHeader(t *testing.T) {
	good := buildFile(0, binary.LittleEndian, nil, `<VLSV></VLSV>`)

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"short file", func(b []byte) []byte { return b[:10] }},
		{"bad marker", func(b []byte) []byte { b[0] = 7; return b }},
		{"offset beyond file", func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[8:], uint64(len(b)+100))
			return b
		}},
		{"offset at end of file", func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[8:], uint64(len(b)))
			return b
		}},
		{"offset inside header", func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[8:], 4)
			return b
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(append([]byte(nil), good...))
			_, err := Read(bytes.NewReader(data), int64(len(data)))
			assert.ErrorIs(t, err, ErrFormat)
		})
	}
}

func TestReadPayloadOutsideDataRegion(t *testing.T) {
	tests := []struct {
		name       string
		offset     int
		arraySize  string
		vectorSize string
	}{
		{"inside header", 8, "2", "1"},
		{"overlaps footer", 20, "2", "1"},
		{"beyond footer", 40, "0", "1"},
		{"length wraps to zero", 16, "2305843009213693952", "1"},
		{"length wraps past region", 16, "1152921504606846977", "2"},
		{"record size overflows", 16, "1", "1152921504606846977"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := fmt.Sprintf(`<VLSV><VARIABLE name="rho" mesh="SpatialGrid" arraysize="%s" vectorsize="%s" datasize="8" datatype="float">%d</VARIABLE></VLSV>`,
				tt.arraySize, tt.vectorSize, tt.offset)
			data := buildFile(0, binary.LittleEndian, make([]byte, 16), x)
			_, err := Read(bytes.NewReader(data), int64(len(data)))
			assert.ErrorIs(t, err, ErrFormat)
		})
	}
}

func TestParse(t *testing.T) {
	entries, err := Parse([]byte(`<?xml version="1.0"?>
<VLSV>
  <VERSION arraysize="1" vectorsize="1" datasize="8" datatype="float"> 16 </VERSION>
  <BLOCKIDS name="proton" mesh="SpatialGrid" arraysize="10" datasize="4" datatype="uint">24</BLOCKIDS>
</VLSV>`))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, TagVersion, entries[0].Tag)
	assert.Equal(t, int64(16), entries[0].Offset)
	assert.Equal(t, "", entries[0].Name)

	assert.Equal(t, TagBlockIDs, entries[1].Tag)
	assert.Equal(t, 1, entries[1].VectorSize)
	assert.Equal(t, dtype.Uint32, entries[1].Type)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"empty", ``},
		{"wrong root", `<HDF5></HDF5>`},
		{"truncated", `<VLSV><VARIABLE name="rho" mesh="m" arraysize="1" datasize="8" datatype="float">16`},
		{"not xml", `{"VLSV": []}`},
		{"missing name", `<VLSV><VARIABLE mesh="m" arraysize="1" datasize="8" datatype="float">16</VARIABLE></VLSV>`},
		{"missing mesh", `<VLSV><MESH_BBOX arraysize="6" datasize="8" datatype="int">16</MESH_BBOX></VLSV>`},
		{"missing arraysize", `<VLSV><VARIABLE name="rho" datasize="8" datatype="float">16</VARIABLE></VLSV>`},
		{"missing datatype", `<VLSV><VARIABLE name="rho" arraysize="1" datasize="8">16</VARIABLE></VLSV>`},
		{"unknown datatype", `<VLSV><VARIABLE name="rho" arraysize="1" datasize="8" datatype="complex">16</VARIABLE></VLSV>`},
		{"bad datasize", `<VLSV><VARIABLE name="rho" arraysize="1" datasize="3" datatype="float">16</VARIABLE></VLSV>`},
		{"zero vectorsize", `<VLSV><VARIABLE name="rho" arraysize="1" vectorsize="0" datasize="8" datatype="float">16</VARIABLE></VLSV>`},
		{"negative arraysize", `<VLSV><VARIABLE name="rho" arraysize="-1" datasize="8" datatype="float">16</VARIABLE></VLSV>`},
		{"missing offset", `<VLSV><VARIABLE name="rho" arraysize="1" datasize="8" datatype="float"></VARIABLE></VLSV>`},
		{"bad offset", `<VLSV><VARIABLE name="rho" arraysize="1" datasize="8" datatype="float">abc</VARIABLE></VLSV>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.xml))
			assert.ErrorIs(t, err, ErrFormat)
		})
	}
}

func TestByTagOrder(t *testing.T) {
	f := New(binary.LittleEndian, 100, []Entry{
		{Tag: TagVariable, Name: "a"},
		{Tag: TagParameter, Name: "p"},
		{Tag: TagVariable, Name: "b"},
	})
	vars := f.ByTag(TagVariable)
	require.Len(t, vars, 2)
	assert.Equal(t, "a", vars[0].Name)
	assert.Equal(t, "b", vars[1].Name)
	assert.Empty(t, f.ByTag(TagMesh))
}
