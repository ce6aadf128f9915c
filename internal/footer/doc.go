// Package footer parses the trailing XML footer of a VLSV file.
//
// A VLSV file starts with a 16 byte header:
//
//	offset 0   1 byte   endianness marker (0 little, 1 big)
//	offset 1   7 bytes  padding
//	offset 8   8 bytes  uint64 byte offset of the footer
//
// The footer runs from that offset to the end of the file. It is a single
// <VLSV> element whose children each describe one stored array:
//
//	<VARIABLE name="proton/vg_rho" mesh="SpatialGrid" arraysize="64"
//	          vectorsize="1" datasize="8" datatype="float">1024</VARIABLE>
//
// The element text is the payload byte offset. The parser builds the catalog
// of entries only; no payload is read.
package footer
