// Package btree implements lazy traversal of SQLite's four B-tree page
// kinds (table/index, leaf/interior), using pager.Pager to fetch pages on
// demand and record.Decode to parse cell payloads.
package btree

import (
	"encoding/binary"

	"github.com/nyxdb/sqlitequery/internal/sqlerr"
	"github.com/nyxdb/sqlitequery/internal/varint"
)

// PageKind identifies one of the four on-disk B-tree page layouts.
type PageKind uint8

const (
	TableLeaf     PageKind = 0x0D
	TableInterior PageKind = 0x05
	IndexLeaf     PageKind = 0x0A
	IndexInterior PageKind = 0x02
)

func (k PageKind) IsLeaf() bool {
	return k == TableLeaf || k == IndexLeaf
}

func (k PageKind) IsTable() bool {
	return k == TableLeaf || k == TableInterior
}

func (k PageKind) headerSize() int {
	if k.IsLeaf() {
		return 8
	}
	return 12
}

func parseKind(b byte) (PageKind, error) {
	switch PageKind(b) {
	case TableLeaf, TableInterior, IndexLeaf, IndexInterior:
		return PageKind(b), nil
	default:
		return 0, sqlerr.New(sqlerr.UnsupportedPageKind, "parse_page_kind", nil, map[string]interface{}{"byte": b})
	}
}

// pageHeader is the decoded B-tree page header (§3).
type pageHeader struct {
	kind             PageKind
	cellCount        uint16
	rightmostChild   uint32 // interior pages only
	cellPointerStart int    // offset, within pageData, of the first cell pointer
	base             int    // offset, within pageData, where this B-tree page begins (0, or 100 for page 1)
}

func parsePageHeader(pageData []byte, pageNum int) (*pageHeader, error) {
	base := 0
	if pageNum == 1 {
		base = 100
	}
	if base+8 > len(pageData) {
		return nil, sqlerr.New(sqlerr.MalformedTree, "parse_page_header", nil, map[string]interface{}{"page": pageNum})
	}
	kind, err := parseKind(pageData[base])
	if err != nil {
		return nil, err
	}
	h := &pageHeader{
		kind:      kind,
		cellCount: binary.BigEndian.Uint16(pageData[base+3 : base+5]),
		base:      base,
	}
	h.cellPointerStart = base + kind.headerSize()
	if !kind.IsLeaf() {
		if base+12 > len(pageData) {
			return nil, sqlerr.New(sqlerr.MalformedTree, "parse_page_header", nil, map[string]interface{}{"page": pageNum})
		}
		h.rightmostChild = binary.BigEndian.Uint32(pageData[base+8 : base+12])
	}
	return h, nil
}

// cellOffset returns the absolute offset of cell i, as stored in the cell
// pointer array (§3: one big-endian 16-bit offset per cell).
func (h *pageHeader) cellOffset(pageData []byte, i int) (int, error) {
	p := h.cellPointerStart + i*2
	if p+2 > len(pageData) {
		return 0, sqlerr.New(sqlerr.MalformedTree, "cell_pointer_out_of_range", nil, map[string]interface{}{"index": i})
	}
	off := int(binary.BigEndian.Uint16(pageData[p : p+2]))
	if off < 0 || off >= len(pageData) {
		return 0, sqlerr.New(sqlerr.MalformedTree, "cell_pointer_out_of_range", nil, map[string]interface{}{"offset": off})
	}
	return off, nil
}

// TableLeafCell is a row stored directly in a table B-tree leaf.
type TableLeafCell struct {
	Rowid   int64
	Payload []byte
}

// TableInteriorCell is a child pointer + separator key in a table B-tree
// interior page.
type TableInteriorCell struct {
	LeftChild uint32
	Key       int64
}

// IndexLeafCell is a key entry stored directly in an index B-tree leaf.
// Its payload's last record field is the referenced table row id.
type IndexLeafCell struct {
	Payload []byte
}

// IndexInteriorCell is a child pointer + separator key (itself an index
// record) in an index B-tree interior page.
type IndexInteriorCell struct {
	LeftChild uint32
	Payload   []byte
}

// usableMaxLocal returns the largest payload size (in bytes) SQLite will
// store entirely on the page for the given cell kind, per the official
// overflow-threshold formulas. Payloads larger than this are rejected
// with OverflowUnsupported rather than silently truncated (spec §4.4,
// §9 Open Question).
func usableMaxLocal(usable int, table bool) int {
	if table {
		return usable - 35
	}
	return (usable-12)*64/255 - 23
}

func readPayload(pageData []byte, offset int, payloadSize uint64, table bool) ([]byte, error) {
	max := usableMaxLocal(len(pageData), table)
	if int(payloadSize) > max {
		return nil, sqlerr.New(sqlerr.OverflowUnsupported, "read_payload", nil, map[string]interface{}{
			"payload_size": payloadSize,
			"max_local":    max,
		})
	}
	if offset+int(payloadSize) > len(pageData) {
		return nil, sqlerr.New(sqlerr.TruncatedRecord, "read_payload", nil, map[string]interface{}{
			"need": offset + int(payloadSize),
			"have": len(pageData),
		})
	}
	return pageData[offset : offset+int(payloadSize)], nil
}

func parseTableLeafCell(pageData []byte, offset int) (*TableLeafCell, error) {
	payloadSize, n, err := varint.Decode(pageData, offset)
	if err != nil {
		return nil, err
	}
	offset += n
	rowid, n, err := varint.Decode(pageData, offset)
	if err != nil {
		return nil, err
	}
	offset += n
	payload, err := readPayload(pageData, offset, payloadSize, true)
	if err != nil {
		return nil, err
	}
	return &TableLeafCell{Rowid: int64(rowid), Payload: payload}, nil
}

func parseTableInteriorCell(pageData []byte, offset int) (*TableInteriorCell, error) {
	if offset+4 > len(pageData) {
		return nil, sqlerr.New(sqlerr.MalformedTree, "parse_table_interior_cell", nil, nil)
	}
	child := binary.BigEndian.Uint32(pageData[offset : offset+4])
	key, _, err := varint.Decode(pageData, offset+4)
	if err != nil {
		return nil, err
	}
	return &TableInteriorCell{LeftChild: child, Key: int64(key)}, nil
}

func parseIndexLeafCell(pageData []byte, offset int) (*IndexLeafCell, error) {
	payloadSize, n, err := varint.Decode(pageData, offset)
	if err != nil {
		return nil, err
	}
	offset += n
	payload, err := readPayload(pageData, offset, payloadSize, false)
	if err != nil {
		return nil, err
	}
	return &IndexLeafCell{Payload: payload}, nil
}

func parseIndexInteriorCell(pageData []byte, offset int) (*IndexInteriorCell, error) {
	if offset+4 > len(pageData) {
		return nil, sqlerr.New(sqlerr.MalformedTree, "parse_index_interior_cell", nil, nil)
	}
	child := binary.BigEndian.Uint32(pageData[offset : offset+4])
	offset += 4
	payloadSize, n, err := varint.Decode(pageData, offset)
	if err != nil {
		return nil, err
	}
	offset += n
	payload, err := readPayload(pageData, offset, payloadSize, false)
	if err != nil {
		return nil, err
	}
	return &IndexInteriorCell{LeftChild: child, Payload: payload}, nil
}
