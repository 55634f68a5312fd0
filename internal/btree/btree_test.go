package btree

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/nyxdb/sqlitequery/internal/pager"
	"github.com/nyxdb/sqlitequery/internal/record"
	"github.com/nyxdb/sqlitequery/internal/varint"
)

const pageSize = 512

// dbBuilder assembles a tiny multi-page database, one page per addPage
// call, for traversal tests without going through the schema/DDL layers.
type dbBuilder struct {
	pages [][]byte
}

func newDBBuilder() *dbBuilder {
	return &dbBuilder{}
}

func (b *dbBuilder) addPage() (int, []byte) {
	p := make([]byte, pageSize)
	b.pages = append(b.pages, p)
	return len(b.pages), p
}

func recordPayload(values []record.Value) []byte {
	var body, serials []byte
	for _, v := range values {
		var st uint64
		switch v.Kind {
		case record.Null:
			st = 0
		case record.Int:
			serials = append(serials, varint.Encode(1)...)
			body = append(body, byte(v.Int))
			continue
		case record.Text:
			st = uint64(13 + 2*len(v.Bytes))
			body = append(body, v.Bytes...)
		}
		serials = append(serials, varint.Encode(st)...)
	}
	headerLen := uint64(1 + len(serials))
	for {
		enc := varint.Encode(headerLen)
		total := uint64(len(enc) + len(serials))
		if total == headerLen {
			out := append(append([]byte{}, enc...), serials...)
			return append(out, body...)
		}
		headerLen = total
	}
}

func (b *dbBuilder) writeTableLeaf(page []byte, pageNum int, rows []struct {
	rowid   int64
	payload []byte
}) {
	base := 0
	if pageNum == 1 {
		base = 100
	}
	page[base] = byte(TableLeaf)
	binary.BigEndian.PutUint16(page[base+3:base+5], uint16(len(rows)))
	cellEnd := len(page)
	ptrBase := base + 8
	for i, r := range rows {
		cell := append(varint.Encode(uint64(len(r.payload))), varint.Encode(uint64(r.rowid))...)
		cell = append(cell, r.payload...)
		cellEnd -= len(cell)
		copy(page[cellEnd:], cell)
		binary.BigEndian.PutUint16(page[ptrBase+i*2:], uint16(cellEnd))
	}
}

func writeHeader(page []byte) {
	copy(page[0:16], []byte("SQLite format 3\x00"))
	page[16], page[17] = byte(pageSize>>8), byte(pageSize&0xFF)
	page[59] = 1
	page[31] = 1
}

func flushToFile(t *testing.T, pages [][]byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	for _, p := range pages {
		if _, err := f.Write(p); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func (b *dbBuilder) writeIndexLeaf(page []byte, payloads [][]byte) {
	page[0] = byte(IndexLeaf)
	binary.BigEndian.PutUint16(page[3:5], uint16(len(payloads)))
	ptrBase := 8
	cellEnd := len(page)
	for i, payload := range payloads {
		cell := append(varint.Encode(uint64(len(payload))), payload...)
		cellEnd -= len(cell)
		copy(page[cellEnd:], cell)
		binary.BigEndian.PutUint16(page[ptrBase+i*2:], uint16(cellEnd))
	}
}

func (b *dbBuilder) writeIndexInterior(page []byte, pageNum int, cells []struct {
	leftChild int
	payload   []byte
}, rightmostChild int) {
	page[0] = byte(IndexInterior)
	binary.BigEndian.PutUint16(page[3:5], uint16(len(cells)))
	base := 0
	if pageNum == 1 {
		base = 100
	}
	binary.BigEndian.PutUint32(page[base+8:base+12], uint32(rightmostChild))
	ptrBase := base + 12
	cellEnd := len(page)
	for i, c := range cells {
		cell := make([]byte, 4)
		binary.BigEndian.PutUint32(cell, uint32(c.leftChild))
		cell = append(cell, varint.Encode(uint64(len(c.payload)))...)
		cell = append(cell, c.payload...)
		cellEnd -= len(cell)
		copy(page[cellEnd:], cell)
		binary.BigEndian.PutUint16(page[ptrBase+i*2:], uint16(cellEnd))
	}
}

// indexEntry encodes a 2-column index record: the indexed value followed
// by the trailing row id (spec §4.5's "payload's last field is the row
// id" shape).
func indexEntry(key record.Value, rowid int64) []byte {
	return recordPayload([]record.Value{key, {Kind: record.Int, Int: rowid}})
}

// TestIndexSeekPrefixDescendsAllMatchingChildren builds a depth-2 index
// B-tree where a run of separators sharing "b" as their first-column
// value is followed by a strictly greater separator ("c"), and checks
// that the child reached through that greater separator — which still
// holds matching "b" rows, tie-broken by trailing row id — is visited
// rather than skipped.
func TestIndexSeekPrefixDescendsAllMatchingChildren(t *testing.T) {
	b := newDBBuilder()

	// Page 1 carries only the database header the pager validates.
	_, header := b.addPage()
	writeHeader(header)

	leafANum, leafA := b.addPage()
	b.writeIndexLeaf(leafA, [][]byte{
		indexEntry(record.Value{Kind: record.Text, Bytes: []byte("a")}, 1),
		indexEntry(record.Value{Kind: record.Text, Bytes: []byte("b")}, 2),
	})

	leafBNum, leafB := b.addPage()
	b.writeIndexLeaf(leafB, [][]byte{
		indexEntry(record.Value{Kind: record.Text, Bytes: []byte("b")}, 3),
		indexEntry(record.Value{Kind: record.Text, Bytes: []byte("b")}, 4),
	})

	leafCNum, leafC := b.addPage()
	b.writeIndexLeaf(leafC, [][]byte{
		indexEntry(record.Value{Kind: record.Text, Bytes: []byte("d")}, 5),
	})

	rootNum, root := b.addPage()
	b.writeIndexInterior(root, rootNum, []struct {
		leftChild int
		payload   []byte
	}{
		{leftChild: leafANum, payload: indexEntry(record.Value{Kind: record.Text, Bytes: []byte("b")}, 2)},
		{leftChild: leafBNum, payload: indexEntry(record.Value{Kind: record.Text, Bytes: []byte("c")}, 10)},
	}, leafCNum)

	path := flushToFile(t, b.pages)
	p, err := pager.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	tree := NewIndexTree(p, rootNum)
	out, err := tree.SeekPrefix(context.Background(), record.Value{Kind: record.Text, Bytes: []byte("b")})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("SeekPrefix returned %d cells, want 3 (got %+v)", len(out), out)
	}
}

func TestTableLeafCollectAndSeek(t *testing.T) {
	b := newDBBuilder()
	num, page := b.addPage()
	writeHeader(page)

	rows := []struct {
		rowid   int64
		payload []byte
	}{
		{1, recordPayload([]record.Value{{Kind: record.Text, Bytes: []byte("a")}})},
		{5, recordPayload([]record.Value{{Kind: record.Text, Bytes: []byte("b")}})},
		{9, recordPayload([]record.Value{{Kind: record.Text, Bytes: []byte("c")}})},
	}
	b.writeTableLeaf(page, num, rows)

	path := flushToFile(t, b.pages)
	p, err := pager.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	tree := NewTableTree(p, 1)
	ctx := context.Background()

	all, err := tree.CollectAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("CollectAll returned %d cells, want 3", len(all))
	}
	if all[0].Rowid != 1 || all[2].Rowid != 9 {
		t.Fatalf("CollectAll out of order: %+v", all)
	}

	cell, found, err := tree.SeekRowid(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected to find rowid 5")
	}
	if cell.Rowid != 5 {
		t.Fatalf("SeekRowid returned rowid %d, want 5", cell.Rowid)
	}

	_, found, err = tree.SeekRowid(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected rowid 42 to be absent")
	}
}
