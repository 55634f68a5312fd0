package engine

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nyxdb/sqlitequery/internal/sqlerr"
	"github.com/nyxdb/sqlitequery/internal/varint"
)

const testPageSize = 512

// fieldValue is a test-only helper describing one record column to
// encode, mirroring the B-tree layer's own synthetic-buffer test style.
type fieldValue struct {
	isNull bool
	isInt  bool
	i      int64
	text   string
}

func nullField() fieldValue         { return fieldValue{isNull: true} }
func intField(i int64) fieldValue   { return fieldValue{isInt: true, i: i} }
func textField(s string) fieldValue { return fieldValue{text: s} }

func encodeRecord(fields []fieldValue) []byte {
	var body, serials []byte
	for _, f := range fields {
		if f.isNull {
			serials = append(serials, varint.Encode(0)...)
			continue
		}
		if f.isInt {
			serials = append(serials, varint.Encode(1)...)
			body = append(body, byte(f.i))
			continue
		}
		serials = append(serials, varint.Encode(uint64(13+2*len(f.text)))...)
		body = append(body, []byte(f.text)...)
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

type leafRow struct {
	rowid   int64
	payload []byte
}

func writeTableLeafPage(page []byte, pageNum int, rows []leafRow) {
	base := 0
	if pageNum == 1 {
		base = 100
	}
	page[base] = 0x0D
	binary.BigEndian.PutUint16(page[base+3:base+5], uint16(len(rows)))
	ptrBase := base + 8
	cellEnd := len(page)
	for i, r := range rows {
		cell := append(varint.Encode(uint64(len(r.payload))), varint.Encode(uint64(r.rowid))...)
		cell = append(cell, r.payload...)
		cellEnd -= len(cell)
		copy(page[cellEnd:], cell)
		binary.BigEndian.PutUint16(page[ptrBase+i*2:], uint16(cellEnd))
	}
}

func writeIndexLeafPage(page []byte, payloads [][]byte) {
	page[0] = 0x0A
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

func writeDBHeader(page []byte) {
	copy(page[0:16], []byte("SQLite format 3\x00"))
	page[16], page[17] = byte(testPageSize>>8), byte(testPageSize&0xFF)
	page[59] = 1
	page[31] = 3
}

// buildTestDB lays out a three-page database: page 1 is sqlite_schema
// (one table, one index), page 2 is the table's rows, page 3 is the
// index's leaf entries, pre-sorted by (key, rowid) ascending.
func buildTestDB(t *testing.T) string {
	t.Helper()
	pages := make([][]byte, 3)
	for i := range pages {
		pages[i] = make([]byte, testPageSize)
	}
	writeDBHeader(pages[0])

	tableSQL := "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT, age INTEGER)"
	indexSQL := "CREATE INDEX idx_age ON t (age)"
	schemaRows := []leafRow{
		{rowid: 1, payload: encodeRecord([]fieldValue{
			textField("table"), textField("t"), textField("t"), intField(2), textField(tableSQL),
		})},
		{rowid: 2, payload: encodeRecord([]fieldValue{
			textField("index"), textField("idx_age"), textField("t"), intField(3), textField(indexSQL),
		})},
	}
	writeTableLeafPage(pages[0], 1, schemaRows)

	tableRows := []leafRow{
		{rowid: 1, payload: encodeRecord([]fieldValue{nullField(), textField("alice"), intField(30)})},
		{rowid: 2, payload: encodeRecord([]fieldValue{nullField(), textField("bob"), intField(25)})},
		{rowid: 3, payload: encodeRecord([]fieldValue{nullField(), textField("carol"), intField(30)})},
	}
	writeTableLeafPage(pages[1], 2, tableRows)

	indexEntries := [][]byte{
		encodeRecord([]fieldValue{intField(25), intField(2)}),
		encodeRecord([]fieldValue{intField(30), intField(1)}),
		encodeRecord([]fieldValue{intField(30), intField(3)}),
	}
	writeIndexLeafPage(pages[2], indexEntries)

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

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	path := buildTestDB(t)
	e, err := Open(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestDBInfo(t *testing.T) {
	e := openTestEngine(t)
	out, err := e.Execute(context.Background(), ".dbinfo")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "database page size: 512") {
		t.Errorf("dbinfo output missing page size: %q", out)
	}
	if !strings.Contains(out, "number of tables: 1") {
		t.Errorf("dbinfo output missing table count: %q", out)
	}
}

func TestTablesCommand(t *testing.T) {
	e := openTestEngine(t)
	out, err := e.Execute(context.Background(), ".tables")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "t" {
		t.Errorf("tables output = %q, want %q", out, "t")
	}
}

func TestSchemaCommand(t *testing.T) {
	e := openTestEngine(t)
	out, err := e.Execute(context.Background(), ".schema")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "CREATE TABLE t") {
		t.Errorf("schema output missing CREATE TABLE: %q", out)
	}
}

func TestSelectStar(t *testing.T) {
	e := openTestEngine(t)
	out, err := e.Execute(context.Background(), "SELECT * FROM t")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d rows, want 3: %q", len(lines), out)
	}
	if lines[0] != "1|alice|30" {
		t.Errorf("row 0 = %q", lines[0])
	}
}

func TestSelectCountStar(t *testing.T) {
	e := openTestEngine(t)
	out, err := e.Execute(context.Background(), "SELECT COUNT(*) FROM t")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "3" {
		t.Errorf("count = %q, want 3", out)
	}
}

func TestSelectTableEqPlan(t *testing.T) {
	e := openTestEngine(t)
	out, err := e.Execute(context.Background(), "SELECT name FROM t WHERE id = 2")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "bob" {
		t.Errorf("out = %q, want bob", out)
	}
}

func TestSelectIndexLookupPlan(t *testing.T) {
	e := openTestEngine(t)
	out, err := e.Execute(context.Background(), "SELECT name FROM t WHERE age = 30")
	if err != nil {
		t.Fatal(err)
	}
	got := strings.Split(strings.TrimRight(out, "\n"), "\n")
	want := map[string]bool{"alice": true, "carol": true}
	if len(got) != 2 || !want[got[0]] || !want[got[1]] {
		t.Fatalf("out = %q, want alice and carol", out)
	}
}

func TestSelectCountStarUsesIndexWithoutFetchingRows(t *testing.T) {
	e := openTestEngine(t)
	out, err := e.Execute(context.Background(), "SELECT COUNT(*) FROM t WHERE age = 30")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "2" {
		t.Errorf("count = %q, want 2", out)
	}
}

func TestSelectUnknownTable(t *testing.T) {
	e := openTestEngine(t)
	_, err := e.Execute(context.Background(), "SELECT * FROM nope")
	if !sqlerr.Is(err, sqlerr.UnknownTable) {
		t.Fatalf("err = %v, want UnknownTable", err)
	}
}

func TestSelectUnknownColumn(t *testing.T) {
	e := openTestEngine(t)
	_, err := e.Execute(context.Background(), "SELECT nope FROM t")
	if !sqlerr.Is(err, sqlerr.UnknownColumn) {
		t.Fatalf("err = %v, want UnknownColumn", err)
	}
}

func TestSelectUnquotedStringLiteral(t *testing.T) {
	e := openTestEngine(t)
	_, err := e.Execute(context.Background(), "SELECT * FROM t WHERE name = alice")
	if !sqlerr.Is(err, sqlerr.UnquotedStringLiteral) {
		t.Fatalf("err = %v, want UnquotedStringLiteral", err)
	}
}
