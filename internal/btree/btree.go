package btree

import (
	"context"

	"github.com/nyxdb/sqlitequery/internal/pager"
	"github.com/nyxdb/sqlitequery/internal/record"
	"github.com/nyxdb/sqlitequery/internal/sqlerr"
)

// maxDepth bounds runaway recursion on a corrupt file (spec §4.5).
const maxDepth = 64

// TableTree navigates a table B-tree (rows keyed by row id).
type TableTree struct {
	pager *pager.Pager
	root  int
}

// NewTableTree returns a traversal handle rooted at the given page.
func NewTableTree(p *pager.Pager, root int) *TableTree {
	return &TableTree{pager: p, root: root}
}

// CollectAll returns every leaf cell reachable from the root, in
// row-id-ascending order.
func (t *TableTree) CollectAll(ctx context.Context) ([]TableLeafCell, error) {
	var out []TableLeafCell
	if err := t.collect(ctx, t.root, 0, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *TableTree) collect(ctx context.Context, pageNum, depth int, out *[]TableLeafCell) error {
	if depth > maxDepth {
		return sqlerr.New(sqlerr.MalformedTree, "collect", nil, map[string]interface{}{"depth": depth})
	}
	pageData, err := t.pager.ReadPage(ctx, pageNum)
	if err != nil {
		return err
	}
	h, err := parsePageHeader(pageData, pageNum)
	if err != nil {
		return err
	}
	if !h.kind.IsTable() {
		return sqlerr.New(sqlerr.UnsupportedPageKind, "collect", nil, map[string]interface{}{"page": pageNum})
	}

	if h.kind == TableLeaf {
		for i := 0; i < int(h.cellCount); i++ {
			off, err := h.cellOffset(pageData, i)
			if err != nil {
				return err
			}
			cell, err := parseTableLeafCell(pageData, off)
			if err != nil {
				return err
			}
			*out = append(*out, *cell)
		}
		return nil
	}

	for i := 0; i < int(h.cellCount); i++ {
		off, err := h.cellOffset(pageData, i)
		if err != nil {
			return err
		}
		cell, err := parseTableInteriorCell(pageData, off)
		if err != nil {
			return err
		}
		if err := t.collect(ctx, int(cell.LeftChild), depth+1, out); err != nil {
			return err
		}
	}
	return t.collect(ctx, int(h.rightmostChild), depth+1, out)
}

// SeekRowid descends directly to the leaf that would hold rowid and
// returns the matching cell, if any, without reading unrelated pages.
func (t *TableTree) SeekRowid(ctx context.Context, rowid int64) (*TableLeafCell, bool, error) {
	return t.seek(ctx, t.root, rowid, 0)
}

func (t *TableTree) seek(ctx context.Context, pageNum int, rowid int64, depth int) (*TableLeafCell, bool, error) {
	if depth > maxDepth {
		return nil, false, sqlerr.New(sqlerr.MalformedTree, "seek", nil, map[string]interface{}{"depth": depth})
	}
	pageData, err := t.pager.ReadPage(ctx, pageNum)
	if err != nil {
		return nil, false, err
	}
	h, err := parsePageHeader(pageData, pageNum)
	if err != nil {
		return nil, false, err
	}
	if !h.kind.IsTable() {
		return nil, false, sqlerr.New(sqlerr.UnsupportedPageKind, "seek", nil, map[string]interface{}{"page": pageNum})
	}

	if h.kind == TableLeaf {
		// Cells are sorted by row id ascending; binary search.
		lo, hi := 0, int(h.cellCount)
		for lo < hi {
			mid := (lo + hi) / 2
			off, err := h.cellOffset(pageData, mid)
			if err != nil {
				return nil, false, err
			}
			cell, err := parseTableLeafCell(pageData, off)
			if err != nil {
				return nil, false, err
			}
			switch {
			case cell.Rowid == rowid:
				return cell, true, nil
			case cell.Rowid < rowid:
				lo = mid + 1
			default:
				hi = mid
			}
		}
		return nil, false, nil
	}

	// Interior: descend into the first child whose key is >= rowid, else
	// the rightmost child.
	child := h.rightmostChild
	for i := 0; i < int(h.cellCount); i++ {
		off, err := h.cellOffset(pageData, i)
		if err != nil {
			return nil, false, err
		}
		cell, err := parseTableInteriorCell(pageData, off)
		if err != nil {
			return nil, false, err
		}
		if rowid <= cell.Key {
			child = cell.LeftChild
			break
		}
	}
	return t.seek(ctx, int(child), rowid, depth+1)
}

// IndexTree navigates an index B-tree (rows keyed by the ordered tuple of
// indexed columns, tie-broken by the trailing row id).
type IndexTree struct {
	pager *pager.Pager
	root  int
}

// NewIndexTree returns a traversal handle rooted at the given page.
func NewIndexTree(p *pager.Pager, root int) *IndexTree {
	return &IndexTree{pager: p, root: root}
}

// CollectAll returns every leaf cell reachable from the root, in
// key-ascending order.
func (t *IndexTree) CollectAll(ctx context.Context) ([]IndexLeafCell, error) {
	var out []IndexLeafCell
	if err := t.collect(ctx, t.root, 0, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *IndexTree) collect(ctx context.Context, pageNum, depth int, out *[]IndexLeafCell) error {
	if depth > maxDepth {
		return sqlerr.New(sqlerr.MalformedTree, "collect", nil, map[string]interface{}{"depth": depth})
	}
	pageData, err := t.pager.ReadPage(ctx, pageNum)
	if err != nil {
		return err
	}
	h, err := parsePageHeader(pageData, pageNum)
	if err != nil {
		return err
	}
	if h.kind.IsTable() {
		return sqlerr.New(sqlerr.UnsupportedPageKind, "collect", nil, map[string]interface{}{"page": pageNum})
	}

	if h.kind == IndexLeaf {
		for i := 0; i < int(h.cellCount); i++ {
			off, err := h.cellOffset(pageData, i)
			if err != nil {
				return err
			}
			cell, err := parseIndexLeafCell(pageData, off)
			if err != nil {
				return err
			}
			*out = append(*out, *cell)
		}
		return nil
	}

	for i := 0; i < int(h.cellCount); i++ {
		off, err := h.cellOffset(pageData, i)
		if err != nil {
			return err
		}
		cell, err := parseIndexInteriorCell(pageData, off)
		if err != nil {
			return err
		}
		if err := t.collect(ctx, int(cell.LeftChild), depth+1, out); err != nil {
			return err
		}
	}
	return t.collect(ctx, int(h.rightmostChild), depth+1, out)
}

// firstColumn decodes just enough of an index payload to extract its
// first key column, for prefix comparison during seek.
func firstColumn(payload []byte) (record.Value, error) {
	rec, err := record.Decode(payload, nil, -1)
	if err != nil {
		return record.Value{}, err
	}
	if len(rec.Values) == 0 {
		return record.Value{Kind: record.Null}, nil
	}
	return rec.Values[0], nil
}

// SeekPrefix returns the contiguous run of leaf cells whose first key
// column equals value, per the IndexPrefix predicate (spec §4.5).
func (t *IndexTree) SeekPrefix(ctx context.Context, value record.Value) ([]IndexLeafCell, error) {
	var out []IndexLeafCell
	if err := t.seekPrefix(ctx, t.root, value, 0, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *IndexTree) seekPrefix(ctx context.Context, pageNum int, value record.Value, depth int, out *[]IndexLeafCell) error {
	if depth > maxDepth {
		return sqlerr.New(sqlerr.MalformedTree, "seek_prefix", nil, map[string]interface{}{"depth": depth})
	}
	pageData, err := t.pager.ReadPage(ctx, pageNum)
	if err != nil {
		return err
	}
	h, err := parsePageHeader(pageData, pageNum)
	if err != nil {
		return err
	}
	if h.kind.IsTable() {
		return sqlerr.New(sqlerr.UnsupportedPageKind, "seek_prefix", nil, map[string]interface{}{"page": pageNum})
	}

	if h.kind == IndexLeaf {
		for i := 0; i < int(h.cellCount); i++ {
			off, err := h.cellOffset(pageData, i)
			if err != nil {
				return err
			}
			cell, err := parseIndexLeafCell(pageData, off)
			if err != nil {
				return err
			}
			key, err := firstColumn(cell.Payload)
			if err != nil {
				return err
			}
			if record.Compare(key, value) == 0 {
				*out = append(*out, *cell)
			}
		}
		return nil
	}

	// Interior: descend into every child whose separator is >= value
	// (spec §9's authoritative rule). Because only a separator's first
	// column is compared against value (its trailing row id is not),
	// child[i] — holding keys in (separator[i-1], separator[i]] —
	// can still contain matching entries even when separator[i] is
	// strictly greater than value, as long as separator[i-1] shares
	// value's first column. So every child up to and including the
	// first separator strictly greater than value must be visited;
	// only after that child is visited can the scan stop, since no
	// later separator (or the rightmost child) can hold a match.
	for i := 0; i < int(h.cellCount); i++ {
		off, err := h.cellOffset(pageData, i)
		if err != nil {
			return err
		}
		cell, err := parseIndexInteriorCell(pageData, off)
		if err != nil {
			return err
		}
		key, err := firstColumn(cell.Payload)
		if err != nil {
			return err
		}
		cmp := record.Compare(key, value)
		if cmp < 0 {
			continue
		}
		if err := t.seekPrefix(ctx, int(cell.LeftChild), value, depth+1, out); err != nil {
			return err
		}
		if cmp > 0 {
			return nil
		}
	}
	return t.seekPrefix(ctx, int(h.rightmostChild), value, depth+1, out)
}
