package engine

import (
	"context"
	"sync"

	"github.com/nyxdb/sqlitequery/internal/btree"
	"github.com/nyxdb/sqlitequery/internal/pager"
	"github.com/nyxdb/sqlitequery/internal/record"
	"github.com/nyxdb/sqlitequery/internal/sqlerr"
)

// row is one decoded and already-projected result row.
type row struct {
	values []record.Value
}

// execPlan runs p against the database and returns the rows it selects,
// already filtered by WHERE but not yet projected or formatted (spec
// §4.9 step 4).
func execPlan(ctx context.Context, p *pager.Pager, maxConcurrency int, pl *plan) ([]*record.Record, error) {
	switch pl.kind {
	case planTableEq:
		return execTableEq(ctx, p, pl)
	case planIndexLookup:
		return execIndexLookup(ctx, p, maxConcurrency, pl)
	default:
		return execScan(ctx, p, pl)
	}
}

func execScan(ctx context.Context, p *pager.Pager, pl *plan) ([]*record.Record, error) {
	tree := btree.NewTableTree(p, pl.table.RootPage)
	cells, err := tree.CollectAll(ctx)
	if err != nil {
		return nil, err
	}

	whereCol := pl.whereColumnIndex()
	var out []*record.Record
	for _, cell := range cells {
		rowid := cell.Rowid
		rec, err := record.Decode(cell.Payload, &rowid, pl.table.Def.RowidAliasCol)
		if err != nil {
			return nil, err
		}
		if !matchesWhere(pl.where, pl.whereValue, rec, whereCol) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func execTableEq(ctx context.Context, p *pager.Pager, pl *plan) ([]*record.Record, error) {
	tree := btree.NewTableTree(p, pl.table.RootPage)
	cell, found, err := tree.SeekRowid(ctx, pl.rowid)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	rowid := cell.Rowid
	rec, err := record.Decode(cell.Payload, &rowid, pl.table.Def.RowidAliasCol)
	if err != nil {
		return nil, err
	}
	// The WHERE comparison is redundant here (TableEq is only planned for
	// "=" on the row-id alias, and the seek already matched the row id
	// exactly) but is evaluated anyway so TableEq filters rows the same
	// way Scan does (spec §4.9 step 4).
	whereCol := pl.whereColumnIndex()
	if !matchesWhere(pl.where, pl.whereValue, rec, whereCol) {
		return nil, nil
	}
	return []*record.Record{rec}, nil
}

// execIndexLookup seeks the index for the matching key prefix, then
// fetches the corresponding table rows. Row fetches always run through
// a bounded worker pool (a single worker when there is one match),
// mirroring the reference engine's parallel row-fetch path for index hits.
func execIndexLookup(ctx context.Context, p *pager.Pager, maxConcurrency int, pl *plan) ([]*record.Record, error) {
	idxTree := btree.NewIndexTree(p, pl.index.RootPage)
	entries, err := idxTree.SeekPrefix(ctx, pl.whereValue)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	rowids := make([]int64, len(entries))
	for i, e := range entries {
		rec, err := record.Decode(e.Payload, nil, -1)
		if err != nil {
			return nil, err
		}
		if len(rec.Values) == 0 {
			return nil, sqlerr.New(sqlerr.TruncatedRecord, "decode_index_entry", nil, nil)
		}
		rowids[i] = rec.Values[len(rec.Values)-1].Int
	}

	recs, err := fetchRowsParallel(ctx, p, pl.table.RootPage, pl.table.Def.RowidAliasCol, rowids, maxConcurrency)
	if err != nil {
		return nil, err
	}

	whereCol := pl.whereColumnIndex()
	var out []*record.Record
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		if !matchesWhere(pl.where, pl.whereValue, rec, whereCol) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// countPlan counts the rows a plan would select without materializing
// full projections. For IndexLookup with no extra WHERE needs beyond
// the indexed column, the index match count is the answer directly
// (spec §4.9 step 5: "do not fetch row records unless the WHERE
// requires non-index columns").
func countPlan(ctx context.Context, p *pager.Pager, maxConcurrency int, pl *plan) (int, error) {
	if pl.kind == planIndexLookup && pl.where != nil && pl.whereColumnIndex() == pl.indexKeyColumn() {
		idxTree := btree.NewIndexTree(p, pl.index.RootPage)
		entries, err := idxTree.SeekPrefix(ctx, pl.whereValue)
		if err != nil {
			return 0, err
		}
		return len(entries), nil
	}
	recs, err := execPlan(ctx, p, maxConcurrency, pl)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

func (p *plan) indexKeyColumn() int {
	if p.index == nil || len(p.index.Def.KeyColumns) == 0 {
		return -1
	}
	return p.table.ColumnIndex(p.index.Def.KeyColumns[0])
}

// fetchRowsParallel fetches rows by row id through a bounded worker
// pool, grounded on the reference engine's fetchRowsParallel: a shared
// work channel feeding a fixed number of goroutines, with results
// slotted back into the original order by index.
func fetchRowsParallel(ctx context.Context, p *pager.Pager, tableRoot, rowidAliasCol int, rowids []int64, maxConcurrency int) ([]*record.Record, error) {
	workers := maxConcurrency
	if workers > len(rowids) {
		workers = len(rowids)
	}
	if workers < 1 {
		workers = 1
	}

	type job struct {
		index int
		rowid int64
	}
	jobs := make(chan job, len(rowids))
	results := make([]*record.Record, len(rowids))
	errs := make([]error, len(rowids))

	var wg sync.WaitGroup
	tree := btree.NewTableTree(p, tableRoot)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				select {
				case <-ctx.Done():
					errs[j.index] = ctx.Err()
					continue
				default:
				}
				cell, found, err := tree.SeekRowid(ctx, j.rowid)
				if err != nil {
					errs[j.index] = err
					continue
				}
				if !found {
					continue
				}
				rowid := cell.Rowid
				rec, err := record.Decode(cell.Payload, &rowid, rowidAliasCol)
				if err != nil {
					errs[j.index] = err
					continue
				}
				results[j.index] = rec
			}
		}()
	}

	for i, r := range rowids {
		jobs <- job{index: i, rowid: r}
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
