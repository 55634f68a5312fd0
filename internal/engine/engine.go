// Package engine ties the pager, B-tree traversal, schema catalog, and
// SQL parser together into the one entry point the CLI calls: open a
// database, run one query or meta-command, get back formatted text.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/nyxdb/sqlitequery/internal/pager"
	"github.com/nyxdb/sqlitequery/internal/schema"
	"github.com/nyxdb/sqlitequery/internal/sql"
	"github.com/nyxdb/sqlitequery/internal/sqlerr"
)

// Engine holds one open database's pager and reconstructed schema
// catalog, loaded once at Open time (spec §3 Lifecycle).
type Engine struct {
	pager   *pager.Pager
	catalog *schema.Catalog
	cfg     Config
	rm      *resourceManager
}

// Open opens path, validates its header, and loads the schema catalog.
// The caller must call Close when done.
func Open(ctx context.Context, path string, opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	p, err := pager.Open(path, pager.WithMaxConcurrentReads(cfg.MaxConcurrency))
	if err != nil {
		return nil, err
	}

	rm := newResourceManager()
	rm.add(p)

	cat, err := schema.Load(ctx, p)
	if err != nil {
		rm.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &Engine{pager: p, catalog: cat, cfg: cfg, rm: rm}, nil
}

// Close releases the underlying database file.
func (e *Engine) Close() error {
	return e.rm.Close()
}

// Execute runs one query or meta-command and returns its formatted
// output, ready to print verbatim (spec §6).
func (e *Engine) Execute(ctx context.Context, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ReadTimeout)
	defer cancel()

	parsed, err := sql.Parse(query)
	if err != nil {
		return "", err
	}

	switch stmt := parsed.(type) {
	case *sql.MetaCommand:
		return e.executeMeta(stmt)
	case *sql.SelectStmt:
		return e.executeSelect(ctx, stmt)
	default:
		return "", sqlerr.New(sqlerr.UnsupportedFeature, "execute", nil, map[string]interface{}{"query": query})
	}
}

func (e *Engine) executeMeta(stmt *sql.MetaCommand) (string, error) {
	switch stmt.Name {
	case "dbinfo":
		return e.dbInfo(), nil
	case "tables":
		return e.tables(), nil
	case "schema":
		return e.schemaDump(), nil
	default:
		return "", sqlerr.New(sqlerr.UnsupportedFeature, "execute_meta", nil, map[string]interface{}{"command": stmt.Name})
	}
}

func (e *Engine) executeSelect(ctx context.Context, stmt *sql.SelectStmt) (string, error) {
	pl, err := matchPlan(e.catalog, stmt)
	if err != nil {
		return "", err
	}

	if pl.countStar {
		count, err := countPlan(ctx, e.pager, e.cfg.MaxConcurrency, pl)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d\n", count), nil
	}

	recs, err := execPlan(ctx, e.pager, e.cfg.MaxConcurrency, pl)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, rec := range recs {
		b.WriteString(project(pl, rec))
		b.WriteByte('\n')
	}
	return b.String(), nil
}
