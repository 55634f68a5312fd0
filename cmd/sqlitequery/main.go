// Command sqlitequery reads a SQLite database file directly off disk
// and answers one query or meta-command against it.
//
// Usage: sqlitequery <database-file> <query-or-meta-command>
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nyxdb/sqlitequery/internal/engine"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: sqlitequery <database-file> <query>")
		os.Exit(1)
	}
	dbPath, query := os.Args[1], os.Args[2]

	ctx := context.Background()
	eng, err := engine.Open(ctx, dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer eng.Close()

	out, err := eng.Execute(ctx, query)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Print(out)
}
