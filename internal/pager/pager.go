// Package pager opens a SQLite database file, reads the 100-byte header
// once, and serves fixed-size pages on demand. It never writes.
package pager

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/nyxdb/sqlitequery/internal/sqlerr"
)

var magic = []byte("SQLite format 3\x00")

// Option configures a Pager at construction time, following the
// functional-options style used throughout this module.
type Option func(*options)

type options struct {
	maxConcurrentReads int
}

func defaultOptions() *options {
	return &options{maxConcurrentReads: 10}
}

// WithMaxConcurrentReads bounds how many page reads may be in flight at
// once when callers fan out (e.g. the executor's parallel row fetch).
func WithMaxConcurrentReads(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConcurrentReads = n
		}
	}
}

// Header is the decoded 100-byte SQLite database header.
type Header struct {
	PageSize     int
	TextEncoding uint32
	PageCount    uint32
}

// Pager reads fixed-size pages from a read-only SQLite database file.
type Pager struct {
	file   *os.File
	header Header
	sem    chan struct{}
}

// Open opens path, validates the magic header, and returns a ready Pager.
// The caller must call Close when done.
func Open(path string, opts ...Option) (*Pager, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, sqlerr.New(sqlerr.Io, "open", err, map[string]interface{}{"path": path})
	}

	raw := make([]byte, 100)
	if _, err := io.ReadFull(f, raw); err != nil {
		f.Close()
		return nil, sqlerr.New(sqlerr.Io, "read_header", err, nil)
	}

	if !bytes.Equal(raw[0:16], magic) {
		f.Close()
		return nil, sqlerr.New(sqlerr.BadHeader, "check_magic", nil, map[string]interface{}{
			"got": string(raw[0:16]),
		})
	}

	pageSizeRaw := binary.BigEndian.Uint16(raw[16:18])
	pageSize := int(pageSizeRaw)
	if pageSizeRaw == 1 {
		pageSize = 65536
	}
	if pageSize < 512 || pageSize > 65536 || (pageSize&(pageSize-1)) != 0 {
		f.Close()
		return nil, sqlerr.New(sqlerr.BadHeader, "check_page_size", nil, map[string]interface{}{
			"page_size": pageSize,
		})
	}

	header := Header{
		PageSize:     pageSize,
		TextEncoding: binary.BigEndian.Uint32(raw[56:60]),
		PageCount:    binary.BigEndian.Uint32(raw[28:32]),
	}

	return &Pager{
		file:   f,
		header: header,
		sem:    make(chan struct{}, o.maxConcurrentReads),
	}, nil
}

// Header returns the decoded database header.
func (p *Pager) Header() Header {
	return p.header
}

// PageSize returns the page size in bytes.
func (p *Pager) PageSize() int {
	return p.header.PageSize
}

// ReadPage returns the raw bytes of page n (1-indexed). The returned slice
// is owned by the caller; repeated reads of the same page return fresh
// copies.
func (p *Pager) ReadPage(ctx context.Context, n int) ([]byte, error) {
	if n < 1 {
		return nil, sqlerr.New(sqlerr.Io, "read_page", nil, map[string]interface{}{"page": n})
	}

	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		return nil, sqlerr.New(sqlerr.Io, "read_page", ctx.Err(), map[string]interface{}{"page": n})
	}

	offset := int64(n-1) * int64(p.header.PageSize)
	buf := make([]byte, p.header.PageSize)
	if _, err := p.file.ReadAt(buf, offset); err != nil {
		return nil, sqlerr.New(sqlerr.Io, "read_page", err, map[string]interface{}{
			"page":   n,
			"offset": offset,
		})
	}
	return buf, nil
}

// Close closes the underlying file.
func (p *Pager) Close() error {
	if err := p.file.Close(); err != nil {
		return fmt.Errorf("close database file: %w", err)
	}
	return nil
}
