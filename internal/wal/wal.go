// Package wal implements the write-ahead log backing the RAM index: an
// append-only, newline-delimited sequence of self-contained document
// records. On replay, a record that fails to decode (a torn tail write left
// by a crash mid-Append) is silently skipped rather than treated as fatal.
package wal

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/ftsearch"
	"github.com/hupe1980/ftsearch/codec"
	"github.com/hupe1980/ftsearch/internal/fs"
	"github.com/hupe1980/ftsearch/model"
)

// Durability controls how aggressively Append persists a record.
type Durability int

const (
	// DurabilityAsync flushes to the OS page cache only. Survives a process
	// crash but not a power loss. This is the default: the RAM index's own
	// crash-recovery contract only needs to survive process restarts, and
	// fsync-per-append is a large latency cost for a near-real-time write path.
	DurabilityAsync Durability = iota
	// DurabilitySync additionally fsyncs the file after every Append,
	// surviving power loss at the cost of write latency.
	DurabilitySync
)

// Options configures a WAL.
type Options struct {
	Durability Durability
	// CompressMetadata LZ4-compresses the Metadata field of records above a
	// small size threshold before it is embedded in the record's JSON.
	CompressMetadata bool
	// Codec serializes each record. Defaults to codec.Default.
	Codec codec.Codec
}

// DefaultOptions returns the async-durability, uncompressed default.
func DefaultOptions() Options {
	return Options{Durability: DurabilityAsync, Codec: codec.Default}
}

// record is the on-disk shape of one WAL entry.
type record struct {
	ID         model.DocID `json:"id"`
	Content    string      `json:"content"`
	Metadata   string      `json:"metadata,omitempty"`
	MetadataZ  []byte      `json:"metadata_z,omitempty"`
	Compressed bool        `json:"z,omitempty"`
	Length     uint32      `json:"length"`
}

// WAL is an append-only log of RAM-index documents.
type WAL struct {
	fsys fs.FileSystem
	path string
	opts Options

	mu sync.Mutex
	f  fs.File
	w  *bufio.Writer
}

const metadataCompressThreshold = 256

// Open opens (creating if necessary) the WAL file at path.
func Open(fsys fs.FileSystem, path string, opts Options) (*WAL, error) {
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	f, err := fsys.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w (%w)", path, ftsearch.ErrIO, err)
	}
	return &WAL{
		fsys: fsys,
		path: path,
		opts: opts,
		f:    f,
		w:    bufio.NewWriter(f),
	}, nil
}

// Append serializes doc and writes it as one line, applying the configured
// durability policy.
func (w *WAL) Append(doc model.Document) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rec := record{ID: doc.ID, Content: doc.Content, Length: doc.Length}
	if w.opts.CompressMetadata && len(doc.Metadata) > metadataCompressThreshold {
		compressed := make([]byte, lz4.CompressBlockBound(len(doc.Metadata)))
		var c lz4.Compressor
		n, err := c.CompressBlock([]byte(doc.Metadata), compressed)
		if err == nil && n > 0 && n < len(doc.Metadata) {
			rec.MetadataZ = compressed[:n]
			rec.Compressed = true
		} else {
			rec.Metadata = doc.Metadata
		}
	} else {
		rec.Metadata = doc.Metadata
	}

	data, err := w.opts.Codec.Marshal(rec)
	if err != nil {
		return fmt.Errorf("wal: marshal record %d: %w", doc.ID, err)
	}
	if _, err := w.w.Write(data); err != nil {
		return fmt.Errorf("wal: write record %d: %w (%w)", doc.ID, ftsearch.ErrIO, err)
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("wal: write record %d: %w (%w)", doc.ID, ftsearch.ErrIO, err)
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("wal: flush record %d: %w (%w)", doc.ID, ftsearch.ErrIO, err)
	}
	if w.opts.Durability == DurabilitySync {
		if err := w.f.Sync(); err != nil {
			return fmt.Errorf("wal: sync record %d: %w (%w)", doc.ID, ftsearch.ErrIO, err)
		}
	}
	return nil
}

// ReadAll replays every record in the WAL, skipping any line that fails to
// decode or decompress.
func (w *WAL) ReadAll() ([]model.Document, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.w.Flush(); err != nil {
		return nil, fmt.Errorf("wal: flush before read: %w (%w)", ftsearch.ErrIO, err)
	}

	f, err := w.fsys.OpenFile(w.path, os.O_RDONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: reopen for read: %w (%w)", ftsearch.ErrIO, err)
	}
	defer f.Close()

	var docs []model.Document
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var rec record
		if err := w.opts.Codec.Unmarshal(line, &rec); err != nil {
			// torn tail write from a crashed Append; skip and keep replaying.
			continue
		}
		metadata := rec.Metadata
		if rec.Compressed {
			// LZ4 blocks expand at most ~255x; grow the buffer until it fits.
			dst := make([]byte, len(rec.MetadataZ)*8+64)
			n, err := lz4.UncompressBlock(rec.MetadataZ, dst)
			for err != nil && len(dst) < len(rec.MetadataZ)*255+64 {
				dst = make([]byte, len(dst)*2)
				n, err = lz4.UncompressBlock(rec.MetadataZ, dst)
			}
			if err != nil {
				continue
			}
			metadata = string(dst[:n])
		}
		docs = append(docs, model.Document{
			ID:       rec.ID,
			Content:  rec.Content,
			Metadata: metadata,
			Length:   rec.Length,
		})
	}
	return docs, nil
}

// Truncate discards all records, resetting the WAL to empty.
func (w *WAL) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("wal: flush before truncate: %w (%w)", ftsearch.ErrIO, err)
	}
	if err := w.fsys.Truncate(w.path, 0); err != nil {
		return fmt.Errorf("wal: truncate: %w (%w)", ftsearch.ErrIO, err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("wal: close before reopen: %w (%w)", ftsearch.ErrIO, err)
	}
	f, err := w.fsys.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("wal: reopen after truncate: %w (%w)", ftsearch.ErrIO, err)
	}
	w.f = f
	w.w = bufio.NewWriter(f)
	return nil
}

// Close flushes and closes the underlying file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.Flush(); err != nil {
		w.f.Close()
		return fmt.Errorf("wal: flush on close: %w (%w)", ftsearch.ErrIO, err)
	}
	return w.f.Close()
}
