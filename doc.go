// Package ftsearch provides a segmented, immutable, memory-mapped BM25
// full-text search engine for Go.
//
// The engine has two entry points depending on whether documents are known
// ahead of time or arrive incrementally:
//
// # Batch indexing
//
// Build a corpus once, then search it read-only:
//
//	ctx := context.Background()
//	numBooks, numChunks, err := pipeline.IndexCorpus(ctx, "./corpus", "./index", pipeline.Options{
//	    Workers: runtime.GOMAXPROCS(0),
//	})
//	fs, err := search.NewFileSearcher("./index")
//	defer fs.Close()
//	results, err := fs.Search("the raven", 10)
//
// # Real-time indexing
//
// Documents added one at a time are searchable immediately, and durable via
// a write-ahead log before ever being sealed into a segment:
//
//	rt, err := realtime.New("./index", realtime.Options{})
//	defer rt.Close()
//	docID, err := rt.AddDocument(content, metadata)
//	results, err := rt.Search("the raven", 10)
//	flushed, err := rt.Flush(ctx) // seals RAM contents into a new segment
//
// # On-disk layout
//
// An index directory holds an index.json commit log and one subdirectory
// per segment. Each segment is a fixed set of files (terms.fst,
// offsets.bin, postings_docs.bin, postings_freqs.bin, chunks.bin,
// doc_lengths.bin, meta.json) written once and never mutated; meta.json is
// written last so a reader never observes a partially-written segment.
//
// This root package holds only the logger and the error sentinels; the
// shared document model lives in package model. The engine itself lives in
// the sub-packages: analysis (tokenization and stemming), codec (posting-list and value
// serialization), internal/segment (on-disk segment format), internal/wal
// (write-ahead log), internal/ramindex (mutable in-memory index), search
// (BM25 scoring over sealed segments), wand (WAND top-k over posting
// lists), pipeline (corpus ingestion), and realtime (the federation of the
// above into one incrementally-updatable index).
package ftsearch
