// Package pipeline implements the parallel document-processing pipeline:
// a bounded-backpressure loader/processor/indexer stage sequence that turns a
// directory of source documents into on-disk segments.
package pipeline

import "github.com/hupe1980/ftsearch/analysis"

// Options configures a pipeline run. Zero values are usable defaults except
// where noted.
type Options struct {
	// ChunkSize is the target chunk length in runes. Defaults to 1000.
	ChunkSize int
	// ChunkOverlap is the rune overlap between consecutive chunks. A negative
	// value is replaced by 100; zero means no overlap.
	ChunkOverlap int
	// BatchSize is the number of processed documents accumulated before a
	// segment is written. Defaults to 1000.
	BatchSize int
	// Stopwords are dropped from indexed term-frequency maps.
	Stopwords analysis.Stopwords
	// Workers is the number of CPU-parallel processor-stage goroutines.
	// Defaults to runtime.GOMAXPROCS(0).
	Workers int
	// LoaderConcurrency bounds concurrent in-flight file reads.
	// Defaults to 20.
	LoaderConcurrency int
	// LoadRateLimit caps loader-stage throughput in files/sec. Zero disables
	// throttling.
	LoadRateLimit float64
	// ChunkCacheDir, if non-empty, caches each document's chunked text as a
	// zstd-compressed file, sharded by a two-character prefix of its book id.
	// A source file whose cache entry already exists is skipped on rescan.
	ChunkCacheDir string
	// Reindex deletes any existing segments under the index directory before
	// running.
	Reindex bool
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 1000
	}
	if o.ChunkOverlap < 0 {
		o.ChunkOverlap = 100
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 1000
	}
	if o.LoaderConcurrency <= 0 {
		o.LoaderConcurrency = 20
	}
	return o
}
