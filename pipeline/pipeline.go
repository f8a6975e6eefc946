package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/hupe1980/ftsearch"
	"github.com/hupe1980/ftsearch/analysis"
	"github.com/hupe1980/ftsearch/internal/arena"
	"github.com/hupe1980/ftsearch/internal/fs"
	"github.com/hupe1980/ftsearch/internal/index"
	"github.com/hupe1980/ftsearch/internal/segment"
)

type rawDoc struct {
	bookID    string
	content   []byte
	extension string
}

type processedDoc struct {
	bookID string
	chunks []segment.Chunk
}

// IndexCorpus walks sourceDir, parses and chunks every supported file, and
// writes the result as one or more segments under indexDir. It returns the
// number of documents and chunks successfully indexed.
func IndexCorpus(ctx context.Context, sourceDir, indexDir string, opts Options) (numBooks, numChunks int, err error) {
	opts = opts.withDefaults()
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return 0, 0, fmt.Errorf("pipeline: mkdir %s: %w (%w)", indexDir, ftsearch.ErrIO, err)
	}
	if opts.ChunkCacheDir != "" {
		if err := os.MkdirAll(opts.ChunkCacheDir, 0o755); err != nil {
			return 0, 0, fmt.Errorf("pipeline: mkdir %s: %w (%w)", opts.ChunkCacheDir, ftsearch.ErrIO, err)
		}
	}

	store, err := index.Open(indexDir)
	if err != nil {
		return 0, 0, fmt.Errorf("pipeline: open index metadata: %w", err)
	}

	if opts.Reindex {
		if err := store.Reset(); err != nil {
			return 0, 0, fmt.Errorf("pipeline: reindex: reset index metadata: %w", err)
		}
	}

	rawCh := make(chan rawDoc, opts.LoaderConcurrency)
	// Capacity exactly 1: this is the load-bearing backpressure point that
	// bounds peak memory to roughly one in-flight batch, regardless of how
	// fast the processor stage produces documents.
	processedCh := make(chan processedDoc, 1)

	var loaderErr error
	loaderDone := make(chan struct{})
	go func() {
		defer close(loaderDone)
		loaderErr = runLoaderStage(ctx, sourceDir, opts, rawCh)
	}()

	var procWG sync.WaitGroup
	procWG.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go func() {
			defer procWG.Done()
			runProcessorWorker(rawCh, processedCh, opts)
		}()
	}
	go func() {
		procWG.Wait()
		close(processedCh)
	}()

	numBooks, numChunks, indexErr := runIndexerStage(store, indexDir, processedCh, opts)

	<-loaderDone
	if loaderErr != nil {
		return numBooks, numChunks, fmt.Errorf("pipeline: loader stage: %w", loaderErr)
	}
	if indexErr != nil {
		return numBooks, numChunks, fmt.Errorf("pipeline: indexer stage: %w", indexErr)
	}
	return numBooks, numChunks, nil
}

// loadCandidate is a source file that survived extension and chunk-cache
// filtering and is eligible for content-hash dedup and loading.
type loadCandidate struct {
	path   string
	bookID string
	ext    string
}

func runLoaderStage(ctx context.Context, sourceDir string, opts Options, out chan<- rawDoc) error {
	defer close(out)

	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return fmt.Errorf("read %s: %w (%w)", sourceDir, ftsearch.ErrIO, err)
	}

	var candidates []loadCandidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.TrimPrefix(filepath.Ext(e.Name()), ".")
		if !isSupportedExtension(ext) {
			continue
		}
		bookID := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if opts.ChunkCacheDir != "" && cacheEntryExists(opts.ChunkCacheDir, bookID) {
			continue
		}
		candidates = append(candidates, loadCandidate{
			path:   filepath.Join(sourceDir, e.Name()),
			bookID: bookID,
			ext:    ext,
		})
	}

	paths := make([]string, len(candidates))
	for i, c := range candidates {
		paths[i] = c.path
	}
	hashes, err := FileHashesBatch(paths)
	if err != nil {
		return fmt.Errorf("hash source files: %w", err)
	}

	// Two files with identical content hash this run are the same book under
	// two names (a duplicate export, a renamed re-download, ...); only the
	// first is kept, mirroring the writer's seen_hashes set.
	seenHashes := make(map[string]struct{}, len(hashes))
	toLoad := candidates[:0]
	for _, c := range candidates {
		if hash, ok := hashes[c.path]; ok {
			if _, dup := seenHashes[hash]; dup {
				continue
			}
			seenHashes[hash] = struct{}{}
		}
		toLoad = append(toLoad, c)
	}

	sem := semaphore.NewWeighted(int64(opts.LoaderConcurrency))
	var limiter *rate.Limiter
	if opts.LoadRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.LoadRateLimit), 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range toLoad {
		c := c
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return nil
				}
			}
			data, err := os.ReadFile(c.path)
			if err != nil {
				return nil
			}
			select {
			case out <- rawDoc{bookID: c.bookID, content: data, extension: c.ext}:
			case <-gctx.Done():
			}
			return nil
		})
	}
	return g.Wait()
}

func isSupportedExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case "txt", "epub", "pdf":
		return true
	default:
		return false
	}
}

func shardOf(bookID string) string {
	if len(bookID) < 2 {
		return fmt.Sprintf("%02s", bookID)
	}
	return bookID[:2]
}

func cacheEntryExists(cacheDir, bookID string) bool {
	_, err := os.Stat(filepath.Join(cacheDir, shardOf(bookID), bookID+".zst"))
	return err == nil
}

func runProcessorWorker(in <-chan rawDoc, out chan<- processedDoc, opts Options) {
	ar := arena.New(64 * 1024)
	for raw := range in {
		doc, ok := processBook(raw, ar, opts)
		if !ok {
			continue
		}
		out <- doc
	}
}

func processBook(raw rawDoc, ar *arena.Arena, opts Options) (processedDoc, bool) {
	text, ok := ParseBytes(raw.content, raw.extension)
	if !ok {
		return processedDoc{}, false
	}

	chunks := ChunkText(text, opts.ChunkSize, opts.ChunkOverlap)
	if len(chunks) == 0 {
		return processedDoc{}, false
	}

	if opts.ChunkCacheDir != "" {
		saveChunkCache(opts.ChunkCacheDir, raw.bookID, chunks)
	}

	chunkData := make([]segment.Chunk, 0, len(chunks))
	for _, c := range chunks {
		ar.Reset()
		tokens := analysis.AnalyzeArena(c, ar)
		if len(tokens) == 0 {
			continue
		}
		// Tokens are arena-backed and only valid until the next Reset above;
		// clone each one before it becomes a map key that outlives this chunk.
		freqs := make(map[string]uint32, len(tokens))
		for _, t := range tokens {
			if opts.Stopwords.Contains(t) {
				continue
			}
			freqs[strings.Clone(t)]++
		}
		if len(freqs) == 0 {
			continue
		}
		chunkData = append(chunkData, segment.Chunk{Length: uint32(len(tokens)), Freqs: freqs})
	}
	if len(chunkData) == 0 {
		return processedDoc{}, false
	}

	return processedDoc{bookID: raw.bookID, chunks: chunkData}, true
}

func saveChunkCache(cacheDir, bookID string, chunks []string) {
	shardDir := filepath.Join(cacheDir, shardOf(bookID))
	if err := os.MkdirAll(shardDir, 0o755); err != nil {
		return
	}
	full := strings.Join(chunks, "\n")

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return
	}
	defer enc.Close()
	compressed := enc.EncodeAll([]byte(full), nil)
	_ = os.WriteFile(filepath.Join(shardDir, bookID+".zst"), compressed, 0o644)
}

func runIndexerStage(store *index.Store, indexDir string, in <-chan processedDoc, opts Options) (numBooks, numChunks int, err error) {
	fsys := fs.Default
	globalDocID := store.Meta().TotalDocs
	segmentID := len(store.Meta().Segments)

	var batch []processedDoc
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		bookIDs, chunks := flattenBatch(batch)
		name := fmt.Sprintf("segment_%08d", segmentID)
		meta, werr := segment.Write(fsys, filepath.Join(indexDir, name), segment.Batch{
			BookIDs:   bookIDs,
			Chunks:    chunks,
			BaseDocID: globalDocID,
		})
		if werr != nil {
			return fmt.Errorf("write %s: %w", name, werr)
		}
		if werr := store.AddSegment(name, meta.NumDocs, meta.TotalLength); werr != nil {
			return fmt.Errorf("record %s in index metadata: %w", name, werr)
		}
		numBooks += len(batch)
		numChunks += len(chunks)
		globalDocID += meta.NumDocs
		segmentID++
		batch = batch[:0]
		return nil
	}

	for doc := range in {
		batch = append(batch, doc)
		if len(batch) >= opts.BatchSize {
			if err := flush(); err != nil {
				return numBooks, numChunks, err
			}
		}
	}
	if err := flush(); err != nil {
		return numBooks, numChunks, err
	}
	return numBooks, numChunks, nil
}

func flattenBatch(batch []processedDoc) ([]string, []segment.Chunk) {
	var bookIDs []string
	var chunks []segment.Chunk
	for _, doc := range batch {
		for _, c := range doc.chunks {
			bookIDs = append(bookIDs, doc.bookID)
			chunks = append(chunks, c)
		}
	}
	return bookIDs, chunks
}
