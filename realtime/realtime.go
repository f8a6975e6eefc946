// Package realtime federates a durable, multi-segment file searcher with a
// mutable in-RAM index and its write-ahead log, so documents are searchable
// immediately upon being added and durable across process crashes before
// ever being sealed into a segment.
package realtime

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/ftsearch"
	"github.com/hupe1980/ftsearch/analysis"
	"github.com/hupe1980/ftsearch/internal/fs"
	"github.com/hupe1980/ftsearch/internal/index"
	"github.com/hupe1980/ftsearch/internal/ramindex"
	"github.com/hupe1980/ftsearch/internal/segment"
	"github.com/hupe1980/ftsearch/internal/wal"
	"github.com/hupe1980/ftsearch/model"
	"github.com/hupe1980/ftsearch/search"
)

// Options configures a RealTimeIndexer.
type Options struct {
	WAL       wal.Options
	Stopwords analysis.Stopwords
}

// RealTimeIndexer federates the on-disk FileSearcher and an in-RAM index
// under a single API. See Flush for the document lifecycle it implements:
// created -> in-ram+wal -> flushed (sealed into a segment) -> durable.
type RealTimeIndexer struct {
	indexDir string
	fsys     fs.FileSystem

	disk  *search.FileSearcher
	mem   *ramindex.Index
	log   *wal.WAL
	store *index.Store
}

// New opens (or creates) the index directory at indexDir: it opens every
// existing segment, opens the WAL, and replays any WAL records into a fresh
// RAM index whose doc-id numbering starts where the disk segments leave off.
func New(indexDir string, opts Options) (*RealTimeIndexer, error) {
	fsys := fs.Default

	disk, err := search.NewFileSearcher(indexDir)
	if err != nil {
		return nil, fmt.Errorf("realtime: open file searcher: %w", err)
	}
	disk.SetStopwords(opts.Stopwords)

	store, err := index.Open(indexDir)
	if err != nil {
		disk.Close()
		return nil, fmt.Errorf("realtime: open index metadata: %w", err)
	}

	walOpts := opts.WAL
	if walOpts.Codec == nil {
		walOpts.Codec = wal.DefaultOptions().Codec
	}
	log, err := wal.Open(fsys, filepath.Join(indexDir, "index.wal"), walOpts)
	if err != nil {
		disk.Close()
		return nil, fmt.Errorf("realtime: open wal: %w", err)
	}

	mem := ramindex.New(disk.NumDocs())

	recovered, err := log.ReadAll()
	if err != nil {
		disk.Close()
		log.Close()
		return nil, fmt.Errorf("realtime: replay wal: %w", err)
	}
	// Recovered documents are re-analyzed and re-inserted in ascending doc-id
	// order, each under the exact doc id recorded in its WAL record.
	sort.Slice(recovered, func(i, j int) bool { return recovered[i].ID < recovered[j].ID })
	for _, doc := range recovered {
		mem.InsertWithID(doc.ID, doc.Content, doc.Metadata)
	}

	return &RealTimeIndexer{
		indexDir: indexDir,
		fsys:     fsys,
		disk:     disk,
		mem:      mem,
		log:      log,
		store:    store,
	}, nil
}

// AddDocument analyzes and inserts content into the RAM index, then appends
// it to the write-ahead log. Lock order (RAM before WAL) matches the
// engine's documented ordering.
func (rt *RealTimeIndexer) AddDocument(content, metadata string) (model.DocID, error) {
	docID := rt.mem.Insert(content, metadata)
	doc, _ := rt.mem.Document(docID)
	if err := rt.log.Append(doc); err != nil {
		return docID, fmt.Errorf("realtime: append wal: %w", err)
	}
	return docID, nil
}

// Search runs the disk and RAM searches concurrently and merges results by
// doc id, then selects the global top-k by descending score with ascending
// doc_id as a tie-break.
func (rt *RealTimeIndexer) Search(query string, topK int) ([]search.Result, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("realtime: top_k must be positive: %w", ftsearch.ErrInvalidArgument)
	}

	var diskResults []search.Result
	var memScores map[model.DocID]float32

	g := new(errgroup.Group)
	g.Go(func() error {
		var err error
		diskResults, err = rt.disk.Search(query, topK*4+topK)
		return err
	})
	g.Go(func() error {
		memScores = rt.mem.Search(query)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("realtime: search: %w", err)
	}

	merged := make(map[model.DocID]float32, len(diskResults)+len(memScores))
	bookIDs := make(map[model.DocID]string, len(diskResults)+len(memScores))
	for _, r := range diskResults {
		merged[r.DocID] += r.Score
		bookIDs[r.DocID] = r.BookID
	}
	for docID, score := range memScores {
		merged[docID] += score
		if _, ok := bookIDs[docID]; !ok {
			bookIDs[docID] = ramBookID(rt.mem, docID)
		}
	}

	type sd struct {
		docID model.DocID
		score float32
	}
	all := make([]sd, 0, len(merged))
	for id, s := range merged {
		all = append(all, sd{docID: id, score: s})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].docID < all[j].docID
	})
	if len(all) > topK {
		all = all[:topK]
	}

	results := make([]search.Result, 0, len(all))
	for _, s := range all {
		results = append(results, search.Result{DocID: s.docID, Score: s.score, BookID: bookIDs[s.docID]})
	}
	return results, nil
}

// ramBookID resolves a RAM-origin document's external identity from its
// stored metadata: metadata is treated as the caller's opaque book id when
// non-empty, falling back to a synthetic ram:<doc_id> identifier.
func ramBookID(mem *ramindex.Index, docID model.DocID) string {
	if doc, ok := mem.Document(docID); ok && doc.Metadata != "" {
		return doc.Metadata
	}
	return fmt.Sprintf("ram:%d", docID)
}

// Flush seals every document currently in the RAM index into a new on-disk
// segment, records it in the index metadata, reopens a reader for it, then
// clears RAM and truncates the WAL. It returns the number of documents
// flushed. This is the full seal-then-truncate sequence: a partial or failed
// flush leaves RAM and the WAL untouched so no document is ever silently
// dropped.
func (rt *RealTimeIndexer) Flush(ctx context.Context) (int, error) {
	docs := rt.mem.Documents()
	if len(docs) == 0 {
		return 0, nil
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	baseDocID := docs[0].ID
	bookIDs := make([]string, len(docs))
	chunks := make([]segment.Chunk, len(docs))
	for i, d := range docs {
		bookIDs[i] = ramBookIDFor(d)
		tokens := analysis.Analyze(d.Content)
		freqs := make(map[string]uint32, len(tokens))
		for _, t := range tokens {
			freqs[t]++
		}
		chunks[i] = segment.Chunk{Length: uint32(len(tokens)), Freqs: freqs}
	}

	meta := rt.store.Meta()
	name := fmt.Sprintf("segment_%08d", len(meta.Segments))
	dir := filepath.Join(rt.indexDir, name)

	writtenMeta, err := segment.Write(rt.fsys, dir, segment.Batch{
		BookIDs:   bookIDs,
		Chunks:    chunks,
		BaseDocID: baseDocID,
	})
	if err != nil {
		return 0, fmt.Errorf("realtime: seal segment: %w", err)
	}

	if err := rt.store.AddSegment(name, writtenMeta.NumDocs, writtenMeta.TotalLength); err != nil {
		return 0, fmt.Errorf("realtime: record segment: %w", err)
	}

	reader, err := segment.Open(dir)
	if err != nil {
		return 0, fmt.Errorf("realtime: reopen sealed segment: %w", err)
	}

	newDisk, err := search.NewFileSearcher(rt.indexDir)
	if err != nil {
		reader.Close()
		return 0, fmt.Errorf("realtime: reopen file searcher: %w", err)
	}
	rt.disk.Close()
	rt.disk = newDisk
	reader.Close()

	rt.mem.Clear()
	if err := rt.log.Truncate(); err != nil {
		return len(docs), fmt.Errorf("realtime: truncate wal after seal: %w", err)
	}

	return len(docs), nil
}

func ramBookIDFor(d model.Document) string {
	if d.Metadata != "" {
		return d.Metadata
	}
	return fmt.Sprintf("ram:%d", d.ID)
}

// Close closes the file searcher and the write-ahead log.
func (rt *RealTimeIndexer) Close() error {
	rt.disk.Close()
	return rt.log.Close()
}
