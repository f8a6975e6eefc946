// Package search implements multi-segment BM25 retrieval: exact and fuzzy
// term resolution aggregated across segments, and sort-based top-k
// selection with a deterministic tie-break.
package search

import (
	"fmt"
	"math"
	"sort"

	"github.com/hupe1980/ftsearch"
	"github.com/hupe1980/ftsearch/analysis"
	"github.com/hupe1980/ftsearch/internal/index"
	"github.com/hupe1980/ftsearch/internal/segment"
	"github.com/hupe1980/ftsearch/model"
)

// BM25 constants used by the file searcher, unified with the RAM index (see
// the module's design notes on constant unification).
const (
	k1 = 1.5
	b  = 0.75
)

// Result is an alias of model.Result for external callers.
type Result = model.Result

// FileSearcher performs BM25 search over an immutable, multi-segment,
// on-disk index. Safe for concurrent use.
type FileSearcher struct {
	segments  []*segment.Reader
	names     []string
	totalDocs uint32
	avgdl     float32
	stopwords analysis.Stopwords
}

// NewFileSearcher opens every segment listed in indexDir/index.json.
func NewFileSearcher(indexDir string) (*FileSearcher, error) {
	store, err := index.Open(indexDir)
	if err != nil {
		return nil, fmt.Errorf("search: open index metadata: %w", err)
	}
	meta := store.Meta()

	fs := &FileSearcher{totalDocs: meta.TotalDocs, avgdl: meta.AvgDL}
	for _, name := range meta.Segments {
		r, err := segment.Open(indexDir + "/" + name)
		if err != nil {
			fs.Close()
			return nil, ftsearch.NewSegmentError(name, err)
		}
		fs.segments = append(fs.segments, r)
		fs.names = append(fs.names, name)
	}
	return fs, nil
}

// SetStopwords configures query-time stopword filtering.
func (fs *FileSearcher) SetStopwords(words analysis.Stopwords) { fs.stopwords = words }

// NumDocs returns the corpus-wide document count.
func (fs *FileSearcher) NumDocs() uint32 { return fs.totalDocs }

// AvgDL returns the corpus-wide average document length.
func (fs *FileSearcher) AvgDL() float32 { return fs.avgdl }

// Close closes every open segment reader.
func (fs *FileSearcher) Close() error {
	for _, s := range fs.segments {
		s.Close()
	}
	return nil
}

// Search scores the query against every segment and returns the top-k
// results ordered by descending score, ties broken by ascending doc id.
func (fs *FileSearcher) Search(query string, topK int) ([]Result, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("search: top_k must be positive: %w", ftsearch.ErrInvalidArgument)
	}

	tokens := analysis.Analyze(query)
	filtered := tokens[:0:0]
	for _, t := range tokens {
		if fs.stopwords == nil || !fs.stopwords.Contains(t) {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		return nil, nil
	}

	scores := make(map[model.DocID]float32)
	for _, token := range filtered {
		fs.scoreToken(token, scores)
	}

	return fs.selectTopK(scores, topK), nil
}

func (fs *FileSearcher) scoreToken(token string, scores map[model.DocID]float32) {
	terms, totalDF := fs.resolveTerm(token)
	if totalDF == 0 {
		return
	}
	idf := computeIDF(totalDF, fs.totalDocs)

	for _, term := range terms {
		for _, seg := range fs.segments {
			it, ok := seg.GetPostings(term)
			if !ok {
				continue
			}
			base := seg.BaseDocID()
			for {
				localID, tf, more := it.Next()
				if !more {
					break
				}
				dl, ok := seg.DocLength(localID)
				if !ok || dl == 0 {
					dl = 1
				}
				score := bm25Score(float64(tf), float64(dl), idf, float64(fs.avgdl))
				scores[segment.GlobalDocID(base, localID)] += float32(score)
			}
		}
	}
}

// resolveTerm returns the concrete set of terms to score for token: the exact
// token if any segment has it, else a fuzzy expansion. The returned df is
// summed across every segment and every resolved term.
func (fs *FileSearcher) resolveTerm(token string) (terms []string, totalDF uint32) {
	var exactDF uint32
	for _, seg := range fs.segments {
		if df, ok := seg.GetDF(token); ok {
			exactDF += df
		}
	}
	if exactDF > 0 {
		return []string{token}, exactDF
	}

	dist := 1
	if len([]rune(token)) > 4 {
		dist = 2
	}

	seen := make(map[string]struct{})
	for _, seg := range fs.segments {
		candidates, err := seg.FuzzyTerms(token, dist)
		if err != nil {
			continue
		}
		for _, c := range candidates {
			seen[c] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil, 0
	}

	terms = make([]string, 0, len(seen))
	for t := range seen {
		terms = append(terms, t)
	}

	var df uint32
	for _, t := range terms {
		for _, seg := range fs.segments {
			if d, ok := seg.GetDF(t); ok {
				df += d
			}
		}
	}
	return terms, df
}

func computeIDF(df, n uint32) float64 {
	return math.Log((float64(n)-float64(df)+0.5)/(float64(df)+0.5) + 1.0)
}

func bm25Score(tf, dl, idf, avgdl float64) float64 {
	if avgdl == 0 {
		avgdl = 1
	}
	numerator := tf * (k1 + 1)
	denominator := tf + k1*(1-b+b*dl/avgdl)
	return idf * numerator / denominator
}

type scoredDoc struct {
	docID model.DocID
	score float32
}

// selectTopK sorts scores by descending score with ascending doc_id as a
// deterministic tie-break, then truncates to k.
func (fs *FileSearcher) selectTopK(scores map[model.DocID]float32, topK int) []Result {
	if len(scores) == 0 {
		return nil
	}

	all := make([]scoredDoc, 0, len(scores))
	for id, s := range scores {
		all = append(all, scoredDoc{docID: id, score: s})
	}

	k := topK
	if k > len(all) {
		k = len(all)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].docID < all[j].docID
	})
	all = all[:k]

	results := make([]Result, 0, k)
	for _, sd := range all {
		bookID, ok := fs.bookID(sd.docID)
		if !ok {
			continue
		}
		results = append(results, Result{DocID: sd.docID, Score: sd.score, BookID: bookID})
	}
	return results
}

func (fs *FileSearcher) bookID(globalDocID model.DocID) (string, bool) {
	for _, seg := range fs.segments {
		if local, ok := seg.LocalDocID(globalDocID); ok {
			return seg.BookID(local)
		}
	}
	return "", false
}
