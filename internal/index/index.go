// Package index manages an index directory's top-level metadata: the ordered
// list of segment directories, the corpus-wide document count, and the
// corpus-wide average document length, persisted as index.json.
package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hupe1980/ftsearch"
)

// FileName is the name of the index metadata file within an index directory.
const FileName = "index.json"

// Meta is the persisted top-level index metadata.
type Meta struct {
	Segments    []string `json:"segments"`
	TotalDocs   uint32   `json:"total_docs"`
	AvgDL       float32  `json:"avgdl"`
	TotalLength uint64   `json:"total_length"`
}

// Store guards Meta with a mutex and persists it atomically via a
// write-temp-then-rename sequence.
type Store struct {
	dir string
	mu  sync.RWMutex
	// meta.Segments is the on-disk record. Callers that need to open readers
	// for these segments do so themselves; Store only tracks names and doc
	// counts.
	meta Meta
}

// Open loads index.json from dir, or returns an empty Store if the file does
// not yet exist (a brand-new index directory).
func Open(dir string) (*Store, error) {
	s := &Store{dir: dir}
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("index: read %s: %w (%w)", path, ftsearch.ErrIO, err)
	}
	if err := json.Unmarshal(data, &s.meta); err != nil {
		return nil, fmt.Errorf("index: parse %s: %w (%w)", path, ftsearch.ErrCorrupt, err)
	}
	return s, nil
}

// Meta returns a snapshot copy of the current metadata.
func (s *Store) Meta() Meta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	segments := append([]string(nil), s.meta.Segments...)
	return Meta{Segments: segments, TotalDocs: s.meta.TotalDocs, AvgDL: s.meta.AvgDL, TotalLength: s.meta.TotalLength}
}

// Reset removes every segment directory currently recorded in the metadata
// and clears the metadata itself, persisting the empty result. Used by a
// reindex run that wants to rebuild the index directory from scratch.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range s.meta.Segments {
		if err := os.RemoveAll(filepath.Join(s.dir, name)); err != nil {
			return fmt.Errorf("index: remove segment %s: %w (%w)", name, ftsearch.ErrIO, err)
		}
	}
	s.meta = Meta{}
	return s.save()
}

// AddSegment appends a segment directory name and updates the corpus-wide
// counters, then persists the result.
func (s *Store) AddSegment(name string, numDocs uint32, totalLength uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.meta.Segments = append(s.meta.Segments, name)
	s.meta.TotalLength += totalLength
	s.meta.TotalDocs += numDocs
	if s.meta.TotalDocs == 0 {
		s.meta.AvgDL = 0
	} else {
		s.meta.AvgDL = float32(float64(s.meta.TotalLength) / float64(s.meta.TotalDocs))
	}
	return s.save()
}

// save must be called with mu held.
func (s *Store) save() error {
	path := filepath.Join(s.dir, FileName)
	tmp := path + ".tmp"

	data, err := json.Marshal(s.meta)
	if err != nil {
		return fmt.Errorf("index: marshal: %w", err)
	}

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("index: open %s: %w (%w)", tmp, ftsearch.ErrIO, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("index: write %s: %w (%w)", tmp, ftsearch.ErrIO, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("index: sync %s: %w (%w)", tmp, ftsearch.ErrIO, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("index: close %s: %w (%w)", tmp, ftsearch.ErrIO, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("index: rename %s: %w (%w)", tmp, ftsearch.ErrIO, err)
	}
	return nil
}
