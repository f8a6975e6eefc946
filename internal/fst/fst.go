// Package fst wraps a finite-state transducer term dictionary
// (github.com/blevesearch/vellum) mapping term strings to their offsets-table
// ordinal, with support for exact and Levenshtein-automaton fuzzy lookups.
package fst

import (
	"bytes"
	"fmt"

	"github.com/blevesearch/vellum"
	"github.com/blevesearch/vellum/levenshtein"
)

// Builder constructs a term FST from a stream of terms delivered in strictly
// increasing lexicographic order, each mapped to its offsets-record ordinal.
type Builder struct {
	buf     *bytes.Buffer
	builder *vellum.Builder
}

// NewBuilder starts a new FST build.
func NewBuilder() (*Builder, error) {
	buf := new(bytes.Buffer)
	b, err := vellum.New(buf, nil)
	if err != nil {
		return nil, fmt.Errorf("fst: new builder: %w", err)
	}
	return &Builder{buf: buf, builder: b}, nil
}

// Insert adds a term to the FST. Terms must be inserted in strictly
// increasing lexicographic order.
func (b *Builder) Insert(term string, ordinal uint64) error {
	if err := b.builder.Insert([]byte(term), ordinal); err != nil {
		return fmt.Errorf("fst: insert %q: %w", term, err)
	}
	return nil
}

// Close finalizes the FST and returns its serialized bytes.
func (b *Builder) Close() ([]byte, error) {
	if err := b.builder.Close(); err != nil {
		return nil, fmt.Errorf("fst: close: %w", err)
	}
	return b.buf.Bytes(), nil
}

// Dictionary is a read-only, memory-backed term dictionary.
type Dictionary struct {
	fst *vellum.FST
}

// Open loads a dictionary from previously-serialized FST bytes. data is
// typically a memory-mapped region and must outlive the Dictionary.
func Open(data []byte) (*Dictionary, error) {
	f, err := vellum.Load(data)
	if err != nil {
		return nil, fmt.Errorf("fst: load: %w", err)
	}
	return &Dictionary{fst: f}, nil
}

// Close releases resources held by the dictionary.
func (d *Dictionary) Close() error {
	if d.fst == nil {
		return nil
	}
	return d.fst.Close()
}

// Get performs an exact lookup, returning the term's ordinal.
func (d *Dictionary) Get(term string) (ordinal uint64, ok bool) {
	v, exists, err := d.fst.Get([]byte(term))
	if err != nil || !exists {
		return 0, false
	}
	return v, true
}

// FuzzyTerms returns every term within maxDistance edits of term (a
// Levenshtein-automaton composition over the FST), excluding term itself.
func (d *Dictionary) FuzzyTerms(term string, maxDistance int) ([]string, error) {
	lab, err := levenshtein.NewLevenshteinAutomatonBuilder(uint8(maxDistance), false)
	if err != nil {
		return nil, fmt.Errorf("fst: build levenshtein automaton: %w", err)
	}
	lev, err := lab.BuildDfa(term, uint8(maxDistance))
	if err != nil {
		return nil, fmt.Errorf("fst: build levenshtein automaton: %w", err)
	}

	itr, err := d.fst.Search(lev, nil, nil)
	var results []string
	for err == nil {
		key, _ := itr.Current()
		k := string(key)
		if k != term {
			results = append(results, k)
		}
		err = itr.Next()
	}
	if err != nil && err != vellum.ErrIteratorDone {
		return nil, fmt.Errorf("fst: search: %w", err)
	}
	return results, nil
}
