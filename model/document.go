// Package model defines the value types shared across the indexing and search
// packages: document ids, documents, and search results.
package model

// DocID identifies a document within a single logical index (RAM index or a
// segment's local numbering, depending on context). See segment.GlobalDocID
// for translating a segment-local id into the index-wide space.
type DocID = uint32

// Document is a single unit of retrievable text, carrying the caller-supplied
// opaque identity and payload that the core never interprets.
type Document struct {
	ID       DocID
	Content  string
	Metadata string
	Length   uint32
}

// Result is a single scored hit returned by a searcher.
type Result struct {
	DocID  DocID
	Score  float32
	BookID string
}
