package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// Notes:
// - For metadata (map-like structures), JSON is stable and portable.
// - For arbitrary user payloads, JSON works for typical structs/maps/slices.
// - Time, complex numbers, funcs, channels, etc may not be supported.
//
// If you need custom encoding (e.g. protobuf/msgpack), implement Codec and set
// it on the WAL via wal.Options.Codec.
//
// Performance note:
//   - If you need the most portable/lowest-dependency option, use JSON.
//   - The library's default codec may change over time; persisted WAL records
//     do not record the codec name, so they decode only with the codec that
//     wrote them.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the default codec used by the library.
//
// NOTE: This is the codec a WAL uses when wal.Options.Codec is nil. WAL files
// carry no codec name, so changing Default can make existing WALs unreadable.
// Segment meta.json and index.json are written with encoding/json directly.
var Default Codec = GoJSON{}
