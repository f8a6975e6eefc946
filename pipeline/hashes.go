package pipeline

import (
	"encoding/hex"
	"os"

	"github.com/zeebo/blake3"
)

// FileHashesBatch computes a BLAKE3 content hash for every path. Hashes are
// not persisted between runs, so they only identify duplicate content within
// one call or run. Unreadable paths are simply omitted from the result rather than failing
// the batch.
func FileHashesBatch(paths []string) (map[string]string, error) {
	hashes := make(map[string]string, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		sum := blake3.Sum256(data)
		hashes[p] = hex.EncodeToString(sum[:])
	}
	return hashes, nil
}

func contentHash(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
