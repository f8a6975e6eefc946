package pipeline

import "strings"

// ChunkText splits text into overlapping chunks of approximately size runes,
// snapping each chunk boundary back to the nearest preceding space when
// possible so words are not split. Chunking operates on rune boundaries, not
// bytes, so multi-byte UTF-8 sequences are never split mid-codepoint.
func ChunkText(text string, size, overlap int) []string {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	if n <= size {
		trimmed := strings.TrimSpace(string(runes))
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	var chunks []string
	start := 0
	for start < n {
		end := start + size
		if end > n {
			end = n
		}
		if end < n {
			backoff := end
			for backoff > start && runes[backoff] != ' ' {
				backoff--
			}
			if backoff > start {
				end = backoff
			}
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= n {
			break
		}
		if end > overlap {
			start = end - overlap
		} else {
			start = end
		}
	}
	return chunks
}
