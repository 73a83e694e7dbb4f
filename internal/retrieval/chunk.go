package retrieval

import (
	"strings"
	"unicode"
)

// DefaultChunkSize is the chunk length in characters.
const DefaultChunkSize = 200

// Chunk splits text into pieces of at most size characters, preferring to
// break after sentence punctuation or whitespace in the second half of a
// window. Blank chunks are dropped.
func Chunk(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	runes := []rune(strings.TrimSpace(text))
	var out []string
	for len(runes) > 0 {
		end := min(size, len(runes))
		if end < len(runes) {
			for i := end - 1; i >= size/2; i-- {
				if isBreak(runes[i]) {
					end = i + 1
					break
				}
			}
		}
		if piece := strings.TrimSpace(string(runes[:end])); piece != "" {
			out = append(out, piece)
		}
		runes = runes[end:]
	}
	return out
}

func isBreak(r rune) bool {
	switch r {
	case '。', '！', '？', '；', '.', '!', '?', ';', '\n':
		return true
	}
	return unicode.IsSpace(r)
}
