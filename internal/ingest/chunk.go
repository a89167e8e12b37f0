package ingest

import "strings"

const (
	// chunkTokens is the target chunk size. Token counts are estimated at
	// roughly four characters per token, which is close enough for sizing
	// embedding input.
	chunkTokens   = 1000
	charsPerToken = 4
	chunkChars    = chunkTokens * charsPerToken

	// overlapChars is carried from the end of each chunk into the next so
	// sentences cut at a boundary stay searchable.
	overlapChars = chunkChars / 10
)

// chunkText splits text into chunks of at most chunkChars characters with
// overlapChars of overlap between consecutive chunks. Chunks break at the
// last whitespace before the limit when one exists. Short text comes back
// as a single chunk; empty text as none.
func chunkText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= chunkChars {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + chunkChars
		if end >= len(runes) {
			chunks = append(chunks, strings.TrimSpace(string(runes[start:])))
			break
		}

		// Prefer a whitespace break near the limit.
		cut := end
		for i := end; i > start+chunkChars/2; i-- {
			if runes[i-1] == ' ' || runes[i-1] == '\n' || runes[i-1] == '\t' {
				cut = i
				break
			}
		}

		chunks = append(chunks, strings.TrimSpace(string(runes[start:cut])))

		next := cut - overlapChars
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}
