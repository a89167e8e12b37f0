package ingest

import (
	"strings"
	"testing"
)

func TestChunkTextEmpty(t *testing.T) {
	if got := chunkText(""); got != nil {
		t.Errorf("chunkText(\"\") = %v, want nil", got)
	}
	if got := chunkText("   \n\t "); got != nil {
		t.Errorf("chunkText(whitespace) = %v, want nil", got)
	}
}

func TestChunkTextShort(t *testing.T) {
	text := "Istruzioni per la configurazione del sensore."
	got := chunkText(text)
	if len(got) != 1 || got[0] != text {
		t.Errorf("chunkText(short) = %v, want the text unchanged", got)
	}
}

func TestChunkTextLong(t *testing.T) {
	word := "parola "
	text := strings.TrimSpace(strings.Repeat(word, 3*chunkChars/len(word)))

	chunks := chunkText(text)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks for %d chars, want several", len(chunks), len(text))
	}

	for i, chunk := range chunks {
		if len([]rune(chunk)) > chunkChars {
			t.Errorf("chunk %d has %d runes, limit is %d", i, len([]rune(chunk)), chunkChars)
		}
		if chunk == "" {
			t.Errorf("chunk %d is empty", i)
		}
		// Whitespace-preferred cuts keep words whole.
		if strings.HasPrefix(chunk, "arola") || strings.HasSuffix(chunk, "parol") {
			t.Errorf("chunk %d cut through a word: %q…%q", i, chunk[:8], chunk[len(chunk)-8:])
		}
	}
}

func TestChunkTextOverlap(t *testing.T) {
	// Numbered words make overlap visible: the tail of one chunk must
	// reappear at the head of the next.
	var b strings.Builder
	for i := 0; b.Len() < 2*chunkChars+chunkChars/2; i++ {
		b.WriteString("w")
		b.WriteString(strings.Repeat("x", 5))
		b.WriteString(" ")
	}
	chunks := chunkText(strings.TrimSpace(b.String()))
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		tail := chunks[i-1][len(chunks[i-1])-overlapChars/2:]
		if !strings.Contains(chunks[i], tail[:20]) {
			t.Errorf("chunk %d does not overlap the tail of chunk %d", i, i-1)
		}
	}
}
