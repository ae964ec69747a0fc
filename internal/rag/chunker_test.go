package rag

import (
	"fmt"
	"strings"
	"testing"
)

func makeWords(n int) []string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return words
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	c := NewChunker(400, 60)
	chunks := c.Split("doc", "one two three")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].ID != "doc#1" {
		t.Fatalf("expected id doc#1, got %s", chunks[0].ID)
	}
	if chunks[0].Text != "one two three" {
		t.Fatalf("unexpected text %q", chunks[0].Text)
	}
}

func TestSplitEmptyText(t *testing.T) {
	c := NewChunker(400, 60)
	if chunks := c.Split("doc", "   \n\n  "); chunks != nil {
		t.Fatalf("expected nil for empty text, got %d chunks", len(chunks))
	}
}

func TestSplitWindowAndStride(t *testing.T) {
	// Defaults: 400 tokens -> 300 words per chunk, 60 tokens -> 45 overlap
	// words, stride 255.
	c := NewChunker(400, 60)
	words := makeWords(700)
	chunks := c.Split("doc", strings.Join(words, " "))

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks for 700 words, got %d", len(chunks))
	}
	first := strings.Fields(chunks[0].Text)
	if len(first) != 300 {
		t.Fatalf("expected 300 words in first chunk, got %d", len(first))
	}
	second := strings.Fields(chunks[1].Text)
	if second[0] != "w255" {
		t.Fatalf("expected second chunk to start at w255, got %s", second[0])
	}
	// Overlap: last 45 words of chunk 1 are the first 45 of chunk 2.
	for i := 0; i < 45; i++ {
		if first[255+i] != second[i] {
			t.Fatalf("overlap mismatch at %d: %s vs %s", i, first[255+i], second[i])
		}
	}
}

func TestSplitIDsStrictlyIncreasing(t *testing.T) {
	c := NewChunker(40, 10)
	chunks := c.Split("base", strings.Join(makeWords(200), " "))
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		want := fmt.Sprintf("base#%d", i+1)
		if ch.ID != want {
			t.Fatalf("chunk %d: expected id %s, got %s", i, want, ch.ID)
		}
	}
}

func TestSplitPrefixesReconstructSource(t *testing.T) {
	c := NewChunker(40, 10)
	words := makeWords(137)
	chunks := c.Split("doc", strings.Join(words, " "))

	wordsPerChunk := roundPositive(40 * tokensPerWord)
	overlapWords := roundPositive(10 * tokensPerWord)
	stride := wordsPerChunk - overlapWords

	var rebuilt []string
	for i, ch := range chunks {
		cw := strings.Fields(ch.Text)
		if i == len(chunks)-1 {
			rebuilt = append(rebuilt, cw...)
		} else {
			rebuilt = append(rebuilt, cw[:stride]...)
		}
	}
	if len(rebuilt) != len(words) {
		t.Fatalf("rebuilt %d words, want %d", len(rebuilt), len(words))
	}
	for i := range words {
		if rebuilt[i] != words[i] {
			t.Fatalf("word %d: got %s, want %s", i, rebuilt[i], words[i])
		}
	}
}

func TestWordsNormalization(t *testing.T) {
	got := Words("“hello”\nworld\r\n‘there’")
	want := []string{`"hello"`, "world", "'there'"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNewChunkerDefaults(t *testing.T) {
	c := NewChunker(0, -1)
	if c.ChunkTokens != 400 || c.OverlapTokens != 60 {
		t.Fatalf("unexpected defaults: %d/%d", c.ChunkTokens, c.OverlapTokens)
	}
	c = NewChunker(100, 100)
	if c.OverlapTokens >= c.ChunkTokens {
		t.Fatalf("overlap %d not clamped below chunk size %d", c.OverlapTokens, c.ChunkTokens)
	}
}
