package rag

import (
	"fmt"
	"strings"
)

// Chunker splits documents into word-bounded windows with overlap. Token
// counts are approximated as 0.75 tokens per whitespace word, matching the
// embedding model's average on English prose.
type Chunker struct {
	ChunkTokens   int
	OverlapTokens int
}

type Chunk struct {
	ID   string
	Text string
}

const tokensPerWord = 0.75

func NewChunker(chunkTokens, overlapTokens int) *Chunker {
	if chunkTokens <= 0 {
		chunkTokens = 400
	}
	if overlapTokens < 0 || overlapTokens >= chunkTokens {
		overlapTokens = 60
	}
	return &Chunker{ChunkTokens: chunkTokens, OverlapTokens: overlapTokens}
}

// Split produces chunks labeled "<baseID>#1", "<baseID>#2", ... in order.
// The last chunk may be short; every chunk holds at least one word.
func (c *Chunker) Split(baseID, text string) []Chunk {
	words := Words(text)
	if len(words) == 0 {
		return nil
	}

	wordsPerChunk := roundPositive(float64(c.ChunkTokens) * tokensPerWord)
	overlapWords := roundPositive(float64(c.OverlapTokens) * tokensPerWord)
	if wordsPerChunk < 1 {
		wordsPerChunk = 1
	}
	if overlapWords >= wordsPerChunk {
		overlapWords = wordsPerChunk - 1
	}
	stride := wordsPerChunk - overlapWords

	var out []Chunk
	for start, ordinal := 0, 1; start < len(words); start, ordinal = start+stride, ordinal+1 {
		end := start + wordsPerChunk
		if end > len(words) {
			end = len(words)
		}
		out = append(out, Chunk{
			ID:   fmt.Sprintf("%s#%d", baseID, ordinal),
			Text: strings.Join(words[start:end], " "),
		})
		if end == len(words) {
			break
		}
	}
	return out
}

// Words normalizes and tokenizes source text: newlines collapse to spaces and
// smart quotes fold to their ASCII forms before whitespace splitting.
func Words(text string) []string {
	normalized := strings.NewReplacer(
		"\r\n", " ",
		"\n", " ",
		"\r", " ",
		"“", `"`,
		"”", `"`,
		"‘", "'",
		"’", "'",
	).Replace(text)
	return strings.Fields(normalized)
}

func roundPositive(v float64) int {
	return int(v + 0.5)
}
