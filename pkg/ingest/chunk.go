// Package ingest turns raw documents into graph content: it chunks long
// text, extracts triples, normalizes entity names and writes the result to
// the graph store.
package ingest

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

var paragraphBreak = regexp.MustCompile(`\n\n+`)

type ChunkMetadata struct {
	TotalChunks  int `json:"totalChunks"`
	AvgChunkSize int `json:"avgChunkSize"`
	MaxChunkSize int `json:"maxChunkSize"`
}

type ChunkResult struct {
	Chunks   []string      `json:"chunks"`
	Metadata ChunkMetadata `json:"metadata"`
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func lastRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

// ChunkDocument splits text on blank lines and packs paragraphs greedily into
// chunks of at most maxChars runes. A paragraph longer than maxChars becomes
// a chunk of its own. Each new chunk starts with the last overlap runes of
// the previous one so context survives the cut.
func ChunkDocument(text string, maxChars int, overlap int) ChunkResult {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	chunks := make([]string, 0)
	current := ""
	currentLen := 0

	for _, raw := range paragraphBreak.Split(text, -1) {
		paragraph := strings.TrimSpace(raw)
		if paragraph == "" {
			continue
		}

		switch {
		case currentLen+runeLen(paragraph)+2 > maxChars && currentLen > 0:
			chunks = append(chunks, strings.TrimSpace(current))
			if overlap > 0 && currentLen > overlap {
				current = lastRunes(current, overlap) + "\n\n" + paragraph
			} else {
				current = paragraph
			}
		case currentLen > 0:
			current += "\n\n" + paragraph
		default:
			current = paragraph
		}
		currentLen = runeLen(current)
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}

	return ChunkResult{Chunks: chunks, Metadata: chunkMetadata(chunks)}
}

func chunkMetadata(chunks []string) ChunkMetadata {
	if len(chunks) == 0 {
		return ChunkMetadata{}
	}

	total, largest := 0, 0
	for _, c := range chunks {
		n := runeLen(c)
		total += n
		largest = max(largest, n)
	}
	return ChunkMetadata{
		TotalChunks:  len(chunks),
		AvgChunkSize: int(math.Round(float64(total) / float64(len(chunks)))),
		MaxChunkSize: largest,
	}
}
