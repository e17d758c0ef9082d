package ingest

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunkDocument(t *testing.T) {
	long := strings.Repeat("x", 30)

	tests := []struct {
		name     string
		text     string
		maxChars int
		overlap  int
		want     ChunkResult
	}{
		{
			name:     "empty text",
			text:     "",
			maxChars: 100,
			overlap:  10,
			want:     ChunkResult{Chunks: []string{}},
		},
		{
			name:     "fits in one chunk",
			text:     "a\n\nb",
			maxChars: 100,
			want:     ChunkResult{Chunks: []string{"a\n\nb"}, Metadata: ChunkMetadata{1, 4, 4}},
		},
		{
			name:     "blank paragraphs are dropped",
			text:     "  x  \n\n\n\n   \n\n y ",
			maxChars: 100,
			want:     ChunkResult{Chunks: []string{"x\n\ny"}, Metadata: ChunkMetadata{1, 4, 4}},
		},
		{
			name:     "split without overlap",
			text:     "aaaa\n\nbbbb\n\ncccc",
			maxChars: 10,
			want:     ChunkResult{Chunks: []string{"aaaa\n\nbbbb", "cccc"}, Metadata: ChunkMetadata{2, 7, 10}},
		},
		{
			name:     "split with overlap",
			text:     "aaaa\n\nbbbb\n\ncccc",
			maxChars: 10,
			overlap:  3,
			want:     ChunkResult{Chunks: []string{"aaaa\n\nbbbb", "bbb\n\ncccc"}, Metadata: ChunkMetadata{2, 10, 10}},
		},
		{
			name:     "overlap longer than chunk",
			text:     "aaaa\n\nbbbb\n\ncccc",
			maxChars: 10,
			overlap:  20,
			want:     ChunkResult{Chunks: []string{"aaaa\n\nbbbb", "cccc"}, Metadata: ChunkMetadata{2, 7, 10}},
		},
		{
			name:     "oversized paragraph stands alone",
			text:     "short\n\n" + long,
			maxChars: 10,
			want:     ChunkResult{Chunks: []string{"short", long}, Metadata: ChunkMetadata{2, 18, 30}},
		},
		{
			name:     "windows line endings",
			text:     "aaaa\r\n\r\nbbbb",
			maxChars: 100,
			want:     ChunkResult{Chunks: []string{"aaaa\n\nbbbb"}, Metadata: ChunkMetadata{1, 10, 10}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ChunkDocument(tc.text, tc.maxChars, tc.overlap)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ChunkDocument() = %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestChunkDocumentMultiByteOverlap(t *testing.T) {
	got := ChunkDocument("ääää\n\nöööö\n\nüüüü", 10, 2)

	want := []string{"ääää\n\nöööö", "öö\n\nüüüü"}
	if !reflect.DeepEqual(got.Chunks, want) {
		t.Fatalf("chunks = %q, want %q", got.Chunks, want)
	}
	for _, c := range got.Chunks {
		if !utf8.ValidString(c) {
			t.Fatalf("chunk %q is not valid UTF-8", c)
		}
	}
	if got.Metadata.MaxChunkSize != 10 {
		t.Fatalf("MaxChunkSize = %d, want 10 runes", got.Metadata.MaxChunkSize)
	}
}
