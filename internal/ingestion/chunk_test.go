package ingestion

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/54b3r/promptdoc-go/internal/apperr"
	"github.com/54b3r/promptdoc-go/internal/document"
)

func TestChunk_Properties(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		text          string
		size, overlap int
		wantSegments  int
	}{
		{"exact fit", strings.Repeat("a", 1000), 1000, 200, 1},
		{"short text", "hello world", 1000, 200, 1},
		{"two windows", strings.Repeat("b", 1500), 1000, 200, 2},
		{"many windows", strings.Repeat("xyz ", 1000), 1000, 200, 5},
		{"no overlap", strings.Repeat("c", 30), 10, 0, 3},
		{"multibyte", strings.Repeat("héllo wörld ", 50), 100, 20, 8},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			segs, err := Chunk(tc.text, tc.size, tc.overlap)
			if err != nil {
				t.Fatalf("Chunk: %v", err)
			}
			if len(segs) != tc.wantSegments {
				t.Fatalf("want %d segments, got %d", tc.wantSegments, len(segs))
			}

			runes := []rune(tc.text)
			for i, s := range segs {
				n := utf8.RuneCountInString(s.Text)
				if n > tc.size {
					t.Errorf("segment %d has %d runes, max %d", i, n, tc.size)
				}
				if got := string(runes[s.Offset : s.Offset+n]); got != s.Text {
					t.Errorf("segment %d does not match text at offset %d", i, s.Offset)
				}
				if i == 0 {
					continue
				}
				prev := []rune(segs[i-1].Text)
				cur := []rune(s.Text)
				if string(prev[len(prev)-tc.overlap:]) != string(cur[:tc.overlap]) {
					t.Errorf("segments %d and %d do not share %d runes", i-1, i, tc.overlap)
				}
			}

			last := segs[len(segs)-1]
			if last.Offset+utf8.RuneCountInString(last.Text) != len(runes) {
				t.Error("last segment does not end at end of text")
			}
		})
	}
}

func TestChunk_Reconstruction(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 100)
	const size, overlap = 300, 50

	segs, err := Chunk(text, size, overlap)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}

	var sb strings.Builder
	for i, s := range segs {
		if i == 0 {
			sb.WriteString(s.Text)
			continue
		}
		sb.WriteString(string([]rune(s.Text)[overlap:]))
	}
	if sb.String() != text {
		t.Error("concatenating segments minus overlap does not reproduce the text")
	}
}

func TestChunk_ShortTextUnchanged(t *testing.T) {
	t.Parallel()

	text := "  padded text with spaces  "
	segs, err := Chunk(text, 1000, 200)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(segs) != 1 || segs[0].Text != text || segs[0].Offset != 0 {
		t.Errorf("want single unchanged segment, got %+v", segs)
	}
}

func TestChunk_EmptyInput(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "   ", "\n\t\n"} {
		if _, err := Chunk(text, 1000, 200); !errors.Is(err, apperr.ErrEmptyInput) {
			t.Errorf("Chunk(%q): want ErrEmptyInput, got %v", text, err)
		}
	}
}

func TestNormalizeSizes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		size, overlap         int
		wantSize, wantOverlap int
	}{
		{0, 0, 1000, 0},
		{-5, 10, 1000, 10},
		{100, -1, 100, 0},
		{100, 100, 100, 10},
		{100, 250, 100, 10},
		{1000, 200, 1000, 200},
	}
	for _, tc := range tests {
		gotSize, gotOverlap := NormalizeSizes(tc.size, tc.overlap)
		if gotSize != tc.wantSize || gotOverlap != tc.wantOverlap {
			t.Errorf("NormalizeSizes(%d, %d) = (%d, %d), want (%d, %d)",
				tc.size, tc.overlap, gotSize, gotOverlap, tc.wantSize, tc.wantOverlap)
		}
	}
}

func TestChunkDocument_IDs(t *testing.T) {
	t.Parallel()

	doc := &document.Document{ID: "doc-1", Name: "notes.txt", Text: strings.Repeat("a", 2500)}
	chunks, err := ChunkDocument(doc, 1000, 200)
	if err != nil {
		t.Fatalf("ChunkDocument: %v", err)
	}
	// Stride 800: [0,1000), [800,1800), [1600,2500).
	want := []string{"doc-1_chunk_0", "doc-1_chunk_1", "doc-1_chunk_2"}
	wantOffsets := []int{0, 800, 1600}
	if len(chunks) != len(want) {
		t.Fatalf("want %d chunks, got %d", len(want), len(chunks))
	}
	seen := make(map[string]bool)
	for i, c := range chunks {
		if c.ID != want[i] {
			t.Errorf("chunk %d: want id %q, got %q", i, want[i], c.ID)
		}
		if seen[c.ID] {
			t.Errorf("duplicate chunk id %q", c.ID)
		}
		seen[c.ID] = true
		if c.Offset != wantOffsets[i] {
			t.Errorf("chunk %d: want offset %d, got %d", i, wantOffsets[i], c.Offset)
		}
		if c.Source != "notes.txt" || c.DocumentID != "doc-1" || c.Index != i {
			t.Errorf("chunk %d: unexpected labels %+v", i, c)
		}
	}
}
