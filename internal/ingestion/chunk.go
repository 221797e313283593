// Package ingestion turns document text into indexed chunks: it splits text
// into overlapping fixed-size segments, embeds them, and appends them to the
// vector store, resetting the store once at the start of a session.
package ingestion

import (
	"fmt"
	"strings"

	"github.com/54b3r/promptdoc-go/internal/apperr"
	"github.com/54b3r/promptdoc-go/internal/document"
	"github.com/54b3r/promptdoc-go/internal/rag"
)

// Default chunking parameters, measured in characters (runes).
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Segment is one window of the source text.
type Segment struct {
	// Offset is the rune offset of the first character of Text.
	Offset int

	// Text is the segment content, at most size runes long.
	Text string
}

// NormalizeSizes applies the chunking defaults: a non-positive size becomes
// DefaultChunkSize, a negative overlap becomes 0 and an overlap that is not
// smaller than size becomes size/10.
func NormalizeSizes(size, overlap int) (int, int) {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 10
	}
	return size, overlap
}

// Chunk splits text into segments of at most size runes. Consecutive
// segments share exactly overlap runes and the last segment ends at the end
// of the text, so it may be shorter than size. Text that fits in one segment
// is returned unchanged as a single segment. Empty or whitespace-only text
// yields apperr.ErrEmptyInput.
func Chunk(text string, size, overlap int) ([]Segment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("ingestion: %w: document has no text", apperr.ErrEmptyInput)
	}
	size, overlap = NormalizeSizes(size, overlap)

	runes := []rune(text)
	if len(runes) <= size {
		return []Segment{{Offset: 0, Text: text}}, nil
	}

	stride := size - overlap
	segments := make([]Segment, 0, (len(runes)-overlap+stride-1)/stride)
	for start := 0; ; start += stride {
		end := min(start+size, len(runes))
		segments = append(segments, Segment{Offset: start, Text: string(runes[start:end])})
		if end == len(runes) {
			break
		}
	}
	return segments, nil
}

// ChunkDocument splits doc's text and labels each segment with a chunk id of
// the form "<documentID>_chunk_<i>".
func ChunkDocument(doc *document.Document, size, overlap int) ([]rag.Chunk, error) {
	segments, err := Chunk(doc.Text, size, overlap)
	if err != nil {
		return nil, err
	}

	chunks := make([]rag.Chunk, len(segments))
	for i, seg := range segments {
		chunks[i] = rag.Chunk{
			ID:         rag.ChunkID(doc.ID, i),
			DocumentID: doc.ID,
			Index:      i,
			Offset:     seg.Offset,
			Content:    seg.Text,
			Source:     doc.Name,
		}
	}
	return chunks, nil
}
