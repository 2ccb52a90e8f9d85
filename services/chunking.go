package services

import (
	"strings"
	"unicode/utf8"
)

// ChunkingService splits document text into overlapping windows for
// embedding. Boundaries are chosen on natural breaks when one exists close
// enough to the window end, falling back through paragraph, line, sentence
// and word breaks before cutting mid-word.
type ChunkingService struct {
	maxChunkSize int
	overlap      int
}

// Chunk is one window of the source text, in document order.
type Chunk struct {
	Text  string `json:"text"`
	Index int    `json:"index"`
}

// NewChunkingService creates a chunker. overlap must be smaller than
// maxChunkSize; callers get sane defaults otherwise.
func NewChunkingService(maxChunkSize, overlap int) *ChunkingService {
	if maxChunkSize <= 0 {
		maxChunkSize = 1000
	}
	if overlap < 0 || overlap >= maxChunkSize {
		overlap = maxChunkSize / 5
	}
	return &ChunkingService{
		maxChunkSize: maxChunkSize,
		overlap:      overlap,
	}
}

// ChunkText splits text into chunks of at most maxChunkSize runes with the
// configured overlap between consecutive chunks. Text that fits in a single
// window comes back as one chunk. Every rune of the input appears in at
// least one chunk.
func (cs *ChunkingService) ChunkText(text string) []Chunk {
	return cs.ChunkTextWith(text, cs.maxChunkSize, cs.overlap)
}

// ChunkTextWith is ChunkText with per-call size and overlap. Nonpositive
// or inconsistent values fall back to the configured defaults.
func (cs *ChunkingService) ChunkTextWith(text string, size, overlap int) []Chunk {
	if size <= 0 {
		size = cs.maxChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = cs.overlap
		if overlap >= size {
			overlap = size / 5
		}
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	runes := []rune(trimmed)
	if len(runes) <= size {
		return []Chunk{{Text: trimmed, Index: 0}}
	}

	// A break point only counts when the resulting chunk keeps a useful
	// share of the window, otherwise tiny chunks pile up.
	minCut := size / 2

	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			piece := strings.TrimSpace(string(runes[start:]))
			if piece != "" {
				chunks = append(chunks, Chunk{Text: piece, Index: len(chunks)})
			}
			break
		}

		cut := cs.findBreak(runes[start:end], minCut)
		if cut <= 0 {
			cut = end - start
		}
		piece := strings.TrimSpace(string(runes[start : start+cut]))
		if piece != "" {
			chunks = append(chunks, Chunk{Text: piece, Index: len(chunks)})
		}

		next := start + cut - overlap
		if next <= start {
			next = start + cut
		}
		start = next
	}
	return chunks
}

// findBreak picks the best split position inside window, scanning backwards
// from the end. Paragraph breaks win over line breaks, then sentence ends,
// then plain spaces. Positions before minCut are ignored; with no usable
// break the window is cut at full length.
func (cs *ChunkingService) findBreak(window []rune, minCut int) int {
	n := len(window)

	if cut := lastIndexRunes(window, "\n\n", minCut); cut > 0 {
		return cut
	}
	if cut := lastIndexRunes(window, "\n", minCut); cut > 0 {
		return cut
	}
	for i := n - 2; i >= minCut; i-- {
		if isSentenceEnd(window[i]) && window[i+1] == ' ' {
			return i + 1
		}
	}
	for i := n - 1; i >= minCut; i-- {
		// Cutting at index 0 would make an empty chunk and stall the scan.
		if window[i] == ' ' && i > 0 {
			return i
		}
	}
	return n
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?':
		return true
	}
	return false
}

// lastIndexRunes finds the last occurrence of sep in window at or after
// minCut, returning the rune index just past the separator, or -1.
func lastIndexRunes(window []rune, sep string, minCut int) int {
	s := string(window)
	byteIdx := strings.LastIndex(s, sep)
	for byteIdx >= 0 {
		runeIdx := utf8.RuneCountInString(s[:byteIdx])
		cut := runeIdx + utf8.RuneCountInString(sep)
		if runeIdx >= minCut {
			return cut
		}
		byteIdx = strings.LastIndex(s[:byteIdx], sep)
	}
	return -1
}
