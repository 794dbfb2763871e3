package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	// ChunkSize is the target chunk length in runes.
	ChunkSize = 1000
	// ChunkOverlap is how many trailing runes of a chunk are repeated at the
	// start of the next one, so that retrieval never loses a boundary sentence.
	ChunkOverlap = 200
)

// Splitter defines the interface for splitting document text into
// bounded-length, overlapping chunks.
type Splitter interface {
	Split(text string) []string
}

type recursiveSplitter struct {
	chunkSize int
	overlap   int
}

// NewSplitter creates the default recursive character splitter.
// It prefers paragraph boundaries, then line breaks, then sentence ends,
// then word boundaries, and only hard-cuts text that has none of those.
func NewSplitter() Splitter {
	return &recursiveSplitter{chunkSize: ChunkSize, overlap: ChunkOverlap}
}

// separators in preference order. The empty separator means a raw rune cut.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

func (s *recursiveSplitter) Split(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	normalized = strings.TrimSpace(normalized)
	if normalized == "" {
		return nil
	}

	pieces := s.splitRecursive(normalized, 0)

	var chunks []string
	for _, p := range pieces {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			chunks = append(chunks, trimmed)
		}
	}
	return chunks
}

// splitRecursive splits text using the separator at sepIdx, recursing into the
// next separator for any fragment still longer than chunkSize, then re-merges
// fragments into chunks with overlap.
func (s *recursiveSplitter) splitRecursive(text string, sepIdx int) []string {
	if utf8.RuneCountInString(text) <= s.chunkSize {
		return []string{text}
	}
	if sepIdx >= len(separators) {
		return s.hardCut(text)
	}

	sep := separators[sepIdx]
	if sep == "" {
		return s.hardCut(text)
	}

	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		// Separator absent, fall through to the next one.
		return s.splitRecursive(text, sepIdx+1)
	}

	// Re-attach the separator so sentence/paragraph shape survives in chunks.
	var fragments []string
	for i, part := range parts {
		if i < len(parts)-1 {
			part += sep
		}
		if utf8.RuneCountInString(part) > s.chunkSize {
			fragments = append(fragments, s.splitRecursive(part, sepIdx+1)...)
		} else if part != "" {
			fragments = append(fragments, part)
		}
	}

	return s.mergeWithOverlap(fragments)
}

// mergeWithOverlap packs fragments into chunks of at most chunkSize runes,
// carrying the last overlap runes of each finished chunk into the next.
func (s *recursiveSplitter) mergeWithOverlap(fragments []string) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen == 0 {
			return
		}
		chunk := current.String()
		chunks = append(chunks, chunk)
		current.Reset()
		tail := tailRunes(chunk, s.overlap)
		current.WriteString(tail)
		currentLen = utf8.RuneCountInString(tail)
	}

	for _, frag := range fragments {
		fragLen := utf8.RuneCountInString(frag)
		if currentLen > 0 && currentLen+fragLen > s.chunkSize {
			flush()
		}
		current.WriteString(frag)
		currentLen += fragLen
	}
	if currentLen > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// hardCut slices text into chunkSize windows stepping by chunkSize-overlap.
func (s *recursiveSplitter) hardCut(text string) []string {
	runes := []rune(text)
	step := s.chunkSize - s.overlap
	if step <= 0 {
		step = s.chunkSize
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func tailRunes(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[len(runes)-n:])
}
