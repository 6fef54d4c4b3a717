package services

import (
	"regexp"
	"unicode"
	"unicode/utf8"

	"multimodal-rag-platform/models"
)

// Chunker splits normalized text into overlapping, bounded-size segments
// aligned to sentence boundaries. Chunking is deterministic: identical input
// and parameters always yield identical chunk boundaries, which keeps tests
// reproducible and cache keys stable.
type Chunker struct {
	maxSize       int
	overlap       int
	sentenceRegex *regexp.Regexp
}

// NewChunker creates a chunker. maxSize bounds chunk length in characters;
// overlap is the number of trailing characters each chunk shares with the
// next one.
func NewChunker(maxSize, overlap int) *Chunker {
	if maxSize <= 0 {
		maxSize = 512
	}
	if overlap < 0 || overlap >= maxSize {
		overlap = maxSize / 10
	}
	return &Chunker{
		maxSize:       maxSize,
		overlap:       overlap,
		sentenceRegex: regexp.MustCompile(`[.!?][\s]|\n\n`),
	}
}

// Chunk splits text into spans. Every span is at most maxSize bytes and
// always valid UTF-8: cut positions back off to rune boundaries. Consecutive
// spans from the same text share at least `overlap` bytes (exactly `overlap`
// for ASCII text), except when the previous span is itself shorter than the
// overlap. Empty text or text within maxSize yields exactly one span.
func (c *Chunker) Chunk(text string) []models.ChunkSpan {
	if len(text) <= c.maxSize {
		return []models.ChunkSpan{{Text: text, Start: 0, End: len(text)}}
	}

	var spans []models.ChunkSpan
	start := 0
	for start < len(text) {
		end := start + c.maxSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = c.breakPoint(text, start, alignRuneStart(text, end))
		}

		spans = append(spans, models.ChunkSpan{
			Text:  text[start:end],
			Start: start,
			End:   end,
		})
		if end >= len(text) {
			break
		}

		next := alignRuneStart(text, end-c.overlap)
		if next <= start {
			// Chunk shorter than the overlap; move forward anyway.
			next = end
		}
		start = next
	}

	return spans
}

// breakPoint finds where to end the chunk beginning at start: the last
// sentence boundary inside the window, else the last whitespace (a sentence
// longer than maxSize is force-split), else a hard cut at the limit.
func (c *Chunker) breakPoint(text string, start, limit int) int {
	window := text[start:limit]

	if matches := c.sentenceRegex.FindAllStringIndex(window, -1); len(matches) > 0 {
		last := matches[len(matches)-1]
		if last[1] > 0 {
			return start + last[1]
		}
	}

	if idx := lastSpace(window); idx > 0 {
		return start + idx + 1
	}

	return limit
}

// alignRuneStart backs i off to the start of the rune it points into, so
// cuts and overlap starts never split a multi-byte character.
func alignRuneStart(text string, i int) int {
	for i > 0 && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

func lastSpace(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if unicode.IsSpace(rune(s[i])) {
			return i
		}
	}
	return -1
}
