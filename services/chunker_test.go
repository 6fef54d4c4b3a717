package services

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkShortTextYieldsOneChunk(t *testing.T) {
	c := NewChunker(300, 50)

	spans := c.Chunk("A short document.")
	require.Len(t, spans, 1)
	assert.Equal(t, "A short document.", spans[0].Text)
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, 17, spans[0].End)
}

func TestChunkEmptyTextYieldsOneChunk(t *testing.T) {
	c := NewChunker(300, 50)

	spans := c.Chunk("")
	require.Len(t, spans, 1)
	assert.Empty(t, spans[0].Text)
}

func TestChunkLongText(t *testing.T) {
	// 1000 characters of sentence-shaped text.
	text := strings.Repeat("Sentence number padding text here. ", 29)[:1000]
	c := NewChunker(300, 50)

	spans := c.Chunk(text)
	require.GreaterOrEqual(t, len(spans), 4)
	require.LessOrEqual(t, len(spans), 5)

	for i, span := range spans {
		assert.LessOrEqual(t, len(span.Text), 300, "chunk %d exceeds max size", i)
		assert.Equal(t, text[span.Start:span.End], span.Text, "chunk %d text/offset mismatch", i)
	}

	// Adjacent chunks share the configured overlap.
	for i := 1; i < len(spans); i++ {
		prev, cur := spans[i-1], spans[i]
		assert.Equal(t, prev.End-50, cur.Start, "chunk %d does not start overlap chars back", i)
		assert.True(t, strings.HasPrefix(cur.Text, prev.Text[len(prev.Text)-50:]),
			"chunk %d does not share a 50-char boundary with its predecessor", i)
	}
}

func TestChunkIsDeterministic(t *testing.T) {
	text := strings.Repeat("Some words that will need to be split across chunks. ", 40)
	c := NewChunker(256, 32)

	first := c.Chunk(text)
	second := c.Chunk(text)
	require.Equal(t, first, second)
}

func TestChunkBreaksAtSentenceBoundary(t *testing.T) {
	text := "First sentence is right here. Second sentence follows on. " +
		strings.Repeat("Filler sentence to push past the limit. ", 10)
	c := NewChunker(100, 10)

	spans := c.Chunk(text)
	require.Greater(t, len(spans), 1)
	assert.True(t, strings.HasSuffix(strings.TrimRight(spans[0].Text, " "), "."),
		"first chunk should end at a sentence boundary, got %q", spans[0].Text)
}

func TestChunkMultiByteTextStaysValidUTF8(t *testing.T) {
	// No spaces and no sentence punctuation, so every cut is a hard cut, and
	// the overlap step lands mid-rune unless cuts align to rune boundaries.
	text := strings.Repeat("数据检索系统", 100)
	c := NewChunker(300, 50)

	spans := c.Chunk(text)
	require.Greater(t, len(spans), 1)

	for i, span := range spans {
		assert.True(t, utf8.ValidString(span.Text), "chunk %d contains a split rune", i)
		assert.LessOrEqual(t, len(span.Text), 300)
		assert.Equal(t, text[span.Start:span.End], span.Text)
	}
	assert.Equal(t, len(text), spans[len(spans)-1].End, "chunks must cover the full text")
}

func TestChunkForceSplitsUnbrokenText(t *testing.T) {
	// No sentence boundaries and no whitespace: hard cuts at the limit.
	text := strings.Repeat("x", 900)
	c := NewChunker(300, 50)

	spans := c.Chunk(text)
	require.Greater(t, len(spans), 1)
	for _, span := range spans {
		assert.LessOrEqual(t, len(span.Text), 300)
	}
	assert.Equal(t, 300, spans[0].End)
}
