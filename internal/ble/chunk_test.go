package ble

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMaxBytes = 20 // one default ATT payload

func TestChunkTextFitsInOne(t *testing.T) {
	chunks := ChunkText("hello world", testMaxBytes)
	assert.Equal(t, []string{"hello world"}, chunks)
}

func TestChunkTextEmpty(t *testing.T) {
	assert.Empty(t, ChunkText("", testMaxBytes))
}

func TestChunkTextDisabled(t *testing.T) {
	text := strings.Repeat("word ", 40)
	assert.Equal(t, []string{text}, ChunkText(text, 0))
}

func TestChunkTextSplitsAtWordBoundary(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog"
	chunks := ChunkText(text, testMaxBytes)
	require.GreaterOrEqual(t, len(chunks), 2)

	for i, c := range chunks {
		assert.LessOrEqual(t, len(c), testMaxBytes, "chunk[%d]", i)
	}
	assert.Equal(t, "the quick brown fox ", chunks[0])
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestChunkTextUTF8NeverSplitsMidChar(t *testing.T) {
	// Each emoji is 4 bytes. With max=10, two fit per chunk.
	text := "\U0001F600\U0001F601\U0001F602\U0001F603\U0001F604"
	chunks := ChunkText(text, 10)
	for i, c := range chunks {
		assert.LessOrEqual(t, len(c), 10, "chunk[%d]", i)
		assert.True(t, utf8.ValidString(c), "chunk[%d] is not valid UTF-8", i)
	}
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestChunkTextExactFit(t *testing.T) {
	text := strings.Repeat("a", testMaxBytes)
	assert.Equal(t, []string{text}, ChunkText(text, testMaxBytes))
}

func TestChunkTextOneByteOver(t *testing.T) {
	text := strings.Repeat("a", testMaxBytes+1)
	assert.Len(t, ChunkText(text, testMaxBytes), 2)
}

func TestChunkTextLongWordForced(t *testing.T) {
	text := strings.Repeat("x", testMaxBytes+10)
	chunks := ChunkText(text, testMaxBytes)
	require.Len(t, chunks, 2)
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestChunkTextMaxSmallerThanRune(t *testing.T) {
	// A 4-byte rune with maxBytes=1 must still make forward progress.
	text := "\U0001F600\U0001F601"
	chunks := ChunkText(text, 1)
	assert.Equal(t, []string{"\U0001F600", "\U0001F601"}, chunks)
}
