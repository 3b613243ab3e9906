package conversation

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reassemble(chunks []string) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(strings.TrimSuffix(c, ChunkContinuedMarker))
	}
	return b.String()
}

func TestChunkMessageShortTextSingleChunk(t *testing.T) {
	chunks := ChunkMessage("Hola, bienvenido.", 160)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Hola, bienvenido.", chunks[0])
}

func TestChunkMessageEmptyText(t *testing.T) {
	assert.Nil(t, ChunkMessage("", 160))
}

func TestChunkMessagePrefersLineBoundaries(t *testing.T) {
	text := "• Tacos de Asada: $85.00\n• Agua de Horchata: $35.00\n• Quesadilla: $60.00\n"
	chunks := ChunkMessage(text, 30)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks[:len(chunks)-1] {
		assert.True(t, strings.HasSuffix(c, ChunkContinuedMarker))
	}
	assert.False(t, strings.HasSuffix(chunks[len(chunks)-1], ChunkContinuedMarker))
	assert.Equal(t, text, reassemble(chunks))
}

func TestChunkMessageRespectsLimit(t *testing.T) {
	text := strings.Repeat("palabra corta ", 200)
	chunks := ChunkMessage(text, 100)
	for i, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 100, "chunk %d", i)
	}
	assert.Equal(t, text, reassemble(chunks))
}

func TestChunkMessageHardSplitsOversizedWord(t *testing.T) {
	word := strings.Repeat("a", 250)
	chunks := ChunkMessage(word, 100)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 100)
	}
	assert.Equal(t, word, reassemble(chunks))
}

func TestChunkMessageMultibyteRunesCountedAsRunes(t *testing.T) {
	text := strings.Repeat("ñ", 120)
	chunks := ChunkMessage(text, 50)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 50)
	}
	assert.Equal(t, text, reassemble(chunks))
}

func TestChunkMessageZeroLimitUsesDefault(t *testing.T) {
	text := strings.Repeat("x", 500)
	chunks := ChunkMessage(text, 0)
	require.Len(t, chunks, 1)
}
