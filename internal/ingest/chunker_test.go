package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_ShortTextIsSingleChunk(t *testing.T) {
	c := NewChunker(800, 100)
	chunks := c.Chunk("One short sentence.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "One short sentence.", chunks[0])
}

func TestChunker_EmptyTextYieldsNoChunks(t *testing.T) {
	c := NewChunker(800, 100)
	assert.Empty(t, c.Chunk(""))
	assert.Empty(t, c.Chunk("   \n\t  "))
}

func TestChunker_RespectsChunkSize(t *testing.T) {
	c := NewChunker(100, 20)
	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("This sentence has a fixed length of chars. ")
	}

	chunks := c.Chunk(sb.String())
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 100)
		assert.NotEmpty(t, chunk)
	}
}

func TestChunker_OverlapCarriesTrailingContext(t *testing.T) {
	c := NewChunker(60, 20)
	text := "First sentence here today. Second sentence follows now. Third sentence ends it all."

	chunks := c.Chunk(text)
	require.Greater(t, len(chunks), 1)

	// The tail of each chunk reappears at the head of the next one.
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		tail := prev[max(0, len(prev)-20):]
		assert.True(t, strings.HasPrefix(chunks[i], strings.TrimSpace(tail)),
			"chunk %d should start with the overlap from chunk %d", i, i-1)
	}
}

func TestChunker_HardSplitsOversizedSentence(t *testing.T) {
	c := NewChunker(50, 10)
	long := strings.Repeat("x", 200) + "."

	chunks := c.Chunk(long)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 50)
	}
}

func TestChunker_NormalizesWhitespace(t *testing.T) {
	c := NewChunker(800, 100)
	chunks := c.Chunk("Spread   over\n\nmany    lines.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "Spread over many lines.", chunks[0])
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
