package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkMessageShortTextIsUntouched(t *testing.T) {
	chunks := ChunkMessage("hello", 4000)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello", chunks[0])
}

// for text with no natural boundaries the chunk count is exactly
// ceil(N/L) and every segment fits the limit
func TestChunkMessageLaw(t *testing.T) {
	limit := 100
	for _, n := range []int{101, 150, 200, 250, 999} {
		text := strings.Repeat("x", n)
		chunks := ChunkMessage(text, limit)

		want := (n + limit - 1) / limit
		assert.Len(t, chunks, want, "N=%d", n)
		for _, c := range chunks {
			assert.LessOrEqual(t, len([]rune(c)), limit)
		}
		assert.Equal(t, text, strings.Join(chunks, ""))
	}
}

func TestChunkMessagePrefersLineBoundaries(t *testing.T) {
	line := strings.Repeat("a", 80) + "\n"
	text := strings.Repeat(line, 10) // 810 runes

	chunks := ChunkMessage(text, 100)

	assert.Equal(t, text, strings.Join(chunks, ""))
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 100)
		assert.True(t, strings.HasSuffix(c, "\n"), "chunk should end at a line boundary")
	}
}

func TestChunkMessageOrderPreserved(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 500; i++ {
		sb.WriteString("word ")
	}
	text := sb.String()

	chunks := ChunkMessage(text, 120)
	assert.Equal(t, text, strings.Join(chunks, ""))
	assert.Greater(t, len(chunks), 1)
}

func TestChunkMessageAvoidsSplittingBoldPair(t *testing.T) {
	// no whitespace anywhere, a bold pair straddling the naive cut
	text := strings.Repeat("x", 95) + "*bold*" + strings.Repeat("y", 50)

	chunks := ChunkMessage(text, 100)

	assert.Equal(t, text, strings.Join(chunks, ""))
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 100)
		assert.Equal(t, 0, strings.Count(c, "*")%2, "no chunk should hold half a bold pair")
	}
}

func TestSanitizeMarkdown(t *testing.T) {
	t.Run("strips code fences", func(t *testing.T) {
		out, err := SanitizeMarkdown("before\n```\ncode here\n```\nafter")
		require.NoError(t, err)
		assert.NotContains(t, out, "```")
		assert.Contains(t, out, "code here")
	})

	t.Run("normalizes double-asterisk bold", func(t *testing.T) {
		out, err := SanitizeMarkdown("**important** result")
		require.NoError(t, err)
		assert.Equal(t, "*important* result", out)
	})

	t.Run("unbalanced markers are an error", func(t *testing.T) {
		_, err := SanitizeMarkdown("broken *bold")
		assert.Error(t, err)

		_, err = SanitizeMarkdown("broken _italic")
		assert.Error(t, err)
	})

	t.Run("plain text passes through", func(t *testing.T) {
		out, err := SanitizeMarkdown("nothing fancy")
		require.NoError(t, err)
		assert.Equal(t, "nothing fancy", out)
	})
}
