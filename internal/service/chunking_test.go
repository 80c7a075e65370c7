package service

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/huddlehq/huddle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reassemble(chunks []domain.Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Text[c.Overlap:])
	}
	return b.String()
}

func chunkTexts(chunks []domain.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

func transcript(lines int) string {
	var b strings.Builder
	for i := 0; i < lines; i++ {
		fmt.Fprintf(&b, "Speaker %d: We reviewed item %d of the quarterly plan. Next we discuss the budget and hiring.\n", i%4, i)
		if i%7 == 6 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func assertChunkInvariants(t *testing.T, text string, chunks []domain.Chunk, cfg ChunkConfig) {
	t.Helper()

	require.NotEmpty(t, chunks)
	assert.Equal(t, text, reassemble(chunks))

	prevEnd := 0
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), cfg.MaxChars, "chunk %d too long", i)
		assert.Equal(t, text[c.Start:c.End()], c.Text)
		if i == 0 {
			assert.Equal(t, 0, c.Start)
			assert.Equal(t, 0, c.Overlap)
		} else {
			assert.Equal(t, prevEnd-c.Overlap, c.Start)
			assert.LessOrEqual(t, utf8.RuneCountInString(c.Text[:c.Overlap]), cfg.Overlap)
		}
		prevEnd = c.End()
	}
	assert.Equal(t, len(text), prevEnd)
}

func TestChunkText_BelowThreshold(t *testing.T) {
	cfg := DefaultChunkConfig()
	text := transcript(50)
	require.Less(t, len(text), cfg.ContextThreshold)

	chunks := ChunkText(text, cfg)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
}

func TestChunkText_ExactlyAtThreshold(t *testing.T) {
	cfg := ChunkConfig{ContextThreshold: 100, MaxChars: 30, Overlap: 5}
	text := strings.Repeat("a", 100)

	chunks := ChunkText(text, cfg)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
}

func TestChunkText_WhitespaceOnly(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\n\t "} {
		chunks := ChunkText(text, DefaultChunkConfig())
		require.Len(t, chunks, 1)
		assert.Equal(t, "", chunks[0].Text)
	}
}

func TestChunkText_LongTranscript(t *testing.T) {
	cfg := DefaultChunkConfig()
	text := strings.ReplaceAll(transcript(600), "\n\n", "\n")
	require.Greater(t, utf8.RuneCountInString(text), 50000)

	chunks := ChunkText(text, cfg)

	assert.GreaterOrEqual(t, len(chunks), 13)
	assertChunkInvariants(t, text, chunks, cfg)

	overlapping := 0
	for _, c := range chunks[1:] {
		if c.Overlap > 0 {
			overlapping++
		}
	}
	assert.Equal(t, len(chunks)-1, overlapping)
}

func TestChunkText_PrefersParagraphBoundaries(t *testing.T) {
	cfg := ChunkConfig{ContextThreshold: 50, MaxChars: 60, Overlap: 0}
	para := strings.Repeat("word ", 8) + "end.\n\n"
	text := strings.Repeat(para, 6)

	chunks := ChunkText(text, cfg)

	assertChunkInvariants(t, text, chunks, cfg)
	for _, c := range chunks {
		assert.True(t, strings.HasSuffix(c.Text, "\n\n"), "chunk %q should end at a paragraph break", c.Text)
	}
}

func TestChunkText_HardCut(t *testing.T) {
	cfg := ChunkConfig{ContextThreshold: 10, MaxChars: 7, Overlap: 3}
	text := strings.Repeat("x", 50)

	chunks := ChunkText(text, cfg)

	assertChunkInvariants(t, text, chunks, cfg)
	assert.Len(t, chunks, 8)
}

func TestChunkText_MultibyteRunes(t *testing.T) {
	cfg := ChunkConfig{ContextThreshold: 20, MaxChars: 16, Overlap: 4}
	text := strings.Repeat("héllo wörld ünïcode ", 10)

	chunks := ChunkText(text, cfg)

	assertChunkInvariants(t, text, chunks, cfg)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c.Text))
	}
}

func TestChunkText_Deterministic(t *testing.T) {
	cfg := ChunkConfig{ContextThreshold: 1000, MaxChars: 300, Overlap: 60}
	text := transcript(80)

	assert.Equal(t, ChunkText(text, cfg), ChunkText(text, cfg))
}

func TestSplitText_IgnoresThreshold(t *testing.T) {
	cfg := ChunkConfig{ContextThreshold: 100000, MaxChars: 200, Overlap: 40}
	text := transcript(20)

	chunks := SplitText(text, cfg)

	assert.Greater(t, len(chunks), 1)
	assertChunkInvariants(t, text, chunks, cfg)
}

func TestChunkConfig_Defaults(t *testing.T) {
	cfg := ChunkConfig{}.withDefaults()

	assert.Equal(t, DefaultChunkConfig().ContextThreshold, cfg.ContextThreshold)
	assert.Equal(t, DefaultChunkConfig().MaxChars, cfg.MaxChars)
	assert.Equal(t, 0, cfg.Overlap)
}

func TestTruncateRunes(t *testing.T) {
	out, cut := truncateRunes("héllo", 3)
	assert.Equal(t, "hél", out)
	assert.True(t, cut)

	out, cut = truncateRunes("abc", 3)
	assert.Equal(t, "abc", out)
	assert.False(t, cut)
}
