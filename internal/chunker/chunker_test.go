package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docextract/internal/tokenizer"
	"github.com/dshills/docextract/pkg/types"
)

// sentences builds n short sentences separated by ". "
func sentences(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Sentence number %d of the act is here. ", i)
	}
	return b.String()
}

// assertCoverage checks chunk offsets cover [0, total) without gaps
func assertCoverage(t *testing.T, chunks []types.Chunk, total int) {
	t.Helper()
	require.NotEmpty(t, chunks)
	assert.Equal(t, 0, chunks[0].Position)

	covered := chunks[0].End()
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		assert.Greater(t, cur.Position, prev.Position, "positions strictly increase")
		assert.LessOrEqual(t, cur.Position, covered, "gap before chunk %d", i)
		if cur.End() > covered {
			covered = cur.End()
		}
	}
	assert.Equal(t, total, covered, "chunks reach the end of the document")
}

func TestNew_Defaults(t *testing.T) {
	c := New(tokenizer.Bytes{}, Options{})

	assert.Equal(t, DefaultMaxContextLength/2, c.ChunkSize())
	assert.Equal(t, DefaultOverlap, c.Overlap())
	assert.Equal(t, DefaultMaxContextLength, c.MaxContextLength())
}

func TestNew_Clamping(t *testing.T) {
	tests := []struct {
		name        string
		opts        Options
		wantSize    int
		wantOverlap int
	}{
		{
			name:        "chunk size above context budget",
			opts:        Options{ChunkSize: 15000, Overlap: 200},
			wantSize:    7000,
			wantOverlap: 200,
		},
		{
			name:        "overlap clamped to quarter",
			opts:        Options{ChunkSize: 400, Overlap: 300},
			wantSize:    400,
			wantOverlap: 100,
		},
		{
			name:        "no overlap",
			opts:        Options{ChunkSize: 400, Overlap: -1},
			wantSize:    400,
			wantOverlap: 0,
		},
		{
			name:        "custom context",
			opts:        Options{MaxContextLength: 2000, ReservedPromptTokens: 500},
			wantSize:    1000,
			wantOverlap: 200,
		},
		{
			name:        "tiny context",
			opts:        Options{MaxContextLength: 1},
			wantSize:    1,
			wantOverlap: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tokenizer.Bytes{}, tt.opts)
			assert.Equal(t, tt.wantSize, c.ChunkSize())
			assert.Equal(t, tt.wantOverlap, c.Overlap())
			assert.LessOrEqual(t, c.ChunkSize(), c.MaxContextLength())
		})
	}
}

func TestCreateChunks_SingleChunk(t *testing.T) {
	text := "SEC. 1. SHORT TITLE. This Act may be cited as the Example Act."
	c := New(tokenizer.Bytes{}, Options{ChunkSize: 1000})

	chunks := c.CreateChunks(text)

	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Position)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, len(text), chunks[0].TokenCount)
}

func TestCreateChunks_Empty(t *testing.T) {
	c := New(tokenizer.Bytes{}, Options{ChunkSize: 100})

	chunks := c.CreateChunks("")

	require.Len(t, chunks, 1)
	assert.Equal(t, "", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Position)
}

func TestCreateChunks_Coverage(t *testing.T) {
	text := sentences(200)
	c := New(tokenizer.Bytes{}, Options{ChunkSize: 500, Overlap: 60})

	chunks := c.CreateChunks(text)

	assert.Greater(t, len(chunks), 1)
	assertCoverage(t, chunks, len(text))
	for _, chunk := range chunks {
		// With byte tokens the chunk text is exactly the covered range
		assert.Equal(t, text[chunk.Position:chunk.End()], chunk.Text)
		assert.LessOrEqual(t, chunk.TokenCount, c.ChunkSize())
		require.NoError(t, chunk.Validate())
	}
}

func TestCreateChunks_TrimsToSentenceBoundary(t *testing.T) {
	text := sentences(50)
	c := New(tokenizer.Bytes{}, Options{ChunkSize: 300, Overlap: 20})

	chunks := c.CreateChunks(text)

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks[:len(chunks)-1] {
		assert.True(t, strings.HasSuffix(chunk.Text, "."), "chunk %q ends mid-sentence", chunk.Text)
	}
}

func TestCreateChunks_OverlapBetweenChunks(t *testing.T) {
	text := strings.Repeat("x", 1000)
	c := New(tokenizer.Bytes{}, Options{ChunkSize: 400, Overlap: 100})

	chunks := c.CreateChunks(text)

	require.Len(t, chunks, 3)
	assert.Equal(t, []int{0, 300, 600}, []int{chunks[0].Position, chunks[1].Position, chunks[2].Position})
	assert.Equal(t, 1000, chunks[2].End())
}

func TestCreateChunks_ExactlyChunkSize(t *testing.T) {
	text := strings.Repeat("y", 400)
	c := New(tokenizer.Bytes{}, Options{ChunkSize: 400, Overlap: 100})

	chunks := c.CreateChunks(text)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
}

func TestCreateChunks_ProgressWithShortTrimmedChunks(t *testing.T) {
	// The only boundaries sit at the very start, so trimming produces one-
	// and two-token chunks and the cursor must be forced forward.
	text := "A. " + strings.Repeat("x", 1000)
	c := New(tokenizer.Bytes{}, Options{ChunkSize: 200, Overlap: 50})

	chunks := c.CreateChunks(text)

	assert.Less(t, len(chunks), len(text), "chunking terminates")
	assertCoverage(t, chunks, len(text))
	assert.Equal(t, "A.", chunks[0].Text)
	assert.Equal(t, 1, chunks[1].Position)
}

func TestCreateChunks_NoBoundaryBelowMinTrimLength(t *testing.T) {
	text := "One. Two. Three. Four. Five. Six."
	c := New(tokenizer.Bytes{}, Options{ChunkSize: 20, Overlap: 1, MaxContextLength: 100, ReservedPromptTokens: 10})

	chunks := c.CreateChunks(text)

	// decoded windows are shorter than MinTrimLength so they are not trimmed
	assert.Equal(t, 20, chunks[0].TokenCount)
	assertCoverage(t, chunks, len(text))
}

func TestCreateChunks_Deterministic(t *testing.T) {
	text := sentences(120)
	c := New(tokenizer.Bytes{}, Options{ChunkSize: 256, Overlap: 32})

	first := c.CreateChunks(text)
	second := c.CreateChunks(text)

	assert.Equal(t, first, second)
}

func TestPlan(t *testing.T) {
	text := sentences(100)
	c := New(tokenizer.Bytes{}, Options{ChunkSize: 512, Overlap: 64})

	plan := c.Plan(text)

	assert.Equal(t, len(text), plan.TotalTokens)
	assert.Equal(t, 512, plan.ChunkSize)
	assert.Equal(t, 64, plan.Overlap)
	assert.NotEmpty(t, plan.Chunks)
}
