package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-cli/internal/model"
)

func TestChunk_NeverSplitsMidSentence(t *testing.T) {
	c := New(20, 5)
	doc := model.Document{DocumentID: "AAPL-2024-10K", Company: "Apple Inc."}
	pages := []model.Page{
		{PageNumber: 1, Section: "Item 7", Text: strings.Repeat("Revenue grew significantly this year. ", 10)},
	}

	chunks := c.Chunk(doc, pages)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.True(t, strings.HasSuffix(strings.TrimSpace(ch.TextRaw), "."))
	}
}

func TestChunk_EnrichedPrefixFormat(t *testing.T) {
	c := New(DefaultMaxTokens, DefaultOverlap)
	doc := model.Document{DocumentID: "AAPL-2024-10K", Company: "Apple Inc."}
	pages := []model.Page{
		{PageNumber: 3, Section: "Item 7", Text: "Net sales increased 8 percent year over year."},
	}

	chunks := c.Chunk(doc, pages)
	require.Len(t, chunks, 1)
	assert.Equal(t, "[Document: Apple Inc.] [Section: Item 7] [Page: 3]\n\nNet sales increased 8 percent year over year.", chunks[0].TextEnriched)
	assert.Equal(t, "Net sales increased 8 percent year over year.", chunks[0].TextRaw)
}

func TestChunk_ChunkIDIsDocumentIDPlusIndex(t *testing.T) {
	c := New(DefaultMaxTokens, DefaultOverlap)
	doc := model.Document{DocumentID: "AAPL-2024-10K"}
	pages := []model.Page{{PageNumber: 1, Text: "One sentence here."}}

	chunks := c.Chunk(doc, pages)
	require.Len(t, chunks, 1)
	assert.Equal(t, "AAPL-2024-10K:0", chunks[0].ChunkID)
}

func TestChunk_SpansMultiplePagesTracksStartEndPage(t *testing.T) {
	c := New(5, 0)
	doc := model.Document{DocumentID: "AAPL-2024-10K"}
	pages := []model.Page{
		{PageNumber: 1, Text: "Short sentence one."},
		{PageNumber: 2, Text: "Short sentence two."},
	}

	chunks := c.Chunk(doc, pages)
	require.NotEmpty(t, chunks)
	var sawPageTwo bool
	for _, ch := range chunks {
		if ch.EndPage == 2 {
			sawPageTwo = true
		}
		assert.LessOrEqual(t, ch.StartPage, ch.EndPage)
	}
	assert.True(t, sawPageTwo)
}

func TestChunk_OverlapCarriesTrailingSentences(t *testing.T) {
	c := New(10, 8)
	doc := model.Document{DocumentID: "AAPL-2024-10K"}
	text := strings.Repeat("Segment revenue rose this quarter. ", 6)
	pages := []model.Page{{PageNumber: 1, Text: text}}

	chunks := c.Chunk(doc, pages)
	require.Greater(t, len(chunks), 1)
	// The overlap tail of chunk N should reappear at the start of chunk N+1.
	firstSentenceOfSecond := strings.Split(chunks[1].TextRaw, ".")[0]
	assert.Contains(t, chunks[0].TextRaw, firstSentenceOfSecond)
}

func TestChunk_EmptyPagesYieldsNoChunks(t *testing.T) {
	c := New(DefaultMaxTokens, DefaultOverlap)
	chunks := c.Chunk(model.Document{DocumentID: "X"}, nil)
	assert.Empty(t, chunks)
}
