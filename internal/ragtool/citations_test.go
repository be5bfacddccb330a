package ragtool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-cli/internal/model"
)

func TestCoalesceCitations_MergesDuplicateDocumentPagePairs(t *testing.T) {
	passages := []RankedPassage{
		{ChunkID: "a1", Score: 0.4, Citation: model.Citation{DocumentID: "AAPL-2023-10K", Page: 12}},
		{ChunkID: "a2", Score: 0.9, Citation: model.Citation{DocumentID: "AAPL-2023-10K", Page: 12}},
		{ChunkID: "b1", Score: 0.5, Citation: model.Citation{DocumentID: "AAPL-2023-10K", Page: 40}},
	}
	out := coalesceCitations(passages)
	require.Len(t, out, 2)
	assert.Equal(t, "a2", out[0].ChunkID, "higher-scored duplicate should survive the merge")
	assert.Equal(t, "b1", out[1].ChunkID)
}

func TestCoalesceCitations_PreservesOrderOfFirstOccurrence(t *testing.T) {
	passages := []RankedPassage{
		{ChunkID: "first", Citation: model.Citation{DocumentID: "X", Page: 1}},
		{ChunkID: "second", Citation: model.Citation{DocumentID: "Y", Page: 1}},
	}
	out := coalesceCitations(passages)
	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].ChunkID)
	assert.Equal(t, "second", out[1].ChunkID)
}

func TestCoalesceCitations_EmptyInputYieldsEmptyOutput(t *testing.T) {
	assert.Empty(t, coalesceCitations(nil))
}
