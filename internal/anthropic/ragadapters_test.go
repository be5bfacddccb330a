package anthropic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestParaphraserAdapter_ParsesJSONArrayAndCapsAtN(t *testing.T) {
	client := new(MockClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&MessageResponse{Content: []ContentBlock{{Type: ContentText, Text: `["how much revenue?", "what was the revenue figure?", "extra"]`}}}, nil)

	adapter := NewParaphraserAdapter(client, "")
	out, err := adapter.Paraphrase(context.Background(), "what was revenue?", 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "how much revenue?", out[0])
}

func TestParaphraserAdapter_ZeroNReturnsNilWithoutCallingClient(t *testing.T) {
	client := new(MockClient)
	adapter := NewParaphraserAdapter(client, "")
	out, err := adapter.Paraphrase(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Nil(t, out)
	client.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestParaphraserAdapter_NonJSONResponseFailsOpenToNilSlice(t *testing.T) {
	client := new(MockClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&MessageResponse{Content: []ContentBlock{{Type: ContentText, Text: "not json"}}}, nil)

	adapter := NewParaphraserAdapter(client, "")
	out, err := adapter.Paraphrase(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestParaphraserAdapter_PropagatesClientError(t *testing.T) {
	client := new(MockClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	adapter := NewParaphraserAdapter(client, "")
	_, err := adapter.Paraphrase(context.Background(), "q", 1)
	assert.Error(t, err)
}

func TestRerankerAdapter_ScoreParsesIntegerAndNormalizes(t *testing.T) {
	client := new(MockClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&MessageResponse{Content: []ContentBlock{{Type: ContentText, Text: "85"}}}, nil)

	adapter := NewRerankerAdapter(client, "")
	score, err := adapter.Score(context.Background(), "q", "passage")
	require.NoError(t, err)
	assert.InDelta(t, 0.85, score, 1e-9)
}

func TestRerankerAdapter_ClampsOutOfRangeScores(t *testing.T) {
	client := new(MockClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&MessageResponse{Content: []ContentBlock{{Type: ContentText, Text: "140"}}}, nil)

	adapter := NewRerankerAdapter(client, "")
	score, err := adapter.Score(context.Background(), "q", "passage")
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestRerankerAdapter_NonNumericResponseFailsOpenToZero(t *testing.T) {
	client := new(MockClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&MessageResponse{Content: []ContentBlock{{Type: ContentText, Text: "not a number"}}}, nil)

	adapter := NewRerankerAdapter(client, "")
	score, err := adapter.Score(context.Background(), "q", "passage")
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestCompressorAdapter_ReturnsExtractedText(t *testing.T) {
	client := new(MockClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&MessageResponse{Content: []ContentBlock{{Type: ContentText, Text: "the relevant sentence."}}}, nil)

	adapter := NewCompressorAdapter(client, "")
	out, err := adapter.Compress(context.Background(), "q", "a long passage with one relevant sentence.")
	require.NoError(t, err)
	assert.Equal(t, "the relevant sentence.", out)
}

func TestSQLPlannerAdapter_StripsCodeFence(t *testing.T) {
	client := new(MockClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&MessageResponse{Content: []ContentBlock{{Type: ContentText, Text: "```sql\nSELECT 1;\n```"}}}, nil)

	adapter := NewSQLPlannerAdapter(client, "")
	sql, err := adapter.PlanQuery(context.Background(), "how many rows?", "schema: ...")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;", sql)
}

func TestSQLPlannerAdapter_PropagatesClientError(t *testing.T) {
	client := new(MockClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	adapter := NewSQLPlannerAdapter(client, "")
	_, err := adapter.PlanQuery(context.Background(), "q", "schema")
	assert.Error(t, err)
}

func TestCompressorAdapter_ClientErrorFailsOpenToOriginalPassage(t *testing.T) {
	client := new(MockClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	adapter := NewCompressorAdapter(client, "")
	out, err := adapter.Compress(context.Background(), "q", "original passage")
	assert.Error(t, err)
	assert.Equal(t, "original passage", out)
}
