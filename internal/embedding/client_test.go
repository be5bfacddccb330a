package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_EmptyKeyUsesMock(t *testing.T) {
	c := NewClient("", "", "amazon.titan-embed-text-v2:0", 8)
	_, ok := c.(*mockClient)
	assert.True(t, ok)
}

func TestMockClient_EmbedOne_Deterministic(t *testing.T) {
	c := NewClient("", "", "model", 16)
	v1, err := c.EmbedOne(t.Context(), "Apple reported record revenue")
	require.NoError(t, err)
	v2, err := c.EmbedOne(t.Context(), "Apple reported record revenue")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 16)
}

func TestMockClient_EmbedOne_DifferentTextDifferentVector(t *testing.T) {
	c := NewClient("", "", "model", 16)
	v1, err := c.EmbedOne(t.Context(), "Apple")
	require.NoError(t, err)
	v2, err := c.EmbedOne(t.Context(), "Microsoft")
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)
}

func TestMockClient_EmbedBatch_MatchesEmbedOne(t *testing.T) {
	c := NewClient("", "", "model", 8)
	texts := []string{"alpha", "beta", "gamma"}
	batch, err := c.EmbedBatch(t.Context(), texts)
	require.NoError(t, err)
	require.Len(t, batch, len(texts))
	for i, text := range texts {
		one, err := c.EmbedOne(t.Context(), text)
		require.NoError(t, err)
		assert.Equal(t, one, batch[i])
	}
}

func TestMockEmbed_IsUnitNormalized(t *testing.T) {
	vec := mockEmbed("a sample document chunk", 32)
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sumSq, 1e-4)
}
