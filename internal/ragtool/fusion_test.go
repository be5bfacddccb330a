package ragtool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuseRankings_SumsReciprocalRankAcrossLists(t *testing.T) {
	lists := []rankedList{
		{chunkIDs: []string{"a", "b", "c"}},
		{chunkIDs: []string{"b", "a"}},
	}
	fused := fuseRankings(lists, 60, 1.0, nil)
	require.Len(t, fused, 3)

	byID := map[string]fusionCandidate{}
	for _, c := range fused {
		byID[c.chunkID] = c
	}
	assert.InDelta(t, 1.0/61+1.0/62, byID["a"].rrfScore, 1e-9)
	assert.InDelta(t, 1.0/62+1.0/61, byID["b"].rrfScore, 1e-9)
	assert.InDelta(t, 1.0/63, byID["c"].rrfScore, 1e-9)
	assert.Contains(t, []string{"a", "b"}, fused[0].chunkID)
}

func TestFuseRankings_GraphBoostAppliesOnlyToGraphList(t *testing.T) {
	lists := []rankedList{
		{chunkIDs: []string{"x"}},
		{chunkIDs: []string{"x"}, isGraph: true},
	}
	fused := fuseRankings(lists, 60, 2.0, nil)
	require.Len(t, fused, 1)
	assert.InDelta(t, 1.0/61+2.0*(1.0/61), fused[0].rrfScore, 1e-9)
}

func TestFuseRankings_TieBreaksOnRecencyWhenScoreAndListCountMatch(t *testing.T) {
	lists := []rankedList{
		{chunkIDs: []string{"older"}},
		{chunkIDs: []string{"newer"}},
	}
	fiscalYear := map[string]int{"older": 2019, "newer": 2023}
	fused := fuseRankings(lists, 60, 1.0, fiscalYear)
	require.Len(t, fused, 2)
	assert.Equal(t, "newer", fused[0].chunkID, "more recent fiscal year should win the tie")
}

func TestFuseRankings_MoreContributingListsRanksHigher(t *testing.T) {
	lists := []rankedList{
		{chunkIDs: []string{"solo"}},
		{chunkIDs: []string{"double"}},
		{chunkIDs: []string{"double"}},
	}
	fused := fuseRankings(lists, 60, 1.0, nil)
	position := map[string]int{}
	for i, c := range fused {
		position[c.chunkID] = i
	}
	assert.LessOrEqual(t, position["double"], position["solo"])
}

func TestFuseRankings_EmptyListsYieldNoCandidates(t *testing.T) {
	fused := fuseRankings(nil, 60, 1.0, nil)
	assert.Empty(t, fused)
}
