package verifier

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-cli/internal/model"
)

type stubResolver struct {
	exists map[string]bool
	err    error
}

func (s *stubResolver) ChunkExists(_ context.Context, documentID string, page int) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.exists[documentID+":"+strconv.Itoa(page)], nil
}

func TestOutputGate_PIIDetectionAlwaysBlocksRegardlessOfPolicy(t *testing.T) {
	gate := NewOutputGate(nil, nil, PolicyPermissive)
	verdict, err := gate.Check(context.Background(), "Contact the filer at jane.doe@example.com for details.", nil, nil)
	require.NoError(t, err)
	assert.True(t, verdict.Blocked)
	assert.Contains(t, verdict.PIIMatches, "email")
}

func TestOutputGate_NoPIINoCitationsNoClassifierYieldsZeroRiskPass(t *testing.T) {
	gate := NewOutputGate(nil, nil, PolicyModerate)
	verdict, err := gate.Check(context.Background(), "Apple's fiscal 2023 revenue was $383 billion.", nil, nil)
	require.NoError(t, err)
	assert.False(t, verdict.Blocked)
	assert.Zero(t, verdict.HallucinationRisk)
}

func TestOutputGate_InvalidCitationCaveatsUnderModeratePolicy(t *testing.T) {
	resolver := &stubResolver{exists: map[string]bool{}}
	gate := NewOutputGate(nil, resolver, PolicyModerate)
	citations := []model.Citation{{DocumentID: "AAPL-2023", Page: 42}}
	verdict, err := gate.Check(context.Background(), "Revenue grew year over year.", nil, citations)
	require.NoError(t, err)
	assert.False(t, verdict.Blocked)
	assert.Len(t, verdict.InvalidCitations, 1)
	assert.NotEmpty(t, verdict.Caveat)
}

func TestOutputGate_InvalidCitationBlocksUnderStrictPolicy(t *testing.T) {
	resolver := &stubResolver{exists: map[string]bool{}}
	gate := NewOutputGate(nil, resolver, PolicyStrict)
	citations := []model.Citation{{DocumentID: "AAPL-2023", Page: 42}}
	verdict, err := gate.Check(context.Background(), "Revenue grew year over year.", nil, citations)
	require.NoError(t, err)
	assert.True(t, verdict.Blocked)
}

func TestOutputGate_ResolverErrorTreatsCitationAsUnresolved(t *testing.T) {
	resolver := &stubResolver{err: errors.New("index unreachable")}
	gate := NewOutputGate(nil, resolver, PolicyModerate)
	citations := []model.Citation{{DocumentID: "AAPL-2023", Page: 42}}
	verdict, err := gate.Check(context.Background(), "Some claim.", nil, citations)
	require.NoError(t, err)
	assert.Len(t, verdict.InvalidCitations, 1)
}

func TestOutputGate_HighHallucinationRiskBlocksUnderModeratePolicy(t *testing.T) {
	classifier := &stubClassifier{response: `{"risk":0.9,"reasoning":"mostly unsupported"}`}
	gate := NewOutputGate(classifier, nil, PolicyModerate)
	verdict, err := gate.Check(context.Background(), "A sweeping unsupported claim.", []string{"unrelated passage"}, nil)
	require.NoError(t, err)
	assert.True(t, verdict.Blocked)
	assert.InDelta(t, 0.9, verdict.HallucinationRisk, 1e-9)
}

func TestOutputGate_ModerateHallucinationRiskCaveatsWithoutBlocking(t *testing.T) {
	classifier := &stubClassifier{response: `{"risk":0.4,"reasoning":"partially supported"}`}
	gate := NewOutputGate(classifier, nil, PolicyModerate)
	verdict, err := gate.Check(context.Background(), "A partially supported claim.", []string{"supporting passage"}, nil)
	require.NoError(t, err)
	assert.False(t, verdict.Blocked)
	assert.NotEmpty(t, verdict.Caveat)
}

func TestOutputGate_ClassifierErrorFallsBackToZeroRisk(t *testing.T) {
	classifier := &stubClassifier{err: errors.New("down")}
	gate := NewOutputGate(classifier, nil, PolicyStrict)
	verdict, err := gate.Check(context.Background(), "claim", []string{"passage"}, nil)
	require.NoError(t, err)
	assert.Zero(t, verdict.HallucinationRisk)
	assert.False(t, verdict.Blocked)
}

func TestOutputGate_RiskClampedToZeroOneRange(t *testing.T) {
	classifier := &stubClassifier{response: `{"risk":1.5,"reasoning":"overshoot"}`}
	gate := NewOutputGate(classifier, nil, PolicyPermissive)
	verdict, err := gate.Check(context.Background(), "claim", []string{"passage"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, verdict.HallucinationRisk)
}
