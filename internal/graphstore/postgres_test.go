//go:build integration

package graphstore

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-cli/internal/model"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_MergeEntity(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO entities`).
		WithArgs(entityID(model.EntityOrganization, "AAPL"), string(model.EntityOrganization), "AAPL", []string{"Apple Inc."}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := s.MergeEntity(context.Background(), model.EntityOrganization, "AAPL", []string{"Apple Inc."})
	require.NoError(t, err)
	assert.Equal(t, entityID(model.EntityOrganization, "AAPL"), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MergeEntity_Idempotent(t *testing.T) {
	id1 := entityID(model.EntityOrganization, "AAPL")
	id2 := entityID(model.EntityOrganization, "AAPL")
	assert.Equal(t, id1, id2, "entityID must be deterministic for the same (type, canonical_name)")

	id3 := entityID(model.EntityOrganization, "MSFT")
	assert.NotEqual(t, id1, id3)
}

func TestPostgresStore_MergeRelation(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rel := model.Relation{
		SrcEntityID:   "doc-1",
		DstEntityID:   "org-aapl",
		Type:          model.RelationMentions,
		SourceChunkID: "chunk-1",
		Confidence:    0.9,
	}

	mock.ExpectExec(`INSERT INTO relations`).
		WithArgs(rel.SrcEntityID, rel.DstEntityID, string(rel.Type), rel.SourceChunkID, rel.Confidence).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.MergeRelation(context.Background(), rel)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindRelated(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"entity_id", "type", "canonical_name", "aliases", "distance", "supporting_chunks"}).
		AddRow("org-aapl", string(model.EntityOrganization), "AAPL", []string{"Apple Inc."}, 1, []string{"chunk-1"})

	mock.ExpectQuery(`WITH RECURSIVE traversal`).
		WithArgs([]string{"doc-1"}, 2).
		WillReturnRows(rows)

	related, err := s.FindRelated(context.Background(), []string{"doc-1"}, 5)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, "AAPL", related[0].Entity.CanonicalName)
	assert.Equal(t, 1, related[0].Distance)
	assert.NoError(t, mock.ExpectationsWereMet())
}
