package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cogpy/cogsubstrate/internal/store"
)

func unitVec(dim, hot int) store.Embedding {
	v := make(store.Embedding, dim)
	v[hot] = 1
	return v
}

func TestRecallRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	_, err := e.Remember(ctx, RememberInput{
		ID: "a", Kind: store.KindSemantic, Content: "alpha",
		Embedding: unitVec(testDim, 0), Importance: 0.5,
	})
	require.NoError(t, err)
	_, err = e.Remember(ctx, RememberInput{
		ID: "b", Kind: store.KindSemantic, Content: "beta",
		Embedding: unitVec(testDim, 1), Importance: 0.5,
	})
	require.NoError(t, err)

	results, err := e.Recall(ctx, RecallQuery{QueryEmbedding: unitVec(testDim, 0), Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "a", results[0].Memory.ID)
}

func TestRecallRespectsMinImportance(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	_, err := e.Remember(ctx, RememberInput{
		ID: "low", Kind: store.KindSemantic, Content: "low importance",
		Embedding: unitVec(testDim, 0), Importance: 0.01,
	})
	require.NoError(t, err)

	results, err := e.Recall(ctx, RecallQuery{
		QueryEmbedding: unitVec(testDim, 0), Limit: 10, MinImportance: 0.5,
	})
	require.NoError(t, err)
	for _, r := range results {
		require.NotEqual(t, "low", r.Memory.ID)
	}
}

func TestRecallSuppressesSubThresholdUnlessIncludePartial(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	_, err := e.Remember(ctx, RememberInput{
		ID: "orthogonal", Kind: store.KindSemantic, Content: "unrelated",
		Embedding: unitVec(testDim, 7), Importance: 0.01, DecayRate: 5,
	})
	require.NoError(t, err)

	results, err := e.Recall(ctx, RecallQuery{QueryEmbedding: unitVec(testDim, 0), Limit: 10})
	require.NoError(t, err)
	for _, r := range results {
		require.NotEqual(t, "orthogonal", r.Memory.ID)
	}

	partial, err := e.Recall(ctx, RecallQuery{
		QueryEmbedding: unitVec(testDim, 0), Limit: 10, IncludePartial: true,
	})
	require.NoError(t, err)
	var found bool
	for _, r := range partial {
		if r.Memory.ID == "orthogonal" {
			found = true
		}
	}
	require.True(t, found)
}

func TestCosineSimilarityMismatchedLengthsReturnsZero(t *testing.T) {
	require.Equal(t, 0.0, cosineSimilarity(store.Embedding{1, 0}, store.Embedding{1, 0, 0}))
	require.Equal(t, 0.0, cosineSimilarity(nil, store.Embedding{1}))
}

func TestImportanceDecayClampsAtZeroAge(t *testing.T) {
	m := &store.Memory{Importance: 1, DecayRate: 0.5, CreatedAt: time.Now().UTC(), LastAccessed: time.Now().UTC()}
	d := importanceDecay(m, time.Now().UTC())
	require.InDelta(t, 1.0, d, 0.01)
}
