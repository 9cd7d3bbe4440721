package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cogpy/cogsubstrate/internal/store"
)

func TestSenseMemoryAvailabilityCountsRecallHits(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	_, err := e.Remember(ctx, RememberInput{
		ID: "mem-1", Kind: store.KindSemantic, Content: "x", Embedding: unitVec(testDim, 0),
	})
	require.NoError(t, err)

	n, err := e.SenseMemoryAvailability(ctx, "x", unitVec(testDim, 0))
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 1)
}

func TestRequestBackgroundSearchPersistsProbe(t *testing.T) {
	ctx := context.Background()
	e, s, _ := newTestEngine(t)

	id, err := e.RequestBackgroundSearch(ctx, "what is the capital of france", 0)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	a, err := s.GetMemoryActivation(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "what is the capital of france", a.Query)
}

func TestProcessBackgroundSearchesResolvesAndDeletesProbes(t *testing.T) {
	ctx := context.Background()
	e, s, _ := newTestEngine(t)

	_, err := e.Remember(ctx, RememberInput{
		ID: "mem-1", Kind: store.KindSemantic, Content: "paris is the capital", Embedding: unitVec(testDim, 0),
	})
	require.NoError(t, err)

	probeID, err := e.RequestBackgroundSearch(ctx, "capital city", 0)
	require.NoError(t, err)

	results, err := e.ProcessBackgroundSearches(ctx, func(ctx context.Context, query string) (store.Embedding, error) {
		return unitVec(testDim, 0), nil
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, probeID, results[0].ProbeID)

	_, err = s.GetMemoryActivation(ctx, probeID)
	require.Error(t, err)
}

func TestProcessBackgroundSearchesSkipsWithoutEmbedFn(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	_, err := e.RequestBackgroundSearch(ctx, "query", 0)
	require.NoError(t, err)

	results, err := e.ProcessBackgroundSearches(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestDecayActivationBoostsIsNoopWhenNothingExpired(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	_, err := e.RequestBackgroundSearch(ctx, "query", 0)
	require.NoError(t, err)

	n, err := e.DecayActivationBoosts(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
}
