package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cogpy/cogsubstrate/internal/graphstore"
	"github.com/cogpy/cogsubstrate/internal/store"
)

func TestComputeSemanticTrustDedupsByRefKeepingLatest(t *testing.T) {
	old := SourceReference{Ref: "doc-1", Trust: 0.2, ObservedAt: time.Now().Add(-time.Hour)}
	latest := SourceReference{Ref: "doc-1", Trust: 0.9, ObservedAt: time.Now()}

	onlyOld := ComputeSemanticTrust(0.5, []SourceReference{old}, 0)
	withLatest := ComputeSemanticTrust(0.5, []SourceReference{old, latest}, 0)

	require.Greater(t, withLatest, onlyOld)
}

func TestComputeSemanticTrustClampsToUnitRange(t *testing.T) {
	sources := []SourceReference{
		{Ref: "a", Trust: 1, ObservedAt: time.Now()},
		{Ref: "b", Trust: 1, ObservedAt: time.Now()},
		{Ref: "c", Trust: 1, ObservedAt: time.Now()},
	}
	trust := ComputeSemanticTrust(1, sources, 1)
	require.LessOrEqual(t, trust, 1.0)
	require.GreaterOrEqual(t, trust, 0.0)
}

func TestSyncMemoryTrustSkipsNonSemanticKinds(t *testing.T) {
	ctx := context.Background()
	e, s, _ := newTestEngine(t)

	_, err := e.Remember(ctx, RememberInput{ID: "ep-1", Kind: store.KindEpisodic, Content: "x"})
	require.NoError(t, err)

	require.NoError(t, e.SyncMemoryTrust(ctx, "ep-1"))

	m, err := s.GetMemory(ctx, "ep-1")
	require.NoError(t, err)
	require.Equal(t, 0.0, m.TrustLevel)
}

func TestSyncMemoryTrustWritesComputedValue(t *testing.T) {
	ctx := context.Background()
	e, s, _ := newTestEngine(t)

	_, err := e.Remember(ctx, RememberInput{
		ID: "sem-1", Kind: store.KindSemantic, Content: "fact",
		Metadata: map[string]any{
			"confidence": 0.7,
			"source_references": []any{
				map[string]any{"ref": "src-1", "trust": 0.9, "observed_at": time.Now().UTC().Format(time.RFC3339)},
			},
		},
	})
	require.NoError(t, err)

	require.NoError(t, e.SyncMemoryTrust(ctx, "sem-1"))

	m, err := s.GetMemory(ctx, "sem-1")
	require.NoError(t, err)
	require.Greater(t, m.TrustLevel, 0.0)
	require.Equal(t, "src-1", m.SourceAttribution.Ref)
}

func TestWorldviewAlignmentAveragesSupportsAndContradicts(t *testing.T) {
	ctx := context.Background()
	e, _, g := newTestEngine(t)

	_, err := e.Remember(ctx, RememberInput{ID: "wv-1", Kind: store.KindWorldview, Content: "x"})
	require.NoError(t, err)
	_, err = e.Remember(ctx, RememberInput{ID: "s1", Kind: store.KindSemantic, Content: "supports x"})
	require.NoError(t, err)
	_, err = e.Remember(ctx, RememberInput{ID: "c1", Kind: store.KindSemantic, Content: "contradicts x"})
	require.NoError(t, err)

	require.NoError(t, g.CreateEdge(ctx, graphstore.Edge{FromXID: "s1", ToXID: "wv-1", Kind: graphstore.EdgeSupports}))
	require.NoError(t, g.CreateEdge(ctx, graphstore.Edge{FromXID: "c1", ToXID: "wv-1", Kind: graphstore.EdgeContradicts}))

	alignment := e.worldviewAlignment(ctx, "wv-1")
	require.Equal(t, 0.0, alignment)
}

func TestUpdateWorldviewConfidenceMovesTowardSignal(t *testing.T) {
	ctx := context.Background()
	e, s, g := newTestEngine(t)

	_, err := e.Remember(ctx, RememberInput{
		ID: "wv-2", Kind: store.KindWorldview, Content: "x",
		Metadata: map[string]any{"confidence": 0.5},
	})
	require.NoError(t, err)
	_, err = e.Remember(ctx, RememberInput{ID: "s2", Kind: store.KindSemantic, Content: "supports"})
	require.NoError(t, err)

	require.NoError(t, g.CreateEdge(ctx, graphstore.Edge{FromXID: "s2", ToXID: "wv-2", Kind: graphstore.EdgeSupports}))

	require.NoError(t, e.UpdateWorldviewConfidenceFromInfluences(ctx, "wv-2"))

	m, err := s.GetMemory(ctx, "wv-2")
	require.NoError(t, err)
	confidence, _ := m.Metadata["confidence"].(float64)
	require.Greater(t, confidence, 0.5)
}
