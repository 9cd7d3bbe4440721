package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cogpy/cogsubstrate/internal/embedding"
	"github.com/cogpy/cogsubstrate/internal/graphstore"
	"github.com/cogpy/cogsubstrate/internal/store"
)

const testDim = 8

func newTestEngine(t *testing.T) (*Engine, *store.Store, *graphstore.MockGraph) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), testDim)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	g := graphstore.NewMockGraph()
	fake := embedding.NewFakeProvider(testDim)
	log := zap.NewNop().Sugar()
	return New(s, g, fake, log), s, g
}

func TestRememberInsertsMemoryAndGraphNode(t *testing.T) {
	ctx := context.Background()
	e, s, g := newTestEngine(t)

	id, err := e.Remember(ctx, RememberInput{
		ID:         "mem-1",
		Kind:       store.KindSemantic,
		Content:    "the sky is blue",
		Importance: 0.5,
		DecayRate:  0.01,
	})
	require.NoError(t, err)
	require.Equal(t, "mem-1", id)

	m, err := s.GetMemory(ctx, "mem-1")
	require.NoError(t, err)
	require.Equal(t, "the sky is blue", m.Content)
	require.Len(t, m.Embedding, testDim)

	ok, err := g.NodeExists(ctx, graphstore.NodeMemory, "mem-1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRememberRejectsEmptyID(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	_, err := e.Remember(ctx, RememberInput{Kind: store.KindSemantic, Content: "x"})
	require.Error(t, err)
}

func TestRememberLinksConcepts(t *testing.T) {
	ctx := context.Background()
	e, _, g := newTestEngine(t)

	_, err := e.Remember(ctx, RememberInput{
		ID:       "mem-2",
		Kind:     store.KindSemantic,
		Content:  "cats are mammals",
		Concepts: []ConceptRef{{Name: "cat", Strength: 0.9}, {Name: "mammal", Strength: 0.8}},
	})
	require.NoError(t, err)

	ok, err := g.NodeExists(ctx, graphstore.NodeConcept, "concept:cat")
	require.NoError(t, err)
	require.True(t, ok)

	members, err := g.InboundByKind(ctx, "concept:cat", graphstore.EdgeInstanceOf)
	require.NoError(t, err)
	require.Contains(t, members, "mem-2")
}

func TestRememberStampsWorldviewTransformationState(t *testing.T) {
	ctx := context.Background()
	e, s, _ := newTestEngine(t)

	_, err := e.Remember(ctx, RememberInput{
		ID:      "belief-1",
		Kind:    store.KindWorldview,
		Content: "the world is mostly kind",
	})
	require.NoError(t, err)

	m, err := s.GetMemory(ctx, "belief-1")
	require.NoError(t, err)
	_, ok := m.Metadata["transformation_state"]
	require.True(t, ok)
}

func TestTouchIncrementsAccessCount(t *testing.T) {
	ctx := context.Background()
	e, s, _ := newTestEngine(t)

	_, err := e.Remember(ctx, RememberInput{ID: "mem-3", Kind: store.KindSemantic, Content: "x"})
	require.NoError(t, err)

	require.NoError(t, e.Touch(ctx, "mem-3"))
	m, err := s.GetMemory(ctx, "mem-3")
	require.NoError(t, err)
	require.Equal(t, int64(1), m.AccessCount)
}
