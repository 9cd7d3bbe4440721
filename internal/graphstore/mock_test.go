package graphstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMockGraphEdgeInvariants(t *testing.T) {
	ctx := context.Background()
	g := NewMockGraph()

	err := g.CreateEdge(ctx, Edge{FromXID: "a", ToXID: "b", Kind: EdgeCauses})
	require.Error(t, err, "edges must reference existing nodes")

	_, err = g.UpsertNode(ctx, NodeMemory, "a", nil)
	require.NoError(t, err)
	_, err = g.UpsertNode(ctx, NodeMemory, "b", nil)
	require.NoError(t, err)

	require.NoError(t, g.CreateEdge(ctx, Edge{FromXID: "a", ToXID: "b", Kind: EdgeCauses}))

	causes, err := g.FindCauses(ctx, "b", 1)
	require.NoError(t, err)
	require.Len(t, causes, 1)
	require.Equal(t, "a", causes[0].MemoryXID)
}

func TestMockGraphDetachRemovesAllEdges(t *testing.T) {
	ctx := context.Background()
	g := NewMockGraph()
	g.UpsertNode(ctx, NodeMemory, "a", nil)
	g.UpsertNode(ctx, NodeMemory, "b", nil)
	g.UpsertNode(ctx, NodeCluster, "c1", nil)

	require.NoError(t, g.CreateEdge(ctx, Edge{FromXID: "a", ToXID: "b", Kind: EdgeContradicts, Strength: 0.8}))
	require.NoError(t, g.CreateEdge(ctx, Edge{FromXID: "a", ToXID: "c1", Kind: EdgeMemberOf, Strength: 0.5}))

	require.NoError(t, g.DetachNode(ctx, "a"))

	contras, err := g.FindContradictions(ctx, "b")
	require.NoError(t, err)
	require.Len(t, contras, 0)

	members, err := g.ClusterMembers(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, members, 0)
}

func TestMockGraphSupportingEvidence(t *testing.T) {
	ctx := context.Background()
	g := NewMockGraph()
	g.UpsertNode(ctx, NodeMemory, "worldview-1", nil)
	g.UpsertNode(ctx, NodeMemory, "ev-1", nil)
	g.UpsertNode(ctx, NodeMemory, "ev-2", nil)

	require.NoError(t, g.CreateEdge(ctx, Edge{FromXID: "ev-1", ToXID: "worldview-1", Kind: EdgeSupports, Strength: 0.9}))
	require.NoError(t, g.CreateEdge(ctx, Edge{FromXID: "ev-2", ToXID: "worldview-1", Kind: EdgeContradicts, Strength: 0.4}))

	support, err := g.FindSupportingEvidence(ctx, "worldview-1")
	require.NoError(t, err)
	require.Equal(t, []string{"ev-1"}, support)

	infl, err := g.InboundInfluences(ctx, "worldview-1")
	require.NoError(t, err)
	require.Len(t, infl, 2)
}
