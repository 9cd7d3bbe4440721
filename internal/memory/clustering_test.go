package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cogpy/cogsubstrate/internal/graphstore"
	"github.com/cogpy/cogsubstrate/internal/store"
)

func TestAssignMemoryToClustersPicksTopK(t *testing.T) {
	ctx := context.Background()
	e, s, g := newTestEngine(t)

	near := &store.Cluster{ID: "cluster-near", Type: store.ClusterTheme, Centroid: unitVec(testDim, 0)}
	far := &store.Cluster{ID: "cluster-far", Type: store.ClusterTheme, Centroid: unitVec(testDim, 5)}
	require.NoError(t, s.InsertCluster(ctx, near))
	require.NoError(t, s.InsertCluster(ctx, far))
	_, err := g.UpsertNode(ctx, graphstore.NodeCluster, "cluster-near", nil)
	require.NoError(t, err)
	_, err = g.UpsertNode(ctx, graphstore.NodeCluster, "cluster-far", nil)
	require.NoError(t, err)

	_, err = e.Remember(ctx, RememberInput{
		ID: "mem-1", Kind: store.KindSemantic, Content: "x", Embedding: unitVec(testDim, 0),
	})
	require.NoError(t, err)

	require.NoError(t, e.AssignMemoryToClusters(ctx, "mem-1", 1))

	members, err := g.ClusterMembers(ctx, "cluster-near")
	require.NoError(t, err)
	require.Contains(t, members, "mem-1")

	farMembers, err := g.ClusterMembers(ctx, "cluster-far")
	require.NoError(t, err)
	require.NotContains(t, farMembers, "mem-1")
}

func TestRecalculateClusterCentroidAveragesMembers(t *testing.T) {
	ctx := context.Background()
	e, s, g := newTestEngine(t)

	cl := &store.Cluster{ID: "cluster-1", Type: store.ClusterTheme, Centroid: make(store.Embedding, testDim)}
	require.NoError(t, s.InsertCluster(ctx, cl))
	_, err := g.UpsertNode(ctx, graphstore.NodeCluster, "cluster-1", nil)
	require.NoError(t, err)

	_, err = e.Remember(ctx, RememberInput{ID: "m1", Kind: store.KindSemantic, Content: "a", Embedding: unitVec(testDim, 0)})
	require.NoError(t, err)
	_, err = e.Remember(ctx, RememberInput{ID: "m2", Kind: store.KindSemantic, Content: "b", Embedding: unitVec(testDim, 0)})
	require.NoError(t, err)

	require.NoError(t, g.CreateEdge(ctx, graphstore.Edge{FromXID: "m1", ToXID: "cluster-1", Kind: graphstore.EdgeMemberOf, Strength: 1}))
	require.NoError(t, g.CreateEdge(ctx, graphstore.Edge{FromXID: "m2", ToXID: "cluster-1", Kind: graphstore.EdgeMemberOf, Strength: 1}))

	require.NoError(t, e.RecalculateClusterCentroid(ctx, "cluster-1"))

	updated, err := s.GetCluster(ctx, "cluster-1")
	require.NoError(t, err)
	require.InDelta(t, 1.0, float64(updated.Centroid[0]), 0.001)
}
