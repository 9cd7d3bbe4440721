package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/cogpy/cogsubstrate/internal/graphstore"
	"github.com/cogpy/cogsubstrate/internal/store"
)

// AssignMemoryToClusters computes cosine similarity between the memory's
// embedding and each cluster's centroid, creating MEMBER_OF edges to the
// top-k with membership_strength = sim.
func (e *Engine) AssignMemoryToClusters(ctx context.Context, memoryID string, k int) error {
	m, err := e.store.GetMemory(ctx, memoryID)
	if err != nil {
		return fmt.Errorf("AssignMemoryToClusters: %w", err)
	}
	clusters, err := e.store.ListClusters(ctx, "")
	if err != nil {
		return fmt.Errorf("AssignMemoryToClusters: %w", err)
	}

	type scored struct {
		cluster *store.Cluster
		sim     float64
	}
	var ranked []scored
	for _, c := range clusters {
		if len(c.Centroid) == 0 {
			continue
		}
		ranked = append(ranked, scored{cluster: c, sim: cosineSimilarity(m.Embedding, c.Centroid)})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].sim > ranked[j].sim })
	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}

	for _, r := range ranked {
		if err := e.graph.CreateEdge(ctx, graphstore.Edge{
			FromXID: memoryID, ToXID: r.cluster.ID, Kind: graphstore.EdgeMemberOf, Strength: r.sim,
		}); err != nil {
			e.log.Warnw("AssignMemoryToClusters: edge failed", "cluster_id", r.cluster.ID, "error", err)
		}
	}
	return nil
}

// RecalculateClusterCentroid sets a cluster's centroid to the mean of its
// members' embeddings; an empty cluster keeps its prior centroid.
func (e *Engine) RecalculateClusterCentroid(ctx context.Context, clusterID string) error {
	memberIDs, err := e.graph.ClusterMembers(ctx, clusterID)
	if err != nil {
		return fmt.Errorf("RecalculateClusterCentroid: %w", err)
	}
	if len(memberIDs) == 0 {
		return nil
	}

	var dim int
	sum := map[int]float64{}
	n := 0
	for _, id := range memberIDs {
		m, err := e.store.GetMemory(ctx, id)
		if err != nil || len(m.Embedding) == 0 {
			continue
		}
		if dim == 0 {
			dim = len(m.Embedding)
		}
		for i, v := range m.Embedding {
			sum[i] += float64(v)
		}
		n++
	}
	if n == 0 || dim == 0 {
		return nil
	}

	centroid := make(store.Embedding, dim)
	for i := 0; i < dim; i++ {
		centroid[i] = float32(sum[i] / float64(n))
	}
	return e.store.UpdateClusterCentroid(ctx, clusterID, centroid)
}

// SearchClustersByQuery ranks clusters by cosine similarity of their
// centroid to the query embedding.
func (e *Engine) SearchClustersByQuery(ctx context.Context, query store.Embedding, limit int) ([]*store.Cluster, error) {
	clusters, err := e.store.ListClusters(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("SearchClustersByQuery: %w", err)
	}
	sort.Slice(clusters, func(i, j int) bool {
		si, sj := cosineSimilarity(clusters[i].Centroid, query), cosineSimilarity(clusters[j].Centroid, query)
		if si != sj {
			return si > sj
		}
		return clusters[i].ID < clusters[j].ID
	})
	if limit > 0 && len(clusters) > limit {
		clusters = clusters[:limit]
	}
	return clusters, nil
}

// GetClusterSampleMemories returns up to k member memories of a cluster, for
// the recall layer to surface as thematic context.
func (e *Engine) GetClusterSampleMemories(ctx context.Context, clusterID string, k int) ([]*store.Memory, error) {
	memberIDs, err := e.graph.ClusterMembers(ctx, clusterID)
	if err != nil {
		return nil, fmt.Errorf("GetClusterSampleMemories: %w", err)
	}
	if k > 0 && len(memberIDs) > k {
		memberIDs = memberIDs[:k]
	}
	return e.fetchMemories(ctx, memberIDs)
}
