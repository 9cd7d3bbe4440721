package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/cogpy/cogsubstrate/internal/graphstore"
	"github.com/cogpy/cogsubstrate/internal/store"
)

// RecallRecent returns the most recently accessed active memories.
func (e *Engine) RecallRecent(ctx context.Context, limit int, kinds []store.Kind) ([]*store.Memory, error) {
	all, err := e.store.ListMemoriesByStatus(ctx, store.StatusActive, kinds)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].LastAccessed.Equal(all[j].LastAccessed) {
			return all[i].LastAccessed.After(all[j].LastAccessed)
		}
		return all[i].ID < all[j].ID
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// RecallEpisode returns the memories sequenced into an episode via
// SEQUENCED_IN, in the order the graph lists them; sequence_order is not
// read, so the result is not sorted by it.
func (e *Engine) RecallEpisode(ctx context.Context, episodeID string) ([]*store.Memory, error) {
	members, err := e.graph.InboundByKind(ctx, episodeID, graphstore.EdgeSequencedIn)
	if err != nil {
		return nil, fmt.Errorf("RecallEpisode: %w", err)
	}
	return e.fetchMemories(ctx, members)
}

// FindByConcept returns memories linked to a named concept via INSTANCE_OF.
func (e *Engine) FindByConcept(ctx context.Context, conceptName string) ([]*store.Memory, error) {
	conceptXID := "concept:" + conceptName
	members, err := e.graph.InboundByKind(ctx, conceptXID, graphstore.EdgeInstanceOf)
	if err != nil {
		return nil, fmt.Errorf("FindByConcept: %w", err)
	}
	return e.fetchMemories(ctx, members)
}

// FindCauses performs a bounded reverse traversal of CAUSES.
func (e *Engine) FindCauses(ctx context.Context, targetID string, depth int) ([]*store.Memory, error) {
	causals, err := e.graph.FindCauses(ctx, targetID, depth)
	if err != nil {
		return nil, fmt.Errorf("FindCauses: %w", err)
	}
	ids := make([]string, len(causals))
	for i, c := range causals {
		ids[i] = c.MemoryXID
	}
	return e.fetchMemories(ctx, ids)
}

// FindContradictionsResult pairs a contradicting memory with its edge
// confidence annotation.
type FindContradictionsResult struct {
	Memory     *store.Memory
	Confidence float64
}

// FindContradictions follows CONTRADICTS edges with confidence annotations.
func (e *Engine) FindContradictions(ctx context.Context, id string) ([]FindContradictionsResult, error) {
	contras, err := e.graph.FindContradictions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("FindContradictions: %w", err)
	}
	var out []FindContradictionsResult
	for _, c := range contras {
		m, err := e.store.GetMemory(ctx, c.MemoryXID)
		if err != nil {
			continue
		}
		out = append(out, FindContradictionsResult{Memory: m, Confidence: c.Confidence})
	}
	return out, nil
}

// FindSupportingEvidence follows inbound SUPPORTS edges into a worldview
// memory.
func (e *Engine) FindSupportingEvidence(ctx context.Context, worldviewID string) ([]*store.Memory, error) {
	ids, err := e.graph.FindSupportingEvidence(ctx, worldviewID)
	if err != nil {
		return nil, fmt.Errorf("FindSupportingEvidence: %w", err)
	}
	return e.fetchMemories(ctx, ids)
}

func (e *Engine) fetchMemories(ctx context.Context, ids []string) ([]*store.Memory, error) {
	var out []*store.Memory
	for _, id := range ids {
		m, err := e.store.GetMemory(ctx, id)
		if err != nil {
			continue // an id surfaced by the graph but missing from the table is an invariant-sweep concern, not a query-time error
		}
		out = append(out, m)
	}
	return out, nil
}
