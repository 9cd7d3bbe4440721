package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cogpy/cogsubstrate/internal/graphstore"
	"github.com/cogpy/cogsubstrate/internal/store"
)

// SourceReference is one entry of semantic metadata.source_references[].
type SourceReference struct {
	Ref        string    `json:"ref"`
	Trust      float64   `json:"trust"`
	ObservedAt time.Time `json:"observed_at"`
}

// reinforcementPenalty controls how quickly additional corroborating
// sources diminish in marginal contribution: the k-th deduplicated source
// contributes trust / (1 + penalty·k).
const reinforcementPenalty = 0.5

// ComputeSemanticTrust combines a confidence prior, a monotonic
// reinforcement score over deduplicated source references (latest
// observed_at wins per ref), and worldview alignment in [-1,1], clamped to
// [0,1].
func ComputeSemanticTrust(confidence float64, sources []SourceReference, worldviewAlignment float64) float64 {
	dedup := map[string]SourceReference{}
	for _, s := range sources {
		existing, ok := dedup[s.Ref]
		if !ok || s.ObservedAt.After(existing.ObservedAt) {
			dedup[s.Ref] = s
		}
	}
	var deduped []SourceReference
	for _, s := range dedup {
		deduped = append(deduped, s)
	}
	sort.Slice(deduped, func(i, j int) bool { return deduped[i].Trust > deduped[j].Trust })

	reinforcement := 0.0
	for k, s := range deduped {
		reinforcement += s.Trust / (1 + reinforcementPenalty*float64(k+1))
	}

	trust := confidence*0.4 + reinforcement*0.4 + worldviewAlignment*0.2
	if trust < 0 {
		trust = 0
	}
	if trust > 1 {
		trust = 1
	}
	return trust
}

// worldviewAlignment derives a [-1,1] alignment score as the mean of +1 per
// inbound SUPPORTS edge and -1 per inbound CONTRADICTS edge into memoryID
// itself; 0 when there are none or the lookup fails.
func (e *Engine) worldviewAlignment(ctx context.Context, memoryID string) float64 {
	infl, err := e.graph.InboundInfluences(ctx, memoryID)
	if err != nil || len(infl) == 0 {
		return 0
	}
	var sum float64
	for _, edge := range infl {
		switch edge.Kind {
		case graphstore.EdgeSupports:
			sum += 1
		case graphstore.EdgeContradicts:
			sum -= 1
		}
	}
	return sum / float64(len(infl))
}

// SyncMemoryTrust recomputes and writes trust_level and source_attribution
// (choosing the highest-trust source) for a semantic memory. Idempotent:
// calling it twice with unchanged inputs writes the same values.
func (e *Engine) SyncMemoryTrust(ctx context.Context, id string) error {
	m, err := e.store.GetMemory(ctx, id)
	if err != nil {
		return fmt.Errorf("SyncMemoryTrust: %w", err)
	}
	if m.Kind != store.KindSemantic {
		return nil
	}

	confidence, _ := m.Metadata["confidence"].(float64)
	sources := extractSourceReferences(m.Metadata)
	alignment := e.worldviewAlignment(ctx, id)

	trust := ComputeSemanticTrust(confidence, sources, alignment)

	best := m.SourceAttribution
	bestTrust := -1.0
	for _, s := range sources {
		if s.Trust > bestTrust {
			bestTrust = s.Trust
			best = store.SourceAttribution{Kind: "semantic_reference", Ref: s.Ref, Trust: s.Trust, ObservedAt: s.ObservedAt}
		}
	}

	return e.store.UpdateMemoryTrust(ctx, id, trust, best)
}

func extractSourceReferences(metadata map[string]any) []SourceReference {
	raw, ok := metadata["source_references"].([]any)
	if !ok {
		return nil
	}
	var out []SourceReference
	for _, r := range raw {
		rm, ok := r.(map[string]any)
		if !ok {
			continue
		}
		ref, _ := rm["ref"].(string)
		trust, _ := rm["trust"].(float64)
		var observed time.Time
		if s, ok := rm["observed_at"].(string); ok {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				observed = t
			}
		}
		out = append(out, SourceReference{Ref: ref, Trust: trust, ObservedAt: observed})
	}
	return out
}

// UpdateWorldviewConfidenceFromInfluences walks inbound SUPPORTS/
// CONTRADICTS edges and updates metadata.confidence toward a weighted
// average, monotonic in evidence strength.
func (e *Engine) UpdateWorldviewConfidenceFromInfluences(ctx context.Context, worldviewID string) error {
	m, err := e.store.GetMemory(ctx, worldviewID)
	if err != nil {
		return fmt.Errorf("UpdateWorldviewConfidenceFromInfluences: %w", err)
	}
	infl, err := e.graph.InboundInfluences(ctx, worldviewID)
	if err != nil {
		return fmt.Errorf("UpdateWorldviewConfidenceFromInfluences: %w", err)
	}
	if len(infl) == 0 {
		return nil
	}

	var weighted, totalWeight float64
	for _, edge := range infl {
		weight := 1.0
		if edge.Strength > 0 {
			weight = edge.Strength
		}
		switch edge.Kind {
		case graphstore.EdgeSupports:
			weighted += weight
		case graphstore.EdgeContradicts:
			weighted -= weight
		}
		totalWeight += weight
	}
	newSignal := 0.0
	if totalWeight > 0 {
		newSignal = weighted / totalWeight
	}

	current, _ := m.Metadata["confidence"].(float64)
	// Move a third of the way toward the new signal each pass, so a single
	// noisy edge can't swing confidence, while repeated agreement does.
	updated := current + (newSignal-current)/3
	if updated < 0 {
		updated = 0
	}
	if updated > 1 {
		updated = 1
	}

	metadata := m.Metadata
	metadata["confidence"] = updated
	return e.store.UpdateMemoryMetadata(ctx, worldviewID, metadata)
}
