// Package memory is the Cognitive Memory Engine: persistence, semantic
// recall scored by similarity/trust/recency, graph-backed relationship
// queries, clustering, trust/provenance accounting and the belief
// transformation protocol.
package memory

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cogpy/cogsubstrate/internal/embedding"
	"github.com/cogpy/cogsubstrate/internal/graphstore"
	"github.com/cogpy/cogsubstrate/internal/store"
	"github.com/cogpy/cogsubstrate/internal/substrateerr"
)

// Engine wires the relational store, the property graph and the embedding
// provider behind the operations the heartbeat executor and the
// maintenance engine consume.
type Engine struct {
	store *store.Store
	graph graphstore.Graph
	embed embedding.Provider
	log   *zap.SugaredLogger

	weights ScoreWeights
}

// ScoreWeights are the recall scoring coefficients α·similarity +
// β·importance_decay + γ·trust + δ·recency. New starts from
// DefaultScoreWeights; SetScoreWeights replaces them.
type ScoreWeights struct {
	Alpha float64 // similarity
	Beta  float64 // importance decay
	Gamma float64 // trust level
	Delta float64 // recency boost
}

// DefaultScoreWeights matches the teacher's convention of giving similarity
// the dominant share while still rewarding trusted, recently touched
// memories.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Alpha: 0.55, Beta: 0.2, Gamma: 0.15, Delta: 0.1}
}

// New constructs the memory engine.
func New(s *store.Store, g graphstore.Graph, e embedding.Provider, log *zap.SugaredLogger) *Engine {
	return &Engine{store: s, graph: g, embed: e, log: log, weights: DefaultScoreWeights()}
}

// SetScoreWeights overrides the default recall weights, e.g. from the
// config table's agent.recall_weights key.
func (e *Engine) SetScoreWeights(w ScoreWeights) { e.weights = w }

// RememberInput is the validated input to Remember.
type RememberInput struct {
	ID         string
	Kind       store.Kind
	Content    string
	Embedding  store.Embedding // optional; obtained from the provider if nil
	Importance float64
	DecayRate  float64
	Source     store.SourceAttribution
	Metadata   map[string]any
	Concepts   []ConceptRef
}

// ConceptRef names a concept to link via INSTANCE_OF with a strength.
type ConceptRef struct {
	Name     string
	Strength float64
}

// Remember implements remember(): validate, embed if needed, insert the
// row, stamp emotional context, sync the graph node, link concepts, and for
// worldview kind normalize transformation_state.
func (e *Engine) Remember(ctx context.Context, in RememberInput) (string, error) {
	if in.ID == "" {
		return "", substrateerr.Corruption("Remember", fmt.Errorf("id is required"))
	}
	vec := in.Embedding
	if vec == nil {
		var err error
		vec, err = e.embed.GetEmbedding(ctx, in.Content)
		if err != nil {
			// Embedding failures during insert are bounded-retried by the
			// provider itself; on final failure we accept a null-embedding
			// sentinel only because the caller already gave us no vector
			// to lose, and reject otherwise would mean rejecting text the
			// caller had no way to embed themselves.
			e.log.Warnw("remember: embedding failed, inserting with null embedding sentinel", "error", err)
			vec = nil
		}
	}

	now := time.Now().UTC()
	metadata := in.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	if es, err := e.store.GetEmotionalState(ctx); err == nil {
		metadata["emotional_context"] = map[string]any{
			"valence": es.Valence, "arousal": es.Arousal,
			"dominance": es.Dominance, "intensity": es.Intensity,
		}
	}

	if in.Kind == store.KindWorldview {
		normalizeTransformationState(metadata)
	}

	m := &store.Memory{
		ID: in.ID, Kind: in.Kind, Content: in.Content, Embedding: vec,
		Importance: in.Importance, DecayRate: in.DecayRate,
		CreatedAt: now, UpdatedAt: now, LastAccessed: now,
		Status: store.StatusActive, TrustLevel: in.Source.Trust,
		SourceAttribution: in.Source, Metadata: metadata,
	}
	if err := e.store.InsertMemory(ctx, m); err != nil {
		return "", fmt.Errorf("Remember: %w", err)
	}

	if _, err := e.graph.UpsertNode(ctx, graphstore.NodeMemory, m.ID, map[string]any{"kind": string(m.Kind)}); err != nil {
		// If the graph write fails after the row insert, the row is kept
		// without a graph node and concept links are skipped; nothing in
		// this package creates the node later.
		e.log.Warnw("remember: graph node sync failed, row kept without graph node", "memory_id", m.ID, "error", err)
		return m.ID, nil
	}

	for _, c := range in.Concepts {
		conceptXID := "concept:" + c.Name
		if _, err := e.graph.UpsertNode(ctx, graphstore.NodeConcept, conceptXID, map[string]any{"name": c.Name}); err != nil {
			e.log.Warnw("remember: concept node sync failed", "concept", c.Name, "error", err)
			continue
		}
		if err := e.graph.CreateEdge(ctx, graphstore.Edge{
			FromXID: m.ID, ToXID: conceptXID, Kind: graphstore.EdgeInstanceOf, Strength: c.Strength,
		}); err != nil {
			e.log.Warnw("remember: concept edge failed", "concept", c.Name, "error", err)
		}
	}

	return m.ID, nil
}

// normalizeTransformationState ensures a worldview memory's
// transformation_state sub-document has the default shape.
func normalizeTransformationState(metadata map[string]any) {
	if _, ok := metadata["transformation_state"]; ok {
		return
	}
	metadata["transformation_state"] = map[string]any{
		"active_exploration":        false,
		"exploration_goal_id":       nil,
		"evidence_memories":         []string{},
		"reflection_count":          0,
		"first_questioned_heartbeat": nil,
		"contemplation_actions":     []string{},
	}
}

// Touch records access and nudges importance.
func (e *Engine) Touch(ctx context.Context, id string) error {
	return e.store.TouchMemory(ctx, id)
}
