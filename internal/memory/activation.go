package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cogpy/cogsubstrate/internal/store"
)

// activationTTL bounds how long a feeling-of-knowing probe stays live
// awaiting a background search before it is considered stale.
const activationTTL = 2 * time.Hour

// SenseMemoryAvailability is the feeling-of-knowing probe: it counts the
// active memories whose recall score against queryEmbedding reaches 0.35,
// by running a full recall pass over them. A low estimate against a query the caller
// considers important is the trigger for request_background_search.
func (e *Engine) SenseMemoryAvailability(ctx context.Context, query string, queryEmbedding store.Embedding) (estimatedMatches int, err error) {
	results, err := e.Recall(ctx, RecallQuery{
		QueryEmbedding:   queryEmbedding,
		Limit:            0, // unbounded: we only need the count
		IncludePartial:   false,
		PartialThreshold: 0.35,
	})
	if err != nil {
		return 0, fmt.Errorf("SenseMemoryAvailability: %w", err)
	}
	return len(results), nil
}

// RequestBackgroundSearch records an activation probe for a query the agent
// judged under-served, to be picked up later by ProcessBackgroundSearches.
func (e *Engine) RequestBackgroundSearch(ctx context.Context, query string, estimatedMatches int) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	a := &store.MemoryActivation{
		ID:               id,
		Query:            query,
		EstimatedMatches: estimatedMatches,
		CreatedAt:        now,
		ExpiresAt:        now.Add(activationTTL),
	}
	if err := e.store.InsertMemoryActivation(ctx, a); err != nil {
		return "", fmt.Errorf("RequestBackgroundSearch: %w", err)
	}
	return id, nil
}

// BackgroundSearchResult is one resolved activation probe: the query it
// answers and what recall actually turned up once re-run.
type BackgroundSearchResult struct {
	ProbeID string
	Query   string
	Results []RecallResult
}

// ProcessBackgroundSearches re-runs recall for every live activation probe
// and deletes each as it resolves, since a probe is single-use once acted
// on. Callers needing a fresh embedding per query should pass embedFn; when
// nil, probes are skipped (embedding regeneration happens out of band).
func (e *Engine) ProcessBackgroundSearches(ctx context.Context, embedFn func(ctx context.Context, query string) (store.Embedding, error)) ([]BackgroundSearchResult, error) {
	probes, err := e.store.ListLiveMemoryActivations(ctx, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("ProcessBackgroundSearches: %w", err)
	}

	var out []BackgroundSearchResult
	for _, p := range probes {
		if embedFn == nil {
			continue
		}
		emb, err := embedFn(ctx, p.Query)
		if err != nil {
			e.log.Warnw("ProcessBackgroundSearches: embed failed", "probe_id", p.ID, "error", err)
			continue
		}
		results, err := e.Recall(ctx, RecallQuery{QueryEmbedding: emb, Limit: 20})
		if err != nil {
			e.log.Warnw("ProcessBackgroundSearches: recall failed", "probe_id", p.ID, "error", err)
			continue
		}
		out = append(out, BackgroundSearchResult{ProbeID: p.ID, Query: p.Query, Results: results})
		if err := e.store.DeleteMemoryActivation(ctx, p.ID); err != nil {
			e.log.Warnw("ProcessBackgroundSearches: delete probe failed", "probe_id", p.ID, "error", err)
		}
	}
	return out, nil
}

// DecayActivationBoosts purges activation probes past their TTL; part of
// the maintenance pass's cleanup step, kept here alongside the rest of the
// activation lifecycle rather than duplicated in the maintenance package.
func (e *Engine) DecayActivationBoosts(ctx context.Context) (int64, error) {
	n, err := e.store.PruneExpiredMemoryActivations(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("DecayActivationBoosts: %w", err)
	}
	return n, nil
}
