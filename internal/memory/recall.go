package memory

import (
	"context"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/cogpy/cogsubstrate/internal/store"
)

// RecallQuery parameterizes recall().
type RecallQuery struct {
	QueryEmbedding  store.Embedding
	Limit           int
	Kinds           []store.Kind
	MinImportance   float64
	IncludePartial  bool
	PartialThreshold float64
}

// RecallResult is one ranked memory.
type RecallResult struct {
	Memory  *store.Memory
	Score   float64
	Partial bool
}

// Recall implements recall(): scores every active candidate by
// α·cosine_similarity + β·importance_decay + γ·trust_level + δ·recency_boost,
// orders descending with ties broken by id for determinism, and either
// suppresses or flags sub-threshold entries depending on IncludePartial.
func (e *Engine) Recall(ctx context.Context, q RecallQuery) ([]RecallResult, error) {
	if q.PartialThreshold == 0 {
		q.PartialThreshold = 0.2
	}
	candidates, err := e.store.ListMemoriesByStatus(ctx, store.StatusActive, q.Kinds)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var results []RecallResult
	for _, m := range candidates {
		if m.Importance < q.MinImportance {
			continue
		}
		score := e.score(m, q.QueryEmbedding, now)
		partial := score < q.PartialThreshold
		if partial && !q.IncludePartial {
			continue
		}
		results = append(results, RecallResult{Memory: m, Score: score, Partial: partial})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Memory.ID < results[j].Memory.ID
	})

	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

func (e *Engine) score(m *store.Memory, query store.Embedding, now time.Time) float64 {
	sim := cosineSimilarity(m.Embedding, query)
	decay := importanceDecay(m, now)
	recency := recencyBoost(m, now)
	return e.weights.Alpha*sim + e.weights.Beta*decay + e.weights.Gamma*m.TrustLevel + e.weights.Delta*recency
}

// cosineSimilarity returns the cosine similarity of two equal-length
// vectors, 0 when either is empty (zero-vector embeddings yield NaN
// distance upstream; recall treats an empty query or candidate vector as
// contributing no similarity signal rather than propagating NaN).
func cosineSimilarity(a, b store.Embedding) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	af := make([]float64, len(a))
	bf := make([]float64, len(b))
	for i := range a {
		af[i] = float64(a[i])
		bf[i] = float64(b[i])
	}
	na := floats.Norm(af, 2)
	nb := floats.Norm(bf, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	dot := floats.Dot(af, bf)
	v := dot / (na * nb)
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// importanceDecay computes importance · exp(−decay_rate · min(age_days,
// 0.5·age_of_last_access_days)).
func importanceDecay(m *store.Memory, now time.Time) float64 {
	ageDays := now.Sub(m.CreatedAt).Hours() / 24
	lastAccessDays := now.Sub(m.LastAccessed).Hours() / 24
	bound := 0.5 * lastAccessDays
	effectiveAge := ageDays
	if bound < effectiveAge {
		effectiveAge = bound
	}
	if effectiveAge < 0 {
		effectiveAge = 0
	}
	return m.Importance * math.Exp(-m.DecayRate*effectiveAge)
}

// recencyBoost rewards memories touched recently, decaying over a week.
func recencyBoost(m *store.Memory, now time.Time) float64 {
	hoursSince := now.Sub(m.LastAccessed).Hours()
	if hoursSince < 0 {
		hoursSince = 0
	}
	return math.Exp(-hoursSince / (24 * 7))
}
