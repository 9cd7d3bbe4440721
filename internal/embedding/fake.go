package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/cogpy/cogsubstrate/internal/store"
)

// FakeProvider is a deterministic in-process Provider for tests and for the
// `--once` debug mode running with no embedding service configured: it
// derives a stable unit vector from the text's hash rather than calling out
// over the network.
type FakeProvider struct {
	Dim     int
	Healthy bool
}

func NewFakeProvider(dim int) *FakeProvider {
	return &FakeProvider{Dim: dim, Healthy: true}
}

func (f *FakeProvider) GetEmbedding(ctx context.Context, text string) (store.Embedding, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make(store.Embedding, f.Dim)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float32(int64(seed%2001)-1000) / 1000
		vec[i] = v
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}

func (f *FakeProvider) CheckHealth(ctx context.Context) bool { return f.Healthy }

var _ Provider = (*FakeProvider)(nil)
