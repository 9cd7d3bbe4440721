// Package embedding provides the narrow interface onto the external
// embedding service, with a content-hash-keyed cache and a bounded retry
// policy, matching the "external collaborators accessed through narrow
// interfaces" discipline.
package embedding

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cogpy/cogsubstrate/internal/store"
	"github.com/cogpy/cogsubstrate/internal/substrateerr"
)

// Provider is the embedding provider interface: get_embedding and
// check_health. embed is never exposed as an external-call type — it is
// always performed inline by calling Provider directly.
type Provider interface {
	GetEmbedding(ctx context.Context, text string) (store.Embedding, error)
	CheckHealth(ctx context.Context) bool
}

// RetryPolicy is read from embedding.retry_seconds and
// embedding.retry_interval_seconds.
type RetryPolicy struct {
	TotalBudget time.Duration
	Interval    time.Duration
}

// HTTPProvider calls a remote embedding service over HTTP, grounded on the
// teacher's net/http-based SupabaseClient wiring style: a small client with
// an explicit base URL and bounded timeouts, no SDK dependency.
type HTTPProvider struct {
	httpClient *http.Client
	baseURL    string
	dim        int
	policy     RetryPolicy
	log        *zap.SugaredLogger

	mu    sync.Mutex
	cache map[string]store.Embedding
}

// NewHTTPProvider constructs a provider against an embedding service url.
func NewHTTPProvider(baseURL string, dim int, policy RetryPolicy, log *zap.SugaredLogger) *HTTPProvider {
	return &HTTPProvider{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		dim:        dim,
		policy:     policy,
		log:        log,
		cache:      make(map[string]store.Embedding),
	}
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// GetEmbedding returns a cached vector for text when available, otherwise
// calls the remote service with bounded retries. On retry exhaustion it
// returns a substrateerr.TransientExternal error; callers decide whether to
// reject the memory or accept it with a null-embedding sentinel.
func (p *HTTPProvider) GetEmbedding(ctx context.Context, text string) (store.Embedding, error) {
	hash := contentHash(text)

	p.mu.Lock()
	if v, ok := p.cache[hash]; ok {
		p.mu.Unlock()
		return v, nil
	}
	p.mu.Unlock()

	deadline := time.Now().Add(p.policy.TotalBudget)
	var lastErr error
	for attempt := 1; time.Now().Before(deadline); attempt++ {
		vec, err := p.callOnce(ctx, text)
		if err == nil {
			p.mu.Lock()
			p.cache[hash] = vec
			p.mu.Unlock()
			return vec, nil
		}
		lastErr = err
		p.log.Warnw("embedding call failed, retrying", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, substrateerr.TransientExternal("GetEmbedding", ctx.Err())
		case <-time.After(p.policy.Interval):
		}
	}
	return nil, substrateerr.TransientExternal("GetEmbedding", fmt.Errorf("retry budget exhausted: %w", lastErr))
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (p *HTTPProvider) callOnce(ctx context.Context, text string) (store.Embedding, error) {
	body, err := json.Marshal(embedRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("callOnce: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("callOnce: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("callOnce: embedding service status %d", resp.StatusCode)
	}
	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("callOnce: decode response: %w", err)
	}
	if len(decoded.Embedding) != p.dim {
		return nil, substrateerr.Corruption("callOnce",
			fmt.Errorf("embedding dim %d != %d", len(decoded.Embedding), p.dim))
	}
	return store.Embedding(decoded.Embedding), nil
}

// CheckHealth pings the embedding service's health endpoint.
func (p *HTTPProvider) CheckHealth(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

var _ Provider = (*HTTPProvider)(nil)
