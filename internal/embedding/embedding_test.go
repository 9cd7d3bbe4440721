package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger {
	l, _ := zap.NewDevelopment()
	return l.Sugar()
}

func TestFakeProviderDeterministic(t *testing.T) {
	p := NewFakeProvider(8)
	a, err := p.GetEmbedding(context.Background(), "hello world")
	require.NoError(t, err)
	b, err := p.GetEmbedding(context.Background(), "hello world")
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 8)

	c, err := p.GetEmbedding(context.Background(), "something else")
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}

func TestHTTPProviderCachesByContentHash(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, 3, RetryPolicy{TotalBudget: time.Second, Interval: 10 * time.Millisecond}, testLogger())

	v1, err := p.GetEmbedding(context.Background(), "repeat me")
	require.NoError(t, err)
	v2, err := p.GetEmbedding(context.Background(), "repeat me")
	require.NoError(t, err)
	require.Equal(t, v1, v2)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestHTTPProviderRetriesThenFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, 3, RetryPolicy{TotalBudget: 50 * time.Millisecond, Interval: 10 * time.Millisecond}, testLogger())
	_, err := p.GetEmbedding(context.Background(), "anything")
	require.Error(t, err)
}

func TestHTTPProviderCheckHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, 3, RetryPolicy{}, testLogger())
	require.True(t, p.CheckHealth(context.Background()))
}
