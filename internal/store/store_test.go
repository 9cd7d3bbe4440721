package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "substrate.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenSeedsSingletons(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	hs, err := s.GetHeartbeatState(ctx)
	require.NoError(t, err)
	require.Equal(t, InitNotStarted, hs.InitStage)
	require.False(t, hs.IsPaused)

	ms, err := s.GetMaintenanceState(ctx)
	require.NoError(t, err)
	require.False(t, ms.IsPaused)

	es, err := s.GetEmotionalState(ctx)
	require.NoError(t, err)
	require.Equal(t, "neutral", es.PrimaryEmotion)
}

func TestInsertMemoryRejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := &Memory{
		ID:           "mem-1",
		Kind:         KindEpisodic,
		Content:      "hello",
		Embedding:    Embedding{1, 2, 3}, // store dim is 4
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
		LastAccessed: time.Now().UTC(),
		Status:       StatusActive,
	}
	err := s.InsertMemory(ctx, m)
	require.Error(t, err)
}

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	m := &Memory{
		ID:           "mem-1",
		Kind:         KindSemantic,
		Content:      "the sky is blue",
		Embedding:    Embedding{0.1, 0.2, 0.3, 0.4},
		Importance:   0.5,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastAccessed: now,
		Status:       StatusActive,
		TrustLevel:   0.7,
		SourceAttribution: SourceAttribution{
			Kind: "conversation", Ref: "conv-1", Trust: 0.9, ObservedAt: now,
		},
		Metadata: map[string]any{"tag": "weather"},
	}
	require.NoError(t, s.InsertMemory(ctx, m))

	got, err := s.GetMemory(ctx, "mem-1")
	require.NoError(t, err)
	require.Equal(t, m.Content, got.Content)
	require.Equal(t, m.Embedding, got.Embedding)
	require.Equal(t, "weather", got.Metadata["tag"])
	require.Equal(t, "conv-1", got.SourceAttribution.Ref)

	require.NoError(t, s.TouchMemory(ctx, "mem-1"))
	got2, err := s.GetMemory(ctx, "mem-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, got2.AccessCount)
	require.Greater(t, got2.Importance, m.Importance)

	list, err := s.ListMemoriesByStatus(ctx, StatusActive, []Kind{KindSemantic})
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.UpdateMemoryStatus(ctx, "mem-1", StatusArchived))
	list, err = s.ListMemoriesByStatus(ctx, StatusActive, nil)
	require.NoError(t, err)
	require.Len(t, list, 0)
}

func TestGetMemoryNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.GetMemory(ctx, "nope")
	require.Error(t, err)
}

func TestIngestionReceiptsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rows := []IngestionReceipt{
		{SourceFile: "doc.txt", ChunkIndex: 0, ContentHash: "abc", MemoryID: "mem-1", InsertedAt: time.Now().UTC()},
	}

	var insertedFirst, insertedSecond int
	err3 := s.WithTx(ctx, func(tx *sql.Tx) error {
		n, e := RecordIngestionReceipts(ctx, tx, rows)
		insertedFirst = n
		return e
	})
	require.NoError(t, err3)
	require.Equal(t, 1, insertedFirst)

	err4 := s.WithTx(ctx, func(tx *sql.Tx) error {
		n, e := RecordIngestionReceipts(ctx, tx, rows)
		insertedSecond = n
		return e
	})
	require.NoError(t, err4)
	require.Equal(t, 0, insertedSecond)

	has, err := s.HasIngestionReceipt(ctx, "doc.txt", 0, "abc")
	require.NoError(t, err)
	require.True(t, has)
}

func TestConfigGetSetDefault(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	def := GetConfigDefault(ctx, s, "heartbeat.interval_seconds", 60)
	require.Equal(t, 60, def)

	require.NoError(t, s.SetConfig(ctx, "heartbeat.interval_seconds", 45))
	got := GetConfigDefault(ctx, s, "heartbeat.interval_seconds", 60)
	require.Equal(t, 45, got)

	all, err := s.AllConfig(ctx, "heartbeat.")
	require.NoError(t, err)
	require.Contains(t, all, "heartbeat.interval_seconds")
}

func TestExternalCallLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UTC()

	call := &ExternalCallRow{
		ID:       "call-1",
		CallType: CallTypeThink,
		Input:    ExternalCallInput{Subkind: SubkindHeartbeatDecision, Context: map[string]any{"k": "v"}},
		Status:   CallPending,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.InsertExternalCall(ctx, call))

	require.NoError(t, s.MarkExternalCallInFlight(ctx, "call-1"))
	require.Error(t, s.MarkExternalCallInFlight(ctx, "call-1")) // already in_flight

	require.NoError(t, s.ApplyExternalCallResult(ctx, "call-1", map[string]any{"decision": "rest"}))
	// idempotent re-apply
	require.NoError(t, s.ApplyExternalCallResult(ctx, "call-1", map[string]any{"decision": "ignored"}))

	got, err := s.GetExternalCall(ctx, "call-1")
	require.NoError(t, err)
	require.Equal(t, CallApplied, got.Status)
	require.Equal(t, "rest", got.Output["decision"])
}

func TestWorkingMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.InsertWorkingMemory(ctx, &WorkingMemory{
		ID: "wm-1", Content: "fresh", Expiry: now.Add(time.Hour), CreatedAt: now,
	}))
	require.NoError(t, s.InsertWorkingMemory(ctx, &WorkingMemory{
		ID: "wm-2", Content: "stale", Expiry: now.Add(-time.Hour), CreatedAt: now,
	}))

	active, err := s.ListActiveWorkingMemory(ctx, now)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "wm-1", active[0].ID)

	expired, err := s.ListExpiredWorkingMemory(ctx, now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.Equal(t, "wm-2", expired[0].ID)

	n, err := s.DeleteExpiredWorkingMemory(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestMemoryActivationTTL(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.InsertMemoryActivation(ctx, &MemoryActivation{
		ID: "act-1", Query: "weather", EstimatedMatches: 3, CreatedAt: now, ExpiresAt: now.Add(time.Minute),
	}))
	live, err := s.ListLiveMemoryActivations(ctx, now)
	require.NoError(t, err)
	require.Len(t, live, 1)

	n, err := s.PruneExpiredMemoryActivations(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}
