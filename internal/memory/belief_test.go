package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cogpy/cogsubstrate/internal/store"
)

func TestBeginBeliefExplorationRequiresDeliberateTransformation(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	_, err := e.Remember(ctx, RememberInput{
		ID: "wv-1", Kind: store.KindWorldview, Content: "x",
		Metadata: map[string]any{"change_requires": "evidence_weight"},
	})
	require.NoError(t, err)

	err = e.BeginBeliefExploration(ctx, "wv-1", "goal-1", 10)
	require.Error(t, err)
}

func TestBeginBeliefExplorationInitializesState(t *testing.T) {
	ctx := context.Background()
	e, s, _ := newTestEngine(t)

	_, err := e.Remember(ctx, RememberInput{
		ID: "wv-2", Kind: store.KindWorldview, Content: "x",
		Metadata: map[string]any{"change_requires": "deliberate_transformation"},
	})
	require.NoError(t, err)

	require.NoError(t, e.BeginBeliefExploration(ctx, "wv-2", "goal-1", 10))

	m, err := s.GetMemory(ctx, "wv-2")
	require.NoError(t, err)
	ts := getTransformationState(m)
	require.True(t, ts.ActiveExploration)
	require.Equal(t, "goal-1", ts.ExplorationGoalID)
	require.NotNil(t, ts.FirstQuestionedHeartbeat)
	require.Equal(t, int64(10), *ts.FirstQuestionedHeartbeat)
}

func TestRecordTransformationEffortRequiresActiveExploration(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	_, err := e.Remember(ctx, RememberInput{ID: "wv-3", Kind: store.KindWorldview, Content: "x"})
	require.NoError(t, err)

	err = e.RecordTransformationEffort(ctx, "wv-3", EffortReflect, "")
	require.Error(t, err)
}

func TestRecordTransformationEffortAccumulates(t *testing.T) {
	ctx := context.Background()
	e, s, _ := newTestEngine(t)

	_, err := e.Remember(ctx, RememberInput{
		ID: "wv-4", Kind: store.KindWorldview, Content: "x",
		Metadata: map[string]any{"change_requires": "deliberate_transformation"},
	})
	require.NoError(t, err)
	require.NoError(t, e.BeginBeliefExploration(ctx, "wv-4", "goal-1", 0))

	require.NoError(t, e.RecordTransformationEffort(ctx, "wv-4", EffortReflect, ""))
	require.NoError(t, e.RecordTransformationEffort(ctx, "wv-4", EffortSeekEvidence, "evidence-1"))

	m, err := s.GetMemory(ctx, "wv-4")
	require.NoError(t, err)
	ts := getTransformationState(m)
	require.Equal(t, 1, ts.ReflectionCount)
	require.Contains(t, ts.EvidenceMemories, "evidence-1")
	require.Len(t, ts.ContemplationActions, 2)
}

func TestCheckTransformationReadinessHonorsThresholds(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	_, err := e.Remember(ctx, RememberInput{
		ID: "wv-5", Kind: store.KindWorldview, Content: "x",
		Metadata: map[string]any{"change_requires": "deliberate_transformation"},
	})
	require.NoError(t, err)
	require.NoError(t, e.BeginBeliefExploration(ctx, "wv-5", "goal-1", 0))
	for i := 0; i < 3; i++ {
		require.NoError(t, e.RecordTransformationEffort(ctx, "wv-5", EffortReflect, ""))
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, e.RecordTransformationEffort(ctx, "wv-5", EffortSeekEvidence, "ev-"+string(rune('a'+i))))
	}

	ready, err := e.CheckTransformationReadiness(ctx, 10, func(category, subcategory string) ReadinessThresholds {
		return DefaultReadinessThresholds()
	})
	require.NoError(t, err)
	require.Len(t, ready, 1)
	require.Equal(t, "wv-5", ready[0].MemoryID)
}

func TestAttemptWorldviewTransformationRejectsWhenNotReady(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	_, err := e.Remember(ctx, RememberInput{ID: "wv-6", Kind: store.KindWorldview, Content: "old content"})
	require.NoError(t, err)

	err = e.AttemptWorldviewTransformation(ctx, "wv-6", "new content", "evidence_weight", 0.2, false)
	require.Error(t, err)
}

func TestAttemptWorldviewTransformationUpdatesContentAndHistory(t *testing.T) {
	ctx := context.Background()
	e, s, _ := newTestEngine(t)

	_, err := e.Remember(ctx, RememberInput{ID: "wv-7", Kind: store.KindWorldview, Content: "old content"})
	require.NoError(t, err)

	require.NoError(t, e.AttemptWorldviewTransformation(ctx, "wv-7", "new content", "evidence_weight", 0.2, true))

	m, err := s.GetMemory(ctx, "wv-7")
	require.NoError(t, err)
	require.Equal(t, "new content", m.Content)
	history, ok := m.Metadata["change_history"].([]any)
	require.True(t, ok)
	require.Len(t, history, 1)
}
