package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/cogpy/cogsubstrate/internal/store"
	"github.com/cogpy/cogsubstrate/internal/substrateerr"
)

// TransformationState mirrors the worldview memory's transformation_state
// sub-document.
type TransformationState struct {
	ActiveExploration        bool      `json:"active_exploration"`
	ExplorationGoalID        string    `json:"exploration_goal_id,omitempty"`
	EvidenceMemories         []string  `json:"evidence_memories"`
	ReflectionCount          int       `json:"reflection_count"`
	FirstQuestionedHeartbeat *int64    `json:"first_questioned_heartbeat,omitempty"`
	ContemplationActions     []string  `json:"contemplation_actions"`
}

// TransformationEffort is the action kind of record_transformation_effort.
type TransformationEffort string

const (
	EffortReflect        TransformationEffort = "reflect"
	EffortDebateInternally TransformationEffort = "debate_internally"
	EffortSeekEvidence   TransformationEffort = "seek_evidence"
)

// ReadinessThresholds are read from transformation.<subcategory> config,
// falling back to category-level then defaults.
type ReadinessThresholds struct {
	MinReflections    int
	MinHeartbeats     int64
	EvidenceThreshold float64
}

func DefaultReadinessThresholds() ReadinessThresholds {
	return ReadinessThresholds{MinReflections: 3, MinHeartbeats: 5, EvidenceThreshold: 0.6}
}

func getTransformationState(m *store.Memory) TransformationState {
	var ts TransformationState
	raw, ok := m.Metadata["transformation_state"].(map[string]any)
	if !ok {
		return ts
	}
	if v, ok := raw["active_exploration"].(bool); ok {
		ts.ActiveExploration = v
	}
	if v, ok := raw["exploration_goal_id"].(string); ok {
		ts.ExplorationGoalID = v
	}
	if v, ok := raw["reflection_count"].(float64); ok {
		ts.ReflectionCount = int(v)
	}
	if v, ok := raw["first_questioned_heartbeat"].(float64); ok {
		hb := int64(v)
		ts.FirstQuestionedHeartbeat = &hb
	}
	if v, ok := raw["evidence_memories"].([]any); ok {
		for _, e := range v {
			if s, ok := e.(string); ok {
				ts.EvidenceMemories = append(ts.EvidenceMemories, s)
			}
		}
	}
	if v, ok := raw["contemplation_actions"].([]any); ok {
		for _, e := range v {
			if s, ok := e.(string); ok {
				ts.ContemplationActions = append(ts.ContemplationActions, s)
			}
		}
	}
	return ts
}

func putTransformationState(metadata map[string]any, ts TransformationState) {
	metadata["transformation_state"] = map[string]any{
		"active_exploration":         ts.ActiveExploration,
		"exploration_goal_id":        ts.ExplorationGoalID,
		"evidence_memories":          ts.EvidenceMemories,
		"reflection_count":           ts.ReflectionCount,
		"first_questioned_heartbeat": ts.FirstQuestionedHeartbeat,
		"contemplation_actions":      ts.ContemplationActions,
	}
}

// BeginBeliefExploration rejects if change_requires != deliberate_transformation,
// otherwise initializes transformation_state for a new exploration.
func (e *Engine) BeginBeliefExploration(ctx context.Context, beliefID, goalID string, heartbeatCount int64) error {
	m, err := e.store.GetMemory(ctx, beliefID)
	if err != nil {
		return fmt.Errorf("BeginBeliefExploration: %w", err)
	}
	changeRequires, _ := m.Metadata["change_requires"].(string)
	if changeRequires != "deliberate_transformation" {
		return substrateerr.StateViolation("BeginBeliefExploration",
			fmt.Errorf("belief %s does not require deliberate transformation", beliefID))
	}

	hb := heartbeatCount
	ts := TransformationState{
		ActiveExploration:  true,
		ExplorationGoalID:  goalID,
		FirstQuestionedHeartbeat: &hb,
	}
	putTransformationState(m.Metadata, ts)
	return e.store.UpdateMemoryMetadata(ctx, beliefID, m.Metadata)
}

// RecordTransformationEffort increments counters and unions evidence onto a
// belief's transformation_state.
func (e *Engine) RecordTransformationEffort(ctx context.Context, beliefID string, action TransformationEffort, evidenceMemoryID string) error {
	m, err := e.store.GetMemory(ctx, beliefID)
	if err != nil {
		return fmt.Errorf("RecordTransformationEffort: %w", err)
	}
	ts := getTransformationState(m)
	if !ts.ActiveExploration {
		return substrateerr.StateViolation("RecordTransformationEffort",
			fmt.Errorf("belief %s has no active exploration", beliefID))
	}

	ts.ContemplationActions = append(ts.ContemplationActions, string(action))
	if action == EffortReflect {
		ts.ReflectionCount++
	}
	if evidenceMemoryID != "" && !contains(ts.EvidenceMemories, evidenceMemoryID) {
		ts.EvidenceMemories = append(ts.EvidenceMemories, evidenceMemoryID)
	}

	putTransformationState(m.Metadata, ts)
	return e.store.UpdateMemoryMetadata(ctx, beliefID, m.Metadata)
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// ReadyBelief is one worldview memory whose readiness gates have passed.
type ReadyBelief struct {
	MemoryID string
	State    TransformationState
}

// CheckTransformationReadiness returns beliefs whose reflections,
// heartbeats-since-start, and evidence strength all clear their configured
// thresholds.
func (e *Engine) CheckTransformationReadiness(ctx context.Context, currentHeartbeat int64, thresholdsFor func(category, subcategory string) ReadinessThresholds) ([]ReadyBelief, error) {
	worldviews, err := e.store.ListMemoriesByStatus(ctx, store.StatusActive, []store.Kind{store.KindWorldview})
	if err != nil {
		return nil, fmt.Errorf("CheckTransformationReadiness: %w", err)
	}

	var out []ReadyBelief
	for _, m := range worldviews {
		ts := getTransformationState(m)
		if !ts.ActiveExploration || ts.FirstQuestionedHeartbeat == nil {
			continue
		}
		category, _ := m.Metadata["category"].(string)
		subcategory, _ := m.Metadata["subcategory"].(string)
		th := thresholdsFor(category, subcategory)

		heartbeatsSince := currentHeartbeat - *ts.FirstQuestionedHeartbeat
		evidenceStrength := evidenceStrengthOf(ts)

		if ts.ReflectionCount >= th.MinReflections &&
			heartbeatsSince >= th.MinHeartbeats &&
			evidenceStrength >= th.EvidenceThreshold {
			out = append(out, ReadyBelief{MemoryID: m.ID, State: ts})
		}
	}
	return out, nil
}

func evidenceStrengthOf(ts TransformationState) float64 {
	// Bounded saturation: each piece of evidence contributes a fixed
	// fraction, maxing at 1.0 once five or more pieces have accumulated.
	n := len(ts.EvidenceMemories)
	if n > 5 {
		n = 5
	}
	return float64(n) / 5.0
}

// AttemptWorldviewTransformation replaces content with newContent and
// appends a change_history entry that records maxChangePerAttempt as
// max_change; the new content is stored as given, with no clamping.
// Requires readiness.
func (e *Engine) AttemptWorldviewTransformation(ctx context.Context, beliefID, newContent, changeType string, maxChangePerAttempt float64, isReady bool) error {
	if !isReady {
		return substrateerr.StateViolation("AttemptWorldviewTransformation",
			fmt.Errorf("belief %s is not ready for transformation", beliefID))
	}
	m, err := e.store.GetMemory(ctx, beliefID)
	if err != nil {
		return fmt.Errorf("AttemptWorldviewTransformation: %w", err)
	}

	history, _ := m.Metadata["change_history"].([]any)
	history = append(history, map[string]any{
		"change_type": changeType,
		"previous":    m.Content,
		"at":          time.Now().UTC().Format(time.RFC3339),
		"max_change":  maxChangePerAttempt,
	})
	m.Metadata["change_history"] = history

	ts := getTransformationState(m)
	ts.ActiveExploration = false
	putTransformationState(m.Metadata, ts)

	if err := e.store.UpdateMemoryContent(ctx, beliefID, newContent, m.Metadata); err != nil {
		return fmt.Errorf("AttemptWorldviewTransformation: %w", err)
	}
	return nil
}
