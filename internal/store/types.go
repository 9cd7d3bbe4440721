// Package store is the relational persisted store of the substrate: memories,
// the heartbeat and maintenance singletons, the external-call ledger, the
// outbox, the consent log, ingestion receipts and the unified configuration
// table. It is backed by SQLite (github.com/mattn/go-sqlite3) so the whole
// substrate runs as a single embedded-database process, matching the
// single-agent, process-wide-state non-goal of the spec.
package store

import "time"

// Kind enumerates the memory kinds of the data model.
type Kind string

const (
	KindEpisodic  Kind = "episodic"
	KindSemantic  Kind = "semantic"
	KindProcedural Kind = "procedural"
	KindStrategic Kind = "strategic"
	KindWorldview Kind = "worldview"
	KindGoal      Kind = "goal"
)

// Status is the memory lifecycle status.
type Status string

const (
	StatusActive      Status = "active"
	StatusArchived    Status = "archived"
	StatusInvalidated Status = "invalidated"
)

// Embedding is a dense vector of fixed dimension D, stored as a JSON array.
type Embedding []float32

// SourceAttribution is the canonical source descriptor of a memory.
type SourceAttribution struct {
	Kind        string     `json:"kind"`
	Ref         string     `json:"ref"`
	Label       string     `json:"label,omitempty"`
	Author      string     `json:"author,omitempty"`
	ObservedAt  time.Time  `json:"observed_at"`
	Trust       float64    `json:"trust"`
	ContentHash string     `json:"content_hash,omitempty"`
}

// Memory is the universal atom of the cognitive memory engine.
type Memory struct {
	ID                string            `json:"id"`
	Kind              Kind              `json:"kind"`
	Content           string            `json:"content"`
	Embedding         Embedding         `json:"embedding"`
	Importance        float64           `json:"importance"`
	DecayRate         float64           `json:"decay_rate"`
	AccessCount       int64             `json:"access_count"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	LastAccessed      time.Time         `json:"last_accessed"`
	Status            Status            `json:"status"`
	TrustLevel        float64           `json:"trust_level"`
	SourceAttribution SourceAttribution `json:"source_attribution"`
	Metadata          map[string]any    `json:"metadata"`
}

// WorkingMemory is a short-lived memory with an explicit expiry.
type WorkingMemory struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Embedding   Embedding `json:"embedding"`
	Expiry      time.Time `json:"expiry"`
	AccessCount int64     `json:"access_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// ClusterType enumerates the kinds of clusters the engine maintains.
type ClusterType string

const (
	ClusterTheme    ClusterType = "theme"
	ClusterEmotion  ClusterType = "emotion"
	ClusterTemporal ClusterType = "temporal"
	ClusterPerson   ClusterType = "person"
	ClusterPattern  ClusterType = "pattern"
	ClusterMixed    ClusterType = "mixed"
)

// Cluster is a thematic/emotional/temporal grouping with a centroid vector.
type Cluster struct {
	ID       string      `json:"id"`
	Type     ClusterType `json:"cluster_type"`
	Name     string      `json:"name"`
	Centroid Embedding   `json:"centroid_embedding"`
}

// Episode is a coherent sequence of memories bounded by start/end time.
type Episode struct {
	ID               string    `json:"id"`
	StartedAt        time.Time `json:"started_at"`
	EndedAt          time.Time `json:"ended_at"`
	Summary          string    `json:"summary"`
	SummaryEmbedding Embedding `json:"summary_embedding,omitempty"`
}

// InitStage is the initialization state machine's current stage.
type InitStage string

const (
	InitNotStarted InitStage = "not_started"
	InitMode       InitStage = "mode"
	InitLLM        InitStage = "llm"
	InitHeartbeat  InitStage = "heartbeat"
	InitIdentity   InitStage = "identity"
	InitPersonality InitStage = "personality"
	InitValues     InitStage = "values"
	InitWorldview  InitStage = "worldview"
	InitBoundaries InitStage = "boundaries"
	InitInterests  InitStage = "interests"
	InitGoals      InitStage = "goals"
	InitRelationship InitStage = "relationship"
	InitConsent    InitStage = "consent"
	InitComplete   InitStage = "complete"
)

// HeartbeatState is the singleton heartbeat state row.
type HeartbeatState struct {
	CurrentEnergy     float64        `json:"current_energy"`
	MaxEnergy         float64        `json:"-"`
	HeartbeatCount    int64          `json:"heartbeat_count"`
	IsPaused          bool           `json:"is_paused"`
	InitStage         InitStage      `json:"init_stage"`
	InitData          map[string]any `json:"init_data"`
	InitStartedAt     *time.Time     `json:"init_started_at,omitempty"`
	InitCompletedAt   *time.Time     `json:"init_completed_at,omitempty"`
}

// MaintenanceState is the singleton maintenance state row.
type MaintenanceState struct {
	IsPaused                  bool      `json:"is_paused"`
	LastSubconsciousHeartbeat int64     `json:"last_subconscious_heartbeat"`
	LastSubconsciousRunAt     time.Time `json:"last_subconscious_run_at"`
}

// EmotionalState is the singleton emotional state row.
type EmotionalState struct {
	Valence        float64 `json:"valence"`
	Arousal        float64 `json:"arousal"`
	Dominance      float64 `json:"dominance"`
	Intensity      float64 `json:"intensity"`
	MoodValence    float64 `json:"mood_valence"`
	MoodArousal    float64 `json:"mood_arousal"`
	PrimaryEmotion string  `json:"primary_emotion"`
}

// HeartbeatLogRow is one append-only heartbeat record.
type HeartbeatLogRow struct {
	ID              string         `json:"id"`
	StartedAt       time.Time      `json:"started_at"`
	EndedAt         *time.Time     `json:"ended_at,omitempty"`
	Decision        map[string]any `json:"decision,omitempty"`
	ActionsTaken    []ActionResult `json:"actions_taken"`
	MemoryID        *string        `json:"memory_id,omitempty"`
	EnergyBefore    float64        `json:"energy_before"`
	EnergyAfter     float64        `json:"energy_after"`
	ReasonIfSkipped string         `json:"reason_if_skipped,omitempty"`
}

// ActionResult is one applied (or skipped) action in a heartbeat.
type ActionResult struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
	Cost   float64        `json:"cost"`
	Skipped bool          `json:"skipped,omitempty"`
	Reason  string        `json:"reason,omitempty"`
}

// CallType enumerates external call types. Only "think" is supported; the
// embed call type is explicitly unsupported (embedding is performed inline).
type CallType string

const CallTypeThink CallType = "think"

// CallSubkind enumerates the "think" subkinds.
type CallSubkind string

const (
	SubkindHeartbeatDecision  CallSubkind = "heartbeat_decision"
	SubkindBrainstormGoals    CallSubkind = "brainstorm_goals"
	SubkindInquire            CallSubkind = "inquire"
	SubkindReflect            CallSubkind = "reflect"
	SubkindTerminationConfirm CallSubkind = "termination_confirm"
	SubkindConsentRequest     CallSubkind = "consent_request"
)

// CallStatus is the external call ledger's status.
type CallStatus string

const (
	CallPending  CallStatus = "pending"
	CallInFlight CallStatus = "in_flight"
	CallApplied  CallStatus = "applied"
	CallFailed   CallStatus = "failed"
)

// ExternalCallInput is the typed context document handed to a processor.
type ExternalCallInput struct {
	Subkind CallSubkind    `json:"subkind"`
	Context map[string]any `json:"context"`
}

// ExternalCallRow is one row of the external call ledger.
type ExternalCallRow struct {
	ID                string             `json:"id"`
	CallType          CallType           `json:"call_type"`
	Input             ExternalCallInput  `json:"input"`
	ParentHeartbeatID *string            `json:"parent_heartbeat_id,omitempty"`
	Status            CallStatus         `json:"status"`
	Attempts          int                `json:"attempts"`
	Output            map[string]any     `json:"output,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// OutboxKind enumerates outbox message kinds.
type OutboxKind string

const (
	OutboxUser OutboxKind = "user"
	OutboxTool OutboxKind = "tool"
)

// OutboxStatus is the outbox message delivery status.
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxDelivered OutboxStatus = "delivered"
	OutboxFailed    OutboxStatus = "failed"
)

// OutboxMessage is one append-only queued side-effect destined for external
// delivery.
type OutboxMessage struct {
	ID        string         `json:"id"`
	Kind      OutboxKind     `json:"kind"`
	Payload   map[string]any `json:"payload"`
	Status    OutboxStatus   `json:"status"`
	Attempts  int            `json:"attempts"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ConsentDecision enumerates consent ledger decisions.
type ConsentDecision string

const (
	ConsentGiven   ConsentDecision = "consent"
	ConsentDeclined ConsentDecision = "decline"
	ConsentAbstain ConsentDecision = "abstain"
)

// ConsentLogRow is one immutable consent ledger record.
type ConsentLogRow struct {
	ID               string          `json:"id"`
	Decision         ConsentDecision `json:"decision"`
	Signature        string          `json:"signature"`
	MemoriesReturned []string        `json:"memories_returned"`
	RecordedAt       time.Time       `json:"recorded_at"`
	RawResponse      map[string]any  `json:"raw_response"`
}

// IngestionReceipt records one idempotent chunk ingestion.
type IngestionReceipt struct {
	SourceFile  string    `json:"source_file"`
	ChunkIndex  int       `json:"chunk_index"`
	ContentHash string    `json:"content_hash"`
	MemoryID    string    `json:"memory_id"`
	InsertedAt  time.Time `json:"inserted_at"`
}

// MemoryActivation is a feeling-of-knowing activation probe record.
type MemoryActivation struct {
	ID               string    `json:"id"`
	Query            string    `json:"query"`
	EstimatedMatches int       `json:"estimated_matches"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
}
