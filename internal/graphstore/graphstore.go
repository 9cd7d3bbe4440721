// Package graphstore is the property graph half of the graph-and-table
// duality: nodes and edges for memories, concepts, clusters, episodes and
// goals, co-stored alongside the relational memories table. It is backed by
// Dgraph (github.com/dgraph-io/dgo/v230 over google.golang.org/grpc), the
// same graph database the teacher substrate already embeds for its
// hypergraph persistence.
package graphstore

import (
	"context"
)

// NodeKind enumerates the graph node kinds of the data model.
type NodeKind string

const (
	NodeMemory    NodeKind = "MemoryNode"
	NodeConcept   NodeKind = "ConceptNode"
	NodeCluster   NodeKind = "ClusterNode"
	NodeEpisode   NodeKind = "EpisodeNode"
	NodeGoal      NodeKind = "GoalNode"
	NodeGoalsRoot NodeKind = "GoalsRoot"
)

// EdgeKind enumerates the graph edge kinds of the data model.
type EdgeKind string

const (
	EdgeRelatesTo       EdgeKind = "RELATES_TO"
	EdgeLeadsTo         EdgeKind = "LEADS_TO"
	EdgeContradicts     EdgeKind = "CONTRADICTS"
	EdgeSupports        EdgeKind = "SUPPORTS"
	EdgeImplements      EdgeKind = "IMPLEMENTS"
	EdgeAssociated      EdgeKind = "ASSOCIATED"
	EdgeCauses          EdgeKind = "CAUSES"
	EdgeInstanceOf      EdgeKind = "INSTANCE_OF"      // memory -> concept
	EdgeMemberOf        EdgeKind = "MEMBER_OF"        // memory -> cluster
	EdgeSubgoalOf       EdgeKind = "SUBGOAL_OF"       // goal -> goal
	EdgeOriginatedFrom  EdgeKind = "ORIGINATED_FROM"  // goal -> memory
	EdgeSequencedIn     EdgeKind = "SEQUENCED_IN"     // memory -> episode
)

// Edge is one typed relationship between two nodes, identified by their
// external (xid) ids rather than Dgraph-internal uids, so callers never
// need to track uid allocation themselves.
type Edge struct {
	FromXID string
	ToXID   string
	Kind    EdgeKind
	// Strength carries membership_strength for MEMBER_OF, confidence for
	// CONTRADICTS and SUPPORTS, or is zero for edge kinds that don't carry
	// a weight.
	Strength float64
	// SequenceOrder carries SEQUENCED_IN.sequence_order; zero otherwise.
	SequenceOrder int
}

// Causal is one hop of a CAUSES traversal result.
type Causal struct {
	MemoryXID string
	Depth     int
}

// Contradiction is one CONTRADICTS edge with its confidence annotation.
type Contradiction struct {
	MemoryXID  string
	Confidence float64
}

// Graph is the interface the memory and maintenance engines depend on.
// Two implementations exist: Dgraph-backed (production) and an in-memory
// mock (tests, and environments with no live Dgraph cluster).
type Graph interface {
	// EnsureSchema installs the node/edge predicate schema. Safe to call
	// repeatedly (Dgraph's Alter is idempotent for unchanged schema).
	EnsureSchema(ctx context.Context) error

	// UpsertNode ensures a node of the given kind and external id exists,
	// returning its internal uid. Calling twice with the same (kind, xid)
	// returns the same uid and performs no duplicate mutation.
	UpsertNode(ctx context.Context, kind NodeKind, xid string, props map[string]any) (uid string, err error)

	// UpsertGoalsRoot ensures the singleton GoalsRoot node exists.
	UpsertGoalsRoot(ctx context.Context) (uid string, err error)

	// CreateEdge creates a typed edge between two existing nodes, looked up
	// by external id. Returns an error if either endpoint node is missing,
	// per the invariant that edges must reference existing nodes.
	CreateEdge(ctx context.Context, e Edge) error

	// DetachNode removes every edge (inbound and outbound) touching the
	// node with the given external id, without removing the node itself.
	// Callers detach before deleting the corresponding table row (§9
	// write discipline: table row first on insert, graph node detached
	// first on delete).
	DetachNode(ctx context.Context, xid string) error

	// DeleteNode removes a node entirely. Callers must call DetachNode
	// first; DeleteNode does not cascade.
	DeleteNode(ctx context.Context, xid string) error

	// FindCauses performs a bounded reverse traversal of CAUSES edges
	// starting at target, up to depth hops. The Dgraph implementation
	// returns only the direct causes (Depth 1) and does not use depth.
	FindCauses(ctx context.Context, targetXID string, depth int) ([]Causal, error)

	// FindContradictions follows CONTRADICTS edges touching id, returning
	// the contradicting memories with their confidence annotation.
	FindContradictions(ctx context.Context, memoryXID string) ([]Contradiction, error)

	// FindSupportingEvidence follows inbound SUPPORTS edges into a
	// worldview memory.
	FindSupportingEvidence(ctx context.Context, worldviewXID string) ([]string, error)

	// InboundInfluences returns every memory with a SUPPORTS or
	// CONTRADICTS edge into worldviewXID, tagged by edge kind and
	// strength, for update_worldview_confidence_from_influences.
	InboundInfluences(ctx context.Context, worldviewXID string) ([]Edge, error)

	// ClusterMembers returns the xids of every memory with a MEMBER_OF
	// edge into the given cluster.
	ClusterMembers(ctx context.Context, clusterXID string) ([]string, error)

	// InboundByKind returns the xids of every node with an edge of the
	// given kind into toXID. Used generically for INSTANCE_OF (concept
	// members) and SEQUENCED_IN (episode members) lookups.
	InboundByKind(ctx context.Context, toXID string, kind EdgeKind) ([]string, error)

	// NodeExists reports whether a node of the given kind and xid exists.
	NodeExists(ctx context.Context, kind NodeKind, xid string) (bool, error)

	Close() error
}
