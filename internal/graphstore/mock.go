package graphstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/cogpy/cogsubstrate/internal/substrateerr"
)

// MockGraph is an in-memory Graph implementation for tests that don't stand
// up a live Dgraph cluster, in the spirit of the teacher's MockDgraphClient.
type MockGraph struct {
	mu    sync.Mutex
	nodes map[string]NodeKind // xid -> kind
	edges []Edge
}

// NewMockGraph constructs an empty mock graph.
func NewMockGraph() *MockGraph {
	return &MockGraph{nodes: make(map[string]NodeKind)}
}

func (m *MockGraph) EnsureSchema(ctx context.Context) error { return nil }

func (m *MockGraph) UpsertNode(ctx context.Context, kind NodeKind, xid string, props map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[xid] = kind
	return xid, nil
}

func (m *MockGraph) UpsertGoalsRoot(ctx context.Context) (string, error) {
	return m.UpsertNode(ctx, NodeGoalsRoot, goalsRootXID, nil)
}

func (m *MockGraph) NodeExists(ctx context.Context, kind NodeKind, xid string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.nodes[xid]
	return ok && k == kind, nil
}

func (m *MockGraph) CreateEdge(ctx context.Context, e Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[e.FromXID]; !ok {
		return substrateerr.Corruption("CreateEdge", fmt.Errorf("missing from-node %s", e.FromXID))
	}
	if _, ok := m.nodes[e.ToXID]; !ok {
		return substrateerr.Corruption("CreateEdge", fmt.Errorf("missing to-node %s", e.ToXID))
	}
	m.edges = append(m.edges, e)
	return nil
}

func (m *MockGraph) DetachNode(ctx context.Context, xid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.edges[:0]
	for _, e := range m.edges {
		if e.FromXID == xid || e.ToXID == xid {
			continue
		}
		kept = append(kept, e)
	}
	m.edges = kept
	return nil
}

func (m *MockGraph) DeleteNode(ctx context.Context, xid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, xid)
	return nil
}

func (m *MockGraph) FindCauses(ctx context.Context, targetXID string, depth int) ([]Causal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	frontier := map[string]int{targetXID: 0}
	var out []Causal
	seen := map[string]bool{}
	for d := 1; d <= depth; d++ {
		next := map[string]int{}
		for xid := range frontier {
			for _, e := range m.edges {
				if e.Kind == EdgeCauses && e.ToXID == xid && !seen[e.FromXID] {
					seen[e.FromXID] = true
					out = append(out, Causal{MemoryXID: e.FromXID, Depth: d})
					next[e.FromXID] = d
				}
			}
		}
		if len(next) == 0 {
			break
		}
		frontier = next
	}
	return out, nil
}

func (m *MockGraph) FindContradictions(ctx context.Context, memoryXID string) ([]Contradiction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Contradiction
	for _, e := range m.edges {
		if e.Kind != EdgeContradicts {
			continue
		}
		if e.FromXID == memoryXID {
			out = append(out, Contradiction{MemoryXID: e.ToXID, Confidence: e.Strength})
		} else if e.ToXID == memoryXID {
			out = append(out, Contradiction{MemoryXID: e.FromXID, Confidence: e.Strength})
		}
	}
	return out, nil
}

func (m *MockGraph) FindSupportingEvidence(ctx context.Context, worldviewXID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.edges {
		if e.Kind == EdgeSupports && e.ToXID == worldviewXID {
			out = append(out, e.FromXID)
		}
	}
	return out, nil
}

func (m *MockGraph) InboundInfluences(ctx context.Context, worldviewXID string) ([]Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Edge
	for _, e := range m.edges {
		if (e.Kind == EdgeSupports || e.Kind == EdgeContradicts) && e.ToXID == worldviewXID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockGraph) ClusterMembers(ctx context.Context, clusterXID string) ([]string, error) {
	return m.InboundByKind(ctx, clusterXID, EdgeMemberOf)
}

func (m *MockGraph) InboundByKind(ctx context.Context, toXID string, kind EdgeKind) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.edges {
		if e.Kind == kind && e.ToXID == toXID {
			out = append(out, e.FromXID)
		}
	}
	return out, nil
}

func (m *MockGraph) Close() error { return nil }

var _ Graph = (*MockGraph)(nil)
