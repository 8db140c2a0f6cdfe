// Package memory provides in-memory TraceStore/NodeStore/EdgeStore
// implementations, useful for tests and single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/axontrace/replayer/internal/models"
	"github.com/axontrace/replayer/internal/store"
)

// TraceStore is an in-memory store.TraceStore, mirroring the teacher's
// MemoryAgentStore shape (a single mutex-guarded map).
type TraceStore struct {
	mu     sync.RWMutex
	traces map[string]*models.Trace
}

// NewTraceStore creates an empty in-memory trace store.
func NewTraceStore() *TraceStore {
	return &TraceStore{traces: make(map[string]*models.Trace)}
}

// Put inserts or replaces a trace record. Seed helper; the core only reads.
func (s *TraceStore) Put(t models.Trace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tc := t
	s.traces[t.TraceID] = &tc
}

// Get implements store.TraceStore.
func (s *TraceStore) Get(ctx context.Context, traceID string) (*models.Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.traces[traceID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t, nil
}

// NodeStore is an in-memory store.NodeStore.
type NodeStore struct {
	mu    sync.RWMutex
	nodes map[string][]models.Node // traceID -> nodes
}

// NewNodeStore creates an empty in-memory node store.
func NewNodeStore() *NodeStore {
	return &NodeStore{nodes: make(map[string][]models.Node)}
}

// Put appends a node to its trace's node list. Seed helper.
func (s *NodeStore) Put(n models.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[n.TraceID] = append(s.nodes[n.TraceID], n)
}

// ListByTrace implements store.NodeStore, returning nodes sorted by start
// time ascending for deterministic downstream processing.
func (s *NodeStore) ListByTrace(ctx context.Context, traceID string) ([]models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nodes := append([]models.Node(nil), s.nodes[traceID]...)
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].StartTime.Before(nodes[j].StartTime)
	})
	return nodes, nil
}

// Get implements store.NodeStore's single-node lookup.
func (s *NodeStore) Get(ctx context.Context, traceID, nodeID string) (*models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.nodes[traceID] {
		if n.NodeID == nodeID {
			nc := n
			return &nc, nil
		}
	}
	return nil, store.ErrNotFound
}

// EdgeStore is an in-memory store.EdgeStore.
type EdgeStore struct {
	mu    sync.RWMutex
	edges map[string][]models.Edge // traceID -> edges
}

// NewEdgeStore creates an empty in-memory edge store.
func NewEdgeStore() *EdgeStore {
	return &EdgeStore{edges: make(map[string][]models.Edge)}
}

// Put appends an edge to its trace's edge list. Seed helper.
func (s *EdgeStore) Put(e models.Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges[e.TraceID] = append(s.edges[e.TraceID], e)
}

// ListByTrace implements store.EdgeStore.
func (s *EdgeStore) ListByTrace(ctx context.Context, traceID string) ([]models.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Edge(nil), s.edges[traceID]...), nil
}

// NewStoreSet wires the three in-memory stores into a store.StoreSet.
func NewStoreSet() (store.StoreSet, *TraceStore, *NodeStore, *EdgeStore) {
	ts, ns, es := NewTraceStore(), NewNodeStore(), NewEdgeStore()
	return store.StoreSet{Traces: ts, Nodes: ns, Edges: es}, ts, ns, es
}
