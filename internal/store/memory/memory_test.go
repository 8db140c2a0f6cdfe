package memory

import (
	"context"
	"testing"
	"time"

	"github.com/axontrace/replayer/internal/models"
	"github.com/axontrace/replayer/internal/store"
)

func TestTraceStore_GetReturnsErrNotFoundForMissingTrace(t *testing.T) {
	ts := NewTraceStore()
	if _, err := ts.Get(context.Background(), "missing"); err != store.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestTraceStore_PutThenGetRoundTrips(t *testing.T) {
	ts := NewTraceStore()
	ts.Put(models.Trace{TraceID: "t1", ProjectName: "demo", Status: models.TraceStatusComplete})

	got, err := ts.Get(context.Background(), "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ProjectName != "demo" {
		t.Fatalf("ProjectName = %q, want demo", got.ProjectName)
	}
}

func TestNodeStore_ListByTraceSortsByStartTime(t *testing.T) {
	ns := NewNodeStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ns.Put(models.Node{NodeID: "n2", TraceID: "t1", StartTime: base.Add(2 * time.Second)})
	ns.Put(models.Node{NodeID: "n1", TraceID: "t1", StartTime: base})
	ns.Put(models.Node{NodeID: "other", TraceID: "t2", StartTime: base})

	nodes, err := ns.ListByTrace(context.Background(), "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(nodes))
	}
	if nodes[0].NodeID != "n1" || nodes[1].NodeID != "n2" {
		t.Fatalf("unexpected order: %+v", nodes)
	}
}

func TestNodeStore_GetReturnsErrNotFoundForMissingNode(t *testing.T) {
	ns := NewNodeStore()
	ns.Put(models.Node{NodeID: "n1", TraceID: "t1"})

	if _, err := ns.Get(context.Background(), "t1", "nope"); err != store.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	got, err := ns.Get(context.Background(), "t1", "n1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.NodeID != "n1" {
		t.Fatalf("NodeID = %q, want n1", got.NodeID)
	}
}

func TestEdgeStore_ListByTraceFiltersByTrace(t *testing.T) {
	es := NewEdgeStore()
	es.Put(models.Edge{TraceID: "t1", From: "a", To: "b"})
	es.Put(models.Edge{TraceID: "t2", From: "x", To: "y"})

	edges, err := es.ListByTrace(context.Background(), "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(edges) != 1 || edges[0].From != "a" {
		t.Fatalf("unexpected edges: %+v", edges)
	}
}

func TestNewStoreSet_WiresAllThreeStores(t *testing.T) {
	set, ts, ns, es := NewStoreSet()

	ts.Put(models.Trace{TraceID: "t1"})
	ns.Put(models.Node{NodeID: "n1", TraceID: "t1"})
	es.Put(models.Edge{TraceID: "t1", From: "n1", To: "n2"})

	if _, err := set.Traces.Get(context.Background(), "t1"); err != nil {
		t.Fatalf("unexpected error reading through StoreSet.Traces: %v", err)
	}
	nodes, err := set.Nodes.ListByTrace(context.Background(), "t1")
	if err != nil || len(nodes) != 1 {
		t.Fatalf("unexpected nodes via StoreSet.Nodes: %v, %+v", err, nodes)
	}
	edges, err := set.Edges.ListByTrace(context.Background(), "t1")
	if err != nil || len(edges) != 1 {
		t.Fatalf("unexpected edges via StoreSet.Edges: %v, %+v", err, edges)
	}
}
