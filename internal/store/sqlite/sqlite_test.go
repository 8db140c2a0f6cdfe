package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/axontrace/replayer/internal/store"
)

const schema = `
CREATE TABLE traces (
	trace_id TEXT PRIMARY KEY, project_name TEXT, start_time DATETIME,
	end_time DATETIME, status TEXT, total_cost REAL, total_nodes INTEGER
);
CREATE TABLE nodes (
	node_id TEXT, run_id TEXT, trace_id TEXT, type TEXT, status TEXT,
	start_time DATETIME, end_time DATETIME, latency_ms INTEGER, model TEXT,
	cost REAL, tokens_input INTEGER, tokens_output INTEGER, tokens_total INTEGER,
	data TEXT, parent_run_id TEXT
);
CREATE TABLE edges (trace_id TEXT, from_ref TEXT, to_ref TEXT);
`

// execSchema creates the ingestion-owned schema against the store's shared
// connection and returns it for seeding rows directly in tests.
func execSchema(t *testing.T, set store.StoreSet) *sql.DB {
	t.Helper()
	db := set.Traces.(*traceStore).db
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func TestSQLiteStore_GetMissingTraceReturnsErrNotFound(t *testing.T) {
	set, closeFn, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closeFn()

	execSchema(t, set)

	if _, err := set.Traces.Get(context.Background(), "missing"); err != store.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_RoundTripsTraceNodeEdge(t *testing.T) {
	set, closeFn, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closeFn()

	db := execSchema(t, set)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := db.Exec(`INSERT INTO traces (trace_id, project_name, start_time, status, total_cost, total_nodes)
		VALUES (?, ?, ?, ?, ?, ?)`, "t1", "demo", now, "complete", 0.05, 2); err != nil {
		t.Fatalf("seed trace: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO nodes (node_id, run_id, trace_id, type, status, start_time,
		cost, tokens_input, tokens_output, tokens_total, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		"n1", "r1", "t1", "llm", "complete", now, 0.05, 10, 20, 0, `{"response":"hi"}`); err != nil {
		t.Fatalf("seed node: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO edges (trace_id, from_ref, to_ref) VALUES (?, ?, ?)`, "t1", "n1", "n2"); err != nil {
		t.Fatalf("seed edge: %v", err)
	}

	trace, err := set.Traces.Get(context.Background(), "t1")
	if err != nil {
		t.Fatalf("get trace: %v", err)
	}
	if trace.ProjectName != "demo" {
		t.Fatalf("ProjectName = %q, want demo", trace.ProjectName)
	}

	nodes, err := set.Nodes.ListByTrace(context.Background(), "t1")
	if err != nil {
		t.Fatalf("list nodes: %v", err)
	}
	// the seeded row has tokens_total 0, which Normalize leaves as 0
	if len(nodes) != 1 || nodes[0].Tokens.Total != 0 {
		t.Fatalf("unexpected nodes: %+v", nodes)
	}
	if nodes[0].Data.Response != "hi" {
		t.Fatalf("Data.Response = %q, want hi", nodes[0].Data.Response)
	}

	node, err := set.Nodes.Get(context.Background(), "t1", "n1")
	if err != nil {
		t.Fatalf("get node: %v", err)
	}
	if node.RunID != "r1" {
		t.Fatalf("RunID = %q, want r1", node.RunID)
	}

	edges, err := set.Edges.ListByTrace(context.Background(), "t1")
	if err != nil {
		t.Fatalf("list edges: %v", err)
	}
	if len(edges) != 1 || edges[0].From != "n1" || edges[0].To != "n2" {
		t.Fatalf("unexpected edges: %+v", edges)
	}
}
