package postgres

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/axontrace/replayer/internal/store"
)

func TestTraceStore_GetScansRowIntoTrace(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"trace_id", "project_name", "start_time", "end_time", "status", "total_cost", "total_nodes"}).
		AddRow("t1", "demo", now, nil, "complete", 0.05, 2)
	mock.ExpectQuery("SELECT trace_id, project_name").WithArgs("t1").WillReturnRows(rows)

	ts := &traceStore{db: db}
	trace, err := ts.Get(context.Background(), "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trace.ProjectName != "demo" || trace.TotalCost != 0.05 {
		t.Fatalf("unexpected trace: %+v", trace)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTraceStore_GetReturnsErrNotFoundOnNoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT trace_id, project_name").WithArgs("missing").WillReturnRows(sqlmock.NewRows(nil))

	ts := &traceStore{db: db}
	if _, err := ts.Get(context.Background(), "missing"); err != store.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestNodeStore_ListByTraceNormalizesTokensAndParsesData(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cols := []string{"node_id", "run_id", "trace_id", "type", "status", "start_time", "end_time",
		"latency_ms", "model", "cost", "tokens_input", "tokens_output", "tokens_total", "data", "parent_run_id"}
	rows := sqlmock.NewRows(cols).
		AddRow("n1", "r1", "t1", "llm", "complete", now, nil, nil, "gpt-4o-mini", 0.02, 10, 20, 0, []byte(`{"response":"hi"}`), nil)
	mock.ExpectQuery("SELECT node_id, run_id").WithArgs("t1").WillReturnRows(rows)

	ns := &nodeStore{db: db}
	nodes, err := ns.ListByTrace(context.Background(), "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("got %d nodes, want 1", len(nodes))
	}
	if nodes[0].Tokens.Total != 0 {
		t.Fatalf("Tokens.Total = %d, want 0 (source row had no total)", nodes[0].Tokens.Total)
	}
	if nodes[0].Data.Response != "hi" {
		t.Fatalf("Data.Response = %q, want hi", nodes[0].Data.Response)
	}
}

func TestEdgeStore_ListByTraceScansAllRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"trace_id", "from_ref", "to_ref"}).
		AddRow("t1", "n1", "n2").
		AddRow("t1", "n2", "n3")
	mock.ExpectQuery("SELECT trace_id, from_ref, to_ref").WithArgs("t1").WillReturnRows(rows)

	es := &edgeStore{db: db}
	edges, err := es.ListByTrace(context.Background(), "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("got %d edges, want 2", len(edges))
	}
}

func TestNewStoreSetFromDSN_RejectsEmptyDSN(t *testing.T) {
	if _, _, err := NewStoreSetFromDSN("", nil); err == nil {
		t.Fatal("expected an error for an empty DSN")
	}
}
