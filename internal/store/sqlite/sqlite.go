// Package sqlite implements the store.TraceStore, store.NodeStore, and
// store.EdgeStore interfaces using pure-Go SQLite. Zero CGO required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/axontrace/replayer/internal/models"
	"github.com/axontrace/replayer/internal/store"
)

// Open opens a SQLite database at path and returns a StoreSet reading the
// schema ingestion writes into. A single shared connection serializes
// access the way the teacher's oasis sqlite store does, avoiding
// SQLITE_BUSY under concurrent readers.
func Open(path string) (store.StoreSet, func() error, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return store.StoreSet{}, nil, fmt.Errorf("sqlite: open driver: %w", err)
	}
	db.SetMaxOpenConns(1)
	return store.StoreSet{
		Traces: &traceStore{db: db},
		Nodes:  &nodeStore{db: db},
		Edges:  &edgeStore{db: db},
	}, db.Close, nil
}

type traceStore struct{ db *sql.DB }

func (s *traceStore) Get(ctx context.Context, traceID string) (*models.Trace, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT trace_id, project_name, start_time, end_time, status, total_cost, total_nodes
		 FROM traces WHERE trace_id = ?`, traceID)

	var t models.Trace
	var endTime sql.NullTime
	if err := row.Scan(&t.TraceID, &t.ProjectName, &t.StartTime, &endTime, &t.Status, &t.TotalCost, &t.TotalNodes); err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: get trace: %w", err)
	}
	if endTime.Valid {
		t.EndTime = &endTime.Time
	}
	return &t, nil
}

type nodeStore struct{ db *sql.DB }

func (s *nodeStore) ListByTrace(ctx context.Context, traceID string) ([]models.Node, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT node_id, run_id, trace_id, type, status, start_time, end_time, latency_ms,
		        model, cost, tokens_input, tokens_output, tokens_total, data, parent_run_id
		 FROM nodes WHERE trace_id = ?`, traceID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list nodes: %w", err)
	}
	defer rows.Close()

	var nodes []models.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].StartTime.Before(nodes[j].StartTime) })
	return nodes, nil
}

func (s *nodeStore) Get(ctx context.Context, traceID, nodeID string) (*models.Node, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT node_id, run_id, trace_id, type, status, start_time, end_time, latency_ms,
		        model, cost, tokens_input, tokens_output, tokens_total, data, parent_run_id
		 FROM nodes WHERE trace_id = ? AND node_id = ?`, traceID, nodeID)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (models.Node, error) {
	var n models.Node
	var endTime sql.NullTime
	var latencyMs sql.NullInt64
	var model, parentRunID sql.NullString
	var dataBytes []byte

	if err := row.Scan(
		&n.NodeID, &n.RunID, &n.TraceID, &n.Type, &n.Status,
		&n.StartTime, &endTime, &latencyMs,
		&model, &n.Cost, &n.Tokens.Input, &n.Tokens.Output, &n.Tokens.Total,
		&dataBytes, &parentRunID,
	); err != nil {
		if err == sql.ErrNoRows {
			return models.Node{}, err
		}
		return models.Node{}, fmt.Errorf("sqlite: scan node: %w", err)
	}
	if endTime.Valid {
		n.EndTime = &endTime.Time
	}
	if latencyMs.Valid {
		n.LatencyMs = &latencyMs.Int64
	}
	n.Model = model.String
	n.ParentRunID = parentRunID.String
	n.Tokens = n.Tokens.Normalize()
	if len(dataBytes) > 0 {
		if err := json.Unmarshal(dataBytes, &n.Data); err != nil {
			return models.Node{}, fmt.Errorf("sqlite: unmarshal node data: %w", err)
		}
	}
	return n, nil
}

type edgeStore struct{ db *sql.DB }

func (s *edgeStore) ListByTrace(ctx context.Context, traceID string) ([]models.Edge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT trace_id, from_ref, to_ref FROM edges WHERE trace_id = ?`, traceID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list edges: %w", err)
	}
	defer rows.Close()

	var edges []models.Edge
	for rows.Next() {
		var e models.Edge
		if err := rows.Scan(&e.TraceID, &e.From, &e.To); err != nil {
			return nil, fmt.Errorf("sqlite: scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
