// Package postgres provides Postgres-backed store.TraceStore,
// store.NodeStore, and store.EdgeStore implementations, adapted from the
// teacher's cockroachAgentStore family. The core only reads: ingestion owns
// all writes, so only the read paths are implemented here.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/axontrace/replayer/internal/models"
	"github.com/axontrace/replayer/internal/store"
)

// Config controls connection pooling, mirroring the teacher's
// CockroachConfig.
type Config struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultConfig returns sensible pool defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		ConnectTimeout:  5 * time.Second,
	}
}

// NewStoreSetFromDSN opens a Postgres connection and returns a StoreSet of
// read-only store implementations backed by it.
func NewStoreSetFromDSN(dsn string, cfg *Config) (store.StoreSet, func() error, error) {
	if strings.TrimSpace(dsn) == "" {
		return store.StoreSet{}, nil, fmt.Errorf("dsn is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return store.StoreSet{}, nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return store.StoreSet{}, nil, fmt.Errorf("ping database: %w", err)
	}

	return store.StoreSet{
		Traces: &traceStore{db: db},
		Nodes:  &nodeStore{db: db},
		Edges:  &edgeStore{db: db},
	}, db.Close, nil
}

type traceStore struct {
	db *sql.DB
}

func (s *traceStore) Get(ctx context.Context, traceID string) (*models.Trace, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT trace_id, project_name, start_time, end_time, status, total_cost, total_nodes
		 FROM traces WHERE trace_id = $1`, traceID)

	var t models.Trace
	var endTime sql.NullTime
	if err := row.Scan(&t.TraceID, &t.ProjectName, &t.StartTime, &endTime, &t.Status, &t.TotalCost, &t.TotalNodes); err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get trace: %w", err)
	}
	if endTime.Valid {
		t.EndTime = &endTime.Time
	}
	return &t, nil
}

type nodeStore struct {
	db *sql.DB
}

func (s *nodeStore) ListByTrace(ctx context.Context, traceID string) ([]models.Node, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT node_id, run_id, trace_id, type, status, start_time, end_time, latency_ms,
		        model, cost, tokens_input, tokens_output, tokens_total, data, parent_run_id
		 FROM nodes WHERE trace_id = $1 ORDER BY start_time ASC`, traceID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
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
	return nodes, rows.Err()
}

func (s *nodeStore) Get(ctx context.Context, traceID, nodeID string) (*models.Node, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT node_id, run_id, trace_id, type, status, start_time, end_time, latency_ms,
		        model, cost, tokens_input, tokens_output, tokens_total, data, parent_run_id
		 FROM nodes WHERE trace_id = $1 AND node_id = $2`, traceID, nodeID)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows, both of which implement Scan.
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
		return models.Node{}, fmt.Errorf("scan node: %w", err)
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
			return models.Node{}, fmt.Errorf("unmarshal node data: %w", err)
		}
	}
	return n, nil
}

type edgeStore struct {
	db *sql.DB
}

func (s *edgeStore) ListByTrace(ctx context.Context, traceID string) ([]models.Edge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT trace_id, from_ref, to_ref FROM edges WHERE trace_id = $1`, traceID)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	defer rows.Close()

	var edges []models.Edge
	for rows.Next() {
		var e models.Edge
		if err := rows.Scan(&e.TraceID, &e.From, &e.To); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
