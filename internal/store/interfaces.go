// Package store defines the external-collaborator interfaces the replay
// engine reads through. The relational store itself is out of scope for
// this spec (see spec.md §1); the core never writes through these
// interfaces, only reads.
package store

import (
	"context"
	"errors"

	"github.com/axontrace/replayer/internal/models"
)

// ErrNotFound is returned when a trace, node, or edge lookup misses.
var ErrNotFound = errors.New("not found")

// TraceStore reads trace records. Writes belong to the ingestion path,
// which is out of scope here.
type TraceStore interface {
	Get(ctx context.Context, traceID string) (*models.Trace, error)
}

// NodeStore reads the nodes recorded for a trace.
type NodeStore interface {
	ListByTrace(ctx context.Context, traceID string) ([]models.Node, error)
	Get(ctx context.Context, traceID, nodeID string) (*models.Node, error)
}

// EdgeStore reads the raw edges recorded for a trace. Duplicates are
// allowed at this layer; GraphBuilder deduplicates when building the
// canonical graph.
type EdgeStore interface {
	ListByTrace(ctx context.Context, traceID string) ([]models.Edge, error)
}

// StoreSet groups the three read-only store dependencies the core needs.
type StoreSet struct {
	Traces TraceStore
	Nodes  NodeStore
	Edges  EdgeStore
}
