// Package graph reconstructs the canonical run graph for a trace: it
// resolves the NodeId/RunId ambiguity in raw edges and parent links, and
// falls back to a synthesized time-linear chain when no edges can be
// resolved. See spec.md §4.4.
package graph

import (
	"sort"

	"github.com/axontrace/replayer/internal/models"
)

// Graph is the canonical, post-resolution run graph: NodeId-keyed
// adjacency in both directions, deduplicated.
type Graph struct {
	Nodes   []models.Node
	ByID    map[string]models.Node
	Edges   []models.CanonicalEdge
	Forward map[string][]string // nodeId -> successor nodeIds, deduped
	Reverse map[string][]string // nodeId -> predecessor nodeIds, deduped
}

// NodeByStartTime sorts a copy of nodes ascending by start time, breaking
// ties on NodeID for determinism, per spec.md §5.
func NodeByStartTime(nodes []models.Node) []models.Node {
	out := append([]models.Node(nil), nodes...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].NodeID < out[j].NodeID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// Build resolves raw nodes/edges into a canonical Graph.
//
// Resolution order:
//  1. index nodes by NodeID and by RunID
//  2. resolve each raw edge endpoint, trying NodeID first then RunID;
//     drop edges where either side is unresolvable
//  3. append a canonical edge (parentNodeId, nodeId) for every node with a
//     non-empty ParentRunID
//  4. if the resulting edge set is empty and there is more than one node,
//     synthesize a time-linear chain over nodes sorted by start time
//  5. build deduplicated forward/reverse adjacency
func Build(nodes []models.Node, rawEdges []models.Edge) *Graph {
	byID := make(map[string]models.Node, len(nodes))
	byRunID := make(map[string]string, len(nodes)) // runId -> nodeId
	for _, n := range nodes {
		byID[n.NodeID] = n
		if n.RunID != "" {
			byRunID[n.RunID] = n.NodeID
		}
	}

	resolve := func(ref string) (string, bool) {
		if _, ok := byID[ref]; ok {
			return ref, true
		}
		if nodeID, ok := byRunID[ref]; ok {
			return nodeID, true
		}
		return "", false
	}

	var canonical []models.CanonicalEdge
	for _, e := range rawEdges {
		from, okFrom := resolve(e.From)
		to, okTo := resolve(e.To)
		if !okFrom || !okTo {
			continue
		}
		canonical = append(canonical, models.CanonicalEdge{From: from, To: to})
	}

	for _, n := range nodes {
		if n.ParentRunID == "" {
			continue
		}
		parentNodeID, ok := byRunID[n.ParentRunID]
		if !ok {
			continue
		}
		canonical = append(canonical, models.CanonicalEdge{From: parentNodeID, To: n.NodeID})
	}

	if len(canonical) == 0 && len(nodes) > 1 {
		canonical = timeLinearChain(nodes)
	}

	forward, reverse := adjacency(canonical)

	return &Graph{
		Nodes:   nodes,
		ByID:    byID,
		Edges:   canonical,
		Forward: forward,
		Reverse: reverse,
	}
}

// timeLinearChain synthesizes n[i] -> n[i+1] edges over nodes sorted
// ascending by start time.
func timeLinearChain(nodes []models.Node) []models.CanonicalEdge {
	sorted := NodeByStartTime(nodes)
	edges := make([]models.CanonicalEdge, 0, len(sorted)-1)
	for i := 0; i+1 < len(sorted); i++ {
		edges = append(edges, models.CanonicalEdge{From: sorted[i].NodeID, To: sorted[i+1].NodeID})
	}
	return edges
}

// adjacency builds deduplicated forward and reverse adjacency maps from a
// canonical edge list.
func adjacency(edges []models.CanonicalEdge) (map[string][]string, map[string][]string) {
	forwardSeen := make(map[string]map[string]bool)
	reverseSeen := make(map[string]map[string]bool)

	for _, e := range edges {
		if forwardSeen[e.From] == nil {
			forwardSeen[e.From] = make(map[string]bool)
		}
		forwardSeen[e.From][e.To] = true

		if reverseSeen[e.To] == nil {
			reverseSeen[e.To] = make(map[string]bool)
		}
		reverseSeen[e.To][e.From] = true
	}

	forward := dedupedAdjacency(forwardSeen)
	reverse := dedupedAdjacency(reverseSeen)
	return forward, reverse
}

func dedupedAdjacency(seen map[string]map[string]bool) map[string][]string {
	out := make(map[string][]string, len(seen))
	for from, tos := range seen {
		list := make([]string, 0, len(tos))
		for to := range tos {
			list = append(list, to)
		}
		sort.Strings(list)
		out[from] = list
	}
	return out
}

// EarliestNodeID returns the NodeID of the node with the minimum start time,
// the default start node per spec.md §4.5.
func EarliestNodeID(nodes []models.Node) string {
	if len(nodes) == 0 {
		return ""
	}
	sorted := NodeByStartTime(nodes)
	return sorted[0].NodeID
}
