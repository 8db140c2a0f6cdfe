// Package selector implements subgraph selection: starting from a single
// node, it decides which other nodes in the trace are "in scope" for
// replay. See spec.md §4.5.
package selector

import (
	"sort"

	"github.com/axontrace/replayer/internal/graph"
	"github.com/axontrace/replayer/internal/models"
)

// Mode overrides the staged selection policy via REPLAY_MODE.
type Mode string

const (
	ModeDefault   Mode = ""
	ModeFull      Mode = "full"
	ModeComponent Mode = "component"
)

// Result is the outcome of subgraph selection: the executed set (in
// replay scope) and the skipped set (same trace, out of scope).
type Result struct {
	Executed []string
	Skipped  []string
}

// Select runs the staged subgraph selection policy against g, starting
// from startNodeID, honoring the REPLAY_MODE override in mode.
//
// Staged policy (ModeDefault):
//  1. executed = DFS(forward, start)
//  2. threshold = max(5, floor(0.1 * len(nodes))); if len(executed) <
//     threshold, recompute executed as DFS(forward ∪ reverse, start)
//  3. component = undirected component containing start; if
//     len(executed) < max(10, floor(0.6 * len(component))), executed =
//     component, sorted ascending by start time
//
// ModeFull always selects every node. ModeComponent always replaces
// executed with the component fallback, skipping step 2's guard.
func Select(g *graph.Graph, startNodeID string, mode Mode) Result {
	if mode == ModeFull {
		all := graph.NodeByStartTime(g.Nodes)
		return Result{Executed: nodeIDs(all)}
	}

	if _, ok := g.ByID[startNodeID]; !ok {
		return Result{}
	}

	union := unionAdjacency(g.Forward, g.Reverse)
	component := undirectedComponent(union, startNodeID)

	if mode == ModeComponent {
		executed := sortByStartTime(g, component)
		return finalize(g, executed)
	}

	executed := dfs(g.Forward, startNodeID)

	threshold := max(5, len(g.Nodes)/10)
	if len(executed) < threshold {
		executed = dfs(union, startNodeID)
	}

	componentThreshold := max(10, (6*len(component))/10)
	if len(executed) < componentThreshold {
		executed = sortByStartTime(g, component)
	}

	return finalize(g, sortByStartTime(g, executed))
}

func finalize(g *graph.Graph, executed []string) Result {
	in := make(map[string]bool, len(executed))
	for _, id := range executed {
		in[id] = true
	}
	var skipped []string
	for _, n := range graph.NodeByStartTime(g.Nodes) {
		if !in[n.NodeID] {
			skipped = append(skipped, n.NodeID)
		}
	}
	return Result{Executed: executed, Skipped: skipped}
}

// dfs walks adj from start, visiting successors in sorted order (adj
// lists are already deduped/sorted by graph.Build), and returns visited
// node IDs in visitation order.
func dfs(adj map[string][]string, start string) []string {
	visited := make(map[string]bool)
	var order []string
	var walk func(string)
	walk = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		order = append(order, id)
		for _, next := range adj[id] {
			walk(next)
		}
	}
	walk(start)
	return order
}

// unionAdjacency merges forward and reverse adjacency into a single
// undirected adjacency map, deduped.
func unionAdjacency(forward, reverse map[string][]string) map[string][]string {
	seen := make(map[string]map[string]bool)
	add := func(from, to string) {
		if seen[from] == nil {
			seen[from] = make(map[string]bool)
		}
		seen[from][to] = true
	}
	for from, tos := range forward {
		for _, to := range tos {
			add(from, to)
			add(to, from)
		}
	}
	for from, tos := range reverse {
		for _, to := range tos {
			add(from, to)
			add(to, from)
		}
	}
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

// undirectedComponent returns the set of node IDs reachable from start
// in the undirected adjacency graph, including start itself.
func undirectedComponent(union map[string][]string, start string) []string {
	return dfs(union, start)
}

func sortByStartTime(g *graph.Graph, ids []string) []string {
	nodes := make([]models.Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := g.ByID[id]; ok {
			nodes = append(nodes, n)
		}
	}
	sorted := graph.NodeByStartTime(nodes)
	return nodeIDs(sorted)
}

func nodeIDs(nodes []models.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.NodeID
	}
	return out
}
