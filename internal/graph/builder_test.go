package graph

import (
	"testing"
	"time"

	"github.com/axontrace/replayer/internal/models"
)

func node(id, runID, parentRunID string, start time.Time) models.Node {
	return models.Node{NodeID: id, RunID: runID, ParentRunID: parentRunID, StartTime: start}
}

func TestBuild_ParentRunIDEdges(t *testing.T) {
	base := time.Now()
	nodes := []models.Node{
		node("n1", "r1", "", base),
		node("n2", "r2", "r1", base.Add(time.Second)),
		node("n3", "r3", "r2", base.Add(2*time.Second)),
	}

	g := Build(nodes, nil)

	if got := g.Forward["n1"]; len(got) != 1 || got[0] != "n2" {
		t.Fatalf("Forward[n1] = %v, want [n2]", got)
	}
	if got := g.Forward["n2"]; len(got) != 1 || got[0] != "n3" {
		t.Fatalf("Forward[n2] = %v, want [n3]", got)
	}
	if got := g.Reverse["n3"]; len(got) != 1 || got[0] != "n2" {
		t.Fatalf("Reverse[n3] = %v, want [n2]", got)
	}
}

func TestBuild_EdgesResolveMixedIDSpaces(t *testing.T) {
	base := time.Now()
	nodes := []models.Node{
		node("n1", "r1", "", base),
		node("n2", "r2", "", base.Add(time.Second)),
	}
	// one side NodeID, other side RunID
	edges := []models.Edge{{TraceID: "t1", From: "n1", To: "r2"}}

	g := Build(nodes, edges)

	if got := g.Forward["n1"]; len(got) != 1 || got[0] != "n2" {
		t.Fatalf("Forward[n1] = %v, want [n2]", got)
	}
}

func TestBuild_DropsUnresolvableEdges(t *testing.T) {
	base := time.Now()
	nodes := []models.Node{node("n1", "r1", "", base)}
	edges := []models.Edge{{TraceID: "t1", From: "n1", To: "ghost"}}

	g := Build(nodes, edges)

	if len(g.Edges) != 0 {
		t.Fatalf("expected unresolvable edge to be dropped, got %v", g.Edges)
	}
}

func TestBuild_TimeLinearFallback(t *testing.T) {
	base := time.Now()
	nodes := []models.Node{
		node("n3", "r3", "", base.Add(2*time.Second)),
		node("n1", "r1", "", base),
		node("n2", "r2", "", base.Add(time.Second)),
	}

	g := Build(nodes, nil)

	want := [][2]string{{"n1", "n2"}, {"n2", "n3"}}
	if len(g.Edges) != len(want) {
		t.Fatalf("len(g.Edges) = %d, want %d (%v)", len(g.Edges), len(want), g.Edges)
	}
	for i, e := range g.Edges {
		if e.From != want[i][0] || e.To != want[i][1] {
			t.Fatalf("Edges[%d] = %+v, want %v", i, e, want[i])
		}
	}
}

func TestBuild_NoFallbackForSingleNode(t *testing.T) {
	nodes := []models.Node{node("n1", "r1", "", time.Now())}
	g := Build(nodes, nil)
	if len(g.Edges) != 0 {
		t.Fatalf("expected no edges for single-node trace, got %v", g.Edges)
	}
}

func TestBuild_DeduplicatesSuccessors(t *testing.T) {
	base := time.Now()
	nodes := []models.Node{
		node("n1", "r1", "", base),
		node("n2", "r2", "", base.Add(time.Second)),
	}
	edges := []models.Edge{
		{TraceID: "t1", From: "n1", To: "n2"},
		{TraceID: "t1", From: "n1", To: "n2"},
	}

	g := Build(nodes, edges)

	if got := g.Forward["n1"]; len(got) != 1 {
		t.Fatalf("Forward[n1] = %v, want deduplicated to 1 entry", got)
	}
}

func TestEarliestNodeID(t *testing.T) {
	base := time.Now()
	nodes := []models.Node{
		node("n2", "r2", "", base.Add(time.Second)),
		node("n1", "r1", "", base),
	}
	if got := EarliestNodeID(nodes); got != "n1" {
		t.Fatalf("EarliestNodeID = %q, want n1", got)
	}
}
