package graph

import "testing"

func TestFindCycleFromDetectsDirectCycle(t *testing.T) {
	g := New()
	g.AddEdge(1, 2, "")
	g.AddEdge(2, 1, "")

	cycle := g.FindCycleFrom(1)
	if cycle == nil {
		t.Fatal("expected a cycle")
	}
	if len(cycle) != 2 {
		t.Errorf("expected a 2-node cycle, got %v", cycle)
	}
}

func TestFindCycleFromReturnsNilWhenAcyclic(t *testing.T) {
	g := New()
	g.AddEdge(1, 2, "")
	g.AddEdge(2, 3, "")

	if cycle := g.FindCycleFrom(1); cycle != nil {
		t.Errorf("expected no cycle, got %v", cycle)
	}
}

func TestRemoveNodeDropsBothDirections(t *testing.T) {
	g := New()
	g.AddEdge(1, 2, "")
	g.AddEdge(2, 1, "")
	g.RemoveNode(1)

	if cycle := g.FindCycleFrom(2); cycle != nil {
		t.Errorf("expected no cycle after removing node 1, got %v", cycle)
	}
}

func TestRemoveOutgoingKeepsIncomingEdges(t *testing.T) {
	g := New()
	g.AddEdge(1, 2, "")
	g.AddEdge(2, 1, "")
	g.RemoveOutgoing(1)

	// The incoming edge 2->1 must survive; only 1->2 is removed.
	if neighbors := g.Neighbors(2); len(neighbors) != 1 || neighbors[0] != 1 {
		t.Errorf("expected the incoming edge 2->1 to survive, got %v", neighbors)
	}
	if neighbors := g.Neighbors(1); len(neighbors) != 0 {
		t.Errorf("expected node 1 to have no outgoing edges after RemoveOutgoing, got %v", neighbors)
	}
}

func TestHasConsecutiveRWDetectsWraparoundPair(t *testing.T) {
	g := New()
	// A 3-cycle where the two rw edges are adjacent across the wraparound
	// point (3->1 and 1->2), not in the middle of the slice.
	g.AddEdge(1, 2, "rw")
	g.AddEdge(2, 3, "wr")
	g.AddEdge(3, 1, "rw")

	if !g.HasConsecutiveRW([]int{1, 2, 3}) {
		t.Error("expected the wraparound rw pair to be detected")
	}
}

func TestHasConsecutiveRWFalseForSingleRWEdge(t *testing.T) {
	g := New()
	g.AddEdge(1, 2, "rw")
	g.AddEdge(2, 1, "ww")

	if g.HasConsecutiveRW([]int{1, 2}) {
		t.Error("expected a single rw edge in the cycle to not be dangerous")
	}
}

func TestEdgesAreSortedByFromThenTo(t *testing.T) {
	g := New()
	g.AddEdge(2, 1, "a")
	g.AddEdge(1, 3, "b")
	g.AddEdge(1, 2, "c")

	edges := g.Edges()
	if len(edges) != 3 {
		t.Fatalf("expected 3 edges, got %d", len(edges))
	}
	if edges[0].From != 1 || edges[0].To != 2 {
		t.Errorf("expected first edge 1->2, got %+v", edges[0])
	}
	if edges[1].From != 1 || edges[1].To != 3 {
		t.Errorf("expected second edge 1->3, got %+v", edges[1])
	}
	if edges[2].From != 2 {
		t.Errorf("expected third edge from 2, got %+v", edges[2])
	}
}
