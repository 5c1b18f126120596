// Package structure finds structural brokers in the co-occurrence graph.
package structure

import (
	"sort"

	"gonum.org/v1/gonum/graph"
)

// CutVertexFinder finds articulation points using Tarjan's lowlink DFS.
// Removing an articulation point disconnects its component, so in a
// translation network these are the brokers between otherwise separate
// groups of people and publishers.
type CutVertexFinder struct {
	graph   graph.Undirected
	index   int
	indices map[int64]int
	lowLink map[int64]int
	cuts    map[int64]bool
}

// NewCutVertexFinder creates a finder over g.
func NewCutVertexFinder(g graph.Undirected) *CutVertexFinder {
	return &CutVertexFinder{
		graph:   g,
		indices: make(map[int64]int),
		lowLink: make(map[int64]int),
		cuts:    make(map[int64]bool),
	}
}

// Find returns the IDs of all articulation points in ascending order.
func (f *CutVertexFinder) Find() []int64 {
	nodes := f.graph.Nodes()
	for nodes.Next() {
		id := nodes.Node().ID()
		if _, visited := f.indices[id]; visited {
			continue
		}
		if children := f.visit(id, -1); children > 1 {
			f.cuts[id] = true
		}
	}

	result := make([]int64, 0, len(f.cuts))
	for id := range f.cuts {
		result = append(result, id)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// visit returns the number of DFS children of nodeID. A DFS root is a cut
// vertex only when it has more than one child; that check is left to Find.
func (f *CutVertexFinder) visit(nodeID, parent int64) int {
	f.indices[nodeID] = f.index
	f.lowLink[nodeID] = f.index
	f.index++

	children := 0
	neighbors := f.graph.From(nodeID)
	for neighbors.Next() {
		next := neighbors.Node().ID()
		if next == parent {
			continue
		}

		if _, visited := f.indices[next]; !visited {
			children++
			f.visit(next, nodeID)
			f.lowLink[nodeID] = min(f.lowLink[nodeID], f.lowLink[next])

			// No back edge from next's subtree climbs above nodeID
			if parent >= 0 && f.lowLink[next] >= f.indices[nodeID] {
				f.cuts[nodeID] = true
			}
		} else {
			f.lowLink[nodeID] = min(f.lowLink[nodeID], f.indices[next])
		}
	}
	return children
}

// CutVertices is a convenience wrapper returning articulation point IDs of g.
func CutVertices(g graph.Undirected) []int64 {
	return NewCutVertexFinder(g).Find()
}
