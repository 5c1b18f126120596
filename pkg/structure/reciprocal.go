package structure

import (
	"sort"

	"gonum.org/v1/gonum/graph"
)

// ReciprocalFinder finds strongly connected components using Tarjan's
// algorithm. In a directed translation network each component with more
// than one node is a cluster whose members reach each other along the
// resolution order of the records.
type ReciprocalFinder struct {
	graph   graph.Directed
	index   int
	stack   []int64
	onStack map[int64]bool
	indices map[int64]int
	lowLink map[int64]int
	sccs    [][]int64
}

// NewReciprocalFinder creates a finder over g.
func NewReciprocalFinder(g graph.Directed) *ReciprocalFinder {
	return &ReciprocalFinder{
		graph:   g,
		stack:   make([]int64, 0),
		onStack: make(map[int64]bool),
		indices: make(map[int64]int),
		lowLink: make(map[int64]int),
		sccs:    make([][]int64, 0),
	}
}

// Find returns every strongly connected component of two or more nodes.
// Members are sorted, and components are ordered by their smallest member.
func (r *ReciprocalFinder) Find() [][]int64 {
	nodes := graph.NodesOf(r.graph.Nodes())
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
	for _, node := range nodes {
		if _, visited := r.indices[node.ID()]; !visited {
			r.strongConnect(node.ID())
		}
	}

	for _, scc := range r.sccs {
		sort.Slice(scc, func(i, j int) bool { return scc[i] < scc[j] })
	}
	sort.Slice(r.sccs, func(i, j int) bool { return r.sccs[i][0] < r.sccs[j][0] })
	return r.sccs
}

func (r *ReciprocalFinder) strongConnect(nodeID int64) {
	r.indices[nodeID] = r.index
	r.lowLink[nodeID] = r.index
	r.index++

	r.stack = append(r.stack, nodeID)
	r.onStack[nodeID] = true

	successors := r.graph.From(nodeID)
	for successors.Next() {
		next := successors.Node().ID()
		if _, visited := r.indices[next]; !visited {
			r.strongConnect(next)
			r.lowLink[nodeID] = min(r.lowLink[nodeID], r.lowLink[next])
		} else if r.onStack[next] {
			r.lowLink[nodeID] = min(r.lowLink[nodeID], r.indices[next])
		}
	}

	if r.lowLink[nodeID] != r.indices[nodeID] {
		return
	}

	scc := make([]int64, 0)
	for {
		w := r.stack[len(r.stack)-1]
		r.stack = r.stack[:len(r.stack)-1]
		r.onStack[w] = false
		scc = append(scc, w)
		if w == nodeID {
			break
		}
	}
	if len(scc) > 1 {
		r.sccs = append(r.sccs, scc)
	}
}

// ReciprocalClusters is a convenience wrapper over ReciprocalFinder.
func ReciprocalClusters(g graph.Directed) [][]int64 {
	return NewReciprocalFinder(g).Find()
}
