package model

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
)

// Metrics is the per-node metrics bag. All values start at zero and are
// written only by the analysis passes.
type Metrics struct {
	Degree      int     `json:"degree"`
	InDegree    int     `json:"inDegree"`
	OutDegree   int     `json:"outDegree"`
	Closeness   float64 `json:"closeness"`
	Betweenness float64 `json:"betweenness"`
	PageRank    float64 `json:"pageRank"`
	Community   int     `json:"community"`
}

// Node is an entity in the co-occurrence graph.
// ID is group + ":" + normalized value.
type Node struct {
	ID    string `json:"id"`
	Name  string `json:"name"`  // Display value, first spelling seen
	Group string `json:"group"` // Attribute key, e.g. "author" or "custom:genre"
	Metrics
}

// Edge connects two distinct nodes. Weight counts co-occurrences.
type Edge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Weight int      `json:"weight"`
	Type   EdgeType `json:"type"`
}

// DegreeResult holds the output of a degree pass, indexed like Graph.Nodes().
type DegreeResult struct {
	Degree    []int
	InDegree  []int
	OutDegree []int
}

// CentralityResult holds the output of the path-based passes, indexed like Graph.Nodes().
type CentralityResult struct {
	Closeness   []float64
	Betweenness []float64
	PageRank    []float64
	Sampled     bool // Betweenness was estimated from a subset of sources
}

// CommunityResult holds the output of a community detection pass.
type CommunityResult struct {
	Labels     []int   // Dense labels 0..Count-1, indexed like Graph.Nodes()
	Count      int     // Number of distinct communities
	Modularity float64 // Weighted modularity Q of the partition
	Iterations int
	Seed       int64
}

type edgeKey struct {
	source string
	target string
}

// Graph holds the nodes and weighted edges derived from a record collection.
// Node and edge order is insertion order, so lists are stable across runs.
type Graph struct {
	directed  bool
	nodes     []*Node
	nodeIndex map[string]int
	edges     []*Edge
	edgeIndex map[edgeKey]int

	communityCount int
	modularity     float64
}

// NewGraph creates a new empty graph.
func NewGraph(directed bool) *Graph {
	return &Graph{
		directed:  directed,
		nodes:     make([]*Node, 0),
		nodeIndex: make(map[string]int),
		edges:     make([]*Edge, 0),
		edgeIndex: make(map[edgeKey]int),
	}
}

// Directed reports whether edges are keyed by ordered pairs.
func (g *Graph) Directed() bool {
	return g.directed
}

// AddNode adds a node if its ID is new. Existing nodes keep their name and group.
// It returns true when the node was created.
func (g *Graph) AddNode(id, name, group string) bool {
	if _, exists := g.nodeIndex[id]; exists {
		return false
	}
	g.nodeIndex[id] = len(g.nodes)
	g.nodes = append(g.nodes, &Node{ID: id, Name: name, Group: group})
	return true
}

// AddEdge records one co-occurrence between source and target.
// Repeated pairs increment the weight of the existing edge. Self-loops and
// unknown endpoints are rejected with false.
func (g *Graph) AddEdge(source, target string, typ EdgeType) bool {
	if source == target {
		return false
	}
	if _, ok := g.nodeIndex[source]; !ok {
		return false
	}
	if _, ok := g.nodeIndex[target]; !ok {
		return false
	}

	if !g.directed && target < source {
		source, target = target, source
	}
	key := edgeKey{source: source, target: target}

	if idx, exists := g.edgeIndex[key]; exists {
		g.edges[idx].Weight++
		return true
	}
	g.edgeIndex[key] = len(g.edges)
	g.edges = append(g.edges, &Edge{Source: source, Target: target, Weight: 1, Type: typ})
	return true
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// IndexOf returns the position of a node in Nodes(), or -1.
func (g *Graph) IndexOf(id string) int {
	if idx, ok := g.nodeIndex[id]; ok {
		return idx
	}
	return -1
}

// Node returns a copy of the node with the given ID.
func (g *Graph) Node(id string) (Node, bool) {
	idx, ok := g.nodeIndex[id]
	if !ok {
		return Node{}, false
	}
	return *g.nodes[idx], true
}

// Edge returns a copy of the edge between two nodes. For undirected graphs
// the argument order does not matter.
func (g *Graph) Edge(source, target string) (Edge, bool) {
	if !g.directed && target < source {
		source, target = target, source
	}
	idx, ok := g.edgeIndex[edgeKey{source: source, target: target}]
	if !ok {
		return Edge{}, false
	}
	return *g.edges[idx], true
}

// Nodes returns copies of all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	nodes := make([]Node, len(g.nodes))
	for i, n := range g.nodes {
		nodes[i] = *n
	}
	return nodes
}

// Edges returns copies of all edges in insertion order.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, len(g.edges))
	for i, e := range g.edges {
		edges[i] = *e
	}
	return edges
}

// CommunityCount returns the number of communities from the last applied pass.
func (g *Graph) CommunityCount() int {
	return g.communityCount
}

// Modularity returns the modularity from the last applied community pass.
func (g *Graph) Modularity() float64 {
	return g.modularity
}

// Adjacency returns, for every node index, the sorted indices of its neighbors
// with edge direction ignored.
func (g *Graph) Adjacency() [][]int {
	return g.adjacency(false)
}

// OutAdjacency returns, for every node index, the sorted indices of the nodes
// it links to. For undirected graphs it equals Adjacency.
func (g *Graph) OutAdjacency() [][]int {
	return g.adjacency(g.directed)
}

func (g *Graph) adjacency(followDirection bool) [][]int {
	sets := make([]map[int]bool, len(g.nodes))
	for i := range sets {
		sets[i] = make(map[int]bool)
	}
	for _, e := range g.edges {
		s, t := g.nodeIndex[e.Source], g.nodeIndex[e.Target]
		sets[s][t] = true
		if !followDirection {
			sets[t][s] = true
		}
	}

	adj := make([][]int, len(g.nodes))
	for i, set := range sets {
		neighbors := make([]int, 0, len(set))
		for n := range set {
			neighbors = append(neighbors, n)
		}
		sort.Ints(neighbors)
		adj[i] = neighbors
	}
	return adj
}

// Undirected returns a gonum view of the graph with node IDs equal to node
// indices. Reciprocal directed edges are merged and their weights summed.
func (g *Graph) Undirected() *simple.WeightedUndirectedGraph {
	ug := simple.NewWeightedUndirectedGraph(0, 0)
	for i := range g.nodes {
		ug.AddNode(simple.Node(int64(i)))
	}
	for _, e := range g.edges {
		s, t := int64(g.nodeIndex[e.Source]), int64(g.nodeIndex[e.Target])
		weight := float64(e.Weight)
		if existing := ug.WeightedEdge(s, t); existing != nil {
			weight += existing.Weight()
		}
		ug.SetWeightedEdge(ug.NewWeightedEdge(simple.Node(s), simple.Node(t), weight))
	}
	return ug
}

// DirectedView returns a gonum view with node IDs equal to node indices.
// Undirected edges appear in both directions.
func (g *Graph) DirectedView() *simple.WeightedDirectedGraph {
	dg := simple.NewWeightedDirectedGraph(0, 0)
	for i := range g.nodes {
		dg.AddNode(simple.Node(int64(i)))
	}
	for _, e := range g.edges {
		s, t := simple.Node(int64(g.nodeIndex[e.Source])), simple.Node(int64(g.nodeIndex[e.Target]))
		dg.SetWeightedEdge(dg.NewWeightedEdge(s, t, float64(e.Weight)))
		if !g.directed {
			dg.SetWeightedEdge(dg.NewWeightedEdge(t, s, float64(e.Weight)))
		}
	}
	return dg
}

// ResetMetrics zeroes every node's metrics bag.
func (g *Graph) ResetMetrics() {
	for _, n := range g.nodes {
		n.Metrics = Metrics{}
	}
	g.communityCount = 0
	g.modularity = 0
}

// ApplyDegree writes a degree pass into the metrics bags.
func (g *Graph) ApplyDegree(r DegreeResult) error {
	if err := g.checkSize("degree", len(r.Degree), len(r.InDegree), len(r.OutDegree)); err != nil {
		return err
	}
	for i, n := range g.nodes {
		n.Degree = r.Degree[i]
		n.InDegree = r.InDegree[i]
		n.OutDegree = r.OutDegree[i]
	}
	return nil
}

// ApplyCentrality writes closeness, betweenness and PageRank into the metrics bags.
func (g *Graph) ApplyCentrality(r CentralityResult) error {
	if err := g.checkSize("centrality", len(r.Closeness), len(r.Betweenness), len(r.PageRank)); err != nil {
		return err
	}
	for i, n := range g.nodes {
		n.Closeness = r.Closeness[i]
		n.Betweenness = r.Betweenness[i]
		n.PageRank = r.PageRank[i]
	}
	return nil
}

// ApplyCommunities writes community labels into the metrics bags.
func (g *Graph) ApplyCommunities(r CommunityResult) error {
	if err := g.checkSize("community", len(r.Labels)); err != nil {
		return err
	}
	for i, n := range g.nodes {
		n.Community = r.Labels[i]
	}
	g.communityCount = r.Count
	g.modularity = r.Modularity
	return nil
}

func (g *Graph) checkSize(pass string, sizes ...int) error {
	for _, size := range sizes {
		if size != len(g.nodes) {
			return fmt.Errorf("%w: %s pass has %d entries for %d nodes", ErrResultSize, pass, size, len(g.nodes))
		}
	}
	return nil
}
