// Package metrics exposes read-only views over an analysed graph.
//
// Nothing here recomputes per-node metrics; the facade only reads what the
// centrality and community passes already wrote.
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/ritzau/translation-network/pkg/model"
	"github.com/ritzau/translation-network/pkg/structure"
)

// Metric names a single per-node value that can be ranked.
type Metric string

const (
	MetricDegree      Metric = "degree"
	MetricInDegree    Metric = "inDegree"
	MetricOutDegree   Metric = "outDegree"
	MetricCloseness   Metric = "closeness"
	MetricBetweenness Metric = "betweenness"
	MetricPageRank    Metric = "pageRank"
)

// AllMetrics lists the rankable metrics in display order.
var AllMetrics = []Metric{
	MetricDegree,
	MetricInDegree,
	MetricOutDegree,
	MetricCloseness,
	MetricBetweenness,
	MetricPageRank,
}

// ParseMetric accepts a metric name in any letter case.
func ParseMetric(s string) (Metric, error) {
	for _, m := range AllMetrics {
		if strings.EqualFold(string(m), strings.TrimSpace(s)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", model.ErrUnknownMetric, s)
}

// Value reads m from a metrics bag.
func (m Metric) Value(bag model.Metrics) float64 {
	switch m {
	case MetricDegree:
		return float64(bag.Degree)
	case MetricInDegree:
		return float64(bag.InDegree)
	case MetricOutDegree:
		return float64(bag.OutDegree)
	case MetricCloseness:
		return bag.Closeness
	case MetricBetweenness:
		return bag.Betweenness
	case MetricPageRank:
		return bag.PageRank
	}
	return 0
}

// Ranked is one entry of a top-K list.
type Ranked struct {
	Rank  int        `json:"rank"`
	Node  model.Node `json:"node"`
	Value float64    `json:"value"`
}

// View is a read-only facade over an analysed graph.
type View struct {
	g *model.Graph
}

// NewView wraps g.
func NewView(g *model.Graph) (*View, error) {
	if g == nil {
		return nil, model.ErrNilGraph
	}
	return &View{g: g}, nil
}

// Graph returns the wrapped graph.
func (v *View) Graph() *model.Graph {
	return v.g
}

// Nodes returns every node with its metrics attached.
func (v *View) Nodes() []model.Node {
	return v.g.Nodes()
}

// Edges returns every edge.
func (v *View) Edges() []model.Edge {
	return v.g.Edges()
}

// Density is edges / (n(n-1)), 0 when n <= 1.
func (v *View) Density() float64 {
	n := v.g.NodeCount()
	if n <= 1 {
		return 0
	}
	return float64(v.g.EdgeCount()) / float64(n*(n-1))
}

// AverageDegree is edges / n, 0 for an empty graph.
func (v *View) AverageDegree() float64 {
	n := v.g.NodeCount()
	if n == 0 {
		return 0
	}
	return float64(v.g.EdgeCount()) / float64(n)
}

// TopK ranks nodes by m, highest first, ties broken by ascending ID.
// k == 0 returns every node.
func (v *View) TopK(m Metric, k int) ([]Ranked, error) {
	if _, err := ParseMetric(string(m)); err != nil {
		return nil, err
	}
	if k < 0 {
		return nil, fmt.Errorf("top-k with k=%d: k must not be negative", k)
	}

	nodes := v.g.Nodes()
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := m.Value(nodes[i].Metrics), m.Value(nodes[j].Metrics)
		if a != b {
			return a > b
		}
		return nodes[i].ID < nodes[j].ID
	})

	if k == 0 || k > len(nodes) {
		k = len(nodes)
	}
	ranked := make([]Ranked, k)
	for i := 0; i < k; i++ {
		ranked[i] = Ranked{Rank: i + 1, Node: nodes[i], Value: m.Value(nodes[i].Metrics)}
	}
	return ranked, nil
}

// Components returns the connected components as lists of node IDs, with
// edge direction ignored. Components are ordered by their first node.
func (v *View) Components() [][]string {
	nodes := v.g.Nodes()
	components := topo.ConnectedComponents(v.g.Undirected())

	result := make([][]string, 0, len(components))
	for _, component := range components {
		indices := make([]int, 0, len(component))
		for _, n := range component {
			indices = append(indices, int(n.ID()))
		}
		sort.Ints(indices)

		ids := make([]string, len(indices))
		for i, idx := range indices {
			ids[i] = nodes[idx].ID
		}
		result = append(result, ids)
	}
	sort.Slice(result, func(i, j int) bool {
		return v.g.IndexOf(result[i][0]) < v.g.IndexOf(result[j][0])
	})
	return result
}

// Brokers returns the articulation points of the graph in node order.
func (v *View) Brokers() []model.Node {
	nodes := v.g.Nodes()
	cuts := structure.CutVertices(v.g.Undirected())

	brokers := make([]model.Node, 0, len(cuts))
	for _, id := range cuts {
		brokers = append(brokers, nodes[id])
	}
	return brokers
}

// ReciprocalClusters returns groups of nodes that reach each other along
// edge direction. Undirected graphs yield nil.
func (v *View) ReciprocalClusters() [][]string {
	if !v.g.Directed() {
		return nil
	}

	nodes := v.g.Nodes()
	var clusters [][]string
	for _, scc := range structure.ReciprocalClusters(v.g.DirectedView()) {
		ids := make([]string, len(scc))
		for i, idx := range scc {
			ids[i] = nodes[idx].ID
		}
		clusters = append(clusters, ids)
	}
	return clusters
}

// Summary holds graph-level aggregates.
type Summary struct {
	Nodes              int                    `json:"nodes"`
	Edges              int                    `json:"edges"`
	Directed           bool                   `json:"directed"`
	TotalWeight        int                    `json:"totalWeight"`
	Density            float64                `json:"density"`
	AverageDegree      float64                `json:"averageDegree"`
	Components         int                    `json:"components"`
	Communities        int                    `json:"communities"`
	Modularity         float64                `json:"modularity"`
	Brokers            int                    `json:"brokers"`
	ReciprocalClusters int                    `json:"reciprocalClusters"`
	MaxBetweenness     float64                `json:"maxBetweenness"`
	PageRankMass       float64                `json:"pageRankMass"`
	Groups             map[string]int         `json:"groups"`
	EdgeTypes          map[model.EdgeType]int `json:"edgeTypes"`
}

// Summary computes the graph-level aggregates.
func (v *View) Summary() Summary {
	s := Summary{
		Nodes:              v.g.NodeCount(),
		Edges:              v.g.EdgeCount(),
		Directed:           v.g.Directed(),
		Density:            v.Density(),
		AverageDegree:      v.AverageDegree(),
		Components:         len(v.Components()),
		Communities:        v.g.CommunityCount(),
		Modularity:         v.g.Modularity(),
		Brokers:            len(v.Brokers()),
		ReciprocalClusters: len(v.ReciprocalClusters()),
		Groups:             make(map[string]int),
		EdgeTypes:          make(map[model.EdgeType]int),
	}

	nodes := v.g.Nodes()
	betweenness := make([]float64, len(nodes))
	pageRank := make([]float64, len(nodes))
	for i, n := range nodes {
		s.Groups[n.Group]++
		betweenness[i] = n.Betweenness
		pageRank[i] = n.PageRank
	}
	if len(nodes) > 0 {
		s.MaxBetweenness = floats.Max(betweenness)
		s.PageRankMass = floats.Sum(pageRank)
	}

	for _, e := range v.g.Edges() {
		s.EdgeTypes[e.Type]++
		s.TotalWeight += e.Weight
	}
	return s
}
