package lens

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ritzau/translation-network/pkg/export"
	"github.com/ritzau/translation-network/pkg/model"
)

// GraphDiff represents the difference between two views
type GraphDiff struct {
	AddedNodes    []model.Node `json:"addedNodes"`
	RemovedNodes  []string     `json:"removedNodes"`  // Node IDs
	ModifiedNodes []model.Node `json:"modifiedNodes"` // Nodes whose name, group or metrics changed
	AddedEdges    []model.Edge `json:"addedEdges"`
	RemovedEdges  []string     `json:"removedEdges"`  // Edge keys (source|target|type)
	ModifiedEdges []model.Edge `json:"modifiedEdges"` // Edges whose weight changed
	FullGraph     bool         `json:"fullGraph"`     // True if this is a full graph, not a diff
}

// Empty reports whether the diff carries no change.
func (d *GraphDiff) Empty() bool {
	return !d.FullGraph &&
		len(d.AddedNodes) == 0 && len(d.RemovedNodes) == 0 && len(d.ModifiedNodes) == 0 &&
		len(d.AddedEdges) == 0 && len(d.RemovedEdges) == 0 && len(d.ModifiedEdges) == 0
}

// GraphSnapshot is an indexed view kept for diffing
type GraphSnapshot struct {
	Hash  string
	Nodes map[string]model.Node // nodeID -> node
	Edges map[string]model.Edge // edgeKey -> edge
}

// ComputeHash identifies a lens request on a given generation
func ComputeHash(generation uint64, cfg Config) string {
	data := struct {
		Generation uint64
		Config     Config
	}{generation, cfg}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%x", sha256.Sum256(jsonData))
}

// CreateSnapshot indexes graph for diffing under hash.
func CreateSnapshot(hash string, graph export.GraphData) *GraphSnapshot {
	snapshot := &GraphSnapshot{
		Hash:  hash,
		Nodes: make(map[string]model.Node, len(graph.Nodes)),
		Edges: make(map[string]model.Edge, len(graph.Edges)),
	}
	for _, node := range graph.Nodes {
		snapshot.Nodes[node.ID] = node
	}
	for _, edge := range graph.Edges {
		snapshot.Edges[edgeKey(edge)] = edge
	}
	return snapshot
}

// ComputeDiff computes the change from oldSnapshot to newGraph. Without an
// old snapshot the whole graph is returned as added. Lists are sorted so
// equal inputs give equal output.
func ComputeDiff(oldSnapshot *GraphSnapshot, newGraph export.GraphData) *GraphDiff {
	if oldSnapshot == nil {
		return &GraphDiff{
			AddedNodes: newGraph.Nodes,
			AddedEdges: newGraph.Edges,
			FullGraph:  true,
		}
	}

	diff := &GraphDiff{
		AddedNodes:    make([]model.Node, 0),
		RemovedNodes:  make([]string, 0),
		ModifiedNodes: make([]model.Node, 0),
		AddedEdges:    make([]model.Edge, 0),
		RemovedEdges:  make([]string, 0),
		ModifiedEdges: make([]model.Edge, 0),
	}

	newNodes := make(map[string]bool, len(newGraph.Nodes))
	for _, node := range newGraph.Nodes {
		newNodes[node.ID] = true
		oldNode, exists := oldSnapshot.Nodes[node.ID]
		switch {
		case !exists:
			diff.AddedNodes = append(diff.AddedNodes, node)
		case oldNode != node:
			diff.ModifiedNodes = append(diff.ModifiedNodes, node)
		}
	}
	for id := range oldSnapshot.Nodes {
		if !newNodes[id] {
			diff.RemovedNodes = append(diff.RemovedNodes, id)
		}
	}

	newEdges := make(map[string]bool, len(newGraph.Edges))
	for _, edge := range newGraph.Edges {
		key := edgeKey(edge)
		newEdges[key] = true
		oldEdge, exists := oldSnapshot.Edges[key]
		switch {
		case !exists:
			diff.AddedEdges = append(diff.AddedEdges, edge)
		case oldEdge.Weight != edge.Weight:
			diff.ModifiedEdges = append(diff.ModifiedEdges, edge)
		}
	}
	for key := range oldSnapshot.Edges {
		if !newEdges[key] {
			diff.RemovedEdges = append(diff.RemovedEdges, key)
		}
	}

	sort.Strings(diff.RemovedNodes)
	sort.Strings(diff.RemovedEdges)
	return diff
}

// edgeKey creates a unique key for an edge
func edgeKey(e model.Edge) string {
	return fmt.Sprintf("%s|%s|%s", e.Source, e.Target, e.Type)
}
