package lens

import (
	"github.com/ritzau/translation-network/pkg/export"
)

// distanceQueueNode represents a node in the BFS queue
type distanceQueueNode struct {
	nodeID   string
	distance int
}

// expandFocus resolves focus entries into node IDs. An entry naming a node
// is kept as is; an entry naming a group, e.g. "translator" or
// "custom:genre", expands to every node of that group. Unknown entries are
// dropped.
func expandFocus(focus []string, graph export.GraphData) []string {
	ids := make(map[string]bool, len(graph.Nodes))
	groups := make(map[string][]string)
	for _, node := range graph.Nodes {
		ids[node.ID] = true
		groups[node.Group] = append(groups[node.Group], node.ID)
	}

	seen := make(map[string]bool)
	expanded := make([]string, 0, len(focus))
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			expanded = append(expanded, id)
		}
	}
	for _, entry := range focus {
		if ids[entry] {
			add(entry)
			continue
		}
		for _, id := range groups[entry] {
			add(id)
		}
	}
	return expanded
}

// ComputeDistances calculates the hop count from each node to the nearest
// focus node, ignoring edge direction. Unreachable nodes are absent from the
// result.
func ComputeDistances(graph export.GraphData, focus []string) map[string]int {
	distances := make(map[string]int)
	adjacency := buildAdjacencyList(graph)

	queue := []distanceQueueNode{}
	for _, nodeID := range expandFocus(focus, graph) {
		distances[nodeID] = 0
		queue = append(queue, distanceQueueNode{nodeID: nodeID, distance: 0})
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, neighbor := range adjacency[current.nodeID] {
			if _, exists := distances[neighbor]; !exists {
				newDistance := current.distance + 1
				distances[neighbor] = newDistance
				queue = append(queue, distanceQueueNode{nodeID: neighbor, distance: newDistance})
			}
		}
	}

	return distances
}

// buildAdjacencyList creates an undirected adjacency list from graph edges
func buildAdjacencyList(graph export.GraphData) map[string][]string {
	adjacency := make(map[string][]string)
	for _, edge := range graph.Edges {
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
		adjacency[edge.Target] = append(adjacency[edge.Target], edge.Source)
	}
	return adjacency
}
