package centrality

import "github.com/ritzau/translation-network/pkg/model"

// Degree sums incident edge weights per node.
//
// Directed: outDegree counts outgoing weight, inDegree incoming weight and
// degree is their sum. Undirected: every edge counts in both directions, so
// inDegree == outDegree and degree is that single counter.
func Degree(g *model.Graph, directed bool) model.DegreeResult {
	n := g.NodeCount()
	result := model.DegreeResult{
		Degree:    make([]int, n),
		InDegree:  make([]int, n),
		OutDegree: make([]int, n),
	}

	for _, e := range g.Edges() {
		s, t := g.IndexOf(e.Source), g.IndexOf(e.Target)
		result.OutDegree[s] += e.Weight
		result.InDegree[t] += e.Weight
		if !directed {
			result.OutDegree[t] += e.Weight
			result.InDegree[s] += e.Weight
		}
	}

	for i := range result.Degree {
		if directed {
			result.Degree[i] = result.InDegree[i] + result.OutDegree[i]
		} else {
			result.Degree[i] = result.OutDegree[i]
		}
	}
	return result
}
