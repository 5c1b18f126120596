package centrality

import "github.com/ritzau/translation-network/pkg/model"

// Closeness returns reachable / sum(distances) per node, using unweighted
// BFS over the direction-less adjacency. Nodes that reach nothing score 0.
func Closeness(g *model.Graph) []float64 {
	return closeness(g.Adjacency())
}

func closeness(adj [][]int) []float64 {
	n := len(adj)
	scores := make([]float64, n)
	dist := make([]int, n)
	queue := make([]int, 0, n)

	for v := 0; v < n; v++ {
		for i := range dist {
			dist[i] = -1
		}
		dist[v] = 0
		queue = append(queue[:0], v)

		reachable, total := 0, 0
		for head := 0; head < len(queue); head++ {
			current := queue[head]
			for _, next := range adj[current] {
				if dist[next] >= 0 {
					continue
				}
				dist[next] = dist[current] + 1
				reachable++
				total += dist[next]
				queue = append(queue, next)
			}
		}

		if reachable > 0 && total > 0 {
			scores[v] = float64(reachable) / float64(total)
		}
	}
	return scores
}
