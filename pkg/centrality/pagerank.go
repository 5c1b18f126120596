package centrality

import "github.com/ritzau/translation-network/pkg/model"

// PageRank runs synchronous power iteration starting from 1/n per node.
// Nodes without out-neighbors spread their rank uniformly over all nodes,
// so the total stays 1.
func PageRank(g *model.Graph, opts Options) []float64 {
	out := g.Adjacency()
	if opts.Directed {
		out = g.OutAdjacency()
	}
	return pageRank(out, opts.PageRankIterations, opts.Damping)
}

func pageRank(out [][]int, iterations int, damping float64) []float64 {
	n := len(out)
	rank := make([]float64, n)
	if n == 0 {
		return rank
	}

	size := float64(n)
	for i := range rank {
		rank[i] = 1 / size
	}

	next := make([]float64, n)
	for iter := 0; iter < iterations; iter++ {
		dangling := 0.0
		for v, neighbors := range out {
			if len(neighbors) == 0 {
				dangling += rank[v]
			}
		}

		base := (1-damping)/size + damping*dangling/size
		for i := range next {
			next[i] = base
		}
		for v, neighbors := range out {
			if len(neighbors) == 0 {
				continue
			}
			share := damping * rank[v] / float64(len(neighbors))
			for _, u := range neighbors {
				next[u] += share
			}
		}
		rank, next = next, rank
	}
	return rank
}
