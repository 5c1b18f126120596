package centrality

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/ritzau/translation-network/pkg/model"
)

// Betweenness computes Brandes betweenness over unweighted shortest paths.
// The sum over all sources is scaled by 1/((n-1)(n-2)) for directed graphs
// and 2/((n-1)(n-2)) for undirected ones, and left raw when n <= 2. Above opts.SampleThreshold nodes only a seeded
// random fraction of sources is traversed and the result is scaled by n/k.
func Betweenness(ctx context.Context, g *model.Graph, opts Options) ([]float64, error) {
	scores, _, err := betweenness(ctx, g.Adjacency(), opts)
	return scores, err
}

func betweenness(ctx context.Context, adj [][]int, opts Options) ([]float64, bool, error) {
	n := len(adj)
	scores := make([]float64, n)
	if n == 0 {
		return scores, false, nil
	}

	sources, sampled := selectSources(n, opts)
	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = len(sources)
	}

	var (
		sigma = make([]float64, n)
		dist  = make([]int, n)
		delta = make([]float64, n)
		pred  = make([][]int, n)
		order = make([]int, 0, n)
	)

	for i, s := range sources {
		if i%chunk == 0 {
			if err := ctx.Err(); err != nil {
				return nil, sampled, fmt.Errorf("betweenness interrupted after %d of %d sources: %w", i, len(sources), err)
			}
		}

		for v := 0; v < n; v++ {
			sigma[v] = 0
			dist[v] = -1
			delta[v] = 0
			pred[v] = pred[v][:0]
		}
		sigma[s] = 1
		dist[s] = 0
		order = append(order[:0], s)

		// BFS; order doubles as the queue and the finish order
		for head := 0; head < len(order); head++ {
			v := order[head]
			for _, w := range adj[v] {
				if dist[w] < 0 {
					dist[w] = dist[v] + 1
					order = append(order, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					pred[w] = append(pred[w], v)
				}
			}
		}

		for i := len(order) - 1; i >= 0; i-- {
			w := order[i]
			for _, v := range pred[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != s {
				scores[w] += delta[w]
			}
		}
	}

	scale := 1.0
	if sampled {
		scale = float64(n) / float64(len(sources))
	}
	if n > 2 {
		factor := 1.0
		if !opts.Directed {
			factor = 2.0
		}
		scale *= factor / float64((n-1)*(n-2))
	}
	for i := range scores {
		scores[i] *= scale
	}
	return scores, sampled, nil
}

// selectSources returns every node, or a seeded sample of ceil(fraction*n)
// nodes when n exceeds the sampling threshold.
func selectSources(n int, opts Options) ([]int, bool) {
	if opts.SampleThreshold <= 0 || n <= opts.SampleThreshold || opts.SampleFraction <= 0 || opts.SampleFraction >= 1 {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, false
	}

	k := int(math.Ceil(opts.SampleFraction * float64(n)))
	if k < 1 {
		k = 1
	}
	perm := rand.New(rand.NewSource(opts.SampleSeed)).Perm(n)
	return perm[:k], true
}
