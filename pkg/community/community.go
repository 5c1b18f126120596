// Package community assigns community labels by label propagation.
//
// Visit order and tie-breaking are random. Setting a seed makes a run
// reproducible, zero included; leaving it unset draws one from the clock.
package community

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/graph"
	gcommunity "gonum.org/v1/gonum/graph/community"

	"github.com/ritzau/translation-network/pkg/logging"
	"github.com/ritzau/translation-network/pkg/model"
)

// DefaultIterations is the label propagation sweep budget.
const DefaultIterations = 5

// Options controls a detection run.
type Options struct {
	Iterations int
	Seed       *int64 // nil draws a fresh seed
}

// DefaultOptions returns five sweeps with fresh randomness.
func DefaultOptions() Options {
	return Options{Iterations: DefaultIterations}
}

// WithSeed returns a copy of o fixed to seed.
func (o Options) WithSeed(seed int64) Options {
	o.Seed = &seed
	return o
}

// Detect labels every node of g and writes the dense labels into the metrics
// bags together with the partition's modularity.
func Detect(g *model.Graph, opts Options) (*model.Graph, model.CommunityResult, error) {
	result, err := Propagate(g, opts)
	if err != nil {
		return nil, model.CommunityResult{}, err
	}
	if err := g.ApplyCommunities(result); err != nil {
		return nil, model.CommunityResult{}, err
	}
	return g, result, nil
}

// Propagate runs label propagation without touching g.
func Propagate(g *model.Graph, opts Options) (model.CommunityResult, error) {
	if g == nil {
		return model.CommunityResult{}, model.ErrNilGraph
	}
	if opts.Iterations < 0 {
		return model.CommunityResult{}, fmt.Errorf("label propagation with %d iterations: %w", opts.Iterations, model.ErrNegativeIterations)
	}

	start := time.Now()
	seed := time.Now().UnixNano()
	if opts.Seed != nil {
		seed = *opts.Seed
	}
	rng := rand.New(rand.NewSource(seed))

	adj := g.Adjacency()
	labels := make([]int, len(adj))
	for i := range labels {
		labels[i] = i
	}

	counts := make(map[int]int)
	candidates := make([]int, 0)
	for iter := 0; iter < opts.Iterations; iter++ {
		for _, v := range rng.Perm(len(adj)) {
			if len(adj[v]) == 0 {
				continue
			}

			clear(counts)
			best := 0
			for _, u := range adj[v] {
				counts[labels[u]]++
				best = max(best, counts[labels[u]])
			}

			candidates = candidates[:0]
			for label, c := range counts {
				if c == best {
					candidates = append(candidates, label)
				}
			}
			// Map order is random; sort so the seed alone decides the pick
			sort.Ints(candidates)
			labels[v] = candidates[rng.Intn(len(candidates))]
		}
	}

	dense, count := densify(labels)
	result := model.CommunityResult{
		Labels:     dense,
		Count:      count,
		Modularity: modularity(g, dense, count),
		Iterations: opts.Iterations,
		Seed:       seed,
	}

	logging.Debug("detected communities",
		"nodes", len(adj),
		"communities", count,
		"modularity", result.Modularity,
		"seed", seed,
		"durationMs", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// densify maps labels to 0..k-1 in order of first appearance.
func densify(labels []int) ([]int, int) {
	remap := make(map[int]int)
	dense := make([]int, len(labels))
	for i, label := range labels {
		id, ok := remap[label]
		if !ok {
			id = len(remap)
			remap[label] = id
		}
		dense[i] = id
	}
	return dense, len(remap)
}

// modularity scores the partition with gonum's weighted Q at resolution 1.
// Graphs without edges score 0.
func modularity(g *model.Graph, labels []int, count int) float64 {
	if g.EdgeCount() == 0 || count == 0 {
		return 0
	}

	ug := g.Undirected()
	partition := make([][]graph.Node, count)
	for i, label := range labels {
		partition[label] = append(partition[label], ug.Node(int64(i)))
	}

	q := gcommunity.Q(ug, partition, 1)
	if math.IsNaN(q) {
		return 0
	}
	return q
}
