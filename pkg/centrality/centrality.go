// Package centrality computes degree, closeness, betweenness and PageRank
// over a built co-occurrence graph.
//
// Closeness and betweenness use unweighted shortest paths with edge
// direction ignored. PageRank follows edge direction when the graph is
// analysed as directed.
package centrality

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ritzau/translation-network/pkg/logging"
	"github.com/ritzau/translation-network/pkg/model"
)

// Options tunes the centrality passes.
type Options struct {
	Directed bool

	PageRankIterations int
	Damping            float64

	// SampleThreshold is the node count above which betweenness is estimated
	// from a sample of sources. Zero disables sampling.
	SampleThreshold int
	SampleFraction  float64
	SampleSeed      int64

	// ChunkSize is the number of betweenness sources processed between
	// context checks.
	ChunkSize int
}

// DefaultOptions returns the reference configuration.
func DefaultOptions() Options {
	return Options{
		PageRankIterations: 20,
		Damping:            0.85,
		SampleThreshold:    2000,
		SampleFraction:     0.2,
		SampleSeed:         1,
		ChunkSize:          64,
	}
}

// Validate rejects option values that cannot produce a meaningful result.
func (o Options) Validate() error {
	if o.PageRankIterations < 0 {
		return fmt.Errorf("pagerank: %w", model.ErrNegativeIterations)
	}
	if o.Damping < 0 || o.Damping > 1 {
		return fmt.Errorf("pagerank damping %v outside [0, 1]", o.Damping)
	}
	if o.SampleThreshold < 0 {
		return fmt.Errorf("betweenness sample threshold %d is negative", o.SampleThreshold)
	}
	if o.SampleFraction < 0 || o.SampleFraction > 1 {
		return fmt.Errorf("betweenness sample fraction %v outside [0, 1]", o.SampleFraction)
	}
	return nil
}

// Analyze runs every pass and returns the results without touching g.
// Closeness, betweenness and PageRank only read the adjacency lists and run
// concurrently.
func Analyze(ctx context.Context, g *model.Graph, opts Options) (model.DegreeResult, model.CentralityResult, error) {
	if g == nil {
		return model.DegreeResult{}, model.CentralityResult{}, model.ErrNilGraph
	}
	if err := opts.Validate(); err != nil {
		return model.DegreeResult{}, model.CentralityResult{}, err
	}

	degree := Degree(g, opts.Directed)

	adj := g.Adjacency()
	out := adj
	if opts.Directed {
		out = g.OutAdjacency()
	}

	var result model.CentralityResult
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		between, sampled, err := betweenness(egCtx, adj, opts)
		result.Betweenness, result.Sampled = between, sampled
		return err
	})
	eg.Go(func() error {
		result.Closeness = closeness(adj)
		return nil
	})
	eg.Go(func() error {
		result.PageRank = pageRank(out, opts.PageRankIterations, opts.Damping)
		return nil
	})
	if err := eg.Wait(); err != nil {
		return model.DegreeResult{}, model.CentralityResult{}, err
	}
	return degree, result, nil
}

// Compute recomputes every metric from scratch and writes them into g's
// metrics bags. Community labels are left untouched.
func Compute(ctx context.Context, g *model.Graph, opts Options) (*model.Graph, error) {
	start := time.Now()
	degree, result, err := Analyze(ctx, g, opts)
	if err != nil {
		return nil, fmt.Errorf("computing centrality: %w", err)
	}
	if err := g.ApplyDegree(degree); err != nil {
		return nil, err
	}
	if err := g.ApplyCentrality(result); err != nil {
		return nil, err
	}

	logging.DebugContext(ctx, "computed centrality",
		"nodes", g.NodeCount(),
		"directed", opts.Directed,
		"sampled", result.Sampled,
		"durationMs", time.Since(start).Milliseconds(),
	)
	return g, nil
}
