package engine

import (
	"context"

	"github.com/ritzau/translation-network/pkg/centrality"
	"github.com/ritzau/translation-network/pkg/community"
	"github.com/ritzau/translation-network/pkg/graph"
	"github.com/ritzau/translation-network/pkg/model"
)

// BuildGraph builds the co-occurrence graph for records.
func BuildGraph(records []model.Record, cfg graph.BuildConfig) (*model.Graph, error) {
	return graph.Build(records, cfg)
}

// ComputeMetrics recomputes degree, closeness, betweenness and PageRank in
// place with the default tuning and returns g.
func ComputeMetrics(g *model.Graph, directed bool) (*model.Graph, error) {
	opts := centrality.DefaultOptions()
	opts.Directed = directed
	return centrality.Compute(context.Background(), g, opts)
}

// DetectCommunities labels g in place. A nil seed draws fresh randomness.
func DetectCommunities(g *model.Graph, iterations int, seed *int64) (*model.Graph, error) {
	g, _, err := community.Detect(g, community.Options{Iterations: iterations, Seed: seed})
	return g, err
}
