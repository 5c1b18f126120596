package graph

import (
	"fmt"
	"time"

	"github.com/ritzau/translation-network/pkg/logging"
	"github.com/ritzau/translation-network/pkg/model"
	"github.com/ritzau/translation-network/pkg/resolve"
)

// BuildConfig selects which record attributes become entities and which
// co-occurrences become edges.
type BuildConfig struct {
	Entities  []model.AttributeKey `json:"entities"`
	Directed  bool                 `json:"directed"`
	EdgeTypes model.EdgeTypeSet    `json:"edgeTypes"` // nil enables every type
}

// DefaultBuildConfig returns the author/translator/publisher undirected configuration.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		Entities:  model.DefaultEntities(),
		Directed:  false,
		EdgeTypes: model.NewEdgeTypeSet(model.AllEdgeTypes()...),
	}
}

// BuildStats counts what the builder did with the pairs it saw.
type BuildStats struct {
	Records        int
	Entities       int
	Pairs          int
	SelfLoops      int
	FilteredByType int
}

// Build derives a weighted co-occurrence graph from records.
// Every pair of entities resolved from the same record (i before j) yields
// one increment on the edge between them.
func Build(records []model.Record, cfg BuildConfig) (*model.Graph, error) {
	g, _, err := BuildWithStats(records, cfg)
	return g, err
}

// BuildWithStats is Build, also returning pair statistics.
func BuildWithStats(records []model.Record, cfg BuildConfig) (*model.Graph, BuildStats, error) {
	var stats BuildStats
	if records == nil {
		return nil, stats, fmt.Errorf("building graph: %w", model.ErrNilRecords)
	}

	start := time.Now()
	keys := dedupeKeys(cfg.Entities)
	g := model.NewGraph(cfg.Directed)

	for _, rec := range records {
		stats.Records++
		entities := resolve.Resolve(rec, keys)
		stats.Entities += len(entities)

		// Nodes first so every edge endpoint exists
		for _, e := range entities {
			g.AddNode(e.ID, e.Name, e.Group)
		}

		for i := 0; i < len(entities); i++ {
			for j := i + 1; j < len(entities); j++ {
				stats.Pairs++
				source, target := entities[i], entities[j]

				edgeType := model.Classify(source.Group, target.Group)
				if cfg.EdgeTypes != nil && !cfg.EdgeTypes.Has(edgeType) {
					stats.FilteredByType++
					continue
				}
				if source.ID == target.ID {
					stats.SelfLoops++
					continue
				}
				g.AddEdge(source.ID, target.ID, edgeType)
			}
		}
	}

	logging.Debug("built co-occurrence graph",
		"records", stats.Records,
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"selfLoops", stats.SelfLoops,
		"filtered", stats.FilteredByType,
		"durationMs", time.Since(start).Milliseconds(),
	)

	return g, stats, nil
}

func dedupeKeys(keys []model.AttributeKey) []model.AttributeKey {
	seen := make(map[model.AttributeKey]bool, len(keys))
	out := make([]model.AttributeKey, 0, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
