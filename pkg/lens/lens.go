// Package lens narrows an analysed network to the part a reader is looking
// at: the neighbourhood of a few focus nodes, selected groups, or edges
// above a weight floor.
package lens

import (
	"fmt"
	"slices"

	"github.com/ritzau/translation-network/pkg/export"
	"github.com/ritzau/translation-network/pkg/model"
)

// Unlimited disables the distance cut-off.
const Unlimited = -1

// Config defines how graph nodes and edges should be filtered.
type Config struct {
	// Focus holds node IDs or bare group names. A group name selects every
	// node of that group.
	Focus       []string         `json:"focus,omitempty"`
	MaxDistance int              `json:"maxDistance"` // Hops from the focus, Unlimited for no limit
	Groups      []string         `json:"groups,omitempty"`
	EdgeTypes   []model.EdgeType `json:"edgeTypes,omitempty"`
	MinWeight   int              `json:"minWeight,omitempty"`
}

// DefaultConfig shows the whole network.
func DefaultConfig() Config {
	return Config{MaxDistance: Unlimited}
}

// Validate rejects settings no view can satisfy.
func (c Config) Validate() error {
	if c.MaxDistance < Unlimited {
		return fmt.Errorf("maxDistance %d: must be %d or larger", c.MaxDistance, Unlimited)
	}
	if c.MinWeight < 0 {
		return fmt.Errorf("minWeight %d: must not be negative", c.MinWeight)
	}
	for _, t := range c.EdgeTypes {
		if _, err := model.ParseEdgeType(string(t)); err != nil {
			return err
		}
	}
	return nil
}

// View is the filtered network together with each visible node's distance
// from the focus. Distances are empty when no focus was given.
type View struct {
	Graph     export.GraphData `json:"graph"`
	Distances map[string]int   `json:"distances,omitempty"`
}

// Apply filters data through cfg. Edge filters run before distances are
// measured, so hidden edges do not shorten paths.
func Apply(data export.GraphData, cfg Config) (View, error) {
	if err := cfg.Validate(); err != nil {
		return View{}, err
	}

	edges := make([]model.Edge, 0, len(data.Edges))
	for _, e := range data.Edges {
		if e.Weight < cfg.MinWeight {
			continue
		}
		if len(cfg.EdgeTypes) > 0 && !slices.Contains(cfg.EdgeTypes, e.Type) {
			continue
		}
		edges = append(edges, e)
	}
	filtered := export.GraphData{Directed: data.Directed, Nodes: data.Nodes, Edges: edges}

	var distances map[string]int
	if len(cfg.Focus) > 0 {
		distances = ComputeDistances(filtered, cfg.Focus)
	}

	visible := make(map[string]bool, len(data.Nodes))
	nodes := make([]model.Node, 0, len(data.Nodes))
	for _, n := range data.Nodes {
		if len(cfg.Groups) > 0 && !slices.Contains(cfg.Groups, n.Group) {
			continue
		}
		if distances != nil {
			d, reached := distances[n.ID]
			if !reached || (cfg.MaxDistance != Unlimited && d > cfg.MaxDistance) {
				continue
			}
		}
		visible[n.ID] = true
		nodes = append(nodes, n)
	}

	kept := make([]model.Edge, 0, len(edges))
	for _, e := range edges {
		if visible[e.Source] && visible[e.Target] {
			kept = append(kept, e)
		}
	}
	for id := range distances {
		if !visible[id] {
			delete(distances, id)
		}
	}

	return View{
		Graph:     export.GraphData{Directed: data.Directed, Nodes: nodes, Edges: kept},
		Distances: distances,
	}, nil
}
