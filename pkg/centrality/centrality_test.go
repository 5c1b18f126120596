package centrality

import (
	"context"
	"errors"
	"testing"

	"github.com/ritzau/translation-network/pkg/graph"
	"github.com/ritzau/translation-network/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-9

func newGraph(directed bool, ids []string, edges [][2]string) *model.Graph {
	g := model.NewGraph(directed)
	for _, id := range ids {
		g.AddNode(id, id, "custom")
	}
	for _, e := range edges {
		g.AddEdge(e[0], e[1], model.EdgeCustom)
	}
	return g
}

func star() *model.Graph {
	return newGraph(false,
		[]string{"hub", "l1", "l2", "l3", "l4", "l5"},
		[][2]string{{"hub", "l1"}, {"hub", "l2"}, {"hub", "l3"}, {"hub", "l4"}, {"hub", "l5"}},
	)
}

func metricsByID(g *model.Graph) map[string]model.Metrics {
	out := make(map[string]model.Metrics)
	for _, n := range g.Nodes() {
		out[n.ID] = n.Metrics
	}
	return out
}

func TestCompute_Star(t *testing.T) {
	g, err := Compute(context.Background(), star(), DefaultOptions())
	require.NoError(t, err)
	m := metricsByID(g)

	hub := m["hub"]
	// 20 ordered leaf pairs through the hub, times 2/((n-1)(n-2)) = 2/20
	assert.InDelta(t, 2.0, hub.Betweenness, tolerance)
	assert.InDelta(t, 1.0, hub.Closeness, tolerance)
	assert.Equal(t, 5, hub.Degree)

	for _, leaf := range []string{"l1", "l2", "l3", "l4", "l5"} {
		assert.Zero(t, m[leaf].Betweenness, leaf)
		assert.InDelta(t, 5.0/9.0, m[leaf].Closeness, tolerance, leaf)
		assert.Equal(t, 1, m[leaf].Degree, leaf)
		assert.Greater(t, hub.Betweenness, m[leaf].Betweenness)
		assert.Greater(t, hub.PageRank, m[leaf].PageRank)
	}
}

func TestCompute_ScenarioDegree(t *testing.T) {
	records := []model.Record{
		{Fields: map[string]string{"author": "A", "translator": "T", "publisher": "P1"}},
		{Fields: map[string]string{"author": "A", "translator": "T", "publisher": "P2"}},
		{Fields: map[string]string{"author": "B", "translator": "T", "publisher": "P1"}},
	}
	g, err := graph.Build(records, graph.DefaultBuildConfig())
	require.NoError(t, err)

	g, err = Compute(context.Background(), g, DefaultOptions())
	require.NoError(t, err)
	m := metricsByID(g)

	assert.Equal(t, 6, m["translator:t"].Degree)
	for id, metrics := range m {
		if id != "translator:t" {
			assert.Less(t, metrics.Degree, 6, id)
		}
	}
}

func TestDegree_UndirectedSumIsEven(t *testing.T) {
	g := newGraph(false, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"a", "b"}, {"b", "c"}})

	result := Degree(g, false)
	sum := 0
	for i, d := range result.Degree {
		sum += d
		assert.Equal(t, result.InDegree[i], result.OutDegree[i])
	}
	assert.Equal(t, 0, sum%2)
	assert.Equal(t, []int{2, 3, 1}, result.Degree)
}

func TestDegree_DirectedInEqualsOut(t *testing.T) {
	g := newGraph(true, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"a", "b"}, {"b", "c"}, {"c", "a"}})

	result := Degree(g, true)
	in, out := 0, 0
	for i := range result.Degree {
		in += result.InDegree[i]
		out += result.OutDegree[i]
		assert.Equal(t, result.InDegree[i]+result.OutDegree[i], result.Degree[i])
	}
	assert.Equal(t, in, out)
	assert.Equal(t, 2, result.OutDegree[0])
	assert.Equal(t, 1, result.InDegree[0])
}

func TestBetweenness_CompleteGraphIsZero(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	var edges [][2]string
	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			edges = append(edges, [2]string{ids[i], ids[j]})
		}
	}
	scores, err := Betweenness(context.Background(), newGraph(false, ids, edges), DefaultOptions())
	require.NoError(t, err)
	for _, s := range scores {
		assert.Zero(t, s)
	}
}

func TestBetweenness_PathMiddle(t *testing.T) {
	g := newGraph(false, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}})
	scores, err := Betweenness(context.Background(), g, DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, 0.0, scores[0], tolerance)
	assert.InDelta(t, 2.0, scores[1], tolerance)
	assert.InDelta(t, 0.0, scores[2], tolerance)
}

func TestBetweenness_NormalisationFollowsMode(t *testing.T) {
	ids := []string{"hub", "l1", "l2", "l3", "l4", "l5"}
	edges := [][2]string{{"hub", "l1"}, {"hub", "l2"}, {"hub", "l3"}, {"hub", "l4"}, {"hub", "l5"}}

	undirected, err := Betweenness(context.Background(), newGraph(false, ids, edges), DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, 2.0, undirected[0], tolerance)

	opts := DefaultOptions()
	opts.Directed = true
	directed, err := Betweenness(context.Background(), newGraph(true, ids, edges), opts)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, directed[0], tolerance)
	for i := 1; i < len(ids); i++ {
		assert.Zero(t, undirected[i], ids[i])
		assert.Zero(t, directed[i], ids[i])
	}
}

func TestBetweenness_TwoNodesStayRaw(t *testing.T) {
	g := newGraph(false, []string{"a", "b"}, [][2]string{{"a", "b"}})
	scores, err := Betweenness(context.Background(), g, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, scores)
}

func TestBetweenness_IgnoresDirection(t *testing.T) {
	forward := newGraph(true, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}})
	backward := newGraph(true, []string{"a", "b", "c"}, [][2]string{{"b", "a"}, {"c", "b"}})

	opts := DefaultOptions()
	opts.Directed = true
	f, err := Betweenness(context.Background(), forward, opts)
	require.NoError(t, err)
	b, err := Betweenness(context.Background(), backward, opts)
	require.NoError(t, err)
	assert.Equal(t, f, b)
}

func TestBetweenness_SamplingIsDeterministic(t *testing.T) {
	ids := []string{"n0", "n1", "n2", "n3", "n4", "n5", "n6", "n7", "n8", "n9"}
	var edges [][2]string
	for i := 0; i+1 < len(ids); i++ {
		edges = append(edges, [2]string{ids[i], ids[i+1]})
	}
	g := newGraph(false, ids, edges)

	opts := DefaultOptions()
	opts.SampleThreshold = 5
	opts.SampleFraction = 0.5
	opts.SampleSeed = 7

	first, sampled, err := betweenness(context.Background(), g.Adjacency(), opts)
	require.NoError(t, err)
	assert.True(t, sampled)

	second, _, err := betweenness(context.Background(), g.Adjacency(), opts)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	sources, _ := selectSources(len(ids), opts)
	assert.Len(t, sources, 5)
}

func TestBetweenness_BelowThresholdIsExact(t *testing.T) {
	_, sampled := selectSources(10, DefaultOptions())
	assert.False(t, sampled)
}

func TestBetweenness_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := DefaultOptions()
	opts.ChunkSize = 1
	_, err := Betweenness(ctx, star(), opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestClosenessIsolatedNode(t *testing.T) {
	g := newGraph(false, []string{"a", "b", "lonely"}, [][2]string{{"a", "b"}})
	scores := Closeness(g)
	assert.InDelta(t, 1.0, scores[0], tolerance)
	assert.InDelta(t, 1.0, scores[1], tolerance)
	assert.Zero(t, scores[2])
}

func TestPageRank_SumsToOne(t *testing.T) {
	tests := []struct {
		name     string
		directed bool
		g        *model.Graph
	}{
		{"star", false, star()},
		{"chain with sink", true, newGraph(true, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}})},
		{"isolated nodes", false, newGraph(false, []string{"a", "b", "c", "d"}, [][2]string{{"a", "b"}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Directed = tt.directed
			sum := 0.0
			for _, r := range PageRank(tt.g, opts) {
				assert.GreaterOrEqual(t, r, 0.0)
				sum += r
			}
			assert.InDelta(t, 1.0, sum, 1e-6)
		})
	}
}

func TestPageRank_DirectedSinkRanksHighest(t *testing.T) {
	g := newGraph(true, []string{"a", "b", "c"}, [][2]string{{"a", "c"}, {"b", "c"}})
	opts := DefaultOptions()
	opts.Directed = true
	ranks := PageRank(g, opts)
	assert.Greater(t, ranks[2], ranks[0])
	assert.InDelta(t, ranks[0], ranks[1], tolerance)
}

func TestCompute_EmptyAndSingleton(t *testing.T) {
	empty, err := Compute(context.Background(), model.NewGraph(false), DefaultOptions())
	require.NoError(t, err)
	assert.Zero(t, empty.NodeCount())

	single := newGraph(false, []string{"only"}, nil)
	single, err = Compute(context.Background(), single, DefaultOptions())
	require.NoError(t, err)
	m := metricsByID(single)["only"]
	assert.Zero(t, m.Degree)
	assert.Zero(t, m.Closeness)
	assert.Zero(t, m.Betweenness)
	assert.InDelta(t, 1.0, m.PageRank, tolerance)
}

func TestCompute_Idempotent(t *testing.T) {
	g := star()
	_, err := Compute(context.Background(), g, DefaultOptions())
	require.NoError(t, err)
	first := g.Nodes()

	_, err = Compute(context.Background(), g, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, first, g.Nodes())
}

func TestCompute_Errors(t *testing.T) {
	_, err := Compute(context.Background(), nil, DefaultOptions())
	assert.ErrorIs(t, err, model.ErrNilGraph)

	opts := DefaultOptions()
	opts.PageRankIterations = -1
	_, err = Compute(context.Background(), star(), opts)
	assert.ErrorIs(t, err, model.ErrNegativeIterations)
}
