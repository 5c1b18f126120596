package community

import (
	"math"
	"testing"

	"github.com/ritzau/translation-network/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoTriangles() *model.Graph {
	g := model.NewGraph(false)
	for _, id := range []string{"a1", "a2", "a3", "b1", "b2", "b3"} {
		g.AddNode(id, id, "custom")
	}
	for _, e := range [][2]string{
		{"a1", "a2"}, {"a2", "a3"}, {"a1", "a3"},
		{"b1", "b2"}, {"b2", "b3"}, {"b1", "b3"},
	} {
		g.AddEdge(e[0], e[1], model.EdgeCustom)
	}
	return g
}

func TestDetect_ComponentsNeverShareLabels(t *testing.T) {
	g, result, err := Detect(twoTriangles(), Options{Iterations: 5}.WithSeed(42))
	require.NoError(t, err)

	labels := make(map[string]int)
	for _, n := range g.Nodes() {
		labels[n.ID] = n.Community
	}
	for _, a := range []string{"a1", "a2", "a3"} {
		for _, b := range []string{"b1", "b2", "b3"} {
			assert.NotEqual(t, labels[a], labels[b], "%s and %s are disconnected", a, b)
		}
	}

	assert.GreaterOrEqual(t, result.Count, 2)
	assert.LessOrEqual(t, result.Count, 6)
	assert.Equal(t, result.Count, g.CommunityCount())
	for _, label := range result.Labels {
		assert.GreaterOrEqual(t, label, 0)
		assert.Less(t, label, result.Count)
	}
}

func TestDetect_SeedIsReproducible(t *testing.T) {
	first, err := Propagate(twoTriangles(), Options{Iterations: 5}.WithSeed(7))
	require.NoError(t, err)
	second, err := Propagate(twoTriangles(), Options{Iterations: 5}.WithSeed(7))
	require.NoError(t, err)

	assert.Equal(t, first.Labels, second.Labels)
	assert.Equal(t, int64(7), first.Seed)
}

func TestDetect_ZeroIsAReproducibleSeed(t *testing.T) {
	opts := DefaultOptions().WithSeed(0)
	first, err := Propagate(twoTriangles(), opts)
	require.NoError(t, err)
	second, err := Propagate(twoTriangles(), opts)
	require.NoError(t, err)
	assert.Equal(t, first.Labels, second.Labels)
	assert.Equal(t, int64(0), first.Seed)
	assert.Equal(t, int64(0), second.Seed)
}

func TestDetect_UnsetSeedRecordsDrawnSeed(t *testing.T) {
	result, err := Propagate(twoTriangles(), DefaultOptions())
	require.NoError(t, err)
	assert.NotZero(t, result.Seed)
	assert.Equal(t, DefaultIterations, result.Iterations)
}

func TestDetect_DisconnectedNodesKeepOwnCommunity(t *testing.T) {
	g := model.NewGraph(false)
	for _, id := range []string{"x", "y", "z"} {
		g.AddNode(id, id, "custom")
	}

	result, err := Propagate(g, Options{Iterations: 5}.WithSeed(1))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Count)
	assert.Equal(t, []int{0, 1, 2}, result.Labels)
	assert.Zero(t, result.Modularity)
}

func TestDetect_ZeroIterationsKeepsSingletons(t *testing.T) {
	result, err := Propagate(twoTriangles(), Options{Iterations: 0}.WithSeed(1))
	require.NoError(t, err)
	assert.Equal(t, 6, result.Count)
	assert.False(t, math.IsNaN(result.Modularity))
}

func TestDetect_EmptyGraph(t *testing.T) {
	result, err := Propagate(model.NewGraph(false), Options{Iterations: 5}.WithSeed(1))
	require.NoError(t, err)
	assert.Zero(t, result.Count)
	assert.Empty(t, result.Labels)
}

func TestDetect_Errors(t *testing.T) {
	_, _, err := Detect(nil, DefaultOptions())
	assert.ErrorIs(t, err, model.ErrNilGraph)

	_, _, err = Detect(twoTriangles(), Options{Iterations: -1})
	assert.ErrorIs(t, err, model.ErrNegativeIterations)
}

func TestModularity_TwoCliques(t *testing.T) {
	g := twoTriangles()
	q := modularity(g, []int{0, 0, 0, 1, 1, 1}, 2)
	assert.InDelta(t, 0.5, q, 1e-9)
}

func TestDensify(t *testing.T) {
	dense, count := densify([]int{4, 4, 9, 2, 9})
	assert.Equal(t, []int{0, 0, 1, 2, 1}, dense)
	assert.Equal(t, 3, count)
}
