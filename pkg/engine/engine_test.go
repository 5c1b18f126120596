package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ritzau/translation-network/pkg/graph"
	"github.com/ritzau/translation-network/pkg/model"
	"github.com/ritzau/translation-network/pkg/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenario() []model.Record {
	return []model.Record{
		{Fields: map[string]string{"author": "A", "translator": "T", "publisher": "P1"}},
		{Fields: map[string]string{"author": "A", "translator": "T", "publisher": "P2"}},
		{Fields: map[string]string{"author": "B", "translator": "T", "publisher": "P1"}},
	}
}

func seeded() Options {
	opts := DefaultOptions()
	opts.Community = opts.Community.WithSeed(1)
	return opts
}

func TestRecompute_CommitsSnapshot(t *testing.T) {
	e := New(nil, seeded())

	_, err := e.Snapshot()
	assert.ErrorIs(t, err, ErrNoSnapshot)

	snap, err := e.Recompute(context.Background(), scenario(), seeded())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Equal(t, 5, snap.Graph.NodeCount())
	assert.Equal(t, 7, snap.Graph.EdgeCount())
	assert.Equal(t, 3, snap.Stats.Records)
	assert.False(t, snap.Sampled)

	node, ok := snap.Graph.Node("translator:t")
	require.True(t, ok)
	assert.Equal(t, 6, node.Degree)

	current, err := e.Snapshot()
	require.NoError(t, err)
	assert.Same(t, snap, current)
}

func TestRecompute_NilRecords(t *testing.T) {
	e := New(nil, seeded())
	_, err := e.Recompute(context.Background(), nil, seeded())
	assert.ErrorIs(t, err, model.ErrNilRecords)
	assert.Zero(t, e.Generation())
}

func TestRecompute_SupersededPassIsDiscarded(t *testing.T) {
	e := New(nil, seeded())
	ctx := context.Background()

	gen1, ctx1 := e.begin(ctx, scenario(), seeded())
	gen2, ctx2 := e.begin(ctx, scenario(), seeded())
	require.Less(t, gen1, gen2)
	assert.Error(t, ctx1.Err(), "starting a new generation cancels the previous one")

	_, err := e.run(ctx1, gen1, scenario(), seeded())
	assert.ErrorIs(t, err, ErrStaleGeneration)
	_, err = e.Snapshot()
	assert.ErrorIs(t, err, ErrNoSnapshot)

	snap, err := e.run(ctx2, gen2, scenario(), seeded())
	require.NoError(t, err)
	assert.Equal(t, gen2, snap.Generation)
}

func TestRecompute_FailedPassKeepsCommittedOptions(t *testing.T) {
	e := New(nil, seeded())
	committed, err := e.Recompute(context.Background(), scenario(), seeded())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	directed := seeded()
	directed.Build.Directed = true
	_, err = e.Recompute(ctx, scenario(), directed)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStaleGeneration)

	assert.False(t, e.Options().Build.Directed)
	assert.Equal(t, committed.Options, e.Options())
	current, err := e.Snapshot()
	require.NoError(t, err)
	assert.Same(t, committed, current)
}

func TestCommit_RejectsOldGeneration(t *testing.T) {
	e := New(nil, seeded())
	_, err := e.Recompute(context.Background(), scenario(), seeded())
	require.NoError(t, err)
	e.begin(context.Background(), scenario(), seeded())

	old := &Snapshot{Generation: 1}
	assert.True(t, errors.Is(e.commit(old), ErrStaleGeneration))

	current, err := e.Snapshot()
	require.NoError(t, err)
	assert.NotSame(t, old, current)
}

func TestReconfigure_ReusesRecords(t *testing.T) {
	e := New(nil, seeded())
	_, err := e.Recompute(context.Background(), scenario(), seeded())
	require.NoError(t, err)

	opts := seeded()
	opts.Build.EdgeTypes = model.NewEdgeTypeSet(model.EdgeTranslation)
	snap, err := e.Reconfigure(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Generation)
	assert.Equal(t, 2, snap.Graph.EdgeCount())

	snap, err = e.Reload(context.Background(), scenario()[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Graph.EdgeCount())
}

func TestRecompute_PublishesStatus(t *testing.T) {
	pub := pubsub.NewSSEPublisher()
	defer pub.Close()
	pub.ConfigureTopic(pubsub.TopicAnalysisStatus, pubsub.TopicConfig{BufferSize: 10, ReplayAll: true})

	e := New(pub, seeded())
	_, err := e.Recompute(context.Background(), scenario(), seeded())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sub, err := pub.Subscribe(ctx, pubsub.TopicAnalysisStatus)
	require.NoError(t, err)
	defer sub.Close()

	var states []string
	var last pubsub.AnalysisStatus
	for len(states) < 4 {
		select {
		case event := <-sub.Events():
			states = append(states, event.Type)
			require.NoError(t, json.Unmarshal(event.Data, &last))
		case <-ctx.Done():
			t.Fatalf("timed out after states %v", states)
		}
	}
	assert.Equal(t, []string{
		pubsub.StateBuilding, pubsub.StateAnalyzing, pubsub.StateAnalyzing, pubsub.StateReady,
	}, states)
	assert.Equal(t, uint64(1), last.Generation)
}

func TestAnalyze_DirectedFollowsBuildConfig(t *testing.T) {
	opts := seeded()
	opts.Build.Directed = true
	snap, err := Analyze(context.Background(), scenario(), opts)
	require.NoError(t, err)
	assert.True(t, snap.Graph.Directed())
	assert.True(t, snap.Options.Centrality.Directed)

	in, out := 0, 0
	for _, n := range snap.Graph.Nodes() {
		in += n.InDegree
		out += n.OutDegree
	}
	assert.Equal(t, in, out)
}

func TestExternalInterfaces(t *testing.T) {
	g, err := BuildGraph(scenario(), graph.DefaultBuildConfig())
	require.NoError(t, err)

	g, err = ComputeMetrics(g, false)
	require.NoError(t, err)
	node, _ := g.Node("translator:t")
	assert.Equal(t, 6, node.Degree)

	seed := int64(0)
	g, err = DetectCommunities(g, 5, &seed)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, g.CommunityCount(), 1)
	assert.LessOrEqual(t, g.CommunityCount(), g.NodeCount())
	labels := make([]int, 0, g.NodeCount())
	for _, n := range g.Nodes() {
		labels = append(labels, n.Community)
	}

	again, err := BuildGraph(scenario(), graph.DefaultBuildConfig())
	require.NoError(t, err)
	again, err = DetectCommunities(again, 5, &seed)
	require.NoError(t, err)
	for i, n := range again.Nodes() {
		assert.Equal(t, labels[i], n.Community, n.ID)
	}

	g, err = DetectCommunities(g, 5, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, g.CommunityCount(), 1)

	_, err = DetectCommunities(g, -1, nil)
	assert.ErrorIs(t, err, model.ErrNegativeIterations)

	_, err = BuildGraph(nil, graph.DefaultBuildConfig())
	assert.ErrorIs(t, err, model.ErrNilRecords)
}
