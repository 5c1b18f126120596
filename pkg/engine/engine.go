// Package engine orchestrates full recomputation of the translation network:
// build, centrality and communities. Every recomputation takes a new
// generation; only a pass whose generation is still current when it
// finishes is committed, and superseded passes are cancelled and discarded.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ritzau/translation-network/pkg/centrality"
	"github.com/ritzau/translation-network/pkg/community"
	"github.com/ritzau/translation-network/pkg/graph"
	"github.com/ritzau/translation-network/pkg/logging"
	"github.com/ritzau/translation-network/pkg/metrics"
	"github.com/ritzau/translation-network/pkg/model"
	"github.com/ritzau/translation-network/pkg/pubsub"
)

// ErrStaleGeneration is returned by a pass that was superseded before it
// could commit.
var ErrStaleGeneration = errors.New("analysis superseded by a newer generation")

// ErrNoSnapshot is returned when nothing has been committed yet.
var ErrNoSnapshot = errors.New("no analysis has completed yet")

const totalSteps = 3

// Options configures one full recomputation.
type Options struct {
	Build      graph.BuildConfig
	Centrality centrality.Options
	Community  community.Options
}

// DefaultOptions returns the reference configuration: default entities,
// undirected, every edge type, five label propagation sweeps.
func DefaultOptions() Options {
	return Options{
		Build:      graph.DefaultBuildConfig(),
		Centrality: centrality.DefaultOptions(),
		Community:  community.DefaultOptions(),
	}
}

// Snapshot is a committed, read-only analysis result.
type Snapshot struct {
	Generation  uint64
	Graph       *model.Graph
	View        *metrics.View
	Stats       graph.BuildStats
	Communities model.CommunityResult
	Sampled     bool
	Options     Options
	ComputedAt  time.Time
	Duration    time.Duration
}

// Engine owns the current snapshot and the generation counter.
type Engine struct {
	publisher pubsub.Publisher

	generation atomic.Uint64

	mu       sync.Mutex
	cancel   context.CancelFunc
	snapshot *Snapshot
	records  []model.Record
	options  Options
}

// New creates an engine. publisher may be nil.
func New(publisher pubsub.Publisher, opts Options) *Engine {
	return &Engine{
		publisher: publisher,
		options:   opts,
	}
}

// Generation returns the most recently started generation.
func (e *Engine) Generation() uint64 {
	return e.generation.Load()
}

// Snapshot returns the last committed snapshot.
func (e *Engine) Snapshot() (*Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snapshot == nil {
		return nil, ErrNoSnapshot
	}
	return e.snapshot, nil
}

// Options returns the options of the most recent recomputation request, or
// of the committed snapshot once that request failed.
func (e *Engine) Options() Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.options
}

// Recompute replaces the record set and options and recomputes everything.
// It returns ErrStaleGeneration if another recomputation started before this
// one committed.
func (e *Engine) Recompute(ctx context.Context, records []model.Record, opts Options) (*Snapshot, error) {
	if records == nil {
		return nil, fmt.Errorf("recompute: %w", model.ErrNilRecords)
	}
	gen, runCtx := e.begin(ctx, records, opts)
	return e.run(runCtx, gen, records, opts)
}

// Reload recomputes with new records and the current options.
func (e *Engine) Reload(ctx context.Context, records []model.Record) (*Snapshot, error) {
	return e.Recompute(ctx, records, e.Options())
}

// Reconfigure recomputes the current records with new options.
func (e *Engine) Reconfigure(ctx context.Context, opts Options) (*Snapshot, error) {
	e.mu.Lock()
	records := e.records
	e.mu.Unlock()
	if records == nil {
		records = []model.Record{}
	}
	return e.Recompute(ctx, records, opts)
}

// begin takes a new generation and cancels the pass it supersedes.
func (e *Engine) begin(ctx context.Context, records []model.Record, opts Options) (uint64, context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.records = records
	e.options = opts

	return e.generation.Add(1), runCtx
}

func (e *Engine) run(ctx context.Context, gen uint64, records []model.Record, opts Options) (*Snapshot, error) {
	start := time.Now()
	logging.InfoContext(ctx, "starting analysis", "generation", gen, "records", len(records))

	snap, err := analyze(ctx, records, opts, func(state, message string, step int) {
		e.publishStatus(state, message, gen, step)
	})
	if err != nil {
		if e.stale(gen) {
			return nil, e.discard(gen, err)
		}
		e.release(gen)
		e.publishStatus(pubsub.StateError, err.Error(), gen, totalSteps)
		logging.ErrorContext(ctx, "analysis failed", "generation", gen, "error", err)
		return nil, err
	}
	snap.Generation = gen
	snap.Duration = time.Since(start)

	if err := e.commit(snap); err != nil {
		return nil, e.discard(gen, err)
	}

	e.publishStatus(pubsub.StateReady, "Analysis complete", gen, totalSteps)
	if e.publisher != nil {
		update := pubsub.GraphUpdate{
			Generation:  gen,
			Nodes:       snap.Graph.NodeCount(),
			Edges:       snap.Graph.EdgeCount(),
			Communities: snap.Communities.Count,
			Sampled:     snap.Sampled,
		}
		if err := e.publisher.Publish(pubsub.TopicGraph, "update", update); err != nil {
			logging.Warn("failed to publish graph update", "generation", gen, "error", err)
		}
	}

	logging.InfoContext(ctx, "analysis complete",
		"generation", gen,
		"nodes", snap.Graph.NodeCount(),
		"edges", snap.Graph.EdgeCount(),
		"communities", snap.Communities.Count,
		"durationMs", snap.Duration.Milliseconds(),
	)
	return snap, nil
}

func (e *Engine) stale(gen uint64) bool {
	return e.generation.Load() != gen
}

// commit installs snap unless a newer generation has started.
func (e *Engine) commit(snap *Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stale(snap.Generation) {
		return ErrStaleGeneration
	}
	e.snapshot = snap
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	return nil
}

// release cancels gen's context if gen is still the current pass and falls
// back to the committed options, which no longer match the failed request.
func (e *Engine) release(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stale(gen) {
		return
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.snapshot != nil {
		e.options = e.snapshot.Options
	}
}

func (e *Engine) discard(gen uint64, cause error) error {
	logging.Debug("discarding superseded analysis", "generation", gen, "current", e.Generation(), "cause", cause)
	e.publishStatus(pubsub.StateStale, "Superseded by a newer analysis", gen, totalSteps)
	if errors.Is(cause, ErrStaleGeneration) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrStaleGeneration, cause)
}

func (e *Engine) publishStatus(state, message string, gen uint64, step int) {
	if e.publisher == nil {
		return
	}
	status := pubsub.AnalysisStatus{
		State:      state,
		Message:    message,
		Generation: gen,
		Step:       step,
		Total:      totalSteps,
	}
	if err := e.publisher.Publish(pubsub.TopicAnalysisStatus, state, status); err != nil {
		logging.Warn("failed to publish analysis status", "state", state, "error", err)
	}
}

// Analyze runs build, centrality and community detection over records
// without touching any engine state. The returned snapshot has no
// generation.
func Analyze(ctx context.Context, records []model.Record, opts Options) (*Snapshot, error) {
	return analyze(ctx, records, opts, nil)
}

type progressFunc func(state, message string, step int)

func analyze(ctx context.Context, records []model.Record, opts Options, progress progressFunc) (*Snapshot, error) {
	if progress == nil {
		progress = func(string, string, int) {}
	}
	start := time.Now()
	opts.Centrality.Directed = opts.Build.Directed

	progress(pubsub.StateBuilding, "Building co-occurrence graph", 1)
	g, stats, err := graph.BuildWithStats(records, opts.Build)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	progress(pubsub.StateAnalyzing, "Computing centrality", 2)
	degree, result, err := centrality.Analyze(ctx, g, opts.Centrality)
	if err != nil {
		return nil, err
	}
	if err := g.ApplyDegree(degree); err != nil {
		return nil, err
	}
	if err := g.ApplyCentrality(result); err != nil {
		return nil, err
	}

	progress(pubsub.StateAnalyzing, "Detecting communities", 3)
	_, communities, err := community.Detect(g, opts.Community)
	if err != nil {
		return nil, err
	}

	view, err := metrics.NewView(g)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Graph:       g,
		View:        view,
		Stats:       stats,
		Communities: communities,
		Sampled:     result.Sampled,
		Options:     opts,
		ComputedAt:  time.Now(),
		Duration:    time.Since(start),
	}, nil
}
