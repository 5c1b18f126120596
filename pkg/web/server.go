package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/ritzau/translation-network/pkg/engine"
	"github.com/ritzau/translation-network/pkg/export"
	"github.com/ritzau/translation-network/pkg/lens"
	"github.com/ritzau/translation-network/pkg/logging"
	"github.com/ritzau/translation-network/pkg/metrics"
	"github.com/ritzau/translation-network/pkg/model"
	"github.com/ritzau/translation-network/pkg/pubsub"
)

// GraphResponse is the node and edge list of the current snapshot.
type GraphResponse struct {
	Generation uint64 `json:"generation"`
	export.GraphData
}

// SummaryResponse is the graph-level aggregate view of the current snapshot.
type SummaryResponse struct {
	Generation uint64          `json:"generation"`
	ComputedAt time.Time       `json:"computedAt"`
	DurationMs int64           `json:"durationMs"`
	Sampled    bool            `json:"sampled"`
	Seed       int64           `json:"seed"` // Label propagation seed actually used
	Records    int             `json:"records"`
	SelfLoops  int             `json:"selfLoops"`
	Filtered   int             `json:"filteredByType"`
	Summary    metrics.Summary `json:"summary"`
}

// ConfigRequest changes the analysis configuration. Omitted fields keep
// their current value.
type ConfigRequest struct {
	Entities   []string `json:"entities,omitempty"`
	Directed   *bool    `json:"directed,omitempty"`
	EdgeTypes  []string `json:"edgeTypes,omitempty"`
	Iterations *int     `json:"iterations,omitempty"`
	Seed       *int64   `json:"seed,omitempty"`
}

// Apply merges the request into opts.
func (c ConfigRequest) Apply(opts engine.Options) (engine.Options, error) {
	if c.Entities != nil {
		keys, err := model.ParseAttributeKeys(c.Entities)
		if err != nil {
			return opts, err
		}
		opts.Build.Entities = keys
	}
	if c.EdgeTypes != nil {
		set, err := model.ParseEdgeTypeSet(c.EdgeTypes)
		if err != nil {
			return opts, err
		}
		opts.Build.EdgeTypes = set
	}
	if c.Directed != nil {
		opts.Build.Directed = *c.Directed
		opts.Centrality.Directed = *c.Directed
	}
	if c.Iterations != nil {
		if *c.Iterations < 0 {
			return opts, fmt.Errorf("iterations: %w", model.ErrNegativeIterations)
		}
		opts.Community.Iterations = *c.Iterations
	}
	if c.Seed != nil {
		opts.Community = opts.Community.WithSeed(*c.Seed)
	}
	return opts, nil
}

// LensRequest asks for a filtered view. Since names the hash of a view the
// client already holds; when it is still cached the response is a diff.
type LensRequest struct {
	lens.Config
	Since string `json:"since,omitempty"`
}

// LensResponse carries a filtered view or the diff to it.
type LensResponse struct {
	Generation uint64          `json:"generation"`
	Hash       string          `json:"hash"`
	Distances  map[string]int  `json:"distances,omitempty"`
	Diff       *lens.GraphDiff `json:"diff"`
}

// maxLensSnapshots bounds the per-server view cache.
const maxLensSnapshots = 64

// Server serves the analysed network over HTTP.
type Server struct {
	router    *mux.Router
	engine    *engine.Engine
	publisher pubsub.Publisher

	lensMu    sync.Mutex
	lensCache map[string]*lens.GraphSnapshot
}

// NewPublisher creates the SSE publisher the engine and server share.
func NewPublisher() *pubsub.SSEPublisher {
	ssePublisher := pubsub.NewSSEPublisher()

	// analysis_status: buffer last 10 events, replay only last event to new subscribers
	ssePublisher.ConfigureTopic(pubsub.TopicAnalysisStatus, pubsub.TopicConfig{
		BufferSize: 10,
		ReplayAll:  false,
	})

	// graph: buffer last 5 events, replay only last event
	ssePublisher.ConfigureTopic(pubsub.TopicGraph, pubsub.TopicConfig{
		BufferSize: 5,
		ReplayAll:  false,
	})
	return ssePublisher
}

// NewServer creates a new web server
func NewServer(eng *engine.Engine, publisher pubsub.Publisher) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		engine:    eng,
		publisher: publisher,
		lensCache: make(map[string]*lens.GraphSnapshot),
	}
	s.setupRoutes()
	return s
}

// Handler returns the router wrapped in request logging. Responses built
// from a snapshot carry its generation in X-Analysis-Generation.
func (s *Server) Handler() http.Handler {
	return logging.HTTPMiddleware(s.router)
}

func (s *Server) setupRoutes() {
	// SSE subscription endpoints
	s.router.HandleFunc("/api/subscribe/analysis_status", s.subscribe(pubsub.TopicAnalysisStatus)).Methods("GET")
	s.router.HandleFunc("/api/subscribe/graph", s.subscribe(pubsub.TopicGraph)).Methods("GET")

	s.router.HandleFunc("/api/graph", s.handleGraph).Methods("GET")
	s.router.HandleFunc("/api/summary", s.handleSummary).Methods("GET")
	s.router.HandleFunc("/api/top", s.handleTop).Methods("GET")
	s.router.HandleFunc("/api/brokers", s.handleBrokers).Methods("GET")
	s.router.HandleFunc("/api/components", s.handleComponents).Methods("GET")
	s.router.HandleFunc("/api/node/{id:.+}", s.handleNode).Methods("GET")
	s.router.HandleFunc("/api/lens", s.handleLens).Methods("POST")
	s.router.HandleFunc("/api/export/nodes.csv", s.handleExportNodes).Methods("GET")
	s.router.HandleFunc("/api/export/edges.csv", s.handleExportEdges).Methods("GET")
	s.router.HandleFunc("/api/config", s.handleGetConfig).Methods("GET")
	s.router.HandleFunc("/api/config", s.handleSetConfig).Methods("POST")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// snapshot writes 503 and returns nil while no analysis has completed.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) *engine.Snapshot {
	snap, err := s.engine.Snapshot()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return nil
	}
	logging.MarkServed(r.Context(), snap.Generation)
	return snap
}

func (s *Server) subscribe(topic string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		// Initial comment establishes the stream (Safari compatibility)
		fmt.Fprintf(w, ": connected\n\n")
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}

		sub, err := s.publisher.Subscribe(r.Context(), topic)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer sub.Close()

		for {
			select {
			case <-r.Context().Done():
				return
			case event, ok := <-sub.Events():
				if !ok {
					return
				}
				if err := pubsub.WriteSSE(w, event); err != nil {
					logging.WarnContext(r.Context(), "error writing SSE event", "topic", topic, "error", err)
					return
				}
				if flusher, ok := w.(http.Flusher); ok {
					flusher.Flush()
				}
			}
		}
	}
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(w, r)
	if snap == nil {
		return
	}
	writeJSON(w, http.StatusOK, GraphResponse{
		Generation: snap.Generation,
		GraphData:  export.NewGraphData(snap.Graph),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(w, r)
	if snap == nil {
		return
	}
	writeJSON(w, http.StatusOK, SummaryResponse{
		Generation: snap.Generation,
		ComputedAt: snap.ComputedAt,
		DurationMs: snap.Duration.Milliseconds(),
		Sampled:    snap.Sampled,
		Seed:       snap.Communities.Seed,
		Records:    snap.Stats.Records,
		SelfLoops:  snap.Stats.SelfLoops,
		Filtered:   snap.Stats.FilteredByType,
		Summary:    snap.View.Summary(),
	})
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	metric := metrics.MetricDegree
	if name := query.Get("metric"); name != "" {
		m, err := metrics.ParseMetric(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		metric = m
	}

	k := 10
	if raw := query.Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid k %q", raw))
			return
		}
		k = n
	}

	snap := s.snapshot(w, r)
	if snap == nil {
		return
	}
	ranked, err := snap.View.TopK(metric, k)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"generation": snap.Generation,
		"metric":     metric,
		"ranking":    ranked,
	})
}

func (s *Server) handleBrokers(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(w, r)
	if snap == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"generation": snap.Generation,
		"brokers":    snap.View.Brokers(),
	})
}

func (s *Server) handleComponents(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(w, r)
	if snap == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"generation":         snap.Generation,
		"components":         snap.View.Components(),
		"reciprocalClusters": snap.View.ReciprocalClusters(),
	})
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(w, r)
	if snap == nil {
		return
	}

	id := mux.Vars(r)["id"]
	node, ok := snap.Graph.Node(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("node %q not found", id))
		return
	}

	edges := make([]model.Edge, 0)
	for _, e := range snap.Graph.Edges() {
		if e.Source == id || e.Target == id {
			edges = append(edges, e)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"generation": snap.Generation,
		"node":       node,
		"edges":      edges,
	})
}

func (s *Server) handleLens(w http.ResponseWriter, r *http.Request) {
	req := LensRequest{Config: lens.DefaultConfig()}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding lens: %w", err))
		return
	}

	snap := s.snapshot(w, r)
	if snap == nil {
		return
	}
	view, err := lens.Apply(export.NewGraphData(snap.Graph), req.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	hash := lens.ComputeHash(snap.Generation, req.Config)

	s.lensMu.Lock()
	previous := s.lensCache[req.Since]
	if len(s.lensCache) >= maxLensSnapshots {
		clear(s.lensCache)
	}
	s.lensCache[hash] = lens.CreateSnapshot(hash, view.Graph)
	s.lensMu.Unlock()

	writeJSON(w, http.StatusOK, LensResponse{
		Generation: snap.Generation,
		Hash:       hash,
		Distances:  view.Distances,
		Diff:       lens.ComputeDiff(previous, view.Graph),
	})
}

func (s *Server) handleExportNodes(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(w, r)
	if snap == nil {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="nodes.csv"`)
	if err := export.WriteNodesCSV(w, snap.Graph.Nodes()); err != nil {
		logging.ErrorContext(r.Context(), "node export failed", "error", err)
	}
}

func (s *Server) handleExportEdges(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(w, r)
	if snap == nil {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="edges.csv"`)
	if err := export.WriteEdgesCSV(w, snap.Graph.Edges()); err != nil {
		logging.ErrorContext(r.Context(), "edge export failed", "error", err)
	}
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	opts := s.engine.Options()

	entities := make([]string, 0, len(opts.Build.Entities))
	for _, key := range opts.Build.Entities {
		entities = append(entities, key.String())
	}
	var edgeTypes []model.EdgeType
	if opts.Build.EdgeTypes == nil {
		edgeTypes = model.AllEdgeTypes()
	} else {
		edgeTypes = opts.Build.EdgeTypes.Sorted()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entities":   entities,
		"directed":   opts.Build.Directed,
		"edgeTypes":  edgeTypes,
		"iterations": opts.Community.Iterations,
		"seed":       opts.Community.Seed,
	})
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var req ConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding config: %w", err))
		return
	}

	opts, err := req.Apply(s.engine.Options())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	logging.InfoContext(r.Context(), "reconfiguring analysis", "entities", len(opts.Build.Entities), "directed", opts.Build.Directed)
	// The pass outlives a disconnecting client; only a newer generation stops it
	snap, err := s.engine.Reconfigure(context.WithoutCancel(r.Context()), opts)
	switch {
	case errors.Is(err, engine.ErrStaleGeneration):
		writeError(w, http.StatusConflict, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	logging.MarkServed(r.Context(), snap.Generation)
	writeJSON(w, http.StatusOK, map[string]any{
		"generation": snap.Generation,
		"summary":    snap.View.Summary(),
	})
}

// Start starts the web server on the specified port
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logging.Info("starting web server", "url", fmt.Sprintf("http://localhost%s", addr))
	return http.ListenAndServe(addr, s.Handler())
}
