package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/translation-network/pkg/engine"
	"github.com/ritzau/translation-network/pkg/export"
	"github.com/ritzau/translation-network/pkg/logging"
	"github.com/ritzau/translation-network/pkg/model"
)

func scenario() []model.Record {
	return []model.Record{
		{Fields: map[string]string{"author": "A", "translator": "T", "publisher": "P1"}},
		{Fields: map[string]string{"author": "A", "translator": "T", "publisher": "P2"}},
		{Fields: map[string]string{"author": "B", "translator": "T", "publisher": "P1"}},
	}
}

func newTestServer(t *testing.T, analyse bool) *Server {
	t.Helper()
	pub := NewPublisher()
	t.Cleanup(func() { pub.Close() })

	opts := engine.DefaultOptions()
	opts.Community = opts.Community.WithSeed(1)
	eng := engine.New(pub, opts)
	if analyse {
		_, err := eng.Recompute(context.Background(), scenario(), opts)
		require.NoError(t, err)
	}
	return NewServer(eng, pub)
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServer_NoSnapshotYet(t *testing.T) {
	s := newTestServer(t, false)
	for _, path := range []string{"/api/graph", "/api/summary", "/api/top", "/api/brokers", "/api/export/nodes.csv"} {
		rec := get(t, s, path)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestServer_Graph(t *testing.T) {
	rec := get(t, newTestServer(t, true), "/api/graph")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(logging.RequestIDHeader))
	assert.Equal(t, "1", rec.Header().Get(logging.GenerationHeader))

	var body GraphResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, uint64(1), body.Generation)
	assert.Len(t, body.Nodes, 5)
	assert.Len(t, body.Edges, 7)
}

func TestServer_Summary(t *testing.T) {
	rec := get(t, newTestServer(t, true), "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var body SummaryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 3, body.Records)
	assert.Equal(t, int64(1), body.Seed)
	assert.Equal(t, 7, body.Summary.Edges)
	assert.InDelta(t, 0.35, body.Summary.Density, 1e-12)
}

func TestServer_Top(t *testing.T) {
	s := newTestServer(t, true)

	rec := get(t, s, "/api/top?metric=degree&k=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Ranking []struct {
			Node  model.Node `json:"node"`
			Value float64    `json:"value"`
		} `json:"ranking"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Ranking, 1)
	assert.Equal(t, "translator:t", body.Ranking[0].Node.ID)
	assert.Equal(t, 6.0, body.Ranking[0].Value)

	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/top?metric=fame").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/top?k=-2").Code)
}

func TestServer_NodeDetail(t *testing.T) {
	s := newTestServer(t, true)

	rec := get(t, s, "/api/node/"+url.PathEscape("translator:t"))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Node  model.Node   `json:"node"`
		Edges []model.Edge `json:"edges"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 6, body.Node.Degree)
	assert.Len(t, body.Edges, 4)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/node/author:nobody").Code)
}

func TestServer_ExportCSV(t *testing.T) {
	s := newTestServer(t, true)

	rec := get(t, s, "/api/export/nodes.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 6)
	assert.Equal(t, strings.Join(export.NodeHeader, ","), lines[0])

	rec = get(t, s, "/api/export/edges.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, strings.Split(strings.TrimSpace(rec.Body.String()), "\n"), 8)
}

func TestServer_SetConfig(t *testing.T) {
	s := newTestServer(t, true)

	body := strings.NewReader(`{"edgeTypes": ["translation"], "directed": true}`)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/config", body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Generation uint64 `json:"generation"`
		Summary    struct {
			Edges    int  `json:"edges"`
			Directed bool `json:"directed"`
		} `json:"summary"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, uint64(2), resp.Generation)
	assert.Equal(t, 2, resp.Summary.Edges)
	assert.True(t, resp.Summary.Directed)
	assert.Equal(t, "2", rec.Header().Get(logging.GenerationHeader))

	cfg := get(t, s, "/api/config")
	require.Equal(t, http.StatusOK, cfg.Code)
	assert.Contains(t, cfg.Body.String(), `"directed":true`)
	assert.Equal(t, "2", get(t, s, "/api/summary").Header().Get(logging.GenerationHeader))
}

func TestServer_NotReadyHasNoGeneration(t *testing.T) {
	rec := get(t, newTestServer(t, false), "/api/graph")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, rec.Header().Get(logging.GenerationHeader))
}

func TestServer_SetConfigSurvivesClientDisconnect(t *testing.T) {
	s := newTestServer(t, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/config", strings.NewReader(`{"directed": true}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	snap, err := s.engine.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Generation)
	assert.True(t, snap.Options.Build.Directed)
	assert.Contains(t, get(t, s, "/api/config").Body.String(), `"directed":true`)
}

func TestServer_SetConfigRejectsBadInput(t *testing.T) {
	s := newTestServer(t, true)

	for _, payload := range []string{
		`{"edgeTypes": ["friendship"]}`,
		`{"entities": ["editor"]}`,
		`{"iterations": -1}`,
		`not json`,
	} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/config", strings.NewReader(payload)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, payload)
	}
}

func postLens(t *testing.T, s *Server, payload string) LensResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/lens", strings.NewReader(payload)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LensResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestServer_Lens(t *testing.T) {
	s := newTestServer(t, true)

	first := postLens(t, s, `{"focus": ["author:b"], "maxDistance": 1}`)
	require.NotNil(t, first.Diff)
	assert.True(t, first.Diff.FullGraph)
	assert.Len(t, first.Diff.AddedNodes, 3) // author:b, translator:t, publisher:p1
	assert.Equal(t, 0, first.Distances["author:b"])
	assert.Equal(t, 1, first.Distances["translator:t"])

	second := postLens(t, s, `{"focus": ["author:b"], "maxDistance": 2, "since": "`+first.Hash+`"}`)
	assert.False(t, second.Diff.FullGraph)
	assert.Len(t, second.Diff.AddedNodes, 2) // author:a, publisher:p2
	assert.Empty(t, second.Diff.RemovedNodes)
	assert.NotEqual(t, first.Hash, second.Hash)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/lens", strings.NewReader(`{"maxDistance": -5}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
