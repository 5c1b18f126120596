// Package graphdb mirrors an analysed network into Neo4j so it can be
// queried with Cypher next to other data.
//
// Every sync stamps nodes and relationships with a fresh sync ID next to the
// snapshot generation, then removes everything carrying another ID. Generations
// restart at 1 with each process, so only the ID identifies the current data.
package graphdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ritzau/translation-network/pkg/logging"
	"github.com/ritzau/translation-network/pkg/model"
)

// Config locates the database. An empty URI disables syncing.
type Config struct {
	URI      string        `koanf:"uri"`
	User     string        `koanf:"user"`
	Password string        `koanf:"password"`
	Database string        `koanf:"database"`
	Timeout  time.Duration `koanf:"timeout"`
}

// Client wraps a Neo4j driver.
type Client struct {
	driver   neo4j.DriverWithContext
	database string
}

// Connect opens a driver and verifies connectivity. It returns nil and no
// error when cfg.URI is empty.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URI == "" {
		return nil, nil
	}
	user := cfg.User
	if user == "" {
		user = "neo4j"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(user, cfg.Password, ""), func(c *neo4j.Config) {
		c.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("graphdb: init driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("graphdb: verify connectivity: %w", err)
	}

	logging.Info("connected to graph database", "uri", cfg.URI, "database", cfg.Database)
	return &Client{driver: driver, database: cfg.Database}, nil
}

// Close releases the driver. A nil client is a no-op.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.driver == nil {
		return nil
	}
	err := c.driver.Close(ctx)
	c.driver = nil
	return err
}

// Stamp identifies one sync.
type Stamp struct {
	ID         string
	Generation uint64
}

// NewStamp returns a stamp with a random sync ID.
func NewStamp(generation uint64) Stamp {
	return Stamp{ID: uuid.NewString(), Generation: generation}
}

// NodeParams converts nodes into Cypher parameter maps.
func NodeParams(nodes []model.Node, stamp Stamp) []map[string]any {
	params := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		params = append(params, map[string]any{
			"id":          n.ID,
			"name":        n.Name,
			"group":       n.Group,
			"degree":      int64(n.Degree),
			"in_degree":   int64(n.InDegree),
			"out_degree":  int64(n.OutDegree),
			"closeness":   n.Closeness,
			"betweenness": n.Betweenness,
			"pagerank":    n.PageRank,
			"community":   int64(n.Community),
			"generation":  int64(stamp.Generation),
			"sync":        stamp.ID,
		})
	}
	return params
}

// EdgeParams converts edges into Cypher parameter maps.
func EdgeParams(edges []model.Edge, stamp Stamp) []map[string]any {
	params := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		params = append(params, map[string]any{
			"source":     e.Source,
			"target":     e.Target,
			"weight":     int64(e.Weight),
			"type":       string(e.Type),
			"generation": int64(stamp.Generation),
			"sync":       stamp.ID,
		})
	}
	return params
}

const (
	upsertNodes = `
UNWIND $nodes AS n
MERGE (e:Entity {id: n.id})
SET e += n
`
	upsertEdges = `
UNWIND $edges AS r
MATCH (a:Entity {id: r.source})
MATCH (b:Entity {id: r.target})
MERGE (a)-[c:CO_OCCURS {type: r.type}]->(b)
SET c.weight = r.weight,
    c.generation = r.generation,
    c.sync = r.sync
`
	pruneEdges = `MATCH ()-[c:CO_OCCURS]->() WHERE coalesce(c.sync, '') <> $sync DELETE c`
	pruneNodes = `MATCH (e:Entity) WHERE coalesce(e.sync, '') <> $sync DETACH DELETE e`
)

type statement struct {
	query  string
	params map[string]any
}

// syncStatements upserts g under stamp and prunes everything else, in order.
func syncStatements(g *model.Graph, stamp Stamp) []statement {
	prune := map[string]any{"sync": stamp.ID}
	return []statement{
		{upsertNodes, map[string]any{"nodes": NodeParams(g.Nodes(), stamp)}},
		{upsertEdges, map[string]any{"edges": EdgeParams(g.Edges(), stamp)}},
		{pruneEdges, prune},
		{pruneNodes, prune},
	}
}

// Sync writes g as generation in a single transaction. A nil client is a
// no-op.
func (c *Client) Sync(ctx context.Context, generation uint64, g *model.Graph) error {
	if c == nil || c.driver == nil {
		return nil
	}
	if g == nil {
		return model.ErrNilGraph
	}

	start := time.Now()
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.database,
	})
	defer session.Close(ctx)

	if res, err := session.Run(ctx, `CREATE CONSTRAINT entity_id_unique IF NOT EXISTS FOR (e:Entity) REQUIRE e.id IS UNIQUE`, nil); err != nil {
		logging.Warn("graph database schema init failed, continuing", "error", err)
	} else {
		_, _ = res.Consume(ctx)
	}

	stamp := NewStamp(generation)
	statements := syncStatements(g, stamp)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		var errs []error
		for _, st := range statements {
			res, err := tx.Run(ctx, st.query, st.params)
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return nil, errors.Join(errs...)
	})
	if err != nil {
		return fmt.Errorf("graphdb: sync generation %d: %w", generation, err)
	}

	logging.Debug("synced graph database",
		"generation", generation,
		"sync", stamp.ID,
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"durationMs", time.Since(start).Milliseconds(),
	)
	return nil
}
