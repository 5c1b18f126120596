package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/ritzau/translation-network/pkg/config"
	"github.com/ritzau/translation-network/pkg/engine"
	"github.com/ritzau/translation-network/pkg/export"
	"github.com/ritzau/translation-network/pkg/graphdb"
	"github.com/ritzau/translation-network/pkg/logging"
	"github.com/ritzau/translation-network/pkg/model"
	"github.com/ritzau/translation-network/pkg/output"
)

// persister hands committed snapshots to the export directory, the graph
// database and the report writer. Calls are serialised, and a snapshot that
// is not newer than the last one handled is skipped.
type persister struct {
	db     *graphdb.Client // nil unless neo4j.uri is set
	report io.Writer       // nil in web mode

	mu   sync.Mutex
	last uint64
}

// persist reports whether snap was written. cfg is the configuration snap
// was computed with.
func (p *persister) persist(ctx context.Context, snap *engine.Snapshot, cfg config.Config) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if snap.Generation <= p.last {
		logging.Debug("skipping superseded snapshot", "generation", snap.Generation, "last", p.last)
		return false, nil
	}
	p.last = snap.Generation

	if cfg.Export != "" {
		if err := writeExport(cfg.Export, snap.Graph); err != nil {
			return true, err
		}
	}
	if err := p.db.Sync(ctx, snap.Generation, snap.Graph); err != nil {
		return true, err
	}
	if p.report != nil {
		if err := output.PrintReport(p.report, snap, cfg.Top); err != nil {
			return true, err
		}
	}
	return true, nil
}

// writeExport writes nodes.csv, edges.csv and graph.json into dir.
func writeExport(dir string, g *model.Graph) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}

	files := []struct {
		name  string
		write func(*os.File) error
	}{
		{"nodes.csv", func(f *os.File) error { return export.WriteNodesCSV(f, g.Nodes()) }},
		{"edges.csv", func(f *os.File) error { return export.WriteEdgesCSV(f, g.Edges()) }},
		{"graph.json", func(f *os.File) error { return export.WriteJSON(f, g) }},
	}
	for _, file := range files {
		path := filepath.Join(dir, file.name)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		if err := file.write(f); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing %s: %w", path, err)
		}
	}
	logging.Info("exported network", "dir", dir, "nodes", g.NodeCount(), "edges", g.EdgeCount())
	return nil
}
