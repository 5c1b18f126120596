package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/ritzau/translation-network/pkg/centrality"
	"github.com/ritzau/translation-network/pkg/community"
	"github.com/ritzau/translation-network/pkg/config"
	"github.com/ritzau/translation-network/pkg/engine"
	"github.com/ritzau/translation-network/pkg/graphdb"
	"github.com/ritzau/translation-network/pkg/logging"
	"github.com/ritzau/translation-network/pkg/model"
	"github.com/ritzau/translation-network/pkg/records"
	"github.com/ritzau/translation-network/pkg/web"
)

func newFlagSet() *pflag.FlagSet {
	cent := centrality.DefaultOptions()

	f := pflag.NewFlagSet("transnet", pflag.ContinueOnError)
	f.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: transnet [flags] [records.csv|records.json]\n\n")
		f.PrintDefaults()
	}

	f.String("config", "", "Config file (default ./"+config.DefaultFile+" if present)")
	f.StringP("records", "r", "", "Record file or directory, CSV with a header row or a JSON array")
	f.StringSlice("entities", nil, "Fields that become graph entities, e.g. author,translator,custom:genre")
	f.Bool("directed", false, "Build a directed graph keyed by resolution order")
	f.StringSlice("edge-types", nil, "Enabled edge types (default all)")
	f.Int("iterations", community.DefaultIterations, "Label propagation sweeps")
	f.Int64("seed", 0, "Label propagation seed, unset draws one from the clock")
	f.Int("pagerank.iterations", cent.PageRankIterations, "PageRank iterations")
	f.Float64("pagerank.damping", cent.Damping, "PageRank damping factor")
	f.Int("betweenness.sample-threshold", cent.SampleThreshold, "Sample betweenness sources above this many nodes, 0 disables sampling")
	f.Float64("betweenness.sample-fraction", cent.SampleFraction, "Fraction of sources used when sampling")
	f.Int64("betweenness.seed", cent.SampleSeed, "Seed for source sampling")
	f.Int("betweenness.chunk", cent.ChunkSize, "Sources processed between cancellation checks")
	f.IntP("top", "n", 10, "Entries per ranking in the report")
	f.String("export", "", "Directory to write nodes.csv, edges.csv and graph.json into")
	f.Bool("web", false, "Serve the analysis over HTTP instead of printing a report")
	f.Int("port", 8080, "Port for the web server (only used with --web)")
	f.Bool("watch", false, "Recompute when the record or config file changes")
	f.String("verbosity", "", "Log level: error, warn, info, debug or trace")
	f.CountP("verbose", "v", "Increase log verbosity (repeatable)")
	return f
}

func main() {
	flags := newFlagSet()
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	if err := run(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what the watch loop needs to reload configuration.
type app struct {
	flags      *pflag.FlagSet
	configPath string
	persister  *persister
}

// loadConfig reads the layered configuration. A positional argument wins
// over every other source of the record path.
func (a *app) loadConfig() (*config.Config, engine.Options, error) {
	cfg, err := config.Load(a.flags, a.configPath)
	if err != nil {
		return nil, engine.Options{}, err
	}
	if a.flags.NArg() > 0 {
		cfg.Records = a.flags.Arg(0)
	}
	if err := cfg.Validate(); err != nil {
		return nil, engine.Options{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Records == "" {
		return nil, engine.Options{}, errors.New("no record file given")
	}
	opts, err := cfg.EngineOptions()
	if err != nil {
		return nil, engine.Options{}, err
	}
	return cfg, opts, nil
}

func run(flags *pflag.FlagSet) error {
	configPath, _ := flags.GetString("config")
	a := &app{flags: flags, configPath: configPath}

	cfg, opts, err := a.loadConfig()
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Verbosity, cfg.VerboseCnt)
	if err != nil {
		return err
	}
	logging.SetLevel(level)
	if cfg.File != "" {
		logging.Debug("loaded config file", "path", cfg.File)
	}

	recs, err := records.Load(cfg.Records)
	if err != nil {
		return err
	}
	logging.Info("loaded records", "path", cfg.Records, "records", len(recs))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := graphdb.Connect(ctx, cfg.Neo4j)
	if err != nil {
		return err
	}
	defer db.Close(context.Background())
	a.persister = &persister{db: db}

	if cfg.WebMode {
		return a.serve(ctx, *cfg, recs, opts)
	}

	a.persister.report = os.Stdout
	eng := engine.New(nil, opts)
	snap, err := eng.Recompute(ctx, recs, opts)
	if err != nil {
		return err
	}
	if _, err := a.persister.persist(ctx, snap, *cfg); err != nil {
		return err
	}

	if !cfg.Watch {
		return nil
	}
	return a.watch(ctx, eng, *cfg)
}

func (a *app) serve(ctx context.Context, cfg config.Config, recs []model.Record, opts engine.Options) error {
	pub := web.NewPublisher()
	defer pub.Close()

	eng := engine.New(pub, opts)
	server := web.NewServer(eng, pub)

	errs := make(chan error, 1)
	go func() {
		errs <- server.Start(cfg.Port)
	}()

	// Clients get the building status over SSE while the first pass runs
	go a.recompute(ctx, eng, recs, opts, cfg)

	if cfg.Watch {
		go func() {
			if err := a.watch(ctx, eng, cfg); err != nil {
				logging.Error("file watching stopped", "error", err)
			}
		}()
	}

	select {
	case err := <-errs:
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
		logging.Info("shutting down")
		return nil
	}
}
