package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/ritzau/translation-network/pkg/centrality"
	"github.com/ritzau/translation-network/pkg/community"
	"github.com/ritzau/translation-network/pkg/engine"
	"github.com/ritzau/translation-network/pkg/graph"
	"github.com/ritzau/translation-network/pkg/graphdb"
	"github.com/ritzau/translation-network/pkg/model"
)

// DefaultFile is the config file read from the working directory when no
// other path is given.
const DefaultFile = "translation-network.toml"

// EnvPrefix prefixes environment overrides. A double underscore separates
// nesting levels and a single underscore becomes a hyphen, so
// TRANSNET_PAGERANK__DAMPING sets pagerank.damping and TRANSNET_EDGE_TYPES
// sets edge-types.
const EnvPrefix = "TRANSNET_"

// PageRankConfig tunes PageRank.
type PageRankConfig struct {
	Iterations int     `koanf:"iterations"`
	Damping    float64 `koanf:"damping"`
}

// BetweennessConfig tunes betweenness sampling and chunking.
type BetweennessConfig struct {
	SampleThreshold int     `koanf:"sample-threshold"`
	SampleFraction  float64 `koanf:"sample-fraction"`
	Seed            int64   `koanf:"seed"`
	Chunk           int     `koanf:"chunk"`
}

// Config holds all configuration for the application
type Config struct {
	Records     string            `koanf:"records"`
	Entities    []string          `koanf:"entities"`
	Directed    bool              `koanf:"directed"`
	EdgeTypes   []string          `koanf:"edge-types"`
	Iterations  int               `koanf:"iterations"`
	Seed        *int64            `koanf:"seed"`
	PageRank    PageRankConfig    `koanf:"pagerank"`
	Betweenness BetweennessConfig `koanf:"betweenness"`
	Top         int               `koanf:"top"`
	Export      string            `koanf:"export"`
	WebMode     bool              `koanf:"web"`
	Port        int               `koanf:"port"`
	Watch       bool              `koanf:"watch"`
	Verbosity   string            `koanf:"verbosity"`
	VerboseCnt  int               `koanf:"verbose"`
	Neo4j       graphdb.Config    `koanf:"neo4j"`

	// File is the config file that was read, or "" if none was found.
	File string `koanf:"-"`
}

func defaults() map[string]any {
	entities := make([]string, 0)
	for _, key := range model.DefaultEntities() {
		entities = append(entities, key.String())
	}
	edgeTypes := make([]string, 0)
	for _, t := range model.AllEdgeTypes() {
		edgeTypes = append(edgeTypes, string(t))
	}
	cent := centrality.DefaultOptions()

	return map[string]any{
		"records":    "",
		"entities":   entities,
		"directed":   false,
		"edge-types": edgeTypes,
		"iterations": community.DefaultIterations,
		"pagerank": map[string]any{
			"iterations": cent.PageRankIterations,
			"damping":    cent.Damping,
		},
		"betweenness": map[string]any{
			"sample-threshold": cent.SampleThreshold,
			"sample-fraction":  cent.SampleFraction,
			"seed":             cent.SampleSeed,
			"chunk":            cent.ChunkSize,
		},
		"top":       10,
		"export":    "",
		"web":       false,
		"port":      8080,
		"watch":     false,
		"verbosity": "",
		"verbose":   0,
		"neo4j": map[string]any{
			"uri":      "",
			"user":     "neo4j",
			"password": "",
			"database": "",
			"timeout":  "10s",
		},
	}
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
//
// path may be empty, in which case DefaultFile is tried. A missing default
// file is ignored; a missing explicit file is an error.
func Load(f *pflag.FlagSet, path string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(makeMapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	loaded := ""
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		if explicit {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	} else {
		loaded = path
	}

	// 3. Environment Variables
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.ProviderWithFlag(f, ".", k, flagValue(f)), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = loaded
	cfg.Entities = splitList(cfg.Entities)
	cfg.EdgeTypes = splitList(cfg.EdgeTypes)

	return &cfg, nil
}

// flagValue passes flags through unchanged, except that an untouched seed
// flag stays unset so the seed keeps meaning "draw one".
func flagValue(fs *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(fl *pflag.Flag) (string, any) {
		if fl.Name == "seed" && !fl.Changed {
			return "", nil
		}
		return fl.Name, posflag.FlagVal(fs, fl)
	}
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	return strings.ReplaceAll(key, "_", "-")
}

// splitList accepts both list values and comma-separated strings, which is
// what environment variables deliver.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate fails fast on values the engine cannot run with.
func (c *Config) Validate() error {
	if _, err := c.EngineOptions(); err != nil {
		return err
	}
	if c.Top < 0 {
		return fmt.Errorf("top must not be negative, got %d", c.Top)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	return nil
}

// EngineOptions translates the configuration into engine options.
func (c *Config) EngineOptions() (engine.Options, error) {
	keys, err := model.ParseAttributeKeys(c.Entities)
	if err != nil {
		return engine.Options{}, fmt.Errorf("entities: %w", err)
	}
	edgeTypes, err := model.ParseEdgeTypeSet(c.EdgeTypes)
	if err != nil {
		return engine.Options{}, fmt.Errorf("edge-types: %w", err)
	}
	if c.Iterations < 0 {
		return engine.Options{}, fmt.Errorf("iterations: %w", model.ErrNegativeIterations)
	}

	cent := centrality.Options{
		Directed:           c.Directed,
		PageRankIterations: c.PageRank.Iterations,
		Damping:            c.PageRank.Damping,
		SampleThreshold:    c.Betweenness.SampleThreshold,
		SampleFraction:     c.Betweenness.SampleFraction,
		SampleSeed:         c.Betweenness.Seed,
		ChunkSize:          c.Betweenness.Chunk,
	}
	if err := cent.Validate(); err != nil {
		return engine.Options{}, err
	}

	return engine.Options{
		Build: graph.BuildConfig{
			Entities:  keys,
			Directed:  c.Directed,
			EdgeTypes: edgeTypes,
		},
		Centrality: cent,
		Community: community.Options{
			Iterations: c.Iterations,
			Seed:       c.Seed,
		},
	}, nil
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]any
}

func makeMapProvider(m map[string]any) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]any, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
