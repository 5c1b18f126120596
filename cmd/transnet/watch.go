package main

import (
	"context"
	"errors"
	"time"

	"github.com/ritzau/translation-network/pkg/config"
	"github.com/ritzau/translation-network/pkg/engine"
	"github.com/ritzau/translation-network/pkg/logging"
	"github.com/ritzau/translation-network/pkg/model"
	"github.com/ritzau/translation-network/pkg/records"
	"github.com/ritzau/translation-network/pkg/watcher"
)

const (
	quietPeriod = 500 * time.Millisecond
	maxWait     = 5 * time.Second
)

// watch recomputes whenever the record file or the config file changes and
// persists every committed snapshot with the configuration it was computed
// from. It blocks until ctx is cancelled.
func (a *app) watch(ctx context.Context, eng *engine.Engine, cfg config.Config) error {
	fw, err := watcher.NewFileWatcher(cfg.Records, cfg.File)
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		return err
	}
	defer fw.Stop()

	debouncer := watcher.NewDebouncer(fw.Events(), quietPeriod, maxWait)
	debouncer.Start(ctx)

	for event := range debouncer.Output() {
		changes := watcher.AnalyzeChanges(event)
		if !changes.ReloadConfig && !changes.ReloadRecords {
			continue
		}
		logging.Info("detected changes", "type", event.Type, "files", len(changes.ChangedFiles))

		opts := eng.Options()
		if changes.ReloadConfig {
			newCfg, newOpts, err := a.loadConfig()
			if err != nil {
				logging.Error("keeping previous configuration", "error", err)
				continue
			}
			cfg, opts = *newCfg, newOpts
		}

		recs, err := records.Load(cfg.Records)
		if err != nil {
			logging.Error("failed to reload records", "path", cfg.Records, "error", err)
			continue
		}

		// A pass still running is superseded by this one
		go a.recompute(ctx, eng, recs, opts, cfg)
	}
	return nil
}

func (a *app) recompute(ctx context.Context, eng *engine.Engine, recs []model.Record, opts engine.Options, cfg config.Config) {
	snap, err := eng.Recompute(ctx, recs, opts)
	switch {
	case errors.Is(err, engine.ErrStaleGeneration):
		logging.Debug("recomputation superseded", "error", err)
		return
	case err != nil:
		logging.Error("recomputation failed", "error", err)
		return
	}
	if _, err := a.persister.persist(ctx, snap, cfg); err != nil {
		logging.Error("failed to persist", "generation", snap.Generation, "error", err)
	}
}
