package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/fnopart/internal/analysis/participant"
	"github.com/seenimoa/fnopart/internal/archive"
	"github.com/seenimoa/fnopart/internal/config"
	"github.com/seenimoa/fnopart/internal/datasource"
	"github.com/seenimoa/fnopart/internal/metrics"
	"github.com/seenimoa/fnopart/internal/pipeline"
)

// app holds the components shared by compute and serve.
type app struct {
	service *pipeline.Service
	metrics *metrics.Recorder
}

func newApp(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*app, error) {
	variant, err := participant.ParseVariant(cfg.Signal.Variant)
	if err != nil {
		return nil, err
	}

	var rec *metrics.Recorder
	if cfg.Metrics.Enabled {
		rec = metrics.New()
	}

	opts := datasource.OptionsFromConfig(cfg.Source)
	opts.Logger = log
	opts.Metrics = rec
	fetcher := datasource.NewArchives(opts)

	var cache *datasource.SnapshotCache
	if cfg.Cache.Enabled {
		cache = datasource.NewSnapshotCache(cfg.Cache.TTL)
	}

	arch, err := archive.New(ctx, cfg.Archive, log)
	if err != nil {
		return nil, fmt.Errorf("archive setup failed: %w", err)
	}

	return &app{
		service: pipeline.New(pipeline.Config{
			Fetcher:  fetcher,
			Cache:    cache,
			Archiver: arch,
			Metrics:  rec,
			Logger:   log,
			Variant:  variant,
		}),
		metrics: rec,
	}, nil
}
