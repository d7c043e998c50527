package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/landmark-labs/sitescan/internal/config"
	"github.com/landmark-labs/sitescan/internal/export"
	"github.com/landmark-labs/sitescan/internal/groundtruth"
	"github.com/landmark-labs/sitescan/internal/model"
	"github.com/landmark-labs/sitescan/internal/pipeline"
	"github.com/landmark-labs/sitescan/internal/provider"
	"github.com/landmark-labs/sitescan/internal/scorer"
	"github.com/landmark-labs/sitescan/internal/store"
)

// pipelineEnv holds the initialized store, provider, and pipeline needed by
// the run/batch/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.Path
		if dsn == "" {
			dsn = "sitescan.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initProvider builds the imagery provider for the requested mode. Live
// runs talk to the STAC endpoint behind a rate limiter; demo runs use the
// deterministic synthetic provider.
func initProvider(mode model.RunMode, seed int64) (provider.Provider, error) {
	switch mode {
	case model.ModeDemo:
		p := provider.NewSyntheticProvider(seed)
		if cfg.Provider.GridSize > 0 {
			p.GridSize = cfg.Provider.GridSize
		}
		return p, nil
	case model.ModeLive:
		stac := provider.NewSTACProvider(cfg.Provider.BaseURL, cfg.Provider.Collection, cfg.Provider.Token, nil)
		return provider.NewRateLimited(stac, cfg.Provider.RateRPS, cfg.Provider.RateBurst), nil
	default:
		return nil, eris.Errorf("unsupported mode: %s", mode)
	}
}

// initPipeline sets up the store, provider, scorer, and exporter, and
// builds the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode model.RunMode, seed int64) (*pipelineEnv, error) {
	if err := cfg.Validate(string(mode)); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	p, err := buildPipeline(st, mode, seed)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &pipelineEnv{Store: st, Pipeline: p}, nil
}

// buildPipeline assembles a pipeline around an already-open store.
func buildPipeline(st store.Store, mode model.RunMode, seed int64) (*pipeline.Pipeline, error) {
	prov, err := initProvider(mode, seed)
	if err != nil {
		return nil, err
	}

	scoringCfg, err := config.LoadScoringProfile(cfg.Scoring.ProfilePath)
	if err != nil {
		return nil, err
	}

	return pipeline.New(
		prov,
		groundtruth.NewLoader(nil),
		scorer.New(scoringCfg),
		st,
		export.New(),
		pipeline.Options{
			Retry:          cfg.Retry.ToRetry(),
			NumTrees:       cfg.Detector.NumTrees,
			SampleSize:     cfg.Detector.SampleSize,
			MinSitePixels:  cfg.Extractor.MinPixels,
			MatchDistanceM: cfg.Evaluation.MatchDistanceM,
		},
	), nil
}
