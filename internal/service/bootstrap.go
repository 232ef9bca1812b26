package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/dairyplan/backend-go/internal/cache"
	"github.com/andresuchdata/dairyplan/backend-go/internal/config"
	"github.com/andresuchdata/dairyplan/backend-go/internal/engine"
	"github.com/andresuchdata/dairyplan/backend-go/internal/forecast"
	"github.com/andresuchdata/dairyplan/backend-go/internal/modelstore"
	"github.com/andresuchdata/dairyplan/backend-go/internal/optimizer"
	"github.com/andresuchdata/dairyplan/backend-go/internal/repository"
	"github.com/andresuchdata/dairyplan/backend-go/internal/storage"
)

// Stack is the assembled planning runtime shared by the binaries.
type Stack struct {
	Planning   *PlanningService
	Forecaster *forecast.Forecaster
	Optimizer  *optimizer.Optimizer
	Store      *modelstore.Store
}

// Bootstrap builds the planning runtime from cfg and loads every persisted
// model. repo may be nil when no sales database is used.
func Bootstrap(ctx context.Context, cfg *config.Config, repo repository.SalesRepository) (*Stack, error) {
	backend, err := storage.New(ctx, cfg.Storage, cfg.App.ModelDir)
	if err != nil {
		return nil, fmt.Errorf("init model storage: %w", err)
	}

	eng, err := engine.New(cfg.Forecast.Engine)
	if err != nil {
		return nil, err
	}

	store := modelstore.New(backend, eng)
	results, err := store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load models: %w", err)
	}
	loaded := 0
	for _, r := range results {
		if r.Success {
			loaded++
		}
	}
	log.Info().Int("loaded", loaded).Int("found", len(results)).Str("engine", eng.Name()).Msg("model store ready")

	catalog, err := optimizer.LoadCatalog(cfg.App.ProductsFile)
	if err != nil {
		return nil, err
	}

	fc, err := cache.NewForecastCache(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("forecast cache unavailable, continuing without it")
		fc = cache.NewNoopForecastCache()
	}

	f := forecast.New(eng, store, forecast.Options{
		HoldoutDays:         cfg.Forecast.HoldoutDays,
		MinEvaluationPoints: cfg.Forecast.MinEvaluationPoints,
		Workers:             cfg.Forecast.TrainWorkers,
	})
	o := optimizer.New(catalog)

	return &Stack{
		Planning: NewPlanningService(f, o, Options{
			Cache:          fc,
			Repository:     repo,
			DefaultHorizon: cfg.Forecast.DefaultHorizon,
		}),
		Forecaster: f,
		Optimizer:  o,
		Store:      store,
	}, nil
}
