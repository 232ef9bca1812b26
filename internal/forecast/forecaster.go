// Package forecast manages the training lifecycle of per-product demand
// models and turns trained models into dated forecasts.
package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
	"github.com/andresuchdata/dairyplan/backend-go/internal/engine"
	"github.com/andresuchdata/dairyplan/backend-go/internal/modelstore"
	"github.com/andresuchdata/dairyplan/backend-go/pkg/logger"
)

const (
	noteInsufficient = "Insufficient data for validation"
	mapeFloor        = 0.1
)

// Options tunes training and evaluation.
type Options struct {
	HoldoutDays         int
	MinEvaluationPoints int
	Workers             int
}

// DefaultOptions holds out the last 30 days and needs 60 points to evaluate.
func DefaultOptions() Options {
	return Options{HoldoutDays: 30, MinEvaluationPoints: 60, Workers: 1}
}

// Forecaster trains models through an engine and keeps them in a model store.
type Forecaster struct {
	engine engine.Engine
	store  *modelstore.Store
	opts   Options
	log    zerolog.Logger
}

func New(eng engine.Engine, store *modelstore.Store, opts Options) *Forecaster {
	def := DefaultOptions()
	if opts.HoldoutDays <= 0 {
		opts.HoldoutDays = def.HoldoutDays
	}
	if opts.MinEvaluationPoints <= 0 {
		opts.MinEvaluationPoints = def.MinEvaluationPoints
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	return &Forecaster{
		engine: eng,
		store:  store,
		opts:   opts,
		log:    logger.Component("forecaster"),
	}
}

// Store exposes the underlying model store.
func (f *Forecaster) Store() *modelstore.Store { return f.store }

// Train fits a model on series, evaluates it on a held-out suffix and saves
// model, metrics and metadata under series.ProductKey.
func (f *Forecaster) Train(ctx context.Context, series domain.DemandSeries) (domain.TrainingStatus, error) {
	key := series.ProductKey
	if key == "" {
		return domain.TrainingStatus{}, fmt.Errorf("%w: missing product key", domain.ErrValidation)
	}
	if series.Len() == 0 {
		return domain.TrainingStatus{}, fmt.Errorf("train %s: %w", key, domain.ErrInsufficientData)
	}
	if err := series.Validate(); err != nil {
		return domain.TrainingStatus{}, fmt.Errorf("train %s: %w", key, err)
	}

	start := time.Now()
	model, err := f.engine.Fit(ctx, series)
	if err != nil {
		return domain.TrainingStatus{}, fmt.Errorf("train %s: %w", key, err)
	}

	metrics := f.Evaluate(ctx, series)

	meta, err := f.store.Save(ctx, key, model, metrics, series)
	if err != nil {
		return domain.TrainingStatus{}, err
	}

	f.log.Info().
		Str("product_key", key).
		Int("data_points", meta.DataPoints).
		Str("note", metrics.Note).
		Dur("took", time.Since(start)).
		Msg("model trained")

	return domain.TrainingStatus{
		ProductKey:   key,
		Trained:      true,
		Performance:  metrics,
		LastTraining: meta.TrainedAt,
		DataPoints:   meta.DataPoints,
	}, nil
}

// Evaluate fits a fresh model on all but the last HoldoutDays points and
// scores it on them. Short series produce a note instead of metrics.
func (f *Forecaster) Evaluate(ctx context.Context, series domain.DemandSeries) domain.PerformanceMetrics {
	n := series.Len()
	if n < f.opts.MinEvaluationPoints || n <= f.opts.HoldoutDays {
		return domain.PerformanceMetrics{Note: noteInsufficient}
	}

	split := n - f.opts.HoldoutDays
	train := series.Slice(0, split)
	test := series.Slice(split, n)

	model, err := f.engine.Fit(ctx, train)
	if err != nil {
		return domain.PerformanceMetrics{Note: "Error in validation: " + err.Error()}
	}
	pred, err := model.Predict(test.Dates())
	if err != nil {
		return domain.PerformanceMetrics{Note: "Error in validation: " + err.Error()}
	}

	mae, rmse, mape := score(test.Values(), pred.Point)
	return domain.PerformanceMetrics{
		MAE:  &mae,
		RMSE: &rmse,
		MAPE: &mape,
		Note: fmt.Sprintf("Validation on last %d days", f.opts.HoldoutDays),
	}
}

// score floors both series at mapeFloor and returns MAE, RMSE and MAPE in percent.
func score(actual, predicted []float64) (mae, rmse, mape float64) {
	n := float64(len(actual))
	var absSum, sqSum, pctSum float64
	for i := range actual {
		y := math.Max(actual[i], mapeFloor)
		yhat := math.Max(predicted[i], mapeFloor)
		d := y - yhat
		absSum += math.Abs(d)
		sqSum += d * d
		pctSum += math.Abs(d) / y
	}
	return absSum / n, math.Sqrt(sqSum / n), pctSum / n * 100
}

// TrainBatch trains every series independently. A failure is recorded in
// the item's result and does not stop the rest.
func (f *Forecaster) TrainBatch(ctx context.Context, items []domain.DemandSeries) []domain.ItemResult {
	results := make([]domain.ItemResult, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.Workers)
	for i, series := range items {
		g.Go(func() error {
			status, err := f.Train(gctx, series)
			if err != nil {
				f.log.Error().Err(err).Str("product_key", series.ProductKey).Msg("training failed")
				results[i] = domain.ItemResult{Key: series.ProductKey, Success: false, Message: fmt.Sprintf("Error training model for %s: %v", series.ProductKey, err)}
				return nil
			}
			results[i] = domain.ItemResult{Key: status.ProductKey, Success: true, Message: fmt.Sprintf("Model trained successfully for %s", status.ProductKey)}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Delete removes the model of key from memory and storage.
func (f *Forecaster) Delete(ctx context.Context, key string) error {
	return f.store.Delete(ctx, key)
}

// Status reports every model loaded in memory.
func (f *Forecaster) Status() []domain.TrainingStatus {
	keys := f.store.Keys()
	out := make([]domain.TrainingStatus, 0, len(keys))
	for _, key := range keys {
		if st, ok := f.ModelStatus(key); ok {
			out = append(out, st)
		}
	}
	return out
}

// ModelStatus reports the loaded model of key.
func (f *Forecaster) ModelStatus(key string) (domain.TrainingStatus, bool) {
	rec, ok := f.store.Get(key)
	if !ok {
		return domain.TrainingStatus{}, false
	}
	return domain.TrainingStatus{
		ProductKey:   key,
		Trained:      true,
		Performance:  rec.Metrics,
		LastTraining: rec.Metadata.TrainedAt,
		DataPoints:   rec.Metadata.DataPoints,
	}, true
}
