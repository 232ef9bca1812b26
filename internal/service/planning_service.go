// backend-go/internal/service/planning_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/dairyplan/backend-go/internal/cache"
	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
	"github.com/andresuchdata/dairyplan/backend-go/internal/forecast"
	"github.com/andresuchdata/dairyplan/backend-go/internal/optimizer"
	"github.com/andresuchdata/dairyplan/backend-go/internal/repository"
	"github.com/andresuchdata/dairyplan/backend-go/internal/sales"
)

const defaultHorizon = 30

var errNoSales = fmt.Errorf("%w: no sales data loaded", domain.ErrInsufficientData)

// Options wires the optional collaborators of the planning service.
type Options struct {
	Cache          cache.ForecastCache
	Repository     repository.SalesRepository
	DefaultHorizon int
}

// UploadResult is the outcome of loading a sales table.
type UploadResult struct {
	Report    sales.Report  `json:"validation"`
	Summary   sales.Summary `json:"summary"`
	Persisted int           `json:"persisted"`
}

// ProductionRequest asks for the production plan of one trained product.
type ProductionRequest struct {
	ProductKey  string   `json:"product_key"`
	Horizon     int      `json:"horizon"`
	SafetyStock *float64 `json:"safety_stock"`
	Capacity    *float64 `json:"capacity"`
}

// InventoryRequest asks for the inventory simulation of one trained product.
type InventoryRequest struct {
	ProductKey       string  `json:"product_key"`
	Horizon          int     `json:"horizon"`
	CurrentInventory float64 `json:"current_inventory"`
}

// PlanningService holds the loaded sales dataset and connects it to
// training, forecasting and optimization.
type PlanningService struct {
	forecaster *forecast.Forecaster
	optimizer  *optimizer.Optimizer
	cache      cache.ForecastCache
	repo       repository.SalesRepository
	horizon    int

	mu      sync.RWMutex
	records []domain.SalesRecord
	summary sales.Summary
}

func NewPlanningService(f *forecast.Forecaster, o *optimizer.Optimizer, opts Options) *PlanningService {
	if opts.Cache == nil {
		opts.Cache = cache.NewNoopForecastCache()
	}
	if opts.DefaultHorizon <= 0 {
		opts.DefaultHorizon = defaultHorizon
	}
	return &PlanningService{
		forecaster: f,
		optimizer:  o,
		cache:      opts.Cache,
		repo:       opts.Repository,
		horizon:    opts.DefaultHorizon,
	}
}

// UploadSales parses and validates a CSV or XLSX sales table and replaces
// the loaded dataset with it. An invalid table is reported with
// ErrValidation and leaves the dataset untouched.
func (s *PlanningService) UploadSales(ctx context.Context, name string, r io.Reader) (UploadResult, error) {
	table, err := sales.Read(name, r)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	res := UploadResult{Report: sales.Validate(table)}
	if !res.Report.Valid {
		return res, fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(res.Report.Errors, "; "))
	}

	records, err := sales.Parse(table)
	if err != nil {
		return res, err
	}
	records = sales.Preprocess(records)
	res.Summary = s.SetSales(records)

	if s.repo != nil {
		n, err := s.repo.InsertSales(ctx, records)
		if err != nil {
			log.Error().Err(err).Str("file", name).Msg("failed to persist uploaded sales")
		}
		res.Persisted = n
	}

	log.Info().Str("file", name).Int("records", len(records)).Msg("sales data loaded")
	return res, nil
}

// SetSales replaces the loaded dataset.
func (s *PlanningService) SetSales(records []domain.SalesRecord) sales.Summary {
	summary := sales.Summarize(records)

	s.mu.Lock()
	s.records = records
	s.summary = summary
	s.mu.Unlock()

	return summary
}

// LoadFromRepository replaces the loaded dataset with the stored sales
// matching filter.
func (s *PlanningService) LoadFromRepository(ctx context.Context, filter domain.SalesFilter) (sales.Summary, error) {
	if s.repo == nil {
		return sales.Summary{}, errors.New("no sales repository configured")
	}
	records, err := s.repo.ListSales(ctx, filter)
	if err != nil {
		return sales.Summary{}, err
	}
	if len(records) == 0 {
		return sales.Summary{}, errNoSales
	}
	return s.SetSales(sales.Preprocess(records)), nil
}

func (s *PlanningService) SalesSummary() (sales.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return sales.Summary{}, errNoSales
	}
	return s.summary, nil
}

func (s *PlanningService) dataset() []domain.SalesRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records
}

// TrainProducts trains one model per product of the loaded dataset, scoped
// to company when given. No products means every product in scope. Each
// product succeeds or fails on its own.
func (s *PlanningService) TrainProducts(ctx context.Context, products []string, company string) ([]domain.ItemResult, error) {
	records := s.dataset()
	if len(records) == 0 {
		return nil, errNoSales
	}

	if len(products) == 0 {
		for _, sc := range sales.Scopes(records, company != "") {
			if company == "" || sc.Company == company {
				products = append(products, sc.Product)
			}
		}
	}

	results := make([]domain.ItemResult, len(products))
	var (
		batch []domain.DemandSeries
		slots []int
	)
	for i, product := range products {
		scope := sales.Scope{Product: product, Company: company}
		daily, err := sales.DailySeries(records, scope)
		if err != nil {
			results[i] = domain.ItemResult{Key: scope.Key(), Success: false, Message: fmt.Sprintf("Error training model for %s: %v", scope.Key(), err)}
			continue
		}
		batch = append(batch, daily.Series)
		slots = append(slots, i)
	}

	for j, res := range s.forecaster.TrainBatch(ctx, batch) {
		results[slots[j]] = res
		if res.Success {
			s.invalidate(ctx, res.Key)
		}
	}
	return results, nil
}

func (s *PlanningService) invalidate(ctx context.Context, key string) {
	if err := s.cache.Invalidate(ctx, key); err != nil {
		log.Warn().Err(err).Str("product_key", key).Msg("forecast cache invalidation failed")
	}
}

func (s *PlanningService) Models() []domain.TrainingStatus {
	return s.forecaster.Status()
}

func (s *PlanningService) Model(key string) (domain.TrainingStatus, error) {
	st, ok := s.forecaster.ModelStatus(key)
	if !ok {
		return domain.TrainingStatus{}, fmt.Errorf("%w: %s", domain.ErrModelNotFound, key)
	}
	return st, nil
}

// ModelPersistence describes what the backend holds for a key, independent
// of the models loaded in memory.
type ModelPersistence struct {
	ProductKey string `json:"product_key"`
	Loaded     bool   `json:"loaded"`
	Persisted  bool   `json:"persisted"`
	Partial    bool   `json:"partial"`
}

func (s *PlanningService) ModelPersistence(ctx context.Context, key string) (ModelPersistence, error) {
	store := s.forecaster.Store()
	_, loaded := store.Get(key)
	complete, err := store.Exists(ctx, key)
	if err != nil {
		return ModelPersistence{}, err
	}
	stored, err := store.Stored(ctx, key)
	if err != nil {
		return ModelPersistence{}, err
	}
	return ModelPersistence{ProductKey: key, Loaded: loaded, Persisted: complete, Partial: stored && !complete}, nil
}

// DeleteModel removes the model of key from memory and storage, along with
// its cached forecasts. Entries on the backend are removed even when the
// model never loaded. A key known to neither yields ErrModelNotFound.
func (s *PlanningService) DeleteModel(ctx context.Context, key string) error {
	_, loaded := s.forecaster.Store().Get(key)
	if !loaded {
		stored, err := s.forecaster.Store().Stored(ctx, key)
		if err != nil {
			return err
		}
		if !stored {
			return fmt.Errorf("%w: %s", domain.ErrModelNotFound, key)
		}
	}
	if err := s.forecaster.Delete(ctx, key); err != nil {
		return err
	}
	s.invalidate(ctx, key)
	return nil
}

// Forecast generates the forecast of key, serving it from the cache while
// the model that produced it is still the loaded one.
func (s *PlanningService) Forecast(ctx context.Context, key string, horizon int, includeHistory bool) (domain.ForecastSeries, error) {
	if horizon == 0 {
		horizon = s.horizon
	}
	st, err := s.Model(key)
	if err != nil {
		return domain.ForecastSeries{}, err
	}

	req := cache.ForecastRequest{ProductKey: key, Horizon: horizon, IncludeHistory: includeHistory, TrainedAt: st.LastTraining}
	if fc, ok, err := s.cache.Get(ctx, req); err != nil {
		log.Warn().Err(err).Str("product_key", key).Msg("forecast cache read failed")
	} else if ok {
		return fc, nil
	}

	fc, err := s.forecaster.Generate(ctx, key, horizon, includeHistory)
	if err != nil {
		return domain.ForecastSeries{}, err
	}
	if err := s.cache.Set(ctx, req, fc); err != nil {
		log.Warn().Err(err).Str("product_key", key).Msg("forecast cache write failed")
	}
	return fc, nil
}

func (s *PlanningService) ForecastSummary(ctx context.Context, key string) ([]domain.ForecastPeriodSummary, error) {
	return s.forecaster.Summary(ctx, key, forecast.DefaultSummaryPeriods)
}

func (s *PlanningService) ExportForecasts(ctx context.Context, keys []string, horizon int) ([]domain.ForecastExportRow, error) {
	if horizon == 0 {
		horizon = s.horizon
	}
	if len(keys) == 0 {
		keys = s.forecaster.Store().Keys()
	}
	return s.forecaster.Export(ctx, keys, horizon)
}

// historicalPrice is the mean unit price of key in the loaded dataset.
func (s *PlanningService) historicalPrice(key string) (float64, bool) {
	records := s.dataset()
	for _, byCompany := range []bool{false, true} {
		for _, sc := range sales.Scopes(records, byCompany) {
			if sc.Key() == key {
				return sales.MeanUnitPrice(records, sc)
			}
		}
	}
	return 0, false
}

func (s *PlanningService) demand(ctx context.Context, key string, horizon int) (domain.DemandSeries, error) {
	fc, err := s.Forecast(ctx, key, horizon, false)
	if err != nil {
		return domain.DemandSeries{}, err
	}
	return fc.Demand(), nil
}

func (s *PlanningService) OptimizeProduction(ctx context.Context, req ProductionRequest) (*domain.ProductionPlan, error) {
	series, err := s.demand(ctx, req.ProductKey, req.Horizon)
	if err != nil {
		return nil, err
	}
	opts := optimizer.ProductionOptions{SafetyStock: req.SafetyStock, Capacity: req.Capacity}
	if p, ok := s.historicalPrice(req.ProductKey); ok {
		opts.UnitPrice = &p
	}
	return s.optimizer.CalculateOptimalProduction(series, req.ProductKey, opts)
}

func (s *PlanningService) OptimizeInventory(ctx context.Context, req InventoryRequest) (*domain.InventoryPlan, error) {
	series, err := s.demand(ctx, req.ProductKey, req.Horizon)
	if err != nil {
		return nil, err
	}
	return s.optimizer.CalculateInventoryOptimization(series, req.ProductKey, req.CurrentInventory)
}

func (s *PlanningService) planKeys(keys []string) []string {
	if len(keys) == 0 {
		return s.forecaster.Store().Keys()
	}
	return keys
}

// OptimizationSummary plans every key, or every loaded model when keys is
// empty, priced from the loaded sales where available.
func (s *PlanningService) OptimizationSummary(ctx context.Context, keys []string, horizon int) (domain.OptimizationSummary, error) {
	if horizon == 0 {
		horizon = s.horizon
	}
	keys = s.planKeys(keys)

	forecasts := make(map[string]domain.DemandSeries, len(keys))
	prices := map[string]float64{}
	for _, key := range keys {
		series, err := s.demand(ctx, key, horizon)
		if errors.Is(err, domain.ErrModelNotFound) {
			log.Warn().Str("product_key", key).Msg("no trained model, leaving product out of summary")
			forecasts[key] = domain.DemandSeries{ProductKey: key}
			continue
		}
		if err != nil {
			return domain.OptimizationSummary{}, err
		}
		forecasts[key] = series
		if p, ok := s.historicalPrice(key); ok {
			prices[key] = p
		}
	}
	return s.optimizer.GenerateOptimizationSummary(forecasts, keys, horizon, prices)
}

// CapacityUtilization rolls the production plans of keys up per day. Keys
// without a trained model are left out.
func (s *PlanningService) CapacityUtilization(ctx context.Context, keys []string, horizon int) ([]domain.CapacityUtilizationRow, error) {
	keys = s.planKeys(keys)
	forecasts := make(map[string]domain.DemandSeries, len(keys))
	opts := make(map[string]optimizer.ProductionOptions, len(keys))
	for _, key := range keys {
		series, err := s.demand(ctx, key, horizon)
		if errors.Is(err, domain.ErrModelNotFound) {
			log.Warn().Str("product_key", key).Msg("no trained model, leaving product out of capacity plan")
			continue
		}
		if err != nil {
			return nil, err
		}
		forecasts[key] = series
		if p, ok := s.historicalPrice(key); ok {
			opts[key] = optimizer.ProductionOptions{UnitPrice: &p}
		}
	}
	return s.optimizer.PlanCapacity(forecasts, keys, opts)
}
