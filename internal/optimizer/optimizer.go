// Package optimizer turns demand forecasts into production, inventory and
// capacity plans under per-product constraints.
package optimizer

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
	"github.com/andresuchdata/dairyplan/backend-go/pkg/logger"
)

// DefaultSafetyStock is the buffer added to demand when none is given.
const DefaultSafetyStock = 0.1

// Recommendation texts.
const (
	RecommendUnderUtilized = "Consider increasing production capacity utilization or reducing fixed costs"
	RecommendExpand        = "Consider expanding production capacity to meet demand"
	RecommendPricing       = "Review pricing strategy or production costs to improve margins"
	RecommendFlexible      = "High demand variability detected - consider flexible production scheduling"
)

// ProductionOptions overrides the catalog for one plan. Nil fields use the
// catalog, or DefaultSafetyStock for SafetyStock.
type ProductionOptions struct {
	SafetyStock *float64
	Capacity    *float64
	UnitPrice   *float64
}

type Optimizer struct {
	catalog *Catalog
	log     zerolog.Logger
	now     func() time.Time
}

func New(catalog *Catalog) *Optimizer {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Optimizer{
		catalog: catalog,
		log:     logger.Component("optimizer"),
		now:     time.Now,
	}
}

func (o *Optimizer) Catalog() *Catalog { return o.catalog }

// productionRow holds one day before rounding.
type productionRow struct {
	date        time.Time
	demand      float64
	production  float64
	utilization float64
	cost        float64
	revenue     float64
	margin      float64
}

type productionResult struct {
	capacity    float64
	safetyStock float64
	defaulted   []string
	rows        []productionRow
}

func (o *Optimizer) production(series domain.DemandSeries, key string, opts ProductionOptions) (*productionResult, error) {
	if series.Len() == 0 {
		return nil, nil
	}
	if err := validateSeries(series); err != nil {
		return nil, err
	}

	cfg, defaulted := o.catalog.Lookup(key)
	res := &productionResult{capacity: cfg.Capacity, safetyStock: DefaultSafetyStock}

	if opts.SafetyStock != nil {
		if *opts.SafetyStock < 0 || math.IsNaN(*opts.SafetyStock) {
			return nil, fmt.Errorf("%w: safety stock must be non-negative", domain.ErrValidation)
		}
		res.safetyStock = *opts.SafetyStock
	}
	if opts.Capacity != nil {
		if *opts.Capacity <= 0 || math.IsNaN(*opts.Capacity) {
			return nil, fmt.Errorf("%w: capacity must be positive", domain.ErrValidation)
		}
		res.capacity = *opts.Capacity
		defaulted = without(defaulted, FieldCapacity)
	}
	price := cfg.UnitPrice
	if opts.UnitPrice != nil && *opts.UnitPrice > 0 {
		price = *opts.UnitPrice
		defaulted = without(defaulted, FieldUnitPrice)
	}
	defaulted = without(defaulted, FieldStorageCost, FieldShelfLife)
	warnDefaults(o.log, key, defaulted)
	res.defaulted = defaulted

	res.rows = make([]productionRow, series.Len())
	for i, p := range series.Points {
		adjusted := p.Quantity * (1 + res.safetyStock)
		qty := math.Min(adjusted, res.capacity)
		row := productionRow{
			date:        p.Date,
			demand:      p.Quantity,
			production:  qty,
			utilization: qty / res.capacity * 100,
			cost:        qty * cfg.UnitCost,
			revenue:     qty * price,
		}
		if row.revenue > 0 {
			row.margin = (row.revenue - row.cost) / row.revenue * 100
		}
		res.rows[i] = row
	}
	return res, nil
}

// CalculateOptimalProduction plans one production run per demand row. An
// empty series yields a nil plan and no error.
func (o *Optimizer) CalculateOptimalProduction(series domain.DemandSeries, key string, opts ProductionOptions) (*domain.ProductionPlan, error) {
	res, err := o.production(series, key, opts)
	if err != nil || res == nil {
		return nil, err
	}

	plan := &domain.ProductionPlan{
		ProductKey:  key,
		Capacity:    res.capacity,
		SafetyStock: res.safetyStock,
		Rows:        make([]domain.ProductionPlanRow, len(res.rows)),
		Defaulted:   res.defaulted,
	}
	for i, r := range res.rows {
		plan.Rows[i] = domain.ProductionPlanRow{
			Date:                r.date,
			ForecastedDemand:    demand(r.demand),
			OptimalProduction:   units(r.production),
			CapacityUtilization: percent(r.utilization),
			ProductionCost:      money(r.cost),
			PotentialRevenue:    money(r.revenue),
			ProfitMargin:        percent(r.margin),
		}
	}
	return plan, nil
}

// CalculateInventoryOptimization simulates stock forward through the series,
// ordering up to the shelf-life bounded optimum whenever stock falls below
// two days of demand.
func (o *Optimizer) CalculateInventoryOptimization(series domain.DemandSeries, key string, currentInventory float64) (*domain.InventoryPlan, error) {
	if series.Len() == 0 {
		return nil, nil
	}
	if err := validateSeries(series); err != nil {
		return nil, err
	}
	if currentInventory < 0 || math.IsNaN(currentInventory) {
		return nil, fmt.Errorf("%w: current inventory must be non-negative", domain.ErrValidation)
	}

	cfg, defaulted := o.catalog.Lookup(key)
	defaulted = without(defaulted, FieldCapacity, FieldUnitCost, FieldUnitPrice)
	warnDefaults(o.log, key, defaulted)

	shelfLife := cfg.ShelfLifeDays
	if shelfLife <= 0 {
		shelfLife = Fallback.ShelfLifeDays
	}

	plan := &domain.InventoryPlan{
		ProductKey:    key,
		ShelfLifeDays: shelfLife,
		Rows:          make([]domain.InventoryPlanRow, series.Len()),
		Defaulted:     defaulted,
	}

	values := series.Values()
	stock := currentInventory
	for i, p := range series.Points {
		today := values[i]
		optimal := math.Min(windowSum(values, i, shelfLife), today*float64(shelfLife))
		reorder := today * 2

		order := 0.0
		if stock < reorder {
			order = math.Max(0, optimal-stock)
		}
		stock = math.Max(0, stock+order-today)

		plan.Rows[i] = domain.InventoryPlanRow{
			Date:              p.Date,
			CurrentInventory:  units(stock),
			ForecastedDemand:  units(today),
			OptimalStockLevel: units(optimal),
			ReorderPoint:      units(reorder),
			RecommendedOrder:  units(order),
			DailyStorageCost:  money(stock * cfg.StorageCostPerDay),
			StockStatus:       domain.StockStatus(stock, reorder, optimal),
		}
	}
	return plan, nil
}

// windowSum sums values[i : i+n], truncated at the end of the slice.
func windowSum(values []float64, i, n int) float64 {
	end := min(i+n, len(values))
	var sum float64
	for _, v := range values[i:end] {
		sum += v
	}
	return sum
}

// capacityRollup totals production and averages utilization per date.
type capacityRollup struct {
	byDate map[time.Time]*capacityAcc
	order  []time.Time
}

type capacityAcc struct {
	production  float64
	utilization float64
	n           int
}

func (r *capacityRollup) add(date time.Time, production, utilization float64) {
	if r.byDate == nil {
		r.byDate = make(map[time.Time]*capacityAcc)
	}
	d := domain.Day(date)
	a, ok := r.byDate[d]
	if !ok {
		a = &capacityAcc{}
		r.byDate[d] = a
		r.order = append(r.order, d)
	}
	a.production += production
	a.utilization += utilization
	a.n++
}

func (r *capacityRollup) rows() []domain.CapacityUtilizationRow {
	sort.Slice(r.order, func(i, j int) bool { return r.order[i].Before(r.order[j]) })

	out := make([]domain.CapacityUtilizationRow, 0, len(r.order))
	for _, d := range r.order {
		a := r.byDate[d]
		avg := a.utilization / float64(a.n)
		out = append(out, domain.CapacityUtilizationRow{
			Date:              d,
			TotalProduction:   units(a.production),
			AvgUtilization:    percent(avg),
			UtilizationStatus: domain.UtilizationStatus(avg),
		})
	}
	return out
}

// CalculateCapacityUtilization groups the rows of finished plans by date
// across products. Plan rows are already rounded; PlanCapacity works from
// the unrounded values when the forecasts are at hand.
func (o *Optimizer) CalculateCapacityUtilization(plans []*domain.ProductionPlan) []domain.CapacityUtilizationRow {
	var r capacityRollup
	for _, plan := range plans {
		if plan == nil {
			continue
		}
		for _, row := range plan.Rows {
			r.add(row.Date, row.OptimalProduction, row.CapacityUtilization)
		}
	}
	return r.rows()
}

// PlanCapacity plans each key and rolls the unrounded production up per
// date. Keys without demand rows contribute nothing. opts optionally holds
// per-key production options.
func (o *Optimizer) PlanCapacity(forecasts map[string]domain.DemandSeries, keys []string, opts map[string]ProductionOptions) ([]domain.CapacityUtilizationRow, error) {
	var r capacityRollup
	for _, key := range keys {
		res, err := o.production(forecasts[key], key, opts[key])
		if err != nil {
			return nil, fmt.Errorf("optimize %s: %w", key, err)
		}
		if res == nil {
			continue
		}
		for _, row := range res.rows {
			r.add(row.date, row.production, row.utilization)
		}
	}
	return r.rows(), nil
}

// GenerateOptimizationSummary plans each key with the default safety stock
// and aggregates the results. Keys without demand rows are left out of the
// product analysis and the overall totals. prices optionally overrides the
// unit price per key.
func (o *Optimizer) GenerateOptimizationSummary(forecasts map[string]domain.DemandSeries, keys []string, horizon int, prices map[string]float64) (domain.OptimizationSummary, error) {
	summary := domain.OptimizationSummary{
		TotalProducts:    len(keys),
		TimeHorizonDays:  horizon,
		OptimizationDate: o.now().Format("2006-01-02"),
		Products:         make(map[string]domain.ProductOptimization, len(keys)),
	}

	var totalCost, totalRevenue float64
	for _, key := range keys {
		var opts ProductionOptions
		if p, ok := prices[key]; ok {
			opts.UnitPrice = &p
		}
		res, err := o.production(forecasts[key], key, opts)
		if err != nil {
			return domain.OptimizationSummary{}, fmt.Errorf("optimize %s: %w", key, err)
		}
		if res == nil {
			o.log.Debug().Str("product", key).Msg("no forecast rows, skipped")
			continue
		}

		var p domain.ProductOptimization
		var sumUtil, sumMargin, cost, revenue float64
		demands := make([]float64, len(res.rows))
		for i, r := range res.rows {
			p.TotalForecastedDemand += r.demand
			p.TotalOptimalProduction += r.production
			sumUtil += r.utilization
			sumMargin += r.margin
			cost += r.cost
			revenue += r.revenue
			demands[i] = r.demand
		}
		n := float64(len(res.rows))
		avgUtil := sumUtil / n
		avgMargin := sumMargin / n

		p.TotalForecastedDemand = demand(p.TotalForecastedDemand)
		p.TotalOptimalProduction = units(p.TotalOptimalProduction)
		p.AvgCapacityUtilization = percent(avgUtil)
		p.TotalProductionCost = money(cost)
		p.TotalPotentialRevenue = money(revenue)
		p.AvgProfitMargin = percent(avgMargin)
		p.CapacityConstraint = res.capacity
		p.Recommendations = recommendations(avgUtil, avgMargin, demands)

		summary.Products[key] = p
		totalCost += cost
		totalRevenue += revenue
	}

	summary.Overall = domain.OverallMetrics{
		TotalProductionCost:   money(totalCost),
		TotalPotentialRevenue: money(totalRevenue),
	}
	if totalRevenue > 0 {
		summary.Overall.OverallProfitMargin = percent((totalRevenue - totalCost) / totalRevenue * 100)
	}
	return summary, nil
}

func recommendations(avgUtil, avgMargin float64, demands []float64) []string {
	recs := []string{}
	if avgUtil < 60 {
		recs = append(recs, RecommendUnderUtilized)
	}
	if avgUtil > 90 {
		recs = append(recs, RecommendExpand)
	}
	if avgMargin < 20 {
		recs = append(recs, RecommendPricing)
	}
	if cv, ok := coefficientOfVariation(demands); ok && cv > 0.3 {
		recs = append(recs, RecommendFlexible)
	}
	return recs
}

// coefficientOfVariation uses the sample standard deviation. It is undefined
// for fewer than two values or a non-positive mean.
func coefficientOfVariation(values []float64) (float64, bool) {
	n := len(values)
	if n < 2 {
		return 0, false
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)
	if mean <= 0 {
		return 0, false
	}
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq/float64(n-1)) / mean, true
}

func validateSeries(s domain.DemandSeries) error {
	for _, p := range s.Points {
		if math.IsNaN(p.Quantity) || math.IsInf(p.Quantity, 0) {
			return fmt.Errorf("%w: demand on %s is not a number", domain.ErrValidation, p.Date.Format("2006-01-02"))
		}
	}
	return s.Validate()
}

func without(fields []string, drop ...string) []string {
	if len(fields) == 0 {
		return fields
	}
	out := fields[:0:0]
	for _, f := range fields {
		keep := true
		for _, d := range drop {
			if f == d {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, f)
		}
	}
	return out
}
