package optimizer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
)

var day0 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func demandSeries(key string, values ...float64) domain.DemandSeries {
	s := domain.DemandSeries{ProductKey: key}
	for i, v := range values {
		s.Points = append(s.Points, domain.DemandPoint{Date: day0.AddDate(0, 0, i), Quantity: v})
	}
	return s
}

func ptr(v float64) *float64 { return &v }

func TestProductionCappedByCapacity(t *testing.T) {
	o := New(nil)
	plan, err := o.CalculateOptimalProduction(demandSeries("Milk", 100), "Milk", ProductionOptions{
		SafetyStock: ptr(0.1),
		Capacity:    ptr(80),
	})
	require.NoError(t, err)
	require.NotNil(t, plan)
	require.Len(t, plan.Rows, 1)

	row := plan.Rows[0]
	assert.Equal(t, 80.0, row.OptimalProduction)
	assert.Equal(t, 100.0, row.CapacityUtilization)
	assert.Equal(t, 1200.0, row.ProductionCost)
	assert.Equal(t, 2000.0, row.PotentialRevenue)
	assert.Equal(t, 40.0, row.ProfitMargin)
	assert.Empty(t, plan.Defaulted)
}

func TestProductionZeroRevenueHasZeroMargin(t *testing.T) {
	plan, err := New(nil).CalculateOptimalProduction(demandSeries("Butter", 0, 0), "Butter", ProductionOptions{})
	require.NoError(t, err)
	for _, row := range plan.Rows {
		assert.Zero(t, row.PotentialRevenue)
		assert.Zero(t, row.ProfitMargin)
	}
}

func TestProductionEmptySeries(t *testing.T) {
	plan, err := New(nil).CalculateOptimalProduction(domain.DemandSeries{}, "Milk", ProductionOptions{})
	assert.NoError(t, err)
	assert.Nil(t, plan)
}

func TestProductionRowInvariants(t *testing.T) {
	o := New(nil)
	values := []float64{0, 12.4, 250, 1999, 1818.2, 3000, 77.7, 640}
	plan, err := o.CalculateOptimalProduction(demandSeries("Milk", values...), "Milk", ProductionOptions{})
	require.NoError(t, err)
	require.Len(t, plan.Rows, len(values))

	for i, row := range plan.Rows {
		assert.GreaterOrEqual(t, row.OptimalProduction, 0.0)
		assert.LessOrEqual(t, row.OptimalProduction, plan.Capacity)
		assert.InDelta(t, row.OptimalProduction/plan.Capacity*100, row.CapacityUtilization, 0.1, "row %d", i)
		assert.Equal(t, day0.AddDate(0, 0, i), row.Date)
	}
}

func TestProductionRejectsBadInput(t *testing.T) {
	o := New(nil)
	s := demandSeries("Milk", 10, 20)
	s.Points[1].Date = s.Points[0].Date
	_, err := o.CalculateOptimalProduction(s, "Milk", ProductionOptions{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = o.CalculateOptimalProduction(demandSeries("Milk", 10, -1), "Milk", ProductionOptions{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = o.CalculateOptimalProduction(demandSeries("Milk", 10), "Milk", ProductionOptions{Capacity: ptr(0)})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestProductionUnknownProductUsesFallback(t *testing.T) {
	plan, err := New(nil).CalculateOptimalProduction(demandSeries("Kefir", 50), "Kefir", ProductionOptions{SafetyStock: ptr(0)})
	require.NoError(t, err)
	assert.Equal(t, Fallback.Capacity, plan.Capacity)
	assert.ElementsMatch(t, []string{FieldCapacity, FieldUnitCost, FieldUnitPrice}, plan.Defaulted)
	assert.Equal(t, 5000.0, plan.Rows[0].PotentialRevenue)
	assert.Zero(t, plan.Rows[0].ProductionCost)
}

func TestProductionCompanyScopedKey(t *testing.T) {
	plan, err := New(nil).CalculateOptimalProduction(demandSeries("Amul Milk", 10), "Amul Milk", ProductionOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2000.0, plan.Capacity)
	assert.Empty(t, plan.Defaulted)
}

func TestProductionHistoricalPrice(t *testing.T) {
	plan, err := New(nil).CalculateOptimalProduction(demandSeries("Milk", 10), "Milk", ProductionOptions{
		SafetyStock: ptr(0),
		UnitPrice:   ptr(30),
	})
	require.NoError(t, err)
	assert.Equal(t, 300.0, plan.Rows[0].PotentialRevenue)
}

func TestInventorySimulation(t *testing.T) {
	plan, err := New(nil).CalculateInventoryOptimization(demandSeries("Milk", 100, 100, 100, 100, 100, 100, 100), "Milk", 0)
	require.NoError(t, err)
	require.Len(t, plan.Rows, 7)
	assert.Equal(t, 5, plan.ShelfLifeDays)

	first := plan.Rows[0]
	assert.Equal(t, 500.0, first.OptimalStockLevel)
	assert.Equal(t, 200.0, first.ReorderPoint)
	assert.Equal(t, 500.0, first.RecommendedOrder)
	assert.Equal(t, 400.0, first.CurrentInventory)
	assert.Equal(t, 200.0, first.DailyStorageCost)
	assert.Equal(t, domain.StockStatusOptimal, first.StockStatus)

	assert.Zero(t, plan.Rows[1].RecommendedOrder)
	assert.Equal(t, 300.0, plan.Rows[1].CurrentInventory)

	assert.Equal(t, 100.0, plan.Rows[3].CurrentInventory)
	assert.Equal(t, 400.0, plan.Rows[3].OptimalStockLevel)
	assert.Equal(t, domain.StockStatusReorder, plan.Rows[3].StockStatus)

	assert.Equal(t, 200.0, plan.Rows[4].RecommendedOrder)
	assert.Equal(t, 200.0, plan.Rows[4].CurrentInventory)
}

func TestInventoryOrderNeverNegative(t *testing.T) {
	// opening stock above target but below the reorder point of a demand spike
	plan, err := New(nil).CalculateInventoryOptimization(demandSeries("Milk", 300, 1), "Milk", 400)
	require.NoError(t, err)
	for _, row := range plan.Rows {
		assert.GreaterOrEqual(t, row.RecommendedOrder, 0.0)
		assert.GreaterOrEqual(t, row.CurrentInventory, 0.0)
	}
}

func TestInventoryRejectsNegativeStock(t *testing.T) {
	_, err := New(nil).CalculateInventoryOptimization(demandSeries("Milk", 1), "Milk", -5)
	assert.ErrorIs(t, err, domain.ErrValidation)

	plan, err := New(nil).CalculateInventoryOptimization(domain.DemandSeries{}, "Milk", 0)
	assert.NoError(t, err)
	assert.Nil(t, plan)
}

func TestCapacityUtilizationRollup(t *testing.T) {
	o := New(nil)
	milk, err := o.CalculateOptimalProduction(demandSeries("Milk", 1000, 2000), "Milk", ProductionOptions{SafetyStock: ptr(0)})
	require.NoError(t, err)
	ghee, err := o.CalculateOptimalProduction(demandSeries("Ghee", 300, 300), "Ghee", ProductionOptions{SafetyStock: ptr(0)})
	require.NoError(t, err)

	rows := o.CalculateCapacityUtilization([]*domain.ProductionPlan{milk, ghee, nil})
	require.Len(t, rows, 2)
	assert.Equal(t, day0, rows[0].Date)
	assert.Equal(t, 1300.0, rows[0].TotalProduction)
	assert.Equal(t, 75.0, rows[0].AvgUtilization)
	assert.Equal(t, domain.UtilizationOptimal, rows[0].UtilizationStatus)
	assert.Equal(t, 100.0, rows[1].AvgUtilization)
	assert.Equal(t, domain.UtilizationOver, rows[1].UtilizationStatus)
}

func TestPlanCapacityRollsUpUnroundedProduction(t *testing.T) {
	o := New(nil)
	noSafety := ProductionOptions{SafetyStock: ptr(0)}
	forecasts := map[string]domain.DemandSeries{
		"Milk":   demandSeries("Milk", 100.4),
		"Yogurt": demandSeries("Yogurt", 100.4),
		"Cheese": {ProductKey: "Cheese"},
	}
	keys := []string{"Milk", "Yogurt", "Cheese"}

	rows, err := o.PlanCapacity(forecasts, keys, map[string]ProductionOptions{"Milk": noSafety, "Yogurt": noSafety})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, day0, rows[0].Date)
	assert.Equal(t, 201.0, rows[0].TotalProduction)

	var plans []*domain.ProductionPlan
	for _, key := range keys[:2] {
		plan, err := o.CalculateOptimalProduction(forecasts[key], key, noSafety)
		require.NoError(t, err)
		plans = append(plans, plan)
	}
	assert.Equal(t, 200.0, o.CalculateCapacityUtilization(plans)[0].TotalProduction)

	_, err = o.PlanCapacity(forecasts, keys, map[string]ProductionOptions{"Milk": {SafetyStock: ptr(-1)}})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSummarySkipsEmptyProducts(t *testing.T) {
	o := New(nil)
	o.now = func() time.Time { return day0 }

	forecasts := map[string]domain.DemandSeries{
		"Milk":   demandSeries("Milk", 100, 100, 100),
		"Butter": demandSeries("Butter", 50, 50, 50),
		"Cheese": {ProductKey: "Cheese"},
	}
	sum, err := o.GenerateOptimizationSummary(forecasts, []string{"Milk", "Butter", "Cheese"}, 3, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.TotalProducts)
	assert.Equal(t, 3, sum.TimeHorizonDays)
	assert.Equal(t, "2024-06-01", sum.OptimizationDate)
	require.Len(t, sum.Products, 2)
	assert.NotContains(t, sum.Products, "Cheese")

	assert.InDelta(t, 54450, sum.Overall.TotalProductionCost, 1e-6)
	assert.InDelta(t, 82500, sum.Overall.TotalPotentialRevenue, 1e-6)
	assert.InDelta(t, 34.0, sum.Overall.OverallProfitMargin, 1e-9)

	milk := sum.Products["Milk"]
	assert.Equal(t, 300.0, milk.TotalForecastedDemand)
	assert.Equal(t, 330.0, milk.TotalOptimalProduction)
	assert.Equal(t, 2000.0, milk.CapacityConstraint)
	assert.Equal(t, []string{RecommendUnderUtilized}, milk.Recommendations)
}

func TestSummaryAllEmpty(t *testing.T) {
	sum, err := New(nil).GenerateOptimizationSummary(nil, []string{"Milk"}, 30, nil)
	require.NoError(t, err)
	assert.Empty(t, sum.Products)
	assert.Zero(t, sum.Overall.OverallProfitMargin)
}

func TestRecommendations(t *testing.T) {
	cat := NewCatalog(map[string]domain.ProductConfig{
		"Thin": {Capacity: 100, UnitCost: 15, StorageCostPerDay: 1, ShelfLifeDays: 3, UnitPrice: 18},
	})
	o := New(cat)
	sum, err := o.GenerateOptimizationSummary(map[string]domain.DemandSeries{
		"Thin": demandSeries("Thin", 40, 400, 400, 400, 400, 400, 400, 400),
	}, []string{"Thin"}, 8, nil)
	require.NoError(t, err)

	recs := sum.Products["Thin"].Recommendations
	assert.Contains(t, recs, RecommendExpand)
	assert.Contains(t, recs, RecommendPricing)
	assert.Contains(t, recs, RecommendFlexible)
	assert.NotContains(t, recs, RecommendUnderUtilized)
}

func TestCoefficientOfVariation(t *testing.T) {
	_, ok := coefficientOfVariation([]float64{5})
	assert.False(t, ok)
	_, ok = coefficientOfVariation([]float64{0, 0, 0})
	assert.False(t, ok)

	cv, ok := coefficientOfVariation([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	require.True(t, ok)
	assert.InDelta(t, 2.138089935/5, cv, 1e-6)
}

func TestLoadCatalogOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`products:
  Milk:
    capacity: 3000
  Paneer:
    capacity: 200
    unit_cost: 180
    unit_price: 320
`), 0o644))

	cat, err := LoadCatalog(path)
	require.NoError(t, err)

	milk, defaulted := cat.Lookup("Milk")
	assert.Empty(t, defaulted)
	assert.Equal(t, 3000.0, milk.Capacity)
	assert.Equal(t, 15.0, milk.UnitCost)
	assert.Equal(t, 5, milk.ShelfLifeDays)

	// unknown product names keep the lowercase form viper decodes them in
	paneer, defaulted := cat.Lookup("Paneer")
	assert.Empty(t, defaulted)
	assert.Equal(t, 200.0, paneer.Capacity)
	assert.Equal(t, 320.0, paneer.UnitPrice)
	assert.Equal(t, Fallback.ShelfLifeDays, paneer.ShelfLifeDays)
	assert.Contains(t, cat.Products(), "paneer")
}

func TestLoadCatalogKeepsExplicitZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`products:
  Milk:
    unit_cost: 0
    storage_cost: 0
`), 0o644))

	cat, err := LoadCatalog(path)
	require.NoError(t, err)
	milk, _ := cat.Lookup("Milk")
	assert.Equal(t, 0.0, milk.UnitCost)
	assert.Equal(t, 0.0, milk.StorageCostPerDay)
	assert.Equal(t, 2000.0, milk.Capacity)

	plan, err := New(cat).CalculateOptimalProduction(demandSeries("Milk", 100), "Milk", ProductionOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, plan.Rows[0].ProductionCost)
	assert.Equal(t, 100.0, plan.Rows[0].ProfitMargin)
}

func TestLoadCatalogRejectsZeroCapacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"products": {"Ghee": {"capacity": 0}}}`), 0o644))

	_, err := LoadCatalog(path)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLoadCatalogMissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	cat, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, []string{"Butter", "Cheese", "Ghee", "Milk", "Yogurt"}, cat.Products())
}
