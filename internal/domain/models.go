// backend-go/internal/domain/models.go
package domain

import "time"

// SalesRecord represents a single row of the raw sales table
type SalesRecord struct {
	ID           int64     `json:"id,omitempty" db:"id"`
	Date         time.Time `json:"date" db:"sale_date"`
	Company      string    `json:"company,omitempty" db:"company"`
	Product      string    `json:"product" db:"product"`
	QuantitySold float64   `json:"quantity_sold" db:"quantity_sold"`
	UnitPrice    float64   `json:"unit_price" db:"unit_price"`
	Revenue      float64   `json:"revenue" db:"revenue"`
}

// SalesFilter represents filters for sales queries
type SalesFilter struct {
	Company  string    `json:"company"`
	Products []string  `json:"products"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
}

// DemandPoint is one observed day of demand
type DemandPoint struct {
	Date     time.Time `json:"date"`
	Quantity float64   `json:"quantity"`
}

// DemandSeries is the ordered daily demand of one product key
type DemandSeries struct {
	ProductKey string        `json:"product_key"`
	Points     []DemandPoint `json:"points"`
}

// ForecastPoint is one predicted day with its uncertainty interval
type ForecastPoint struct {
	Date      time.Time `json:"date"`
	Predicted float64   `json:"predicted_demand"`
	Lower     float64   `json:"lower_bound"`
	Upper     float64   `json:"upper_bound"`
}

// ForecastSeries is the ordered output of the forecast generator
type ForecastSeries struct {
	ProductKey string          `json:"product_key"`
	Points     []ForecastPoint `json:"points"`
}

// DateRange is an inclusive range of calendar days
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ModelMetadata describes how and when a model was trained
type ModelMetadata struct {
	ProductKey string    `json:"product_key"`
	TrainedAt  time.Time `json:"trained_at"`
	DataPoints int       `json:"data_points"`
	DateRange  DateRange `json:"date_range"`
}

// PerformanceMetrics holds held-out accuracy of a trained model. Nil values mean unavailable.
type PerformanceMetrics struct {
	MAE  *float64 `json:"mae"`
	RMSE *float64 `json:"rmse"`
	MAPE *float64 `json:"mape"`
	Note string   `json:"note"`
}

// Available reports whether the accuracy measures were computed
func (m PerformanceMetrics) Available() bool {
	return m.MAE != nil && m.RMSE != nil && m.MAPE != nil
}

// TrainingStatus is the per-model view returned to operators
type TrainingStatus struct {
	ProductKey   string             `json:"product_key"`
	Trained      bool               `json:"trained"`
	Performance  PerformanceMetrics `json:"performance"`
	LastTraining time.Time          `json:"last_training"`
	DataPoints   int                `json:"data_points"`
}

// ProductConfig is the static production reference data of a product
type ProductConfig struct {
	Capacity          float64 `json:"default_daily_capacity"`
	UnitCost          float64 `json:"production_cost_per_unit"`
	StorageCostPerDay float64 `json:"storage_cost_per_unit_per_day"`
	ShelfLifeDays     int     `json:"shelf_life_days"`
	UnitPrice         float64 `json:"estimated_unit_price"`
}

// ProductionPlanRow is one day of the production plan
type ProductionPlanRow struct {
	Date                time.Time `json:"date"`
	ForecastedDemand    float64   `json:"forecasted_demand"`
	OptimalProduction   float64   `json:"optimal_production"`
	CapacityUtilization float64   `json:"capacity_utilization"`
	ProductionCost      float64   `json:"production_cost"`
	PotentialRevenue    float64   `json:"potential_revenue"`
	ProfitMargin        float64   `json:"profit_margin"`
}

// ProductionPlan is the day-by-day plan of one product
type ProductionPlan struct {
	ProductKey  string              `json:"product_key"`
	Capacity    float64             `json:"capacity"`
	SafetyStock float64             `json:"safety_stock"`
	Rows        []ProductionPlanRow `json:"rows"`
	Defaulted   []string            `json:"defaulted_fields,omitempty"`
}

// InventoryPlanRow is one day of the inventory simulation
type InventoryPlanRow struct {
	Date              time.Time `json:"date"`
	CurrentInventory  float64   `json:"current_inventory"`
	ForecastedDemand  float64   `json:"forecasted_demand"`
	OptimalStockLevel float64   `json:"optimal_stock_level"`
	ReorderPoint      float64   `json:"reorder_point"`
	RecommendedOrder  float64   `json:"recommended_order"`
	DailyStorageCost  float64   `json:"daily_storage_cost"`
	StockStatus       string    `json:"stock_status"`
}

// InventoryPlan is the inventory simulation of one product
type InventoryPlan struct {
	ProductKey    string             `json:"product_key"`
	ShelfLifeDays int                `json:"shelf_life_days"`
	Rows          []InventoryPlanRow `json:"rows"`
	Defaulted     []string           `json:"defaulted_fields,omitempty"`
}

// CapacityUtilizationRow aggregates all products planned for one day
type CapacityUtilizationRow struct {
	Date              time.Time `json:"date"`
	TotalProduction   float64   `json:"total_production"`
	AvgUtilization    float64   `json:"avg_utilization"`
	UtilizationStatus string    `json:"utilization_status"`
}

// ProductOptimization is the per-product part of an optimization summary
type ProductOptimization struct {
	TotalForecastedDemand  float64  `json:"total_forecasted_demand"`
	TotalOptimalProduction float64  `json:"total_optimal_production"`
	AvgCapacityUtilization float64  `json:"avg_capacity_utilization"`
	TotalProductionCost    float64  `json:"total_production_cost"`
	TotalPotentialRevenue  float64  `json:"total_potential_revenue"`
	AvgProfitMargin        float64  `json:"avg_profit_margin"`
	CapacityConstraint     float64  `json:"capacity_constraint"`
	Recommendations        []string `json:"recommendations"`
}

// OverallMetrics sums the per-product subtotals
type OverallMetrics struct {
	TotalProductionCost   float64 `json:"total_production_cost"`
	TotalPotentialRevenue float64 `json:"total_potential_revenue"`
	OverallProfitMargin   float64 `json:"overall_profit_margin"`
}

// OptimizationSummary is the multi-product production overview
type OptimizationSummary struct {
	TotalProducts    int                            `json:"total_products"`
	TimeHorizonDays  int                            `json:"time_horizon_days"`
	OptimizationDate string                         `json:"optimization_date"`
	Products         map[string]ProductOptimization `json:"products_analysis"`
	Overall          OverallMetrics                 `json:"overall_metrics"`
}

// ConfidenceRange sums the interval bounds over a forecast period
type ConfidenceRange struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// ForecastPeriodSummary describes the next Days of a forecast
type ForecastPeriodSummary struct {
	Days            int             `json:"days"`
	TotalDemand     float64         `json:"total_demand"`
	AvgDailyDemand  float64         `json:"avg_daily_demand"`
	MaxDailyDemand  float64         `json:"max_daily_demand"`
	MinDailyDemand  float64         `json:"min_daily_demand"`
	Trend           string          `json:"trend"`
	ConfidenceRange ConfidenceRange `json:"confidence_range"`
}

// ForecastExportRow is one future day of one product in an export
type ForecastExportRow struct {
	ProductKey string `json:"product"`
	ForecastPoint
}
