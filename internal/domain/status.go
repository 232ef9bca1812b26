package domain

const (
	StockStatusReorder   = "Reorder Required"
	StockStatusOverstock = "Overstock"
	StockStatusOptimal   = "Optimal"

	UtilizationUnder   = "Under-utilized"
	UtilizationOver    = "Over-utilized"
	UtilizationOptimal = "Optimal"
)

// StockStatus classifies a closing stock level against its reorder point and target.
func StockStatus(currentStock, reorderPoint, optimalStock float64) string {
	if currentStock < reorderPoint {
		return StockStatusReorder
	}
	if currentStock > optimalStock {
		return StockStatusOverstock
	}
	return StockStatusOptimal
}

// UtilizationStatus classifies a capacity utilization percentage.
func UtilizationStatus(utilization float64) string {
	switch {
	case utilization < 60:
		return UtilizationUnder
	case utilization > 90:
		return UtilizationOver
	default:
		return UtilizationOptimal
	}
}
