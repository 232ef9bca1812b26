package optimizer

import (
	"math"

	"github.com/shopspring/decimal"
)

// Output precision. Values are rounded once, after every derived quantity
// has been computed from unrounded inputs.
const (
	unitPlaces    = 0
	moneyPlaces   = 2
	percentPlaces = 1
	demandPlaces  = 2
)

func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func units(v float64) float64   { return round(v, unitPlaces) }
func money(v float64) float64   { return round(v, moneyPlaces) }
func percent(v float64) float64 { return round(v, percentPlaces) }
func demand(v float64) float64  { return round(v, demandPlaces) }
