package sales

import (
	"sort"
	"time"

	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
)

// Summary describes a loaded sales dataset.
type Summary struct {
	TotalRecords     int                `json:"total_records"`
	DateRange        SummaryRange       `json:"date_range"`
	Products         []string           `json:"products"`
	Companies        []string           `json:"companies,omitempty"`
	ProductCounts    map[string]int     `json:"product_counts"`
	TotalQuantity    float64            `json:"total_quantity"`
	TotalRevenue     float64            `json:"total_revenue"`
	AvgDailyQuantity float64            `json:"avg_daily_quantity"`
	AvgUnitPrice     map[string]float64 `json:"avg_unit_price"`
}

type SummaryRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Days  int       `json:"days"`
}

// Summarize computes dataset statistics. Average daily quantity is the mean
// over the days that have at least one record.
func Summarize(records []domain.SalesRecord) Summary {
	s := Summary{
		TotalRecords:  len(records),
		Products:      []string{},
		ProductCounts: map[string]int{},
		AvgUnitPrice:  map[string]float64{},
	}
	if len(records) == 0 {
		return s
	}

	priceSums := map[string]float64{}
	companies := map[string]bool{}
	daily := map[time.Time]float64{}
	for i, r := range records {
		d := domain.Day(r.Date)
		if i == 0 || d.Before(s.DateRange.Start) {
			s.DateRange.Start = d
		}
		if d.After(s.DateRange.End) {
			s.DateRange.End = d
		}
		s.ProductCounts[r.Product]++
		priceSums[r.Product] += r.UnitPrice
		if r.Company != "" {
			companies[r.Company] = true
		}
		s.TotalQuantity += r.QuantitySold
		s.TotalRevenue += r.QuantitySold * r.UnitPrice
		daily[d] += r.QuantitySold
	}
	s.DateRange.Days = int(s.DateRange.End.Sub(s.DateRange.Start).Hours() / 24)

	for p, n := range s.ProductCounts {
		s.Products = append(s.Products, p)
		s.AvgUnitPrice[p] = priceSums[p] / float64(n)
	}
	sort.Strings(s.Products)
	for c := range companies {
		s.Companies = append(s.Companies, c)
	}
	sort.Strings(s.Companies)

	var total float64
	for _, q := range daily {
		total += q
	}
	s.AvgDailyQuantity = total / float64(len(daily))
	return s
}
