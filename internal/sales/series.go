package sales

import (
	"fmt"
	"sort"
	"time"

	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
)

// Scope selects the records of one product, optionally of one company.
type Scope struct {
	Product string `json:"product"`
	Company string `json:"company,omitempty"`
}

// Key is the product key of the scope.
func (s Scope) Key() string { return ProductKey(s.Product, s.Company) }

// ProductKey is the product name, prefixed by the company when scoped.
func ProductKey(product, company string) string {
	if company == "" {
		return product
	}
	return company + " " + product
}

func (s Scope) matches(r domain.SalesRecord) bool {
	return r.Product == s.Product && (s.Company == "" || r.Company == s.Company)
}

// Daily is a gap-free daily demand series with the mean unit price of each day.
type Daily struct {
	Series     domain.DemandSeries
	UnitPrices []float64
}

// DailySeries sums the quantity sold per calendar day in scope and fills
// missing days with zero demand. Missing days carry the previous day's price.
func DailySeries(records []domain.SalesRecord, scope Scope) (Daily, error) {
	type agg struct {
		qty      float64
		priceSum float64
		n        int
	}
	days := map[time.Time]*agg{}
	var first, last time.Time
	for _, r := range records {
		if !scope.matches(r) {
			continue
		}
		d := domain.Day(r.Date)
		a, ok := days[d]
		if !ok {
			a = &agg{}
			days[d] = a
		}
		a.qty += r.QuantitySold
		a.priceSum += r.UnitPrice
		a.n++
		if first.IsZero() || d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}
	if len(days) == 0 {
		return Daily{}, fmt.Errorf("no sales for %s: %w", scope.Key(), domain.ErrInsufficientData)
	}

	out := Daily{Series: domain.DemandSeries{ProductKey: scope.Key()}}
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		point := domain.DemandPoint{Date: d}
		price := 0.0
		if a, ok := days[d]; ok {
			point.Quantity = a.qty
			price = a.priceSum / float64(a.n)
		} else {
			price = out.UnitPrices[len(out.UnitPrices)-1]
		}
		out.Series.Points = append(out.Series.Points, point)
		out.UnitPrices = append(out.UnitPrices, price)
	}
	return out, nil
}

// MeanUnitPrice averages the unit price over the records in scope.
func MeanUnitPrice(records []domain.SalesRecord, scope Scope) (float64, bool) {
	var sum float64
	n := 0
	for _, r := range records {
		if scope.matches(r) {
			sum += r.UnitPrice
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Scopes lists the distinct products, or company and product pairs when
// byCompany is set, in sorted order.
func Scopes(records []domain.SalesRecord, byCompany bool) []Scope {
	seen := map[Scope]bool{}
	for _, r := range records {
		s := Scope{Product: r.Product}
		if byCompany {
			s.Company = r.Company
		}
		seen[s] = true
	}
	out := make([]Scope, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Company != out[j].Company {
			return out[i].Company < out[j].Company
		}
		return out[i].Product < out[j].Product
	})
	return out
}

// Preprocess normalizes dates to calendar days and orders records by
// company, product and date.
func Preprocess(records []domain.SalesRecord) []domain.SalesRecord {
	out := make([]domain.SalesRecord, len(records))
	for i, r := range records {
		r.Date = domain.Day(r.Date)
		if r.Revenue == 0 {
			r.Revenue = r.QuantitySold * r.UnitPrice
		}
		out[i] = r
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Company != b.Company {
			return a.Company < b.Company
		}
		if a.Product != b.Product {
			return a.Product < b.Product
		}
		return a.Date.Before(b.Date)
	})
	return out
}
