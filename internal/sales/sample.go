package sales

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
)

type sampleProduct struct {
	name        string
	quantity    float64
	price       float64
	seasonality float64
}

var sampleProducts = []sampleProduct{
	{"Milk", 1200, 25, 0.10},
	{"Butter", 200, 450, 0.15},
	{"Cheese", 150, 350, 0.20},
	{"Yogurt", 300, 80, 0.12},
	{"Ghee", 100, 600, 0.18},
}

// GenerateSample builds a deterministic synthetic dataset with yearly
// seasonality, a weekend lift and noise, one row per product per day.
func GenerateSample(seed uint64, start, end time.Time, company string) []domain.SalesRecord {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	var out []domain.SalesRecord
	for d := domain.Day(start); !d.After(domain.Day(end)); d = d.AddDate(0, 0, 1) {
		for _, p := range sampleProducts {
			seasonal := 1 + p.seasonality*math.Sin(2*math.Pi*float64(d.YearDay())/365.25)
			weekly := 1.0
			if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
				weekly = 1.1
			}
			noise := 1 + rng.NormFloat64()*0.1
			qty := math.Max(0, math.Floor(p.quantity*seasonal*weekly*noise))
			price := math.Round(p.price*(1+rng.NormFloat64()*0.05)*100) / 100

			out = append(out, domain.SalesRecord{
				Date:         d,
				Company:      company,
				Product:      p.name,
				QuantitySold: qty,
				UnitPrice:    price,
				Revenue:      qty * price,
			})
		}
	}
	return out
}
