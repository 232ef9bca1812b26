package domain

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s DemandSeries) Len() int { return len(s.Points) }

// Start returns the first date of the series; zero when empty.
func (s DemandSeries) Start() time.Time {
	if len(s.Points) == 0 {
		return time.Time{}
	}
	return s.Points[0].Date
}

// End returns the last date of the series; zero when empty.
func (s DemandSeries) End() time.Time {
	if len(s.Points) == 0 {
		return time.Time{}
	}
	return s.Points[len(s.Points)-1].Date
}

func (s DemandSeries) Dates() []time.Time {
	out := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Date
	}
	return out
}

func (s DemandSeries) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Quantity
	}
	return out
}

// Slice returns the points in [from, to) as a new series with the same key.
func (s DemandSeries) Slice(from, to int) DemandSeries {
	pts := make([]DemandPoint, to-from)
	copy(pts, s.Points[from:to])
	return DemandSeries{ProductKey: s.ProductKey, Points: pts}
}

// Validate checks that dates strictly increase and no demand is negative.
func (s DemandSeries) Validate() error {
	for i, p := range s.Points {
		if p.Quantity < 0 {
			return fmt.Errorf("%w: negative demand %.2f on %s", ErrValidation, p.Quantity, p.Date.Format("2006-01-02"))
		}
		if i > 0 && !p.Date.After(s.Points[i-1].Date) {
			return fmt.Errorf("%w: dates not strictly increasing at %s", ErrValidation, p.Date.Format("2006-01-02"))
		}
	}
	return nil
}

// ValidateContiguous additionally requires exactly one point per calendar day.
func (s DemandSeries) ValidateContiguous() error {
	if err := s.Validate(); err != nil {
		return err
	}
	for i := 1; i < len(s.Points); i++ {
		if Day(s.Points[i].Date).Sub(Day(s.Points[i-1].Date)) != day {
			return fmt.Errorf("%w: gap between %s and %s", ErrValidation,
				s.Points[i-1].Date.Format("2006-01-02"), s.Points[i].Date.Format("2006-01-02"))
		}
	}
	return nil
}

// Demand projects the point estimates onto a demand series for the optimizer.
func (f ForecastSeries) Demand() DemandSeries {
	pts := make([]DemandPoint, len(f.Points))
	for i, p := range f.Points {
		pts[i] = DemandPoint{Date: p.Date, Quantity: p.Predicted}
	}
	return DemandSeries{ProductKey: f.ProductKey, Points: pts}
}

// Tail returns the last n points, or all of them when n exceeds the length.
func (f ForecastSeries) Tail(n int) ForecastSeries {
	if n >= len(f.Points) || n < 0 {
		return f
	}
	return ForecastSeries{ProductKey: f.ProductKey, Points: f.Points[len(f.Points)-n:]}
}
