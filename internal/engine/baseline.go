package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
)

// z value for a 95% interval
const baselineZ = 1.96

// BaselineEngine fits a linear trend scaled by a day-of-week factor. It needs
// no external solver and is used when a lightweight, deterministic model is enough.
type BaselineEngine struct{}

func NewBaselineEngine() *BaselineEngine { return &BaselineEngine{} }

func (e *BaselineEngine) Name() string { return "baseline" }

func (e *BaselineEngine) Fit(ctx context.Context, series domain.DemandSeries) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := series.Len()
	if n == 0 {
		return nil, fmt.Errorf("fit %s: %w", series.ProductKey, domain.ErrInsufficientData)
	}

	origin := series.Start()
	x := make([]float64, n)
	y := series.Values()
	for i, p := range series.Points {
		x[i] = daysBetween(origin, p.Date)
	}

	slope, intercept := linearRegression(x, y)

	// weekday factor is the mean ratio of observed demand to the trend line
	var sums, counts [7]float64
	for i, p := range series.Points {
		trend := slope*x[i] + intercept
		if trend <= 0 {
			continue
		}
		wd := p.Date.Weekday()
		sums[wd] += y[i] / trend
		counts[wd]++
	}
	var factors [7]float64
	for wd := range factors {
		factors[wd] = 1
		if counts[wd] > 0 {
			factors[wd] = sums[wd] / counts[wd]
		}
	}

	m := &baselineModel{
		Origin:    origin,
		Slope:     slope,
		Intercept: intercept,
		Weekday:   factors,
	}

	var sq float64
	for i, p := range series.Points {
		r := y[i] - m.point(p.Date)
		sq += r * r
	}
	if n > 1 {
		m.Sigma = math.Sqrt(sq / float64(n-1))
	}
	return m, nil
}

func (e *BaselineEngine) Decode(data []byte) (Model, error) {
	var m baselineModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode baseline model: %w", err)
	}
	return &m, nil
}

type baselineModel struct {
	Origin    time.Time  `json:"origin"`
	Slope     float64    `json:"slope"`
	Intercept float64    `json:"intercept"`
	Weekday   [7]float64 `json:"weekday_factors"`
	Sigma     float64    `json:"sigma"`
}

func (m *baselineModel) point(t time.Time) float64 {
	trend := m.Slope*daysBetween(m.Origin, t) + m.Intercept
	return trend * m.Weekday[t.Weekday()]
}

func (m *baselineModel) Predict(dates []time.Time) (Prediction, error) {
	p := Prediction{
		Point: make([]float64, len(dates)),
		Lower: make([]float64, len(dates)),
		Upper: make([]float64, len(dates)),
	}
	margin := baselineZ * m.Sigma
	for i, d := range dates {
		v := m.point(d)
		p.Point[i] = v
		p.Lower[i] = v - margin
		p.Upper[i] = v + margin
	}
	return p, nil
}

func (m *baselineModel) MarshalBinary() ([]byte, error) {
	return json.Marshal(m)
}

func daysBetween(from, to time.Time) float64 {
	return math.Round(to.Sub(from).Hours() / 24)
}

func linearRegression(x, y []float64) (slope, intercept float64) {
	n := float64(len(x))
	var sumX, sumY, sumXY, sumX2 float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumX2 += x[i] * x[i]
	}
	den := n*sumX2 - sumX*sumX
	if den == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / den
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

var _ Engine = (*BaselineEngine)(nil)
