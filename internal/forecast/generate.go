package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
)

// DefaultSummaryPeriods are the horizons reported by Summary.
var DefaultSummaryPeriods = []int{7, 14, 30}

// Generate predicts horizon days past the last training date, preceded by
// every training date when includeHistory is set. All values are clamped at zero.
func (f *Forecaster) Generate(ctx context.Context, key string, horizon int, includeHistory bool) (domain.ForecastSeries, error) {
	if horizon <= 0 {
		return domain.ForecastSeries{}, fmt.Errorf("%w: horizon must be positive, got %d", domain.ErrValidation, horizon)
	}
	if err := ctx.Err(); err != nil {
		return domain.ForecastSeries{}, err
	}
	rec, ok := f.store.Get(key)
	if !ok {
		return domain.ForecastSeries{}, fmt.Errorf("no trained model found for %s: %w", key, domain.ErrModelNotFound)
	}

	dates := futureDates(rec.Metadata.DateRange, horizon, includeHistory)
	pred, err := rec.Model.Predict(dates)
	if err != nil {
		return domain.ForecastSeries{}, fmt.Errorf("forecast %s: %w", key, err)
	}
	if len(pred.Point) != len(dates) || len(pred.Lower) != len(dates) || len(pred.Upper) != len(dates) {
		return domain.ForecastSeries{}, fmt.Errorf("forecast %s: model returned %d points for %d dates", key, len(pred.Point), len(dates))
	}

	out := domain.ForecastSeries{ProductKey: key, Points: make([]domain.ForecastPoint, len(dates))}
	for i, d := range dates {
		out.Points[i] = domain.ForecastPoint{
			Date:      d,
			Predicted: math.Max(pred.Point[i], 0),
			Lower:     math.Max(pred.Lower[i], 0),
			Upper:     math.Max(pred.Upper[i], 0),
		}
	}
	return out, nil
}

func futureDates(r domain.DateRange, horizon int, includeHistory bool) []time.Time {
	end := domain.Day(r.End)
	var dates []time.Time
	if includeHistory {
		for d := domain.Day(r.Start); !d.After(end); d = d.AddDate(0, 0, 1) {
			dates = append(dates, d)
		}
	}
	for i := 1; i <= horizon; i++ {
		dates = append(dates, end.AddDate(0, 0, i))
	}
	return dates
}

// Summary aggregates the future-only forecast of key over each period.
func (f *Forecaster) Summary(ctx context.Context, key string, periods []int) ([]domain.ForecastPeriodSummary, error) {
	if len(periods) == 0 {
		periods = DefaultSummaryPeriods
	}
	out := make([]domain.ForecastPeriodSummary, 0, len(periods))
	for _, days := range periods {
		fc, err := f.Generate(ctx, key, days, false)
		if err != nil {
			return nil, err
		}
		out = append(out, summarize(days, fc.Tail(days)))
	}
	return out, nil
}

func summarize(days int, fc domain.ForecastSeries) domain.ForecastPeriodSummary {
	s := domain.ForecastPeriodSummary{Days: days, Trend: "decreasing"}
	if len(fc.Points) == 0 {
		return s
	}
	s.MinDailyDemand = math.Inf(1)
	s.MaxDailyDemand = math.Inf(-1)
	for _, p := range fc.Points {
		s.TotalDemand += p.Predicted
		s.MaxDailyDemand = math.Max(s.MaxDailyDemand, p.Predicted)
		s.MinDailyDemand = math.Min(s.MinDailyDemand, p.Predicted)
		s.ConfidenceRange.Lower += p.Lower
		s.ConfidenceRange.Upper += p.Upper
	}
	s.AvgDailyDemand = s.TotalDemand / float64(len(fc.Points))
	if fc.Points[len(fc.Points)-1].Predicted > fc.Points[0].Predicted {
		s.Trend = "increasing"
	}
	return s
}

// Export concatenates the future-only forecasts of keys. Keys without a
// loaded model are skipped.
func (f *Forecaster) Export(ctx context.Context, keys []string, horizon int) ([]domain.ForecastExportRow, error) {
	var rows []domain.ForecastExportRow
	for _, key := range keys {
		if _, ok := f.store.Get(key); !ok {
			f.log.Debug().Str("product_key", key).Msg("export skipped, no model")
			continue
		}
		fc, err := f.Generate(ctx, key, horizon, false)
		if err != nil {
			return nil, err
		}
		for _, p := range fc.Points {
			rows = append(rows, domain.ForecastExportRow{ProductKey: key, ForecastPoint: p})
		}
	}
	return rows, nil
}
