package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aouyang1/go-forecaster"

	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
)

// ForecasterEngine fits trend, seasonality and changepoint models with go-forecaster.
type ForecasterEngine struct {
	opts *forecaster.Options
}

// NewForecasterEngine uses the library defaults, which model weekly and yearly seasonality.
func NewForecasterEngine() *ForecasterEngine {
	return &ForecasterEngine{}
}

func (e *ForecasterEngine) Name() string { return "forecaster" }

func (e *ForecasterEngine) Fit(ctx context.Context, series domain.DemandSeries) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if series.Len() == 0 {
		return nil, fmt.Errorf("fit %s: %w", series.ProductKey, domain.ErrInsufficientData)
	}

	f, err := forecaster.New(e.opts)
	if err != nil {
		return nil, fmt.Errorf("init forecaster: %w", err)
	}
	if err := f.Fit(series.Dates(), series.Values()); err != nil {
		return nil, fmt.Errorf("fit %s: %w", series.ProductKey, err)
	}
	return &forecasterModel{f: f}, nil
}

func (e *ForecasterEngine) Decode(data []byte) (Model, error) {
	var m forecaster.Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode forecaster model: %w", err)
	}
	f, err := forecaster.NewFromModel(m)
	if err != nil {
		return nil, fmt.Errorf("restore forecaster model: %w", err)
	}
	return &forecasterModel{f: f}, nil
}

type forecasterModel struct {
	f *forecaster.Forecaster
}

func (m *forecasterModel) Predict(dates []time.Time) (Prediction, error) {
	res, err := m.f.Predict(dates)
	if err != nil {
		return Prediction{}, fmt.Errorf("predict: %w", err)
	}
	p := Prediction{Point: res.Forecast, Lower: res.Lower, Upper: res.Upper}
	if err := checkPrediction(p, len(dates)); err != nil {
		return Prediction{}, err
	}
	return p, nil
}

func (m *forecasterModel) MarshalBinary() ([]byte, error) {
	model, err := m.f.Model()
	if err != nil {
		return nil, fmt.Errorf("export forecaster model: %w", err)
	}
	return json.Marshal(model)
}

var _ Engine = (*ForecasterEngine)(nil)
