// Package engine defines the fit/predict contract the forecasting lifecycle
// consumes and the implementations behind it.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
)

// Prediction holds point, lower and upper estimates aligned with the requested dates.
type Prediction struct {
	Point []float64
	Lower []float64
	Upper []float64
}

// Model is a fitted model that can predict and serialize itself.
type Model interface {
	Predict(dates []time.Time) (Prediction, error)
	MarshalBinary() ([]byte, error)
}

// Engine fits models and restores them from their serialized form.
type Engine interface {
	Name() string
	Fit(ctx context.Context, series domain.DemandSeries) (Model, error)
	Decode(data []byte) (Model, error)
}

// New returns the engine registered under name.
func New(name string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "forecaster":
		return NewForecasterEngine(), nil
	case "baseline":
		return NewBaselineEngine(), nil
	default:
		return nil, fmt.Errorf("unknown forecast engine %q", name)
	}
}

func checkPrediction(p Prediction, n int) error {
	if len(p.Point) != n || len(p.Lower) != n || len(p.Upper) != n {
		return fmt.Errorf("prediction length mismatch: want %d, got %d/%d/%d", n, len(p.Point), len(p.Lower), len(p.Upper))
	}
	return nil
}
