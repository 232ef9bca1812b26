package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
)

func dailySeries(key string, start time.Time, values ...float64) domain.DemandSeries {
	s := domain.DemandSeries{ProductKey: key}
	for i, v := range values {
		s.Points = append(s.Points, domain.DemandPoint{Date: start.AddDate(0, 0, i), Quantity: v})
	}
	return s
}

func TestBaselineFitsFlatSeries(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := dailySeries("Milk", start, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50)

	m, err := NewBaselineEngine().Fit(context.Background(), series)
	require.NoError(t, err)

	dates := []time.Time{start.AddDate(0, 0, 20), start.AddDate(0, 0, 21)}
	p, err := m.Predict(dates)
	require.NoError(t, err)
	require.Len(t, p.Point, 2)
	for i := range dates {
		assert.InDelta(t, 50, p.Point[i], 1e-9)
		assert.InDelta(t, 50, p.Lower[i], 1e-9)
		assert.InDelta(t, 50, p.Upper[i], 1e-9)
	}
}

func TestBaselineFollowsTrend(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	values := make([]float64, 28)
	for i := range values {
		values[i] = 10 + 2*float64(i)
	}

	m, err := NewBaselineEngine().Fit(context.Background(), dailySeries("Milk", start, values...))
	require.NoError(t, err)

	p, err := m.Predict([]time.Time{start.AddDate(0, 0, 30)})
	require.NoError(t, err)
	assert.InDelta(t, 70, p.Point[0], 1.0)
	assert.LessOrEqual(t, p.Lower[0], p.Point[0])
	assert.GreaterOrEqual(t, p.Upper[0], p.Point[0])
}

func TestBaselineRoundTrip(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	eng := NewBaselineEngine()
	m, err := eng.Fit(context.Background(), dailySeries("Ghee", start, 3, 8, 4, 9, 5, 10, 6, 11))
	require.NoError(t, err)

	data, err := m.MarshalBinary()
	require.NoError(t, err)
	restored, err := eng.Decode(data)
	require.NoError(t, err)

	dates := []time.Time{start.AddDate(0, 0, 9), start.AddDate(0, 0, 10)}
	want, err := m.Predict(dates)
	require.NoError(t, err)
	got, err := restored.Predict(dates)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want.Point, got.Point, 1e-9)
	assert.InDeltaSlice(t, want.Upper, got.Upper, 1e-9)
}

func TestBaselineRejectsEmptySeries(t *testing.T) {
	_, err := NewBaselineEngine().Fit(context.Background(), domain.DemandSeries{ProductKey: "Milk"})
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestNewSelectsEngine(t *testing.T) {
	e, err := New("baseline")
	require.NoError(t, err)
	assert.Equal(t, "baseline", e.Name())

	e, err = New("")
	require.NoError(t, err)
	assert.Equal(t, "forecaster", e.Name())

	_, err = New("arima")
	assert.Error(t, err)
}
