package modelstore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
	"github.com/andresuchdata/dairyplan/backend-go/internal/engine"
	"github.com/andresuchdata/dairyplan/backend-go/internal/storage"
)

type constModel struct {
	Level float64 `json:"level"`
}

func (m *constModel) Predict(dates []time.Time) (engine.Prediction, error) {
	p := engine.Prediction{}
	for range dates {
		p.Point = append(p.Point, m.Level)
		p.Lower = append(p.Lower, m.Level-1)
		p.Upper = append(p.Upper, m.Level+1)
	}
	return p, nil
}

func (m *constModel) MarshalBinary() ([]byte, error) { return json.Marshal(m) }

type constEngine struct{}

func (constEngine) Name() string { return "const" }

func (constEngine) Fit(_ context.Context, s domain.DemandSeries) (engine.Model, error) {
	var sum float64
	for _, v := range s.Values() {
		sum += v
	}
	return &constModel{Level: sum / float64(s.Len())}, nil
}

func (constEngine) Decode(data []byte) (engine.Model, error) {
	var m constModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// failingBackend fails Put for names with the given suffix.
type failingBackend struct {
	storage.Backend
	failSuffix string
}

func (b *failingBackend) Put(ctx context.Context, name string, data []byte) error {
	if strings.HasSuffix(name, b.failSuffix) {
		return errors.New("disk full")
	}
	return b.Backend.Put(ctx, name, data)
}

func newTestStore(t *testing.T) (*Store, *storage.LocalBackend) {
	t.Helper()
	backend, err := storage.NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	return New(backend, constEngine{}), backend
}

func series(key string, n int) domain.DemandSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := domain.DemandSeries{ProductKey: key}
	for i := 0; i < n; i++ {
		s.Points = append(s.Points, domain.DemandPoint{Date: start.AddDate(0, 0, i), Quantity: float64(10 + i%3)})
	}
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, backend := newTestStore(t)
	s := series("Amul Milk", 10)
	model, err := constEngine{}.Fit(ctx, s)
	require.NoError(t, err)

	mae := 1.5
	metrics := domain.PerformanceMetrics{MAE: &mae, RMSE: &mae, MAPE: &mae, Note: "ok"}
	meta, err := store.Save(ctx, "Amul Milk", model, metrics, s)
	require.NoError(t, err)
	assert.Equal(t, 10, meta.DataPoints)
	assert.Equal(t, s.Start(), meta.DateRange.Start)
	assert.Equal(t, s.End(), meta.DateRange.End)

	fresh := New(backend, constEngine{})
	found, err := fresh.Load(ctx, "Amul Milk")
	require.NoError(t, err)
	require.True(t, found)

	rec, ok := fresh.Get("Amul Milk")
	require.True(t, ok)
	assert.Equal(t, meta, rec.Metadata)
	assert.True(t, rec.Metadata.TrainedAt.Equal(meta.TrainedAt))
	require.NotNil(t, rec.Metrics.MAE)
	assert.Equal(t, mae, *rec.Metrics.MAE)

	p, err := rec.Model.Predict([]time.Time{s.End().AddDate(0, 0, 1)})
	require.NoError(t, err)
	assert.InDelta(t, model.(*constModel).Level, p.Point[0], 1e-9)
}

func TestSaveWritesEncodedEntries(t *testing.T) {
	ctx := context.Background()
	store, backend := newTestStore(t)
	s := series("Amul Milk", 3)
	model, _ := constEngine{}.Fit(ctx, s)

	_, err := store.Save(ctx, "Amul Milk", model, domain.PerformanceMetrics{}, s)
	require.NoError(t, err)

	for _, name := range []string{"Amul_Milk_model.json", "Amul_Milk_performance.json", "Amul_Milk_metadata.json"} {
		_, err := os.Stat(filepath.Join(backend.Dir(), name))
		assert.NoError(t, err, name)
	}
}

func TestResaveKeepsLaterTrainedAt(t *testing.T) {
	ctx := context.Background()
	store, backend := newTestStore(t)
	s := series("Yogurt", 5)
	model, _ := constEngine{}.Fit(ctx, s)

	first := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	store.now = func() time.Time { return first }
	_, err := store.Save(ctx, "Yogurt", model, domain.PerformanceMetrics{}, s)
	require.NoError(t, err)
	store.now = func() time.Time { return second }
	_, err = store.Save(ctx, "Yogurt", model, domain.PerformanceMetrics{}, s)
	require.NoError(t, err)

	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Yogurt"}, keys)

	fresh := New(backend, constEngine{})
	found, err := fresh.Load(ctx, "Yogurt")
	require.NoError(t, err)
	require.True(t, found)
	rec, _ := fresh.Get("Yogurt")
	assert.True(t, rec.Metadata.TrainedAt.Equal(second))
}

func TestDeleteUnknownKeyIsNoop(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	ok, err := store.Exists(ctx, "Ghee")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Delete(ctx, "Ghee"))

	ok, err = store.Exists(ctx, "Ghee")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteRemovesEntriesAndMemory(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	s := series("Butter", 4)
	model, _ := constEngine{}.Fit(ctx, s)
	_, err := store.Save(ctx, "Butter", model, domain.PerformanceMetrics{}, s)
	require.NoError(t, err)

	ok, err := store.Exists(ctx, "Butter")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, "Butter"))
	_, inMemory := store.Get("Butter")
	assert.False(t, inMemory)
	ok, err = store.Exists(ctx, "Butter")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadTreatsPartialEntriesAsAbsent(t *testing.T) {
	ctx := context.Background()
	store, backend := newTestStore(t)
	s := series("Cheese", 4)
	model, _ := constEngine{}.Fit(ctx, s)
	_, err := store.Save(ctx, "Cheese", model, domain.PerformanceMetrics{}, s)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(backend.Dir(), "Cheese_performance.json")))

	fresh := New(backend, constEngine{})
	found, err := fresh.Load(ctx, "Cheese")
	require.NoError(t, err)
	assert.False(t, found)
	_, ok := fresh.Get("Cheese")
	assert.False(t, ok)
}

func TestStoredCountsPartialEntries(t *testing.T) {
	ctx := context.Background()
	store, backend := newTestStore(t)
	s := series("Curd", 4)
	model, _ := constEngine{}.Fit(ctx, s)
	_, err := store.Save(ctx, "Curd", model, domain.PerformanceMetrics{}, s)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(backend.Dir(), "Curd_model.json")))

	complete, err := store.Exists(ctx, "Curd")
	require.NoError(t, err)
	assert.False(t, complete)
	stored, err := store.Stored(ctx, "Curd")
	require.NoError(t, err)
	assert.True(t, stored)

	require.NoError(t, store.Delete(ctx, "Curd"))
	stored, err = store.Stored(ctx, "Curd")
	require.NoError(t, err)
	assert.False(t, stored)
}

func TestLoadRejectsMixedRevisions(t *testing.T) {
	ctx := context.Background()
	store, backend := newTestStore(t)
	s := series("Cheese", 4)
	model, _ := constEngine{}.Fit(ctx, s)
	_, err := store.Save(ctx, "Cheese", model, domain.PerformanceMetrics{}, s)
	require.NoError(t, err)

	stale, err := json.Marshal(metadataEntry{Revision: "stale", ModelMetadata: domain.ModelMetadata{ProductKey: "Cheese"}})
	require.NoError(t, err)
	require.NoError(t, backend.Put(ctx, "Cheese_metadata.json", stale))

	found, err := New(backend, constEngine{}).Load(ctx, "Cheese")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFailedSaveRestoresPreviousEntries(t *testing.T) {
	ctx := context.Background()
	store, backend := newTestStore(t)
	s := series("Milk", 6)
	model, _ := constEngine{}.Fit(ctx, s)
	before, err := store.Save(ctx, "Milk", model, domain.PerformanceMetrics{Note: "first"}, s)
	require.NoError(t, err)
	beforeRec, _ := store.Get("Milk")

	broken := New(&failingBackend{Backend: backend, failSuffix: MetadataSuffix}, constEngine{})
	broken.records["Milk"] = beforeRec
	_, err = broken.Save(ctx, "Milk", model, domain.PerformanceMetrics{Note: "second"}, series("Milk", 9))
	require.ErrorIs(t, err, domain.ErrPersistence)

	rec, ok := broken.Get("Milk")
	require.True(t, ok)
	assert.Equal(t, "first", rec.Metrics.Note)

	fresh := New(backend, constEngine{})
	found, err := fresh.Load(ctx, "Milk")
	require.NoError(t, err)
	require.True(t, found)
	rec, _ = fresh.Get("Milk")
	assert.Equal(t, before.DataPoints, rec.Metadata.DataPoints)
	assert.Equal(t, "first", rec.Metrics.Note)
}

func TestFailedFirstSaveLeavesNothing(t *testing.T) {
	ctx := context.Background()
	backend, err := storage.NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	store := New(&failingBackend{Backend: backend, failSuffix: PerformanceSuffix}, constEngine{})
	s := series("Ghee", 3)
	model, _ := constEngine{}.Fit(ctx, s)

	_, err = store.Save(ctx, "Ghee", model, domain.PerformanceMetrics{}, s)
	require.ErrorIs(t, err, domain.ErrPersistence)

	objs, err := backend.List(ctx, ".json")
	require.NoError(t, err)
	assert.Empty(t, objs)
	_, ok := store.Get("Ghee")
	assert.False(t, ok)
}

func TestLoadAllIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	store, backend := newTestStore(t)
	for _, key := range []string{"Butter", "Milk"} {
		s := series(key, 5)
		model, _ := constEngine{}.Fit(ctx, s)
		_, err := store.Save(ctx, key, model, domain.PerformanceMetrics{}, s)
		require.NoError(t, err)
	}
	require.NoError(t, backend.Put(ctx, "Butter_model.json", []byte("{not json")))

	fresh := New(backend, constEngine{})
	results, err := fresh.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Butter", results[0].Key)
	assert.False(t, results[0].Success)
	assert.Equal(t, "Milk", results[1].Key)
	assert.True(t, results[1].Success)
	assert.Equal(t, []string{"Milk"}, fresh.Keys())
}

func TestSaveRejectsEmptySeries(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Save(context.Background(), "Milk", &constModel{}, domain.PerformanceMetrics{}, domain.DemandSeries{})
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}
