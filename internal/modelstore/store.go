// Package modelstore persists one trained model per product key together with
// its performance metrics and training metadata.
package modelstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
	"github.com/andresuchdata/dairyplan/backend-go/internal/engine"
	"github.com/andresuchdata/dairyplan/backend-go/internal/storage"
	"github.com/andresuchdata/dairyplan/backend-go/pkg/logger"
)

// Record is a loaded model with the metrics and metadata saved alongside it.
type Record struct {
	Model    engine.Model
	Metrics  domain.PerformanceMetrics
	Metadata domain.ModelMetadata
	Revision string
}

type modelEntry struct {
	Revision string `json:"revision"`
	Engine   string `json:"engine"`
	Data     []byte `json:"data"`
}

type performanceEntry struct {
	Revision string `json:"revision"`
	domain.PerformanceMetrics
}

type metadataEntry struct {
	Revision string `json:"revision"`
	domain.ModelMetadata
}

// Store is the durable model cache. The in-memory view only ever holds
// records whose three entries were written or read as one revision.
type Store struct {
	backend storage.Backend
	engine  engine.Engine
	log     zerolog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	records map[string]Record
}

func New(backend storage.Backend, eng engine.Engine) *Store {
	return &Store{
		backend: backend,
		engine:  eng,
		log:     logger.Component("modelstore"),
		now:     func() time.Time { return time.Now().UTC().Round(0) },
		records: make(map[string]Record),
	}
}

// Save persists model, metrics and metadata derived from series under key.
// Either all three entries are replaced or the previous entries are restored
// and an ErrPersistence is returned; memory is only updated on success.
func (s *Store) Save(ctx context.Context, key string, model engine.Model, metrics domain.PerformanceMetrics, series domain.DemandSeries) (domain.ModelMetadata, error) {
	if key == "" {
		return domain.ModelMetadata{}, fmt.Errorf("%w: empty product key", domain.ErrValidation)
	}
	if series.Len() == 0 {
		return domain.ModelMetadata{}, fmt.Errorf("save %s: %w", key, domain.ErrInsufficientData)
	}

	meta := domain.ModelMetadata{
		ProductKey: key,
		TrainedAt:  s.now(),
		DataPoints: series.Len(),
		DateRange:  domain.DateRange{Start: series.Start(), End: series.End()},
	}
	rev := uuid.NewString()

	data, err := model.MarshalBinary()
	if err != nil {
		return domain.ModelMetadata{}, fmt.Errorf("%w: serialize model %s: %v", domain.ErrPersistence, key, err)
	}

	modelName, perfName, metaName := entryNames(key)
	payloads := make([]namedPayload, 0, 3)
	for _, e := range []struct {
		name string
		v    any
	}{
		{modelName, modelEntry{Revision: rev, Engine: s.engine.Name(), Data: data}},
		{perfName, performanceEntry{Revision: rev, PerformanceMetrics: metrics}},
		{metaName, metadataEntry{Revision: rev, ModelMetadata: meta}},
	} {
		b, err := json.Marshal(e.v)
		if err != nil {
			return domain.ModelMetadata{}, fmt.Errorf("%w: encode %s: %v", domain.ErrPersistence, e.name, err)
		}
		payloads = append(payloads, namedPayload{name: e.name, data: b})
	}

	snapshot, err := s.snapshot(ctx, modelName, perfName, metaName)
	if err != nil {
		return domain.ModelMetadata{}, err
	}

	for i, p := range payloads {
		if err := s.backend.Put(ctx, p.name, p.data); err != nil {
			s.restore(ctx, key, snapshot[:i+1])
			return domain.ModelMetadata{}, fmt.Errorf("%w: write %s: %v", domain.ErrPersistence, p.name, err)
		}
	}

	s.mu.Lock()
	s.records[key] = Record{Model: model, Metrics: metrics, Metadata: meta, Revision: rev}
	s.mu.Unlock()

	s.log.Info().Str("product_key", key).Str("revision", rev).Int("data_points", meta.DataPoints).Msg("model saved")
	return meta, nil
}

type namedPayload struct {
	name  string
	data  []byte
	found bool
}

func (s *Store) snapshot(ctx context.Context, names ...string) ([]namedPayload, error) {
	out := make([]namedPayload, 0, len(names))
	for _, name := range names {
		data, found, err := s.backend.Get(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", domain.ErrPersistence, name, err)
		}
		out = append(out, namedPayload{name: name, data: data, found: found})
	}
	return out, nil
}

// restore puts back the entries touched by a failed save.
func (s *Store) restore(ctx context.Context, key string, touched []namedPayload) {
	// rollback must run even when the save context was cancelled
	ctx = context.WithoutCancel(ctx)
	for _, p := range touched {
		var err error
		if p.found {
			err = s.backend.Put(ctx, p.name, p.data)
		} else {
			err = s.backend.Delete(ctx, p.name)
		}
		if err != nil {
			s.log.Error().Err(err).Str("product_key", key).Str("entry", p.name).Msg("failed to roll back model entry")
		}
	}
}

// Load reads the three entries of key into memory. It reports false without
// error when any entry is missing or the entries belong to different saves.
func (s *Store) Load(ctx context.Context, key string) (bool, error) {
	modelName, perfName, metaName := entryNames(key)
	entries, err := s.snapshot(ctx, modelName, perfName, metaName)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if !e.found {
			return false, nil
		}
	}

	var (
		me  modelEntry
		pe  performanceEntry
		mde metadataEntry
	)
	for i, target := range []any{&me, &pe, &mde} {
		if err := json.Unmarshal(entries[i].data, target); err != nil {
			return false, fmt.Errorf("%w: decode %s: %v", domain.ErrPersistence, entries[i].name, err)
		}
	}

	if me.Revision == "" || me.Revision != pe.Revision || me.Revision != mde.Revision {
		s.log.Warn().Str("product_key", key).Msg("model entries belong to different saves, treating as absent")
		return false, nil
	}
	if me.Engine != s.engine.Name() {
		return false, fmt.Errorf("%w: model %s was trained with engine %q, store uses %q", domain.ErrPersistence, key, me.Engine, s.engine.Name())
	}

	model, err := s.engine.Decode(me.Data)
	if err != nil {
		return false, fmt.Errorf("%w: restore model %s: %v", domain.ErrPersistence, key, err)
	}

	s.mu.Lock()
	s.records[key] = Record{Model: model, Metrics: pe.PerformanceMetrics, Metadata: mde.ModelMetadata, Revision: me.Revision}
	s.mu.Unlock()
	return true, nil
}

// LoadAll loads every saved key. A failure on one key does not stop the others.
func (s *Store) LoadAll(ctx context.Context) ([]domain.ItemResult, error) {
	keys, err := s.ListKeys(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]domain.ItemResult, 0, len(keys))
	for _, key := range keys {
		found, err := s.Load(ctx, key)
		switch {
		case err != nil:
			s.log.Error().Err(err).Str("product_key", key).Msg("failed to load model")
			results = append(results, domain.ItemResult{Key: key, Success: false, Message: err.Error()})
		case !found:
			results = append(results, domain.ItemResult{Key: key, Success: false, Message: "incomplete model entries"})
		default:
			results = append(results, domain.ItemResult{Key: key, Success: true, Message: "loaded"})
		}
	}
	s.log.Info().Int("keys", len(keys)).Msg("model store loaded")
	return results, nil
}

// Delete removes the entries of key. Deleting an unknown key succeeds.
func (s *Store) Delete(ctx context.Context, key string) error {
	modelName, perfName, metaName := entryNames(key)
	var errs []error
	for _, name := range []string{modelName, perfName, metaName} {
		if err := s.backend.Delete(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, errors.Join(errs...))
	}

	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
	return nil
}

// Exists checks the backend, not memory, for a complete set of entries.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.stored(ctx, key)
	return n == 3, err
}

// Stored reports whether any entry of key is on the backend, including the
// leftovers of a torn save.
func (s *Store) Stored(ctx context.Context, key string) (bool, error) {
	n, err := s.stored(ctx, key)
	return n > 0, err
}

func (s *Store) stored(ctx context.Context, key string) (int, error) {
	modelName, perfName, metaName := entryNames(key)
	n := 0
	for _, name := range []string{modelName, perfName, metaName} {
		ok, err := s.backend.Exists(ctx, name)
		if err != nil {
			return 0, fmt.Errorf("%w: stat %s: %v", domain.ErrPersistence, name, err)
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// ListKeys decodes the product keys of all saved model entries.
func (s *Store) ListKeys(ctx context.Context) ([]string, error) {
	objs, err := s.backend.List(ctx, ModelSuffix)
	if err != nil {
		return nil, fmt.Errorf("%w: list models: %v", domain.ErrPersistence, err)
	}

	keys := make([]string, 0, len(objs))
	for _, obj := range objs {
		enc := obj.Key[:len(obj.Key)-len(ModelSuffix)]
		key, err := DecodeKey(enc)
		if err != nil {
			s.log.Warn().Err(err).Str("entry", obj.Key).Msg("skipping unrecognized model entry")
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Get returns the in-memory record of key.
func (s *Store) Get(key string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[key]
	return r, ok
}

// Keys returns the product keys loaded in memory, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
