package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/mikey/mail-classifier/internal/core"
)

// MemoryStore is an in-memory implementation of the TableStore interface.
// Access is serialized by the owning classifier's lock discipline, so the
// store itself carries no locks.
type MemoryStore struct {
	categories  map[string]int
	frequencies map[string]map[string]int
	predictors  map[string]map[string]core.Predictor
	bias        map[string]float64
	meta        core.Meta
	logger      *zap.Logger
}

// NewMemoryStore creates a new in-memory table store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		categories:  make(map[string]int),
		frequencies: make(map[string]map[string]int),
		predictors:  make(map[string]map[string]core.Predictor),
		bias:        make(map[string]float64),
		logger:      logger,
	}
}

// Categories returns a copy of the category message counts.
func (s *MemoryStore) Categories(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, len(s.categories))
	for name, messages := range s.categories {
		out[name] = messages
	}
	return out, nil
}

// AdjustCategory changes a category's message count by delta, clamping at
// zero. The category stays known even when its count reaches zero.
func (s *MemoryStore) AdjustCategory(ctx context.Context, category string, delta int) error {
	messages := s.categories[category] + delta
	if messages < 0 {
		messages = 0
	}
	s.categories[category] = messages
	return nil
}

// AdjustTokens changes each token's occurrence count for the category by
// delta. Counts clamp at zero; rows that reach zero are dropped, since an
// absent row and a zero count are indistinguishable to readers.
func (s *MemoryStore) AdjustTokens(ctx context.Context, category string, tokens []string, delta int) error {
	for _, token := range tokens {
		row := s.frequencies[token]
		if row == nil {
			if delta <= 0 {
				continue
			}
			row = make(map[string]int)
			s.frequencies[token] = row
		}
		count := row[category] + delta
		if count <= 0 {
			delete(row, category)
			if len(row) == 0 {
				delete(s.frequencies, token)
			}
			continue
		}
		row[category] = count
	}
	return nil
}

// Frequencies returns a copy of the complete token frequency table.
func (s *MemoryStore) Frequencies(ctx context.Context) (map[string]map[string]int, error) {
	out := make(map[string]map[string]int, len(s.frequencies))
	for token, row := range s.frequencies {
		counts := make(map[string]int, len(row))
		for category, count := range row {
			counts[category] = count
		}
		out[token] = counts
	}
	return out, nil
}

// PredictorRows returns the cached predictor rows for the given tokens.
func (s *MemoryStore) PredictorRows(ctx context.Context, tokens []string) (map[string]map[string]core.Predictor, error) {
	out := make(map[string]map[string]core.Predictor)
	for _, token := range tokens {
		row, ok := s.predictors[token]
		if !ok {
			continue
		}
		entry := make(map[string]core.Predictor, len(row))
		for category, p := range row {
			entry[category] = p
		}
		out[token] = entry
	}
	return out, nil
}

// ReplacePredictors swaps in a freshly rebuilt predictor table.
func (s *MemoryStore) ReplacePredictors(ctx context.Context, rows map[string]map[string]core.Predictor) error {
	next := make(map[string]map[string]core.Predictor, len(rows))
	for token, row := range rows {
		entry := make(map[string]core.Predictor, len(row))
		for category, p := range row {
			entry[category] = p
		}
		next[token] = entry
	}
	s.predictors = next
	return nil
}

// Bias returns a copy of the per-category weight multipliers.
func (s *MemoryStore) Bias(ctx context.Context) (map[string]float64, error) {
	out := make(map[string]float64, len(s.bias))
	for category, multiplier := range s.bias {
		out[category] = multiplier
	}
	return out, nil
}

// SetBias stores a category's weight multiplier.
func (s *MemoryStore) SetBias(ctx context.Context, category string, multiplier float64) error {
	s.bias[category] = multiplier
	return nil
}

// Meta returns the staleness counters.
func (s *MemoryStore) Meta(ctx context.Context) (core.Meta, error) {
	return s.meta, nil
}

// SetMeta stores the staleness counters.
func (s *MemoryStore) SetMeta(ctx context.Context, meta core.Meta) error {
	s.meta = meta
	return nil
}

// Dump copies the complete model state out of the store.
func (s *MemoryStore) Dump(ctx context.Context) (*core.ModelState, error) {
	state := core.NewModelState()
	var err error
	if state.Categories, err = s.Categories(ctx); err != nil {
		return nil, err
	}
	if state.Frequencies, err = s.Frequencies(ctx); err != nil {
		return nil, err
	}
	if state.Bias, err = s.Bias(ctx); err != nil {
		return nil, err
	}
	state.Predictors = make(map[string]map[string]core.Predictor, len(s.predictors))
	for token, row := range s.predictors {
		entry := make(map[string]core.Predictor, len(row))
		for category, p := range row {
			entry[category] = p
		}
		state.Predictors[token] = entry
	}
	state.Meta = s.meta
	return state, nil
}

// Load replaces the store's contents with a copy of the given state.
func (s *MemoryStore) Load(ctx context.Context, state *core.ModelState) error {
	if err := s.Reset(ctx); err != nil {
		return err
	}
	for name, messages := range state.Categories {
		s.categories[name] = messages
	}
	for token, row := range state.Frequencies {
		counts := make(map[string]int, len(row))
		for category, count := range row {
			counts[category] = count
		}
		s.frequencies[token] = counts
	}
	if err := s.ReplacePredictors(ctx, state.Predictors); err != nil {
		return err
	}
	for category, multiplier := range state.Bias {
		s.bias[category] = multiplier
	}
	s.meta = state.Meta
	s.logger.Debug("Loaded model state",
		zap.Int("categories", len(s.categories)),
		zap.Int("tokens", len(s.frequencies)))
	return nil
}

// Reset drops every table and zeroes the staleness counters.
func (s *MemoryStore) Reset(ctx context.Context) error {
	s.categories = make(map[string]int)
	s.frequencies = make(map[string]map[string]int)
	s.predictors = make(map[string]map[string]core.Predictor)
	s.bias = make(map[string]float64)
	s.meta = core.Meta{}
	return nil
}

// Close releases nothing for the in-memory backend.
func (s *MemoryStore) Close() error {
	return nil
}
