package classifier

import (
	"context"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/mikey/mail-classifier/internal/core"
	"github.com/mikey/mail-classifier/internal/tokenizer"
)

// Variant names accepted in configuration.
const (
	VariantBayes  = "bayes"
	VariantRandom = "random"
)

// Defaults for the engine tunables.
const (
	defaultPredictors      = 41
	defaultMinObservations = 5
	defaultMinProb         = 0.01
	defaultMaxProb         = 0.99
	defaultScoreDelay      = 1
)

// Config carries the tunables of the Bayesian engine. Zero values fall
// back to the defaults.
type Config struct {
	// Predictors is how many of the most significant tokens take part in
	// scoring a document.
	Predictors int
	// MinObservations keeps a token out of the predictor cache until its
	// summed counts across all categories reach it.
	MinObservations int
	// MinProb and MaxProb clamp every cached probability.
	MinProb float64
	MaxProb float64
	// ScoreDelay is the staleness budget: the predictor cache is rebuilt
	// once the processed counter runs this far ahead of it.
	ScoreDelay uint64
	// IgnoredTokens are dropped during extraction, case-insensitively.
	IgnoredTokens []string
	// Bias seeds per-category weight multipliers at construction.
	Bias map[string]float64
}

func (c Config) withDefaults() Config {
	if c.Predictors <= 0 {
		c.Predictors = defaultPredictors
	}
	if c.MinObservations <= 0 {
		c.MinObservations = defaultMinObservations
	}
	if c.MinProb <= 0 {
		c.MinProb = defaultMinProb
	}
	if c.MaxProb <= 0 {
		c.MaxProb = defaultMaxProb
	}
	if c.ScoreDelay == 0 {
		c.ScoreDelay = defaultScoreDelay
	}
	return c
}

// tableLocks is the per-table reader-writer discipline. Writers lock only
// the tables they mutate; whole-object operations take every lock through
// lockAll. Multi-lock holders acquire in one fixed order, predictors
// first, so they can never deadlock against each other.
type tableLocks struct {
	predictors  sync.RWMutex
	categories  sync.RWMutex
	frequencies sync.RWMutex
	bias        sync.RWMutex
	meta        sync.RWMutex
}

func (t *tableLocks) lockAll() {
	t.predictors.Lock()
	t.categories.Lock()
	t.frequencies.Lock()
	t.bias.Lock()
	t.meta.Lock()
}

func (t *tableLocks) unlockAll() {
	t.meta.Unlock()
	t.bias.Unlock()
	t.frequencies.Unlock()
	t.categories.Unlock()
	t.predictors.Unlock()
}

// Bayes is the frequency-weighted Bayesian classifier variant. It owns the
// lock discipline over its table store, so the store itself does not have
// to be safe for concurrent use.
type Bayes struct {
	store     core.TableStore
	extractor *tokenizer.Extractor
	combiner  core.Combiner
	cfg       Config
	logger    *zap.Logger
	locks     tableLocks
}

// NewBayes creates the Bayesian classifier over the given table store.
// Bias seeds with non-positive multipliers are ignored.
func NewBayes(store core.TableStore, combiner core.Combiner, cfg Config, logger *zap.Logger) (*Bayes, error) {
	b := &Bayes{
		store:     store,
		extractor: tokenizer.New(cfg.IgnoredTokens),
		combiner:  combiner,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
	for category, multiplier := range cfg.Bias {
		if err := b.SetBias(context.Background(), category, multiplier); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Learn adds a labeled document to the model.
func (b *Bayes) Learn(ctx context.Context, category string, doc *core.Document) error {
	return b.adjust(ctx, category, doc, 1)
}

// Unlearn removes a previously learned document's contribution. Counts
// saturate at zero, so unlearning a never-learned document is harmless.
func (b *Bayes) Unlearn(ctx context.Context, category string, doc *core.Document) error {
	return b.adjust(ctx, category, doc, -1)
}

func (b *Bayes) adjust(ctx context.Context, category string, doc *core.Document, delta int) error {
	if err := core.CheckCategory(category); err != nil {
		return err
	}
	tokens := b.extractor.Extract(doc)

	b.locks.categories.Lock()
	err := b.store.AdjustCategory(ctx, category, delta)
	b.locks.categories.Unlock()
	if err != nil {
		return err
	}

	b.locks.frequencies.Lock()
	err = b.store.AdjustTokens(ctx, category, tokens, delta)
	b.locks.frequencies.Unlock()
	if err != nil {
		return err
	}

	// Learning in either direction advances the staleness counter.
	b.locks.meta.Lock()
	meta, err := b.store.Meta(ctx)
	if err == nil {
		meta.Processed++
		err = b.store.SetMeta(ctx, meta)
	}
	b.locks.meta.Unlock()
	if err != nil {
		return err
	}

	b.logger.Debug("Adjusted model",
		zap.String("category", category),
		zap.Int("delta", delta),
		zap.Int("tokens", len(tokens)))
	return nil
}

// Categories lists the known category names in sorted order.
func (b *Bayes) Categories(ctx context.Context) ([]string, error) {
	b.locks.categories.RLock()
	categories, err := b.store.Categories(ctx)
	b.locks.categories.RUnlock()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Valid implements the document validity predicate. The Bayesian variant
// accepts any non-nil document.
func (b *Bayes) Valid(doc *core.Document) bool {
	return doc != nil
}

// SetBias stores a weight multiplier for a category. Non-positive values
// are ignored and the current-or-default multiplier stays in effect.
func (b *Bayes) SetBias(ctx context.Context, category string, multiplier float64) error {
	if err := core.CheckCategory(category); err != nil {
		return err
	}
	if multiplier <= 0 || math.IsNaN(multiplier) {
		b.logger.Debug("Ignoring non-positive bias",
			zap.String("category", category),
			zap.Float64("multiplier", multiplier))
		return nil
	}
	b.locks.bias.Lock()
	err := b.store.SetBias(ctx, category, multiplier)
	b.locks.bias.Unlock()
	return err
}

// Forget drops the entire model, returning the classifier to its
// untrained state.
func (b *Bayes) Forget(ctx context.Context) error {
	b.locks.lockAll()
	defer b.locks.unlockAll()
	if err := b.store.Reset(ctx); err != nil {
		return err
	}
	b.logger.Debug("Model forgotten")
	return nil
}

// Snapshot copies the full model state under every table lock, giving a
// consistent view for persistence.
func (b *Bayes) Snapshot(ctx context.Context) (*core.ModelState, error) {
	b.locks.lockAll()
	defer b.locks.unlockAll()
	return b.store.Dump(ctx)
}

// Restore replaces the model with a previously snapshotted state.
func (b *Bayes) Restore(ctx context.Context, state *core.ModelState) error {
	b.locks.lockAll()
	defer b.locks.unlockAll()
	return b.store.Load(ctx, state)
}

// Close releases the underlying table store.
func (b *Bayes) Close() error {
	return b.store.Close()
}
