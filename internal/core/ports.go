package core

import (
	"context"
)

// Classifier is a trainable document classifier. Implementations decide how
// documents are parsed, learned and scored; the harness only drives the
// lifecycle.
type Classifier interface {
	// Learn adds a labeled document to the model.
	Learn(ctx context.Context, category string, doc *Document) error

	// Unlearn removes a previously learned document's contribution. Counts
	// saturate at zero; unlearning a never-learned document is not an error.
	Unlearn(ctx context.Context, category string, doc *Document) error

	// Score ranks every known category for the document, best first.
	// A model with no categories yields an empty slice, not an error.
	Score(ctx context.Context, doc *Document) ([]CategoryScore, error)

	// Categories lists the known category names in sorted order.
	Categories(ctx context.Context) ([]string, error)

	// Valid reports whether the document takes part in training and
	// evaluation. The default for every shipped variant is to accept all.
	Valid(doc *Document) bool

	// Forget drops the entire model, returning the classifier to its
	// untrained state.
	Forget(ctx context.Context) error
}

// Combiner folds a category's per-predictor probabilities into one combined
// score. Combine of an empty slice yields the strategy's neutral value,
// which deliberately differs between strategies (0.5 for Robinson-Fisher,
// 0 for the odds product).
type Combiner interface {
	// Name identifies the strategy in configuration and reports.
	Name() string

	// Combine folds the probability list into a single score in [0, 1].
	Combine(probs []float64) float64
}

// TableStore holds the classifier's learned state behind an exchangeable
// backend. Implementations are not required to be safe for concurrent use:
// the classifier owning the store serializes access through its per-table
// lock discipline.
type TableStore interface {
	// Categories returns every known category with its learned-message
	// count. The returned map is the caller's to keep.
	Categories(ctx context.Context) (map[string]int, error)

	// AdjustCategory changes a category's learned-message count by delta,
	// creating the category on first use and clamping at zero.
	AdjustCategory(ctx context.Context, category string, delta int) error

	// AdjustTokens changes each token's occurrence count for the category
	// by delta, clamping every count at zero.
	AdjustTokens(ctx context.Context, category string, tokens []string, delta int) error

	// Frequencies returns a copy of the complete token frequency table.
	Frequencies(ctx context.Context) (map[string]map[string]int, error)

	// PredictorRows returns the cached predictor rows for the given tokens.
	// Tokens without a row are simply absent from the result.
	PredictorRows(ctx context.Context, tokens []string) (map[string]map[string]Predictor, error)

	// ReplacePredictors swaps in a freshly rebuilt predictor table,
	// discarding the previous one.
	ReplacePredictors(ctx context.Context, rows map[string]map[string]Predictor) error

	// Bias returns the per-category weight multipliers.
	Bias(ctx context.Context) (map[string]float64, error)

	// SetBias stores a category's weight multiplier.
	SetBias(ctx context.Context, category string, multiplier float64) error

	// Meta returns the staleness counters.
	Meta(ctx context.Context) (Meta, error)

	// SetMeta stores the staleness counters.
	SetMeta(ctx context.Context, meta Meta) error

	// Dump copies the complete model state out of the store.
	Dump(ctx context.Context) (*ModelState, error)

	// Load replaces the store's contents with the given state.
	Load(ctx context.Context, state *ModelState) error

	// Reset drops every table and zeroes the staleness counters.
	Reset(ctx context.Context) error

	// Close releases any resources held by the backend.
	Close() error
}

// DocumentSource yields the documents of one mail folder or corpus slice.
type DocumentSource interface {
	// Name identifies the source in logs and fold-assignment keys. Two
	// sources in one corpus must not share a name.
	Name() string

	// Each calls fn for every document in a stable order, stopping early on
	// error. It must be callable any number of times: cross-validation
	// iterates each source once per fold pass.
	Each(ctx context.Context, fn func(*Document) error) error
}

// LabeledSource pairs a document source with its true category.
type LabeledSource struct {
	Source   DocumentSource
	Category string
}

// Corpus is an ordered list of labeled sources. Order matters: fold
// assignment keys follow the encounter order of documents.
type Corpus []LabeledSource

// Check validates every category label in the corpus.
func (c Corpus) Check() error {
	for _, ls := range c {
		if err := CheckCategory(ls.Category); err != nil {
			return err
		}
	}
	return nil
}
