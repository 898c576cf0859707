package core

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Harness drives a classifier through training, non-destructive
// classification and N-fold cross-validation over labeled corpora.
type Harness struct {
	classifier Classifier
	logger     *zap.Logger
	workers    int
	trained    atomic.Bool
}

// NewHarness creates a harness around the given classifier. workers bounds
// the scoring fan-out; values below 1 fall back to GOMAXPROCS.
func NewHarness(classifier Classifier, logger *zap.Logger, workers int) *Harness {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Harness{
		classifier: classifier,
		logger:     logger,
		workers:    workers,
	}
}

// Trained reports whether the model currently holds any training.
func (h *Harness) Trained() bool {
	return h.trained.Load()
}

// Train learns every valid document of every source under its label.
// Training applied before a source failure is not rolled back.
func (h *Harness) Train(ctx context.Context, corpus Corpus) error {
	if err := corpus.Check(); err != nil {
		return err
	}
	learned, skipped := 0, 0
	for _, ls := range corpus {
		n, s, err := h.trainSource(ctx, ls, nil)
		learned += n
		skipped += s
		if err != nil {
			return err
		}
	}
	if learned > 0 {
		h.trained.Store(true)
	}
	h.logger.Info("Training complete",
		zap.Int("documents", learned),
		zap.Int("skipped", skipped),
		zap.Int("sources", len(corpus)))
	return nil
}

// Retrain forgets the current model and trains from scratch.
func (h *Harness) Retrain(ctx context.Context, corpus Corpus) error {
	if err := corpus.Check(); err != nil {
		return err
	}
	if err := h.Forget(ctx); err != nil {
		return err
	}
	return h.Train(ctx, corpus)
}

// Forget drops the model, returning the harness to its untrained state.
func (h *Harness) Forget(ctx context.Context) error {
	if err := h.classifier.Forget(ctx); err != nil {
		return err
	}
	h.trained.Store(false)
	return nil
}

// Classify scores every valid document of every source without touching the
// model. A document whose best category reaches the threshold counts toward
// that category; anything weaker counts toward UNK.
func (h *Harness) Classify(ctx context.Context, threshold float64, corpus Corpus) (*Evaluation, error) {
	if threshold < 0 || threshold > 1 {
		return nil, ErrInvalidThreshold
	}
	if err := corpus.Check(); err != nil {
		return nil, err
	}

	eval := newEvaluation(threshold, 0)
	if err := h.scorePass(ctx, eval, corpus, nil, true); err != nil {
		return nil, err
	}
	eval.CompletedAt = time.Now()
	h.logger.Info("Classification complete",
		zap.String("run_id", eval.RunID),
		zap.Int("documents", eval.Documents),
		zap.Int("skipped", eval.Skipped),
		zap.Float64("accuracy", eval.Accuracy()))
	return eval, nil
}

// Crossval runs N-fold cross-validation: every document is assigned a fold
// from rng once, then each fold in turn is scored against a model trained
// on all the others. The run is destructive and ends with an empty model.
func (h *Harness) Crossval(ctx context.Context, folds int, threshold float64, corpus Corpus, rng *rand.Rand) (*Evaluation, error) {
	if folds < 2 {
		return nil, ErrInvalidFolds
	}
	if threshold < 0 || threshold > 1 {
		return nil, ErrInvalidThreshold
	}
	if err := corpus.Check(); err != nil {
		return nil, err
	}
	if rng == nil {
		h.logger.Warn("No generator supplied, fold assignment will not be reproducible")
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	eval := newEvaluation(threshold, folds)
	assignment, err := h.assignFolds(ctx, eval, corpus, folds, rng)
	if err != nil {
		return nil, err
	}

	for fold := 0; fold < folds; fold++ {
		if err := h.Forget(ctx); err != nil {
			return nil, err
		}
		for _, ls := range corpus {
			held := fold
			if _, _, err := h.trainSource(ctx, ls, func(key string) bool {
				return assignment[key] != held
			}); err != nil {
				return nil, err
			}
		}
		held := fold
		admit := func(key string) bool { return assignment[key] == held }
		if err := h.scorePass(ctx, eval, corpus, admit, false); err != nil {
			return nil, err
		}
		h.logger.Debug("Fold complete", zap.Int("fold", fold), zap.Int("scored", eval.Documents))
	}

	if err := h.Forget(ctx); err != nil {
		return nil, err
	}
	eval.CompletedAt = time.Now()
	h.logger.Info("Cross-validation complete",
		zap.String("run_id", eval.RunID),
		zap.Int("folds", folds),
		zap.Int("documents", eval.Documents),
		zap.Int("skipped", eval.Skipped),
		zap.Float64("accuracy", eval.Accuracy()))
	return eval, nil
}

// assignFolds walks the corpus once, drawing a fold for every document in
// encounter order. Invalid documents draw a fold too, so the rng sequence
// does not depend on the validity predicate; they are counted as skipped
// here and filtered later.
func (h *Harness) assignFolds(ctx context.Context, eval *Evaluation, corpus Corpus, folds int, rng *rand.Rand) (map[string]int, error) {
	assignment := make(map[string]int)
	for _, ls := range corpus {
		index := 0
		err := ls.Source.Each(ctx, func(doc *Document) error {
			key := docKey(ls.Source, index, doc)
			index++
			assignment[key] = rng.Intn(folds)
			if !h.classifier.Valid(doc) {
				eval.Skipped++
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("reading source %s: %w", ls.Source.Name(), err)
		}
	}
	return assignment, nil
}

// trainSource learns every valid document of one source whose key passes
// admit (nil admits all). It returns the learned and skipped counts.
func (h *Harness) trainSource(ctx context.Context, ls LabeledSource, admit func(key string) bool) (int, int, error) {
	learned, skipped := 0, 0
	index := 0
	err := ls.Source.Each(ctx, func(doc *Document) error {
		key := docKey(ls.Source, index, doc)
		index++
		if admit != nil && !admit(key) {
			return nil
		}
		if !h.classifier.Valid(doc) {
			skipped++
			return nil
		}
		if err := h.classifier.Learn(ctx, ls.Category, doc); err != nil {
			return err
		}
		learned++
		return nil
	})
	if err != nil {
		return learned, skipped, fmt.Errorf("training from source %s: %w", ls.Source.Name(), err)
	}
	if learned > 0 {
		h.trained.Store(true)
	}
	return learned, skipped, nil
}

// scorePass scores every valid admitted document and records the outcomes.
// Scoring fans out over a bounded group: scorers are readers under the
// classifier's lock discipline, so they may run side by side.
func (h *Harness) scorePass(ctx context.Context, eval *Evaluation, corpus Corpus, admit func(key string) bool, countSkips bool) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.workers)
	var mu sync.Mutex

	for _, ls := range corpus {
		truth := ls.Category
		index := 0
		err := ls.Source.Each(gctx, func(doc *Document) error {
			key := docKey(ls.Source, index, doc)
			index++
			if admit != nil && !admit(key) {
				return nil
			}
			if !h.classifier.Valid(doc) {
				if countSkips {
					eval.Skipped++
				}
				return nil
			}
			d := doc
			g.Go(func() error {
				scores, err := h.classifier.Score(gctx, d)
				if err != nil {
					return fmt.Errorf("scoring document from %s: %w", ls.Source.Name(), err)
				}
				mu.Lock()
				defer mu.Unlock()
				recordOutcome(eval, truth, scores)
				return nil
			})
			return nil
		})
		if err != nil {
			// Drain in-flight scorers before surfacing the source failure.
			waitErr := g.Wait()
			if waitErr != nil {
				return waitErr
			}
			return fmt.Errorf("reading source %s: %w", ls.Source.Name(), err)
		}
	}
	return g.Wait()
}

// recordOutcome tallies one scored document. Callers hold the matrix lock.
func recordOutcome(eval *Evaluation, truth string, scores []CategoryScore) {
	predicted := CategoryUnknown
	if len(scores) > 0 && scores[0].Prob >= eval.Threshold {
		predicted = scores[0].Category
	}
	eval.Matrix.Add(truth, predicted)
	eval.Documents++
}

func newEvaluation(threshold float64, folds int) *Evaluation {
	return &Evaluation{
		RunID:     uuid.NewString(),
		Matrix:    make(ConfusionMatrix),
		Threshold: threshold,
		Folds:     folds,
		StartedAt: time.Now(),
	}
}

func docKey(source DocumentSource, index int, doc *Document) string {
	if doc != nil && doc.ID != "" {
		return doc.ID
	}
	return fmt.Sprintf("%s#%d", source.Name(), index)
}
