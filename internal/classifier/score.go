package classifier

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/mikey/mail-classifier/internal/core"
)

// Score ranks every known category for the document, best first. A stale
// predictor cache is rebuilt first; a model with no categories yields an
// empty slice.
func (b *Bayes) Score(ctx context.Context, doc *core.Document) ([]core.CategoryScore, error) {
	if err := b.maybeRefresh(ctx); err != nil {
		return nil, err
	}

	tokens := b.extractor.Extract(doc)

	b.locks.predictors.RLock()
	rows, err := b.store.PredictorRows(ctx, tokens)
	b.locks.predictors.RUnlock()
	if err != nil {
		return nil, err
	}

	names, err := b.Categories(ctx)
	if err != nil {
		return nil, err
	}
	return b.combine(names, rows), nil
}

// combine folds one document's predictor rows into ranked category scores.
func (b *Bayes) combine(categories []string, rows map[string]map[string]core.Predictor) []core.CategoryScore {
	interesting := rankTokens(rows, b.cfg.Predictors)

	scores := make([]core.CategoryScore, 0, len(categories))
	for _, category := range categories {
		probs := make([]float64, 0, len(interesting))
		for _, token := range interesting {
			if p, ok := rows[token][category]; ok {
				probs = append(probs, p.Prob)
			}
		}
		scores = append(scores, core.CategoryScore{
			Category: category,
			Prob:     b.combiner.Combine(probs),
		})
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Prob != scores[j].Prob {
			return scores[i].Prob > scores[j].Prob
		}
		return scores[i].Category < scores[j].Category
	})
	return scores
}

// rankTokens orders tokens by accumulated significance, most distinctive
// first, and keeps the top limit. Ties break on the token string so the
// ranking never depends on map iteration order.
func rankTokens(rows map[string]map[string]core.Predictor, limit int) []string {
	type ranked struct {
		token string
		sig   float64
	}
	list := make([]ranked, 0, len(rows))
	for token, row := range rows {
		sig := 0.0
		for _, p := range row {
			sig += p.Sig
		}
		list = append(list, ranked{token: token, sig: sig})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].sig != list[j].sig {
			return list[i].sig > list[j].sig
		}
		return list[i].token < list[j].token
	})
	if len(list) > limit {
		list = list[:limit]
	}
	tokens := make([]string, len(list))
	for i, r := range list {
		tokens[i] = r.token
	}
	return tokens
}

// maybeRefresh rebuilds the predictor cache once the model has drifted at
// least score_delay messages past the last rebuild. The rebuild is bulk
// work amortized over many learns, never done per learn.
func (b *Bayes) maybeRefresh(ctx context.Context) error {
	b.locks.meta.RLock()
	meta, err := b.store.Meta(ctx)
	b.locks.meta.RUnlock()
	if err != nil {
		return err
	}
	if !meta.Stale(b.cfg.ScoreDelay) {
		return nil
	}
	return b.refresh(ctx)
}

// refresh performs the full predictor rebuild. It holds the predictors
// lock exclusively for the duration but reads each source table under a
// shared lock only long enough to copy it, so learns are never blocked
// for the whole rebuild.
func (b *Bayes) refresh(ctx context.Context) error {
	b.locks.predictors.Lock()
	defer b.locks.predictors.Unlock()

	// Another scorer may have rebuilt while we waited for the lock.
	b.locks.meta.RLock()
	meta, err := b.store.Meta(ctx)
	b.locks.meta.RUnlock()
	if err != nil {
		return err
	}
	if !meta.Stale(b.cfg.ScoreDelay) {
		return nil
	}
	rebuiltAsOf := meta.Processed

	b.locks.categories.RLock()
	categories, err := b.store.Categories(ctx)
	b.locks.categories.RUnlock()
	if err != nil {
		return err
	}

	b.locks.bias.RLock()
	bias, err := b.store.Bias(ctx)
	b.locks.bias.RUnlock()
	if err != nil {
		return err
	}

	b.locks.frequencies.RLock()
	frequencies, err := b.store.Frequencies(ctx)
	b.locks.frequencies.RUnlock()
	if err != nil {
		return err
	}

	rows := buildPredictors(categories, frequencies, bias, b.cfg)
	if err := b.store.ReplacePredictors(ctx, rows); err != nil {
		return err
	}

	// Mark the cache current as of the counter we rebuilt from. Learns
	// that landed mid-rebuild keep their staleness and trigger the next
	// one.
	b.locks.meta.Lock()
	defer b.locks.meta.Unlock()
	meta, err = b.store.Meta(ctx)
	if err != nil {
		return err
	}
	if rebuiltAsOf > meta.ScoredAsOf {
		meta.ScoredAsOf = rebuiltAsOf
		if err := b.store.SetMeta(ctx, meta); err != nil {
			return err
		}
	}
	b.logger.Debug("Rebuilt predictor cache",
		zap.Int("tokens", len(rows)),
		zap.Int("categories", len(categories)),
		zap.Uint64("as_of", rebuiltAsOf))
	return nil
}

// buildPredictors derives the predictor table from a consistent snapshot
// of the counts. Each admitted token gets a probability for every known
// category: its bias-weighted relative frequency normalized across
// categories, clamped into [MinProb, MaxProb], stored with its square as
// the significance.
func buildPredictors(categories map[string]int, frequencies map[string]map[string]int, bias map[string]float64, cfg Config) map[string]map[string]core.Predictor {
	rows := make(map[string]map[string]core.Predictor)
	for token, counts := range frequencies {
		total := 0
		for _, count := range counts {
			total += count
		}
		if total < cfg.MinObservations {
			continue
		}

		ratios := make(map[string]float64, len(categories))
		ratioSum := 0.0
		for category, messages := range categories {
			if messages <= 0 {
				continue
			}
			ratio := float64(counts[category]) / float64(messages) * biasFor(bias, category)
			ratios[category] = ratio
			ratioSum += ratio
		}
		if ratioSum <= 0 {
			// Every observation sits in a category with no messages left;
			// the token carries no usable evidence.
			continue
		}

		row := make(map[string]core.Predictor, len(categories))
		for category := range categories {
			p := clamp(ratios[category]/ratioSum, cfg.MinProb, cfg.MaxProb)
			row[category] = core.Predictor{Prob: p, Sig: p * p}
		}
		rows[token] = row
	}
	return rows
}

// biasFor resolves a category's weight multiplier, defaulting to 1 for
// unset or non-positive entries.
func biasFor(bias map[string]float64, category string) float64 {
	if multiplier, ok := bias[category]; ok && multiplier > 0 {
		return multiplier
	}
	return 1
}

func clamp(p, lo, hi float64) float64 {
	if p < lo {
		return lo
	}
	if p > hi {
		return hi
	}
	return p
}
