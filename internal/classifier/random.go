package classifier

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-classifier/internal/core"
)

// Random is the trivial baseline variant: it learns only which categories
// exist and scores them with uniform random probabilities. Useful as an
// accuracy floor when judging the Bayesian variant.
type Random struct {
	mu         sync.Mutex
	categories map[string]int
	rng        *rand.Rand
	logger     *zap.Logger
}

// NewRandom creates the baseline classifier. A nil rng gets a time-seeded
// generator.
func NewRandom(rng *rand.Rand, logger *zap.Logger) *Random {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Random{
		categories: make(map[string]int),
		rng:        rng,
		logger:     logger,
	}
}

// Learn records the category; document content is ignored.
func (r *Random) Learn(ctx context.Context, category string, doc *core.Document) error {
	if err := core.CheckCategory(category); err != nil {
		return err
	}
	r.mu.Lock()
	r.categories[category]++
	r.mu.Unlock()
	return nil
}

// Unlearn drops one learned message from the category, saturating at zero.
func (r *Random) Unlearn(ctx context.Context, category string, doc *core.Document) error {
	if err := core.CheckCategory(category); err != nil {
		return err
	}
	r.mu.Lock()
	if r.categories[category] > 0 {
		r.categories[category]--
	}
	r.mu.Unlock()
	return nil
}

// Score assigns every known category a uniform random probability.
func (r *Random) Score(ctx context.Context, doc *core.Document) ([]core.CategoryScore, error) {
	r.mu.Lock()
	scores := make([]core.CategoryScore, 0, len(r.categories))
	for category := range r.categories {
		scores = append(scores, core.CategoryScore{Category: category, Prob: r.rng.Float64()})
	}
	r.mu.Unlock()

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Prob != scores[j].Prob {
			return scores[i].Prob > scores[j].Prob
		}
		return scores[i].Category < scores[j].Category
	})
	return scores, nil
}

// Categories lists the known category names in sorted order.
func (r *Random) Categories(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	names := make([]string, 0, len(r.categories))
	for name := range r.categories {
		names = append(names, name)
	}
	r.mu.Unlock()
	sort.Strings(names)
	return names, nil
}

// Valid accepts any non-nil document.
func (r *Random) Valid(doc *core.Document) bool {
	return doc != nil
}

// Forget drops every known category.
func (r *Random) Forget(ctx context.Context) error {
	r.mu.Lock()
	r.categories = make(map[string]int)
	r.mu.Unlock()
	return nil
}
