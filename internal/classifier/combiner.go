package classifier

import (
	"fmt"
	"math"

	"github.com/mikey/mail-classifier/internal/core"
)

// Combiner names accepted in configuration.
const (
	CombinerRobinsonFisher = "robinson-fisher"
	CombinerOddsProduct    = "odds-product"
)

// NewCombiner returns the named combining strategy. An empty name selects
// Robinson-Fisher.
func NewCombiner(name string) (core.Combiner, error) {
	switch name {
	case CombinerRobinsonFisher, "":
		return RobinsonFisher{}, nil
	case CombinerOddsProduct:
		return OddsProduct{}, nil
	default:
		return nil, fmt.Errorf("unsupported combiner: %s", name)
	}
}

// RobinsonFisher combines predictor probabilities with Fisher's method
// applied symmetrically to the evidence for and against a category, so
// weak evidence in both directions cancels toward the middle. With no
// evidence the result is the neutral 0.5.
type RobinsonFisher struct{}

// Name implements core.Combiner.
func (RobinsonFisher) Name() string { return CombinerRobinsonFisher }

// Combine implements core.Combiner.
func (RobinsonFisher) Combine(probs []float64) float64 {
	if len(probs) == 0 {
		return 0.5
	}
	sumLn, sumLnComp := 0.0, 0.0
	for _, p := range probs {
		sumLn += math.Log(p)
		sumLnComp += math.Log(1 - p)
	}
	dof := 2 * len(probs)
	against := chiSquareQ(-2*sumLnComp, dof)
	favor := chiSquareQ(-2*sumLn, dof)
	return (1 + favor - against) / 2
}

// OddsProduct is the legacy combiner: the product of the probabilities
// weighed against the product of their complements. It predates the
// N-category generalization and keeps its historical neutral value of 0
// for empty evidence, deliberately different from Robinson-Fisher's 0.5.
type OddsProduct struct{}

// Name implements core.Combiner.
func (OddsProduct) Name() string { return CombinerOddsProduct }

// Combine implements core.Combiner.
func (OddsProduct) Combine(probs []float64) float64 {
	if len(probs) == 0 {
		return 0
	}
	f, notf := 1.0, 1.0
	for _, p := range probs {
		f *= p
		notf *= 1 - p
	}
	if f+notf == 0 {
		// Both products underflowed; call it undecided rather than NaN.
		return 0
	}
	return f / (f + notf)
}
